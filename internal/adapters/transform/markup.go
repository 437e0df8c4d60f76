package transform

import (
	"bytes"
	"context"
	"path"
	"strings"

	"github.com/yuin/goldmark"
	"go.trai.ch/bale/internal/core/domain"
	"go.trai.ch/bale/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/net/html"
)

var _ ports.Transformer = (*Markup)(nil)

// Markup transforms markup units. Markdown is rendered to an HTML fragment
// first; the result (or the original HTML input) is scanned for local
// script, stylesheet, and media references. Anchor hrefs are navigation,
// not bundle dependencies, and are left alone.
type Markup struct {
	md goldmark.Markdown
}

// NewMarkup creates the markup transformer.
func NewMarkup() *Markup {
	return &Markup{md: goldmark.New()}
}

// Kind returns the unit kind this transformer accepts.
func (t *Markup) Kind() domain.UnitKind {
	return domain.UnitMarkup
}

// Transform renders markdown and collects references from the markup.
func (t *Markup) Transform(_ context.Context, unit domain.SourceUnit, _ domain.TransformOptions) (*domain.TransformResult, error) {
	code := unit.Data

	if ext := strings.ToLower(path.Ext(unit.ID.String())); ext == ".md" {
		var rendered bytes.Buffer
		if err := t.md.Convert(unit.Data, &rendered); err != nil {
			wrapped := zerr.Wrap(err, domain.ErrTransformFailed.Error())
			return nil, zerr.With(wrapped, "unit", unit.ID.String())
		}
		code = rendered.Bytes()
	}

	imports, err := scanMarkup(unit.ID, code)
	if err != nil {
		return nil, err
	}

	return &domain.TransformResult{
		Code:    code,
		Imports: imports,
	}, nil
}

// scanMarkup walks the parsed document collecting local references.
func scanMarkup(unit domain.InternedString, code []byte) ([]domain.ImportRef, error) {
	doc, err := html.Parse(bytes.NewReader(code))
	if err != nil {
		wrapped := zerr.Wrap(err, domain.ErrTransformFailed.Error())
		return nil, zerr.With(wrapped, "unit", unit.String())
	}

	var imports []domain.ImportRef
	record := func(spec string, kind domain.ImportKind) {
		if !localRef(spec) {
			return
		}
		for _, ref := range imports {
			if ref.Specifier == spec && ref.Kind == kind {
				return
			}
		}
		imports = append(imports, domain.ImportRef{Specifier: spec, Kind: kind})
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			collectElementRefs(n, record)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return imports, nil
}

func collectElementRefs(n *html.Node, record func(string, domain.ImportKind)) {
	switch n.Data {
	case "script":
		if src := attrValue(n, "src"); src != "" {
			record(src, domain.ImportStatic)
		}
	case "link":
		rel := strings.ToLower(attrValue(n, "rel"))
		if href := attrValue(n, "href"); href != "" && strings.Contains(rel, "stylesheet") {
			record(href, domain.ImportStatic)
		}
	case "img", "source", "video", "audio":
		if src := attrValue(n, "src"); src != "" {
			record(src, domain.ImportSideEffect)
		}
	}
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
