package emitter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.trai.ch/zerr"

	"go.trai.ch/bale/internal/core/domain"
)

// renderScript turns a transformed script into its final register statement:
// the header is regenerated with resolved dependency IDs, specifiers in the
// body are mapped to unit IDs, and production mode minifies and prunes. The
// result is cached so a unit duplicated across chunks renders once.
func (p *emitPlan) renderScript(id domain.InternedString) (string, error) {
	if text, ok := p.rendered[id]; ok {
		return text, nil
	}
	res, err := p.resultOf(id)
	if err != nil {
		return "", err
	}
	body, err := registerBody(id, res.Code)
	if err != nil {
		return "", err
	}

	edges := p.graph.Edges(id)
	body = rewriteSpecifiers(body, edges)

	if !p.dev {
		if min, ok := minifyScriptGuarded(body); ok {
			body = min
		} else {
			p.warn(id, domain.ErrMinifyFailed.Error())
		}
		if _, boot := p.bootSet[id]; !boot {
			body = p.pruneUnusedExports(id, res.Exports, body)
		}
	}

	text := registerHeader(id, requireableDeps(p.graph, edges)) + body
	p.rendered[id] = text
	if p.dev {
		p.liveCode[id] = []byte(text)
	}
	return text, nil
}

// renderInlineStyle wraps a stylesheet as a register that requires its
// imported styles first and then injects its css, so declaration order
// matches the @import order the author wrote.
func (p *emitPlan) renderInlineStyle(id domain.InternedString) (string, error) {
	if text, ok := p.rendered[id]; ok {
		return text, nil
	}
	res, err := p.resultOf(id)
	if err != nil {
		return "", err
	}

	edges := p.graph.Edges(id)
	css := rewriteStyleRefs(string(res.Code), edges, p.assetFiles)
	encoded, err := json.Marshal(css)
	if err != nil {
		return "", zerr.Wrap(err, domain.ErrBuildFailed.Error())
	}

	deps := styleDeps(p.graph, edges)
	var b strings.Builder
	b.WriteString(registerHeader(id, deps))
	for _, dep := range deps {
		fmt.Fprintf(&b, "require(%s);\n", dep)
	}
	fmt.Fprintf(&b, "__bale_inject_style(%q, %s);\n", id.String(), encoded)
	b.WriteString("});\n")

	text := b.String()
	p.rendered[id] = text
	p.liveCode[id] = []byte(text)
	return text, nil
}

func registerHeader(id domain.InternedString, deps []string) string {
	return fmt.Sprintf("__bale_register(%q, [%s], function (require, exports) {\n",
		id.String(), strings.Join(deps, ", "))
}

// registerBody strips the register header line off a transformed script,
// returning everything after it including the closing brace line.
func registerBody(id domain.InternedString, code []byte) (string, error) {
	idx := bytes.IndexByte(code, '\n')
	if idx < 0 || !bytes.HasPrefix(code, []byte("__bale_register(")) {
		err := zerr.With(domain.ErrBuildFailed, "unit", id.String())
		return "", zerr.With(err, "reason", "malformed register wrapper")
	}
	return string(code[idx+1:]), nil
}

// rewriteSpecifiers maps require and import call specifiers to resolved unit
// IDs. Unresolved references keep their raw specifier; the runtime reports
// them when they are actually reached.
func rewriteSpecifiers(body string, edges []domain.Edge) string {
	var pairs []string
	seen := make(map[string]bool)
	for _, e := range edges {
		target := e.To.String()
		if e.Specifier == target {
			continue
		}
		spec := strconv.Quote(e.Specifier)
		to := strconv.Quote(target)
		for _, call := range []string{"require(", "__bale_import("} {
			old := call + spec + ")"
			if seen[old] {
				continue
			}
			seen[old] = true
			pairs = append(pairs, old, call+to+")")
		}
	}
	if len(pairs) == 0 {
		return body
	}
	return strings.NewReplacer(pairs...).Replace(body)
}

// requireableDeps lists the resolved dependency IDs a register declares:
// non-lazy edges to units present in the registry at runtime. Scripts and
// styles register their own code, assets register a URL stub; markup is
// never registered, so references to it are omitted.
func requireableDeps(g *domain.ModuleGraph, edges []domain.Edge) []string {
	var deps []string
	seen := make(map[string]bool)
	for _, e := range edges {
		if e.Kind.Lazy() {
			continue
		}
		unit, ok := g.Unit(e.To)
		if !ok {
			continue
		}
		if unit.Kind != domain.UnitScript && unit.Kind != domain.UnitStyle && unit.Kind != domain.UnitAsset {
			continue
		}
		q := strconv.Quote(e.To.String())
		if seen[q] {
			continue
		}
		seen[q] = true
		deps = append(deps, q)
	}
	return deps
}

// styleDeps lists the quoted IDs of a style's imported styles.
func styleDeps(g *domain.ModuleGraph, edges []domain.Edge) []string {
	var deps []string
	seen := make(map[string]bool)
	for _, e := range edges {
		if e.Kind.Lazy() {
			continue
		}
		unit, ok := g.Unit(e.To)
		if !ok || unit.Kind != domain.UnitStyle {
			continue
		}
		q := strconv.Quote(e.To.String())
		if seen[q] {
			continue
		}
		seen[q] = true
		deps = append(deps, q)
	}
	return deps
}

// rewriteStyleRefs maps url() references onto emitted asset file names.
// Quote styles are normalized to double quotes; references whose target is
// not an emitted asset stay as written.
func rewriteStyleRefs(css string, edges []domain.Edge, assetFiles map[domain.InternedString]string) string {
	var pairs []string
	seen := make(map[string]bool)
	for _, e := range edges {
		fn, ok := assetFiles[e.To]
		if !ok {
			continue
		}
		repl := `url("/` + fn + `")`
		for _, old := range []string{
			"url(" + e.Specifier + ")",
			`url("` + e.Specifier + `")`,
			"url('" + e.Specifier + "')",
		} {
			if seen[old] {
				continue
			}
			seen[old] = true
			pairs = append(pairs, old, repl)
		}
	}
	if len(pairs) == 0 {
		return css
	}
	return strings.NewReplacer(pairs...).Replace(css)
}

// rewriteMarkupRefs maps quoted tag references in markup onto emitted file
// names, resolved in the context of the given root.
func (p *emitPlan) rewriteMarkupRefs(content string, id domain.InternedString, rootIdx int) string {
	var pairs []string
	seen := make(map[string]bool)
	for _, e := range p.graph.Edges(id) {
		fn := p.fileForTarget(e.To, rootIdx)
		if fn == "" {
			continue
		}
		for _, quote := range []string{`"`, `'`} {
			old := quote + e.Specifier + quote
			if seen[old] {
				continue
			}
			seen[old] = true
			pairs = append(pairs, old, quote+"/"+fn+quote)
		}
	}
	if len(pairs) == 0 {
		return content
	}
	return strings.NewReplacer(pairs...).Replace(content)
}

// fileForTarget maps a referenced unit to the emitted file serving it in the
// given root's context: assets and markup by their own chunk, styles by the
// root's css file, scripts by the root's script chunk.
func (p *emitPlan) fileForTarget(target domain.InternedString, rootIdx int) string {
	unit, ok := p.graph.Unit(target)
	if !ok {
		return ""
	}
	switch unit.Kind {
	case domain.UnitAsset:
		return p.assetFiles[target]
	case domain.UnitStyle:
		if rootIdx >= 0 {
			return p.cssFiles[rootIdx]
		}
	case domain.UnitScript:
		if rootIdx >= 0 {
			return p.scriptFiles[rootIdx]
		}
	}
	return ""
}
