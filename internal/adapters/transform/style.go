package transform

import (
	"bytes"
	"context"
	"strings"

	"go.trai.ch/bale/internal/core/domain"
	"go.trai.ch/bale/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Transformer = (*Style)(nil)

// Style transforms stylesheets: @import statements become static edges and
// are stripped from the output (bundle order comes from the graph), url()
// references to local files become side-effect edges and stay in place for
// the emitter to rewrite.
type Style struct{}

// NewStyle creates the style transformer.
func NewStyle() *Style {
	return &Style{}
}

// Kind returns the unit kind this transformer accepts.
func (t *Style) Kind() domain.UnitKind {
	return domain.UnitStyle
}

// Transform strips @import statements and records references.
func (t *Style) Transform(_ context.Context, unit domain.SourceUnit, _ domain.TransformOptions) (*domain.TransformResult, error) {
	s := &styleScanner{src: unit.Data, line: 1, unit: unit.ID}
	if err := s.run(); err != nil {
		return nil, err
	}

	return &domain.TransformResult{
		Code:        s.out.Bytes(),
		Imports:     s.imports,
		Diagnostics: s.diags,
	}, nil
}

type styleScanner struct {
	src  []byte
	pos  int
	line int
	unit domain.InternedString

	out     bytes.Buffer
	imports []domain.ImportRef
	diags   []domain.Diagnostic
}

func (s *styleScanner) run() error {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '/' && s.peek(1) == '*':
			if err := s.copyComment(); err != nil {
				return err
			}
		case c == '\'' || c == '"':
			if err := s.copyString(c); err != nil {
				return err
			}
		case c == '@' && s.hasWordAt(s.pos+1, "import"):
			if err := s.handleAtImport(); err != nil {
				return err
			}
		case (c == 'u' || c == 'U') && s.hasURLAt(s.pos):
			if err := s.handleURL(); err != nil {
				return err
			}
		default:
			if c == '\n' {
				s.line++
			}
			s.out.WriteByte(c)
			s.pos++
		}
	}
	return nil
}

// handleAtImport consumes an @import statement through its semicolon and
// records the target. Nothing is emitted; concatenation order comes from
// the dependency graph.
func (s *styleScanner) handleAtImport() error {
	s.pos += len("@import")
	s.skipSpaces()

	var spec string
	var err error
	switch {
	case s.cur() == '\'' || s.cur() == '"':
		spec, err = s.readString()
	case s.hasURLAt(s.pos):
		spec, err = s.readURLArgument()
	default:
		return s.fatal("malformed @import")
	}
	if err != nil {
		return err
	}

	s.record(spec, domain.ImportStatic)

	// Consume any media query up to the terminating semicolon.
	for s.pos < len(s.src) && s.src[s.pos] != ';' {
		if s.src[s.pos] == '\n' {
			s.line++
		}
		s.pos++
	}
	if s.pos < len(s.src) {
		s.pos++ // consume ;
	}
	return nil
}

// handleURL copies a url(...) token through and records local targets.
func (s *styleScanner) handleURL() error {
	start := s.pos
	spec, err := s.readURLArgument()
	if err != nil {
		return err
	}

	if localRef(spec) {
		s.record(spec, domain.ImportSideEffect)
	}

	s.out.Write(s.src[start:s.pos])
	return nil
}

// readURLArgument consumes `url( ... )` and returns the unquoted argument.
func (s *styleScanner) readURLArgument() (string, error) {
	s.pos += len("url")
	s.skipSpaces()
	if s.cur() != '(' {
		return "", s.fatal("malformed url() reference")
	}
	s.pos++
	s.skipSpaces()

	if s.cur() == '\'' || s.cur() == '"' {
		spec, err := s.readString()
		if err != nil {
			return "", err
		}
		s.skipSpaces()
		if s.cur() != ')' {
			return "", s.fatal("malformed url() reference")
		}
		s.pos++
		return spec, nil
	}

	var b strings.Builder
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if c == ')' {
			s.pos++
			return strings.TrimSpace(b.String()), nil
		}
		if c == '\n' {
			return "", s.fatal("unterminated url() reference")
		}
		b.WriteByte(c)
		s.pos++
	}
	return "", s.fatal("unterminated url() reference")
}

func (s *styleScanner) copyComment() error {
	s.out.WriteString("/*")
	s.pos += 2
	for s.pos < len(s.src) {
		if s.src[s.pos] == '*' && s.peek(1) == '/' {
			s.out.WriteString("*/")
			s.pos += 2
			return nil
		}
		if s.src[s.pos] == '\n' {
			s.line++
		}
		s.out.WriteByte(s.src[s.pos])
		s.pos++
	}
	return s.fatal("unterminated comment")
}

func (s *styleScanner) copyString(quote byte) error {
	s.out.WriteByte(quote)
	s.pos++
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '\\' && s.pos+1 < len(s.src):
			s.out.WriteByte(c)
			s.out.WriteByte(s.src[s.pos+1])
			s.pos += 2
		case c == quote:
			s.out.WriteByte(c)
			s.pos++
			return nil
		case c == '\n':
			return s.fatal("unterminated string")
		default:
			s.out.WriteByte(c)
			s.pos++
		}
	}
	return s.fatal("unterminated string")
}

// readString reads a quoted value without emitting it.
func (s *styleScanner) readString() (string, error) {
	quote := s.src[s.pos]
	s.pos++
	var b strings.Builder
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '\\' && s.pos+1 < len(s.src):
			b.WriteByte(s.src[s.pos+1])
			s.pos += 2
		case c == quote:
			s.pos++
			return b.String(), nil
		case c == '\n':
			return "", s.fatal("unterminated string")
		default:
			b.WriteByte(c)
			s.pos++
		}
	}
	return "", s.fatal("unterminated string")
}

func (s *styleScanner) skipSpaces() {
	for s.pos < len(s.src) {
		switch s.src[s.pos] {
		case ' ', '\t', '\r':
			s.pos++
		case '\n':
			s.line++
			s.pos++
		default:
			return
		}
	}
}

// hasWordAt reports whether word starts at offset with a boundary after it.
func (s *styleScanner) hasWordAt(offset int, word string) bool {
	if offset+len(word) > len(s.src) {
		return false
	}
	if !strings.EqualFold(string(s.src[offset:offset+len(word)]), word) {
		return false
	}
	if offset+len(word) == len(s.src) {
		return true
	}
	next := s.src[offset+len(word)]
	return !isIdentPart(next) && next != '-'
}

// hasURLAt reports whether a url( token starts at offset. Word boundary
// before the token is the caller's concern; bytes before offset were
// already consumed plain.
func (s *styleScanner) hasURLAt(offset int) bool {
	if offset > 0 && (isIdentPart(s.src[offset-1]) || s.src[offset-1] == '-') {
		return false
	}
	if offset+4 > len(s.src) {
		return false
	}
	return strings.EqualFold(string(s.src[offset:offset+3]), "url") && s.src[offset+3] == '('
}

func (s *styleScanner) cur() byte {
	if s.pos < len(s.src) {
		return s.src[s.pos]
	}
	return 0
}

func (s *styleScanner) peek(offset int) byte {
	if s.pos+offset < len(s.src) {
		return s.src[s.pos+offset]
	}
	return 0
}

func (s *styleScanner) record(spec string, kind domain.ImportKind) {
	for _, ref := range s.imports {
		if ref.Specifier == spec && ref.Kind == kind {
			return
		}
	}
	s.imports = append(s.imports, domain.ImportRef{Specifier: spec, Kind: kind})
}

func (s *styleScanner) fatal(msg string) error {
	err := zerr.With(domain.ErrTransformFailed, "unit", s.unit.String())
	err = zerr.With(err, "line", s.line)
	return zerr.With(err, "detail", msg)
}

// localRef reports whether a reference points into the project rather than
// at a remote or inline resource.
func localRef(ref string) bool {
	if ref == "" {
		return false
	}
	for _, prefix := range []string{"data:", "http:", "https:", "//", "#", "mailto:", "tel:"} {
		if strings.HasPrefix(ref, prefix) {
			return false
		}
	}
	return true
}
