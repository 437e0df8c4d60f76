package emitter

import (
	"bytes"
	"regexp"
	"strings"

	"go.trai.ch/bale/internal/core/domain"
)

// minifyScriptGuarded shrinks a script body, falling back to the input when
// the pass panics. Emitting unminified output is always preferable to
// failing the build over a size optimization.
func minifyScriptGuarded(src string) (out string, ok bool) {
	defer func() {
		if recover() != nil {
			out, ok = "", false
		}
	}()
	return minifyScript(src), true
}

func minifyStyleGuarded(src string) (out string, ok bool) {
	defer func() {
		if recover() != nil {
			out, ok = "", false
		}
	}()
	return minifyStyle(src), true
}

// minifyScript strips comments, indentation, and blank lines. Newlines
// between statements are kept so automatic semicolon insertion behaves the
// same before and after. String and template literals pass through verbatim,
// including their inner whitespace.
func minifyScript(src string) string {
	m := &scriptMinifier{src: []byte(src), lineStart: true}
	m.run()
	return m.out.String()
}

type scriptMinifier struct {
	src       []byte
	pos       int
	out       bytes.Buffer
	lineStart bool
}

func (m *scriptMinifier) run() {
	for m.pos < len(m.src) {
		c := m.src[m.pos]
		switch {
		case m.lineStart && (c == ' ' || c == '\t'):
			m.pos++
		case c == '/' && m.peek(1) == '/':
			m.skipLineComment()
		case c == '/' && m.peek(1) == '*':
			m.skipBlockComment()
		case c == '\'' || c == '"':
			m.copyQuoted(c)
		case c == '`':
			m.copyTemplate()
		case c == '\n':
			m.writeNewline()
			m.pos++
		default:
			m.out.WriteByte(c)
			m.lineStart = false
			m.pos++
		}
	}
}

// writeNewline emits at most one newline in a row, dropping blank lines.
func (m *scriptMinifier) writeNewline() {
	if b := m.out.Bytes(); len(b) > 0 && b[len(b)-1] != '\n' {
		m.out.WriteByte('\n')
	}
	m.lineStart = true
}

func (m *scriptMinifier) skipLineComment() {
	for m.pos < len(m.src) && m.src[m.pos] != '\n' {
		m.pos++
	}
}

// skipBlockComment drops the comment, leaving a single space between
// surrounding tokens so adjacent identifiers cannot fuse.
func (m *scriptMinifier) skipBlockComment() {
	m.pos += 2
	for m.pos < len(m.src) {
		if m.src[m.pos] == '*' && m.peek(1) == '/' {
			m.pos += 2
			break
		}
		m.pos++
	}
	if !m.lineStart {
		m.out.WriteByte(' ')
	}
}

func (m *scriptMinifier) copyQuoted(quote byte) {
	m.lineStart = false
	m.out.WriteByte(quote)
	m.pos++
	for m.pos < len(m.src) {
		c := m.src[m.pos]
		if c == '\\' && m.pos+1 < len(m.src) {
			m.out.WriteByte(c)
			m.out.WriteByte(m.src[m.pos+1])
			m.pos += 2
			continue
		}
		m.out.WriteByte(c)
		m.pos++
		if c == quote || c == '\n' {
			return
		}
	}
}

// copyTemplate passes a template literal through verbatim; its whitespace is
// content, not formatting.
func (m *scriptMinifier) copyTemplate() {
	m.lineStart = false
	m.out.WriteByte('`')
	m.pos++
	for m.pos < len(m.src) {
		c := m.src[m.pos]
		switch {
		case c == '\\' && m.pos+1 < len(m.src):
			m.out.WriteByte(c)
			m.out.WriteByte(m.src[m.pos+1])
			m.pos += 2
		case c == '`':
			m.out.WriteByte(c)
			m.pos++
			return
		case c == '$' && m.peek(1) == '{':
			m.copyTemplateExpr()
		default:
			m.out.WriteByte(c)
			m.pos++
		}
	}
}

// copyTemplateExpr copies a ${ ... } region, balancing braces and passing
// nested literals through their own copy paths so an inner backtick does not
// end the outer template.
func (m *scriptMinifier) copyTemplateExpr() {
	m.out.WriteString("${")
	m.pos += 2
	depth := 1
	for m.pos < len(m.src) {
		c := m.src[m.pos]
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				m.out.WriteByte(c)
				m.pos++
				return
			}
		case '\'', '"':
			m.copyQuoted(c)
			continue
		case '`':
			m.copyTemplate()
			continue
		}
		m.out.WriteByte(c)
		m.pos++
	}
}

func (m *scriptMinifier) peek(offset int) byte {
	if m.pos+offset < len(m.src) {
		return m.src[m.pos+offset]
	}
	return 0
}

// minifyStyle strips css comments and collapses whitespace, dropping it
// entirely next to punctuation. Quoted strings pass through verbatim.
func minifyStyle(src string) string {
	var out bytes.Buffer
	b := []byte(src)
	pending := false
	i := 0
	for i < len(b) {
		c := b[i]
		switch {
		case c == '/' && i+1 < len(b) && b[i+1] == '*':
			i += 2
			for i < len(b) {
				if b[i] == '*' && i+1 < len(b) && b[i+1] == '/' {
					i += 2
					break
				}
				i++
			}
			pending = true
		case c == '\'' || c == '"':
			writeCSSPending(&out, &pending, c)
			out.WriteByte(c)
			i++
			for i < len(b) {
				if b[i] == '\\' && i+1 < len(b) {
					out.WriteByte(b[i])
					out.WriteByte(b[i+1])
					i += 2
					continue
				}
				out.WriteByte(b[i])
				i++
				if b[i-1] == c {
					break
				}
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			pending = true
			i++
		default:
			writeCSSPending(&out, &pending, c)
			out.WriteByte(c)
			i++
		}
	}
	return out.String()
}

// writeCSSPending resolves buffered whitespace: it becomes a single space
// unless it borders punctuation, where css allows none.
func writeCSSPending(out *bytes.Buffer, pending *bool, next byte) {
	if !*pending {
		return
	}
	*pending = false
	b := out.Bytes()
	if len(b) == 0 || isCSSPunct(b[len(b)-1]) || isCSSPunct(next) {
		return
	}
	out.WriteByte(' ')
}

func isCSSPunct(c byte) bool {
	switch c {
	case '{', '}', '(', ')', ';', ':', ',', '>':
		return true
	}
	return false
}

// exportLine matches a side-effect-free export assignment as the transform
// footer writes it. Only lines of this exact shape are candidates for
// pruning; anything with a call or member expression on the right stays.
var exportLine = regexp.MustCompile(`^exports\.([A-Za-z_$][A-Za-z0-9_$]*) = [A-Za-z_$][A-Za-z0-9_$]*;$`)

// pruneUnusedExports drops footer export assignments no importer binds.
// Entries and boot scripts are never pruned by the caller, since their
// consumers are outside the graph.
func (p *emitPlan) pruneUnusedExports(id domain.InternedString, exports []string, body string) string {
	all, used := usedExports(p.graph, id)
	if all {
		return body
	}
	prunable := make(map[string]bool)
	for _, name := range exports {
		if name != "*" && !used[name] {
			prunable[name] = true
		}
	}
	if len(prunable) == 0 {
		return body
	}
	return pruneExportLines(body, prunable)
}

// usedExports collects the export names a unit's importers reference.
// Namespace and dynamic references, markup importers, and edges carrying no
// binding information keep every export alive.
func usedExports(g *domain.ModuleGraph, id domain.InternedString) (bool, map[string]bool) {
	used := make(map[string]bool)
	for _, from := range g.Importers(id) {
		importer, ok := g.Unit(from)
		if !ok {
			return true, nil
		}
		for _, e := range g.Edges(from) {
			if e.To != id || e.Kind == domain.ImportSideEffect {
				continue
			}
			if importer.Kind != domain.UnitScript {
				return true, nil
			}
			if len(e.Bindings) == 0 {
				return true, nil
			}
			for _, b := range e.Bindings {
				if b == "*" {
					return true, nil
				}
				used[b] = true
			}
		}
	}
	return false, used
}

func pruneExportLines(body string, prunable map[string]bool) string {
	lines := strings.Split(body, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if m := exportLine.FindStringSubmatch(line); m != nil && prunable[m[1]] {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
