package transform

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"go.trai.ch/bale/internal/core/domain"
	"go.trai.ch/bale/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Transformer = (*Script)(nil)

// Script transforms an ES-module subset onto the registry runtime so chunks
// are directly executable. Supported syntax: static imports (default, named,
// namespace, bare), dynamic import() with a literal specifier, export
// declarations (const/let/var/function/class/async function), export
// default, export lists, and re-exports. Occurrences of bale.env.KEY are
// substituted from the configured define table.
type Script struct{}

// NewScript creates the script transformer.
func NewScript() *Script {
	return &Script{}
}

// Kind returns the unit kind this transformer accepts.
func (t *Script) Kind() domain.UnitKind {
	return domain.UnitScript
}

// Transform rewrites module syntax and collects dependency references.
func (t *Script) Transform(_ context.Context, unit domain.SourceUnit, opts domain.TransformOptions) (*domain.TransformResult, error) {
	s := &scriptScanner{
		src:    unit.Data,
		line:   1,
		unit:   unit.ID,
		define: opts.Define,
	}

	if err := s.run(); err != nil {
		return nil, err
	}

	deps := make([]string, 0, len(s.imports))
	for _, ref := range s.imports {
		if !ref.Kind.Lazy() {
			deps = append(deps, strconv.Quote(ref.Specifier))
		}
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "__bale_register(%q, [%s], function (require, exports) {\n",
		unit.ID.String(), strings.Join(deps, ", "))
	out.Write(s.body.Bytes())
	if body := s.body.Bytes(); len(body) > 0 && body[len(body)-1] != '\n' {
		out.WriteByte('\n')
	}
	out.Write(s.footer.Bytes())
	out.WriteString("});\n")

	return &domain.TransformResult{
		Code:        out.Bytes(),
		Imports:     s.imports,
		Exports:     s.exports,
		Diagnostics: s.diags,
	}, nil
}

type namedBinding struct {
	name  string
	alias string
}

func (b namedBinding) exported() string {
	if b.alias != "" {
		return b.alias
	}
	return b.name
}

type scriptScanner struct {
	src    []byte
	pos    int
	line   int
	unit   domain.InternedString
	define map[string]string

	body    bytes.Buffer
	footer  bytes.Buffer
	imports []domain.ImportRef
	exports []string
	diags   []domain.Diagnostic
}

func (s *scriptScanner) run() error {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '/' && s.peek(1) == '/':
			s.copyLineComment()
		case c == '/' && s.peek(1) == '*':
			if err := s.copyBlockComment(); err != nil {
				return err
			}
		case c == '\'' || c == '"' || c == '`':
			if err := s.copyString(c); err != nil {
				return err
			}
		case isIdentStart(c):
			if err := s.handleWord(); err != nil {
				return err
			}
		default:
			if c == '\n' {
				s.line++
			}
			s.body.WriteByte(c)
			s.pos++
		}
	}
	return nil
}

func (s *scriptScanner) handleWord() error {
	prevDot := s.prevIsDot()
	word := s.readWord()

	if prevDot {
		s.body.WriteString(word)
		return nil
	}

	switch word {
	case "import":
		return s.handleImport()
	case "export":
		return s.handleExport()
	case "bale":
		s.handleDefine()
		return nil
	default:
		s.body.WriteString(word)
		return nil
	}
}

func (s *scriptScanner) handleImport() error {
	s.skipSpaces()
	switch {
	case s.cur() == '(':
		return s.handleDynamicImport()
	case s.cur() == '.':
		// import.meta, leave untouched
		s.body.WriteString("import")
		return nil
	case s.cur() == '\'' || s.cur() == '"':
		spec, err := s.readStringLiteral()
		if err != nil {
			return err
		}
		s.record(spec, domain.ImportSideEffect)
		fmt.Fprintf(&s.body, "require(%q);", spec)
		s.consumeSemicolon()
		return nil
	default:
		return s.handleImportClause()
	}
}

func (s *scriptScanner) handleImportClause() error {
	var defaultName, nsName string
	var named []namedBinding
	haveNamed := false

	for {
		s.skipSpaces()
		switch {
		case s.cur() == '*':
			s.pos++
			s.skipSpaces()
			if w := s.readWord(); w != "as" {
				return s.fatal("expected 'as' after '*' in import")
			}
			s.skipSpaces()
			nsName = s.readWord()
			if nsName == "" {
				return s.fatal("expected namespace name in import")
			}
		case s.cur() == '{':
			list, err := s.readNamedList()
			if err != nil {
				return err
			}
			named = list
			haveNamed = true
		default:
			defaultName = s.readWord()
			if defaultName == "" {
				return s.fatal("malformed import clause")
			}
		}

		s.skipSpaces()
		if s.cur() == ',' {
			s.pos++
			continue
		}
		break
	}

	if w := s.readWord(); w != "from" {
		return s.fatal("expected 'from' in import")
	}
	s.skipSpaces()

	spec, err := s.readStringLiteral()
	if err != nil {
		return err
	}

	var bindings []string
	if nsName != "" {
		bindings = append(bindings, "*")
	}
	if defaultName != "" {
		bindings = append(bindings, "default")
	}
	for _, b := range named {
		bindings = append(bindings, b.name)
	}
	s.record(spec, domain.ImportStatic, bindings...)

	s.writeImportBinding(defaultName, nsName, named, haveNamed, spec)
	s.consumeSemicolon()
	return nil
}

func (s *scriptScanner) writeImportBinding(defaultName, nsName string, named []namedBinding, haveNamed bool, spec string) {
	switch {
	case nsName != "" && defaultName != "":
		fmt.Fprintf(&s.body, "const %s = require(%q), %s = %s.default;", nsName, spec, defaultName, nsName)
	case nsName != "":
		fmt.Fprintf(&s.body, "const %s = require(%q);", nsName, spec)
	case defaultName != "" && !haveNamed:
		fmt.Fprintf(&s.body, "const %s = require(%q).default;", defaultName, spec)
	case haveNamed || defaultName != "":
		parts := make([]string, 0, len(named)+1)
		if defaultName != "" {
			parts = append(parts, "default: "+defaultName)
		}
		for _, b := range named {
			if b.alias != "" {
				parts = append(parts, b.name+": "+b.alias)
			} else {
				parts = append(parts, b.name)
			}
		}
		fmt.Fprintf(&s.body, "const { %s } = require(%q);", strings.Join(parts, ", "), spec)
	default:
		fmt.Fprintf(&s.body, "require(%q);", spec)
	}
}

func (s *scriptScanner) handleDynamicImport() error {
	s.pos++ // consume (
	s.skipSpaces()

	if s.cur() == '\'' || s.cur() == '"' {
		spec, err := s.readStringLiteral()
		if err != nil {
			return err
		}
		s.skipSpaces()
		if s.cur() == ')' {
			s.pos++
			s.record(spec, domain.ImportDynamic, "*")
			fmt.Fprintf(&s.body, "__bale_import(%q)", spec)
			return nil
		}
		s.warnf("dynamic import with a non-literal specifier is not analyzable")
		fmt.Fprintf(&s.body, "__bale_import(%s", strconv.Quote(spec))
		return nil
	}

	s.warnf("dynamic import with a non-literal specifier is not analyzable")
	s.body.WriteString("__bale_import(")
	return nil
}

//nolint:cyclop // dispatch over the export declaration forms
func (s *scriptScanner) handleExport() error {
	s.skipSpaces()

	switch {
	case s.cur() == '{':
		return s.handleExportList()
	case s.cur() == '*':
		return s.handleExportStar()
	}

	word := s.readWord()
	switch word {
	case "default":
		s.exportsAdd("default")
		s.body.WriteString("exports.default =")
		return nil
	case "const", "let", "var":
		s.body.WriteString(word + " ")
		s.skipSpaces()
		name := s.readWord()
		if name == "" {
			return s.fatal("expected binding name after 'export " + word + "'")
		}
		s.body.WriteString(name)
		s.exportsAdd(name)
		s.footerAssign(name, name)
		return nil
	case "function", "class":
		return s.exportNamedDecl(word)
	case "async":
		s.body.WriteString("async ")
		s.skipSpaces()
		if w := s.readWord(); w != "function" {
			return s.fatal("expected 'function' after 'export async'")
		}
		return s.exportNamedDecl("function")
	default:
		return s.fatal("unsupported export form")
	}
}

func (s *scriptScanner) exportNamedDecl(keyword string) error {
	s.body.WriteString(keyword + " ")
	s.skipSpaces()
	name := s.readWord()
	if name == "" {
		return s.fatal("expected name after 'export " + keyword + "'")
	}
	s.body.WriteString(name)
	s.exportsAdd(name)
	s.footerAssign(name, name)
	return nil
}

func (s *scriptScanner) handleExportList() error {
	list, err := s.readNamedList()
	if err != nil {
		return err
	}
	s.skipSpaces()

	if s.peekWord() == "from" {
		s.readWord()
		s.skipSpaces()
		spec, specErr := s.readStringLiteral()
		if specErr != nil {
			return specErr
		}

		names := make([]string, 0, len(list))
		for _, b := range list {
			names = append(names, b.name)
		}
		s.record(spec, domain.ImportStatic, names...)

		for _, b := range list {
			s.exportsAdd(b.exported())
			fmt.Fprintf(&s.footer, "exports.%s = require(%q).%s;\n", b.exported(), spec, b.name)
		}
		s.consumeSemicolon()
		return nil
	}

	for _, b := range list {
		s.exportsAdd(b.exported())
		s.footerAssign(b.exported(), b.name)
	}
	s.consumeSemicolon()
	return nil
}

func (s *scriptScanner) handleExportStar() error {
	s.pos++ // consume *
	s.skipSpaces()
	if w := s.readWord(); w != "from" {
		return s.fatal("expected 'from' after 'export *'")
	}
	s.skipSpaces()
	spec, err := s.readStringLiteral()
	if err != nil {
		return err
	}
	s.record(spec, domain.ImportStatic, "*")
	s.exportsAdd("*")
	fmt.Fprintf(&s.footer, "Object.assign(exports, require(%q));\n", spec)
	s.consumeSemicolon()
	return nil
}

// handleDefine substitutes bale.env.KEY occurrences. Unknown keys are left
// in place with a warning so the browser error names them.
func (s *scriptScanner) handleDefine() {
	save := s.pos

	if !s.consumeByte('.') {
		s.body.WriteString("bale")
		return
	}
	if w := s.readWord(); w != "env" {
		s.pos = save
		s.body.WriteString("bale")
		return
	}
	if !s.consumeByte('.') {
		s.pos = save
		s.body.WriteString("bale")
		return
	}
	key := s.readWord()
	if key == "" {
		s.pos = save
		s.body.WriteString("bale")
		return
	}

	if val, ok := s.define[key]; ok {
		s.body.WriteString(strconv.Quote(val))
		return
	}

	s.warnf("bale.env.%s is not defined", key)
	s.body.WriteString("bale.env." + key)
}

// readNamedList parses `{ a, b as c }` starting at the opening brace.
func (s *scriptScanner) readNamedList() ([]namedBinding, error) {
	s.pos++ // consume {
	var list []namedBinding

	for {
		s.skipSpaces()
		if s.cur() == '}' {
			s.pos++
			return list, nil
		}
		if s.cur() == 0 {
			return nil, s.fatal("unterminated binding list")
		}

		name := s.readWord()
		if name == "" {
			return nil, s.fatal("expected binding name")
		}
		binding := namedBinding{name: name}

		s.skipSpaces()
		if s.peekWord() == "as" {
			s.readWord()
			s.skipSpaces()
			binding.alias = s.readWord()
			if binding.alias == "" {
				return nil, s.fatal("expected alias after 'as'")
			}
			s.skipSpaces()
		}
		list = append(list, binding)

		if s.cur() == ',' {
			s.pos++
		}
	}
}

func (s *scriptScanner) copyLineComment() {
	for s.pos < len(s.src) && s.src[s.pos] != '\n' {
		s.body.WriteByte(s.src[s.pos])
		s.pos++
	}
}

func (s *scriptScanner) copyBlockComment() error {
	start := s.line
	s.body.WriteString("/*")
	s.pos += 2
	for s.pos < len(s.src) {
		if s.src[s.pos] == '*' && s.peek(1) == '/' {
			s.body.WriteString("*/")
			s.pos += 2
			return nil
		}
		if s.src[s.pos] == '\n' {
			s.line++
		}
		s.body.WriteByte(s.src[s.pos])
		s.pos++
	}
	s.line = start
	return s.fatal("unterminated block comment")
}

//nolint:cyclop // byte-level quote handling
func (s *scriptScanner) copyString(quote byte) error {
	start := s.line
	s.body.WriteByte(quote)
	s.pos++

	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '\\' && s.pos+1 < len(s.src):
			s.body.WriteByte(c)
			s.body.WriteByte(s.src[s.pos+1])
			s.pos += 2
		case c == quote:
			s.body.WriteByte(c)
			s.pos++
			return nil
		case c == '\n' && quote != '`':
			s.line = start
			return s.fatal("unterminated string literal")
		case c == '$' && quote == '`' && s.peek(1) == '{':
			if err := s.copyInterpolation(); err != nil {
				return err
			}
		default:
			if c == '\n' {
				s.line++
			}
			s.body.WriteByte(c)
			s.pos++
		}
	}

	s.line = start
	return s.fatal("unterminated string literal")
}

// copyInterpolation copies a `${ ... }` region verbatim, balancing braces
// and skipping over nested string literals.
func (s *scriptScanner) copyInterpolation() error {
	s.body.WriteString("${")
	s.pos += 2
	depth := 1

	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				s.body.WriteByte(c)
				s.pos++
				return nil
			}
		case '\'', '"', '`':
			if err := s.copyString(c); err != nil {
				return err
			}
			continue
		case '\n':
			s.line++
		}
		s.body.WriteByte(c)
		s.pos++
	}

	return s.fatal("unterminated template interpolation")
}

// readStringLiteral reads a quoted specifier and returns its content.
func (s *scriptScanner) readStringLiteral() (string, error) {
	quote := s.cur()
	if quote != '\'' && quote != '"' {
		return "", s.fatal("expected string literal")
	}
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
			return "", s.fatal("unterminated string literal")
		default:
			b.WriteByte(c)
			s.pos++
		}
	}
	return "", s.fatal("unterminated string literal")
}

func (s *scriptScanner) readWord() string {
	start := s.pos
	for s.pos < len(s.src) && isIdentPart(s.src[s.pos]) {
		s.pos++
	}
	return string(s.src[start:s.pos])
}

// peekWord returns the next identifier without consuming it.
func (s *scriptScanner) peekWord() string {
	save := s.pos
	w := s.readWord()
	s.pos = save
	return w
}

func (s *scriptScanner) skipSpaces() {
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

// consumeSemicolon eats an optional trailing semicolon after a rewritten
// statement, leaving following newlines for the main loop.
func (s *scriptScanner) consumeSemicolon() {
	for s.pos < len(s.src) && (s.src[s.pos] == ' ' || s.src[s.pos] == '\t') {
		s.pos++
	}
	if s.pos < len(s.src) && s.src[s.pos] == ';' {
		s.pos++
	}
}

func (s *scriptScanner) consumeByte(c byte) bool {
	if s.pos < len(s.src) && s.src[s.pos] == c {
		s.pos++
		return true
	}
	return false
}

func (s *scriptScanner) cur() byte {
	if s.pos < len(s.src) {
		return s.src[s.pos]
	}
	return 0
}

func (s *scriptScanner) peek(offset int) byte {
	if s.pos+offset < len(s.src) {
		return s.src[s.pos+offset]
	}
	return 0
}

func (s *scriptScanner) prevIsDot() bool {
	body := s.body.Bytes()
	for i := len(body) - 1; i >= 0; i-- {
		switch body[i] {
		case ' ', '\t', '\n', '\r':
			continue
		case '.':
			return true
		default:
			return false
		}
	}
	return false
}

// record remembers a discovered reference. Repeated references to the same
// specifier merge their binding names onto the first occurrence.
func (s *scriptScanner) record(spec string, kind domain.ImportKind, bindings ...string) {
	for i := range s.imports {
		ref := &s.imports[i]
		if ref.Specifier != spec || ref.Kind != kind {
			continue
		}
		for _, b := range bindings {
			if !slices.Contains(ref.Bindings, b) {
				ref.Bindings = append(ref.Bindings, b)
			}
		}
		return
	}
	s.imports = append(s.imports, domain.ImportRef{
		Specifier: spec,
		Kind:      kind,
		Bindings:  slices.Clone(bindings),
	})
}

func (s *scriptScanner) exportsAdd(name string) {
	for _, have := range s.exports {
		if have == name {
			return
		}
	}
	s.exports = append(s.exports, name)
}

func (s *scriptScanner) footerAssign(exported, local string) {
	fmt.Fprintf(&s.footer, "exports.%s = %s;\n", exported, local)
}

func (s *scriptScanner) warnf(format string, args ...any) {
	s.diags = append(s.diags, domain.Diagnostic{
		Severity: domain.SeverityWarning,
		Unit:     s.unit,
		Line:     s.line,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (s *scriptScanner) fatal(msg string) error {
	err := zerr.With(domain.ErrTransformFailed, "unit", s.unit.String())
	err = zerr.With(err, "line", s.line)
	return zerr.With(err, "detail", msg)
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
