package emitter_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/bale/internal/adapters/transform"
	"go.trai.ch/bale/internal/core/domain"
	"go.trai.ch/bale/internal/engine/emitter"
	"go.trai.ch/zerr"
)

// preludeGuard appears exactly once in the runtime prelude, so counting it
// counts prelude copies.
const preludeGuard = "if (global.__bale) { return; }"

// project accumulates a graph and transform results the way a committed
// build pass would, resolving import specifiers through an explicit table.
type project struct {
	t       *testing.T
	mode    domain.Mode
	graph   *domain.ModuleGraph
	results emitter.Results
	cfg     *domain.Config
}

func newProject(t *testing.T, mode domain.Mode, entries ...string) *project {
	t.Helper()
	return &project{
		t:       t,
		mode:    mode,
		graph:   domain.NewModuleGraph(),
		results: make(emitter.Results),
		cfg: &domain.Config{
			Root:            "/project",
			Entries:         entries,
			OutDir:          "dist",
			Mode:            mode,
			SharedThreshold: domain.DefaultSharedThreshold,
		},
	}
}

// add transforms src with the real transformer for kind and commits the
// unit. resolve maps import specifiers to unit IDs; specifiers without an
// entry stay unresolved and produce no edge.
func (p *project) add(id string, kind domain.UnitKind, src string, resolve map[string]string) {
	p.t.Helper()

	unit := domain.SourceUnit{
		ID:   domain.NewInternedString(id),
		Kind: kind,
		Data: []byte(src),
	}
	res := p.transform(unit)

	var edges []domain.Edge
	for _, ref := range res.Imports {
		to, ok := resolve[ref.Specifier]
		if !ok {
			continue
		}
		edges = append(edges, domain.Edge{
			From:      unit.ID,
			To:        domain.NewInternedString(to),
			Kind:      ref.Kind,
			Specifier: ref.Specifier,
			Bindings:  ref.Bindings,
		})
	}

	p.graph.AddOrReplace(unit, edges)
	p.results[unit.ID] = res
}

func (p *project) transform(unit domain.SourceUnit) *domain.TransformResult {
	p.t.Helper()

	opts := domain.TransformOptions{Kind: unit.Kind, Mode: p.mode}
	var (
		res *domain.TransformResult
		err error
	)
	switch unit.Kind {
	case domain.UnitScript:
		res, err = transform.NewScript().Transform(context.Background(), unit, opts)
	case domain.UnitStyle:
		res, err = transform.NewStyle().Transform(context.Background(), unit, opts)
	case domain.UnitMarkup:
		res, err = transform.NewMarkup().Transform(context.Background(), unit, opts)
	default:
		res, err = transform.NewAsset().Transform(context.Background(), unit, opts)
	}
	require.NoError(p.t, err)
	return res
}

func (p *project) emit(rev domain.Revision) (*domain.AssetManifest, error) {
	return emitter.New().Emit(p.graph, p.results, p.cfg, rev, nil)
}

func (p *project) mustEmit(rev domain.Revision) *domain.AssetManifest {
	p.t.Helper()
	manifest, err := p.emit(rev)
	require.NoError(p.t, err)
	return manifest
}

func chunkData(t *testing.T, m *domain.AssetManifest, name string) string {
	t.Helper()
	chunk, ok := m.Chunk(name)
	require.True(t, ok, "chunk %q not emitted", name)
	return string(chunk.Data)
}

func TestEmit_DevelopmentScriptChunk(t *testing.T) {
	p := newProject(t, domain.ModeDevelopment, "src/main.js")
	p.add("src/math.js", domain.UnitScript,
		"export function add(a, b) { return a + b }\n"+
			"export function sub(a, b) { return a - b }\n", nil)
	p.add("src/main.js", domain.UnitScript,
		"import { add } from './math.js'\n"+
			"document.title = add(1, 2)\n",
		map[string]string{"./math.js": "src/math.js"})

	m := p.mustEmit(1)

	assert.Equal(t, domain.Revision(1), m.Revision)
	assert.Equal(t, domain.ModeDevelopment, m.Mode)
	assert.Empty(t, m.ShellName)
	require.Len(t, m.Chunks, 1)

	chunk := m.Chunks[0]
	assert.Equal(t, "main", chunk.Name)
	assert.Equal(t, "js", chunk.Ext)
	assert.Regexp(t, `^main\.[0-9a-f]{8}\.js$`, chunk.FileName())
	assert.Equal(t,
		[]domain.InternedString{domain.NewInternedString("src/math.js"), domain.NewInternedString("src/main.js")},
		chunk.Members)

	code := string(chunk.Data)
	assert.Equal(t, 1, strings.Count(code, preludeGuard))
	assert.Contains(t, code, `__bale_register("src/math.js", [], function (require, exports) {`)
	assert.Contains(t, code, `__bale_register("src/main.js", ["src/math.js"], function (require, exports) {`)
	assert.Contains(t, code, `const { add } = require("src/math.js");`)
	assert.Contains(t, code, "exports.sub = sub;")
	assert.True(t, strings.HasSuffix(code, "__bale_require(\"src/main.js\");\n"))

	// dependency registers come before their importers
	assert.Less(t,
		strings.Index(code, `__bale_register("src/math.js"`),
		strings.Index(code, `__bale_register("src/main.js"`))

	mathInfo, ok := m.Modules[domain.NewInternedString("src/math.js")]
	require.True(t, ok)
	assert.Equal(t, "main", mathInfo.Chunk)
	assert.Equal(t, []string{"add", "sub"}, mathInfo.Exports)
	assert.NotEmpty(t, mathInfo.Hash)
	assert.NotEmpty(t, mathInfo.Code, "development keeps per-unit code for live updates")

	mainInfo, ok := m.Modules[domain.NewInternedString("src/main.js")]
	require.True(t, ok)
	assert.NotEmpty(t, mainInfo.EdgeSum)
}

func TestEmit_ProductionMinifiesAndPrunes(t *testing.T) {
	p := newProject(t, domain.ModeProduction, "src/main.js")
	p.add("src/math.js", domain.UnitScript,
		"export function add(a, b) { return a + b }\n"+
			"export function sub(a, b) { return a - b }\n", nil)
	p.add("src/main.js", domain.UnitScript,
		"import { add } from './math.js'\n"+
			"// wire up the page title\n"+
			"if (add(1, 2)) {\n"+
			"  document.title = 'ready'\n"+
			"}\n",
		map[string]string{"./math.js": "src/math.js"})

	m := p.mustEmit(1)
	require.Len(t, m.Chunks, 1)
	code := string(m.Chunks[0].Data)

	assert.NotContains(t, code, "wire up the page title")
	assert.NotContains(t, code, "  document.title")
	assert.Contains(t, code, "document.title = 'ready'")

	// only the referenced export survives
	assert.Contains(t, code, "exports.add = add;")
	assert.NotContains(t, code, "exports.sub = sub;")
	assert.Contains(t, code, "function sub(a, b)", "pruning drops assignments, not declarations")

	info := m.Modules[domain.NewInternedString("src/main.js")]
	assert.Nil(t, info.Code, "production manifests carry no live code")
	assert.Equal(t, []string{"add", "sub"}, m.Modules[domain.NewInternedString("src/math.js")].Exports)
}

func TestEmit_SharedHoisting(t *testing.T) {
	p := newProject(t, domain.ModeDevelopment, "src/a.js", "src/b.js")
	p.add("src/util.js", domain.UnitScript,
		"export function fmt(s) { return '[' + s + ']' }\n", nil)
	p.add("src/a.js", domain.UnitScript,
		"import { fmt } from './util.js'\nconsole.log(fmt('a'))\n",
		map[string]string{"./util.js": "src/util.js"})
	p.add("src/b.js", domain.UnitScript,
		"import { fmt } from './util.js'\nconsole.log(fmt('b'))\n",
		map[string]string{"./util.js": "src/util.js"})

	m := p.mustEmit(1)

	require.Len(t, m.Chunks, 3)
	assert.Equal(t, "shared", m.Chunks[0].Name)
	assert.Equal(t, "a", m.Chunks[1].Name)
	assert.Equal(t, "b", m.Chunks[2].Name)

	shared := chunkData(t, m, "shared")
	assert.Contains(t, shared, `__bale_register("src/util.js"`)
	assert.NotContains(t, shared, "__bale_require(", "the shared chunk boots nothing")

	a := chunkData(t, m, "a")
	assert.NotContains(t, a, `__bale_register("src/util.js"`)
	assert.Contains(t, a, `__bale_register("src/a.js", ["src/util.js"], function (require, exports) {`)
	assert.Contains(t, a, `require("src/util.js")`)
	assert.Contains(t, a, `__bale_require("src/a.js");`)

	assert.Equal(t, "shared", m.Modules[domain.NewInternedString("src/util.js")].Chunk)
}

func TestEmit_DevelopmentInlineStyles(t *testing.T) {
	p := newProject(t, domain.ModeDevelopment, "src/main.js")
	p.add("src/logo.png", domain.UnitAsset, "PNG-BYTES", nil)
	p.add("src/theme.css", domain.UnitStyle,
		"body { background: url('./logo.png'); color: red; }\n",
		map[string]string{"./logo.png": "src/logo.png"})
	p.add("src/main.js", domain.UnitScript,
		"import './theme.css'\nconsole.log('ready')\n",
		map[string]string{"./theme.css": "src/theme.css"})

	m := p.mustEmit(1)

	require.Len(t, m.Chunks, 2)
	_, hasCSS := m.Chunk("main-styles")
	assert.False(t, hasCSS, "development inlines styles into the script chunk")

	logo, ok := m.Chunk("src/logo")
	require.True(t, ok)
	assert.Equal(t, "png", logo.Ext)
	assert.Equal(t, []byte("PNG-BYTES"), logo.Data)
	assert.Regexp(t, `^src/logo\.[0-9a-f]{8}\.png$`, logo.FileName())

	code := chunkData(t, m, "main")
	assert.Contains(t, code, `__bale_register("src/theme.css", [], function (require, exports) {`)
	assert.Contains(t, code,
		`__bale_inject_style("src/theme.css", "body { background: url(\"/`+logo.FileName()+`\"); color: red; }\n");`)
	assert.Contains(t, code, `__bale_register("src/main.js", ["src/theme.css"], function (require, exports) {`)
	assert.Contains(t, code, `require("src/theme.css");`)

	// the asset stub exports its emitted URL
	assert.Contains(t, code, `__bale_register("src/logo.png", [], function (require, exports) {`)
	assert.Contains(t, code, `exports.default = "/`+logo.FileName()+`";`)

	assert.Equal(t, "main", m.Modules[domain.NewInternedString("src/theme.css")].Chunk)
	assert.Equal(t, "src/logo", m.Modules[domain.NewInternedString("src/logo.png")].Chunk)
}

func TestEmit_ProductionStyleChunk(t *testing.T) {
	p := newProject(t, domain.ModeProduction, "src/main.js")
	p.add("src/logo.png", domain.UnitAsset, "PNG-BYTES", nil)
	p.add("src/theme.css", domain.UnitStyle,
		"body { background: url('./logo.png'); color: red; }\n",
		map[string]string{"./logo.png": "src/logo.png"})
	p.add("src/main.js", domain.UnitScript,
		"import './theme.css'\nconsole.log('ready')\n",
		map[string]string{"./theme.css": "src/theme.css"})

	m := p.mustEmit(1)

	logo, ok := m.Chunk("src/logo")
	require.True(t, ok)

	css, ok := m.Chunk("main-styles")
	require.True(t, ok)
	assert.Equal(t, "css", css.Ext)
	assert.Equal(t, `body{background:url("/`+logo.FileName()+`");color:red;}`+"\n", string(css.Data))
	assert.Equal(t, []domain.InternedString{domain.NewInternedString("src/theme.css")}, css.Members)

	code := chunkData(t, m, "main")
	assert.NotContains(t, code, "__bale_inject_style")
	assert.Contains(t, code, `__bale_register("src/theme.css", [], function (require, exports) {});`,
		"the stub keeps require calls on the style working")
	assert.Contains(t, code, `__bale_register("src/main.js", ["src/theme.css"], function (require, exports) {`)

	assert.Equal(t, "main-styles", m.Modules[domain.NewInternedString("src/theme.css")].Chunk)
}

func TestEmit_ShellInjection_Development(t *testing.T) {
	p := newProject(t, domain.ModeDevelopment, "src/main.js")
	p.cfg.Shell = "index.html"
	p.add("src/main.js", domain.UnitScript, "console.log('app')\n", nil)
	p.add("index.html", domain.UnitMarkup,
		"<!doctype html>\n<html>\n<head>\n<!-- bale:styles -->\n</head>\n"+
			"<body>\n<main id=\"app\"></main>\n<!-- bale:scripts -->\n</body>\n</html>\n", nil)

	m := p.mustEmit(1)

	require.Equal(t, "index.html", m.ShellName)
	shell := string(m.Shell)

	main, ok := m.Chunk("main")
	require.True(t, ok)
	assert.Contains(t, shell, `<script src="`+domain.ClientScriptPath+`"></script>`)
	assert.Contains(t, shell, `<script src="/`+main.FileName()+`"></script>`)
	assert.NotContains(t, shell, "bale:scripts")
	assert.NotContains(t, shell, "bale:styles")

	// the shell is not a page chunk and carries no module metadata
	_, ok = m.Chunk("shell")
	assert.False(t, ok)
	_, ok = m.Modules[domain.NewInternedString("index.html")]
	assert.False(t, ok)

	names := m.FileNames()
	assert.Equal(t, "index.html", names[len(names)-1])
}

func TestEmit_ShellInjection_Production(t *testing.T) {
	p := newProject(t, domain.ModeProduction, "src/main.js")
	p.cfg.Shell = "index.html"
	p.add("src/theme.css", domain.UnitStyle, "body { color: red; }\n", nil)
	p.add("src/main.js", domain.UnitScript,
		"import './theme.css'\nconsole.log('app')\n",
		map[string]string{"./theme.css": "src/theme.css"})
	p.add("index.html", domain.UnitMarkup,
		"<html>\n<head>\n<!-- bale:styles -->\n</head>\n<body>\n<!-- bale:scripts -->\n</body>\n</html>\n", nil)

	m := p.mustEmit(1)
	shell := string(m.Shell)

	css, ok := m.Chunk("main-styles")
	require.True(t, ok)
	main, ok := m.Chunk("main")
	require.True(t, ok)

	assert.Contains(t, shell, `<link rel="stylesheet" href="/`+css.FileName()+`">`)
	assert.Contains(t, shell, `<script src="/`+main.FileName()+`"></script>`)
	assert.NotContains(t, shell, domain.ClientScriptPath)
}

func TestEmit_ShellPlaceholderMissing(t *testing.T) {
	p := newProject(t, domain.ModeDevelopment, "src/main.js")
	p.cfg.Shell = "index.html"
	p.add("src/main.js", domain.UnitScript, "console.log('app')\n", nil)
	p.add("index.html", domain.UnitMarkup, "<html><body>no markers</body></html>\n", nil)

	_, err := p.emit(1)
	require.Error(t, err)
	require.ErrorContains(t, err, domain.ErrShellPlaceholderMissing.Error())

	var zerrErr *zerr.Error
	require.ErrorAs(t, err, &zerrErr)
	assert.Equal(t, "<!-- bale:scripts -->", zerrErr.Metadata()["placeholder"])
	assert.Equal(t, "index.html", zerrErr.Metadata()["shell"])
}

func TestEmit_EntryNotFound(t *testing.T) {
	p := newProject(t, domain.ModeDevelopment, "src/app.js")

	_, err := p.emit(1)
	require.Error(t, err)
	require.ErrorContains(t, err, domain.ErrUnitNotFound.Error())

	var zerrErr *zerr.Error
	require.ErrorAs(t, err, &zerrErr)
	assert.Equal(t, "src/app.js", zerrErr.Metadata()["unit"])
}

func TestEmit_UnresolvedImportKeepsSpecifier(t *testing.T) {
	p := newProject(t, domain.ModeDevelopment, "src/main.js")
	p.add("src/main.js", domain.UnitScript,
		"import cowsay from 'cowsay'\ncowsay.say('moo')\n", nil)

	m := p.mustEmit(1)
	code := chunkData(t, m, "main")

	assert.Contains(t, code, `__bale_register("src/main.js", [], function (require, exports) {`,
		"unresolved references never appear in the dependency list")
	assert.Contains(t, code, `const cowsay = require("cowsay").default;`,
		"the raw specifier stays for the runtime to report")
}

func TestEmit_DynamicImport(t *testing.T) {
	p := newProject(t, domain.ModeDevelopment, "src/main.js")
	p.add("src/panel.js", domain.UnitScript, "export const title = 'Panel'\n", nil)
	p.add("src/main.js", domain.UnitScript,
		"const open = () => import('./panel.js')\nopen()\n",
		map[string]string{"./panel.js": "src/panel.js"})

	m := p.mustEmit(1)
	code := chunkData(t, m, "main")

	assert.Contains(t, code, `__bale_import("src/panel.js")`)
	assert.Contains(t, code, `__bale_register("src/panel.js"`,
		"lazily imported modules still ship in the owning chunk")
	assert.Contains(t, code, `__bale_register("src/main.js", [], function (require, exports) {`,
		"lazy edges are not eager dependencies")
}

func TestEmit_MarkdownPage(t *testing.T) {
	p := newProject(t, domain.ModeDevelopment, "docs/page.md")
	p.add("docs/diagram.png", domain.UnitAsset, "IMAGE", nil)
	p.add("docs/page.md", domain.UnitMarkup,
		"# Guide\n\n![diagram](./diagram.png)\n",
		map[string]string{"./diagram.png": "docs/diagram.png"})

	m := p.mustEmit(1)

	require.Len(t, m.Chunks, 2)
	_, ok := m.Chunk("docs/page-scripts")
	assert.False(t, ok, "a page without script tags gets no script chunk")

	diagram, ok := m.Chunk("docs/diagram")
	require.True(t, ok)

	page, ok := m.Chunk("docs/page")
	require.True(t, ok)
	assert.Equal(t, "html", page.Ext)
	content := string(page.Data)
	assert.Contains(t, content, "<h1>Guide</h1>")
	assert.Contains(t, content, `src="/`+diagram.FileName()+`"`)

	assert.Equal(t, "docs/page", m.Modules[domain.NewInternedString("docs/page.md")].Chunk)
}

func TestEmit_MarkupPageWithScript(t *testing.T) {
	p := newProject(t, domain.ModeDevelopment, "docs/about.html")
	p.add("docs/widget.js", domain.UnitScript, "console.log('widget ready')\n", nil)
	p.add("docs/about.html", domain.UnitMarkup,
		"<p>About this site.</p>\n<script src=\"./widget.js\"></script>\n",
		map[string]string{"./widget.js": "docs/widget.js"})

	m := p.mustEmit(1)

	scripts, ok := m.Chunk("docs/about-scripts")
	require.True(t, ok, "tag-referenced scripts get a chunk per page")
	code := string(scripts.Data)
	assert.Contains(t, code, `__bale_register("docs/widget.js"`)
	assert.True(t, strings.HasSuffix(code, "__bale_require(\"docs/widget.js\");\n"))

	page, ok := m.Chunk("docs/about")
	require.True(t, ok)
	assert.Contains(t, string(page.Data), `src="/`+scripts.FileName()+`"`)

	assert.Equal(t, "docs/about-scripts", m.Modules[domain.NewInternedString("docs/widget.js")].Chunk)
}

func TestEmit_Deterministic(t *testing.T) {
	p := newProject(t, domain.ModeProduction, "src/a.js", "src/b.js")
	p.cfg.Shell = "index.html"
	p.add("src/logo.png", domain.UnitAsset, "PNG-BYTES", nil)
	p.add("src/util.js", domain.UnitScript, "export function fmt(s) { return s }\n", nil)
	p.add("src/theme.css", domain.UnitStyle,
		"body { background: url('./logo.png'); }\n",
		map[string]string{"./logo.png": "src/logo.png"})
	p.add("src/a.js", domain.UnitScript,
		"import { fmt } from './util.js'\nimport './theme.css'\nconsole.log(fmt('a'))\n",
		map[string]string{"./util.js": "src/util.js", "./theme.css": "src/theme.css"})
	p.add("src/b.js", domain.UnitScript,
		"import { fmt } from './util.js'\nconsole.log(fmt('b'))\n",
		map[string]string{"./util.js": "src/util.js"})
	p.add("index.html", domain.UnitMarkup,
		"<html>\n<head>\n<!-- bale:styles -->\n</head>\n<body>\n<!-- bale:scripts -->\n</body>\n</html>\n", nil)

	first := p.mustEmit(7)
	second := p.mustEmit(7)

	require.Equal(t, first, second)
}

func TestEmit_CarriesDiagnostics(t *testing.T) {
	p := newProject(t, domain.ModeDevelopment, "src/main.js")
	p.add("src/main.js", domain.UnitScript, "console.log('app')\n", nil)

	seed := []domain.Diagnostic{{
		Severity: domain.SeverityWarning,
		Unit:     domain.NewInternedString("src/other.js"),
		Message:  "import of 'left-pad' is external and will not be bundled",
	}}
	m, err := emitter.New().Emit(p.graph, p.results, p.cfg, 1, seed)
	require.NoError(t, err)

	require.Len(t, m.Diagnostics, 1)
	assert.Equal(t, seed[0], m.Diagnostics[0])
}
