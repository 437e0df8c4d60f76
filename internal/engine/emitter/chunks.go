package emitter

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"go.trai.ch/zerr"

	"go.trai.ch/bale/internal/core/domain"
)

// sharedKey is the members map key for the shared chunk; root indices are
// always >= 0.
const sharedKey = -1

// rootInfo is one emission root: a configured entry point or the HTML shell.
type rootInfo struct {
	id    domain.InternedString
	kind  domain.UnitKind
	name  string
	shell bool
}

// memberForm tells the chunk builder how a unit appears inside a script
// chunk.
type memberForm uint8

const (
	// formScript is a rewritten module register.
	formScript memberForm = iota
	// formStyleInline is a style wrapped as a register that injects its css
	// at runtime (development mode).
	formStyleInline
	// formStyleStub is an empty register standing in for a style that ships
	// as a css file, so require calls on it keep working.
	formStyleStub
	// formAssetStub is a register exporting the emitted asset URL.
	formAssetStub
)

type member struct {
	id   domain.InternedString
	form memberForm
}

// emitPlan carries all intermediate state of one Emit call. Every slice and
// map in it is filled in deterministic order, which is what makes emitted
// names and bytes reproducible.
type emitPlan struct {
	graph   *domain.ModuleGraph
	results Results
	cfg     *domain.Config
	dev     bool
	diags   []domain.Diagnostic

	roots     []rootInfo
	shellRoot int
	owners    map[domain.InternedString][]int
	order     []domain.InternedString
	names     *nameAllocator

	boot    map[int][]domain.InternedString
	bootSet map[domain.InternedString]struct{}
	members map[int][]member

	chunks      []domain.OutputChunk
	chunkOf     map[domain.InternedString]string
	liveCode    map[domain.InternedString][]byte
	rendered    map[domain.InternedString]string
	assetFiles  map[domain.InternedString]string
	cssFiles    map[int]string
	scriptFiles map[int]string
	sharedFile  string
}

// computeRoots resolves the entry points and the shell against the graph.
func (p *emitPlan) computeRoots() error {
	p.shellRoot = -1
	for _, entry := range p.cfg.Entries {
		id := domain.NewInternedString(entry)
		unit, ok := p.graph.Unit(id)
		if !ok {
			return zerr.With(domain.ErrUnitNotFound, "unit", entry)
		}
		p.roots = append(p.roots, rootInfo{id: id, kind: unit.Kind})
	}
	if p.cfg.Shell != "" {
		id := domain.NewInternedString(p.cfg.Shell)
		unit, ok := p.graph.Unit(id)
		if !ok {
			return zerr.With(domain.ErrUnitNotFound, "unit", p.cfg.Shell)
		}
		p.roots = append(p.roots, rootInfo{id: id, kind: unit.Kind, shell: true})
		p.shellRoot = len(p.roots) - 1
	}
	return nil
}

// computeOwnership records, per unit, which roots reach it. Root indices are
// appended in root order, so the lists are sorted ascending.
func (p *emitPlan) computeOwnership() {
	p.owners = make(map[domain.InternedString][]int)
	for i, root := range p.roots {
		for id := range p.graph.ReachableFrom(root.id) {
			p.owners[id] = append(p.owners[id], i)
		}
	}
}

// computeOrder fixes the global emission order: topological from the roots,
// with first-discovery tie-break.
func (p *emitPlan) computeOrder() error {
	ids := make([]domain.InternedString, len(p.roots))
	for i, root := range p.roots {
		ids[i] = root.id
	}
	order, err := p.graph.TopologicalOrder(ids)
	if err != nil {
		return err
	}
	p.order = order
	return nil
}

// assignRootNames claims a logical chunk name per root. Script and style
// entries use their base name; markup entries keep their path shape so page
// output mirrors the source layout. "shared" is always reserved so hoisting
// appearing later never renames an entry chunk.
func (p *emitPlan) assignRootNames() {
	p.names = newNameAllocator()
	p.names.reserve(sharedChunkName)
	for i := range p.roots {
		root := &p.roots[i]
		id := root.id.String()
		switch {
		case root.shell:
			root.name = p.names.claim("shell", "")
		case root.kind == domain.UnitScript || root.kind == domain.UnitStyle:
			root.name = p.names.claim(stem(path.Base(id)), dashed(stem(id)))
		default:
			root.name = p.names.claim(stem(id), dashed(stem(id)))
		}
	}
}

// collectBoot determines which units each root's script chunk executes at
// load time: the entry itself for script entries, and the scripts referenced
// by markup tags for markup roots and the shell.
func (p *emitPlan) collectBoot() {
	p.boot = make(map[int][]domain.InternedString)
	p.bootSet = make(map[domain.InternedString]struct{})

	add := func(rootIdx int, id domain.InternedString) {
		for _, have := range p.boot[rootIdx] {
			if have == id {
				return
			}
		}
		p.boot[rootIdx] = append(p.boot[rootIdx], id)
		p.bootSet[id] = struct{}{}
	}

	for i, root := range p.roots {
		switch root.kind {
		case domain.UnitScript:
			add(i, root.id)
		case domain.UnitMarkup:
			for _, id := range p.order {
				unit, ok := p.graph.Unit(id)
				if !ok || unit.Kind != domain.UnitMarkup || !p.ownedBy(id, i) {
					continue
				}
				for _, e := range p.graph.Edges(id) {
					if target, ok := p.graph.Unit(e.To); ok && target.Kind == domain.UnitScript {
						add(i, e.To)
					}
				}
			}
		}
	}
}

// collectMembers assigns every reachable unit to the script chunks that
// carry its register. Scripts and asset stubs follow the hoisting rule over
// script entries; styles additionally appear as stubs in markup root chunks
// because their bytes arrive through a stylesheet link there.
func (p *emitPlan) collectMembers() {
	p.members = make(map[int][]member)

	for _, id := range p.order {
		unit, ok := p.graph.Unit(id)
		if !ok {
			continue
		}
		switch unit.Kind {
		case domain.UnitScript:
			for _, key := range p.hoistedPlacements(id) {
				p.members[key] = append(p.members[key], member{id: id, form: formScript})
			}
		case domain.UnitStyle:
			form := formStyleStub
			if p.dev {
				form = formStyleInline
			}
			for _, key := range p.scriptEntryPlacements(id) {
				p.members[key] = append(p.members[key], member{id: id, form: form})
			}
			for _, key := range p.markupPlacements(id) {
				p.members[key] = append(p.members[key], member{id: id, form: formStyleStub})
			}
		case domain.UnitAsset:
			for _, key := range p.hoistedPlacements(id) {
				p.members[key] = append(p.members[key], member{id: id, form: formAssetStub})
			}
		}
	}
}

// scriptEntryPlacements applies the hoisting rule over script entries only:
// a unit reached by at least SharedThreshold of them lands in the shared
// chunk, otherwise in each owning entry's chunk.
func (p *emitPlan) scriptEntryPlacements(id domain.InternedString) []int {
	var keys []int
	for _, i := range p.owners[id] {
		if p.roots[i].kind == domain.UnitScript {
			keys = append(keys, i)
		}
	}
	if len(keys) >= p.cfg.SharedThreshold {
		return []int{sharedKey}
	}
	return keys
}

// markupPlacements lists the markup roots (pages and the shell) that reach
// the unit. Their chunks never share members with other roots.
func (p *emitPlan) markupPlacements(id domain.InternedString) []int {
	var keys []int
	for _, i := range p.owners[id] {
		if p.roots[i].kind == domain.UnitMarkup {
			keys = append(keys, i)
		}
	}
	return keys
}

func (p *emitPlan) hoistedPlacements(id domain.InternedString) []int {
	return append(p.scriptEntryPlacements(id), p.markupPlacements(id)...)
}

func (p *emitPlan) ownedBy(id domain.InternedString, rootIdx int) bool {
	for _, i := range p.owners[id] {
		if i == rootIdx {
			return true
		}
	}
	return false
}

// buildAssetChunks emits one chunk per reachable asset, keeping the source
// path shape in the chunk name so output stays navigable.
func (p *emitPlan) buildAssetChunks() error {
	for _, id := range p.order {
		unit, ok := p.graph.Unit(id)
		if !ok || unit.Kind != domain.UnitAsset {
			continue
		}
		res, err := p.resultOf(id)
		if err != nil {
			return err
		}
		name := p.names.claim(stem(id.String()), dashed(stem(id.String())))
		chunk := domain.OutputChunk{
			Name:    name,
			Ext:     assetExt(id.String()),
			Hash:    contentHash(res.Code),
			Members: []domain.InternedString{id},
			Data:    res.Code,
		}
		p.chunks = append(p.chunks, chunk)
		p.assetFiles[id] = chunk.FileName()
		p.setChunk(id, name, false)
	}
	return nil
}

// buildStyleChunks emits css files. Production collects the styles of every
// root into one file per root; development only does so for roots that
// cannot execute scripts (style entries, markup pages, the shell), because
// script entries inject their styles at runtime instead.
func (p *emitPlan) buildStyleChunks() error {
	for i, root := range p.roots {
		if p.dev && root.kind == domain.UnitScript {
			continue
		}
		members := p.stylesOwnedBy(i)
		if len(members) == 0 {
			continue
		}

		name := root.name
		if root.kind != domain.UnitStyle {
			name = p.names.claim(root.name+"-styles", "")
		}

		var buf bytes.Buffer
		for _, id := range members {
			res, err := p.resultOf(id)
			if err != nil {
				return err
			}
			css := rewriteStyleRefs(string(res.Code), p.graph.Edges(id), p.assetFiles)
			if !p.dev {
				min, ok := minifyStyleGuarded(css)
				if ok {
					css = min
				} else {
					p.warn(id, domain.ErrMinifyFailed.Error())
				}
			}
			buf.WriteString(css)
			if !strings.HasSuffix(css, "\n") {
				buf.WriteByte('\n')
			}
		}

		chunk := domain.OutputChunk{
			Name:    name,
			Ext:     "css",
			Hash:    contentHash(buf.Bytes()),
			Members: members,
			Data:    buf.Bytes(),
		}
		p.chunks = append(p.chunks, chunk)
		p.cssFiles[i] = chunk.FileName()
		for _, id := range members {
			p.setChunk(id, name, false)
		}
	}
	return nil
}

func (p *emitPlan) stylesOwnedBy(rootIdx int) []domain.InternedString {
	var styles []domain.InternedString
	for _, id := range p.order {
		unit, ok := p.graph.Unit(id)
		if ok && unit.Kind == domain.UnitStyle && p.ownedBy(id, rootIdx) {
			styles = append(styles, id)
		}
	}
	return styles
}

// buildScriptChunks emits the shared chunk followed by one chunk per root
// that executes scripts. Every script chunk starts with the runtime prelude
// and ends with the root's boot requires.
func (p *emitPlan) buildScriptChunks() error {
	if len(p.members[sharedKey]) > 0 {
		if err := p.emitScriptChunk(sharedKey, sharedChunkName); err != nil {
			return err
		}
	}
	for i, root := range p.roots {
		switch {
		case root.kind == domain.UnitScript:
			if err := p.emitScriptChunk(i, root.name); err != nil {
				return err
			}
		case root.kind == domain.UnitMarkup && len(p.boot[i]) > 0:
			name := p.names.claim(root.name+"-scripts", "")
			if err := p.emitScriptChunk(i, name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *emitPlan) emitScriptChunk(key int, name string) error {
	var buf bytes.Buffer
	buf.WriteString(runtimePrelude)

	var residents []domain.InternedString
	for _, m := range p.members[key] {
		text, err := p.renderMember(m)
		if err != nil {
			return err
		}
		buf.WriteString(text)
		if m.form == formScript || m.form == formStyleInline {
			residents = append(residents, m.id)
			inline := m.form == formStyleInline
			p.setChunk(m.id, name, inline)
		}
	}
	if key >= 0 {
		for _, id := range p.boot[key] {
			fmt.Fprintf(&buf, "__bale_require(%q);\n", id.String())
		}
	}

	chunk := domain.OutputChunk{
		Name:    name,
		Ext:     "js",
		Hash:    contentHash(buf.Bytes()),
		Members: residents,
		Data:    buf.Bytes(),
	}
	p.chunks = append(p.chunks, chunk)
	if key == sharedKey {
		p.sharedFile = chunk.FileName()
	} else {
		p.scriptFiles[key] = chunk.FileName()
	}
	return nil
}

// renderMember produces the register statement for one chunk member. Renders
// are cached so a unit duplicated across chunks is processed once and any
// minify warning is reported once.
func (p *emitPlan) renderMember(m member) (string, error) {
	switch m.form {
	case formScript:
		return p.renderScript(m.id)
	case formStyleInline:
		return p.renderInlineStyle(m.id)
	case formStyleStub:
		return fmt.Sprintf("__bale_register(%q, [], function (require, exports) {});\n", m.id.String()), nil
	case formAssetStub:
		return fmt.Sprintf("__bale_register(%q, [], function (require, exports) {\nexports.default = %q;\n});\n",
			m.id.String(), "/"+p.assetFiles[m.id]), nil
	}
	return "", zerr.With(domain.ErrBuildFailed, "unit", m.id.String())
}

// buildMarkupChunks emits every reachable markup page except the shell, with
// its tag references rewritten to emitted file names.
func (p *emitPlan) buildMarkupChunks() error {
	for _, id := range p.order {
		unit, ok := p.graph.Unit(id)
		if !ok || unit.Kind != domain.UnitMarkup {
			continue
		}
		if p.shellRoot >= 0 && p.roots[p.shellRoot].id == id {
			continue
		}
		res, err := p.resultOf(id)
		if err != nil {
			return err
		}

		content := p.rewriteMarkupRefs(string(res.Code), id, p.rootContext(id))
		name := ""
		if i := p.rootIndexOf(id); i >= 0 {
			name = p.roots[i].name
		} else {
			name = p.names.claim(stem(id.String()), dashed(stem(id.String())))
		}
		chunk := domain.OutputChunk{
			Name:    name,
			Ext:     "html",
			Hash:    contentHash([]byte(content)),
			Members: []domain.InternedString{id},
			Data:    []byte(content),
		}
		p.chunks = append(p.chunks, chunk)
		p.setChunk(id, name, false)
	}
	return nil
}

// rootIndexOf returns the root index of a unit that is itself a root, or -1.
func (p *emitPlan) rootIndexOf(id domain.InternedString) int {
	for i, root := range p.roots {
		if root.id == id {
			return i
		}
	}
	return -1
}

// rootContext picks the root whose chunks a markup unit's references resolve
// against: the unit's own root when it is one, otherwise its first owner.
func (p *emitPlan) rootContext(id domain.InternedString) int {
	if i := p.rootIndexOf(id); i >= 0 {
		return i
	}
	if list := p.owners[id]; len(list) > 0 {
		return list[0]
	}
	return -1
}

func (p *emitPlan) setChunk(id domain.InternedString, name string, force bool) {
	if force || p.chunkOf[id] == "" {
		p.chunkOf[id] = name
	}
}

func (p *emitPlan) warn(unit domain.InternedString, msg string) {
	p.diags = append(p.diags, domain.Diagnostic{
		Severity: domain.SeverityWarning,
		Unit:     unit,
		Message:  msg,
	})
}

// nameAllocator hands out unique logical chunk names. Claim order is
// deterministic, so collisions resolve identically across builds.
type nameAllocator struct {
	taken map[string]bool
}

func newNameAllocator() *nameAllocator {
	return &nameAllocator{taken: make(map[string]bool)}
}

func (a *nameAllocator) reserve(name string) {
	a.taken[name] = true
}

// claim returns preferred if free, then fallback, then a numbered variant.
func (a *nameAllocator) claim(preferred, fallback string) string {
	if !a.taken[preferred] {
		a.taken[preferred] = true
		return preferred
	}
	if fallback != "" && fallback != preferred && !a.taken[fallback] {
		a.taken[fallback] = true
		return fallback
	}
	base := preferred
	if fallback != "" {
		base = fallback
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s-%d", base, n)
		if !a.taken[candidate] {
			a.taken[candidate] = true
			return candidate
		}
	}
}

// stem strips the extension, keeping the path shape.
func stem(id string) string {
	s := strings.TrimSuffix(id, path.Ext(id))
	if s == "" {
		return id
	}
	return s
}

func dashed(s string) string {
	return strings.ReplaceAll(s, "/", "-")
}

// assetExt derives the output extension for an asset, lowercased so content
// types resolve consistently. Extensionless assets emit as .bin.
func assetExt(id string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(id)), ".")
	if ext == "" {
		return "bin"
	}
	return ext
}
