// Package emitter turns a committed module graph into the final asset set:
// content-hashed script and style chunks, passthrough assets, rendered
// markup pages, and the HTML shell with hashed references injected.
package emitter

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/zerr"

	"go.trai.ch/bale/internal/core/domain"
)

const (
	// scriptsMarker is the shell placeholder replaced with script tags.
	scriptsMarker = "<!-- bale:scripts -->"
	// stylesMarker is the shell placeholder replaced with stylesheet links.
	stylesMarker = "<!-- bale:styles -->"

	// shellOutputName is the emitted name of the HTML shell. The shell is
	// the page origin, so it keeps a stable, hash-free name.
	shellOutputName = "index.html"

	// sharedChunkName holds units hoisted out of entry chunks.
	sharedChunkName = "shared"
)

// Results maps unit IDs to their committed transform outputs for one
// revision. The orchestrator hands the emitter a snapshot that is consistent
// with the graph it was built from.
type Results map[domain.InternedString]*domain.TransformResult

// Emitter assembles output chunks from a graph and its transform results.
// Emit is a pure function of its inputs: identical graph, results, and
// configuration produce byte-identical manifests.
type Emitter struct{}

// New creates an Emitter.
func New() *Emitter {
	return &Emitter{}
}

// Emit walks the graph from the configured entry points (plus the shell
// when one is configured), groups reachable units into chunks, and returns
// the complete manifest for the revision. Warnings raised during emission
// are appended to the passed diagnostics.
func (e *Emitter) Emit(
	graph *domain.ModuleGraph,
	results Results,
	cfg *domain.Config,
	revision domain.Revision,
	diags []domain.Diagnostic,
) (*domain.AssetManifest, error) {
	p := &emitPlan{
		graph:       graph,
		results:     results,
		cfg:         cfg,
		dev:         cfg.Mode == domain.ModeDevelopment,
		diags:       diags,
		chunkOf:     make(map[domain.InternedString]string),
		liveCode:    make(map[domain.InternedString][]byte),
		rendered:    make(map[domain.InternedString]string),
		assetFiles:  make(map[domain.InternedString]string),
		cssFiles:    make(map[int]string),
		scriptFiles: make(map[int]string),
	}

	if err := p.computeRoots(); err != nil {
		return nil, err
	}
	p.computeOwnership()

	if err := p.computeOrder(); err != nil {
		return nil, err
	}
	p.assignRootNames()
	p.collectBoot()
	p.collectMembers()

	if err := p.buildAssetChunks(); err != nil {
		return nil, err
	}
	if err := p.buildStyleChunks(); err != nil {
		return nil, err
	}
	if err := p.buildScriptChunks(); err != nil {
		return nil, err
	}
	if err := p.buildMarkupChunks(); err != nil {
		return nil, err
	}

	shell, err := p.buildShell()
	if err != nil {
		return nil, err
	}

	manifest := &domain.AssetManifest{
		Revision:    revision,
		Mode:        cfg.Mode,
		Chunks:      p.chunks,
		Modules:     p.moduleInfos(),
		Diagnostics: p.diags,
	}
	if shell != nil {
		manifest.ShellName = shellOutputName
		manifest.Shell = shell
	}
	return manifest, nil
}

// buildShell renders the configured HTML shell: tag references are rewritten
// to emitted file names and the placeholder markers are replaced with the
// generated script and style tags. Returns nil when no shell is configured.
func (p *emitPlan) buildShell() ([]byte, error) {
	if p.cfg.Shell == "" {
		return nil, nil
	}
	shellID := domain.NewInternedString(p.cfg.Shell)
	res, err := p.resultOf(shellID)
	if err != nil {
		return nil, err
	}

	html := p.rewriteMarkupRefs(string(res.Code), shellID, p.shellRoot)

	scriptTags := p.shellScriptTags()
	if len(scriptTags) > 0 && !strings.Contains(html, scriptsMarker) {
		err := zerr.With(domain.ErrShellPlaceholderMissing, "placeholder", scriptsMarker)
		return nil, zerr.With(err, "shell", p.cfg.Shell)
	}
	styleTags := p.shellStyleTags()
	if len(styleTags) > 0 && !strings.Contains(html, stylesMarker) {
		err := zerr.With(domain.ErrShellPlaceholderMissing, "placeholder", stylesMarker)
		return nil, zerr.With(err, "shell", p.cfg.Shell)
	}

	html = strings.ReplaceAll(html, scriptsMarker, strings.Join(scriptTags, "\n"))
	html = strings.ReplaceAll(html, stylesMarker, strings.Join(styleTags, "\n"))
	return []byte(html), nil
}

// shellScriptTags lists the tags injected at the scripts marker: the
// live-update client in development, then the shared chunk, then one tag per
// script entry in configuration order.
func (p *emitPlan) shellScriptTags() []string {
	var tags []string
	if p.dev {
		tags = append(tags, `<script src="`+domain.ClientScriptPath+`"></script>`)
	}
	if p.sharedFile != "" {
		tags = append(tags, `<script src="/`+p.sharedFile+`"></script>`)
	}
	for i, root := range p.roots {
		if root.shell || root.kind != domain.UnitScript {
			continue
		}
		if file, ok := p.scriptFiles[i]; ok {
			tags = append(tags, `<script src="/`+file+`"></script>`)
		}
	}
	return tags
}

// shellStyleTags lists the stylesheet links injected at the styles marker:
// one per entry that produced a css chunk, in configuration order. In
// development, entry styles ship inside script chunks, so only style-kind
// entries contribute a link.
func (p *emitPlan) shellStyleTags() []string {
	var tags []string
	for i, root := range p.roots {
		if root.shell || root.kind == domain.UnitMarkup {
			continue
		}
		if file, ok := p.cssFiles[i]; ok {
			tags = append(tags, `<link rel="stylesheet" href="/`+file+`">`)
		}
	}
	return tags
}

// moduleInfos builds the per-unit metadata for every emitted unit. The shell
// is excluded: manifests compare shell bytes directly.
func (p *emitPlan) moduleInfos() map[domain.InternedString]domain.ModuleInfo {
	infos := make(map[domain.InternedString]domain.ModuleInfo, len(p.order))
	for _, id := range p.order {
		if p.shellRoot >= 0 && p.roots[p.shellRoot].id == id {
			continue
		}
		res := p.results[id]
		if res == nil {
			continue
		}
		infos[id] = domain.ModuleInfo{
			Chunk:   p.chunkOf[id],
			Hash:    contentHash(res.Code),
			Exports: res.Exports,
			EdgeSum: domain.FingerprintEdges(p.graph.Edges(id)),
			Code:    p.liveCode[id],
		}
	}
	return infos
}

// resultOf fetches the transform result for a unit the graph says exists.
func (p *emitPlan) resultOf(id domain.InternedString) (*domain.TransformResult, error) {
	if res, ok := p.results[id]; ok && res != nil {
		return res, nil
	}
	err := zerr.With(domain.ErrBuildFailed, "unit", id.String())
	return nil, zerr.With(err, "reason", "no transform result for emitted unit")
}

func contentHash(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}
