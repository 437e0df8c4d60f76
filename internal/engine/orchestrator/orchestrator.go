// Package orchestrator drives build passes over the module graph: it crawls
// from the configured entry points, transforms discovered units in parallel
// workers, commits results through a single loop, and hands the committed
// graph to the emitter. It also folds watcher events into incremental
// passes that re-process only the invalidated subgraph.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"go.trai.ch/zerr"

	"go.trai.ch/bale/internal/core/domain"
	"go.trai.ch/bale/internal/core/ports"
	"go.trai.ch/bale/internal/engine/emitter"
)

// TransformDispatch selects the transformer for a unit kind.
type TransformDispatch interface {
	Lookup(kind domain.UnitKind) (ports.Transformer, error)
}

// Options tune a build orchestrator.
type Options struct {
	// Parallelism bounds concurrent unit transforms. Zero or negative
	// selects runtime.NumCPU().
	Parallelism int
	// NoCache bypasses transform cache reads. Fresh results are still
	// stored so later passes can reuse them.
	NoCache bool
	// Events receives build lifecycle notifications when non-nil. Sends
	// block, so the consumer must keep draining.
	Events chan<- domain.BuildEvent
}

// Orchestrator owns the module graph and the committed transform results for
// the lifetime of the process. It is not safe for concurrent use: Build and
// Rebuild mutate the graph and must be called sequentially from one
// goroutine, which is what the graph's single-writer rule assumes.
type Orchestrator struct {
	reader     ports.SourceReader
	resolver   ports.Resolver
	transforms TransformDispatch
	cache      ports.TransformCache
	tracer     ports.Tracer
	logger     ports.Logger
	cfg        *domain.Config
	emitter    *emitter.Emitter
	opts       Options

	graph    *domain.ModuleGraph
	results  emitter.Results
	revision domain.Revision
	manifest *domain.AssetManifest

	// unitDiags keeps the diagnostics of each unit's most recent pass, so a
	// revision that does not touch a broken unit still fails on it.
	unitDiags map[domain.InternedString][]domain.Diagnostic
	lastDiags []domain.Diagnostic
}

// New creates an Orchestrator with the given dependencies.
func New(
	reader ports.SourceReader,
	resolver ports.Resolver,
	transforms TransformDispatch,
	cache ports.TransformCache,
	tracer ports.Tracer,
	logger ports.Logger,
	cfg *domain.Config,
	opts Options,
) *Orchestrator {
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.NumCPU()
	}
	return &Orchestrator{
		reader:     reader,
		resolver:   resolver,
		transforms: transforms,
		cache:      cache,
		tracer:     tracer,
		logger:     logger,
		cfg:        cfg,
		emitter:    emitter.New(),
		opts:       opts,
		graph:      domain.NewModuleGraph(),
		results:    make(emitter.Results),
		unitDiags:  make(map[domain.InternedString][]domain.Diagnostic),
	}
}

// Build runs a full pass: every entry point and the shell are snapshotted,
// the graph is crawled to its leaves, and the result is emitted as one
// revision. Committed results survive across calls, so a repeated Build
// re-reads every file but replays unchanged transforms from the cache.
func (o *Orchestrator) Build(ctx context.Context) (*domain.AssetManifest, error) {
	return o.run(ctx, o.seedIDs(), true)
}

// Rebuild folds a batch of watcher events into the graph and runs an
// incremental pass over the invalidated units. A batch that touches nothing
// the graph knows about returns the last committed manifest unchanged.
func (o *Orchestrator) Rebuild(ctx context.Context, events []ports.WatchEvent) (*domain.AssetManifest, error) {
	dirty := o.applyEvents(events)
	if len(dirty) == 0 {
		return o.manifest, nil
	}
	return o.run(ctx, dirty, false)
}

// Diagnostics returns the diagnostics retained by the most recent pass,
// including the fatal ones of a failed pass. The slice is valid until the
// next Build or Rebuild call.
func (o *Orchestrator) Diagnostics() []domain.Diagnostic {
	return o.lastDiags
}

func (o *Orchestrator) run(ctx context.Context, seeds []domain.InternedString, full bool) (*domain.AssetManifest, error) {
	if len(o.cfg.Entries) == 0 {
		return nil, domain.ErrNoEntriesSpecified
	}

	o.revision++
	start := time.Now()
	o.notify(domain.BuildEvent{Type: domain.BuildStarted, Revision: o.revision})

	ctx, span := o.tracer.Start(ctx, fmt.Sprintf("revision %d", o.revision))
	defer span.End()

	state := o.newRunState(ctx, seeds, full)
	o.tracer.EmitPlan(ctx, state.planned(), o.dependencyMap(state.queue), o.cfg.Entries)

	errs := state.runPipelineLoop()
	if ctx.Err() != nil {
		// The pass was cancelled; partial commits stay in the graph and the
		// next pass picks them up.
		return nil, errs
	}

	diags := o.retainedDiagnostics()
	if errs != nil || domain.HasErrors(diags) {
		return nil, o.fail(span, start, diags, errs)
	}

	if err := o.graph.Validate(); err != nil {
		return nil, o.fail(span, start, append(diags, buildDiagnostic(err)), err)
	}

	manifest, err := o.emit(ctx, diags)
	if err != nil {
		return nil, o.fail(span, start, append(diags, buildDiagnostic(err)), err)
	}

	o.manifest = manifest
	o.lastDiags = manifest.Diagnostics
	took := time.Since(start)
	o.logger.Info(fmt.Sprintf("revision %d: %d unit(s), %d from cache, %d chunk(s) in %s",
		o.revision, state.processed, state.cached, len(manifest.Chunks), took.Round(time.Millisecond)))
	o.notify(domain.BuildEvent{
		Type:     domain.BuildSucceeded,
		Revision: o.revision,
		Manifest: manifest,
		Duration: took,
	})
	return manifest, nil
}

// fail finalizes a pass that cannot commit: the previous manifest keeps
// serving and the failure is published with its diagnostics.
func (o *Orchestrator) fail(span ports.Span, start time.Time, diags []domain.Diagnostic, errs error) error {
	err := errors.Join(zerr.With(domain.ErrBuildFailed, "revision", o.revision), errs)
	span.RecordError(err)
	o.lastDiags = diags
	o.notify(domain.BuildEvent{
		Type:        domain.BuildFailed,
		Revision:    o.revision,
		Diagnostics: diags,
		Duration:    time.Since(start),
	})
	return err
}

func (o *Orchestrator) emit(ctx context.Context, diags []domain.Diagnostic) (*domain.AssetManifest, error) {
	_, span := o.tracer.Start(ctx, "emit")
	defer span.End()

	manifest, err := o.emitter.Emit(o.graph, o.results, o.cfg, o.revision, diags)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return manifest, nil
}

func (o *Orchestrator) notify(event domain.BuildEvent) {
	if o.opts.Events == nil {
		return
	}
	o.opts.Events <- event
}

// seedIDs lists the configured entry points plus the shell.
func (o *Orchestrator) seedIDs() []domain.InternedString {
	ids := make([]domain.InternedString, 0, len(o.cfg.Entries)+1)
	for _, entry := range o.cfg.Entries {
		ids = append(ids, domain.NewInternedString(entry))
	}
	if o.cfg.Shell != "" {
		ids = append(ids, domain.NewInternedString(o.cfg.Shell))
	}
	return ids
}

// applyEvents folds one watcher batch into the graph and returns the units
// to re-process, in deterministic first-dirtied order. Removed paths leave
// the graph here; creating a file re-checks every unresolved import because
// extension and index resolution mean the new path rarely matches the
// recorded target ID exactly.
func (o *Orchestrator) applyEvents(events []ports.WatchEvent) []domain.InternedString {
	seen := make(map[domain.InternedString]struct{})
	var dirty []domain.InternedString
	add := func(id domain.InternedString) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		dirty = append(dirty, id)
	}

	created := false
	for _, event := range events {
		id, ok := o.unitID(event.Path)
		if !ok {
			continue
		}
		switch event.Operation {
		case ports.OpRemove, ports.OpRename:
			for _, gone := range o.removedUnits(id) {
				o.graph.Remove(gone)
				delete(o.results, gone)
				delete(o.unitDiags, gone)
				for d := range o.graph.Invalidate(gone) {
					add(d)
				}
			}
		case ports.OpCreate:
			created = true
			for d := range o.graph.Invalidate(id) {
				add(d)
			}
		case ports.OpWrite:
			for d := range o.graph.Invalidate(id) {
				add(d)
			}
		}
	}

	if created {
		for _, target := range o.graph.UnresolvedTargets() {
			for _, from := range o.graph.Importers(target) {
				add(from)
			}
		}
	}

	// Seeds that never made it into the graph are retried; their absence is
	// what broke the last pass.
	for _, id := range o.seedIDs() {
		if !o.graph.Contains(id) {
			add(id)
		}
	}

	// Paths that no longer exist cannot be scheduled; their graph entries
	// leave when their own events arrive.
	kept := dirty[:0]
	for _, id := range dirty {
		if o.reader.Exists(id.String()) {
			kept = append(kept, id)
		}
	}
	return kept
}

// removedUnits maps a removed path to graph units: the path itself when it
// is a unit, otherwise everything underneath it, covering directory removal
// events that arrive without per-file events.
func (o *Orchestrator) removedUnits(id domain.InternedString) []domain.InternedString {
	if o.graph.Contains(id) {
		return []domain.InternedString{id}
	}
	prefix := id.String() + "/"
	var out []domain.InternedString
	for unit := range o.graph.Units() {
		if strings.HasPrefix(unit.ID.String(), prefix) {
			out = append(out, unit.ID)
		}
	}
	return out
}

// unitID maps an absolute watcher path to a root-relative unit ID.
func (o *Orchestrator) unitID(absPath string) (domain.InternedString, bool) {
	rel, err := filepath.Rel(o.cfg.Root, absPath)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return domain.InternedString{}, false
	}
	return domain.NewInternedString(filepath.ToSlash(rel)), true
}

// retainedDiagnostics assembles the diagnostics that decide this revision:
// every unit reachable from the seeds, the seeds themselves when they never
// made it into the graph, and dangling targets that something reachable
// still imports. A broken unit that became unreachable stops failing the
// build; its diagnostics are kept aside and return with it.
func (o *Orchestrator) retainedDiagnostics() []domain.Diagnostic {
	reachable := make(map[domain.InternedString]struct{}, o.graph.Len())
	var out []domain.Diagnostic
	collect := func(id domain.InternedString) {
		if _, ok := reachable[id]; ok {
			return
		}
		reachable[id] = struct{}{}
		out = append(out, o.unitDiags[id]...)
	}

	for _, seed := range o.seedIDs() {
		collect(seed)
		for id := range o.graph.ReachableFrom(seed) {
			collect(id)
		}
	}

	for _, target := range o.graph.UnresolvedTargets() {
		for _, from := range o.graph.Importers(target) {
			if _, ok := reachable[from]; ok {
				collect(target)
				break
			}
		}
	}

	o.pruneDiagnostics()
	return out
}

// pruneDiagnostics drops retained diagnostics for units that exist nowhere
// anymore: not in the graph, not a seed, not a dangling target.
func (o *Orchestrator) pruneDiagnostics() {
	if len(o.unitDiags) == 0 {
		return
	}
	keep := make(map[domain.InternedString]struct{}, o.graph.Len())
	for unit := range o.graph.Units() {
		keep[unit.ID] = struct{}{}
	}
	for _, id := range o.seedIDs() {
		keep[id] = struct{}{}
	}
	for _, id := range o.graph.UnresolvedTargets() {
		keep[id] = struct{}{}
	}
	for id := range o.unitDiags {
		if _, ok := keep[id]; !ok {
			delete(o.unitDiags, id)
		}
	}
}

// dependencyMap collects the known direct dependencies of the planned units
// from the current graph. Units seen for the first time this pass have no
// recorded edges yet and map to an empty list.
func (o *Orchestrator) dependencyMap(ids []domain.InternedString) map[string][]string {
	deps := make(map[string][]string, len(ids))
	for _, id := range ids {
		edges := o.graph.Edges(id)
		out := make([]string, 0, len(edges))
		for _, e := range edges {
			out = append(out, e.To.String())
		}
		deps[id.String()] = out
	}
	return deps
}

// buildDiagnostic converts a build-level error into a diagnostic, folding
// zerr metadata into the message so cycle paths and shell names survive
// into the overlay.
func buildDiagnostic(err error) domain.Diagnostic {
	msg := err.Error()
	var zerrErr *zerr.Error
	if errors.As(err, &zerrErr) {
		meta := zerrErr.Metadata()
		for _, key := range slices.Sorted(maps.Keys(meta)) {
			msg += fmt.Sprintf(" [%s=%v]", key, meta[key])
		}
	}
	return domain.Diagnostic{Severity: domain.SeverityError, Message: msg}
}
