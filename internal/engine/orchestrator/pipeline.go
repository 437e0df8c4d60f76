package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"

	"go.trai.ch/zerr"

	"go.trai.ch/bale/internal/core/domain"
	"go.trai.ch/bale/internal/core/ports"
)

// unitResult carries one worker's output back to the commit loop.
type unitResult struct {
	id     domain.InternedString
	unit   domain.SourceUnit
	res    *domain.TransformResult
	key    ports.CacheKey
	edges  []domain.Edge
	diags  []domain.Diagnostic
	cached bool
	err    error

	// discovered lists the edge targets that resolved to existing files,
	// in declaration order. Dangling targets are edges only.
	discovered []domain.InternedString
}

// runState is the per-pass scheduling state. A new pass gets a fresh state
// and a fresh results channel, so results of an abandoned pass can never
// leak into a later one.
type runState struct {
	o           *Orchestrator
	ctx         context.Context
	queue       []domain.InternedString
	pending     map[domain.InternedString]struct{}
	active      int
	resultsCh   chan unitResult
	errs        error
	parallelism int
	full        bool
	processed   int
	cached      int
}

func (o *Orchestrator) newRunState(ctx context.Context, seeds []domain.InternedString, full bool) *runState {
	state := &runState{
		o:           o,
		ctx:         ctx,
		pending:     make(map[domain.InternedString]struct{}, len(seeds)),
		resultsCh:   make(chan unitResult, o.opts.Parallelism),
		parallelism: o.opts.Parallelism,
		full:        full,
	}
	for _, id := range seeds {
		state.enqueue(id)
	}
	return state
}

func (state *runState) enqueue(id domain.InternedString) {
	if _, ok := state.pending[id]; ok {
		return
	}
	state.pending[id] = struct{}{}
	state.queue = append(state.queue, id)
}

// planned returns the initial work set as strings, for the plan emission.
func (state *runState) planned() []string {
	ids := make([]string, len(state.queue))
	for i, id := range state.queue {
		ids[i] = id.String()
	}
	return ids
}

func (state *runState) runPipelineLoop() error {
	for !state.isDone() {
		state.schedule()

		if state.isDone() {
			break
		}

		if state.ctx.Err() != nil && state.active == 0 {
			return errors.Join(state.errs, state.ctx.Err())
		}

		select {
		case res := <-state.resultsCh:
			state.handleResult(res)
		case <-state.ctx.Done():
		}
	}

	if state.ctx.Err() != nil {
		state.errs = errors.Join(state.errs, state.ctx.Err())
	}

	return state.errs
}

func (state *runState) isDone() bool {
	return state.active == 0 && len(state.queue) == 0
}

func (state *runState) schedule() {
	for len(state.queue) > 0 && state.active < state.parallelism && state.ctx.Err() == nil {
		id := state.queue[0]
		state.queue = state.queue[1:]

		state.active++
		go state.processUnit(id)
	}
}

func (state *runState) processUnit(id domain.InternedString) {
	// Build the result in a closure so the span is ended BEFORE the result
	// is sent; the loop may finish and return right after receiving it.
	res := func() unitResult {
		ctx, span := state.o.tracer.Start(state.ctx, id.String())
		defer span.End()

		unit, err := state.o.reader.Snapshot(id.String())
		if err != nil {
			err = state.o.classifySnapshotError(id, err)
			span.RecordError(err)
			return unitResult{id: id, err: err}
		}

		result, key, cached, err := state.transform(ctx, unit)
		if err != nil {
			err = zerr.With(err, "unit", id.String())
			span.RecordError(err)
			return unitResult{id: id, err: err}
		}
		if cached {
			span.SetAttribute(ports.AttrUnitCached, true)
		}

		edges, discovered, diags := state.resolveImports(unit, result)
		return unitResult{
			id:         id,
			unit:       unit,
			res:        result,
			key:        key,
			edges:      edges,
			diags:      diags,
			cached:     cached,
			discovered: discovered,
		}
	}()

	state.resultsCh <- res
}

// transform replays the unit from the cache when possible and runs the
// registered transformer otherwise.
func (state *runState) transform(ctx context.Context, unit domain.SourceUnit) (*domain.TransformResult, ports.CacheKey, bool, error) {
	opts := state.o.cfg.TransformOptions(unit.Kind)
	key := ports.CacheKey{Unit: unit.ID, ContentHash: unit.Hash, OptionsHash: opts.Fingerprint()}

	if !state.o.opts.NoCache {
		if cached, ok := state.o.cache.Get(key); ok {
			return cached, key, true, nil
		}
	}

	transformer, err := state.o.transforms.Lookup(unit.Kind)
	if err != nil {
		return nil, key, false, err
	}
	result, err := transformer.Transform(ctx, unit, opts)
	if err != nil {
		return nil, key, false, err
	}
	return result, key, false, nil
}

// resolveImports maps the unit's discovered import references to graph
// edges. External references raise a warning and produce no edge. A local
// specifier with no matching file keeps its edge pointing at the ID it
// would occupy, so the importer is dirtied when the file shows up; static
// misses are fatal, dynamic ones degrade to a warning because the failure
// moves to load time.
func (state *runState) resolveImports(unit domain.SourceUnit, result *domain.TransformResult) ([]domain.Edge, []domain.InternedString, []domain.Diagnostic) {
	var edges []domain.Edge
	var discovered []domain.InternedString
	var diags []domain.Diagnostic

	fromDir := path.Dir(unit.ID.String())
	for _, ref := range result.Imports {
		id, external, err := state.o.resolver.Resolve(ref.Specifier, fromDir)
		if external {
			diags = append(diags, domain.Diagnostic{
				Severity: domain.SeverityWarning,
				Unit:     unit.ID,
				Message:  fmt.Sprintf("external import %q is not bundled", ref.Specifier),
			})
			continue
		}
		if err != nil {
			severity := domain.SeverityError
			if ref.Kind == domain.ImportDynamic {
				severity = domain.SeverityWarning
			}
			diags = append(diags, domain.Diagnostic{
				Severity: severity,
				Unit:     unit.ID,
				Message:  fmt.Sprintf("cannot resolve %q", ref.Specifier),
			})
			if id == "" {
				// The specifier escapes the project root; there is no ID
				// a file could ever appear under.
				continue
			}
		}

		target := domain.NewInternedString(id)
		edges = append(edges, domain.Edge{
			From:      unit.ID,
			To:        target,
			Kind:      ref.Kind,
			Specifier: ref.Specifier,
			Bindings:  ref.Bindings,
		})
		if err == nil {
			discovered = append(discovered, target)
		}
	}
	return edges, discovered, diags
}

func (state *runState) handleResult(res unitResult) {
	state.active--
	state.processed++

	if res.err != nil {
		state.errs = errors.Join(state.errs, res.err)
		state.o.unitDiags[res.id] = []domain.Diagnostic{{
			Severity: domain.SeverityError,
			Unit:     res.id,
			Message:  res.err.Error(),
		}}
		return
	}

	state.commit(res)
}

// commit folds one successful result into the orchestrator state. It runs
// on the loop goroutine only, which keeps the graph single-writer.
func (state *runState) commit(res unitResult) {
	if res.cached {
		state.cached++
	} else if err := state.o.cache.Put(res.key, res.res); err != nil {
		// A failed cache write costs a future replay, never the build.
		state.o.logger.Warn(fmt.Sprintf("cache write failed for %s: %v", res.id, err))
	}

	state.o.graph.AddOrReplace(res.unit, res.edges)
	state.o.results[res.unit.ID] = res.res

	diags := slices.Clone(res.res.Diagnostics)
	diags = append(diags, res.diags...)
	if len(diags) > 0 {
		state.o.unitDiags[res.unit.ID] = diags
	} else {
		delete(state.o.unitDiags, res.unit.ID)
	}

	for _, target := range res.discovered {
		if state.full || !state.o.graph.Contains(target) {
			state.enqueue(target)
		}
	}
}

// classifySnapshotError upgrades a failed seed snapshot to its configured
// role so the failure reads as what it is: a missing entry point or shell.
func (o *Orchestrator) classifySnapshotError(id domain.InternedString, err error) error {
	s := id.String()
	if o.cfg.Shell != "" && s == o.cfg.Shell {
		return zerr.With(zerr.Wrap(err, domain.ErrShellNotFound.Error()), "shell", s)
	}
	if slices.Contains(o.cfg.Entries, s) {
		return zerr.With(zerr.Wrap(err, domain.ErrEntryNotFound.Error()), "entry", s)
	}
	return err
}
