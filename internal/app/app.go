// Package app implements the application layer for bale.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"

	"go.trai.ch/bale/internal/adapters/cas"
	"go.trai.ch/bale/internal/adapters/detector"
	"go.trai.ch/bale/internal/adapters/devserver"
	"go.trai.ch/bale/internal/adapters/fs"
	"go.trai.ch/bale/internal/adapters/linear"
	"go.trai.ch/bale/internal/adapters/telemetry"
	"go.trai.ch/bale/internal/adapters/transform"
	"go.trai.ch/bale/internal/adapters/tui"
	"go.trai.ch/bale/internal/adapters/watcher"
	"go.trai.ch/bale/internal/core/domain"
	"go.trai.ch/bale/internal/core/ports"
	"go.trai.ch/bale/internal/engine/emitter"
	"go.trai.ch/bale/internal/engine/orchestrator"
)

// eventChannelBuffer sizes the build event channel between the orchestrator
// and the dev server.
const eventChannelBuffer = 16

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	logger       ports.Logger
	walker       ports.Walker
	sink         ports.OutputSink
	registry     *transform.Registry
	metrics      *devserver.Metrics
	teaOptions   []tea.ProgramOption
	disableTick  bool
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	log ports.Logger,
	walker ports.Walker,
	sink ports.OutputSink,
	registry *transform.Registry,
	metrics *devserver.Metrics,
) *App {
	return &App{
		configLoader: loader,
		logger:       log,
		walker:       walker,
		sink:         sink,
		registry:     registry,
		metrics:      metrics,
	}
}

// WithTeaOptions adds bubbletea program options to the App.
// This is primarily used for testing to disable input/output.
func (a *App) WithTeaOptions(opts ...tea.ProgramOption) *App {
	a.teaOptions = append(a.teaOptions, opts...)
	return a
}

// WithDisableTick disables the TUI tick loop.
// This is primarily used for testing to keep rendering deterministic.
func (a *App) WithDisableTick() *App {
	a.disableTick = true
	return a
}

// RunOptions configuration for the Build and Serve methods.
type RunOptions struct {
	NoCache    bool
	OutputMode string
	// Mode overrides the build profile. Empty keeps the profile from
	// bale.yaml, falling back to the command's default.
	Mode string
	// ConfigDir is the directory config discovery starts from. Empty means
	// the working directory.
	ConfigDir string
	// Port overrides the configured dev server port when non-zero.
	Port int
}

// Build runs one full build and writes the emitted chunks to the output
// directory. The command defaults to production mode.
func (a *App) Build(ctx context.Context, opts RunOptions) error {
	cfg, err := a.loadConfig(opts, domain.ModeProduction)
	if err != nil {
		return err
	}

	renderer := a.newRenderer(ctx, opts.OutputMode)
	tracer := a.newTracer(renderer)
	defer func() {
		_ = tracer.Shutdown(ctx)
	}()

	comps, err := a.assemble(cfg, tracer, nil, opts.NoCache)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	// Renderer Routine
	g.Go(func() error {
		if err := renderer.Start(ctx); err != nil {
			return err
		}
		// Wait blocks until the renderer has terminated.
		return renderer.Wait()
	})

	// Build Routine
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("build panic: %v", r)
			}
			// Ensure the renderer stops when the build finishes.
			_ = renderer.Stop()
		}()

		manifest, err := comps.orch.Build(ctx)
		if err != nil {
			a.reportDiagnostics(comps.orch.Diagnostics())
			return err
		}
		a.reportDiagnostics(manifest.Diagnostics)

		if err := comps.writer.Write(manifest, filepath.Join(cfg.Root, cfg.OutDir)); err != nil {
			return err
		}
		a.logCacheStats(comps.store)
		return nil
	})

	return g.Wait()
}

// Serve builds continuously: it watches the project tree, rebuilds the
// invalidated subgraph on every change batch, and feeds committed revisions
// to the dev server. The command defaults to development mode.
func (a *App) Serve(ctx context.Context, opts RunOptions) error {
	cfg, err := a.loadConfig(opts, domain.ModeDevelopment)
	if err != nil {
		return err
	}
	if opts.Port != 0 {
		cfg.Server.Port = opts.Port
	}

	renderer := a.newRenderer(ctx, opts.OutputMode)
	tracer := a.newTracer(renderer)
	defer func() {
		_ = tracer.Shutdown(ctx)
	}()

	events := make(chan domain.BuildEvent, eventChannelBuffer)
	comps, err := a.assemble(cfg, tracer, events, opts.NoCache)
	if err != nil {
		return err
	}

	fileWatcher, err := watcher.NewWatcher(a.walker, cfg.Watch.Debounce, cfg.OutDir)
	if err != nil {
		return err
	}

	server := devserver.NewServer(cfg.Server, a.logger, a.metrics)

	g, ctx := errgroup.WithContext(ctx)

	// Renderer Routine
	g.Go(func() error {
		if err := renderer.Start(ctx); err != nil {
			return err
		}
		return renderer.Wait()
	})

	// Dev Server Routine
	g.Go(func() error {
		return server.Run(ctx, events)
	})

	// Build Loop Routine
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("build panic: %v", r)
			}
			// No more events once the loop is gone; the server drains the
			// remainder and falls back to its context.
			close(events)
			_ = renderer.Stop()
		}()

		if err := fileWatcher.Start(ctx, cfg.Root); err != nil {
			return err
		}
		defer func() {
			_ = fileWatcher.Stop()
		}()

		// A failing first pass is not fatal here: the dev server overlays
		// the diagnostics and a later change batch can repair the build.
		if manifest, err := comps.orch.Build(ctx); err != nil {
			a.reportDiagnostics(comps.orch.Diagnostics())
		} else {
			a.reportDiagnostics(manifest.Diagnostics)
		}

		for batch := range fileWatcher.Events() {
			if _, err := comps.orch.Rebuild(ctx, batch); err != nil {
				a.reportDiagnostics(comps.orch.Diagnostics())
			}
		}

		a.logCacheStats(comps.store)
		return nil
	})

	// Interrupt is the normal way to leave serve.
	err = g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// CleanOptions configuration for the Clean method.
type CleanOptions struct {
	Store  bool
	Output bool
	// ConfigDir is the directory config discovery starts from.
	ConfigDir string
}

// Clean removes cache and build artifacts based on the provided options.
func (a *App) Clean(_ context.Context, options CleanOptions) error {
	dir := options.ConfigDir
	if dir == "" {
		dir = "."
	}
	cfg, err := a.configLoader.Load(dir)
	if err != nil {
		return zerr.Wrap(err, "failed to load configuration")
	}

	var errs error

	// Helper to remove a directory and log the action
	remove := func(path string, name string) {
		a.logger.Info(fmt.Sprintf("removing %s...", name))
		if err := os.RemoveAll(path); err != nil {
			errs = errors.Join(errs, zerr.Wrap(err, fmt.Sprintf("failed to remove %s", name)))
			return
		}
		a.logger.Info(fmt.Sprintf("removed %s", name))
	}

	if options.Store {
		remove(filepath.Join(cfg.Root, domain.DefaultBalePath()), "transform cache")
	}

	if options.Output {
		remove(filepath.Join(cfg.Root, cfg.OutDir), "output directory")
	}

	return errs
}

// components are the per-run pieces assembled from the loaded configuration.
type components struct {
	orch   *orchestrator.Orchestrator
	store  *cas.Store
	writer *emitter.Writer
}

// assemble constructs the build pipeline for one configuration. The reader,
// resolver and cache store are rooted in the project directory, so they
// cannot exist before the configuration is loaded.
func (a *App) assemble(
	cfg *domain.Config,
	tracer ports.Tracer,
	events chan<- domain.BuildEvent,
	noCache bool,
) (*components, error) {
	store, err := cas.NewStore(
		filepath.Join(cfg.Root, domain.DefaultStorePath()),
		cfg.Cache.MaxEntries,
		cfg.Cache.MaxBytes,
	)
	if err != nil {
		return nil, err
	}

	orch := orchestrator.New(
		fs.NewReader(cfg.Root),
		fs.NewResolver(cfg.Root, cfg.Resolve),
		a.registry,
		store,
		tracer,
		a.logger,
		cfg,
		orchestrator.Options{NoCache: noCache, Events: events},
	)

	return &components{
		orch:   orch,
		store:  store,
		writer: emitter.NewWriter(a.sink, a.logger),
	}, nil
}

// loadConfig loads bale.yaml and pins the effective mode. Precedence:
// the --mode flag, then the mode from the file, then the command default.
func (a *App) loadConfig(opts RunOptions, commandDefault domain.Mode) (*domain.Config, error) {
	dir := opts.ConfigDir
	if dir == "" {
		dir = "."
	}

	cfg, err := a.configLoader.Load(dir)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}

	mode := cfg.Mode
	if opts.Mode != "" {
		mode, err = domain.ParseMode(opts.Mode)
		if err != nil {
			return nil, zerr.With(err, "mode", opts.Mode)
		}
	}
	if mode == "" {
		mode = commandDefault
	}

	if err := a.configLoader.Finalize(cfg, mode); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newRenderer picks the progress renderer: the dashboard on interactive
// terminals, plain lines for CI and piped output.
func (a *App) newRenderer(ctx context.Context, outputMode string) ports.Renderer {
	autoMode := detector.DetectEnvironment()
	mode := detector.ResolveMode(autoMode, outputMode)

	if mode == detector.ModeTUI {
		model := tui.NewModel(os.Stderr)
		if a.disableTick {
			model = model.WithDisableTick()
		}
		optsTea := append([]tea.ProgramOption{tea.WithContext(ctx)}, a.teaOptions...)
		return tui.NewRenderer(&model, optsTea...)
	}
	return linear.NewRenderer(os.Stdout, os.Stderr)
}

// newTracer wires the OTel SDK to the renderer bridge and returns the tracer
// the build pipeline reports spans through.
func (a *App) newTracer(renderer ports.Renderer) *telemetry.OTelTracer {
	bridge := telemetry.NewBridge(renderer)

	// Configure the global OTel SDK to use our bridge for spans, so spans
	// started through otel.Tracer() reach the renderer.
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(bridge),
	)
	otel.SetTracerProvider(tp)

	return telemetry.NewOTelTracer("bale").WithRenderer(renderer)
}

// reportDiagnostics prints build diagnostics through the logger, fatal ones
// as errors. Retention order keeps one unit's diagnostics contiguous.
func (a *App) reportDiagnostics(diags []domain.Diagnostic) {
	for _, d := range diags {
		if d.Severity == domain.SeverityError {
			a.logger.Error(errors.New(d.String()))
			continue
		}
		a.logger.Warn(d.String())
	}
}

// logCacheStats summarizes transform cache effectiveness for the run.
func (a *App) logCacheStats(store *cas.Store) {
	stats := store.Stats()
	a.logger.Info(fmt.Sprintf("transform cache: %d hits, %d misses, %d entries",
		stats.Hits, stats.Misses, stats.Entries))
}
