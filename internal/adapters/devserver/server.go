// Package devserver serves committed build output over HTTP and pushes
// build outcomes to connected clients over a websocket channel.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.trai.ch/zerr"

	"go.trai.ch/bale/internal/core/domain"
	"go.trai.ch/bale/internal/core/ports"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// upgrader accepts any origin: the dev server is a local tool and the shell
// may be opened from another local port or from disk.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Server holds the last committed manifest and the set of connected client
// sessions. Assets are served straight from the manifest in memory; no disk
// round-trip happens on a request.
type Server struct {
	addr    string
	hub     *Hub
	metrics *Metrics
	logger  ports.Logger

	mu        sync.RWMutex
	manifest  *domain.AssetManifest
	revision  domain.Revision
	lastDiags []domain.Diagnostic
}

// NewServer creates a dev server bound to the configured host and port.
func NewServer(cfg domain.ServerConfig, logger ports.Logger, metrics *Metrics) *Server {
	return &Server{
		addr:    net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		hub:     NewHub(metrics),
		metrics: metrics,
		logger:  logger,
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Handler builds the HTTP surface. Exposed separately from Run so tests can
// drive it through httptest.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleShell)
	r.Get(domain.ClientScriptPath, s.handleClientScript)
	r.Get(eventsPath, s.handleEvents)
	r.Handle("/metrics", s.metrics.Handler())
	r.Get("/*", s.handleAsset)

	return r
}

// Run serves HTTP and consumes build events until the context is canceled.
// Each committed revision is diffed against the previous one to decide what
// connected clients receive.
func (s *Server) Run(ctx context.Context, events <-chan domain.BuildEvent) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	listenErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- zerr.With(zerr.Wrap(err, domain.ErrServerStartFailed.Error()), "addr", s.addr)
			return
		}
		listenErr <- nil
	}()

	s.logger.Info("dev server listening on http://" + s.addr)

	for {
		select {
		case <-ctx.Done():
			s.hub.shutdown()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			err := srv.Shutdown(shutdownCtx)
			cancel()
			if err != nil {
				return zerr.Wrap(err, domain.ErrServerStartFailed.Error())
			}
			return <-listenErr

		case err := <-listenErr:
			// The listener failed before the context was canceled.
			s.hub.shutdown()
			return err

		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.Apply(event)
		}
	}
}

// Apply folds one build event into the served state and notifies clients.
func (s *Server) Apply(event domain.BuildEvent) {
	switch event.Type {
	case domain.BuildStarted:
		// Nothing to publish; clients keep the current state.

	case domain.BuildSucceeded:
		s.mu.Lock()
		if event.Revision < s.revision {
			current := s.revision
			s.mu.Unlock()
			s.logger.Warn(fmt.Sprintf("%s: revision %d superseded by %d",
				domain.ErrStaleRevision.Error(), event.Revision, current))
			return
		}
		old := s.manifest
		s.manifest = event.Manifest
		s.revision = event.Revision
		s.lastDiags = nil
		s.mu.Unlock()

		s.metrics.ObserveBuild("success", event.Duration)
		s.publish(old, event.Manifest, event.Revision)

	case domain.BuildFailed:
		s.mu.Lock()
		s.revision = event.Revision
		s.lastDiags = event.Diagnostics
		s.mu.Unlock()

		s.metrics.ObserveBuild("failure", event.Duration)
		s.hub.broadcast(errorFrame(event.Revision, event.Diagnostics))
	}
}

// publish diffs two committed manifests and broadcasts the narrowest
// instruction that brings clients up to date.
func (s *Server) publish(old, next *domain.AssetManifest, revision domain.Revision) {
	updates, swaps, reload := domain.DiffManifests(old, next)
	if reload {
		s.hub.broadcast(reloadFrame(revision))
		return
	}

	for _, update := range updates {
		s.hub.broadcast(updateFrame(revision, update))
	}
	if len(swaps) > 0 {
		s.hub.broadcast(swapFrame(revision, swaps))
	}
}

// snapshot returns the current served state under the read lock.
func (s *Server) snapshot() (*domain.AssetManifest, domain.Revision, []domain.Diagnostic) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manifest, s.revision, s.lastDiags
}

func (s *Server) handleShell(w http.ResponseWriter, _ *http.Request) {
	manifest, _, _ := s.snapshot()
	if manifest == nil || len(manifest.Shell) == 0 {
		s.metrics.IncAssetRequest("miss")
		http.Error(w, domain.ErrNoManifest.Error(), http.StatusServiceUnavailable)
		return
	}

	s.metrics.IncAssetRequest("shell")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(manifest.Shell)
}

func (s *Server) handleClientScript(w http.ResponseWriter, _ *http.Request) {
	s.metrics.IncAssetRequest("client")
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(clientScript))
}

// handleAsset serves an emitted chunk (or the shell under its emitted name)
// from the in-memory manifest.
func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	manifest, _, _ := s.snapshot()
	if manifest == nil {
		s.metrics.IncAssetRequest("miss")
		http.Error(w, domain.ErrNoManifest.Error(), http.StatusServiceUnavailable)
		return
	}

	if name == manifest.ShellName {
		s.handleShell(w, r)
		return
	}

	for i := range manifest.Chunks {
		chunk := &manifest.Chunks[i]
		if chunk.FileName() != name {
			continue
		}

		s.metrics.IncAssetRequest("chunk")
		w.Header().Set("Content-Type", contentType(chunk.Ext))
		// The hash is part of the name, so the content behind a name can
		// never change.
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		_, _ = w.Write(chunk.Data)
		return
	}

	s.metrics.IncAssetRequest("miss")
	http.NotFound(w, r)
}

// handleEvents upgrades the connection and runs the session until the
// client disconnects. The latest manifest state always goes out first, so a
// client never observes a state older than its connection.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		s.logger.Error(err)
		return
	}

	sess := newSession(conn)
	if !s.hub.add(sess) {
		_ = conn.Close()
		return
	}

	manifest, revision, diags := s.snapshot()
	sess.enqueue(syncFrame(revision, manifest))
	if len(diags) > 0 {
		sess.enqueue(errorFrame(revision, diags))
	}

	go sess.writePump()
	go sess.readPump(func() {
		s.hub.remove(sess.id)
	})
}

// contentType maps an output extension (without the dot) to its MIME type.
// The mapping is explicit rather than going through the platform mime
// database so response headers do not vary across machines.
func contentType(ext string) string {
	switch ext {
	case "js", "mjs":
		return "application/javascript; charset=utf-8"
	case "css":
		return "text/css; charset=utf-8"
	case "html":
		return "text/html; charset=utf-8"
	case "json", "map":
		return "application/json; charset=utf-8"
	case "svg":
		return "image/svg+xml"
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	case "woff2":
		return "font/woff2"
	default:
		return "application/octet-stream"
	}
}
