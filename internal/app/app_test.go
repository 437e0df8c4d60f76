package app_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"go.trai.ch/bale/internal/adapters/fs"
	"go.trai.ch/bale/internal/adapters/transform"
	"go.trai.ch/bale/internal/app"
	"go.trai.ch/bale/internal/core/domain"
	"go.trai.ch/bale/internal/core/ports/mocks"
)

// fixture assembles an App around a mocked config loader and logger, with
// the real filesystem, transform and cache adapters underneath.
type fixture struct {
	t      *testing.T
	root   string
	cfg    *domain.Config
	loader *mocks.MockConfigLoader
	logger *mocks.MockLogger
	app    *app.App
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	root := t.TempDir()
	cfg := &domain.Config{
		Root:    root,
		Entries: []string{"src/main.js"},
		OutDir:  domain.DefaultOutDirName,
		Resolve: domain.ResolveRules{Extensions: []string{".js", ".css"}},
		Server:  domain.ServerConfig{Host: domain.DefaultHost, Port: domain.DefaultPort},
		Cache: domain.CacheConfig{
			MaxEntries: domain.DefaultCacheMaxEntries,
			MaxBytes:   domain.DefaultCacheMaxBytes,
		},
		Watch:           domain.WatchConfig{Debounce: 10 * time.Millisecond},
		SharedThreshold: domain.DefaultSharedThreshold,
	}

	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Info(gomock.Any()).AnyTimes()
	logger.EXPECT().Warn(gomock.Any()).AnyTimes()
	logger.EXPECT().Error(gomock.Any()).AnyTimes()

	loader := mocks.NewMockConfigLoader(ctrl)

	a := app.New(loader, logger, fs.NewWalker(), fs.NewSink(), transform.NewRegistry(), nil)

	return &fixture{t: t, root: root, cfg: cfg, loader: loader, logger: logger, app: a}
}

// expectLoad arms the loader for one Load + Finalize round and reports the
// mode Finalize was called with.
func (f *fixture) expectLoad(dir string) *domain.Mode {
	var got domain.Mode
	f.loader.EXPECT().Load(dir).Return(f.cfg, nil)
	f.loader.EXPECT().Finalize(f.cfg, gomock.Any()).DoAndReturn(
		func(cfg *domain.Config, mode domain.Mode) error {
			cfg.Mode = mode
			got = mode
			return nil
		})
	return &got
}

func (f *fixture) write(rel, content string) {
	f.t.Helper()
	path := filepath.Join(f.root, filepath.FromSlash(rel))
	require.NoError(f.t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(f.t, os.WriteFile(path, []byte(content), 0o644))
}

func TestApp_Build_WritesBundle(t *testing.T) {
	f := newFixture(t)
	f.write("src/main.js", "import { greet } from './util.js';\ngreet();\n")
	f.write("src/util.js", "export function greet() {\n  console.log('hi');\n}\n")
	mode := f.expectLoad(".")

	err := f.app.Build(context.Background(), app.RunOptions{OutputMode: "linear"})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeProduction, *mode)

	chunks, err := filepath.Glob(filepath.Join(f.root, "dist", "main.*.js"))
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	data, err := os.ReadFile(chunks[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `__bale_register("src/main.js"`)
}

func TestApp_Build_FailsWithDiagnostics(t *testing.T) {
	f := newFixture(t)
	f.write("src/main.js", "import './missing.js';\n")
	f.expectLoad(".")

	err := f.app.Build(context.Background(), app.RunOptions{OutputMode: "linear"})
	require.ErrorIs(t, err, domain.ErrBuildFailed)

	// Nothing reached the output directory.
	_, statErr := os.Stat(filepath.Join(f.root, "dist"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestApp_Build_ConfigLoaderError(t *testing.T) {
	f := newFixture(t)
	f.loader.EXPECT().Load(".").Return(nil, errors.New("config load error"))

	err := f.app.Build(context.Background(), app.RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestApp_Build_InvalidModeFlag(t *testing.T) {
	f := newFixture(t)
	f.loader.EXPECT().Load(".").Return(f.cfg, nil)

	err := f.app.Build(context.Background(), app.RunOptions{Mode: "turbo"})
	require.ErrorIs(t, err, domain.ErrInvalidMode)
}

func TestApp_ModePrecedence(t *testing.T) {
	tests := []struct {
		name     string
		fileMode domain.Mode
		flag     string
		want     domain.Mode
	}{
		{name: "command default", fileMode: "", flag: "", want: domain.ModeProduction},
		{name: "file wins over default", fileMode: domain.ModeDevelopment, flag: "", want: domain.ModeDevelopment},
		{name: "flag wins over file", fileMode: domain.ModeDevelopment, flag: "production", want: domain.ModeProduction},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.cfg.Mode = tc.fileMode
			f.loader.EXPECT().Load(".").Return(f.cfg, nil)

			// Short-circuit after the mode is pinned; the build itself is
			// exercised elsewhere.
			stop := errors.New("stop")
			var got domain.Mode
			f.loader.EXPECT().Finalize(f.cfg, gomock.Any()).DoAndReturn(
				func(_ *domain.Config, mode domain.Mode) error {
					got = mode
					return stop
				})

			err := f.app.Build(context.Background(), app.RunOptions{Mode: tc.flag})
			require.ErrorIs(t, err, stop)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestApp_Clean(t *testing.T) {
	f := newFixture(t)
	f.write(".bale/store/some-entry", "cached")
	f.write("dist/main.12345678.js", "built")
	f.loader.EXPECT().Load(".").Return(f.cfg, nil)

	err := f.app.Clean(context.Background(), app.CleanOptions{Store: true, Output: true})
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(f.root, ".bale"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(f.root, "dist"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestApp_Clean_StoreOnly(t *testing.T) {
	f := newFixture(t)
	f.write(".bale/store/some-entry", "cached")
	f.write("dist/main.12345678.js", "built")
	f.loader.EXPECT().Load(".").Return(f.cfg, nil)

	err := f.app.Clean(context.Background(), app.CleanOptions{Store: true})
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(f.root, ".bale"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(f.root, "dist"))
	assert.NoError(t, statErr)
}

func TestApp_Clean_ConfigDir(t *testing.T) {
	f := newFixture(t)
	f.write(".bale/store/some-entry", "cached")
	f.loader.EXPECT().Load(f.root).Return(f.cfg, nil)

	err := f.app.Clean(context.Background(), app.CleanOptions{Store: true, ConfigDir: f.root})
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(f.root, ".bale"))
	assert.True(t, os.IsNotExist(statErr))
}

// freePort reserves an ephemeral port and releases it for the server under
// test.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

// awaitShell polls the dev server root until it answers 200 with a body that
// passes accept, or the deadline expires.
func awaitShell(t *testing.T, port int, accept func(string) bool) string {
	t.Helper()
	url := fmt.Sprintf("http://127.0.0.1:%d/", port)
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			body, readErr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if readErr == nil && resp.StatusCode == http.StatusOK && accept(string(body)) {
				return string(body)
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("dev server did not serve the expected shell in time")
	return ""
}

func TestApp_Serve_ServesAndRebuilds(t *testing.T) {
	f := newFixture(t)
	f.cfg.Shell = "src/index.html"
	f.write("src/index.html",
		"<html><head><!-- bale:styles --></head><body><!-- bale:scripts --></body></html>\n")
	f.write("src/main.js", "import { greet } from './util.js';\ngreet();\n")
	f.write("src/util.js", "export function greet() {\n  console.log('one');\n}\n")
	mode := f.expectLoad(".")

	port := freePort(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.app.Serve(ctx, app.RunOptions{OutputMode: "linear", Port: port})
	}()

	first := awaitShell(t, port, func(body string) bool {
		return strings.Contains(body, "main.")
	})
	assert.Equal(t, domain.ModeDevelopment, *mode)
	assert.Contains(t, first, domain.ClientScriptPath)

	// A content change must reach the served shell as a new hashed name.
	f.write("src/util.js", "export function greet() {\n  console.log('two');\n}\n")
	awaitShell(t, port, func(body string) bool {
		return strings.Contains(body, "main.") && body != first
	})

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not shut down after cancel")
	}
}

func TestApp_Serve_StartsWithBrokenBuild(t *testing.T) {
	f := newFixture(t)
	f.cfg.Shell = "src/index.html"
	f.write("src/index.html",
		"<html><head></head><body><!-- bale:scripts --></body></html>\n")
	f.write("src/main.js", "import './missing.js';\n")
	f.expectLoad(".")

	port := freePort(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.app.Serve(ctx, app.RunOptions{OutputMode: "linear", Port: port})
	}()

	// The server comes up even though no revision committed, and the root
	// reports that no manifest is available yet.
	clientURL := fmt.Sprintf("http://127.0.0.1:%d%s", port, domain.ClientScriptPath)
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(clientURL)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		require.True(t, time.Now().Before(deadline), "dev server did not come up")
		time.Sleep(20 * time.Millisecond)
	}

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/", port))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	// Creating the missing file repairs the build without a restart.
	f.write("src/missing.js", "console.log('found');\n")
	awaitShell(t, port, func(body string) bool {
		return strings.Contains(body, "main.")
	})

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not shut down after cancel")
	}
}
