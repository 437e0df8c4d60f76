package commands_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/bale/cmd/bale/commands"
	"go.trai.ch/bale/internal/app"
	"go.trai.ch/bale/internal/build"
)

type mockApp struct {
	buildFunc func(ctx context.Context, opts app.RunOptions) error
	serveFunc func(ctx context.Context, opts app.RunOptions) error
	cleanFunc func(ctx context.Context, opts app.CleanOptions) error
}

func (m *mockApp) Build(ctx context.Context, opts app.RunOptions) error {
	if m.buildFunc != nil {
		return m.buildFunc(ctx, opts)
	}
	return nil
}

func (m *mockApp) Serve(ctx context.Context, opts app.RunOptions) error {
	if m.serveFunc != nil {
		return m.serveFunc(ctx, opts)
	}
	return nil
}

func (m *mockApp) Clean(ctx context.Context, opts app.CleanOptions) error {
	if m.cleanFunc != nil {
		return m.cleanFunc(ctx, opts)
	}
	return nil
}

func TestCommands_Build(t *testing.T) {
	t.Run("wires flags correctly", func(t *testing.T) {
		var capturedOpts app.RunOptions
		called := false

		mock := &mockApp{
			buildFunc: func(_ context.Context, opts app.RunOptions) error {
				capturedOpts = opts
				called = true
				return nil
			},
		}

		cli := commands.New(mock)
		cli.SetArgs([]string{"build", "--no-cache", "--mode", "development", "--config", "web"})

		// We don't care about output here, just flag propagation
		err := cli.Execute(context.Background())
		require.NoError(t, err)
		assert.True(t, called)
		assert.True(t, capturedOpts.NoCache)
		assert.Equal(t, "development", capturedOpts.Mode)
		assert.Equal(t, "web", capturedOpts.ConfigDir)
		assert.Equal(t, "auto", capturedOpts.OutputMode)
	})

	t.Run("ci flag forces linear output", func(t *testing.T) {
		var capturedOpts app.RunOptions

		mock := &mockApp{
			buildFunc: func(_ context.Context, opts app.RunOptions) error {
				capturedOpts = opts
				return nil
			},
		}

		cli := commands.New(mock)
		cli.SetArgs([]string{"build", "--ci", "--output-mode", "tui"})

		err := cli.Execute(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "linear", capturedOpts.OutputMode)
	})

	t.Run("returns error on build failure", func(t *testing.T) {
		mock := &mockApp{
			buildFunc: func(_ context.Context, _ app.RunOptions) error {
				return errors.New("simulated error")
			},
		}

		cli := commands.New(mock)
		cli.SetArgs([]string{"build"})
		// Silence output to avoid polluting test logs
		cli.SetOutput(new(bytes.Buffer), new(bytes.Buffer))

		err := cli.Execute(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "simulated error")
	})

	t.Run("rejects positional arguments", func(t *testing.T) {
		mock := &mockApp{
			buildFunc: func(_ context.Context, _ app.RunOptions) error {
				panic("should not be called")
			},
		}

		cli := commands.New(mock)
		cli.SetOutput(new(bytes.Buffer), new(bytes.Buffer))
		cli.SetArgs([]string{"build", "src/main.js"})

		err := cli.Execute(context.Background())
		require.Error(t, err)
	})
}

func TestCommands_Serve(t *testing.T) {
	t.Run("wires flags correctly", func(t *testing.T) {
		var capturedOpts app.RunOptions
		called := false

		mock := &mockApp{
			serveFunc: func(_ context.Context, opts app.RunOptions) error {
				capturedOpts = opts
				called = true
				return nil
			},
		}

		cli := commands.New(mock)
		cli.SetArgs([]string{"serve", "--port", "9000", "--output-mode", "linear"})

		err := cli.Execute(context.Background())
		require.NoError(t, err)
		assert.True(t, called)
		assert.Equal(t, 9000, capturedOpts.Port)
		assert.Equal(t, "linear", capturedOpts.OutputMode)
		assert.Empty(t, capturedOpts.Mode)
	})

	t.Run("returns error on serve failure", func(t *testing.T) {
		mock := &mockApp{
			serveFunc: func(_ context.Context, _ app.RunOptions) error {
				return errors.New("port in use")
			},
		}

		cli := commands.New(mock)
		cli.SetArgs([]string{"serve"})
		cli.SetOutput(new(bytes.Buffer), new(bytes.Buffer))

		err := cli.Execute(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "port in use")
	})
}

func TestCommands_Clean(t *testing.T) {
	cases := []struct {
		name       string
		args       []string
		wantStore  bool
		wantOutput bool
	}{
		{name: "default cleans the store", args: []string{"clean"}, wantStore: true},
		{name: "output flag cleans only the output", args: []string{"clean", "--output"}, wantOutput: true},
		{name: "all flag cleans everything", args: []string{"clean", "--all"}, wantStore: true, wantOutput: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var capturedOpts app.CleanOptions

			mock := &mockApp{
				cleanFunc: func(_ context.Context, opts app.CleanOptions) error {
					capturedOpts = opts
					return nil
				},
			}

			cli := commands.New(mock)
			cli.SetArgs(tc.args)

			err := cli.Execute(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.wantStore, capturedOpts.Store)
			assert.Equal(t, tc.wantOutput, capturedOpts.Output)
		})
	}
}

func TestCommands_Version(t *testing.T) {
	mock := &mockApp{}
	cli := commands.New(mock)

	buf := new(bytes.Buffer)
	cli.SetOutput(buf, buf)
	cli.SetArgs([]string{"version"})

	err := cli.Execute(context.Background())
	require.NoError(t, err)

	assert.Contains(t, buf.String(), build.Version)
}
