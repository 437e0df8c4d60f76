package watcher

import (
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/bale/internal/core/ports"
)

func TestConvertEvent(t *testing.T) {
	tests := []struct {
		name string
		op   fsnotify.Op
		want *ports.WatchEvent
	}{
		{
			name: "write",
			op:   fsnotify.Write,
			want: &ports.WatchEvent{Path: "/project/src/main.js", Operation: ports.OpWrite},
		},
		{
			name: "create",
			op:   fsnotify.Create,
			want: &ports.WatchEvent{Path: "/project/src/main.js", Operation: ports.OpCreate},
		},
		{
			name: "remove",
			op:   fsnotify.Remove,
			want: &ports.WatchEvent{Path: "/project/src/main.js", Operation: ports.OpRemove},
		},
		{
			name: "rename",
			op:   fsnotify.Rename,
			want: &ports.WatchEvent{Path: "/project/src/main.js", Operation: ports.OpRename},
		},
		{
			name: "chmod is dropped",
			op:   fsnotify.Chmod,
			want: nil,
		},
		{
			name: "combined create and write reports write",
			op:   fsnotify.Create | fsnotify.Write,
			want: &ports.WatchEvent{Path: "/project/src/main.js", Operation: ports.OpWrite},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := convertEvent(fsnotify.Event{Name: "/project/src/main.js", Op: tt.op})
			if tt.want == nil {
				require.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestIgnoreEvent(t *testing.T) {
	tests := []struct {
		path   string
		ignore bool
	}{
		{"/project/src/main.js", false},
		{"/project/src/styles.css", false},
		{"/project/bale.yaml", false},
		{"/project/src/.main.js.swb", true},
		{"/project/src/main.js~", true},
		{"/project/src/.main.js.swp", true},
		{"/project/src/main.js.swp", true},
		{"/project/src/main.js.swx", true},
		{"/project/src/#main.js#", true},
		{"/project/src/.#main.js", true},
		{"/project/.DS_Store", true},
		{"/project/Thumbs.db", true},
		{"/project/.bale", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.ignore, ignoreEvent(tt.path))
		})
	}
}

func TestWatcher_SkipDir(t *testing.T) {
	w := &Watcher{ignores: []string{"dist", "*.tmp"}}

	assert.True(t, w.skipDir(".git"))
	assert.True(t, w.skipDir(".jj"))
	assert.True(t, w.skipDir(".bale"))
	assert.True(t, w.skipDir("node_modules"))
	assert.True(t, w.skipDir("dist"))
	assert.True(t, w.skipDir("scratch.tmp"))
	assert.False(t, w.skipDir("src"))
	assert.False(t, w.skipDir("distance"))
}
