package fs

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/bale/internal/core/ports"
)

const (
	WalkerNodeID graft.ID = "adapter.fs.walker"
	SinkNodeID   graft.ID = "adapter.fs.sink"
)

func init() {
	// Walker Node (used by the watcher for recursive registration)
	graft.Register(graft.Node[ports.Walker]{
		ID:        WalkerNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Walker, error) {
			return NewWalker(), nil
		},
	})

	// Sink Node
	graft.Register(graft.Node[ports.OutputSink]{
		ID:        SinkNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.OutputSink, error) {
			return NewSink(), nil
		},
	})
}
