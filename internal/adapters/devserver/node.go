package devserver

import (
	"context"

	"github.com/grindlemire/graft"
)

// MetricsNodeID is the unique identifier for the dev server metrics Graft node.
const MetricsNodeID graft.ID = "adapter.devserver.metrics"

func init() {
	// Metrics Node. The Server itself needs the loaded configuration
	// (host, port), so App constructs it at serve time.
	graft.Register(graft.Node[*Metrics]{
		ID:        MetricsNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*Metrics, error) {
			return NewMetrics(), nil
		},
	})
}
