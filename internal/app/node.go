package app

import (
	"context"

	"github.com/grindlemire/graft"

	"go.trai.ch/bale/internal/adapters/config" //nolint:depguard // Wired in app layer
	"go.trai.ch/bale/internal/adapters/devserver"
	"go.trai.ch/bale/internal/adapters/fs"
	"go.trai.ch/bale/internal/adapters/logger" //nolint:depguard // Wired in app layer
	"go.trai.ch/bale/internal/adapters/transform"
	"go.trai.ch/bale/internal/core/ports"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	// App Node
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			logger.NodeID,
			fs.WalkerNodeID,
			fs.SinkNodeID,
			transform.RegistryNodeID,
			devserver.MetricsNodeID,
		},
		Run: func(ctx context.Context) (*App, error) {
			loader, err := graft.Dep[ports.ConfigLoader](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			walker, err := graft.Dep[ports.Walker](ctx)
			if err != nil {
				return nil, err
			}

			sink, err := graft.Dep[ports.OutputSink](ctx)
			if err != nil {
				return nil, err
			}

			registry, err := graft.Dep[*transform.Registry](ctx)
			if err != nil {
				return nil, err
			}

			metrics, err := graft.Dep[*devserver.Metrics](ctx)
			if err != nil {
				return nil, err
			}

			return New(loader, log, walker, sink, registry, metrics), nil
		},
	})

	// Components Node
	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			application, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			return &Components{
				App:    application,
				Logger: log,
			}, nil
		},
	})
}
