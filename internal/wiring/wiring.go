// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/bale/internal/adapters/config"
	_ "go.trai.ch/bale/internal/adapters/devserver"
	_ "go.trai.ch/bale/internal/adapters/fs"
	_ "go.trai.ch/bale/internal/adapters/logger"
	_ "go.trai.ch/bale/internal/adapters/transform"
	// Register app nodes.
	_ "go.trai.ch/bale/internal/app"
)
