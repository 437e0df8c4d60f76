package ports

import "go.trai.ch/bale/internal/core/domain"

// ConfigLoader defines the interface for loading the build configuration.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load reads the configuration from the given working directory.
	// Unknown keys in the file are a load error, not a warning. The
	// returned config carries the file's mode verbatim (possibly empty);
	// callers resolve the effective mode and then call Finalize.
	Load(cwd string) (*domain.Config, error)

	// Finalize pins the effective mode and merges .env / .env.<mode>
	// values underneath cfg.Define. Values from bale.yaml win over env
	// files; .env.<mode> wins over .env.
	Finalize(cfg *domain.Config, mode domain.Mode) error

	// DiscoverRoot walks up from cwd to find the project root.
	// Returns the directory containing bale.yaml.
	DiscoverRoot(cwd string) (string, error)
}
