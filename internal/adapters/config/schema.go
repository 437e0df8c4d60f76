package config

// Balefile represents the structure of the bale.yaml configuration file.
// Numeric fields treat zero as unset and fall back to domain defaults.
type Balefile struct {
	Version         string                       `yaml:"version"`
	Entries         []string                     `yaml:"entries"`
	OutDir          string                       `yaml:"outDir"`
	Mode            string                       `yaml:"mode"`
	Resolve         ResolveDTO                   `yaml:"resolve"`
	Define          map[string]string            `yaml:"define"`
	Transform       map[string]map[string]string `yaml:"transform"`
	Server          ServerDTO                    `yaml:"server"`
	Cache           CacheDTO                     `yaml:"cache"`
	Watch           WatchDTO                     `yaml:"watch"`
	Shell           string                       `yaml:"shell"`
	SharedThreshold int                          `yaml:"sharedThreshold"`
}

// ResolveDTO configures import specifier resolution.
type ResolveDTO struct {
	Extensions []string          `yaml:"extensions"`
	Alias      map[string]string `yaml:"alias"`
}

// ServerDTO configures the dev server bind address.
type ServerDTO struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// CacheDTO bounds the transform cache.
type CacheDTO struct {
	MaxEntries int   `yaml:"maxEntries"`
	MaxBytes   int64 `yaml:"maxBytes"`
}

// WatchDTO configures change coalescing.
type WatchDTO struct {
	DebounceMs int `yaml:"debounceMs"`
}
