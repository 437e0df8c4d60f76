package domain

import "time"

// Mode selects the build profile.
type Mode string

const (
	// ModeDevelopment favors rebuild speed: no minification, inline styles,
	// live-update metadata retained.
	ModeDevelopment Mode = "development"
	// ModeProduction favors output quality: minification and separate
	// hashed style files.
	ModeProduction Mode = "production"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDevelopment, ModeProduction:
		return Mode(s), nil
	}
	return "", ErrInvalidMode
}

const (
	// DefaultHost is the dev server bind address.
	DefaultHost = "127.0.0.1"

	// DefaultPort is the dev server port.
	DefaultPort = 8632

	// DefaultDebounce is the watcher coalescing window.
	DefaultDebounce = 75 * time.Millisecond

	// DefaultCacheMaxEntries bounds the transform cache by entry count.
	DefaultCacheMaxEntries = 4096

	// DefaultCacheMaxBytes bounds the transform cache by payload bytes.
	DefaultCacheMaxBytes = 256 << 20

	// DefaultSharedThreshold is the number of entries that must reach a unit
	// before it is hoisted into the shared chunk.
	DefaultSharedThreshold = 2
)

// ResolveRules configures import specifier resolution.
type ResolveRules struct {
	// Extensions are the candidate extensions tried for extensionless
	// specifiers, in priority order.
	Extensions []string
	// Alias maps specifier prefixes to replacement prefixes. Longest prefix
	// wins.
	Alias map[string]string
}

// ServerConfig configures the dev server.
type ServerConfig struct {
	Host string
	Port int
}

// CacheConfig bounds the transform cache.
type CacheConfig struct {
	MaxEntries int
	MaxBytes   int64
}

// WatchConfig configures the file watcher.
type WatchConfig struct {
	// Debounce is the window within which change events coalesce into one
	// rebuild.
	Debounce time.Duration
}

// Config is the fully resolved build configuration. The config loader
// produces it from bale.yaml plus env files and CLI overrides; nothing else
// mutates it after startup.
type Config struct {
	// Root is the absolute project root directory.
	Root string
	// Entries are the entry point paths relative to Root.
	Entries []string
	// OutDir is the output directory relative to Root.
	OutDir string
	// Mode is the build profile.
	Mode Mode
	// Shell is the HTML shell path relative to Root, or "" for none.
	Shell string
	// Resolve configures specifier resolution.
	Resolve ResolveRules
	// Define maps identifiers to replacement values in script sources.
	Define map[string]string
	// Transforms carries per-kind option maps, keyed by UnitKind name.
	Transforms map[string]map[string]string
	// Server configures the dev server.
	Server ServerConfig
	// Cache bounds the transform cache.
	Cache CacheConfig
	// Watch configures the file watcher.
	Watch WatchConfig
	// SharedThreshold is the entry-reachability count at which a unit is
	// hoisted into the shared chunk.
	SharedThreshold int
}

// TransformOptions assembles the option set for one unit kind, ready for
// fingerprinting and transform dispatch.
func (c *Config) TransformOptions(kind UnitKind) TransformOptions {
	return TransformOptions{
		Kind:    kind,
		Mode:    c.Mode,
		Define:  c.Define,
		Options: c.Transforms[kind.String()],
	}
}
