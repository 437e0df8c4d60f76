package domain

import "go.trai.ch/zerr"

var (
	// ErrUnitNotFound is returned when a requested unit is not in the graph.
	ErrUnitNotFound = zerr.New("unit not found")

	// ErrCycleDetected is returned when the graph contains an import cycle
	// held together by static edges.
	ErrCycleDetected = zerr.New("import cycle detected")

	// ErrNoEntriesSpecified is returned when the configuration names no entry points.
	ErrNoEntriesSpecified = zerr.New("no entry points specified")

	// ErrEntryNotFound is returned when an entry point does not exist on disk.
	ErrEntryNotFound = zerr.New("entry point not found")

	// ErrEntryOutsideRoot is returned when a configured path escapes the
	// project root.
	ErrEntryOutsideRoot = zerr.New("path is outside the project root")

	// ErrResolveFailed is returned when an import specifier cannot be resolved.
	ErrResolveFailed = zerr.New("failed to resolve import specifier")

	// ErrTransformFailed is returned when a transform fails fatally.
	ErrTransformFailed = zerr.New("transform failed")

	// ErrUnsupportedKind is returned when no transform is registered for a unit kind.
	ErrUnsupportedKind = zerr.New("no transform registered for unit kind")

	// ErrBuildFailed is returned when a revision cannot commit.
	ErrBuildFailed = zerr.New("build failed")

	// ErrStaleRevision is returned when a build result is superseded before commit.
	ErrStaleRevision = zerr.New("stale build revision")

	// ErrMinifyFailed is returned when production minification fails. It is
	// downgraded to a warning and the unminified output is kept.
	ErrMinifyFailed = zerr.New("minification failed")

	// ErrShellNotFound is returned when the configured HTML shell does not exist.
	ErrShellNotFound = zerr.New("html shell not found")

	// ErrShellPlaceholderMissing is returned when the HTML shell lacks an
	// injection placeholder.
	ErrShellPlaceholderMissing = zerr.New("html shell is missing injection placeholder")

	// ErrInvalidMode is returned when a build mode is invalid.
	ErrInvalidMode = zerr.New("invalid mode, expected 'development' or 'production'")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrConfigNotFound is returned when the config file cannot be found.
	ErrConfigNotFound = zerr.New("could not find bale.yaml")

	// ErrUnknownConfigKey is returned when the config file contains an
	// unrecognized option.
	ErrUnknownConfigKey = zerr.New("unknown configuration key")

	// ErrUnsupportedConfigVersion is returned when the config schema version
	// is not supported.
	ErrUnsupportedConfigVersion = zerr.New("unsupported configuration version")

	// ErrStoreCreateFailed is returned when the cache store directory cannot be created.
	ErrStoreCreateFailed = zerr.New("failed to create cache store directory")

	// ErrStoreReadFailed is returned when a cache entry cannot be read.
	ErrStoreReadFailed = zerr.New("failed to read cache entry")

	// ErrStoreWriteFailed is returned when a cache entry cannot be written.
	ErrStoreWriteFailed = zerr.New("failed to write cache entry")

	// ErrStoreMarshalFailed is returned when a cache entry cannot be marshaled.
	ErrStoreMarshalFailed = zerr.New("failed to marshal cache entry")

	// ErrStoreUnmarshalFailed is returned when a cache entry cannot be unmarshaled.
	ErrStoreUnmarshalFailed = zerr.New("failed to unmarshal cache entry")

	// ErrCacheCorrupted is returned internally when a cache entry fails its
	// integrity check. Callers treat it as a miss, never as a failure.
	ErrCacheCorrupted = zerr.New("cache entry failed integrity check")

	// ErrOutputWriteFailed is returned when an output file cannot be written.
	ErrOutputWriteFailed = zerr.New("failed to write output file")

	// ErrOutputPathOutsideRoot is returned when an output path escapes the
	// output directory.
	ErrOutputPathOutsideRoot = zerr.New("output path is outside output directory")

	// ErrFileOpenFailed is returned when a source file cannot be opened.
	ErrFileOpenFailed = zerr.New("failed to open file")

	// ErrFileHashFailed is returned when hashing a file fails.
	ErrFileHashFailed = zerr.New("failed to hash file content")

	// ErrPathStatFailed is returned when stating a path fails.
	ErrPathStatFailed = zerr.New("failed to stat path")

	// ErrWatcherStartFailed is returned when the file watcher cannot start.
	ErrWatcherStartFailed = zerr.New("failed to start file watcher")

	// ErrServerStartFailed is returned when the dev server cannot start.
	ErrServerStartFailed = zerr.New("failed to start dev server")

	// ErrNoManifest is returned when the dev server is asked to serve before
	// any revision has committed.
	ErrNoManifest = zerr.New("no build manifest available")
)
