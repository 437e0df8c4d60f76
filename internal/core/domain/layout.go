package domain

import "path/filepath"

const (
	// BaleDirName is the name of the internal metadata directory.
	BaleDirName = ".bale"

	// StoreDirName is the name of the transform cache store directory.
	StoreDirName = "store"

	// ConfigFileName is the name of the project configuration file.
	ConfigFileName = "bale.yaml"

	// DebugLogFile is the name of the debug log file.
	DebugLogFile = "debug.log"

	// DefaultOutDirName is the output directory used when the configuration
	// does not name one.
	DefaultOutDirName = "dist"

	// ClientScriptPath is the dev server route serving the live-update
	// client. The emitter injects a script tag for it into development
	// shells.
	ClientScriptPath = "/__bale/client.js"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644

	// PrivateFilePerm is the default permission for private files (rw-------).
	PrivateFilePerm = 0o600
)

// DefaultBalePath returns the default root directory for bale metadata.
func DefaultBalePath() string {
	return BaleDirName
}

// DefaultStorePath returns the default path for the transform cache store.
// It joins .bale and store.
func DefaultStorePath() string {
	return filepath.Join(BaleDirName, StoreDirName)
}

// DefaultDebugLogPath returns the default path for the debug log.
// It joins .bale and debug.log.
func DefaultDebugLogPath() string {
	return filepath.Join(BaleDirName, DebugLogFile)
}
