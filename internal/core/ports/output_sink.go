package ports

//go:generate mockgen -source=output_sink.go -destination=mocks/mock_output_sink.go -package=mocks

// OutputSink persists emitted build artifacts below an output directory.
type OutputSink interface {
	// Write stores data under dir/name, creating parent directories as
	// needed. Name must stay inside dir once cleaned.
	Write(dir, name string, data []byte) error

	// Exists reports whether dir/name is already present. Hashed file
	// names make existence equivalent to freshness, so emitters use this
	// to skip rewriting unchanged chunks.
	Exists(dir, name string) bool

	// Prune removes files in dir that are not listed in keep. It ignores
	// subdirectories it did not create and returns the names it removed.
	Prune(dir string, keep []string) ([]string, error)
}
