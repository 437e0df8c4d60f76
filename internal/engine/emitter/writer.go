package emitter

import (
	"strconv"

	"go.trai.ch/zerr"

	"go.trai.ch/bale/internal/core/domain"
	"go.trai.ch/bale/internal/core/ports"
)

// Writer persists a manifest's files below the output directory. Chunk names
// carry their content hash, so a chunk that already exists on disk is
// current and is skipped; the shell keeps a stable name and is always
// rewritten.
type Writer struct {
	sink   ports.OutputSink
	logger ports.Logger
}

// NewWriter creates a Writer on top of an output sink.
func NewWriter(sink ports.OutputSink, logger ports.Logger) *Writer {
	return &Writer{sink: sink, logger: logger}
}

// Write stores every chunk and the shell under dir, then prunes files left
// over from earlier revisions.
func (w *Writer) Write(manifest *domain.AssetManifest, dir string) error {
	written := 0
	for i := range manifest.Chunks {
		chunk := &manifest.Chunks[i]
		name := chunk.FileName()
		if w.sink.Exists(dir, name) {
			continue
		}
		if err := w.sink.Write(dir, name, chunk.Data); err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrOutputWriteFailed.Error()), "file", name)
		}
		written++
	}

	if manifest.ShellName != "" {
		if err := w.sink.Write(dir, manifest.ShellName, manifest.Shell); err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrOutputWriteFailed.Error()), "file", manifest.ShellName)
		}
		written++
	}

	removed, err := w.sink.Prune(dir, manifest.FileNames())
	if err != nil {
		return zerr.Wrap(err, domain.ErrOutputWriteFailed.Error())
	}

	w.logger.Info("wrote " + strconv.Itoa(written) + " file(s), pruned " +
		strconv.Itoa(len(removed)) + " stale file(s) in " + dir)
	return nil
}
