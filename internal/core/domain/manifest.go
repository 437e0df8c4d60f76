package domain

// Revision identifies one build pass. Revisions increase monotonically for
// the lifetime of the process; a higher revision always wins over a lower
// one, and results from a superseded revision are discarded at commit.
type Revision uint64

// OutputChunk is one emitted output file: an ordered group of transformed
// units concatenated into final bytes.
type OutputChunk struct {
	// Name is the logical chunk name, derived from the entry point or
	// "shared" for hoisted modules.
	Name string
	// Ext is the output extension without the leading dot.
	Ext string
	// Hash is the content digest of Data in fixed-width hex.
	Hash string
	// Members lists the unit IDs in emission order.
	Members []InternedString
	// Data is the final output content.
	Data []byte
}

// FileName returns the emitted file name, "<name>.<hash8>.<ext>". The hash
// segment is the first 8 hex digits of the content digest, so the name
// changes exactly when the content changes.
func (c *OutputChunk) FileName() string {
	hash := c.Hash
	if len(hash) > 8 {
		hash = hash[:8]
	}
	return c.Name + "." + hash + "." + c.Ext
}

// ModuleInfo is the per-unit metadata recorded in a manifest. The dev server
// compares consecutive revisions' ModuleInfo to decide between a targeted
// update and a full reload.
type ModuleInfo struct {
	// Chunk is the logical name of the chunk holding the unit.
	Chunk string
	// Hash is the unit's content digest at emit time.
	Hash string
	// Exports is the unit's exported shape.
	Exports []string
	// EdgeSum fingerprints the unit's outgoing edges.
	EdgeSum string
	// Code is the unit's transformed source, kept in development mode so
	// targeted updates can ship it without re-reading chunks.
	Code []byte `json:"-"`
}

// AssetManifest is the complete output of one committed revision. It is an
// immutable value: a new revision produces a new manifest, and the dev server
// swaps whole manifests atomically.
type AssetManifest struct {
	// Revision is the build pass that produced this manifest.
	Revision Revision
	// Mode is the build mode the manifest was produced under.
	Mode Mode
	// Chunks are the emitted output files in deterministic order.
	Chunks []OutputChunk
	// ShellName is the emitted name of the HTML shell, or "" when no shell
	// is configured.
	ShellName string
	// Shell is the emitted HTML shell content.
	Shell []byte
	// Modules maps unit IDs to their per-unit metadata.
	Modules map[InternedString]ModuleInfo
	// Diagnostics carries every warning retained by this revision.
	Diagnostics []Diagnostic
}

// Chunk returns the chunk with the given logical name.
func (m *AssetManifest) Chunk(name string) (*OutputChunk, bool) {
	for i := range m.Chunks {
		if m.Chunks[i].Name == name {
			return &m.Chunks[i], true
		}
	}
	return nil, false
}

// FileNames returns the emitted file names of all chunks plus the shell,
// in manifest order.
func (m *AssetManifest) FileNames() []string {
	names := make([]string, 0, len(m.Chunks)+1)
	for i := range m.Chunks {
		names = append(names, m.Chunks[i].FileName())
	}
	if m.ShellName != "" {
		names = append(names, m.ShellName)
	}
	return names
}
