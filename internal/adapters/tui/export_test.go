package tui

// Export functions for testing
var (
	BuildTree   = buildTree
	FlattenTree = flattenTree
)

// MaxOffset exposes the private maxOffset method for testing.
func (w *LogWindow) MaxOffset() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.maxOffset()
}
