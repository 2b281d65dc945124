package mcptools

import "sync"

// FileReadTracker tracks which files have been read via the Read tool.
// Edit refuses to touch a file the model has never seen — without a read there
// are no hashes to reference.
type FileReadTracker struct {
	mu   sync.RWMutex
	read map[string]struct{} // absolute paths
}

// NewFileReadTracker creates a new tracker.
func NewFileReadTracker() *FileReadTracker {
	return &FileReadTracker{read: make(map[string]struct{})}
}

// MarkRead records that a file was read.
func (t *FileReadTracker) MarkRead(absPath string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.read[absPath] = struct{}{}
}

// WasRead returns true if the file was previously read.
func (t *FileReadTracker) WasRead(absPath string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.read[absPath]
	return ok
}
