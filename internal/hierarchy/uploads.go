package hierarchy

import "sync"

// UploadGuard tracks takes with in-progress asset uploads. Deleting a
// take directory is refused, not retried, while an upload is registered
// against it.
type UploadGuard struct {
	mu     sync.Mutex
	active map[uint]int
}

// NewUploadGuard creates an empty guard.
func NewUploadGuard() *UploadGuard {
	return &UploadGuard{active: make(map[uint]int)}
}

// Register marks an upload as in progress for the take.
func (g *UploadGuard) Register(takeID uint) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active[takeID]++
}

// Release marks one upload as finished for the take.
func (g *UploadGuard) Release(takeID uint) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active[takeID] <= 1 {
		delete(g.active, takeID)
		return
	}
	g.active[takeID]--
}

// Active reports whether any upload is registered against the take.
func (g *UploadGuard) Active(takeID uint) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active[takeID] > 0
}
