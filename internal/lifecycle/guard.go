package lifecycle

import (
	"errors"
	"sort"
	"sync"
)

var ErrActionInProgress = errors.New("action already in progress")

// Guard is a per-entity try-lock. A second acquisition for the same id fails until the
// first holder releases; different ids never block each other.
type Guard struct {
	mu     sync.Mutex
	locked map[string]struct{}
}

// NewGuard creates an empty guard
func NewGuard() *Guard {
	return &Guard{locked: make(map[string]struct{})}
}

// TryAcquire locks id and returns true if it was free. It never waits.
func (g *Guard) TryAcquire(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, held := g.locked[id]; held {
		return false
	}
	g.locked[id] = struct{}{}
	return true
}

// Release unlocks id. Releasing a free id is a no-op.
func (g *Guard) Release(id string) {
	g.mu.Lock()
	delete(g.locked, id)
	g.mu.Unlock()
}

// IsLocked reports whether an action is in flight for id
func (g *Guard) IsLocked(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, held := g.locked[id]
	return held
}

// Locked returns the ids currently held, sorted
func (g *Guard) Locked() []string {
	g.mu.Lock()
	ids := make([]string, 0, len(g.locked))
	for id := range g.locked {
		ids = append(ids, id)
	}
	g.mu.Unlock()

	sort.Strings(ids)
	return ids
}
