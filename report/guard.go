package report

import (
	"sync"

	"golang.org/x/sync/semaphore"
)

// guard allows one generation per output path at a time.
type guard struct {
	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

func newGuard() *guard {
	return &guard{sems: make(map[string]*semaphore.Weighted)}
}

// tryAcquire claims path without blocking. The returned func releases it.
func (g *guard) tryAcquire(path string) (func(), bool) {
	g.mu.Lock()
	sem, ok := g.sems[path]
	if !ok {
		sem = semaphore.NewWeighted(1)
		g.sems[path] = sem
	}
	g.mu.Unlock()

	if !sem.TryAcquire(1) {
		return nil, false
	}
	return func() { sem.Release(1) }, true
}
