package dispatch

import (
	"sync"

	"github.com/Sternrassler/mcpi-fetch/pkg/world"
)

// WorkQueue hands out each coordinate exactly once. Next never blocks; a drained queue
// is the normal termination signal for workers.
type WorkQueue struct {
	mu    sync.Mutex
	items []world.Coordinate
	next  int
}

// NewWorkQueue creates a queue over items. The slice is not copied and must not be
// modified while the queue is in use.
func NewWorkQueue(items []world.Coordinate) *WorkQueue {
	return &WorkQueue{items: items}
}

// Next returns the next coordinate, or false when no work remains.
func (q *WorkQueue) Next() (world.Coordinate, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.next >= len(q.items) {
		return world.Coordinate{}, false
	}
	c := q.items[q.next]
	q.next++
	return c, true
}

// Len returns the total number of items the queue was seeded with.
func (q *WorkQueue) Len() int {
	return len(q.items)
}

// Remaining returns the number of items not yet handed out.
func (q *WorkQueue) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.next
}

// Collector gathers worker results.
type Collector[T any] struct {
	mu      sync.Mutex
	results map[world.Coordinate]T
}

// NewCollector creates a collector pre-sized for n results.
func NewCollector[T any](n int) *Collector[T] {
	return &Collector[T]{results: make(map[world.Coordinate]T, n)}
}

// Put records the value for pos and returns the number of results collected so far.
func (c *Collector[T]) Put(pos world.Coordinate, v T) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[pos] = v
	return len(c.results)
}

// Len returns the number of results collected.
func (c *Collector[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

// Results returns the collected map. Call it only after all workers have finished.
func (c *Collector[T]) Results() map[world.Coordinate]T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results
}
