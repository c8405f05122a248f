package testutil

import "sync"

// Counter is a thread-safe monotonic counter. MemoryDataset uses it to count
// storage scans, which tests use to check that lists are lazy and single
// pass.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Counter struct {
	mu sync.Mutex
	n  int64
}

// Next increments and returns the new value. The first call returns 1.
func (c *Counter) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.n
}

// Current returns the current value without incrementing.
func (c *Counter) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Reset sets the counter back to 0.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}
