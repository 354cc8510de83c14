package catalog

import (
	"sync"
	"time"
)

// clock hands out strictly increasing UTC timestamps so creation order and
// UpdatedAt advancement hold even within one clock tick.
type clock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func newClock() *clock {
	return &clock{now: time.Now}
}

func (c *clock) next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := c.now().UTC().Round(0)
	if !ts.After(c.last) {
		ts = c.last.Add(time.Nanosecond)
	}
	c.last = ts

	return ts
}
