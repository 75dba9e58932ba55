package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/dining/internal/trace"
)

// ExclusionChecker is a trace.Sink that asserts, on every acquire, that
// the utensil is not already held by someone else, and on every release,
// that the releaser is the holder.
//
// Acquire events are emitted while the utensil lock is held and release
// events before it is dropped, so the checker sees the same order as the
// lock does.
type ExclusionChecker struct {
	mu         sync.Mutex
	holders    map[int]int
	acquires   int64
	violations []string
}

// NewExclusionChecker creates an empty checker.
func NewExclusionChecker() *ExclusionChecker {
	return &ExclusionChecker{holders: make(map[int]int)}
}

// Emit implements trace.Sink.
func (c *ExclusionChecker) Emit(e trace.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e.Kind {
	case trace.KindAcquire:
		c.acquires++
		if holder, held := c.holders[e.Resource]; held {
			c.violations = append(c.violations,
				fmt.Sprintf("seq %d: agent %d acquired utensil %d held by %d", e.Seq, e.Agent, e.Resource, holder))
		}
		c.holders[e.Resource] = e.Agent
	case trace.KindRelease:
		if holder, held := c.holders[e.Resource]; !held || holder != e.Agent {
			c.violations = append(c.violations,
				fmt.Sprintf("seq %d: agent %d released utensil %d it does not hold", e.Seq, e.Agent, e.Resource))
		}
		delete(c.holders, e.Resource)
	}
}

// Acquires returns the number of acquire events seen.
func (c *ExclusionChecker) Acquires() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquires
}

// Violations returns every exclusion violation seen so far.
func (c *ExclusionChecker) Violations() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.violations...)
}

// Held returns utensil -> holder for every utensil not yet released.
func (c *ExclusionChecker) Held() map[int]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int]int, len(c.holders))
	for k, v := range c.holders {
		out[k] = v
	}
	return out
}
