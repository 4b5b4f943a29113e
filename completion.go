package main

import (
	"sync"
	"time"
)

// completion is a one-shot level-triggered signal with a bounded wait. The
// bring-up path reuses a single instance across attempts (rearmed under the
// bring-up lock); the teardown path creates a fresh one per dying core.
type completion struct {
	mu   sync.Mutex
	done bool
	ch   chan struct{}
}

func newCompletion() *completion {
	return &completion{ch: make(chan struct{})}
}

// Complete marks the completion done and wakes all waiters. Completing an
// already-done completion is a no-op.
func (c *completion) Complete() {
	c.mu.Lock()
	if !c.done {
		c.done = true
		close(c.ch)
	}
	c.mu.Unlock()
}

// WaitTimeout blocks until the completion is done or the timeout elapses,
// reporting whether it became done. This is a blocking wait, not a poll: it is
// only used on paths where ordinary scheduling is trusted.
func (c *completion) WaitTimeout(d time.Duration) bool {
	c.mu.Lock()
	ch := c.ch
	done := c.done
	c.mu.Unlock()
	if done {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}

// Rearm resets the completion for the next use. Must not race with waiters;
// the bring-up lock serializes that naturally.
func (c *completion) Rearm() {
	c.mu.Lock()
	if c.done {
		c.done = false
		c.ch = make(chan struct{})
	}
	c.mu.Unlock()
}

// Done reports whether the completion has fired.
func (c *completion) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}
