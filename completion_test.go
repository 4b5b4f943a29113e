package main

import (
	"testing"
	"time"
)

func TestCompletionSignalled(t *testing.T) {
	c := newCompletion()
	if c.Done() {
		t.Fatalf("fresh completion already done")
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		c.Complete()
	}()
	if !c.WaitTimeout(time.Second) {
		t.Fatalf("completion never signalled")
	}
	if !c.Done() {
		t.Fatalf("done flag not set")
	}

	// Completing twice is harmless and waiting again succeeds at once.
	c.Complete()
	if !c.WaitTimeout(0) {
		t.Fatalf("completed completion not immediately ready")
	}
}

func TestCompletionTimeout(t *testing.T) {
	c := newCompletion()
	start := time.Now()
	if c.WaitTimeout(30 * time.Millisecond) {
		t.Fatalf("unsignalled completion reported done")
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatalf("wait returned before the timeout")
	}
}

func TestCompletionRearm(t *testing.T) {
	c := newCompletion()
	c.Complete()
	c.Rearm()

	if c.Done() {
		t.Fatalf("rearmed completion still done")
	}
	if c.WaitTimeout(10 * time.Millisecond) {
		t.Fatalf("rearmed completion signalled without a Complete")
	}

	c.Complete()
	if !c.WaitTimeout(time.Second) {
		t.Fatalf("completion unusable after rearm")
	}

	// Rearm on a pending completion is a no-op.
	fresh := newCompletion()
	fresh.Rearm()
	if fresh.Done() {
		t.Fatalf("rearm marked a pending completion done")
	}
}
