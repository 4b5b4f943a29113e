package simulator

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestPollUntilImmediate(t *testing.T) {
	calls := 0
	ok := PollUntil(time.Second, time.Millisecond, func() bool {
		calls++
		return true
	})
	if !ok {
		t.Fatalf("satisfied condition reported false")
	}
	if calls != 1 {
		t.Fatalf("condition evaluated %d times, want 1", calls)
	}
}

func TestPollUntilEventualSuccess(t *testing.T) {
	var flag atomic.Bool
	go func() {
		time.Sleep(20 * time.Millisecond)
		flag.Store(true)
	}()
	if !PollUntil(time.Second, time.Millisecond, flag.Load) {
		t.Fatalf("condition became true but poll gave up")
	}
}

func TestPollUntilBudgetExhausted(t *testing.T) {
	start := time.Now()
	ok := PollUntil(50*time.Millisecond, time.Millisecond, func() bool { return false })
	elapsed := time.Since(start)

	if ok {
		t.Fatalf("unsatisfiable condition reported true")
	}
	if elapsed < 40*time.Millisecond {
		t.Fatalf("poll gave up after %v, before the budget", elapsed)
	}
}

func TestPollUntilDefensiveArguments(t *testing.T) {
	if PollUntil(time.Millisecond, time.Millisecond, nil) {
		t.Fatalf("nil condition reported true")
	}
	// A non-positive quantum falls back rather than spinning hot.
	if !PollUntil(50*time.Millisecond, 0, func() bool { return true }) {
		t.Fatalf("zero quantum broke the poll")
	}
	// A zero budget still gets one evaluation.
	if !PollUntil(0, time.Millisecond, func() bool { return true }) {
		t.Fatalf("zero budget skipped the condition")
	}
}
