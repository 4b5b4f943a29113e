package main

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestControlHandlerQuit(t *testing.T) {
	sys, _, _ := newTestSystem(testPlatform(1))
	defer sys.Shutdown()

	if sys.controlHandler("quit") {
		t.Fatalf("quit did not end the loop")
	}
	if sys.controlHandler("exit") {
		t.Fatalf("exit did not end the loop")
	}
	if !sys.controlHandler("help") {
		t.Fatalf("help ended the loop")
	}
}

func TestControlHandlerToleratesBadInput(t *testing.T) {
	sys, _, rec := newTestSystem(testPlatform(1))
	defer sys.Shutdown()

	for _, line := range []string{
		"",
		"   ",
		"frobnicate",
		"send",
		"send x resched",
		"send 1",
		"send 1 nosuchtype",
		"send 99 resched",
		"bringup",
		"bringup notanumber",
		`send "unterminated`,
	} {
		if !sys.controlHandler(line) {
			t.Fatalf("line %q ended the loop", line)
		}
	}
	if rec.count() != 0 {
		t.Fatalf("bad input terminated the system: %v", rec.snapshot())
	}
}

func TestControlHandlerSend(t *testing.T) {
	sys, _, _, err := bootTestSystem(testPlatform(2))
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	defer sys.Shutdown()

	if !sys.controlHandler("send 1 resched") {
		t.Fatalf("send ended the loop")
	}
	if !waitFor(time.Second, func() bool { return sys.IPICount(1, IPIReschedule) == 1 }) {
		t.Fatalf("control send never delivered")
	}
}

func TestControlHandlerUnplugAndBringup(t *testing.T) {
	sys, _, _, err := bootTestSystem(testPlatform(2))
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	defer sys.Shutdown()

	if !sys.controlHandler("unplug 1") {
		t.Fatalf("unplug ended the loop")
	}
	if sys.CoreOnline(1) {
		t.Fatalf("CPU1 still online after control unplug")
	}

	if !sys.controlHandler("bringup 1") {
		t.Fatalf("bringup ended the loop")
	}
	if !sys.CoreOnline(1) {
		t.Fatalf("CPU1 not online after control bringup")
	}
}

func TestRunControlLoopEndsOnQuit(t *testing.T) {
	sys, _, _, err := bootTestSystem(testPlatform(2))
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	defer sys.Shutdown()

	done := make(chan struct{})
	go func() {
		sys.RunControlLoop(context.Background(), strings.NewReader("send 1 resched\nquit\n"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("control loop never returned after quit")
	}
	if !waitFor(time.Second, func() bool { return sys.IPICount(1, IPIReschedule) == 1 }) {
		t.Fatalf("scripted send never delivered")
	}
}

func TestRunControlLoopEndsOnCancel(t *testing.T) {
	sys, _, _ := newTestSystem(testPlatform(1))
	defer sys.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		// The reader never produces a line; only cancellation can end this.
		pr := strings.NewReader("")
		sys.RunControlLoop(ctx, pr)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("control loop ignored cancellation")
	}
}
