package main

import (
	"errors"
	"testing"
	"time"

	"github.com/Readm/smp_sim/backend"
	"github.com/Readm/smp_sim/core"
)

func TestBringUpSuccess(t *testing.T) {
	sys, _, rec, err := bootTestSystem(testPlatform(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer sys.Shutdown()

	if !sys.CoreOnline(1) {
		t.Fatalf("CPU1 did not come online")
	}
	task, stack := sys.handshake.adopt()
	if task != nil || stack != 0 {
		t.Fatalf("handshake not cleared after bring-up: task=%v stack=%#x", task, stack)
	}
	if sys.handshake.loadStatus() != core.BootStatusSuccess {
		t.Fatalf("unexpected boot status %s", sys.handshake.loadStatus())
	}
	if rec.count() != 0 {
		t.Fatalf("unexpected panic: %v", rec.snapshot())
	}
}

func TestBringUpBackendRejected(t *testing.T) {
	sys, be, _ := newTestSystem(testPlatform(2))
	defer sys.Shutdown()
	if err := sys.InitCores(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sys.PrepareCores()

	injected := errors.New("firmware said no")
	be.RefuseBoot(1, injected)

	start := time.Now()
	err := sys.BringUp(1, NewIdleTask(1))
	if err == nil {
		t.Fatalf("expected failure")
	}
	var berr *BringUpError
	if !errors.As(err, &berr) || berr.Kind != BringUpBackendRejected {
		t.Fatalf("expected backend rejection, got %v", err)
	}
	if !errors.Is(err, injected) {
		t.Fatalf("backend error not wrapped: %v", err)
	}
	// An immediate rejection must not burn the completion budget.
	if time.Since(start) > 100*time.Millisecond {
		t.Fatalf("backend rejection waited for completion")
	}
	if sys.CoreOnline(1) {
		t.Fatalf("rejected core went online")
	}
}

func TestBringUpTimeout(t *testing.T) {
	sys, be, _ := newTestSystem(testPlatform(2))
	defer sys.Shutdown()
	if err := sys.InitCores(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sys.PrepareCores()

	// The backend accepts the boot but the core never starts.
	be.SilentBoot(1)

	start := time.Now()
	err := sys.BringUp(1, NewIdleTask(1))
	elapsed := time.Since(start)

	var berr *BringUpError
	if !errors.As(err, &berr) || berr.Kind != BringUpNotOnline {
		t.Fatalf("expected not-online failure, got %v", err)
	}
	if sys.CoreOnline(1) {
		t.Fatalf("core online after timeout")
	}
	if elapsed < sys.cfg.bringUpTimeout() {
		t.Fatalf("returned before the budget elapsed: %v", elapsed)
	}
	if elapsed > sys.cfg.bringUpTimeout()+150*time.Millisecond {
		t.Fatalf("wait overshot the budget: %v", elapsed)
	}
	task, stack := sys.handshake.adopt()
	if task != nil || stack != 0 {
		t.Fatalf("handshake not cleared after timeout")
	}
}

func TestBringUpPanicKernelStopsSystem(t *testing.T) {
	platform := testPlatform(2)
	// CPU1 starts at a different exception level than the boot core.
	platform.Cores[1].RunLevel = int(core.RunLevelHypervisor)

	sys, _, rec, err := bootTestSystem(platform)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer sys.Shutdown()

	if sys.CoreOnline(1) {
		t.Fatalf("mismatched core came online")
	}
	if rec.count() == 0 {
		t.Fatalf("PanicKernel did not terminate the system")
	}
}

func TestBringUpCapabilityMismatchScopedToCore(t *testing.T) {
	platform := testPlatform(3)
	platform.Cores[1].MissingCaps = []string{"asimd"}

	sys, _, rec, err := bootTestSystem(platform)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer sys.Shutdown()

	if sys.CoreOnline(1) {
		t.Fatalf("incapable core came online")
	}
	// The failure is scoped to CPU1; CPU2 still boots.
	if !sys.CoreOnline(2) {
		t.Fatalf("CPU2 did not come online")
	}
	if rec.count() != 0 {
		t.Fatalf("per-core failure terminated the system: %v", rec.snapshot())
	}
	if sys.CorePresent(1) {
		t.Fatalf("dead core still present")
	}
}

func TestBringUpKillFailureCountsAsStuck(t *testing.T) {
	platform := testPlatform(2)
	platform.Cores[1].MissingCaps = []string{"fp"}

	sys, be, _ := newTestSystem(platform)
	defer sys.Shutdown()
	if err := sys.InitCores(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sys.PrepareCores()
	be.FailKill(1, errors.New("firmware lost the core"))

	if err := sys.BringUp(1, NewIdleTask(1)); err == nil {
		t.Fatalf("expected failure")
	}
	// The core asked to be parked, the park could not be confirmed, and the
	// attempt lands in the stuck accounting.
	if got := sys.StuckCores(); got != 1 {
		t.Fatalf("stuck counter = %d, want 1", got)
	}
}

func TestBringUpEarlyStatusSubstitution(t *testing.T) {
	sys, _, _ := newTestSystem(testPlatform(2))
	defer sys.Shutdown()
	if err := sys.InitCores(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sys.PrepareCores()

	// The core dies in the early stub, before the handshake is reachable.
	sys.SetPreflight(func(cpu int) core.BootStatus {
		if cpu == 1 {
			return core.BootStatusStuckInKernel
		}
		return core.BootStatusMMUOff
	})

	if err := sys.BringUp(1, NewIdleTask(1)); err == nil {
		t.Fatalf("expected failure")
	}
	if got := sys.StuckCores(); got != 1 {
		t.Fatalf("stuck counter = %d, want 1", got)
	}
	if !sys.CoresAreStuckInKernel() {
		t.Fatalf("stuck core not reported")
	}
}

func TestBringUpRejectsImpossibleCore(t *testing.T) {
	sys, _, _ := newTestSystem(testPlatform(2))
	defer sys.Shutdown()
	if err := sys.InitCores(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := sys.BringUp(0, NewIdleTask(0)); err == nil {
		t.Fatalf("bring-up of the boot core succeeded")
	}
	if err := sys.BringUp(5, NewIdleTask(5)); err == nil {
		t.Fatalf("bring-up of an undescribed core succeeded")
	}
}

func TestCoresAreStuckWithoutDieCapability(t *testing.T) {
	sys, be, _ := newTestSystem(testPlatform(2))
	defer sys.Shutdown()
	be.DisableOp(backend.OpDie)
	if err := sys.InitCores(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sys.CoresAreStuckInKernel() {
		t.Fatalf("platform without a die operation should report possibly stuck cores")
	}
}
