package main

import (
	"errors"
	"fmt"

	"github.com/Readm/smp_sim/backend"
	"github.com/Readm/smp_sim/core"
)

// ErrHotplugUnsupported reports that the platform has no way to park a core,
// so removal is rejected before any state changes. Proceeding without a way
// to later resume would not be reversible.
var ErrHotplugUnsupported = errors.New("core removal not supported by this platform")

// DisableError reports why a core could not be taken down.
type DisableError struct {
	CPU int
	Err error
}

func (e *DisableError) Error() string {
	return fmt.Sprintf("CPU%d: cannot be disabled: %v", e.CPU, e.Err)
}

func (e *DisableError) Unwrap() error { return e.Err }

// opCoreDisable runs the backend's removal checks for a core.
func (s *System) opCoreDisable(cpu int) error {
	// Without a die operation there is no point of return to reach; abort
	// before any state is touched. The boot core may not be backend-managed
	// at all, so absence of the whole capability counts too.
	if !s.backend.Supports(cpu, backend.OpDie) {
		return ErrHotplugUnsupported
	}

	// The platform may veto removal for a mechanism-specific reason.
	if s.backend.Supports(cpu, backend.OpDisable) {
		return s.backend.Disable(cpu)
	}
	return nil
}

// coreDisable runs on the core being removed: after the backend accepts,
// clear the online flag (the point of no return; from here the core must not
// be scheduled onto and must not block) and migrate interrupt affinities
// away.
func (s *System) coreDisable(cpu int) error {
	if err := s.opCoreDisable(cpu); err != nil {
		return &DisableError{CPU: cpu, Err: err}
	}

	s.setCoreOnline(cpu, false)
	s.active.Clear(cpu)

	if s.irqMigrate != nil {
		s.irqMigrate(cpu)
	}
	return nil
}

// handleOffline services a hotplug-remove request on the core itself. It
// reports whether the core left the idle loop.
func (s *System) handleOffline(cpu int, req offlineRequest) bool {
	err := s.coreDisable(cpu)
	if req.reply != nil {
		req.reply <- err
	}
	if err != nil {
		return false
	}
	s.Die(cpu)
	return true
}

// opCoreKill asks the platform to confirm the core has really left kernel
// code. With no kill operation there is no way to verify, so assume it is
// really dead rather than waiting an arbitrary time and hoping.
func (s *System) opCoreKill(cpu int) error {
	if !s.backend.Supports(cpu, backend.OpKill) {
		return nil
	}
	return s.backend.Kill(cpu)
}

// WaitForDeath runs on a different core than the one dying: block until the
// dying core reports completion or the timeout elapses. On timeout the core
// is abandoned in an unknown state rather than retried forever.
func (s *System) WaitForDeath(cpu int) error {
	if !s.runtimes[cpu].death.WaitTimeout(s.cfg.deathTimeout()) {
		GetLogger().Critf("CPU%d: cpu didn't die", cpu)
		return fmt.Errorf("CPU%d: didn't die", cpu)
	}
	GetLogger().Debugf("CPU%d: shutdown", cpu)

	// The dying core is beyond the point of no return for in-kernel
	// synchronisation; the kill step only adds firmware-level confidence that
	// it has really left the kernel.
	if err := s.opCoreKill(cpu); err != nil {
		GetLogger().Warnf("CPU%d may not have shut down cleanly: %v", cpu, err)
	}
	return nil
}

// Die runs on the core which has been shut down, called from its idle loop.
// Interrupts are disabled here and deliberately never re-enabled on this
// path: the core is leaving, not continuing.
func (s *System) Die(cpu int) {
	s.idleTaskExit(cpu)

	s.runtimes[cpu].irqsOn.Store(false)

	// Tell WaitForDeath that this core is now safe to dispose of.
	s.runtimes[cpu].death.Complete()

	// Actually shut the core down. This must never return; the platform
	// mechanism owns all cache maintenance needed on the way out.
	err := s.backend.Die(cpu)
	s.bugOn(!s.halted(), "CPU%d: backend die returned (%v)", cpu, err)
}

func (s *System) idleTaskExit(cpu int) {}

// DieEarly kills the calling core before it was ever turned online, during
// initial bring-up rather than hotplug. The core ends permanently
// unavailable: parked by the backend when possible, otherwise stuck in an
// indefinite low-power wait.
func (s *System) DieEarly(cpu int) {
	GetLogger().Critf("CPU%d: will not boot", cpu)

	s.present.Clear(cpu)

	if s.backend.Supports(cpu, backend.OpDie) {
		s.handshake.setStatus(core.BootStatusKillMe)
		s.updateEarlyStatus(cpu, core.BootStatusKillMe)
		// Check if we can park ourselves.
		s.backend.Die(cpu)
	}
	s.handshake.setStatus(core.BootStatusStuckInKernel)
	s.updateEarlyStatus(cpu, core.BootStatusStuckInKernel)

	s.parkLoop(cpu)
}

// Unplug orchestrates hot removal of a core from another core: ask the core
// to disable itself, then wait for it to report death.
func (s *System) Unplug(cpu int) error {
	if !s.online.Test(cpu) {
		return fmt.Errorf("CPU%d: not online", cpu)
	}
	if cpu == 0 {
		return &DisableError{CPU: cpu, Err: ErrHotplugUnsupported}
	}

	reply := make(chan error, 1)
	select {
	case s.runtimes[cpu].ctl <- offlineRequest{reply: reply}:
	case <-s.halt:
		return fmt.Errorf("CPU%d: system halted", cpu)
	}

	select {
	case err := <-reply:
		if err != nil {
			return err
		}
	case <-s.halt:
		return fmt.Errorf("CPU%d: system halted", cpu)
	}

	return s.WaitForDeath(cpu)
}
