package main

import (
	"github.com/Readm/smp_sim/core"
	"github.com/Readm/smp_sim/simulator"
)

// TriggerAllCoreBacktrace asks every other online core to print its register
// state, serialized through a global lock so concurrent arrivals do not
// interleave. Diagnostics are best effort and must not pile up: if a session
// is already in progress the call is a no-op, and cores that never manage to
// run their handler within the budget simply never appear in the output.
func (s *System) TriggerAllCoreBacktrace(initiator int) {
	if !s.backtraceFlag.CompareAndSwap(0, 1) {
		// A session is already dumping; a second set of output would only
		// double the noise.
		return
	}

	mask := s.online.Snapshot()
	mask.Clear(initiator)
	s.backtraceMask.CopyFrom(mask)

	// The initiator never IPIs itself.
	GetLogger().Infof("Backtrace for cpu %d (current):", initiator)
	showRegs(initiator, s.currentRegs(initiator, "initiator"))

	if !mask.Empty() {
		GetLogger().Infof("sending IPI to all other CPUs: %s", mask)
		s.smpCrossCall(mask, IPICPUBacktrace)
	}

	// Wait for up to the budget for all other cores to do the backtrace.
	// Polling on purpose: this may run while the system is unstable.
	simulator.PollUntil(s.cfg.backtraceWait(), s.cfg.pollQuantum(), func() bool {
		return s.backtraceMask.Empty()
	})

	// Release ordering so the next session starts from a clean view.
	s.backtraceFlag.Store(0)
}

// BacktraceInProgress reports whether a backtrace session currently holds the
// exclusion flag.
func (s *System) BacktraceInProgress() bool {
	return s.backtraceFlag.Load() != 0
}

// ipiCPUBacktrace handles a backtrace IPI on the receiving core: print the
// interrupted register state under the output lock and leave the session's
// target set.
func (s *System) ipiCPUBacktrace(cpu int, regs core.Regs) {
	if s.backtraceMask.Test(cpu) {
		s.backtraceLock.Lock()
		GetLogger().Warnf("IPI backtrace for cpu %d", cpu)
		showRegs(cpu, regs)
		s.backtraceLock.Unlock()
		s.backtraceMask.Clear(cpu)
	}
}
