package main

import (
	"github.com/Readm/smp_sim/core"
	"github.com/Readm/smp_sim/simulator"
)

// showRegs prints a core's register snapshot at the highest severity.
func showRegs(cpu int, regs core.Regs) {
	GetLogger().Critf("CPU%d: %s", cpu, regs)
}

// ipiCPUStop handles a stop IPI on the receiving core. While the system is
// still in a normal state the interrupted register state is recorded and
// printed for postmortem use; the lock only serializes the diagnostic output
// across cores, not the stop itself. The core then leaves the active set,
// flushes its caches, masks interrupts, and spins until the end.
func (s *System) ipiCPUStop(cpu int, regs core.Regs) {
	if st := s.State(); st == SystemBooting || st == SystemRunning {
		s.regsBeforeStop[cpu] = regs

		s.stopLock.Lock()
		GetLogger().Critf("CPU%d: stopping", cpu)
		showRegs(cpu, regs)
		s.stopLock.Unlock()
	}

	s.active.Clear(cpu)

	if s.cacheFlush != nil {
		s.cacheFlush(cpu)
	}
	s.runtimes[cpu].irqsOn.Store(false)

	s.parkLoop(cpu)
}

// RegsBeforeStop returns the register state a core recorded when it was
// stopped, for postmortem inspection.
func (s *System) RegsBeforeStop(cpu int) core.Regs {
	if cpu < 0 || cpu >= core.MaxCores {
		return core.Regs{}
	}
	return s.regsBeforeStop[cpu]
}

// StopAll stops every other online core, invoked at most once on a fatal
// path. Stop is best effort once issued: the initiator waits a bounded time
// for the others to go inactive and only names the stragglers, with no
// escalation beyond the warning.
func (s *System) StopAll(initiator int) {
	if s.numOtherOnline(initiator) > 0 {
		mask := s.online.Snapshot()
		mask.Clear(initiator)

		if st := s.State(); st == SystemBooting || st == SystemRunning {
			GetLogger().Critf("SMP: stopping secondary CPUs")
		}
		s.smpCrossCallCommon(mask, IPICPUStop)
	}

	// Wait up to one second for the other cores to stop. This is a polling
	// loop on purpose: the system may be mid-crash and ordinary wake
	// primitives cannot be trusted.
	simulator.PollUntil(s.cfg.stopWait(), s.cfg.pollQuantum(), func() bool {
		return s.numOtherActive(initiator) == 0
	})

	if s.numOtherActive(initiator) > 0 {
		stragglers := s.active.Snapshot()
		stragglers.Clear(initiator)
		GetLogger().Warnf("SMP: failed to stop secondary CPUs %s", stragglers)
	}
}
