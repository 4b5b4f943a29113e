package main

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Readm/smp_sim/backend"
	"github.com/Readm/smp_sim/core"
)

// IdleTask is the task context a freshly booted core adopts. It also supplies
// the core's initial stack.
type IdleTask struct {
	CPU      int
	StackTop uint64
}

// NewIdleTask allocates the idle task for a core.
func NewIdleTask(cpu int) *IdleTask {
	return &IdleTask{CPU: cpu, StackTop: idleStackTop(cpu)}
}

func idleStackTop(cpu int) uint64 {
	return 0xffff00000a000000 + uint64(cpu)<<16
}

// BootHandshake is the shared block a secondary core reads on its way up. It
// is a singleton reused per bring-up attempt: the primary publishes it before
// the backend boot call and clears the task and stack fields once the attempt
// concludes, so a later attempt can never observe stale values. The status
// field is written by the secondary before it has cache coherency with the
// primary, which is why both sides go through atomics.
type BootHandshake struct {
	mu       sync.Mutex
	task     *IdleTask
	stackTop uint64
	status   atomic.Uint32
}

// publish installs the task and stack for the next secondary and resets the
// status. The mutex stands in for the explicit cache maintenance the primary
// performs so the pre-coherency secondary sees a consistent block.
func (h *BootHandshake) publish(task *IdleTask) {
	h.mu.Lock()
	h.task = task
	h.stackTop = task.StackTop
	h.mu.Unlock()
	h.status.Store(uint32(core.BootStatusMMUOff))
}

// clear drops the task and stack references. They must never be read again
// after the bring-up attempt that published them returns.
func (h *BootHandshake) clear() {
	h.mu.Lock()
	h.task = nil
	h.stackTop = 0
	h.mu.Unlock()
}

func (h *BootHandshake) adopt() (*IdleTask, uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.task, h.stackTop
}

func (h *BootHandshake) setStatus(st core.BootStatus) {
	h.status.Store(uint32(st))
}

func (h *BootHandshake) loadStatus() core.BootStatus {
	return core.BootStatus(h.status.Load())
}

// BringUpErrorKind classifies a failed bring-up attempt.
type BringUpErrorKind int

const (
	// BringUpBackendRejected means the backend refused or could not perform
	// the boot operation; no wait took place.
	BringUpBackendRejected BringUpErrorKind = iota
	// BringUpNotOnline means the backend accepted the boot but the core never
	// joined the online set within the budget.
	BringUpNotOnline
)

// BringUpError reports why a core failed to come up.
type BringUpError struct {
	CPU  int
	Kind BringUpErrorKind
	Err  error
}

func (e *BringUpError) Error() string {
	switch e.Kind {
	case BringUpBackendRejected:
		return fmt.Sprintf("CPU%d: failed to boot: %v", e.CPU, e.Err)
	default:
		return fmt.Sprintf("CPU%d: failed to come online", e.CPU)
	}
}

func (e *BringUpError) Unwrap() error { return e.Err }

// bootSecondary asks the backend to release the core into the secondary start
// path.
func (s *System) bootSecondary(cpu int) error {
	if !s.backend.Supports(cpu, backend.OpBoot) {
		return backend.ErrUnsupported
	}
	return s.backend.Boot(cpu)
}

// BringUp boots a secondary core and assigns it the specified idle task,
// blocking until the core is online or the attempt is classified as failed.
// The caller must be running on an online core; only one bring-up targets a
// given core at a time.
func (s *System) BringUp(cpu int, idle *IdleTask) error {
	if s == nil || idle == nil {
		return fmt.Errorf("CPU%d: no idle task", cpu)
	}
	if cpu <= 0 || cpu >= s.nrCoreIDs || !s.possible.Test(cpu) {
		return fmt.Errorf("CPU%d: not a possible core", cpu)
	}
	s.bootMu.Lock()
	defer s.bootMu.Unlock()

	// Tell the secondary core where to find its stack and task context. This
	// must be fully visible before the backend releases the core.
	s.handshake.publish(idle)
	s.cpuRunning.Rearm()

	var failure error
	err := s.bootSecondary(cpu)
	if err == nil {
		// Core was successfully started, wait for it to come online or time
		// out.
		s.cpuRunning.WaitTimeout(s.cfg.bringUpTimeout())

		if !s.online.Test(cpu) {
			GetLogger().Critf("CPU%d: failed to come online", cpu)
			failure = &BringUpError{CPU: cpu, Kind: BringUpNotOnline}
		}
	} else {
		GetLogger().Errorf("CPU%d: failed to boot: %v", cpu, err)
		failure = &BringUpError{CPU: cpu, Kind: BringUpBackendRejected, Err: err}
	}

	// The task and stack fields must never be read again after this point,
	// whatever the outcome of the attempt.
	status := s.handshake.loadStatus()
	s.handshake.clear()

	if failure != nil {
		s.classifyBootFailure(cpu, failure, status)
	}
	return failure
}

// classifyBootFailure diagnoses what became of a core that did not come
// online. A status still reading MmuOff means the core may have died before
// the handshake block was reachable at all, so the early-stage status is
// substituted.
func (s *System) classifyBootFailure(cpu int, failure error, status core.BootStatus) {
	var berr *BringUpError
	if be, ok := failure.(*BringUpError); ok {
		berr = be
	}
	if berr == nil || berr.Kind == BringUpBackendRejected {
		return
	}

	if status == core.BootStatusMMUOff {
		status = core.BootStatus(s.earlyStatus[cpu].Load())
	}
	if status == core.BootStatusMMUOff {
		// The core never progressed far enough to report anything.
		return
	}

	switch status {
	case core.BootStatusKillMe:
		if err := s.opCoreKill(cpu); err == nil {
			GetLogger().Critf("CPU%d: died during early boot", cpu)
			break
		}
		GetLogger().Critf("CPU%d: may not have shut down cleanly", cpu)
		fallthrough
	case core.BootStatusStuckInKernel:
		GetLogger().Critf("CPU%d: is stuck in kernel", cpu)
		s.stuckInKernel.Add(1)
	case core.BootStatusPanicKernel:
		s.panicFn("CPU%d detected unsupported configuration", cpu)
	default:
		GetLogger().Errorf("CPU%d: failed in unknown state : %s", cpu, status)
	}
}

// updateEarlyStatus records the stage a core reached before the handshake
// block was usable.
func (s *System) updateEarlyStatus(cpu int, st core.BootStatus) {
	s.earlyStatus[cpu].Store(uint32(st))
}

// secondaryStartKernel is the secondary core boot entry. It runs on the new
// core, on the idle task's own stack but a temporary address space.
func (s *System) secondaryStartKernel(cpu int) {
	s.updateEarlyStatus(cpu, core.BootStatusMMUOff)

	if s.preflight != nil {
		if st := s.preflight(cpu); st != core.BootStatusMMUOff {
			// The early stub failed before the handshake was reachable.
			s.updateEarlyStatus(cpu, st)
			s.parkLoop(cpu)
			return
		}
	}

	task, stack := s.handshake.adopt()
	if task == nil || stack == 0 {
		s.updateEarlyStatus(cpu, core.BootStatusStuckInKernel)
		s.parkLoop(cpu)
		return
	}
	s.bugOn(task.CPU != cpu, "CPU%d: booted with CPU%d's idle task", cpu, task.CPU)

	// All cores share the kernel address space; the identity mapping was only
	// needed for the bring-up jump.
	s.adoptKernelMapping(cpu)

	if !s.verifyRunLevel(cpu) {
		s.corePanicKernel(cpu)
		return
	}

	// If the system has established its capability set, this core has to tick
	// every one of them or it cannot come online.
	if missing := s.checkCoreCapabilities(cpu); len(missing) > 0 {
		GetLogger().Errorf("CPU%d: missing required capabilities %v", cpu, missing)
		s.DieEarly(cpu)
		return
	}

	s.backend.PostBoot(cpu)
	s.notifyCoreStarting(cpu)

	// Everything up to here must be finished before the primary can observe
	// this core as up: the completion races with an independent online check
	// and both must agree.
	s.handshake.setStatus(core.BootStatusSuccess)
	s.setCoreOnline(cpu, true)
	s.active.Set(cpu)
	s.cpuRunning.Complete()

	s.runtimes[cpu].irqsOn.Store(true)
	GetLogger().Infof("CPU%d: booted secondary processor 0x%010x", cpu, s.logicalMap.HWID(cpu))

	s.idleLoop(cpu)
}

// adoptKernelMapping switches the core onto the shared kernel address space
// and retracts the temporary identity mapping. Purely bookkeeping here; the
// cache and TLB maintenance involved belongs to the platform layer.
func (s *System) adoptKernelMapping(cpu int) {}

// verifyRunLevel checks that this core runs the kernel at the same privilege
// level as the boot core. Running cores at inconsistent levels is unsafe to
// continue from; the caller halts the core on a mismatch.
func (s *System) verifyRunLevel(cpu int) bool {
	bootLevel := s.runLevels[0]
	level := s.runLevels[cpu]
	if level != bootLevel {
		GetLogger().Critf("CPU%d: mismatched exception level (%s) with boot CPU (%s)",
			cpu, level, bootLevel)
		return false
	}
	return true
}

// corePanicKernel is the controlled halt of a core that detected an
// unsupported configuration: report PanicKernel and park. The primary turns
// the status into total-system termination.
func (s *System) corePanicKernel(cpu int) {
	s.handshake.setStatus(core.BootStatusPanicKernel)
	s.updateEarlyStatus(cpu, core.BootStatusPanicKernel)
	s.parkLoop(cpu)
}

// checkCoreCapabilities returns the committed system-wide capabilities this
// core lacks.
func (s *System) checkCoreCapabilities(cpu int) []string {
	missing := s.missingCaps[cpu]
	if len(missing) == 0 || len(s.committedCaps) == 0 {
		return nil
	}
	var lacked []string
	for _, name := range s.committedCaps {
		for _, m := range missing {
			if name == m {
				lacked = append(lacked, name)
			}
		}
	}
	return lacked
}

// notifyCoreStarting installs ordinary per-core context: interrupt
// controller, timer, topology registration.
func (s *System) notifyCoreStarting(cpu int) {
	s.runtimes[cpu].death = newCompletion()
}

// StuckCores returns the number of cores that are not online but are looping
// in kernel code.
func (s *System) StuckCores() int {
	return int(s.stuckInKernel.Load())
}

// CoresAreStuckInKernel reports whether any core could be left running kernel
// code after a shutdown: either a core got stuck during bring-up, or the
// platform has multiple possible cores but no way to park them.
func (s *System) CoresAreStuckInKernel() bool {
	noDie := !s.backend.Supports(0, backend.OpDie)
	spinTable := s.possible.Count() > 1 && noDie
	return s.stuckInKernel.Load() != 0 || spinTable
}
