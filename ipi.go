package main

import (
	"fmt"
	"io"

	"github.com/Readm/smp_sim/core"
	"github.com/Readm/smp_sim/hooks"
)

// IPIMessage identifies one cross-core notification type. The catalogue is
// closed: adding a message type is a source change, not a runtime
// registration, because the set of legitimate cross-core notifications is a
// property of the whole system's design.
type IPIMessage int

const (
	IPIReschedule IPIMessage = iota
	IPICallFunc
	IPICPUStop
	IPITimer
	IPIDeferredWork
	IPIWakeup
	IPICPUBacktrace

	nrIPI = 7
)

// ipiTypes carries the diagnostic label for each message type, in catalogue
// order.
var ipiTypes = [nrIPI]string{
	IPIReschedule:   "Rescheduling interrupts",
	IPICallFunc:     "Function call interrupts",
	IPICPUStop:      "CPU stop interrupts",
	IPITimer:        "Timer broadcast interrupts",
	IPIDeferredWork: "Deferred work interrupts",
	IPIWakeup:       "CPU wake-up interrupts",
	IPICPUBacktrace: "CPU backtrace",
}

// Label returns the human-readable diagnostic label of the message type.
func (m IPIMessage) Label() string {
	if m < 0 || int(m) >= nrIPI {
		return fmt.Sprintf("unknown IPI 0x%x", int(m))
	}
	return ipiTypes[m]
}

// CrossCallFunc is the externally supplied hardware broadcast primitive:
// deliver the message ordinal to every core in the target set, fire and
// forget.
type CrossCallFunc func(targets core.CoreSet, msg IPIMessage)

// SetCrossCall installs the broadcast primitive. Nothing can be sent before
// this is done.
func (s *System) SetCrossCall(fn CrossCallFunc) {
	s.crossCallMu.Lock()
	s.crossCall = fn
	s.crossCallMu.Unlock()
}

func (s *System) crossCallInstalled() bool {
	s.crossCallMu.RLock()
	defer s.crossCallMu.RUnlock()
	return s.crossCall != nil
}

// smpCrossCall raises the trace event and hands the target set to the
// broadcast primitive.
func (s *System) smpCrossCall(targets core.CoreSet, msg IPIMessage) {
	s.broker.EmitIPIRaise(&hooks.RaiseContext{
		Targets: targets.String(),
		Message: int(msg),
		Label:   msg.Label(),
	})
	s.crossCallMu.RLock()
	fn := s.crossCall
	s.crossCallMu.RUnlock()
	s.bugOn(fn == nil, "cross call raised before a broadcast primitive was installed")
	if fn != nil {
		fn(targets, msg)
	}
}

// smpCrossCallCommon marks every target's pending flag before the broadcast.
// The flag is an in-flight indicator for observers, not a correctness
// mechanism.
func (s *System) smpCrossCallCommon(targets core.CoreSet, msg IPIMessage) {
	targets.ForEach(func(cpu int) {
		s.pendingIPI[cpu].Store(true)
	})
	s.smpCrossCall(targets, msg)
}

// SendReschedule notifies the scheduler on another core. Sending to an
// offline core is a caller defect.
func (s *System) SendReschedule(cpu int) {
	s.bugOn(!s.online.Test(cpu), "CPU%d: reschedule IPI to offline core", cpu)
	var mask core.CoreSet
	mask.Set(cpu)
	s.smpCrossCallCommon(mask, IPIReschedule)
}

// SendCallFunctionMask asks every core in the mask to run the generic
// call-function interrupt.
func (s *System) SendCallFunctionMask(mask core.CoreSet) {
	s.smpCrossCallCommon(mask, IPICallFunc)
}

// SendCallFunctionSingle asks one core to run the generic call-function
// interrupt.
func (s *System) SendCallFunctionSingle(cpu int) {
	var mask core.CoreSet
	mask.Set(cpu)
	s.smpCrossCallCommon(mask, IPICallFunc)
}

// SendWakeup kicks the cores in the mask out of a low-power wait. The
// interrupt itself is the entire effect.
func (s *System) SendWakeup(mask core.CoreSet) {
	s.smpCrossCallCommon(mask, IPIWakeup)
}

// RaiseDeferredWork self-IPIs the given core so pending deferred work runs in
// interrupt context.
func (s *System) RaiseDeferredWork(cpu int) {
	if !s.crossCallInstalled() {
		return
	}
	var mask core.CoreSet
	mask.Set(cpu)
	s.smpCrossCallCommon(mask, IPIDeferredWork)
}

// TickBroadcast delivers a broadcast timer tick to the cores in the mask.
func (s *System) TickBroadcast(mask core.CoreSet) {
	s.smpCrossCallCommon(mask, IPITimer)
}

// HandleIPI is the main handler for inter-processor interrupts, run in
// interrupt context on the receiving core. It must not block or suspend
// except on the stop path, where the core never comes back. The message
// arrives as a raw ordinal; anything outside the catalogue is tolerated as
// unknown, never indexed into the internal tables.
func (s *System) HandleIPI(cpu int, msg int, regs core.Regs) {
	known := msg >= 0 && msg < nrIPI
	if known {
		s.ipiCounts[cpu][msg].Add(1)
		s.broker.EmitIPIEntry(&hooks.DispatchContext{CPU: cpu, Message: msg, Label: IPIMessage(msg).Label()})
	}

	switch IPIMessage(msg) {
	case IPIReschedule:
		if s.schedulerIPI != nil {
			s.schedulerIPI(cpu)
		}

	case IPICallFunc:
		if s.callFunction != nil {
			s.callFunction(cpu)
		}

	case IPICPUStop:
		s.ipiCPUStop(cpu, regs)

	case IPITimer:
		if s.tickBroadcastOn.Load() && s.tickReceive != nil {
			s.tickReceive(cpu)
		}

	case IPIDeferredWork:
		if s.deferredWork != nil {
			s.deferredWork(cpu)
		}

	case IPIWakeup:
		// The interrupt already did its job.

	case IPICPUBacktrace:
		s.ipiCPUBacktrace(cpu, regs)

	default:
		GetLogger().Critf("CPU%d: unknown IPI message 0x%x", cpu, msg)
	}

	if known {
		s.broker.EmitIPIExit(&hooks.DispatchContext{CPU: cpu, Message: msg, Label: IPIMessage(msg).Label()})
	}
	s.pendingIPI[cpu].Store(false)
}

// PendingIPI reports whether an IPI is in flight for the core. Observability
// only.
func (s *System) PendingIPI(cpu int) bool {
	if cpu < 0 || cpu >= core.MaxCores {
		return false
	}
	return s.pendingIPI[cpu].Load()
}

// IPICount returns the delivery count of one message type on one core.
func (s *System) IPICount(cpu int, msg IPIMessage) uint64 {
	if cpu < 0 || cpu >= core.MaxCores || msg < 0 || int(msg) >= nrIPI {
		return 0
	}
	return s.ipiCounts[cpu][msg].Load()
}

// IRQStatCPU returns the total number of IPIs delivered to one core.
func (s *System) IRQStatCPU(cpu int) uint64 {
	var sum uint64
	for i := 0; i < nrIPI; i++ {
		sum += s.IPICount(cpu, IPIMessage(i))
	}
	return sum
}

// ShowIPIList writes the per-core delivery counters with their labels, in
// catalogue order, for every online core.
func (s *System) ShowIPIList(w io.Writer) {
	online := s.online.Snapshot()
	for i := 0; i < nrIPI; i++ {
		fmt.Fprintf(w, "IPI%d:", i)
		online.ForEach(func(cpu int) {
			fmt.Fprintf(w, "%10d", s.ipiCounts[cpu][i].Load())
		})
		fmt.Fprintf(w, "      %s\n", ipiTypes[i])
	}
}

// DeliverInterrupts is the default broadcast primitive for the simulated
// platform: post the message onto each target core's interrupt line. A full
// line coalesces, which matches how hardware folds identical pending IPIs.
func (s *System) DeliverInterrupts(targets core.CoreSet, msg IPIMessage) {
	targets.ForEach(func(cpu int) {
		rt := s.runtimes[cpu]
		ev := ipiEvent{msg: int(msg), regs: s.currentRegs(cpu, "interrupted")}
		select {
		case rt.inbox <- ev:
		default:
		}
	})
}
