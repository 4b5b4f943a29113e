package core

import "fmt"

// BootStatus is the bring-up status code a secondary core publishes through the
// boot handshake. The set is closed; any other value observed is a defect to be
// logged, never interpreted.
type BootStatus uint32

const (
	// BootStatusMMUOff is the initial status written by the primary before the
	// backend boot call; a secondary that never progressed still reads as this.
	BootStatusMMUOff BootStatus = iota
	// BootStatusSuccess means the secondary completed bring-up and went online.
	BootStatusSuccess
	// BootStatusStuckInKernel means the core is looping in kernel code but will
	// never come online.
	BootStatusStuckInKernel
	// BootStatusKillMe means the secondary asked the primary to park it via the
	// backend kill operation.
	BootStatusKillMe
	// BootStatusPanicKernel means the core detected a configuration it cannot
	// run under; the whole system must stop.
	BootStatusPanicKernel
)

func (s BootStatus) String() string {
	switch s {
	case BootStatusMMUOff:
		return "MmuOff"
	case BootStatusSuccess:
		return "BootSuccess"
	case BootStatusStuckInKernel:
		return "StuckInKernel"
	case BootStatusKillMe:
		return "KillMe"
	case BootStatusPanicKernel:
		return "PanicKernel"
	default:
		return fmt.Sprintf("BootStatus(0x%x)", uint32(s))
	}
}

// RunLevel is the execution privilege level a core starts the kernel at. All
// cores must agree with the boot core; a mismatch is unsafe to continue from.
type RunLevel int

const (
	RunLevelNormal     RunLevel = 1
	RunLevelHypervisor RunLevel = 2
)

func (r RunLevel) String() string {
	return fmt.Sprintf("EL%d", int(r))
}

// Regs is a snapshot of a core's interrupted register state, captured for
// postmortem display by the stop and backtrace handlers.
type Regs struct {
	PC     uint64
	SP     uint64
	Pstate uint64
	Note   string
}

func (r Regs) String() string {
	return fmt.Sprintf("pc=0x%016x sp=0x%016x pstate=0x%08x %s", r.PC, r.SP, r.Pstate, r.Note)
}
