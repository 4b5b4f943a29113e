package main

import (
	"sync"
	"sync/atomic"

	"github.com/Readm/smp_sim/backend"
	"github.com/Readm/smp_sim/core"
	"github.com/Readm/smp_sim/hooks"
)

// ipiEvent is one notification arriving on a core's interrupt line.
type ipiEvent struct {
	msg  int
	regs core.Regs
}

// offlineRequest asks a core to run the teardown protocol on itself. The
// reply carries the Disable result; a veto leaves the core running.
type offlineRequest struct {
	reply chan error
}

// coreRuntime is the per-core execution state of the simulation: the
// interrupt line the broadcast primitive delivers into, the control channel
// for hotplug requests, and the death report for teardown.
type coreRuntime struct {
	inbox  chan ipiEvent
	ctl    chan offlineRequest
	irqsOn atomic.Bool
	death  *completion
}

func newCoreRuntime() *coreRuntime {
	return &coreRuntime{
		inbox: make(chan ipiEvent, 64),
		ctl:   make(chan offlineRequest, 1),
		death: newCompletion(),
	}
}

// System owns all lifecycle and IPI coordination state: the core masks, the
// boot handshake, the per-core counter and flag tables, and the diagnostic
// locks. It is explicitly passed to every operation that needs it; the only
// ambient state in the package is the default logger.
type System struct {
	cfg     *Config
	backend backend.Backend
	broker  *hooks.TraceBroker

	logicalMap *core.LogicalMap
	nrCoreIDs  int
	bootHWID   uint64

	possible core.AtomicSet
	present  core.AtomicSet
	online   core.AtomicSet
	active   core.AtomicSet

	state atomic.Int32

	// Bring-up. The handshake is a singleton reused per attempt; bootMu
	// serializes attempts so it stays single-writer/single-reader.
	bootMu        sync.Mutex
	handshake     BootHandshake
	cpuRunning    *completion
	earlyStatus   [core.MaxCores]atomic.Uint32
	stuckInKernel atomic.Int32
	preflight     func(cpu int) core.BootStatus

	committedCaps []string
	runLevels     [core.MaxCores]core.RunLevel
	missingCaps   map[int][]string

	runtimes [core.MaxCores]*coreRuntime

	// IPI accounting. Each cell is written only by its owning core, read by
	// anyone for display.
	ipiCounts  [core.MaxCores][nrIPI]atomic.Uint64
	pendingIPI [core.MaxCores]atomic.Bool

	crossCallMu sync.RWMutex
	crossCall   CrossCallFunc

	// Dispatch side effects, supplied by external collaborators.
	schedulerIPI    func(cpu int)
	callFunction    func(cpu int)
	tickReceive     func(cpu int)
	deferredWork    func(cpu int)
	irqMigrate      func(cpu int)
	cacheFlush      func(cpu int)
	panicFn         func(format string, args ...any)
	tickBroadcastOn atomic.Bool

	// Coordinated broadcast state.
	stopLock       sync.Mutex
	regsBeforeStop [core.MaxCores]core.Regs
	backtraceLock  sync.Mutex
	backtraceFlag  atomic.Uint32
	backtraceMask  core.AtomicSet

	halt     chan struct{}
	haltOnce sync.Once
}

// NewSystem builds a system around the given configuration and backend. The
// boot core (logical index 0) is considered possible, present, online, and
// active from the start.
func NewSystem(cfg *Config, be backend.Backend) *System {
	if cfg == nil {
		cfg = &Config{}
	}
	s := &System{
		cfg:         cfg,
		backend:     be,
		broker:      hooks.NewTraceBroker(),
		cpuRunning:  newCompletion(),
		missingCaps: make(map[int][]string),
		halt:        make(chan struct{}),
	}
	s.state.Store(int32(SystemBooting))
	for i := range s.runtimes {
		s.runtimes[i] = newCoreRuntime()
	}
	s.panicFn = s.defaultPanic
	s.possible.Set(0)
	s.present.Set(0)
	s.online.Set(0)
	s.active.Set(0)
	return s
}

// Broker returns the trace broker carrying this system's diagnostic hooks.
func (s *System) Broker() *hooks.TraceBroker {
	if s == nil {
		return nil
	}
	return s.broker
}

// Backend returns the platform backend the system was built with.
func (s *System) Backend() backend.Backend {
	if s == nil {
		return nil
	}
	return s.backend
}

// State returns the current coarse system phase.
func (s *System) State() SystemState {
	return SystemState(s.state.Load())
}

// MarkRunning transitions the system out of the booting phase.
func (s *System) MarkRunning() {
	s.state.CompareAndSwap(int32(SystemBooting), int32(SystemRunning))
}

// markHalting records that the system is going down; stop diagnostics are
// suppressed from here on.
func (s *System) markHalting() {
	s.state.Store(int32(SystemHalting))
}

// Shutdown halts the simulation: parked and spinning core goroutines are
// released. Intended for the end of a run or a test.
func (s *System) Shutdown() {
	s.markHalting()
	s.haltOnce.Do(func() { close(s.halt) })
	if sb, ok := s.backend.(*backend.SimBackend); ok {
		sb.Shutdown()
	}
}

func (s *System) halted() bool {
	select {
	case <-s.halt:
		return true
	default:
		return false
	}
}

// CoreOnline reports whether the core is in the online set.
func (s *System) CoreOnline(cpu int) bool { return s.online.Test(cpu) }

// CorePossible reports whether the core is in the possible set.
func (s *System) CorePossible(cpu int) bool { return s.possible.Test(cpu) }

// CorePresent reports whether the core is in the present set.
func (s *System) CorePresent(cpu int) bool { return s.present.Test(cpu) }

// OnlineCores returns a snapshot of the online set.
func (s *System) OnlineCores() core.CoreSet { return s.online.Snapshot() }

// numOtherOnline counts online cores other than the given one.
func (s *System) numOtherOnline(cpu int) int {
	set := s.online.Snapshot()
	n := set.Count()
	if set.Test(cpu) {
		n--
	}
	return n
}

// numOtherActive counts active cores other than the given one.
func (s *System) numOtherActive(cpu int) int {
	set := s.active.Snapshot()
	n := set.Count()
	if set.Test(cpu) {
		n--
	}
	return n
}

func (s *System) setCoreOnline(cpu int, online bool) {
	if online {
		s.online.Set(cpu)
	} else {
		s.online.Clear(cpu)
	}
	s.broker.EmitLifecycle(&hooks.LifecycleContext{CPU: cpu, Online: online})
}

// defaultPanic is the total-system termination path: log at the highest
// severity and halt everything. main replaces it with one that exits the
// process; tests replace it with a recorder.
func (s *System) defaultPanic(format string, args ...any) {
	GetLogger().Critf("PANIC: "+format, args...)
	s.Shutdown()
}

// bugOn reports an unrecoverable internal defect.
func (s *System) bugOn(cond bool, format string, args ...any) {
	if cond {
		s.panicFn(format, args...)
	}
}

// SetPanicHandler replaces the total-system termination hook.
func (s *System) SetPanicHandler(fn func(format string, args ...any)) {
	if fn != nil {
		s.panicFn = fn
	}
}

// SetSchedulerIPI installs the scheduler's reschedule notification entry.
func (s *System) SetSchedulerIPI(fn func(cpu int)) { s.schedulerIPI = fn }

// SetCallFunctionHandler installs the generic call-function interrupt entry.
func (s *System) SetCallFunctionHandler(fn func(cpu int)) { s.callFunction = fn }

// SetTickReceive installs the broadcast timer tick entry.
func (s *System) SetTickReceive(fn func(cpu int)) { s.tickReceive = fn }

// SetDeferredWorkRunner installs the deferred-work execution entry.
func (s *System) SetDeferredWorkRunner(fn func(cpu int)) { s.deferredWork = fn }

// SetIRQMigrator installs the interrupt-affinity migration entry used when a
// core is being removed.
func (s *System) SetIRQMigrator(fn func(cpu int)) { s.irqMigrate = fn }

// SetCacheFlusher installs the cache maintenance entry used on the stop path.
func (s *System) SetCacheFlusher(fn func(cpu int)) { s.cacheFlush = fn }

// SetPreflight installs a hook standing in for the pre-handshake boot stub; a
// nonzero status parks the core before it ever reaches the handshake.
func (s *System) SetPreflight(fn func(cpu int) core.BootStatus) { s.preflight = fn }

// EnableTickBroadcast switches broadcast timer mode on or off; timer IPIs are
// only delivered to the tick handler while it is on.
func (s *System) EnableTickBroadcast(on bool) { s.tickBroadcastOn.Store(on) }

// currentRegs fabricates a register snapshot for the given core, standing in
// for the interrupted context a real interrupt would carry.
func (s *System) currentRegs(cpu int, note string) core.Regs {
	return core.Regs{
		PC:     0xffff000008080000 + uint64(cpu)<<4,
		SP:     idleStackTop(cpu),
		Pstate: 0x60000045,
		Note:   note,
	}
}

// parkLoop is the terminal low-power wait of a core that is never coming
// back. It only returns when the whole simulation halts.
func (s *System) parkLoop(cpu int) {
	<-s.halt
}

// idleLoop services a core's interrupt line until the core is taken down or
// the simulation halts. It stands in for the idle scheduling loop a freshly
// booted core falls into.
func (s *System) idleLoop(cpu int) {
	rt := s.runtimes[cpu]
	for {
		select {
		case ev := <-rt.inbox:
			if rt.irqsOn.Load() {
				s.HandleIPI(cpu, ev.msg, ev.regs)
			}
		case req := <-rt.ctl:
			if s.handleOffline(cpu, req) {
				return
			}
		case <-s.halt:
			return
		}
	}
}

// ServeBootCore starts interrupt servicing for the boot core on its own
// goroutine. The boot core never goes through bring-up, so nothing else
// would drain its interrupt line.
func (s *System) ServeBootCore() {
	rt := s.runtimes[0]
	rt.irqsOn.Store(true)
	go s.idleLoop(0)
}
