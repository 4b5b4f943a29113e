package backend

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// SimBackend is a simulated platform mechanism. Boot launches the injected
// secondary entry on a fresh goroutine, Die parks the calling goroutine until
// the backend shuts down, and Kill verifies the core really parked. Fault
// injection hooks let tests and demos exercise every failure branch of the
// lifecycle protocols.
type SimBackend struct {
	mu       sync.Mutex
	numCores int
	entry    func(cpu int)
	disabled map[Op]bool

	failInit    map[int]error
	failPrepare map[int]error
	refuseBoot  map[int]error
	silentBoot  map[int]bool
	vetoDisable map[int]error
	failKill    map[int]error

	parked []atomic.Bool
	halt   chan struct{}
	done   sync.Once
}

// NewSimBackend creates a simulated backend for numCores cores.
func NewSimBackend(numCores int) *SimBackend {
	return &SimBackend{
		numCores:    numCores,
		disabled:    make(map[Op]bool),
		failInit:    make(map[int]error),
		failPrepare: make(map[int]error),
		refuseBoot:  make(map[int]error),
		silentBoot:  make(map[int]bool),
		vetoDisable: make(map[int]error),
		failKill:    make(map[int]error),
		parked:      make([]atomic.Bool, numCores),
		halt:        make(chan struct{}),
	}
}

// SetEntry installs the secondary start entry point invoked by Boot. The
// orchestrator provides it after construction to avoid a dependency cycle
// between the backend and the lifecycle code.
func (b *SimBackend) SetEntry(entry func(cpu int)) {
	b.mu.Lock()
	b.entry = entry
	b.mu.Unlock()
}

// DisableOp removes an operation from the simulated capability set.
func (b *SimBackend) DisableOp(op Op) {
	b.mu.Lock()
	b.disabled[op] = true
	b.mu.Unlock()
}

// FailInit makes Init fail for the given core.
func (b *SimBackend) FailInit(cpu int, err error) { b.inject(b.failInit, cpu, err) }

// FailPrepare makes Prepare fail for the given core.
func (b *SimBackend) FailPrepare(cpu int, err error) { b.inject(b.failPrepare, cpu, err) }

// RefuseBoot makes Boot report immediate failure for the given core.
func (b *SimBackend) RefuseBoot(cpu int, err error) { b.inject(b.refuseBoot, cpu, err) }

// SilentBoot makes Boot report success without ever starting the core, which
// is how a bring-up timeout is provoked.
func (b *SimBackend) SilentBoot(cpu int) {
	b.mu.Lock()
	b.silentBoot[cpu] = true
	b.mu.Unlock()
}

// VetoDisable makes Disable veto removal of the given core.
func (b *SimBackend) VetoDisable(cpu int, err error) { b.inject(b.vetoDisable, cpu, err) }

// FailKill makes Kill fail for the given core.
func (b *SimBackend) FailKill(cpu int, err error) { b.inject(b.failKill, cpu, err) }

func (b *SimBackend) inject(m map[int]error, cpu int, err error) {
	b.mu.Lock()
	m[cpu] = err
	b.mu.Unlock()
}

// Shutdown releases every parked core goroutine. Only meaningful when the
// whole simulation is being torn down.
func (b *SimBackend) Shutdown() {
	b.done.Do(func() { close(b.halt) })
}

// Supports implements Backend.
func (b *SimBackend) Supports(cpu int, op Op) bool {
	if b == nil || cpu < 0 || cpu >= b.numCores {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.disabled[op]
}

// Init implements Backend.
func (b *SimBackend) Init(cpu int) error {
	if err := b.check(cpu, OpInit); err != nil {
		return err
	}
	b.mu.Lock()
	err := b.failInit[cpu]
	b.mu.Unlock()
	return err
}

// Prepare implements Backend.
func (b *SimBackend) Prepare(cpu int) error {
	if err := b.check(cpu, OpPrepare); err != nil {
		return err
	}
	b.mu.Lock()
	err := b.failPrepare[cpu]
	b.mu.Unlock()
	return err
}

// Boot implements Backend.
func (b *SimBackend) Boot(cpu int) error {
	if err := b.check(cpu, OpBoot); err != nil {
		return err
	}
	b.mu.Lock()
	if err := b.refuseBoot[cpu]; err != nil {
		b.mu.Unlock()
		return err
	}
	if b.silentBoot[cpu] {
		b.mu.Unlock()
		return nil
	}
	entry := b.entry
	b.mu.Unlock()
	if entry == nil {
		return fmt.Errorf("no secondary entry installed")
	}
	b.parked[cpu].Store(false)
	go entry(cpu)
	return nil
}

// PostBoot implements Backend.
func (b *SimBackend) PostBoot(cpu int) {}

// Disable implements Backend.
func (b *SimBackend) Disable(cpu int) error {
	if err := b.check(cpu, OpDisable); err != nil {
		return err
	}
	b.mu.Lock()
	err := b.vetoDisable[cpu]
	b.mu.Unlock()
	return err
}

// Die implements Backend. The calling goroutine parks until the backend shuts
// down; callers treat a return before shutdown as a contract violation.
func (b *SimBackend) Die(cpu int) error {
	if err := b.check(cpu, OpDie); err != nil {
		return err
	}
	b.parked[cpu].Store(true)
	<-b.halt
	return nil
}

// Kill implements Backend.
func (b *SimBackend) Kill(cpu int) error {
	if err := b.check(cpu, OpKill); err != nil {
		return err
	}
	b.mu.Lock()
	injected := b.failKill[cpu]
	b.mu.Unlock()
	if injected != nil {
		return injected
	}
	if !b.parked[cpu].Load() {
		return fmt.Errorf("core %d has not left kernel code", cpu)
	}
	return nil
}

func (b *SimBackend) check(cpu int, op Op) error {
	if cpu < 0 || cpu >= b.numCores {
		return fmt.Errorf("no such core %d", cpu)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.disabled[op] {
		return ErrUnsupported
	}
	return nil
}
