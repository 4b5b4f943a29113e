package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/Readm/smp_sim/backend"
)

// testPlatform builds an n-core platform description with sequential ids.
func testPlatform(n int) *PlatformConfig {
	p := &PlatformConfig{
		Name:         "test",
		EnableMethod: "sim-psci",
		Capabilities: []string{"fp", "asimd"},
	}
	for i := 0; i < n; i++ {
		p.Cores = append(p.Cores, CoreDesc{HWID: uint64(i)})
	}
	return p
}

// panicRecorder captures total-system termination requests.
type panicRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *panicRecorder) record(format string, args ...any) {
	r.mu.Lock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

func (r *panicRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *panicRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// newTestSystem wires a simulated system with short protocol budgets. The
// caller still decides whether to boot the secondaries.
func newTestSystem(platform *PlatformConfig) (*System, *backend.SimBackend, *panicRecorder) {
	cfg := &Config{
		Platform:       platform,
		BringUpTimeout: 200 * time.Millisecond,
		DeathTimeout:   200 * time.Millisecond,
		StopWait:       200 * time.Millisecond,
		BacktraceWait:  500 * time.Millisecond,
	}
	be := backend.NewSimBackend(len(platform.Cores))
	sys := NewSystem(cfg, be)
	rec := &panicRecorder{}
	sys.SetPanicHandler(rec.record)
	sys.SetCrossCall(sys.DeliverInterrupts)
	be.SetEntry(sys.secondaryStartKernel)
	return sys, be, rec
}

// bootTestSystem additionally enumerates, prepares, and boots every core.
func bootTestSystem(platform *PlatformConfig) (*System, *backend.SimBackend, *panicRecorder, error) {
	sys, be, rec := newTestSystem(platform)
	if err := sys.InitCores(); err != nil {
		return sys, be, rec, err
	}
	sys.ServeBootCore()
	sys.PrepareCores()
	sys.BootSecondaries()
	return sys, be, rec, nil
}

// waitFor polls cond for up to d.
func waitFor(d time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}
