package main

import (
	"sync"
	"time"

	"github.com/Readm/smp_sim/hooks"
)

type metricsCollector struct {
	mu             sync.Mutex
	interval       time.Duration
	raised         int
	dispatched     int
	lastReportTime time.Time
}

func newMetricsCollector(interval time.Duration) *metricsCollector {
	return &metricsCollector{
		interval:       interval,
		lastReportTime: time.Now(),
	}
}

func (m *metricsCollector) RecordRaise() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.raised++
	m.emitIfNeeded()
	m.mu.Unlock()
}

func (m *metricsCollector) RecordDispatch() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.dispatched++
	m.emitIfNeeded()
	m.mu.Unlock()
}

func (m *metricsCollector) emitIfNeeded() {
	now := time.Now()
	if now.Sub(m.lastReportTime) < m.interval {
		return
	}
	duration := now.Sub(m.lastReportTime).Seconds()
	rate := float64(m.dispatched)
	if duration > 0 {
		rate = rate / duration
	}
	GetLogger().Infof("IPI rate %.0f dispatches/s, %d raised", rate, m.raised)
	m.raised = 0
	m.dispatched = 0
	m.lastReportTime = now
}

// RegisterIPIMetrics activates the throughput collector as an instrumentation
// plugin on the registry.
func RegisterIPIMetrics(registry *hooks.Registry, interval time.Duration) error {
	collector := newMetricsCollector(interval)
	desc := hooks.PluginDescriptor{
		Name:        "ipi-metrics",
		Category:    hooks.PluginCategoryInstrumentation,
		Description: "periodic IPI raise/dispatch throughput reporting",
	}
	return registry.Register("ipi-metrics", desc, func(broker *hooks.TraceBroker) error {
		broker.RegisterIPIRaise(func(ctx *hooks.RaiseContext) { collector.RecordRaise() })
		broker.RegisterIPIExit(func(ctx *hooks.DispatchContext) { collector.RecordDispatch() })
		return nil
	})
}
