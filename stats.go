package main

import (
	"fmt"
	"os"

	"github.com/Readm/smp_sim/core"
)

// CoreStat is one core's lifecycle and delivery summary.
type CoreStat struct {
	CPU       int
	HWID      uint64
	State     string
	TotalIPIs uint64
}

// SystemStats aggregates the diagnostic counters of a run.
type SystemStats struct {
	Possible int
	Present  int
	Online   int
	Active   int
	Stuck    int
	PerCore  []CoreStat
}

// CollectStats snapshots the lifecycle masks and delivery counters.
func (s *System) CollectStats() *SystemStats {
	if s == nil {
		return nil
	}
	stats := &SystemStats{
		Possible: s.possible.Count(),
		Present:  s.present.Count(),
		Online:   s.online.Count(),
		Active:   s.active.Count(),
		Stuck:    s.StuckCores(),
	}
	s.possible.Snapshot().ForEach(func(cpu int) {
		hwid := uint64(core.InvalidHWID)
		if s.logicalMap != nil {
			hwid = s.logicalMap.HWID(cpu)
		}
		stats.PerCore = append(stats.PerCore, CoreStat{
			CPU:       cpu,
			HWID:      hwid,
			State:     s.DescribeCore(cpu),
			TotalIPIs: s.IRQStatCPU(cpu),
		})
	})
	return stats
}

// PrintStats renders collected statistics for a human.
func PrintStats(s *System, stats *SystemStats) {
	if stats == nil {
		fmt.Println("No stats available")
		return
	}
	fmt.Println("=== Core Lifecycle ===")
	fmt.Printf("Possible: %d, Present: %d, Online: %d, Active: %d, Stuck: %d\n",
		stats.Possible, stats.Present, stats.Online, stats.Active, stats.Stuck)

	fmt.Println()
	fmt.Println("=== Per-Core ===")
	for _, st := range stats.PerCore {
		fmt.Printf("%s, TotalIPIs=%d\n", st.State, st.TotalIPIs)
	}

	fmt.Println()
	fmt.Println("=== IPI Delivery ===")
	if s != nil {
		s.ShowIPIList(os.Stdout)
	}
}
