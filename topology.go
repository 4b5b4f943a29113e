package main

import (
	"fmt"

	"github.com/Readm/smp_sim/core"
)

// InitCores enumerates the possible core set from the platform description
// and builds the logical map of hardware ids. The description arrives with
// ids already resolved; this pass rejects malformed and duplicate entries,
// validates that the boot core appears exactly once, clips to the configured
// maximum, and asks the backend to accept each surviving core.
func (s *System) InitCores() error {
	platform := s.cfg.Platform
	if err := platform.Validate(); err != nil {
		return err
	}

	nrIDs := core.MaxCores
	if s.cfg.MaxCores > 0 && s.cfg.MaxCores < nrIDs {
		nrIDs = s.cfg.MaxCores
	}

	s.bootHWID = platform.Cores[0].HWID
	if platform.BootHWID != nil {
		s.bootHWID = *platform.BootHWID
	}
	s.logicalMap = core.NewLogicalMap(s.bootHWID)
	s.committedCaps = append([]string(nil), platform.Capabilities...)

	bootValid := false
	count := 1
	for _, desc := range platform.Cores {
		hwid := desc.HWID

		if hwid == core.InvalidHWID || hwid&^core.HWIDAffinityMask != 0 {
			GetLogger().Errorf("skipping CPU entry with invalid hardware id 0x%x", hwid)
			count++
			continue
		}

		// Duplicate ids are a recipe for disaster: ignore the later entry so
		// the first one keeps its logical index.
		if s.logicalMap.IsDuplicate(count, hwid) {
			GetLogger().Errorf("duplicate CPU hardware id 0x%x in platform description", hwid)
			count++
			continue
		}

		// The numbering scheme requires the boot core at logical id 0;
		// record that the description really contains it.
		if hwid == s.bootHWID {
			if bootValid {
				GetLogger().Errorf("duplicate boot CPU hardware id 0x%x in platform description", hwid)
				count++
				continue
			}
			bootValid = true
			s.applyCoreDesc(0, desc)
			continue
		}

		if count >= nrIDs {
			count++
			continue
		}

		GetLogger().Debugf("cpu logical map 0x%x", hwid)
		s.logicalMap.Assign(count, hwid)
		s.applyCoreDesc(count, desc)
		count++
	}

	if count > nrIDs {
		GetLogger().Warnf("Number of cores (%d) exceeds configured maximum of %d - clipping",
			count, nrIDs)
	}

	if !bootValid {
		GetLogger().Errorf("missing boot CPU hardware id, not enabling secondaries")
		return fmt.Errorf("platform %q: missing boot core entry", platform.Name)
	}

	// Let the backend accept each mapped core; a core it cannot manage loses
	// its map entry so nothing downstream can address it.
	for cpu := 1; cpu < nrIDs; cpu++ {
		if s.logicalMap.HWID(cpu) == core.InvalidHWID {
			continue
		}
		if err := s.backend.Init(cpu); err != nil {
			GetLogger().Errorf("CPU%d: backend rejected init: %v", cpu, err)
			s.logicalMap.Invalidate(cpu)
			continue
		}
		s.possible.Set(cpu)
	}
	s.nrCoreIDs = nrIDs
	return nil
}

// applyCoreDesc records per-core facts the secondary path verifies later.
func (s *System) applyCoreDesc(cpu int, desc CoreDesc) {
	s.runLevels[cpu] = desc.runLevel(s.cfg.Platform)
	if len(desc.MissingCaps) > 0 {
		s.missingCaps[cpu] = append([]string(nil), desc.MissingCaps...)
	}
}

// PrepareCores initializes the present map, the set of cores actually
// populated right now, by releasing each possible secondary to the backend's
// prepare step. A core the platform cannot prepare stays possible but absent.
func (s *System) PrepareCores() {
	s.possible.Snapshot().ForEach(func(cpu int) {
		if cpu == 0 {
			return
		}
		if err := s.backend.Prepare(cpu); err != nil {
			GetLogger().Warnf("CPU%d: backend prepare failed: %v", cpu, err)
			return
		}
		s.present.Set(cpu)
	})
}

// BootSecondaries brings up every present secondary in index order. Failures
// are scoped to the failing core and do not abort the rest.
func (s *System) BootSecondaries() {
	s.present.Snapshot().ForEach(func(cpu int) {
		if cpu == 0 {
			return
		}
		if err := s.BringUp(cpu, NewIdleTask(cpu)); err != nil {
			GetLogger().Errorf("%v", err)
		}
	})
}

// CoresDone logs the bring-up summary and the run-level consistency report
// once all secondaries have been given their chance.
func (s *System) CoresDone() {
	GetLogger().Infof("SMP: Total of %d processors activated.", s.online.Count())
	s.runLevelCheck()
	s.MarkRunning()
}

// runLevelCheck reports whether the online cores all started at the same
// privilege level. Mixed levels among cores that still came online taints
// the run but is survivable; the per-core fatal case was handled during
// bring-up.
func (s *System) runLevelCheck() {
	var normal, hyp int
	s.online.Snapshot().ForEach(func(cpu int) {
		if s.runLevels[cpu] == core.RunLevelHypervisor {
			hyp++
		} else {
			normal++
		}
	})
	switch {
	case hyp > 0 && normal == 0:
		GetLogger().Infof("CPU: All CPU(s) started at EL2")
	case hyp > 0:
		GetLogger().Warnf("CPU: CPUs started in inconsistent modes")
	default:
		GetLogger().Infof("CPU: All CPU(s) started at EL1")
	}
}

// DescribeCore renders a one-line lifecycle summary for diagnostics.
func (s *System) DescribeCore(cpu int) string {
	hwid := s.logicalMap.HWID(cpu)
	state := "unknown"
	switch {
	case s.online.Test(cpu) && s.active.Test(cpu):
		state = "online"
	case s.online.Test(cpu):
		state = "online,inactive"
	case s.present.Test(cpu):
		state = "present"
	case s.possible.Test(cpu):
		state = "possible"
	}
	if hwid == core.InvalidHWID {
		return fmt.Sprintf("CPU%d: hwid=invalid %s", cpu, state)
	}
	return fmt.Sprintf("CPU%d: hwid=0x%010x %s", cpu, hwid, state)
}
