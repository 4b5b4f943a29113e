package core

// InvalidHWID marks a logical map entry that has not been resolved to a
// hardware affinity identifier. Platform descriptions never carry this value,
// so initializing every slot to it means stale slots can never match a probe.
const InvalidHWID uint64 = ^uint64(0)

// HWIDAffinityMask selects the affinity bits of a hardware identifier; a
// description entry with bits outside the mask is malformed.
const HWIDAffinityMask uint64 = 0x000000ff00ffffff

// LogicalMap maps logical core indices to hardware affinity identifiers.
// Index 0 is always the boot core. The map is populated once during topology
// enumeration and read-only afterwards.
type LogicalMap struct {
	hwid [MaxCores]uint64
}

// NewLogicalMap returns a map with every entry invalid except the boot core,
// which is assigned the provided hardware id.
func NewLogicalMap(bootHWID uint64) *LogicalMap {
	m := &LogicalMap{}
	for i := range m.hwid {
		m.hwid[i] = InvalidHWID
	}
	m.hwid[0] = bootHWID
	return m
}

// HWID returns the hardware id mapped to the logical core, or InvalidHWID.
func (m *LogicalMap) HWID(cpu int) uint64 {
	if m == nil || cpu < 0 || cpu >= MaxCores {
		return InvalidHWID
	}
	return m.hwid[cpu]
}

// Assign records the hardware id for a logical core.
func (m *LogicalMap) Assign(cpu int, hwid uint64) {
	if m == nil || cpu < 0 || cpu >= MaxCores {
		return
	}
	m.hwid[cpu] = hwid
}

// Invalidate clears the mapping for a logical core, e.g. after its backend
// setup failed.
func (m *LogicalMap) Invalidate(cpu int) {
	m.Assign(cpu, InvalidHWID)
}

// IsDuplicate reports whether hwid already appears in a secondary slot below
// limit. Slot 0 is intentionally excluded: the boot core's id is matched
// separately so it can be validated exactly once.
func (m *LogicalMap) IsDuplicate(limit int, hwid uint64) bool {
	if m == nil {
		return false
	}
	if limit > MaxCores {
		limit = MaxCores
	}
	for i := 1; i < limit; i++ {
		if m.hwid[i] == hwid {
			return true
		}
	}
	return false
}
