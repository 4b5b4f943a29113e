package core

import (
	"fmt"
	"math/bits"
	"strings"
	"sync/atomic"
)

// MaxCores bounds the number of logical cores the system can track. A single
// 64-bit word keeps every mask operation a plain atomic access.
const MaxCores = 64

// CoreSet is a fixed-size bitmask over logical core indices. The zero value is
// the empty set.
type CoreSet struct {
	bits uint64
}

// Set adds a core to the set. Out-of-range indices are ignored.
func (s *CoreSet) Set(cpu int) {
	if cpu < 0 || cpu >= MaxCores {
		return
	}
	s.bits |= 1 << uint(cpu)
}

// Clear removes a core from the set.
func (s *CoreSet) Clear(cpu int) {
	if cpu < 0 || cpu >= MaxCores {
		return
	}
	s.bits &^= 1 << uint(cpu)
}

// Test reports whether the core is in the set.
func (s CoreSet) Test(cpu int) bool {
	if cpu < 0 || cpu >= MaxCores {
		return false
	}
	return s.bits&(1<<uint(cpu)) != 0
}

// Empty reports whether no cores are in the set.
func (s CoreSet) Empty() bool {
	return s.bits == 0
}

// Count returns the number of cores in the set.
func (s CoreSet) Count() int {
	return bits.OnesCount64(s.bits)
}

// ForEach calls fn for every core in the set in ascending index order.
func (s CoreSet) ForEach(fn func(cpu int)) {
	if fn == nil {
		return
	}
	for w := s.bits; w != 0; w &= w - 1 {
		fn(bits.TrailingZeros64(w))
	}
}

// String renders the set as a comma-separated index list, e.g. "0-1,3".
func (s CoreSet) String() string {
	if s.bits == 0 {
		return "none"
	}
	var parts []string
	start, prev := -1, -2
	flush := func() {
		if start < 0 {
			return
		}
		if start == prev {
			parts = append(parts, fmt.Sprintf("%d", start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, prev))
		}
	}
	s.ForEach(func(cpu int) {
		if cpu != prev+1 {
			flush()
			start = cpu
		}
		prev = cpu
	})
	flush()
	return strings.Join(parts, ",")
}

// AtomicSet is a CoreSet safe for concurrent single-bit updates and snapshot
// reads. Each core owns its own bit on hot paths, so plain atomic or/and-not
// operations are sufficient.
type AtomicSet struct {
	bits atomic.Uint64
}

// Set atomically adds a core to the set.
func (s *AtomicSet) Set(cpu int) {
	if cpu < 0 || cpu >= MaxCores {
		return
	}
	mask := uint64(1) << uint(cpu)
	for {
		old := s.bits.Load()
		if old&mask != 0 || s.bits.CompareAndSwap(old, old|mask) {
			return
		}
	}
}

// Clear atomically removes a core from the set.
func (s *AtomicSet) Clear(cpu int) {
	if cpu < 0 || cpu >= MaxCores {
		return
	}
	mask := uint64(1) << uint(cpu)
	for {
		old := s.bits.Load()
		if old&mask == 0 || s.bits.CompareAndSwap(old, old&^mask) {
			return
		}
	}
}

// Test reports whether the core is currently in the set.
func (s *AtomicSet) Test(cpu int) bool {
	if cpu < 0 || cpu >= MaxCores {
		return false
	}
	return s.bits.Load()&(1<<uint(cpu)) != 0
}

// Count returns the current number of cores in the set.
func (s *AtomicSet) Count() int {
	return bits.OnesCount64(s.bits.Load())
}

// Empty reports whether the set is currently empty.
func (s *AtomicSet) Empty() bool {
	return s.bits.Load() == 0
}

// Snapshot returns a point-in-time copy of the set.
func (s *AtomicSet) Snapshot() CoreSet {
	return CoreSet{bits: s.bits.Load()}
}

// CopyFrom atomically replaces the contents with the given set.
func (s *AtomicSet) CopyFrom(other CoreSet) {
	s.bits.Store(other.bits)
}
