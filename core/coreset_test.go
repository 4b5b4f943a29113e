package core

import (
	"sync"
	"testing"
)

func TestCoreSetBasics(t *testing.T) {
	var s CoreSet
	if !s.Empty() {
		t.Fatalf("zero value not empty")
	}

	s.Set(0)
	s.Set(3)
	s.Set(63)
	if s.Count() != 3 {
		t.Fatalf("count = %d, want 3", s.Count())
	}
	if !s.Test(3) || s.Test(2) {
		t.Fatalf("membership wrong after set")
	}

	s.Clear(3)
	if s.Test(3) || s.Count() != 2 {
		t.Fatalf("membership wrong after clear")
	}
}

func TestCoreSetOutOfRangeIgnored(t *testing.T) {
	var s CoreSet
	s.Set(-1)
	s.Set(64)
	s.Clear(-1)
	if !s.Empty() {
		t.Fatalf("out-of-range indices mutated the set")
	}
	if s.Test(-1) || s.Test(64) {
		t.Fatalf("out-of-range indices reported present")
	}
}

func TestCoreSetForEachOrder(t *testing.T) {
	var s CoreSet
	for _, cpu := range []int{5, 1, 40} {
		s.Set(cpu)
	}
	var got []int
	s.ForEach(func(cpu int) { got = append(got, cpu) })
	want := []int{1, 5, 40}
	if len(got) != len(want) {
		t.Fatalf("visited %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("visited %v, want %v", got, want)
		}
	}
	s.ForEach(nil)
}

func TestCoreSetString(t *testing.T) {
	cases := []struct {
		cpus []int
		want string
	}{
		{nil, "none"},
		{[]int{2}, "2"},
		{[]int{0, 1, 2}, "0-2"},
		{[]int{0, 1, 3, 6, 7}, "0-1,3,6-7"},
	}
	for _, tc := range cases {
		var s CoreSet
		for _, cpu := range tc.cpus {
			s.Set(cpu)
		}
		if got := s.String(); got != tc.want {
			t.Fatalf("String(%v) = %q, want %q", tc.cpus, got, tc.want)
		}
	}
}

func TestAtomicSetSnapshot(t *testing.T) {
	var s AtomicSet
	s.Set(1)
	s.Set(2)
	snap := s.Snapshot()
	s.Clear(1)

	if !snap.Test(1) {
		t.Fatalf("snapshot tracked later mutation")
	}
	if s.Test(1) {
		t.Fatalf("clear did not stick")
	}
	if s.Count() != 1 || s.Empty() {
		t.Fatalf("unexpected contents: %s", s.Snapshot())
	}

	var other CoreSet
	other.Set(9)
	s.CopyFrom(other)
	if !s.Test(9) || s.Count() != 1 {
		t.Fatalf("CopyFrom lost contents: %s", s.Snapshot())
	}
}

func TestAtomicSetConcurrentOwnership(t *testing.T) {
	var s AtomicSet
	var wg sync.WaitGroup
	for cpu := 0; cpu < MaxCores; cpu++ {
		wg.Add(1)
		go func(cpu int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.Set(cpu)
				s.Clear(cpu)
			}
			s.Set(cpu)
		}(cpu)
	}
	wg.Wait()
	if s.Count() != MaxCores {
		t.Fatalf("count = %d after concurrent per-bit updates, want %d", s.Count(), MaxCores)
	}
}
