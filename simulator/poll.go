package simulator

import "time"

// PollUntil repeatedly evaluates cond until it returns true or the budget is
// exhausted, sleeping quantum between checks. It reports whether cond became
// true. Diagnostic paths use this instead of blocking waits because they must
// make progress even when ordinary scheduling or wake primitives cannot be
// trusted.
func PollUntil(budget, quantum time.Duration, cond func() bool) bool {
	if cond == nil {
		return false
	}
	if quantum <= 0 {
		quantum = time.Millisecond
	}
	deadline := time.Now().Add(budget)
	for {
		if cond() {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		remaining := time.Until(deadline)
		if remaining < quantum {
			time.Sleep(remaining)
		} else {
			time.Sleep(quantum)
		}
	}
}
