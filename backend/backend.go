// Package backend defines the per-platform core power and execution control
// capability consumed by the lifecycle subsystem. One implementation is
// selected for the whole system at startup; operations a platform cannot
// provide return ErrUnsupported so callers have a single uniform failure path
// instead of nil-method checks.
package backend

import "errors"

// ErrUnsupported reports that the platform does not implement the requested
// operation. It is distinguishable from an operation that was attempted and
// failed.
var ErrUnsupported = errors.New("operation not supported by this backend")

// IsUnsupported reports whether err means the backend lacks the operation.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported)
}

// Op identifies one operation of the capability set, used to probe support
// without invoking the operation.
type Op int

const (
	OpInit Op = iota
	OpPrepare
	OpBoot
	OpPostBoot
	OpDisable
	OpDie
	OpKill
)

// Backend exposes the platform mechanism that parks, boots, and kills a
// physical core. The lifecycle subsystem only orchestrates calls to this
// interface; it never implements hardware bring-up itself.
type Backend interface {
	// Supports reports whether the platform implements op for the given core.
	// Callers use it where the mere absence of an operation changes the
	// protocol (no die capability means hot removal is rejected up front).
	Supports(cpu int, op Op) bool

	// Init validates that the platform can manage the core at all. Success
	// makes the core "possible".
	Init(cpu int) error

	// Prepare readies the core for a later boot. Success makes the core
	// "present".
	Prepare(cpu int) error

	// Boot releases the core so it enters the secondary start path. An error
	// here means the attempt failed immediately and no completion wait should
	// follow. A platform without a boot operation returns ErrUnsupported.
	Boot(cpu int) error

	// PostBoot runs on the newly started core itself, best effort.
	PostBoot(cpu int)

	// Disable may veto removal of the core for a mechanism-specific reason.
	Disable(cpu int) error

	// Die parks the calling core. When supported it must never return; the
	// core is leaving, not continuing.
	Die(cpu int) error

	// Kill confirms from outside that a dead core has really left kernel
	// code. ErrUnsupported means there is no way to verify, which callers
	// treat as "assume success".
	Kill(cpu int) error
}
