package memory

import "errors"

var (
	// ErrNotBound is returned when an operation requiring a bound process
	// is attempted before Bind has succeeded.
	ErrNotBound = errors.New("process not bound")

	// ErrModuleNotFound is returned when a module name matches nothing in
	// the target's freshly enumerated module list. Callers must treat this
	// as a hard stop, never as a base address of zero.
	ErrModuleNotFound = errors.New("module not found")

	// ErrNothingTransferred is returned when a transfer nominally
	// succeeded but moved zero bytes; the decoded value would be garbage.
	ErrNothingTransferred = errors.New("zero bytes transferred")

	// ErrProtectionNotRestored is returned when the prior protection of a
	// written range could not be put back. The range is left in the
	// widened state.
	ErrProtectionNotRestored = errors.New("memory protection not restored")

	// ErrDecode is returned when transferred bytes cannot be decoded as
	// the requested value kind.
	ErrDecode = errors.New("decode failed")
)
