package memory

// Target is the OS process access layer. The accessor core is written
// against this contract; memory_windows and memory_linux provide the real
// implementations, tests provide an in-memory fake.
type Target interface {
	// Open opens a handle-scoped connection to the process. The mask must
	// match the operation about to run: AccessWrite requests full rights
	// (transfer plus protection changes), AccessRead requests read+query.
	Open(pid int, mask AccessMask) (Conn, error)

	// Modules enumerates the process's loaded modules. Every call reads
	// fresh from the OS; a module loaded or unloaded since the last call
	// is reflected immediately.
	Modules(pid int) ([]Module, error)

	// Alive reports whether the process still exists. Any lookup failure
	// means false, never an error.
	Alive(pid int) bool
}

// Conn is one open handle to a target process. It is owned exclusively for
// the duration of a single operation and must be closed before the
// operation returns, on every exit path.
type Conn interface {
	// ReadAt reads len(buf) bytes from addr. It returns the byte count the
	// OS reported, which can legitimately be zero on a nominal success.
	ReadAt(addr Address, buf []byte) (int, error)

	// WriteAt writes data at addr and returns the byte count transferred.
	// A partial transfer is an error.
	WriteAt(addr Address, data []byte) (int, error)

	// Protect changes the protection of [addr, addr+size) and returns the
	// previous protection, which the caller must pass back to restore the
	// range before closing the connection.
	Protect(addr Address, size Size, p Protection) (Protection, error)

	// Close releases the handle.
	Close() error
}
