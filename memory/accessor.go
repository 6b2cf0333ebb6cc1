package memory

import (
	"fmt"
	"sync"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Accessor binds one target process and performs typed reads and writes
// against it. Every operation opens its own handle via the Target, runs
// one blocking transfer, and closes the handle before returning; the only
// state held across calls is the binding itself. Bind is not safe to call
// concurrently with itself on the same Accessor without outside
// synchronization.
type Accessor struct {
	target Target
	mu     sync.Mutex
	pid    int
	bound  bool
	log    *logger.Logger
}

// New creates an Accessor over the given OS access layer.
func New(target Target) *Accessor {
	return &Accessor{
		target: target,
		log:    logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-bound")),
	}
}

// Bind associates the accessor with a process ID. Binding is idempotent:
// once bound, further calls are no-ops, not rebinds, even for a different
// PID.
func (a *Accessor) Bind(pid int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.bound {
		a.log.Debugln("Bind ignored, already bound to", a.pid)
		return nil
	}

	if !a.target.Alive(pid) {
		return fmt.Errorf("bind pid %d: process does not exist", pid)
	}

	a.pid = pid
	a.bound = true
	a.log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid)))
	a.log.Infoln("Process bound")

	return nil
}

// PID returns the bound process ID, zero when unbound.
func (a *Accessor) PID() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pid
}

// IsRunning reports whether the bound process still exists. An unbound
// accessor and any OS lookup failure both report false.
func (a *Accessor) IsRunning() bool {
	a.mu.Lock()
	pid, bound := a.pid, a.bound
	a.mu.Unlock()

	if !bound {
		return false
	}
	return a.target.Alive(pid)
}

// ResolveModule returns the base address of a loaded module, matched
// case-insensitively against a fresh enumeration of the bound process's
// module list.
func (a *Accessor) ResolveModule(name string) (Address, error) {
	a.mu.Lock()
	pid, bound := a.pid, a.bound
	a.mu.Unlock()

	if !bound {
		return 0, ErrNotBound
	}
	return a.resolveModule(pid, name)
}

// Modules returns a fresh enumeration of the bound process's loaded
// modules.
func (a *Accessor) Modules() ([]Module, error) {
	a.mu.Lock()
	pid, bound := a.pid, a.bound
	a.mu.Unlock()

	if !bound {
		return nil, ErrNotBound
	}
	return a.target.Modules(pid)
}

func (a *Accessor) resolveModule(pid int, name string) (Address, error) {
	mods, err := a.target.Modules(pid)
	if err != nil {
		return 0, fmt.Errorf("enumerate modules of pid %d: %w", pid, err)
	}
	m, ok := FindModule(mods, name)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrModuleNotFound, name)
	}
	return m.Base, nil
}

// access opens a handle with the given mask, resolves ref to a final
// address, and runs fn. The handle is released on every exit path,
// including resolve failures and panics out of fn.
func (a *Accessor) access(mask AccessMask, ref Ref, fn func(conn Conn, addr Address) (int, error)) (int, error) {
	a.mu.Lock()
	pid, bound, log := a.pid, a.bound, a.log
	a.mu.Unlock()

	if !bound {
		return 0, ErrNotBound
	}

	conn, err := a.target.Open(pid, mask)
	if err != nil {
		return 0, fmt.Errorf("open pid %d: %w", pid, err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Warn("Close failed: ", cerr)
		}
	}()

	addr := ref.Addr
	if ref.Module != "" {
		base, err := a.resolveModule(pid, ref.Module)
		if err != nil {
			return 0, err
		}
		addr = Address(int64(base) + ref.Offset)
	}

	return fn(conn, addr)
}

// readRange transfers len(buf) bytes from ref into buf with read+query
// rights and returns the byte count the OS reported.
func (a *Accessor) readRange(ref Ref, buf []byte) (int, error) {
	return a.access(AccessRead, ref, func(conn Conn, addr Address) (int, error) {
		n, err := conn.ReadAt(addr, buf)
		if err != nil {
			return n, fmt.Errorf("read %d bytes at %s: %w", len(buf), addr.ToString(), err)
		}
		a.log.Debugln("Read", n, "bytes at", addr.ToString())
		return n, nil
	})
}

// writeRange transfers buf to ref with full rights, widening the range's
// protection for the duration of the transfer. The captured prior
// protection is restored before the handle closes whether or not the
// transfer succeeded; a failed restore surfaces as
// ErrProtectionNotRestored.
func (a *Accessor) writeRange(ref Ref, buf []byte) error {
	_, err := a.access(AccessWrite, ref, func(conn Conn, addr Address) (int, error) {
		prev, err := conn.Protect(addr, Size(len(buf)), ProtExecuteReadWrite)
		if err != nil {
			return 0, fmt.Errorf("widen protection at %s: %w", addr.ToString(), err)
		}

		n, werr := conn.WriteAt(addr, buf)

		if _, rerr := conn.Protect(addr, Size(len(buf)), prev); rerr != nil {
			if werr != nil {
				return n, fmt.Errorf("%w: %v (after write failure: %v)", ErrProtectionNotRestored, rerr, werr)
			}
			return n, fmt.Errorf("%w: %v", ErrProtectionNotRestored, rerr)
		}

		if werr != nil {
			return n, fmt.Errorf("write %d bytes at %s: %w", len(buf), addr.ToString(), werr)
		}
		a.log.Debugln("Wrote", n, "bytes at", addr.ToString())
		return n, nil
	})
	return err
}

// ReadValue reads one value of the codec's kind from ref.
func ReadValue[T any](a *Accessor, ref Ref, c Codec[T]) (T, error) {
	var zero T
	buf := make([]byte, c.Size())
	n, err := a.readRange(ref, buf)
	if err != nil {
		return zero, err
	}
	return c.Decode(buf, n)
}

// WriteValue encodes v into a codec-sized buffer and writes it at ref. The
// encoded prefix is followed by the buffer's zero-filled tail.
func WriteValue[T any](a *Accessor, ref Ref, v T, c Codec[T]) error {
	buf := make([]byte, c.Size())
	if err := c.Encode(v, buf); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return a.writeRange(ref, buf)
}

// ReadBytes reads size raw bytes from ref. A partial transfer is an error.
func (a *Accessor) ReadBytes(ref Ref, size Size) ([]byte, error) {
	buf := make([]byte, size)
	n, err := a.readRange(ref, buf)
	if err != nil {
		return nil, err
	}
	if n != int(size) {
		return nil, fmt.Errorf("read incomplete: expected %d, got %d", size, n)
	}
	return buf, nil
}

// WriteBytes writes raw bytes at ref under the widen/transfer/restore
// sequence used by every typed write.
func (a *Accessor) WriteBytes(ref Ref, data []byte) error {
	return a.writeRange(ref, data)
}

// ReadString reads up to StringReadSize bytes at ref and decodes them as
// UTF-8, trimmed at the first NUL byte.
func (a *Accessor) ReadString(ref Ref) (string, error) {
	return ReadValue(a, ref, StringCodec{Cap: StringReadSize})
}

// WriteString encodes text as ASCII into a size-byte buffer and writes the
// whole buffer; the zero tail terminates the string in place.
func (a *Accessor) WriteString(ref Ref, text string, size Size) error {
	return WriteValue(a, ref, text, StringCodec{Cap: size})
}

func (a *Accessor) ReadInt32(ref Ref) (int32, error) {
	return ReadValue(a, ref, Int32Codec{})
}

func (a *Accessor) WriteInt32(ref Ref, v int32) error {
	return WriteValue(a, ref, v, Int32Codec{})
}

// ReadBool reads an int32 at ref; any nonzero value is true.
func (a *Accessor) ReadBool(ref Ref) (bool, error) {
	return ReadValue(a, ref, BoolCodec{})
}

func (a *Accessor) WriteBool(ref Ref, v bool) error {
	return WriteValue(a, ref, v, BoolCodec{})
}

func (a *Accessor) ReadFloat32(ref Ref) (float32, error) {
	return ReadValue(a, ref, Float32Codec{})
}

func (a *Accessor) WriteFloat32(ref Ref, v float32) error {
	return WriteValue(a, ref, v, Float32Codec{})
}

func (a *Accessor) ReadFloat64(ref Ref) (float64, error) {
	return ReadValue(a, ref, Float64Codec{})
}

func (a *Accessor) WriteFloat64(ref Ref, v float64) error {
	return WriteValue(a, ref, v, Float64Codec{})
}
