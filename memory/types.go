package memory

import (
	"fmt"
)

// Address represents a virtual address within a target process
type Address uint64

func (a Address) ToString() string {
	return fmt.Sprintf("0x%X", uint64(a))
}

// Size represents a size of a memory transfer or region
type Size uint

func (s Size) ToString() string {
	return fmt.Sprintf("%d bytes", uint(s))
}

// Module describes one executable or shared library image loaded into a
// target process's address space.
type Module struct {
	Name string  // image name, matched case-insensitively
	Base Address // base virtual address the image is mapped at
}

func (m Module) String() string {
	return fmt.Sprintf("%s @ %s", m.Name, m.Base.ToString())
}

// AccessMask selects the rights a handle is opened with. Writes need the
// full mask (transfer plus protection changes), reads need read+query only.
type AccessMask uint32

const (
	AccessRead AccessMask = 1 << iota
	AccessWrite
)

// Protection carries OS protection flags for a memory range. Values other
// than ProtExecuteReadWrite are opaque tokens captured by a Conn's Protect
// call and are only meaningful when passed back to the same Conn.
type Protection uint32

// ProtExecuteReadWrite is the one portable protection request: widen a
// range so it can be written regardless of what it was mapped as. The
// encoding matches PAGE_EXECUTE_READWRITE so the Windows target can pass
// values through unchanged.
const ProtExecuteReadWrite Protection = 0x40

func (p Protection) ToString() string {
	return fmt.Sprintf("0x%X", uint32(p))
}

// Ref names a location in the target process: either an absolute address,
// or a signed offset from a named module's base, resolved at access time.
type Ref struct {
	Addr   Address
	Module string // empty means Addr is absolute
	Offset int64
}

// Absolute refers to a fixed virtual address.
func Absolute(addr Address) Ref {
	return Ref{Addr: addr}
}

// InModule refers to base(name) + offset, resolved against a fresh module
// enumeration when the access runs.
func InModule(name string, offset int64) Ref {
	return Ref{Module: name, Offset: offset}
}

func (r Ref) String() string {
	if r.Module == "" {
		return r.Addr.ToString()
	}
	if r.Offset < 0 {
		return fmt.Sprintf("%s-0x%X", r.Module, uint64(-r.Offset))
	}
	return fmt.Sprintf("%s+0x%X", r.Module, uint64(r.Offset))
}
