//go:build windows

package memory_windows

import (
	"fmt"
	"syscall"
	"unsafe"

	"memtap/memory"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

var (
	modkernel32            = syscall.NewLazyDLL("kernel32.dll")
	procOpenProcess        = modkernel32.NewProc("OpenProcess")
	procReadProcessMemory  = modkernel32.NewProc("ReadProcessMemory")
	procWriteProcessMemory = modkernel32.NewProc("WriteProcessMemory")
	procVirtualProtectEx   = modkernel32.NewProc("VirtualProtectEx")
	procCloseHandle        = modkernel32.NewProc("CloseHandle")
)

const (
	PROCESS_ALL_ACCESS        = 0x1F0FFF
	PROCESS_VM_READ           = 0x0010
	PROCESS_QUERY_INFORMATION = 0x0400
)

// WindowsTarget implements the memory.Target contract over the kernel32
// process APIs.
type WindowsTarget struct {
	log *logger.Logger
}

// New creates a WindowsTarget.
func New() memory.Target {
	return &WindowsTarget{
		log: logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "target-windows")),
	}
}

// Open opens a process handle whose rights match the operation: full
// access for writes (transfer plus VirtualProtectEx), read+query for
// reads.
func (t *WindowsTarget) Open(pid int, mask memory.AccessMask) (memory.Conn, error) {
	rights := uintptr(PROCESS_VM_READ | PROCESS_QUERY_INFORMATION)
	if mask&memory.AccessWrite != 0 {
		rights = PROCESS_ALL_ACCESS
	}

	handle, _, err := procOpenProcess.Call(rights, 0, uintptr(pid))
	if handle == 0 {
		return nil, fmt.Errorf("OpenProcess failed: %v", err)
	}

	t.log.Debugln("Opened pid", pid, "with rights", fmt.Sprintf("0x%X", rights))
	return &conn{handle: syscall.Handle(handle)}, nil
}

// conn is one open process handle.
type conn struct {
	handle syscall.Handle
}

func (c *conn) ReadAt(addr memory.Address, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	var bytesRead uintptr
	ret, _, err := procReadProcessMemory.Call(
		uintptr(c.handle),
		uintptr(addr),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
		uintptr(unsafe.Pointer(&bytesRead)),
	)
	if ret == 0 {
		return 0, fmt.Errorf("ReadProcessMemory failed: %v", err)
	}

	return int(bytesRead), nil
}

func (c *conn) WriteAt(addr memory.Address, data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}

	var bytesWritten uintptr
	ret, _, err := procWriteProcessMemory.Call(
		uintptr(c.handle),
		uintptr(addr),
		uintptr(unsafe.Pointer(&data[0])),
		uintptr(len(data)),
		uintptr(unsafe.Pointer(&bytesWritten)),
	)
	if ret == 0 {
		return int(bytesWritten), fmt.Errorf("WriteProcessMemory failed: %v", err)
	}
	if bytesWritten != uintptr(len(data)) {
		return int(bytesWritten), fmt.Errorf("write incomplete: expected %d, got %d", len(data), bytesWritten)
	}

	return int(bytesWritten), nil
}

// Protect changes the protection of the range and returns the previous
// flags verbatim, so a later call with that value restores the range.
func (c *conn) Protect(addr memory.Address, size memory.Size, p memory.Protection) (memory.Protection, error) {
	var oldProtect uint32
	ret, _, err := procVirtualProtectEx.Call(
		uintptr(c.handle),
		uintptr(addr),
		uintptr(size),
		uintptr(p),
		uintptr(unsafe.Pointer(&oldProtect)),
	)
	if ret == 0 {
		return 0, fmt.Errorf("VirtualProtectEx failed: %v", err)
	}

	return memory.Protection(oldProtect), nil
}

func (c *conn) Close() error {
	if c.handle == 0 {
		return nil
	}

	ret, _, err := procCloseHandle.Call(uintptr(c.handle))
	if ret == 0 {
		return fmt.Errorf("CloseHandle failed: %v", err)
	}
	c.handle = 0

	return nil
}
