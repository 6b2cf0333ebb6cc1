//go:build linux

package memory_linux

import (
	"fmt"
	"unsafe"

	"memtap/memory"

	"golang.org/x/sys/unix"
)

// vmReadv uses the process_vm_readv syscall to read memory from another
// process into buf. It returns the byte count the kernel reported.
func vmReadv(pid int, addr memory.Address, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	localIov := unix.Iovec{
		Base: &buf[0],
		Len:  uint64(len(buf)),
	}
	remoteIov := unix.RemoteIovec{
		Base: uintptr(addr),
		Len:  len(buf),
	}

	n, _, errno := unix.Syscall6(
		unix.SYS_PROCESS_VM_READV,
		uintptr(pid),
		uintptr(unsafe.Pointer(&localIov)),
		uintptr(1),
		uintptr(unsafe.Pointer(&remoteIov)),
		uintptr(1),
		uintptr(0),
	)
	if errno != 0 {
		return 0, fmt.Errorf("process_vm_readv failed: %s (errno: %d)", errno.Error(), int(errno))
	}

	return int(n), nil
}

// vmWritev uses the process_vm_writev syscall to write data into another
// process. The errno is returned alongside the error so callers can pick a
// fallback path for protection faults.
func vmWritev(pid int, addr memory.Address, data []byte) (int, unix.Errno, error) {
	if len(data) == 0 {
		return 0, 0, nil
	}

	localIov := unix.Iovec{
		Base: &data[0],
		Len:  uint64(len(data)),
	}
	remoteIov := unix.RemoteIovec{
		Base: uintptr(addr),
		Len:  len(data),
	}

	n, _, errno := unix.Syscall6(
		unix.SYS_PROCESS_VM_WRITEV,
		uintptr(pid),
		uintptr(unsafe.Pointer(&localIov)),
		uintptr(1),
		uintptr(unsafe.Pointer(&remoteIov)),
		uintptr(1),
		uintptr(0),
	)
	if errno != 0 {
		return 0, errno, fmt.Errorf("process_vm_writev failed: %s (errno: %d)", errno.Error(), int(errno))
	}

	return int(n), 0, nil
}
