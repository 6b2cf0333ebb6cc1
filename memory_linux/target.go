//go:build linux

package memory_linux

import (
	"fmt"
	"os"

	"memtap/memory"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"

	"golang.org/x/sys/unix"
)

// LinuxTarget implements the memory.Target contract over process_vm_readv,
// process_vm_writev and /proc.
type LinuxTarget struct {
	log *logger.Logger
}

// New creates a LinuxTarget.
func New() memory.Target {
	return &LinuxTarget{
		log: logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "target-linux")),
	}
}

// Open checks the process exists and returns a connection scoped to one
// operation. Linux has no per-handle access rights; the mask only decides
// whether the /proc/<pid>/mem write fallback may be used.
func (t *LinuxTarget) Open(pid int, mask memory.AccessMask) (memory.Conn, error) {
	if _, err := os.Stat(fmt.Sprintf("/proc/%d", pid)); err != nil {
		return nil, fmt.Errorf("process %d does not exist: %w", pid, err)
	}

	t.log.Debugln("Opened pid", pid)
	return &conn{pid: pid, writable: mask&memory.AccessWrite != 0}, nil
}

// Modules parses /proc/<pid>/maps fresh on every call.
func (t *LinuxTarget) Modules(pid int) ([]memory.Module, error) {
	regions, err := readMaps(pid)
	if err != nil {
		return nil, fmt.Errorf("read maps of pid %d: %w", pid, err)
	}
	return modulesFromRegions(regions), nil
}

// Alive stats /proc/<pid>; any failure counts as not running.
func (t *LinuxTarget) Alive(pid int) bool {
	_, err := os.Stat(fmt.Sprintf("/proc/%d", pid))
	return err == nil
}

// conn scopes one operation against a PID. The mem file backs the write
// fallback and is opened lazily on first use.
type conn struct {
	pid      int
	writable bool
	mem      *os.File
}

func (c *conn) ReadAt(addr memory.Address, buf []byte) (int, error) {
	return vmReadv(c.pid, addr, buf)
}

// WriteAt tries process_vm_writev first. When the kernel refuses because
// the page is not writable in the target, it falls back to
// /proc/<pid>/mem, which writes through page protection.
func (c *conn) WriteAt(addr memory.Address, data []byte) (int, error) {
	n, errno, err := vmWritev(c.pid, addr, data)
	if err != nil {
		if !c.writable || !isProtectionFault(errno) {
			return n, err
		}
		var merr error
		n, merr = c.writeMem(addr, data)
		if merr != nil {
			return n, fmt.Errorf("%v (mem fallback: %w)", err, merr)
		}
	}

	if n != len(data) {
		return n, fmt.Errorf("write incomplete: expected %d, got %d", len(data), n)
	}
	return n, nil
}

func isProtectionFault(errno unix.Errno) bool {
	return errno == unix.EFAULT || errno == unix.EPERM || errno == unix.EACCES
}

func (c *conn) writeMem(addr memory.Address, data []byte) (int, error) {
	if c.mem == nil {
		f, err := os.OpenFile(fmt.Sprintf("/proc/%d/mem", c.pid), os.O_RDWR, 0)
		if err != nil {
			return 0, fmt.Errorf("open mem file: %w", err)
		}
		c.mem = f
	}
	return c.mem.WriteAt(data, int64(addr))
}

// Protect captures the protection of the region containing the range as a
// token built from its maps perms. Widening itself is a no-op here: a
// remote mapping's protection cannot be changed without code running in
// the target, and the /proc mem write path is not subject to it. An
// unmapped range is still a hard failure, which keeps the fail-closed
// behavior of the write sequence.
func (c *conn) Protect(addr memory.Address, size memory.Size, p memory.Protection) (memory.Protection, error) {
	regions, err := readMaps(c.pid)
	if err != nil {
		return 0, fmt.Errorf("read maps of pid %d: %w", c.pid, err)
	}

	r, ok := regionFor(regions, addr, size)
	if !ok {
		return 0, fmt.Errorf("range %s+%d is not mapped", addr.ToString(), size)
	}

	return r.protection(), nil
}

func (c *conn) Close() error {
	if c.mem != nil {
		err := c.mem.Close()
		c.mem = nil
		return err
	}
	return nil
}
