//go:build windows

package memory_windows

import (
	"fmt"
	"unsafe"

	"memtap/memory"

	"golang.org/x/sys/windows"
)

// Modules takes a fresh Toolhelp32 module snapshot of the process and
// returns the name and base address of every image mapped into it.
func (t *WindowsTarget) Modules(pid int) ([]memory.Module, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPMODULE|windows.TH32CS_SNAPMODULE32, uint32(pid))
	if err != nil {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot failed: %w", err)
	}
	defer windows.CloseHandle(snapshot)

	var me32 windows.ModuleEntry32
	me32.Size = uint32(unsafe.Sizeof(me32))

	if err := windows.Module32First(snapshot, &me32); err != nil {
		return nil, fmt.Errorf("Module32First failed: %w", err)
	}

	var mods []memory.Module
	for {
		mods = append(mods, memory.Module{
			Name: windows.UTF16ToString(me32.Module[:]),
			Base: memory.Address(me32.ModBaseAddr),
		})
		if err := windows.Module32Next(snapshot, &me32); err != nil {
			break
		}
	}

	return mods, nil
}

// Alive walks a process snapshot looking for the PID. Any snapshot failure
// counts as not running.
func (t *WindowsTarget) Alive(pid int) bool {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return false
	}
	defer windows.CloseHandle(snapshot)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	for {
		if err := windows.Process32Next(snapshot, &entry); err != nil {
			return false
		}
		if int(entry.ProcessID) == pid {
			return true
		}
	}
}
