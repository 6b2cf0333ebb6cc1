//go:build windows

package main

import (
	"memtap/memory"
	"memtap/memory_windows"
)

func newTarget() memory.Target {
	return memory_windows.New()
}
