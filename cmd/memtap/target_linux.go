//go:build linux

package main

import (
	"memtap/memory"
	"memtap/memory_linux"
)

func newTarget() memory.Target {
	return memory_linux.New()
}
