//go:build linux

package memory_linux

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"memtap/memory"
)

// region is one line of /proc/<pid>/maps.
type region struct {
	Start uint64
	End   uint64
	Perms string // e.g. "r-xp"
	Path  string // backing file, empty for anonymous mappings
}

func (r region) contains(addr, size uint64) bool {
	return addr >= r.Start && addr+size <= r.End
}

// protection encodes the region's perms as a token for Conn.Protect.
// The r/w/x bits occupy the low three bits, so a token can never equal
// the ProtExecuteReadWrite widen request.
func (r region) protection() memory.Protection {
	var p memory.Protection
	if len(r.Perms) > 0 && r.Perms[0] == 'r' {
		p |= 0x1
	}
	if len(r.Perms) > 1 && r.Perms[1] == 'w' {
		p |= 0x2
	}
	if len(r.Perms) > 2 && r.Perms[2] == 'x' {
		p |= 0x4
	}
	return p
}

// readMaps reads and parses /proc/<pid>/maps.
func readMaps(pid int) ([]region, error) {
	file, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return parseMaps(file)
}

func parseMaps(r io.Reader) ([]region, error) {
	var regions []region

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}

		addrRange := strings.Split(fields[0], "-")
		if len(addrRange) != 2 {
			continue
		}
		start, err := strconv.ParseUint(addrRange[0], 16, 64)
		if err != nil {
			continue
		}
		end, err := strconv.ParseUint(addrRange[1], 16, 64)
		if err != nil {
			continue
		}

		var path string
		if len(fields) >= 6 {
			path = fields[5]
		}

		regions = append(regions, region{
			Start: start,
			End:   end,
			Perms: fields[1],
			Path:  path,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return regions, nil
}

// modulesFromRegions reduces a maps listing to one entry per backing file:
// the module name is the file's basename and the base is the lowest
// mapped address of that file.
func modulesFromRegions(regions []region) []memory.Module {
	bases := make(map[string]uint64)
	var order []string

	for _, r := range regions {
		if !strings.HasPrefix(r.Path, "/") {
			continue
		}
		if base, seen := bases[r.Path]; !seen || r.Start < base {
			if !seen {
				order = append(order, r.Path)
			}
			bases[r.Path] = r.Start
		}
	}

	mods := make([]memory.Module, 0, len(order))
	for _, path := range order {
		mods = append(mods, memory.Module{
			Name: filepath.Base(path),
			Base: memory.Address(bases[path]),
		})
	}
	return mods
}

// regionFor returns the region containing [addr, addr+size).
func regionFor(regions []region, addr memory.Address, size memory.Size) (region, bool) {
	for _, r := range regions {
		if r.contains(uint64(addr), uint64(size)) {
			return r, true
		}
	}
	return region{}, false
}
