package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"memtap/hexdump"
	"memtap/memory"
)

func main() {
	pidFlag := flag.Int("pid", 0, "Process ID to bind to")
	opFlag := flag.String("op", "read", "Operation: read, write, dump, modules, alive")
	typeFlag := flag.String("type", "int32", "Value kind: string, int32, bool, float32, float64")
	addrFlag := flag.String("addr", "", "Absolute address (hex, e.g. 0x1000)")
	moduleFlag := flag.String("module", "", "Module name for module-relative addressing")
	offsetFlag := flag.String("offset", "0", "Signed offset from the module base (hex)")
	valueFlag := flag.String("value", "", "Value to write")
	sizeFlag := flag.Int("size", 64, "Buffer size for string writes and dump length")
	flag.Parse()

	if *pidFlag == 0 {
		fmt.Println("Error: --pid is required")
		flag.Usage()
		os.Exit(1)
	}

	acc := memory.New(newTarget())
	if err := acc.Bind(*pidFlag); err != nil {
		fmt.Printf("Error binding to process %d: %v\n", *pidFlag, err)
		os.Exit(1)
	}

	switch *opFlag {
	case "alive":
		fmt.Printf("Process %d running: %v\n", *pidFlag, acc.IsRunning())

	case "modules":
		listModules(acc)

	case "dump":
		ref, err := parseRef(*addrFlag, *moduleFlag, *offsetFlag)
		if err != nil {
			fail(err)
		}
		data, err := acc.ReadBytes(ref, memory.Size(*sizeFlag))
		if err != nil {
			fail(err)
		}
		opts := hexdump.DefaultOptions()
		if ref.Module == "" {
			opts.BaseAddress = uint64(ref.Addr)
		} else if base, err := acc.ResolveModule(ref.Module); err == nil {
			opts.BaseAddress = uint64(int64(base) + ref.Offset)
		}
		fmt.Print(hexdump.Dump(data, opts))

	case "read":
		ref, err := parseRef(*addrFlag, *moduleFlag, *offsetFlag)
		if err != nil {
			fail(err)
		}
		readValue(acc, ref, *typeFlag)

	case "write":
		ref, err := parseRef(*addrFlag, *moduleFlag, *offsetFlag)
		if err != nil {
			fail(err)
		}
		writeValue(acc, ref, *typeFlag, *valueFlag, memory.Size(*sizeFlag))

	default:
		fmt.Printf("Error: unknown op %q\n", *opFlag)
		os.Exit(1)
	}
}

func fail(err error) {
	fmt.Printf("Error: %v\n", err)
	os.Exit(1)
}

func listModules(acc *memory.Accessor) {
	mods, err := acc.Modules()
	if err != nil {
		fail(err)
	}
	for _, m := range mods {
		fmt.Println(m.String())
	}
}

func readValue(acc *memory.Accessor, ref memory.Ref, kind string) {
	switch kind {
	case "string":
		v, err := acc.ReadString(ref)
		if err != nil {
			fail(err)
		}
		fmt.Printf("%s = %q\n", ref, v)
	case "int32":
		v, err := acc.ReadInt32(ref)
		if err != nil {
			fail(err)
		}
		fmt.Printf("%s = %d\n", ref, v)
	case "bool":
		v, err := acc.ReadBool(ref)
		if err != nil {
			fail(err)
		}
		fmt.Printf("%s = %v\n", ref, v)
	case "float32":
		v, err := acc.ReadFloat32(ref)
		if err != nil {
			fail(err)
		}
		fmt.Printf("%s = %g\n", ref, v)
	case "float64":
		v, err := acc.ReadFloat64(ref)
		if err != nil {
			fail(err)
		}
		fmt.Printf("%s = %g\n", ref, v)
	default:
		fmt.Printf("Error: unknown type %q\n", kind)
		os.Exit(1)
	}
}

func writeValue(acc *memory.Accessor, ref memory.Ref, kind, value string, size memory.Size) {
	var err error
	switch kind {
	case "string":
		err = acc.WriteString(ref, value, size)
	case "int32":
		var v int64
		if v, err = strconv.ParseInt(value, 10, 32); err == nil {
			err = acc.WriteInt32(ref, int32(v))
		}
	case "bool":
		var v bool
		if v, err = strconv.ParseBool(value); err == nil {
			err = acc.WriteBool(ref, v)
		}
	case "float32":
		var v float64
		if v, err = strconv.ParseFloat(value, 32); err == nil {
			err = acc.WriteFloat32(ref, float32(v))
		}
	case "float64":
		var v float64
		if v, err = strconv.ParseFloat(value, 64); err == nil {
			err = acc.WriteFloat64(ref, v)
		}
	default:
		fmt.Printf("Error: unknown type %q\n", kind)
		os.Exit(1)
	}
	if err != nil {
		fail(err)
	}
	fmt.Printf("Wrote %s at %s\n", kind, ref)
}

// parseRef builds an absolute or module-relative reference from the flags.
func parseRef(addr, module, offset string) (memory.Ref, error) {
	if module != "" {
		off, err := parseHexInt(offset)
		if err != nil {
			return memory.Ref{}, fmt.Errorf("invalid offset %q: %v", offset, err)
		}
		return memory.InModule(module, off), nil
	}

	if addr == "" {
		return memory.Ref{}, fmt.Errorf("either --addr or --module is required")
	}
	a, err := parseHexInt(addr)
	if err != nil || a < 0 {
		return memory.Ref{}, fmt.Errorf("invalid address %q", addr)
	}
	return memory.Absolute(memory.Address(a)), nil
}

func parseHexInt(s string) (int64, error) {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimPrefix(s, "0x")
	v, err := strconv.ParseInt(s, 16, 64)
	if err != nil {
		return 0, err
	}
	if neg {
		v = -v
	}
	return v, nil
}
