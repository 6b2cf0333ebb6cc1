package memory

import (
	"bytes"
	"errors"
	"testing"
)

const (
	fakePID       = 1234
	regionStart   = Address(0x1000)
	regionSize    = 0x200000
	priorProtBits = Protection(0x2)
)

// fakeTarget backs the accessor with a single in-memory region that
// behaves like target process memory: bounds-checked transfers, a
// protection value that Protect captures and replaces, and per-connection
// bookkeeping the tests assert on.
type fakeTarget struct {
	buf   []byte
	mods  []Module
	alive bool
	prot  Protection

	failOpen    bool
	failProtect bool
	failWrite   bool
	failRestore bool
	zeroRead    bool

	opens []AccessMask
	conns []*fakeConn
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		buf:   make([]byte, regionSize),
		mods:  []Module{{Name: "app.exe", Base: regionStart}},
		alive: true,
		prot:  priorProtBits,
	}
}

func (f *fakeTarget) Open(pid int, mask AccessMask) (Conn, error) {
	if f.failOpen {
		return nil, errors.New("handle unobtainable")
	}
	f.opens = append(f.opens, mask)
	c := &fakeConn{target: f, mask: mask}
	f.conns = append(f.conns, c)
	return c, nil
}

func (f *fakeTarget) Modules(pid int) ([]Module, error) {
	return f.mods, nil
}

func (f *fakeTarget) Alive(pid int) bool {
	return f.alive
}

func (f *fakeTarget) slice(addr Address, n int) ([]byte, bool) {
	off := int64(addr) - int64(regionStart)
	if off < 0 || off+int64(n) > int64(len(f.buf)) {
		return nil, false
	}
	return f.buf[off : off+int64(n)], true
}

func (f *fakeTarget) allClosed() bool {
	for _, c := range f.conns {
		if !c.closed {
			return false
		}
	}
	return true
}

type fakeConn struct {
	target  *fakeTarget
	mask    AccessMask
	closed  bool
	protOps []Protection
	wrote   bool
}

func (c *fakeConn) ReadAt(addr Address, buf []byte) (int, error) {
	if c.target.zeroRead {
		return 0, nil
	}
	src, ok := c.target.slice(addr, len(buf))
	if !ok {
		return 0, errors.New("address out of range")
	}
	copy(buf, src)
	return len(buf), nil
}

func (c *fakeConn) WriteAt(addr Address, data []byte) (int, error) {
	if c.target.failWrite {
		return 0, errors.New("transfer refused")
	}
	dst, ok := c.target.slice(addr, len(data))
	if !ok {
		return 0, errors.New("address out of range")
	}
	copy(dst, data)
	c.wrote = true
	return len(data), nil
}

func (c *fakeConn) Protect(addr Address, size Size, p Protection) (Protection, error) {
	if p == ProtExecuteReadWrite && c.target.failProtect {
		return 0, errors.New("protect refused")
	}
	if p != ProtExecuteReadWrite && c.target.failRestore {
		return 0, errors.New("restore refused")
	}
	c.protOps = append(c.protOps, p)
	prev := c.target.prot
	c.target.prot = p
	return prev, nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func bound(t *testing.T, f *fakeTarget) *Accessor {
	t.Helper()
	a := New(f)
	if err := a.Bind(fakePID); err != nil {
		t.Fatalf("Bind(%d) error: %v", fakePID, err)
	}
	return a
}

func TestBind(t *testing.T) {
	t.Run("idempotent", func(t *testing.T) {
		a := bound(t, newFakeTarget())
		if err := a.Bind(fakePID); err != nil {
			t.Fatalf("second Bind error: %v", err)
		}
		if err := a.Bind(9999); err != nil {
			t.Fatalf("Bind with different pid error: %v", err)
		}
		if a.PID() != fakePID {
			t.Errorf("PID after rebind attempt = %d, want %d", a.PID(), fakePID)
		}
	})

	t.Run("dead process fails", func(t *testing.T) {
		f := newFakeTarget()
		f.alive = false
		if err := New(f).Bind(fakePID); err == nil {
			t.Error("Bind to dead process succeeded, want error")
		}
	})
}

func TestIsRunning(t *testing.T) {
	t.Run("unbound is false", func(t *testing.T) {
		if New(newFakeTarget()).IsRunning() {
			t.Error("IsRunning on unbound accessor = true, want false")
		}
	})

	t.Run("exited process is false, no panic", func(t *testing.T) {
		f := newFakeTarget()
		a := bound(t, f)
		f.alive = false
		if a.IsRunning() {
			t.Error("IsRunning after exit = true, want false")
		}
	})
}

func TestResolveModule(t *testing.T) {
	t.Run("case-insensitive match", func(t *testing.T) {
		a := bound(t, newFakeTarget())
		base, err := a.ResolveModule("APP.EXE")
		if err != nil {
			t.Fatalf("ResolveModule error: %v", err)
		}
		if base != regionStart {
			t.Errorf("base = %s, want %s", base.ToString(), regionStart.ToString())
		}
	})

	t.Run("missing module", func(t *testing.T) {
		a := bound(t, newFakeTarget())
		_, err := a.ResolveModule("nonexistent.dll")
		if !errors.Is(err, ErrModuleNotFound) {
			t.Errorf("error = %v, want ErrModuleNotFound", err)
		}
	})

	t.Run("fresh enumeration sees new modules", func(t *testing.T) {
		f := newFakeTarget()
		a := bound(t, f)
		if _, err := a.ResolveModule("late.dll"); !errors.Is(err, ErrModuleNotFound) {
			t.Fatalf("error before load = %v, want ErrModuleNotFound", err)
		}
		f.mods = append(f.mods, Module{Name: "late.dll", Base: 0x5000})
		base, err := a.ResolveModule("late.dll")
		if err != nil {
			t.Fatalf("error after load: %v", err)
		}
		if base != 0x5000 {
			t.Errorf("base = %s, want 0x5000", base.ToString())
		}
	})
}

func TestRoundTrips(t *testing.T) {
	addr := Absolute(0x1000)

	t.Run("int32", func(t *testing.T) {
		a := bound(t, newFakeTarget())
		if err := a.WriteInt32(addr, 42); err != nil {
			t.Fatalf("WriteInt32 error: %v", err)
		}
		got, err := a.ReadInt32(addr)
		if err != nil {
			t.Fatalf("ReadInt32 error: %v", err)
		}
		if got != 42 {
			t.Errorf("ReadInt32 = %d, want 42", got)
		}
	})

	t.Run("bool", func(t *testing.T) {
		a := bound(t, newFakeTarget())
		if err := a.WriteBool(addr, true); err != nil {
			t.Fatalf("WriteBool error: %v", err)
		}
		got, err := a.ReadBool(addr)
		if err != nil {
			t.Fatalf("ReadBool error: %v", err)
		}
		if !got {
			t.Error("ReadBool = false, want true")
		}
	})

	t.Run("float32", func(t *testing.T) {
		a := bound(t, newFakeTarget())
		if err := a.WriteFloat32(addr, 3.5); err != nil {
			t.Fatalf("WriteFloat32 error: %v", err)
		}
		got, err := a.ReadFloat32(addr)
		if err != nil {
			t.Fatalf("ReadFloat32 error: %v", err)
		}
		if got != 3.5 {
			t.Errorf("ReadFloat32 = %g, want 3.5", got)
		}
	})

	t.Run("float64", func(t *testing.T) {
		a := bound(t, newFakeTarget())
		if err := a.WriteFloat64(addr, 2.718281828); err != nil {
			t.Fatalf("WriteFloat64 error: %v", err)
		}
		got, err := a.ReadFloat64(addr)
		if err != nil {
			t.Fatalf("ReadFloat64 error: %v", err)
		}
		if got != 2.718281828 {
			t.Errorf("ReadFloat64 = %g, want 2.718281828", got)
		}
	})

	t.Run("string in module at offset", func(t *testing.T) {
		f := newFakeTarget()
		a := bound(t, f)
		ref := InModule("app.exe", 0x138C15)

		// Pre-fill the slot with garbage so a short write would leave a tail.
		slot, _ := f.slice(Address(int64(regionStart)+0x138C15), 16)
		for i := range slot {
			slot[i] = 0xAA
		}

		if err := a.WriteString(ref, "Hello, World!", 16); err != nil {
			t.Fatalf("WriteString error: %v", err)
		}
		if !bytes.Equal(slot[13:16], []byte{0, 0, 0}) {
			t.Errorf("buffer tail = % X, want zeros", slot[13:16])
		}
		got, err := a.ReadString(ref)
		if err != nil {
			t.Fatalf("ReadString error: %v", err)
		}
		if got != "Hello, World!" {
			t.Errorf("ReadString = %q, want %q", got, "Hello, World!")
		}
	})
}

func TestAccessMasks(t *testing.T) {
	f := newFakeTarget()
	a := bound(t, f)

	if _, err := a.ReadInt32(Absolute(0x1000)); err != nil {
		t.Fatalf("ReadInt32 error: %v", err)
	}
	if err := a.WriteInt32(Absolute(0x1000), 7); err != nil {
		t.Fatalf("WriteInt32 error: %v", err)
	}

	if len(f.opens) != 2 {
		t.Fatalf("opens = %d, want 2", len(f.opens))
	}
	if f.opens[0] != AccessRead {
		t.Errorf("read opened with mask %v, want AccessRead", f.opens[0])
	}
	if f.opens[1]&AccessWrite == 0 {
		t.Errorf("write opened with mask %v, want AccessWrite", f.opens[1])
	}
	if got := len(f.conns[0].protOps); got != 0 {
		t.Errorf("read path made %d protect calls, want 0", got)
	}
	if !f.allClosed() {
		t.Error("connection left open")
	}
}

func TestWriteProtectionSequence(t *testing.T) {
	t.Run("widen then restore on success", func(t *testing.T) {
		f := newFakeTarget()
		a := bound(t, f)
		if err := a.WriteInt32(Absolute(0x1000), 42); err != nil {
			t.Fatalf("WriteInt32 error: %v", err)
		}
		ops := f.conns[0].protOps
		if len(ops) != 2 || ops[0] != ProtExecuteReadWrite || ops[1] != priorProtBits {
			t.Errorf("protect ops = %v, want [widen, restore prior]", ops)
		}
		if f.prot != priorProtBits {
			t.Errorf("final protection = %v, want prior %v", f.prot, priorProtBits)
		}
	})

	t.Run("restore happens after a failed transfer", func(t *testing.T) {
		f := newFakeTarget()
		f.failWrite = true
		a := bound(t, f)
		if err := a.WriteInt32(Absolute(0x1000), 42); err == nil {
			t.Fatal("WriteInt32 succeeded, want error")
		}
		if f.prot != priorProtBits {
			t.Errorf("final protection = %v, want prior %v restored", f.prot, priorProtBits)
		}
		if !f.allClosed() {
			t.Error("connection left open after failed write")
		}
	})

	t.Run("widen failure fails closed", func(t *testing.T) {
		f := newFakeTarget()
		f.failProtect = true
		a := bound(t, f)
		if err := a.WriteInt32(Absolute(0x1000), 42); err == nil {
			t.Fatal("WriteInt32 succeeded, want error")
		}
		if f.conns[0].wrote {
			t.Error("transfer ran after protect failure")
		}
		if !f.allClosed() {
			t.Error("connection left open after protect failure")
		}
	})

	t.Run("restore failure is surfaced", func(t *testing.T) {
		f := newFakeTarget()
		f.failRestore = true
		a := bound(t, f)
		err := a.WriteInt32(Absolute(0x1000), 42)
		if !errors.Is(err, ErrProtectionNotRestored) {
			t.Errorf("error = %v, want ErrProtectionNotRestored", err)
		}
		if !f.conns[0].wrote {
			t.Error("transfer did not run")
		}
	})
}

func TestFailurePaths(t *testing.T) {
	t.Run("unbound accessor", func(t *testing.T) {
		a := New(newFakeTarget())
		if _, err := a.ReadInt32(Absolute(0x1000)); !errors.Is(err, ErrNotBound) {
			t.Errorf("read error = %v, want ErrNotBound", err)
		}
		if err := a.WriteInt32(Absolute(0x1000), 1); !errors.Is(err, ErrNotBound) {
			t.Errorf("write error = %v, want ErrNotBound", err)
		}
	})

	t.Run("handle unobtainable", func(t *testing.T) {
		f := newFakeTarget()
		a := bound(t, f)
		f.failOpen = true
		if _, err := a.ReadInt32(Absolute(0x1000)); err == nil {
			t.Error("read with failing open succeeded, want error")
		}
	})

	t.Run("missing module short-circuits the write", func(t *testing.T) {
		f := newFakeTarget()
		a := bound(t, f)
		err := a.WriteInt32(InModule("nonexistent.dll", 0x10), 42)
		if !errors.Is(err, ErrModuleNotFound) {
			t.Errorf("error = %v, want ErrModuleNotFound", err)
		}
		if f.conns[0].wrote || len(f.conns[0].protOps) != 0 {
			t.Error("access proceeded despite missing module")
		}
		if !f.allClosed() {
			t.Error("connection left open after resolve failure")
		}
	})

	t.Run("zero-length transfer decodes as failure", func(t *testing.T) {
		f := newFakeTarget()
		f.zeroRead = true
		a := bound(t, f)
		if _, err := a.ReadInt32(Absolute(0x1000)); !errors.Is(err, ErrNothingTransferred) {
			t.Errorf("error = %v, want ErrNothingTransferred", err)
		}
		if _, err := a.ReadString(Absolute(0x1000)); !errors.Is(err, ErrNothingTransferred) {
			t.Errorf("string error = %v, want ErrNothingTransferred", err)
		}
	})
}

func TestNegativeModuleOffset(t *testing.T) {
	f := newFakeTarget()
	f.mods = []Module{{Name: "app.exe", Base: regionStart + 0x100}}
	a := bound(t, f)

	if err := a.WriteInt32(InModule("app.exe", -0x100), 7); err != nil {
		t.Fatalf("WriteInt32 error: %v", err)
	}
	got, err := a.ReadInt32(Absolute(regionStart))
	if err != nil {
		t.Fatalf("ReadInt32 error: %v", err)
	}
	if got != 7 {
		t.Errorf("value at base-0x100 = %d, want 7", got)
	}
}
