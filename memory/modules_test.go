package memory

import "testing"

func TestFindModule(t *testing.T) {
	mods := []Module{
		{Name: "ntdll.dll", Base: 0x7FF800000000},
		{Name: "App.exe", Base: 0x140000000},
	}

	t.Run("matches case-insensitively", func(t *testing.T) {
		for _, name := range []string{"app.exe", "APP.EXE", "App.exe"} {
			m, ok := FindModule(mods, name)
			if !ok {
				t.Fatalf("FindModule(%q) not found", name)
			}
			if m.Base != 0x140000000 {
				t.Errorf("FindModule(%q).Base = %s, want 0x140000000", name, m.Base.ToString())
			}
		}
	})

	t.Run("missing module is not a zero base", func(t *testing.T) {
		_, ok := FindModule(mods, "nonexistent.dll")
		if ok {
			t.Error("FindModule(nonexistent.dll) found a match, want none")
		}
	})

	t.Run("empty list", func(t *testing.T) {
		if _, ok := FindModule(nil, "app.exe"); ok {
			t.Error("FindModule on empty list found a match")
		}
	})
}
