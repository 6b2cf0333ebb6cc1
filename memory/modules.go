package memory

import "strings"

// FindModule matches name case-insensitively against a module list and
// reports whether a match exists. A false result must short-circuit the
// access; there is no "base zero" fallback.
func FindModule(mods []Module, name string) (Module, bool) {
	for _, m := range mods {
		if strings.EqualFold(m.Name, name) {
			return m, true
		}
	}
	return Module{}, false
}
