package marker

import "github.com/pysolve/pysolve/pep503"

// Environment holds the values markers are evaluated against. Values
// maps marker names (python_version, sys_platform, ...) to their
// environment value. Extras lists the active extras; a nil slice means
// "extra" is not part of the environment at all, so extra markers match
// unconditionally, while an empty non-nil slice means no extras are
// active.
type Environment struct {
	Values map[string]string
	Extras []string
}

func (e *Environment) value(name string) (string, bool) {
	v, ok := e.Values[name]
	return v, ok
}

func (e *Environment) hasExtra(name string) bool {
	name = pep503.CanonicalizeName(name)
	for _, extra := range e.Extras {
		if pep503.CanonicalizeName(extra) == name {
			return true
		}
	}
	return false
}
