// Package marker implements PEP 508 environment markers as a boolean
// algebra. Markers can be parsed, evaluated against an environment,
// intersected, unioned and inverted, and the package keeps results in a
// simplified form so that equivalent expressions compare equal more
// often than not.
package marker

import (
	"github.com/pysolve/pysolve/version"
)

// Complexity weighs a marker for candidate selection during
// normalization. Atoms counts single markers with atomic compounds
// expanded, Compounds counts atomic compounds as one.
type Complexity struct {
	Atoms     int
	Compounds int
}

func (c Complexity) add(o Complexity) Complexity {
	return Complexity{c.Atoms + o.Atoms, c.Compounds + o.Compounds}
}

// Compare orders complexities lexicographically.
func (c Complexity) Compare(o Complexity) int {
	if c.Atoms != o.Atoms {
		if c.Atoms < o.Atoms {
			return -1
		}
		return 1
	}
	if c.Compounds != o.Compounds {
		if c.Compounds < o.Compounds {
			return -1
		}
		return 1
	}
	return 0
}

// Marker is an environment marker expression. The zero-value markers
// are obtained from AnyMarker and EmptyMarker; everything else comes
// from Parse or from combining existing markers.
//
// Implementations are SingleMarker, AtomicMultiMarker,
// AtomicMarkerUnion, MultiMarker, MarkerUnion and the Any/Empty
// singletons. The set is closed.
type Marker interface {
	String() string

	// Intersect and Union combine two markers, simplifying the result
	// where cheap simplifications exist.
	Intersect(other Marker) Marker
	Union(other Marker) Marker

	// Invert negates the marker.
	Invert() Marker

	IsAny() bool
	IsEmpty() bool

	// Matches evaluates the marker against an environment. A nil
	// environment matches everything, as does a name absent from the
	// environment.
	Matches(env *Environment) bool

	// WithoutExtras drops "extra" atoms, Exclude drops atoms for an
	// arbitrary name, Only keeps atoms for the given names and drops
	// everything else.
	WithoutExtras() Marker
	Exclude(name string) Marker
	Only(names ...string) Marker

	// ReduceByPythonConstraint simplifies python version atoms that are
	// wholly implied (or excluded) by the given supported python range.
	ReduceByPythonConstraint(pc version.Constraint) Marker

	Complexity() Complexity
	Equal(other Marker) bool

	// key is a canonical identity string used for deduplication and
	// memoization.
	key() string
	sealed()
}

const (
	anyKey   = "\x00any"
	emptyKey = "\x00empty"
)

type anyMarker struct{}

// AnyMarker is the marker that holds in every environment. It renders
// as the empty string.
func AnyMarker() Marker { return anyMarker{} }

func (anyMarker) String() string { return "" }
func (anyMarker) Intersect(other Marker) Marker { return other }
func (anyMarker) Union(Marker) Marker { return anyMarker{} }
func (anyMarker) Invert() Marker { return emptyMarker{} }
func (anyMarker) IsAny() bool { return true }
func (anyMarker) IsEmpty() bool { return false }
func (anyMarker) Matches(*Environment) bool { return true }
func (anyMarker) WithoutExtras() Marker { return anyMarker{} }
func (anyMarker) Exclude(string) Marker { return anyMarker{} }
func (anyMarker) Only(...string) Marker { return anyMarker{} }
func (anyMarker) ReduceByPythonConstraint(version.Constraint) Marker { return anyMarker{} }
func (anyMarker) Complexity() Complexity { return Complexity{1, 1} }
func (anyMarker) Equal(other Marker) bool { return other.IsAny() }
func (anyMarker) key() string { return anyKey }
func (anyMarker) sealed() {}

type emptyMarker struct{}

// EmptyMarker is the marker that holds in no environment.
func EmptyMarker() Marker { return emptyMarker{} }

func (emptyMarker) String() string { return "<empty>" }
func (emptyMarker) Intersect(Marker) Marker { return emptyMarker{} }
func (emptyMarker) Union(other Marker) Marker { return other }
func (emptyMarker) Invert() Marker { return anyMarker{} }
func (emptyMarker) IsAny() bool { return false }
func (emptyMarker) IsEmpty() bool { return true }
func (emptyMarker) Matches(*Environment) bool { return false }
func (emptyMarker) WithoutExtras() Marker { return emptyMarker{} }
func (emptyMarker) Exclude(string) Marker { return emptyMarker{} }
func (emptyMarker) Only(...string) Marker { return emptyMarker{} }
func (emptyMarker) ReduceByPythonConstraint(version.Constraint) Marker { return emptyMarker{} }
func (emptyMarker) Complexity() Complexity { return Complexity{1, 1} }
func (emptyMarker) Equal(other Marker) bool { return other.IsEmpty() }
func (emptyMarker) key() string { return emptyKey }
func (emptyMarker) sealed() {}
