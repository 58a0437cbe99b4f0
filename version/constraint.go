package version

import "fmt"

// A Constraint is a set of versions. The set of implementations is closed:
// the empty set, *Range (including unbounded ranges and exact pins) and
// *Union (disjoint ranges in ascending order).
type Constraint interface {
	fmt.Stringer

	Allows(v *Version) bool
	// AllowsAll reports whether other is a subset of this constraint.
	AllowsAll(other Constraint) bool
	// AllowsAny reports whether this constraint and other overlap.
	AllowsAny(other Constraint) bool
	Intersect(other Constraint) Constraint
	Union(other Constraint) Constraint
	// Difference returns the versions allowed by this constraint but not by
	// other.
	Difference(other Constraint) Constraint
	IsEmpty() bool
	IsAny() bool
	// IsSimple reports whether the constraint can be written as a single
	// comparison: a one-sided range, an exact pin, or the exclusion of a
	// single version.
	IsSimple() bool
	// Flatten returns the constraint as a list of ascending ranges.
	Flatten() []*Range
	Equal(other Constraint) bool

	sealed()
}

func (emptyConstraint) sealed() {}
func (*Range) sealed()          {}
func (*Union) sealed()          {}

// EmptyConstraint returns the constraint matching no versions.
func EmptyConstraint() Constraint { return emptyConstraint{} }

// AnyConstraint returns the constraint matching every version.
func AnyConstraint() *Range { return &Range{} }

type emptyConstraint struct{}

func (emptyConstraint) String() string { return "<empty>" }
func (emptyConstraint) Allows(*Version) bool { return false }
func (emptyConstraint) AllowsAll(other Constraint) bool { return other.IsEmpty() }
func (emptyConstraint) AllowsAny(Constraint) bool { return false }
func (emptyConstraint) Intersect(Constraint) Constraint { return emptyConstraint{} }
func (emptyConstraint) Union(other Constraint) Constraint { return other }
func (emptyConstraint) Difference(Constraint) Constraint { return emptyConstraint{} }
func (emptyConstraint) IsEmpty() bool { return true }
func (emptyConstraint) IsAny() bool { return false }
func (emptyConstraint) IsSimple() bool { return true }
func (emptyConstraint) Flatten() []*Range { return nil }
func (emptyConstraint) Equal(other Constraint) bool { return other.IsEmpty() }
