// Package solver implements the algebra the version solver reasons
// with: signed package terms with set relations between them, and the
// aggregation pass that computes transitive groups and markers for a
// solved package set.
package solver

// SetRelation describes how the package versions selected by one term
// relate to those selected by another.
type SetRelation int

const (
	// Subset means every selection allowed by the first term is allowed
	// by the second.
	Subset SetRelation = iota
	// Disjoint means no selection satisfies both terms.
	Disjoint
	// Overlapping covers every other case.
	Overlapping
)

func (r SetRelation) String() string {
	switch r {
	case Subset:
		return "subset"
	case Disjoint:
		return "disjoint"
	case Overlapping:
		return "overlapping"
	}
	panic("solver: unknown set relation")
}
