package solver

import (
	"fmt"

	"github.com/pysolve/pysolve/packages"
	"github.com/pysolve/pysolve/version"
)

// Term is a statement about a package that is true or false for a given
// selection of package versions: "foo ^1.0.0" or "not foo ^1.5.0".
//
// Relation and Intersect results are memoized per term pair. Terms are
// used from a single resolution goroutine.
type Term struct {
	dep      *packages.Dependency
	positive bool

	relationCache  map[*Term]SetRelation
	intersectCache map[*Term]*Term
}

func NewTerm(dep *packages.Dependency, positive bool) *Term {
	return &Term{
		dep:            dep,
		positive:       positive,
		relationCache:  map[*Term]SetRelation{},
		intersectCache: map[*Term]*Term{},
	}
}

func (t *Term) Dependency() *packages.Dependency { return t.dep }
func (t *Term) Constraint() version.Constraint { return t.dep.Constraint }
func (t *Term) IsPositive() bool { return t.positive }

// Inverse negates the term.
func (t *Term) Inverse() *Term { return NewTerm(t.dep, !t.positive) }

// Satisfies reports whether this term being true implies the other term
// is true.
func (t *Term) Satisfies(other *Term) bool {
	return t.dep.CompleteName() == other.dep.CompleteName() &&
		t.Relation(other) == Subset
}

// Relation computes the set relation between the selections allowed by
// this term and another term about the same package.
func (t *Term) Relation(other *Term) SetRelation {
	if r, ok := t.relationCache[other]; ok {
		return r
	}
	r := t.relation(other)
	t.relationCache[other] = r
	return r
}

func (t *Term) relation(other *Term) SetRelation {
	if t.dep.CompleteName() != other.dep.CompleteName() {
		panic(fmt.Sprintf("solver: %s should refer to %s", other, t.dep.CompleteName()))
	}

	otherConstraint := other.Constraint()

	if other.positive {
		if t.positive {
			if !t.compatibleDependency(other.dep) {
				return Disjoint
			}
			// foo ^1.5.0 is a subset of foo ^1.0.0.
			if otherConstraint.AllowsAll(t.Constraint()) {
				return Subset
			}
			// foo ^2.0.0 is disjoint with foo ^1.0.0.
			if !t.Constraint().AllowsAny(otherConstraint) {
				return Disjoint
			}
			return Overlapping
		}

		if !t.compatibleDependency(other.dep) {
			return Overlapping
		}
		// not foo ^1.0.0 is disjoint with foo ^1.5.0.
		if t.Constraint().AllowsAll(otherConstraint) {
			return Disjoint
		}
		// not foo ^1.5.0 overlaps foo ^1.0.0.
		return Overlapping
	}

	if t.positive {
		if !t.compatibleDependency(other.dep) {
			return Subset
		}
		// foo ^2.0.0 is a subset of not foo ^1.0.0.
		if !otherConstraint.AllowsAny(t.Constraint()) {
			return Subset
		}
		// foo ^1.5.0 is disjoint with not foo ^1.0.0, unless the
		// transitive markers differ: then the pair must stay
		// overlapping so that the markers get merged later.
		if otherConstraint.AllowsAll(t.Constraint()) &&
			t.dep.TransitiveMarker.Equal(other.dep.TransitiveMarker) {
			return Disjoint
		}
		// foo ^1.0.0 overlaps not foo ^1.5.0.
		return Overlapping
	}

	if !t.compatibleDependency(other.dep) {
		return Overlapping
	}
	// not foo ^1.0.0 is a subset of not foo ^1.5.0.
	if t.Constraint().AllowsAll(otherConstraint) {
		return Subset
	}
	// not foo ^1.5.0 is a superset of not foo ^1.0.0.
	return Overlapping
}

// Intersect returns a term selecting exactly what both terms allow, or
// nil when the intersection is empty.
func (t *Term) Intersect(other *Term) *Term {
	if r, ok := t.intersectCache[other]; ok {
		return r
	}
	r := t.intersect(other)
	t.intersectCache[other] = r
	return r
}

func (t *Term) intersect(other *Term) *Term {
	if t.dep.CompleteName() != other.dep.CompleteName() {
		panic(fmt.Sprintf("solver: %s should refer to %s", other, t.dep.CompleteName()))
	}

	if t.compatibleDependency(other.dep) {
		if t.positive != other.positive {
			// foo ^1.0.0 and not foo ^1.5.0 select foo >=1.0.0 <1.5.0.
			positive, negative := t, other
			if !t.positive {
				positive, negative = other, t
			}
			return t.nonEmptyTerm(
				positive.Constraint().Difference(negative.Constraint()), true, other)
		}
		if t.positive {
			return t.nonEmptyTerm(t.Constraint().Intersect(other.Constraint()), true, other)
		}
		return t.nonEmptyTerm(t.Constraint().Union(other.Constraint()), false, other)
	}

	if t.positive != other.positive {
		if t.positive {
			return t
		}
		return other
	}
	return nil
}

// Difference returns a term selecting what this term allows and the
// other does not, or nil when nothing remains.
func (t *Term) Difference(other *Term) *Term {
	return t.Intersect(other.Inverse())
}

func (t *Term) compatibleDependency(other *packages.Dependency) bool {
	return t.dep.Root ||
		other.Root ||
		other.SamePackageAs(t.dep) ||
		// Direct origin dependencies are compatible with registry
		// dependencies on the same complete name.
		(t.dep.CompleteName() == other.CompleteName() &&
			t.dep.IsDirectOrigin() != other.IsDirectOrigin())
}

func (t *Term) nonEmptyTerm(c version.Constraint, positive bool, other *Term) *Term {
	if c.IsEmpty() {
		return nil
	}

	// Prefer the direct origin dependency as the carrier of the new
	// constraint.
	dep := t.dep
	if !t.dep.IsDirectOrigin() && other.dep.IsDirectOrigin() {
		dep = other.dep
	}
	newDep := dep.WithConstraint(c)
	if positive && other.positive {
		newDep.TransitiveMarker = t.dep.TransitiveMarker.Union(other.dep.TransitiveMarker)
	}
	return NewTerm(newDep, positive)
}

func (t *Term) String() string {
	if !t.positive {
		return "not " + t.dep.String()
	}
	return t.dep.String()
}
