package constraint

import (
	"strings"
)

// Union is a disjunction of constraints. Its children are positive-form
// single atoms or conjunctions; it never contains Any, Empty or another
// Union.
type Union struct {
	constraints []Constraint
}

// NewUnion builds a disjunction from the given children, preserving order.
func NewUnion(constraints ...Constraint) *Union {
	return &Union{constraints: constraints}
}

func (u *Union) Constraints() []Constraint { return u.constraints }
func (u *Union) IsAny() bool { return false }
func (u *Union) IsEmpty() bool { return false }

func (u *Union) String() string {
	parts := make([]string, len(u.constraints))
	for i, c := range u.constraints {
		parts[i] = c.String()
	}
	return strings.Join(parts, " || ")
}

func (u *Union) Equal(other Constraint) bool {
	o, ok := other.(*Union)
	if !ok || len(o.constraints) != len(u.constraints) {
		return false
	}
	for i, c := range u.constraints {
		if !c.Equal(o.constraints[i]) {
			return false
		}
	}
	return true
}

func containsConstraint(list []Constraint, c Constraint) bool {
	for _, x := range list {
		if x.Equal(c) {
			return true
		}
	}
	return false
}

func (u *Union) Allows(other *Single) bool {
	for _, c := range u.constraints {
		if c.Allows(other) {
			return true
		}
	}
	return false
}

func (u *Union) AllowsAll(other Constraint) bool {
	if o, ok := other.(*Union); ok {
		for _, theirs := range o.constraints {
			ok := false
			for _, ours := range u.constraints {
				if ours.AllowsAll(theirs) {
					ok = true
					break
				}
			}
			if !ok {
				return false
			}
		}
		return true
	}
	for _, c := range u.constraints {
		if c.AllowsAll(other) {
			return true
		}
	}
	return false
}

func (u *Union) AllowsAny(other Constraint) bool {
	if o, ok := other.(*Union); ok {
		for _, ours := range u.constraints {
			for _, theirs := range o.constraints {
				if ours.AllowsAny(theirs) {
					return true
				}
			}
		}
		return false
	}
	for _, c := range u.constraints {
		if c.AllowsAny(other) {
			return true
		}
	}
	return false
}

func (u *Union) Invert() Constraint {
	inverted := make([]*Single, len(u.constraints))
	extra := false
	for i, c := range u.constraints {
		ic, ok := c.Invert().(*Single)
		if !ok {
			panic("constraint: cannot invert a disjunction with compound children")
		}
		inverted[i] = ic
		if ic.extra {
			extra = true
		}
	}
	return newMulti(extra, inverted...)
}

func (u *Union) Intersect(other Constraint) Constraint {
	if other.IsAny() {
		return u
	}
	if other.IsEmpty() {
		return other
	}
	if o, ok := other.(*Union); ok && sameConstraintSet(u.constraints, o.constraints) {
		return u
	}
	if s, ok := other.(*Single); ok && s.extra && containsConstraint(u.constraints, s) {
		return s
	}
	if s, ok := other.(*Single); ok {
		// (A or B) and C is the one-element-union case of the product below.
		other = NewUnion(s)
	}

	var newConstraints []Constraint
	seenMulti := map[string]bool{}
	addUnseen := func(c Constraint) {
		if c.IsEmpty() || containsConstraint(newConstraints, c) {
			return
		}
		if m, ok := c.(*Multi); ok {
			key := multiKey(m)
			if seenMulti[key] {
				return
			}
			seenMulti[key] = true
		}
		newConstraints = append(newConstraints, c)
	}

	switch o := other.(type) {
	case *Union:
		// (A or B) and (A or B or C) => A or B
		if constraintSubset(u.constraints, o.constraints) {
			return u
		}
		if constraintSubset(o.constraints, u.constraints) {
			if len(o.constraints) == 1 {
				return o.constraints[0]
			}
			return o
		}
		// (A or B) and (C or D) => (A and C) or (A and D) or ...
		for _, ours := range u.constraints {
			for _, theirs := range o.constraints {
				addUnseen(ours.Intersect(theirs))
			}
		}
	case *Multi:
		// (A or B) and (C and D) => (A and C and D) or (B and C and D)
		for _, ours := range u.constraints {
			intersection := ours
			for _, theirs := range o.constraints {
				intersection = intersection.Intersect(theirs)
			}
			addUnseen(intersection)
		}
	default:
		panic("constraint: unexpected operand in union intersection")
	}

	if len(newConstraints) == 0 {
		return Empty()
	}
	if len(newConstraints) == 1 {
		return newConstraints[0]
	}
	return NewUnion(newConstraints...)
}

func (u *Union) Union(other Constraint) Constraint {
	if other.IsAny() {
		return other
	}
	if other.IsEmpty() {
		return u
	}
	if u.Equal(other) {
		return u
	}
	if s, ok := other.(*Single); ok {
		other = NewUnion(s)
	}

	var newConstraints []Constraint
	switch o := other.(type) {
	case *Union:
		// (A or B) or (C or D) => A or B or C or D, merging pairs that
		// collapse to a single atom.
		var ourNew, theirNew, mergedNew []Constraint
		for _, theirs := range o.constraints {
			for _, ours := range u.constraints {
				merged := ours.Union(theirs)
				if merged.IsAny() {
					return Any()
				}
				if ms, ok := merged.(*Single); ok {
					switch {
					case ms.Equal(ours):
						if !containsConstraint(ourNew, ms) {
							ourNew = append(ourNew, ms)
						}
					case ms.Equal(theirs):
						if !containsConstraint(theirNew, ms) {
							theirNew = append(theirNew, theirs)
						}
					default:
						if !containsConstraint(mergedNew, ms) {
							mergedNew = append(mergedNew, ms)
						}
					}
				} else {
					if !containsConstraint(ourNew, ours) {
						ourNew = append(ourNew, ours)
					}
					if !containsConstraint(theirNew, theirs) {
						theirNew = append(theirNew, theirs)
					}
				}
			}
		}
		newConstraints = ourNew
		for _, c := range append(theirNew, mergedNew...) {
			if !containsConstraint(newConstraints, c) {
				newConstraints = append(newConstraints, c)
			}
		}
	case *Multi:
		// (A or B) or (A and D) => A or B
		for _, c := range u.constraints {
			if s, ok := c.(*Single); ok && o.contains(s) {
				return u
			}
		}

		// (A or B) or (not A and D) => A or B or D
		var singles []*Single
		for _, c := range u.constraints {
			if s, ok := c.(*Single); ok {
				singles = append(singles, s)
			}
		}
		simplified := false
		var theirNew []Constraint
		for _, theirs := range o.constraints {
			dropped := false
			for _, s := range singles {
				if s.Union(theirs).IsAny() {
					dropped = true
					break
				}
			}
			if dropped {
				simplified = true
			} else {
				theirNew = append(theirNew, theirs)
			}
		}
		if simplified {
			if len(theirNew) == 0 {
				return Any()
			}
			return u.Union(NewUnion(theirNew...))
		}

		// (A or B) or (C and D) => nothing to simplify
		newConstraints = append(append([]Constraint{}, u.constraints...), o)
	default:
		panic("constraint: unexpected operand in union of disjunctions")
	}

	if len(newConstraints) == 1 {
		return newConstraints[0]
	}
	return NewUnion(newConstraints...)
}

func sameConstraintSet(a, b []Constraint) bool {
	return constraintSubset(a, b) && constraintSubset(b, a)
}

func constraintSubset(sub, super []Constraint) bool {
	for _, c := range sub {
		if !containsConstraint(super, c) {
			return false
		}
	}
	return true
}
