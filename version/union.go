package version

import (
	"sort"
	"strings"
)

// Union is a union of two or more disjoint, ascending ranges. It is only
// created when the set cannot be expressed as a single range.
type Union struct {
	ranges []*Range

	// wildcard carries the original "!=x.y.*" spelling when the union was
	// parsed from an inverted wildcard.
	wildcard string
}

func (u *Union) Ranges() []*Range { return u.ranges }

// unionOf normalizes the given ranges into the simplest constraint: empties
// dropped, overlapping and adjacent ranges merged, a singleton unwrapped.
func unionOf(ranges ...*Range) Constraint {
	flattened := make([]*Range, 0, len(ranges))
	for _, r := range ranges {
		if r.IsAny() {
			return &Range{}
		}
		flattened = append(flattened, r)
	}
	if len(flattened) == 0 {
		return EmptyConstraint()
	}
	sort.SliceStable(flattened, func(i, j int) bool {
		return flattened[i].compare(flattened[j]) < 0
	})

	merged := []*Range{flattened[0]}
	for _, r := range flattened[1:] {
		last := merged[len(merged)-1]
		if last.AllowsAny(r) || last.IsAdjacentTo(r) {
			joined := last.Union(r)
			jr, ok := joined.(*Range)
			if !ok {
				// Disjoint after all; keep both.
				merged = append(merged, r)
				continue
			}
			merged[len(merged)-1] = jr
		} else {
			merged = append(merged, r)
		}
	}
	if len(merged) == 1 {
		return merged[0]
	}
	return &Union{ranges: merged}
}

// UnionOf builds the union of arbitrary constraints.
func UnionOf(constraints ...Constraint) Constraint {
	var ranges []*Range
	for _, c := range constraints {
		if c.IsEmpty() {
			continue
		}
		ranges = append(ranges, c.Flatten()...)
	}
	return unionOf(ranges...)
}

func (u *Union) IsEmpty() bool { return false }
func (u *Union) IsAny() bool { return false }

func (u *Union) IsSimple() bool {
	return u.excludedSingleVersion() != nil
}

func (u *Union) Flatten() []*Range { return u.ranges }

// excludedSingleVersion returns v when the union is exactly "!= v".
func (u *Union) excludedSingleVersion() *Version {
	inverted := AnyConstraint().Difference(u)
	if r, ok := inverted.(*Range); ok {
		return r.PinnedVersion()
	}
	return nil
}

func (u *Union) Allows(v *Version) bool {
	for _, r := range u.ranges {
		if r.Allows(v) {
			return true
		}
	}
	return false
}

func (u *Union) AllowsAll(other Constraint) bool {
	ours, theirs := u.ranges, other.Flatten()
	i, j := 0, 0
	for i < len(ours) && j < len(theirs) {
		if ours[i].AllowsAll(theirs[j]) {
			j++
		} else {
			i++
		}
	}
	return j >= len(theirs)
}

func (u *Union) AllowsAny(other Constraint) bool {
	ours, theirs := u.ranges, other.Flatten()
	i, j := 0, 0
	for i < len(ours) && j < len(theirs) {
		if ours[i].AllowsAny(theirs[j]) {
			return true
		}
		if theirs[j].AllowsHigher(ours[i]) {
			i++
		} else {
			j++
		}
	}
	return false
}

func (u *Union) Intersect(other Constraint) Constraint {
	ours, theirs := u.ranges, other.Flatten()
	var out []*Range
	i, j := 0, 0
	for i < len(ours) && j < len(theirs) {
		if ic, ok := ours[i].Intersect(theirs[j]).(*Range); ok {
			out = append(out, ic)
		}
		if theirs[j].AllowsHigher(ours[i]) {
			i++
		} else {
			j++
		}
	}
	return unionOf(out...)
}

func (u *Union) Union(other Constraint) Constraint {
	return UnionOf(u, other)
}

func (u *Union) Difference(other Constraint) Constraint {
	ours, theirs := u.ranges, other.Flatten()
	var out []*Range
	i, j := 0, 0
	current := ours[i]
	for j < len(theirs) {
		if theirs[j].IsStrictlyLower(current) {
			j++
			continue
		}
		if theirs[j].IsStrictlyHigher(current) {
			out = append(out, current)
			i++
			if i >= len(ours) {
				return unionOf(out...)
			}
			current = ours[i]
			continue
		}
		switch d := current.Difference(theirs[j]).(type) {
		case *Union:
			out = append(out, d.ranges[0])
			current = d.ranges[len(d.ranges)-1]
			j++
		case emptyConstraint:
			i++
			if i >= len(ours) {
				return unionOf(out...)
			}
			current = ours[i]
		case *Range:
			current = d
			if current.AllowsHigher(theirs[j]) {
				j++
			} else {
				out = append(out, current)
				i++
				if i >= len(ours) {
					return unionOf(out...)
				}
				current = ours[i]
			}
		}
	}
	out = append(out, current)
	out = append(out, ours[i+1:]...)
	return unionOf(out...)
}

func (u *Union) Equal(other Constraint) bool {
	o, ok := other.(*Union)
	if !ok || len(o.ranges) != len(u.ranges) {
		return false
	}
	for i, r := range u.ranges {
		if !r.Equal(o.ranges[i]) {
			return false
		}
	}
	return true
}

func (u *Union) String() string {
	if u.wildcard != "" {
		return "!=" + u.wildcard
	}
	if v := u.excludedSingleVersion(); v != nil {
		return "!=" + v.Text()
	}
	parts := make([]string, len(u.ranges))
	for i, r := range u.ranges {
		parts[i] = r.String()
	}
	return strings.Join(parts, " || ")
}
