package version

import "strings"

// Range is a contiguous, possibly unbounded set of versions. A nil bound is
// unbounded on that side; a range with both bounds nil allows everything; a
// range whose bounds are equal and inclusive is an exact pin.
type Range struct {
	min, max               *Version
	includeMin, includeMax bool

	// wildcard carries the original wildcard spelling ("3.8.*") when the
	// range was parsed from one, so rendering round-trips.
	wildcard string
}

// NewRange builds a range between the given bounds.
func NewRange(min, max *Version, includeMin, includeMax bool) *Range {
	return &Range{min: min, max: max, includeMin: includeMin, includeMax: includeMax}
}

// NewPin builds the range allowing exactly v.
func NewPin(v *Version) *Range {
	return &Range{min: v, max: v, includeMin: true, includeMax: true}
}

func (r *Range) Min() *Version { return r.min }
func (r *Range) Max() *Version { return r.max }
func (r *Range) IncludeMin() bool { return r.includeMin }
func (r *Range) IncludeMax() bool { return r.includeMax }

func (r *Range) IsEmpty() bool { return false }
func (r *Range) IsAny() bool { return r.min == nil && r.max == nil }

// IsPin reports whether the range allows exactly one version.
func (r *Range) IsPin() bool {
	return r.min != nil && r.min.Equal(r.max) && (r.includeMin || r.includeMax)
}

// PinnedVersion returns the single allowed version of a pin, or nil.
func (r *Range) PinnedVersion() *Version {
	if r.IsPin() {
		return r.min
	}
	return nil
}

func (r *Range) IsSimple() bool {
	return r.min == nil || r.max == nil || r.IsPin()
}

func (r *Range) Flatten() []*Range { return []*Range{r} }

// allowedMax adjusts the upper bound so that an exclusive bound on a stable
// version excludes that version's pre-releases as well.
func (r *Range) allowedMax() *Version {
	if r.max == nil {
		return nil
	}
	if r.includeMax || r.max.IsUnstable() || r.IsPin() {
		return r.max
	}
	return r.max.firstPrerelease()
}

func (r *Range) allowedMin() *Version { return r.min }

func (r *Range) Allows(v *Version) bool {
	if r.min != nil {
		if v.Compare(r.min) < 0 {
			return false
		}
		if !r.includeMin && v.Equal(r.min) {
			return false
		}
	}
	if r.max != nil {
		am := r.allowedMax()
		if v.Compare(am) > 0 {
			return false
		}
		if !r.includeMax && (v.Equal(r.max) || v.Equal(am)) {
			return false
		}
	}
	return true
}

// AllowsLower reports whether this range allows versions below every version
// other allows.
func (r *Range) AllowsLower(other *Range) bool {
	tmin, omin := r.allowedMin(), other.allowedMin()
	if tmin == nil {
		return omin != nil
	}
	if omin == nil {
		return false
	}
	if c := tmin.Compare(omin); c != 0 {
		return c < 0
	}
	return r.includeMin && !other.includeMin
}

// AllowsHigher reports whether this range allows versions above every
// version other allows.
func (r *Range) AllowsHigher(other *Range) bool {
	tmax, omax := r.allowedMax(), other.allowedMax()
	if tmax == nil {
		return omax != nil
	}
	if omax == nil {
		return false
	}
	if c := tmax.Compare(omax); c != 0 {
		return c > 0
	}
	return r.includeMax && !other.includeMax
}

// IsStrictlyLower reports whether every version this range allows is below
// every version other allows.
func (r *Range) IsStrictlyLower(other *Range) bool {
	tmax, omin := r.allowedMax(), other.allowedMin()
	if tmax == nil || omin == nil {
		return false
	}
	if c := tmax.Compare(omin); c != 0 {
		return c < 0
	}
	return !(r.includeMax && other.includeMin)
}

func (r *Range) IsStrictlyHigher(other *Range) bool {
	return other.IsStrictlyLower(r)
}

// IsAdjacentTo reports whether this range ends exactly where other begins.
func (r *Range) IsAdjacentTo(other *Range) bool {
	if r.max == nil || other.min == nil || !r.max.Equal(other.min) {
		return false
	}
	return r.includeMax != other.includeMin
}

func (r *Range) AllowsAll(other Constraint) bool {
	if other.IsEmpty() {
		return true
	}
	switch o := other.(type) {
	case *Range:
		if pv := o.PinnedVersion(); pv != nil {
			return r.Allows(pv)
		}
		return !o.AllowsLower(r) && !o.AllowsHigher(r)
	case *Union:
		for _, ur := range o.ranges {
			if !r.AllowsAll(ur) {
				return false
			}
		}
		return true
	}
	return false
}

func (r *Range) AllowsAny(other Constraint) bool {
	if other.IsEmpty() {
		return false
	}
	switch o := other.(type) {
	case *Range:
		if pv := o.PinnedVersion(); pv != nil && !r.IsPin() {
			return r.Allows(pv)
		}
		if pv := r.PinnedVersion(); pv != nil && !o.IsPin() {
			return o.Allows(pv)
		}
		if r.IsPin() && o.IsPin() {
			return r.min.Equal(o.min)
		}
		return !(o.IsStrictlyLower(r) || o.IsStrictlyHigher(r))
	case *Union:
		for _, ur := range o.ranges {
			if r.AllowsAny(ur) {
				return true
			}
		}
		return false
	}
	return false
}

func (r *Range) Intersect(other Constraint) Constraint {
	if other.IsEmpty() {
		return other
	}
	if u, ok := other.(*Union); ok {
		return u.Intersect(r)
	}
	o := other.(*Range)

	if pv := o.PinnedVersion(); pv != nil && !r.IsPin() {
		if r.Allows(pv) {
			return o
		}
		return EmptyConstraint()
	}
	if pv := r.PinnedVersion(); pv != nil {
		if o.Allows(pv) {
			return r
		}
		return EmptyConstraint()
	}

	var (
		min, max       *Version
		incMin, incMax bool
	)
	if r.AllowsLower(o) {
		if r.IsStrictlyLower(o) {
			return EmptyConstraint()
		}
		min, incMin = o.min, o.includeMin
	} else {
		if o.IsStrictlyLower(r) {
			return EmptyConstraint()
		}
		min, incMin = r.min, r.includeMin
	}
	if r.AllowsHigher(o) {
		max, incMax = o.max, o.includeMax
	} else {
		max, incMax = r.max, r.includeMax
	}

	if min == nil && max == nil {
		return &Range{}
	}
	if min != nil && min.Equal(max) {
		// Overlap was already established, so this is an exact pin.
		return NewPin(min)
	}
	return &Range{min: min, max: max, includeMin: incMin, includeMax: incMax}
}

func (r *Range) Union(other Constraint) Constraint {
	if other.IsEmpty() {
		return r
	}
	if u, ok := other.(*Union); ok {
		return unionOf(append([]*Range{r}, u.ranges...)...)
	}
	o := other.(*Range)

	if pv := o.PinnedVersion(); pv != nil && !r.IsPin() {
		if r.Allows(pv) {
			return r
		}
		if pv.Equal(r.min) {
			return &Range{min: r.min, max: r.max, includeMin: true, includeMax: r.includeMax}
		}
		if pv.Equal(r.max) {
			return &Range{min: r.min, max: r.max, includeMin: r.includeMin, includeMax: true}
		}
		return unionOf(r, o)
	}
	if r.IsPin() {
		if o.IsPin() {
			if r.min.Equal(o.min) {
				return r
			}
			return unionOf(r, o)
		}
		return o.Union(r)
	}

	edgesTouch := (r.max != nil && r.max.Equal(o.min) && (r.includeMax || o.includeMin)) ||
		(r.min != nil && r.min.Equal(o.max) && (r.includeMin || o.includeMax))
	if !edgesTouch && !r.AllowsAny(o) {
		return unionOf(r, o)
	}

	var (
		min, max       *Version
		incMin, incMax bool
	)
	if r.AllowsLower(o) {
		min, incMin = r.min, r.includeMin
	} else {
		min, incMin = o.min, o.includeMin
	}
	if r.AllowsHigher(o) {
		max, incMax = r.max, r.includeMax
	} else {
		max, incMax = o.max, o.includeMax
	}
	return &Range{min: min, max: max, includeMin: incMin, includeMax: incMax}
}

func (r *Range) Difference(other Constraint) Constraint {
	if other.IsEmpty() {
		return r
	}
	switch o := other.(type) {
	case *Range:
		if pv := o.PinnedVersion(); pv != nil && !r.IsPin() {
			if !r.Allows(pv) {
				return r
			}
			if pv.Equal(r.min) {
				if !r.includeMin {
					return r
				}
				return &Range{min: r.min, max: r.max, includeMax: r.includeMax}
			}
			if pv.Equal(r.max) {
				if !r.includeMax {
					return r
				}
				return &Range{min: r.min, max: r.max, includeMin: r.includeMin}
			}
			return unionOf(
				&Range{min: r.min, max: pv, includeMin: r.includeMin},
				&Range{min: pv, max: r.max, includeMax: r.includeMax},
			)
		}
		if pv := r.PinnedVersion(); pv != nil {
			if o.Allows(pv) {
				return EmptyConstraint()
			}
			return r
		}
		if !r.AllowsAny(o) {
			return r
		}

		var before, after Constraint
		if !r.AllowsLower(o) {
			before = nil
		} else if r.min != nil && r.min.Equal(o.min) {
			before = NewPin(r.min)
		} else {
			before = &Range{min: r.min, max: o.min, includeMin: r.includeMin, includeMax: !o.includeMin}
		}
		if !r.AllowsHigher(o) {
			after = nil
		} else if r.max != nil && r.max.Equal(o.max) {
			after = NewPin(r.max)
		} else {
			after = &Range{min: o.max, max: r.max, includeMin: !o.includeMax, includeMax: r.includeMax}
		}
		switch {
		case before == nil && after == nil:
			return EmptyConstraint()
		case before == nil:
			return after
		case after == nil:
			return before
		}
		return unionOf(before.(*Range), after.(*Range))
	case *Union:
		var ranges []*Range
		current := r
		for _, ur := range o.ranges {
			if ur.IsStrictlyLower(current) {
				continue
			}
			if ur.IsStrictlyHigher(current) {
				break
			}
			diff := current.Difference(ur)
			switch d := diff.(type) {
			case emptyConstraint:
				return EmptyConstraint()
			case *Union:
				// The subtracted range split current in half; only the
				// upper half can intersect later ranges.
				ranges = append(ranges, d.ranges[0])
				current = d.ranges[len(d.ranges)-1]
			case *Range:
				current = d
			}
		}
		if len(ranges) == 0 {
			return current
		}
		return unionOf(append(ranges, current)...)
	}
	return r
}

func (r *Range) Equal(other Constraint) bool {
	o, ok := other.(*Range)
	if !ok {
		return false
	}
	return versionsEqual(r.min, o.min) && versionsEqual(r.max, o.max) &&
		r.includeMin == o.includeMin && r.includeMax == o.includeMax
}

func versionsEqual(a, b *Version) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

// compare orders ranges by lower bound, then upper bound.
func (r *Range) compare(other *Range) int {
	if r.min == nil {
		if other.min == nil {
			return r.compareMax(other)
		}
		return -1
	}
	if other.min == nil {
		return 1
	}
	if c := r.min.Compare(other.min); c != 0 {
		return c
	}
	if r.includeMin != other.includeMin {
		if r.includeMin {
			return -1
		}
		return 1
	}
	return r.compareMax(other)
}

func (r *Range) compareMax(other *Range) int {
	if r.max == nil {
		if other.max == nil {
			return 0
		}
		return 1
	}
	if other.max == nil {
		return -1
	}
	if c := r.max.Compare(other.max); c != 0 {
		return c
	}
	if r.includeMax != other.includeMax {
		if r.includeMax {
			return 1
		}
		return -1
	}
	return 0
}

func (r *Range) String() string {
	if r.wildcard != "" {
		return "==" + r.wildcard
	}
	if pv := r.PinnedVersion(); pv != nil {
		return pv.Text()
	}
	if r.min == nil && r.max == nil {
		return "*"
	}
	var b strings.Builder
	if r.min != nil {
		if r.includeMin {
			b.WriteString(">=")
		} else {
			b.WriteString(">")
		}
		b.WriteString(r.min.Text())
	}
	if r.max != nil {
		if r.min != nil {
			b.WriteString(",")
		}
		if r.includeMax {
			b.WriteString("<=")
		} else {
			b.WriteString("<")
		}
		b.WriteString(r.max.Text())
	}
	return b.String()
}
