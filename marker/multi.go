package marker

import (
	"strings"

	"github.com/pysolve/pysolve/version"
)

// flattenMarkers inlines nested compounds of the same kind and drops
// duplicates while keeping declaration order.
func flattenMarkers(markers []Marker, multi bool) []Marker {
	var flattened []Marker
	for _, m := range markers {
		var nested []Marker
		if multi {
			if mm, ok := m.(*MultiMarker); ok {
				nested = mm.markers
			}
		} else {
			if mu, ok := m.(*MarkerUnion); ok {
				nested = mu.markers
			}
		}
		if nested != nil {
			for _, inner := range flattenMarkers(nested, multi) {
				if !markersContain(flattened, inner) {
					flattened = append(flattened, inner)
				}
			}
		} else if !markersContain(flattened, m) {
			flattened = append(flattened, m)
		}
	}
	return flattened
}

func markersContain(markers []Marker, m Marker) bool {
	k := m.key()
	for _, other := range markers {
		if other.key() == k {
			return true
		}
	}
	return false
}

func markerSlicesEqual(a, b []Marker) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].key() != b[i].key() {
			return false
		}
	}
	return true
}

func sumComplexity(markers []Marker) Complexity {
	var total Complexity
	for _, m := range markers {
		total = total.add(m.Complexity())
	}
	return total
}

// complexityThreshold bounds how large a conjunction or disjunction may
// grow before a simplification attempt is considered a regression.
var complexityThreshold = Complexity{2, 2}

// MultiMarker is a conjunction of markers.
type MultiMarker struct {
	markers []Marker
}

// NewMultiMarker builds a raw conjunction without simplification beyond
// flattening. Use MultiMarkerOf for the simplifying constructor.
func NewMultiMarker(markers ...Marker) *MultiMarker {
	return &MultiMarker{markers: flattenMarkers(markers, true)}
}

// MultiMarkerOf conjoins markers, iterating pairwise simplifications to
// a fixed point.
func MultiMarkerOf(markers ...Marker) Marker {
	newMarkers := flattenMarkers(markers, true)
	var oldMarkers []Marker

	for !markerSlicesEqual(oldMarkers, newMarkers) {
		oldMarkers = newMarkers
		newMarkers = nil
		for _, marker := range oldMarkers {
			if markersContain(newMarkers, marker) {
				continue
			}
			if marker.IsAny() {
				continue
			}

			intersected := false
			for i, mark := range newMarkers {
				var merged Marker
				oneIsUnion := false
				if mu, ok := mark.(*MarkerUnion); ok {
					oneIsUnion = true
					merged = mu.intersectSimplify(marker)
				} else if mu, ok := marker.(*MarkerUnion); ok {
					oneIsUnion = true
					merged = mu.intersectSimplify(mark)
				}
				if merged != nil {
					newMarkers[i] = merged
					intersected = true
					break
				}

				// With luck two single markers intersect into another
				// single marker.
				if sl, ok := mark.(singleLike); ok && !oneIsUnion {
					newMarker := sl.Intersect(marker)
					if newMarker.IsEmpty() {
						return EmptyMarker()
					}
					if _, ok := newMarker.(singleLike); ok {
						newMarkers[i] = newMarker
						intersected = true
						break
					}
				}
			}
			if intersected {
				// intersectSimplify may return a conjunction.
				newMarkers = flattenMarkers(newMarkers, true)
				continue
			}

			newMarkers = append(newMarkers, marker)
		}
	}

	for _, m := range newMarkers {
		if m.IsEmpty() {
			return EmptyMarker()
		}
	}
	if len(newMarkers) == 0 {
		return AnyMarker()
	}
	if len(newMarkers) == 1 {
		return newMarkers[0]
	}
	return &MultiMarker{markers: newMarkers}
}

func (m *MultiMarker) Markers() []Marker { return m.markers }

func (m *MultiMarker) Complexity() Complexity { return sumComplexity(m.markers) }

func (m *MultiMarker) Intersect(other Marker) Marker { return intersection(m, other) }
func (m *MultiMarker) Union(other Marker) Marker { return union(m, other) }

// unionSimplify looks for cheap union simplifications:
// a term of the conjunction absorbing the whole union, one conjunction
// contained in the other, and conjunctions sharing terms whose unique
// remainders union into something small.
func (m *MultiMarker) unionSimplify(other Marker) Marker {
	if markersContain(m.markers, other) {
		return other
	}

	if sm, ok := other.(*SingleMarker); ok && isPythonMarkerName(sm.name) {
		// python_version >= "3.8" and sys_platform == "linux" unioned
		// with python_version > "3.6" collapses to the latter.
		for _, mm := range m.markers {
			if s, ok := mm.(*SingleMarker); ok && isPythonMarkerName(s.name) {
				if PythonConstraint(sm).AllowsAll(PythonConstraint(s)) {
					return other
				}
			}
		}
	}

	if o, ok := other.(*MultiMarker); ok {
		if containsAllMarkers(o.markers, m.markers) {
			return m
		}
		if containsAllMarkers(m.markers, o.markers) {
			return o
		}

		var shared, unique, otherUnique []Marker
		for _, mm := range m.markers {
			if markersContain(o.markers, mm) {
				shared = append(shared, mm)
			} else {
				unique = append(unique, mm)
			}
		}
		if len(shared) == 0 {
			return nil
		}
		for _, om := range o.markers {
			if !markersContain(m.markers, om) {
				otherUnique = append(otherUnique, om)
			}
		}

		uniqueUnion := NewMultiMarker(unique...).Union(NewMultiMarker(otherUnique...))
		_, isSingle := uniqueUnion.(singleLike)
		_, isMulti := uniqueUnion.(*MultiMarker)
		if isSingle || uniqueUnion.IsAny() ||
			(isMulti && uniqueUnion.Complexity().Compare(complexityThreshold) <= 0) {
			return uniqueUnion.Intersect(NewMultiMarker(shared...))
		}
	}

	return nil
}

func containsAllMarkers(super, sub []Marker) bool {
	for _, m := range sub {
		if !markersContain(super, m) {
			return false
		}
	}
	return true
}

func (m *MultiMarker) Matches(env *Environment) bool {
	for _, mm := range m.markers {
		if !mm.Matches(env) {
			return false
		}
	}
	return true
}

func (m *MultiMarker) WithoutExtras() Marker { return m.Exclude("extra") }

func (m *MultiMarker) Exclude(name string) Marker {
	var newMarkers []Marker
	for _, mm := range m.markers {
		if sl, ok := mm.(singleLike); ok && sl.MarkerName() == name {
			continue
		}
		marker := mm.Exclude(name)
		if !marker.IsEmpty() {
			newMarkers = append(newMarkers, marker)
		}
	}
	return intersection(newMarkers...)
}

func (m *MultiMarker) Only(names ...string) Marker {
	reduced := make([]Marker, 0, len(m.markers))
	for _, mm := range m.markers {
		reduced = append(reduced, mm.Only(names...))
	}
	return MultiMarkerOf(reduced...)
}

func (m *MultiMarker) ReduceByPythonConstraint(pc version.Constraint) Marker {
	reduced := make([]Marker, 0, len(m.markers))
	for _, mm := range m.markers {
		reduced = append(reduced, mm.ReduceByPythonConstraint(pc))
	}
	return MultiMarkerOf(reduced...)
}

func (m *MultiMarker) Invert() Marker {
	inverted := make([]Marker, 0, len(m.markers))
	for _, mm := range m.markers {
		inverted = append(inverted, mm.Invert())
	}
	return NewMarkerUnion(inverted...)
}

func (m *MultiMarker) IsAny() bool { return false }
func (m *MultiMarker) IsEmpty() bool { return false }

func (m *MultiMarker) Equal(other Marker) bool {
	o, ok := other.(*MultiMarker)
	return ok && markerSlicesEqual(m.markers, o.markers)
}

func (m *MultiMarker) key() string {
	keys := make([]string, 0, len(m.markers))
	for _, mm := range m.markers {
		keys = append(keys, mm.key())
	}
	return "m\x00(" + strings.Join(keys, "\x01") + ")"
}

func (m *MultiMarker) sealed() {}

func (m *MultiMarker) String() string {
	parts := make([]string, 0, len(m.markers))
	for _, mm := range m.markers {
		switch mm.(type) {
		case *SingleMarker, *MultiMarker, *AtomicMultiMarker:
			parts = append(parts, mm.String())
		default:
			parts = append(parts, "("+mm.String()+")")
		}
	}
	return strings.Join(parts, " and ")
}

// MarkerUnion is a disjunction of markers.
type MarkerUnion struct {
	markers []Marker
}

// NewMarkerUnion builds a raw disjunction without simplification beyond
// flattening. Use MarkerUnionOf for the simplifying constructor.
func NewMarkerUnion(markers ...Marker) *MarkerUnion {
	return &MarkerUnion{markers: flattenMarkers(markers, false)}
}

// MarkerUnionOf unions markers, iterating pairwise simplifications to a
// fixed point.
func MarkerUnionOf(markers ...Marker) Marker {
	newMarkers := flattenMarkers(markers, false)
	var oldMarkers []Marker

	for !markerSlicesEqual(oldMarkers, newMarkers) {
		oldMarkers = newMarkers
		newMarkers = nil
		for _, marker := range oldMarkers {
			if markersContain(newMarkers, marker) {
				continue
			}
			if marker.IsEmpty() {
				continue
			}

			included := false
			for i, mark := range newMarkers {
				var merged Marker
				oneIsMulti := false
				if mm, ok := mark.(*MultiMarker); ok {
					oneIsMulti = true
					merged = mm.unionSimplify(marker)
				} else if mm, ok := marker.(*MultiMarker); ok {
					oneIsMulti = true
					merged = mm.unionSimplify(mark)
				}
				if merged != nil {
					newMarkers[i] = merged
					included = true
					break
				}

				// With luck two single markers union into another single
				// marker. For python versions a small conjunction is an
				// improvement as well: the union of == "3.6" with
				// == "3.7" or == "3.8" becomes >= "3.6" and < "3.9".
				if sl, ok := mark.(singleLike); ok && !oneIsMulti {
					newMarker := sl.Union(marker)
					if newMarker.IsAny() {
						return AnyMarker()
					}
					_, isSingle := newMarker.(singleLike)
					_, isMulti := newMarker.(*MultiMarker)
					if isSingle ||
						(isMulti && newMarker.Complexity().Compare(complexityThreshold) <= 0) {
						newMarkers[i] = newMarker
						included = true
						break
					}
				}
			}
			if included {
				// unionSimplify may return a disjunction.
				newMarkers = flattenMarkers(newMarkers, false)
				continue
			}

			newMarkers = append(newMarkers, marker)
		}
	}

	for _, m := range newMarkers {
		if m.IsAny() {
			return AnyMarker()
		}
	}
	if len(newMarkers) == 0 {
		return EmptyMarker()
	}
	if len(newMarkers) == 1 {
		return newMarkers[0]
	}
	return &MarkerUnion{markers: newMarkers}
}

func (u *MarkerUnion) Markers() []Marker { return u.markers }

func (u *MarkerUnion) Complexity() Complexity { return sumComplexity(u.markers) }

func (u *MarkerUnion) Intersect(other Marker) Marker { return intersection(u, other) }
func (u *MarkerUnion) Union(other Marker) Marker { return union(u, other) }

// intersectSimplify mirrors MultiMarker.unionSimplify for intersections
// on disjunctions.
func (u *MarkerUnion) intersectSimplify(other Marker) Marker {
	if markersContain(u.markers, other) {
		return other
	}

	if sm, ok := other.(*SingleMarker); ok && isPythonMarkerName(sm.name) {
		// (python_version >= "3.6" or sys_platform == "linux")
		// intersected with python_version > "3.8" collapses to the
		// latter.
		for _, mm := range u.markers {
			if s, ok := mm.(*SingleMarker); ok && isPythonMarkerName(s.name) {
				if PythonConstraint(s).AllowsAll(PythonConstraint(sm)) {
					return other
				}
			}
		}
	}

	if o, ok := other.(*MarkerUnion); ok {
		if containsAllMarkers(o.markers, u.markers) {
			return u
		}
		if containsAllMarkers(u.markers, o.markers) {
			return o
		}

		var shared, unique, otherUnique []Marker
		for _, mm := range u.markers {
			if markersContain(o.markers, mm) {
				shared = append(shared, mm)
			} else {
				unique = append(unique, mm)
			}
		}
		if len(shared) == 0 {
			return nil
		}
		for _, om := range o.markers {
			if !markersContain(u.markers, om) {
				otherUnique = append(otherUnique, om)
			}
		}

		uniqueIntersection := NewMarkerUnion(unique...).Intersect(NewMarkerUnion(otherUnique...))
		_, isSingle := uniqueIntersection.(singleLike)
		_, isUnion := uniqueIntersection.(*MarkerUnion)
		if isSingle || uniqueIntersection.IsEmpty() ||
			(isUnion && uniqueIntersection.Complexity().Compare(complexityThreshold) <= 0) {
			return uniqueIntersection.Union(NewMarkerUnion(shared...))
		}
	}

	return nil
}

func (u *MarkerUnion) Matches(env *Environment) bool {
	for _, mm := range u.markers {
		if mm.Matches(env) {
			return true
		}
	}
	return false
}

func (u *MarkerUnion) WithoutExtras() Marker { return u.Exclude("extra") }

func (u *MarkerUnion) Exclude(name string) Marker {
	var newMarkers []Marker
	for _, mm := range u.markers {
		if sl, ok := mm.(singleLike); ok && sl.MarkerName() == name {
			continue
		}
		newMarkers = append(newMarkers, mm.Exclude(name))
	}
	if len(newMarkers) == 0 {
		// Every branch was the excluded marker.
		return AnyMarker()
	}
	return union(newMarkers...)
}

func (u *MarkerUnion) Only(names ...string) Marker {
	reduced := make([]Marker, 0, len(u.markers))
	for _, mm := range u.markers {
		reduced = append(reduced, mm.Only(names...))
	}
	return MarkerUnionOf(reduced...)
}

func (u *MarkerUnion) ReduceByPythonConstraint(pc version.Constraint) Marker {
	switch pc.(type) {
	case *version.Range, *version.Union:
		// If the branches that talk only about python versions cover
		// the whole supported range, the union holds everywhere.
		var pythonOnly []Marker
		for _, mm := range u.markers {
			if mm.Equal(mm.Only("python_version", "python_full_version")) {
				pythonOnly = append(pythonOnly, mm)
			}
		}
		if PythonConstraint(MarkerUnionOf(pythonOnly...)).AllowsAll(pc) {
			return AnyMarker()
		}
	}

	reduced := make([]Marker, 0, len(u.markers))
	for _, mm := range u.markers {
		reduced = append(reduced, mm.ReduceByPythonConstraint(pc))
	}
	return MarkerUnionOf(reduced...)
}

func (u *MarkerUnion) Invert() Marker {
	inverted := make([]Marker, 0, len(u.markers))
	for _, mm := range u.markers {
		inverted = append(inverted, mm.Invert())
	}
	return NewMultiMarker(inverted...)
}

func (u *MarkerUnion) IsAny() bool { return false }
func (u *MarkerUnion) IsEmpty() bool { return false }

func (u *MarkerUnion) Equal(other Marker) bool {
	o, ok := other.(*MarkerUnion)
	return ok && markerSlicesEqual(u.markers, o.markers)
}

func (u *MarkerUnion) key() string {
	keys := make([]string, 0, len(u.markers))
	for _, mm := range u.markers {
		keys = append(keys, mm.key())
	}
	return "u\x00(" + strings.Join(keys, "\x01") + ")"
}

func (u *MarkerUnion) sealed() {}

func (u *MarkerUnion) String() string {
	parts := make([]string, 0, len(u.markers))
	for _, mm := range u.markers {
		parts = append(parts, mm.String())
	}
	return strings.Join(parts, " or ")
}
