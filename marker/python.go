package marker

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/pysolve/pysolve/version"
)

// markerAtom is one comparison extracted from a marker, as operator and
// raw value. Atomic compound markers contribute a single atom with an
// empty operator and the constraint's rendering as value.
type markerAtom struct {
	op    string
	value string
}

// convertMarkers flattens a marker into DNF and groups its atoms by
// marker name. The result maps each name to one atom list per DNF
// branch; a branch that does not mention the name yields an empty list.
// python_full_version atoms are filed under python_version.
func convertMarkers(m Marker) map[string][][]markerAtom {
	d := dnf(m)
	conjunctions := []Marker{d}
	if mu, ok := d.(*MarkerUnion); ok {
		conjunctions = mu.markers
	}
	groupCount := len(conjunctions)

	requirements := map[string][][]markerAtom{}
	add := func(name string, atom markerAtom, group int) {
		if name == "python_full_version" {
			name = "python_version"
		}
		if _, ok := requirements[name]; !ok {
			requirements[name] = make([][]markerAtom, groupCount)
		}
		requirements[name][group] = append(requirements[name][group], atom)
	}
	addSingle := func(m Marker, group int) {
		switch t := m.(type) {
		case *SingleMarker:
			add(t.name, markerAtom{t.op, t.value}, group)
		case singleLike:
			add(t.MarkerName(), markerAtom{"", t.genericConstraint().String()}, group)
		}
	}

	for i, sub := range conjunctions {
		if mm, ok := sub.(*MultiMarker); ok {
			for _, child := range mm.markers {
				addSingle(child, i)
			}
		} else {
			addSingle(sub, i)
		}
	}

	for name, groups := range requirements {
		var deduped [][]markerAtom
		for _, g := range groups {
			if !atomGroupsContain(deduped, g) {
				deduped = append(deduped, g)
			}
		}
		requirements[name] = deduped
	}
	return requirements
}

func atomGroupsContain(groups [][]markerAtom, g []markerAtom) bool {
	for _, other := range groups {
		if atomGroupsEqual(other, g) {
			return true
		}
	}
	return false
}

func atomGroupsEqual(a, b []markerAtom) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// PythonConstraint extracts the python version constraint implied by a
// marker. A marker that does not constrain the python version in every
// DNF branch implies no constraint at all.
func PythonConstraint(m Marker) version.Constraint {
	pythonMarker := m.Only("python_version", "python_full_version")
	if pythonMarker.IsAny() {
		return version.AnyConstraint()
	}
	if pythonMarker.IsEmpty() {
		return version.EmptyConstraint()
	}

	converted := convertMarkers(m)
	groups, ok := converted["python_version"]
	if !ok {
		return version.AnyConstraint()
	}
	for _, g := range groups {
		if len(g) == 0 {
			return version.AnyConstraint()
		}
	}

	normalized := normalizePythonVersionMarkers(groups)
	c, err := version.ParseConstraint(normalized)
	if err != nil {
		panic(errors.Wrapf(err, "pysolve: normalized python constraint %q does not parse", normalized))
	}
	return c
}

// normalizePythonVersionMarkers renders DNF atom groups as a version
// constraint expression, compensating for python_version comparing only
// two release components. An equality on "3.8" really means any 3.8.x,
// and "> 3.8" excludes all of 3.8.x rather than just 3.8.0.
func normalizePythonVersionMarkers(disjunction [][]markerAtom) string {
	var ors []string
	for _, group := range disjunction {
		var ands []string
		for _, atom := range group {
			op, val := atom.op, atom.value
			switch {
			case op == "==" && !strings.Contains(val, "*") && strings.Count(val, ".") < 2:
				op, val = "", "~"+val

			case op == "!=" && !strings.Contains(val, "*") && strings.Count(val, ".") < 2:
				val += ".*"

			case op == "<=" || op == ">":
				if v, err := version.Parse(val); err == nil {
					if v.Precision() < 3 {
						if op == "<=" {
							op = "<"
						} else {
							op = ">="
						}
					}
					if v.Precision() == 2 {
						val = v.NextMinor().Text()
					}
				}

			case op == "in" || op == "not in":
				if expanded := expandVersionMembership(op, val); expanded != "" {
					ands = append(ands, expanded)
				}
				continue
			}
			ands = append(ands, op+val)
		}
		ors = append(ors, strings.Join(ands, " "))
	}
	return strings.Join(ors, " || ")
}

// PythonVersionMarker renders a python version constraint back into a
// marker, the inverse direction of PythonConstraint.
func PythonVersionMarker(c version.Constraint) Marker {
	if c.IsEmpty() {
		return EmptyMarker()
	}
	if c.IsAny() {
		return AnyMarker()
	}
	return MustParse(nestedMarkerString("python_version", c))
}

func nestedMarkerString(name string, c version.Constraint) string {
	switch t := c.(type) {
	case *version.Union:
		parts := make([]string, 0, len(t.Ranges()))
		for _, r := range t.Ranges() {
			parts = append(parts, "("+nestedMarkerString(name, r)+")")
		}
		return strings.Join(parts, " or ")

	case *version.Range:
		if t.IsAny() {
			return ""
		}
		if t.IsPin() {
			pin := t.PinnedVersion()
			if name == "python_version" && pin.Precision() >= 3 {
				name = "python_full_version"
			}
			return name + ` == "` + pin.Text() + `"`
		}
		return rangeMarkerString(name, t)
	}
	return ""
}

// rangeMarkerString is careful about precision: python_version compares
// two components, so an exclusive lower bound or inclusive upper bound
// with short precision must be expressed via python_full_version to
// stay equivalent.
func rangeMarkerString(name string, r *version.Range) string {
	var parts []string

	if min := r.Min(); min != nil {
		minName := name
		if minName == "python_version" && min.Precision() >= 3 {
			minName = "python_full_version"
		}
		if minName == "python_version" && !r.IncludeMin() && min.Precision() < 3 {
			padding := strings.Repeat(".0", 3-min.Precision())
			parts = append(parts, `python_full_version > "`+min.Text()+padding+`"`)
		} else {
			op := ">"
			if r.IncludeMin() {
				op = ">="
			}
			parts = append(parts, minName+` `+op+` "`+min.Stable().Text()+`"`)
		}
	}

	if max := r.Max(); max != nil {
		maxName := name
		if maxName == "python_version" && max.Precision() >= 3 {
			maxName = "python_full_version"
		}
		if maxName == "python_version" && r.IncludeMax() && max.Precision() < 3 {
			padding := strings.Repeat(".0", 3-max.Precision())
			parts = append(parts, `python_full_version <= "`+max.Text()+padding+`"`)
		} else {
			op := "<"
			if r.IncludeMax() {
				op = "<="
			}
			parts = append(parts, maxName+` `+op+` "`+max.Stable().Text()+`"`)
		}
	}

	return strings.Join(parts, " and ")
}
