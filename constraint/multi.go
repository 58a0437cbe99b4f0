package constraint

import (
	"fmt"
	"sort"
	"strings"
)

// Multi is a conjunction of single constraints. Plain conjunctions only
// carry negative-form atoms ("!=", "not in"); extra-set conjunctions carry
// "==" and "!=" atoms because several extras may be active simultaneously.
// A Multi never contains Any or Empty children.
type Multi struct {
	constraints []*Single
	extra       bool
}

func newMulti(extra bool, constraints ...*Single) *Multi {
	for _, c := range constraints {
		if extra {
			if c.op != OpEq && c.op != OpNe {
				panic(fmt.Sprintf("constraint: %q atom in extra conjunction", c.op))
			}
		} else if c.op == OpEq {
			panic("constraint: positive atom in plain conjunction")
		}
	}
	return &Multi{constraints: constraints, extra: extra}
}

func (m *Multi) Constraints() []*Single { return m.constraints }
func (m *Multi) IsExtra() bool { return m.extra }
func (m *Multi) IsAny() bool { return false }
func (m *Multi) IsEmpty() bool { return false }

func (m *Multi) String() string {
	parts := make([]string, len(m.constraints))
	for i, c := range m.constraints {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}

func (m *Multi) Equal(other Constraint) bool {
	o, ok := other.(*Multi)
	if !ok || o.extra != m.extra || len(o.constraints) != len(m.constraints) {
		return false
	}
	for i, c := range m.constraints {
		if !c.Equal(o.constraints[i]) {
			return false
		}
	}
	return true
}

func (m *Multi) contains(c *Single) bool {
	for _, mc := range m.constraints {
		if mc.Equal(c) {
			return true
		}
	}
	return false
}

func (m *Multi) containsValue(v string) bool {
	for _, mc := range m.constraints {
		if mc.value == v {
			return true
		}
	}
	return false
}

func (m *Multi) Allows(other *Single) bool {
	for _, c := range m.constraints {
		if !c.Allows(other) {
			return false
		}
	}
	return true
}

func (m *Multi) AllowsAll(other Constraint) bool {
	if o, ok := other.(*Multi); ok {
		for _, c := range m.constraints {
			if !o.contains(c) {
				return false
			}
		}
		return true
	}
	for _, c := range m.constraints {
		if !c.AllowsAll(other) {
			return false
		}
	}
	return true
}

func (m *Multi) AllowsAny(other Constraint) bool {
	switch o := other.(type) {
	case *Single:
		if o.op == OpEq {
			return m.Allows(o)
		}
		return o.op == OpNe
	case *Union:
		for _, uc := range o.constraints {
			all := true
			for _, c := range m.constraints {
				if !c.AllowsAny(uc) {
					all = false
					break
				}
			}
			if all {
				return true
			}
		}
		return false
	case *Multi:
		return true
	}
	return other.IsAny()
}

func (m *Multi) Invert() Constraint {
	inverted := make([]Constraint, len(m.constraints))
	for i, c := range m.constraints {
		inverted[i] = c.Invert()
	}
	return NewUnion(inverted...)
}

func (m *Multi) Intersect(other Constraint) Constraint {
	if o, ok := other.(*Multi); ok {
		if m.extra {
			// An extra required by one side and excluded by the other
			// leaves nothing.
			eq := map[string]bool{}
			ne := map[string]bool{}
			for _, c := range append(append([]*Single{}, m.constraints...), o.constraints...) {
				if c.op == OpEq {
					eq[c.value] = true
				} else {
					ne[c.value] = true
				}
			}
			for v := range eq {
				if ne[v] {
					return Empty()
				}
			}
		}
		merged := append([]*Single{}, m.constraints...)
		for _, c := range o.constraints {
			if !m.contains(c) {
				merged = append(merged, c)
			}
		}
		return newMulti(m.extra, merged...)
	}

	o, ok := other.(*Single)
	if !ok {
		return other.Intersect(m)
	}
	if m.contains(o) {
		return m
	}
	if m.containsValue(o.value) {
		// Same value under opposite operators.
		return Empty()
	}
	if o.op == OpEq && !m.extra {
		return o
	}
	return newMulti(m.extra, append(append([]*Single{}, m.constraints...), o)...)
}

func (m *Multi) Union(other Constraint) Constraint {
	if o, ok := other.(*Multi); ok {
		if m.extra {
			if subsetOf(m.constraints, o.constraints) {
				return m
			}
			if subsetOf(o.constraints, m.constraints) {
				return o
			}
			return NewUnion(m, o)
		}
		var common []*Single
		for _, c := range m.constraints {
			if o.contains(c) {
				common = append(common, c)
			}
		}
		switch len(common) {
		case 0:
			return Any()
		case 1:
			return common[0]
		}
		return newMulti(m.extra, common...)
	}

	o, ok := other.(*Single)
	if !ok {
		return other.Union(m)
	}
	if m.contains(o) {
		return o
	}
	if m.extra {
		if len(m.constraints) == 2 && m.containsValue(o.value) {
			// Same value under the opposite operator: keep the other atom
			// and the replacement side by side.
			var kept []Constraint
			for _, c := range m.constraints {
				if c.value != o.value {
					kept = append(kept, c)
				}
			}
			kept = append(kept, o)
			return NewUnion(kept...)
		}
		return NewUnion(m, o)
	}
	if !m.containsValue(o.value) {
		if o.op == OpNe {
			return Any()
		}
		return m
	}
	var kept []*Single
	for _, c := range m.constraints {
		if c.value != o.value {
			kept = append(kept, c)
		}
	}
	if len(kept) == 1 {
		return kept[0]
	}
	return newMulti(m.extra, kept...)
}

func subsetOf(sub, super []*Single) bool {
	for _, c := range sub {
		found := false
		for _, s := range super {
			if c.Equal(s) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// multiKey is an order-insensitive identity for a conjunction, used to
// deduplicate conjunctions that differ only in atom order.
func multiKey(m *Multi) string {
	parts := make([]string, len(m.constraints))
	for i, c := range m.constraints {
		parts[i] = c.op + "\x00" + c.value
	}
	sort.Strings(parts)
	return strings.Join(parts, "\x01")
}
