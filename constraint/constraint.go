// Package constraint implements equality and membership constraints over
// opaque string values, as they appear in environment markers (platform
// names, OS names, extra names and the like). Values are compared with plain
// string equality and substring membership; callers normalize case before
// constructing a constraint.
package constraint

import (
	"fmt"
	"strings"
)

// Supported comparison operators.
const (
	OpEq    = "=="
	OpNe    = "!="
	OpIn    = "in"
	OpNotIn = "not in"
)

// A Constraint is a set-membership predicate over an opaque string domain.
//
// The set of implementations is closed: Any, Empty, *Single, *Multi (a
// conjunction) and *Union (a disjunction). Every operation handles each
// pairwise combination explicitly; there is no fallback case.
type Constraint interface {
	fmt.Stringer

	// Allows reports whether the value of the given equality constraint
	// satisfies this constraint. The argument must use the "==" operator.
	Allows(other *Single) bool
	// AllowsAll reports whether every value allowed by other is also
	// allowed by this constraint (subset test).
	AllowsAll(other Constraint) bool
	// AllowsAny reports whether this constraint and other share at least
	// one allowed value (non-disjointness test).
	AllowsAny(other Constraint) bool
	Intersect(other Constraint) Constraint
	Union(other Constraint) Constraint
	// Invert returns the complement. It is only defined for shapes with a
	// finite inverse representation and panics otherwise.
	Invert() Constraint
	IsAny() bool
	IsEmpty() bool
	Equal(other Constraint) bool

	sealed()
}

func (anyConstraint) sealed()   {}
func (emptyConstraint) sealed() {}
func (*Single) sealed()         {}
func (*Multi) sealed()          {}
func (*Union) sealed()          {}

// Difference returns the constraint allowing everything a allows except what
// b allows.
func Difference(a, b Constraint) Constraint {
	return a.Intersect(b.Invert())
}

// Any returns the constraint that matches every value.
func Any() Constraint { return anyConstraint{} }

// Empty returns the constraint that matches no value.
func Empty() Constraint { return emptyConstraint{} }

type anyConstraint struct{}

func (anyConstraint) String() string { return "*" }
func (anyConstraint) Allows(*Single) bool { return true }
func (anyConstraint) AllowsAll(Constraint) bool { return true }
func (anyConstraint) AllowsAny(other Constraint) bool { return !other.IsEmpty() }
func (anyConstraint) Intersect(other Constraint) Constraint { return other }
func (anyConstraint) Union(Constraint) Constraint { return anyConstraint{} }
func (anyConstraint) Invert() Constraint { return emptyConstraint{} }
func (anyConstraint) IsAny() bool { return true }
func (anyConstraint) IsEmpty() bool { return false }
func (anyConstraint) Equal(other Constraint) bool { return other.IsAny() }

type emptyConstraint struct{}

func (emptyConstraint) String() string { return "<empty>" }
func (emptyConstraint) Allows(*Single) bool { return false }
func (emptyConstraint) AllowsAll(other Constraint) bool { return other.IsEmpty() }
func (emptyConstraint) AllowsAny(Constraint) bool { return false }
func (emptyConstraint) Intersect(Constraint) Constraint { return emptyConstraint{} }
func (emptyConstraint) Union(other Constraint) Constraint {
	return other
}
func (emptyConstraint) Invert() Constraint { return anyConstraint{} }
func (emptyConstraint) IsAny() bool { return false }
func (emptyConstraint) IsEmpty() bool { return true }
func (emptyConstraint) Equal(other Constraint) bool { return other.IsEmpty() }

// Single is one "value OP" atom. The extra flag switches the atom to
// extra-set semantics: because several extras can be active at the same time,
// "== extra1" and "== extra2" are simultaneously satisfiable and intersecting
// them must not collapse to Empty.
type Single struct {
	value string
	op    string
	extra bool
}

var invertedOp = map[string]string{
	OpEq:    OpNe,
	OpNe:    OpEq,
	OpIn:    OpNotIn,
	OpNotIn: OpIn,
}

// NewSingle builds a plain single constraint. "=" is accepted as an alias
// for "==".
func NewSingle(value, op string) (*Single, error) {
	if op == "=" {
		op = OpEq
	}
	if _, ok := invertedOp[op]; !ok {
		return nil, fmt.Errorf("invalid constraint operator %q", op)
	}
	return &Single{value: value, op: op}, nil
}

// NewExtraSingle builds a single constraint with extra-set semantics. Only
// "==" and "!=" are supported for extras.
func NewExtraSingle(value, op string) (*Single, error) {
	c, err := NewSingle(value, op)
	if err != nil {
		return nil, err
	}
	if c.op != OpEq && c.op != OpNe {
		return nil, fmt.Errorf("operator %q is not supported for extra constraints", op)
	}
	c.extra = true
	return c, nil
}

func (c *Single) Value() string { return c.value }
func (c *Single) Op() string { return c.op }
func (c *Single) IsExtra() bool { return c.extra }
func (c *Single) IsAny() bool { return false }
func (c *Single) IsEmpty() bool { return false }

func (c *Single) String() string {
	if c.op == OpIn || c.op == OpNotIn {
		return fmt.Sprintf("'%s' %s", c.value, c.op)
	}
	if c.op == OpEq {
		return c.value
	}
	return c.op + c.value
}

func (c *Single) Equal(other Constraint) bool {
	o, ok := other.(*Single)
	return ok && c.value == o.value && c.op == o.op && c.extra == o.extra
}

func (c *Single) Allows(other *Single) bool {
	if other == nil || other.op != OpEq {
		panic(fmt.Sprintf("constraint: Allows argument must use %q, got %v", OpEq, other))
	}
	switch c.op {
	case OpEq:
		return other.value == c.value
	case OpNe:
		return other.value != c.value
	case OpIn:
		return strings.Contains(other.value, c.value)
	case OpNotIn:
		return !strings.Contains(other.value, c.value)
	}
	return false
}

func (c *Single) AllowsAll(other Constraint) bool {
	switch o := other.(type) {
	case *Single:
		if o.op == OpEq {
			return c.Allows(o)
		}
		if o.op == OpIn && c.op == OpIn {
			return strings.Contains(o.value, c.value)
		}
		if o.op == OpNotIn {
			if c.op == OpNotIn {
				return strings.Contains(c.value, o.value)
			}
			if c.op == OpNe {
				return !strings.Contains(o.value, c.value)
			}
		}
		return c.Equal(o)
	case *Multi:
		for _, mc := range o.constraints {
			if c.AllowsAll(mc) {
				return true
			}
		}
		return false
	case *Union:
		for _, uc := range o.constraints {
			if !c.AllowsAll(uc) {
				return false
			}
		}
		return true
	}
	return other.IsEmpty()
}

func (c *Single) AllowsAny(other Constraint) bool {
	if c.op == OpEq {
		return other.Allows(c)
	}
	switch o := other.(type) {
	case *Single:
		if o.op == OpEq {
			return c.Allows(o)
		}
		if o.op == OpNotIn && c.op == OpIn {
			return !strings.Contains(c.value, o.value)
		}
		if o.op == OpIn && c.op == OpNotIn {
			return !strings.Contains(o.value, c.value)
		}
		return true
	case *Multi:
		return c.op == OpNe
	case *Union:
		if c.op != OpNe {
			return false
		}
		for _, uc := range o.constraints {
			if c.AllowsAny(uc) {
				return true
			}
		}
		return false
	}
	return other.IsAny()
}

func (c *Single) Invert() Constraint {
	return &Single{value: c.value, op: invertedOp[c.op], extra: c.extra}
}

func (c *Single) Intersect(other Constraint) Constraint {
	o, ok := other.(*Single)
	if !ok {
		return other.Intersect(c)
	}
	if c.extra {
		// Multiple extras may be active at once, so different-valued
		// equality atoms coexist in a conjunction instead of collapsing.
		if c.Equal(o) {
			return c
		}
		if c.value == o.value && c.op != o.op {
			return Empty()
		}
		return newMulti(true, c, o)
	}
	if c.Equal(o) {
		return c
	}
	if c.AllowsAll(o) {
		return o
	}
	if o.AllowsAll(c) {
		return c
	}
	if !c.AllowsAny(o) || !o.AllowsAny(c) {
		return Empty()
	}
	return newMulti(false, c, o)
}

func (c *Single) Union(other Constraint) Constraint {
	o, ok := other.(*Single)
	if !ok {
		if u, isUnion := other.(*Union); isUnion {
			// Route through a one-element union to preserve ordering.
			return NewUnion(c).Union(u)
		}
		return other.Union(c)
	}
	if c.extra {
		if c.Equal(o) {
			return c
		}
		if c.value == o.value && c.op != o.op {
			return Any()
		}
		return NewUnion(c, o)
	}
	if c.Equal(o) {
		return c
	}
	if c.AllowsAll(o) {
		return c
	}
	if o.AllowsAll(c) {
		return o
	}

	bothNe := c.op == OpNe && o.op == OpNe
	bothNotIn := c.op == OpNotIn && o.op == OpNotIn
	mixedIn := (opsAre(c, o, OpIn, OpNe) || opsAre(c, o, OpIn, OpNotIn)) &&
		c.op == OpIn && strings.Contains(o.value, c.value)
	otherInSelf := o.op == OpIn && strings.Contains(c.value, o.value)
	if bothNe || bothNotIn || mixedIn || otherInSelf || c.Invert().Equal(o) {
		return Any()
	}
	return NewUnion(c, o)
}

// opsAre reports whether the operator pair {a.op, b.op} equals {op1, op2}.
func opsAre(a, b *Single, op1, op2 string) bool {
	return (a.op == op1 && b.op == op2) || (a.op == op2 && b.op == op1)
}
