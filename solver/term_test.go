package solver

import (
	"testing"

	"github.com/pysolve/pysolve/marker"
	"github.com/pysolve/pysolve/packages"
	"github.com/pysolve/pysolve/version"
)

func term(t *testing.T, name, constraint string, positive bool) *Term {
	t.Helper()
	return NewTerm(packages.NewDependency(name, version.MustParseConstraint(constraint)), positive)
}

func TestRelation(t *testing.T) {
	tests := []struct {
		name            string
		constraint      string
		positive        bool
		otherConstraint string
		otherPositive   bool
		want            SetRelation
	}{
		// positive vs positive
		{"subset", "^1.5", true, "^1.0", true, Subset},
		{"disjoint ranges", "^2.0", true, "^1.0", true, Disjoint},
		{"overlap", "^1.0", true, "^1.5", true, Overlapping},
		// positive vs negative
		{"outside negation", "^2.0", true, "^1.0", false, Subset},
		{"inside negation", "^1.5", true, "^1.0", false, Disjoint},
		{"partial negation", "^1.0", true, "^1.5", false, Overlapping},
		// negative vs positive
		{"negation covers", "^1.0", false, "^1.5", true, Disjoint},
		{"negation partial", "^1.5", false, "^1.0", true, Overlapping},
		// negative vs negative
		{"negation subset", "^1.0", false, "^1.5", false, Subset},
		{"negation superset", "^1.5", false, "^1.0", false, Overlapping},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := term(t, "foo", tt.constraint, tt.positive)
			b := term(t, "foo", tt.otherConstraint, tt.otherPositive)
			if got := a.Relation(b); got != tt.want {
				t.Errorf("relation = %s, want %s", got, tt.want)
			}
		})
	}
}

// A positive term inside a negated term is normally disjoint with it,
// but differing transitive markers must keep the pair overlapping so
// the markers get merged instead of the term being dropped.
func TestRelationTransitiveMarkerGate(t *testing.T) {
	a := term(t, "foo", "^1.5", true)
	b := term(t, "foo", "^1.0", false)
	a.Dependency().TransitiveMarker = marker.MustParse(`sys_platform == "linux"`)

	if got := a.Relation(b); got != Overlapping {
		t.Errorf("relation = %s, want %s", got, Overlapping)
	}
}

func TestIntersect(t *testing.T) {
	pos10 := term(t, "foo", ">=1.0,<2.0", true)
	pos15 := term(t, "foo", ">=1.5,<3.0", true)

	got := pos10.Intersect(pos15)
	if got == nil || !got.IsPositive() {
		t.Fatalf("intersection = %v, want a positive term", got)
	}
	if !got.Constraint().Equal(version.MustParseConstraint(">=1.5,<2.0")) {
		t.Errorf("intersection constraint = %s", got.Constraint())
	}

	disjoint := term(t, "foo", "^1.0", true).Intersect(term(t, "foo", "^2.0", true))
	if disjoint != nil {
		t.Errorf("disjoint intersection = %v, want nil", disjoint)
	}
}

func TestIntersectMixedSigns(t *testing.T) {
	pos := term(t, "foo", ">=1.0,<2.0", true)
	neg := term(t, "foo", ">=1.5", false)

	got := pos.Intersect(neg)
	if got == nil || !got.IsPositive() {
		t.Fatalf("intersection = %v, want a positive term", got)
	}
	if !got.Constraint().Equal(version.MustParseConstraint(">=1.0,<1.5")) {
		t.Errorf("intersection constraint = %s", got.Constraint())
	}
}

func TestIntersectNegatives(t *testing.T) {
	a := term(t, "foo", "^1.0", false)
	b := term(t, "foo", ">=1.5,<3.0", false)

	got := a.Intersect(b)
	if got == nil || got.IsPositive() {
		t.Fatalf("intersection = %v, want a negative term", got)
	}
	if !got.Constraint().Equal(version.MustParseConstraint(">=1.0,<3.0")) {
		t.Errorf("intersection constraint = %s", got.Constraint())
	}
}

func TestIntersectUnionsTransitiveMarkers(t *testing.T) {
	a := term(t, "foo", ">=1.0,<2.0", true)
	b := term(t, "foo", ">=1.5,<3.0", true)
	a.Dependency().TransitiveMarker = marker.MustParse(`sys_platform == "linux"`)
	b.Dependency().TransitiveMarker = marker.MustParse(`sys_platform == "darwin"`)

	got := a.Intersect(b)
	if got == nil {
		t.Fatal("intersection is nil")
	}
	want := marker.MustParse(`sys_platform == "linux" or sys_platform == "darwin"`)
	if !got.Dependency().TransitiveMarker.Equal(want) {
		t.Errorf("transitive marker = %s, want %s", got.Dependency().TransitiveMarker, want)
	}
}

func TestSatisfies(t *testing.T) {
	narrow := term(t, "foo", "^1.5", true)
	wide := term(t, "foo", "^1.0", true)

	if !narrow.Satisfies(wide) {
		t.Error("^1.5 satisfies ^1.0")
	}
	if wide.Satisfies(narrow) {
		t.Error("^1.0 does not satisfy ^1.5")
	}
}

func TestDifference(t *testing.T) {
	a := term(t, "foo", ">=1.0,<2.0", true)
	b := term(t, "foo", ">=1.5", true)

	got := a.Difference(b)
	if got == nil {
		t.Fatal("difference is nil")
	}
	if !got.Constraint().Equal(version.MustParseConstraint(">=1.0,<1.5")) {
		t.Errorf("difference constraint = %s", got.Constraint())
	}
}

func TestInverse(t *testing.T) {
	a := term(t, "foo", "^1.0", true)
	if a.Inverse().IsPositive() {
		t.Error("inverse of a positive term is negative")
	}
	if !a.Inverse().Inverse().IsPositive() {
		t.Error("double inverse restores the sign")
	}
}
