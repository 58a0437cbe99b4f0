package packages

import (
	"testing"

	"github.com/pysolve/pysolve/marker"
	"github.com/pysolve/pysolve/version"
)

func TestNewDependency(t *testing.T) {
	d := NewDependency("Zope.Interface", version.MustParseConstraint("^5.0"), "main")

	if d.Name != "zope-interface" {
		t.Errorf("Name = %q, want canonicalized name", d.Name)
	}
	if len(d.Groups) != 1 || d.Groups[0] != "main" {
		t.Errorf("Groups = %v", d.Groups)
	}
	if !d.Marker.IsAny() || !d.TransitiveMarker.IsAny() {
		t.Error("new dependencies start with the any marker")
	}
}

func TestCompleteName(t *testing.T) {
	d := NewDependency("requests", version.MustParseConstraint("*"))
	if d.CompleteName() != "requests" {
		t.Errorf("CompleteName = %q", d.CompleteName())
	}

	d.Extras = []string{"Socks", "security"}
	if got := d.CompleteName(); got != "requests[security,socks]" {
		t.Errorf("CompleteName with extras = %q, want sorted canonical extras", got)
	}
}

func TestWithConstraint(t *testing.T) {
	d := NewDependency("requests", version.MustParseConstraint("^2.0"), "main")
	d.Marker = marker.MustParse(`sys_platform == "linux"`)

	clone := d.WithConstraint(version.MustParseConstraint("^3.0"))
	if clone == d {
		t.Fatal("WithConstraint must return a copy")
	}
	if !clone.Constraint.Allows(version.MustParse("3.1.0")) {
		t.Error("clone should carry the new constraint")
	}
	if d.Constraint.Allows(version.MustParse("3.1.0")) {
		t.Error("original constraint must be untouched")
	}
	if !clone.Marker.Equal(d.Marker) {
		t.Error("clone should keep the marker")
	}
}

func TestDependencyEqual(t *testing.T) {
	a := NewDependency("requests", version.MustParseConstraint("^2.0"))
	b := NewDependency("requests", version.MustParseConstraint("^2.0"))
	if !a.Equal(b) {
		t.Error("identical dependencies should be equal")
	}

	b.Marker = marker.MustParse(`sys_platform == "linux"`)
	if !a.Equal(b) {
		t.Error("markers are not part of dependency identity")
	}

	c := NewDependency("requests", version.MustParseConstraint("^3.0"))
	if a.Equal(c) {
		t.Error("different constraints are not equal")
	}

	d := NewDependency("requests", version.MustParseConstraint("^2.0"))
	d.SourceKind = SourceGit
	if a.Equal(d) {
		t.Error("different source kinds are not equal")
	}
}

func TestPackageSatisfies(t *testing.T) {
	p := NewPackage("requests", version.MustParse("2.28.1"))

	if !p.Satisfies(NewDependency("requests", version.MustParseConstraint("^2.0"))) {
		t.Error("2.28.1 satisfies ^2.0")
	}
	if p.Satisfies(NewDependency("requests", version.MustParseConstraint("^3.0"))) {
		t.Error("2.28.1 does not satisfy ^3.0")
	}
}

func TestAddDependency(t *testing.T) {
	p := NewPackage("flask", version.MustParse("2.0.0"))
	p.AddDependency(NewDependency("werkzeug", version.MustParseConstraint(">=2.0")))
	p.AddDependency(NewDependency("jinja2", version.MustParseConstraint(">=3.0")))

	if len(p.Requires) != 2 {
		t.Fatalf("Requires has %d entries, want 2", len(p.Requires))
	}
	if p.Requires[0].Name != "werkzeug" || p.Requires[1].Name != "jinja2" {
		t.Error("dependencies should keep insertion order")
	}
}
