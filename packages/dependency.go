// Package packages holds the dependency and package model the solver
// operates on: canonical names, version requirements with their
// markers, and resolved package versions.
package packages

import (
	"sort"
	"strings"

	"github.com/pysolve/pysolve/marker"
	"github.com/pysolve/pysolve/pep503"
	"github.com/pysolve/pysolve/version"
)

// CanonicalizeName normalizes a distribution name per PEP 503.
func CanonicalizeName(name string) string { return pep503.CanonicalizeName(name) }

// Source kinds that count as direct origins. A dependency on a direct
// origin pins an artifact rather than a version range.
const (
	SourceGit       = "git"
	SourceURL       = "url"
	SourceFile      = "file"
	SourceDirectory = "directory"
)

// Dependency is one requirement edge: a package name, the allowed
// version constraint, and the conditions under which the edge applies.
type Dependency struct {
	// Name is the canonical target name.
	Name       string
	Constraint version.Constraint

	// Groups are the dependency groups the edge was declared in
	// ("main", "dev", ...).
	Groups []string

	// Marker is the declared environment marker. TransitiveMarker
	// starts out identical and accumulates the markers of merged terms
	// during resolution.
	Marker           marker.Marker
	TransitiveMarker marker.Marker

	// Extras are the extras requested of the target package. InExtras
	// are the extras of the declaring package that activate this edge.
	Extras   []string
	InExtras []string

	// SourceKind is empty for registry dependencies, or one of the
	// Source* constants for direct origins.
	SourceKind string

	// Root marks the synthetic dependency representing the project
	// itself.
	Root     bool
	Optional bool
}

// NewDependency builds a registry dependency with no marker.
func NewDependency(name string, c version.Constraint, groups ...string) *Dependency {
	return &Dependency{
		Name:             pep503.CanonicalizeName(name),
		Constraint:       c,
		Groups:           groups,
		Marker:           marker.AnyMarker(),
		TransitiveMarker: marker.AnyMarker(),
	}
}

// WithConstraint clones the dependency with a different constraint.
func (d *Dependency) WithConstraint(c version.Constraint) *Dependency {
	clone := *d
	clone.Constraint = c
	return &clone
}

// CompleteName is the name plus the sorted requested extras, e.g.
// "requests[security,socks]". It distinguishes feature variants of the
// same package during resolution.
func (d *Dependency) CompleteName() string { return completeName(d.Name, d.Extras) }

func (d *Dependency) IsDirectOrigin() bool { return d.SourceKind != "" }

// SamePackageAs reports whether both dependencies target the same base
// package, extras aside.
func (d *Dependency) SamePackageAs(other *Dependency) bool { return d.Name == other.Name }

// Equal compares the requirement itself; markers are deliberately not
// part of the comparison.
func (d *Dependency) Equal(other *Dependency) bool {
	return d.CompleteName() == other.CompleteName() &&
		d.SourceKind == other.SourceKind &&
		d.Constraint.Equal(other.Constraint)
}

func completeName(name string, extras []string) string {
	if len(extras) == 0 {
		return name
	}
	canonical := make([]string, 0, len(extras))
	for _, e := range extras {
		canonical = append(canonical, pep503.CanonicalizeName(e))
	}
	sort.Strings(canonical)
	return name + "[" + strings.Join(canonical, ",") + "]"
}

func (d *Dependency) String() string {
	s := d.CompleteName() + " (" + d.Constraint.String() + ")"
	if !d.Marker.IsAny() {
		s += " ; " + d.Marker.String()
	}
	return s
}
