package packages

import (
	"github.com/pysolve/pysolve/pep503"
	"github.com/pysolve/pysolve/version"
)

// Package is one resolved package version together with its outgoing
// requirements. A package solved with extras active is a feature
// variant and carries those extras in Features.
type Package struct {
	Name     string
	Version  *version.Version
	Features []string
	Requires []*Dependency

	Root     bool
	Optional bool
}

// NewPackage builds a package with a canonical name.
func NewPackage(name string, v *version.Version) *Package {
	return &Package{Name: pep503.CanonicalizeName(name), Version: v}
}

// CompleteName is the name plus the sorted feature set, matching
// Dependency.CompleteName for the variant that satisfies it.
func (p *Package) CompleteName() string { return completeName(p.Name, p.Features) }

// Satisfies reports whether this package version is allowed by the
// dependency's constraint.
func (p *Package) Satisfies(dep *Dependency) bool {
	return dep.Constraint.Allows(p.Version)
}

// AddDependency appends a requirement edge.
func (p *Package) AddDependency(dep *Dependency) {
	p.Requires = append(p.Requires, dep)
}

func (p *Package) String() string {
	return p.CompleteName() + " " + p.Version.String()
}
