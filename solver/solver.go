package solver

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pysolve/pysolve/marker"
	"github.com/pysolve/pysolve/packages"
	"github.com/pysolve/pysolve/version"
)

// Solver aggregates a set of solved packages into per-package
// transitive information: depth, groups and environment markers
// relative to the root package.
type Solver struct {
	logger           *logrus.Logger
	root             *packages.Package
	pythonConstraint version.Constraint
}

func New(root *packages.Package, pythonConstraint version.Constraint, logger *logrus.Logger) *Solver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Solver{logger: logger, root: root, pythonConstraint: pythonConstraint}
}

// Aggregate walks the dependency graph from the root through the given
// solved packages and computes a TransitivePackageInfo per package.
// Feature packages are merged into their base package and dropped from
// the result. Markers are simplified against the root's python
// constraint at the end.
func (s *Solver) Aggregate(pkgs []*packages.Package) map[*packages.Package]*TransitivePackageInfo {
	combinedNodes, markers := depthFirstSearch(newRootNode(s.root, pkgs))

	results := map[*packages.Package]*TransitivePackageInfo{}
	for _, nodes := range combinedNodes {
		pkg, info := aggregatePackageNodes(nodes)
		results[pkg] = info
	}
	calculateMarkers(results, markers)

	solved := map[*packages.Package]*TransitivePackageInfo{}
	for _, pkg := range pkgs {
		if len(pkg.Features) == 0 {
			solved[pkg] = results[pkg]
			continue
		}
		s.logger.WithField("package", pkg.CompleteName()).Debug("merging feature package into base")
		for _, base := range pkgs {
			if len(base.Features) > 0 || base.Name != pkg.Name || !base.Version.Equal(pkg.Version) {
				continue
			}
			for _, dep := range pkg.Requires {
				// a feature package depends on its base
				if base.Name == dep.Name {
					continue
				}
				if hasDependency(base, dep) {
					continue
				}
				base.AddDependency(dep)
			}
		}
	}

	for _, info := range solved {
		for group, m := range info.Markers {
			info.Markers[group] = SimplifyMarker(m, s.pythonConstraint)
		}
	}

	return solved
}

func hasDependency(pkg *packages.Package, dep *packages.Dependency) bool {
	for _, existing := range pkg.Requires {
		if existing.Equal(dep) && existing.Marker.Equal(dep.Marker) {
			return true
		}
	}
	return false
}

// OverrideResult is the outcome of one resolution branch: the override
// that was applied and the packages aggregated under it.
type OverrideResult struct {
	Override map[*packages.Package]map[string]*packages.Dependency
	Packages map[*packages.Package]*TransitivePackageInfo
}

// MergeOverridePackages combines the results of several override
// branches into one. Each branch's packages are guarded by the marker
// of its override; packages appearing in multiple branches get their
// per-group markers unioned across branches.
func MergeOverridePackages(
	results []OverrideResult, pythonConstraint version.Constraint,
) map[*packages.Package]*TransitivePackageInfo {
	merged := map[*packages.Package]*TransitivePackageInfo{}

	type branchEntry struct {
		pkg            *packages.Package
		info           *TransitivePackageInfo
		overrideMarker marker.Marker
	}
	allPackages := map[*packages.Package][]branchEntry{}
	var order []*packages.Package

	for _, result := range results {
		overrideMarker := marker.AnyMarker()
		for _, pkg := range sortedOverridePackages(result.Override) {
			deps := result.Override[pkg]
			names := make([]string, 0, len(deps))
			for name := range deps {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				overrideMarker = overrideMarker.Intersect(deps[name].Marker.WithoutExtras())
			}
		}
		overrideMarker = SimplifyMarker(overrideMarker, pythonConstraint)
		for _, pkg := range sortedResultPackages(result.Packages) {
			info := result.Packages[pkg]
			for group, m := range info.Markers {
				// the override marker gets intersected back in below, so
				// stripping it here loses nothing and makes it more likely
				// that the branches end up with equal markers
				info.Markers[group] = removeOtherFromMarker(m, overrideMarker)
			}
			if _, seen := allPackages[pkg]; !seen {
				order = append(order, pkg)
			}
			allPackages[pkg] = append(allPackages[pkg], branchEntry{pkg, info, overrideMarker})
		}
	}

	for _, pkg := range order {
		duplicates := allPackages[pkg]
		base := duplicates[0]
		remaining := duplicates[1:]
		info := base.info
		merged[pkg] = info

		for _, dup := range remaining {
			if dup.info.Depth > info.Depth {
				info.Depth = dup.info.Depth
			}
			for g := range dup.info.Groups {
				info.Groups[g] = struct{}{}
			}
		}

		sameMarkers := true
		for _, dup := range remaining {
			if !markerMapsEqual(dup.info.Markers, info.Markers) {
				sameMarkers = false
				break
			}
		}

		if sameMarkers {
			// markers are the same in every branch, so the cheap way
			// out is to union the branch markers once and intersect
			overrideMarker := marker.EmptyMarker()
			for _, dup := range duplicates {
				overrideMarker = overrideMarker.Union(dup.overrideMarker)
			}
			for group, m := range info.Markers {
				info.Markers[group] = overrideMarker.Intersect(m)
			}
		} else {
			for group, m := range info.Markers {
				info.Markers[group] = base.overrideMarker.Intersect(m)
			}
			for _, dup := range remaining {
				for _, group := range sortedGroups(dup.info.Markers) {
					existing, ok := info.Markers[group]
					if !ok {
						existing = marker.EmptyMarker()
					}
					info.Markers[group] = existing.Union(dup.overrideMarker.Intersect(dup.info.Markers[group]))
				}
			}
		}

		for _, dup := range remaining {
			for _, dep := range dup.pkg.Requires {
				if !containsDependency(pkg.Requires, dep) {
					pkg.AddDependency(dep)
				}
			}
		}
	}

	return merged
}

func markerMapsEqual(a, b map[string]marker.Marker) bool {
	if len(a) != len(b) {
		return false
	}
	for group, m := range a {
		other, ok := b[group]
		if !ok || !m.Equal(other) {
			return false
		}
	}
	return true
}

func containsDependency(deps []*packages.Dependency, dep *packages.Dependency) bool {
	for _, existing := range deps {
		if existing.Equal(dep) {
			return true
		}
	}
	return false
}

// removeOtherFromMarker strips the conjuncts of other out of marker.
// This is only used where other gets intersected back in afterwards,
// so dropping the conjuncts cannot change the final result.
func removeOtherFromMarker(m, other marker.Marker) marker.Marker {
	var otherMarkers []marker.Marker
	switch o := other.(type) {
	case *marker.SingleMarker:
		otherMarkers = []marker.Marker{o}
	case *marker.MultiMarker:
		otherMarkers = o.Markers()
	default:
		return m
	}
	multi, ok := m.(*marker.MultiMarker)
	if !ok {
		return m
	}
	children := multi.Markers()
	for _, om := range otherMarkers {
		if !containsMarker(children, om) {
			return m
		}
	}
	var rest []marker.Marker
	for _, child := range children {
		if !containsMarker(otherMarkers, child) {
			rest = append(rest, child)
		}
	}
	return marker.MultiMarkerOf(rest...)
}

func containsMarker(markers []marker.Marker, m marker.Marker) bool {
	for _, candidate := range markers {
		if candidate.Equal(m) {
			return true
		}
	}
	return false
}

func sortedOverridePackages(override map[*packages.Package]map[string]*packages.Dependency) []*packages.Package {
	pkgs := make([]*packages.Package, 0, len(override))
	for pkg := range override {
		pkgs = append(pkgs, pkg)
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].CompleteName() < pkgs[j].CompleteName() })
	return pkgs
}

func sortedResultPackages(result map[*packages.Package]*TransitivePackageInfo) []*packages.Package {
	pkgs := make([]*packages.Package, 0, len(result))
	for pkg := range result {
		pkgs = append(pkgs, pkg)
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].CompleteName() < pkgs[j].CompleteName() })
	return pkgs
}

func sortedGroups(markers map[string]marker.Marker) []string {
	groups := make([]string, 0, len(markers))
	for g := range markers {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

var simplifyCache = struct {
	mu sync.Mutex
	m  map[string]marker.Marker
}{m: map[string]marker.Marker{}}

// SimplifyMarker removes constraints from a marker that are already
// covered by the project's python constraint. Results are cached
// because the same markers come up over and over.
func SimplifyMarker(m marker.Marker, pythonConstraint version.Constraint) marker.Marker {
	key := m.String() + "\x00" + pythonConstraint.String()
	simplifyCache.mu.Lock()
	cached, ok := simplifyCache.m[key]
	simplifyCache.mu.Unlock()
	if ok {
		return cached
	}
	simplified := m.ReduceByPythonConstraint(pythonConstraint)
	simplifyCache.mu.Lock()
	simplifyCache.m[key] = simplified
	simplifyCache.mu.Unlock()
	return simplified
}
