package solver

import (
	"sort"
	"strings"

	"github.com/pysolve/pysolve/marker"
	"github.com/pysolve/pysolve/packages"
)

// TransitivePackageInfo is the aggregation result for one package: how
// deep it sits in the dependency graph, which groups pull it in, and
// the environment marker under which each group needs it.
type TransitivePackageInfo struct {
	Depth   int
	Groups  map[string]struct{}
	Markers map[string]marker.Marker
}

func (t *TransitivePackageInfo) SortedGroups() []string {
	groups := make([]string, 0, len(t.Groups))
	for g := range t.Groups {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

// nodeID identifies a DFS node: one package reached through a
// particular group set and optionality.
type nodeID struct {
	pkg      *packages.Package
	groups   string
	optional bool
}

// PackageNode is a node of the dependency graph traversal. The same
// package appears once per distinct (groups, optional) combination it
// is reached with.
type PackageNode struct {
	pkg      *packages.Package
	packages []*packages.Package

	dep      *packages.Dependency
	marker   marker.Marker
	depth    int
	groups   []string
	optional bool

	id nodeID
}

func newRootNode(root *packages.Package, pkgs []*packages.Package) *PackageNode {
	n := &PackageNode{
		pkg:      root,
		packages: pkgs,
		marker:   marker.AnyMarker(),
		depth:    -1,
		optional: true,
	}
	n.id = nodeID{pkg: root, groups: "", optional: true}
	return n
}

func newPackageNode(
	pkg *packages.Package, pkgs []*packages.Package,
	dep *packages.Dependency, m marker.Marker,
) *PackageNode {
	groups := append([]string(nil), dep.Groups...)
	sort.Strings(groups)
	n := &PackageNode{
		pkg:      pkg,
		packages: pkgs,
		dep:      dep,
		marker:   m,
		depth:    -1,
		groups:   groups,
		optional: dep.Optional,
	}
	n.id = nodeID{pkg: pkg, groups: strings.Join(groups, "\x00"), optional: dep.Optional}
	return n
}

func (n *PackageNode) Package() *packages.Package { return n.pkg }
func (n *PackageNode) Depth() int { return n.depth }

// reachable returns a child node for every requirement of this node's
// package that is satisfied by a solved package. Requirements activated
// by root extras get the extra condition folded into their marker.
func (n *PackageNode) reachable() []*PackageNode {
	var children []*PackageNode

	for _, dependency := range n.pkg.Requires {
		for _, pkg := range n.packages {
			if pkg.CompleteName() != dependency.CompleteName() || !pkg.Satisfies(dependency) {
				continue
			}
			m := dependency.Marker
			if n.pkg.Root && len(dependency.InExtras) > 0 {
				parts := make([]string, 0, len(dependency.InExtras))
				for _, extra := range dependency.InExtras {
					parts = append(parts, `extra == "`+extra+`"`)
				}
				m = m.Intersect(marker.MustParse(strings.Join(parts, " or ")))
			}
			dep := n.dep
			if dep == nil {
				dep = dependency
			}
			children = append(children, newPackageNode(pkg, n.packages, dep, m))
		}
	}

	return children
}

// visit computes the node's depth from its parents. A parent of the
// same base package is a cycle edge and contributes its own depth
// reduced by one, so cycles do not deepen. The root has no parents and
// keeps depth -1, which puts top-level dependencies at depth 0.
func (n *PackageNode) visit(parents []*PackageNode) {
	maxDepth := -2
	for _, parent := range parents {
		depth := parent.depth
		if parent.pkg.Name == n.pkg.Name {
			depth--
		}
		if depth > maxDepth {
			maxDepth = depth
		}
	}
	n.depth = 1 + maxDepth
}

// markerOrigins records, per (package, parent) pair, the union of the
// edge markers through which the parent requires the package. Insertion
// order of parents is preserved for deterministic aggregation.
type markerOrigins struct {
	parents map[*packages.Package][]*packages.Package
	m       map[*packages.Package]map[*packages.Package]marker.Marker
}

func newMarkerOrigins() *markerOrigins {
	return &markerOrigins{
		parents: map[*packages.Package][]*packages.Package{},
		m:       map[*packages.Package]map[*packages.Package]marker.Marker{},
	}
}

func (o *markerOrigins) get(pkg, parent *packages.Package) marker.Marker {
	if m, ok := o.m[pkg][parent]; ok {
		return m
	}
	return marker.EmptyMarker()
}

func (o *markerOrigins) set(pkg, parent *packages.Package, m marker.Marker) {
	byParent, ok := o.m[pkg]
	if !ok {
		byParent = map[*packages.Package]marker.Marker{}
		o.m[pkg] = byParent
	}
	if _, seen := byParent[parent]; !seen {
		o.parents[pkg] = append(o.parents[pkg], parent)
	}
	byParent[parent] = m
}

// depthFirstSearch walks the graph from the root node, assigns depths,
// collects edge markers, and returns the nodes grouped per package in
// topological order.
func depthFirstSearch(source *PackageNode) ([][]*PackageNode, *markerOrigins) {
	backEdges := map[nodeID][]*PackageNode{}
	markers := newMarkerOrigins()
	visited := map[nodeID]bool{}
	var topoSorted []*PackageNode

	dfsVisit(source, backEdges, visited, &topoSorted, markers)

	combined := map[*packages.Package][]*PackageNode{}
	for _, node := range topoSorted {
		node.visit(backEdges[node.id])
		combined[node.pkg] = append(combined[node.pkg], node)
	}

	var combinedTopoSorted [][]*PackageNode
	for _, node := range topoSorted {
		if nodes, ok := combined[node.pkg]; ok {
			combinedTopoSorted = append(combinedTopoSorted, nodes)
			delete(combined, node.pkg)
		}
	}

	return combinedTopoSorted, markers
}

func dfsVisit(
	node *PackageNode,
	backEdges map[nodeID][]*PackageNode,
	visited map[nodeID]bool,
	sorted *[]*PackageNode,
	markers *markerOrigins,
) {
	if visited[node.id] {
		return
	}
	visited[node.id] = true

	for _, neighbor := range node.reachable() {
		backEdges[neighbor.id] = append(backEdges[neighbor.id], node)
		edgeMarker := neighbor.marker
		if !node.pkg.Root {
			edgeMarker = edgeMarker.WithoutExtras()
		}
		markers.set(neighbor.pkg, node.pkg,
			markers.get(neighbor.pkg, node.pkg).Union(edgeMarker))
		dfsVisit(neighbor, backEdges, visited, sorted, markers)
	}
	*sorted = append([]*PackageNode{node}, *sorted...)
}

// aggregatePackageNodes combines the nodes of one package into a single
// TransitivePackageInfo: deepest depth, union of groups, optional only
// if every route is optional. Markers are filled in later, once all
// packages are aggregated.
func aggregatePackageNodes(nodes []*PackageNode) (*packages.Package, *TransitivePackageInfo) {
	pkg := nodes[0].pkg
	depth := nodes[0].depth
	groups := map[string]struct{}{}
	optional := true
	for _, node := range nodes {
		if node.depth > depth {
			depth = node.depth
		}
		for _, g := range node.groups {
			groups[g] = struct{}{}
		}
		optional = optional && node.optional
	}
	for _, node := range nodes {
		node.depth = depth
		node.optional = optional
	}
	pkg.Optional = optional

	return pkg, &TransitivePackageInfo{Depth: depth, Groups: groups, Markers: map[string]marker.Marker{}}
}

// calculateMarkers computes per-group markers from the edge markers,
// walking packages from lowest to highest depth. A cycle can leave a
// parent's markers incomplete on the first pass, in which case the
// sweep is repeated until everything is complete.
func calculateMarkers(
	result map[*packages.Package]*TransitivePackageInfo, markers *markerOrigins,
) {
	byDepth := map[int][]*packages.Package{}
	maxDepth := -1
	for pkg, info := range result {
		if info.Depth > maxDepth {
			maxDepth = info.Depth
		}
		byDepth[info.Depth] = append(byDepth[info.Depth], pkg)
	}
	for _, pkgs := range byDepth {
		sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].CompleteName() < pkgs[j].CompleteName() })
	}

	incomplete := true
	for incomplete {
		incomplete = false
		for depth := 0; depth <= maxDepth; depth++ {
			for _, pkg := range byDepth[depth] {
				info := result[pkg]
				transitive := map[string]marker.Marker{}
				for g := range info.Groups {
					transitive[g] = marker.EmptyMarker()
				}
				for _, parent := range markers.parents[pkg] {
					m := markers.m[pkg][parent]
					parentInfo := result[parent]
					if len(parentInfo.Groups) > 0 {
						if !groupsComplete(parentInfo) {
							// cycle, needs one more iteration
							incomplete = true
							continue
						}
						for g := range parentInfo.Groups {
							transitive[g] = transitive[g].Union(parentInfo.Markers[g].Intersect(m))
						}
					} else {
						for g := range info.Groups {
							transitive[g] = transitive[g].Union(m)
						}
					}
				}
				info.Markers = transitive
			}
		}
	}
}

func groupsComplete(info *TransitivePackageInfo) bool {
	if len(info.Markers) != len(info.Groups) {
		return false
	}
	for g := range info.Groups {
		if _, ok := info.Markers[g]; !ok {
			return false
		}
	}
	return true
}
