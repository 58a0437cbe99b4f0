package solver

import (
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/pysolve/pysolve/marker"
	"github.com/pysolve/pysolve/packages"
	"github.com/pysolve/pysolve/version"
)

func newSolver(root *packages.Package) *Solver {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return New(root, version.AnyConstraint(), logger)
}

func TestAggregateDepthsAndMarkers(t *testing.T) {
	root := packages.NewPackage("root", version.MustParse("1.0.0"))
	root.Root = true
	a := packages.NewPackage("a", version.MustParse("1.0.0"))
	b := packages.NewPackage("b", version.MustParse("1.0.0"))
	c := packages.NewPackage("c", version.MustParse("1.0.0"))

	depA := packages.NewDependency("a", version.MustParseConstraint("*"), "main")
	depA.Marker = marker.MustParse(`sys_platform == "linux"`)
	depB := packages.NewDependency("b", version.MustParseConstraint("*"), "dev")
	root.AddDependency(depA)
	root.AddDependency(depB)

	a.AddDependency(packages.NewDependency("c", version.MustParseConstraint("*")))
	b.AddDependency(packages.NewDependency("c", version.MustParseConstraint("*")))

	solved := newSolver(root).Aggregate([]*packages.Package{a, b, c})

	infoA, infoB, infoC := solved[a], solved[b], solved[c]
	if infoA == nil || infoB == nil || infoC == nil {
		t.Fatalf("missing aggregation results: a=%v b=%v c=%v", infoA, infoB, infoC)
	}

	if infoA.Depth != 0 || infoB.Depth != 0 {
		t.Errorf("top-level depths = %d, %d, want 0, 0", infoA.Depth, infoB.Depth)
	}
	if infoC.Depth != 1 {
		t.Errorf("transitive depth = %d, want 1", infoC.Depth)
	}

	if got := infoC.SortedGroups(); len(got) != 2 || got[0] != "dev" || got[1] != "main" {
		t.Errorf("groups of c = %v, want [dev main]", got)
	}

	if got := infoA.Markers["main"].String(); got != `sys_platform == "linux"` {
		t.Errorf("marker of a = %q", got)
	}
	if got := infoC.Markers["main"].String(); got != `sys_platform == "linux"` {
		t.Errorf("main marker of c = %q, want the marker inherited from a", got)
	}
	if !infoC.Markers["dev"].IsAny() {
		t.Errorf("dev marker of c = %s, want any", infoC.Markers["dev"])
	}
}

func TestAggregateCyclicDependencies(t *testing.T) {
	root := packages.NewPackage("root", version.MustParse("1.0.0"))
	root.Root = true
	a := packages.NewPackage("a", version.MustParse("1.0.0"))
	b := packages.NewPackage("b", version.MustParse("1.0.0"))
	c := packages.NewPackage("c", version.MustParse("1.0.0"))

	depA := packages.NewDependency("a", version.MustParseConstraint("*"), "main")
	depA.Marker = marker.MustParse(`sys_platform == "linux"`)
	depB := packages.NewDependency("b", version.MustParseConstraint("*"), "main")
	depB.Marker = marker.MustParse(`sys_platform == "linux"`)
	root.AddDependency(depA)
	root.AddDependency(depB)

	// a and b depend on each other
	a.AddDependency(packages.NewDependency("b", version.MustParseConstraint("*")))
	b.AddDependency(packages.NewDependency("a", version.MustParseConstraint("*")))
	a.AddDependency(packages.NewDependency("c", version.MustParseConstraint("*")))

	solved := newSolver(root).Aggregate([]*packages.Package{a, b, c})

	infoA, infoB, infoC := solved[a], solved[b], solved[c]
	if infoA == nil || infoB == nil || infoC == nil {
		t.Fatalf("missing aggregation results: a=%v b=%v c=%v", infoA, infoB, infoC)
	}

	// the back edge from b must not deepen a
	if infoA.Depth != 0 {
		t.Errorf("depth of a = %d, want 0", infoA.Depth)
	}
	if infoB.Depth != 1 {
		t.Errorf("depth of b = %d, want 1", infoB.Depth)
	}
	if infoC.Depth != 1 {
		t.Errorf("depth of c = %d, want 1", infoC.Depth)
	}

	for pkg, info := range map[string]*TransitivePackageInfo{"a": infoA, "b": infoB, "c": infoC} {
		if got := info.SortedGroups(); len(got) != 1 || got[0] != "main" {
			t.Errorf("groups of %s = %v, want [main]", pkg, got)
		}
		// the cycle needs a second marker sweep; the platform condition
		// must survive it on every package
		if got := info.Markers["main"].String(); got != `sys_platform == "linux"` {
			t.Errorf("main marker of %s = %q, want the root condition", pkg, got)
		}
	}
}

func TestAggregateMergesFeaturePackages(t *testing.T) {
	root := packages.NewPackage("root", version.MustParse("1.0.0"))
	root.Root = true

	base := packages.NewPackage("foo", version.MustParse("1.0.0"))
	feature := packages.NewPackage("foo", version.MustParse("1.0.0"))
	feature.Features = []string{"bar"}
	extraDep := packages.NewPackage("extra-dep", version.MustParse("2.0.0"))

	depFeature := packages.NewDependency("foo", version.MustParseConstraint("*"), "main")
	depFeature.Extras = []string{"bar"}
	root.AddDependency(depFeature)

	feature.AddDependency(packages.NewDependency("foo", version.MustParseConstraint("1.0.0")))
	feature.AddDependency(packages.NewDependency("extra-dep", version.MustParseConstraint("^2.0")))

	solved := newSolver(root).Aggregate([]*packages.Package{base, feature, extraDep})

	if _, ok := solved[feature]; ok {
		t.Error("feature packages must not appear in the result")
	}
	info := solved[base]
	if info == nil {
		t.Fatal("base package missing from the result")
	}
	// the feature node and its base share the package name, so the
	// feature hop does not add depth
	if info.Depth != 0 {
		t.Errorf("depth of base = %d, want 0", info.Depth)
	}

	if len(base.Requires) != 1 || base.Requires[0].Name != "extra-dep" {
		t.Fatalf("base requirements = %v, want the feature's dependency", base.Requires)
	}

	if solved[extraDep] == nil {
		t.Fatal("feature dependency missing from the result")
	} else if solved[extraDep].Depth != 1 {
		t.Errorf("depth of extra-dep = %d, want 1", solved[extraDep].Depth)
	}
}

func TestMergeOverridePackagesShortcut(t *testing.T) {
	foo := packages.NewPackage("foo", version.MustParse("1.0.0"))

	branch := func(overrideMarker string, depth int) OverrideResult {
		dep := packages.NewDependency("bar", version.MustParseConstraint("*"))
		dep.Marker = marker.MustParse(overrideMarker)
		return OverrideResult{
			Override: map[*packages.Package]map[string]*packages.Dependency{
				foo: {"bar": dep},
			},
			Packages: map[*packages.Package]*TransitivePackageInfo{
				foo: {
					Depth:   depth,
					Groups:  map[string]struct{}{"main": {}},
					Markers: map[string]marker.Marker{"main": marker.MustParse(`sys_platform == "win32"`)},
				},
			},
		}
	}

	merged := MergeOverridePackages(
		[]OverrideResult{
			branch(`python_version >= "3.8"`, 1),
			branch(`python_version < "3.8"`, 3),
		},
		version.MustParseConstraint(">=3.8"),
	)

	info := merged[foo]
	if info == nil {
		t.Fatal("merged result missing foo")
	}
	if info.Depth != 3 {
		t.Errorf("depth = %d, want the maximum across branches", info.Depth)
	}
	// the python split covers all environments, so only the shared
	// platform condition remains
	if got := info.Markers["main"].String(); got != `sys_platform == "win32"` {
		t.Errorf("merged marker = %q, want the shared platform condition", got)
	}
}

func TestMergeOverridePackagesFallback(t *testing.T) {
	foo := packages.NewPackage("foo", version.MustParse("1.0.0"))

	branch := func(overrideMarker, pkgMarker string) OverrideResult {
		dep := packages.NewDependency("bar", version.MustParseConstraint("*"))
		dep.Marker = marker.MustParse(overrideMarker)
		return OverrideResult{
			Override: map[*packages.Package]map[string]*packages.Dependency{
				foo: {"bar": dep},
			},
			Packages: map[*packages.Package]*TransitivePackageInfo{
				foo: {
					Groups:  map[string]struct{}{"main": {}},
					Markers: map[string]marker.Marker{"main": marker.MustParse(pkgMarker)},
				},
			},
		}
	}

	merged := MergeOverridePackages(
		[]OverrideResult{
			branch(`python_version >= "3.8"`, `os_name == "nt"`),
			branch(`python_version < "3.8"`, `os_name == "posix"`),
		},
		version.AnyConstraint(),
	)

	m := merged[foo].Markers["main"]
	tests := []struct {
		python, osName string
		want           bool
	}{
		{"3.9", "nt", true},
		{"3.9", "posix", false},
		{"3.6", "posix", true},
		{"3.6", "nt", false},
	}
	for _, tt := range tests {
		env := &marker.Environment{Values: map[string]string{
			"python_version": tt.python,
			"os_name":        tt.osName,
		}}
		if got := m.Matches(env); got != tt.want {
			t.Errorf("merged marker %s on python %s / %s = %v, want %v",
				m, tt.python, tt.osName, got, tt.want)
		}
	}
}
