package marker

import (
	"testing"

	"github.com/pysolve/pysolve/version"
)

func parse(t *testing.T, text string) Marker {
	t.Helper()
	m, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse(%q): %v", text, err)
	}
	return m
}

func TestParseString(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{`sys_platform == "linux"`, `sys_platform == "linux"`},
		{`python_version >= "3.6"`, `python_version >= "3.6"`},
		{`python_version >= "3.6" and os_name == "nt"`, `python_version >= "3.6" and os_name == "nt"`},
		{`sys_platform == "linux" or sys_platform == "darwin"`, `sys_platform == "linux" or sys_platform == "darwin"`},
		{`extra == "foo"`, `extra == "foo"`},
		{`os.name == "posix"`, `os_name == "posix"`},
		{`'linux' == sys_platform or os_name == "java"`, `"linux" == sys_platform or os_name == "java"`},
	}
	for _, tt := range tests {
		m := parse(t, tt.text)
		if got := m.String(); got != tt.want {
			t.Errorf("Parse(%q).String() = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestParseSpecial(t *testing.T) {
	if m := parse(t, ""); !m.IsAny() {
		t.Errorf("empty string should parse to the any marker, got %s", m)
	}
	if m := parse(t, "<empty>"); !m.IsEmpty() {
		t.Errorf("<empty> should parse to the empty marker, got %s", m)
	}
	for _, text := range []string{`sys_platform ==`, `== "linux"`, `sys_platform = "linux"`, `sys_platform == "linux" trailing`} {
		if _, err := Parse(text); err == nil {
			t.Errorf("Parse(%q) should fail", text)
		}
	}
}

func TestIntersect(t *testing.T) {
	tests := []struct {
		a, b string
		want string
	}{
		{`sys_platform == "linux"`, `sys_platform == "win32"`, `<empty>`},
		{`python_version >= "3.6"`, `python_version < "3.6"`, `<empty>`},
		{`python_version >= "3.6"`, `python_version >= "3.7"`, `python_version >= "3.7"`},
		{`sys_platform == "linux"`, `os_name == "posix"`, `sys_platform == "linux" and os_name == "posix"`},
		{`python_version >= "3.6"`, `python_version < "3.9"`, `python_version >= "3.6" and python_version < "3.9"`},
	}
	for _, tt := range tests {
		a, b := parse(t, tt.a), parse(t, tt.b)
		if got := a.Intersect(b).String(); got != tt.want {
			t.Errorf("(%s) ∩ (%s) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestUnion(t *testing.T) {
	tests := []struct {
		a, b string
		want string
	}{
		{`python_version >= "3.6"`, `python_version < "3.6"`, ``},
		{`python_version >= "3.6"`, `python_version >= "3.7"`, `python_version >= "3.6"`},
		{`sys_platform == "linux"`, `sys_platform == "win32"`, `sys_platform == "linux" or sys_platform == "win32"`},
	}
	for _, tt := range tests {
		a, b := parse(t, tt.a), parse(t, tt.b)
		got := a.Union(b)
		if tt.want == "" {
			if !got.IsAny() {
				t.Errorf("(%s) ∪ (%s) = %q, want any", tt.a, tt.b, got)
			}
			continue
		}
		if got.String() != tt.want {
			t.Errorf("(%s) ∪ (%s) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestAnyEmptyIdentities(t *testing.T) {
	m := parse(t, `sys_platform == "linux"`)

	if got := AnyMarker().Intersect(m); !got.Equal(m) {
		t.Errorf("any ∩ m = %s, want %s", got, m)
	}
	if got := AnyMarker().Union(m); !got.IsAny() {
		t.Errorf("any ∪ m = %s, want any", got)
	}
	if got := EmptyMarker().Intersect(m); !got.IsEmpty() {
		t.Errorf("empty ∩ m = %s, want empty", got)
	}
	if got := EmptyMarker().Union(m); !got.Equal(m) {
		t.Errorf("empty ∪ m = %s, want %s", got, m)
	}
}

func TestInvert(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{`python_version >= "3.6"`, `python_version < "3.6"`},
		{`sys_platform == "linux"`, `sys_platform != "linux"`},
		{`os_name in "posix java"`, `os_name not in "posix java"`},
	}
	for _, tt := range tests {
		m := parse(t, tt.text)
		if got := m.Invert().String(); got != tt.want {
			t.Errorf("invert(%s) = %q, want %q", tt.text, got, tt.want)
		}
		if got := m.Invert().Invert(); !got.Equal(m) {
			t.Errorf("double inversion of %s = %s, want the original", tt.text, got)
		}
	}

	conj := parse(t, `sys_platform == "linux" and os_name == "posix"`)
	inverted := conj.Invert()
	if got := inverted.String(); got != `sys_platform != "linux" or os_name != "posix"` {
		t.Errorf("invert(conjunction) = %q", got)
	}
	if got := inverted.Invert(); !got.Equal(conj) {
		t.Errorf("double inversion of conjunction = %s", got)
	}
}

func TestMatches(t *testing.T) {
	env := &Environment{Values: map[string]string{
		"python_version":   "3.8",
		"sys_platform":     "linux",
		"os_name":          "posix",
		"platform_release": "5.10.104-tegra",
	}}

	tests := []struct {
		text string
		want bool
	}{
		{`python_version >= "3.6"`, true},
		{`python_version < "3.6"`, false},
		{`sys_platform == "linux"`, true},
		{`sys_platform == "win32"`, false},
		{`sys_platform == "linux" and os_name == "posix"`, true},
		{`sys_platform == "win32" or os_name == "posix"`, true},
		{`sys_platform == "win32" and os_name == "posix"`, false},
		{`"tegra" in platform_release`, true},
		{`"generic" in platform_release`, false},
		{`"tegra" not in platform_release`, false},
		// names missing from the environment match anything
		{`platform_machine == "x86_64"`, true},
	}
	for _, tt := range tests {
		if got := parse(t, tt.text).Matches(env); got != tt.want {
			t.Errorf("(%s).Matches(env) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestMatchesExtras(t *testing.T) {
	foo := parse(t, `extra == "foo"`)
	notFoo := parse(t, `extra != "foo"`)

	withFoo := &Environment{Extras: []string{"foo"}}
	withBar := &Environment{Extras: []string{"bar"}}
	noExtras := &Environment{Extras: []string{}}

	if !foo.Matches(withFoo) {
		t.Error("extra == foo should match when foo is active")
	}
	if foo.Matches(withBar) || foo.Matches(noExtras) {
		t.Error("extra == foo must not match when foo is inactive")
	}
	if !notFoo.Matches(withBar) || !notFoo.Matches(noExtras) {
		t.Error("extra != foo should match when foo is inactive")
	}
	// nil extras means the extra variable is not part of the environment
	if !foo.Matches(&Environment{}) {
		t.Error("markers over absent variables match anything")
	}

	// extra name comparison is canonicalized
	fancy := parse(t, `extra == "Foo.Bar"`)
	if !fancy.Matches(&Environment{Extras: []string{"foo-bar"}}) {
		t.Error("extra comparison should canonicalize names")
	}
}

func TestWithoutExtras(t *testing.T) {
	m := parse(t, `extra == "foo" and sys_platform == "linux"`)
	if got := m.WithoutExtras().String(); got != `sys_platform == "linux"` {
		t.Errorf("WithoutExtras = %q", got)
	}

	only := parse(t, `extra == "foo"`)
	if got := only.WithoutExtras(); !got.IsAny() {
		t.Errorf("WithoutExtras(extra only) = %s, want any", got)
	}
}

func TestExcludeAndOnly(t *testing.T) {
	m := parse(t, `python_version >= "3.6" and sys_platform == "linux"`)

	if got := m.Exclude("sys_platform").String(); got != `python_version >= "3.6"` {
		t.Errorf("Exclude(sys_platform) = %q", got)
	}
	if got := m.Only("sys_platform").String(); got != `sys_platform == "linux"` {
		t.Errorf("Only(sys_platform) = %q", got)
	}
	if got := m.Only("platform_machine"); !got.IsAny() {
		t.Errorf("Only over absent names = %s, want any", got)
	}
}

func TestDistribution(t *testing.T) {
	union := parse(t, `sys_platform == "linux" or sys_platform == "darwin"`)
	other := parse(t, `os_name == "posix"`)

	got := other.Intersect(union).String()
	want := `os_name == "posix" and (sys_platform == "linux" or sys_platform == "darwin")`
	wantDistributed := `sys_platform == "linux" and os_name == "posix" or sys_platform == "darwin" and os_name == "posix"`
	if got != want && got != wantDistributed {
		t.Errorf("intersection with union = %q", got)
	}
	if m := parse(t, got); m.IsAny() || m.IsEmpty() {
		t.Errorf("result should stay a compound marker, got %s", m)
	}
}

func TestPythonConstraintBridge(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{`python_version >= "3.6"`, ">=3.6"},
		{`python_version >= "3.6" and python_version < "3.9"`, ">=3.6,<3.9"},
		{`sys_platform == "linux"`, "*"},
	}
	for _, tt := range tests {
		c := PythonConstraint(parse(t, tt.text))
		want := version.MustParseConstraint(tt.want)
		if !c.Equal(want) {
			t.Errorf("PythonConstraint(%s) = %s, want %s", tt.text, c, want)
		}
	}
}

func TestPythonVersionMarker(t *testing.T) {
	tests := []struct {
		constraint string
		want       string
	}{
		{">=3.6", `python_version >= "3.6"`},
		{">=3.6,<3.9", `python_version >= "3.6" and python_version < "3.9"`},
	}
	for _, tt := range tests {
		m := PythonVersionMarker(version.MustParseConstraint(tt.constraint))
		if got := m.String(); got != tt.want {
			t.Errorf("PythonVersionMarker(%s) = %q, want %q", tt.constraint, got, tt.want)
		}
	}
	if m := PythonVersionMarker(version.AnyConstraint()); !m.IsAny() {
		t.Errorf("PythonVersionMarker(*) = %s, want any", m)
	}
}

func TestReduceByPythonConstraint(t *testing.T) {
	pc := version.MustParseConstraint(">=3.8")

	covered := parse(t, `python_version >= "3.6"`)
	if got := covered.ReduceByPythonConstraint(pc); !got.IsAny() {
		t.Errorf("marker covered by the python constraint should reduce to any, got %s", got)
	}

	mixed := parse(t, `python_version >= "3.6" and sys_platform == "linux"`)
	if got := mixed.ReduceByPythonConstraint(pc).String(); got != `sys_platform == "linux"` {
		t.Errorf("reduced marker = %q", got)
	}

	relevant := parse(t, `python_version >= "3.9"`)
	if got := relevant.ReduceByPythonConstraint(pc); got.IsAny() {
		t.Error("marker narrower than the python constraint must survive")
	}
}

func TestIntersectVersionAcrossNames(t *testing.T) {
	full := parse(t, `python_full_version >= "3.6.2"`)
	short := parse(t, `python_version >= "3.6"`)

	got := short.Intersect(full)
	if got.IsEmpty() {
		t.Fatalf("(%s) ∩ (%s) is empty", short, full)
	}
	env := &Environment{Values: map[string]string{
		"python_version":      "3.7",
		"python_full_version": "3.7.1",
	}}
	if !got.Matches(env) {
		t.Errorf("%s should match python 3.7.1", got)
	}
	env36 := &Environment{Values: map[string]string{
		"python_version":      "3.6",
		"python_full_version": "3.6.1",
	}}
	if got.Matches(env36) {
		t.Errorf("%s must not match python 3.6.1", got)
	}
}

func TestComplexityOrdering(t *testing.T) {
	single := parse(t, `sys_platform == "linux"`)
	double := parse(t, `sys_platform == "linux" and os_name == "posix"`)

	if single.Complexity().Compare(double.Complexity()) >= 0 {
		t.Error("a single marker should be simpler than a conjunction")
	}
}

func TestCNFDNF(t *testing.T) {
	m := parse(t, `sys_platform == "linux" and (os_name == "posix" or os_name == "java")`)

	d := DNF(m)
	c := CNF(d)
	env := &Environment{Values: map[string]string{"sys_platform": "linux", "os_name": "java"}}
	if !c.Matches(env) || !d.Matches(env) || !m.Matches(env) {
		t.Error("normal forms must preserve satisfaction")
	}
	envNo := &Environment{Values: map[string]string{"sys_platform": "win32", "os_name": "java"}}
	if c.Matches(envNo) || d.Matches(envNo) {
		t.Error("normal forms must preserve non-satisfaction")
	}
}
