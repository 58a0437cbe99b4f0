package version

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		text      string
		precision int
		unstable  bool
	}{
		{"1", 1, false},
		{"1.2", 2, false},
		{"1.2.3", 3, false},
		{"3.8.0", 3, false},
		{"1.0.0a1", 3, true},
		{"1.0.0rc2", 3, true},
	}
	for _, tt := range tests {
		v, err := Parse(tt.text)
		if err != nil {
			t.Errorf("Parse(%q): %v", tt.text, err)
			continue
		}
		if v.Precision() != tt.precision {
			t.Errorf("Parse(%q).Precision() = %d, want %d", tt.text, v.Precision(), tt.precision)
		}
		if v.IsUnstable() != tt.unstable {
			t.Errorf("Parse(%q).IsUnstable() = %v, want %v", tt.text, v.IsUnstable(), tt.unstable)
		}
	}

	for _, text := range []string{"", "abc", "1.x.3"} {
		if _, err := Parse(text); err == nil {
			t.Errorf("Parse(%q) should fail", text)
		}
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0", "1.0.0", 0},
		{"1.2.3", "1.2.4", -1},
		{"2.0.0", "1.9.9", 1},
		{"1.0.0a1", "1.0.0", -1},
	}
	for _, tt := range tests {
		a, b := MustParse(tt.a), MustParse(tt.b)
		if got := a.Compare(b); got != tt.want {
			t.Errorf("Compare(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestNextVersions(t *testing.T) {
	v := MustParse("1.2.3")
	if got := v.NextMajor(); !got.Equal(MustParse("2.0.0")) {
		t.Errorf("NextMajor(1.2.3) = %s", got)
	}
	if got := v.NextMinor(); !got.Equal(MustParse("1.3.0")) {
		t.Errorf("NextMinor(1.2.3) = %s", got)
	}
	if got := v.NextPatch(); !got.Equal(MustParse("1.2.4")) {
		t.Errorf("NextPatch(1.2.3) = %s", got)
	}
}

func TestParseConstraintAllows(t *testing.T) {
	tests := []struct {
		constraint string
		version    string
		want       bool
	}{
		{"*", "1.0.0", true},
		{"", "1.0.0", true},
		{"1.2.3", "1.2.3", true},
		{"1.2.3", "1.2.4", false},
		{"==1.2.3", "1.2.3", true},
		{"!=1.2.3", "1.2.3", false},
		{"!=1.2.3", "1.2.4", true},
		{">=3.8", "3.8", true},
		{">=3.8", "3.7.9", false},
		{">= 3.8", "3.9", true},
		{"<3.0", "2.7.18", true},
		{"<3.0", "3.0", false},
		{"^1.2.3", "1.5.0", true},
		{"^1.2.3", "2.0.0", false},
		{"^1.2.3", "1.2.2", false},
		{"^0.2.3", "0.2.9", true},
		{"^0.2.3", "0.3.0", false},
		{"~1.2.3", "1.2.9", true},
		{"~1.2.3", "1.3.0", false},
		{"~1.2", "1.2.9", true},
		{"~1.2", "1.3.0", false},
		{"~1", "1.9.0", true},
		{"~1", "2.0.0", false},
		{"~=1.2.3", "1.2.9", true},
		{"~=1.2.3", "1.3.0", false},
		{"~=1.2", "1.9.0", true},
		{"~=1.2", "2.0.0", false},
		{"==1.2.*", "1.2.5", true},
		{"==1.2.*", "1.3.0", false},
		{"!=1.2.*", "1.2.5", false},
		{"!=1.2.*", "1.3.0", true},
		{">=1.0,<2.0", "1.5.0", true},
		{">=1.0,<2.0", "2.0.0", false},
		{">=1.0 <2.0", "1.5.0", true},
		{"<1.0 || >=2.0", "0.9.0", true},
		{"<1.0 || >=2.0", "1.5.0", false},
		{"<1.0 || >=2.0", "2.0.0", true},
		{">=3.7,!=3.9.0", "3.9.0", false},
		{">=3.7,!=3.9.0", "3.9.1", true},
	}
	for _, tt := range tests {
		c, err := ParseConstraint(tt.constraint)
		if err != nil {
			t.Errorf("ParseConstraint(%q): %v", tt.constraint, err)
			continue
		}
		if got := c.Allows(MustParse(tt.version)); got != tt.want {
			t.Errorf("(%q).Allows(%s) = %v, want %v", tt.constraint, tt.version, got, tt.want)
		}
	}
}

func TestParseConstraintErrors(t *testing.T) {
	for _, text := range []string{">=", "==abc", "><1.0"} {
		if _, err := ParseConstraint(text); err == nil {
			t.Errorf("ParseConstraint(%q) should fail", text)
		}
	}
}

func TestRangeIntersect(t *testing.T) {
	lower := MustParseConstraint(">=1.0")
	upper := MustParseConstraint("<2.0")

	c := lower.Intersect(upper)
	if !c.Allows(MustParse("1.5.0")) {
		t.Error(">=1.0 ∩ <2.0 should allow 1.5.0")
	}
	if c.Allows(MustParse("2.0.0")) {
		t.Error(">=1.0 ∩ <2.0 must not allow 2.0.0")
	}
	if c.Allows(MustParse("0.9.0")) {
		t.Error(">=1.0 ∩ <2.0 must not allow 0.9.0")
	}

	disjoint := MustParseConstraint("<1.0").Intersect(MustParseConstraint(">=2.0"))
	if !disjoint.IsEmpty() {
		t.Errorf("<1.0 ∩ >=2.0 = %s, want <empty>", disjoint)
	}
}

func TestRangeUnion(t *testing.T) {
	c := MustParseConstraint("<1.0").Union(MustParseConstraint(">=2.0"))
	if _, ok := c.(*Union); !ok {
		t.Fatalf("<1.0 ∪ >=2.0 = %T, want *Union", c)
	}
	if !c.Allows(MustParse("0.5.0")) || !c.Allows(MustParse("2.0.0")) {
		t.Error("union should allow both sides")
	}
	if c.Allows(MustParse("1.5.0")) {
		t.Error("union must not allow the gap")
	}

	joined := MustParseConstraint(">=1.0,<1.5").Union(MustParseConstraint(">=1.5,<2.0"))
	if _, ok := joined.(*Range); !ok {
		t.Errorf("adjacent ranges should merge into a single range, got %T (%s)", joined, joined)
	}
	if !joined.Allows(MustParse("1.5.0")) {
		t.Error("merged range should allow the join point")
	}
}

func TestAllowsAllAllowsAny(t *testing.T) {
	wide := MustParseConstraint(">=1.0")
	narrow := MustParseConstraint(">=1.5,<2.0")

	if !wide.AllowsAll(narrow) {
		t.Error(">=1.0 should allow all of >=1.5,<2.0")
	}
	if narrow.AllowsAll(wide) {
		t.Error(">=1.5,<2.0 must not allow all of >=1.0")
	}
	if !wide.AllowsAny(narrow) {
		t.Error(">=1.0 and >=1.5,<2.0 overlap")
	}
	if MustParseConstraint("<1.0").AllowsAny(MustParseConstraint(">=2.0")) {
		t.Error("<1.0 and >=2.0 are disjoint")
	}
}

func TestDifference(t *testing.T) {
	c := MustParseConstraint(">=1.0,<3.0").Difference(MustParseConstraint(">=2.0"))
	if !c.Allows(MustParse("1.5.0")) {
		t.Error("difference should keep 1.5.0")
	}
	if c.Allows(MustParse("2.5.0")) {
		t.Error("difference must drop 2.5.0")
	}

	if got := AnyConstraint().Difference(MustParseConstraint("*")); !got.IsEmpty() {
		t.Errorf("* \\ * = %s, want <empty>", got)
	}
}

func TestConstraintEqual(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{">=1.0", ">=1.0", true},
		{">=1.0", ">1.0", false},
		{">=1.0,<2.0", "^1.0", true},
		{"<1.0 || >=2.0", "<1.0 || >=2.0", true},
	}
	for _, tt := range tests {
		a, b := MustParseConstraint(tt.a), MustParseConstraint(tt.b)
		if got := a.Equal(b); got != tt.want {
			t.Errorf("Equal(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
