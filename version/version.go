// Package version provides parsing, ordering and set operations over Python
// package versions. Constraints are ranges, exact pins and unions of
// disjoint ranges, with intersection, union and difference closed over the
// three shapes.
//
// Ordering is delegated to Masterminds/semver. Pre-release segments
// (dev/a/b/rc) are mapped onto semver pre-release identifiers so that
// dev < alpha < beta < rc < final holds; post-release and local segments
// order as their base release.
package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	semver "github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// Version is a parsed version. It keeps the original text and the number of
// release components it was written with: "3.8" and "3.8.0" compare equal
// but render differently and widen differently in python-version markers.
type Version struct {
	sv        *semver.Version
	text      string
	precision int
	unstable  bool
}

var versionRe = regexp.MustCompile(
	`(?i)^\s*v?(\d+(?:\.\d+)*)(?:[._-]?(dev|alpha|a|beta|b|preview|pre|rc|c|post|rev|r)\.?(\d*))?\s*$`)

// preOrder maps a pre-release tag to a semver pre-release prefix that sorts
// in PEP 440 order. Post-releases collapse onto their base release.
var preOrder = map[string]string{
	"dev": "0.dev", "a": "1.a", "alpha": "1.a",
	"b": "2.b", "beta": "2.b",
	"c": "3.rc", "rc": "3.rc", "pre": "3.rc", "preview": "3.rc",
}

// Parse parses a version string.
func Parse(text string) (*Version, error) {
	m := versionRe.FindStringSubmatch(text)
	if m == nil {
		return nil, errors.Errorf("unable to parse version %q", text)
	}
	release := strings.Split(m[1], ".")
	parts := make([]uint64, 3)
	for i := 0; i < len(release) && i < 3; i++ {
		n, err := strconv.ParseUint(release[i], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to parse version %q", text)
		}
		parts[i] = n
	}

	var pre string
	unstable := false
	if tag := strings.ToLower(m[2]); tag != "" {
		if prefix, ok := preOrder[tag]; ok {
			n := m[3]
			if n == "" {
				n = "0"
			}
			pre = prefix + "." + n
			unstable = true
		}
	}

	return &Version{
		sv:        semver.New(parts[0], parts[1], parts[2], pre, ""),
		text:      strings.TrimSpace(text),
		precision: len(release),
		unstable:  unstable,
	}, nil
}

// MustParse is Parse for known-good literals; it panics on error.
func MustParse(text string) *Version {
	v, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return v
}

func newRelease(major, minor, patch uint64, precision int) *Version {
	parts := []string{strconv.FormatUint(major, 10)}
	if precision >= 2 {
		parts = append(parts, strconv.FormatUint(minor, 10))
	}
	if precision >= 3 {
		parts = append(parts, strconv.FormatUint(patch, 10))
	}
	return &Version{
		sv:        semver.New(major, minor, patch, "", ""),
		text:      strings.Join(parts, "."),
		precision: precision,
	}
}

func (v *Version) String() string { return v.text }

// Text returns the version as originally written.
func (v *Version) Text() string { return v.text }

// Precision returns the number of release components the version was written
// with.
func (v *Version) Precision() int { return v.precision }

func (v *Version) Major() uint64 { return v.sv.Major() }
func (v *Version) Minor() uint64 { return v.sv.Minor() }
func (v *Version) Patch() uint64 { return v.sv.Patch() }

// IsUnstable reports whether the version carries a pre-release segment.
func (v *Version) IsUnstable() bool { return v.unstable }

// Compare orders two versions; the written precision does not participate,
// so "3.8" and "3.8.0" compare equal.
func (v *Version) Compare(other *Version) int { return v.sv.Compare(other.sv) }

func (v *Version) Equal(other *Version) bool { return other != nil && v.sv.Equal(other.sv) }
func (v *Version) LessThan(other *Version) bool { return v.sv.LessThan(other.sv) }

// Stable returns the version with any pre-release segment dropped.
func (v *Version) Stable() *Version {
	if !v.unstable {
		return v
	}
	return newRelease(v.sv.Major(), v.sv.Minor(), v.sv.Patch(), v.precision)
}

// NextMajor returns the smallest stable release above every release sharing
// this version's major component.
func (v *Version) NextMajor() *Version {
	return newRelease(v.sv.Major()+1, 0, 0, v.precision)
}

// NextMinor returns the smallest stable release above every release sharing
// this version's major and minor components.
func (v *Version) NextMinor() *Version {
	precision := v.precision
	if precision < 2 {
		precision = 2
	}
	return newRelease(v.sv.Major(), v.sv.Minor()+1, 0, precision)
}

// NextPatch returns the next patch release.
func (v *Version) NextPatch() *Version {
	if v.unstable {
		return v.Stable()
	}
	return newRelease(v.sv.Major(), v.sv.Minor(), v.sv.Patch()+1, 3)
}

// firstPrerelease is the smallest version ordered at this release, used to
// exclude pre-releases from an exclusive upper bound.
func (v *Version) firstPrerelease() *Version {
	return &Version{
		sv:        semver.New(v.sv.Major(), v.sv.Minor(), v.sv.Patch(), "0", ""),
		text:      fmt.Sprintf("%d.%d.%d.dev0", v.sv.Major(), v.sv.Minor(), v.sv.Patch()),
		precision: 3,
		unstable:  true,
	}
}

// WithPrecision returns the version padded or reported at the given release
// precision, e.g. "3.8" at precision 3 is "3.8.0".
func (v *Version) WithPrecision(precision int) *Version {
	if v.precision >= precision || v.unstable {
		return v
	}
	out := newRelease(v.sv.Major(), v.sv.Minor(), v.sv.Patch(), precision)
	return out
}
