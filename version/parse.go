package version

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

var (
	wildcardRe = regexp.MustCompile(`^(==|!=)?\s*v?(\d+(?:\.\d+)*)\.(\*|[xX])$`)
	atomRe     = regexp.MustCompile(`^(===|==|!=|>=|<=|>|<|~=|~|\^)?\s*(.+)$`)
	splitRe    = regexp.MustCompile(`\s*,\s*|\s+`)
	opSpaceRe  = regexp.MustCompile(`(===|==|!=|>=|<=|~=|>|<|\^|~)\s+`)
)

// ParseConstraint parses a version constraint expression: comparison atoms
// (==, !=, <, <=, >, >=, ~=, ===, ~, ^), wildcard forms ("3.8.*"),
// comma- or space-joined conjunctions and "||"-joined disjunctions.
func ParseConstraint(text string) (Constraint, error) {
	text = strings.TrimSpace(text)
	if text == "" || text == "*" {
		return AnyConstraint(), nil
	}
	// ">= 3.8" and ">=3.8" are both accepted; collapsing the space lets
	// the splitter treat bare whitespace as a conjunction separator.
	text = opSpaceRe.ReplaceAllString(text, "$1")

	disjuncts := strings.Split(text, "||")
	var result Constraint = EmptyConstraint()
	for _, d := range disjuncts {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		var conj Constraint = AnyConstraint()
		for _, atom := range splitRe.Split(d, -1) {
			if atom == "" {
				continue
			}
			c, err := parseAtom(atom)
			if err != nil {
				return nil, err
			}
			conj = conj.Intersect(c)
		}
		result = result.Union(conj)
	}
	return result, nil
}

// MustParseConstraint is ParseConstraint for known-good literals.
func MustParseConstraint(text string) Constraint {
	c, err := ParseConstraint(text)
	if err != nil {
		panic(err)
	}
	return c
}

func parseAtom(atom string) (Constraint, error) {
	if atom == "*" {
		return AnyConstraint(), nil
	}

	if m := wildcardRe.FindStringSubmatch(atom); m != nil {
		base, err := Parse(m[2])
		if err != nil {
			return nil, errors.Wrapf(err, "invalid wildcard constraint %q", atom)
		}
		text := m[2] + ".*"
		r := &Range{min: base, max: wildcardUpper(base), includeMin: true, wildcard: text}
		if m[1] == "!=" {
			inverted := AnyConstraint().Difference(r)
			if u, ok := inverted.(*Union); ok {
				u.wildcard = text
			}
			return inverted, nil
		}
		return r, nil
	}

	m := atomRe.FindStringSubmatch(atom)
	if m == nil {
		return nil, errors.Errorf("unable to parse constraint %q", atom)
	}
	op, body := m[1], strings.TrimSpace(m[2])
	v, err := Parse(body)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to parse constraint %q", atom)
	}

	switch op {
	case "", "==", "===":
		return NewPin(v), nil
	case "!=":
		return AnyConstraint().Difference(NewPin(v)), nil
	case ">":
		return &Range{min: v}, nil
	case ">=":
		return &Range{min: v, includeMin: true}, nil
	case "<":
		return &Range{max: v}, nil
	case "<=":
		return &Range{max: v, includeMax: true}, nil
	case "~=":
		// Compatible release: the final written component may vary.
		upper := v.NextMinor()
		if v.Precision() < 3 {
			upper = v.NextMajor()
		}
		return &Range{min: v, max: upper, includeMin: true}, nil
	case "~":
		// Tilde: allow patch-level (or minor-level for bare majors) changes.
		upper := v.NextMinor()
		if v.Precision() < 2 {
			upper = v.NextMajor()
		}
		return &Range{min: v, max: upper, includeMin: true}, nil
	case "^":
		return &Range{min: v, max: nextBreaking(v), includeMin: true}, nil
	}
	return nil, errors.Errorf("unable to parse constraint %q", atom)
}

func wildcardUpper(base *Version) *Version {
	if base.Precision() <= 1 {
		return base.NextMajor()
	}
	return base.NextMinor()
}

// nextBreaking is the caret upper bound: the next major release, or for
// zero-major versions the next minor release.
func nextBreaking(v *Version) *Version {
	if v.Major() == 0 && v.Precision() > 1 {
		return v.NextMinor()
	}
	return v.NextMajor()
}
