package marker

import (
	"regexp"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/pysolve/pysolve/constraint"
	"github.com/pysolve/pysolve/version"
)

// Dotted forms accepted by PEP 508 for historic reasons.
var aliases = map[string]string{
	"os.name":                        "os_name",
	"sys.platform":                   "sys_platform",
	"platform.version":               "platform_version",
	"platform.machine":               "platform_machine",
	"platform.python_implementation": "platform_python_implementation",
	"python_implementation":          "platform_python_implementation",
}

func isPythonMarkerName(name string) bool {
	return name == "python_version" || name == "python_full_version"
}

func isVersionLikeName(name string) bool {
	return isPythonMarkerName(name) || name == "platform_release"
}

var (
	valueSeparatorRe = regexp.MustCompile(`[ ,|]+`)
	constraintOpRe   = regexp.MustCompile(`(?i)^(~=|!=|>=?|<=?|==?=?|not in |in )?\s*(.+)$`)
)

// singleLike is satisfied by the marker types that constrain exactly
// one environment name.
type singleLike interface {
	Marker
	MarkerName() string
	genericConstraint() constraint.Constraint
	versionConstraint() version.Constraint
}

// SingleMarker is a single comparison such as sys_platform == "linux"
// or python_version >= "3.8". The comparison value of swapped markers
// like "tegra" in platform_release sits on the left-hand side.
type SingleMarker struct {
	name    string
	op      string
	value   string
	swapped bool

	vc version.Constraint
	gc constraint.Constraint
}

// NewSingle builds a single marker from its parts, normalizing aliased
// names and expanding "in" / "not in" into the equivalent constraint.
func NewSingle(name, op, value string) (*SingleMarker, error) {
	return newSingle(name, op, value, false)
}

func newSingle(name, op, value string, swapped bool) (*SingleMarker, error) {
	if alias, ok := aliases[name]; ok {
		name = alias
	}
	if op == "" {
		op = "=="
	}

	m := &SingleMarker{name: name, op: op, value: value, swapped: swapped}

	switch {
	case swapped && !isPythonMarkerName(name):
		// Something like "tegra" in platform_release: a string
		// containment test on the raw environment value.
		gc, err := constraint.NewSingle(value, op)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid marker for %q", name)
		}
		m.gc = gc

	case isVersionLikeName(name):
		constraintString := op + value
		switch op {
		case "in", "not in":
			constraintString = expandVersionMembership(op, value)
		default:
			if name == "python_full_version" && !swapped {
				// python_full_version always compares three components.
				if precision := strings.Count(value, ".") + 1; precision < 3 {
					suffix := strings.Repeat(".0", 3-precision)
					m.value = value + suffix
					constraintString = op + m.value
				}
			}
		}
		vc, err := version.ParseConstraint(constraintString)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid marker for %q", name)
		}
		m.vc = vc

	default:
		gc, err := genericMarkerConstraint(name, op, value)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid marker for %q", name)
		}
		m.gc = gc
	}

	return m, nil
}

// expandVersionMembership rewrites python_version in "3.8 3.9" style
// markers into an equivalent version constraint expression. Components
// with less than full precision become wildcard requirements.
func expandVersionMembership(op, value string) string {
	var parts []string
	for _, v := range valueSeparatorRe.Split(value, -1) {
		if v == "" {
			continue
		}
		segments := strings.Split(v, ".")
		var atomOp string
		if len(segments) <= 2 {
			segments = append(segments, "*")
			if op != "in" {
				atomOp = "!="
			}
		} else {
			atomOp = "=="
			if op != "in" {
				atomOp = "!="
			}
		}
		parts = append(parts, atomOp+strings.Join(segments, "."))
	}
	glue := ", "
	if op == "in" {
		glue = " || "
	}
	return strings.Join(parts, glue)
}

func genericMarkerConstraint(name, op, value string) (constraint.Constraint, error) {
	newAtom := func(v, o string) (*constraint.Single, error) {
		if name == "extra" {
			return constraint.NewExtraSingle(v, o)
		}
		return constraint.NewSingle(v, o)
	}

	if op != "in" && op != "not in" {
		return newAtom(value, op)
	}

	// "in" becomes a union of equalities, "not in" an intersection of
	// inequalities.
	atomOp := "=="
	if op == "not in" {
		atomOp = "!="
	}
	var result constraint.Constraint
	for _, v := range valueSeparatorRe.Split(value, -1) {
		if v == "" {
			continue
		}
		atom, err := newAtom(v, atomOp)
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = atom
		} else if op == "in" {
			result = result.Union(atom)
		} else {
			result = result.Intersect(atom)
		}
	}
	if result == nil {
		return nil, errors.Errorf("no values in %q constraint", op)
	}
	return result, nil
}

// newVersionSingle rebuilds a single marker from a version constraint,
// recovering operator and value from the constraint's rendering.
func newVersionSingle(name string, vc version.Constraint) *SingleMarker {
	text := vc.String()
	op, value := "==", text
	if m := constraintOpRe.FindStringSubmatch(text); m != nil {
		if strings.TrimSpace(m[1]) != "" {
			op = strings.TrimSpace(m[1])
		}
		value = m[2]
	}
	return &SingleMarker{name: name, op: op, value: value, vc: vc}
}

func newGenericSingle(name string, c *constraint.Single) *SingleMarker {
	return &SingleMarker{name: name, op: c.Op(), value: c.Value(), gc: c}
}

func (m *SingleMarker) MarkerName() string { return m.name }
func (m *SingleMarker) Operator() string { return m.op }
func (m *SingleMarker) Value() string { return m.value }

func (m *SingleMarker) genericConstraint() constraint.Constraint { return m.gc }
func (m *SingleMarker) versionConstraint() version.Constraint { return m.vc }

func (m *SingleMarker) String() string {
	if m.swapped {
		return `"` + m.value + `" ` + m.op + ` ` + m.name
	}
	return m.name + ` ` + m.op + ` "` + m.value + `"`
}

func (m *SingleMarker) key() string {
	return "s\x00" + m.name + "\x00" + m.op + "\x00" + m.value
}

func (m *SingleMarker) sealed() {}

func (m *SingleMarker) IsAny() bool { return false }
func (m *SingleMarker) IsEmpty() bool { return false }

func (m *SingleMarker) Complexity() Complexity { return Complexity{1, 1} }

func (m *SingleMarker) Equal(other Marker) bool {
	o, ok := other.(*SingleMarker)
	return ok && m.key() == o.key()
}

func (m *SingleMarker) Matches(env *Environment) bool {
	if env == nil {
		return true
	}

	// "extra" can hold several values at once, so it is matched as set
	// membership over the active extras.
	if m.name == "extra" {
		if env.Extras == nil {
			return true
		}
		active := env.hasExtra(m.value)
		if m.op == "==" {
			return active
		}
		return !active
	}

	val, ok := env.value(m.name)
	if !ok {
		return true
	}
	if m.vc != nil {
		v, err := version.Parse(val)
		if err != nil {
			return false
		}
		return m.vc.Allows(v)
	}
	probe, err := constraint.NewSingle(val, "==")
	if err != nil {
		return false
	}
	return m.gc.Allows(probe)
}

func (m *SingleMarker) WithoutExtras() Marker { return m.Exclude("extra") }

func (m *SingleMarker) Exclude(name string) Marker {
	if m.name == name {
		return AnyMarker()
	}
	return m
}

func (m *SingleMarker) Only(names ...string) Marker {
	for _, n := range names {
		if m.name == n {
			return m
		}
	}
	return AnyMarker()
}

func (m *SingleMarker) ReduceByPythonConstraint(pc version.Constraint) Marker {
	if !isPythonMarkerName(m.name) {
		return m
	}
	own := PythonConstraint(m)
	if own.AllowsAll(pc) {
		return AnyMarker()
	}
	if !own.AllowsAny(pc) {
		return EmptyMarker()
	}
	if merged, ok := m.Intersect(PythonVersionMarker(pc)).(*SingleMarker); ok {
		return merged
	}
	return m
}

func (m *SingleMarker) Intersect(other Marker) Marker { return singleIntersect(m, other) }
func (m *SingleMarker) Union(other Marker) Marker { return singleUnion(m, other) }

func (m *SingleMarker) Invert() Marker {
	var op string
	switch m.op {
	case "==", "===":
		op = "!="
	case "!=":
		op = "=="
	case ">":
		op = "<="
	case ">=":
		op = "<"
	case "<":
		op = ">="
	case "<=":
		op = ">"
	case "in":
		op = "not in"
	case "not in":
		op = "in"
	case "~=":
		// Compatible release is a version range, so its inverse is a
		// union of the inverted bounds.
		r, ok := m.vc.(*version.Range)
		if !ok {
			panic("pysolve: '~=' marker not backed by a version range")
		}
		minOp, maxOp := ">", "<"
		if r.IncludeMin() {
			minOp = ">="
		}
		if r.IncludeMax() {
			maxOp = "<="
		}
		lo := mustSingle(m.name, minOp, r.Min().String(), false)
		hi := mustSingle(m.name, maxOp, r.Max().String(), false)
		return NewMultiMarker(lo, hi).Invert()
	default:
		panic("pysolve: invalid marker operator " + m.op)
	}
	return mustSingle(m.name, op, m.value, m.swapped)
}

func mustSingle(name, op, value string, swapped bool) *SingleMarker {
	m, err := newSingle(name, op, value, swapped)
	if err != nil {
		panic(err)
	}
	return m
}

// AtomicMultiMarker is a conjunction of comparisons on one name that is
// kept in a single node, like platform_system != "Windows" and
// platform_system != "Darwin".
type AtomicMultiMarker struct {
	name string
	c    *constraint.Multi
}

func newAtomicMulti(name string, c *constraint.Multi) *AtomicMultiMarker {
	return &AtomicMultiMarker{name: name, c: c}
}

func (m *AtomicMultiMarker) MarkerName() string { return m.name }

func (m *AtomicMultiMarker) genericConstraint() constraint.Constraint { return m.c }
func (m *AtomicMultiMarker) versionConstraint() version.Constraint { return nil }

func (m *AtomicMultiMarker) String() string {
	parts := make([]string, 0, len(m.c.Constraints()))
	for _, c := range m.c.Constraints() {
		parts = append(parts, m.name+` `+c.Op()+` "`+c.Value()+`"`)
	}
	return strings.Join(parts, " and ")
}

func (m *AtomicMultiMarker) key() string { return "am\x00" + m.name + "\x00" + m.c.String() }
func (m *AtomicMultiMarker) sealed()     {}

func (m *AtomicMultiMarker) IsAny() bool { return false }
func (m *AtomicMultiMarker) IsEmpty() bool { return false }

func (m *AtomicMultiMarker) Complexity() Complexity {
	return Complexity{len(m.c.Constraints()), 1}
}

func (m *AtomicMultiMarker) Equal(other Marker) bool {
	o, ok := other.(*AtomicMultiMarker)
	return ok && m.key() == o.key()
}

func (m *AtomicMultiMarker) expand() Marker {
	markers := make([]Marker, 0, len(m.c.Constraints()))
	for _, c := range m.c.Constraints() {
		markers = append(markers, newGenericSingle(m.name, c))
	}
	return NewMultiMarker(markers...)
}

func (m *AtomicMultiMarker) Matches(env *Environment) bool {
	if m.name == "extra" {
		return m.expand().Matches(env)
	}
	return atomicMatches(m, env)
}

func (m *AtomicMultiMarker) WithoutExtras() Marker { return m.Exclude("extra") }

func (m *AtomicMultiMarker) Exclude(name string) Marker {
	if m.name == name {
		return AnyMarker()
	}
	return m
}

func (m *AtomicMultiMarker) Only(names ...string) Marker {
	for _, n := range names {
		if m.name == n {
			return m
		}
	}
	return AnyMarker()
}

func (m *AtomicMultiMarker) ReduceByPythonConstraint(version.Constraint) Marker { return m }

func (m *AtomicMultiMarker) Intersect(other Marker) Marker { return singleIntersect(m, other) }
func (m *AtomicMultiMarker) Union(other Marker) Marker { return singleUnion(m, other) }

func (m *AtomicMultiMarker) Invert() Marker {
	inverted, ok := m.c.Invert().(*constraint.Union)
	if !ok {
		panic("pysolve: inverted multi constraint is not a union")
	}
	return newAtomicUnion(m.name, inverted)
}

// AtomicMarkerUnion is a disjunction of comparisons on one name kept in
// a single node, like sys_platform == "linux" or sys_platform == "darwin".
type AtomicMarkerUnion struct {
	name string
	c    *constraint.Union
}

func newAtomicUnion(name string, c *constraint.Union) *AtomicMarkerUnion {
	return &AtomicMarkerUnion{name: name, c: c}
}

func (m *AtomicMarkerUnion) MarkerName() string { return m.name }

func (m *AtomicMarkerUnion) genericConstraint() constraint.Constraint { return m.c }
func (m *AtomicMarkerUnion) versionConstraint() version.Constraint { return nil }

func (m *AtomicMarkerUnion) String() string {
	parts := make([]string, 0, len(m.c.Constraints()))
	for _, c := range m.c.Constraints() {
		single, ok := c.(*constraint.Single)
		if !ok {
			panic("pysolve: atomic marker union holds a compound constraint")
		}
		parts = append(parts, m.name+` `+single.Op()+` "`+single.Value()+`"`)
	}
	return strings.Join(parts, " or ")
}

func (m *AtomicMarkerUnion) key() string { return "au\x00" + m.name + "\x00" + m.c.String() }
func (m *AtomicMarkerUnion) sealed()     {}

func (m *AtomicMarkerUnion) IsAny() bool { return false }
func (m *AtomicMarkerUnion) IsEmpty() bool { return false }

func (m *AtomicMarkerUnion) Complexity() Complexity {
	return Complexity{len(m.c.Constraints()), 1}
}

func (m *AtomicMarkerUnion) Equal(other Marker) bool {
	o, ok := other.(*AtomicMarkerUnion)
	return ok && m.key() == o.key()
}

func (m *AtomicMarkerUnion) expand() Marker {
	markers := make([]Marker, 0, len(m.c.Constraints()))
	for _, c := range m.c.Constraints() {
		single, ok := c.(*constraint.Single)
		if !ok {
			panic("pysolve: atomic marker union holds a compound constraint")
		}
		markers = append(markers, newGenericSingle(m.name, single))
	}
	return NewMarkerUnion(markers...)
}

func (m *AtomicMarkerUnion) Matches(env *Environment) bool {
	if m.name == "extra" {
		return m.expand().Matches(env)
	}
	return atomicMatches(m, env)
}

func (m *AtomicMarkerUnion) WithoutExtras() Marker { return m.Exclude("extra") }

func (m *AtomicMarkerUnion) Exclude(name string) Marker {
	if m.name == name {
		return AnyMarker()
	}
	return m
}

func (m *AtomicMarkerUnion) Only(names ...string) Marker {
	for _, n := range names {
		if m.name == n {
			return m
		}
	}
	return AnyMarker()
}

func (m *AtomicMarkerUnion) ReduceByPythonConstraint(version.Constraint) Marker { return m }

func (m *AtomicMarkerUnion) Intersect(other Marker) Marker { return singleIntersect(m, other) }
func (m *AtomicMarkerUnion) Union(other Marker) Marker { return singleUnion(m, other) }

func (m *AtomicMarkerUnion) Invert() Marker {
	inverted, ok := m.c.Invert().(*constraint.Multi)
	if !ok {
		panic("pysolve: inverted union constraint is not a multi")
	}
	return newAtomicMulti(m.name, inverted)
}

func atomicMatches(m singleLike, env *Environment) bool {
	if env == nil {
		return true
	}
	val, ok := env.value(m.MarkerName())
	if !ok {
		return true
	}
	probe, err := constraint.NewSingle(val, "==")
	if err != nil {
		return false
	}
	return m.genericConstraint().Allows(probe)
}

func singleIntersect(m singleLike, other Marker) Marker {
	if o, ok := other.(singleLike); ok {
		if merged := mergeSingles(m, o, true); merged != nil {
			return merged
		}
		return NewMultiMarker(m, other)
	}
	return other.Intersect(m)
}

func singleUnion(m singleLike, other Marker) Marker {
	if o, ok := other.(singleLike); ok {
		if merged := mergeSingles(m, o, false); merged != nil {
			return merged
		}
		return NewMarkerUnion(m, other)
	}
	return other.Union(m)
}

var mergeCache = struct {
	sync.Mutex
	m map[string]Marker
}{m: map[string]Marker{}}

// mergeSingles merges two single-like markers into one marker, or
// returns nil when no worthwhile merge exists.
func mergeSingles(m1, m2 singleLike, intersectOp bool) Marker {
	prefix := "u|"
	if intersectOp {
		prefix = "i|"
	}
	cacheKey := prefix + m1.key() + "|" + m2.key()

	mergeCache.Lock()
	cached, ok := mergeCache.m[cacheKey]
	mergeCache.Unlock()
	if ok {
		return cached
	}

	result := mergeSinglesUncached(m1, m2, intersectOp)

	mergeCache.Lock()
	mergeCache.m[cacheKey] = result
	mergeCache.Unlock()
	return result
}

func mergeSinglesUncached(m1, m2 singleLike, intersectOp bool) Marker {
	n1, n2 := m1.MarkerName(), m2.MarkerName()
	if isPythonMarkerName(n1) && isPythonMarkerName(n2) && n1 != n2 {
		s1, ok1 := m1.(*SingleMarker)
		s2, ok2 := m2.(*SingleMarker)
		if !ok1 || !ok2 {
			panic("pysolve: python version marker is not a single marker")
		}
		return mergePythonVersionSingles(s1, s2, intersectOp)
	}
	if n1 != n2 {
		return nil
	}

	if gc1 := m1.genericConstraint(); gc1 != nil {
		gc2 := m2.genericConstraint()
		if gc2 == nil {
			return nil
		}
		var rc constraint.Constraint
		if intersectOp {
			rc = gc1.Intersect(gc2)
		} else {
			rc = gc1.Union(gc2)
		}
		return classifyGenericMerge(n1, rc, m1, m2, gc1, gc2)
	}

	vc1, vc2 := m1.versionConstraint(), m2.versionConstraint()
	if vc1 == nil || vc2 == nil {
		return nil
	}
	var rv version.Constraint
	if intersectOp {
		rv = vc1.Intersect(vc2)
	} else {
		rv = vc1.Union(vc2)
	}
	return classifyVersionMerge(n1, rv, m1, m2, vc1, vc2, intersectOp)
}

func classifyGenericMerge(
	name string, rc constraint.Constraint, m1, m2 singleLike, gc1, gc2 constraint.Constraint,
) Marker {
	switch {
	case rc.IsEmpty():
		return EmptyMarker()
	case rc.IsAny():
		return AnyMarker()
	case rc.Equal(gc1):
		return m1
	case rc.Equal(gc2):
		return m2
	}

	switch c := rc.(type) {
	case *constraint.Single:
		return newGenericSingle(name, c)
	case *constraint.Union:
		if atomicUnionOps(name, c) {
			return newAtomicUnion(name, c)
		}
	case *constraint.Multi:
		if atomicMultiOps(name, c) {
			return newAtomicMulti(name, c)
		}
	}
	return nil
}

func atomicUnionOps(name string, c *constraint.Union) bool {
	for _, child := range c.Constraints() {
		single, ok := child.(*constraint.Single)
		if !ok {
			return false
		}
		if single.Op() != "==" && (name != "extra" || single.Op() != "!=") {
			return false
		}
	}
	return true
}

func atomicMultiOps(name string, c *constraint.Multi) bool {
	for _, single := range c.Constraints() {
		if single.Op() != "!=" && (name != "extra" || single.Op() != "==") {
			return false
		}
	}
	return true
}

func classifyVersionMerge(
	name string, rv version.Constraint, m1, m2 singleLike, vc1, vc2 version.Constraint,
	intersectOp bool,
) Marker {
	switch {
	case rv.IsEmpty():
		return EmptyMarker()
	case rv.IsAny():
		return AnyMarker()
	case rv.Equal(vc1):
		return m1
	case rv.Equal(vc2):
		return m2
	case rv.IsSimple():
		return newVersionSingle(name, rv)
	}

	if name != "python_version" {
		return nil
	}

	if r, ok := rv.(*version.Range); ok && intersectOp {
		if r.Min() != nil {
			// A bounded python_version range often round-trips to a
			// plain equality, e.g. >= "3.8" and < "3.9" is == "3.8".
			candidate := mustSingle(name, "==", r.Min().String(), false)
			if PythonConstraint(candidate).Equal(r) {
				return candidate
			}
		}
		// Normalized precision can reveal an empty intersection, e.g.
		// > "3.8" and < "3.9".
		if PythonConstraint(m1).Intersect(PythonConstraint(m2)).IsEmpty() {
			return EmptyMarker()
		}
	} else if _, ok := rv.(*version.Union); ok && !intersectOp {
		normalized := PythonConstraint(m1).Union(PythonConstraint(m2))
		if normalized.IsAny() {
			return AnyMarker()
		}
		if normalized.IsSimple() {
			return newVersionSingle(name, normalized)
		}
		if r, ok := normalized.(*version.Range); ok {
			// Two adjacent equalities cover a contiguous range; the
			// conjunction of bounds merges better in later steps.
			lo := newVersionSingle(name, version.NewRange(r.Min(), nil, r.IncludeMin(), false))
			hi := newVersionSingle(name, version.NewRange(nil, r.Max(), false, r.IncludeMax()))
			return NewMultiMarker(lo, hi)
		}
	}
	return nil
}

func mergePythonVersionSingles(m1, m2 *SingleMarker, intersectOp bool) Marker {
	versionMarker, fullMarker := m1, m2
	if m1.name != "python_version" {
		versionMarker, fullMarker = m2, m1
	}

	normalized := PythonConstraint(versionMarker)
	normalizedMarker := newVersionSingle("python_full_version", normalized)
	merged := mergeSingles(normalizedMarker, fullMarker, intersectOp)
	if merged != nil && merged.Equal(normalizedMarker) {
		// Prefer the original marker to avoid unnecessary changes.
		return versionMarker
	}
	if sm, ok := merged.(*SingleMarker); ok {
		merged = fixFullVersionPrecision(sm)
	}
	return merged
}

// fixFullVersionPrecision pads merged python_full_version markers back
// to three components, or demotes them to python_version where the
// padded form is exactly representable there.
func fixFullVersionPrecision(m *SingleMarker) Marker {
	name, op, value := m.name, m.op, m.value
	precision := strings.Count(value, ".") + 1
	target := 3
	switch {
	case precision < target:
		if op == "<" || op == ">=" {
			target = 2
			name = "python_version"
		}
		value += strings.Repeat(".0", target-precision)
	case precision == target && (op == "<" || op == ">=") && strings.HasSuffix(value, ".0"):
		name = "python_version"
		value = strings.TrimSuffix(value, ".0")
	default:
		return m
	}
	return mustSingle(name, op, value, false)
}
