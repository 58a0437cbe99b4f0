package marker

import (
	"sort"
	"strings"
	"sync"
)

var normCache = struct {
	sync.Mutex
	cnf map[string]Marker
	dnf map[string]Marker
}{cnf: map[string]Marker{}, dnf: map[string]Marker{}}

// CNF transforms the marker into conjunctive normal form.
func CNF(m Marker) Marker { return cnf(m) }

// DNF transforms the marker into disjunctive normal form.
func DNF(m Marker) Marker { return dnf(m) }

func cnf(m Marker) Marker {
	key := m.key()
	normCache.Lock()
	cached, ok := normCache.cnf[key]
	normCache.Unlock()
	if ok {
		return cached
	}

	var result Marker
	switch t := m.(type) {
	case *MarkerUnion:
		cnfMarkers := make([]Marker, 0, len(t.markers))
		for _, child := range t.markers {
			cnfMarkers = append(cnfMarkers, cnf(child))
		}
		subLists := make([][]Marker, 0, len(cnfMarkers))
		for _, cm := range cnfMarkers {
			if mm, ok := cm.(*MultiMarker); ok {
				subLists = append(subLists, mm.markers)
			} else {
				subLists = append(subLists, []Marker{cm})
			}
		}
		var clauses []Marker
		for _, combo := range uniqueProduct(subLists) {
			clauses = append(clauses, MarkerUnionOf(combo...))
		}
		result = MultiMarkerOf(clauses...)
	case *MultiMarker:
		cnfMarkers := make([]Marker, 0, len(t.markers))
		for _, child := range t.markers {
			cnfMarkers = append(cnfMarkers, cnf(child))
		}
		result = MultiMarkerOf(cnfMarkers...)
	default:
		result = m
	}

	normCache.Lock()
	normCache.cnf[key] = result
	normCache.Unlock()
	return result
}

func dnf(m Marker) Marker {
	key := m.key()
	normCache.Lock()
	cached, ok := normCache.dnf[key]
	normCache.Unlock()
	if ok {
		return cached
	}

	var result Marker
	switch t := m.(type) {
	case *MultiMarker:
		dnfMarkers := make([]Marker, 0, len(t.markers))
		for _, child := range t.markers {
			dnfMarkers = append(dnfMarkers, dnf(child))
		}
		subLists := make([][]Marker, 0, len(dnfMarkers))
		for _, dm := range dnfMarkers {
			if mu, ok := dm.(*MarkerUnion); ok {
				subLists = append(subLists, mu.markers)
			} else {
				subLists = append(subLists, []Marker{dm})
			}
		}
		var clauses []Marker
		for _, combo := range uniqueProduct(subLists) {
			clauses = append(clauses, MultiMarkerOf(combo...))
		}
		result = MarkerUnionOf(clauses...)
	case *MarkerUnion:
		dnfMarkers := make([]Marker, 0, len(t.markers))
		for _, child := range t.markers {
			dnfMarkers = append(dnfMarkers, dnf(child))
		}
		result = MarkerUnionOf(dnfMarkers...)
	default:
		result = m
	}

	normCache.Lock()
	normCache.dnf[key] = result
	normCache.Unlock()
	return result
}

// uniqueProduct yields the cartesian product of the marker lists with
// combinations that are set-equal to an earlier one removed, keeping
// order.
func uniqueProduct(lists [][]Marker) [][]Marker {
	for _, l := range lists {
		if len(l) == 0 {
			return nil
		}
	}
	seen := map[string]bool{}
	indices := make([]int, len(lists))
	var combos [][]Marker
	for {
		combo := make([]Marker, len(lists))
		keys := make([]string, len(lists))
		for i, idx := range indices {
			combo[i] = lists[i][idx]
			keys[i] = combo[i].key()
		}
		sort.Strings(keys)
		setKey := strings.Join(keys, "\x01")
		if !seen[setKey] {
			seen[setKey] = true
			combos = append(combos, combo)
		}

		pos := len(indices) - 1
		for pos >= 0 {
			indices[pos]++
			if indices[pos] < len(lists[pos]) {
				break
			}
			indices[pos] = 0
			pos--
		}
		if pos < 0 {
			return combos
		}
	}
}

// Normalizing a marker can re-enter intersection or union with the same
// arguments. The sentinel is panicked on re-entry and recovered at the
// normalization attempt, which then falls back to the remaining
// candidates.
type recursionSentinelType struct{}

var recursionSentinel = recursionSentinelType{}

var inflight = struct {
	sync.Mutex
	m map[string]int
}{m: map[string]int{}}

func beginCall(key string) bool {
	inflight.Lock()
	defer inflight.Unlock()
	if inflight.m[key] > 0 {
		return false
	}
	inflight.m[key]++
	return true
}

func endCall(key string) {
	inflight.Lock()
	defer inflight.Unlock()
	inflight.m[key]--
	if inflight.m[key] <= 0 {
		delete(inflight.m, key)
	}
}

func callKey(op string, markers []Marker) string {
	keys := make([]string, 0, len(markers)+1)
	keys = append(keys, op)
	for _, m := range markers {
		keys = append(keys, m.key())
	}
	return strings.Join(keys, "\x01")
}

func tryNormalize(f func(Marker) Marker, m Marker) (result Marker, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if _, isSentinel := r.(recursionSentinelType); !isSentinel {
				panic(r)
			}
			result, ok = nil, false
		}
	}()
	return f(m), true
}

func minComplexity(candidates []Marker) Marker {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Complexity().Compare(best.Complexity()) < 0 {
			best = c
		}
	}
	return best
}

// Intersect conjoins markers, choosing the least complex of the raw,
// DNF and CNF renderings. Normalization sometimes makes a marker more
// complicated instead of simpler.
func Intersect(markers ...Marker) Marker { return intersection(markers...) }

func intersection(markers ...Marker) Marker {
	if len(markers) == 0 {
		return AnyMarker()
	}
	key := callKey("i", markers)
	if !beginCall(key) {
		panic(recursionSentinel)
	}
	defer endCall(key)

	unnormalized := unwrapSingletons(NewMultiMarker(markers...))
	disjunction := dnf(unnormalized)
	if _, ok := disjunction.(*MarkerUnion); !ok {
		return disjunction
	}

	candidates := []Marker{disjunction, unnormalized}
	if conjunction, ok := tryNormalize(cnf, disjunction); ok {
		if _, isMulti := conjunction.(*MultiMarker); !isMulti {
			return conjunction
		}
		candidates = []Marker{disjunction, conjunction, unnormalized}
	}
	return minComplexity(candidates)
}

// Union disjoins markers, choosing the least complex of the raw, CNF
// and DNF renderings.
func Union(markers ...Marker) Marker { return union(markers...) }

func union(markers ...Marker) Marker {
	if len(markers) == 0 {
		return EmptyMarker()
	}
	key := callKey("u", markers)
	if !beginCall(key) {
		panic(recursionSentinel)
	}
	defer endCall(key)

	unnormalized := unwrapSingletons(NewMarkerUnion(markers...))
	conjunction := cnf(unnormalized)
	if _, ok := conjunction.(*MultiMarker); !ok {
		return conjunction
	}

	candidates := []Marker{conjunction, unnormalized}
	if disjunction, ok := tryNormalize(dnf, conjunction); ok {
		if _, isUnion := disjunction.(*MarkerUnion); !isUnion {
			return disjunction
		}
		candidates = []Marker{disjunction, conjunction, unnormalized}
	}
	return minComplexity(candidates)
}

func unwrapSingletons(m Marker) Marker {
	for {
		switch t := m.(type) {
		case *MultiMarker:
			if len(t.markers) == 1 {
				m = t.markers[0]
				continue
			}
		case *MarkerUnion:
			if len(t.markers) == 1 {
				m = t.markers[0]
				continue
			}
		}
		return m
	}
}
