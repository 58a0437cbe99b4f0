// Package lock reads and writes the TOML lock file that records the
// aggregated resolution result: every package with its version, the
// dependency groups that require it, its depth in the graph and the
// environment marker per group.
package lock

import (
	"bytes"
	"io"
	"sort"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/pysolve/pysolve/marker"
	"github.com/pysolve/pysolve/packages"
	"github.com/pysolve/pysolve/solver"
	"github.com/pysolve/pysolve/version"
)

const Name = "pysolve.lock"

// LockedPackage is one entry of the lock file in parsed form.
type LockedPackage struct {
	Name    string
	Version *version.Version
	Groups  []string
	Depth   int
	Markers map[string]marker.Marker
}

type rawLock struct {
	Packages []rawPackage `toml:"package"`
}

type rawPackage struct {
	Name    string            `toml:"name"`
	Version string            `toml:"version"`
	Groups  []string          `toml:"groups"`
	Depth   int               `toml:"depth"`
	Markers map[string]string `toml:"markers,omitempty"`
}

// Write renders the aggregation result to w, sorted by complete
// package name. Markers that match any environment are omitted.
func Write(w io.Writer, results map[*packages.Package]*solver.TransitivePackageInfo) error {
	pkgs := make([]*packages.Package, 0, len(results))
	for pkg := range results {
		pkgs = append(pkgs, pkg)
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].CompleteName() < pkgs[j].CompleteName() })

	raw := rawLock{Packages: make([]rawPackage, 0, len(pkgs))}
	for _, pkg := range pkgs {
		info := results[pkg]
		rp := rawPackage{
			Name:    pkg.CompleteName(),
			Version: pkg.Version.String(),
			Groups:  info.SortedGroups(),
			Depth:   info.Depth,
		}
		for group, m := range info.Markers {
			if m.IsAny() {
				continue
			}
			if rp.Markers == nil {
				rp.Markers = map[string]string{}
			}
			rp.Markers[group] = m.String()
		}
		raw.Packages = append(raw.Packages, rp)
	}

	out, err := toml.Marshal(raw)
	if err != nil {
		return errors.Wrap(err, "unable to marshal lock file to TOML")
	}
	_, err = w.Write(out)
	return errors.Wrap(err, "unable to write lock file")
}

// Read parses a lock file back into its entries. Missing markers are
// read as matching any environment.
func Read(r io.Reader) ([]LockedPackage, error) {
	buf := &bytes.Buffer{}
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, errors.Wrap(err, "unable to read byte stream")
	}
	raw := rawLock{}
	if err := toml.Unmarshal(buf.Bytes(), &raw); err != nil {
		return nil, errors.Wrap(err, "unable to parse the lock file as TOML")
	}

	locked := make([]LockedPackage, 0, len(raw.Packages))
	for _, rp := range raw.Packages {
		v, err := version.Parse(rp.Version)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid version for locked package %s", rp.Name)
		}
		lp := LockedPackage{
			Name:    rp.Name,
			Version: v,
			Groups:  rp.Groups,
			Depth:   rp.Depth,
			Markers: map[string]marker.Marker{},
		}
		for _, group := range lp.Groups {
			lp.Markers[group] = marker.AnyMarker()
		}
		for group, text := range rp.Markers {
			m, err := marker.Parse(text)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid marker for locked package %s", rp.Name)
			}
			lp.Markers[group] = m
		}
		locked = append(locked, lp)
	}

	return locked, nil
}
