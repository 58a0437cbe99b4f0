package lock

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pysolve/pysolve/marker"
	"github.com/pysolve/pysolve/packages"
	"github.com/pysolve/pysolve/solver"
	"github.com/pysolve/pysolve/version"
)

func TestWriteRead(t *testing.T) {
	requests := packages.NewPackage("requests", version.MustParse("2.28.1"))
	colorama := packages.NewPackage("colorama", version.MustParse("0.4.6"))

	results := map[*packages.Package]*solver.TransitivePackageInfo{
		requests: {
			Depth:   0,
			Groups:  map[string]struct{}{"main": {}},
			Markers: map[string]marker.Marker{"main": marker.AnyMarker()},
		},
		colorama: {
			Depth:  1,
			Groups: map[string]struct{}{"dev": {}, "main": {}},
			Markers: map[string]marker.Marker{
				"main": marker.MustParse(`sys_platform == "win32"`),
				"dev":  marker.AnyMarker(),
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, results))

	out := buf.String()
	assert.Contains(t, out, `name = "colorama"`)
	assert.Contains(t, out, `name = "requests"`)
	// entries are sorted by name
	assert.Less(t, strings.Index(out, "colorama"), strings.Index(out, "requests"))

	locked, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, locked, 2)

	assert.Equal(t, "colorama", locked[0].Name)
	assert.True(t, locked[0].Version.Equal(version.MustParse("0.4.6")))
	assert.Equal(t, []string{"dev", "main"}, locked[0].Groups)
	assert.Equal(t, 1, locked[0].Depth)
	assert.True(t, locked[0].Markers["main"].Equal(marker.MustParse(`sys_platform == "win32"`)))
	// any markers are omitted on write and restored on read
	assert.True(t, locked[0].Markers["dev"].IsAny())

	assert.Equal(t, "requests", locked[1].Name)
	assert.Equal(t, 0, locked[1].Depth)
	assert.True(t, locked[1].Markers["main"].IsAny())
}

func TestReadRejectsInvalidInput(t *testing.T) {
	_, err := Read(strings.NewReader("not [ valid toml"))
	assert.Error(t, err)

	_, err = Read(strings.NewReader("[[package]]\nname = \"foo\"\nversion = \"not a version\"\ngroups = [\"main\"]\ndepth = 0\n"))
	assert.Error(t, err)

	_, err = Read(strings.NewReader("[[package]]\nname = \"foo\"\nversion = \"1.0.0\"\ngroups = [\"main\"]\ndepth = 0\n[package.markers]\nmain = \"sys_platform ==\"\n"))
	assert.Error(t, err)
}
