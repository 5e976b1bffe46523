package registry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestNaming(t *testing.T) {
	assert.Equal(t, "san_jose", Slug(" San Jose "))
	assert.Equal(t, "san-jose-ca", ID("CA", "San Jose"))
	assert.Equal(t, "San Jose, CA", DisplayName("ca", "san jose"))
	assert.Equal(t, "Winston Salem, NC", DisplayName("NC", "winston_salem"))
}

func TestNewCity(t *testing.T) {
	b := geom.NewBounds(geom.XY).Set(-78.81234, 35.71111, -78.51234, 35.91121)
	added := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)

	c := NewCity("nc", "Raleigh", "https://example.org/districts.zip", "DISTRICT", "2024-11-01", b, added)
	assert.Equal(t, "raleigh-nc", c.ID)
	assert.Equal(t, "Raleigh, NC", c.Name)
	assert.Equal(t, "NC/raleigh.geojson", c.File)
	assert.Equal(t, -78.6623, c.Lng)
	assert.Equal(t, 35.8112, c.Lat)
	assert.Equal(t, "2025-03-04", c.AddedDate)
	assert.Equal(t, "2024-11-01", c.SourceDate)

	state, slug := c.StateCity()
	assert.Equal(t, "NC", state)
	assert.Equal(t, "raleigh", slug)
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	r, err := Load(filepath.Join(t.TempDir(), "cities.yaml"))
	require.NoError(t, err)
	assert.Empty(t, r.Cities)
}

func TestLoad_SkipsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cities.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cities:
  - id: raleigh-nc
    name: Raleigh, NC
    file: NC/raleigh.geojson
    district_field: DISTRICT
  - name: Nowhere
`), 0o644))

	r, err := Load(path)
	require.NoError(t, err)
	require.Len(t, r.Cities, 1)
	assert.Equal(t, "DISTRICT", r.FieldFor("nc", "raleigh"))
	assert.Empty(t, r.FieldFor("NC", "durham"))
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cities.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cities: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestUpsertAndSaveRoundTrip(t *testing.T) {
	r := &Registry{}
	a := City{ID: "raleigh-nc", Name: "Raleigh, NC", File: "NC/raleigh.geojson", DistrictField: "DISTRICT"}
	b := City{ID: "oakland-ca", Name: "Oakland, CA", File: "CA/oakland.geojson", DistrictField: "BEAT"}

	assert.True(t, r.Upsert(a))
	assert.True(t, r.Upsert(b))
	a.DistrictField = "DIST"
	assert.False(t, r.Upsert(a))
	require.Len(t, r.Cities, 2)
	assert.Equal(t, "DIST", r.Cities[0].DistrictField)

	path := filepath.Join(t.TempDir(), "nested", "cities.yaml")
	require.NoError(t, r.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, r.Cities, loaded.Cities)

	got, ok := loaded.Find("oakland-ca")
	require.True(t, ok)
	assert.Equal(t, "BEAT", got.DistrictField)
	_, ok = loaded.Find("missing")
	assert.False(t, ok)
}

func TestRenderJS(t *testing.T) {
	r := &Registry{Cities: []City{
		{ID: "raleigh-nc", Name: "Raleigh, NC", File: "NC/raleigh.geojson", Lat: 35.8, Lng: -78.6},
	}}
	data, err := r.RenderJS()
	require.NoError(t, err)

	js := string(data)
	assert.True(t, strings.HasPrefix(js, "export const CITIES = [\n    {\n"))
	assert.True(t, strings.HasSuffix(js, "    },\n];\n"))
	assert.Contains(t, js, `        "id": "raleigh-nc",`)
	assert.Contains(t, js, `"lng": -78.6`)
	assert.Less(t, strings.Index(js, `"id"`), strings.Index(js, `"source_date"`))

	path := filepath.Join(t.TempDir(), "src", "cities.js")
	require.NoError(t, r.WriteJS(path))
	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, written)
}

func TestRenderJS_Empty(t *testing.T) {
	data, err := (&Registry{}).RenderJS()
	require.NoError(t, err)
	assert.Equal(t, "export const CITIES = [\n];\n", string(data))
}
