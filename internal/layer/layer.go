// Package layer reads and writes polygon feature layers (GeoJSON and ESRI
// shapefiles) in geographic coordinates.
package layer

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// ErrUnsupportedCRS is returned for inputs in a projected coordinate system.
var ErrUnsupportedCRS = eris.New("layer: unsupported coordinate reference system")

// Feature is one polygonal record with its attributes.
type Feature struct {
	Geometry   *geom.MultiPolygon
	Properties map[string]any
}

// String returns the named property as text. Whole numbers print without
// a decimal point so numeric labels such as 3 read as "3".
func (f Feature) String(name string) string {
	return stringify(f.Properties[name])
}

// Layer is an ordered set of features and the attribute schema they share.
type Layer struct {
	Fields   []string
	Features []Feature
}

// HasField reports whether name is part of the layer's schema.
func (l *Layer) HasField(name string) bool {
	for _, f := range l.Fields {
		if f == name {
			return true
		}
	}
	return false
}

// Bounds returns the combined envelope of every feature, or nil for an
// empty layer.
func (l *Layer) Bounds() *geom.Bounds {
	var b *geom.Bounds
	for _, f := range l.Features {
		if f.Geometry == nil || f.Geometry.Empty() {
			continue
		}
		if b == nil {
			b = geom.NewBounds(geom.XY)
		}
		b.Extend(f.Geometry)
	}
	return b
}

// ReadFile reads a layer, choosing the decoder by file extension.
func ReadFile(path string) (*Layer, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return ReadGeoJSONFile(path)
	case ".shp":
		return ReadShapefile(path)
	default:
		return nil, eris.Errorf("layer: unsupported file type %q", path)
	}
}

// checkGeographic rejects layers whose coordinates cannot be longitude/latitude.
func checkGeographic(l *Layer, source string) error {
	b := l.Bounds()
	if b == nil {
		return nil
	}
	if b.Min(0) < -180 || b.Max(0) > 180 || b.Min(1) < -90 || b.Max(1) > 90 {
		return eris.Wrapf(ErrUnsupportedCRS, "%s: coordinates outside longitude/latitude range", source)
	}
	return nil
}

// fieldsOf returns the sorted union of property names across features.
func fieldsOf(features []Feature) []string {
	seen := make(map[string]struct{})
	for _, f := range features {
		for k := range f.Properties {
			seen[k] = struct{}{}
		}
	}
	fields := make([]string, 0, len(seen))
	for k := range seen {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
