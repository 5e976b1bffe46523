// Package district turns a raw district layer into one polygon per label.
package district

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/district-census/internal/layer"
	"github.com/sells-group/district-census/internal/model"
)

// ErrFieldNotFound is returned when the label field is not in the layer schema.
var ErrFieldNotFound = eris.New("district: field not found")

// Unioner dissolves polygons into one geometry.
type Unioner interface {
	Union(parts []*geom.MultiPolygon) (*geom.MultiPolygon, error)
}

// Normalize dissolves the layer's features by the value of field and
// returns one District per distinct label, sorted by label. Features with a
// null or blank label are dropped, as are all other attributes.
func Normalize(l *layer.Layer, field string, u Unioner) ([]model.District, error) {
	if !l.HasField(field) {
		return nil, eris.Wrapf(ErrFieldNotFound, "%q not in [%s]", field, strings.Join(l.Fields, ", "))
	}

	groups := make(map[string][]*geom.MultiPolygon)
	unlabelled := 0
	for _, f := range l.Features {
		label := f.String(field)
		if label == "" {
			unlabelled++
			continue
		}
		groups[label] = append(groups[label], f.Geometry)
	}
	if unlabelled > 0 {
		zap.L().Warn("dropping features without a district label",
			zap.String("field", field),
			zap.Int("features", unlabelled),
		)
	}

	labels := make([]string, 0, len(groups))
	for label := range groups {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	districts := make([]model.District, 0, len(labels))
	for _, label := range labels {
		parts := groups[label]
		g := parts[0]
		if len(parts) > 1 {
			merged, err := u.Union(parts)
			if err != nil {
				return nil, eris.Wrapf(err, "district: dissolve %q", label)
			}
			g = merged
		}
		if g == nil {
			zap.L().Warn("district has no area after dissolve", zap.String("district", label))
			continue
		}
		districts = append(districts, model.District{Label: label, Geometry: g})
	}

	return districts, nil
}

// Bounds returns the combined envelope of the districts, or nil when none
// has geometry.
func Bounds(districts []model.District) *geom.Bounds {
	var b *geom.Bounds
	for _, d := range districts {
		if d.Geometry == nil || d.Geometry.Empty() {
			continue
		}
		if b == nil {
			b = geom.NewBounds(geom.XY)
		}
		b.Extend(d.Geometry)
	}
	return b
}
