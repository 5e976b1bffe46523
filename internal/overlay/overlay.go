package overlay

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/district-census/internal/model"
)

// BoundsPolygon returns the rectangle covering b as a MultiPolygon.
func BoundsPolygon(b *geom.Bounds) *geom.MultiPolygon {
	minX, minY, maxX, maxY := b.Min(0), b.Min(1), b.Max(0), b.Max(1)
	return geom.NewMultiPolygonFlat(geom.XY, []float64{
		minX, minY, maxX, minY, maxX, maxY, minX, maxY, minX, minY,
	}, [][]int{{10}})
}

// envelopesOverlap reports whether the bounding boxes of a and b meet.
func envelopesOverlap(a, b *geom.Bounds) bool {
	return a.Min(0) <= b.Max(0) && b.Min(0) <= a.Max(0) &&
		a.Min(1) <= b.Max(1) && b.Min(1) <= a.Max(1)
}

// ClipToBounds keeps the block groups that intersect b and replaces each
// geometry with its part inside b. Block groups left with no area are
// dropped. This is a coarse prefilter, not a per-district clip.
func (e *Engine) ClipToBounds(bgs []model.BlockGroup, b *geom.Bounds) ([]model.BlockGroup, error) {
	if b == nil {
		return nil, eris.New("overlay: clip to empty bounds")
	}
	box := BoundsPolygon(b)

	out := make([]model.BlockGroup, 0, len(bgs))
	for _, bg := range bgs {
		if bg.Geometry == nil || !envelopesOverlap(bg.Geometry.Bounds(), b) {
			continue
		}
		clipped, err := e.Intersection(bg.Geometry, box)
		if err != nil {
			return nil, eris.Wrapf(err, "overlay: clip block group %s", bg.GEOID)
		}
		if clipped == nil {
			continue
		}
		bg.Geometry = clipped
		out = append(out, bg)
	}
	return out, nil
}

// Intersect emits one piece per (block group, district) pair whose
// intersection has area. Pure boundary touches produce no piece. Area and
// Weight are left for the allocator.
func (e *Engine) Intersect(bgs []model.BlockGroup, districts []model.District) ([]model.OverlapPiece, error) {
	districtBounds := make([]*geom.Bounds, len(districts))
	for i, d := range districts {
		if d.Geometry != nil {
			districtBounds[i] = d.Geometry.Bounds()
		}
	}

	var pieces []model.OverlapPiece
	for _, bg := range bgs {
		if bg.Geometry == nil {
			continue
		}
		bgBounds := bg.Geometry.Bounds()
		for i, d := range districts {
			if districtBounds[i] == nil || !envelopesOverlap(bgBounds, districtBounds[i]) {
				continue
			}
			g, err := e.Intersection(bg.Geometry, d.Geometry)
			if err != nil {
				return nil, eris.Wrapf(err, "overlay: intersect %s with district %s", bg.GEOID, d.Label)
			}
			if g == nil {
				continue
			}
			pieces = append(pieces, model.OverlapPiece{
				GEOID:    bg.GEOID,
				District: d.Label,
				Geometry: g,
				Counts:   bg.Counts,
			})
		}
	}

	e.log.Debug("overlay complete",
		zap.Int("block_groups", len(bgs)),
		zap.Int("districts", len(districts)),
		zap.Int("pieces", len(pieces)),
	)
	return pieces, nil
}
