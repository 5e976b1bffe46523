package areal

import (
	"math"

	"go.uber.org/zap"

	"github.com/sells-group/district-census/internal/model"
)

// MinArea is the area in square metres at or below which a polygon is
// treated as having no area.
const MinArea = 1e-6

// Allocator assigns areal weights to overlap pieces.
type Allocator struct {
	proj *Albers
	log  *zap.Logger
}

// NewAllocator creates an Allocator measuring area with proj, or with
// Conus Albers when proj is nil.
func NewAllocator(proj *Albers) *Allocator {
	if proj == nil {
		proj = ConusAlbers()
	}
	return &Allocator{
		proj: proj,
		log:  zap.L().With(zap.String("component", "areal")),
	}
}

// ParentAreas measures each block group's (clipped) geometry, keyed by GEOID.
func (a *Allocator) ParentAreas(bgs []model.BlockGroup) map[string]float64 {
	areas := make(map[string]float64, len(bgs))
	for _, bg := range bgs {
		areas[bg.GEOID] = a.proj.Area(bg.Geometry)
	}
	return areas
}

// Allocate sets Area and Weight on every piece and returns the pieces that
// have area. Weight is the piece's share of its parent's area, clamped to
// [0, 1]. A parent with no measurable area gives its pieces weight 0.
func (a *Allocator) Allocate(pieces []model.OverlapPiece, parentAreas map[string]float64) []model.OverlapPiece {
	out := make([]model.OverlapPiece, 0, len(pieces))
	var dropped, degenerate int
	for _, p := range pieces {
		p.Area = a.proj.Area(p.Geometry)
		if !(p.Area > MinArea) {
			dropped++
			continue
		}

		parent := parentAreas[p.GEOID]
		if !(parent > MinArea) || math.IsInf(parent, 0) {
			degenerate++
			a.log.Debug("zero-area parent, piece contributes nothing",
				zap.String("geoid", p.GEOID),
				zap.String("district", p.District),
			)
			p.Weight = 0
			out = append(out, p)
			continue
		}

		p.Weight = clamp01(p.Area / parent)
		out = append(out, p)
	}

	if dropped > 0 || degenerate > 0 {
		a.log.Debug("allocation summary",
			zap.Int("pieces", len(out)),
			zap.Int("dropped_zero_area", dropped),
			zap.Int("zero_area_parents", degenerate),
		)
	}
	return out
}

func clamp01(w float64) float64 {
	switch {
	case math.IsNaN(w) || w < 0:
		return 0
	case w > 1:
		return 1
	default:
		return w
	}
}
