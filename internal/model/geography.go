package model

import "github.com/twpayne/go-geom"

// Fixed widths of the GEOID components for a census block group.
const (
	StateFIPSWidth  = 2
	CountyFIPSWidth = 3
	TractWidth      = 6
	BlockGroupWidth = 1
	GEOIDWidth      = StateFIPSWidth + CountyFIPSWidth + TractWidth + BlockGroupWidth
)

// BlockGroup is a census block group with its demographic counts.
// Geometry is in geographic (lon/lat) coordinates.
type BlockGroup struct {
	GEOID    string
	Geometry *geom.MultiPolygon
	Counts   Counts
}

// StateFIPS returns the 2-digit state part of the GEOID.
func (b BlockGroup) StateFIPS() string {
	if len(b.GEOID) < StateFIPSWidth {
		return ""
	}
	return b.GEOID[:StateFIPSWidth]
}

// CountyFIPS returns the 3-digit county part of the GEOID.
func (b BlockGroup) CountyFIPS() string {
	end := StateFIPSWidth + CountyFIPSWidth
	if len(b.GEOID) < end {
		return ""
	}
	return b.GEOID[StateFIPSWidth:end]
}

// District is a normalized target polygon, one per distinct label.
type District struct {
	Label    string
	Geometry *geom.MultiPolygon
}

// AttributeRow is one block-group row returned by the attribute source.
// Values are keyed by raw variable code (e.g. B03002_001E).
type AttributeRow struct {
	State      string
	County     string
	Tract      string
	BlockGroup string
	GEOID      string
	Values     map[string]float64
}

// OverlapPiece is the intersection of one block group with one district.
// Area is in square meters measured in an equal-area projection.
type OverlapPiece struct {
	GEOID    string
	District string
	Geometry *geom.MultiPolygon
	Counts   Counts
	Area     float64
	Weight   float64
}

// Contribution returns the piece's share of its block group's counts.
func (p OverlapPiece) Contribution() Counts {
	return p.Counts.Scaled(p.Weight)
}

// DistrictResult is the aggregated output for one district.
type DistrictResult struct {
	District string
	Geometry *geom.MultiPolygon
	Counts   Counts
	Percents Counts
}
