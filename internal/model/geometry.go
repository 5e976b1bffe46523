package model

import "github.com/twpayne/go-geom"

// SRIDWGS84 is the SRID of geographic longitude/latitude coordinates.
const SRIDWGS84 = 4326

// AsMultiPolygon returns the polygonal part of g as a MultiPolygon.
// Polygons are promoted, collections are searched recursively and all
// other geometry types contribute nothing. It returns nil when no
// polygon survives.
func AsMultiPolygon(g geom.T) *geom.MultiPolygon {
	mp := geom.NewMultiPolygon(geom.XY)
	collectPolygons(g, mp)
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

func collectPolygons(g geom.T, into *geom.MultiPolygon) {
	switch t := g.(type) {
	case *geom.Polygon:
		if t != nil && !t.Empty() {
			_ = into.Push(toXY(t))
		}
	case *geom.MultiPolygon:
		if t == nil {
			return
		}
		for i := 0; i < t.NumPolygons(); i++ {
			p := t.Polygon(i)
			if !p.Empty() {
				_ = into.Push(toXY(p))
			}
		}
	case *geom.GeometryCollection:
		if t == nil {
			return
		}
		for _, child := range t.Geoms() {
			collectPolygons(child, into)
		}
	}
}

// toXY drops Z/M ordinates so every polygon shares the XY layout.
func toXY(p *geom.Polygon) *geom.Polygon {
	if p.Layout() == geom.XY {
		return p
	}
	stride := p.Stride()
	flat := p.FlatCoords()
	out := make([]float64, 0, len(flat)/stride*2)
	for i := 0; i < len(flat); i += stride {
		out = append(out, flat[i], flat[i+1])
	}
	ends := make([]int, len(p.Ends()))
	for i, e := range p.Ends() {
		ends[i] = e / stride * 2
	}
	return geom.NewPolygonFlat(geom.XY, out, ends)
}
