// Package areal measures polygon area in an equal-area projection and
// assigns overlap pieces their share of the parent block group.
package areal

import (
	"math"

	"github.com/twpayne/go-geom"
)

// GRS80 ellipsoid.
const (
	grs80A = 6378137.0
	grs80F = 1 / 298.257222101
)

// Albers is an Albers conic equal-area projection on the GRS80 ellipsoid.
type Albers struct {
	a, e, e2 float64
	n, c     float64
	rho0     float64
	lon0     float64
}

// NewAlbers builds a projection from its standard parallels, latitude of
// origin and central meridian, all in degrees.
func NewAlbers(lat1, lat2, lat0, lon0 float64) *Albers {
	e2 := 2*grs80F - grs80F*grs80F
	p := &Albers{a: grs80A, e2: e2, e: math.Sqrt(e2), lon0: radians(lon0)}

	phi1, phi2 := radians(lat1), radians(lat2)
	m1, m2 := p.m(phi1), p.m(phi2)
	q1, q2, q0 := p.q(phi1), p.q(phi2), p.q(radians(lat0))

	p.n = (m1*m1 - m2*m2) / (q2 - q1)
	p.c = m1*m1 + p.n*q1
	p.rho0 = p.a * math.Sqrt(p.c-p.n*q0) / p.n
	return p
}

// ConusAlbers returns NAD83 / Conus Albers (EPSG:5070).
func ConusAlbers() *Albers {
	return NewAlbers(29.5, 45.5, 23, -96)
}

// Forward projects a longitude/latitude pair to metres.
func (p *Albers) Forward(lon, lat float64) (x, y float64) {
	rho := p.a * math.Sqrt(p.c-p.n*p.q(radians(lat))) / p.n
	theta := p.n * (radians(lon) - p.lon0)
	return rho * math.Sin(theta), p.rho0 - rho*math.Cos(theta)
}

// Project returns a copy of mp with every coordinate projected.
func (p *Albers) Project(mp *geom.MultiPolygon) *geom.MultiPolygon {
	stride := mp.Stride()
	src := mp.FlatCoords()
	dst := make([]float64, len(src))
	for i := 0; i+1 < len(src); i += stride {
		dst[i], dst[i+1] = p.Forward(src[i], src[i+1])
		for k := 2; k < stride; k++ {
			dst[i+k] = src[i+k]
		}
	}
	return geom.NewMultiPolygonFlat(mp.Layout(), dst, mp.Endss())
}

// Area returns the area of a lon/lat MultiPolygon in square metres.
func (p *Albers) Area(mp *geom.MultiPolygon) float64 {
	if mp == nil || mp.Empty() {
		return 0
	}
	return p.Project(mp).Area()
}

func (p *Albers) m(phi float64) float64 {
	s := math.Sin(phi)
	return math.Cos(phi) / math.Sqrt(1-p.e2*s*s)
}

func (p *Albers) q(phi float64) float64 {
	s := math.Sin(phi)
	return (1 - p.e2) * (s/(1-p.e2*s*s) - 1/(2*p.e)*math.Log((1-p.e*s)/(1+p.e*s)))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
