package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestCategories_TotalFirst(t *testing.T) {
	assert.Equal(t, CategoryTotal, Categories[0])
	assert.Len(t, Categories, 9)
	assert.True(t, CategoryTotal.IsTotal())
	assert.False(t, CategoryHispanic.IsTotal())
	assert.Equal(t, "ASIAN_PCT", CategoryAsian.PercentField())
}

func TestCounts_ScaledAndAdd(t *testing.T) {
	c := Counts{CategoryTotal: 100, CategoryBlack: 40}
	half := c.Scaled(0.5)
	assert.Equal(t, 50.0, half[CategoryTotal])
	assert.Equal(t, 20.0, half[CategoryBlack])
	// Scaled must not mutate the receiver.
	assert.Equal(t, 100.0, c[CategoryTotal])

	sum := ZeroCounts()
	sum.Add(half)
	sum.Add(half)
	assert.Equal(t, 100.0, sum[CategoryTotal])
	assert.Equal(t, 0.0, sum[CategoryAsian])
	assert.Len(t, sum, len(Categories))
}

func TestCounts_Clone(t *testing.T) {
	c := Counts{CategoryTotal: 1}
	cl := c.Clone()
	cl[CategoryTotal] = 5
	assert.Equal(t, 1.0, c[CategoryTotal])
}

func TestBlockGroup_FIPSParts(t *testing.T) {
	bg := BlockGroup{GEOID: "371190001001"}
	assert.Equal(t, "37", bg.StateFIPS())
	assert.Equal(t, "119", bg.CountyFIPS())

	short := BlockGroup{GEOID: "3"}
	assert.Empty(t, short.StateFIPS())
	assert.Empty(t, short.CountyFIPS())
}

func TestOverlapPiece_Contribution(t *testing.T) {
	p := OverlapPiece{Counts: Counts{CategoryTotal: 200}, Weight: 0.25}
	assert.Equal(t, 50.0, p.Contribution()[CategoryTotal])
}

func square(x0, y0, size float64) *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{
		x0, y0, x0 + size, y0, x0 + size, y0 + size, x0, y0 + size, x0, y0,
	}, []int{10})
}

func TestAsMultiPolygon(t *testing.T) {
	mp := AsMultiPolygon(square(0, 0, 1))
	require.NotNil(t, mp)
	assert.Equal(t, 1, mp.NumPolygons())

	gc := geom.NewGeometryCollection()
	require.NoError(t, gc.Push(
		square(0, 0, 1),
		geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 1}),
		geom.NewMultiPolygon(geom.XY),
		square(2, 2, 1),
	))
	mp = AsMultiPolygon(gc)
	require.NotNil(t, mp)
	assert.Equal(t, 2, mp.NumPolygons())
	assert.InDelta(t, 2.0, mp.Area(), 1e-12)

	assert.Nil(t, AsMultiPolygon(geom.NewPointFlat(geom.XY, []float64{1, 1})))
}

func TestAsMultiPolygon_DropsZ(t *testing.T) {
	p := geom.NewPolygonFlat(geom.XYZ, []float64{0, 0, 5, 1, 0, 5, 1, 1, 5, 0, 0, 5}, []int{12})
	mp := AsMultiPolygon(p)
	require.NotNil(t, mp)
	assert.Equal(t, geom.XY, mp.Layout())
	assert.InDelta(t, 0.5, mp.Area(), 1e-12)
}
