package layer

import (
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// ReadShapefile reads a polygon shapefile and its .dbf attributes. A .prj
// sidecar declaring a projected system is rejected with ErrUnsupportedCRS;
// geographic NAD83 and WGS84 are both accepted as lon/lat.
func ReadShapefile(shpPath string) (*Layer, error) {
	if err := checkPrj(strings.TrimSuffix(shpPath, ".shp") + ".prj"); err != nil {
		return nil, err
	}

	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "layer: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimSpace(strings.TrimRight(f.String(), "\x00"))
	}

	l := &Layer{Fields: names}
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}
		mp := PolygonToMultiPolygon(poly)
		if mp == nil {
			skipped++
			continue
		}

		props := make(map[string]any, len(names))
		for i, name := range names {
			val := strings.TrimRight(reader.Attribute(i), "\x00")
			props[name] = strings.TrimSpace(val)
		}
		l.Features = append(l.Features, Feature{Geometry: mp, Properties: props})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "layer: read shapefile %s", shpPath)
	}

	if skipped > 0 {
		zap.L().Debug("layer: skipped shapefile records",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}

	if err := checkGeographic(l, shpPath); err != nil {
		return nil, err
	}
	return l, nil
}

func checkPrj(prjPath string) error {
	data, err := os.ReadFile(prjPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return eris.Wrapf(err, "layer: read %s", prjPath)
	}
	if strings.Contains(strings.ToUpper(string(data)), "PROJCS[") {
		return eris.Wrapf(ErrUnsupportedCRS, "%s declares a projected system", prjPath)
	}
	return nil
}

// PolygonToMultiPolygon converts a shapefile polygon into a MultiPolygon.
// Shapefiles store outer rings clockwise and holes counter-clockwise, with
// all rings of a record in one flat list. Each hole is attached to the
// shell that contains it, falling back to the preceding shell.
func PolygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	type shell struct {
		rings [][]float64
	}
	var shells []*shell
	var holes [][]float64

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 4 {
			zap.L().Debug("layer: skipping degenerate ring", zap.Int32("part", i))
			continue
		}

		ring := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			ring = append(ring, p.Points[j].X, p.Points[j].Y)
		}

		if xy.IsRingCounterClockwise(geom.XY, ring) {
			holes = append(holes, ring)
			continue
		}
		shells = append(shells, &shell{rings: [][]float64{ring}})
	}

	if len(shells) == 0 {
		// Some writers ignore orientation; treat every ring as a shell.
		for _, h := range holes {
			shells = append(shells, &shell{rings: [][]float64{h}})
		}
		holes = nil
	}

	for _, h := range holes {
		first := geom.Coord{h[0], h[1]}
		var owner *shell
		for _, s := range shells {
			if xy.IsPointInRing(geom.XY, first, s.rings[0]) {
				owner = s
				break
			}
		}
		if owner == nil {
			owner = shells[len(shells)-1]
		}
		owner.rings = append(owner.rings, h)
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for i, s := range shells {
		var flat []float64
		ends := make([]int, 0, len(s.rings))
		for _, r := range s.rings {
			flat = append(flat, r...)
			ends = append(ends, len(flat))
		}
		if err := mp.Push(geom.NewPolygonFlat(geom.XY, flat, ends)); err != nil {
			zap.L().Debug("layer: skipping malformed polygon part", zap.Int("part", i), zap.Error(err))
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
