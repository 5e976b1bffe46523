package layer

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/district-census/internal/model"
)

// geographicCRSNames are the legacy GeoJSON "crs" names accepted as lon/lat.
var geographicCRSNames = []string{"CRS84", "EPSG::4326", "EPSG:4326", "EPSG::4269", "EPSG:4269", "CRS83"}

// ReadGeoJSONFile reads a GeoJSON FeatureCollection from disk.
func ReadGeoJSONFile(path string) (*Layer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "layer: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	l, err := ReadGeoJSON(f)
	if err != nil {
		return nil, eris.Wrapf(err, "layer: read %s", path)
	}
	return l, nil
}

// ReadGeoJSON decodes a FeatureCollection. Non-polygonal and null
// geometries are skipped.
func ReadGeoJSON(r io.Reader) (*Layer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "layer: read geojson")
	}

	if err := checkDeclaredCRS(data); err != nil {
		return nil, err
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "layer: decode geojson")
	}

	l := &Layer{Features: make([]Feature, 0, len(fc.Features))}
	var skipped int
	for _, gf := range fc.Features {
		mp := model.AsMultiPolygon(gf.Geometry)
		if mp == nil {
			skipped++
			continue
		}
		props := gf.Properties
		if props == nil {
			props = map[string]any{}
		}
		l.Features = append(l.Features, Feature{Geometry: mp, Properties: props})
	}
	l.Fields = fieldsOf(l.Features)

	if skipped > 0 {
		zap.L().Debug("layer: skipped non-polygon features", zap.Int("skipped", skipped))
	}

	if err := checkGeographic(l, "geojson"); err != nil {
		return nil, err
	}
	return l, nil
}

// checkDeclaredCRS inspects the optional legacy "crs" member.
func checkDeclaredCRS(data []byte) error {
	var head struct {
		CRS *struct {
			Properties struct {
				Name string `json:"name"`
			} `json:"properties"`
		} `json:"crs"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return eris.Wrap(err, "layer: decode geojson")
	}
	if head.CRS == nil || head.CRS.Properties.Name == "" {
		return nil
	}
	name := strings.ToUpper(head.CRS.Properties.Name)
	for _, ok := range geographicCRSNames {
		if strings.HasSuffix(name, ok) {
			return nil
		}
	}
	return eris.Wrapf(ErrUnsupportedCRS, "geojson declares %s", head.CRS.Properties.Name)
}

// WriteGeoJSONFile writes features as a FeatureCollection. The file is
// written to a temp file in the same directory and renamed into place, so
// readers never observe a partial result.
func WriteGeoJSONFile(path string, features []Feature) error {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(features))}
	for _, f := range features {
		gf := &geojson.Feature{Properties: f.Properties}
		if f.Geometry != nil {
			gf.Geometry = f.Geometry
		}
		fc.Features = append(fc.Features, gf)
	}

	data, err := json.Marshal(&fc)
	if err != nil {
		return eris.Wrap(err, "layer: encode geojson")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "layer: create dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "layer: create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return eris.Wrapf(err, "layer: chmod %s", tmpName)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return eris.Wrapf(err, "layer: write %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "layer: close %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrapf(err, "layer: rename to %s", path)
	}
	return nil
}
