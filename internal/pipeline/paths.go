package pipeline

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/district-census/internal/model"
)

// File names inside the data root.
const (
	BlockGroupsGeoJSON = "census_block_groups.geojson"
	BlockGroupsShp     = "census_block_groups.shp"
	DistrictsGeoJSON   = "police_districts.geojson"
)

// CityPaths locates one city's inputs and output.
type CityPaths struct {
	BlockGroups string
	Districts   string
	Output      string
}

// Paths resolves the input and output files for a city:
// {root}/{STATE}/census_block_groups.geojson (or .shp),
// {root}/{STATE}/{city}/police_districts.geojson and
// {results}/{STATE}/{city}.geojson.
func Paths(dataRoot, resultsDir string, city model.CityRef) CityPaths {
	stateDir := filepath.Join(dataRoot, city.State)
	bg := filepath.Join(stateDir, BlockGroupsGeoJSON)
	if _, err := os.Stat(bg); err != nil {
		if shp := filepath.Join(stateDir, BlockGroupsShp); fileExists(shp) {
			bg = shp
		}
	}
	return CityPaths{
		BlockGroups: bg,
		Districts:   filepath.Join(stateDir, city.City, DistrictsGeoJSON),
		Output:      filepath.Join(resultsDir, city.State, city.City+".geojson"),
	}
}

// DiscoverCities lists every {root}/{STATE}/{city} that holds a districts
// file, sorted by state then city.
func DiscoverCities(dataRoot string) ([]model.CityRef, error) {
	matches, err := filepath.Glob(filepath.Join(dataRoot, "*", "*", DistrictsGeoJSON))
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: glob cities")
	}

	cities := make([]model.CityRef, 0, len(matches))
	for _, m := range matches {
		cityDir := filepath.Dir(m)
		cities = append(cities, model.CityRef{
			State: filepath.Base(filepath.Dir(cityDir)),
			City:  filepath.Base(cityDir),
		})
	}
	sort.Slice(cities, func(i, j int) bool {
		if cities[i].State != cities[j].State {
			return cities[i].State < cities[j].State
		}
		return cities[i].City < cities[j].City
	})
	return cities, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
