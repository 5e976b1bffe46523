// Package registry maintains the list of published cities that the
// frontend map reads. cities.yaml is the source of truth; cities.js is
// rendered from it.
package registry

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/district-census/internal/aggregate"
)

// DateLayout is the format of AddedDate and SourceDate.
const DateLayout = "2006-01-02"

const centerPlaces = 4

// City is one published city.
type City struct {
	ID            string  `yaml:"id" json:"id"`
	Name          string  `yaml:"name" json:"name"`
	File          string  `yaml:"file" json:"file"`
	Lat           float64 `yaml:"lat" json:"lat"`
	Lng           float64 `yaml:"lng" json:"lng"`
	Src           string  `yaml:"src" json:"src"`
	DistrictField string  `yaml:"district_field" json:"district_field"`
	AddedDate     string  `yaml:"added_date" json:"added_date"`
	SourceDate    string  `yaml:"source_date" json:"source_date"`
}

// StateCity splits File ("NC/raleigh.geojson") into state and city slug.
func (c City) StateCity() (state, slug string) {
	dir, base := filepath.Split(filepath.ToSlash(c.File))
	return strings.Trim(dir, "/"), strings.TrimSuffix(base, filepath.Ext(base))
}

// Registry is the set of published cities, in insertion order.
type Registry struct {
	Cities []City `yaml:"cities"`
}

// Slug returns the directory name for a city: lower case, spaces to
// underscores.
func Slug(city string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(city)), " ", "_")
}

// ID returns the registry id for a city, e.g. "san-jose-ca".
func ID(state, city string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(city)), " ", "-") + "-" + strings.ToLower(state)
}

// DisplayName returns the title-cased "City, ST" label.
func DisplayName(state, city string) string {
	name := strings.ReplaceAll(strings.TrimSpace(city), "_", " ")
	return cases.Title(language.English).String(name) + ", " + strings.ToUpper(state)
}

// NewCity builds a registry entry for a processed city. The map centre is
// the middle of the result's bounding box.
func NewCity(state, city, src, field, sourceDate string, bounds *geom.Bounds, added time.Time) City {
	state = strings.ToUpper(state)
	c := City{
		ID:            ID(state, city),
		Name:          DisplayName(state, city),
		File:          state + "/" + Slug(city) + ".geojson",
		Src:           src,
		DistrictField: field,
		AddedDate:     added.Format(DateLayout),
		SourceDate:    sourceDate,
	}
	if bounds != nil {
		c.Lng = aggregate.Round((bounds.Min(0)+bounds.Max(0))/2, centerPlaces)
		c.Lat = aggregate.Round((bounds.Min(1)+bounds.Max(1))/2, centerPlaces)
	}
	return c
}

// Load reads the registry at path. A missing file is an empty registry.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Registry{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read %s", path)
	}

	var r Registry
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrapf(err, "registry: parse %s", path)
	}
	kept := r.Cities[:0]
	for _, c := range r.Cities {
		if c.ID == "" || c.File == "" {
			zap.L().Warn("registry: skipping malformed entry", zap.String("name", c.Name))
			continue
		}
		kept = append(kept, c)
	}
	r.Cities = kept
	return &r, nil
}

// Save writes the registry as YAML.
func (r *Registry) Save(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "registry: marshal")
	}
	return writeFileAtomic(path, data)
}

// Find returns the entry with the given id.
func (r *Registry) Find(id string) (City, bool) {
	for _, c := range r.Cities {
		if c.ID == id {
			return c, true
		}
	}
	return City{}, false
}

// Upsert replaces the entry with the same id in place, or appends it.
// It reports whether the entry was new.
func (r *Registry) Upsert(c City) bool {
	for i := range r.Cities {
		if r.Cities[i].ID == c.ID {
			r.Cities[i] = c
			return false
		}
	}
	r.Cities = append(r.Cities, c)
	return true
}

// FieldFor returns the registered district field for a state and city
// slug, or "" when the city is not registered.
func (r *Registry) FieldFor(state, slug string) string {
	for _, c := range r.Cities {
		s, cs := c.StateCity()
		if strings.EqualFold(s, state) && cs == slug {
			return c.DistrictField
		}
	}
	return ""
}

// RenderJS renders the registry as the ES module the frontend imports.
func (r *Registry) RenderJS() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("export const CITIES = [\n")
	for _, c := range r.Cities {
		entry, err := json.MarshalIndent(c, "    ", "    ")
		if err != nil {
			return nil, eris.Wrapf(err, "registry: render %s", c.ID)
		}
		buf.WriteString("    ")
		buf.Write(entry)
		buf.WriteString(",\n")
	}
	buf.WriteString("];\n")
	return buf.Bytes(), nil
}

// WriteJS renders the registry to path.
func (r *Registry) WriteJS(path string) error {
	data, err := r.RenderJS()
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "registry: create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return eris.Wrap(err, "registry: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "registry: write temp file")
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "registry: chmod temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "registry: close temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "registry: replace %s", path)
	}
	return nil
}
