// Package publish pushes a city's results to PostGIS and object storage.
package publish

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/sells-group/district-census/internal/aggregate"
	"github.com/sells-group/district-census/internal/db"
	"github.com/sells-group/district-census/internal/layer"
	"github.com/sells-group/district-census/internal/model"
)

// Columns returns the result table columns in COPY order: state, city,
// district, one count and one percentage per category, then geom.
func Columns() []string {
	cols := []string{"state", "city", "district"}
	for _, cat := range model.Categories {
		cols = append(cols, strings.ToLower(string(cat)))
	}
	for _, cat := range model.Categories {
		if !cat.IsTotal() {
			cols = append(cols, strings.ToLower(cat.PercentField()))
		}
	}
	return append(cols, "geom")
}

// CreateTableSQL returns the DDL for the result table.
func CreateTableSQL(table string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", db.Identifier(table).Sanitize())
	b.WriteString("\tstate    TEXT NOT NULL,\n\tcity     TEXT NOT NULL,\n\tdistrict TEXT NOT NULL,\n")
	cols := Columns()
	for _, c := range cols[3 : len(cols)-1] {
		fmt.Fprintf(&b, "\t%s DOUBLE PRECISION NOT NULL DEFAULT 0,\n", c)
	}
	fmt.Fprintf(&b, "\tgeom     geometry(MultiPolygon, %d),\n", model.SRIDWGS84)
	b.WriteString("\tPRIMARY KEY (state, city, district)\n)")
	return b.String()
}

// Rows converts output features to COPY rows, geometry as EWKB with SRID 4326.
func Rows(state, city string, features []layer.Feature) ([][]any, error) {
	rows := make([][]any, 0, len(features))
	for i, f := range features {
		row := []any{state, city, f.String(aggregate.DistrictField)}
		for _, cat := range model.Categories {
			row = append(row, number(f.Properties[string(cat)]))
		}
		for _, cat := range model.Categories {
			if !cat.IsTotal() {
				row = append(row, number(f.Properties[cat.PercentField()]))
			}
		}

		var wkb []byte
		if f.Geometry != nil {
			g := f.Geometry.Clone().SetSRID(model.SRIDWGS84)
			data, err := ewkb.Marshal(g, ewkb.NDR)
			if err != nil {
				return nil, eris.Wrapf(err, "publish: encode feature %d", i)
			}
			wkb = data
		}
		rows = append(rows, append(row, wkb))
	}
	return rows, nil
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

// PostGIS loads city results into a PostGIS table.
type PostGIS struct {
	pool  db.Pool
	table string
}

// NewPostGIS creates a PostGIS publisher writing to table.
func NewPostGIS(pool db.Pool, table string) *PostGIS {
	return &PostGIS{pool: pool, table: table}
}

// EnsureTable creates the result table if it does not exist.
func (p *PostGIS) EnsureTable(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, CreateTableSQL(p.table)); err != nil {
		return eris.Wrapf(err, "publish: create %s", p.table)
	}
	return nil
}

// Publish replaces the rows of one city with features.
func (p *PostGIS) Publish(ctx context.Context, state, city string, features []layer.Feature) (int64, error) {
	rows, err := Rows(state, city, features)
	if err != nil {
		return 0, err
	}
	n, err := db.Replace(ctx, p.pool, db.ReplaceConfig{
		Table:   p.table,
		Columns: Columns(),
		Match:   map[string]string{"state": state, "city": city},
	}, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "publish: %s/%s", state, city)
	}
	zap.L().Info("publish: loaded districts into postgis",
		zap.String("table", p.table),
		zap.String("state", state),
		zap.String("city", city),
		zap.Int64("rows", n),
	)
	return n, nil
}
