// Package export writes a city's district results as a flat data table.
package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/district-census/internal/aggregate"
	"github.com/sells-group/district-census/internal/layer"
	"github.com/sells-group/district-census/internal/model"
)

// Column is one table column.
type Column struct {
	Key     string
	Label   string
	Percent bool
}

// Columns lists the table columns: the district, the counts in display
// order, then the percentages.
var Columns = func() []Column {
	order := []struct {
		cat   model.Category
		label string
	}{
		{model.CategoryTotal, "Total Pop"},
		{model.CategoryWhite, "White"},
		{model.CategoryBlack, "Black"},
		{model.CategoryHispanic, "Hispanic"},
		{model.CategoryAsian, "Asian"},
		{model.CategoryAmericanIndian, "Am. Indian"},
		{model.CategoryPacificIslander, "Pac. Islander"},
		{model.CategoryTwoOrMore, "Two+"},
		{model.CategoryOther, "Other"},
	}
	cols := []Column{{Key: aggregate.DistrictField, Label: "District"}}
	for _, o := range order {
		cols = append(cols, Column{Key: string(o.cat), Label: o.label})
	}
	for _, o := range order[1:] {
		cols = append(cols, Column{Key: o.cat.PercentField(), Label: o.label + " %", Percent: true})
	}
	return cols
}()

// Row is one district's values keyed by column.
type Row struct {
	District string
	Values   map[string]float64
}

// Rows flattens result features and sorts them by total population,
// largest first. Ties keep district order.
func Rows(features []layer.Feature) []Row {
	rows := make([]Row, 0, len(features))
	for _, f := range features {
		r := Row{District: f.String(aggregate.DistrictField), Values: make(map[string]float64, len(Columns))}
		for _, c := range Columns[1:] {
			if v, ok := f.Properties[c.Key].(float64); ok {
				r.Values[c.Key] = v
			}
		}
		rows = append(rows, r)
	}
	total := string(model.CategoryTotal)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Values[total] > rows[j].Values[total]
	})
	return rows
}

// WriteFile writes features to path as .xlsx or .csv, chosen by extension.
func WriteFile(path, sheet string, features []layer.Feature) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "export: create %s", filepath.Dir(path))
	}
	rows := Rows(features)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return writeXLSX(path, sheet, rows)
	case ".csv":
		return writeCSV(path, rows)
	default:
		return eris.Errorf("export: unsupported output %s (want .xlsx or .csv)", path)
	}
}

func writeXLSX(path, sheetName string, rows []Row) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetTitle(sheetName))
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, c := range Columns {
		header.AddCell().SetString(c.Label)
	}
	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetString(r.District)
		for _, c := range Columns[1:] {
			cell := row.AddCell()
			if c.Percent {
				cell.SetFloatWithFormat(r.Values[c.Key], "0.0%")
			} else {
				cell.SetFloatWithFormat(r.Values[c.Key], "#,##0")
			}
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}

// sheetTitle trims a name to Excel's 31-character sheet limit.
func sheetTitle(name string) string {
	if name == "" {
		return "Districts"
	}
	if len(name) > 31 {
		return name[:31]
	}
	return name
}

func writeCSV(path string, rows []Row) error {
	out, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "csv: create %s", path)
	}
	defer out.Close() //nolint:errcheck

	w := csv.NewWriter(out)
	header := make([]string, len(Columns))
	for i, c := range Columns {
		header[i] = c.Key
	}
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "csv: write header")
	}
	for _, r := range rows {
		rec := []string{r.District}
		for _, c := range Columns[1:] {
			rec = append(rec, strconv.FormatFloat(r.Values[c.Key], 'f', -1, 64))
		}
		if err := w.Write(rec); err != nil {
			return eris.Wrap(err, "csv: write row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "csv: flush")
	}
	if err := out.Close(); err != nil {
		return eris.Wrap(err, "csv: close")
	}
	return nil
}
