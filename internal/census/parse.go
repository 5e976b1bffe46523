package census

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/district-census/internal/geoid"
	"github.com/sells-group/district-census/internal/model"
)

// Geography columns returned alongside the variables.
const (
	colState      = "state"
	colCounty     = "county"
	colTract      = "tract"
	colBlockGroup = "block group"
)

// parseResponse decodes the API payload, a JSON array of arrays whose first
// row is the header, into attribute rows with a GEOID. Cells may be strings,
// numbers or null.
func parseResponse(data []byte) ([]model.AttributeRow, error) {
	raw, err := decodeTable(data)
	if err != nil {
		return nil, err
	}

	if len(raw) < 2 {
		return nil, nil // no data rows
	}

	colIdx := make(map[string]int, len(raw[0]))
	for i, col := range raw[0] {
		colIdx[col] = i
	}
	for _, col := range []string{colState, colCounty, colTract, colBlockGroup} {
		if _, ok := colIdx[col]; !ok {
			return nil, eris.Errorf("census: response missing %q column", col)
		}
	}

	rows := make([]model.AttributeRow, 0, len(raw)-1)
	for _, record := range raw[1:] {
		row := model.AttributeRow{
			State:      getCol(record, colIdx, colState),
			County:     getCol(record, colIdx, colCounty),
			Tract:      getCol(record, colIdx, colTract),
			BlockGroup: getCol(record, colIdx, colBlockGroup),
			Values:     make(map[string]float64, len(Variables)),
		}
		for _, v := range Variables {
			row.Values[v] = parseCount(getCol(record, colIdx, v))
		}
		geoid.ForRow(&row)
		rows = append(rows, row)
	}

	return rows, nil
}

// decodeTable decodes an array of arrays into text cells. Numbers keep their
// literal form and null becomes "".
func decodeTable(data []byte) ([][]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var cells [][]any
	if err := dec.Decode(&cells); err != nil {
		return nil, eris.Wrap(err, "census: unmarshal JSON")
	}

	table := make([][]string, len(cells))
	for i, record := range cells {
		table[i] = make([]string, len(record))
		for j, cell := range record {
			switch v := cell.(type) {
			case nil:
			case string:
				table[i][j] = v
			case json.Number:
				table[i][j] = v.String()
			default:
				return nil, eris.Errorf("census: unexpected %T in row %d column %d", cell, i, j)
			}
		}
	}
	return table, nil
}

// parseCount coerces a raw cell to a non-negative count. Missing cells,
// non-numeric text and negative sentinel codes (e.g. -666666666) become 0.
func parseCount(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// getCol gets a value from a record by column name.
func getCol(record []string, colIdx map[string]int, name string) string {
	idx, ok := colIdx[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return record[idx]
}
