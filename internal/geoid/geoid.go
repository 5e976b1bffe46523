// Package geoid builds canonical census block-group identifiers.
//
// The same padding scheme is applied to block-group layer fields and to the
// parts returned by the Census API so the two sides join on exact strings.
package geoid

import (
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/district-census/internal/model"
)

// Layer field names used by TIGER/Line block-group files.
const (
	FieldGEOID      = "GEOID"
	FieldState      = "STATEFP"
	FieldCounty     = "COUNTYFP"
	FieldTract      = "TRACTCE"
	FieldBlockGroup = "BLKGRPCE"
)

// Pad left-pads a FIPS component with zeros to width. Numeric input is
// normalized first, so "7", "07" and "7.0" all pad to the same value.
// Values already wider than width are returned unchanged.
func Pad(code string, width int) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return strings.Repeat("0", width)
	}
	if f, err := strconv.ParseFloat(code, 64); err == nil && f >= 0 && f == float64(int64(f)) {
		code = strconv.FormatInt(int64(f), 10)
	}
	for len(code) < width {
		code = "0" + code
	}
	return code
}

// Build concatenates state (2), county (3), tract (6) and block group (1)
// into a GEOID.
func Build(state, county, tract, blockGroup string) string {
	return Pad(state, model.StateFIPSWidth) +
		Pad(county, model.CountyFIPSWidth) +
		Pad(tract, model.TractWidth) +
		Pad(blockGroup, model.BlockGroupWidth)
}

// FromProperties returns the GEOID for a block-group feature. A non-empty
// GEOID property wins; otherwise the identifier is built from the FIPS part
// fields. Missing part fields are reported as an error.
func FromProperties(props map[string]string) (string, error) {
	if id := strings.TrimSpace(props[FieldGEOID]); id != "" {
		// Numeric GEOIDs lose the leading zero of states below 10.
		return Pad(id, model.GEOIDWidth), nil
	}

	var missing []string
	for _, f := range []string{FieldState, FieldCounty, FieldTract, FieldBlockGroup} {
		if strings.TrimSpace(props[f]) == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return "", eris.Errorf("geoid: feature has no %s and is missing %s", FieldGEOID, strings.Join(missing, ", "))
	}

	return Build(props[FieldState], props[FieldCounty], props[FieldTract], props[FieldBlockGroup]), nil
}

// ForRow sets and returns the GEOID of an attribute row from its parts.
// The Census API never returns a ready-made block-group GEOID.
func ForRow(row *model.AttributeRow) string {
	row.GEOID = Build(row.State, row.County, row.Tract, row.BlockGroup)
	return row.GEOID
}

// Counties returns the sorted distinct county FIPS codes of the given block
// groups. Block groups with a short GEOID are skipped.
func Counties(bgs []model.BlockGroup) []string {
	seen := make(map[string]bool)
	var out []string
	for _, bg := range bgs {
		c := bg.CountyFIPS()
		if c == "" {
			continue
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return out
}
