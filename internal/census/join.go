package census

import "github.com/sells-group/district-census/internal/model"

// Join attaches attribute counts to block groups by exact GEOID match.
// Block groups with no row get all-zero counts. It returns the number of
// block groups that matched a row.
func Join(bgs []model.BlockGroup, rows []model.AttributeRow) int {
	byGEOID := make(map[string]model.Counts, len(rows))
	for _, r := range rows {
		byGEOID[r.GEOID] = ToCounts(r.Values)
	}

	matched := 0
	for i := range bgs {
		if counts, ok := byGEOID[bgs[i].GEOID]; ok {
			bgs[i].Counts = counts.Clone()
			matched++
			continue
		}
		bgs[i].Counts = model.ZeroCounts()
	}
	return matched
}
