// Package aggregate sums weighted block-group contributions per district.
package aggregate

import (
	"math"

	"github.com/sells-group/district-census/internal/layer"
	"github.com/sells-group/district-census/internal/model"
)

// DistrictField is the output property holding the district label.
const DistrictField = "DISTRICT"

// PercentPlaces is the number of decimals percentages are rounded to.
const PercentPlaces = 3

// Aggregate sums each piece's contribution into its district. Every input
// district appears in the result, in input order; districts without pieces
// get all-zero counts.
func Aggregate(districts []model.District, pieces []model.OverlapPiece) []model.DistrictResult {
	sums := make(map[string]model.Counts, len(districts))
	for _, d := range districts {
		sums[d.Label] = model.ZeroCounts()
	}

	for _, p := range pieces {
		acc, ok := sums[p.District]
		if !ok {
			continue
		}
		contrib := p.Contribution()
		for _, cat := range model.Categories {
			v := contrib[cat]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			acc[cat] += v
		}
	}

	results := make([]model.DistrictResult, 0, len(districts))
	for _, d := range districts {
		counts := sums[d.Label]
		results = append(results, model.DistrictResult{
			District: d.Label,
			Geometry: d.Geometry,
			Counts:   counts,
			Percents: Percentages(counts),
		})
	}
	return results
}

// Percentages returns each non-total category's share of TOTAL, clamped
// to [0, 1] and rounded. All shares are 0 when TOTAL is 0.
func Percentages(counts model.Counts) model.Counts {
	total := counts[model.CategoryTotal]
	pct := make(model.Counts, len(model.Categories)-1)
	for _, cat := range model.Categories {
		if cat.IsTotal() {
			continue
		}
		if !(total > 0) {
			pct[cat] = 0
			continue
		}
		share := counts[cat] / total
		switch {
		case !(share > 0):
			share = 0
		case share > 1:
			share = 1
		}
		pct[cat] = Round(share, PercentPlaces)
	}
	return pct
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

// Features renders results as output features: the district label, one
// raw sum per category and one percentage per non-total category.
func Features(results []model.DistrictResult) []layer.Feature {
	features := make([]layer.Feature, 0, len(results))
	for _, r := range results {
		props := make(map[string]any, 1+2*len(model.Categories))
		props[DistrictField] = r.District
		for _, cat := range model.Categories {
			props[string(cat)] = r.Counts[cat]
			if !cat.IsTotal() {
				props[cat.PercentField()] = r.Percents[cat]
			}
		}
		features = append(features, layer.Feature{Geometry: r.Geometry, Properties: props})
	}
	return features
}

// Totals sums the counts of every result.
func Totals(results []model.DistrictResult) model.Counts {
	total := model.ZeroCounts()
	for _, r := range results {
		total.Add(r.Counts)
	}
	return total
}
