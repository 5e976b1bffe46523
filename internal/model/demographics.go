package model

// Category names a demographic count carried from block groups to districts.
type Category string

// ACS B03002 (Hispanic or Latino origin by race) categories.
const (
	CategoryTotal           Category = "TOTAL"
	CategoryWhite           Category = "WHITE"
	CategoryBlack           Category = "BLACK"
	CategoryAmericanIndian  Category = "AMERICAN_INDIAN"
	CategoryAsian           Category = "ASIAN"
	CategoryPacificIslander Category = "PACIFIC_ISLANDER"
	CategoryOther           Category = "OTHER"
	CategoryTwoOrMore       Category = "TWO_OR_MORE"
	CategoryHispanic        Category = "HISPANIC"
)

// Categories is the canonical output order. TOTAL is always first.
var Categories = []Category{
	CategoryTotal,
	CategoryWhite,
	CategoryBlack,
	CategoryAmericanIndian,
	CategoryAsian,
	CategoryPacificIslander,
	CategoryOther,
	CategoryTwoOrMore,
	CategoryHispanic,
}

// PercentSuffix is appended to a category name to form its percentage field.
const PercentSuffix = "_PCT"

// PercentField returns the output field name holding c's share of TOTAL.
func (c Category) PercentField() string {
	return string(c) + PercentSuffix
}

// IsTotal reports whether c is the total-population category.
func (c Category) IsTotal() bool {
	return c == CategoryTotal
}

// Counts maps a category to a (possibly fractional) count.
// A missing key reads as zero.
type Counts map[Category]float64

// ZeroCounts returns a Counts with every category present and set to 0.
func ZeroCounts() Counts {
	c := make(Counts, len(Categories))
	for _, cat := range Categories {
		c[cat] = 0
	}
	return c
}

// Clone returns an independent copy of c.
func (c Counts) Clone() Counts {
	out := make(Counts, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Scaled returns a copy of c with every value multiplied by w.
func (c Counts) Scaled(w float64) Counts {
	out := make(Counts, len(c))
	for k, v := range c {
		out[k] = v * w
	}
	return out
}

// Add accumulates other into c.
func (c Counts) Add(other Counts) {
	for k, v := range other {
		c[k] += v
	}
}
