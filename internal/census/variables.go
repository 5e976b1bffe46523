package census

import "github.com/sells-group/district-census/internal/model"

// ACS table B03002 (Hispanic or Latino origin by race) variables.
const (
	VarTotal           = "B03002_001E"
	VarNotHispanic     = "B03002_002E"
	VarWhite           = "B03002_003E"
	VarBlack           = "B03002_004E"
	VarAmericanIndian  = "B03002_005E"
	VarAsian           = "B03002_006E"
	VarPacificIslander = "B03002_007E"
	VarOther           = "B03002_008E"
	VarTwoOrMore       = "B03002_009E"
	VarHispanic        = "B03002_012E"
)

// Variables is the ordered list requested for every county.
var Variables = []string{
	VarTotal,
	VarNotHispanic,
	VarWhite,
	VarBlack,
	VarAmericanIndian,
	VarAsian,
	VarPacificIslander,
	VarOther,
	VarTwoOrMore,
	VarHispanic,
}

// variableCategory maps a raw variable to its output category.
// VarNotHispanic is fetched but not carried to the output.
var variableCategory = map[string]model.Category{
	VarTotal:           model.CategoryTotal,
	VarWhite:           model.CategoryWhite,
	VarBlack:           model.CategoryBlack,
	VarAmericanIndian:  model.CategoryAmericanIndian,
	VarAsian:           model.CategoryAsian,
	VarPacificIslander: model.CategoryPacificIslander,
	VarOther:           model.CategoryOther,
	VarTwoOrMore:       model.CategoryTwoOrMore,
	VarHispanic:        model.CategoryHispanic,
}

// ToCounts converts a row's raw variable values into category counts.
// Every category is present; unmapped variables are dropped.
func ToCounts(values map[string]float64) model.Counts {
	counts := model.ZeroCounts()
	for v, cat := range variableCategory {
		counts[cat] = values[v]
	}
	return counts
}
