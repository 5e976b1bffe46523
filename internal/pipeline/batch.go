package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/district-census/internal/model"
)

// CityOutcome is the result of one city in a batch.
type CityOutcome struct {
	City   model.CityRef
	Result *model.RunResult
	Err    error
}

// BatchResult summarizes a ProcessAll run.
type BatchResult struct {
	Outcomes  []CityOutcome
	Succeeded int
	Failed    int
}

// FieldFunc returns the district field to use for a city, or "" for the default.
type FieldFunc func(state, city string) string

// ProcessAll processes every city under the data root, one after another.
// A failing city is logged and does not stop the others. The returned error
// is non-nil only when cities were found and every one of them failed, or
// when ctx is cancelled.
func (p *Pipeline) ProcessAll(ctx context.Context, defaultField string, fieldFor FieldFunc) (*BatchResult, error) {
	cities, err := DiscoverCities(p.dataRoot)
	if err != nil {
		return nil, err
	}
	zap.L().Info("pipeline: batch starting", zap.Int("cities", len(cities)))

	res := &BatchResult{}
	for _, city := range cities {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "pipeline: batch cancelled")
		}

		city.DistrictField = defaultField
		if fieldFor != nil {
			if f := fieldFor(city.State, city.City); f != "" {
				city.DistrictField = f
			}
		}

		result, err := p.ProcessCity(ctx, city)
		res.Outcomes = append(res.Outcomes, CityOutcome{City: city, Result: result, Err: err})
		if err != nil {
			res.Failed++
			zap.L().Error("pipeline: city failed",
				zap.String("state", city.State),
				zap.String("city", city.City),
				zap.Error(err),
			)
			continue
		}
		res.Succeeded++
	}

	zap.L().Info("pipeline: batch complete",
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
	)

	if res.Failed > 0 && res.Succeeded == 0 {
		return res, eris.Errorf("pipeline: all %d cities failed", res.Failed)
	}
	return res, nil
}
