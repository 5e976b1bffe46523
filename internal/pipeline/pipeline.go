// Package pipeline runs the block-group to district reallocation for one
// city, or for every city under the data root.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/district-census/internal/aggregate"
	"github.com/sells-group/district-census/internal/areal"
	"github.com/sells-group/district-census/internal/census"
	"github.com/sells-group/district-census/internal/district"
	"github.com/sells-group/district-census/internal/geoid"
	"github.com/sells-group/district-census/internal/layer"
	"github.com/sells-group/district-census/internal/model"
	"github.com/sells-group/district-census/internal/overlay"
	"github.com/sells-group/district-census/internal/store"
)

// AttributeSource fetches block-group attribute rows for counties of one state.
type AttributeSource interface {
	FetchCounties(ctx context.Context, state string, counties []string) (*census.FetchResult, error)
}

// Pipeline reallocates census counts onto police districts.
type Pipeline struct {
	dataRoot   string
	resultsDir string
	source     AttributeSource
	store      store.Store
	engine     *overlay.Engine
	alloc      *areal.Allocator
}

// New creates a Pipeline reading from dataRoot and writing into resultsDir.
// st may be nil, in which case runs are not recorded.
func New(dataRoot, resultsDir string, source AttributeSource, st store.Store) *Pipeline {
	return &Pipeline{
		dataRoot:   dataRoot,
		resultsDir: resultsDir,
		source:     source,
		store:      st,
		engine:     overlay.NewEngine(),
		alloc:      areal.NewAllocator(nil),
	}
}

// ProcessCity runs the full pipeline for one city and writes its result
// file. No output is written when any step fails.
func (p *Pipeline) ProcessCity(ctx context.Context, city model.CityRef) (*model.RunResult, error) {
	log := zap.L().With(
		zap.String("state", city.State),
		zap.String("city", city.City),
		zap.String("field", city.DistrictField),
	)
	log.Info("pipeline: processing city")

	var run *model.Run
	if p.store != nil {
		r, err := p.store.CreateRun(ctx, city)
		if err != nil {
			log.Warn("pipeline: failed to record run", zap.Error(err))
		} else {
			run = r
		}
	}

	start := time.Now()
	result, err := p.process(ctx, city, log)
	if err != nil {
		if run != nil {
			if ferr := p.store.FailRun(ctx, run.ID, err); ferr != nil {
				log.Warn("pipeline: failed to record run failure", zap.Error(ferr))
			}
		}
		return nil, err
	}
	result.DurationMs = time.Since(start).Milliseconds()

	if run != nil {
		if cerr := p.store.CompleteRun(ctx, run.ID, result); cerr != nil {
			log.Warn("pipeline: failed to record run result", zap.Error(cerr))
		}
	}

	log.Info("pipeline: city complete",
		zap.String("output", result.OutputPath),
		zap.Int("districts", result.Districts),
		zap.Int("block_groups", result.BlockGroups),
		zap.Int("counties_failed", result.CountiesFailed),
		zap.Float64("total_population", result.TotalPopulation),
		zap.Int64("duration_ms", result.DurationMs),
	)
	return result, nil
}

func (p *Pipeline) process(ctx context.Context, city model.CityRef, log *zap.Logger) (*model.RunResult, error) {
	if city.State == "" || city.City == "" || city.DistrictField == "" {
		return nil, eris.New("pipeline: state, city and district field are required")
	}
	paths := Paths(p.dataRoot, p.resultsDir, city)

	// Districts first so a bad field name fails before any network call.
	districtLayer, err := layer.ReadFile(paths.Districts)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load districts")
	}
	districts, err := district.Normalize(districtLayer, city.DistrictField, p.engine)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: normalize districts in %s", paths.Districts)
	}
	bounds := district.Bounds(districts)
	if bounds == nil {
		return nil, eris.Errorf("pipeline: %s has no district polygons", paths.Districts)
	}

	bgLayer, err := layer.ReadFile(paths.BlockGroups)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load block groups")
	}
	bgs, err := BlockGroups(bgLayer)
	if err != nil {
		return nil, err
	}
	if len(bgs) == 0 {
		return nil, eris.Errorf("pipeline: %s has no block groups", paths.BlockGroups)
	}
	stateFIPS := bgs[0].StateFIPS()

	clipped, err := p.engine.ClipToBounds(bgs, bounds)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: clip block groups")
	}
	counties := geoid.Counties(clipped)
	log.Debug("pipeline: block groups in district envelope",
		zap.Int("block_groups", len(clipped)),
		zap.Strings("counties", counties),
	)

	var failed []string
	if len(counties) > 0 {
		fetched, err := p.source.FetchCounties(ctx, stateFIPS, counties)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: fetch attributes")
		}
		census.Join(clipped, fetched.Rows)
		failed = fetched.Failed
	} else {
		census.Join(clipped, nil)
	}

	pieces, err := p.engine.Intersect(clipped, districts)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: overlay")
	}
	pieces = p.alloc.Allocate(pieces, p.alloc.ParentAreas(clipped))

	results := aggregate.Aggregate(districts, pieces)
	if err := layer.WriteGeoJSONFile(paths.Output, aggregate.Features(results)); err != nil {
		return nil, eris.Wrap(err, "pipeline: write output")
	}

	return &model.RunResult{
		OutputPath:      paths.Output,
		Districts:       len(results),
		BlockGroups:     len(clipped),
		Pieces:          len(pieces),
		Counties:        len(counties),
		CountiesFailed:  len(failed),
		TotalPopulation: aggregate.Totals(results)[model.CategoryTotal],
	}, nil
}

// BlockGroups builds block groups from a layer, deriving each GEOID from
// its GEOID property or its FIPS parts.
func BlockGroups(l *layer.Layer) ([]model.BlockGroup, error) {
	bgs := make([]model.BlockGroup, 0, len(l.Features))
	for i, f := range l.Features {
		props := make(map[string]string, 5)
		for _, k := range []string{geoid.FieldGEOID, geoid.FieldState, geoid.FieldCounty, geoid.FieldTract, geoid.FieldBlockGroup} {
			if _, ok := f.Properties[k]; ok {
				props[k] = f.String(k)
			}
		}
		id, err := geoid.FromProperties(props)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: block group feature %d", i)
		}
		bgs = append(bgs, model.BlockGroup{GEOID: id, Geometry: f.Geometry})
	}
	return bgs, nil
}
