package main

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/district-census/internal/census"
	"github.com/sells-group/district-census/internal/fetcher"
	"github.com/sells-group/district-census/internal/layer"
	"github.com/sells-group/district-census/internal/model"
	"github.com/sells-group/district-census/internal/pipeline"
	"github.com/sells-group/district-census/internal/registry"
	"github.com/sells-group/district-census/internal/resilience"
	"github.com/sells-group/district-census/internal/store"
	"github.com/sells-group/district-census/internal/tiger"
)

func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite", "":
		dsn := cfg.Store.SQLitePath
		if dsn == "" {
			dsn = "district-census.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func newCensusClient() *census.Client {
	return census.NewClient(
		census.WithAPIKey(cfg.Census.APIKey),
		census.WithBaseURL(cfg.Census.BaseURL),
		census.WithDataset(cfg.Census.Year, cfg.Census.Dataset),
		census.WithPacing(time.Duration(cfg.Census.PacingMs)*time.Millisecond),
		census.WithRetry(resilience.FromConfig(cfg.Census.MaxAttempts, cfg.Census.BackoffMs)),
		census.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Census.TimeoutSecs) * time.Second}),
	)
}

func newFetcher() *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.Options{})
}

func newDownloader(f fetcher.Fetcher) *tiger.Downloader {
	return tiger.NewDownloader(f, cfg.Tiger.BaseURL, cfg.Tiger.Year, filepath.Join(cfg.Data.TempDir, "tiger"))
}

func newPipeline(st store.Store) *pipeline.Pipeline {
	return pipeline.New(cfg.Data.Root, cfg.Data.ResultsDir, newCensusClient(), st)
}

// normalizeCity upper-cases the state and slugs the city name.
func normalizeCity(state, city string) (string, string, error) {
	state = strings.ToUpper(strings.TrimSpace(state))
	slug := registry.Slug(city)
	if state == "" || slug == "" {
		return "", "", eris.New("--state and --city are required")
	}
	return state, slug, nil
}

// loadResult reads a processed city's output layer.
func loadResult(state, slug string) (string, *layer.Layer, error) {
	path := pipeline.Paths(cfg.Data.Root, cfg.Data.ResultsDir, model.CityRef{State: state, City: slug}).Output
	l, err := layer.ReadFile(path)
	if err != nil {
		return path, nil, eris.Wrapf(err, "read result for %s/%s (run process first)", state, slug)
	}
	return path, l, nil
}
