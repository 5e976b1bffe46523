package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/district-census/internal/fetcher"
	"github.com/sells-group/district-census/internal/layer"
	"github.com/sells-group/district-census/internal/model"
	"github.com/sells-group/district-census/internal/pipeline"
	"github.com/sells-group/district-census/internal/registry"
	"github.com/sells-group/district-census/internal/tiger"
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Download a city's districts, process it and add it to the registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("process"); err != nil {
			return err
		}

		state, _ := cmd.Flags().GetString("state")
		city, _ := cmd.Flags().GetString("city")
		url, _ := cmd.Flags().GetString("url")
		field, _ := cmd.Flags().GetString("field")
		src, _ := cmd.Flags().GetString("source")
		sourceDate, _ := cmd.Flags().GetString("source-date")

		state, slug, err := normalizeCity(state, city)
		if err != nil {
			return err
		}
		if _, err := time.Parse(registry.DateLayout, sourceDate); err != nil {
			return eris.Wrap(err, "add: --source-date must be YYYY-MM-DD")
		}
		log := zap.L().With(
			zap.String("component", "add"),
			zap.String("state", state),
			zap.String("city", slug),
		)

		f := newFetcher()
		cityDir := filepath.Join(cfg.Data.Root, state, slug)
		n, err := fetchDistricts(ctx, f, url, cityDir)
		if err != nil {
			return err
		}
		log.Info("districts saved", zap.Int("features", n))

		outcome := newDownloader(f).EnsureState(ctx, cfg.Data.Root, state)
		if outcome.Status == tiger.StatusFailed {
			return outcome.Err
		}
		if outcome.Status == tiger.StatusSkipped {
			return eris.Errorf("add: no block groups for state %s", state)
		}

		st, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "add: init store")
		}
		defer st.Close() //nolint:errcheck

		result, err := newPipeline(st).ProcessCity(ctx, model.CityRef{State: state, City: slug, DistrictField: field})
		if err != nil {
			return err
		}
		printRunResult(cmd.OutOrStdout(), state, slug, result)

		out, err := layer.ReadFile(result.OutputPath)
		if err != nil {
			return eris.Wrap(err, "add: read output")
		}

		reg, err := registry.Load(cfg.Registry.Path)
		if err != nil {
			return err
		}
		entry := registry.NewCity(state, city, src, field, sourceDate, out.Bounds(), time.Now())
		added := reg.Upsert(entry)
		if err := reg.Save(cfg.Registry.Path); err != nil {
			return err
		}
		if err := reg.WriteJS(cfg.Registry.JSPath); err != nil {
			return err
		}

		verb := "updated"
		if added {
			verb = "added"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s) in %s\n", verb, entry.Name, entry.ID, cfg.Registry.Path)
		return nil
	},
}

func init() {
	addCmd.Flags().String("state", "", "two-letter state code")
	addCmd.Flags().String("city", "", "city name (e.g. \"San Jose\")")
	addCmd.Flags().String("url", "", "district boundary source (GeoJSON, or ZIP of a shapefile)")
	addCmd.Flags().String("field", "", "district identifier property")
	addCmd.Flags().String("source", "", "source attribution shown in the frontend")
	addCmd.Flags().String("source-date", "", "date of the source data (YYYY-MM-DD)")
	for _, name := range []string{"state", "city", "url", "field", "source-date"} {
		_ = addCmd.MarkFlagRequired(name)
	}
	rootCmd.AddCommand(addCmd)
}

// fetchDistricts downloads url into cityDir/police_districts.geojson. A ZIP
// payload is extracted and its first shapefile (else GeoJSON) converted;
// anything else is kept as-is and must parse as a feature layer.
func fetchDistricts(ctx context.Context, f fetcher.Fetcher, url, cityDir string) (int, error) {
	if err := os.MkdirAll(cityDir, 0o755); err != nil {
		return 0, eris.Wrapf(err, "add: create %s", cityDir)
	}
	dest := filepath.Join(cityDir, pipeline.DistrictsGeoJSON)
	raw := filepath.Join(cityDir, "source.download")
	defer os.Remove(raw) //nolint:errcheck

	if _, err := f.DownloadToFile(ctx, url, raw); err != nil {
		return 0, eris.Wrapf(err, "add: download %s", url)
	}

	isZIP, err := fetcher.IsZIP(raw)
	if err != nil {
		return 0, err
	}
	if !isZIP {
		l, err := layer.ReadGeoJSONFile(raw)
		if err != nil {
			return 0, eris.Wrap(err, "add: downloaded file is not a usable feature layer")
		}
		if err := os.Rename(raw, dest); err != nil {
			return 0, eris.Wrapf(err, "add: move districts to %s", dest)
		}
		return len(l.Features), nil
	}

	extractDir := filepath.Join(cityDir, "temp_extract")
	defer os.RemoveAll(extractDir) //nolint:errcheck
	if _, err := fetcher.ExtractZIP(raw, extractDir); err != nil {
		return 0, err
	}
	src, err := fetcher.FindByExt(extractDir, ".shp", ".geojson", ".json")
	if err != nil {
		return 0, eris.Wrap(err, "add: no shapefile or GeoJSON in archive")
	}
	l, err := layer.ReadFile(src)
	if err != nil {
		return 0, err
	}
	if err := layer.WriteGeoJSONFile(dest, l.Features); err != nil {
		return 0, err
	}
	return len(l.Features), nil
}
