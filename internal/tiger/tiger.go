// Package tiger downloads TIGER/Line block-group shapefiles from the Census
// Bureau and converts them to the GeoJSON layout the pipeline reads.
package tiger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/district-census/internal/fetcher"
	"github.com/sells-group/district-census/internal/geoid"
	"github.com/sells-group/district-census/internal/layer"
)

// BlockGroupsFile is the per-state output written under the data root.
const BlockGroupsFile = "census_block_groups.geojson"

// BlockGroupURL returns the TIGER/Line block-group ZIP URL for a state,
// e.g. {base}/TIGER2020/BG/tl_2020_37_bg.zip.
func BlockGroupURL(baseURL string, year int, stateFIPS string) string {
	return fmt.Sprintf("%s/TIGER%d/BG/tl_%d_%s_bg.zip", strings.TrimRight(baseURL, "/"), year, year, stateFIPS)
}

// StateStatus describes what happened to one state folder.
type StateStatus string

const (
	StatusDownloaded StateStatus = "downloaded"
	StatusExisting   StateStatus = "existing"
	StatusSkipped    StateStatus = "skipped"
	StatusFailed     StateStatus = "failed"
)

// StateOutcome is the result of ensuring one state's block groups.
type StateOutcome struct {
	State    string
	Status   StateStatus
	Path     string
	Features int
	Err      error
}

// Downloader fetches and converts block-group files.
type Downloader struct {
	fetch   fetcher.Fetcher
	baseURL string
	year    int
	tempDir string
}

// NewDownloader creates a Downloader. ZIPs are cached in tempDir.
func NewDownloader(f fetcher.Fetcher, baseURL string, year int, tempDir string) *Downloader {
	return &Downloader{fetch: f, baseURL: baseURL, year: year, tempDir: tempDir}
}

// StateDirs returns the upper-cased names of the state folders directly
// under dataRoot, sorted.
func StateDirs(dataRoot string) ([]string, error) {
	entries, err := os.ReadDir(dataRoot)
	if err != nil {
		return nil, eris.Wrapf(err, "tiger: read data root %s", dataRoot)
	}
	var states []string
	for _, e := range entries {
		if e.IsDir() {
			states = append(states, strings.ToUpper(e.Name()))
		}
	}
	sort.Strings(states)
	return states, nil
}

// EnsureAll ensures block groups for each state. When states is empty every
// folder under dataRoot is used. A failing state is logged and does not
// stop the others; only ctx cancellation aborts the loop.
func (d *Downloader) EnsureAll(ctx context.Context, dataRoot string, states []string) ([]StateOutcome, error) {
	if len(states) == 0 {
		var err error
		if states, err = StateDirs(dataRoot); err != nil {
			return nil, err
		}
	}

	outcomes := make([]StateOutcome, 0, len(states))
	for _, st := range states {
		if err := ctx.Err(); err != nil {
			return outcomes, eris.Wrap(err, "tiger: cancelled")
		}
		out := d.EnsureState(ctx, dataRoot, st)
		if out.Err != nil {
			zap.L().Error("tiger: state failed", zap.String("state", out.State), zap.Error(out.Err))
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

// EnsureState writes {dataRoot}/{STATE}/census_block_groups.geojson unless
// it already exists. Unknown state abbreviations are skipped.
func (d *Downloader) EnsureState(ctx context.Context, dataRoot, state string) StateOutcome {
	state = strings.ToUpper(strings.TrimSpace(state))
	out := StateOutcome{State: state, Path: filepath.Join(dataRoot, state, BlockGroupsFile)}
	log := zap.L().With(
		zap.String("component", "tiger"),
		zap.String("state", state),
	)

	if info, err := os.Stat(out.Path); err == nil && info.Size() > 0 {
		log.Debug("block groups already present", zap.String("path", out.Path))
		out.Status = StatusExisting
		return out
	}

	fips, ok := geoid.StateFIPS(state)
	if !ok {
		log.Warn("unknown state abbreviation, skipping")
		out.Status = StatusSkipped
		return out
	}

	n, err := d.download(ctx, fips, out.Path, log)
	if err != nil {
		out.Status = StatusFailed
		out.Err = eris.Wrapf(err, "tiger: block groups for %s", state)
		return out
	}
	out.Status = StatusDownloaded
	out.Features = n
	log.Info("block groups saved", zap.String("path", out.Path), zap.Int("features", n))
	return out
}

func (d *Downloader) download(ctx context.Context, fips, dest string, log *zap.Logger) (int, error) {
	url := BlockGroupURL(d.baseURL, d.year, fips)
	zipName := filepath.Base(url)
	zipPath := filepath.Join(d.tempDir, zipName)

	if info, err := os.Stat(zipPath); err == nil && info.Size() > 0 {
		log.Debug("zip already downloaded", zap.String("path", zipPath))
	} else {
		log.Info("downloading TIGER block groups", zap.String("url", url))
		if _, err := d.fetch.DownloadToFile(ctx, url, zipPath); err != nil {
			return 0, eris.Wrap(err, "download")
		}
	}

	extractDir := filepath.Join(d.tempDir, strings.TrimSuffix(zipName, ".zip"))
	defer os.RemoveAll(extractDir) //nolint:errcheck
	if _, err := fetcher.ExtractZIP(zipPath, extractDir); err != nil {
		return 0, eris.Wrap(err, "extract")
	}
	shpPath, err := fetcher.FindByExt(extractDir, ".shp")
	if err != nil {
		return 0, err
	}
	return ConvertShapefile(shpPath, dest)
}

// ConvertShapefile reads a block-group shapefile and writes it as GeoJSON,
// keeping every attribute. It returns the number of features written.
func ConvertShapefile(shpPath, dest string) (int, error) {
	l, err := layer.ReadShapefile(shpPath)
	if err != nil {
		return 0, err
	}
	if len(l.Features) == 0 {
		return 0, eris.Errorf("tiger: %s has no polygons", shpPath)
	}
	if err := layer.WriteGeoJSONFile(dest, l.Features); err != nil {
		return 0, err
	}
	return len(l.Features), nil
}
