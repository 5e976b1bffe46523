package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/district-census/internal/config"
	"github.com/sells-group/district-census/internal/model"
	"github.com/sells-group/district-census/internal/pipeline"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"process", "blockgroups", "add", "publish", "export", "runs", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "district-census", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestProcessCommand_Flags(t *testing.T) {
	for _, name := range []string{"state", "city", "field", "all"} {
		require.NotNil(t, processCmd.Flags().Lookup(name), "process should have --%s", name)
	}
	assert.Equal(t, "false", processCmd.Flags().Lookup("all").DefValue)
}

func TestAddCommand_RequiredFlags(t *testing.T) {
	for _, name := range []string{"state", "city", "url", "field", "source-date"} {
		f := addCmd.Flags().Lookup(name)
		require.NotNil(t, f, "add should have --%s", name)
		assert.Equal(t, []string{"true"}, f.Annotations["cobra_annotation_bash_completion_one_required_flag"], name)
	}
	src := addCmd.Flags().Lookup("source")
	require.NotNil(t, src)
	assert.Empty(t, src.Annotations)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["show"])

	limit := runsListCmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "50", limit.DefValue)
}

func TestNormalizeCity(t *testing.T) {
	state, slug, err := normalizeCity(" nc ", "Winston Salem")
	require.NoError(t, err)
	assert.Equal(t, "NC", state)
	assert.Equal(t, "winston_salem", slug)

	_, _, err = normalizeCity("NC", "  ")
	assert.Error(t, err)
	_, _, err = normalizeCity("", "raleigh")
	assert.Error(t, err)
}

func TestParseStates(t *testing.T) {
	states, err := parseStates(" nc, il ,,dc")
	require.NoError(t, err)
	assert.Equal(t, []string{"NC", "IL", "DC"}, states)

	states, err = parseStates("")
	require.NoError(t, err)
	assert.Empty(t, states)

	_, err = parseStates("NC,PR,XX")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PR, XX")
}

func TestLoadResult_Missing(t *testing.T) {
	cfg = &config.Config{Data: config.DataConfig{Root: t.TempDir(), ResultsDir: t.TempDir()}}
	t.Cleanup(func() { cfg = nil })

	path, l, err := loadResult("NC", "raleigh")
	require.Error(t, err)
	assert.Nil(t, l)
	assert.Contains(t, err.Error(), "run process first")
	assert.Equal(t, pipeline.Paths(cfg.Data.Root, cfg.Data.ResultsDir, model.CityRef{State: "NC", City: "raleigh"}).Output, path)
}

func TestPrintBatchSummary(t *testing.T) {
	res := &pipeline.BatchResult{
		Outcomes: []pipeline.CityOutcome{
			{
				City:   model.CityRef{State: "CA", City: "san_jose"},
				Result: &model.RunResult{Districts: 4, BlockGroups: 120, Counties: 1, CountiesFailed: 1, TotalPopulation: 1000, OutputPath: "out/CA/san_jose.geojson"},
			},
			{City: model.CityRef{State: "NC", City: "raleigh"}, Err: assert.AnError},
		},
		Succeeded: 1,
		Failed:    1,
	}

	var buf bytes.Buffer
	printBatchSummary(&buf, res)
	out := buf.String()

	assert.Contains(t, out, "OK   CA/san_jose: 4 districts, 120 block groups, 1 counties (1 zero-filled), population 1000")
	assert.Contains(t, out, "FAIL NC/raleigh: "+assert.AnError.Error())
	assert.Contains(t, out, "1 succeeded, 1 failed")
}

func TestFormatRunsList(t *testing.T) {
	started := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	finished := started.Add(1500 * time.Millisecond)
	runs := []model.Run{
		{
			ID:         "0123456789abcdef",
			City:       model.CityRef{State: "NC", City: "raleigh", DistrictField: "DISTRICT"},
			Status:     model.RunStatusComplete,
			Result:     &model.RunResult{Districts: 6, TotalPopulation: 467665},
			StartedAt:  started,
			FinishedAt: &finished,
		},
		{
			ID:        "short",
			City:      model.CityRef{State: "CA", City: "san_jose", DistrictField: "BEAT"},
			Status:    model.RunStatusRunning,
			StartedAt: started,
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)
	out := buf.String()

	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "0123456789")
	assert.Contains(t, out, "NC/raleigh")
	assert.Contains(t, out, "467665")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "2026-03-01 09:30")
	assert.Contains(t, out, "short")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abcdefgh", truncateID("abcdefghijk"))
	assert.Equal(t, "abc", truncateID("abc"))
}
