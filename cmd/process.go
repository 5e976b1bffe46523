package main

import (
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/district-census/internal/model"
	"github.com/sells-group/district-census/internal/pipeline"
	"github.com/sells-group/district-census/internal/registry"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Reallocate block-group demographics onto a city's police districts",
	Long: `Processes one city (--state and --city) or every city under the data root
(--all). With --all, the district field recorded in the city registry wins
over --field.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("process"); err != nil {
			return err
		}

		state, _ := cmd.Flags().GetString("state")
		city, _ := cmd.Flags().GetString("city")
		field, _ := cmd.Flags().GetString("field")
		all, _ := cmd.Flags().GetBool("all")

		st, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "process: init store")
		}
		defer st.Close() //nolint:errcheck

		p := newPipeline(st)

		if all {
			reg, err := registry.Load(cfg.Registry.Path)
			if err != nil {
				return eris.Wrap(err, "process: load registry")
			}
			res, err := p.ProcessAll(ctx, field, reg.FieldFor)
			if res != nil {
				printBatchSummary(cmd.OutOrStdout(), res)
			}
			return err
		}

		state, slug, err := normalizeCity(state, city)
		if err != nil {
			return err
		}
		if field == "" {
			return eris.New("process: --field is required")
		}

		result, err := p.ProcessCity(ctx, model.CityRef{State: state, City: slug, DistrictField: field})
		if err != nil {
			return err
		}
		printRunResult(cmd.OutOrStdout(), state, slug, result)
		return nil
	},
}

func init() {
	processCmd.Flags().String("state", "", "two-letter state code (e.g. NC)")
	processCmd.Flags().String("city", "", "city name or slug (e.g. \"San Jose\" or san_jose)")
	processCmd.Flags().String("field", "", "district identifier property in police_districts.geojson")
	processCmd.Flags().Bool("all", false, "process every city under the data root")
	processCmd.MarkFlagsMutuallyExclusive("all", "state")
	processCmd.MarkFlagsMutuallyExclusive("all", "city")
	rootCmd.AddCommand(processCmd)
}

func printRunResult(w io.Writer, state, slug string, r *model.RunResult) {
	fmt.Fprintf(w, "%s/%s: %d districts, %d block groups, %d counties", state, slug, r.Districts, r.BlockGroups, r.Counties)
	if r.CountiesFailed > 0 {
		fmt.Fprintf(w, " (%d zero-filled)", r.CountiesFailed)
	}
	fmt.Fprintf(w, ", population %.0f -> %s\n", r.TotalPopulation, r.OutputPath)
}

func printBatchSummary(w io.Writer, res *pipeline.BatchResult) {
	for _, o := range res.Outcomes {
		if o.Err != nil {
			fmt.Fprintf(w, "FAIL %s/%s: %v\n", o.City.State, o.City.City, o.Err)
			continue
		}
		fmt.Fprint(w, "OK   ")
		printRunResult(w, o.City.State, o.City.City, o.Result)
	}
	fmt.Fprintf(w, "\n%d succeeded, %d failed\n", res.Succeeded, res.Failed)
	if res.Failed > 0 {
		zap.L().Warn("process: some cities failed", zap.Int("failed", res.Failed))
	}
}
