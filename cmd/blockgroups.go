package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/district-census/internal/geoid"
	"github.com/sells-group/district-census/internal/tiger"
)

var blockgroupsCmd = &cobra.Command{
	Use:   "blockgroups",
	Short: "Download TIGER/Line block groups for each state folder",
	RunE: func(cmd *cobra.Command, args []string) error {
		statesFlag, _ := cmd.Flags().GetString("states")
		states, err := parseStates(statesFlag)
		if err != nil {
			return err
		}

		d := newDownloader(newFetcher())
		outcomes, err := d.EnsureAll(cmd.Context(), cfg.Data.Root, states)
		for _, o := range outcomes {
			printStateOutcome(cmd, o)
		}
		return err
	},
}

func init() {
	blockgroupsCmd.Flags().String("states", "", "comma-separated state codes (default: every folder under the data root)")
	rootCmd.AddCommand(blockgroupsCmd)
}

// parseStates splits a comma-separated list of state codes, upper-cased,
// and rejects codes that are not a state or DC.
func parseStates(list string) ([]string, error) {
	known := geoid.StateAbbrs()
	var states, unknown []string
	for _, s := range strings.Split(list, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		switch {
		case s == "":
		case slices.Contains(known, s):
			states = append(states, s)
		default:
			unknown = append(unknown, s)
		}
	}
	if len(unknown) > 0 {
		return nil, eris.Errorf("blockgroups: unknown state code %s (valid: %s)",
			strings.Join(unknown, ", "), strings.Join(known, " "))
	}
	return states, nil
}

func printStateOutcome(cmd *cobra.Command, o tiger.StateOutcome) {
	w := cmd.OutOrStdout()
	switch o.Status {
	case tiger.StatusFailed:
		fmt.Fprintf(w, "%-3s %-10s %v\n", o.State, o.Status, o.Err)
	case tiger.StatusDownloaded:
		fmt.Fprintf(w, "%-3s %-10s %d features -> %s\n", o.State, o.Status, o.Features, o.Path)
	default:
		fmt.Fprintf(w, "%-3s %-10s %s\n", o.State, o.Status, o.Path)
	}
}
