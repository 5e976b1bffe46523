package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sells-group/district-census/internal/export"
	"github.com/sells-group/district-census/internal/registry"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a city's district table to .xlsx or .csv",
	RunE: func(cmd *cobra.Command, args []string) error {
		state, _ := cmd.Flags().GetString("state")
		city, _ := cmd.Flags().GetString("city")
		out, _ := cmd.Flags().GetString("out")

		state, slug, err := normalizeCity(state, city)
		if err != nil {
			return err
		}
		_, l, err := loadResult(state, slug)
		if err != nil {
			return err
		}
		if out == "" {
			out = filepath.Join(".", slug+"_"+state+".xlsx")
		}

		if err := export.WriteFile(out, registry.DisplayName(state, slug), l.Features); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d districts -> %s\n", len(l.Features), out)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("state", "", "two-letter state code")
	exportCmd.Flags().String("city", "", "city name or slug")
	exportCmd.Flags().String("out", "", "output path ending in .xlsx or .csv (default {city}_{STATE}.xlsx)")
	rootCmd.AddCommand(exportCmd)
}
