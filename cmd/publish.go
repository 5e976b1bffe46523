package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/district-census/internal/db"
	"github.com/sells-group/district-census/internal/publish"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Load a city's results into PostGIS and/or upload them to S3",
	Long: `Publishes a processed city. With neither --postgres nor --s3 set, every
target with configuration present is used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		state, _ := cmd.Flags().GetString("state")
		city, _ := cmd.Flags().GetString("city")
		toPG, _ := cmd.Flags().GetBool("postgres")
		toS3, _ := cmd.Flags().GetBool("s3")
		if !toPG && !toS3 {
			toPG = cfg.Postgres.DatabaseURL != ""
			toS3 = cfg.S3.Bucket != ""
			if !toPG && !toS3 {
				return eris.New("publish: no target configured (set postgres.database_url or s3.bucket)")
			}
		}

		state, slug, err := normalizeCity(state, city)
		if err != nil {
			return err
		}
		path, l, err := loadResult(state, slug)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()

		if toPG {
			if err := cfg.Validate("publish-postgres"); err != nil {
				return err
			}
			pool, err := db.Connect(ctx, cfg.Postgres.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			pg := publish.NewPostGIS(pool, cfg.Postgres.Table)
			if err := pg.EnsureTable(ctx); err != nil {
				return err
			}
			n, err := pg.Publish(ctx, state, slug, l.Features)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "postgres: %d districts -> %s\n", n, cfg.Postgres.Table)
		}

		if toS3 {
			if err := cfg.Validate("publish-s3"); err != nil {
				return err
			}
			client, err := publish.NewS3Client(ctx, cfg.S3)
			if err != nil {
				return err
			}
			key, err := publish.NewS3Uploader(client, cfg.S3.Bucket, cfg.S3.Prefix).Upload(ctx, state, slug, path)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "s3: s3://%s/%s\n", cfg.S3.Bucket, key)
		}
		return nil
	},
}

func init() {
	publishCmd.Flags().String("state", "", "two-letter state code")
	publishCmd.Flags().String("city", "", "city name or slug")
	publishCmd.Flags().Bool("postgres", false, "load into the PostGIS table")
	publishCmd.Flags().Bool("s3", false, "upload the GeoJSON to S3")
	rootCmd.AddCommand(publishCmd)
}
