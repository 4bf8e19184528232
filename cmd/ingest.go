package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/parkdong07/webgis-pro/internal/db"
	"github.com/parkdong07/webgis-pro/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Ingest a local file as a layer",
	Long:  "Runs a local .zip (shapefile), .shp, or .geojson/.json file through the same ingestion pipeline as the upload endpoint.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := db.Connect(ctx, cfg.Database.URL, db.PoolConfig{
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return err
		}
		defer pool.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "open %s", args[0])
		}
		defer func() { _ = f.Close() }()

		pipeline := ingest.NewPipeline(pool, cfg.Upload.ScratchDir, cfg.Upload.DefaultSRID)
		layer, err := pipeline.Ingest(ctx, args[0], f)
		if err != nil {
			return err
		}

		zap.L().Info("layer ingested", zap.String("layer", layer))
		cmd.Printf("Layer '%s' created.\n", layer)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
