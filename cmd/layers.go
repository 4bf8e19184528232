package main

import (
	"github.com/spf13/cobra"

	"github.com/parkdong07/webgis-pro/internal/catalog"
	"github.com/parkdong07/webgis-pro/internal/db"
)

var layersCmd = &cobra.Command{
	Use:   "layers",
	Short: "List all layers in the store",
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

		layers, err := catalog.NewIntrospector(pool).ListLayers(ctx)
		if err != nil {
			return err
		}

		if len(layers) == 0 {
			cmd.Println("no layers")
			return nil
		}
		for _, l := range layers {
			cmd.Printf("%-32s %-18s EPSG:%d\n", l.Name, l.GeomType, l.SRID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(layersCmd)
}
