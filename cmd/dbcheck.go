package main

import (
	"github.com/spf13/cobra"

	"github.com/parkdong07/webgis-pro/internal/catalog"
	"github.com/parkdong07/webgis-pro/internal/db"
	"github.com/parkdong07/webgis-pro/internal/gateway"
)

var dbcheckCmd = &cobra.Command{
	Use:   "dbcheck",
	Short: "Verify database connectivity and PostGIS availability",
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

		version, err := gateway.New(pool, catalog.NewIntrospector(pool)).TestDB(ctx)
		if err != nil {
			return err
		}

		cmd.Printf("PostGIS: %s\n", version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbcheckCmd)
}
