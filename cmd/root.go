package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/parkdong07/webgis-pro/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "webgis",
	Short: "Web-accessible geospatial data service",
	Long:  "Ingests vector geospatial datasets into PostGIS and serves them over HTTP as map layers, attribute tables, exports, and buffer analyses.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
