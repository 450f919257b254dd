package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dutchveg/dsmap/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "dsmap",
	Short: "Digital Standard vegetation map reader",
	Long:  "Discovers vegetation mapping projects in a legacy archive, resolves the authoritative database and geometry file per project, repairs broken shapefiles, and exports the map data.",
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
