package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dutchveg/dsmap/internal/batch"
	"github.com/dutchveg/dsmap/internal/store"
)

var (
	scanRoot    string
	scanNoStore bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the archive and verify every resolved file",
	Long:  "Runs project discovery and resolution, then opens every selected database and geometry file with a bounded worker pool. Repairs and open failures are recorded in the audit store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if scanRoot != "" {
			cfg.Projects.Root = scanRoot
		}

		var st *store.Store
		if !scanNoStore {
			var err error
			st, err = store.Open(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Migrate(cmd.Context()); err != nil {
				return err
			}
		}

		sum, err := batch.NewScanner(cfg, st).Run(cmd.Context())
		if err != nil {
			return err
		}

		if sum.ScanID != "" {
			fmt.Printf("scan %s\n", sum.ScanID)
		}
		fmt.Printf("projects: %d resolved: %d ambiguous: %d repairs: %d open errors: %d\n",
			sum.Projects, sum.Resolved, sum.Ambiguous, sum.Repairs, sum.OpenErrors)
		fmt.Printf("report written to %s\n", sum.ReportPath)
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanRoot, "root", "", "archive root directory")
	scanCmd.Flags().BoolVar(&scanNoStore, "no-store", false, "skip the audit store")
	rootCmd.AddCommand(scanCmd)
}
