package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dutchveg/dsmap/internal/store"
)

var scansLimit int

var scansCmd = &cobra.Command{
	Use:   "scans",
	Short: "List recorded scans",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(cmd.Context()); err != nil {
			return err
		}

		scans, err := st.ListScans(cmd.Context(), scansLimit)
		if err != nil {
			return err
		}
		for _, sc := range scans {
			finished := "-"
			if sc.FinishedAt.Valid {
				finished = sc.FinishedAt.Time.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%s  %-8s  projects=%d resolved=%d ambiguous=%d  started=%s finished=%s  %s\n",
				sc.ID, sc.Status, sc.Projects, sc.Resolved, sc.Ambiguous,
				sc.StartedAt.Format("2006-01-02 15:04:05"), finished, sc.Root)
		}
		return nil
	},
}

func init() {
	scansCmd.Flags().IntVar(&scansLimit, "limit", 20, "maximum scans to list")
	rootCmd.AddCommand(scansCmd)
}
