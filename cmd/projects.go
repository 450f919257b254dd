package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dutchveg/dsmap/internal/export"
	"github.com/dutchveg/dsmap/internal/projects"
)

var (
	projectsRoot      string
	projectsOverrides string
	projectsGuess     bool
	projectsOut       string
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects and resolve their files",
	Long:  "Walks the two-level archive layout, resolves the authoritative database and geometry files per project, and writes the project files table with the ambiguous candidate sets to an XLSX report.",
	RunE: func(cmd *cobra.Command, args []string) error {
		root := projectsRoot
		if root == "" {
			root = cfg.Projects.Root
		}
		if root == "" {
			return fmt.Errorf("no archive root: pass --root or set projects.root")
		}

		records, err := projects.Discover(root, projects.DiscoverOptions{
			YearMin: cfg.Projects.YearMin,
			YearMax: cfg.Projects.YearMax,
		})
		if err != nil {
			return err
		}

		overridesPath := projectsOverrides
		if overridesPath == "" {
			overridesPath = cfg.Projects.Overrides
		}
		var overrides *projects.Overrides
		if overridesPath != "" {
			overrides, err = projects.LoadOverrides(overridesPath)
			if err != nil {
				return err
			}
		}

		discardTags := cfg.Resolver.DiscardTags
		if overrides != nil && len(overrides.DiscardTags) > 0 {
			discardTags = append(append([]string(nil), discardTags...), overrides.DiscardTags...)
		}
		resolver := projects.NewResolver(records, projects.ResolverOptions{
			DiscardTags: discardTags,
			AllowGuess:  projectsGuess || cfg.Resolver.AllowGuess,
		})
		mapper := projects.NewPathMapper(root)

		rows, results, err := projects.BuildProjectFiles(records, resolver, overrides, mapper)
		if err != nil {
			return err
		}

		resolved := 0
		for _, r := range rows {
			if r.Resolved() {
				resolved++
			}
		}
		mdbCands, err := projects.ListFiles(records, projects.RoleDatabase.Ext())
		if err != nil {
			return err
		}
		noDatabase := 0
		for _, n := range projects.Counts(mdbCands, records, true) {
			if n == 0 {
				noDatabase++
			}
		}
		ambiguous := 0
		for _, res := range results {
			ambiguous += len(res.AmbiguousKeys())
		}

		out := projectsOut
		if out == "" {
			out = filepath.Join(cfg.Export.Dir, "projectfiles.xlsx")
		}
		if err := export.WriteProjectReport(out, rows, results, mapper); err != nil {
			return err
		}

		fmt.Printf("%d projects, %d with at least one resolved file, %d ambiguous, %d without any database\n",
			len(records), resolved, ambiguous, noDatabase)
		fmt.Printf("report written to %s\n", out)
		return nil
	},
}

func init() {
	projectsCmd.Flags().StringVar(&projectsRoot, "root", "", "archive root directory")
	projectsCmd.Flags().StringVar(&projectsOverrides, "overrides", "", "overrides YAML file")
	projectsCmd.Flags().BoolVar(&projectsGuess, "guess", false, "enable the last-resort guess tier")
	projectsCmd.Flags().StringVar(&projectsOut, "out", "", "report output path")
	rootCmd.AddCommand(projectsCmd)
}
