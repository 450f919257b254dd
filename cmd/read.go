package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dutchveg/dsmap/internal/export"
	"github.com/dutchveg/dsmap/internal/mapdata"
	"github.com/dutchveg/dsmap/internal/mapdb"
	"github.com/dutchveg/dsmap/internal/maptables"
	"github.com/dutchveg/dsmap/internal/shape"
	"github.com/dutchveg/dsmap/internal/table"
)

var (
	readMdb   string
	readPoly  string
	readLine  string
	readOut   string
	readShape string
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read one project and export its map data",
	Long:  "Opens a project's attribute database and geometry files, derives the vegetation type, species and abiotic views, and writes them to an XLSX workbook. Optionally also saves a joined view as a shapefile.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if readMdb == "" {
			return fmt.Errorf("no database: pass --mdb")
		}

		db, openErr := mapdb.Open(cmd.Context(), readMdb, mapdb.Options{Driver: cfg.Mapdb.Driver})
		if openErr != nil {
			return fmt.Errorf("open database: %s", openErr)
		}
		defer db.Close()

		tables, err := maptables.FromStore(cmd.Context(), db)
		if err != nil {
			return err
		}

		opts := shape.Options{
			FixPermissions: cfg.Shape.FixPermissions,
			SRID:           cfg.Shape.SRID,
		}
		var polygons, lines *mapdata.Elements
		if readPoly != "" {
			polygons, _, err = mapdata.ElementsFromShapefile(readPoly, opts)
			if err != nil {
				return err
			}
		}
		if readLine != "" {
			lines, _, err = mapdata.ElementsFromShapefile(readLine, opts)
			if err != nil {
				return err
			}
		}
		md := mapdata.New(tables, polygons, lines)

		vegtype, err := md.Vegtype(maptables.LocTypePolygon)
		if err != nil {
			return err
		}
		mapspecies, err := md.MapSpecies(maptables.LocTypePolygon)
		if err != nil {
			return err
		}
		abiotiek, err := tables.Abiotiek(maptables.LocTypeAll)
		if err != nil {
			return err
		}

		out := readOut
		if out == "" {
			out = filepath.Join(cfg.Export.Dir, "mapdata.xlsx")
		}
		if err := export.WriteTables(out, []*table.Table{vegtype, mapspecies, abiotiek}); err != nil {
			return err
		}
		fmt.Printf("year of mapping: %s\n", tables.Year())
		fmt.Printf("workbook written to %s\n", out)

		if readShape != "" {
			if err := md.ToShapefile("vegtype", maptables.LocTypePolygon, readShape); err != nil {
				return err
			}
			fmt.Printf("shapefile written to %s\n", readShape)
		}
		return nil
	},
}

func init() {
	readCmd.Flags().StringVar(&readMdb, "mdb", "", "attribute database path")
	readCmd.Flags().StringVar(&readPoly, "poly", "", "polygon shapefile path")
	readCmd.Flags().StringVar(&readLine, "line", "", "line shapefile path")
	readCmd.Flags().StringVar(&readOut, "out", "", "workbook output path")
	readCmd.Flags().StringVar(&readShape, "shp", "", "also save the vegtype view as a shapefile")
	rootCmd.AddCommand(readCmd)
}
