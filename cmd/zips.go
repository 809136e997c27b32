package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/gazetteer"
)

var zipsCmd = &cobra.Command{
	Use:   "zips",
	Short: "Manage ZIP tile reference data",
}

var zipsLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Import the Census ZCTA gazetteer into the store",
	Long:  "Downloads the gazetteer (population, centroid), the ACS population table, and optionally the ZCTA shapefile, then bulk-inserts the derived search tiles.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		importer := gazetteer.NewImporter(st, cfg.Gazetteer)

		inserted, err := importer.Import(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("gazetteer import complete", zap.Int("tiles", inserted))
		return nil
	},
}

func init() {
	zipsCmd.AddCommand(zipsLoadCmd)
	rootCmd.AddCommand(zipsCmd)
}
