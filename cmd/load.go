package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/propscope/propscope/internal/db"
	"github.com/propscope/propscope/internal/ingest"
	"github.com/propscope/propscope/internal/transit"
)

var loadShapefile string

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load reference datasets into the store",
}

var loadStationsCmd = &cobra.Command{
	Use:   "stations",
	Short: "Refresh the station reference table from a shapefile",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Store.DatabaseURL == "" {
			return eris.New("store.database_url is not configured")
		}
		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
		if err != nil {
			return err
		}
		defer pool.Close()

		path := loadShapefile
		if path == "" {
			path = cfg.Transit.ShapefilePath
		}

		provider := transit.NewShapefileProvider(path, initOneMap().ConvertToGeographic)

		n, err := ingest.LoadStations(ctx, pool, provider)
		if err != nil {
			return err
		}
		zap.L().Info("station table refreshed",
			zap.String("shapefile", path),
			zap.Int64("stations", n),
		)
		return nil
	},
}

func init() {
	loadStationsCmd.Flags().StringVar(&loadShapefile, "shapefile", "", "station shapefile path (default from config)")
	loadCmd.AddCommand(loadStationsCmd)
	rootCmd.AddCommand(loadCmd)
}
