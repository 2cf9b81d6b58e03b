package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/propscope/propscope/internal/zone"
)

var (
	zoneX      float64
	zoneY      float64
	zoneRadius float64
)

var zoneCmd = &cobra.Command{
	Use:   "zone",
	Short: "Master-plan land-use lookups",
}

var zoneLocateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Find the land-use zone containing a point",
	RunE: func(cmd *cobra.Command, args []string) error {
		locator := zone.NewLocator(zone.NewLoader(cfg.Zones.DatasetPath))
		z, err := locator.Locate(cmd.Context(), zoneX, zoneY)
		if err != nil {
			return err
		}
		if z == nil {
			fmt.Printf("no zone contains (%.1f, %.1f)\n", zoneX, zoneY)
			return nil
		}
		return printJSON(z)
	},
}

var zoneLanduseCmd = &cobra.Command{
	Use:   "landuse",
	Short: "Summarize the land-use mix around a point",
	RunE: func(cmd *cobra.Command, args []string) error {
		locator := zone.NewLocator(zone.NewLoader(cfg.Zones.DatasetPath))
		zones, err := locator.Within(cmd.Context(), zoneX, zoneY, zoneRadius)
		if err != nil {
			return err
		}
		return printJSON(zone.ComputeMix(zones))
	},
}

func init() {
	zoneCmd.PersistentFlags().Float64Var(&zoneX, "x", 0, "point x (SVY21 meters)")
	zoneCmd.PersistentFlags().Float64Var(&zoneY, "y", 0, "point y (SVY21 meters)")
	zoneLanduseCmd.Flags().Float64Var(&zoneRadius, "radius", 1000, "radius in meters")
	zoneCmd.AddCommand(zoneLocateCmd)
	zoneCmd.AddCommand(zoneLanduseCmd)
	rootCmd.AddCommand(zoneCmd)
}
