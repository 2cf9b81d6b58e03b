package main

import (
	"github.com/spf13/cobra"

	"github.com/propscope/propscope/internal/transit"
)

var (
	transitX       float64
	transitY       float64
	transitRadius  float64
	transitLat     float64
	transitLon     float64
	transitMaxSecs int
)

var transitCmd = &cobra.Command{
	Use:   "transit",
	Short: "Find train stations near a point",
	Long: `Find deduplicated MRT/LRT stations within a radius of an SVY21 point.
With --max-travel-secs, stations are filtered by walking time computed
through the OneMap routing service; --lat/--lon must then carry the
origin's WGS84 coordinates.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		stations, err := env.Transit.Nearby(ctx, transit.NearbyRequest{
			X:             transitX,
			Y:             transitY,
			Radius:        transitRadius,
			Lat:           transitLat,
			Lon:           transitLon,
			MaxTravelSecs: transitMaxSecs,
		})
		if err != nil {
			return err
		}
		return printJSON(stations)
	},
}

func init() {
	transitCmd.Flags().Float64Var(&transitX, "x", 0, "center x (SVY21 meters)")
	transitCmd.Flags().Float64Var(&transitY, "y", 0, "center y (SVY21 meters)")
	transitCmd.Flags().Float64Var(&transitRadius, "radius", 0, "radius in meters (default from config)")
	transitCmd.Flags().Float64Var(&transitLat, "lat", 0, "origin latitude for travel-time routing")
	transitCmd.Flags().Float64Var(&transitLon, "lon", 0, "origin longitude for travel-time routing")
	transitCmd.Flags().IntVar(&transitMaxSecs, "max-travel-secs", 0, "drop stations beyond this walking time")
	rootCmd.AddCommand(transitCmd)
}
