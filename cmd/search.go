package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/propscope/propscope/internal/search"
)

var (
	searchLocation   string
	searchX          float64
	searchY          float64
	searchRadius     float64
	searchLimit      int
	searchSegment    string
	searchDistricts  []string
	searchProject    string
	searchMinPrice   int64
	searchMaxPrice   int64
	searchBedrooms   int
	searchFrom       string
	searchTo         string
	searchMinYear    int
	searchMaxYear    int
	searchWithTrends bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Find properties around a point or named location",
	Long: `Find properties within a radius. The center is either explicit SVY21
coordinates (--x/--y) or a location name resolved via OneMap
(--location).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		conds, err := searchConditions()
		if err != nil {
			return err
		}

		x, y := searchX, searchY
		if searchLocation != "" {
			loc, err := env.OneMap.Resolve(ctx, searchLocation)
			if err != nil {
				return eris.Wrapf(err, "resolve %q", searchLocation)
			}
			x, y = loc.X, loc.Y
			fmt.Printf("resolved %q to %s (x=%.1f, y=%.1f)\n", searchLocation, loc.Name, x, y)
		}

		out, err := env.Searcher.Search(ctx, search.Request{
			X: x, Y: y,
			Radius:     searchRadius,
			Limit:      searchLimit,
			Conditions: conds,
			WithTrends: searchWithTrends,
		})
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

func searchConditions() ([]search.Condition, error) {
	var conds []search.Condition
	if searchSegment != "" {
		conds = append(conds, search.Condition{Field: search.FieldMarketSegment, Op: search.OpEq, Value: strings.ToUpper(searchSegment)})
	}
	if len(searchDistricts) > 0 {
		conds = append(conds, search.Condition{Field: search.FieldDistrict, Op: search.OpIn, Value: searchDistricts})
	}
	if searchProject != "" {
		conds = append(conds, search.Condition{Field: search.FieldProject, Op: search.OpContains, Value: searchProject})
	}
	if searchMinPrice > 0 {
		conds = append(conds, search.Condition{Field: search.FieldPrice, Op: search.OpGte, Value: searchMinPrice})
	}
	if searchMaxPrice > 0 {
		conds = append(conds, search.Condition{Field: search.FieldPrice, Op: search.OpLte, Value: searchMaxPrice})
	}
	if searchBedrooms > 0 {
		conds = append(conds, search.Condition{Field: search.FieldBedrooms, Op: search.OpEq, Value: searchBedrooms})
	}
	if searchFrom != "" {
		conds = append(conds, search.Condition{Field: search.FieldContractDate, Op: search.OpGte, Value: searchFrom})
	}
	if searchTo != "" {
		conds = append(conds, search.Condition{Field: search.FieldContractDate, Op: search.OpLte, Value: searchTo})
	}
	if searchMinYear > 0 {
		conds = append(conds, search.Condition{Field: search.FieldCompletionYear, Op: search.OpGte, Value: searchMinYear})
	}
	if searchMaxYear > 0 {
		conds = append(conds, search.Condition{Field: search.FieldCompletionYear, Op: search.OpLte, Value: searchMaxYear})
	}
	return conds, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "encode output")
	}
	fmt.Println(string(data))
	return nil
}

// registerFilterFlags attaches the shared filter flags to a search-style
// command.
func registerFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&searchSegment, "segment", "", "market segment filter (CCR, RCR, OCR)")
	cmd.Flags().StringSliceVar(&searchDistricts, "district", nil, "district filter, repeatable")
	cmd.Flags().StringVar(&searchProject, "project", "", "project name substring filter")
	cmd.Flags().Int64Var(&searchMinPrice, "min-price", 0, "minimum transacted price filter")
	cmd.Flags().Int64Var(&searchMaxPrice, "max-price", 0, "maximum transacted price filter")
	cmd.Flags().IntVar(&searchBedrooms, "bedrooms", 0, "rental bedroom count filter")
	cmd.Flags().StringVar(&searchFrom, "from", "", "earliest contract date, MMYY")
	cmd.Flags().StringVar(&searchTo, "to", "", "latest contract date, MMYY")
	cmd.Flags().IntVar(&searchMinYear, "min-completion-year", 0, "earliest lease commencement year")
	cmd.Flags().IntVar(&searchMaxYear, "max-completion-year", 0, "latest lease commencement year")
}

func init() {
	searchCmd.Flags().StringVar(&searchLocation, "location", "", "location name to resolve as the center")
	searchCmd.Flags().Float64Var(&searchX, "x", 0, "center x (SVY21 meters)")
	searchCmd.Flags().Float64Var(&searchY, "y", 0, "center y (SVY21 meters)")
	searchCmd.Flags().Float64Var(&searchRadius, "radius", 0, "radius in meters (default from config)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "max results (default from config)")
	searchCmd.Flags().BoolVar(&searchWithTrends, "with-trends", false, "attach price trends and rental snapshots")
	registerFilterFlags(searchCmd)
	rootCmd.AddCommand(searchCmd)
}
