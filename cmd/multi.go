package main

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/propscope/propscope/internal/model"
)

var (
	multiLimit      int
	multiWithTrends bool
)

var multiCmd = &cobra.Command{
	Use:   "multi name=address:radius [name=address:radius ...]",
	Short: "Search around several centers with nearest-center assignment",
	Long: `Search around several named centers at once. Each argument is
name=address:radius; the address resolves through OneMap. A property
inside several circles appears once, under its nearest center.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		centers, err := resolveCenters(ctx, env, args)
		if err != nil {
			return err
		}

		conds, err := searchConditions()
		if err != nil {
			return err
		}

		groups, err := env.Searcher.MultiCenter(ctx, centers, conds, multiLimit, multiWithTrends)
		if err != nil {
			return err
		}
		return printJSON(groups)
	},
}

// resolveCenters parses name=address:radius arguments and resolves each
// address to SVY21 coordinates.
func resolveCenters(ctx context.Context, env *appEnv, args []string) ([]model.SearchCenter, error) {
	centers := make([]model.SearchCenter, 0, len(args))
	for _, arg := range args {
		name, rest, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, eris.Errorf("invalid center %q, expected name=address:radius", arg)
		}
		address, radiusStr, ok := strings.Cut(rest, ":")
		if !ok {
			return nil, eris.Errorf("invalid center %q, expected name=address:radius", arg)
		}
		radius, err := strconv.ParseFloat(radiusStr, 64)
		if err != nil {
			return nil, eris.Errorf("invalid radius in center %q", arg)
		}

		loc, err := env.OneMap.Resolve(ctx, address)
		if err != nil {
			return nil, eris.Wrapf(err, "resolve %q", address)
		}
		centers = append(centers, model.SearchCenter{Name: name, X: loc.X, Y: loc.Y, Radius: radius})
	}
	return centers, nil
}

func init() {
	multiCmd.Flags().IntVar(&multiLimit, "limit", 0, "max results per center (default from config)")
	multiCmd.Flags().BoolVar(&multiWithTrends, "with-trends", false, "attach price trends and rental snapshots")
	registerFilterFlags(multiCmd)
	rootCmd.AddCommand(multiCmd)
}
