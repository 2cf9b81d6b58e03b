package search

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/propscope/propscope/internal/model"
	"github.com/propscope/propscope/internal/resilience"
)

// CenterGroup is the slice of results assigned to one search center.
type CenterGroup struct {
	Center    model.SearchCenter `json:"center"`
	Results   []Result           `json:"results"`
	Truncated bool               `json:"truncated"`
}

// MultiCenter searches around every center concurrently and assigns
// each matched property to its nearest center. A property inside
// several circles appears exactly once, under the closest center; exact
// distance ties go to the earlier center in input order. Groups come
// back in input order, each sorted nearest-first.
func (s *Searcher) MultiCenter(ctx context.Context, centers []model.SearchCenter, conds []Condition, limit int, withTrends bool) ([]CenterGroup, error) {
	if len(centers) == 0 {
		return nil, resilience.NewError(resilience.KindInvalidQuery,
			eris.New("search: multi-center query requires at least one center"))
	}
	if len(centers) > s.cfg.MaxCenters {
		return nil, resilience.NewError(resilience.KindInvalidQuery,
			eris.Errorf("search: %d centers exceeds maximum %d", len(centers), s.cfg.MaxCenters))
	}

	outputs := make([]Output, len(centers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, c := range centers {
		g.Go(func() error {
			out, err := s.Search(gctx, Request{
				X: c.X, Y: c.Y, Radius: c.Radius,
				Limit: limit, Conditions: conds, WithTrends: withTrends,
			})
			if err != nil {
				return eris.Wrapf(err, "search: center %q", c.Name)
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resultsByCenter := make([][]Result, len(centers))
	for i := range outputs {
		resultsByCenter[i] = outputs[i].Results
	}
	assigned := AssignNearest(resultsByCenter)

	groups := make([]CenterGroup, len(centers))
	for i, c := range centers {
		groups[i] = CenterGroup{Center: c, Results: assigned[i], Truncated: outputs[i].Truncated}
	}
	return groups, nil
}

// AssignNearest deduplicates results across centers: a property matched
// by several centers goes to the one with the smallest distance, ties
// to the earlier center in input order. Each center's slice comes back
// sorted nearest-first, ties by property ID.
func AssignNearest(resultsByCenter [][]Result) [][]Result {
	// assignment records the winning center for one property.
	type assignment struct {
		centerIdx int
		result    Result
	}
	assigned := make(map[int64]assignment)

	for i, results := range resultsByCenter {
		for _, r := range results {
			prev, seen := assigned[r.Property.ID]
			if !seen || r.Distance < prev.result.Distance {
				assigned[r.Property.ID] = assignment{centerIdx: i, result: r}
			}
		}
	}

	out := make([][]Result, len(resultsByCenter))
	for _, a := range assigned {
		out[a.centerIdx] = append(out[a.centerIdx], a.result)
	}
	for i := range out {
		sort.Slice(out[i], func(a, b int) bool {
			ra, rb := out[i][a], out[i][b]
			if ra.Distance != rb.Distance {
				return ra.Distance < rb.Distance
			}
			return ra.Property.ID < rb.Property.ID
		})
	}
	return out
}
