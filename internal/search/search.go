package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/propscope/propscope/internal/cache"
	"github.com/propscope/propscope/internal/config"
	"github.com/propscope/propscope/internal/model"
	"github.com/propscope/propscope/internal/resilience"
	"github.com/propscope/propscope/internal/trend"
)

// Request is a single-center radius search.
type Request struct {
	X          float64     `json:"x"`
	Y          float64     `json:"y"`
	Radius     float64     `json:"radius"`
	Limit      int         `json:"limit"`
	Conditions []Condition `json:"conditions,omitempty"`
	// WithTrends enriches each hit with its price trend and latest
	// rental snapshot.
	WithTrends bool `json:"with_trends,omitempty"`
}

// Result is one matched property with its distance from the center.
type Result struct {
	Property model.Property        `json:"property"`
	Distance float64               `json:"distance"`
	Trend    *trend.Summary        `json:"trend,omitempty"`
	Rentals  *trend.RentalSnapshot `json:"rentals,omitempty"`
}

// Output is a search response. Truncated is set when more matches exist
// inside the radius than the limit allowed through.
type Output struct {
	Results   []Result `json:"results"`
	Truncated bool     `json:"truncated"`
}

// Searcher runs validated radius searches against a Store, caching
// results by query signature.
type Searcher struct {
	store Store
	cfg   config.SearchConfig
	cache *cache.Cache[Output]
}

// NewSearcher creates a Searcher. The cache may be nil to disable
// result caching.
func NewSearcher(store Store, cfg config.SearchConfig, c *cache.Cache[Output]) *Searcher {
	return &Searcher{store: store, cfg: cfg, cache: c}
}

// Search validates req, applies defaults, and runs the radius query.
// The store is asked for limit+1 rows so truncation is detectable
// without a second query.
func (s *Searcher) Search(ctx context.Context, req Request) (Output, error) {
	if err := s.normalize(&req); err != nil {
		return Output{}, err
	}

	key := signature(req)
	if s.cache != nil {
		if out, ok := s.cache.Get(key); ok {
			return out, nil
		}
	}

	props, err := s.store.PropertiesWithin(ctx, req.X, req.Y, req.Radius, req.Conditions, req.Limit+1)
	if err != nil {
		return Output{}, err
	}

	out := Output{}
	if len(props) > req.Limit {
		out.Truncated = true
		props = props[:req.Limit]
	}

	for _, p := range props {
		d := model.Distance(p.X, p.Y, req.X, req.Y)
		// The store already enforces the circle; re-check here so a
		// store that only prunes by bounding box still yields exact
		// results.
		if d > req.Radius {
			continue
		}
		out.Results = append(out.Results, Result{Property: p, Distance: d})
	}

	if req.WithTrends {
		if err := s.enrich(ctx, out.Results); err != nil {
			return Output{}, err
		}
	}

	if s.cache != nil {
		s.cache.Put(key, out)
	}
	return out, nil
}

func (s *Searcher) enrich(ctx context.Context, results []Result) error {
	for i := range results {
		id := results[i].Property.ID

		txs, err := s.store.TransactionsFor(ctx, id)
		if err != nil {
			return err
		}
		if buckets := trend.QuarterlyPrices(txs); len(buckets) > 0 {
			summary := trend.Summarize(buckets, trend.WindowQuarters)
			results[i].Trend = &summary
		}

		rentals, err := s.store.RentalsFor(ctx, id)
		if err != nil {
			return err
		}
		if snap, ok := trend.LatestRentals(rentals); ok {
			results[i].Rentals = &snap
		}
	}
	return nil
}

func (s *Searcher) normalize(req *Request) error {
	if req.Radius == 0 {
		req.Radius = s.cfg.DefaultRadius
	}
	if req.Radius <= 0 || req.Radius > s.cfg.MaxRadius {
		return resilience.NewError(resilience.KindInvalidQuery,
			eris.Errorf("search: radius %.0f outside (0, %.0f]", req.Radius, s.cfg.MaxRadius))
	}
	if req.Limit == 0 {
		req.Limit = s.cfg.MaxLimit
	}
	if req.Limit < 0 || req.Limit > s.cfg.MaxLimit {
		return resilience.NewError(resilience.KindInvalidQuery,
			eris.Errorf("search: limit %d outside (0, %d]", req.Limit, s.cfg.MaxLimit))
	}
	return nil
}

// signature builds a deterministic cache key for a request. Conditions
// are sorted so semantically equal requests share an entry.
func signature(req Request) string {
	conds := make([]string, 0, len(req.Conditions))
	for _, c := range req.Conditions {
		conds = append(conds, fmt.Sprintf("%s:%s:%v", c.Field, c.Op, c.Value))
	}
	sort.Strings(conds)

	return fmt.Sprintf("search|%.2f|%.2f|%.2f|%d|%t|%s",
		req.X, req.Y, req.Radius, req.Limit, req.WithTrends, strings.Join(conds, ","))
}

// CacheStats reports the searcher's cache statistics, or zero values
// when caching is disabled.
func (s *Searcher) CacheStats() cache.Stats {
	if s.cache == nil {
		return cache.Stats{}
	}
	st := s.cache.Stats()
	zap.L().Debug("search cache stats",
		zap.Int("entries", st.Entries),
		zap.Float64("hit_rate", st.HitRate),
	)
	return st
}
