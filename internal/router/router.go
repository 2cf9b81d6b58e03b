// Package router fans route computations out to an external routing
// service in small batches, adapting the inter-batch pacing to the
// error rate it observes.
package router

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/propscope/propscope/internal/config"
	"github.com/propscope/propscope/internal/resilience"
)

// Origin is the WGS84 start point for a routing fan-out.
type Origin struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Destination is one routing target.
type Destination struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Route is a computed route summary.
type Route struct {
	TotalTimeSecs int     `json:"total_time_secs"`
	TotalDistM    float64 `json:"total_dist_m"`
}

// Outcome is the per-destination result of a fan-out. Exactly one
// outcome comes back for every requested destination; a destination
// that kept failing after retries carries its final error.
type Outcome struct {
	Destination Destination `json:"destination"`
	Route       *Route      `json:"route,omitempty"`
	Err         error       `json:"-"`
}

// RouteFunc computes one route. Implementations classify failures with
// the resilience error kinds so the router can decide what to retry.
type RouteFunc func(ctx context.Context, origin Origin, dest Destination) (*Route, error)

// SleepFunc pauses between batches. Injectable for tests.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Router paces calls to a RouteFunc.
type Router struct {
	route RouteFunc
	cfg   config.RouterConfig
	sleep SleepFunc
}

// Option configures a Router.
type Option func(*Router)

// WithSleep replaces the inter-batch sleep, letting tests observe
// pacing without waiting.
func WithSleep(fn SleepFunc) Option {
	return func(r *Router) { r.sleep = fn }
}

// New creates a Router over route with the given pacing configuration.
func New(route RouteFunc, cfg config.RouterConfig, opts ...Option) *Router {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}

	r := &Router{route: route, cfg: cfg, sleep: defaultSleep}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RouteAll computes routes from origin to every destination. Batches
// run concurrently inside, sequentially between, with an adaptive
// pause after each non-final batch:
//
//	delay = min(maxDelay, baseDelay * (1 + errorRate*2) * (1 + counter*0.5))
//
// where counter rises by one after a batch whose error rate exceeds
// 0.5 and decays by one otherwise. Individual calls retry up to
// MaxRetries times with exponential backoff, but only on rate-limit
// and server-side failures.
func (r *Router) RouteAll(ctx context.Context, origin Origin, dests []Destination) ([]Outcome, error) {
	if len(dests) == 0 {
		return nil, nil
	}
	if r.cfg.MaxDests > 0 && len(dests) > r.cfg.MaxDests {
		return nil, resilience.NewError(resilience.KindInvalidQuery,
			eris.Errorf("router: %d destinations exceeds maximum %d", len(dests), r.cfg.MaxDests))
	}

	outcomes := make([]Outcome, len(dests))
	counter := 0

	for start := 0; start < len(dests); start += r.cfg.BatchSize {
		end := start + r.cfg.BatchSize
		if end > len(dests) {
			end = len(dests)
		}
		batch := dests[start:end]

		g, gctx := errgroup.WithContext(ctx)
		for i, dest := range batch {
			idx := start + i
			g.Go(func() error {
				route, err := resilience.DoVal(gctx, resilience.RetryConfig{
					MaxAttempts:    r.cfg.MaxRetries + 1,
					InitialBackoff: r.cfg.RetryBackoff,
					OnRetry:        resilience.RetryLogger("router", "compute route"),
				}, func(ctx context.Context) (*Route, error) {
					return r.route(ctx, origin, dest)
				})
				outcomes[idx] = Outcome{Destination: dest, Route: route, Err: err}
				return nil
			})
		}
		// Workers never return errors; per-destination failures live in
		// the outcomes. Wait only propagates context cancellation.
		if err := g.Wait(); err != nil {
			return nil, eris.Wrap(err, "router: batch wait")
		}
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "router: canceled")
		}

		failures := 0
		for _, o := range outcomes[start:end] {
			if o.Err != nil {
				failures++
			}
		}
		errorRate := float64(failures) / float64(len(batch))

		if errorRate > 0.5 {
			counter++
		} else if counter > 0 {
			counter--
		}

		if end < len(dests) {
			delay := r.adaptiveDelay(errorRate, counter)
			zap.L().Debug("pausing between route batches",
				zap.Duration("delay", delay),
				zap.Float64("error_rate", errorRate),
				zap.Int("counter", counter),
			)
			if err := r.sleep(ctx, delay); err != nil {
				return nil, eris.Wrap(err, "router: inter-batch sleep")
			}
		}
	}

	return outcomes, nil
}

func (r *Router) adaptiveDelay(errorRate float64, counter int) time.Duration {
	delay := time.Duration(float64(r.cfg.BaseDelay) * (1 + errorRate*2) * (1 + float64(counter)*0.5))
	if delay > r.cfg.MaxDelay {
		delay = r.cfg.MaxDelay
	}
	return delay
}
