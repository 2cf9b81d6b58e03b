package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/propscope/propscope/internal/cache"
	"github.com/propscope/propscope/internal/db"
	"github.com/propscope/propscope/internal/router"
	"github.com/propscope/propscope/internal/search"
	"github.com/propscope/propscope/internal/transit"
	"github.com/propscope/propscope/internal/zone"
	"github.com/propscope/propscope/pkg/onemap"
)

// appEnv holds the initialized pool, clients, and services shared by
// the serve and query commands.
type appEnv struct {
	Pool     db.Pool
	Searcher *search.Searcher
	Transit  *transit.Service
	Locator  *zone.Locator
	OneMap   onemap.Client
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Pool != nil {
		e.Pool.Close()
	}
}

// initEnv connects the store and wires the services. Callers should
// defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	if cfg.Store.DatabaseURL == "" {
		return nil, eris.New("store.database_url is not configured")
	}

	pool, err := db.Connect(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	if err != nil {
		return nil, err
	}

	omClient := initOneMap()

	resultCache := cache.New[search.Output](
		cfg.Cache.MaxEntries,
		time.Duration(cfg.Cache.TTLMinutes)*time.Minute,
	)
	searcher := search.NewSearcher(search.NewPostgresStore(pool), cfg.Search, resultCache)

	// Station access times are walking routes.
	var rt *router.Router
	if cfg.OneMap.Email != "" {
		routeFn := func(ctx context.Context, origin router.Origin, dest router.Destination) (*router.Route, error) {
			sum, err := omClient.ComputeRoute(ctx,
				onemap.LatLon{Lat: origin.Lat, Lon: origin.Lon},
				onemap.LatLon{Lat: dest.Lat, Lon: dest.Lon},
				"walk")
			if err != nil {
				return nil, err
			}
			return &router.Route{TotalTimeSecs: sum.TotalTimeSecs, TotalDistM: sum.TotalDistM}, nil
		}
		rt = router.New(routeFn, cfg.Router)
	} else {
		zap.L().Warn("onemap credentials not set, travel-time filtering disabled")
	}

	provider, err := stationProvider(pool, omClient)
	if err != nil {
		pool.Close()
		return nil, err
	}
	ts := transit.NewService(provider, rt, cfg.Search,
		time.Duration(cfg.Transit.StationTTLHours)*time.Hour)

	locator := zone.NewLocator(zone.NewLoader(cfg.Zones.DatasetPath))

	return &appEnv{
		Pool:     pool,
		Searcher: searcher,
		Transit:  ts,
		Locator:  locator,
		OneMap:   omClient,
	}, nil
}

func initOneMap() onemap.Client {
	opts := []onemap.Option{
		onemap.WithBaseURL(cfg.OneMap.BaseURL),
		onemap.WithRateLimit(cfg.OneMap.RateLimit),
		onemap.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.OneMap.TimeoutSecs) * time.Second,
		}),
	}
	if cfg.OneMap.Email != "" {
		opts = append(opts, onemap.WithCredentials(cfg.OneMap.Email, cfg.OneMap.Password))
	}
	return onemap.NewClient(opts...)
}

func stationProvider(pool db.Pool, om onemap.Client) (transit.Provider, error) {
	switch cfg.Transit.Source {
	case "store":
		return transit.NewStoreProvider(pool), nil
	case "shapefile":
		return transit.NewShapefileProvider(cfg.Transit.ShapefilePath, om.ConvertToGeographic), nil
	default:
		return nil, eris.Errorf("unknown transit source %q", cfg.Transit.Source)
	}
}
