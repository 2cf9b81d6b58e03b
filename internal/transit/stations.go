package transit

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/propscope/propscope/internal/cache"
	"github.com/propscope/propscope/internal/config"
	"github.com/propscope/propscope/internal/model"
	"github.com/propscope/propscope/internal/resilience"
	"github.com/propscope/propscope/internal/router"
)

const stationSetKey = "stations"

// NearbyRequest asks for stations around an SVY21 point. When
// MaxTravelSecs is positive the origin's WGS84 coordinates must be set
// and stations are filtered by computed travel time.
type NearbyRequest struct {
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Radius        float64 `json:"radius"`
	Lat           float64 `json:"lat,omitempty"`
	Lon           float64 `json:"lon,omitempty"`
	MaxTravelSecs int     `json:"max_travel_secs,omitempty"`
}

// NearbyStation is one deduplicated station near the query point.
type NearbyStation struct {
	Station    model.MRTStation `json:"station"`
	Distance   float64          `json:"distance"`
	TravelSecs *int             `json:"travel_secs,omitempty"`
}

// Service answers nearby-station queries over a cached station set.
type Service struct {
	provider Provider
	router   *router.Router
	cache    *cache.Cache[[]model.MRTStation]
	cfg      config.SearchConfig
}

// NewService creates a transit Service. The router may be nil, in which
// case travel-time filtering is unavailable. stationTTL bounds how long
// the provider's station set is reused.
func NewService(provider Provider, rt *router.Router, cfg config.SearchConfig, stationTTL time.Duration) *Service {
	return &Service{
		provider: provider,
		router:   rt,
		cache:    cache.New[[]model.MRTStation](1, stationTTL),
		cfg:      cfg,
	}
}

// Nearby returns deduplicated stations inside the radius, sorted
// nearest-first. With MaxTravelSecs set, each surviving station carries
// a computed travel time; stations whose route failed or exceeded the
// bound are dropped.
func (s *Service) Nearby(ctx context.Context, req NearbyRequest) ([]NearbyStation, error) {
	if req.Radius == 0 {
		req.Radius = s.cfg.DefaultRadius
	}
	if req.Radius <= 0 || req.Radius > s.cfg.MaxRadius {
		return nil, resilience.NewError(resilience.KindInvalidQuery,
			eris.Errorf("transit: radius %.0f outside (0, %.0f]", req.Radius, s.cfg.MaxRadius))
	}
	if req.MaxTravelSecs > 0 && s.router == nil {
		return nil, resilience.NewError(resilience.KindInvalidQuery,
			eris.New("transit: travel-time filtering requires a routing backend"))
	}

	stations, err := s.stations(ctx)
	if err != nil {
		return nil, err
	}

	var inRadius []StationDistance
	for _, st := range stations {
		// Bounding-box reject before the exact distance.
		if st.X < req.X-req.Radius || st.X > req.X+req.Radius ||
			st.Y < req.Y-req.Radius || st.Y > req.Y+req.Radius {
			continue
		}
		d := model.Distance(st.X, st.Y, req.X, req.Y)
		if d > req.Radius {
			continue
		}
		inRadius = append(inRadius, StationDistance{Station: st, Distance: d})
	}

	deduped := Dedupe(inRadius)
	sort.Slice(deduped, func(i, j int) bool {
		if deduped[i].Distance != deduped[j].Distance {
			return deduped[i].Distance < deduped[j].Distance
		}
		return deduped[i].Station.Name < deduped[j].Station.Name
	})

	out := make([]NearbyStation, 0, len(deduped))
	for _, sd := range deduped {
		out = append(out, NearbyStation{Station: sd.Station, Distance: sd.Distance})
	}

	if req.MaxTravelSecs > 0 {
		out, err = s.attachTravelTimes(ctx, req, out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Service) attachTravelTimes(ctx context.Context, req NearbyRequest, stations []NearbyStation) ([]NearbyStation, error) {
	if len(stations) == 0 {
		return stations, nil
	}

	// Stations without geographic coordinates cannot be routed; routing
	// them anyway would measure travel time to (0, 0).
	var routable []NearbyStation
	dests := make([]router.Destination, 0, len(stations))
	for _, st := range stations {
		if st.Station.Lat == 0 && st.Station.Lon == 0 {
			zap.L().Warn("dropping station without geographic coordinates",
				zap.String("station", st.Station.Name),
			)
			continue
		}
		routable = append(routable, st)
		dests = append(dests, router.Destination{
			ID:   st.Station.Name,
			Name: st.Station.Name,
			Lat:  st.Station.Lat,
			Lon:  st.Station.Lon,
		})
	}
	if len(dests) == 0 {
		return nil, nil
	}

	outcomes, err := s.router.RouteAll(ctx, router.Origin{Lat: req.Lat, Lon: req.Lon}, dests)
	if err != nil {
		return nil, err
	}

	var kept []NearbyStation
	for i, o := range outcomes {
		if o.Err != nil {
			zap.L().Warn("dropping station after route failure",
				zap.String("station", o.Destination.Name),
				zap.Error(o.Err),
			)
			continue
		}
		if o.Route.TotalTimeSecs > req.MaxTravelSecs {
			continue
		}
		st := routable[i]
		secs := o.Route.TotalTimeSecs
		st.TravelSecs = &secs
		kept = append(kept, st)
	}
	return kept, nil
}

func (s *Service) stations(ctx context.Context) ([]model.MRTStation, error) {
	if cached, ok := s.cache.Get(stationSetKey); ok {
		return cached, nil
	}
	stations, err := s.provider.Stations(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Put(stationSetKey, stations)
	zap.L().Info("loaded station reference set", zap.Int("stations", len(stations)))
	return stations, nil
}
