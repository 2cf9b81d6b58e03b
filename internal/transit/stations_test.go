package transit

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propscope/propscope/internal/config"
	"github.com/propscope/propscope/internal/model"
	"github.com/propscope/propscope/internal/resilience"
	"github.com/propscope/propscope/internal/router"
)

type fakeProvider struct {
	stations []model.MRTStation
	calls    int
}

func (f *fakeProvider) Stations(context.Context) ([]model.MRTStation, error) {
	f.calls++
	return f.stations, nil
}

func searchCfg() config.SearchConfig {
	return config.SearchConfig{DefaultRadius: 1000, MaxRadius: 5000, MaxLimit: 100, MaxCenters: 20}
}

func station(name string, x, y float64) model.MRTStation {
	return model.MRTStation{Name: name, X: x, Y: y, Lat: 1.3, Lon: 103.8}
}

func TestNearbyDedupesAndSorts(t *testing.T) {
	provider := &fakeProvider{stations: []model.MRTStation{
		station("BEDOK MRT STATION EXIT B", 30200, 30000),
		station("BEDOK MRT STATION", 30400, 30000),
		station("TANAH MERAH MRT STATION (EW4)", 30600, 30000),
		station("SIMEI MRT STATION", 45000, 45000), // out of range
	}}
	svc := NewService(provider, nil, searchCfg(), time.Hour)

	out, err := svc.Nearby(context.Background(), NearbyRequest{X: 30000, Y: 30000, Radius: 1000})
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Equal(t, "BEDOK", out[0].Station.Name)
	assert.Equal(t, 400.0, out[0].Distance)
	assert.Equal(t, "TANAH MERAH", out[1].Station.Name)
}

func TestNearbyCachesStationSet(t *testing.T) {
	provider := &fakeProvider{stations: []model.MRTStation{station("BEDOK MRT STATION", 30100, 30000)}}
	svc := NewService(provider, nil, searchCfg(), time.Hour)

	for range 3 {
		_, err := svc.Nearby(context.Background(), NearbyRequest{X: 30000, Y: 30000, Radius: 1000})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, provider.calls)
}

func TestNearbyRejectsBadRadius(t *testing.T) {
	svc := NewService(&fakeProvider{}, nil, searchCfg(), time.Hour)

	_, err := svc.Nearby(context.Background(), NearbyRequest{X: 0, Y: 0, Radius: 9000})
	require.Error(t, err)
	assert.Equal(t, resilience.KindInvalidQuery, resilience.ClassOf(err))
}

func TestNearbyRequiresRouterForTravelFilter(t *testing.T) {
	svc := NewService(&fakeProvider{}, nil, searchCfg(), time.Hour)

	_, err := svc.Nearby(context.Background(), NearbyRequest{X: 0, Y: 0, Radius: 500, MaxTravelSecs: 600})
	require.Error(t, err)
	assert.Equal(t, resilience.KindInvalidQuery, resilience.ClassOf(err))
}

func TestNearbyFiltersByTravelTime(t *testing.T) {
	provider := &fakeProvider{stations: []model.MRTStation{
		station("BEDOK MRT STATION", 30100, 30000),
		station("TANAH MERAH MRT STATION", 30300, 30000),
		station("SIMEI MRT STATION", 30500, 30000),
	}}

	// Keyed by canonical name: dedup runs before routing.
	times := map[string]int{
		"BEDOK":       300,
		"TANAH MERAH": 900, // over the bound
	}
	routeFn := func(_ context.Context, _ router.Origin, dest router.Destination) (*router.Route, error) {
		secs, ok := times[dest.ID]
		if !ok {
			return nil, resilience.NewError(resilience.KindNotFound, eris.New("no route"))
		}
		return &router.Route{TotalTimeSecs: secs}, nil
	}
	rt := router.New(routeFn, config.RouterConfig{
		BatchSize: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond,
		MaxRetries: 0, RetryBackoff: time.Millisecond, MaxDests: 40,
	}, router.WithSleep(func(context.Context, time.Duration) error { return nil }))

	svc := NewService(provider, rt, searchCfg(), time.Hour)
	out, err := svc.Nearby(context.Background(), NearbyRequest{
		X: 30000, Y: 30000, Radius: 1000,
		Lat: 1.32, Lon: 103.93, MaxTravelSecs: 600,
	})
	require.NoError(t, err)

	// SIMEI's route failed, TANAH MERAH exceeded the bound.
	require.Len(t, out, 1)
	assert.Equal(t, "BEDOK", out[0].Station.Name)
	require.NotNil(t, out[0].TravelSecs)
	assert.Equal(t, 300, *out[0].TravelSecs)
}

func TestNearbyNeverRoutesStationsWithoutGeoCoords(t *testing.T) {
	noGeo := model.MRTStation{Name: "EXPO MRT STATION", X: 30200, Y: 30000}
	provider := &fakeProvider{stations: []model.MRTStation{
		station("BEDOK MRT STATION", 30100, 30000),
		noGeo,
	}}

	var routed []router.Destination
	routeFn := func(_ context.Context, _ router.Origin, dest router.Destination) (*router.Route, error) {
		routed = append(routed, dest)
		return &router.Route{TotalTimeSecs: 300}, nil
	}
	rt := router.New(routeFn, config.RouterConfig{
		BatchSize: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond,
		MaxRetries: 0, RetryBackoff: time.Millisecond, MaxDests: 40,
	}, router.WithSleep(func(context.Context, time.Duration) error { return nil }))

	svc := NewService(provider, rt, searchCfg(), time.Hour)
	out, err := svc.Nearby(context.Background(), NearbyRequest{
		X: 30000, Y: 30000, Radius: 1000,
		Lat: 1.32, Lon: 103.93, MaxTravelSecs: 600,
	})
	require.NoError(t, err)

	// The station without WGS84 coordinates is dropped, not routed to
	// (0, 0).
	require.Len(t, routed, 1)
	assert.Equal(t, "BEDOK", routed[0].Name)
	require.Len(t, out, 1)
	assert.Equal(t, "BEDOK", out[0].Station.Name)
}
