package onemap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propscope/propscope/internal/resilience"
)

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]Option{
		WithBaseURL(srv.URL),
		WithRateLimit(10000),
		WithCredentials("user@example.com", "secret"),
	}, opts...)
	return NewClient(opts...)
}

func TestResolve(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/common/elastic/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BEDOK MALL", r.URL.Query().Get("searchVal"))
		assert.Equal(t, "Y", r.URL.Query().Get("returnGeom"))
		fmt.Fprint(w, `{
			"found": 1,
			"results": [{
				"SEARCHVAL": "BEDOK MALL",
				"ADDRESS": "311 NEW UPPER CHANGI ROAD",
				"POSTAL": "467360",
				"LATITUDE": "1.3250",
				"LONGITUDE": "103.9290",
				"X": "37500.1",
				"Y": "34000.2"
			}]
		}`)
	})
	c := newTestClient(t, mux)

	loc, err := c.Resolve(context.Background(), "BEDOK MALL")
	require.NoError(t, err)
	assert.Equal(t, "BEDOK MALL", loc.Name)
	assert.Equal(t, "467360", loc.Postal)
	assert.InDelta(t, 1.3250, loc.Lat, 1e-9)
	assert.InDelta(t, 37500.1, loc.X, 1e-9)
}

func TestResolveNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/common/elastic/search", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"found": 0, "results": []}`)
	})
	c := newTestClient(t, mux)

	_, err := c.Resolve(context.Background(), "ZZZZZ")
	require.Error(t, err)
	assert.Equal(t, resilience.KindNotFound, resilience.ClassOf(err))
}

func TestResolveEmptyQuery(t *testing.T) {
	c := newTestClient(t, http.NewServeMux())
	_, err := c.Resolve(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, resilience.KindInvalidQuery, resilience.ClassOf(err))
}

func TestResolveClassifiesUpstreamFailures(t *testing.T) {
	for status, kind := range map[int]resilience.Kind{
		http.StatusTooManyRequests:     resilience.KindRateLimited,
		http.StatusBadGateway:          resilience.KindServerError,
		http.StatusInternalServerError: resilience.KindServerError,
	} {
		mux := http.NewServeMux()
		mux.HandleFunc("/api/common/elastic/search", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		})
		c := newTestClient(t, mux)

		_, err := c.Resolve(context.Background(), "BEDOK")
		require.Error(t, err)
		assert.Equal(t, kind, resilience.ClassOf(err), "status %d", status)
	}
}

func TestConvertToPlanar(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/common/convert/4326to3414", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1.325", r.URL.Query().Get("latitude"))
		fmt.Fprint(w, `{"X": 37500.5, "Y": 34000.25}`)
	})
	c := newTestClient(t, mux)

	x, y, err := c.ConvertToPlanar(context.Background(), 1.325, 103.929)
	require.NoError(t, err)
	assert.InDelta(t, 37500.5, x, 1e-9)
	assert.InDelta(t, 34000.25, y, 1e-9)
}

func TestConvertToGeographic(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/common/convert/3414to4326", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "35782.5", r.URL.Query().Get("X"))
		assert.Equal(t, "33560.25", r.URL.Query().Get("Y"))
		fmt.Fprint(w, `{"latitude": 1.319728, "longitude": 103.8421}`)
	})
	c := newTestClient(t, mux)

	lat, lon, err := c.ConvertToGeographic(context.Background(), 35782.5, 33560.25)
	require.NoError(t, err)
	assert.InDelta(t, 1.319728, lat, 1e-9)
	assert.InDelta(t, 103.8421, lon, 1e-9)
}

func authHandler(counter *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		n := counter.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token":     fmt.Sprintf("tok%d", n),
			"expiry_timestamp": fmt.Sprintf("%d", time.Now().Add(3*24*time.Hour).Unix()),
		})
	}
}

func TestComputeRouteDrive(t *testing.T) {
	var authCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/post/getToken", authHandler(&authCalls))
	mux.HandleFunc("/api/public/routingsvc/route", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok1", r.Header.Get("Authorization"))
		assert.Equal(t, "drive", r.URL.Query().Get("routeType"))
		fmt.Fprint(w, `{"route_summary": {"total_time": 840, "total_distance": 7230.5}}`)
	})
	c := newTestClient(t, mux)

	sum, err := c.ComputeRoute(context.Background(), LatLon{1.30, 103.85}, LatLon{1.32, 103.93}, "drive")
	require.NoError(t, err)
	assert.Equal(t, 840, sum.TotalTimeSecs)
	assert.InDelta(t, 7230.5, sum.TotalDistM, 1e-9)

	// Second route call reuses the cached token.
	_, err = c.ComputeRoute(context.Background(), LatLon{1.30, 103.85}, LatLon{1.32, 103.93}, "drive")
	require.NoError(t, err)
	assert.Equal(t, int32(1), authCalls.Load())
}

func TestComputeRoutePublicTransport(t *testing.T) {
	var authCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/post/getToken", authHandler(&authCalls))
	mux.HandleFunc("/api/public/routingsvc/route", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TRANSIT", r.URL.Query().Get("mode"))
		fmt.Fprint(w, `{"plan": {"itineraries": [{"duration": 1560, "walkDistance": 420.7}]}}`)
	})
	c := newTestClient(t, mux)

	sum, err := c.ComputeRoute(context.Background(), LatLon{1.30, 103.85}, LatLon{1.32, 103.93}, "pt")
	require.NoError(t, err)
	assert.Equal(t, 1560, sum.TotalTimeSecs)
}

func TestComputeRouteInvalidType(t *testing.T) {
	c := newTestClient(t, http.NewServeMux())
	_, err := c.ComputeRoute(context.Background(), LatLon{}, LatLon{}, "teleport")
	require.Error(t, err)
	assert.Equal(t, resilience.KindInvalidQuery, resilience.ClassOf(err))
}

func TestComputeRouteReauthenticatesOnceOn401(t *testing.T) {
	var authCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/post/getToken", authHandler(&authCalls))
	mux.HandleFunc("/api/public/routingsvc/route", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "tok1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"route_summary": {"total_time": 600, "total_distance": 5000}}`)
	})
	c := newTestClient(t, mux)

	sum, err := c.ComputeRoute(context.Background(), LatLon{1.3, 103.8}, LatLon{1.31, 103.81}, "walk")
	require.NoError(t, err)
	assert.Equal(t, 600, sum.TotalTimeSecs)
	assert.Equal(t, int32(2), authCalls.Load())
}

func TestComputeRouteAuthExpiredAfterRetry(t *testing.T) {
	var authCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/post/getToken", authHandler(&authCalls))
	mux.HandleFunc("/api/public/routingsvc/route", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	c := newTestClient(t, mux)

	_, err := c.ComputeRoute(context.Background(), LatLon{}, LatLon{1, 103}, "walk")
	require.Error(t, err)
	assert.Equal(t, resilience.KindAuthExpired, resilience.ClassOf(err))
	assert.Equal(t, int32(2), authCalls.Load())
}

func TestComputeRouteNoRouteFound(t *testing.T) {
	var authCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/post/getToken", authHandler(&authCalls))
	mux.HandleFunc("/api/public/routingsvc/route", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"error": "Unable to find route"}`)
	})
	c := newTestClient(t, mux)

	_, err := c.ComputeRoute(context.Background(), LatLon{}, LatLon{}, "walk")
	require.Error(t, err)
	assert.Equal(t, resilience.KindNotFound, resilience.ClassOf(err))
}
