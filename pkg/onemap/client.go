// Package onemap is a client for the OneMap Singapore API: location
// search, coordinate conversion to the SVY21 plane, and routing.
package onemap

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://www.onemap.gov.sg"

// Client exposes the OneMap operations the engine needs.
type Client interface {
	// Resolve finds the best location match for a free-text query.
	Resolve(ctx context.Context, query string) (*Location, error)

	// ConvertToPlanar converts a WGS84 coordinate to SVY21 meters.
	ConvertToPlanar(ctx context.Context, lat, lon float64) (x, y float64, err error)

	// ConvertToGeographic converts SVY21 meters to a WGS84 coordinate.
	ConvertToGeographic(ctx context.Context, x, y float64) (lat, lon float64, err error)

	// ComputeRoute computes a route between two WGS84 points.
	// routeType is one of "walk", "drive", "cycle", or "pt".
	ComputeRoute(ctx context.Context, from, to LatLon, routeType string) (*RouteSummary, error)
}

// LatLon is a WGS84 coordinate pair.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Location is a resolved place.
type Location struct {
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Postal  string  `json:"postal"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

// RouteSummary is the time and distance of a computed route.
type RouteSummary struct {
	TotalTimeSecs int     `json:"total_time_secs"`
	TotalDistM    float64 `json:"total_dist_m"`
}

// Option configures the client.
type Option func(*client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *client) {
		c.baseURL = baseURL
	}
}

// WithRateLimit sets the requests-per-second limit applied to all calls.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithCredentials sets the account used for authenticated endpoints
// (routing). Search and conversion work without credentials.
func WithCredentials(email, password string) Option {
	return func(c *client) {
		c.email = email
		c.password = password
	}
}

type client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter

	email    string
	password string

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a OneMap Client with the given options.
func NewClient(opts ...Option) Client {
	c := &client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		limiter:    rate.NewLimiter(4, 4), // OneMap allows ~250 calls/min
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
