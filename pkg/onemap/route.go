package onemap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/rotisserie/eris"

	"github.com/propscope/propscope/internal/resilience"
)

// Route types accepted by the routing service.
var validRouteTypes = map[string]bool{
	"walk":  true,
	"drive": true,
	"cycle": true,
	"pt":    true,
}

type routeResponse struct {
	RouteSummary *struct {
		TotalTime     int     `json:"total_time"`
		TotalDistance float64 `json:"total_distance"`
	} `json:"route_summary"`
	// Public-transport responses use a trip plan instead of a summary.
	Plan *struct {
		Itineraries []struct {
			Duration int     `json:"duration"`
			WalkDist float64 `json:"walkDistance"`
		} `json:"itineraries"`
	} `json:"plan"`
	Error string `json:"error"`
}

// ComputeRoute computes a route between two points. A response without
// a usable route is NotFound.
func (c *client) ComputeRoute(ctx context.Context, from, to LatLon, routeType string) (*RouteSummary, error) {
	if !validRouteTypes[routeType] {
		return nil, resilience.NewError(resilience.KindInvalidQuery,
			eris.Errorf("onemap: invalid route type %q", routeType))
	}

	params := url.Values{
		"start":     {fmt.Sprintf("%f,%f", from.Lat, from.Lon)},
		"end":       {fmt.Sprintf("%f,%f", to.Lat, to.Lon)},
		"routeType": {routeType},
	}
	if routeType == "pt" {
		params.Set("mode", "TRANSIT")
		params.Set("numItineraries", "1")
	}

	body, err := c.doAuthorized(ctx, c.baseURL+"/api/public/routingsvc/route?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var rr routeResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return nil, eris.Wrap(err, "onemap: parse route response")
	}
	if rr.Error != "" {
		return nil, resilience.NewError(resilience.KindNotFound,
			eris.Errorf("onemap: routing: %s", rr.Error))
	}

	if rr.RouteSummary != nil {
		return &RouteSummary{
			TotalTimeSecs: rr.RouteSummary.TotalTime,
			TotalDistM:    rr.RouteSummary.TotalDistance,
		}, nil
	}
	if rr.Plan != nil && len(rr.Plan.Itineraries) > 0 {
		it := rr.Plan.Itineraries[0]
		return &RouteSummary{
			TotalTimeSecs: it.Duration,
			TotalDistM:    it.WalkDist,
		}, nil
	}
	return nil, resilience.NewError(resilience.KindNotFound,
		eris.New("onemap: response carried no route"))
}
