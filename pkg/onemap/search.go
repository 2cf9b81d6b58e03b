package onemap

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/propscope/propscope/internal/resilience"
)

type searchResponse struct {
	Found   int            `json:"found"`
	Results []searchResult `json:"results"`
}

type searchResult struct {
	SearchVal string `json:"SEARCHVAL"`
	Address   string `json:"ADDRESS"`
	Postal    string `json:"POSTAL"`
	Latitude  string `json:"LATITUDE"`
	Longitude string `json:"LONGITUDE"`
	X         string `json:"X"`
	Y         string `json:"Y"`
}

// Resolve finds the best match for a free-text location query. An
// unmatched query is a NotFound error, not a transport failure.
func (c *client) Resolve(ctx context.Context, query string) (*Location, error) {
	if query == "" {
		return nil, resilience.NewError(resilience.KindInvalidQuery,
			eris.New("onemap: empty search query"))
	}

	params := url.Values{
		"searchVal":      {query},
		"returnGeom":     {"Y"},
		"getAddrDetails": {"Y"},
		"pageNum":        {"1"},
	}
	body, err := c.doPublic(ctx, c.baseURL+"/api/common/elastic/search?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, eris.Wrap(err, "onemap: parse search response")
	}
	if sr.Found == 0 || len(sr.Results) == 0 {
		return nil, resilience.NewError(resilience.KindNotFound,
			eris.Errorf("onemap: no match for %q", query))
	}

	best := sr.Results[0]
	loc := &Location{
		Name:    best.SearchVal,
		Address: best.Address,
		Postal:  best.Postal,
	}
	// The API returns coordinates as strings.
	if loc.Lat, err = strconv.ParseFloat(best.Latitude, 64); err != nil {
		return nil, eris.Wrapf(err, "onemap: parse latitude %q", best.Latitude)
	}
	if loc.Lon, err = strconv.ParseFloat(best.Longitude, 64); err != nil {
		return nil, eris.Wrapf(err, "onemap: parse longitude %q", best.Longitude)
	}
	if loc.X, err = strconv.ParseFloat(best.X, 64); err != nil {
		return nil, eris.Wrapf(err, "onemap: parse x %q", best.X)
	}
	if loc.Y, err = strconv.ParseFloat(best.Y, 64); err != nil {
		return nil, eris.Wrapf(err, "onemap: parse y %q", best.Y)
	}
	return loc, nil
}
