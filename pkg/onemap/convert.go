package onemap

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
)

type convertResponse struct {
	X float64 `json:"X"`
	Y float64 `json:"Y"`
}

// ConvertToPlanar converts a WGS84 coordinate to SVY21 (EPSG:3414)
// meters via the conversion service.
func (c *client) ConvertToPlanar(ctx context.Context, lat, lon float64) (float64, float64, error) {
	params := url.Values{
		"latitude":  {strconv.FormatFloat(lat, 'f', -1, 64)},
		"longitude": {strconv.FormatFloat(lon, 'f', -1, 64)},
	}
	body, err := c.doPublic(ctx, c.baseURL+"/api/common/convert/4326to3414?"+params.Encode())
	if err != nil {
		return 0, 0, err
	}

	var cr convertResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return 0, 0, eris.Wrap(err, "onemap: parse convert response")
	}
	return cr.X, cr.Y, nil
}

type geographicResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ConvertToGeographic converts an SVY21 (EPSG:3414) coordinate to WGS84
// degrees via the conversion service.
func (c *client) ConvertToGeographic(ctx context.Context, x, y float64) (float64, float64, error) {
	params := url.Values{
		"X": {strconv.FormatFloat(x, 'f', -1, 64)},
		"Y": {strconv.FormatFloat(y, 'f', -1, 64)},
	}
	body, err := c.doPublic(ctx, c.baseURL+"/api/common/convert/3414to4326?"+params.Encode())
	if err != nil {
		return 0, 0, err
	}

	var gr geographicResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return 0, 0, eris.Wrap(err, "onemap: parse convert response")
	}
	return gr.Latitude, gr.Longitude, nil
}
