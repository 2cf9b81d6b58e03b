// Package zone locates points in the master-plan land-use dataset and
// aggregates land-use mix around a point.
package zone

import (
	"context"
	"encoding/json"
	"html"
	"math"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Zone is one land-use polygon with its parsed attributes. Geometry is
// SVY21 planar, matching the property store.
type Zone struct {
	Name           string `json:"name"`
	LandUse        string `json:"land_use"`
	GrossPlotRatio string `json:"gross_plot_ratio,omitempty"`
	HeightCeiling  string `json:"height_ceiling,omitempty"`
	UpdatedAt      string `json:"updated_at,omitempty"`

	polygons []*geom.Polygon
	bounds   *geom.Bounds
	cx, cy   float64
}

// Loader reads the land-use GeoJSON once and shares the parsed zones
// across all callers.
type Loader struct {
	path string

	group singleflight.Group
	mu    sync.RWMutex
	zones []Zone
}

// NewLoader creates a Loader over the dataset at path. Nothing is read
// until the first Zones call.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Zones returns the parsed zone set, loading the dataset on first use.
// Concurrent first calls share a single load.
func (l *Loader) Zones(ctx context.Context) ([]Zone, error) {
	l.mu.RLock()
	zones := l.zones
	l.mu.RUnlock()
	if zones != nil {
		return zones, nil
	}

	result, err, _ := l.group.Do("load", func() (any, error) {
		loaded, err := l.load()
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.zones = loaded
		l.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "zone: load canceled")
	}
	return result.([]Zone), nil
}

func (l *Loader) load() ([]Zone, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, eris.Wrapf(err, "zone: read dataset %s", l.path)
	}
	zones, err := ParseDataset(data)
	if err != nil {
		return nil, err
	}
	zap.L().Info("loaded land-use dataset",
		zap.String("path", l.path),
		zap.Int("zones", len(zones)),
	)
	return zones, nil
}

// ParseDataset decodes a land-use GeoJSON feature collection.
func ParseDataset(data []byte) ([]Zone, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "zone: decode geojson")
	}

	zones := make([]Zone, 0, len(fc.Features))
	var skipped int
	for _, f := range fc.Features {
		z, ok := zoneFromFeature(f)
		if !ok {
			skipped++
			continue
		}
		zones = append(zones, z)
	}
	if skipped > 0 {
		zap.L().Debug("skipped land-use features", zap.Int("skipped", skipped))
	}
	return zones, nil
}

func zoneFromFeature(f *geojson.Feature) (Zone, bool) {
	var polygons []*geom.Polygon
	switch g := f.Geometry.(type) {
	case *geom.Polygon:
		polygons = []*geom.Polygon{g}
	case *geom.MultiPolygon:
		for i := 0; i < g.NumPolygons(); i++ {
			polygons = append(polygons, g.Polygon(i))
		}
	default:
		return Zone{}, false
	}
	if len(polygons) == 0 {
		return Zone{}, false
	}

	bounds := geom.NewBounds(geom.XY)
	for _, p := range polygons {
		bounds.Extend(p)
	}

	centroid := xy.PolygonsCentroid(polygons[0], polygons[1:]...)
	cx, cy := centroid.X(), centroid.Y()
	if math.IsNaN(cx) || math.IsNaN(cy) {
		// Degenerate (zero-area) geometry; fall back to the bbox center.
		cx = (bounds.Min(0) + bounds.Max(0)) / 2
		cy = (bounds.Min(1) + bounds.Max(1)) / 2
	}

	z := Zone{polygons: polygons, bounds: bounds, cx: cx, cy: cy}
	if name, ok := f.Properties["Name"].(string); ok {
		z.Name = name
	}

	if desc, ok := f.Properties["Description"].(string); ok {
		attrs := ParseDescription(desc)
		z.LandUse = attrs["LU_DESC"]
		z.GrossPlotRatio = attrs["GPR"]
		z.HeightCeiling = attrs["BLDG_HT_CEIL"]
		z.UpdatedAt = attrs["FMEL_UPD_D"]
	}
	if z.LandUse == "" {
		// Some exports carry attributes directly instead of the HTML blob.
		if lu, ok := f.Properties["LU_DESC"].(string); ok {
			z.LandUse = lu
		}
	}
	if z.LandUse == "" {
		return Zone{}, false
	}
	return z, true
}

// descRowRe matches one attribute row of the HTML description table.
var descRowRe = regexp.MustCompile(`(?is)<th[^>]*>\s*([^<]+?)\s*</th>\s*<td[^>]*>\s*([^<]*?)\s*</td>`)

// ParseDescription extracts attribute pairs from the HTML table the
// dataset embeds in each feature's Description property.
func ParseDescription(desc string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range descRowRe.FindAllStringSubmatch(desc, -1) {
		key := strings.TrimSpace(html.UnescapeString(m[1]))
		val := strings.TrimSpace(html.UnescapeString(m[2]))
		if key == "" {
			continue
		}
		attrs[key] = val
	}
	return attrs
}
