package zone

import (
	"context"

	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/propscope/propscope/internal/model"
)

// Locator answers point and radius lookups over the loaded zone set.
type Locator struct {
	loader *Loader
}

// NewLocator creates a Locator over loader.
func NewLocator(loader *Loader) *Locator {
	return &Locator{loader: loader}
}

// Locate returns the zone containing (x, y), or nil when no zone does.
// Bounding boxes prune before the exact containment test; the first
// containing zone in dataset order wins, so overlapping polygons
// resolve deterministically.
func (l *Locator) Locate(ctx context.Context, x, y float64) (*Zone, error) {
	zones, err := l.loader.Zones(ctx)
	if err != nil {
		return nil, err
	}

	for i := range zones {
		z := &zones[i]
		if !boundsContain(z.bounds, x, y) {
			continue
		}
		if z.contains(x, y) {
			return z, nil
		}
	}
	return nil, nil
}

// Within returns zones overlapping the circle around (x, y). The test
// is an approximation good enough for land-use mix: a zone counts when
// it contains the center or its area centroid falls inside the radius.
func (l *Locator) Within(ctx context.Context, x, y, radius float64) ([]Zone, error) {
	zones, err := l.loader.Zones(ctx)
	if err != nil {
		return nil, err
	}

	var out []Zone
	for i := range zones {
		z := &zones[i]
		// Circle-vs-bbox prune.
		if z.bounds.Min(0) > x+radius || z.bounds.Max(0) < x-radius ||
			z.bounds.Min(1) > y+radius || z.bounds.Max(1) < y-radius {
			continue
		}

		if model.Distance(z.cx, z.cy, x, y) <= radius || z.contains(x, y) {
			out = append(out, *z)
		}
	}
	return out, nil
}

func boundsContain(b *geom.Bounds, x, y float64) bool {
	return x >= b.Min(0) && x <= b.Max(0) && y >= b.Min(1) && y <= b.Max(1)
}

// contains tests point-in-polygon across the zone's polygons: inside
// the outer ring and outside every hole. The dataset's polygons tile
// the island, so boundary points still resolve to exactly one adjacent
// zone via first-match order.
func (z *Zone) contains(x, y float64) bool {
	pt := geom.Coord{x, y}
	for _, p := range z.polygons {
		if p.NumLinearRings() == 0 {
			continue
		}
		if !xy.IsPointInRing(p.Layout(), pt, p.LinearRing(0).FlatCoords()) {
			continue
		}
		inHole := false
		for i := 1; i < p.NumLinearRings(); i++ {
			if xy.IsPointInRing(p.Layout(), pt, p.LinearRing(i).FlatCoords()) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}
