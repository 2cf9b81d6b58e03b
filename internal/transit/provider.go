package transit

import (
	"context"
	"strconv"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/propscope/propscope/internal/db"
	"github.com/propscope/propscope/internal/model"
)

// Provider supplies the full station reference set. The service layer
// caches it, so providers may re-read their source on every call.
type Provider interface {
	Stations(ctx context.Context) ([]model.MRTStation, error)
}

// StoreProvider reads stations from the relational store.
type StoreProvider struct {
	pool db.Pool
}

// NewStoreProvider creates a StoreProvider backed by pool.
func NewStoreProvider(pool db.Pool) *StoreProvider {
	return &StoreProvider{pool: pool}
}

// Stations returns every station record in the store.
func (p *StoreProvider) Stations(ctx context.Context) ([]model.MRTStation, error) {
	sql := `
		SELECT name, building_name, x, y, lat, lon, line_code, station_code
		FROM mrt_stations
		ORDER BY name
	`
	rows, err := p.pool.Query(ctx, sql)
	if err != nil {
		return nil, eris.Wrap(err, "transit: query stations")
	}
	defer rows.Close()

	var stations []model.MRTStation
	for rows.Next() {
		var s model.MRTStation
		if err := rows.Scan(&s.Name, &s.BuildingName, &s.X, &s.Y, &s.Lat, &s.Lon, &s.LineCode, &s.StationCode); err != nil {
			return nil, eris.Wrap(err, "transit: scan station row")
		}
		stations = append(stations, s)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "transit: iterate station rows")
	}
	return stations, nil
}

// GeoConverter converts SVY21 meters to WGS84 degrees.
type GeoConverter func(ctx context.Context, x, y float64) (lat, lon float64, err error)

// ShapefileProvider reads stations from the LTA train station
// shapefile. Geometries are polygons in SVY21; each station's point is
// taken as its bounding-box center.
type ShapefileProvider struct {
	path    string
	convert GeoConverter
}

// NewShapefileProvider creates a provider over the shapefile at path.
// The shapefile carries only SVY21 geometry; convert supplies the WGS84
// coordinates routing needs and may be nil when routing is unused.
func NewShapefileProvider(path string, convert GeoConverter) *ShapefileProvider {
	return &ShapefileProvider{path: path, convert: convert}
}

// Stations parses the shapefile. Records without a usable name or
// geometry are skipped, as are records whose coordinate conversion
// fails.
func (p *ShapefileProvider) Stations(ctx context.Context) ([]model.MRTStation, error) {
	reader, err := shp.Open(p.path)
	if err != nil {
		return nil, eris.Wrapf(err, "transit: open shapefile %s", p.path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	attr := func(row map[string]int, keys ...string) (int, bool) {
		for _, k := range keys {
			if idx, ok := row[k]; ok {
				return idx, true
			}
		}
		return 0, false
	}
	nameIdx, hasName := attr(fieldIdx, "stn_nam_de", "stn_nam", "stn_name", "name")
	if !hasName {
		return nil, eris.Errorf("transit: shapefile %s has no station name field", p.path)
	}
	codeIdx, hasCode := attr(fieldIdx, "stn_no", "stn_code")

	var stations []model.MRTStation
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		if shape == nil {
			skipped++
			continue
		}
		name := strings.TrimSpace(strings.TrimRight(reader.Attribute(nameIdx), "\x00"))
		if name == "" {
			skipped++
			continue
		}

		box := shape.BBox()
		s := model.MRTStation{
			Name: name,
			X:    (box.MinX + box.MaxX) / 2,
			Y:    (box.MinY + box.MaxY) / 2,
		}
		if p.convert != nil {
			lat, lon, err := p.convert(ctx, s.X, s.Y)
			if err != nil {
				zap.L().Warn("skipping station after coordinate conversion failure",
					zap.String("station", name),
					zap.Error(err),
				)
				skipped++
				continue
			}
			s.Lat, s.Lon = lat, lon
		}
		if hasCode {
			code := strings.TrimSpace(strings.TrimRight(reader.Attribute(codeIdx), "\x00"))
			s.StationCode = code
			s.LineCode = lineFromStationCode(code)
		}
		stations = append(stations, s)
	}

	if skipped > 0 {
		zap.L().Debug("skipped shapefile station records",
			zap.String("path", p.path),
			zap.Int("skipped", skipped),
		)
	}
	return stations, nil
}

// lineFromStationCode extracts the line prefix from a station code such
// as "EW21" or "NS1 / EW24".
func lineFromStationCode(code string) string {
	code = strings.TrimSpace(code)
	if i := strings.IndexAny(code, "/ "); i > 0 {
		code = code[:i]
	}
	end := 0
	for end < len(code) && code[end] >= 'A' && code[end] <= 'Z' {
		end++
	}
	// Line codes are exactly two letters, optionally followed by a
	// numeric station number.
	if end != 2 {
		return ""
	}
	if rest := code[end:]; rest != "" {
		if _, err := strconv.Atoi(rest); err != nil {
			return ""
		}
	}
	return code[:2]
}
