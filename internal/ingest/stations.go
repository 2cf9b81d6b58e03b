// Package ingest refreshes the reference tables the read path queries.
package ingest

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/propscope/propscope/internal/db"
	"github.com/propscope/propscope/internal/transit"
)

var stationColumns = []string{
	"name", "building_name", "x", "y", "lat", "lon", "line_code", "station_code",
}

// LoadStations reads the station set from provider and upserts it into
// mrt_stations, creating the table on first run. Returns the number of
// rows written.
func LoadStations(ctx context.Context, pool db.Pool, provider transit.Provider) (int64, error) {
	stations, err := provider.Stations(ctx)
	if err != nil {
		return 0, err
	}
	if len(stations) == 0 {
		return 0, eris.New("ingest: provider returned no stations")
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS mrt_stations (
			name TEXT PRIMARY KEY,
			building_name TEXT NOT NULL DEFAULT '',
			x DOUBLE PRECISION NOT NULL,
			y DOUBLE PRECISION NOT NULL,
			lat DOUBLE PRECISION NOT NULL DEFAULT 0,
			lon DOUBLE PRECISION NOT NULL DEFAULT 0,
			line_code TEXT NOT NULL DEFAULT '',
			station_code TEXT NOT NULL DEFAULT ''
		)`)
	if err != nil {
		return 0, eris.Wrap(err, "ingest: create mrt_stations table")
	}

	rows := make([][]any, 0, len(stations))
	for _, s := range stations {
		rows = append(rows, []any{
			s.Name, s.BuildingName, s.X, s.Y, s.Lat, s.Lon, s.LineCode, s.StationCode,
		})
	}

	n, err := db.BulkUpsert(ctx, pool, db.UpsertConfig{
		Table:        "mrt_stations",
		Columns:      stationColumns,
		ConflictKeys: []string{"name"},
	}, rows)
	if err != nil {
		return 0, err
	}

	zap.L().Info("station reference table refreshed", zap.Int64("rows", n))
	return n, nil
}
