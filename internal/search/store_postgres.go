package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/propscope/propscope/internal/db"
	"github.com/propscope/propscope/internal/model"
)

// PostgresStore implements Store over the relational schema.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a PostgresStore backed by pool.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// PropertiesWithin runs the radius query. The bounding-box predicates
// prune on the (x, y) index before the exact circle check; coordinates
// are SVY21 planar meters, so the circle is plain squared Euclidean
// distance.
func (s *PostgresStore) PropertiesWithin(ctx context.Context, cx, cy, radius float64, conds []Condition, limit int) ([]model.Property, error) {
	// Fixed args: $1=cx, $2=cy, $3=radius, then filter args, then limit.
	fc, err := buildFilters(conds, 3)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(`SELECT p.id, p.project, p.street, p.x, p.y, p.market_segment, p.district
FROM properties p
WHERE p.x BETWEEN $1 - $3 AND $1 + $3
  AND p.y BETWEEN $2 - $3 AND $2 + $3
  AND (p.x - $1) * (p.x - $1) + (p.y - $2) * (p.y - $2) <= $3 * $3`)

	for _, pred := range fc.property {
		b.WriteString("\n  AND ")
		b.WriteString(pred)
	}
	if len(fc.transaction) > 0 {
		b.WriteString("\n  AND EXISTS (SELECT 1 FROM transactions t WHERE t.property_id = p.id AND ")
		b.WriteString(strings.Join(fc.transaction, " AND "))
		b.WriteString(")")
	}
	if len(fc.rental) > 0 {
		b.WriteString("\n  AND EXISTS (SELECT 1 FROM rentals r WHERE r.property_id = p.id AND ")
		b.WriteString(strings.Join(fc.rental, " AND "))
		b.WriteString(")")
	}

	limitArg := 3 + len(fc.args) + 1
	b.WriteString(fmt.Sprintf("\nORDER BY (p.x - $1) * (p.x - $1) + (p.y - $2) * (p.y - $2) ASC, p.id ASC\nLIMIT $%d", limitArg))

	args := make([]any, 0, limitArg)
	args = append(args, cx, cy, radius)
	args = append(args, fc.args...)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, eris.Wrap(err, "search: query properties within radius")
	}
	defer rows.Close()

	var props []model.Property
	for rows.Next() {
		var p model.Property
		if err := rows.Scan(&p.ID, &p.Project, &p.Street, &p.X, &p.Y, &p.MarketSegment, &p.District); err != nil {
			return nil, eris.Wrap(err, "search: scan property row")
		}
		props = append(props, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "search: iterate property rows")
	}
	return props, nil
}

// TransactionsFor returns all sale records under a property, ordered by
// id for determinism. Chronological ordering happens at aggregation
// time because the raw contract date encoding is not sortable.
func (s *PostgresStore) TransactionsFor(ctx context.Context, propertyID int64) ([]model.Transaction, error) {
	sql := `
		SELECT id, property_id, price, area_sqm, contract_date,
		       property_type, tenure, sale_type
		FROM transactions
		WHERE property_id = $1
		ORDER BY id
	`
	rows, err := s.pool.Query(ctx, sql, propertyID)
	if err != nil {
		return nil, eris.Wrap(err, "search: query transactions")
	}
	defer rows.Close()

	var txs []model.Transaction
	for rows.Next() {
		var tx model.Transaction
		if err := rows.Scan(
			&tx.ID, &tx.PropertyID, &tx.Price, &tx.AreaSqm, &tx.ContractDate,
			&tx.PropertyType, &tx.Tenure, &tx.SaleType,
		); err != nil {
			return nil, eris.Wrap(err, "search: scan transaction row")
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "search: iterate transaction rows")
	}
	return txs, nil
}

// RentalsFor returns all rental records under a property.
func (s *PostgresStore) RentalsFor(ctx context.Context, propertyID int64) ([]model.Rental, error) {
	sql := `
		SELECT id, property_id, monthly_rent, bedrooms, lease_date, area_range
		FROM rentals
		WHERE property_id = $1
		ORDER BY id
	`
	rows, err := s.pool.Query(ctx, sql, propertyID)
	if err != nil {
		return nil, eris.Wrap(err, "search: query rentals")
	}
	defer rows.Close()

	var rentals []model.Rental
	for rows.Next() {
		var r model.Rental
		if err := rows.Scan(&r.ID, &r.PropertyID, &r.MonthlyRent, &r.Bedrooms, &r.LeaseDate, &r.AreaRange); err != nil {
			return nil, eris.Wrap(err, "search: scan rental row")
		}
		rentals = append(rentals, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "search: iterate rental rows")
	}
	return rentals, nil
}
