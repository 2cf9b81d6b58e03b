package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropertiesWithin_BaseQuery(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM properties p`).
		WithArgs(28000.0, 38000.0, 1000.0, 11).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "project", "street", "x", "y", "market_segment", "district",
		}).
			AddRow(int64(1), "AMBER PARK", "AMBER GARDENS", 28100.0, 38050.0, "RCR", "15").
			AddRow(int64(2), "THE SEAFRONT", "MEYER ROAD", 28400.0, 38300.0, "RCR", "15"))

	store := NewPostgresStore(mock)
	props, err := store.PropertiesWithin(context.Background(), 28000, 38000, 1000, nil, 11)
	require.NoError(t, err)

	require.Len(t, props, 2)
	assert.Equal(t, "AMBER PARK", props[0].Project)
	assert.Equal(t, int64(2), props[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPropertiesWithin_FilteredQuery(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// Segment predicate on the property, price bounds inside a
	// transactions EXISTS, limit as the final placeholder.
	mock.ExpectQuery(`AND EXISTS \(SELECT 1 FROM transactions t WHERE t\.property_id = p\.id AND t\.price >= \$5 AND t\.price <= \$6\)`).
		WithArgs(28000.0, 38000.0, 1000.0, "RCR", 1_000_000, 3_000_000, 6).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "project", "street", "x", "y", "market_segment", "district",
		}).AddRow(int64(1), "AMBER PARK", "AMBER GARDENS", 28100.0, 38050.0, "RCR", "15"))

	store := NewPostgresStore(mock)
	props, err := store.PropertiesWithin(context.Background(), 28000, 38000, 1000, []Condition{
		{Field: FieldMarketSegment, Op: OpEq, Value: "RCR"},
		{Field: FieldPrice, Op: OpGte, Value: 1_000_000},
		{Field: FieldPrice, Op: OpLte, Value: 3_000_000},
	}, 6)
	require.NoError(t, err)

	require.Len(t, props, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPropertiesWithin_InvalidFilterSkipsDB(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)
	_, err = store.PropertiesWithin(context.Background(), 28000, 38000, 1000, []Condition{
		{Field: "geom", Op: OpEq, Value: "x"},
	}, 10)
	requireInvalidQuery(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPropertiesWithin_DBError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM properties p`).
		WithArgs(28000.0, 38000.0, 1000.0, 11).
		WillReturnError(fmt.Errorf("connection refused"))

	store := NewPostgresStore(mock)
	_, err = store.PropertiesWithin(context.Background(), 28000, 38000, 1000, nil, 11)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query properties within radius")
}

func TestTransactionsFor(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM transactions`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "property_id", "price", "area_sqm", "contract_date",
			"property_type", "tenure", "sale_type",
		}).AddRow(int64(1), int64(7), int64(2_000_000), 100.0, "0125", "Condominium", "Freehold", "3"))

	store := NewPostgresStore(mock)
	txs, err := store.TransactionsFor(context.Background(), 7)
	require.NoError(t, err)

	require.Len(t, txs, 1)
	assert.Equal(t, "0125", txs[0].ContractDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRentalsFor(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	bedrooms := 3
	mock.ExpectQuery(`FROM rentals`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "property_id", "monthly_rent", "bedrooms", "lease_date", "area_range",
		}).AddRow(int64(1), int64(7), int64(4500), &bedrooms, "0325", "100-110"))

	store := NewPostgresStore(mock)
	rentals, err := store.RentalsFor(context.Background(), 7)
	require.NoError(t, err)

	require.Len(t, rentals, 1)
	require.NotNil(t, rentals[0].Bedrooms)
	assert.Equal(t, 3, *rentals[0].Bedrooms)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdhocQueryRejectedBeforeDB(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = AdhocQuery(context.Background(), mock, "DELETE FROM properties")
	requireInvalidQuery(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdhocQueryReturnsRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT project, count`).
		WillReturnRows(pgxmock.NewRows([]string{"project", "count"}).
			AddRow("AMBER PARK", int64(12)))

	rows, err := AdhocQuery(context.Background(), mock, "SELECT project, count(*) FROM transactions GROUP BY project")
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, "AMBER PARK", rows[0]["project"])
	assert.Equal(t, int64(12), rows[0]["count"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
