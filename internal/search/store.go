package search

import (
	"context"

	"github.com/propscope/propscope/internal/model"
)

// Store is the read path used by the searcher. Implementations must
// return candidates ordered nearest-first and cap at limit.
type Store interface {
	// PropertiesWithin returns properties inside the circle around
	// (cx, cy) that satisfy conds, ordered by squared distance then id.
	PropertiesWithin(ctx context.Context, cx, cy, radius float64, conds []Condition, limit int) ([]model.Property, error)

	// TransactionsFor returns all sale records under a property.
	TransactionsFor(ctx context.Context, propertyID int64) ([]model.Transaction, error)

	// RentalsFor returns all rental records under a property.
	RentalsFor(ctx context.Context, propertyID int64) ([]model.Rental, error)
}
