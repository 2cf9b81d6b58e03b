// Package model defines the core domain entities shared across the
// search, trend, transit, and zone subsystems.
package model

import "math"

// Market segment bands used by URA for private residential property.
const (
	SegmentCCR = "CCR" // Core Central Region
	SegmentRCR = "RCR" // Rest of Central Region
	SegmentOCR = "OCR" // Outside Central Region
)

// Sale type codes as recorded in the transactions table.
const (
	SaleTypeNew    = "1"
	SaleTypeSub    = "2"
	SaleTypeResale = "3"
)

// Property is a private residential project location. Coordinates are
// SVY21 planar (meters). A property is unique by (Project, Street).
type Property struct {
	ID            int64   `json:"id"`
	Project       string  `json:"project"`
	Street        string  `json:"street"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	MarketSegment string  `json:"market_segment"`
	District      string  `json:"district"`
}

// Transaction is a single sale record under a property. ContractDate is
// the raw 4-character MMYY encoding from the source feed. Immutable once
// ingested.
type Transaction struct {
	ID           int64   `json:"id"`
	PropertyID   int64   `json:"property_id"`
	Price        int64   `json:"price"`
	AreaSqm      float64 `json:"area_sqm"`
	ContractDate string  `json:"contract_date"`
	PropertyType string  `json:"property_type"`
	Tenure       string  `json:"tenure"`
	SaleType     string  `json:"sale_type"`
}

// Rental is a monthly rental contract under a property. LeaseDate uses
// the same MMYY encoding as Transaction.ContractDate.
type Rental struct {
	ID          int64  `json:"id"`
	PropertyID  int64  `json:"property_id"`
	MonthlyRent int64  `json:"monthly_rent"`
	Bedrooms    *int   `json:"bedrooms,omitempty"`
	LeaseDate   string `json:"lease_date"`
	AreaRange   string `json:"area_range,omitempty"`
}

// MRTStation is reference data for a train station or station exit.
// Name carries the raw display name, which may encode an exit suffix or
// a line code; the transit package derives the canonical base name.
type MRTStation struct {
	Name         string  `json:"name"`
	BuildingName string  `json:"building_name,omitempty"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	LineCode     string  `json:"line_code,omitempty"`
	StationCode  string  `json:"station_code,omitempty"`
}

// SearchCenter is a caller-supplied origin for multi-center searches.
// It exists only for the duration of one query.
type SearchCenter struct {
	Name   string  `json:"name"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// Point is a planar SVY21 coordinate pair in meters.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the planar Euclidean distance between two points.
// SVY21 is a local projection, so this is accurate at island scale.
func Distance(ax, ay, bx, by float64) float64 {
	dx := ax - bx
	dy := ay - by
	return math.Sqrt(dx*dx + dy*dy)
}
