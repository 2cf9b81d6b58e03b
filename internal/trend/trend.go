package trend

import (
	"sort"

	"go.uber.org/zap"

	"github.com/propscope/propscope/internal/model"
)

// SqmToSqft converts square meters to square feet.
const SqmToSqft = 10.764

// Unit prices outside this band (SGD per square foot) are treated as
// data-entry errors and excluded from aggregation.
const (
	MinUnitPSF = 200
	MaxUnitPSF = 10000
)

// WindowQuarters is the default trailing window for price trends.
const WindowQuarters = 20

// CondenseThreshold is the bucket count above which a trend series is
// thinned for display.
const CondenseThreshold = 12

// Bucket is one quarter's aggregate over a value series.
type Bucket struct {
	Year    int     `json:"year"`
	Quarter int     `json:"quarter"`
	Label   string  `json:"label"`
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// Summary is a trailing-window price trend over a property's transactions.
type Summary struct {
	Buckets []Bucket `json:"buckets"`
	// PercentChange compares the earliest and latest quarters of the full
	// window, including quarters thinned out of Buckets. Nil when the
	// window has fewer than two quarters or the earliest average is zero.
	PercentChange *float64 `json:"percent_change,omitempty"`
	Condensed     bool     `json:"condensed"`
}

// RentalSnapshot is the most recent quarter's rental market for a property.
type RentalSnapshot struct {
	Year        int     `json:"year"`
	Quarter     int     `json:"quarter"`
	Label       string  `json:"label"`
	AverageRent float64 `json:"average_rent"`
	Count       int     `json:"count"`
}

// UnitPrice returns the SGD-per-square-foot price of a transaction, with
// ok=false when the record is implausible and must be excluded.
func UnitPrice(price int64, areaSqm float64) (float64, bool) {
	if areaSqm <= 0 {
		return 0, false
	}
	psf := float64(price) / (areaSqm * SqmToSqft)
	if psf < MinUnitPSF || psf > MaxUnitPSF {
		return 0, false
	}
	return psf, true
}

// QuarterlyPrices buckets transactions into per-quarter average unit
// prices, sorted chronologically. Records with undecodable dates or
// implausible unit prices are dropped and logged, never surfaced.
func QuarterlyPrices(txs []model.Transaction) []Bucket {
	type agg struct {
		sum   float64
		count int
	}
	byQuarter := make(map[[2]int]*agg)

	for _, tx := range txs {
		year, month, err := DecodeMonthYear(tx.ContractDate)
		if err != nil {
			zap.L().Debug("dropping transaction with undecodable contract date",
				zap.Int64("transaction_id", tx.ID),
				zap.String("contract_date", tx.ContractDate),
			)
			continue
		}
		psf, ok := UnitPrice(tx.Price, tx.AreaSqm)
		if !ok {
			zap.L().Debug("dropping transaction with implausible unit price",
				zap.Int64("transaction_id", tx.ID),
				zap.Int64("price", tx.Price),
				zap.Float64("area_sqm", tx.AreaSqm),
			)
			continue
		}
		key := [2]int{year, QuarterOf(month)}
		a, exists := byQuarter[key]
		if !exists {
			a = &agg{}
			byQuarter[key] = a
		}
		a.sum += psf
		a.count++
	}

	return sortBuckets(byQuarter, func(a *agg) (float64, int) {
		return a.sum / float64(a.count), a.count
	})
}

// QuarterlyRents buckets rentals into per-quarter average monthly rents,
// sorted chronologically. Rents are taken at face value; the plausibility
// band applies to sale unit prices only.
func QuarterlyRents(rentals []model.Rental) []Bucket {
	type agg struct {
		sum   float64
		count int
	}
	byQuarter := make(map[[2]int]*agg)

	for _, r := range rentals {
		year, month, err := DecodeMonthYear(r.LeaseDate)
		if err != nil {
			zap.L().Debug("dropping rental with undecodable lease date",
				zap.Int64("rental_id", r.ID),
				zap.String("lease_date", r.LeaseDate),
			)
			continue
		}
		key := [2]int{year, QuarterOf(month)}
		a, exists := byQuarter[key]
		if !exists {
			a = &agg{}
			byQuarter[key] = a
		}
		a.sum += float64(r.MonthlyRent)
		a.count++
	}

	return sortBuckets(byQuarter, func(a *agg) (float64, int) {
		return a.sum / float64(a.count), a.count
	})
}

func sortBuckets[A any](byQuarter map[[2]int]*A, avg func(*A) (float64, int)) []Bucket {
	buckets := make([]Bucket, 0, len(byQuarter))
	for key, a := range byQuarter {
		average, count := avg(a)
		buckets = append(buckets, Bucket{
			Year:    key[0],
			Quarter: key[1],
			Label:   QuarterLabel(key[0], key[1]),
			Average: average,
			Count:   count,
		})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Year != buckets[j].Year {
			return buckets[i].Year < buckets[j].Year
		}
		return buckets[i].Quarter < buckets[j].Quarter
	})
	return buckets
}

// Summarize produces a trailing-window summary over chronologically
// sorted buckets. The window keeps the most recent windowQuarters
// buckets (default WindowQuarters when <= 0). Series longer than
// CondenseThreshold are thinned to every fourth bucket plus the final
// one; percent change always spans the full window.
func Summarize(buckets []Bucket, windowQuarters int) Summary {
	if windowQuarters <= 0 {
		windowQuarters = WindowQuarters
	}

	window := buckets
	if len(window) > windowQuarters {
		window = window[len(window)-windowQuarters:]
	}

	var pct *float64
	if len(window) >= 2 && window[0].Average != 0 {
		change := (window[len(window)-1].Average - window[0].Average) / window[0].Average * 100
		pct = &change
	}

	out := window
	condensed := false
	if len(window) > CondenseThreshold {
		condensed = true
		out = make([]Bucket, 0, len(window)/4+2)
		for i := 0; i < len(window); i += 4 {
			out = append(out, window[i])
		}
		if last := window[len(window)-1]; len(out) == 0 || out[len(out)-1] != last {
			out = append(out, last)
		}
	}

	return Summary{Buckets: out, PercentChange: pct, Condensed: condensed}
}

// LatestRentals returns the most recent quarter's rental snapshot, with
// ok=false when no rental decodes to a valid quarter.
func LatestRentals(rentals []model.Rental) (RentalSnapshot, bool) {
	buckets := QuarterlyRents(rentals)
	if len(buckets) == 0 {
		return RentalSnapshot{}, false
	}
	latest := buckets[len(buckets)-1]
	return RentalSnapshot{
		Year:        latest.Year,
		Quarter:     latest.Quarter,
		Label:       latest.Label,
		AverageRent: latest.Average,
		Count:       latest.Count,
	}, true
}
