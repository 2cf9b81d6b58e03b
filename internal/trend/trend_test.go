package trend

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propscope/propscope/internal/model"
)

func TestDecodeMonthYear(t *testing.T) {
	tests := []struct {
		input string
		year  int
		month int
	}{
		{"0125", 2025, 1},
		{"1224", 2024, 12},
		{"0619", 2019, 6},
		{"1249", 2049, 12}, // last year of the 20xx window
		{"0150", 1950, 1},  // first year of the 19xx window
		{"0699", 1999, 6},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			year, month, err := DecodeMonthYear(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.year, year)
			assert.Equal(t, tt.month, month)
		})
	}
}

func TestDecodeMonthYearInvalid(t *testing.T) {
	for _, input := range []string{"", "125", "01255", "1325", "0025", "ab25", "01xy"} {
		t.Run(fmt.Sprintf("%q", input), func(t *testing.T) {
			_, _, err := DecodeMonthYear(input)
			assert.Error(t, err)
		})
	}
}

func TestQuarterOf(t *testing.T) {
	expected := map[int]int{
		1: 1, 2: 1, 3: 1,
		4: 2, 5: 2, 6: 2,
		7: 3, 8: 3, 9: 3,
		10: 4, 11: 4, 12: 4,
	}
	for month, quarter := range expected {
		assert.Equal(t, quarter, QuarterOf(month), "month %d", month)
	}
}

func TestTenureYear(t *testing.T) {
	year, freehold, ok := TenureYear("99 yrs lease commencing from 1995")
	require.True(t, ok)
	assert.False(t, freehold)
	assert.Equal(t, 1995, year)

	_, freehold, ok = TenureYear("Freehold")
	require.True(t, ok)
	assert.True(t, freehold)

	_, _, ok = TenureYear("N.A.")
	assert.False(t, ok)
}

func TestUnitPrice(t *testing.T) {
	// 100 sqm = 1076.4 sqft; $2M => ~$1858 psf.
	psf, ok := UnitPrice(2_000_000, 100)
	require.True(t, ok)
	assert.InDelta(t, 1858.0, psf, 1.0)

	// Below the plausible band.
	_, ok = UnitPrice(100_000, 100)
	assert.False(t, ok)

	// Above the plausible band.
	_, ok = UnitPrice(20_000_000, 100)
	assert.False(t, ok)

	// Zero area cannot produce a unit price.
	_, ok = UnitPrice(2_000_000, 0)
	assert.False(t, ok)
}

func tx(id int64, price int64, areaSqm float64, contractDate string) model.Transaction {
	return model.Transaction{ID: id, Price: price, AreaSqm: areaSqm, ContractDate: contractDate}
}

func TestQuarterlyPrices(t *testing.T) {
	txs := []model.Transaction{
		tx(1, 2_000_000, 100, "0125"), // Q1 2025
		tx(2, 2_200_000, 100, "0225"), // Q1 2025
		tx(3, 1_800_000, 100, "1224"), // Q4 2024
		tx(4, 100_000, 100, "0125"),   // dropped: psf below band
		tx(5, 2_000_000, 100, "1325"), // dropped: invalid month
		tx(6, 2_000_000, 0, "0125"),   // dropped: zero area
	}

	buckets := QuarterlyPrices(txs)
	require.Len(t, buckets, 2)

	assert.Equal(t, 2024, buckets[0].Year)
	assert.Equal(t, 4, buckets[0].Quarter)
	assert.Equal(t, "Q4 2024", buckets[0].Label)
	assert.Equal(t, 1, buckets[0].Count)

	assert.Equal(t, 2025, buckets[1].Year)
	assert.Equal(t, 1, buckets[1].Quarter)
	assert.Equal(t, 2, buckets[1].Count)
	// Average of ~1858 and ~2044 psf.
	assert.InDelta(t, 1951.0, buckets[1].Average, 1.0)
}

func TestQuarterlyPricesEmpty(t *testing.T) {
	assert.Empty(t, QuarterlyPrices(nil))
	assert.Empty(t, QuarterlyPrices([]model.Transaction{tx(1, 1, 100, "bad!")}))
}

func makeBuckets(n int) []Bucket {
	buckets := make([]Bucket, 0, n)
	year, quarter := 2020, 1
	for i := 0; i < n; i++ {
		buckets = append(buckets, Bucket{
			Year:    year,
			Quarter: quarter,
			Label:   QuarterLabel(year, quarter),
			Average: 1000 + float64(i)*10,
			Count:   1,
		})
		quarter++
		if quarter > 4 {
			quarter = 1
			year++
		}
	}
	return buckets
}

func TestSummarizeShortSeries(t *testing.T) {
	buckets := makeBuckets(8)
	s := Summarize(buckets, 0)

	assert.False(t, s.Condensed)
	assert.Equal(t, buckets, s.Buckets)
	require.NotNil(t, s.PercentChange)
	// 1000 -> 1070 over the window.
	assert.InDelta(t, 7.0, *s.PercentChange, 0.01)
}

func TestSummarizeCondensesLongSeries(t *testing.T) {
	buckets := makeBuckets(20)
	s := Summarize(buckets, 20)

	assert.True(t, s.Condensed)
	// Every 4th bucket plus the final one: indices 0, 4, 8, 12, 16, 19.
	require.Len(t, s.Buckets, 6)
	assert.Equal(t, buckets[0], s.Buckets[0])
	assert.Equal(t, buckets[4], s.Buckets[1])
	assert.Equal(t, buckets[16], s.Buckets[4])
	assert.Equal(t, buckets[19], s.Buckets[5])

	// Percent change spans the full window, not the thinned series.
	require.NotNil(t, s.PercentChange)
	assert.InDelta(t, 19.0, *s.PercentChange, 0.01)
}

func TestSummarizeTrailingWindow(t *testing.T) {
	buckets := makeBuckets(30)
	s := Summarize(buckets, 20)

	// Only the most recent 20 quarters participate.
	assert.Equal(t, buckets[10], s.Buckets[0])
	require.NotNil(t, s.PercentChange)
	// 1100 -> 1290.
	assert.InDelta(t, 17.27, *s.PercentChange, 0.01)
}

func TestSummarizeNoChangeOnSingleBucket(t *testing.T) {
	s := Summarize(makeBuckets(1), 20)
	assert.Nil(t, s.PercentChange)
	assert.Len(t, s.Buckets, 1)
}

func TestLatestRentals(t *testing.T) {
	rentals := []model.Rental{
		{ID: 1, MonthlyRent: 4000, LeaseDate: "0125"},
		{ID: 2, MonthlyRent: 5000, LeaseDate: "0325"},
		{ID: 3, MonthlyRent: 3500, LeaseDate: "1124"},
		{ID: 4, MonthlyRent: 9999, LeaseDate: "oops"},
	}

	snap, ok := LatestRentals(rentals)
	require.True(t, ok)
	assert.Equal(t, 2025, snap.Year)
	assert.Equal(t, 1, snap.Quarter)
	assert.Equal(t, 2, snap.Count)
	assert.InDelta(t, 4500.0, snap.AverageRent, 0.001)
}

func TestLatestRentalsEmpty(t *testing.T) {
	_, ok := LatestRentals(nil)
	assert.False(t, ok)
}
