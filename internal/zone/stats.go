package zone

import (
	"math"
	"sort"
)

// CategoryCount is one land-use category's share of a zone set.
type CategoryCount struct {
	LandUse string  `json:"land_use"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// MixStats summarizes the land-use mix of a zone set.
type MixStats struct {
	Total      int             `json:"total"`
	Categories []CategoryCount `json:"categories"`
	// Diversity is Shannon entropy normalized by ln(K) for K observed
	// categories: 0 for a single category, approaching 1 for an even
	// mix.
	Diversity float64 `json:"diversity"`
}

// ComputeMix aggregates zones into per-category counts and a normalized
// diversity index. Categories come back largest-first, ties by name.
func ComputeMix(zones []Zone) MixStats {
	counts := make(map[string]int)
	for _, z := range zones {
		counts[z.LandUse]++
	}

	total := len(zones)
	stats := MixStats{Total: total}
	if total == 0 {
		return stats
	}

	for lu, n := range counts {
		stats.Categories = append(stats.Categories, CategoryCount{
			LandUse: lu,
			Count:   n,
			Percent: math.Round(float64(n) / float64(total) * 100),
		})
	}
	sort.Slice(stats.Categories, func(i, j int) bool {
		if stats.Categories[i].Count != stats.Categories[j].Count {
			return stats.Categories[i].Count > stats.Categories[j].Count
		}
		return stats.Categories[i].LandUse < stats.Categories[j].LandUse
	})

	if len(counts) > 1 {
		var entropy float64
		for _, n := range counts {
			p := float64(n) / float64(total)
			entropy -= p * math.Log(p)
		}
		stats.Diversity = entropy / math.Log(float64(len(counts)))
	}
	return stats
}
