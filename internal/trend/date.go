// Package trend produces time-bucketed aggregates over transaction and
// rental histories: quarterly averages, trailing-window summaries, and a
// most-recent-quarter rental snapshot.
package trend

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// DecodeMonthYear decodes the source feed's 4-character MMYY contract
// date. Two-digit years below 50 map to 2000+Y, otherwise 1900+Y. The
// window breaks for years >= 2050; that boundary is inherited from the
// upstream feed's encoding and is deliberately not papered over here.
func DecodeMonthYear(s string) (year, month int, err error) {
	if len(s) != 4 {
		return 0, 0, eris.Errorf("trend: malformed month-year %q", s)
	}
	mm, err := strconv.Atoi(s[:2])
	if err != nil {
		return 0, 0, eris.Wrapf(err, "trend: parse month in %q", s)
	}
	yy, err := strconv.Atoi(s[2:])
	if err != nil {
		return 0, 0, eris.Wrapf(err, "trend: parse year in %q", s)
	}
	if mm < 1 || mm > 12 {
		return 0, 0, eris.Errorf("trend: month out of range in %q", s)
	}
	if yy < 50 {
		year = 2000 + yy
	} else {
		year = 1900 + yy
	}
	return year, mm, nil
}

// QuarterOf maps a month (1-12) to its quarter (1-4).
func QuarterOf(month int) int {
	return (month + 2) / 3
}

// QuarterLabel formats a (year, quarter) pair for display, e.g. "Q1 2025".
func QuarterLabel(year, quarter int) string {
	return fmt.Sprintf("Q%d %d", quarter, year)
}

// TenureYear extracts the lease commencement year from a tenure string.
// Returns (0, true) for freehold tenure and ok=false when the string
// carries no trailing 4-digit year.
func TenureYear(tenure string) (year int, freehold bool, ok bool) {
	t := strings.TrimSpace(tenure)
	if strings.EqualFold(t, "Freehold") {
		return 0, true, true
	}
	if len(t) < 4 {
		return 0, false, false
	}
	y, err := strconv.Atoi(t[len(t)-4:])
	if err != nil || y < 1800 || y > 2200 {
		return 0, false, false
	}
	return y, false, true
}
