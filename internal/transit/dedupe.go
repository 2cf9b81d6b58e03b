// Package transit finds train stations near a point, collapsing the
// per-exit records the reference data carries into one station each and
// optionally attaching travel times from an external router.
package transit

import (
	"regexp"
	"strings"

	"github.com/propscope/propscope/internal/model"
)

// StationDistance pairs a station record with its distance from the
// query point.
type StationDistance struct {
	Station  model.MRTStation `json:"station"`
	Distance float64          `json:"distance"`
}

// lineCodeRe matches parenthesized line codes such as "(CC24)" or
// "(EW8 / CC9)".
var lineCodeRe = regexp.MustCompile(`\s*\(\s*[A-Z]{2}\d*(?:\s*/\s*[A-Z]{2}\d*)*\s*\)`)

// exitRe matches an exit suffix such as "EXIT A" or "EXIT 3".
var exitRe = regexp.MustCompile(`\s+EXIT\s+([A-Z]?\d*)\s*$`)

// CanonicalName reduces a raw station record name to its base station
// name: line codes, exit suffixes, and the MRT/LRT STATION suffix all
// stripped. "BEDOK MRT STATION (EW5) EXIT B" and "BEDOK MRT STATION"
// collapse to the same key.
func CanonicalName(name string) string {
	n := strings.ToUpper(strings.TrimSpace(name))
	n = lineCodeRe.ReplaceAllString(n, "")
	n = exitRe.ReplaceAllString(n, "")
	for _, suffix := range []string{" MRT STATION", " LRT STATION", " STATION"} {
		if strings.HasSuffix(n, suffix) {
			n = strings.TrimSuffix(n, suffix)
			break
		}
	}
	return strings.TrimSpace(n)
}

// recordPriority ranks duplicate records for one station. Lower wins:
//
//	1: bare station name
//	2: station name with a line code
//	3: exit A
//	4: any other exit
//	5: anything that does not look like a station record
func recordPriority(name string) int {
	n := strings.ToUpper(strings.TrimSpace(name))
	if !strings.Contains(n, "STATION") {
		return 5
	}
	exit := exitRe.FindStringSubmatch(n)
	hasCode := lineCodeRe.MatchString(n)
	switch {
	case exit == nil && !hasCode:
		return 1
	case exit == nil:
		return 2
	case exit[1] == "A":
		return 3
	default:
		return 4
	}
}

// Dedupe collapses records sharing a canonical name, keeping the best
// record per station by priority, then by distance. Input order is
// otherwise preserved for the survivors.
func Dedupe(records []StationDistance) []StationDistance {
	type kept struct {
		idx      int
		priority int
	}
	best := make(map[string]kept)

	for i, rec := range records {
		key := CanonicalName(rec.Station.Name)
		prio := recordPriority(rec.Station.Name)
		cur, seen := best[key]
		if !seen ||
			prio < cur.priority ||
			(prio == cur.priority && rec.Distance < records[cur.idx].Distance) {
			best[key] = kept{idx: i, priority: prio}
		}
	}

	out := make([]StationDistance, 0, len(best))
	for i, rec := range records {
		key := CanonicalName(rec.Station.Name)
		if best[key].idx != i {
			continue
		}
		rec.Station.Name = key
		out = append(out, rec)
	}
	return out
}
