// Package aggregate provides read-only projections of reading series grouped
// by period. Nothing here mutates a series.
package aggregate

import (
	"sort"

	"github.com/02loveslollipop/printer-page-counter/internal/series"
)

// PeriodUsage is the summed delta of one period of a series.
type PeriodUsage struct {
	Period   series.PeriodKey `json:"period"`
	Pages    int64            `json:"pages"`
	Readings int              `json:"readings"`
}

// LatestPeriod returns the bucket of the last reading.
func LatestPeriod(s []series.Reading) (series.PeriodKey, bool) {
	if len(s) == 0 {
		return "", false
	}
	return s[len(s)-1].PeriodKey, true
}

// ReadingsIn returns the readings of period p in series order.
func ReadingsIn(s []series.Reading, p series.PeriodKey) []series.Reading {
	out := make([]series.Reading, 0)
	for _, r := range s {
		if r.PeriodKey == p {
			out = append(out, r)
		}
	}
	return out
}

// LatestTotal returns the counter total of the last reading.
func LatestTotal(s []series.Reading) (int64, bool) {
	if len(s) == 0 || s[len(s)-1].CounterTotal == nil {
		return 0, false
	}
	return *s[len(s)-1].CounterTotal, true
}

// SumDelta sums period_delta over the readings of period p.
func SumDelta(s []series.Reading, p series.PeriodKey) int64 {
	var sum int64
	for _, r := range s {
		if r.PeriodKey == p {
			sum += r.PeriodDelta
		}
	}
	return sum
}

// Periods returns the distinct periods of s in first-seen order.
func Periods(s []series.Reading) []series.PeriodKey {
	seen := make(map[series.PeriodKey]bool)
	out := make([]series.PeriodKey, 0)
	for _, r := range s {
		if !seen[r.PeriodKey] {
			seen[r.PeriodKey] = true
			out = append(out, r.PeriodKey)
		}
	}
	return out
}

// Usage returns SumDelta for every period of s.
func Usage(s []series.Reading) []PeriodUsage {
	idx := make(map[series.PeriodKey]int)
	out := make([]PeriodUsage, 0)
	for _, r := range s {
		i, ok := idx[r.PeriodKey]
		if !ok {
			i = len(out)
			idx[r.PeriodKey] = i
			out = append(out, PeriodUsage{Period: r.PeriodKey})
		}
		out[i].Pages += r.PeriodDelta
		out[i].Readings++
	}
	return out
}

// Fleet holds the series of several sources keyed by source id.
type Fleet map[string][]series.Reading

// LatestPeriod returns the greatest LatestPeriod across the fleet. Period
// keys sort chronologically as strings.
func (f Fleet) LatestPeriod() (series.PeriodKey, bool) {
	var (
		latest series.PeriodKey
		found  bool
	)
	for _, s := range f {
		if p, ok := LatestPeriod(s); ok && (!found || p > latest) {
			latest, found = p, true
		}
	}
	return latest, found
}

// LatestPeriodReadings returns the fleet's latest period and every reading
// that falls in it, ordered by timestamp then source id.
func (f Fleet) LatestPeriodReadings() (series.PeriodKey, []series.Reading) {
	p, ok := f.LatestPeriod()
	if !ok {
		return "", []series.Reading{}
	}
	rows := make([]series.Reading, 0)
	for _, s := range f {
		rows = append(rows, ReadingsIn(s, p)...)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Timestamp.Equal(rows[j].Timestamp) {
			return rows[i].Timestamp.Before(rows[j].Timestamp)
		}
		return rows[i].SourceID < rows[j].SourceID
	})
	return p, rows
}

// LatestTotals maps each source with a known total to that total.
func (f Fleet) LatestTotals() map[string]int64 {
	out := make(map[string]int64, len(f))
	for id, s := range f {
		if total, ok := LatestTotal(s); ok {
			out[id] = total
		}
	}
	return out
}
