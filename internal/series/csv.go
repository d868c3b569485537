package series

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Columns is the header of a series file written by this module.
var Columns = []string{
	"timestamp",
	"period_key",
	"source_id",
	"source_address",
	"identity",
	"counter_total",
	"period_delta",
}

// Files produced by the earlier collector script use these column names.
// They are still read, and appended to in their own layout.
var legacyColumns = map[string]string{
	"collection_date":  "timestamp",
	"month":            "period_key",
	"name":             "source_id",
	"ip":               "source_address",
	"serie":            "identity",
	"total_pages":      "counter_total",
	"pages_this_month": "period_delta",
}

const legacyTimeLayout = "2006-01-02 15:04:05"

// layout maps the columns of one file to Reading fields.
type layout struct {
	header []string
	fields []string
	legacy bool
}

func canonicalLayout() layout {
	return layout{header: Columns, fields: Columns}
}

func parseLayout(header []string) (layout, error) {
	l := layout{header: header, fields: make([]string, len(header))}
	seen := make(map[string]bool, len(header))
	for i, col := range header {
		name := strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		if canonical, ok := legacyColumns[name]; ok {
			name = canonical
			l.legacy = true
		}
		if !isColumn(name) {
			continue
		}
		l.fields[i] = name
		seen[name] = true
	}
	if !seen["timestamp"] || !seen["counter_total"] {
		return layout{}, fmt.Errorf("unrecognised header %q", strings.Join(header, ","))
	}
	return l, nil
}

func isColumn(name string) bool {
	for _, c := range Columns {
		if c == name {
			return true
		}
	}
	return false
}

func (l layout) encode(r Reading) []string {
	rec := make([]string, len(l.fields))
	for i, field := range l.fields {
		switch field {
		case "timestamp":
			if l.legacy {
				rec[i] = r.Timestamp.In(time.Local).Format(legacyTimeLayout)
			} else {
				rec[i] = r.Timestamp.UTC().Format(time.RFC3339Nano)
			}
		case "period_key":
			rec[i] = string(r.PeriodKey)
		case "source_id":
			rec[i] = r.SourceID
		case "source_address":
			rec[i] = r.SourceAddress
		case "identity":
			rec[i] = r.Identity
		case "counter_total":
			if r.CounterTotal != nil {
				rec[i] = strconv.FormatInt(*r.CounterTotal, 10)
			}
		case "period_delta":
			rec[i] = strconv.FormatInt(r.PeriodDelta, 10)
		}
	}
	return rec
}

func (l layout) decode(rec []string) (Reading, error) {
	var r Reading
	for i, field := range l.fields {
		if field == "" || i >= len(rec) {
			continue
		}
		value := strings.TrimSpace(rec[i])
		switch field {
		case "timestamp":
			ts, err := parseTimestamp(value)
			if err != nil {
				return Reading{}, err
			}
			r.Timestamp = ts
		case "period_key":
			r.PeriodKey = PeriodKey(value)
		case "source_id":
			r.SourceID = value
		case "source_address":
			r.SourceAddress = value
		case "identity":
			r.Identity = value
		case "counter_total":
			if missing(value) {
				continue
			}
			v, err := parseCount(value)
			if err != nil {
				return Reading{}, fmt.Errorf("counter_total: %w", err)
			}
			r.CounterTotal = &v
		case "period_delta":
			if missing(value) {
				continue
			}
			v, err := parseCount(value)
			if err != nil {
				return Reading{}, fmt.Errorf("period_delta: %w", err)
			}
			r.PeriodDelta = v
		}
	}
	return r, nil
}

func parseTimestamp(value string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	ts, err := time.ParseInLocation(legacyTimeLayout, value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
	}
	return ts, nil
}

func missing(value string) bool {
	return value == "" || strings.EqualFold(value, "nan")
}

// parseCount accepts integers and the float renderings ("1200.0") that
// tabular tools write for integer columns with missing cells.
func parseCount(value string) (int64, error) {
	if v, err := strconv.ParseInt(value, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid count %q", value)
	}
	return int64(f), nil
}
