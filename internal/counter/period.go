package counter

import (
	"fmt"
	"strings"
	"time"

	"github.com/02loveslollipop/printer-page-counter/internal/series"
)

// Bucketer assigns a period key to a collection instant. It must be
// deterministic so that every reading lands in exactly one period.
type Bucketer interface {
	Key(t time.Time) series.PeriodKey
}

// Monthly buckets by calendar month ("2006-01") in Location (UTC when nil).
type Monthly struct {
	Location *time.Location
}

// Key implements Bucketer.
func (m Monthly) Key(t time.Time) series.PeriodKey {
	return series.PeriodKey(t.In(locationOrUTC(m.Location)).Format("2006-01"))
}

// Daily buckets by calendar day ("2006-01-02") in Location (UTC when nil).
type Daily struct {
	Location *time.Location
}

// Key implements Bucketer.
func (d Daily) Key(t time.Time) series.PeriodKey {
	return series.PeriodKey(t.In(locationOrUTC(d.Location)).Format("2006-01-02"))
}

func locationOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

// ParseBucketer maps a granularity name to a Bucketer.
func ParseBucketer(granularity string, loc *time.Location) (Bucketer, error) {
	switch strings.ToLower(strings.TrimSpace(granularity)) {
	case "", "month", "monthly":
		return Monthly{Location: loc}, nil
	case "day", "daily":
		return Daily{Location: loc}, nil
	default:
		return nil, fmt.Errorf("unknown period granularity %q", granularity)
	}
}
