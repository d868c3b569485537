// Package counter turns raw cumulative counter readings into period deltas.
//
// Reconcile is pure: it looks only at the new raw value and the last
// persisted reading for the same source, so a reading's delta never depends
// on earlier history.
package counter

import (
	"time"

	"github.com/02loveslollipop/printer-page-counter/internal/series"
)

// Outcome classifies a reconciliation.
type Outcome int

const (
	// OutcomeSkipped means the raw value was absent and nothing must be
	// appended.
	OutcomeSkipped Outcome = iota
	// OutcomeBaseline means there was no usable prior total; delta is 0.
	OutcomeBaseline
	// OutcomeDelta means delta is the non-negative difference to the prior.
	OutcomeDelta
	// OutcomeReset means the counter went backwards; delta is 0 and the raw
	// value becomes the new baseline.
	OutcomeReset
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeBaseline:
		return "baseline"
	case OutcomeDelta:
		return "delta"
	case OutcomeReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Reconciler computes readings using a bucketing policy.
type Reconciler struct {
	Bucketer Bucketer
}

// New returns a Reconciler using b, or monthly UTC buckets when b is nil.
func New(b Bucketer) Reconciler {
	if b == nil {
		b = Monthly{}
	}
	return Reconciler{Bucketer: b}
}

// Reconcile uses monthly UTC buckets.
func Reconcile(prior *series.Reading, raw *int64, now time.Time) (*series.Reading, Outcome) {
	return New(nil).Reconcile(prior, raw, now)
}

// Reconcile derives the reading to append for a new raw counter value.
//
// A nil raw value yields no reading. With no prior total the reading is a
// baseline with delta 0. A counter that went backwards (device replaced or
// reset) also yields delta 0: the pages printed between the two readings
// cannot be recovered from the counter, and usage is undercounted rather
// than invented. The caller fills in source id, address and identity.
func (r Reconciler) Reconcile(prior *series.Reading, raw *int64, now time.Time) (*series.Reading, Outcome) {
	if raw == nil {
		return nil, OutcomeSkipped
	}

	bucketer := r.Bucketer
	if bucketer == nil {
		bucketer = Monthly{}
	}

	out := &series.Reading{
		Timestamp:    now,
		PeriodKey:    bucketer.Key(now),
		CounterTotal: series.Int64(*raw),
	}

	if prior == nil || prior.CounterTotal == nil {
		return out, OutcomeBaseline
	}

	delta := *raw - *prior.CounterTotal
	if delta < 0 {
		return out, OutcomeReset
	}
	out.PeriodDelta = delta
	return out, OutcomeDelta
}
