package cycle

import (
	"errors"
	"time"

	"github.com/02loveslollipop/printer-page-counter/internal/counter"
	"github.com/02loveslollipop/printer-page-counter/internal/series"
)

// Status is what happened to one source during a cycle.
type Status string

const (
	StatusAppended         Status = "appended"
	StatusDryRun           Status = "dry_run"
	StatusUnresolved       Status = "unresolved"
	StatusTransportFailure Status = "transport_failure"
	StatusStoreFailure     Status = "store_failure"
	StatusCancelled        Status = "cancelled"
)

// Result reports the outcome for one source.
type Result struct {
	SourceID string
	Status   Status
	Outcome  counter.Outcome
	Reading  *series.Reading
	Err      error
}

// Summary collects the results of one Run, in source order.
type Summary struct {
	CycleID  string
	Results  []Result
	Duration time.Duration
}

// Count returns how many sources ended with status s.
func (s Summary) Count(status Status) int {
	n := 0
	for _, r := range s.Results {
		if r.Status == status {
			n++
		}
	}
	return n
}

// Err joins the store failures of the cycle. Skipped sources are not
// errors.
func (s Summary) Err() error {
	var errs []error
	for _, r := range s.Results {
		if r.Status == StatusStoreFailure {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}
