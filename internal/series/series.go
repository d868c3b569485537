package series

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PeriodKey names the calendar bucket a reading belongs to (e.g. "2025-06").
type PeriodKey string

// Reading is one persisted observation of a source's cumulative counter.
// Readings are immutable once appended.
type Reading struct {
	Timestamp     time.Time `json:"timestamp"`
	PeriodKey     PeriodKey `json:"period_key"`
	SourceID      string    `json:"source_id"`
	SourceAddress string    `json:"source_address,omitempty"`
	Identity      string    `json:"identity,omitempty"`
	CounterTotal  *int64    `json:"counter_total,omitempty"`
	PeriodDelta   int64     `json:"period_delta"`
}

// Store is an append-only, per-source ordered log of readings.
// Implementations must be safe for concurrent use by multiple goroutines.
type Store interface {
	// Append writes r after every reading previously appended for sourceID.
	// It returns only once the write is durable.
	Append(ctx context.Context, sourceID string, r Reading) error
	// Last returns the most recently appended reading, or nil for an empty
	// series. Ordering is append order, never timestamp order.
	Last(ctx context.Context, sourceID string) (*Reading, error)
	// All returns the full series in append order.
	All(ctx context.Context, sourceID string) ([]Reading, error)
	// Sources lists the ids that have at least one reading, sorted.
	Sources(ctx context.Context) ([]string, error)
}

// StoreError reports a failed store operation for one source.
type StoreError struct {
	Op       string
	SourceID string
	Err      error
}

func (e *StoreError) Error() string {
	if e.SourceID == "" {
		return fmt.Sprintf("series store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("series store %s %q: %v", e.Op, e.SourceID, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ErrInvalidSourceID marks a source id that cannot name a series.
var ErrInvalidSourceID = errors.New("invalid source id")

// ValidateSourceID rejects ids that are empty or could escape a store
// directory.
func ValidateSourceID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w %q", ErrInvalidSourceID, id)
	}
	return nil
}

func storeErr(op, sourceID string, err error) error {
	return &StoreError{Op: op, SourceID: sourceID, Err: err}
}

// Int64 returns a pointer to v, for building optional counter totals.
func Int64(v int64) *int64 {
	return &v
}
