package db

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/02loveslollipop/printer-page-counter/internal/aggregate"
	"github.com/02loveslollipop/printer-page-counter/internal/series"
)

// loadWorkers bounds concurrent series reads when loading the whole fleet.
const loadWorkers = 8

// Store answers reporting queries over a series store. It never writes.
type Store struct {
	series series.Store
}

// New wraps a series store.
func New(s series.Store) *Store {
	return &Store{series: s}
}

// LatestPeriod is the payload of the latest-period report.
type LatestPeriod struct {
	Period   series.PeriodKey `json:"period"`
	Readings []series.Reading `json:"readings"`
}

// Sources lists every source with at least one reading.
func (s *Store) Sources(ctx context.Context) ([]string, error) {
	ids, err := s.series.Sources(ctx)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// Series returns the readings of one source in append order, restricted to
// period when it is not empty. An unknown source yields an empty slice.
func (s *Store) Series(ctx context.Context, sourceID string, period series.PeriodKey) ([]series.Reading, error) {
	rows, err := s.series.All(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if period != "" {
		return aggregate.ReadingsIn(rows, period), nil
	}
	if rows == nil {
		rows = []series.Reading{}
	}
	return rows, nil
}

// Usage returns pages used per period for one source.
func (s *Store) Usage(ctx context.Context, sourceID string) ([]aggregate.PeriodUsage, error) {
	rows, err := s.series.All(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	return aggregate.Usage(rows), nil
}

// LatestPeriodReadings returns every reading of the fleet's most recent
// period.
func (s *Store) LatestPeriodReadings(ctx context.Context) (LatestPeriod, error) {
	fleet, err := s.fleet(ctx)
	if err != nil {
		return LatestPeriod{}, err
	}
	period, rows := fleet.LatestPeriodReadings()
	return LatestPeriod{Period: period, Readings: rows}, nil
}

// LatestTotals maps each source to its last known counter total.
func (s *Store) LatestTotals(ctx context.Context) (map[string]int64, error) {
	fleet, err := s.fleet(ctx)
	if err != nil {
		return nil, err
	}
	return fleet.LatestTotals(), nil
}

func (s *Store) fleet(ctx context.Context) (aggregate.Fleet, error) {
	ids, err := s.series.Sources(ctx)
	if err != nil {
		return nil, err
	}

	all := make([][]series.Reading, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadWorkers)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			rows, err := s.series.All(gctx, id)
			if err != nil {
				return fmt.Errorf("load series %s: %w", id, err)
			}
			all[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fleet := make(aggregate.Fleet, len(ids))
	for i, id := range ids {
		fleet[id] = all[i]
	}
	return fleet, nil
}
