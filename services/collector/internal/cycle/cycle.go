// Package cycle runs one collection pass over the printer fleet: read each
// device's counter, reconcile it against the last stored reading and append
// the result.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/02loveslollipop/printer-page-counter/internal/counter"
	"github.com/02loveslollipop/printer-page-counter/internal/series"
	"github.com/02loveslollipop/printer-page-counter/services/collector/internal/models"
)

var (
	// ErrUnresolved marks a source skipped because it has no address.
	ErrUnresolved = errors.New("source address unresolved")
	// ErrTransport marks a source skipped because its counter read failed.
	ErrTransport = errors.New("counter read failed")
)

// Reader fetches raw values from a device. A nil value with a nil error
// means the device answered without a usable value.
type Reader interface {
	ReadCounter(ctx context.Context, address string) (*int64, error)
	ReadIdentity(ctx context.Context, address string) (*string, error)
}

// Recorder receives cycle outcomes; *metrics.Metrics implements it.
type Recorder interface {
	IncAppended(outcome string)
	IncCounterReset()
	IncTransportFailure()
	IncUnresolved()
	IncStoreFailure()
	ObserveCycle(d time.Duration)
}

// Config wires a Cycle.
type Config struct {
	Store      series.Store
	Reader     Reader
	Reconciler counter.Reconciler
	// Workers bounds how many sources are processed at once. If <= 0, a
	// default of 1 is used.
	Workers int
	// ReadTimeout bounds each device read. If <= 0, 10s is used.
	ReadTimeout time.Duration
	Logger      logrus.FieldLogger
	Recorder    Recorder
	// Now defaults to time.Now.
	Now    func() time.Time
	DryRun bool
}

// Cycle processes sources. A single Cycle may run concurrently with itself
// (overlapping scheduled runs); work on one source is always serialized.
type Cycle struct {
	cfg   Config
	locks *sourceLocks
}

// New validates cfg and returns a Cycle.
func New(cfg Config) (*Cycle, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("cycle: Store is required")
	}
	if cfg.Reader == nil {
		return nil, fmt.Errorf("cycle: Reader is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.Reconciler.Bucketer == nil {
		cfg.Reconciler = counter.New(nil)
	}
	if cfg.Logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		cfg.Logger = l
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Cycle{cfg: cfg, locks: newSourceLocks()}, nil
}

// Run processes every source and returns a per-source summary. It never
// stops early because one source failed; cancelling ctx stops sources that
// have not started yet.
func (c *Cycle) Run(ctx context.Context, sources []models.Source) Summary {
	start := time.Now()
	id := uuid.NewString()
	logger := c.cfg.Logger.WithField("cycle_id", id)
	logger.WithFields(logrus.Fields{
		"sources": len(sources),
		"workers": c.cfg.Workers,
		"dry_run": c.cfg.DryRun,
	}).Info("collection cycle started")

	results := make([]Result, len(sources))
	var g errgroup.Group
	g.SetLimit(c.cfg.Workers)
	for i, src := range sources {
		i, src := i, src
		if ctx.Err() != nil {
			results[i] = Result{SourceID: src.ID, Status: StatusCancelled, Err: ctx.Err()}
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = Result{SourceID: src.ID, Status: StatusCancelled, Err: err}
				return nil
			}
			results[i] = c.collect(ctx, logger, src)
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{CycleID: id, Results: results, Duration: time.Since(start)}
	c.cfg.Recorder.ObserveCycle(summary.Duration)
	logger.WithFields(logrus.Fields{
		"appended":    summary.Count(StatusAppended),
		"transport":   summary.Count(StatusTransportFailure),
		"unresolved":  summary.Count(StatusUnresolved),
		"store":       summary.Count(StatusStoreFailure),
		"cancelled":   summary.Count(StatusCancelled),
		"duration_ms": summary.Duration.Milliseconds(),
	}).Info("collection cycle finished")
	return summary
}

// collect is the unit of work for one source.
func (c *Cycle) collect(ctx context.Context, logger logrus.FieldLogger, src models.Source) Result {
	logger = logger.WithFields(logrus.Fields{"source_id": src.ID, "address": src.Address})
	res := Result{SourceID: src.ID}

	if !src.Resolved() {
		c.cfg.Recorder.IncUnresolved()
		logger.Warn("address not resolved, skipping source")
		res.Status, res.Err = StatusUnresolved, ErrUnresolved
		return res
	}

	// The device read, the prior lookup and the append form one unit per
	// source, so readings are appended in the order they were taken.
	unlock := c.locks.lock(src.ID)
	defer unlock()

	raw, err := c.readCounter(ctx, src.Address)
	now := c.cfg.Now()
	if err != nil {
		c.cfg.Recorder.IncTransportFailure()
		logger.WithError(err).Warn("counter read failed, skipping source")
		res.Status, res.Err = StatusTransportFailure, fmt.Errorf("%w: %v", ErrTransport, err)
		return res
	}
	identity, err := c.readIdentity(ctx, src.Address)
	if err != nil {
		c.cfg.Recorder.IncTransportFailure()
		logger.WithError(err).Warn("identity read failed, skipping source")
		res.Status, res.Err = StatusTransportFailure, fmt.Errorf("%w: %v", ErrTransport, err)
		return res
	}

	// Once the read succeeded the append is completed even if ctx is
	// cancelled, so a source is either fully recorded or untouched.
	storeCtx := context.WithoutCancel(ctx)

	prior, err := c.cfg.Store.Last(storeCtx, src.ID)
	if err != nil {
		return c.storeFailure(logger, res, err)
	}

	reading, outcome := c.cfg.Reconciler.Reconcile(prior, raw, now)
	res.Outcome = outcome
	if reading == nil {
		c.cfg.Recorder.IncTransportFailure()
		logger.Warn("device returned no counter value, skipping source")
		res.Status, res.Err = StatusTransportFailure, fmt.Errorf("%w: empty value", ErrTransport)
		return res
	}
	reading.SourceID = src.ID
	reading.SourceAddress = src.Address
	reading.Identity = identity

	entry := logger.WithFields(logrus.Fields{
		"outcome":       outcome.String(),
		"counter_total": *reading.CounterTotal,
		"period_delta":  reading.PeriodDelta,
		"period":        reading.PeriodKey,
	})
	if outcome == counter.OutcomeReset {
		entry.WithField("prior_total", *prior.CounterTotal).Warn("counter went backwards, recording zero usage")
	}

	if c.cfg.DryRun {
		entry.Info("dry-run: would append reading")
		res.Status, res.Reading = StatusDryRun, reading
		return res
	}

	if err := c.cfg.Store.Append(storeCtx, src.ID, *reading); err != nil {
		return c.storeFailure(logger, res, err)
	}

	c.cfg.Recorder.IncAppended(outcome.String())
	if outcome == counter.OutcomeReset {
		c.cfg.Recorder.IncCounterReset()
	}
	entry.Info("reading appended")
	res.Status, res.Reading = StatusAppended, reading
	return res
}

func (c *Cycle) storeFailure(logger logrus.FieldLogger, res Result, err error) Result {
	c.cfg.Recorder.IncStoreFailure()
	logger.WithError(err).Error("series store failed")
	var storeErr *series.StoreError
	if !errors.As(err, &storeErr) {
		err = &series.StoreError{Op: "cycle", SourceID: res.SourceID, Err: err}
	}
	res.Status, res.Err = StatusStoreFailure, err
	return res
}

func (c *Cycle) readCounter(ctx context.Context, address string) (*int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ReadTimeout)
	defer cancel()
	return c.cfg.Reader.ReadCounter(ctx, address)
}

// readIdentity fails when the device answers without a serial; a device
// that cannot identify itself is not counted either.
func (c *Cycle) readIdentity(ctx context.Context, address string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ReadTimeout)
	defer cancel()
	id, err := c.cfg.Reader.ReadIdentity(ctx, address)
	if err != nil {
		return "", err
	}
	if id == nil {
		return "", errors.New("empty identity")
	}
	return *id, nil
}

type sourceLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSourceLocks() *sourceLocks {
	return &sourceLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *sourceLocks) lock(sourceID string) func() {
	l.mu.Lock()
	m, ok := l.locks[sourceID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[sourceID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

type nopRecorder struct{}

func (nopRecorder) IncAppended(string)         {}
func (nopRecorder) IncCounterReset()           {}
func (nopRecorder) IncTransportFailure()       {}
func (nopRecorder) IncUnresolved()             {}
func (nopRecorder) IncStoreFailure()           {}
func (nopRecorder) ObserveCycle(time.Duration) {}
