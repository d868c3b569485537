package series

import (
	"context"
	"fmt"
	"strings"
)

// Supported store drivers.
const (
	DriverCSV      = "csv"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Options selects and configures a Store implementation.
type Options struct {
	Driver      string
	DataDir     string
	DatabaseURL string
}

// Open builds the store named by opts.Driver. The returned close function
// is never nil.
func Open(ctx context.Context, opts Options) (Store, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(opts.Driver) {
	case "", DriverCSV:
		if opts.DataDir == "" {
			return nil, noop, fmt.Errorf("csv store requires a data directory")
		}
		return NewFileStore(opts.DataDir), noop, nil
	case DriverPostgres:
		if opts.DatabaseURL == "" {
			return nil, noop, fmt.Errorf("postgres store requires DATABASE_URL")
		}
		store, err := OpenPostgres(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, noop, err
		}
		return store, store.Close, nil
	case DriverMemory:
		return NewMemoryStore(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
