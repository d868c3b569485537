package series

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Schema creates the readings table. seq records append order, which is the
// only ordering Last and All honour.
const Schema = `
CREATE TABLE IF NOT EXISTS readings (
  seq            BIGSERIAL   PRIMARY KEY,
  ts             TIMESTAMPTZ NOT NULL,
  period_key     TEXT        NOT NULL,
  source_id      TEXT        NOT NULL,
  source_address TEXT        NOT NULL DEFAULT '',
  identity       TEXT        NOT NULL DEFAULT '',
  counter_total  BIGINT,
  period_delta   BIGINT      NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS readings_source_seq_idx ON readings (source_id, seq);
`

// PostgresStore is a Store backed by a PostgreSQL readings table.
// All collector and API instances can share the same database.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects through the pgx stdlib driver and verifies the
// connection.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresStore(db), nil
}

// NewPostgresStore wraps an existing *sql.DB.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the readings table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return storeErr("ensure schema", "", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

const insertReadingSQL = `
INSERT INTO readings (ts, period_key, source_id, source_address, identity, counter_total, period_delta)
VALUES ($1,$2,$3,$4,$5,$6,$7)`

// Append inserts one row; the insert is committed when ExecContext returns.
func (s *PostgresStore) Append(ctx context.Context, sourceID string, r Reading) error {
	var total sql.NullInt64
	if r.CounterTotal != nil {
		total = sql.NullInt64{Int64: *r.CounterTotal, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, insertReadingSQL,
		r.Timestamp.UTC(),
		string(r.PeriodKey),
		sourceID,
		r.SourceAddress,
		r.Identity,
		total,
		r.PeriodDelta,
	)
	if err != nil {
		return storeErr("append", sourceID, err)
	}
	return nil
}

const selectReadingsSQL = `
SELECT ts, period_key, source_id, source_address, identity, counter_total, period_delta
FROM readings
WHERE source_id = $1
ORDER BY seq`

const lastReadingSQL = `
SELECT ts, period_key, source_id, source_address, identity, counter_total, period_delta
FROM readings
WHERE source_id = $1
ORDER BY seq DESC
LIMIT 1`

// Last loads the row with the highest seq for the source.
func (s *PostgresStore) Last(ctx context.Context, sourceID string) (*Reading, error) {
	readings, err := s.query(ctx, "last", sourceID, lastReadingSQL)
	if err != nil || len(readings) == 0 {
		return nil, err
	}
	return &readings[0], nil
}

// All loads the source's rows in seq order.
func (s *PostgresStore) All(ctx context.Context, sourceID string) ([]Reading, error) {
	return s.query(ctx, "all", sourceID, selectReadingsSQL)
}

func (s *PostgresStore) query(ctx context.Context, op, sourceID, q string) ([]Reading, error) {
	rows, err := s.db.QueryContext(ctx, q, sourceID)
	if err != nil {
		return nil, storeErr(op, sourceID, err)
	}
	defer rows.Close()

	readings := make([]Reading, 0)
	for rows.Next() {
		var (
			r      Reading
			period string
			total  sql.NullInt64
		)
		if err := rows.Scan(
			&r.Timestamp,
			&period,
			&r.SourceID,
			&r.SourceAddress,
			&r.Identity,
			&total,
			&r.PeriodDelta,
		); err != nil {
			return nil, storeErr(op, sourceID, err)
		}
		r.PeriodKey = PeriodKey(period)
		if total.Valid {
			r.CounterTotal = Int64(total.Int64)
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, sourceID, err)
	}
	return readings, nil
}

// Sources lists distinct source ids.
func (s *PostgresStore) Sources(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT source_id FROM readings ORDER BY source_id`)
	if err != nil {
		return nil, storeErr("sources", "", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("sources", "", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("sources", "", err)
	}
	return ids, nil
}
