// Package store is the manager's persistence layer (spec.md §6 "Persisted
// schema"): vehicles, geofences, their join table, and the append-only
// event tables telemetry processing writes to. Grounded on the teacher
// pack's crm-engine infrastructure/{database/connection.go,
// postgres/lead_repository.go}: database/sql plus lib/pq, a retry-connect
// loop, and $N-placeholder queries via QueryRow/Exec/transactions.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

// connectRetries/connectDelay mirror crm-engine's Connect(): the manager
// may start before Postgres is accepting connections (container startup
// ordering), so the first connect is retried rather than failing fast.
const (
	connectRetries = 30
	connectDelay   = time.Second
)

// Connect opens a Postgres connection pool at url, retrying on failure
// until connectRetries is exhausted or ctx is cancelled.
func Connect(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	var pingErr error
	for i := 0; i < connectRetries; i++ {
		pingErr = db.PingContext(ctx)
		if pingErr == nil {
			return db, nil
		}
		slog.Warn("store: waiting for database", "attempt", i + 1, "of", connectRetries, "error", pingErr)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectDelay):
		}
	}
	return nil, fmt.Errorf("store: failed to connect after %d retries: %w", connectRetries, pingErr)
}

// schema is applied idempotently on startup, matching lead_repository.go's
// InitSchema "CREATE TABLE IF NOT EXISTS" style.
const schema = `
CREATE TABLE IF NOT EXISTS vehicle (
	id VARCHAR(36) PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	vtype VARCHAR(64) NOT NULL,
	vconfig JSONB NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	immobilized BOOLEAN NOT NULL DEFAULT FALSE,
	lat DOUBLE PRECISION,
	lon DOUBLE PRECISION,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS geofence (
	id VARCHAR(36) PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	data JSONB NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	immobilize_enter BOOLEAN NOT NULL DEFAULT FALSE,
	immobilize_leave BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS vehicle_geofence (
	vehicle_id VARCHAR(36) NOT NULL REFERENCES vehicle(id),
	geofence_id VARCHAR(36) NOT NULL REFERENCES geofence(id),
	PRIMARY KEY (vehicle_id, geofence_id)
);

CREATE TABLE IF NOT EXISTS vehicle_pos_event (
	vehicle_id VARCHAR(36) NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	lat DOUBLE PRECISION NOT NULL,
	lon DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (vehicle_id, ts)
);

CREATE TABLE IF NOT EXISTS vehicle_created_event (
	vehicle_id VARCHAR(36) NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (vehicle_id, ts)
);

CREATE TABLE IF NOT EXISTS vehicle_deleted_event (
	vehicle_id VARCHAR(36) NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (vehicle_id, ts)
);

CREATE TABLE IF NOT EXISTS vehicle_modified_event (
	vehicle_id VARCHAR(36) NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	diff TEXT NOT NULL,
	PRIMARY KEY (vehicle_id, ts)
);

CREATE TABLE IF NOT EXISTS vehicle_immobilized_event (
	vehicle_id VARCHAR(36) NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	user_id VARCHAR(255),
	geofence_id VARCHAR(36),
	active BOOLEAN NOT NULL,
	PRIMARY KEY (vehicle_id, ts)
);

CREATE TABLE IF NOT EXISTS vehicle_geofence_event (
	vehicle_id VARCHAR(36) NOT NULL,
	geofence_id VARCHAR(36) NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	entered BOOLEAN NOT NULL,
	PRIMARY KEY (vehicle_id, geofence_id, ts)
);
`

// Store wraps the database handle every repository method runs against.
type Store struct {
	db *sql.DB
}

// New wraps an already-connected *sql.DB.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// InitSchema creates every table the manager needs if it is not already present.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on any error or panic, mirroring the per-operation-fresh-session
// contract spec.md §5 names for the manager's database access.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	tx := &Tx{tx: sqlTx}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
			return
		}
		err = sqlTx.Commit()
	}()

	err = fn(tx)
	return err
}
