package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"

	"github.com/ethiomart/telepipe/migrations"

	_ "modernc.org/sqlite"
)

// RunSummary describes one completed ingestion run.
type RunSummary struct {
	ID              string    `db:"id"`
	StartedAt       time.Time `db:"started_at"`
	FinishedAt      time.Time `db:"finished_at"`
	Channels        int       `db:"channels"`
	ChannelsPartial int       `db:"channels_partial"`
	ChannelsFailed  int       `db:"channels_failed"`
	Messages        int       `db:"messages"`
	MediaFailures   int       `db:"media_failures"`
}

// ChannelOutcome records the final state of one channel reference within a
// run.
type ChannelOutcome struct {
	RunID    string `db:"run_id"`
	Ref      string `db:"ref"`
	Title    string `db:"title"`
	State    string `db:"state"`
	Messages int    `db:"messages"`
	Error    string `db:"error"`
}

// Archive persists run summaries and per-channel outcomes in SQLite. It is
// observability for the operator; the JSONL stores remain the data path.
type Archive struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return ulid.Make().String()
}

// OpenArchive opens (creating if needed) the archive database at path and
// applies pending migrations.
func OpenArchive(path string, logger *slog.Logger) (*Archive, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to archive database: %w", err)
	}

	// SQLite doesn't support concurrent writes, so max open conns = 1.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := applyMigrations(db.DB); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("Error closing archive after migration failure", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to apply archive migrations: %w", err)
	}

	logger.Info("Run archive opened", "path", path)
	return &Archive{db: db, logger: logger.With("component", "archive")}, nil
}

// Close closes the archive database.
func (a *Archive) Close() {
	if a == nil || a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("Error closing archive database", "error", err)
	}
}

// RecordRun writes the run summary and its channel outcomes in a single
// transaction.
func (a *Archive) RecordRun(ctx context.Context, run RunSummary, outcomes []ChannelOutcome) error {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin archive transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	const insertRun = `
		INSERT INTO runs (id, started_at, finished_at, channels, channels_partial, channels_failed, messages, media_failures)
		VALUES (:id, :started_at, :finished_at, :channels, :channels_partial, :channels_failed, :messages, :media_failures)`
	if _, err := tx.NamedExecContext(ctx, insertRun, run); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	const insertOutcome = `
		INSERT INTO channel_outcomes (run_id, ref, title, state, messages, error)
		VALUES (:run_id, :ref, :title, :state, :messages, :error)`
	for _, oc := range outcomes {
		oc.RunID = run.ID
		if _, err := tx.NamedExecContext(ctx, insertOutcome, oc); err != nil {
			return fmt.Errorf("failed to insert outcome for %s: %w", oc.Ref, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit archive transaction: %w", err)
	}
	tx = nil

	a.logger.Info("Run recorded", "run_id", run.ID, "channels", run.Channels, "messages", run.Messages)
	return nil
}

// LastRun returns the most recent run summary, or nil when the archive is
// empty.
func (a *Archive) LastRun(ctx context.Context) (*RunSummary, error) {
	var run RunSummary
	err := a.db.GetContext(ctx, &run, `SELECT * FROM runs ORDER BY started_at DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last run: %w", err)
	}
	return &run, nil
}

func applyMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}
	dbDriver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
