package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/oohrelay/internal/model"
)

// SQLiteStore implements the Ledger interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Ledger = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// One connection: runs are sequential, and ":memory:" databases are
	// per connection.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// StartRun inserts a run row with outcome "running".
func (s *SQLiteStore) StartRun(ctx context.Context, run model.Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, run_date, attachment, outcome, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.RunDate, run.Attachment, model.OutcomeRunning,
		run.StartedAt.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("starting run %s: %w", run.ID, err)
	}
	return run.ID, nil
}

// FinishRun updates a run with its final state.
func (s *SQLiteStore) FinishRun(ctx context.Context, run model.Run) error {
	finished := time.Now()
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET attachment = ?, call_count = ?, sent_count = ?,
			outcome = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		run.Attachment, run.CallCount, run.SentCount,
		run.Outcome, run.Error, finished.UTC(),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", run.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finishing run %s: no such run", run.ID)
	}
	return nil
}

// RecordDispatches inserts a batch of dispatches, preserving their order.
func (s *SQLiteStore) RecordDispatches(ctx context.Context, ds []model.Dispatch) error {
	if len(ds) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO dispatches (
			id, run_id, seq, reference, status, subject, recipient, sent_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing dispatch statement: %w", err)
	}
	defer stmt.Close()

	for i, d := range ds {
		if d.ID == "" {
			d.ID = uuid.New().String()
		}
		if d.SentAt.IsZero() {
			d.SentAt = time.Now()
		}
		_, err := stmt.ExecContext(ctx,
			d.ID, d.RunID, i, d.Reference, d.Status,
			d.Subject, d.Recipient, d.SentAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("recording dispatch %s: %w", d.Reference, err)
		}
	}

	return tx.Commit()
}

const runColumns = `id, run_date, attachment, call_count, sent_count,
	outcome, error, started_at, finished_at`

// RecentRuns returns the newest runs first.
func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}

	var runs []model.Run
	err := s.db.SelectContext(ctx, &runs,
		"SELECT "+runColumns+" FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	return runs, nil
}

// DispatchesForRun returns the dispatches of one run in send order.
func (s *SQLiteStore) DispatchesForRun(
	ctx context.Context, runID string,
) ([]model.Dispatch, error) {
	var ds []model.Dispatch
	err := s.db.SelectContext(ctx, &ds, `
		SELECT id, run_id, reference, status, subject, recipient, sent_at
		FROM dispatches WHERE run_id = ? ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying dispatches for run %s: %w", runID, err)
	}
	return ds, nil
}

// DispatchedReferences returns every reference sent by runs on runDate.
func (s *SQLiteStore) DispatchedReferences(
	ctx context.Context, runDate string,
) ([]string, error) {
	var refs []string
	err := s.db.SelectContext(ctx, &refs, `
		SELECT d.reference FROM dispatches d
		JOIN runs r ON r.id = d.run_id
		WHERE r.run_date = ?
		ORDER BY r.started_at, d.seq`,
		runDate,
	)
	if err != nil {
		return nil, fmt.Errorf("querying references for %s: %w", runDate, err)
	}
	return refs, nil
}
