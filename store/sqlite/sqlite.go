/*
Package sqlite provides a SQLite-backed implementation of the ledger store.

PURPOSE:
  The "equivalent key-value store" variant of the persisted ledger: the
  same load-once / save-once contract as the JSON file backend, on an
  embedded database. Also keeps reconciliation run history, which the
  file backend has nowhere to put.

KEY TABLES:
  ledger_records:       transaction_id -> issue_key, cksum
  reconciliation_runs:  One row per batch with outcome counts

ATOMIC OVERWRITE:
  Save replaces the full contents of ledger_records inside one database
  transaction. Either the new ledger is fully visible or the old one is,
  never a mix.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better crash
  recovery; readers don't block the single writer.

USAGE:
  store, err := sqlite.New("./data/ticketsync.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - reconcile/store.go: Interface definition
  - store/file: JSON file implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/ticketsync/reconcile"
)

// Store implements reconcile.LedgerStore on SQLite and records run history.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Persisted ledger: one row per transaction with an open ticket
	CREATE TABLE IF NOT EXISTS ledger_records (
		transaction_id TEXT PRIMARY KEY,
		issue_key TEXT NOT NULL,
		cksum TEXT NOT NULL
	);

	-- Run history: one row per reconciliation batch
	CREATE TABLE IF NOT EXISTS reconciliation_runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		created INTEGER NOT NULL DEFAULT 0,
		updated INTEGER NOT NULL DEFAULT 0,
		closed INTEGER NOT NULL DEFAULT 0,
		unchanged INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at
		ON reconciliation_runs(started_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LEDGER STORE
// =============================================================================

// Load returns the full persisted ledger.
func (s *Store) Load(ctx context.Context) (reconcile.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT transaction_id, issue_key, cksum FROM ledger_records`)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	defer rows.Close()

	ledger := reconcile.NewLedger()
	for rows.Next() {
		var id, key, cksum string
		if err := rows.Scan(&id, &key, &cksum); err != nil {
			return nil, fmt.Errorf("failed to scan ledger record: %w", err)
		}
		ledger[reconcile.TransactionID(id)] = reconcile.TicketRecord{
			IssueKey:    reconcile.IssueKey(key),
			Fingerprint: reconcile.Fingerprint(cksum),
		}
	}
	return ledger, rows.Err()
}

// Save replaces the persisted ledger with the given contents, atomically.
func (s *Store) Save(ctx context.Context, ledger reconcile.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_records`); err != nil {
		return fmt.Errorf("failed to clear ledger: %w", err)
	}
	for id, rec := range ledger {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO ledger_records (transaction_id, issue_key, cksum) VALUES (?, ?, ?)`,
			string(id), string(rec.IssueKey), string(rec.Fingerprint))
		if err != nil {
			return fmt.Errorf("failed to insert ledger record %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// =============================================================================
// RUN HISTORY
// =============================================================================

// RunRecord is one persisted reconciliation run.
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Created    int
	Updated    int
	Closed     int
	Unchanged  int
	Skipped    int
	Failed     int
}

// RecordRun persists the summary of a finished batch.
func (s *Store) RecordRun(ctx context.Context, result *reconcile.BatchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reconciliation_runs
			(id, started_at, finished_at, created, updated, closed, unchanged, skipped, failed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID.String(),
		result.StartedAt.Format(time.RFC3339Nano),
		result.FinishedAt.Format(time.RFC3339Nano),
		result.Created, result.Updated, result.Closed,
		result.Unchanged, result.Skipped, result.Failed)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, created, updated, closed, unchanged, skipped, failed
		 FROM reconciliation_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var started, finished string
		if err := rows.Scan(&r.ID, &started, &finished,
			&r.Created, &r.Updated, &r.Closed, &r.Unchanged, &r.Skipped, &r.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
