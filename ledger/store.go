// Package ledger records which messages already had their terminal action
// committed, so a message left unread by a crash is not scheduled or
// answered twice.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const (
	ActionCreateEvent = "create_event"
	ActionSendReply   = "send_reply"

	StatusOK     = "ok"
	StatusFailed = "failed"
)

// fixed width so stored timestamps sort as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one terminal action attempt for a message. MessageID is the
// message's Message-ID header, or its mailbox id when it has none.
type Entry struct {
	MessageID string
	Action    string
	Status    string
	Detail    string
	RunID     string
	CreatedAt time.Time
}

// Counts are the per-run totals stored with a run.
type Counts struct {
	Processed int `db:"processed"`
	Scheduled int `db:"scheduled"`
	Clarified int `db:"clarified"`
	Failed    int `db:"failed"`
	Skipped   int `db:"skipped"`
}

// Run is a recorded batch run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running or after a crash
	Counts
}

type entryRow struct {
	MessageID string `db:"message_id"`
	Action    string `db:"action"`
	Status    string `db:"status"`
	Detail    string `db:"detail"`
	RunID     string `db:"run_id"`
	CreatedAt string `db:"created_at"`
}

type runRow struct {
	ID         string `db:"id"`
	StartedAt  string `db:"started_at"`
	FinishedAt string `db:"finished_at"`
	Counts
}

// Store is the sqlite-backed ledger.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open opens (or creates) the ledger at path and applies pending migrations.
// ":memory:" gives a private in-memory ledger.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// One writer, and one shared database for ":memory:".
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'")
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}
	if tableCount > 0 {
		if err := s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
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

// Lookup returns the latest successful entry for messageID, or nil if the
// message never had a terminal action committed.
func (s *Store) Lookup(ctx context.Context, messageID string) (*Entry, error) {
	var row entryRow
	err := s.db.GetContext(ctx, &row, `
		SELECT message_id, action, status, detail, run_id, created_at
		FROM processed
		WHERE message_id = ? AND status = ?
		ORDER BY id DESC LIMIT 1`,
		messageID, StatusOK,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up message %s: %w", messageID, err)
	}
	e := row.entry()
	return &e, nil
}

// Record appends an entry. A zero CreatedAt is set to now.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO processed (message_id, action, status, detail, run_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.MessageID, e.Action, e.Status, e.Detail, e.RunID, e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("recording %s for message %s: %w", e.Action, e.MessageID, err)
	}
	return nil
}

// History returns every entry recorded for messageID, oldest first.
func (s *Store) History(ctx context.Context, messageID string) ([]Entry, error) {
	var rows []entryRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT message_id, action, status, detail, run_id, created_at
		FROM processed WHERE message_id = ? ORDER BY id`, messageID)
	if err != nil {
		return nil, fmt.Errorf("querying history of message %s: %w", messageID, err)
	}
	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.entry())
	}
	return entries, nil
}

// StartRun records the start of a batch run and returns its id.
func (s *Store) StartRun(ctx context.Context) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, started_at) VALUES (?, ?)",
		id, s.now().UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("starting run: %w", err)
	}
	return id, nil
}

// FinishRun stores the final counts of a run.
func (s *Store) FinishRun(ctx context.Context, runID string, c Counts) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, processed = ?, scheduled = ?, clarified = ?, failed = ?, skipped = ?
		WHERE id = ?`,
		s.now().UTC().Format(timeLayout), c.Processed, c.Scheduled, c.Clarified, c.Failed, c.Skipped, runID,
	)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finishing run %s: no such run", runID)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	var rows []runRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, started_at, finished_at, processed, scheduled, clarified, failed, skipped
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	runs := make([]Run, 0, len(rows))
	for _, r := range rows {
		run := Run{ID: r.ID, Counts: r.Counts}
		run.StartedAt, _ = time.Parse(timeLayout, r.StartedAt)
		if r.FinishedAt != "" {
			run.FinishedAt, _ = time.Parse(timeLayout, r.FinishedAt)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (r entryRow) entry() Entry {
	created, _ := time.Parse(timeLayout, r.CreatedAt)
	return Entry{
		MessageID: r.MessageID,
		Action:    r.Action,
		Status:    r.Status,
		Detail:    r.Detail,
		RunID:     r.RunID,
		CreatedAt: created,
	}
}
