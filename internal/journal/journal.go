// Package journal records picker and editor activity in SQLite.
//
// The journal backs the history command and lets a separate process undo the
// most recent auto-zap: the undo target is whatever auto-zap was appended
// last, unless an undo entry came after it.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/cloudywindow/internal/ir"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - initial schema
// 1 - index on events.host
const currentSchemaVersion = 1

// DefaultFileName is the journal database name inside the data directory.
const DefaultFileName = "journal.db"

// Entry kinds. Picker events use the picker's own type names.
const (
	KindPicked  = "picked"
	KindAutoZap = "auto-zap"
	KindUndo    = "undo"
	KindReset   = "reset"
	KindCancel  = "cancel"
	KindWrite   = "write"
	KindAdd     = "add"
	KindRemove  = "remove"
	KindCompact = "compact"
)

// Entry is one journal record.
type Entry struct {
	ID        string          `json:"id" yaml:"id"`
	Seq       int64           `json:"seq" yaml:"seq"`
	Kind      string          `json:"kind" yaml:"kind"`
	Host      string          `json:"host,omitempty" yaml:"host,omitempty"`
	RuleID    string          `json:"rule_id,omitempty" yaml:"rule_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty" yaml:"-"`
	CreatedAt time.Time       `json:"created_at" yaml:"created_at"`
}

// Journal is an append-only SQLite event log.
type Journal struct {
	db    *sql.DB
	clock Sequencer
	now   func() time.Time
}

// Option configures a Journal.
type Option func(*Journal)

// WithSequencer replaces the logical clock. Tests use a resettable one.
func WithSequencer(s Sequencer) Option {
	return func(j *Journal) {
		j.clock = s
	}
}

// WithNow replaces the wall clock used for created_at.
func WithNow(now func() time.Time) Option {
	return func(j *Journal) {
		j.now = now
	}
}

// Open creates or opens the journal database at path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - immediate transactions so concurrent appenders serialize on BEGIN
func Open(path string, opts ...Option) (*Journal, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_txlock=immediate", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	// One connection: SQLite has a single writer anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	j := &Journal{db: db, now: time.Now}
	for _, opt := range opts {
		opt(j)
	}
	if j.clock == nil {
		var max int64
		if err := db.QueryRow(`SELECT COALESCE(MAX(seq), 0) FROM events`).Scan(&max); err != nil {
			db.Close()
			return nil, fmt.Errorf("read journal position: %w", err)
		}
		j.clock = NewClockAt(max)
	}
	return j, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return runMigrations(db)
}

// runMigrations applies incremental migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_events_host ON events(host)`); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Append stamps e with the next seq, its content id and the current time,
// and stores it. The stored entry is returned.
func (j *Journal) Append(ctx context.Context, e Entry) (Entry, error) {
	if e.Kind == "" {
		return Entry{}, errors.New("append: empty kind")
	}
	if len(e.Payload) == 0 {
		e.Payload = json.RawMessage("{}")
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("append: begin: %w", err)
	}
	defer tx.Rollback()

	if obs, ok := j.clock.(interface{ Observe(int64) }); ok {
		var max int64
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM events`).Scan(&max); err != nil {
			return Entry{}, fmt.Errorf("append: read position: %w", err)
		}
		obs.Observe(max)
	}

	e.Seq = j.clock.Next()
	e.ID = ir.EventID(e.Kind, e.Seq, e.Payload)
	e.CreatedAt = j.now().UTC().Truncate(time.Millisecond)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (id, seq, kind, host, rule_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, e.ID, e.Seq, e.Kind, e.Host, e.RuleID, string(e.Payload), e.CreatedAt.UnixMilli())
	if err != nil {
		return Entry{}, fmt.Errorf("append: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Entry{}, fmt.Errorf("append: commit: %w", err)
	}
	return e, nil
}

// List returns the newest entries first. A limit <= 0 returns everything.
// The result is never nil.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, seq, kind, host, rule_id, payload, created_at
		FROM events
		ORDER BY seq DESC, id COLLATE BINARY ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return entries, nil
}

// LastAutoZap returns the auto-zap an undo would reverse: the most recent
// auto-zap with a rule id, provided no undo was journaled after it.
func (j *Journal) LastAutoZap(ctx context.Context) (Entry, bool, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, seq, kind, host, rule_id, payload, created_at
		FROM events
		WHERE kind IN (?, ?)
		ORDER BY seq DESC, id COLLATE BINARY ASC
		LIMIT 1
	`, KindAutoZap, KindUndo)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	if e.Kind != KindAutoZap || e.RuleID == "" {
		return Entry{}, false, nil
	}
	return e, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e       Entry
		payload string
		created int64
	)
	if err := s.Scan(&e.ID, &e.Seq, &e.Kind, &e.Host, &e.RuleID, &payload, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scan event: %w", err)
	}
	e.Payload = json.RawMessage(payload)
	e.CreatedAt = time.UnixMilli(created).UTC()
	return e, nil
}
