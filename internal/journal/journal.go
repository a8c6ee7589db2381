// Package journal records diagnostic metadata about completion calls in a
// local sqlite file. Message content is never written.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type Status string

const (
	StatusOK    Status = "ok"
	StatusEmpty Status = "empty"
	StatusError Status = "error"
)

type Entry struct {
	ID         int64
	ExchangeID string
	Step       string
	Status     Status
	Latency    time.Duration
	Error      string
	CreatedAt  time.Time
}

// Recorder is what the requester writes to. *Store implements it.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

var schema = []string{
	"PRAGMA busy_timeout=5000",
	`CREATE TABLE IF NOT EXISTS exchange_steps (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		exchange_id TEXT    NOT NULL,
		step        TEXT    NOT NULL,
		status      TEXT    NOT NULL,
		latency_ms  INTEGER NOT NULL,
		error       TEXT    NOT NULL DEFAULT '',
		created_at  INTEGER NOT NULL
	)`,
	"CREATE INDEX IF NOT EXISTS idx_exchange_steps_exchange ON exchange_steps(exchange_id)",
}

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate journal: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exchange_steps (exchange_id, step, status, latency_ms, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ExchangeID, e.Step, string(e.Status), e.Latency.Milliseconds(), e.Error, e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record step: %w", err)
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, exchange_id, step, status, latency_ms, error, created_at
		 FROM exchange_steps ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			status    string
			latencyMS int64
			created   int64
		)
		if err := rows.Scan(&e.ID, &e.ExchangeID, &e.Step, &status, &latencyMS, &e.Error, &created); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		e.Status = Status(status)
		e.Latency = time.Duration(latencyMS) * time.Millisecond
		e.CreatedAt = time.UnixMilli(created)
		out = append(out, e)
	}
	return out, rows.Err()
}
