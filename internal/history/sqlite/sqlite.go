// Package sqlite implements history.Sink on a local SQLite database
// (modernc.org/sqlite driver, CGO-free).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/hostmock/hostmock/internal/history"
)

type Sink struct {
	db *sql.DB
}

// New opens (or creates) the database at path. Use ":memory:" for tests.
func New(path string) (*Sink, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// busy timeout helps with short concurrent locks
	_, _ = db.Exec("PRAGMA busy_timeout=3000;")
	s := &Sink{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS mock_server_history(
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			event TEXT NOT NULL,
			occurred_at TIMESTAMP NOT NULL,
			id TEXT NOT NULL,
			url TEXT NOT NULL,
			port INTEGER NOT NULL,
			pid INTEGER NOT NULL,
			status TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			error TEXT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_mock_server_history_id ON mock_server_history(id);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	rec := e.Record
	var errText sql.NullString
	if rec.Error != "" {
		errText = sql.NullString{String: rec.Error, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mock_server_history(event, occurred_at, id, url, port, pid, status, started_at, error)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		string(e.Type), e.OccurredAt.UTC(), rec.ID, rec.URL, rec.Port, rec.PID,
		string(rec.Status), rec.StartedAt.UTC(), errText)
	return err
}

// CountByID returns the number of recorded events for an id.
func (s *Sink) CountByID(ctx context.Context, id string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mock_server_history WHERE id = ?;`, id).Scan(&n)
	return n, err
}

func (s *Sink) Close() error { return s.db.Close() }
