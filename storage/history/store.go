// Package history keeps a local record of transactions submitted by the CLI.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const defaultListLimit = 50

// Entry is one submitted transaction as seen by the client.
type Entry struct {
	ID          string
	TxHash      string
	Op          string
	Sender      string
	Endpoint    string
	Success     bool
	ErrorCode   string
	Error       string
	Result      string
	SubmittedAt time.Time
}

// Store persists entries in a SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("history: path required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("history: create dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) init() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS submissions (
            id TEXT PRIMARY KEY,
            tx_hash TEXT NOT NULL,
            op TEXT NOT NULL,
            sender TEXT NOT NULL,
            endpoint TEXT NOT NULL,
            success INTEGER NOT NULL,
            error_code TEXT,
            error TEXT,
            result TEXT,
            submitted_at TIMESTAMP NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS submissions_sender ON submissions(sender, submitted_at);`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("history: init schema: %w", err)
		}
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record appends entry, assigning an id and timestamp when missing.
func (s *Store) Record(ctx context.Context, entry Entry) (Entry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.SubmittedAt.IsZero() {
		entry.SubmittedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO submissions
        (id, tx_hash, op, sender, endpoint, success, error_code, error, result, submitted_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, strings.ToLower(entry.TxHash), entry.Op, entry.Sender, entry.Endpoint,
		boolInt(entry.Success), entry.ErrorCode, entry.Error, entry.Result, entry.SubmittedAt.UTC())
	if err != nil {
		return Entry{}, fmt.Errorf("history: insert: %w", err)
	}
	return entry, nil
}

// List returns the newest entries first. An empty sender lists every account.
func (s *Store) List(ctx context.Context, sender string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := `SELECT id, tx_hash, op, sender, endpoint, success, error_code, error, result, submitted_at
        FROM submissions`
	args := []interface{}{}
	if sender = strings.TrimSpace(sender); sender != "" {
		query += ` WHERE sender = ?`
		args = append(args, sender)
	}
	query += ` ORDER BY submitted_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			entry     Entry
			success   int
			errorCode sql.NullString
			errText   sql.NullString
			result    sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.TxHash, &entry.Op, &entry.Sender, &entry.Endpoint,
			&success, &errorCode, &errText, &result, &entry.SubmittedAt); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		entry.Success = success == 1
		entry.ErrorCode = errorCode.String
		entry.Error = errText.String
		entry.Result = result.String
		out = append(out, entry)
	}
	return out, rows.Err()
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
