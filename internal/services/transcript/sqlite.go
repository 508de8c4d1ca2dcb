package transcript

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/deepgram/chatroom/internal/domain/chat/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	seq      INTEGER PRIMARY KEY AUTOINCREMENT,
	cid      TEXT NOT NULL,
	time     TEXT NOT NULL,
	username TEXT NOT NULL,
	message  TEXT NOT NULL,
	uuid     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_cid ON messages(cid, seq);
CREATE TABLE IF NOT EXISTS slots (
	cid   TEXT NOT NULL,
	name  TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (cid, name)
);`

// SQLiteStore keeps transcripts in a local database file so they survive
// restarts of a single server.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, cid string, entry models.Entry) error {
	content, err := json.Marshal(entry.Message)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO messages (cid, time, username, message, uuid) VALUES (?, ?, ?, ?, ?)",
		cid, entry.Time, entry.Username, string(content), entry.UUID)
	return err
}

func (s *SQLiteStore) Entries(ctx context.Context, cid string) ([]models.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT time, username, message, uuid FROM messages WHERE cid = ? ORDER BY seq", cid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.Entry
	for rows.Next() {
		var (
			e       models.Entry
			content string
		)
		if err := rows.Scan(&e.Time, &e.Username, &content, &e.UUID); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(content), &e.Message); err != nil {
			return nil, fmt.Errorf("corrupt transcript entry for %s: %w", cid, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Clear(ctx context.Context, cid string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE cid = ?", cid)
	return err
}

func (s *SQLiteStore) SetSlot(ctx context.Context, cid, name, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO slots (cid, name, value) VALUES (?, ?, ?) ON CONFLICT(cid, name) DO UPDATE SET value = excluded.value",
		cid, name, value)
	return err
}

func (s *SQLiteStore) Slots(ctx context.Context, cid string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, value FROM slots WHERE cid = ?", cid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slots := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		slots[name] = value
	}
	return slots, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
