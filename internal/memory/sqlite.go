package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is a SQLite-backed ConversationStore. History is kept as
// a JSON array in a single column, one row per conversation.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the database at dbPath.
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s, err := NewSQLiteStoreFromDB(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStoreFromDB wraps an already-open database. The caller
// keeps ownership of db.
func NewSQLiteStoreFromDB(db *sql.DB, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SQLiteStore{db: db, logger: logger.With("component", "conversation_store")}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		history TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	`)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns the stored history for id. Entries that are not JSON
// strings are dropped. A missing conversation yields an empty slice.
func (s *SQLiteStore) Load(ctx context.Context, id string) ([]string, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT history FROM conversations WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", id, err)
	}
	return decodeHistory(raw, s.logger, id), nil
}

// Save upserts the full history for id.
func (s *SQLiteStore) Save(ctx context.Context, id string, history []string) error {
	if history == nil {
		history = []string{}
	}
	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, history, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET history = excluded.history, updated_at = excluded.updated_at
	`, id, string(data), now, now)
	if err != nil {
		return fmt.Errorf("save conversation %s: %w", id, err)
	}
	return nil
}

// Count returns the number of stored conversations.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count conversations: %w", err)
	}
	return n, nil
}

// decodeHistory parses a stored JSON array, keeping only string
// entries. Anything unparseable is treated as empty history.
func decodeHistory(raw string, logger *slog.Logger, id string) []string {
	var entries []any
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		logger.Warn("discarding unreadable history", "conversation", id, "error", err)
		return []string{}
	}

	out := make([]string, 0, len(entries))
	dropped := 0
	for _, e := range entries {
		if str, ok := e.(string); ok {
			out = append(out, str)
			continue
		}
		dropped++
	}
	if dropped > 0 {
		logger.Debug("dropped non-text history entries", "conversation", id, "dropped", dropped)
	}
	return out
}
