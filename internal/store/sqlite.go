package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/chatflow/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB

	// appendMu makes the store the single writer of the log so that IDs and
	// timestamps are assigned in the same order.
	appendMu sync.Mutex
	lastTS   int64
	now      func() time.Time
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	if err := store.loadLastTimestamp(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load last timestamp: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content TEXT NOT NULL,
		sender VARCHAR(50) NOT NULL,
		timestamp INTEGER NOT NULL DEFAULT (CAST(strftime('%s', 'now') AS INTEGER) * 1000),
		chat_id INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp, id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) loadLastTimestamp() error {
	var last sql.NullInt64
	if err := s.db.QueryRow(`SELECT MAX(timestamp) FROM messages`).Scan(&last); err != nil {
		return err
	}
	s.lastTS = last.Int64
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// AppendMessage inserts a message into the implicit channel. The timestamp is
// taken at persist time and never goes backwards relative to earlier rows.
func (s *SQLiteStore) AppendMessage(ctx context.Context, content, sender string) (domain.Message, error) {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	ts := s.now().UnixMilli()
	if ts < s.lastTS {
		ts = s.lastTS
	}

	query := `INSERT INTO messages (content, sender, timestamp, chat_id) VALUES (?, ?, ?, ?)`
	result, err := s.db.ExecContext(ctx, query, content, sender, ts, domain.DefaultChatID)
	if err != nil {
		if IsBusy(err) {
			slog.Warn("Message insert hit a locked database", "sender", sender, "error", err)
		}
		return domain.Message{}, unavailable("insert message", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return domain.Message{}, unavailable("get insert id", err)
	}
	s.lastTS = ts

	return domain.Message{
		ID:        id,
		Content:   content,
		Sender:    sender,
		Timestamp: time.UnixMilli(ts),
		ChatID:    domain.DefaultChatID,
	}, nil
}

// ListMessages returns the whole log in ascending timestamp order.
func (s *SQLiteStore) ListMessages(ctx context.Context) ([]domain.Message, error) {
	query := `
		SELECT id, content, sender, timestamp, chat_id
		FROM messages ORDER BY timestamp ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, unavailable("query messages", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close message rows", "error", closeErr)
		}
	}()

	messages := make([]domain.Message, 0)
	for rows.Next() {
		var msg domain.Message
		var ts int64
		if err := rows.Scan(&msg.ID, &msg.Content, &msg.Sender, &ts, &msg.ChatID); err != nil {
			return nil, unavailable("scan message row", err)
		}
		msg.Timestamp = time.UnixMilli(ts)
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate messages", err)
	}

	return messages, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

var _ Repository = (*SQLiteStore)(nil)
