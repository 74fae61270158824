package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	openai "github.com/sashabaranov/go-openai"
	_ "modernc.org/sqlite"
)

// SQLite persists one checkpoint row per thread. Writers serialize on a
// file lock so two sessions sharing the database do not interleave.
type SQLite struct {
	db   *sql.DB
	lock *flock.Flock
}

func OpenSQLite(path, lockPath string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create memory store directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create memory lock directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open memory sqlite: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS checkpoints (
			thread_id TEXT PRIMARY KEY,
			updated_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init memory schema: %w", err)
		}
	}
	return &SQLite{db: db, lock: flock.New(lockPath)}, nil
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) Load(ctx context.Context, threadID string) ([]openai.ChatCompletionMessage, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM checkpoints WHERE thread_id = ?", threadID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	var messages []openai.ChatCompletionMessage
	if err := json.Unmarshal(payload, &messages); err != nil {
		return nil, fmt.Errorf("decode checkpoint payload: %w", err)
	}
	return messages, nil
}

func (s *SQLite) Save(ctx context.Context, threadID string, messages []openai.ChatCompletionMessage) error {
	if strings.TrimSpace(threadID) == "" {
		return fmt.Errorf("save checkpoint: missing thread id")
	}
	locked, err := s.lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock memory store: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock memory store: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (thread_id, updated_at, payload)
		VALUES (?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET
			updated_at=excluded.updated_at,
			payload=excluded.payload
	`, threadID, time.Now().UTC().Unix(), payload)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}
