package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"chat-quiz-bot/internal/domain"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS user_progress (
	user_id       TEXT PRIMARY KEY,
	level         INTEGER NOT NULL DEFAULT 1,
	score         INTEGER NOT NULL DEFAULT 0,
	asked_history TEXT NOT NULL DEFAULT '[]',
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS usernames (
	user_id    TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// Store keeps progress and usernames in a single SQLite file.
// It satisfies both the progress and the name store contracts.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and prepares the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	store, err := NewStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.InitSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func NewStore(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init sqlite schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, userID string) (domain.UserProgress, bool, error) {
	var (
		p   = domain.UserProgress{UserID: userID}
		raw string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT level, score, asked_history FROM user_progress WHERE user_id = ?`, userID,
	).Scan(&p.Level, &p.Score, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserProgress{}, false, nil
	}
	if err != nil {
		return domain.UserProgress{}, false, fmt.Errorf("get progress: %w", err)
	}
	if p.AskedHistory, err = decodeHistory(raw); err != nil {
		return domain.UserProgress{}, false, err
	}
	return p, true, nil
}

func (s *Store) Put(ctx context.Context, userID string, p domain.UserProgress) error {
	asked := p.AskedHistory
	if asked == nil {
		asked = []string{}
	}
	raw, err := json.Marshal(asked)
	if err != nil {
		return fmt.Errorf("encode asked history: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO user_progress (user_id, level, score, asked_history)
VALUES (?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
	level = excluded.level,
	score = excluded.score,
	asked_history = excluded.asked_history,
	updated_at = CURRENT_TIMESTAMP`,
		userID, p.Level, p.Score, string(raw))
	if err != nil {
		return fmt.Errorf("put progress: %w", err)
	}
	return nil
}

// GetAll returns rows in first-insert order; an upsert keeps the original rowid.
func (s *Store) GetAll(ctx context.Context) ([]domain.UserProgress, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, level, score, asked_history FROM user_progress ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()

	var out []domain.UserProgress
	for rows.Next() {
		var (
			p   domain.UserProgress
			raw string
		)
		if err := rows.Scan(&p.UserID, &p.Level, &p.Score, &raw); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		if p.AskedHistory, err = decodeHistory(raw); err != nil {
			log.Printf("sqlite store: skip %s: %v", p.UserID, err)
			continue
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) SaveName(ctx context.Context, userID, name string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO usernames (user_id, name) VALUES (?, ?)
ON CONFLICT (user_id) DO UPDATE SET name = excluded.name, updated_at = CURRENT_TIMESTAMP`, userID, name)
	if err != nil {
		return fmt.Errorf("save name: %w", err)
	}
	return nil
}

func (s *Store) ResolveName(ctx context.Context, userID string) (string, bool, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM usernames WHERE user_id = ?`, userID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("resolve name: %w", err)
	}
	return name, true, nil
}

func decodeHistory(raw string) ([]string, error) {
	var ids []string
	if raw == "" {
		return ids, nil
	}
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decode asked history: %w", err)
	}
	return ids, nil
}
