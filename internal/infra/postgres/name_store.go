package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

type NameStore struct {
	pool *pgxpool.Pool
}

func NewNameStore(pool *pgxpool.Pool) *NameStore {
	return &NameStore{pool: pool}
}

func (s *NameStore) SaveName(ctx context.Context, userID, name string) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO usernames (user_id, name) VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE SET name = EXCLUDED.name, updated_at = now()`, userID, name)
	if err != nil {
		return fmt.Errorf("save name: %w", err)
	}
	return nil
}

func (s *NameStore) ResolveName(ctx context.Context, userID string) (string, bool, error) {
	var name string
	err := s.pool.QueryRow(ctx, `SELECT name FROM usernames WHERE user_id = $1`, userID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("resolve name: %w", err)
	}
	return name, true, nil
}
