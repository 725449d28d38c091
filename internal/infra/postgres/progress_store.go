package postgres

import (
	"context"
	"errors"
	"fmt"

	"chat-quiz-bot/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ProgressStore keeps one user_progress row per user.
type ProgressStore struct {
	pool *pgxpool.Pool
}

func NewProgressStore(pool *pgxpool.Pool) *ProgressStore {
	return &ProgressStore{pool: pool}
}

func (s *ProgressStore) Get(ctx context.Context, userID string) (domain.UserProgress, bool, error) {
	p := domain.UserProgress{UserID: userID}
	err := s.pool.QueryRow(ctx,
		`SELECT level, score, asked_history FROM user_progress WHERE user_id = $1`, userID,
	).Scan(&p.Level, &p.Score, &p.AskedHistory)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.UserProgress{}, false, nil
	}
	if err != nil {
		return domain.UserProgress{}, false, fmt.Errorf("get progress: %w", err)
	}
	return p, true, nil
}

func (s *ProgressStore) Put(ctx context.Context, userID string, p domain.UserProgress) error {
	asked := p.AskedHistory
	if asked == nil {
		asked = []string{}
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO user_progress (user_id, level, score, asked_history)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE SET
    level = EXCLUDED.level,
    score = EXCLUDED.score,
    asked_history = EXCLUDED.asked_history,
    updated_at = now()`,
		userID, p.Level, p.Score, asked)
	if err != nil {
		return fmt.Errorf("put progress: %w", err)
	}
	return nil
}

// GetAll returns rows in first-insert order.
func (s *ProgressStore) GetAll(ctx context.Context) ([]domain.UserProgress, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, level, score, asked_history FROM user_progress ORDER BY created_at, user_id`)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()

	var out []domain.UserProgress
	for rows.Next() {
		var p domain.UserProgress
		if err := rows.Scan(&p.UserID, &p.Level, &p.Score, &p.AskedHistory); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
