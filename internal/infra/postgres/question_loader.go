package postgres

import (
	"context"
	"fmt"

	"chat-quiz-bot/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionLoader reads the question catalog from the quiz_items table.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context) ([]domain.QuizItem, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, prompt, meaning FROM quiz_items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var items []domain.QuizItem
	for rows.Next() {
		var item domain.QuizItem
		if err := rows.Scan(&item.ID, &item.Prompt, &item.CorrectMeaning); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return items, nil
}

// UpsertQuestions inserts or updates items in a single batch.
func (l *QuestionLoader) UpsertQuestions(ctx context.Context, items []domain.QuizItem) error {
	if len(items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(`INSERT INTO quiz_items (id, prompt, meaning) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET prompt = EXCLUDED.prompt, meaning = EXCLUDED.meaning`,
			item.ID, item.Prompt, item.CorrectMeaning)
	}

	results := l.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range items {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert question: %w", err)
		}
	}
	return nil
}
