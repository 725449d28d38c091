package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"chat-quiz-bot/internal/domain"
)

func TestQuestionPoolCaches(t *testing.T) {
	loader := &countingLoader{QuestionLoader: NewStaticQuestionLoader(sampleItems())}
	pool := NewQuestionPool(loader, time.Minute)

	items, err := pool.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := pool.FetchAll(context.Background()); err != nil {
		t.Fatalf("fetch 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}

	pool.Invalidate()
	if _, err := pool.FetchAll(context.Background()); err != nil {
		t.Fatalf("fetch 3: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls %d", loader.calls)
	}
}

func TestQuestionPoolExpires(t *testing.T) {
	loader := &countingLoader{QuestionLoader: NewStaticQuestionLoader(sampleItems())}
	pool := NewQuestionPool(loader, time.Minute)
	now := time.Now()
	pool.clock = func() time.Time { return now }

	_, _ = pool.FetchAll(context.Background())
	now = now.Add(2 * time.Minute)
	_, _ = pool.FetchAll(context.Background())
	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.calls)
	}
}

func TestQuestionPoolReturnsLoaderError(t *testing.T) {
	boom := errors.New("db down")
	pool := NewQuestionPool(failingLoader{err: boom}, time.Minute)
	if _, err := pool.FetchAll(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
}

func TestQuestionPoolReturnsCopies(t *testing.T) {
	pool := NewQuestionPool(NewStaticQuestionLoader(sampleItems()), time.Minute)
	items, _ := pool.FetchAll(context.Background())
	items[0].Prompt = "mutated"

	again, _ := pool.FetchAll(context.Background())
	if again[0].Prompt == "mutated" {
		t.Fatalf("cache must not share its backing slice")
	}
}

type countingLoader struct {
	QuestionLoader
	calls int
}

func (l *countingLoader) LoadQuestions(ctx context.Context) ([]domain.QuizItem, error) {
	l.calls++
	return l.QuestionLoader.LoadQuestions(ctx)
}

type failingLoader struct{ err error }

func (l failingLoader) LoadQuestions(context.Context) ([]domain.QuizItem, error) {
	return nil, l.err
}

func sampleItems() []domain.QuizItem {
	return []domain.QuizItem{
		{ID: "Ar-Rahman", Prompt: "Ar-Rahman", CorrectMeaning: "The Beneficent"},
		{ID: "Ar-Rahim", Prompt: "Ar-Rahim", CorrectMeaning: "The Merciful"},
		{ID: "Al-Malik", Prompt: "Al-Malik", CorrectMeaning: "The King and Owner of Dominion"},
	}
}
