package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"chat-quiz-bot/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches the question catalog from a backing store (Postgres, YAML file, ...).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.QuizItem, error)
}

// QuestionPool caches the catalog with a TTL to avoid hitting the loader on every quiz start.
type QuestionPool struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	items     []domain.QuizItem
	expiresAt time.Time
}

func NewQuestionPool(loader QuestionLoader, ttl time.Duration) *QuestionPool {
	return &QuestionPool{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *QuestionPool) FetchAll(ctx context.Context) ([]domain.QuizItem, error) {
	if items, ok := p.cached(p.clock()); ok {
		return items, nil
	}

	result, err, _ := p.sf.Do("pool", func() (interface{}, error) {
		now := p.clock()
		if items, ok := p.cached(now); ok {
			return items, nil
		}

		items, err := p.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		p.items = items
		p.expiresAt = now.Add(p.ttlWithJitter())
		p.mu.Unlock()
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	// callers sharing one flight must not share a slice
	return clone(result.([]domain.QuizItem)), nil
}

// Invalidate drops the cached catalog so the next fetch reloads it.
func (p *QuestionPool) Invalidate() {
	p.mu.Lock()
	p.items = nil
	p.expiresAt = time.Time{}
	p.mu.Unlock()
}

func (p *QuestionPool) cached(now time.Time) ([]domain.QuizItem, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.items != nil && p.expiresAt.After(now) {
		return clone(p.items), true
	}
	return nil, false
}

func (p *QuestionPool) ttlWithJitter() time.Duration {
	if p.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(p.ttl) / 10
	return p.ttl + time.Duration(p.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader is a loader backed by a fixed slice (useful for tests/demos).
type StaticQuestionLoader struct {
	items []domain.QuizItem
}

func NewStaticQuestionLoader(items []domain.QuizItem) *StaticQuestionLoader {
	return &StaticQuestionLoader{items: items}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context) ([]domain.QuizItem, error) {
	return clone(l.items), nil
}

func clone(items []domain.QuizItem) []domain.QuizItem {
	out := make([]domain.QuizItem, len(items))
	copy(out, items)
	return out
}
