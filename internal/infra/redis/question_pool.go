package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sort"
	"sync"
	"time"

	"chat-quiz-bot/internal/domain"
	"chat-quiz-bot/internal/infra/memory"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const poolKey = "quiz:pool"

// QuestionPool caches the question catalog in Redis and falls back to a loader on cache miss.
// Items are stored as: HSET quiz:pool {itemID} {json item}
type QuestionPool struct {
	client *redis.Client
	loader memory.QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionPool(client *redis.Client, loader memory.QuestionLoader, ttl time.Duration) *QuestionPool {
	return &QuestionPool{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *QuestionPool) FetchAll(ctx context.Context) ([]domain.QuizItem, error) {
	if items, ok := p.cached(ctx); ok {
		return items, nil
	}

	result, err, _ := p.sf.Do(poolKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if items, ok := p.cached(ctx); ok {
			return items, nil
		}

		items, err := p.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}
		p.fill(ctx, items)
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	items := result.([]domain.QuizItem)
	out := make([]domain.QuizItem, len(items))
	copy(out, items)
	return out, nil
}

// Invalidate drops the cached catalog, e.g. after a reseed.
func (p *QuestionPool) Invalidate(ctx context.Context) error {
	return p.client.Del(ctx, poolKey).Err()
}

func (p *QuestionPool) cached(ctx context.Context) ([]domain.QuizItem, bool) {
	raw, err := p.client.HGetAll(ctx, poolKey).Result()
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	items := make([]domain.QuizItem, 0, len(raw))
	for _, value := range raw {
		var item domain.QuizItem
		if err := json.Unmarshal([]byte(value), &item); err != nil {
			return nil, false
		}
		items = append(items, item)
	}
	// hash order is random; keep the catalog stable for callers
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, true
}

func (p *QuestionPool) fill(ctx context.Context, items []domain.QuizItem) {
	if len(items) == 0 {
		return
	}
	ttl := p.ttlWithJitter()
	pipe := p.client.TxPipeline()
	pipe.Del(ctx, poolKey)
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			continue
		}
		pipe.HSet(ctx, poolKey, item.ID, data)
	}
	if ttl > 0 {
		pipe.Expire(ctx, poolKey, ttl)
	}
	// best-effort: a failed fill only costs another load
	_, _ = pipe.Exec(ctx)
}

func (p *QuestionPool) ttlWithJitter() time.Duration {
	if p.ttl <= 0 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	jitterMax := int64(p.ttl) / 10
	return p.ttl + time.Duration(p.rnd.Int63n(jitterMax+1))
}
