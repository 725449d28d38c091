package app

import (
	"math/rand"
	"sync"
	"time"

	"chat-quiz-bot/internal/domain"
)

const (
	// DefaultQuestionCount is the target number of questions per session.
	DefaultQuestionCount = 10
	// DefaultDistractors is the number of wrong options shown next to the right one.
	DefaultDistractors = 3
)

// Selector picks question sets and option sets. It is safe for concurrent use.
type Selector struct {
	target int

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSelector builds a selector; a nil source seeds from the clock.
func NewSelector(src rand.Source, target int) *Selector {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	if target <= 0 {
		target = DefaultQuestionCount
	}
	return &Selector{target: target, rnd: rand.New(src)}
}

// SelectQuestions samples up to the target number of items the user has not seen yet.
// When too few unseen items remain the whole pool becomes eligible again.
func (s *Selector) SelectQuestions(pool []domain.QuizItem, asked map[string]struct{}) ([]domain.QuizItem, []string, error) {
	pool = uniqueByID(pool)
	if len(pool) == 0 {
		return nil, nil, domain.ErrEmptyPool
	}

	eligible := make([]domain.QuizItem, 0, len(pool))
	for _, item := range pool {
		if _, seen := asked[item.ID]; !seen {
			eligible = append(eligible, item)
		}
	}
	if len(eligible) < s.target {
		eligible = pool
	}

	questions := s.sample(eligible, s.target)
	ids := make([]string, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}
	return questions, ids, nil
}

// BuildOptions draws k distractors from the pool, adds the correct item and shuffles.
func (s *Selector) BuildOptions(pool []domain.QuizItem, correct domain.QuizItem, k int) (domain.OptionSet, error) {
	distractors := make([]domain.QuizItem, 0, len(pool))
	seen := map[string]struct{}{correct.ID: {}}
	for _, item := range pool {
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		distractors = append(distractors, item)
	}
	if len(distractors) < k {
		return domain.OptionSet{}, domain.ErrInsufficientPool
	}

	items := append(s.sample(distractors, k), correct)
	s.shuffle(items)

	set := domain.OptionSet{Items: items}
	for i, item := range items {
		if item.ID == correct.ID {
			set.Correct = i
			break
		}
	}
	return set, nil
}

// sample returns n items chosen uniformly without replacement (partial Fisher-Yates on a copy).
func (s *Selector) sample(items []domain.QuizItem, n int) []domain.QuizItem {
	cp := make([]domain.QuizItem, len(items))
	copy(cp, items)
	if n > len(cp) {
		n = len(cp)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		j := i + s.rnd.Intn(len(cp)-i)
		cp[i], cp[j] = cp[j], cp[i]
	}
	return cp[:n]
}

func (s *Selector) shuffle(items []domain.QuizItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(items) - 1; i > 0; i-- {
		j := s.rnd.Intn(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}

func uniqueByID(items []domain.QuizItem) []domain.QuizItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]domain.QuizItem, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		out = append(out, item)
	}
	return out
}
