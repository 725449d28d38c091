package app_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"chat-quiz-bot/internal/app"
	"chat-quiz-bot/internal/domain"
	"chat-quiz-bot/internal/infra/memory"
)

type harness struct {
	svc      *app.QuizService
	timers   *manualTimers
	notes    *recordingNotifier
	progress *flakyProgressStore
	names    *memory.NameStore
	sessions *memory.SessionStore
	events   *recordingPublisher
}

func newHarness(t *testing.T, items []domain.QuizItem, target int) *harness {
	t.Helper()
	h := &harness{
		timers:   &manualTimers{},
		notes:    newRecordingNotifier(),
		progress: &flakyProgressStore{ProgressStore: memory.NewProgressStore()},
		names:    memory.NewNameStore(),
		sessions: memory.NewSessionStore(),
		events:   &recordingPublisher{},
	}
	settings := app.DefaultSettings()
	settings.QuestionCount = target
	settings.RetryInterval = time.Millisecond

	pool := memory.NewQuestionPool(memory.NewStaticQuestionLoader(items), time.Minute)
	h.svc = app.NewQuizService(pool, h.progress, h.names, h.sessions, h.notes,
		app.WithSettings(settings),
		app.WithTimers(h.timers),
		app.WithSelector(app.NewSelector(rand.NewSource(42), target)),
		app.WithPublisher(h.events),
	)
	return h
}

func (h *harness) start(t *testing.T, userID string) app.SessionSnapshot {
	t.Helper()
	if err := h.svc.StartQuiz(context.Background(), userID, "name-"+userID); err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	snap, ok := h.svc.Session(userID)
	if !ok {
		t.Fatalf("expected live session for %s", userID)
	}
	return snap
}

func (h *harness) answer(t *testing.T, userID string, index int, correct bool) app.AnswerResult {
	t.Helper()
	res, err := h.svc.Answer(context.Background(), userID, index, correct)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	return res
}

func makePool(n int) []domain.QuizItem {
	items := make([]domain.QuizItem, n)
	for i := range items {
		items[i] = domain.QuizItem{
			ID:             fmt.Sprintf("q%02d", i),
			Prompt:         fmt.Sprintf("Prompt %d", i),
			CorrectMeaning: fmt.Sprintf("Meaning %d", i),
		}
	}
	return items
}

type manualTimers struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (m *manualTimers) AfterFunc(_ time.Duration, f func()) app.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{f: f}
	m.timers = append(m.timers, t)
	return t
}

func (m *manualTimers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

func (m *manualTimers) last() *manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timers[len(m.timers)-1]
}

func (m *manualTimers) pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.isStopped() && !t.hasFired() {
			n++
		}
	}
	return n
}

type manualTimer struct {
	mu      sync.Mutex
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// fire runs the callback even when stopped, like a timer that raced past Stop.
func (t *manualTimer) fire() {
	t.mu.Lock()
	t.fired = true
	f := t.f
	t.mu.Unlock()
	f()
}

func (t *manualTimer) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *manualTimer) hasFired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}

type recordingNotifier struct {
	mu        sync.Mutex
	questions map[string][]domain.QuestionView
	results   map[string][]string
	boards    map[string][]domain.Leaderboard
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		questions: make(map[string][]domain.QuestionView),
		results:   make(map[string][]string),
		boards:    make(map[string][]domain.Leaderboard),
	}
}

func (n *recordingNotifier) ShowQuestion(_ context.Context, userID string, q domain.QuestionView) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.questions[userID] = append(n.questions[userID], q)
	return nil
}

func (n *recordingNotifier) ShowResult(_ context.Context, userID, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results[userID] = append(n.results[userID], text)
	return nil
}

func (n *recordingNotifier) ShowLeaderboard(_ context.Context, userID string, lb domain.Leaderboard) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.boards[userID] = append(n.boards[userID], lb)
	return nil
}

func (n *recordingNotifier) questionsFor(userID string) []domain.QuestionView {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.QuestionView(nil), n.questions[userID]...)
}

func (n *recordingNotifier) lastResult(userID string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	results := n.results[userID]
	if len(results) == 0 {
		return ""
	}
	return results[len(results)-1]
}

func (n *recordingNotifier) sawResult(userID, fragment string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, text := range n.results[userID] {
		if strings.Contains(text, fragment) {
			return true
		}
	}
	return false
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.QuizCompleted
}

func (p *recordingPublisher) PublishQuizCompleted(_ context.Context, event domain.QuizCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) all() []domain.QuizCompleted {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.QuizCompleted(nil), p.events...)
}

var errStoreDown = errors.New("store down")

// flakyProgressStore fails the next failPuts writes and every read while readsDown is set.
type flakyProgressStore struct {
	*memory.ProgressStore
	mu        sync.Mutex
	failPuts  int
	puts      int
	readsDown bool
}

func (s *flakyProgressStore) Get(ctx context.Context, userID string) (domain.UserProgress, bool, error) {
	s.mu.Lock()
	down := s.readsDown
	s.mu.Unlock()
	if down {
		return domain.UserProgress{}, false, errStoreDown
	}
	return s.ProgressStore.Get(ctx, userID)
}

func (s *flakyProgressStore) Put(ctx context.Context, userID string, p domain.UserProgress) error {
	s.mu.Lock()
	s.puts++
	if s.failPuts > 0 {
		s.failPuts--
		s.mu.Unlock()
		return errStoreDown
	}
	s.mu.Unlock()
	return s.ProgressStore.Put(ctx, userID, p)
}

func (s *flakyProgressStore) putCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}
