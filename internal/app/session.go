package app

import (
	"sync"
	"time"

	"chat-quiz-bot/internal/domain"
)

// State is the lifecycle position of a Session.
type State int

const (
	StateAwaitingStart State = iota
	StateAwaitingAnswer
	StateCompleted
	StateQuit
)

func (s State) String() string {
	switch s {
	case StateAwaitingStart:
		return "awaiting_start"
	case StateAwaitingAnswer:
		return "awaiting_answer"
	case StateCompleted:
		return "completed"
	case StateQuit:
		return "quit"
	}
	return "unknown"
}

// Session is one user's in-progress quiz run. All fields below mu are guarded by it.
type Session struct {
	id        string
	userID    string
	questions []domain.QuizItem
	pool      []domain.QuizItem
	createdAt time.Time

	mu      sync.Mutex
	state   State
	current int
	score   int
	asked   []string
	options domain.OptionSet
	timer   Timer
	fence   fence
}

// SessionSnapshot is a read-only copy of a Session.
type SessionSnapshot struct {
	ID           string
	UserID       string
	Questions    []domain.QuizItem
	CurrentIndex int
	Score        int
	AskedIDs     []string
	Options      domain.OptionSet
	State        State
	CreatedAt    time.Time
}

// NewSession is exported for infrastructure layers and tests that need to seed sessions.
func NewSession(id, userID string, questions, pool []domain.QuizItem, now time.Time) *Session {
	return &Session{
		id:        id,
		userID:    userID,
		questions: questions,
		pool:      pool,
		createdAt: now,
		state:     StateAwaitingStart,
		asked:     make([]string, 0, len(questions)),
	}
}

// ID returns the session identifier used for timer fencing.
func (s *Session) ID() string { return s.id }

// UserID returns the owner of the session.
func (s *Session) UserID() string { return s.userID }

// Snapshot copies the mutable state under the session lock.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	questions := make([]domain.QuizItem, len(s.questions))
	copy(questions, s.questions)
	asked := make([]string, len(s.asked))
	copy(asked, s.asked)
	return SessionSnapshot{
		ID:           s.id,
		UserID:       s.userID,
		Questions:    questions,
		CurrentIndex: s.current,
		Score:        s.score,
		AskedIDs:     asked,
		Options:      s.options,
		State:        s.state,
		CreatedAt:    s.createdAt,
	}
}

// liveLocked reports whether the session still accepts answers and timeouts.
func (s *Session) liveLocked() bool {
	return s.state == StateAwaitingAnswer
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.fence = fence{}
}

// recordLocked resolves the current question and moves to the next one.
func (s *Session) recordLocked(correct bool) {
	if correct {
		s.score++
	}
	s.asked = append(s.asked, s.questions[s.current].ID)
	s.current++
}

// retire stops the timer and moves a live session into a terminal state.
func (s *Session) retire(state State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.liveLocked() && s.state != StateAwaitingStart {
		return false
	}
	s.stopTimerLocked()
	s.state = state
	return true
}
