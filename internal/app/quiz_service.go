package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"chat-quiz-bot/internal/domain"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// QuestionPool returns the full catalog of quiz items (cached or straight from storage).
type QuestionPool interface {
	FetchAll(ctx context.Context) ([]domain.QuizItem, error)
}

// ProgressStore persists per-user progress records.
type ProgressStore interface {
	Get(ctx context.Context, userID string) (domain.UserProgress, bool, error)
	Put(ctx context.Context, userID string, progress domain.UserProgress) error
	// GetAll returns every record in the order users were first stored.
	GetAll(ctx context.Context) ([]domain.UserProgress, error)
}

// NameStore remembers chat usernames for the leaderboard.
type NameStore interface {
	SaveName(ctx context.Context, userID, name string) error
	ResolveName(ctx context.Context, userID string) (string, bool, error)
}

// SessionRepository is the live session table, keyed by user.
type SessionRepository interface {
	Get(userID string) (*Session, bool)
	// Replace stores session for userID and returns the session it displaced, if any.
	Replace(userID string, session *Session) (*Session, bool)
	// Delete removes the entry only if it still points at session.
	Delete(userID string, session *Session) bool
}

// Notifier delivers engine output to the user's chat.
type Notifier interface {
	ShowQuestion(ctx context.Context, userID string, question domain.QuestionView) error
	ShowResult(ctx context.Context, userID, text string) error
	ShowLeaderboard(ctx context.Context, userID string, leaderboard domain.Leaderboard) error
}

// EventPublisher announces finished quizzes to other systems.
type EventPublisher interface {
	PublishQuizCompleted(ctx context.Context, event domain.QuizCompleted) error
}

// Settings tunes the quiz engine.
type Settings struct {
	QuestionCount   int
	Distractors     int
	AnswerTimeout   time.Duration
	LeaderboardSize int
	WriteRetries    uint64
	RetryInterval   time.Duration
}

// DefaultSettings mirrors the classic 10 questions, 4 options, 10 seconds per question.
func DefaultSettings() Settings {
	return Settings{
		QuestionCount:   DefaultQuestionCount,
		Distractors:     DefaultDistractors,
		AnswerTimeout:   10 * time.Second,
		LeaderboardSize: 5,
		WriteRetries:    3,
		RetryInterval:   200 * time.Millisecond,
	}
}

// Outcome classifies how an answer event was handled.
type Outcome int

const (
	OutcomeAccepted Outcome = iota
	// OutcomeStale means the answer targeted a question that was already resolved.
	OutcomeStale
	// OutcomeNoSession means the user had no live session.
	OutcomeNoSession
	// OutcomeRejected means the answer payload did not match the question on screen.
	OutcomeRejected
)

// AnswerResult summarizes the outcome of an answer event.
type AnswerResult struct {
	Outcome Outcome
	Correct bool
	Score   int
}

// Option customizes a QuizService.
type Option func(*QuizService)

func WithSettings(settings Settings) Option {
	return func(s *QuizService) { s.settings = settings }
}

func WithTimers(timers Timers) Option {
	return func(s *QuizService) { s.timers = timers }
}

func WithSelector(selector *Selector) Option {
	return func(s *QuizService) { s.selector = selector }
}

func WithPublisher(events EventPublisher) Option {
	return func(s *QuizService) { s.events = events }
}

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// QuizService runs one quiz state machine per user.
type QuizService struct {
	pool     QuestionPool
	progress ProgressStore
	names    NameStore
	sessions SessionRepository
	notifier Notifier
	events   EventPublisher
	timers   Timers
	selector *Selector
	settings Settings
	now      func() time.Time
}

func NewQuizService(pool QuestionPool, progress ProgressStore, names NameStore, sessions SessionRepository, notifier Notifier, opts ...Option) *QuizService {
	s := &QuizService{
		pool:     pool,
		progress: progress,
		names:    names,
		sessions: sessions,
		notifier: notifier,
		timers:   realTimers{},
		settings: DefaultSettings(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.selector == nil {
		s.selector = NewSelector(nil, s.settings.QuestionCount)
	}
	return s
}

// StartQuiz starts a fresh session for the user. A running session is retired only
// once the replacement is ready, so a failed start leaves it playable.
func (s *QuizService) StartQuiz(ctx context.Context, userID, username string) error {
	if username != "" {
		if err := s.names.SaveName(ctx, userID, username); err != nil {
			log.Printf("quiz: save name for %s: %v", userID, err)
		}
	}

	pool, err := s.pool.FetchAll(ctx)
	if err != nil {
		s.say(ctx, userID, msgUnavailable)
		return fmt.Errorf("%w: %w", domain.ErrPoolUnavailable, err)
	}
	progress, err := s.loadProgress(ctx, userID)
	if err != nil {
		s.say(ctx, userID, msgUnavailable)
		return err
	}

	questions, _, err := s.selector.SelectQuestions(pool, progress.Asked())
	if err != nil {
		s.say(ctx, userID, msgEmptyPool)
		return err
	}

	session := NewSession(uuid.NewString(), userID, questions, pool, s.now())
	session.mu.Lock()
	defer session.mu.Unlock()

	if prev, ok := s.sessions.Replace(userID, session); ok && prev != session {
		prev.retire(StateQuit)
	}
	session.state = StateAwaitingAnswer
	log.Printf("quiz: session %s started for %s with %d questions", session.id, userID, len(questions))
	s.emitLocked(ctx, session)
	return nil
}

// Answer resolves the current question with a correctness flag supplied by the transport.
func (s *QuizService) Answer(ctx context.Context, userID string, index int, isCorrect bool) (AnswerResult, error) {
	return s.answer(ctx, userID, index, func(*Session) (bool, error) {
		return isCorrect, nil
	})
}

// SelectOption resolves the current question from the position of the option the user tapped.
func (s *QuizService) SelectOption(ctx context.Context, userID string, index, choice int) (AnswerResult, error) {
	return s.answer(ctx, userID, index, func(session *Session) (bool, error) {
		if choice < 0 || choice >= len(session.options.Items) {
			return false, domain.ErrOptionNotFound
		}
		return choice == session.options.Correct, nil
	})
}

func (s *QuizService) answer(ctx context.Context, userID string, index int, judge func(*Session) (bool, error)) (AnswerResult, error) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		s.say(ctx, userID, msgSessionEnded)
		return AnswerResult{Outcome: OutcomeNoSession}, nil
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if !session.liveLocked() {
		s.say(ctx, userID, msgSessionEnded)
		return AnswerResult{Outcome: OutcomeNoSession, Score: session.score}, nil
	}
	if index != session.current {
		s.say(ctx, userID, msgStale)
		return AnswerResult{Outcome: OutcomeStale, Score: session.score}, nil
	}

	correct, err := judge(session)
	if err != nil {
		return AnswerResult{Outcome: OutcomeRejected, Score: session.score}, err
	}

	expected := session.questions[session.current]
	session.stopTimerLocked()
	session.recordLocked(correct)
	if correct {
		s.say(ctx, userID, msgCorrect)
	} else {
		s.say(ctx, userID, fmt.Sprintf(msgWrong, expected.CorrectMeaning))
	}
	result := AnswerResult{Outcome: OutcomeAccepted, Correct: correct, Score: session.score}
	s.emitLocked(ctx, session)
	return result, nil
}

// Timeout advances past question index if it is still unanswered. It reports whether it had an effect.
func (s *QuizService) Timeout(ctx context.Context, userID string, index int) bool {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return false
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	return s.timeoutLocked(ctx, session, index)
}

// expire is the timer callback; it acts only while the session still carries the same fence.
func (s *QuizService) expire(userID string, f fence) {
	session, ok := s.sessions.Get(userID)
	if !ok || session.id != f.sessionID {
		return
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.fence != f {
		return
	}
	s.timeoutLocked(context.Background(), session, f.index)
}

func (s *QuizService) timeoutLocked(ctx context.Context, session *Session, index int) bool {
	if !session.liveLocked() || session.current != index {
		return false
	}
	session.stopTimerLocked()
	s.say(ctx, session.userID, msgTimeUp)
	session.recordLocked(false)
	s.emitLocked(ctx, session)
	return true
}

// Quit abandons the user's session without saving anything.
func (s *QuizService) Quit(ctx context.Context, userID string) bool {
	session, ok := s.sessions.Get(userID)
	if !ok || !session.retire(StateQuit) {
		s.say(ctx, userID, msgNoQuiz)
		return false
	}
	s.sessions.Delete(userID, session)
	log.Printf("quiz: session %s quit by %s", session.id, userID)
	s.say(ctx, userID, msgQuit)
	return true
}

// Session returns a snapshot of the user's live session.
func (s *QuizService) Session(userID string) (SessionSnapshot, bool) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return SessionSnapshot{}, false
	}
	return session.Snapshot(), true
}

// Progress returns the stored progress, or the default record for new users.
func (s *QuizService) Progress(ctx context.Context, userID string) (domain.UserProgress, error) {
	return s.loadProgress(ctx, userID)
}

// RequestProgress sends the user's progress to their chat.
func (s *QuizService) RequestProgress(ctx context.Context, userID string) (domain.UserProgress, error) {
	progress, err := s.loadProgress(ctx, userID)
	if err != nil {
		s.say(ctx, userID, msgUnavailable)
		return domain.UserProgress{}, err
	}
	s.say(ctx, userID, FormatProgress(progress))
	return progress, nil
}

// emitLocked presents the current question and arms its timer, or completes the session.
func (s *QuizService) emitLocked(ctx context.Context, session *Session) {
	for session.current < len(session.questions) {
		item := session.questions[session.current]
		options, err := s.selector.BuildOptions(session.pool, item, s.settings.Distractors)
		if err != nil {
			log.Printf("quiz: skipping question %d of session %s: %v", session.current, session.id, err)
			session.current++
			continue
		}

		session.stopTimerLocked()
		session.options = options
		view := domain.QuestionView{
			Index:     session.current,
			Total:     len(session.questions),
			Prompt:    item.Prompt,
			Options:   options.Meanings(),
			TimeLimit: s.settings.AnswerTimeout,
		}
		if err := s.notifier.ShowQuestion(ctx, session.userID, view); err != nil {
			log.Printf("quiz: show question to %s: %v", session.userID, err)
		}

		f := fence{sessionID: session.id, index: session.current}
		userID := session.userID
		session.fence = f
		session.timer = s.timers.AfterFunc(s.settings.AnswerTimeout, func() {
			s.expire(userID, f)
		})
		return
	}
	s.completeLocked(ctx, session)
}

func (s *QuizService) completeLocked(ctx context.Context, session *Session) {
	session.stopTimerLocked()
	session.state = StateCompleted

	total := len(session.questions)
	s.say(ctx, session.userID, fmt.Sprintf(msgFinished, session.score, total))

	asked := make([]string, len(session.asked))
	copy(asked, session.asked)
	progress, leveledUp, err := s.persist(ctx, session.userID, SessionResult{
		Score:    session.score,
		Total:    total,
		AskedIDs: asked,
	})
	s.sessions.Delete(session.userID, session)

	durable := err == nil
	if !durable {
		log.Printf("quiz: progress for %s not saved after session %s: %v", session.userID, session.id, err)
		s.say(ctx, session.userID, msgNotSaved)
	} else if leveledUp {
		s.say(ctx, session.userID, fmt.Sprintf(msgLevelUp, progress.Level))
	}
	log.Printf("quiz: session %s completed for %s (%d/%d)", session.id, session.userID, session.score, total)

	if s.events == nil {
		return
	}
	event := domain.QuizCompleted{
		SessionID:   session.id,
		UserID:      session.userID,
		Score:       session.score,
		Total:       total,
		Level:       progress.Level,
		LeveledUp:   leveledUp,
		Durable:     durable,
		CompletedAt: s.now(),
	}
	if err := s.events.PublishQuizCompleted(ctx, event); err != nil {
		log.Printf("quiz: publish completion of %s: %v", session.id, err)
	}
}

// persist merges the session into stored progress, retrying transient store failures.
func (s *QuizService) persist(ctx context.Context, userID string, result SessionResult) (domain.UserProgress, bool, error) {
	var (
		next      domain.UserProgress
		leveledUp bool
	)
	op := func() error {
		current, err := s.loadProgress(ctx, userID)
		if err != nil {
			return err
		}
		next, leveledUp = MergeProgress(current, result)
		next.UserID = userID
		if err := s.progress.Put(ctx, userID, next); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.settings.RetryInterval
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, s.settings.WriteRetries), ctx))
	return next, leveledUp, err
}

func (s *QuizService) loadProgress(ctx context.Context, userID string) (domain.UserProgress, error) {
	progress, found, err := s.progress.Get(ctx, userID)
	if err != nil {
		return domain.UserProgress{}, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	if !found {
		return domain.NewUserProgress(userID), nil
	}
	return progress, nil
}

func (s *QuizService) say(ctx context.Context, userID, text string) {
	if err := s.notifier.ShowResult(ctx, userID, text); err != nil {
		log.Printf("quiz: notify %s: %v", userID, err)
	}
}
