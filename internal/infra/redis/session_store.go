package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	"chat-quiz-bot/internal/app"
	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-aware implementation of SessionRepository.
// Sessions own timers and locks, so the table itself stays in process;
// Redis carries a liveness marker per user (quiz:session:{userID} -> session id)
// that other instances and operators can inspect.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Get(userID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[userID]
	return session, ok
}

func (s *SessionStore) Replace(userID string, session *app.Session) (*app.Session, bool) {
	s.mu.Lock()
	prev, ok := s.sessions[userID]
	s.sessions[userID] = session
	s.mu.Unlock()

	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(userID), session.ID(), s.ttl).Err()
	return prev, ok
}

func (s *SessionStore) Delete(userID string, session *app.Session) bool {
	s.mu.Lock()
	current, ok := s.sessions[userID]
	if !ok || current != session {
		s.mu.Unlock()
		return false
	}
	delete(s.sessions, userID)
	s.mu.Unlock()

	_ = s.client.Del(context.Background(), s.key(userID)).Err()
	return true
}

// LiveSessionID reads the liveness marker for userID.
func (s *SessionStore) LiveSessionID(ctx context.Context, userID string) (string, bool, error) {
	id, err := s.client.Get(ctx, s.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (s *SessionStore) key(userID string) string {
	return "quiz:session:" + userID
}
