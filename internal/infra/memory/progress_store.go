package memory

import (
	"context"
	"sync"

	"chat-quiz-bot/internal/domain"
)

// ProgressStore keeps progress records in process memory; data is lost on restart.
type ProgressStore struct {
	mu      sync.RWMutex
	records map[string]domain.UserProgress
	order   []string
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{records: make(map[string]domain.UserProgress)}
}

func (s *ProgressStore) Get(_ context.Context, userID string) (domain.UserProgress, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[userID]
	if !ok {
		return domain.UserProgress{}, false, nil
	}
	return cloneProgress(record), true, nil
}

func (s *ProgressStore) Put(_ context.Context, userID string, progress domain.UserProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[userID]; !ok {
		s.order = append(s.order, userID)
	}
	progress.UserID = userID
	s.records[userID] = cloneProgress(progress)
	return nil
}

func (s *ProgressStore) GetAll(_ context.Context) ([]domain.UserProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserProgress, 0, len(s.order))
	for _, userID := range s.order {
		out = append(out, cloneProgress(s.records[userID]))
	}
	return out, nil
}

func cloneProgress(p domain.UserProgress) domain.UserProgress {
	asked := make([]string, len(p.AskedHistory))
	copy(asked, p.AskedHistory)
	p.AskedHistory = asked
	return p
}

// NameStore keeps chat usernames in process memory.
type NameStore struct {
	mu    sync.RWMutex
	names map[string]string
}

func NewNameStore() *NameStore {
	return &NameStore{names: make(map[string]string)}
}

func (s *NameStore) SaveName(_ context.Context, userID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[userID] = name
	return nil
}

func (s *NameStore) ResolveName(_ context.Context, userID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.names[userID]
	return name, ok, nil
}
