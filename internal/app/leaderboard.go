package app

import (
	"context"
	"fmt"
	"log"
	"sort"

	"chat-quiz-bot/internal/domain"
)

// Leaderboard ranks every stored user by their latest score. A limit of zero or less
// uses the configured leaderboard size.
func (s *QuizService) Leaderboard(ctx context.Context, limit int) (domain.Leaderboard, error) {
	if limit <= 0 {
		limit = s.settings.LeaderboardSize
	}

	records, err := s.progress.GetAll(ctx)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}

	// Stable sort keeps the store's insertion order for equal scores.
	ranked := make([]domain.UserProgress, len(records))
	copy(ranked, records)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	entries := make([]domain.LeaderboardEntry, 0, len(ranked))
	for i, record := range ranked {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:        i + 1,
			UserID:      record.UserID,
			DisplayName: s.displayName(ctx, record.UserID),
			Score:       record.Score,
		})
	}
	return domain.Leaderboard{Entries: entries, UpdatedAt: s.now()}, nil
}

// RequestLeaderboard sends the leaderboard to the requesting user's chat.
func (s *QuizService) RequestLeaderboard(ctx context.Context, userID string) (domain.Leaderboard, error) {
	lb, err := s.Leaderboard(ctx, 0)
	if err != nil {
		s.say(ctx, userID, msgUnavailable)
		return domain.Leaderboard{}, err
	}
	if err := s.notifier.ShowLeaderboard(ctx, userID, lb); err != nil {
		log.Printf("quiz: show leaderboard to %s: %v", userID, err)
	}
	return lb, nil
}

// PlaceholderName is shown for users whose chat name is unknown.
func PlaceholderName(userID string) string {
	return "User" + userID
}

func (s *QuizService) displayName(ctx context.Context, userID string) string {
	name, ok, err := s.names.ResolveName(ctx, userID)
	if err != nil {
		log.Printf("quiz: resolve name for %s: %v", userID, err)
		return PlaceholderName(userID)
	}
	if !ok || name == "" {
		return PlaceholderName(userID)
	}
	return name
}
