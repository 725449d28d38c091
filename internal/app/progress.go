package app

import "chat-quiz-bot/internal/domain"

// SessionResult is what a completed session contributes to durable progress.
type SessionResult struct {
	Score    int
	Total    int
	AskedIDs []string
}

// PassMark is the minimum score that earns a level: half of the questions, rounded up.
func PassMark(total int) int {
	return (total + 1) / 2
}

// MergeProgress folds a finished session into the stored progress. The asked history
// only ever grows; the stored score is replaced by the latest session score.
func MergeProgress(current domain.UserProgress, result SessionResult) (domain.UserProgress, bool) {
	if current.Level < 1 {
		current.Level = 1
	}
	leveledUp := result.Total > 0 && result.Score >= PassMark(result.Total)

	next := domain.UserProgress{
		UserID:       current.UserID,
		Level:        current.Level,
		Score:        result.Score,
		AskedHistory: domain.MergeIDs(current.AskedHistory, result.AskedIDs),
	}
	if leveledUp {
		next.Level++
	}
	return next, leveledUp
}
