package app

import (
	"fmt"
	"strings"

	"chat-quiz-bot/internal/domain"
)

const (
	msgCorrect       = "✅ Correct!"
	msgWrong         = "❌ Wrong! The answer was: %s"
	msgTimeUp        = "⏳ Time's up! Moving to the next question."
	msgStale         = "That question has already been answered."
	msgSessionEnded  = "This quiz session has ended. Press Start Quiz to play again."
	msgFinished      = "Quiz finished! Your score: %d/%d"
	msgLevelUp       = "🎉 Level up! You are now level %d."
	msgNotSaved      = "We could not save your progress this time."
	msgQuit          = "Quiz stopped. This run was not saved."
	msgNoQuiz        = "You have no active quiz."
	msgEmptyPool     = "There are no questions yet. Please try again later."
	msgUnavailable   = "Something went wrong on our side. Please try again."
	msgProgress      = "Your current score: %d\nLevel: %d\nQuestions seen: %d"
	leaderboardTitle = "🏆 Leaderboard 🏆"
	noScoresText     = "No scores yet."
)

// FormatLeaderboard renders a leaderboard as plain chat text.
func FormatLeaderboard(lb domain.Leaderboard) string {
	if lb.Empty() {
		return leaderboardTitle + "\n\n" + noScoresText
	}
	var b strings.Builder
	b.WriteString(leaderboardTitle)
	b.WriteString("\n")
	for _, entry := range lb.Entries {
		fmt.Fprintf(&b, "\n%d. @%s: %d points", entry.Rank, entry.DisplayName, entry.Score)
	}
	return b.String()
}

// FormatProgress renders a progress record as plain chat text.
func FormatProgress(p domain.UserProgress) string {
	return fmt.Sprintf(msgProgress, p.Score, p.Level, len(p.AskedHistory))
}
