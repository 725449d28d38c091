package domain

import (
	"sort"
	"time"
)

// QuizItem is a single entry of the question pool. ID must be unique across the pool.
type QuizItem struct {
	ID             string `json:"id" yaml:"id"`
	Prompt         string `json:"prompt" yaml:"prompt"`
	CorrectMeaning string `json:"meaning" yaml:"meaning"`
}

// UserProgress is the durable per-user record folded at the end of every completed quiz.
type UserProgress struct {
	UserID       string   `json:"userId"`
	Level        int      `json:"level"`
	Score        int      `json:"score"`
	AskedHistory []string `json:"askedHistory"`
}

// NewUserProgress returns the default record for a user that has never finished a quiz.
func NewUserProgress(userID string) UserProgress {
	return UserProgress{UserID: userID, Level: 1, AskedHistory: []string{}}
}

// Asked returns the asked history as a set.
func (p UserProgress) Asked() map[string]struct{} {
	set := make(map[string]struct{}, len(p.AskedHistory))
	for _, id := range p.AskedHistory {
		set[id] = struct{}{}
	}
	return set
}

// MergeIDs returns the sorted union of a and b without duplicates.
func MergeIDs(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		set[id] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// OptionSet is the shuffled list of choices shown for one question.
type OptionSet struct {
	Items   []QuizItem
	Correct int
}

// Meanings returns the option labels in display order.
func (o OptionSet) Meanings() []string {
	out := make([]string, len(o.Items))
	for i, item := range o.Items {
		out[i] = item.CorrectMeaning
	}
	return out
}

// QuestionView is what a transport renders for the current question.
type QuestionView struct {
	Index     int           `json:"index"`
	Total     int           `json:"total"`
	Prompt    string        `json:"prompt"`
	Options   []string      `json:"options"`
	TimeLimit time.Duration `json:"timeLimit"`
}

// LeaderboardEntry is one ranked row of the global leaderboard.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
}

// Leaderboard captures the ordered scoreboard across all users.
type Leaderboard struct {
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Empty reports whether nobody has a recorded score yet.
func (l Leaderboard) Empty() bool {
	return len(l.Entries) == 0
}

// QuizCompleted is published after a finished quiz has been folded into progress.
type QuizCompleted struct {
	SessionID   string    `json:"sessionId"`
	UserID      string    `json:"userId"`
	Score       int       `json:"score"`
	Total       int       `json:"total"`
	Level       int       `json:"level"`
	LeveledUp   bool      `json:"leveledUp"`
	Durable     bool      `json:"durable"`
	CompletedAt time.Time `json:"completedAt"`
}
