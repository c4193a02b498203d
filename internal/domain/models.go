package domain

import "time"

// TimedOutAnswer is the reserved answer index recorded when a question's
// countdown reaches zero without a selection. It never matches a valid
// option index, so it can never score.
const TimedOutAnswer = -1

// OptionCount is the fixed number of answer options per question.
const OptionCount = 4

// DefaultQuestionSeconds is the per-question time limit applied when a
// question does not declare its own.
const DefaultQuestionSeconds = 30

// Difficulty labels quizzes and questions on a three-level scale.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Question models a single multiple-choice question with exactly four options.
type Question struct {
	ID           string     `json:"id"`
	Prompt       string     `json:"prompt"`
	Options      []string   `json:"options"`
	CorrectIndex int        `json:"correctIndex"`
	Points       float64    `json:"points"`
	TimeLimitSec int        `json:"timeLimitSec"` // defaults to DefaultQuestionSeconds if zero
	Explanation  string     `json:"explanation"`
	Tip          string     `json:"tip,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	Difficulty   Difficulty `json:"difficulty,omitempty"`
}

// TimeLimit returns the effective countdown for the question.
func (q Question) TimeLimit() int {
	if q.TimeLimitSec > 0 {
		return q.TimeLimitSec
	}
	return DefaultQuestionSeconds
}

// Quiz is an ordered collection of questions. Immutable during a session.
type Quiz struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Category   string     `json:"category"`
	Difficulty Difficulty `json:"difficulty"`
	Questions  []Question `json:"questions"`
}

// TotalTimeSec sums the per-question limits. Display hint only, not
// authoritative for session pacing.
func (q Quiz) TotalTimeSec() int {
	total := 0
	for _, question := range q.Questions {
		total += question.TimeLimit()
	}
	return total
}

// QuizResult is the immutable record of one finished attempt.
type QuizResult struct {
	ID             string    `json:"id"`
	QuizID         string    `json:"quizId"`
	UserID         string    `json:"userId,omitempty"` // empty for guests
	Score          int       `json:"score"`            // 0-100
	TotalQuestions int       `json:"totalQuestions"`
	CorrectAnswers int       `json:"correctAnswers"`
	TimeSpentSec   int       `json:"timeSpentSec"`
	CompletedAt    time.Time `json:"completedAt"`
}

// Badge is a one-time achievement marker. IDs are unique within a user's set.
type Badge struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	EarnedAt time.Time `json:"earnedAt"`
}

// UserStats tracks a user's accumulated progression. One per authenticated
// user; guests have no stats, only completion flags.
type UserStats struct {
	UserID         string    `json:"userId"`
	TotalQuizzes   int       `json:"totalQuizzes"`
	TotalQuestions int       `json:"totalQuestions"`
	TotalCorrect   int       `json:"totalCorrect"`
	AverageScore   int       `json:"averageScore"`
	XP             int       `json:"xp"`
	Level          int       `json:"level"`
	XPToNextLevel  int       `json:"xpToNextLevel"`
	CurrentStreak  int       `json:"currentStreak"`
	LongestStreak  int       `json:"longestStreak"`
	LastQuizAt     time.Time `json:"lastQuizAt"`
	Badges         []Badge   `json:"badges"`
	Accuracy       int       `json:"accuracy"`
}

// HasBadge reports whether the badge id is already in the earned set.
func (s UserStats) HasBadge(id string) bool {
	for _, b := range s.Badges {
		if b.ID == id {
			return true
		}
	}
	return false
}
