package app

import (
	"math"
	"time"

	"quiz-progression-service/internal/domain"
)

const (
	streakBonusPerDay  = 5
	perfectBonusXP     = 50
	initialXPThreshold = 100
	levelGrowthFactor  = 1.5
)

// XPAward breaks down the experience earned for one finished quiz.
type XPAward struct {
	Base         int `json:"base"`
	StreakBonus  int `json:"streakBonus"`
	PerfectBonus int `json:"perfectBonus"`
}

// Total is the XP actually credited.
func (a XPAward) Total() int {
	return a.Base + a.StreakBonus + a.PerfectBonus
}

// ProgressReport summarizes what one result changed.
type ProgressReport struct {
	XP        XPAward        `json:"xp"`
	LeveledUp bool           `json:"leveledUp"`
	NewLevel  int            `json:"newLevel"`
	NewBadges []domain.Badge `json:"newBadges,omitempty"`
}

// NewUserStats returns the starting progression record: level 1, no XP,
// and the first level-up threshold.
func NewUserStats(userID string) domain.UserStats {
	return domain.UserStats{
		UserID:        userID,
		Level:         1,
		XPToNextLevel: initialXPThreshold,
	}
}

// ApplyResult folds one finished quiz into the user's stats and reports
// the XP award, any level-up, and newly earned badges.
//
// The streak bonus is computed from the streak as it stood before this
// quiz's streak recompute. The level check is single-step: one award
// raises the level by at most one, with leftover XP counting toward the
// next threshold on the next award.
func ApplyResult(stats *domain.UserStats, result domain.QuizResult) ProgressReport {
	award := XPAward{
		Base:        result.Score,
		StreakBonus: stats.CurrentStreak * streakBonusPerDay,
	}
	if result.Score == maxScore {
		award.PerfectBonus = perfectBonusXP
	}

	oldCount := stats.TotalQuizzes
	stats.TotalQuizzes++
	stats.TotalQuestions += result.TotalQuestions
	stats.TotalCorrect += result.CorrectAnswers
	stats.AverageScore = int(math.Round(
		(float64(stats.AverageScore)*float64(oldCount) + float64(result.Score)) / float64(stats.TotalQuizzes)))
	if stats.TotalQuestions > 0 {
		stats.Accuracy = int(math.Round(100 * float64(stats.TotalCorrect) / float64(stats.TotalQuestions)))
	} else {
		stats.Accuracy = 0
	}

	updateStreak(stats, result.CompletedAt)
	stats.LastQuizAt = result.CompletedAt

	stats.XP += award.Total()
	report := ProgressReport{XP: award}
	if stats.XP >= stats.XPToNextLevel {
		stats.Level++
		stats.XPToNextLevel = int(math.Round(float64(stats.XPToNextLevel) * levelGrowthFactor))
		report.LeveledUp = true
	}
	report.NewLevel = stats.Level
	report.NewBadges = awardBadges(stats, result)
	return report
}

// updateStreak advances the consecutive-day streak by calendar day, not by
// 24-hour window. Only the first quiz of a day moves it; a completion on
// the day after the last one extends it; any larger gap resets it to 1.
func updateStreak(stats *domain.UserStats, completedAt time.Time) {
	switch {
	case stats.LastQuizAt.IsZero():
		stats.CurrentStreak = 1
	case sameCalendarDay(stats.LastQuizAt, completedAt):
		return
	case sameCalendarDay(stats.LastQuizAt.AddDate(0, 0, 1), completedAt):
		stats.CurrentStreak++
	default:
		stats.CurrentStreak = 1
	}
	if stats.CurrentStreak > stats.LongestStreak {
		stats.LongestStreak = stats.CurrentStreak
	}
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
