package app

import "quiz-progression-service/internal/domain"

// badgeRule gates one badge on a stat threshold. Rules are independent
// predicates over the updated stats snapshot, so evaluation order does not
// change which badges fire.
type badgeRule struct {
	id   string
	name string
	met  func(stats domain.UserStats, result domain.QuizResult) bool
}

var badgeCatalog = []badgeRule{
	{"first-quiz", "First Steps", func(s domain.UserStats, _ domain.QuizResult) bool {
		return s.TotalQuizzes >= 1
	}},
	{"quizzes-5", "Getting Serious", func(s domain.UserStats, _ domain.QuizResult) bool {
		return s.TotalQuizzes >= 5
	}},
	{"quizzes-10", "Quiz Veteran", func(s domain.UserStats, _ domain.QuizResult) bool {
		return s.TotalQuizzes >= 10
	}},
	{"streak-3", "On a Roll", func(s domain.UserStats, _ domain.QuizResult) bool {
		return s.CurrentStreak >= 3
	}},
	{"streak-7", "Week Warrior", func(s domain.UserStats, _ domain.QuizResult) bool {
		return s.CurrentStreak >= 7
	}},
	{"accuracy-80", "Sharp Mind", func(s domain.UserStats, _ domain.QuizResult) bool {
		return s.TotalQuestions > 0 && s.Accuracy >= 80
	}},
	{"accuracy-90", "Precision Master", func(s domain.UserStats, _ domain.QuizResult) bool {
		return s.TotalQuestions > 0 && s.Accuracy >= 90
	}},
	{"perfect-score", "Flawless", func(_ domain.UserStats, r domain.QuizResult) bool {
		return r.Score == maxScore
	}},
}

// awardBadges appends every newly met badge to the stats and returns them.
// A badge already in the earned set is never re-added, so evaluating the
// same snapshot twice awards nothing the second time.
func awardBadges(stats *domain.UserStats, result domain.QuizResult) []domain.Badge {
	var earned []domain.Badge
	for _, rule := range badgeCatalog {
		if stats.HasBadge(rule.id) || !rule.met(*stats, result) {
			continue
		}
		badge := domain.Badge{ID: rule.id, Name: rule.name, EarnedAt: result.CompletedAt}
		stats.Badges = append(stats.Badges, badge)
		earned = append(earned, badge)
	}
	return earned
}
