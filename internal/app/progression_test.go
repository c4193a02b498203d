package app

import (
	"testing"
	"time"

	"quiz-progression-service/internal/domain"
)

var day = 24 * time.Hour

func resultAt(completedAt time.Time, score int) domain.QuizResult {
	return domain.QuizResult{
		ID:             "r1",
		QuizID:         "quiz-1",
		UserID:         "u1",
		Score:          score,
		TotalQuestions: 2,
		CorrectAnswers: 1,
		CompletedAt:    completedAt,
	}
}

func TestXPAwardBreakdown(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	stats := NewUserStats("u1")
	stats.CurrentStreak = 2
	stats.LongestStreak = 2
	stats.LastQuizAt = now.Add(-day) // yesterday

	report := ApplyResult(&stats, resultAt(now, 100))

	// streak bonus uses the streak before this quiz's recompute: 2*5.
	if report.XP.Base != 100 || report.XP.StreakBonus != 10 || report.XP.PerfectBonus != 50 {
		t.Fatalf("award = %+v, want base 100 streak 10 perfect 50", report.XP)
	}
	if report.XP.Total() != 160 {
		t.Fatalf("total = %d, want 160", report.XP.Total())
	}
	if stats.CurrentStreak != 3 {
		t.Fatalf("streak = %d, want 3", stats.CurrentStreak)
	}
}

func TestStreakSameDayUnchanged(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	stats := NewUserStats("u1")

	ApplyResult(&stats, resultAt(now, 50))
	if stats.CurrentStreak != 1 {
		t.Fatalf("first quiz: streak = %d, want 1", stats.CurrentStreak)
	}
	ApplyResult(&stats, resultAt(now.Add(2*time.Hour), 50))
	if stats.CurrentStreak != 1 {
		t.Fatalf("second quiz same day: streak = %d, want 1", stats.CurrentStreak)
	}
}

func TestStreakConsecutiveDays(t *testing.T) {
	start := time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC)
	stats := NewUserStats("u1")

	for i := 0; i < 4; i++ {
		ApplyResult(&stats, resultAt(start.Add(time.Duration(i)*day), 50))
	}
	if stats.CurrentStreak != 4 {
		t.Fatalf("streak = %d, want 4", stats.CurrentStreak)
	}
	if stats.LongestStreak != 4 {
		t.Fatalf("longest = %d, want 4", stats.LongestStreak)
	}
}

func TestStreakResetsAfterGap(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	stats := NewUserStats("u1")
	stats.CurrentStreak = 5
	stats.LongestStreak = 5
	stats.LastQuizAt = now.Add(-3 * day)

	ApplyResult(&stats, resultAt(now, 50))
	if stats.CurrentStreak != 1 {
		t.Fatalf("streak = %d, want reset to 1", stats.CurrentStreak)
	}
	if stats.LongestStreak != 5 {
		t.Fatalf("longest = %d, want preserved 5", stats.LongestStreak)
	}
}

func TestLevelUpAtExactThreshold(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	stats := NewUserStats("u1")
	// No prior quiz: streak bonus is 0, so a 50-point score lands exactly on
	// the 100 threshold.
	stats.XP = 50
	report := ApplyResult(&stats, resultAt(now, 50))
	if !report.LeveledUp {
		t.Fatalf("expected level-up at exact threshold, got %+v", report)
	}
	if stats.Level != 2 {
		t.Fatalf("level = %d, want 2", stats.Level)
	}
	if stats.XPToNextLevel != 150 {
		t.Fatalf("next threshold = %d, want round(100*1.5)=150", stats.XPToNextLevel)
	}
}

func TestLevelUpIsSingleStep(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	stats := NewUserStats("u1")
	stats.XP = 140 // a perfect quiz will push far past both 100 and 150

	report := ApplyResult(&stats, resultAt(now, 100))
	if !report.LeveledUp || stats.Level != 2 {
		t.Fatalf("expected exactly one level gained, got level %d", stats.Level)
	}
}

func TestBadgeIdempotence(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	stats := NewUserStats("u1")

	first := ApplyResult(&stats, resultAt(now, 100))
	if !hasBadgeIn(first.NewBadges, "first-quiz") || !hasBadgeIn(first.NewBadges, "perfect-score") {
		t.Fatalf("expected first-quiz and perfect-score badges, got %+v", first.NewBadges)
	}

	second := ApplyResult(&stats, resultAt(now.Add(time.Hour), 100))
	for _, badge := range second.NewBadges {
		if badge.ID == "first-quiz" || badge.ID == "perfect-score" {
			t.Fatalf("badge %s awarded twice", badge.ID)
		}
	}
	seen := map[string]int{}
	for _, badge := range stats.Badges {
		seen[badge.ID]++
		if seen[badge.ID] > 1 {
			t.Fatalf("duplicate badge %s in earned set", badge.ID)
		}
	}
}

func TestAverageScoreRunningMean(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	stats := NewUserStats("u1")

	ApplyResult(&stats, resultAt(now, 80))
	ApplyResult(&stats, resultAt(now.Add(time.Hour), 60))
	if stats.AverageScore != 70 {
		t.Fatalf("average = %d, want 70", stats.AverageScore)
	}
}

func TestAccuracyDivisionGuard(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	stats := NewUserStats("u1")
	result := resultAt(now, 0)
	result.TotalQuestions = 0
	result.CorrectAnswers = 0

	ApplyResult(&stats, result)
	if stats.Accuracy != 0 {
		t.Fatalf("accuracy = %d, want 0 with no questions answered", stats.Accuracy)
	}
}

func hasBadgeIn(badges []domain.Badge, id string) bool {
	for _, b := range badges {
		if b.ID == id {
			return true
		}
	}
	return false
}
