package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"quiz-progression-service/internal/app"
	"quiz-progression-service/internal/domain"
)

type quizResultRow struct {
	bun.BaseModel `bun:"table:quiz_results"`

	ID             string    `bun:"id,pk"`
	UserID         string    `bun:"user_id"`
	QuizID         string    `bun:"quiz_id"`
	Score          int       `bun:"score"`
	TotalQuestions int       `bun:"total_questions"`
	CorrectAnswers int       `bun:"correct_answers"`
	TimeSpentSec   int       `bun:"time_spent_sec"`
	CompletedAt    time.Time `bun:"completed_at"`
}

type userStatsRow struct {
	bun.BaseModel `bun:"table:user_stats"`

	UserID         string    `bun:"user_id,pk"`
	TotalQuizzes   int       `bun:"total_quizzes"`
	TotalQuestions int       `bun:"total_questions"`
	TotalCorrect   int       `bun:"total_correct"`
	AverageScore   int       `bun:"average_score"`
	XP             int       `bun:"xp"`
	Level          int       `bun:"level"`
	XPToNextLevel  int       `bun:"xp_to_next_level"`
	CurrentStreak  int       `bun:"current_streak"`
	LongestStreak  int       `bun:"longest_streak"`
	LastQuizAt     time.Time `bun:"last_quiz_at,nullzero"`
	Badges         []byte    `bun:"badges,type:jsonb"`
	Accuracy       int       `bun:"accuracy"`
}

type completionRow struct {
	bun.BaseModel `bun:"table:quiz_completions"`

	LedgerKey   string    `bun:"ledger_key,pk"`
	QuizID      string    `bun:"quiz_id,pk"`
	CompletedAt time.Time `bun:"completed_at"`
}

// ResultStore is the authoritative Postgres tier: append-only result
// history, one progression row per user, and the server-backed completion
// ledger. It satisfies both app.StatsStore and app.LedgerStore.
type ResultStore struct {
	db *bun.DB
}

func NewResultStore(db *bun.DB) *ResultStore {
	return &ResultStore{db: db}
}

func (s *ResultStore) SaveResult(ctx context.Context, result domain.QuizResult) error {
	row := &quizResultRow{
		ID:             result.ID,
		UserID:         result.UserID,
		QuizID:         result.QuizID,
		Score:          result.Score,
		TotalQuestions: result.TotalQuestions,
		CorrectAnswers: result.CorrectAnswers,
		TimeSpentSec:   result.TimeSpentSec,
		CompletedAt:    result.CompletedAt,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

func (s *ResultStore) History(ctx context.Context, userID string) ([]domain.QuizResult, error) {
	var rows []quizResultRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Order("completed_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	history := make([]domain.QuizResult, 0, len(rows))
	for _, row := range rows {
		history = append(history, domain.QuizResult{
			ID:             row.ID,
			UserID:         row.UserID,
			QuizID:         row.QuizID,
			Score:          row.Score,
			TotalQuestions: row.TotalQuestions,
			CorrectAnswers: row.CorrectAnswers,
			TimeSpentSec:   row.TimeSpentSec,
			CompletedAt:    row.CompletedAt,
		})
	}
	return history, nil
}

func (s *ResultStore) LoadStats(ctx context.Context, userID string) (domain.UserStats, error) {
	row := new(userStatsRow)
	err := s.db.NewSelect().Model(row).Where("user_id = ?", userID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UserStats{}, domain.ErrStatsNotFound
		}
		return domain.UserStats{}, fmt.Errorf("load stats: %w", err)
	}

	stats := domain.UserStats{
		UserID:         row.UserID,
		TotalQuizzes:   row.TotalQuizzes,
		TotalQuestions: row.TotalQuestions,
		TotalCorrect:   row.TotalCorrect,
		AverageScore:   row.AverageScore,
		XP:             row.XP,
		Level:          row.Level,
		XPToNextLevel:  row.XPToNextLevel,
		CurrentStreak:  row.CurrentStreak,
		LongestStreak:  row.LongestStreak,
		LastQuizAt:     row.LastQuizAt,
		Accuracy:       row.Accuracy,
	}
	if len(row.Badges) > 0 {
		if err := json.Unmarshal(row.Badges, &stats.Badges); err != nil {
			return domain.UserStats{}, fmt.Errorf("unmarshal badges: %w", err)
		}
	}
	return stats, nil
}

func (s *ResultStore) SaveStats(ctx context.Context, stats domain.UserStats) error {
	badges, err := json.Marshal(stats.Badges)
	if err != nil {
		return fmt.Errorf("marshal badges: %w", err)
	}
	row := &userStatsRow{
		UserID:         stats.UserID,
		TotalQuizzes:   stats.TotalQuizzes,
		TotalQuestions: stats.TotalQuestions,
		TotalCorrect:   stats.TotalCorrect,
		AverageScore:   stats.AverageScore,
		XP:             stats.XP,
		Level:          stats.Level,
		XPToNextLevel:  stats.XPToNextLevel,
		CurrentStreak:  stats.CurrentStreak,
		LongestStreak:  stats.LongestStreak,
		LastQuizAt:     stats.LastQuizAt,
		Badges:         badges,
		Accuracy:       stats.Accuracy,
	}
	_, err = s.db.NewInsert().
		Model(row).
		On("CONFLICT (user_id) DO UPDATE").
		Set("total_quizzes = EXCLUDED.total_quizzes").
		Set("total_questions = EXCLUDED.total_questions").
		Set("total_correct = EXCLUDED.total_correct").
		Set("average_score = EXCLUDED.average_score").
		Set("xp = EXCLUDED.xp").
		Set("level = EXCLUDED.level").
		Set("xp_to_next_level = EXCLUDED.xp_to_next_level").
		Set("current_streak = EXCLUDED.current_streak").
		Set("longest_streak = EXCLUDED.longest_streak").
		Set("last_quiz_at = EXCLUDED.last_quiz_at").
		Set("badges = EXCLUDED.badges").
		Set("accuracy = EXCLUDED.accuracy").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	return nil
}

// ResetStats writes the zeroed starting record over the user's row.
func (s *ResultStore) ResetStats(ctx context.Context, userID string) error {
	return s.SaveStats(ctx, app.NewUserStats(userID))
}

func (s *ResultStore) Completions(ctx context.Context, key string) (map[string]bool, error) {
	var rows []completionRow
	err := s.db.NewSelect().Model(&rows).Where("ledger_key = ?", key).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load completions: %w", err)
	}
	completed := make(map[string]bool, len(rows))
	for _, row := range rows {
		completed[row.QuizID] = true
	}
	return completed, nil
}

func (s *ResultStore) MarkCompleted(ctx context.Context, key, quizID string) error {
	row := &completionRow{
		LedgerKey:   key,
		QuizID:      quizID,
		CompletedAt: time.Now().UTC(),
	}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (ledger_key, quiz_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}
