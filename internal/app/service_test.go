package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-progression-service/internal/app"
	"quiz-progression-service/internal/domain"
	"quiz-progression-service/internal/infra/memory"
)

type fixture struct {
	service *app.ProgressionService
	sched   *app.ManualScheduler
	stats   *fakeStatsStore
	cache   *memory.ResultCache
	local   *memory.Ledger
	remote  *recordingLedger
	notices *captureNotifier
}

func newFixture(t *testing.T, stats *fakeStatsStore) *fixture {
	t.Helper()
	sched := app.NewManualScheduler()
	cache := memory.NewResultCache()
	local := memory.NewLedger()
	remote := &recordingLedger{}
	notices := &captureNotifier{}
	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{
		"quiz-1": serviceQuiz(),
	}), 5*time.Minute)

	cfg := app.ServiceConfig{
		Quizzes:      quizzes,
		Sessions:     memory.NewSessionStore(),
		Cache:        cache,
		LocalLedger:  local,
		RemoteLedger: remote,
		Notifier:     notices,
		Scheduler:    sched,
		Clock:        func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) },
	}
	if stats != nil {
		cfg.Stats = stats
	}
	return &fixture{
		service: app.NewProgressionService(cfg),
		sched:   sched,
		stats:   stats,
		cache:   cache,
		local:   local,
		remote:  remote,
		notices: notices,
	}
}

func serviceQuiz() domain.Quiz {
	return domain.Quiz{
		ID:         "quiz-1",
		Title:      "Fractions",
		Category:   "math",
		Difficulty: domain.DifficultyIntermediate,
		Questions: []domain.Question{
			{ID: "q1", Prompt: "p1", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 1, Points: 60, Explanation: "e1"},
			{ID: "q2", Prompt: "p2", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 2, Points: 40, Explanation: "e2"},
		},
	}
}

func runThrough(t *testing.T, f *fixture, session *app.Session, answers ...int) {
	t.Helper()
	for _, answer := range answers {
		if err := f.service.SubmitAnswer(session.ID(), answer); err != nil {
			t.Fatalf("submit: %v", err)
		}
		f.sched.FireOnces()
	}
}

func TestCompleteSessionPersistsUserProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newFakeStatsStore())
	identity := domain.NewUserIdentity("u1")

	session, err := f.service.StartSession(ctx, identity, "quiz-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	runThrough(t, f, session, 1, 2)

	outcome, err := f.service.CompleteSession(ctx, session.ID())
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if outcome.Result.Score != 100 {
		t.Fatalf("score = %d, want 100", outcome.Result.Score)
	}
	if outcome.Report.XP.Total() != 150 { // 100 base + 0 streak + 50 perfect
		t.Fatalf("xp = %d, want 150", outcome.Report.XP.Total())
	}
	if !outcome.Report.LeveledUp || outcome.Stats.Level != 2 {
		t.Fatalf("expected level-up to 2, got %+v", outcome.Report)
	}

	if len(f.stats.results) != 1 {
		t.Fatalf("expected one persisted result, got %d", len(f.stats.results))
	}
	saved, err := f.stats.LoadStats(ctx, "u1")
	if err != nil {
		t.Fatalf("load stats: %v", err)
	}
	if saved.TotalQuizzes != 1 || saved.XP != 150 {
		t.Fatalf("persisted stats = %+v", saved)
	}
	if !f.remote.completed["quiz-1"] {
		t.Fatalf("remote ledger not updated")
	}
}

func TestCompleteSessionGuestStaysOffline(t *testing.T) {
	ctx := context.Background()
	stats := newFakeStatsStore()
	f := newFixture(t, stats)
	identity := domain.NewGuestIdentity("g1")

	session, err := f.service.StartSession(ctx, identity, "quiz-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	runThrough(t, f, session, 1, 0)

	outcome, err := f.service.CompleteSession(ctx, session.ID())
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !outcome.Guest || outcome.Result.Score != 60 {
		t.Fatalf("outcome = %+v, want guest score 60", outcome)
	}
	if len(stats.results) != 0 || stats.saveStatsCalls != 0 {
		t.Fatalf("guest completion reached the stats store")
	}
	if f.remote.markCalls != 0 {
		t.Fatalf("guest completion reached the remote ledger")
	}

	local, _ := f.local.Completions(ctx, "guest:g1")
	if !local["quiz-1"] {
		t.Fatalf("guest ledger not persisted locally")
	}
}

func TestCompleteSessionFallsBackOnPersistFailure(t *testing.T) {
	ctx := context.Background()
	stats := newFakeStatsStore()
	stats.saveResultErr = errors.New("backend unreachable")
	f := newFixture(t, stats)
	identity := domain.NewUserIdentity("u1")

	session, err := f.service.StartSession(ctx, identity, "quiz-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	runThrough(t, f, session, 1, 0)

	outcome, err := f.service.CompleteSession(ctx, session.ID())
	if err == nil {
		t.Fatalf("expected persistence error surfaced")
	}
	if outcome.Result.Score != 60 {
		t.Fatalf("score = %d, want 60", outcome.Result.Score)
	}

	// ledger stays optimistically updated
	if !f.remote.completed["quiz-1"] {
		t.Fatalf("expected optimistic remote ledger mark before the failed save")
	}
	local, _ := f.local.Completions(ctx, "user:u1")
	if !local["quiz-1"] {
		t.Fatalf("expected optimistic local ledger mark")
	}

	// the result landed in the fallback cache
	cached, _ := f.cache.CachedHistory(ctx, "user:u1")
	if len(cached) != 1 || cached[0].Score != 60 {
		t.Fatalf("fallback history = %+v", cached)
	}
	if len(f.notices.messages) != 1 {
		t.Fatalf("expected exactly one user notice, got %v", f.notices.messages)
	}
}

func TestCompleteSessionOnlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newFakeStatsStore())

	session, err := f.service.StartSession(ctx, domain.NewUserIdentity("u1"), "quiz-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	runThrough(t, f, session, 1, 2)

	if _, err := f.service.CompleteSession(ctx, session.ID()); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	if _, err := f.service.CompleteSession(ctx, session.ID()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session gone after completion, got %v", err)
	}
}

func TestCompleteSessionBeforeLastAnswer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newFakeStatsStore())

	session, err := f.service.StartSession(ctx, domain.NewUserIdentity("u1"), "quiz-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	runThrough(t, f, session, 1)

	if _, err := f.service.CompleteSession(ctx, session.ID()); !errors.Is(err, domain.ErrSessionNotCompleted) {
		t.Fatalf("expected ErrSessionNotCompleted, got %v", err)
	}
}

func TestExitRecordsNothing(t *testing.T) {
	ctx := context.Background()
	stats := newFakeStatsStore()
	f := newFixture(t, stats)

	session, err := f.service.StartSession(ctx, domain.NewUserIdentity("u1"), "quiz-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	f.service.ExitSession(session.ID())

	if len(stats.results) != 0 {
		t.Fatalf("abandoned session produced a result")
	}
	if f.remote.markCalls != 0 {
		t.Fatalf("abandoned session touched the ledger")
	}
}

func TestHistoryFallsBackToCache(t *testing.T) {
	ctx := context.Background()
	stats := newFakeStatsStore()
	stats.historyErr = errors.New("backend unreachable")
	f := newFixture(t, stats)
	identity := domain.NewUserIdentity("u1")

	cachedResult := domain.QuizResult{ID: "r1", QuizID: "quiz-1", UserID: "u1", Score: 40}
	_ = f.cache.AppendResult(ctx, identity.LedgerKey(), cachedResult)

	history, err := f.service.History(ctx, identity)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].ID != "r1" {
		t.Fatalf("expected cached history, got %+v", history)
	}
}

func TestResetProgressZeroesStats(t *testing.T) {
	ctx := context.Background()
	stats := newFakeStatsStore()
	f := newFixture(t, stats)
	identity := domain.NewUserIdentity("u1")

	session, _ := f.service.StartSession(ctx, identity, "quiz-1")
	runThrough(t, f, session, 1, 2)
	if _, err := f.service.CompleteSession(ctx, session.ID()); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if err := f.service.ResetProgress(ctx, identity); err != nil {
		t.Fatalf("reset: %v", err)
	}
	fresh, err := f.service.Stats(ctx, identity)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if fresh.XP != 0 || fresh.Level != 1 || fresh.TotalQuizzes != 0 {
		t.Fatalf("expected zeroed stats, got %+v", fresh)
	}
}

// fakeStatsStore is an in-memory remote stats/result store with injectable failures.
type fakeStatsStore struct {
	results        []domain.QuizResult
	stats          map[string]domain.UserStats
	saveResultErr  error
	saveStatsErr   error
	historyErr     error
	saveStatsCalls int
}

func newFakeStatsStore() *fakeStatsStore {
	return &fakeStatsStore{stats: make(map[string]domain.UserStats)}
}

func (f *fakeStatsStore) SaveResult(_ context.Context, result domain.QuizResult) error {
	if f.saveResultErr != nil {
		return f.saveResultErr
	}
	f.results = append(f.results, result)
	return nil
}

func (f *fakeStatsStore) History(_ context.Context, userID string) ([]domain.QuizResult, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	var out []domain.QuizResult
	for _, r := range f.results {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStatsStore) LoadStats(_ context.Context, userID string) (domain.UserStats, error) {
	stats, ok := f.stats[userID]
	if !ok {
		return domain.UserStats{}, domain.ErrStatsNotFound
	}
	return stats, nil
}

func (f *fakeStatsStore) SaveStats(_ context.Context, stats domain.UserStats) error {
	f.saveStatsCalls++
	if f.saveStatsErr != nil {
		return f.saveStatsErr
	}
	f.stats[stats.UserID] = stats
	return nil
}

func (f *fakeStatsStore) ResetStats(_ context.Context, userID string) error {
	f.stats[userID] = domain.UserStats{UserID: userID, Level: 1, XPToNextLevel: 100}
	return nil
}

type captureNotifier struct {
	messages []string
}

func (c *captureNotifier) Notify(message string) {
	c.messages = append(c.messages, message)
}
