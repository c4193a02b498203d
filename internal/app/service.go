package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quiz-progression-service/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// SessionRepository tracks active attempts by session id.
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// StatsStore is the remote, authoritative store for results and
// progression of authenticated users.
type StatsStore interface {
	SaveResult(ctx context.Context, result domain.QuizResult) error
	History(ctx context.Context, userID string) ([]domain.QuizResult, error)
	LoadStats(ctx context.Context, userID string) (domain.UserStats, error)
	SaveStats(ctx context.Context, stats domain.UserStats) error
	ResetStats(ctx context.Context, userID string) error
}

// ResultCache is the local fallback tier: it absorbs results and stats
// when the remote store is unreachable and answers reads offline.
type ResultCache interface {
	AppendResult(ctx context.Context, key string, result domain.QuizResult) error
	CachedHistory(ctx context.Context, key string) ([]domain.QuizResult, error)
	PutStats(ctx context.Context, key string, stats domain.UserStats) error
	CachedStats(ctx context.Context, key string) (domain.UserStats, bool, error)
}

// ServiceConfig wires the engine's collaborators. Stats may be nil for a
// deployment with no backing store; everything then lives in the local tier.
type ServiceConfig struct {
	Quizzes      QuizRepository
	Sessions     SessionRepository
	Stats        StatsStore
	Cache        ResultCache
	LocalLedger  LocalLedgerStore
	RemoteLedger LedgerStore
	Notifier     Notifier
	Logger       *zap.Logger
	Scheduler    Scheduler
	Clock        func() time.Time
}

// ProgressionService contains the quiz-taking use cases: start an attempt,
// feed it answers, finalize it into a result, and fold the result into the
// user's progression and completion ledger.
type ProgressionService struct {
	quizzes      QuizRepository
	sessions     SessionRepository
	stats        StatsStore
	cache        ResultCache
	localLedger  LocalLedgerStore
	remoteLedger LedgerStore
	notifier     Notifier
	log          *zap.Logger
	sched        Scheduler
	now          func() time.Time
	newID        func() string
}

func NewProgressionService(cfg ServiceConfig) *ProgressionService {
	if cfg.Notifier == nil {
		cfg.Notifier = NopNotifier{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = TickerScheduler{}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &ProgressionService{
		quizzes:      cfg.Quizzes,
		sessions:     cfg.Sessions,
		stats:        cfg.Stats,
		cache:        cfg.Cache,
		localLedger:  cfg.LocalLedger,
		remoteLedger: cfg.RemoteLedger,
		notifier:     cfg.Notifier,
		log:          cfg.Logger,
		sched:        cfg.Scheduler,
		now:          cfg.Clock,
		newID:        uuid.NewString,
	}
}

// StartSession begins an attempt at the quiz for the given identity.
// Quizzes with no questions never produce a session.
func (s *ProgressionService) StartSession(ctx context.Context, identity domain.Identity, quizID string) (*Session, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	session, err := NewSession(s.newID(), identity, quiz, s.sched, s.now)
	if err != nil {
		return nil, err
	}
	s.sessions.Put(session)
	s.log.Info("session started",
		zap.String("session", session.ID()),
		zap.String("quiz", quizID),
		zap.Bool("guest", identity.IsGuest()))
	return session, nil
}

// SubmitAnswer forwards a selection to the session. Repeat submissions for
// an already answered question are silently ignored by the session.
func (s *ProgressionService) SubmitAnswer(sessionID string, optionIndex int) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.SubmitAnswer(optionIndex)
	return nil
}

// ExitSession abandons an attempt without recording anything.
func (s *ProgressionService) ExitSession(sessionID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	session.Exit()
	s.sessions.Delete(sessionID)
	s.log.Info("session abandoned", zap.String("session", sessionID))
}

// CompletionOutcome carries everything the UI shows after the last answer.
// Report and Stats are zero-valued for guests.
type CompletionOutcome struct {
	Result domain.QuizResult
	Report ProgressReport
	Stats  domain.UserStats
	Guest  bool
}

// CompleteSession finalizes a completed attempt exactly once: score the
// answers, flip the completion ledger optimistically, and for authenticated
// users fold the result into their stats and persist remotely. When the
// remote save fails the result lands in the local fallback cache, the
// Notifier surfaces a notice, and the error is returned alongside a fully
// populated outcome; nothing is retried and the ledger is not rolled back.
func (s *ProgressionService) CompleteSession(ctx context.Context, sessionID string) (CompletionOutcome, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return CompletionOutcome{}, domain.ErrSessionNotFound
	}
	answers, err := session.Finalize()
	if err != nil {
		return CompletionOutcome{}, err
	}
	defer s.sessions.Delete(sessionID)

	quiz := session.Quiz()
	identity := session.Identity()
	now := s.now()
	result := domain.QuizResult{
		ID:             s.newID(),
		QuizID:         quiz.ID,
		UserID:         identity.UserID,
		Score:          ComputeScore(quiz, answers),
		TotalQuestions: len(quiz.Questions),
		CorrectAnswers: CountCorrect(quiz, answers),
		TimeSpentSec:   int(now.Sub(session.StartedAt()) / time.Second),
		CompletedAt:    now,
	}

	ledger := s.Ledger(identity)
	if err := ledger.MarkCompleted(ctx, result.QuizID); err != nil {
		// the in-memory flag is already set; a failed write only delays sync
		s.log.Warn("ledger write failed", zap.String("quiz", result.QuizID), zap.Error(err))
	}

	if identity.IsGuest() {
		s.log.Info("guest session completed",
			zap.String("quiz", result.QuizID),
			zap.Int("score", result.Score))
		return CompletionOutcome{Result: result, Guest: true}, nil
	}

	stats := s.loadStats(ctx, identity)
	report := ApplyResult(&stats, result)
	outcome := CompletionOutcome{Result: result, Report: report, Stats: stats}

	if err := s.persist(ctx, identity, result, stats); err != nil {
		s.fallback(ctx, identity, result, stats)
		s.notifier.Notify("progress could not be saved to the server; it is kept on this device")
		return outcome, err
	}
	s.log.Info("session completed",
		zap.String("quiz", result.QuizID),
		zap.String("user", identity.UserID),
		zap.Int("score", result.Score),
		zap.Int("xp", report.XP.Total()))
	return outcome, nil
}

// Ledger builds the per-identity completion ledger view. Callers that need
// prior completions reflected should Load it first.
func (s *ProgressionService) Ledger(identity domain.Identity) *CompletionLedger {
	return NewCompletionLedger(identity, s.localLedger, s.remoteLedger)
}

// CompletedQuizzes loads and returns the completion map for the identity.
func (s *ProgressionService) CompletedQuizzes(ctx context.Context, identity domain.Identity) (map[string]bool, error) {
	ledger := s.Ledger(identity)
	if err := ledger.Load(ctx); err != nil {
		return nil, err
	}
	return ledger.Completed(), nil
}

// History returns the identity's finished quizzes, newest first. Guests
// only ever have the local tier. For users the remote store is
// authoritative; when it is unreachable the cached copy answers instead.
func (s *ProgressionService) History(ctx context.Context, identity domain.Identity) ([]domain.QuizResult, error) {
	key := identity.LedgerKey()
	if identity.IsGuest() || s.stats == nil {
		return s.cache.CachedHistory(ctx, key)
	}
	history, err := s.stats.History(ctx, identity.UserID)
	if err != nil {
		s.log.Warn("history fetch failed, serving cached copy", zap.Error(err))
		return s.cache.CachedHistory(ctx, key)
	}
	return history, nil
}

// Stats returns the user's progression record, zeroed when none exists.
func (s *ProgressionService) Stats(ctx context.Context, identity domain.Identity) (domain.UserStats, error) {
	if identity.IsGuest() {
		return domain.UserStats{}, domain.ErrStatsNotFound
	}
	return s.loadStats(ctx, identity), nil
}

// ResetProgress zeroes the user's stats back to the starting record.
func (s *ProgressionService) ResetProgress(ctx context.Context, identity domain.Identity) error {
	if identity.IsGuest() {
		return nil
	}
	fresh := NewUserStats(identity.UserID)
	if err := s.cache.PutStats(ctx, identity.LedgerKey(), fresh); err != nil {
		s.log.Warn("stats cache reset failed", zap.Error(err))
	}
	if s.stats == nil {
		return nil
	}
	return s.stats.ResetStats(ctx, identity.UserID)
}

// loadStats prefers the remote record, falls back to the cached copy when
// the remote tier is unreachable, and starts fresh when neither has data.
func (s *ProgressionService) loadStats(ctx context.Context, identity domain.Identity) domain.UserStats {
	if s.stats != nil {
		stats, err := s.stats.LoadStats(ctx, identity.UserID)
		if err == nil {
			return stats
		}
		if !errors.Is(err, domain.ErrStatsNotFound) {
			s.log.Warn("stats fetch failed, trying cached copy", zap.Error(err))
			if cached, ok, cacheErr := s.cache.CachedStats(ctx, identity.LedgerKey()); cacheErr == nil && ok {
				return cached
			}
		}
		return NewUserStats(identity.UserID)
	}
	if cached, ok, err := s.cache.CachedStats(ctx, identity.LedgerKey()); err == nil && ok {
		return cached
	}
	return NewUserStats(identity.UserID)
}

func (s *ProgressionService) persist(ctx context.Context, identity domain.Identity, result domain.QuizResult, stats domain.UserStats) error {
	if s.stats == nil {
		// local-only deployment: the cache is the store of record
		return s.fallbackErr(ctx, identity, result, stats)
	}
	if err := s.stats.SaveResult(ctx, result); err != nil {
		return err
	}
	if err := s.stats.SaveStats(ctx, stats); err != nil {
		return err
	}
	// keep the offline copy warm for reads while unreachable
	if err := s.cache.PutStats(ctx, identity.LedgerKey(), stats); err != nil {
		s.log.Warn("stats cache refresh failed", zap.Error(err))
	}
	return nil
}

func (s *ProgressionService) fallback(ctx context.Context, identity domain.Identity, result domain.QuizResult, stats domain.UserStats) {
	if err := s.fallbackErr(ctx, identity, result, stats); err != nil {
		s.log.Error("fallback cache write failed", zap.Error(err))
	}
}

func (s *ProgressionService) fallbackErr(ctx context.Context, identity domain.Identity, result domain.QuizResult, stats domain.UserStats) error {
	key := identity.LedgerKey()
	if err := s.cache.AppendResult(ctx, key, result); err != nil {
		return err
	}
	return s.cache.PutStats(ctx, key, stats)
}
