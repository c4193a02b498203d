package app

import (
	"sync"
	"time"

	"quiz-progression-service/internal/domain"
)

// Phase is the lifecycle state of the active question within a session.
type Phase int

const (
	// PhaseAwaitingAnswer means the countdown is running and input is accepted.
	PhaseAwaitingAnswer Phase = iota
	// PhaseAnswered means an answer (or timeout) was recorded and the
	// explanation is showing while the post-answer delay runs.
	PhaseAnswered
	// PhaseTransitioning is the moment between questions.
	PhaseTransitioning
	// PhaseCompleted means the last question was answered and advanced past.
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingAnswer:
		return "awaiting_answer"
	case PhaseAnswered:
		return "answered"
	case PhaseTransitioning:
		return "transitioning"
	case PhaseCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

const (
	// TickInterval is the countdown resolution.
	TickInterval = time.Second
	// AdvanceDelay is the unconditional pause after every answer, correct,
	// incorrect, or timed out alike, before the next question appears.
	AdvanceDelay = 3 * time.Second
)

// Snapshot is an immutable view of session state pushed to subscribers.
type Snapshot struct {
	SessionID       string
	QuizID          string
	Phase           Phase
	QuestionIndex   int
	TotalQuestions  int
	RemainingSec    int
	ShowExplanation bool
	LastAnswer      int
	Answers         []int
}

// Session is one quiz attempt: it owns the current question index, the
// recorded answers, and the countdown/advance timers. All transitions run
// under a single mutex, so events are processed one at a time.
type Session struct {
	id        string
	identity  domain.Identity
	quiz      domain.Quiz
	startedAt time.Time

	mu              sync.Mutex
	phase           Phase
	questionIdx     int
	answers         []int
	remaining       int
	showExplanation bool
	finalized       bool
	exited          bool
	cancelTick      func()
	cancelAdvance   func()
	subscribers     map[chan Snapshot]struct{}

	now   func() time.Time
	sched Scheduler
}

// NewSession starts an attempt at question 0 with its countdown armed.
// A quiz with no questions yields no session.
func NewSession(id string, identity domain.Identity, quiz domain.Quiz, sched Scheduler, now func() time.Time) (*Session, error) {
	if len(quiz.Questions) == 0 {
		return nil, domain.ErrEmptyQuiz
	}
	if sched == nil {
		sched = TickerScheduler{}
	}
	if now == nil {
		now = time.Now
	}
	s := &Session{
		id:          id,
		identity:    identity,
		quiz:        quiz,
		startedAt:   now(),
		answers:     make([]int, 0, len(quiz.Questions)),
		subscribers: make(map[chan Snapshot]struct{}),
		now:         now,
		sched:       sched,
	}
	s.mu.Lock()
	s.armQuestionLocked()
	s.mu.Unlock()
	return s, nil
}

func (s *Session) ID() string                { return s.id }
func (s *Session) Identity() domain.Identity { return s.identity }
func (s *Session) Quiz() domain.Quiz         { return s.quiz }
func (s *Session) StartedAt() time.Time      { return s.startedAt }

// armQuestionLocked captures the active question's time limit and starts a
// fresh countdown. The tick closure is pinned to the question index so a
// stale timer that already fired cannot touch a later question.
func (s *Session) armQuestionLocked() {
	s.stopTimersLocked()
	s.phase = PhaseAwaitingAnswer
	s.showExplanation = false
	s.remaining = s.quiz.Questions[s.questionIdx].TimeLimit()
	idx := s.questionIdx
	s.cancelTick = s.sched.Repeat(TickInterval, func() { s.tick(idx) })
}

func (s *Session) stopTimersLocked() {
	if s.cancelTick != nil {
		s.cancelTick()
		s.cancelTick = nil
	}
	if s.cancelAdvance != nil {
		s.cancelAdvance()
		s.cancelAdvance = nil
	}
}

// tick decrements the countdown for question idx. Ticks are ignored once
// the question is answered or no longer current; reaching zero submits
// the timeout sentinel.
func (s *Session) tick(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exited || s.phase != PhaseAwaitingAnswer || s.questionIdx != idx {
		return
	}
	s.remaining--
	if s.remaining > 0 {
		s.broadcastLocked()
		return
	}
	s.remaining = 0
	s.submitLocked(domain.TimedOutAnswer)
}

// SubmitAnswer records the chosen option for the current question. The
// first answer wins: repeat calls while answered are no-ops, so callers
// that forget to disable input cannot double-submit.
func (s *Session) SubmitAnswer(optionIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exited || s.phase != PhaseAwaitingAnswer {
		return
	}
	s.submitLocked(optionIndex)
}

func (s *Session) submitLocked(optionIndex int) {
	if s.cancelTick != nil {
		s.cancelTick()
		s.cancelTick = nil
	}
	s.answers = append(s.answers, optionIndex)
	s.phase = PhaseAnswered
	s.showExplanation = true
	idx := s.questionIdx
	s.cancelAdvance = s.sched.Once(AdvanceDelay, func() { s.advance(idx) })
	s.broadcastLocked()
}

// advance moves past question idx after the post-answer delay: on to the
// next question with a fresh countdown, or to completion if idx was last.
func (s *Session) advance(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exited || s.phase != PhaseAnswered || s.questionIdx != idx {
		return
	}
	s.cancelAdvance = nil
	s.phase = PhaseTransitioning
	if s.questionIdx == len(s.quiz.Questions)-1 {
		s.phase = PhaseCompleted
		s.broadcastLocked()
		return
	}
	s.questionIdx++
	s.armQuestionLocked()
	s.broadcastLocked()
}

// Exit abandons the attempt. Timers stop, no result is ever recorded, and
// any phase except completion is left where it was.
func (s *Session) Exit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseCompleted || s.exited {
		return
	}
	s.exited = true
	s.stopTimersLocked()
}

// Exited reports whether the attempt was abandoned.
func (s *Session) Exited() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exited
}

// Finalize consumes the completed attempt exactly once, returning the
// recorded answers for scoring.
func (s *Session) Finalize() ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseCompleted {
		return nil, domain.ErrSessionNotCompleted
	}
	if s.finalized {
		return nil, domain.ErrSessionFinalized
	}
	s.finalized = true
	return append([]int(nil), s.answers...), nil
}

// Snapshot returns the current state view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel of state updates. The caller must invoke the
// returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.snapshotLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// drop the oldest update so a slow subscriber never stalls the session
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *Session) snapshotLocked() Snapshot {
	last := domain.TimedOutAnswer
	if len(s.answers) > 0 {
		last = s.answers[len(s.answers)-1]
	}
	return Snapshot{
		SessionID:       s.id,
		QuizID:          s.quiz.ID,
		Phase:           s.phase,
		QuestionIndex:   s.questionIdx,
		TotalQuestions:  len(s.quiz.Questions),
		RemainingSec:    s.remaining,
		ShowExplanation: s.showExplanation,
		LastAnswer:      last,
		Answers:         append([]int(nil), s.answers...),
	}
}
