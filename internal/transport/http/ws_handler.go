package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quiz-progression-service/internal/app"
	"quiz-progression-service/internal/domain"
)

type WSHandler struct {
	service  *app.ProgressionService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.ProgressionService, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	OptionIndex int `json:"optionIndex"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// questionView carries everything the client needs to render the active
// question. The correct index is deliberately absent: it is revealed only
// in the answerResult frame.
type questionView struct {
	Index        int      `json:"index"`
	Total        int      `json:"total"`
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	RemainingSec int      `json:"remainingSec"`
	TimeLimitSec int      `json:"timeLimitSec"`
}

type tickView struct {
	Index        int `json:"index"`
	RemainingSec int `json:"remainingSec"`
}

type answerView struct {
	Index        int    `json:"index"`
	Chosen       int    `json:"chosen"`
	TimedOut     bool   `json:"timedOut"`
	Correct      bool   `json:"correct"`
	CorrectIndex int    `json:"correctIndex"`
	Explanation  string `json:"explanation"`
	Tip          string `json:"tip,omitempty"`
}

type completedView struct {
	Score          int            `json:"score"`
	TotalQuestions int            `json:"totalQuestions"`
	TimeSpentSec   int            `json:"timeSpentSec"`
	Guest          bool           `json:"guest"`
	XP             *app.XPAward   `json:"xp,omitempty"`
	LeveledUp      bool           `json:"leveledUp,omitempty"`
	Level          int            `json:"level,omitempty"`
	CurrentStreak  int            `json:"currentStreak,omitempty"`
	NewBadges      []domain.Badge `json:"newBadges,omitempty"`
}

// ServeWS upgrades the request and drives one quiz attempt over the
// socket: question and tick frames out, answer/exit messages in.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	userID := r.URL.Query().Get("userId")
	guestID := r.URL.Query().Get("guestId")
	if quizID == "" || (userID == "" && guestID == "") {
		http.Error(w, "missing quizId and one of userId or guestId", http.StatusBadRequest)
		return
	}
	identity := domain.NewUserIdentity(userID)
	if userID == "" {
		identity = domain.NewGuestIdentity(guestID)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	session, err := h.service.StartSession(r.Context(), identity, quizID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer h.service.ExitSession(session.ID())

	updates, cancel := session.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		h.pumpUpdates(r.Context(), session, updates, send, closeSignals)
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			if err := h.service.SubmitAnswer(session.ID(), payload.OptionIndex); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		case "exit":
			h.service.ExitSession(session.ID())
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
		if inbound.Type == "exit" {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// pumpUpdates translates session snapshots into protocol frames. A new
// question index yields a question frame, countdown movement a tick frame,
// an answered phase the answer result, and completion triggers
// finalization against the progression service.
func (h *WSHandler) pumpUpdates(ctx context.Context, session *app.Session, updates <-chan app.Snapshot, send chan<- outboundMessage[any], closeSignals <-chan struct{}) {
	quiz := session.Quiz()
	lastQuestion := -1
	lastPhase := app.PhaseCompleted // force a question frame for the initial snapshot
	completed := false

	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				return
			}
			for _, msg := range h.framesFor(ctx, session, quiz, snap, &lastQuestion, &lastPhase, &completed) {
				select {
				case send <- msg:
				case <-closeSignals:
					return
				}
			}
		case <-closeSignals:
			return
		}
	}
}

func (h *WSHandler) framesFor(ctx context.Context, session *app.Session, quiz domain.Quiz, snap app.Snapshot, lastQuestion *int, lastPhase *app.Phase, completed *bool) []outboundMessage[any] {
	var frames []outboundMessage[any]

	switch snap.Phase {
	case app.PhaseAwaitingAnswer:
		question := quiz.Questions[snap.QuestionIndex]
		if snap.QuestionIndex != *lastQuestion {
			frames = append(frames, outboundMessage[any]{Type: "question", Payload: questionView{
				Index:        snap.QuestionIndex,
				Total:        snap.TotalQuestions,
				Prompt:       question.Prompt,
				Options:      question.Options,
				RemainingSec: snap.RemainingSec,
				TimeLimitSec: question.TimeLimit(),
			}})
		} else {
			frames = append(frames, outboundMessage[any]{Type: "tick", Payload: tickView{
				Index:        snap.QuestionIndex,
				RemainingSec: snap.RemainingSec,
			}})
		}
	case app.PhaseAnswered:
		if *lastPhase != app.PhaseAnswered {
			question := quiz.Questions[snap.QuestionIndex]
			frames = append(frames, outboundMessage[any]{Type: "answerResult", Payload: answerView{
				Index:        snap.QuestionIndex,
				Chosen:       snap.LastAnswer,
				TimedOut:     snap.LastAnswer == domain.TimedOutAnswer,
				Correct:      snap.LastAnswer == question.CorrectIndex,
				CorrectIndex: question.CorrectIndex,
				Explanation:  question.Explanation,
				Tip:          question.Tip,
			}})
		}
	case app.PhaseCompleted:
		if !*completed {
			*completed = true
			frames = append(frames, h.completeFrames(ctx, session)...)
		}
	}

	*lastQuestion = snap.QuestionIndex
	*lastPhase = snap.Phase
	return frames
}

// completeFrames finalizes the attempt. A failed save still produces a
// completed frame; the client additionally gets a notice so it can show a
// transient warning without interrupting the results screen.
func (h *WSHandler) completeFrames(ctx context.Context, session *app.Session) []outboundMessage[any] {
	outcome, err := h.service.CompleteSession(ctx, session.ID())
	if err != nil {
		h.log.Warn("session finalization degraded", zap.String("session", session.ID()), zap.Error(err))
	}

	view := completedView{
		Score:          outcome.Result.Score,
		TotalQuestions: outcome.Result.TotalQuestions,
		TimeSpentSec:   outcome.Result.TimeSpentSec,
		Guest:          outcome.Guest,
	}
	if !outcome.Guest {
		xp := outcome.Report.XP
		view.XP = &xp
		view.LeveledUp = outcome.Report.LeveledUp
		view.Level = outcome.Stats.Level
		view.CurrentStreak = outcome.Stats.CurrentStreak
		view.NewBadges = outcome.Report.NewBadges
	}

	frames := []outboundMessage[any]{{Type: "completed", Payload: view}}
	if err != nil {
		frames = append(frames, outboundMessage[any]{Type: "notice", Payload: errorPayload{
			Message: "progress could not be saved to the server",
		}})
	}
	return frames
}
