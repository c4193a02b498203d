package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quiz-progression-service/internal/app"
	"quiz-progression-service/internal/domain"
	"quiz-progression-service/internal/infra/memory"
)

func newTestHandler() *WSHandler {
	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(sampleQuizzes()), time.Minute)
	service := app.NewProgressionService(app.ServiceConfig{
		Quizzes:     quizzes,
		Sessions:    memory.NewSessionStore(),
		Cache:       memory.NewResultCache(),
		LocalLedger: memory.NewLedger(),
	})
	return NewWSHandler(service, nil)
}

func TestWebSocketAnswerFlow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", newTestHandler().ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?quizId=quiz-1&guestId=g1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// First frame presents question 0.
	typ, payload := readUntil(conn, t, "question")
	if typ != "question" {
		t.Fatalf("expected question frame, got %s", typ)
	}
	if payload["prompt"] != "What is 2 + 2?" {
		t.Fatalf("unexpected prompt: %v", payload["prompt"])
	}
	if _, leaked := payload["correctIndex"]; leaked {
		t.Fatalf("question frame leaked the correct index")
	}

	answer := map[string]any{
		"type":    "answer",
		"payload": map[string]any{"optionIndex": 1},
	}
	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}

	_, result := readUntil(conn, t, "answerResult")
	if result["correct"] != true {
		t.Fatalf("expected correct answer, got %v", result)
	}
	if result["explanation"] == "" {
		t.Fatalf("expected explanation revealed")
	}

	// The post-answer delay elapses, then the attempt completes.
	_, done := readUntil(conn, t, "completed")
	if done["score"] != float64(100) {
		t.Fatalf("score = %v, want 100", done["score"])
	}
	if done["guest"] != true {
		t.Fatalf("expected guest completion, got %v", done)
	}
}

func TestWebSocketRequiresIdentity(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", newTestHandler().ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	resp, err := http.Get(server.URL + "/ws?quizId=quiz-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

// readUntil reads frames (skipping ticks) until the wanted type arrives.
func readUntil(conn *websocket.Conn, t *testing.T, want string) (string, map[string]any) {
	t.Helper()
	deadline := time.Now().Add(6 * time.Second)
	for {
		var msg struct {
			Type    string         `json:"type"`
			Payload map[string]any `json:"payload"`
		}
		_ = conn.SetReadDeadline(deadline)
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json waiting for %s: %v", want, err)
		}
		if msg.Type == want || msg.Type == "error" {
			if msg.Type != want {
				t.Fatalf("expected %s, got error: %v", want, msg.Payload)
			}
			return msg.Type, msg.Payload
		}
	}
}

func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:         "quiz-1",
			Title:      "Arithmetic basics",
			Category:   "math",
			Difficulty: domain.DifficultyBeginner,
			Questions: []domain.Question{
				{
					ID:           "q1",
					Prompt:       "What is 2 + 2?",
					Options:      []string{"3", "4", "5", "6"},
					CorrectIndex: 1,
					Points:       100,
					Explanation:  "Two plus two is four.",
				},
			},
		},
	}
}
