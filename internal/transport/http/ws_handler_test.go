package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quiz-competition-service/internal/app"
	"quiz-competition-service/internal/domain"
	"quiz-competition-service/internal/infra/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, *app.CompetitionService) {
	t.Helper()
	banks := memory.NewBankCache(memory.NewStaticBankLoader(sampleBank()), time.Minute)
	service := app.NewCompetitionService(banks, memory.NewAnswerStore(), memory.NewResultStore(), app.Options{})
	wsHandler := NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, service
}

func dial(t *testing.T, server *httptest.Server, userID, role string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws?userId=" + userID + "&role=" + role
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketQuizFlow(t *testing.T) {
	server, _ := newTestServer(t)

	admin := dial(t, server, "admin1", domain.RoleAdmin)
	student := dial(t, server, "u1", domain.RoleStudent)

	// Both connections get the initial lifecycle snapshot.
	readNext(admin, t, "lifecycle")
	payload := expectType(student, t, "lifecycle")
	if payload["state"] != string(domain.LifecycleWaiting) {
		t.Fatalf("expected waiting state, got %v", payload["state"])
	}

	// Admin starts the quiz; the student observes the push.
	writeMessage(admin, t, "start", nil)
	payload = expectType(student, t, "lifecycle")
	if payload["state"] != string(domain.LifecycleStarted) {
		t.Fatalf("expected started state, got %v", payload["state"])
	}

	// Student joins and receives the first question.
	writeMessage(student, t, "join", nil)
	payload = expectType(student, t, "session")
	question, _ := payload["question"].(map[string]any)
	if question["id"] != "q1" {
		t.Fatalf("expected first question q1, got %v", question)
	}
	if _, leaked := question["correctOption"]; leaked {
		t.Fatalf("correct option must not be sent to clients")
	}

	// Answer and advance through the quiz.
	writeMessage(student, t, "answer", map[string]any{"questionId": "q1", "option": "B"})
	expectType(student, t, "answerAck")
	writeMessage(student, t, "advance", map[string]any{"index": 0})
	writeMessage(student, t, "advance", map[string]any{"index": 1})

	finishedSeen := false
	leaderboardSeen := false
	for i := 0; i < 10 && !(finishedSeen && leaderboardSeen); i++ {
		msgType, _ := readNext(student, t, "")
		switch msgType {
		case "finished":
			finishedSeen = true
		case "leaderboard":
			leaderboardSeen = true
		}
	}
	if !finishedSeen || !leaderboardSeen {
		t.Fatalf("expected finished and leaderboard, got finished=%v leaderboard=%v", finishedSeen, leaderboardSeen)
	}
}

func TestWebSocketAdminOnlyControls(t *testing.T) {
	server, _ := newTestServer(t)

	student := dial(t, server, "u1", domain.RoleStudent)
	readNext(student, t, "lifecycle")

	writeMessage(student, t, "start", nil)
	payload := expectType(student, t, "error")
	if payload["message"] == "" {
		t.Fatalf("expected error message for non-admin start")
	}
}

func TestWebSocketJoinBeforeStart(t *testing.T) {
	server, _ := newTestServer(t)

	student := dial(t, server, "u1", domain.RoleStudent)
	readNext(student, t, "lifecycle")

	writeMessage(student, t, "join", nil)
	payload := expectType(student, t, "error")
	if payload["message"] != domain.ErrQuizNotStarted.Error() {
		t.Fatalf("expected quiz-not-started error, got %v", payload["message"])
	}
}

func writeMessage(conn *websocket.Conn, t *testing.T, msgType string, payload map[string]any) {
	t.Helper()
	msg := map[string]any{"type": msgType}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

func expectType(conn *websocket.Conn, t *testing.T, expect string) map[string]any {
	t.Helper()
	for i := 0; i < 10; i++ {
		msgType, payload := readNext(conn, t, "")
		if msgType == expect {
			return payload
		}
	}
	t.Fatalf("never received %s", expect)
	return nil
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}

func sampleBank() map[string]domain.QuestionBank {
	options := []domain.Option{
		{Label: domain.OptionA, Text: "3"},
		{Label: domain.OptionB, Text: "4"},
		{Label: domain.OptionC, Text: "5"},
		{Label: domain.OptionD, Text: "22"},
	}
	return map[string]domain.QuestionBank{
		"default": {
			ID: "default",
			Questions: []domain.Question{
				{ID: "q1", Text: "What is 2 + 2?", Options: options, CorrectOption: domain.OptionB},
				{ID: "q2", Text: "What is 2 + 3?", Options: options, CorrectOption: domain.OptionC},
			},
		},
	}
}
