package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"quiz-competition-service/internal/app"
	"quiz-competition-service/internal/domain"
	"quiz-competition-service/internal/quiz"
)

type WSHandler struct {
	service  *app.CompetitionService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.CompetitionService) *WSHandler {
	return &WSHandler{
		service: service,
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
	QuestionID string  `json:"questionId"`
	Option     *string `json:"option"`
}

// advancePayload names the question index the client is advancing past, from
// its last session snapshot. A countdown that already moved the session on
// makes the advance a harmless no-op.
type advancePayload struct {
	Index int `json:"index"`
}

type answerAck struct {
	QuestionID string `json:"questionId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

var (
	errInvalidPayload  = errors.New("invalid payload")
	errUnsupportedType = errors.New("unsupported message type")
	errAdminOnly       = errors.New("administrator role required")
)

// ServeWS upgrades HTTP requests to websockets and wires them into the quiz
// use cases. The identity comes from the authentication collaborator via
// query params and is trusted as-is.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity := domain.Identity{
		UserID: r.URL.Query().Get("userId"),
		Role:   r.URL.Query().Get("role"),
	}
	if identity.UserID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}
	if identity.Role == "" {
		identity.Role = domain.RoleStudent
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events, cancelEvents := h.service.Subscribe()
	defer cancelEvents()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				if event.Lifecycle != nil {
					select {
					case send <- outboundMessage[any]{Type: "lifecycle", Payload: *event.Lifecycle}:
					case <-closeSignals:
						return
					}
				}
				if event.Leaderboard != nil {
					select {
					case send <- outboundMessage[any]{Type: "leaderboard", Payload: *event.Leaderboard}:
					case <-closeSignals:
						return
					}
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "lifecycle", Payload: h.service.Lifecycle()}

	sessionPump := &sessionWatcher{
		handler:      h,
		userID:       identity.UserID,
		send:         send,
		closeSignals: closeSignals,
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(r, identity, inbound, send, sessionPump)
	}

	// Both pumps must drain before send closes so nothing writes to a closed
	// channel.
	close(closeSignals)
	sessionPump.stop()
	<-eventsDone
	close(send)
	<-writerDone
}

func (h *WSHandler) dispatch(r *http.Request, identity domain.Identity, inbound inboundMessage, send chan outboundMessage[any], watcher *sessionWatcher) {
	ctx := r.Context()

	switch inbound.Type {
	case "start":
		if !requireAdmin(identity, send) {
			return
		}
		h.service.StartQuiz(ctx)
	case "complete":
		if !requireAdmin(identity, send) {
			return
		}
		h.service.CompleteQuiz(ctx)
	case "reset":
		if !requireAdmin(identity, send) {
			return
		}
		if err := h.service.ResetQuiz(ctx); err != nil {
			sendError(send, err)
		}
	case "join":
		snap, err := h.service.Join(ctx, identity.UserID)
		if err != nil {
			sendError(send, err)
			return
		}
		watcher.start()
		send <- outboundMessage[any]{Type: "session", Payload: snap}
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			sendError(send, errInvalidPayload)
			return
		}
		if err := h.service.SubmitAnswer(ctx, identity.UserID, payload.QuestionID, payload.Option); err != nil {
			sendError(send, err)
			return
		}
		send <- outboundMessage[any]{Type: "answerAck", Payload: answerAck{QuestionID: payload.QuestionID}}
	case "advance":
		var payload advancePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			sendError(send, errInvalidPayload)
			return
		}
		snap, err := h.service.AdvanceQuestion(ctx, identity.UserID, payload.Index)
		if err != nil {
			sendError(send, err)
			return
		}
		send <- outboundMessage[any]{Type: "session", Payload: snap}
		if snap.State == quiz.SessionFinished {
			watcher.sendResult(ctx)
		}
	case "state":
		send <- outboundMessage[any]{Type: "lifecycle", Payload: h.service.Lifecycle()}
		if snap, err := h.service.Session(identity.UserID); err == nil {
			send <- outboundMessage[any]{Type: "session", Payload: snap}
		}
		if lb, err := h.service.Leaderboard(ctx); err == nil {
			send <- outboundMessage[any]{Type: "leaderboard", Payload: lb}
		}
	default:
		sendError(send, errUnsupportedType)
	}
}

// sessionWatcher forwards ticker-driven session snapshots to the client once
// the student has joined, and emits the finished result exactly once.
type sessionWatcher struct {
	handler      *WSHandler
	userID       string
	send         chan outboundMessage[any]
	closeSignals chan struct{}

	cancel func()
	done   chan struct{}

	resultOnce sync.Once
}

func (w *sessionWatcher) start() {
	if w.cancel != nil {
		// Re-joining after a reset gets a fresh subscription once the old
		// pump has drained; a live pump is left alone.
		select {
		case <-w.done:
			w.cancel()
			w.cancel = nil
		default:
			return
		}
	}
	updates, cancel, err := w.handler.service.SubscribeSession(w.userID)
	if err != nil {
		return
	}
	w.cancel = cancel
	w.done = make(chan struct{})

	go func() {
		defer close(w.done)
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				select {
				case w.send <- outboundMessage[any]{Type: "session", Payload: snap}:
				case <-w.closeSignals:
					return
				}
				if snap.State == quiz.SessionFinished {
					w.sendResult(context.Background())
				}
			case <-w.closeSignals:
				return
			}
		}
	}()
}

func (w *sessionWatcher) sendResult(ctx context.Context) {
	result, err := w.handler.service.UserResult(ctx, w.userID)
	if err != nil {
		return
	}
	w.resultOnce.Do(func() {
		select {
		case w.send <- outboundMessage[any]{Type: "finished", Payload: result}:
		case <-w.closeSignals:
		}
	})
}

func (w *sessionWatcher) stop() {
	if w.cancel != nil {
		w.cancel()
		<-w.done
	}
}

func requireAdmin(identity domain.Identity, send chan outboundMessage[any]) bool {
	if identity.Role != domain.RoleAdmin {
		sendError(send, errAdminOnly)
		return false
	}
	return true
}

func sendError(send chan outboundMessage[any], err error) {
	send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
}
