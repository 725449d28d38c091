package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"chat-quiz-bot/internal/app"
	"chat-quiz-bot/internal/domain"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.QuizService
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, hub *Hub) *WSHandler {
	return &WSHandler{
		service: service,
		hub:     hub,
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
	QuestionIndex int `json:"questionIndex"`
	Choice        int `json:"choice"`
}

// ServeWS upgrades HTTP requests to websockets and turns chat commands into quiz use cases.
// Everything the engine says comes back through the Hub.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	name := r.URL.Query().Get("name")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	c := h.hub.register(userID)
	writerDone := make(chan struct{})

	// single writer: gorilla connections allow one concurrent writer
	go func() {
		defer close(writerDone)
		for msg := range c.send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				// keep draining so the hub never sees a full buffer from a dead writer
				for range c.send {
				}
				return
			}
		}
	}()

	ctx := r.Context()
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			if err := h.service.StartQuiz(ctx, userID, name); err != nil {
				log.Printf("ws: start quiz for %s: %v", userID, err)
			}
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				h.reject(c, "invalid answer payload")
				continue
			}
			if _, err := h.service.SelectOption(ctx, userID, payload.QuestionIndex, payload.Choice); err != nil {
				if errors.Is(err, domain.ErrOptionNotFound) {
					h.reject(c, "unknown option")
					continue
				}
				h.reject(c, err.Error())
			}
		case "quit":
			h.service.Quit(ctx, userID)
		case "progress":
			if _, err := h.service.RequestProgress(ctx, userID); err != nil {
				log.Printf("ws: progress for %s: %v", userID, err)
			}
		case "leaderboard":
			if _, err := h.service.RequestLeaderboard(ctx, userID); err != nil {
				log.Printf("ws: leaderboard for %s: %v", userID, err)
			}
		default:
			h.reject(c, "unsupported message type")
		}
	}

	h.hub.unregister(c)
	close(c.send)
	<-writerDone
}

// reject runs on the read loop, which is the only goroutine that closes c.send.
func (h *WSHandler) reject(c *client, message string) {
	select {
	case c.send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}}:
	default:
	}
}
