package http

import (
	"context"
	"log"
	"sync"

	"chat-quiz-bot/internal/app"
	"chat-quiz-bot/internal/domain"
)

const sendBuffer = 16

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type questionPayload struct {
	Index            int      `json:"index"`
	Total            int      `json:"total"`
	Prompt           string   `json:"prompt"`
	Options          []string `json:"options"`
	TimeLimitSeconds int      `json:"timeLimitSeconds"`
}

type resultPayload struct {
	Text string `json:"text"`
}

type leaderboardPayload struct {
	Entries []domain.LeaderboardEntry `json:"entries"`
	Text    string                    `json:"text"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type client struct {
	userID string
	send   chan outboundMessage[any]
}

// Hub fans engine output out to the websocket connections of each user.
// It implements app.Notifier and never blocks the caller: a full client buffer drops the message.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*client]struct{})}
}

var _ app.Notifier = (*Hub)(nil)

func (h *Hub) register(userID string) *client {
	c := &client{userID: userID, send: make(chan outboundMessage[any], sendBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*client]struct{})
	}
	h.clients[userID][c] = struct{}{}
	return c
}

// unregister detaches c; once it returns no further message is queued on c.send.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.userID]
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
}

// Connected reports how many live connections userID has.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) ShowQuestion(_ context.Context, userID string, q domain.QuestionView) error {
	h.deliver(userID, outboundMessage[any]{Type: "question", Payload: questionPayload{
		Index:            q.Index,
		Total:            q.Total,
		Prompt:           q.Prompt,
		Options:          q.Options,
		TimeLimitSeconds: int(q.TimeLimit.Seconds()),
	}})
	return nil
}

func (h *Hub) ShowResult(_ context.Context, userID, text string) error {
	h.deliver(userID, outboundMessage[any]{Type: "result", Payload: resultPayload{Text: text}})
	return nil
}

func (h *Hub) ShowLeaderboard(_ context.Context, userID string, lb domain.Leaderboard) error {
	entries := lb.Entries
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	h.deliver(userID, outboundMessage[any]{Type: "leaderboard", Payload: leaderboardPayload{
		Entries: entries,
		Text:    app.FormatLeaderboard(lb),
	}})
	return nil
}

func (h *Hub) deliver(userID string, msg outboundMessage[any]) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userID] {
		select {
		case c.send <- msg:
		default:
			log.Printf("ws: dropping %s message for slow client %s", msg.Type, userID)
		}
	}
}
