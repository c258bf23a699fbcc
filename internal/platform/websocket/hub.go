// Package websocket pushes appointment notifications to connected users.
// Each connection is authenticated with the session token and subscribed to
// the topic of its own user; services publish events to those topics.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/docbook/docbook/internal/platform/apperr"
	"github.com/docbook/docbook/internal/platform/auth"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Event is a notification sent to websocket clients.
type Event struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewEvent marshals payload into an Event addressed to topic.
func NewEvent(eventType, topic string, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal event payload: %w", err)
	}
	return Event{Type: eventType, Topic: topic, Timestamp: time.Now().UTC(), Data: data}, nil
}

// TopicFor returns the topic a user with the given role and id listens on.
func TopicFor(role, userID string) string {
	return role + "/" + userID
}

// EventPublisher publishes events to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// Client is a single websocket connection.
type Client struct {
	ID     string
	UserID string
	Topics []string
	Send   chan []byte
}

// Hub fans published events out to the connections of each topic.
type Hub struct {
	mu     sync.RWMutex
	topics map[string][]*Client
	conns  map[*Client]bool
	logger zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		topics: make(map[string][]*Client),
		conns:  make(map[*Client]bool),
		logger: logger,
	}
}

// Register subscribes client to each of its topics.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.conns[client] = true
	for _, t := range client.Topics {
		h.topics[t] = append(h.topics[t], client)
	}
	h.mu.Unlock()
}

// Unregister drops client from the hub and closes its Send channel. Calling
// it twice is a no-op.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.conns[client] {
		return
	}
	delete(h.conns, client)
	for _, t := range client.Topics {
		h.topics[t] = without(h.topics[t], client)
		if len(h.topics[t]) == 0 {
			delete(h.topics, t)
		}
	}
	close(client.Send)
}

func without(list []*Client, c *Client) []*Client {
	out := list[:0]
	for _, x := range list {
		if x != c {
			out = append(out, x)
		}
	}
	return out
}

// Broadcast queues event on every connection subscribed to topic. A
// connection whose buffer is full misses the event.
func (h *Hub) Broadcast(topic string, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("topic", topic).Msg("websocket: encode event")
		return
	}

	h.mu.RLock()
	subscribers := h.topics[topic]
	for _, c := range subscribers {
		select {
		case c.Send <- payload:
		default:
			h.logger.Warn().
				Str("client_id", c.ID).
				Str("user_id", c.UserID).
				Str("event", event.Type).
				Msg("websocket: send buffer full, event dropped")
		}
	}
	h.mu.RUnlock()
}

// Publish implements EventPublisher.
func (h *Hub) Publish(_ context.Context, event Event) error {
	h.Broadcast(event.Topic, event)
	return nil
}

// ClientCount reports the number of open connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	n := len(h.conns)
	h.mu.RUnlock()
	return n
}

// TopicCount reports how many connections listen on topic.
func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	n := len(h.topics[topic])
	h.mu.RUnlock()
	return n
}

// Handler upgrades authenticated HTTP requests to websocket connections.
type Handler struct {
	hub      *Hub
	verifier auth.TokenVerifier
	upgrader gorillawebsocket.Upgrader
}

func NewHandler(hub *Hub, verifier auth.TokenVerifier) *Handler {
	return &Handler{
		hub:      hub,
		verifier: verifier,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// browsers cannot set headers on websocket requests; the token
			// travels in the query string and origin is not used for auth
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", h.HandleConnect)
}

// HandleConnect authenticates the request, upgrades it, and subscribes the
// client to its user's topic. The token comes from ?token= or the usual
// request headers.
func (h *Handler) HandleConnect(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		token = auth.TokenFromRequest(c)
	}
	claims, err := h.verifier.Verify(token)
	if err != nil {
		return apperr.HTTP(err)
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written an error response
		return nil
	}

	client := &Client{
		ID:     uuid.NewString(),
		UserID: claims.Subject,
		Topics: []string{TopicFor(claims.Role, claims.Subject)},
		Send:   make(chan []byte, 256),
	}
	h.hub.Register(client)

	go h.writePump(client, ws)
	go h.readPump(client, ws)

	return nil
}

// readPump drains inbound frames so control messages are processed and
// unregisters the client once the connection closes.
func (h *Handler) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		h.hub.Unregister(client)
		ws.Close()
	}()

	ws.SetReadLimit(512)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(gorillawebsocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
