package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/mohammad-safakhou/newsrag/internal/telemetry"
	"github.com/mohammad-safakhou/newsrag/models"
)

const (
	EventJoinSession    = "join-session"
	EventSendMessage    = "send-message"
	EventClearSession   = "clear-session"
	EventBotTyping      = "bot-typing"
	EventBotResponse    = "bot-response"
	EventSessionClear   = "session-cleared"
	EventError          = "error"
	processingFailedMsg = "Processing failed"
)

// SocketChat is what the socket hub needs from the chatbot.
type SocketChat interface {
	ProcessQueryNotify(ctx context.Context, sessionID, message string) (models.QueryResult, error)
	ClearHistory(ctx context.Context, sessionID string) error
}

type inFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type outFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type sendMessage struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type botResponse struct {
	Message   string             `json:"message"`
	Sources   []models.SourceRef `json:"sources"`
	Timestamp int64              `json:"timestamp"` // unix milliseconds
}

type socketClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *socketClient) send(frame outFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return websocket.JSON.Send(c.conn, frame)
}

type senderKey struct{}

// Hub fans chatbot notifications out to the connections joined to a session.
// It implements chatbot.Notifier.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*socketClient]struct{}
	chat    SocketChat
	origin  string
	logger  *slog.Logger
	metrics *telemetry.Metrics
	now     func() time.Time
}

// NewHub builds a hub; Attach must be called before connections are served.
// allowedOrigin empty or "*" accepts any origin.
func NewHub(allowedOrigin string, logger *slog.Logger, metrics *telemetry.Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:   make(map[string]map[*socketClient]struct{}),
		origin:  strings.TrimRight(allowedOrigin, "/"),
		logger:  logger.With("component", "socket"),
		metrics: metrics,
		now:     time.Now,
	}
}

func (h *Hub) Attach(chat SocketChat) { h.chat = chat }

// Handler upgrades requests to websocket connections.
func (h *Hub) Handler() http.Handler {
	return websocket.Server{
		Handshake: h.handshake,
		Handler:   h.serve,
	}
}

func (h *Hub) handshake(cfg *websocket.Config, r *http.Request) error {
	origin := r.Header.Get("Origin")
	if origin != "" {
		u, err := url.Parse(origin)
		if err != nil {
			return err
		}
		cfg.Origin = u
	}
	if h.origin == "" || h.origin == "*" || origin == "" || strings.TrimRight(origin, "/") == h.origin {
		return nil
	}
	return errors.New("origin not allowed")
}

func (h *Hub) serve(conn *websocket.Conn) {
	client := &socketClient{conn: conn}
	h.metrics.SocketClients(1)
	h.logger.Debug("client connected", "remote", conn.Request().RemoteAddr)
	defer func() {
		h.leaveAll(client)
		h.metrics.SocketClients(-1)
		_ = conn.Close()
		h.logger.Debug("client disconnected", "remote", conn.Request().RemoteAddr)
	}()

	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(conn.Request().Context())
	defer cancel()

	for {
		var frame inFrame
		if err := websocket.JSON.Receive(conn, &frame); err != nil {
			if !errors.Is(err, io.EOF) {
				h.logger.Debug("socket receive failed", "error", err)
			}
			return
		}
		switch frame.Event {
		case EventJoinSession:
			var id string
			if err := json.Unmarshal(frame.Data, &id); err != nil || id == "" {
				h.logger.Warn("join-session without session id")
				continue
			}
			h.join(id, client)
			h.logger.Info("client joined session", "session", id)
		case EventSendMessage:
			var msg sendMessage
			if err := json.Unmarshal(frame.Data, &msg); err != nil {
				_ = client.send(outFrame{Event: EventError, Data: map[string]string{"message": processingFailedMsg}})
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = h.chat.ProcessQueryNotify(context.WithValue(ctx, senderKey{}, client), msg.SessionID, msg.Message)
			}()
		case EventClearSession:
			var id string
			if err := json.Unmarshal(frame.Data, &id); err != nil || id == "" {
				continue
			}
			if err := h.chat.ClearHistory(ctx, id); err != nil {
				h.logger.Error("clear session failed", "session", id, "error", err)
				_ = client.send(outFrame{Event: EventError, Data: map[string]string{"message": processingFailedMsg}})
				continue
			}
			h.broadcast(id, outFrame{Event: EventSessionClear})
		default:
			h.logger.Debug("unknown socket event", "event", frame.Event)
		}
	}
}

func (h *Hub) join(sessionID string, c *socketClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[sessionID]
	if !ok {
		room = make(map[*socketClient]struct{})
		h.rooms[sessionID] = room
	}
	room[c] = struct{}{}
}

func (h *Hub) leaveAll(c *socketClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, room := range h.rooms {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, id)
		}
	}
}

// Members reports how many connections joined sessionID.
func (h *Hub) Members(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

func (h *Hub) broadcast(sessionID string, frame outFrame) {
	h.mu.RLock()
	members := make([]*socketClient, 0, len(h.rooms[sessionID]))
	for c := range h.rooms[sessionID] {
		members = append(members, c)
	}
	h.mu.RUnlock()
	for _, c := range members {
		if err := c.send(frame); err != nil {
			h.logger.Debug("socket send failed", "session", sessionID, "error", err)
		}
	}
}

func (h *Hub) Working(_ context.Context, sessionID string, working bool) {
	h.broadcast(sessionID, outFrame{Event: EventBotTyping, Data: working})
}

func (h *Hub) Result(_ context.Context, sessionID string, result models.QueryResult) {
	sources := result.Sources
	if sources == nil {
		sources = []models.SourceRef{}
	}
	h.broadcast(sessionID, outFrame{Event: EventBotResponse, Data: botResponse{
		Message:   result.Response,
		Sources:   sources,
		Timestamp: h.now().UnixMilli(),
	}})
}

// Failed reports to the connection that sent the message only.
func (h *Hub) Failed(ctx context.Context, sessionID string, err error) {
	h.logger.Error("socket query failed", "session", sessionID, "error", err)
	client, ok := ctx.Value(senderKey{}).(*socketClient)
	if !ok {
		return
	}
	_ = client.send(outFrame{Event: EventError, Data: map[string]string{"message": processingFailedMsg}})
}
