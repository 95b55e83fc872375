package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/scramble/internal/domain/model"
	"github.com/okian/scramble/pkg/logger"
	"github.com/okian/scramble/pkg/metrics"
)

const (
	defaultSendBuffer = 256
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = pongWait * 9 / 10
	resubscribeDelay  = 200 * time.Millisecond
)

// Feeds is the change stream of the score record store.
type Feeds interface {
	SubscribeScores(ctx context.Context) (<-chan model.ScoreChange, error)
	SubscribeTeams(ctx context.Context) (<-chan model.TeamChange, error)
}

// HubOption applies a configuration option to the Hub.
type HubOption func(*Hub)

// WithHubLogger sets a custom logger for the hub.
func WithHubLogger(l logger.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithSendBuffer sets how many frames a client may fall behind before it
// is disconnected.
func WithSendBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// Hub fans store changes and leaderboard snapshots out to WebSocket clients.
type Hub struct {
	board      Board
	logger     logger.Logger
	upgrader   websocket.Upgrader
	sendBuffer int

	mu      sync.RWMutex
	clients map[*client]struct{}

	ready     chan struct{}
	readyOnce sync.Once
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// NewHub creates a hub. board supplies the snapshot sent to new clients.
func NewHub(board Board, opts ...HubOption) *Hub {
	h := &Hub{
		board:      board,
		logger:     logger.Get().Named("ws"),
		sendBuffer: defaultSendBuffer,
		clients:    make(map[*client]struct{}),
		ready:      make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run forwards store changes and leaderboard updates to every client until
// ctx ends, then disconnects all clients. When a store feed drops the hub,
// changes may have been lost, so every client is disconnected and must
// reconnect and reload.
func (h *Hub) Run(ctx context.Context, feeds Feeds) error {
	defer h.closeAll()

	scores, err := feeds.SubscribeScores(ctx)
	if err != nil {
		return err
	}
	teams, err := feeds.SubscribeTeams(ctx)
	if err != nil {
		return err
	}
	board, unsubscribe := h.board.Subscribe()
	defer unsubscribe()
	h.readyOnce.Do(func() { close(h.ready) })

	for {
		select {
		case <-ctx.Done():
			return nil
		case ch, ok := <-scores:
			if !ok {
				h.dropClients(ctx, "scores")
				if scores = h.resubscribeScores(ctx, feeds); scores == nil {
					return nil
				}
				continue
			}
			h.Broadcast(MessageScoreChange, ch)
		case ch, ok := <-teams:
			if !ok {
				h.dropClients(ctx, "teams")
				if teams = h.resubscribeTeams(ctx, feeds); teams == nil {
					return nil
				}
				continue
			}
			h.Broadcast(MessageTeamChange, ch)
		case entries, ok := <-board:
			if !ok {
				return nil
			}
			h.Broadcast(MessageLeaderboard, entries)
		}
	}
}

func (h *Hub) dropClients(ctx context.Context, feed string) {
	h.logger.Warn(ctx, "store feed dropped, disconnecting clients",
		logger.String("feed", feed),
		logger.Int("clients", h.Clients()),
	)
	h.closeAll()
}

func (h *Hub) resubscribeScores(ctx context.Context, feeds Feeds) <-chan model.ScoreChange {
	for {
		h.logger.Warn(ctx, "score feed closed, resubscribing")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(resubscribeDelay):
		}
		if ch, err := feeds.SubscribeScores(ctx); err == nil {
			return ch
		}
	}
}

func (h *Hub) resubscribeTeams(ctx context.Context, feeds Feeds) <-chan model.TeamChange {
	for {
		h.logger.Warn(ctx, "team feed closed, resubscribing")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(resubscribeDelay):
		}
		if ch, err := feeds.SubscribeTeams(ctx); err == nil {
			return ch
		}
	}
}

// Ready is closed once Run has subscribed to the store and the board.
func (h *Hub) Ready() <-chan struct{} {
	return h.ready
}

// Broadcast sends one message to every connected client. A client whose
// buffer is full is disconnected.
func (h *Hub) Broadcast(msgType string, payload any) {
	frame, err := encodeMessage(msgType, payload)
	if err != nil {
		h.logger.Error(context.Background(), "encode ws message failed",
			logger.String("type", msgType),
			logger.Error(err),
		)
		return
	}
	metrics.RecordWebsocketBroadcast(msgType)

	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn(context.Background(), "ws client too slow, disconnecting")
		h.unregister(c)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and registers the connection. The first
// frame sent is the current leaderboard. The client is registered before the
// handshake response is written, so every change committed after the dial
// returns reaches it.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	c := &client{hub: h, send: make(chan []byte, h.sendBuffer)}

	h.mu.Lock()
	if frame, err := encodeMessage(MessageLeaderboard, h.board.Entries()); err == nil {
		c.send <- frame
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.unregister(c)
		h.logger.Error(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	c.conn = conn
	metrics.UpdateWebsocketClients(n)
	h.logger.Debug(r.Context(), "ws client connected", logger.Int("clients", n))

	go c.writePump()
	go c.readPump()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		c.once.Do(func() { close(c.send) })
		metrics.UpdateWebsocketClients(n)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()
	for c := range clients {
		c.once.Do(func() { close(c.send) })
	}
	metrics.UpdateWebsocketClients(0)
}

// readPump discards inbound frames and unregisters on disconnect.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug(context.Background(), "ws read error", logger.Error(err))
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func encodeMessage(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: msgType, Payload: raw})
}
