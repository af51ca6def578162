// Package ws streams venue events to browsers over WebSocket. Market ticks
// are public; position and ledger events reach only the user they belong to.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/skintrend/internal/domain"
	"github.com/alanyoungcy/skintrend/internal/server/middleware"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBuffer     = 256

	statusType        = "venue_status"
	subscriptionsType = "subscriptions"
)

// shutdownFrame closes a connection with 1001 when the hub stops.
var shutdownFrame = websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")

// relayedChannels are the bus channels forwarded to clients.
var relayedChannels = []string{
	domain.ChannelPrices,
	domain.ChannelPositions,
	domain.ChannelLedger,
}

// privateChannels carry events whose payload.user_id names the only client
// allowed to see them.
var privateChannels = map[string]bool{
	domain.ChannelPositions: true,
	domain.ChannelLedger:    true,
}

// Config describes the venue for the status frame sent on connect.
type Config struct {
	Mode      string
	StartedAt time.Time
	// Stats, when set, is included in the connect status.
	Stats func() domain.MarketStats
	// AllowedOrigins restricts browser origins. Empty allows all.
	AllowedOrigins []string
}

// Hub fans bus events out to connected clients.
type Hub struct {
	bus       domain.SignalBus
	logger    *slog.Logger
	mode      string
	startedAt time.Time
	stats     func() domain.MarketStats
	upgrader  websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	stopped bool
}

// NewHub creates a Hub reading from bus. Call Run to start relaying.
func NewHub(bus domain.SignalBus, logger *slog.Logger, cfg Config) *Hub {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "unknown"
	}
	startedAt := cfg.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	return &Hub{
		bus:       bus,
		logger:    logger.With(slog.String("component", "ws")),
		mode:      mode,
		startedAt: startedAt,
		stats:     cfg.Stats,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		clients: make(map[*client]struct{}),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		return slices.ContainsFunc(allowed, func(o string) bool {
			return o == "*" || strings.EqualFold(o, origin)
		})
	}
}

// Run relays bus events until ctx is cancelled, then disconnects every
// client. It returns nil on cancellation.
func (h *Hub) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, ch := range relayedChannels {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.forward(ctx, ch)
		}()
	}

	<-ctx.Done()
	wg.Wait()

	h.mu.Lock()
	h.stopped = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	h.logger.Info("ws: hub stopped")
	return nil
}

// forward copies one bus channel into deliver.
func (h *Hub) forward(ctx context.Context, channel string) {
	events, err := h.bus.Subscribe(ctx, channel)
	if err != nil {
		if ctx.Err() == nil {
			h.logger.Error("ws: subscribe failed",
				slog.String("channel", channel),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-events:
			if !ok {
				if ctx.Err() == nil {
					h.logger.Warn("ws: subscription closed", slog.String("channel", channel))
				}
				return
			}
			h.deliver(channel, data)
		}
	}
}

// deliver queues data for every client that should see it. A client whose
// buffer is full misses the frame.
func (h *Hub) deliver(channel string, data []byte) {
	owner := ""
	if privateChannels[channel] {
		if owner = payloadOwner(data); owner == "" {
			return
		}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(channel, owner) {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.logger.Warn("ws: client buffer full, frame dropped",
				slog.String("channel", channel),
				slog.String("user_id", c.userID),
			)
		}
	}
}

// payloadOwner extracts payload.user_id from an event envelope.
func payloadOwner(data []byte) string {
	var env struct {
		Payload struct {
			UserID string `json:"user_id"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return ""
	}
	return env.Payload.UserID
}

// HandleWS upgrades the request and attaches the client. The identity set by
// middleware.Identity decides which private events it receives.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := newClient(h, conn, middleware.UserID(r.Context()))
	c.queue(h.statusFrame(c))
	if !h.attach(c) {
		_ = conn.WriteMessage(websocket.CloseMessage, shutdownFrame)
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) attach(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return false
	}
	h.clients[c] = struct{}{}
	h.logger.Info("ws: client connected",
		slog.Int("clients", len(h.clients)),
		slog.Bool("authenticated", c.userID != ""),
	)
	return true
}

func (h *Hub) detach(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.logger.Info("ws: client disconnected", slog.Int("clients", len(h.clients)))
}

// reply queues data for c alone, unless c has been detached.
func (h *Hub) reply(c *client, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; ok {
		c.queue(data)
	}
}

// statusFrame lets a client mark the connection healthy before any tick.
func (h *Hub) statusFrame(c *client) []byte {
	payload := map[string]any{
		"mode":           h.mode,
		"ws_connected":   true,
		"uptime_seconds": max(int64(time.Since(h.startedAt).Seconds()), 0),
		"authenticated":  c.userID != "",
	}
	if h.stats != nil {
		payload["market"] = h.stats()
	}
	return frame(statusType, payload)
}

func frame(typ string, payload any) []byte {
	data, err := json.Marshal(map[string]any{"type": typ, "payload": payload})
	if err != nil {
		return nil
	}
	return data
}

// client is one WebSocket connection. send is closed by the hub.
type client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string

	mu   sync.RWMutex
	subs map[string]bool
}

func newClient(h *Hub, conn *websocket.Conn, userID string) *client {
	c := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		userID: userID,
		subs:   make(map[string]bool, len(relayedChannels)),
	}
	for _, ch := range relayedChannels {
		c.subs[ch] = true
	}
	return c
}

// wants reports whether the client subscribed to channel and, for private
// channels, owns the event.
func (c *client) wants(channel, owner string) bool {
	if owner != "" && owner != c.userID {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subs[channel]
}

// queue adds data without blocking. Once attached, callers must hold the hub
// lock and check the client is still registered.
func (c *client) queue(data []byte) {
	if data == nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// subscriptionMsg changes the channel set:
//
//	{"action":"unsubscribe","channels":["prices"]}
type subscriptionMsg struct {
	Action   string   `json:"action"`
	Channels []string `json:"channels"`
}

// readPump handles subscription changes and detaches the client when the
// connection ends.
func (c *client) readPump() {
	defer func() {
		c.hub.detach(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close", slog.String("error", err.Error()))
			}
			return
		}
		var msg subscriptionMsg
		if json.Unmarshal(data, &msg) != nil {
			continue
		}
		if subs, ok := c.apply(msg); ok {
			c.hub.reply(c, frame(subscriptionsType, subs))
		}
	}
}

// apply updates the subscription set and returns it sorted. Unknown actions
// and channels are ignored.
func (c *client) apply(msg subscriptionMsg) ([]string, bool) {
	on := true
	switch msg.Action {
	case "subscribe":
	case "unsubscribe":
		on = false
	default:
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range msg.Channels {
		if slices.Contains(relayedChannels, ch) {
			c.subs[ch] = on
		}
	}
	subs := make([]string, 0, len(c.subs))
	for ch, ok := range c.subs {
		if ok {
			subs = append(subs, ch)
		}
	}
	slices.Sort(subs)
	return subs, true
}

// writePump writes queued frames as text messages and pings the peer.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, shutdownFrame)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
