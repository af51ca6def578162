package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/skintrend/internal/domain"
	"github.com/alanyoungcy/skintrend/internal/server/middleware"
)

type chanBus struct {
	chans map[string]chan []byte
}

func newChanBus() *chanBus {
	b := &chanBus{chans: map[string]chan []byte{}}
	for _, ch := range relayedChannels {
		b.chans[ch] = make(chan []byte, 16)
	}
	return b
}

func (b *chanBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.chans[channel] <- payload
	return nil
}

func (b *chanBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	return b.chans[channel], nil
}

func (b *chanBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *chanBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func event(t *testing.T, typ string, payload any) []byte {
	t.Helper()
	data, err := json.Marshal(domain.Event{Type: typ, Payload: payload, Timestamp: time.Now().UTC()})
	require.NoError(t, err)
	return data
}

func readType(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	return env.Type, env.Payload
}

func startHub(t *testing.T, bus domain.SignalBus) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(bus, logger, Config{
		Mode:  "full",
		Stats: func() domain.MarketStats { return domain.MarketStats{TotalAssetsTracked: 3} },
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()
	srv := httptest.NewServer(middleware.Identity("X-User-ID", "")(http.HandlerFunc(hub.HandleWS)))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return srv
}

func dial(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	if userID != "" {
		header.Set("X-User-ID", userID)
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHubSendsStatusOnConnect(t *testing.T) {
	srv := startHub(t, newChanBus())
	conn := dial(t, srv, "u1")

	typ, payload := readType(t, conn)
	assert.Equal(t, "venue_status", typ)
	var status struct {
		Mode          string             `json:"mode"`
		Authenticated bool               `json:"authenticated"`
		Market        domain.MarketStats `json:"market"`
	}
	require.NoError(t, json.Unmarshal(payload, &status))
	assert.Equal(t, "full", status.Mode)
	assert.True(t, status.Authenticated)
	assert.Equal(t, 3, status.Market.TotalAssetsTracked)
}

func TestHubRoutesPrivateEventsToOwner(t *testing.T) {
	bus := newChanBus()
	srv := startHub(t, bus)
	conn := dial(t, srv, "u1")
	typ, _ := readType(t, conn)
	require.Equal(t, "venue_status", typ)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, domain.ChannelPositions,
		event(t, domain.EventPositionOpened, domain.Position{ID: "other", UserID: "u2"})))
	require.NoError(t, bus.Publish(ctx, domain.ChannelPositions,
		event(t, domain.EventPositionOpened, domain.Position{ID: "mine", UserID: "u1"})))

	typ, payload := readType(t, conn)
	assert.Equal(t, domain.EventPositionOpened, typ)
	var pos domain.Position
	require.NoError(t, json.Unmarshal(payload, &pos))
	assert.Equal(t, "mine", pos.ID)

	require.NoError(t, bus.Publish(ctx, domain.ChannelPrices, event(t, domain.EventMarketTick, map[string]int{"assets": 2})))
	typ, _ = readType(t, conn)
	assert.Equal(t, domain.EventMarketTick, typ)
}

func TestHubAnonymousClientGetsOnlyPublicChannels(t *testing.T) {
	bus := newChanBus()
	srv := startHub(t, bus)
	conn := dial(t, srv, "")
	typ, payload := readType(t, conn)
	require.Equal(t, "venue_status", typ)
	assert.Contains(t, string(payload), `"authenticated":false`)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, domain.ChannelLedger,
		event(t, domain.EventDeposit, domain.Transaction{ID: "t1", UserID: "u1"})))
	// Give the private event a chance to be (wrongly) delivered first.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, bus.Publish(ctx, domain.ChannelPrices, event(t, domain.EventMarketTick, nil)))

	typ, _ = readType(t, conn)
	assert.Equal(t, domain.EventMarketTick, typ)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.example"})
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://APP.example")
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))
	assert.True(t, originChecker(nil)(req))
}

func TestHubUnsubscribeStopsChannel(t *testing.T) {
	bus := newChanBus()
	srv := startHub(t, bus)
	conn := dial(t, srv, "u1")
	typ, _ := readType(t, conn)
	require.Equal(t, "venue_status", typ)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"action":   "unsubscribe",
		"channels": []string{domain.ChannelPrices, "bogus"},
	}))
	typ, payload := readType(t, conn)
	require.Equal(t, "subscriptions", typ)
	var subs []string
	require.NoError(t, json.Unmarshal(payload, &subs))
	assert.Equal(t, []string{domain.ChannelLedger, domain.ChannelPositions}, subs)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, domain.ChannelPrices, event(t, domain.EventMarketTick, nil)))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, bus.Publish(ctx, domain.ChannelLedger,
		event(t, domain.EventDeposit, domain.Transaction{ID: "t1", UserID: "u1"})))

	typ, _ = readType(t, conn)
	assert.Equal(t, domain.EventDeposit, typ)
}

func TestHubRejectsClientsAfterShutdown(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(newChanBus(), logger, Config{Mode: "server"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, hub.Run(ctx))

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)
	conn := dial(t, srv, "")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestHubShutdownClosesClientsWithGoingAway(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(newChanBus(), logger, Config{Mode: "full"})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)

	conn := dial(t, srv, "")
	typ, _ := readType(t, conn)
	require.Equal(t, "venue_status", typ)

	cancel()
	<-done
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
