package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/skintrend/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type alert struct{ title, message string }

type recordingSender struct {
	mu     sync.Mutex
	name   string
	err    error
	alerts []alert
	got    chan struct{}
}

func newRecordingSender(name string, err error) *recordingSender {
	return &recordingSender{name: name, err: err, got: make(chan struct{}, 8)}
}

func (s *recordingSender) Send(_ context.Context, title, message string) error {
	s.mu.Lock()
	s.alerts = append(s.alerts, alert{title, message})
	s.mu.Unlock()
	s.got <- struct{}{}
	return s.err
}

func (s *recordingSender) Name() string { return s.name }

func (s *recordingSender) sent() []alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]alert(nil), s.alerts...)
}

func TestNotifierFiltersEvents(t *testing.T) {
	s := newRecordingSender("rec", nil)
	n := NewNotifier([]Sender{s}, []string{" withdrawal_requested "}, discardLogger())

	require.NoError(t, n.Notify(context.Background(), "deposit", "Deposit", "ignored"))
	require.NoError(t, n.Notify(context.Background(), "withdrawal_requested", "Withdrawal", "sent"))

	got := s.sent()
	require.Len(t, got, 1)
	assert.Equal(t, "sent", got[0].message)
}

func TestNotifierJoinsSenderErrors(t *testing.T) {
	bad := newRecordingSender("bad", errors.New("down"))
	good := newRecordingSender("good", nil)
	n := NewNotifier([]Sender{bad, good}, nil, discardLogger())

	err := n.Notify(context.Background(), "anything", "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: down")
	assert.Len(t, good.sent(), 1, "remaining senders still receive the alert")
}

func TestNotifierWithoutSendersIsDisabled(t *testing.T) {
	n := NewNotifier(nil, nil, discardLogger())
	assert.False(t, n.Enabled())
	assert.NoError(t, n.Notify(context.Background(), "x", "t", "m"))
}

func TestDiscordSender(t *testing.T) {
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewDiscordSender(srv.URL).Send(context.Background(), "Title", "Body"))
	assert.Equal(t, "**Title**\nBody", body["content"])
}

func TestTelegramSender(t *testing.T) {
	var path string
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, NewTelegramSender(srv.URL, "tok", "42").Send(context.Background(), "Title", "Body"))
	assert.Equal(t, "/bottok/sendMessage", path)
	assert.Equal(t, "42", body["chat_id"])
	assert.Equal(t, "*Title*\nBody", body["text"])
}

func TestSenderReportsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 403")
}

type ledgerBus struct {
	ch chan []byte
}

func (b *ledgerBus) Publish(context.Context, string, []byte) error { return nil }

func (b *ledgerBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	if channel != domain.ChannelLedger {
		return nil, errors.New("unexpected channel " + channel)
	}
	return b.ch, nil
}

func (b *ledgerBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *ledgerBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func ledgerEvent(t *testing.T, typ string, txn domain.Transaction) []byte {
	t.Helper()
	data, err := json.Marshal(domain.Event{Type: typ, Payload: txn, Timestamp: time.Now().UTC()})
	require.NoError(t, err)
	return data
}

func TestRelayForwardsWithdrawalRequests(t *testing.T) {
	bus := &ledgerBus{ch: make(chan []byte, 4)}
	s := newRecordingSender("rec", nil)
	relay := NewRelay(bus, NewNotifier([]Sender{s}, []string{domain.EventWithdrawal}, discardLogger()), discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	bus.ch <- []byte("not json")
	bus.ch <- ledgerEvent(t, domain.EventDeposit, domain.Transaction{ID: "d-1", UserID: "u-1", Amount: decimal.NewFromInt(5)})
	bus.ch <- ledgerEvent(t, domain.EventWithdrawal, domain.Transaction{
		ID: "tx-1", UserID: "u-1", Username: "alice",
		Type: domain.TransactionWithdraw, Amount: decimal.RequireFromString("25.5"),
		Status: domain.TransactionPending,
	})

	select {
	case <-s.got:
	case <-time.After(2 * time.Second):
		t.Fatal("no alert delivered")
	}
	cancel()
	require.NoError(t, <-done)

	got := s.sent()
	require.Len(t, got, 1)
	assert.Equal(t, "Withdrawal awaiting review", got[0].title)
	assert.Equal(t, "alice (u-1) requested $25.50\ntransaction tx-1", got[0].message)
}

func TestFormatProcessedWithdrawal(t *testing.T) {
	title, msg := formatAlert(domain.EventWithdrawalDone, domain.Transaction{
		ID: "tx-2", UserID: "u-2", Amount: decimal.NewFromInt(40), Status: domain.TransactionRejected,
	})
	assert.Equal(t, "Withdrawal rejected", title)
	assert.Equal(t, "$40.00 for u-2\ntransaction tx-2", msg)
}
