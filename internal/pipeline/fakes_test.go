package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/skintrend/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func price(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

type fakeSource struct {
	items []domain.ReferenceItem
	err   error
	calls int
}

func (f *fakeSource) GetItems(ctx context.Context) ([]domain.ReferenceItem, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

type fakeMirror struct {
	saved   []domain.LiveQuote
	stored  []domain.LiveQuote
	saveErr error
}

func (m *fakeMirror) SaveAll(_ context.Context, quotes []domain.LiveQuote) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = quotes
	return nil
}

func (m *fakeMirror) LoadAll(context.Context) ([]domain.LiveQuote, error) {
	return m.stored, nil
}

type fakeBus struct {
	mu     sync.Mutex
	events []domain.Event
	raw    map[string][][]byte
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.raw == nil {
		b.raw = map[string][][]byte{}
	}
	b.raw[channel] = append(b.raw[channel], payload)
	var ev domain.Event
	if err := json.Unmarshal(payload, &ev); err == nil {
		b.events = append(b.events, ev)
	}
	return nil
}

func (b *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

func (b *fakeBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *fakeBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func (b *fakeBus) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.Type
	}
	return out
}

type fakeSnapshots struct {
	mu      sync.Mutex
	batches [][]domain.PriceSnapshot
	failOn  map[int]bool
	cleared bool
	call    int
}

func (s *fakeSnapshots) InsertBatch(_ context.Context, snaps []domain.PriceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.call++
	if s.failOn[s.call] {
		return errors.New("insert failed")
	}
	cp := make([]domain.PriceSnapshot, len(snaps))
	copy(cp, snaps)
	s.batches = append(s.batches, cp)
	return nil
}

func (s *fakeSnapshots) ClearAll(context.Context) (int64, error) {
	s.cleared = true
	return 7, nil
}

func (s *fakeSnapshots) ListByAsset(context.Context, string, time.Time) ([]domain.PriceSnapshot, error) {
	return nil, nil
}

func (s *fakeSnapshots) ListRange(context.Context, time.Time, time.Time) ([]domain.PriceSnapshot, error) {
	return nil, nil
}

type fakeLocks struct {
	held     bool
	err      error
	released int
}

func (l *fakeLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	if l.held {
		return nil, domain.ErrLockHeld
	}
	return func() { l.released++ }, nil
}

type fakeArchiver struct {
	dayEnds []time.Time
	n       int64
}

func (a *fakeArchiver) ArchiveSnapshots(_ context.Context, dayEnd time.Time) (int64, error) {
	a.dayEnds = append(a.dayEnds, dayEnd)
	return a.n, nil
}
