package service

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/skintrend/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// memLedger is an in-memory ledger. InTx serializes transactions with one
// mutex and restores every map when fn fails, mirroring a rolled back
// database transaction.
type memLedger struct {
	mu        sync.Mutex
	users     map[string]domain.User
	positions map[string]domain.Position
	txns      map[string]domain.Transaction
	seq       int
	seqOf     map[string]int
}

func newMemLedger() *memLedger {
	return &memLedger{
		users:     map[string]domain.User{},
		positions: map[string]domain.Position{},
		txns:      map[string]domain.Transaction{},
		seqOf:     map[string]int{},
	}
}

func (l *memLedger) addUser(id, balance string, verified bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.users[id] = domain.User{ID: id, Username: "user-" + id, Balance: dec(balance), EmailVerified: verified}
}

func (l *memLedger) balance(id string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.users[id].Balance.String()
}

func (l *memLedger) position(id string) domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.positions[id]
}

func (l *memLedger) countPositions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.positions)
}

func (l *memLedger) addClosed(userID, profit string, closedAt time.Time) domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	p := dec(profit)
	cp := dec("100")
	pos := domain.Position{
		ID:         "closed-" + decimal.NewFromInt(int64(l.seq)).String(),
		UserID:     userID,
		AssetID:    "asset",
		Direction:  domain.DirectionLong,
		EntryPrice: dec("100"),
		Margin:     dec("100"),
		Status:     domain.PositionStatusClosed,
		ClosePrice: &cp,
		Profit:     &p,
		CreatedAt:  closedAt.Add(-time.Hour),
		ClosedAt:   &closedAt,
	}
	l.positions[pos.ID] = pos
	l.seqOf[pos.ID] = l.seq
	return pos
}

func (l *memLedger) InTx(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	users := maps.Clone(l.users)
	positions := maps.Clone(l.positions)
	txns := maps.Clone(l.txns)

	if err := fn(&memTx{l: l}); err != nil {
		l.users, l.positions, l.txns = users, positions, txns
		return err
	}
	return nil
}

type memTx struct{ l *memLedger }

func (t *memTx) LockUser(_ context.Context, userID string) (domain.User, error) {
	u, ok := t.l.users[userID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (t *memTx) SetBalance(_ context.Context, userID string, balance decimal.Decimal) error {
	u, ok := t.l.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if balance.IsNegative() {
		return domain.ErrInsufficientFunds
	}
	u.Balance = balance
	t.l.users[userID] = u
	return nil
}

func (t *memTx) CreatePosition(_ context.Context, pos domain.Position) error {
	t.l.seq++
	t.l.positions[pos.ID] = pos
	t.l.seqOf[pos.ID] = t.l.seq
	return nil
}

func (t *memTx) LockPosition(_ context.Context, positionID, userID string) (domain.Position, error) {
	p, ok := t.l.positions[positionID]
	if !ok || p.UserID != userID {
		return domain.Position{}, domain.ErrPositionNotFound
	}
	return p, nil
}

func (t *memTx) SettlePosition(_ context.Context, positionID string, closePrice, profit decimal.Decimal, closedAt time.Time) error {
	p, ok := t.l.positions[positionID]
	if !ok {
		return domain.ErrPositionNotFound
	}
	if p.Status != domain.PositionStatusOpen {
		return domain.ErrPositionClosed
	}
	p.Status = domain.PositionStatusClosed
	p.ClosePrice = &closePrice
	p.Profit = &profit
	p.ClosedAt = &closedAt
	t.l.positions[positionID] = p
	return nil
}

func (t *memTx) CreateTransaction(_ context.Context, txn domain.Transaction) error {
	t.l.seq++
	t.l.txns[txn.ID] = txn
	t.l.seqOf[txn.ID] = t.l.seq
	return nil
}

func (t *memTx) LockTransaction(_ context.Context, id string) (domain.Transaction, error) {
	txn, ok := t.l.txns[id]
	if !ok {
		return domain.Transaction{}, domain.ErrTransactionNotFound
	}
	return txn, nil
}

func (t *memTx) UpdateTransactionStatus(_ context.Context, id string, status domain.TransactionStatus) error {
	txn, ok := t.l.txns[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	txn.Status = status
	t.l.txns[id] = txn
	return nil
}

// Store-side reads, outside of any transaction.

func (l *memLedger) Ensure(_ context.Context, user domain.User) (domain.User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if u, ok := l.users[user.ID]; ok {
		return u, nil
	}
	l.users[user.ID] = user
	return user, nil
}

func (l *memLedger) GetByID(_ context.Context, id string) (domain.User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	u, ok := l.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (l *memLedger) SetEmailVerified(_ context.Context, id string, verified bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	u, ok := l.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.EmailVerified = verified
	l.users[id] = u
	return nil
}

func (l *memLedger) List(context.Context) ([]domain.User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.User, 0, len(l.users))
	for _, u := range l.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (l *memLedger) Count(context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(len(l.users)), nil
}

func (l *memLedger) SumBalances(context.Context) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	sum := decimal.Zero
	for _, u := range l.users {
		sum = sum.Add(u.Balance)
	}
	return sum, nil
}

func (l *memLedger) ListOpen(_ context.Context, userID string) ([]domain.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.Position
	for _, p := range l.positions {
		if p.UserID == userID && p.Status == domain.PositionStatusOpen {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return l.seqOf[out[i].ID] > l.seqOf[out[j].ID] })
	return out, nil
}

func (l *memLedger) ListClosed(_ context.Context, userID string, limit int) ([]domain.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.Position
	for _, p := range l.positions {
		if p.UserID == userID && p.Status == domain.PositionStatusClosed {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return l.seqOf[out[i].ID] > l.seqOf[out[j].ID] })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *memLedger) ListByUser(_ context.Context, userID string, limit int) ([]domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.Transaction
	for _, t := range l.txns {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return l.seqOf[out[i].ID] > l.seqOf[out[j].ID] })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *memLedger) ListRecent(_ context.Context, limit int) ([]domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Transaction, 0, len(l.txns))
	for _, t := range l.txns {
		t.Username = l.users[t.UserID].Username
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return l.seqOf[out[i].ID] > l.seqOf[out[j].ID] })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *memLedger) CountPending(context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for _, t := range l.txns {
		if t.Type == domain.TransactionWithdraw && t.Status == domain.TransactionPending {
			n++
		}
	}
	return n, nil
}

// quoteBook is a settable QuoteReader.
type quoteBook struct {
	mu     sync.RWMutex
	quotes map[string]domain.LiveQuote
}

func newQuoteBook() *quoteBook { return &quoteBook{quotes: map[string]domain.LiveQuote{}} }

func (b *quoteBook) set(asset, bid, ask string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bd, ak := dec(bid), dec(ask)
	b.quotes[asset] = domain.LiveQuote{
		AssetID:      asset,
		BidPrice:     bd,
		AskPrice:     ak,
		CurrentPrice: bd.Add(ak).Div(decimal.NewFromInt(2)),
	}
}

func (b *quoteBook) remove(asset string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.quotes, asset)
}

func (b *quoteBook) Quote(asset string) (domain.LiveQuote, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	q, ok := b.quotes[asset]
	return q, ok
}

type recordingBus struct {
	mu      sync.Mutex
	channel map[string][]string
	streams map[string]int
}

func newRecordingBus() *recordingBus {
	return &recordingBus{channel: map[string][]string{}, streams: map[string]int{}}
}

func (b *recordingBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channel[channel] = append(b.channel[channel], string(payload))
	return nil
}

func (b *recordingBus) Subscribe(context.Context, string) (<-chan []byte, error) { return nil, nil }

func (b *recordingBus) StreamAppend(_ context.Context, stream string, _ []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streams[stream]++
	return nil
}

func (b *recordingBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type recordingAudit struct {
	mu      sync.Mutex
	events  []string
	entries []domain.AuditEntry
	filter  domain.AuditFilter
}

func (a *recordingAudit) Log(_ context.Context, event string, detail map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	a.entries = append(a.entries, domain.AuditEntry{
		ID: int64(len(a.entries) + 1), Event: event, Detail: detail, CreatedAt: time.Now().UTC(),
	})
	return nil
}

// List applies the event prefix and user filters, newest first.
func (a *recordingAudit) List(_ context.Context, f domain.AuditFilter) ([]domain.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.filter = f
	var out []domain.AuditEntry
	for i := len(a.entries) - 1; i >= 0 && len(out) < f.Limit; i-- {
		e := a.entries[i]
		if !strings.HasPrefix(e.Event, f.EventPrefix) {
			continue
		}
		if f.UserID != "" && e.Detail["user_id"] != f.UserID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
