package server

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/skintrend/internal/domain"
	"github.com/alanyoungcy/skintrend/internal/metrics"
	"github.com/alanyoungcy/skintrend/internal/server/handler"
	"github.com/alanyoungcy/skintrend/internal/service"
)

// walletStore keeps users and transactions in memory behind one mutex. It
// backs the real wallet and admin services for end-to-end route tests.
type walletStore struct {
	mu    sync.Mutex
	users map[string]domain.User
	txns  map[string]domain.Transaction
	order []string
}

func newWalletStore() *walletStore {
	return &walletStore{users: map[string]domain.User{}, txns: map[string]domain.Transaction{}}
}

func (s *walletStore) InTx(_ context.Context, fn func(domain.LedgerTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, txns, order := maps.Clone(s.users), maps.Clone(s.txns), append([]string(nil), s.order...)
	if err := fn(walletTx{s}); err != nil {
		s.users, s.txns, s.order = users, txns, order
		return err
	}
	return nil
}

type walletTx struct{ s *walletStore }

func (t walletTx) LockUser(_ context.Context, id string) (domain.User, error) {
	u, ok := t.s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (t walletTx) SetBalance(_ context.Context, id string, balance decimal.Decimal) error {
	u := t.s.users[id]
	u.Balance = balance
	t.s.users[id] = u
	return nil
}

func (walletTx) CreatePosition(context.Context, domain.Position) error { return nil }
func (walletTx) LockPosition(context.Context, string, string) (domain.Position, error) {
	return domain.Position{}, domain.ErrPositionNotFound
}
func (walletTx) SettlePosition(context.Context, string, decimal.Decimal, decimal.Decimal, time.Time) error {
	return domain.ErrPositionNotFound
}

func (t walletTx) CreateTransaction(_ context.Context, txn domain.Transaction) error {
	t.s.txns[txn.ID] = txn
	t.s.order = append(t.s.order, txn.ID)
	return nil
}

func (t walletTx) LockTransaction(_ context.Context, id string) (domain.Transaction, error) {
	txn, ok := t.s.txns[id]
	if !ok {
		return domain.Transaction{}, domain.ErrTransactionNotFound
	}
	return txn, nil
}

func (t walletTx) UpdateTransactionStatus(_ context.Context, id string, status domain.TransactionStatus) error {
	txn := t.s.txns[id]
	txn.Status = status
	t.s.txns[id] = txn
	return nil
}

func (s *walletStore) Ensure(_ context.Context, u domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.users[u.ID]; ok {
		return existing, nil
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *walletStore) GetByID(_ context.Context, id string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (s *walletStore) SetEmailVerified(_ context.Context, id string, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.EmailVerified = verified
	s.users[id] = u
	return nil
}

func (s *walletStore) List(context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slicesOf(s.users), nil
}

func (s *walletStore) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.users)), nil
}

func (s *walletStore) SumBalances(context.Context) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := decimal.Zero
	for _, u := range s.users {
		sum = sum.Add(u.Balance)
	}
	return sum, nil
}

func (s *walletStore) ListByUser(_ context.Context, userID string, _ int) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Transaction
	for i := len(s.order) - 1; i >= 0; i-- {
		if txn := s.txns[s.order[i]]; txn.UserID == userID {
			out = append(out, txn)
		}
	}
	return out, nil
}

func (s *walletStore) ListRecent(_ context.Context, _ int) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Transaction
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.txns[s.order[i]])
	}
	return out, nil
}

func (s *walletStore) CountPending(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, txn := range s.txns {
		if txn.Type == domain.TransactionWithdraw && txn.Status == domain.TransactionPending {
			n++
		}
	}
	return n, nil
}

func slicesOf(users map[string]domain.User) []domain.User {
	out := make([]domain.User, 0, len(users))
	for _, u := range users {
		out = append(out, u)
	}
	return out
}

func TestWithdrawalFlowUsesGatewayVerification(t *testing.T) {
	store := newWalletStore()
	logger := discardLogger()
	wallet := service.NewWalletService(store, store, store, nil, nil, nil, service.WalletConfig{
		MinWithdrawal:   decimal.NewFromInt(10),
		StartingBalance: decimal.NewFromInt(10000),
	}, logger)
	admin := service.NewAdminService(store, store, store, nil, nil, nil, 50, logger)

	reg := prometheus.NewRegistry()
	f := &fixture{handler: NewHandler(Config{
		AdminAPIKey:    "admin-key",
		UserHeader:     "X-User-ID",
		VerifiedHeader: "X-Email-Verified",
	}, Handlers{
		Trading: handler.NewTradingHandler(&stubTrading{}, wallet, logger),
		Admin:   handler.NewAdminHandler(admin, logger),
	}, nil, metrics.New(reg), logger)}

	unverified := map[string]string{"X-User-ID": "u1", "X-Email-Verified": "false"}
	verified := map[string]string{"X-User-ID": "u1", "X-Email-Verified": "true"}

	rec := f.do(http.MethodPost, "/api/trading/register", `{"username":"alice"}`, unverified)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email_verified":false`)

	rec = f.do(http.MethodPost, "/api/trading/withdraw", `{"amount":50}`, unverified)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "email not verified")

	rec = f.do(http.MethodPost, "/api/trading/withdraw", `{"amount":50}`, verified)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res struct {
		Balance     decimal.Decimal    `json:"balance"`
		Transaction domain.Transaction `json:"transaction"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "9950", res.Balance.String())
	assert.Equal(t, domain.TransactionPending, res.Transaction.Status)

	rec = f.do(http.MethodPost, "/api/trading/admin/withdraw/"+res.Transaction.ID+"/approve", "",
		map[string]string{"X-API-Key": "admin-key"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.TransactionCompleted, store.txns[res.Transaction.ID].Status)
	assert.Equal(t, "9950", store.users["u1"].Balance.String())

	// Without the header the stored flag stands.
	rec = f.do(http.MethodPost, "/api/trading/withdraw", `{"amount":10}`, user("u1"))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
