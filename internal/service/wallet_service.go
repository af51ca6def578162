package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/skintrend/internal/domain"
	"github.com/alanyoungcy/skintrend/internal/metrics"
)

const (
	msgDepositOK    = "Deposit successful!"
	msgWithdrawalOK = "Withdrawal recorded (Pending approval)!"
)

// WalletConfig holds deposit and withdrawal rules.
type WalletConfig struct {
	MinWithdrawal   decimal.Decimal
	StartingBalance decimal.Decimal
	HistoryLimit    int
}

// WalletResult is returned by balance-changing wallet operations.
type WalletResult struct {
	Balance     decimal.Decimal    `json:"balance"`
	Message     string             `json:"message"`
	Transaction domain.Transaction `json:"transaction"`
}

// WalletService moves money in and out of user balances.
type WalletService struct {
	users   domain.UserStore
	txns    domain.TransactionStore
	ledger  domain.Ledger
	notify  notifier
	metrics *metrics.Metrics
	cfg     WalletConfig
	now     func() time.Time
	logger  *slog.Logger
}

// NewWalletService creates a WalletService. bus, audit and m may be nil.
func NewWalletService(
	users domain.UserStore,
	txns domain.TransactionStore,
	ledger domain.Ledger,
	bus domain.SignalBus,
	audit domain.AuditStore,
	m *metrics.Metrics,
	cfg WalletConfig,
	logger *slog.Logger,
) *WalletService {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	logger = logger.With(slog.String("component", "wallet"))
	return &WalletService{
		users:   users,
		txns:    txns,
		ledger:  ledger,
		notify:  notifier{bus: bus, audit: audit, logger: logger},
		metrics: m,
		cfg:     cfg,
		now:     time.Now,
		logger:  logger,
	}
}

// EnsureUser registers userID with the starting balance if it is new and
// returns the stored account. Calling it again is a no-op.
func (s *WalletService) EnsureUser(ctx context.Context, userID, username string) (domain.User, error) {
	if userID == "" {
		return domain.User{}, fmt.Errorf("wallet: ensure user: %w", domain.ErrUserNotFound)
	}
	u, err := s.users.Ensure(ctx, domain.User{
		ID:        userID,
		Username:  username,
		Balance:   domain.RoundMoney(s.cfg.StartingBalance),
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("wallet: ensure user: %w", err)
	}
	return u, nil
}

// SyncEmailVerified stores the verification flag asserted by the identity
// gateway. Withdraw reads the stored flag. An unknown user yields
// domain.ErrUserNotFound.
func (s *WalletService) SyncEmailVerified(ctx context.Context, userID string, verified bool) error {
	if err := s.users.SetEmailVerified(ctx, userID, verified); err != nil {
		return fmt.Errorf("wallet: sync email verified: %w", err)
	}
	return nil
}

// Balance returns the user's balance. An unknown user has a balance of 0.
func (s *WalletService) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("wallet: balance: %w", err)
	}
	return u.Balance, nil
}

// Deposit credits amount and records a COMPLETED deposit.
func (s *WalletService) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (WalletResult, error) {
	amount = domain.RoundMoney(amount)
	if !amount.IsPositive() {
		return WalletResult{}, domain.ErrInvalidAmount
	}

	now := s.now().UTC()
	txn := domain.Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      domain.TransactionDeposit,
		Amount:    amount,
		Status:    domain.TransactionCompleted,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var balance decimal.Decimal
	err := s.ledger.InTx(ctx, func(tx domain.LedgerTx) error {
		u, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		balance = domain.RoundMoney(u.Balance.Add(amount))
		if err := tx.SetBalance(ctx, userID, balance); err != nil {
			return err
		}
		return tx.CreateTransaction(ctx, txn)
	})
	if err != nil {
		return WalletResult{}, fmt.Errorf("wallet: deposit: %w", err)
	}

	s.metrics.IncWalletOp("deposit")
	s.notify.publish(ctx, domain.ChannelLedger, domain.EventDeposit, txn)
	s.notify.record(ctx, "wallet.deposit", map[string]any{
		"transaction_id": txn.ID,
		"user_id":        userID,
		"amount":         amount.String(),
		"balance":        balance.String(),
	})
	return WalletResult{Balance: balance, Message: msgDepositOK, Transaction: txn}, nil
}

// Withdraw debits amount immediately and records a PENDING withdrawal for an
// administrator to approve or reject. The user must have a verified email.
func (s *WalletService) Withdraw(ctx context.Context, userID string, amount decimal.Decimal) (WalletResult, error) {
	amount = domain.RoundMoney(amount)
	if !amount.IsPositive() {
		return WalletResult{}, domain.ErrInvalidAmount
	}
	if amount.LessThan(s.cfg.MinWithdrawal) {
		return WalletResult{}, fmt.Errorf("%w: minimum is %s", domain.ErrBelowMinimum, s.cfg.MinWithdrawal.StringFixed(domain.MoneyPlaces))
	}

	now := s.now().UTC()
	txn := domain.Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      domain.TransactionWithdraw,
		Amount:    amount,
		Status:    domain.TransactionPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var balance decimal.Decimal
	err := s.ledger.InTx(ctx, func(tx domain.LedgerTx) error {
		u, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		if !u.EmailVerified {
			return domain.ErrEmailNotVerified
		}
		if u.Balance.LessThan(amount) {
			return domain.ErrInsufficientFunds
		}
		balance = domain.RoundMoney(u.Balance.Sub(amount))
		if err := tx.SetBalance(ctx, userID, balance); err != nil {
			return err
		}
		return tx.CreateTransaction(ctx, txn)
	})
	if err != nil {
		return WalletResult{}, fmt.Errorf("wallet: withdraw: %w", err)
	}

	s.metrics.IncWalletOp("withdraw")
	s.notify.publish(ctx, domain.ChannelLedger, domain.EventWithdrawal, txn)
	s.notify.record(ctx, "wallet.withdraw", map[string]any{
		"transaction_id": txn.ID,
		"user_id":        userID,
		"amount":         amount.String(),
		"balance":        balance.String(),
	})
	return WalletResult{Balance: balance, Message: msgWithdrawalOK, Transaction: txn}, nil
}

// Transactions returns the user's latest deposits and withdrawals, newest
// first.
func (s *WalletService) Transactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	txns, err := s.txns.ListByUser(ctx, userID, s.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("wallet: transactions: %w", err)
	}
	return txns, nil
}
