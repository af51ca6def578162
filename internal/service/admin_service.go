package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/skintrend/internal/domain"
	"github.com/alanyoungcy/skintrend/internal/metrics"
)

const (
	msgApproved = "Withdrawal approved successfully!"
	msgRejected = "Withdrawal rejected. Funds returned to user balance."
)

// AdminResult is returned by withdrawal review operations.
type AdminResult struct {
	Message     string             `json:"message"`
	Transaction domain.Transaction `json:"transaction"`
}

// AdminService exposes the platform view and withdrawal review.
type AdminService struct {
	users       domain.UserStore
	txns        domain.TransactionStore
	ledger      domain.Ledger
	notify      notifier
	metrics     *metrics.Metrics
	recentLimit int
	logger      *slog.Logger
}

// NewAdminService creates an AdminService. bus, audit and m may be nil.
func NewAdminService(
	users domain.UserStore,
	txns domain.TransactionStore,
	ledger domain.Ledger,
	bus domain.SignalBus,
	audit domain.AuditStore,
	m *metrics.Metrics,
	recentLimit int,
	logger *slog.Logger,
) *AdminService {
	if recentLimit <= 0 {
		recentLimit = 50
	}
	logger = logger.With(slog.String("component", "admin"))
	return &AdminService{
		users:       users,
		txns:        txns,
		ledger:      ledger,
		notify:      notifier{bus: bus, audit: audit, logger: logger},
		metrics:     m,
		recentLimit: recentLimit,
		logger:      logger,
	}
}

// Stats returns totals over every user plus the most recent transactions.
func (s *AdminService) Stats(ctx context.Context) (domain.AdminStats, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return domain.AdminStats{}, fmt.Errorf("admin: list users: %w", err)
	}
	count, err := s.users.Count(ctx)
	if err != nil {
		return domain.AdminStats{}, fmt.Errorf("admin: count users: %w", err)
	}
	total, err := s.users.SumBalances(ctx)
	if err != nil {
		return domain.AdminStats{}, fmt.Errorf("admin: sum balances: %w", err)
	}
	pending, err := s.txns.CountPending(ctx)
	if err != nil {
		return domain.AdminStats{}, fmt.Errorf("admin: count pending: %w", err)
	}
	recent, err := s.txns.ListRecent(ctx, s.recentLimit)
	if err != nil {
		return domain.AdminStats{}, fmt.Errorf("admin: recent transactions: %w", err)
	}
	if users == nil {
		users = []domain.User{}
	}
	if recent == nil {
		recent = []domain.Transaction{}
	}
	return domain.AdminStats{
		TotalUsers:           int(count),
		TotalPlatformBalance: domain.RoundMoney(total),
		PendingWithdrawals:   int(pending),
		Users:                users,
		RecentTransactions:   recent,
	}, nil
}

// ApproveWithdrawal marks a PENDING withdrawal COMPLETED. The balance was
// already debited when it was requested.
func (s *AdminService) ApproveWithdrawal(ctx context.Context, txnID string) (AdminResult, error) {
	txn, err := s.review(ctx, txnID, domain.TransactionCompleted)
	if err != nil {
		return AdminResult{}, fmt.Errorf("admin: approve withdrawal: %w", err)
	}
	s.metrics.IncWalletOp("approve")
	return AdminResult{Message: msgApproved, Transaction: txn}, nil
}

// RejectWithdrawal marks a PENDING withdrawal REJECTED and returns the amount
// to the user's balance.
func (s *AdminService) RejectWithdrawal(ctx context.Context, txnID string) (AdminResult, error) {
	txn, err := s.review(ctx, txnID, domain.TransactionRejected)
	if err != nil {
		return AdminResult{}, fmt.Errorf("admin: reject withdrawal: %w", err)
	}
	s.metrics.IncWalletOp("reject")
	return AdminResult{Message: msgRejected, Transaction: txn}, nil
}

func (s *AdminService) review(ctx context.Context, txnID string, to domain.TransactionStatus) (domain.Transaction, error) {
	var txn domain.Transaction
	err := s.ledger.InTx(ctx, func(tx domain.LedgerTx) error {
		t, err := tx.LockTransaction(ctx, txnID)
		if err != nil {
			return err
		}
		if t.Type != domain.TransactionWithdraw || t.Status != domain.TransactionPending {
			return domain.ErrAlreadyProcessed
		}
		if to == domain.TransactionRejected {
			u, err := tx.LockUser(ctx, t.UserID)
			if err != nil {
				return err
			}
			if err := tx.SetBalance(ctx, u.ID, domain.RoundMoney(u.Balance.Add(t.Amount))); err != nil {
				return err
			}
		}
		if err := tx.UpdateTransactionStatus(ctx, t.ID, to); err != nil {
			return err
		}
		t.Status = to
		txn = t
		return nil
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	s.notify.publish(ctx, domain.ChannelLedger, domain.EventWithdrawalDone, txn)
	s.notify.record(ctx, "admin.withdrawal_review", map[string]any{
		"transaction_id": txn.ID,
		"user_id":        txn.UserID,
		"amount":         txn.Amount.String(),
		"status":         string(to),
	})
	s.logger.InfoContext(ctx, "withdrawal reviewed",
		slog.String("transaction_id", txn.ID),
		slog.String("status", string(to)),
	)
	return txn, nil
}

// maxAuditLimit bounds a single audit query.
const maxAuditLimit = 500

// AuditLog returns audit entries matching filter, newest first. Without an
// audit store it returns an empty list.
func (s *AdminService) AuditLog(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	if s.notify.audit == nil {
		return []domain.AuditEntry{}, nil
	}
	if filter.Limit <= 0 {
		filter.Limit = s.recentLimit
	}
	filter.Limit = min(filter.Limit, maxAuditLimit)

	entries, err := s.notify.audit.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("admin: audit log: %w", err)
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	return entries, nil
}
