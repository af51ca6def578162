package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/skintrend/internal/domain"
)

type adminFixture struct {
	ledger *memLedger
	bus    *recordingBus
	audit  *recordingAudit
	wallet *WalletService
	admin  *AdminService
}

func newAdminFixture() *adminFixture {
	f := &adminFixture{ledger: newMemLedger(), bus: newRecordingBus(), audit: &recordingAudit{}}
	f.wallet = NewWalletService(f.ledger, f.ledger, f.ledger, f.bus, f.audit, nil,
		WalletConfig{MinWithdrawal: dec("10")}, discardLogger())
	f.admin = NewAdminService(f.ledger, f.ledger, f.ledger, f.bus, f.audit, nil, 0, discardLogger())
	return f
}

func (f *adminFixture) pendingWithdrawal(t *testing.T, userID, amount string) domain.Transaction {
	t.Helper()
	res, err := f.wallet.Withdraw(context.Background(), userID, dec(amount))
	require.NoError(t, err)
	return res.Transaction
}

func TestApproveWithdrawal(t *testing.T) {
	f := newAdminFixture()
	ctx := context.Background()
	f.ledger.addUser("u1", "100", true)
	txn := f.pendingWithdrawal(t, "u1", "40")

	res, err := f.admin.ApproveWithdrawal(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, "Withdrawal approved successfully!", res.Message)
	assert.Equal(t, domain.TransactionCompleted, res.Transaction.Status)
	assert.Equal(t, "60", f.ledger.balance("u1"))

	_, err = f.admin.ApproveWithdrawal(ctx, txn.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
	_, err = f.admin.RejectWithdrawal(ctx, txn.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
	assert.Equal(t, "60", f.ledger.balance("u1"))
}

func TestRejectWithdrawalRefunds(t *testing.T) {
	f := newAdminFixture()
	ctx := context.Background()
	f.ledger.addUser("u1", "100", true)
	txn := f.pendingWithdrawal(t, "u1", "40")
	assert.Equal(t, "60", f.ledger.balance("u1"))

	res, err := f.admin.RejectWithdrawal(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, "Withdrawal rejected. Funds returned to user balance.", res.Message)
	assert.Equal(t, domain.TransactionRejected, res.Transaction.Status)
	assert.Equal(t, "100", f.ledger.balance("u1"))

	_, err = f.admin.RejectWithdrawal(ctx, txn.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
	assert.Equal(t, "100", f.ledger.balance("u1"))
	assert.Contains(t, f.audit.events, "admin.withdrawal_review")
}

func TestReviewRejectsDepositsAndUnknownIDs(t *testing.T) {
	f := newAdminFixture()
	ctx := context.Background()
	f.ledger.addUser("u1", "100", true)
	dep, err := f.wallet.Deposit(ctx, "u1", dec("5"))
	require.NoError(t, err)

	_, err = f.admin.ApproveWithdrawal(ctx, dep.Transaction.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
	_, err = f.admin.RejectWithdrawal(ctx, dep.Transaction.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
	assert.Equal(t, "105", f.ledger.balance("u1"))

	_, err = f.admin.ApproveWithdrawal(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestStats(t *testing.T) {
	f := newAdminFixture()
	ctx := context.Background()

	empty, err := f.admin.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalUsers)
	assert.True(t, empty.TotalPlatformBalance.IsZero())
	assert.NotNil(t, empty.Users)
	assert.NotNil(t, empty.RecentTransactions)

	f.ledger.addUser("a", "100", true)
	f.ledger.addUser("b", "250.50", true)
	f.pendingWithdrawal(t, "a", "10")
	done := f.pendingWithdrawal(t, "b", "20")
	_, err = f.admin.ApproveWithdrawal(ctx, done.ID)
	require.NoError(t, err)

	stats, err := f.admin.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalUsers)
	assert.Equal(t, "320.5", stats.TotalPlatformBalance.String())
	assert.Equal(t, 1, stats.PendingWithdrawals)
	assert.Len(t, stats.Users, 2)
	require.Len(t, stats.RecentTransactions, 2)
	assert.Equal(t, done.ID, stats.RecentTransactions[0].ID)
	assert.Equal(t, "user-b", stats.RecentTransactions[0].Username)
}

func TestAuditLogFiltersAndCaps(t *testing.T) {
	f := newAdminFixture()
	ctx := context.Background()
	f.ledger.addUser("u1", "100", true)
	f.ledger.addUser("u2", "100", true)
	f.pendingWithdrawal(t, "u1", "20")
	f.pendingWithdrawal(t, "u2", "30")

	entries, err := f.admin.AuditLog(ctx, domain.AuditFilter{UserID: "u2"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "wallet.withdraw", entries[0].Event)
	assert.Equal(t, 50, f.audit.filter.Limit, "default limit")

	_, err = f.admin.AuditLog(ctx, domain.AuditFilter{Limit: 10_000})
	require.NoError(t, err)
	assert.Equal(t, maxAuditLimit, f.audit.filter.Limit)

	none, err := f.admin.AuditLog(ctx, domain.AuditFilter{EventPrefix: "position."})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestAuditLogWithoutStore(t *testing.T) {
	ledger := newMemLedger()
	admin := NewAdminService(ledger, ledger, ledger, nil, nil, nil, 0, discardLogger())
	entries, err := admin.AuditLog(context.Background(), domain.AuditFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}
