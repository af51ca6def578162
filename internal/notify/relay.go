package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/skintrend/internal/domain"
)

// Relay turns ledger events on the signal bus into operator alerts.
type Relay struct {
	bus      domain.SignalBus
	notifier *Notifier
	logger   *slog.Logger
}

// NewRelay creates a Relay that listens on the ledger channel of bus.
func NewRelay(bus domain.SignalBus, notifier *Notifier, logger *slog.Logger) *Relay {
	return &Relay{
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "alert_relay")),
	}
}

// Run forwards alerts until ctx is cancelled. It returns nil on cancellation.
func (r *Relay) Run(ctx context.Context) error {
	events, err := r.bus.Subscribe(ctx, domain.ChannelLedger)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("notify: subscribe: %w", err)
	}
	r.logger.InfoContext(ctx, "alert relay started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-events:
			if !ok {
				return nil
			}
			r.handle(ctx, data)
		}
	}
}

func (r *Relay) handle(ctx context.Context, data []byte) {
	var env struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		r.logger.WarnContext(ctx, "notify: malformed event", slog.String("error", err.Error()))
		return
	}
	if !r.notifier.Allows(env.Type) {
		return
	}

	var txn domain.Transaction
	if err := json.Unmarshal(env.Payload, &txn); err != nil {
		r.logger.WarnContext(ctx, "notify: malformed transaction",
			slog.String("type", env.Type),
			slog.String("error", err.Error()),
		)
		return
	}

	title, message := formatAlert(env.Type, txn)
	// Failures are already logged per sender.
	_ = r.notifier.Notify(ctx, env.Type, title, message)
}

func formatAlert(event string, txn domain.Transaction) (string, string) {
	who := txn.UserID
	if txn.Username != "" {
		who = txn.Username + " (" + txn.UserID + ")"
	}
	amount := txn.Amount.StringFixed(2)

	switch event {
	case domain.EventWithdrawal:
		return "Withdrawal awaiting review",
			fmt.Sprintf("%s requested $%s\ntransaction %s", who, amount, txn.ID)
	case domain.EventWithdrawalDone:
		return "Withdrawal " + strings.ToLower(string(txn.Status)),
			fmt.Sprintf("$%s for %s\ntransaction %s", amount, who, txn.ID)
	case domain.EventDeposit:
		return "Deposit", fmt.Sprintf("%s deposited $%s", who, amount)
	default:
		return event, fmt.Sprintf("%s $%s", who, amount)
	}
}
