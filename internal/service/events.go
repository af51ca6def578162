package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/alanyoungcy/skintrend/internal/domain"
)

// notifier fans ledger events out to the signal bus and the audit log. Both
// sinks are best effort: the ledger has already committed when they run.
type notifier struct {
	bus    domain.SignalBus
	audit  domain.AuditStore
	logger *slog.Logger
}

func (n notifier) publish(ctx context.Context, channel, eventType string, payload any) []byte {
	data, err := json.Marshal(domain.Event{Type: eventType, Payload: payload, Timestamp: time.Now().UTC()})
	if err != nil {
		n.logger.WarnContext(ctx, "service: marshal event failed",
			slog.String("type", eventType),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if n.bus == nil {
		return data
	}
	if err := n.bus.Publish(ctx, channel, data); err != nil {
		n.logger.WarnContext(ctx, "service: publish event failed",
			slog.String("type", eventType),
			slog.String("error", err.Error()),
		)
	}
	return data
}

func (n notifier) appendStream(ctx context.Context, stream string, data []byte) {
	if n.bus == nil || data == nil {
		return
	}
	if err := n.bus.StreamAppend(ctx, stream, data); err != nil {
		n.logger.WarnContext(ctx, "service: stream append failed",
			slog.String("stream", stream),
			slog.String("error", err.Error()),
		)
	}
}

func (n notifier) record(ctx context.Context, event string, detail map[string]any) {
	if n.audit == nil {
		return
	}
	if err := n.audit.Log(ctx, event, detail); err != nil {
		n.logger.WarnContext(ctx, "service: audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
