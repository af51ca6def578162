package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/alanyoungcy/skintrend/internal/domain"
)

// publishEvent marshals an event and publishes it on channel. A nil bus is a
// no-op; errors are logged and swallowed.
func publishEvent(ctx context.Context, bus domain.SignalBus, channel, eventType string, payload any, logger *slog.Logger) {
	if bus == nil {
		return
	}
	data, err := json.Marshal(domain.Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		logger.Warn("pipeline: marshal event", slog.String("type", eventType), slog.String("error", err.Error()))
		return
	}
	if err := bus.Publish(ctx, channel, data); err != nil {
		logger.Warn("pipeline: publish event", slog.String("type", eventType), slog.String("error", err.Error()))
	}
}
