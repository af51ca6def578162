// Package notify alerts venue operators about ledger events that need a human,
// such as withdrawals waiting for review. Alerts fan out to every configured
// Sender and are filtered by event type.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Sender delivers one alert to an operator channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier dispatches alerts to its senders. An empty event list allows every
// event type.
type Notifier struct {
	senders []Sender
	allow   map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier for senders, forwarding only the listed
// event types.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allow := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allow[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		allow:   allow,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// Allows reports whether event passes the filter.
func (n *Notifier) Allows(event string) bool {
	return len(n.allow) == 0 || n.allow[event]
}

// Notify sends an alert for event to every sender. A failing sender does not
// stop delivery to the rest; all failures are joined into the returned error.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if !n.Enabled() {
		return nil
	}
	if !n.Allows(event) {
		n.logger.DebugContext(ctx, "notify: event filtered", slog.String("event", event))
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.WarnContext(ctx, "notify: sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
