package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fraudguard/fraudguard/internal/alerts"
	"github.com/fraudguard/fraudguard/internal/metrics"
	"github.com/fraudguard/fraudguard/internal/retry"
)

const (
	emailAttempts    = 3
	emailBaseDelay   = 500 * time.Millisecond
	dispatchDeadline = 30 * time.Second
)

// Dispatcher fans a new alert out to the user's WebSocket connections and,
// when a recipient address is known, to email. Dispatch never blocks the
// caller and never reports failure upstream.
type Dispatcher struct {
	hub    *Hub
	mailer Mailer
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher over the given hub and mailer.
func NewDispatcher(hub *Hub, mailer Mailer, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{hub: hub, mailer: mailer, logger: logger}
}

// Dispatch delivers an alert in the background. recipientEmail may be
// empty, in which case only the WebSocket channel is used.
func (d *Dispatcher) Dispatch(alert *alerts.Alert, recipientEmail string) {
	go d.deliver(alert, recipientEmail)
}

// DispatchUpdate pushes a status change to the user's connections.
func (d *Dispatcher) DispatchUpdate(alert *alerts.Alert) {
	go func() {
		event := &Event{Type: EventAlertUpdated, Timestamp: time.Now().UTC(), Data: alert}
		d.push(alert, event)
	}()
}

func (d *Dispatcher) deliver(alert *alerts.Alert, recipientEmail string) {
	event := &Event{Type: EventAlertNew, Timestamp: time.Now().UTC(), Data: alert}
	d.push(alert, event)

	if recipientEmail == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchDeadline)
	defer cancel()

	subject := fmt.Sprintf("Fraud Alert: %s Risk Detected", alert.RiskLevel)
	body := alertEmailBody(alert)

	err := retry.Do(ctx, emailAttempts, emailBaseDelay, func() error {
		return d.mailer.Send(ctx, recipientEmail, subject, body)
	})
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("email", "error").Inc()
		d.logger.Warn("alert email failed",
			"alert_id", alert.ID, "to", recipientEmail, "error", err)
		return
	}
	metrics.NotificationsTotal.WithLabelValues("email", "ok").Inc()
}

func (d *Dispatcher) push(alert *alerts.Alert, event *Event) {
	if d.hub.SendToUser(alert.UserID, event) {
		metrics.NotificationsTotal.WithLabelValues("websocket", "ok").Inc()
	} else {
		metrics.NotificationsTotal.WithLabelValues("websocket", "error").Inc()
	}
}

func alertEmailBody(alert *alerts.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A suspicious transaction was flagged on your account.\n\n")
	fmt.Fprintf(&b, "Risk level:    %s\n", alert.RiskLevel)
	fmt.Fprintf(&b, "Fraud score:   %.2f\n", alert.TotalScore)
	fmt.Fprintf(&b, "Transaction:   %s\n", alert.TransactionID)
	fmt.Fprintf(&b, "Amount:        $%.2f\n", alert.Amount)
	fmt.Fprintf(&b, "Merchant:      %s\n", alert.Merchant)
	fmt.Fprintf(&b, "Location:      %s\n", alert.Location)
	if len(alert.ViolatedRules) > 0 {
		fmt.Fprintf(&b, "Triggered:     %s\n", strings.Join(alert.ViolatedRules, ", "))
	}
	fmt.Fprintf(&b, "\nAlert ID: %s\nPlease review this alert in your dashboard.\n", alert.ID)
	return b.String()
}
