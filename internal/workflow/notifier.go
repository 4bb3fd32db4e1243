package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/stayflow/backend/internal/storage/models"
)

// Notifier dispatches outbound notifications about confirmed bookings.
// Dispatch is fire-and-forget: a failure never rolls back calendar state,
// it only flags the workflow result as a partial failure.
type Notifier interface {
	BookingConfirmed(ctx context.Context, b *models.Booking) error
}

// WebhookNotifier posts booking confirmations to an external HTTP endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
	log    *zap.Logger
}

// NewWebhookNotifier creates a webhook notifier for the given URL.
func NewWebhookNotifier(url string, log *zap.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// BookingConfirmed posts the booking as JSON to the configured endpoint.
func (n *WebhookNotifier) BookingConfirmed(ctx context.Context, b *models.Booking) error {
	payload := struct {
		Event   string          `json:"event"`
		Booking *models.Booking `json:"booking"`
	}{
		Event:   "booking.confirmed",
		Booking: b,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification endpoint returned status %d", resp.StatusCode)
	}

	n.log.Debug("notification dispatched",
		zap.String("booking_id", b.ID), zap.String("url", n.url))
	return nil
}

// NoopNotifier is used when no webhook is configured.
type NoopNotifier struct{}

// BookingConfirmed does nothing.
func (NoopNotifier) BookingConfirmed(context.Context, *models.Booking) error {
	return nil
}
