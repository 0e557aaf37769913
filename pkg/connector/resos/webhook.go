package resos

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tablepilot/platform-sync/pkg/connector"
)

// signatureHeader carries the hex-encoded HMAC-SHA256 of the raw body,
// keyed with the webhook secret from the platform config.
const signatureHeader = "X-Resos-Signature"

func verifySignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// webhookPayload is the resOS webhook envelope.
type webhookPayload struct {
	ID        string  `json:"id"`
	Event     string  `json:"event"`
	Timestamp string  `json:"timestamp"`
	Booking   booking `json:"booking"`
}

// resOS webhook event names.
const (
	webhookBookingCreated       = "booking.created"
	webhookBookingUpdated       = "booking.updated"
	webhookBookingCancelled     = "booking.cancelled"
	webhookBookingStatusChanged = "booking.status_changed"
)

func normalizeEvent(body []byte) (*connector.WebhookEvent, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", connector.ErrInvalidWebhookPayload, err)
	}
	if payload.Event == "" || payload.Booking.ID == "" {
		return nil, fmt.Errorf("%w: missing event or booking id", connector.ErrInvalidWebhookPayload)
	}

	var eventType connector.EventType
	switch payload.Event {
	case webhookBookingCreated:
		eventType = connector.EventReservationCreated
	case webhookBookingUpdated:
		eventType = connector.EventReservationUpdated
	case webhookBookingCancelled:
		eventType = connector.EventReservationCancelled
	case webhookBookingStatusChanged:
		eventType = connector.EventReservationStatusChanged
	default:
		return nil, fmt.Errorf("%w: unknown event %q", connector.ErrInvalidWebhookPayload, payload.Event)
	}

	occurredAt := time.Now()
	if payload.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, payload.Timestamp); err == nil {
			occurredAt = ts
		}
	}

	data, err := fromBooking(&payload.Booking)
	if err != nil {
		return nil, err
	}

	return &connector.WebhookEvent{
		Type:        eventType,
		EventID:     payload.ID,
		ExternalID:  payload.Booking.ID,
		OccurredAt:  occurredAt,
		Reservation: data,
		Raw:         body,
	}, nil
}
