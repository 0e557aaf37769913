// Package connector defines the contract every platform adapter
// implements, plus the registry that builds and caches adapters per
// restaurant.
package connector

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tablepilot/platform-sync/pkg/entity"
)

// EventType is the normalized webhook event vocabulary. Adapters map
// each platform's own event names onto these.
type EventType string

const (
	EventReservationCreated       EventType = "reservation.created"
	EventReservationUpdated       EventType = "reservation.updated"
	EventReservationCancelled     EventType = "reservation.cancelled"
	EventReservationStatusChanged EventType = "reservation.status_changed"
)

// PlatformStatus is the normalized reservation status vocabulary shared
// by all adapters.
type PlatformStatus string

const (
	PlatformStatusPending   PlatformStatus = "pending"
	PlatformStatusConfirmed PlatformStatus = "confirmed"
	PlatformStatusSeated    PlatformStatus = "seated"
	PlatformStatusCompleted PlatformStatus = "completed"
	PlatformStatusCancelled PlatformStatus = "cancelled"
)

// GuestData carries guest contact details from a platform payload.
type GuestData struct {
	Name      string
	Phone     string
	Email     string
	Allergies []string
}

// ReservationData is the platform-neutral reservation payload exchanged
// with adapters in both directions.
type ReservationData struct {
	ExternalID string
	Status     PlatformStatus
	PartySize  int
	StartsAt   time.Time
	EndsAt     time.Time
	Guest      GuestData
	// ExternalServiceID and friends are the platform's identifiers for
	// nested references; the engine resolves them through the mapping
	// store.
	ExternalServiceID    string
	ExternalDiningRoomID string
	ExternalOfferID      string
	ExternalTableIDs     []string
	Notes                string
	DepositAmount        decimal.Decimal
	CancelReason         string
	// LocalReferenceID is our reservation id as carried by the platform,
	// set on records we created ourselves. It is how inbound processing
	// recognizes echoes of our own pushes.
	LocalReferenceID string
}

// WebhookEvent is a verified, normalized platform notification.
type WebhookEvent struct {
	Type EventType
	// EventID is the platform's delivery identifier, used for
	// deduplication. May be empty on platforms without one.
	EventID    string
	ExternalID string
	OccurredAt time.Time

	Reservation *ReservationData

	// Raw is the verbatim request body, persisted in the ledger so a
	// failed event can be replayed.
	Raw []byte
}

// AvailabilityUnknown marks a slot the platform reports as open without
// a seat count.
const AvailabilityUnknown = -1

// AvailabilitySlot is one bookable time on a platform's calendar.
type AvailabilitySlot struct {
	Time time.Time
	// RemainingCovers is 0 for a full slot and AvailabilityUnknown when
	// the platform does not expose a count.
	RemainingCovers int
}

// Connector is implemented once per external platform.
type Connector interface {
	// Platform returns the adapter key, e.g. "resos".
	Platform() string

	// Authenticate verifies the stored credentials against the platform.
	Authenticate(ctx context.Context) error

	// CreateReservation pushes a new reservation and returns the
	// platform's identifier for it.
	CreateReservation(ctx context.Context, data *ReservationData) (string, error)
	// UpdateReservation applies changed fields to an existing platform
	// record. Adapters read the current remote record first so fields the
	// platform owns are not clobbered.
	UpdateReservation(ctx context.Context, externalID string, data *ReservationData) error
	// CancelReservation cancels the platform record.
	CancelReservation(ctx context.Context, externalID, reason string) error

	// GetAvailability returns the bookable slots for a date and party
	// size, each with its remaining covers.
	GetAvailability(ctx context.Context, date time.Time, partySize int) ([]AvailabilitySlot, error)

	// SyncEntity pushes one non-reservation entity (menu item, offer,
	// table, dining room, availability block) to the platform. Returns
	// the platform identifier. Adapters return ErrUnsupportedEntityType
	// for entity kinds the platform has no concept of.
	SyncEntity(ctx context.Context, entityType entity.Type, payload map[string]any) (string, error)

	// ParseWebhook verifies the request signature and normalizes the
	// body into a WebhookEvent. Returns ErrInvalidSignature when
	// verification fails.
	ParseWebhook(r *http.Request, body []byte) (*WebhookEvent, error)
	// ParseStoredEvent normalizes a ledger payload captured by a prior
	// ParseWebhook call. Signature verification is skipped; only payloads
	// that already passed it are ever stored.
	ParseStoredEvent(payload []byte) (*WebhookEvent, error)
}
