// Package reservation holds the local reservation and customer entities the
// sync engine reads and writes. Schema ownership and the admin CRUD surface
// live elsewhere; this package only models what sync needs.
package reservation

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the local reservation lifecycle status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusSeated    Status = "seated"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
	StatusCancelled Status = "cancelled"
)

// TerminalLocal reports whether the status reflects a physically observed
// state. Once a reservation reaches one of these, the local system is
// authoritative regardless of configured mastering: only the restaurant can
// see whether a guest was actually seated.
func (s Status) TerminalLocal() bool {
	switch s {
	case StatusSeated, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// Valid reports whether s is a known local status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusSeated, StatusCompleted, StatusNoShow, StatusCancelled:
		return true
	}
	return false
}

// Reservation is the local reservation entity.
type Reservation struct {
	ID           string
	RestaurantID string
	CustomerID   string

	Status    Status
	PartySize int
	StartsAt  time.Time
	EndsAt    time.Time

	ServiceID    string
	DiningRoomID string
	OfferID      string
	TableIDs     []string

	Notes     string
	Allergies []string

	DepositAmount decimal.Decimal

	// OriginPlatform is the platform key of the external system that
	// created this reservation, empty for locally created ones.
	OriginPlatform string

	CancelReason string
	CancelledBy  string

	// Version is the optimistic-concurrency counter bumped on every
	// applied remote mutation.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Customer is the local guest record, correlated to platform guests by
// phone number.
type Customer struct {
	ID           string
	RestaurantID string
	Name         string
	Phone        string
	Email        string
	Allergies    []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
