package reservation

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a reservation lookup finds no matching record.
	ErrNotFound = errors.New("reservation not found")
	// ErrVersionConflict is returned when an optimistic-concurrency update
	// observes a stale version.
	ErrVersionConflict = errors.New("reservation version conflict")
)

// Store defines reservation and customer persistence for the sync engine.
type Store interface {
	GetReservation(ctx context.Context, id string) (*Reservation, error)
	CreateReservation(ctx context.Context, res *Reservation) error
	// UpdateReservation writes the given reservation guarded by its
	// current Version and bumps Version by one. Returns
	// ErrVersionConflict when another writer got there first.
	UpdateReservation(ctx context.Context, res *Reservation) error

	GetCustomer(ctx context.Context, id string) (*Customer, error)
	// UpsertCustomerByPhone finds a customer by (restaurantID, phone) or
	// creates one, and returns the stored record.
	UpsertCustomerByPhone(ctx context.Context, cust *Customer) (*Customer, error)
}
