// Package entity defines the entity type vocabulary shared by the mapping
// store, the platform configs, and the connectors.
package entity

// Type identifies a syncable entity kind.
type Type string

const (
	Reservation  Type = "reservation"
	Order        Type = "order"
	MenuItem     Type = "menu_item"
	Offer        Type = "offer"
	Table        Type = "table"
	DiningRoom   Type = "dining_room"
	Customer     Type = "customer"
	Availability Type = "availability"
)

// All returns every known entity type.
func All() []Type {
	return []Type{
		Reservation,
		Order,
		MenuItem,
		Offer,
		Table,
		DiningRoom,
		Customer,
		Availability,
	}
}

// Valid reports whether t is a known entity type.
func (t Type) Valid() bool {
	switch t {
	case Reservation, Order, MenuItem, Offer, Table, DiningRoom, Customer, Availability:
		return true
	}
	return false
}

func (t Type) String() string { return string(t) }
