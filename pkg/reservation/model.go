package reservation

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// ReservationDao is a data access object that maps directly to the
// 'reservations' table in PostgreSQL.
type ReservationDao struct {
	bun.BaseModel `bun:"table:reservations,alias:r"`

	ID           string `bun:"id,pk,type:uuid"`
	RestaurantID string `bun:"restaurant_id,notnull,type:uuid"`
	CustomerID   string `bun:"customer_id,nullzero,type:uuid"`

	Status    string    `bun:"status,notnull,type:varchar(32)"`
	PartySize int       `bun:"party_size,notnull"`
	StartsAt  time.Time `bun:"starts_at,notnull"`
	EndsAt    time.Time `bun:"ends_at,nullzero"`

	ServiceID    string   `bun:"service_id,nullzero,type:uuid"`
	DiningRoomID string   `bun:"dining_room_id,nullzero,type:uuid"`
	OfferID      string   `bun:"offer_id,nullzero,type:uuid"`
	TableIDs     []string `bun:"table_ids,array"`

	Notes     string   `bun:"notes,nullzero,type:text"`
	Allergies []string `bun:"allergies,array"`

	DepositAmount decimal.Decimal `bun:"deposit_amount,nullzero,type:numeric(12,2)"`

	OriginPlatform string `bun:"origin_platform,nullzero,type:varchar(64)"`
	CancelReason   string `bun:"cancel_reason,nullzero,type:text"`
	CancelledBy    string `bun:"cancelled_by,nullzero,type:varchar(64)"`

	Version int64 `bun:"version,notnull,default:0"`

	CreatedAt time.Time `bun:"created_at,nullzero,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,default:current_timestamp"`
}

// CustomerDao is a data access object that maps directly to the
// 'customers' table in PostgreSQL.
type CustomerDao struct {
	bun.BaseModel `bun:"table:customers,alias:c"`

	ID           string    `bun:"id,pk,type:uuid"`
	RestaurantID string    `bun:"restaurant_id,notnull,type:uuid"`
	Name         string    `bun:"name,nullzero,type:varchar(255)"`
	Phone        string    `bun:"phone,notnull,type:varchar(32)"`
	Email        string    `bun:"email,nullzero,type:varchar(255)"`
	Allergies    []string  `bun:"allergies,array"`
	CreatedAt    time.Time `bun:"created_at,nullzero,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,default:current_timestamp"`
}

func toReservationDao(res *Reservation) *ReservationDao {
	return &ReservationDao{
		ID:             res.ID,
		RestaurantID:   res.RestaurantID,
		CustomerID:     res.CustomerID,
		Status:         string(res.Status),
		PartySize:      res.PartySize,
		StartsAt:       res.StartsAt,
		EndsAt:         res.EndsAt,
		ServiceID:      res.ServiceID,
		DiningRoomID:   res.DiningRoomID,
		OfferID:        res.OfferID,
		TableIDs:       res.TableIDs,
		Notes:          res.Notes,
		Allergies:      res.Allergies,
		DepositAmount:  res.DepositAmount,
		OriginPlatform: res.OriginPlatform,
		CancelReason:   res.CancelReason,
		CancelledBy:    res.CancelledBy,
		Version:        res.Version,
		CreatedAt:      res.CreatedAt,
		UpdatedAt:      res.UpdatedAt,
	}
}

func toReservation(dao *ReservationDao) *Reservation {
	return &Reservation{
		ID:             dao.ID,
		RestaurantID:   dao.RestaurantID,
		CustomerID:     dao.CustomerID,
		Status:         Status(dao.Status),
		PartySize:      dao.PartySize,
		StartsAt:       dao.StartsAt,
		EndsAt:         dao.EndsAt,
		ServiceID:      dao.ServiceID,
		DiningRoomID:   dao.DiningRoomID,
		OfferID:        dao.OfferID,
		TableIDs:       dao.TableIDs,
		Notes:          dao.Notes,
		Allergies:      dao.Allergies,
		DepositAmount:  dao.DepositAmount,
		OriginPlatform: dao.OriginPlatform,
		CancelReason:   dao.CancelReason,
		CancelledBy:    dao.CancelledBy,
		Version:        dao.Version,
		CreatedAt:      dao.CreatedAt,
		UpdatedAt:      dao.UpdatedAt,
	}
}

func toCustomerDao(cust *Customer) *CustomerDao {
	return &CustomerDao{
		ID:           cust.ID,
		RestaurantID: cust.RestaurantID,
		Name:         cust.Name,
		Phone:        cust.Phone,
		Email:        cust.Email,
		Allergies:    cust.Allergies,
		CreatedAt:    cust.CreatedAt,
		UpdatedAt:    cust.UpdatedAt,
	}
}

func toCustomer(dao *CustomerDao) *Customer {
	return &Customer{
		ID:           dao.ID,
		RestaurantID: dao.RestaurantID,
		Name:         dao.Name,
		Phone:        dao.Phone,
		Email:        dao.Email,
		Allergies:    dao.Allergies,
		CreatedAt:    dao.CreatedAt,
		UpdatedAt:    dao.UpdatedAt,
	}
}
