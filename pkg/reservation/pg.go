package reservation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the reservation store
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

func (s *pgStore) GetReservation(ctx context.Context, id string) (*Reservation, error) {
	dao := new(ReservationDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return toReservation(dao), nil
}

func (s *pgStore) CreateReservation(ctx context.Context, res *Reservation) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	now := time.Now()
	res.CreatedAt = now
	res.UpdatedAt = now

	_, err := s.db.NewInsert().
		Model(toReservationDao(res)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	return nil
}

func (s *pgStore) UpdateReservation(ctx context.Context, res *Reservation) error {
	dao := toReservationDao(res)
	dao.UpdatedAt = time.Now()

	result, err := s.db.NewUpdate().
		Model(dao).
		Set("customer_id = ?", nullable(dao.CustomerID)).
		Set("status = ?", dao.Status).
		Set("party_size = ?", dao.PartySize).
		Set("starts_at = ?", dao.StartsAt).
		Set("ends_at = ?", dao.EndsAt).
		Set("service_id = ?", nullable(dao.ServiceID)).
		Set("dining_room_id = ?", nullable(dao.DiningRoomID)).
		Set("offer_id = ?", nullable(dao.OfferID)).
		Set("table_ids = ?", dao.TableIDs).
		Set("notes = ?", dao.Notes).
		Set("allergies = ?", dao.Allergies).
		Set("deposit_amount = ?", dao.DepositAmount).
		Set("cancel_reason = ?", dao.CancelReason).
		Set("cancelled_by = ?", dao.CancelledBy).
		Set("version = version + 1").
		Set("updated_at = ?", dao.UpdatedAt).
		Where("id = ?", dao.ID).
		Where("version = ?", res.Version).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update reservation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}

	res.Version++
	res.UpdatedAt = dao.UpdatedAt
	return nil
}

func (s *pgStore) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	dao := new(CustomerDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return toCustomer(dao), nil
}

func (s *pgStore) UpsertCustomerByPhone(ctx context.Context, cust *Customer) (*Customer, error) {
	existing := new(CustomerDao)
	err := s.db.NewSelect().
		Model(existing).
		Where("restaurant_id = ?", cust.RestaurantID).
		Where("phone = ?", cust.Phone).
		Scan(ctx)
	if err == nil {
		// Refresh name/email when the platform supplied richer data.
		changed := false
		if cust.Name != "" && cust.Name != existing.Name {
			existing.Name = cust.Name
			changed = true
		}
		if cust.Email != "" && cust.Email != existing.Email {
			existing.Email = cust.Email
			changed = true
		}
		if changed {
			existing.UpdatedAt = time.Now()
			if _, err := s.db.NewUpdate().
				Model(existing).
				Column("name", "email", "updated_at").
				WherePK().
				Exec(ctx); err != nil {
				return nil, fmt.Errorf("failed to update customer: %w", err)
			}
		}
		return toCustomer(existing), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to find customer: %w", err)
	}

	dao := toCustomerDao(cust)
	if dao.ID == "" {
		dao.ID = uuid.NewString()
	}
	now := time.Now()
	dao.CreatedAt = now
	dao.UpdatedAt = now

	if _, err := s.db.NewInsert().Model(dao).Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return toCustomer(dao), nil
}

// nullable converts empty string foreign keys to NULL for uuid columns.
func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
