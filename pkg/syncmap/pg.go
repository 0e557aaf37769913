package syncmap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/tablepilot/platform-sync/pkg/entity"
)

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the mapping store
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

func (s *pgStore) FindMapping(ctx context.Context, restaurantID, platform string, entityType entity.Type, localID string) (*Mapping, error) {
	dao := new(MappingDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("restaurant_id = ?", restaurantID).
		Where("platform = ?", platform).
		Where("entity_type = ?", string(entityType)).
		Where("local_id = ?", localID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMappingNotFound
		}
		return nil, fmt.Errorf("failed to find mapping: %w", err)
	}
	return toMapping(dao), nil
}

func (s *pgStore) FindByExternalID(ctx context.Context, restaurantID, platform string, entityType entity.Type, externalID string) (*Mapping, error) {
	dao := new(MappingDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("restaurant_id = ?", restaurantID).
		Where("platform = ?", platform).
		Where("entity_type = ?", string(entityType)).
		Where("external_id = ?", externalID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMappingNotFound
		}
		return nil, fmt.Errorf("failed to find mapping by external id: %w", err)
	}
	return toMapping(dao), nil
}

func (s *pgStore) FindMappingsForEntity(ctx context.Context, restaurantID string, entityType entity.Type, localID string) ([]*Mapping, error) {
	var daos []*MappingDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("restaurant_id = ?", restaurantID).
		Where("entity_type = ?", string(entityType)).
		Where("local_id = ?", localID).
		Order("platform ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings for entity: %w", err)
	}

	mappings := make([]*Mapping, len(daos))
	for i, dao := range daos {
		mappings[i] = toMapping(dao)
	}
	return mappings, nil
}

func (s *pgStore) UpsertMapping(ctx context.Context, m *Mapping) error {
	// An external id may belong to at most one local entity per
	// (restaurant, platform, entity type).
	claimed, err := s.FindByExternalID(ctx, m.RestaurantID, m.Platform, m.EntityType, m.ExternalID)
	if err != nil && !errors.Is(err, ErrMappingNotFound) {
		return err
	}
	if claimed != nil && claimed.LocalID != m.LocalID {
		return ErrExternalIDClaimed
	}

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.SyncStatus == "" {
		m.SyncStatus = StatusSynced
	}
	now := time.Now()
	m.SyncedAt = &now

	dao := toMappingDao(m)
	if dao.CreatedAt.IsZero() {
		dao.CreatedAt = now
	}
	dao.UpdatedAt = now

	_, err = s.db.NewInsert().
		Model(dao).
		On("CONFLICT (restaurant_id, platform, entity_type, local_id) DO UPDATE").
		Set("external_id = EXCLUDED.external_id").
		Set("external_data = EXCLUDED.external_data").
		Set("sync_status = EXCLUDED.sync_status").
		Set("synced_at = EXCLUDED.synced_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert mapping: %w", err)
	}

	m.UpdatedAt = dao.UpdatedAt
	return nil
}

func (s *pgStore) MarkStatus(ctx context.Context, id string, status SyncStatus) error {
	result, err := s.db.NewUpdate().
		Model((*MappingDao)(nil)).
		Set("sync_status = ?", string(status)).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark mapping status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read mark status result: %w", err)
	}
	if affected == 0 {
		return ErrMappingNotFound
	}
	return nil
}

func (s *pgStore) DeleteForPlatform(ctx context.Context, restaurantID, platform string) (int64, error) {
	result, err := s.db.NewDelete().
		Model((*MappingDao)(nil)).
		Where("restaurant_id = ?", restaurantID).
		Where("platform = ?", platform).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete mappings for platform: %w", err)
	}
	return result.RowsAffected()
}
