package platform

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

// NewStore creates a new postgres implementation of the platform config store
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

func (s *pgStore) GetActive(ctx context.Context, restaurantID, platform string) (*Config, error) {
	dao := new(ConfigDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("restaurant_id = ?", restaurantID).
		Where("platform = ?", platform).
		Where("is_active = TRUE").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to get platform config: %w", err)
	}
	return toConfig(dao), nil
}

func (s *pgStore) ListActive(ctx context.Context, restaurantID string) ([]*Config, error) {
	var daos []*ConfigDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("restaurant_id = ?", restaurantID).
		Where("is_active = TRUE").
		Order("platform ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list platform configs: %w", err)
	}

	configs := make([]*Config, len(daos))
	for i, dao := range daos {
		configs[i] = toConfig(dao)
	}
	return configs, nil
}

func (s *pgStore) Save(ctx context.Context, cfg *Config) error {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid platform config: %w", err)
	}

	dao := toConfigDao(cfg)
	now := time.Now()
	if dao.CreatedAt.IsZero() {
		dao.CreatedAt = now
	}
	dao.UpdatedAt = now

	_, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (restaurant_id, platform) DO UPDATE").
		Set("credentials = EXCLUDED.credentials").
		Set("master_for = EXCLUDED.master_for").
		Set("sync_entities = EXCLUDED.sync_entities").
		Set("webhooks_enabled = EXCLUDED.webhooks_enabled").
		Set("webhook_secret = EXCLUDED.webhook_secret").
		Set("poll_interval_sec = EXCLUDED.poll_interval_sec").
		Set("locale = EXCLUDED.locale").
		Set("is_active = EXCLUDED.is_active").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save platform config: %w", err)
	}

	cfg.UpdatedAt = dao.UpdatedAt
	return nil
}

func (s *pgStore) Deactivate(ctx context.Context, restaurantID, platform string) error {
	result, err := s.db.NewUpdate().
		Model((*ConfigDao)(nil)).
		Set("is_active = FALSE").
		Set("updated_at = ?", time.Now()).
		Where("restaurant_id = ?", restaurantID).
		Where("platform = ?", platform).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to deactivate platform config: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read deactivate result: %w", err)
	}
	if affected == 0 {
		return ErrConfigNotFound
	}
	return nil
}

func (s *pgStore) RecordSyncResult(ctx context.Context, restaurantID, platform string, syncErr error) error {
	q := s.db.NewUpdate().
		Model((*ConfigDao)(nil)).
		Set("updated_at = ?", time.Now()).
		Where("restaurant_id = ?", restaurantID).
		Where("platform = ?", platform)

	if syncErr != nil {
		q = q.Set("last_error = ?", syncErr.Error())
	} else {
		q = q.Set("last_sync_at = ?", time.Now()).
			Set("last_error = NULL")
	}

	if _, err := q.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record sync result: %w", err)
	}
	return nil
}
