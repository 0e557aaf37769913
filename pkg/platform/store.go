package platform

import (
	"context"
	"errors"
)

// ErrConfigNotFound is returned when no active config exists for a
// (restaurant, platform) pair.
var ErrConfigNotFound = errors.New("platform config not found")

// Store defines platform config persistence.
type Store interface {
	// GetActive returns the active config for (restaurantID, platform),
	// or ErrConfigNotFound.
	GetActive(ctx context.Context, restaurantID, platform string) (*Config, error)
	// ListActive returns all active configs for a restaurant.
	ListActive(ctx context.Context, restaurantID string) ([]*Config, error)
	Save(ctx context.Context, cfg *Config) error
	// Deactivate pauses sync without losing mapping history.
	Deactivate(ctx context.Context, restaurantID, platform string) error
	// RecordSyncResult updates last_sync_at and last_error after an
	// outbound attempt.
	RecordSyncResult(ctx context.Context, restaurantID, platform string, syncErr error) error
}
