package syncmap

import (
	"context"
	"errors"

	"github.com/tablepilot/platform-sync/pkg/entity"
)

// ErrMappingNotFound is returned when no mapping matches the lookup.
var ErrMappingNotFound = errors.New("mapping not found")

// ErrExternalIDClaimed is returned when an upsert would bind an external
// identifier that already belongs to a different local entity.
var ErrExternalIDClaimed = errors.New("external id already mapped to another local entity")

// Store defines external mapping persistence.
type Store interface {
	// FindMapping resolves local identity to a platform mapping, or
	// ErrMappingNotFound.
	FindMapping(ctx context.Context, restaurantID, platform string, entityType entity.Type, localID string) (*Mapping, error)
	// FindByExternalID resolves a platform identifier to its mapping, or
	// ErrMappingNotFound.
	FindByExternalID(ctx context.Context, restaurantID, platform string, entityType entity.Type, externalID string) (*Mapping, error)
	// FindMappingsForEntity returns all platform mappings of one local
	// entity, across platforms.
	FindMappingsForEntity(ctx context.Context, restaurantID string, entityType entity.Type, localID string) ([]*Mapping, error)
	// UpsertMapping creates or refreshes the mapping for
	// (restaurant, platform, entity type, local id), stamping SyncedAt.
	// Returns ErrExternalIDClaimed when the external id belongs to a
	// different local entity.
	UpsertMapping(ctx context.Context, m *Mapping) error
	// MarkStatus updates only the sync status of an existing mapping.
	MarkStatus(ctx context.Context, id string, status SyncStatus) error
	// DeleteForPlatform removes all of a restaurant's mappings for one
	// platform, for use when an integration is disconnected for good.
	DeleteForPlatform(ctx context.Context, restaurantID, platform string) (int64, error)
}
