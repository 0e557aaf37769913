// Package syncmap correlates local entities with their identifiers on
// external platforms.
package syncmap

import (
	"time"

	"github.com/tablepilot/platform-sync/pkg/entity"
)

// SyncStatus tracks whether a mapping's two sides agree.
type SyncStatus string

const (
	// StatusSynced means both sides held the same state at SyncedAt.
	StatusSynced SyncStatus = "synced"
	// StatusPending means a local change has not yet been pushed out.
	StatusPending SyncStatus = "pending"
	// StatusConflict means both sides changed and resolution overrode one.
	StatusConflict SyncStatus = "conflict"
)

// Mapping binds one local entity to its identity on one platform.
// A local entity may carry one mapping per platform; an external
// identifier may never be claimed by two different local entities.
type Mapping struct {
	ID           string
	RestaurantID string
	Platform     string
	EntityType   entity.Type
	LocalID      string
	ExternalID   string

	// ExternalData is the raw platform payload snapshot from the last
	// sync, kept for debugging and conflict diagnosis.
	ExternalData map[string]any

	SyncStatus SyncStatus
	SyncedAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
