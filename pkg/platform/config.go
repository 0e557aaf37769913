// Package platform stores per-restaurant platform integration settings.
package platform

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tablepilot/platform-sync/pkg/entity"
)

var validate = validator.New()

// Config holds the connection settings for one (restaurant, platform) pair.
type Config struct {
	ID           string `validate:"required"`
	RestaurantID string `validate:"required"`
	// Platform is the adapter key, e.g. "resos".
	Platform string `validate:"required"`

	// Credentials is the opaque credential map supplied by the credential
	// store; this engine never persists secrets outside of it.
	Credentials map[string]string

	// MasterFor lists entity types for which this platform is
	// authoritative in conflicts.
	MasterFor []entity.Type
	// SyncEntities lists entity types enabled for sync with this platform.
	SyncEntities []entity.Type

	WebhooksEnabled bool
	WebhookSecret   string
	// PollInterval is the fallback cadence when webhooks are unsupported
	// or unreliable.
	PollInterval time.Duration

	Locale string

	IsActive   bool
	LastSyncAt *time.Time
	LastError  string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks required fields before the config is saved.
func (c *Config) Validate() error {
	return validate.Struct(c)
}

// Masters reports whether the platform is authoritative for the given
// entity type.
func (c *Config) Masters(t entity.Type) bool {
	for _, m := range c.MasterFor {
		if m == t {
			return true
		}
	}
	return false
}

// Syncs reports whether the entity type is enabled for sync.
func (c *Config) Syncs(t entity.Type) bool {
	for _, m := range c.SyncEntities {
		if m == t {
			return true
		}
	}
	return false
}
