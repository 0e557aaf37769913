package platform

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/tablepilot/platform-sync/pkg/entity"
)

// ConfigDao is a data access object that maps directly to the
// 'platform_configs' table in PostgreSQL.
type ConfigDao struct {
	bun.BaseModel `bun:"table:platform_configs,alias:pc"`

	ID           string `bun:"id,pk,type:uuid"`
	RestaurantID string `bun:"restaurant_id,notnull,type:uuid"`
	Platform     string `bun:"platform,notnull,type:varchar(64)"`

	Credentials map[string]string `bun:"credentials,type:jsonb"`

	MasterFor    []string `bun:"master_for,array"`
	SyncEntities []string `bun:"sync_entities,array"`

	WebhooksEnabled bool   `bun:"webhooks_enabled,notnull,default:false"`
	WebhookSecret   string `bun:"webhook_secret,nullzero,type:varchar(255)"`
	PollIntervalSec int64  `bun:"poll_interval_sec,nullzero"`
	Locale          string `bun:"locale,nullzero,type:varchar(16)"`

	IsActive   bool       `bun:"is_active,notnull,default:true"`
	LastSyncAt *time.Time `bun:"last_sync_at"`
	LastError  string     `bun:"last_error,nullzero,type:text"`

	CreatedAt time.Time `bun:"created_at,nullzero,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,default:current_timestamp"`
}

func toConfigDao(cfg *Config) *ConfigDao {
	return &ConfigDao{
		ID:              cfg.ID,
		RestaurantID:    cfg.RestaurantID,
		Platform:        cfg.Platform,
		Credentials:     cfg.Credentials,
		MasterFor:       typesToStrings(cfg.MasterFor),
		SyncEntities:    typesToStrings(cfg.SyncEntities),
		WebhooksEnabled: cfg.WebhooksEnabled,
		WebhookSecret:   cfg.WebhookSecret,
		PollIntervalSec: int64(cfg.PollInterval / time.Second),
		Locale:          cfg.Locale,
		IsActive:        cfg.IsActive,
		LastSyncAt:      cfg.LastSyncAt,
		LastError:       cfg.LastError,
		CreatedAt:       cfg.CreatedAt,
		UpdatedAt:       cfg.UpdatedAt,
	}
}

func toConfig(dao *ConfigDao) *Config {
	return &Config{
		ID:              dao.ID,
		RestaurantID:    dao.RestaurantID,
		Platform:        dao.Platform,
		Credentials:     dao.Credentials,
		MasterFor:       stringsToTypes(dao.MasterFor),
		SyncEntities:    stringsToTypes(dao.SyncEntities),
		WebhooksEnabled: dao.WebhooksEnabled,
		WebhookSecret:   dao.WebhookSecret,
		PollInterval:    time.Duration(dao.PollIntervalSec) * time.Second,
		Locale:          dao.Locale,
		IsActive:        dao.IsActive,
		LastSyncAt:      dao.LastSyncAt,
		LastError:       dao.LastError,
		CreatedAt:       dao.CreatedAt,
		UpdatedAt:       dao.UpdatedAt,
	}
}

func typesToStrings(types []entity.Type) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func stringsToTypes(strs []string) []entity.Type {
	out := make([]entity.Type, len(strs))
	for i, s := range strs {
		out[i] = entity.Type(s)
	}
	return out
}
