package syncmap

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/tablepilot/platform-sync/pkg/entity"
)

// MappingDao is a data access object that maps directly to the
// 'external_mappings' table in PostgreSQL.
type MappingDao struct {
	bun.BaseModel `bun:"table:external_mappings,alias:em"`

	ID           string `bun:"id,pk,type:uuid"`
	RestaurantID string `bun:"restaurant_id,notnull,type:uuid"`
	Platform     string `bun:"platform,notnull,type:varchar(64)"`
	EntityType   string `bun:"entity_type,notnull,type:varchar(32)"`
	LocalID      string `bun:"local_id,notnull,type:varchar(128)"`
	ExternalID   string `bun:"external_id,notnull,type:varchar(128)"`

	ExternalData map[string]any `bun:"external_data,type:jsonb"`

	SyncStatus string     `bun:"sync_status,notnull,type:varchar(16)"`
	SyncedAt   *time.Time `bun:"synced_at"`

	CreatedAt time.Time `bun:"created_at,nullzero,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,default:current_timestamp"`
}

func toMappingDao(m *Mapping) *MappingDao {
	return &MappingDao{
		ID:           m.ID,
		RestaurantID: m.RestaurantID,
		Platform:     m.Platform,
		EntityType:   string(m.EntityType),
		LocalID:      m.LocalID,
		ExternalID:   m.ExternalID,
		ExternalData: m.ExternalData,
		SyncStatus:   string(m.SyncStatus),
		SyncedAt:     m.SyncedAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func toMapping(dao *MappingDao) *Mapping {
	return &Mapping{
		ID:           dao.ID,
		RestaurantID: dao.RestaurantID,
		Platform:     dao.Platform,
		EntityType:   entity.Type(dao.EntityType),
		LocalID:      dao.LocalID,
		ExternalID:   dao.ExternalID,
		ExternalData: dao.ExternalData,
		SyncStatus:   SyncStatus(dao.SyncStatus),
		SyncedAt:     dao.SyncedAt,
		CreatedAt:    dao.CreatedAt,
		UpdatedAt:    dao.UpdatedAt,
	}
}
