package synclog

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/tablepilot/platform-sync/pkg/entity"
)

// LogDao is a data access object that maps directly to the 'sync_logs'
// table in PostgreSQL.
type LogDao struct {
	bun.BaseModel `bun:"table:sync_logs,alias:sl"`

	ID           string `bun:"id,pk,type:uuid"`
	RestaurantID string `bun:"restaurant_id,notnull,type:uuid"`
	Platform     string `bun:"platform,notnull,type:varchar(64)"`
	Direction    string `bun:"direction,notnull,type:varchar(16)"`
	EntityType   string `bun:"entity_type,notnull,type:varchar(32)"`
	EntityID     string `bun:"entity_id,nullzero,type:varchar(128)"`
	ExternalID   string `bun:"external_id,nullzero,type:varchar(128)"`

	Action string `bun:"action,notnull,type:varchar(32)"`
	Status string `bun:"status,notnull,type:varchar(16)"`

	EventID string `bun:"event_id,nullzero,type:varchar(128)"`
	Payload []byte `bun:"payload,nullzero,type:jsonb"`

	ErrorMessage string `bun:"error_message,nullzero,type:text"`

	RetryCount  int        `bun:"retry_count,notnull,default:0"`
	NextRetryAt *time.Time `bun:"next_retry_at"`

	CreatedAt time.Time `bun:"created_at,nullzero,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,default:current_timestamp"`
}

func toLogDao(l *Log) *LogDao {
	return &LogDao{
		ID:           l.ID,
		RestaurantID: l.RestaurantID,
		Platform:     l.Platform,
		Direction:    string(l.Direction),
		EntityType:   string(l.EntityType),
		EntityID:     l.EntityID,
		ExternalID:   l.ExternalID,
		Action:       string(l.Action),
		Status:       string(l.Status),
		EventID:      l.EventID,
		Payload:      l.Payload,
		ErrorMessage: l.ErrorMessage,
		RetryCount:   l.RetryCount,
		NextRetryAt:  l.NextRetryAt,
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
}

func toLog(dao *LogDao) *Log {
	return &Log{
		ID:           dao.ID,
		RestaurantID: dao.RestaurantID,
		Platform:     dao.Platform,
		Direction:    Direction(dao.Direction),
		EntityType:   entity.Type(dao.EntityType),
		EntityID:     dao.EntityID,
		ExternalID:   dao.ExternalID,
		Action:       Action(dao.Action),
		Status:       Status(dao.Status),
		EventID:      dao.EventID,
		Payload:      dao.Payload,
		ErrorMessage: dao.ErrorMessage,
		RetryCount:   dao.RetryCount,
		NextRetryAt:  dao.NextRetryAt,
		CreatedAt:    dao.CreatedAt,
		UpdatedAt:    dao.UpdatedAt,
	}
}
