package sync

import (
	"context"

	"github.com/tablepilot/platform-sync/pkg/platform"
	"github.com/tablepilot/platform-sync/pkg/synclog"
)

// LedgerStore is the slice of the sync ledger the engine uses.
type LedgerStore interface {
	CreateLog(ctx context.Context, l *synclog.Log) error
	GetLog(ctx context.Context, id string) (*synclog.Log, error)
	HasProcessedEvent(ctx context.Context, restaurantID, platformName, eventID string) (bool, error)
	ScheduleRetry(ctx context.Context, id string, attemptErr error) (bool, error)
	MarkSucceeded(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, attemptErr error) error
	GetPendingRetries(ctx context.Context, limit int) ([]*synclog.Log, error)
}

// ConfigStore is the slice of the platform config store the engine uses.
type ConfigStore interface {
	ListActive(ctx context.Context, restaurantID string) ([]*platform.Config, error)
	RecordSyncResult(ctx context.Context, restaurantID, platformName string, syncErr error) error
}
