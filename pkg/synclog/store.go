package synclog

import (
	"context"
	"errors"
)

// ErrLogNotFound is returned when no ledger entry matches the lookup.
var ErrLogNotFound = errors.New("sync log not found")

// Store defines sync ledger persistence.
type Store interface {
	// CreateLog appends a ledger entry, defaulting Status to success
	// when unset.
	CreateLog(ctx context.Context, l *Log) error
	// GetLog returns one entry by id, or ErrLogNotFound.
	GetLog(ctx context.Context, id string) (*Log, error)
	// HasProcessedEvent reports whether a platform delivery id has
	// already been handled (any status except retry).
	HasProcessedEvent(ctx context.Context, restaurantID, platform, eventID string) (bool, error)
	// ScheduleRetry bumps the entry's retry count and stamps the next
	// attempt time from the backoff ladder. Returns false when the entry
	// has exhausted its retries, in which case it is marked failed and
	// taken off the schedule.
	ScheduleRetry(ctx context.Context, id string, attemptErr error) (bool, error)
	// MarkSucceeded closes a retrying entry after a successful re-run.
	MarkSucceeded(ctx context.Context, id string) error
	// MarkFailed terminally fails an entry without walking the rest of
	// the ladder, for errors a retry can never fix.
	MarkFailed(ctx context.Context, id string, attemptErr error) error
	// GetPendingRetries returns entries whose next attempt is due,
	// soonest first, capped at limit.
	GetPendingRetries(ctx context.Context, limit int) ([]*Log, error)
	// CountPendingRetries returns the number of entries still scheduled.
	CountPendingRetries(ctx context.Context) (int, error)
}
