// Package synclog records every synchronization attempt and drives the
// durable retry schedule.
package synclog

import (
	"time"

	"github.com/tablepilot/platform-sync/pkg/entity"
)

// Direction says which side initiated the sync attempt.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Action names the operation that was attempted.
type Action string

const (
	ActionCreate           Action = "create"
	ActionUpdate           Action = "update"
	ActionCancel           Action = "cancel"
	ActionStatusChange     Action = "status_change"
	ActionAvailabilityPush Action = "availability_push"
	ActionSyncFull         Action = "sync_full"
	ActionDelete           Action = "delete"
)

// Status is the terminal state of one attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	// StatusConflict means both sides had diverged and resolution picked
	// a winner; the attempt itself completed.
	StatusConflict Status = "conflict"
	// StatusRetry means the attempt failed transiently and is scheduled
	// for another run.
	StatusRetry Status = "retry"
	// StatusSkipped means the event was recognized and deliberately not
	// applied, e.g. an echo of our own outbound push.
	StatusSkipped Status = "skipped"
)

// MaxRetries bounds how many times one failed attempt is re-run before
// it is abandoned.
const MaxRetries = 5

// RetryDelays is the backoff ladder indexed by completed retry count.
var RetryDelays = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	30 * time.Minute,
	2 * time.Hour,
	8 * time.Hour,
}

// NextRetryDelay returns the wait before retry attempt n (1-based), or
// false when the ladder is exhausted.
func NextRetryDelay(attempt int) (time.Duration, bool) {
	if attempt < 1 || attempt > MaxRetries {
		return 0, false
	}
	return RetryDelays[attempt-1], true
}

// Log is one entry in the sync audit ledger.
type Log struct {
	ID           string
	RestaurantID string
	Platform     string
	Direction    Direction
	EntityType   entity.Type

	// EntityID is the local identifier; empty for inbound events that
	// never produced a local entity.
	EntityID   string
	ExternalID string

	Action Action
	Status Status

	// EventID is the platform's delivery identifier, used to drop
	// duplicate webhook deliveries.
	EventID string

	// Payload is the raw event body, kept verbatim so a retry can replay
	// exactly what the platform sent.
	Payload []byte

	ErrorMessage string

	RetryCount  int
	NextRetryAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
