package synclog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tablepilot/platform-sync/pkg/entity"
	"github.com/tablepilot/platform-sync/pkg/pgutil"
	mghelper "github.com/tablepilot/platform-sync/pkg/pgutil/migrations"
)

const (
	testRestaurantID = "6a1f2f60-0a73-4a9e-9a41-6d21c2f0f6a1"
	testPlatform     = "resos"
)

func setupStore(t *testing.T) (context.Context, *pgStore) {
	t.Helper()
	pgutil.RequireDockerAccess(t)

	ctx := context.Background()
	db, cleanup := pgutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	if err := mghelper.CreateSchema(ctx, db, &LogDao{}); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	return ctx, NewStore(db)
}

func newTestLog(eventID string) *Log {
	return &Log{
		RestaurantID: testRestaurantID,
		Platform:     testPlatform,
		Direction:    DirectionInbound,
		EntityType:   entity.Reservation,
		ExternalID:   "ext-100",
		Action:       ActionCreate,
		EventID:      eventID,
		Payload:      []byte(`{"event":"reservation.created"}`),
	}
}

func TestLogPGStore_CreateDefaultsToSuccess(t *testing.T) {
	ctx, s := setupStore(t)

	l := newTestLog("evt-1")
	if err := s.CreateLog(ctx, l); err != nil {
		t.Fatalf("CreateLog() failed: %v", err)
	}
	if l.ID == "" {
		t.Fatalf("expected generated log id")
	}
	if l.Status != StatusSuccess {
		t.Fatalf("expected default status success, got %s", l.Status)
	}

	got, err := s.GetLog(ctx, l.ID)
	if err != nil {
		t.Fatalf("GetLog() failed: %v", err)
	}
	if got.EventID != "evt-1" {
		t.Fatalf("event id mismatch: got %s want evt-1", got.EventID)
	}
	if string(got.Payload) != `{"event":"reservation.created"}` {
		t.Fatalf("payload mismatch: got %s", got.Payload)
	}
}

func TestLogPGStore_HasProcessedEvent(t *testing.T) {
	ctx, s := setupStore(t)

	l := newTestLog("evt-1")
	if err := s.CreateLog(ctx, l); err != nil {
		t.Fatalf("CreateLog() failed: %v", err)
	}

	processed, err := s.HasProcessedEvent(ctx, testRestaurantID, testPlatform, "evt-1")
	if err != nil {
		t.Fatalf("HasProcessedEvent() failed: %v", err)
	}
	if !processed {
		t.Fatalf("expected evt-1 to be processed")
	}

	processed, err = s.HasProcessedEvent(ctx, testRestaurantID, testPlatform, "evt-2")
	if err != nil {
		t.Fatalf("HasProcessedEvent() failed: %v", err)
	}
	if processed {
		t.Fatalf("expected evt-2 to be unprocessed")
	}

	// Entries still on the retry schedule do not count as processed, so a
	// redelivery before the retry fires is handled, not dropped.
	retrying := newTestLog("evt-3")
	retrying.Status = StatusRetry
	if err := s.CreateLog(ctx, retrying); err != nil {
		t.Fatalf("CreateLog() failed: %v", err)
	}
	processed, err = s.HasProcessedEvent(ctx, testRestaurantID, testPlatform, "evt-3")
	if err != nil {
		t.Fatalf("HasProcessedEvent() failed: %v", err)
	}
	if processed {
		t.Fatalf("expected retrying evt-3 to be unprocessed")
	}

	// Blank event ids never deduplicate.
	processed, err = s.HasProcessedEvent(ctx, testRestaurantID, testPlatform, "")
	if err != nil {
		t.Fatalf("HasProcessedEvent() failed: %v", err)
	}
	if processed {
		t.Fatalf("expected blank event id to be unprocessed")
	}
}

func TestLogPGStore_ScheduleRetryWalksLadderThenFails(t *testing.T) {
	ctx, s := setupStore(t)

	l := newTestLog("evt-1")
	l.Status = StatusRetry
	if err := s.CreateLog(ctx, l); err != nil {
		t.Fatalf("CreateLog() failed: %v", err)
	}

	for attempt := 1; attempt <= MaxRetries; attempt++ {
		before := time.Now()
		scheduled, err := s.ScheduleRetry(ctx, l.ID, errors.New("connection refused"))
		if err != nil {
			t.Fatalf("ScheduleRetry() attempt %d failed: %v", attempt, err)
		}
		if !scheduled {
			t.Fatalf("attempt %d: expected retry to be scheduled", attempt)
		}

		got, err := s.GetLog(ctx, l.ID)
		if err != nil {
			t.Fatalf("GetLog() failed: %v", err)
		}
		if got.RetryCount != attempt {
			t.Fatalf("attempt %d: got retry count %d", attempt, got.RetryCount)
		}
		if got.Status != StatusRetry {
			t.Fatalf("attempt %d: got status %s want retry", attempt, got.Status)
		}
		if got.NextRetryAt == nil {
			t.Fatalf("attempt %d: expected next_retry_at to be set", attempt)
		}
		wantDelay, _ := NextRetryDelay(attempt)
		gotDelay := got.NextRetryAt.Sub(before)
		if gotDelay < wantDelay-time.Minute || gotDelay > wantDelay+time.Minute {
			t.Fatalf("attempt %d: got delay %s want ~%s", attempt, gotDelay, wantDelay)
		}
	}

	// Sixth failure exhausts the ladder.
	scheduled, err := s.ScheduleRetry(ctx, l.ID, errors.New("connection refused"))
	if err != nil {
		t.Fatalf("ScheduleRetry() exhaustion failed: %v", err)
	}
	if scheduled {
		t.Fatalf("expected ladder exhaustion, got another retry")
	}

	got, err := s.GetLog(ctx, l.ID)
	if err != nil {
		t.Fatalf("GetLog() failed: %v", err)
	}
	if got.Status != StatusFailed {
		t.Fatalf("got status %s want failed", got.Status)
	}
	if got.NextRetryAt != nil {
		t.Fatalf("expected next_retry_at cleared, got %v", got.NextRetryAt)
	}
	if got.RetryCount != MaxRetries {
		t.Fatalf("got retry count %d want %d", got.RetryCount, MaxRetries)
	}
}

func TestLogPGStore_PendingRetriesDueSoonestFirst(t *testing.T) {
	ctx, s := setupStore(t)

	due := func(offset time.Duration) *time.Time {
		at := time.Now().Add(offset)
		return &at
	}

	later := newTestLog("evt-later")
	later.Status = StatusRetry
	later.NextRetryAt = due(-1 * time.Minute)
	soonest := newTestLog("evt-soonest")
	soonest.Status = StatusRetry
	soonest.NextRetryAt = due(-10 * time.Minute)
	future := newTestLog("evt-future")
	future.Status = StatusRetry
	future.NextRetryAt = due(1 * time.Hour)
	done := newTestLog("evt-done")

	for _, l := range []*Log{later, soonest, future, done} {
		if err := s.CreateLog(ctx, l); err != nil {
			t.Fatalf("CreateLog() failed: %v", err)
		}
	}

	pending, err := s.GetPendingRetries(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingRetries() failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("unexpected pending count: got %d want 2", len(pending))
	}
	if pending[0].EventID != "evt-soonest" || pending[1].EventID != "evt-later" {
		t.Fatalf("expected soonest-first ordering, got %s, %s", pending[0].EventID, pending[1].EventID)
	}

	limited, err := s.GetPendingRetries(ctx, 1)
	if err != nil {
		t.Fatalf("GetPendingRetries() failed: %v", err)
	}
	if len(limited) != 1 || limited[0].EventID != "evt-soonest" {
		t.Fatalf("expected limit to keep the soonest entry, got %v", limited)
	}

	count, err := s.CountPendingRetries(ctx)
	if err != nil {
		t.Fatalf("CountPendingRetries() failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("unexpected scheduled count: got %d want 3", count)
	}
}

func TestLogPGStore_MarkSucceeded(t *testing.T) {
	ctx, s := setupStore(t)

	l := newTestLog("evt-1")
	l.Status = StatusRetry
	l.ErrorMessage = "connection refused"
	at := time.Now().Add(time.Minute)
	l.NextRetryAt = &at
	if err := s.CreateLog(ctx, l); err != nil {
		t.Fatalf("CreateLog() failed: %v", err)
	}

	if err := s.MarkSucceeded(ctx, l.ID); err != nil {
		t.Fatalf("MarkSucceeded() failed: %v", err)
	}

	got, err := s.GetLog(ctx, l.ID)
	if err != nil {
		t.Fatalf("GetLog() failed: %v", err)
	}
	if got.Status != StatusSuccess {
		t.Fatalf("got status %s want success", got.Status)
	}
	if got.NextRetryAt != nil {
		t.Fatalf("expected next_retry_at cleared")
	}
	if got.ErrorMessage != "" {
		t.Fatalf("expected error message cleared, got %q", got.ErrorMessage)
	}

	if err := s.MarkSucceeded(ctx, "11111111-1111-1111-1111-111111111111"); !errors.Is(err, ErrLogNotFound) {
		t.Fatalf("expected ErrLogNotFound, got %v", err)
	}
}
