package sync

import (
	"context"
	"errors"
	"sync"
	"testing"

	apperrors "github.com/tablepilot/platform-sync/pkg/app/errors"
	"github.com/tablepilot/platform-sync/pkg/connector"
	"github.com/tablepilot/platform-sync/pkg/entity"
	"github.com/tablepilot/platform-sync/pkg/platform"
	"github.com/tablepilot/platform-sync/pkg/reservation"
	"github.com/tablepilot/platform-sync/pkg/syncmap"
	"github.com/tablepilot/platform-sync/pkg/synclog"
)

func reservationFixture() *reservation.Reservation {
	return &reservation.Reservation{
		ID:           "local-1",
		RestaurantID: testRestaurant,
		CustomerID:   "cust-1",
		Status:       reservation.StatusConfirmed,
		PartySize:    4,
		Version:      2,
	}
}

func syncingConfig(platformName string) *platform.Config {
	return &platform.Config{
		ID:           "cfg-" + platformName,
		RestaurantID: testRestaurant,
		Platform:     platformName,
		SyncEntities: []entity.Type{entity.Reservation, entity.Availability, entity.DiningRoom},
		IsActive:     true,
	}
}

func TestPushReservation_CreatesOnUnmappedPlatform(t *testing.T) {
	svc, mocks := newTestService()

	mocks.reservations.GetReservationFunc = func(context.Context, string) (*reservation.Reservation, error) {
		return reservationFixture(), nil
	}
	mocks.reservations.GetCustomerFunc = func(context.Context, string) (*reservation.Customer, error) {
		return &reservation.Customer{ID: "cust-1", Name: "Ana Silva", Phone: "+34600111222"}, nil
	}
	mocks.configs.ListActiveFunc = func(context.Context, string) ([]*platform.Config, error) {
		return []*platform.Config{syncingConfig("resos")}, nil
	}

	var pushed *connector.ReservationData
	mocks.conn.CreateReservationFunc = func(_ context.Context, data *connector.ReservationData) (string, error) {
		pushed = data
		return "ext-100", nil
	}

	var mapping *syncmap.Mapping
	mocks.mappings.UpsertMappingFunc = func(_ context.Context, m *syncmap.Mapping) error {
		mapping = m
		return nil
	}

	var logged *synclog.Log
	mocks.ledger.CreateLogFunc = func(_ context.Context, l *synclog.Log) error {
		l.ID = "log-1"
		logged = l
		return nil
	}

	err := svc.PushReservation(context.Background(), testRestaurant, "local-1", synclog.ActionCreate, "")
	if err != nil {
		t.Fatalf("PushReservation() failed: %v", err)
	}

	if pushed == nil {
		t.Fatalf("expected a create push")
	}
	if pushed.LocalReferenceID != "local-1" {
		t.Fatalf("expected local reference carried, got %q", pushed.LocalReferenceID)
	}
	if pushed.Guest.Name != "Ana Silva" {
		t.Fatalf("expected guest contact resolved, got %+v", pushed.Guest)
	}
	if mapping == nil || mapping.ExternalID != "ext-100" || mapping.LocalID != "local-1" {
		t.Fatalf("mapping mismatch: %+v", mapping)
	}
	if logged == nil || logged.Direction != synclog.DirectionOutbound || logged.Status != synclog.StatusSuccess {
		t.Fatalf("ledger entry mismatch: %+v", logged)
	}
}

func TestPushReservation_SkipsOriginPlatform(t *testing.T) {
	svc, mocks := newTestService()

	mocks.reservations.GetReservationFunc = func(context.Context, string) (*reservation.Reservation, error) {
		return reservationFixture(), nil
	}
	mocks.configs.ListActiveFunc = func(context.Context, string) ([]*platform.Config, error) {
		return []*platform.Config{syncingConfig("resos")}, nil
	}
	mocks.conn.CreateReservationFunc = func(context.Context, *connector.ReservationData) (string, error) {
		t.Fatal("change from resos must not be pushed back to resos")
		return "", nil
	}

	err := svc.PushReservation(context.Background(), testRestaurant, "local-1", synclog.ActionUpdate, "resos")
	if err != nil {
		t.Fatalf("PushReservation() failed: %v", err)
	}
}

func TestPushReservation_UpdatesMappedReservation(t *testing.T) {
	svc, mocks := newTestService()

	mocks.reservations.GetReservationFunc = func(context.Context, string) (*reservation.Reservation, error) {
		return reservationFixture(), nil
	}
	mocks.configs.ListActiveFunc = func(context.Context, string) ([]*platform.Config, error) {
		return []*platform.Config{syncingConfig("resos")}, nil
	}
	mocks.mappings.FindMappingFunc = func(_ context.Context, _, _ string, entityType entity.Type, localID string) (*syncmap.Mapping, error) {
		if entityType == entity.Reservation && localID == "local-1" {
			return &syncmap.Mapping{ID: "map-1", LocalID: "local-1", ExternalID: "ext-100"}, nil
		}
		return nil, syncmap.ErrMappingNotFound
	}

	updatedID := ""
	mocks.conn.UpdateReservationFunc = func(_ context.Context, externalID string, _ *connector.ReservationData) error {
		updatedID = externalID
		return nil
	}
	mocks.conn.CreateReservationFunc = func(context.Context, *connector.ReservationData) (string, error) {
		t.Fatal("mapped reservation must be updated, not recreated")
		return "", nil
	}

	err := svc.PushReservation(context.Background(), testRestaurant, "local-1", synclog.ActionUpdate, "")
	if err != nil {
		t.Fatalf("PushReservation() failed: %v", err)
	}
	if updatedID != "ext-100" {
		t.Fatalf("expected update of ext-100, got %q", updatedID)
	}
}

func TestPushReservation_CancelWithoutMappingIsNoop(t *testing.T) {
	svc, mocks := newTestService()

	mocks.reservations.GetReservationFunc = func(context.Context, string) (*reservation.Reservation, error) {
		res := reservationFixture()
		res.Status = reservation.StatusCancelled
		return res, nil
	}
	mocks.configs.ListActiveFunc = func(context.Context, string) ([]*platform.Config, error) {
		return []*platform.Config{syncingConfig("resos")}, nil
	}
	mocks.conn.CancelReservationFunc = func(context.Context, string, string) error {
		t.Fatal("nothing to cancel on a platform that never saw the reservation")
		return nil
	}

	err := svc.PushReservation(context.Background(), testRestaurant, "local-1", synclog.ActionCancel, "")
	if err != nil {
		t.Fatalf("PushReservation() failed: %v", err)
	}
}

func TestPushReservation_RetryableFailureOpensRetry(t *testing.T) {
	svc, mocks := newTestService()

	mocks.reservations.GetReservationFunc = func(context.Context, string) (*reservation.Reservation, error) {
		return reservationFixture(), nil
	}
	mocks.configs.ListActiveFunc = func(context.Context, string) ([]*platform.Config, error) {
		return []*platform.Config{syncingConfig("resos")}, nil
	}

	pushErr := apperrors.DependencyFailureError(errors.New("503"), "resos api failure")
	mocks.conn.CreateReservationFunc = func(context.Context, *connector.ReservationData) (string, error) {
		return "", pushErr
	}

	var mu sync.Mutex
	var entries []*synclog.Log
	scheduled := false
	mocks.ledger.CreateLogFunc = func(_ context.Context, l *synclog.Log) error {
		mu.Lock()
		defer mu.Unlock()
		l.ID = "log-1"
		entries = append(entries, l)
		return nil
	}
	mocks.ledger.ScheduleRetryFunc = func(_ context.Context, id string, attemptErr error) (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		scheduled = true
		return true, nil
	}

	var recordedErr error
	mocks.configs.RecordSyncResultFunc = func(_ context.Context, _, _ string, syncErr error) error {
		recordedErr = syncErr
		return nil
	}

	err := svc.PushReservation(context.Background(), testRestaurant, "local-1", synclog.ActionCreate, "")
	if err == nil {
		t.Fatalf("expected push error")
	}

	if len(entries) != 1 || entries[0].Status != synclog.StatusRetry {
		t.Fatalf("expected one retry entry, got %+v", entries)
	}
	if !scheduled {
		t.Fatalf("expected retry scheduled")
	}
	if recordedErr == nil {
		t.Fatalf("expected failure recorded on the platform config")
	}
}

func TestPushReservation_PermanentFailureIsNotRetried(t *testing.T) {
	svc, mocks := newTestService()

	mocks.reservations.GetReservationFunc = func(context.Context, string) (*reservation.Reservation, error) {
		return reservationFixture(), nil
	}
	mocks.configs.ListActiveFunc = func(context.Context, string) ([]*platform.Config, error) {
		return []*platform.Config{syncingConfig("resos")}, nil
	}
	mocks.conn.CreateReservationFunc = func(context.Context, *connector.ReservationData) (string, error) {
		return "", apperrors.ConfigurationError(errors.New("401"), "resos rejected the configured api key")
	}

	var entry *synclog.Log
	mocks.ledger.CreateLogFunc = func(_ context.Context, l *synclog.Log) error {
		l.ID = "log-1"
		entry = l
		return nil
	}
	mocks.ledger.ScheduleRetryFunc = func(context.Context, string, error) (bool, error) {
		t.Fatal("configuration errors must not enter the retry ladder")
		return false, nil
	}

	err := svc.PushReservation(context.Background(), testRestaurant, "local-1", synclog.ActionCreate, "")
	if err == nil {
		t.Fatalf("expected push error")
	}
	if entry == nil || entry.Status != synclog.StatusFailed {
		t.Fatalf("expected terminal failed entry, got %+v", entry)
	}
}

func TestPushEntity_AvailabilityPush(t *testing.T) {
	svc, mocks := newTestService()

	mocks.configs.ListActiveFunc = func(context.Context, string) ([]*platform.Config, error) {
		return []*platform.Config{syncingConfig("resos")}, nil
	}

	var pushedType entity.Type
	mocks.conn.SyncEntityFunc = func(_ context.Context, entityType entity.Type, payload map[string]any) (string, error) {
		pushedType = entityType
		return "slot-1", nil
	}

	var mapping *syncmap.Mapping
	mocks.mappings.UpsertMappingFunc = func(_ context.Context, m *syncmap.Mapping) error {
		mapping = m
		return nil
	}

	var logged *synclog.Log
	mocks.ledger.CreateLogFunc = func(_ context.Context, l *synclog.Log) error {
		l.ID = "log-1"
		logged = l
		return nil
	}

	err := svc.PushEntity(context.Background(), testRestaurant, entity.Availability, "avail-1", map[string]any{
		"date":  "2026-09-04",
		"seats": 20,
	})
	if err != nil {
		t.Fatalf("PushEntity() failed: %v", err)
	}

	if pushedType != entity.Availability {
		t.Fatalf("entity type mismatch: got %s", pushedType)
	}
	if mapping == nil || mapping.ExternalID != "slot-1" {
		t.Fatalf("mapping mismatch: %+v", mapping)
	}
	if logged == nil || logged.Action != synclog.ActionAvailabilityPush {
		t.Fatalf("expected availability_push action, got %+v", logged)
	}
}

func TestPushEntity_RejectsReservations(t *testing.T) {
	svc, _ := newTestService()

	err := svc.PushEntity(context.Background(), testRestaurant, entity.Reservation, "local-1", nil)
	if !apperrors.Is(err, apperrors.CategoryDataError) {
		t.Fatalf("expected bad request, got %v", err)
	}
}

func TestPushEntity_SkipsPlatformsNotSyncingType(t *testing.T) {
	svc, mocks := newTestService()

	cfg := syncingConfig("resos")
	cfg.SyncEntities = []entity.Type{entity.Reservation}
	mocks.configs.ListActiveFunc = func(context.Context, string) ([]*platform.Config, error) {
		return []*platform.Config{cfg}, nil
	}
	mocks.conn.SyncEntityFunc = func(context.Context, entity.Type, map[string]any) (string, error) {
		t.Fatal("platform does not sync dining rooms")
		return "", nil
	}

	if err := svc.PushEntity(context.Background(), testRestaurant, entity.DiningRoom, "room-1", nil); err != nil {
		t.Fatalf("PushEntity() failed: %v", err)
	}
}
