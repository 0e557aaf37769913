package sync

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tablepilot/platform-sync/pkg/connector"
	"github.com/tablepilot/platform-sync/pkg/entity"
	"github.com/tablepilot/platform-sync/pkg/platform"
	"github.com/tablepilot/platform-sync/pkg/reservation"
	"github.com/tablepilot/platform-sync/pkg/syncmap"
	"github.com/tablepilot/platform-sync/pkg/synclog"
)

type MockReservationStore struct {
	GetReservationFunc        func(ctx context.Context, id string) (*reservation.Reservation, error)
	CreateReservationFunc     func(ctx context.Context, res *reservation.Reservation) error
	UpdateReservationFunc     func(ctx context.Context, res *reservation.Reservation) error
	GetCustomerFunc           func(ctx context.Context, id string) (*reservation.Customer, error)
	UpsertCustomerByPhoneFunc func(ctx context.Context, cust *reservation.Customer) (*reservation.Customer, error)
}

func (m *MockReservationStore) GetReservation(ctx context.Context, id string) (*reservation.Reservation, error) {
	if m.GetReservationFunc == nil {
		return nil, reservation.ErrNotFound
	}
	return m.GetReservationFunc(ctx, id)
}

func (m *MockReservationStore) CreateReservation(ctx context.Context, res *reservation.Reservation) error {
	if m.CreateReservationFunc == nil {
		res.ID = "local-new"
		return nil
	}
	return m.CreateReservationFunc(ctx, res)
}

func (m *MockReservationStore) UpdateReservation(ctx context.Context, res *reservation.Reservation) error {
	if m.UpdateReservationFunc == nil {
		res.Version++
		return nil
	}
	return m.UpdateReservationFunc(ctx, res)
}

func (m *MockReservationStore) GetCustomer(ctx context.Context, id string) (*reservation.Customer, error) {
	if m.GetCustomerFunc == nil {
		return nil, reservation.ErrNotFound
	}
	return m.GetCustomerFunc(ctx, id)
}

func (m *MockReservationStore) UpsertCustomerByPhone(ctx context.Context, cust *reservation.Customer) (*reservation.Customer, error) {
	if m.UpsertCustomerByPhoneFunc == nil {
		cust.ID = "cust-new"
		return cust, nil
	}
	return m.UpsertCustomerByPhoneFunc(ctx, cust)
}

type MockMappingStore struct {
	FindMappingFunc           func(ctx context.Context, restaurantID, platformName string, entityType entity.Type, localID string) (*syncmap.Mapping, error)
	FindByExternalIDFunc      func(ctx context.Context, restaurantID, platformName string, entityType entity.Type, externalID string) (*syncmap.Mapping, error)
	FindMappingsForEntityFunc func(ctx context.Context, restaurantID string, entityType entity.Type, localID string) ([]*syncmap.Mapping, error)
	UpsertMappingFunc         func(ctx context.Context, m *syncmap.Mapping) error
	MarkStatusFunc            func(ctx context.Context, id string, status syncmap.SyncStatus) error
	DeleteForPlatformFunc     func(ctx context.Context, restaurantID, platformName string) (int64, error)
}

func (m *MockMappingStore) FindMapping(ctx context.Context, restaurantID, platformName string, entityType entity.Type, localID string) (*syncmap.Mapping, error) {
	if m.FindMappingFunc == nil {
		return nil, syncmap.ErrMappingNotFound
	}
	return m.FindMappingFunc(ctx, restaurantID, platformName, entityType, localID)
}

func (m *MockMappingStore) FindByExternalID(ctx context.Context, restaurantID, platformName string, entityType entity.Type, externalID string) (*syncmap.Mapping, error) {
	if m.FindByExternalIDFunc == nil {
		return nil, syncmap.ErrMappingNotFound
	}
	return m.FindByExternalIDFunc(ctx, restaurantID, platformName, entityType, externalID)
}

func (m *MockMappingStore) FindMappingsForEntity(ctx context.Context, restaurantID string, entityType entity.Type, localID string) ([]*syncmap.Mapping, error) {
	if m.FindMappingsForEntityFunc == nil {
		return nil, nil
	}
	return m.FindMappingsForEntityFunc(ctx, restaurantID, entityType, localID)
}

func (m *MockMappingStore) UpsertMapping(ctx context.Context, mapping *syncmap.Mapping) error {
	if m.UpsertMappingFunc == nil {
		return nil
	}
	return m.UpsertMappingFunc(ctx, mapping)
}

func (m *MockMappingStore) MarkStatus(ctx context.Context, id string, status syncmap.SyncStatus) error {
	if m.MarkStatusFunc == nil {
		return nil
	}
	return m.MarkStatusFunc(ctx, id, status)
}

func (m *MockMappingStore) DeleteForPlatform(ctx context.Context, restaurantID, platformName string) (int64, error) {
	if m.DeleteForPlatformFunc == nil {
		return 0, nil
	}
	return m.DeleteForPlatformFunc(ctx, restaurantID, platformName)
}

type MockLedgerStore struct {
	CreateLogFunc         func(ctx context.Context, l *synclog.Log) error
	GetLogFunc            func(ctx context.Context, id string) (*synclog.Log, error)
	HasProcessedEventFunc func(ctx context.Context, restaurantID, platformName, eventID string) (bool, error)
	ScheduleRetryFunc     func(ctx context.Context, id string, attemptErr error) (bool, error)
	MarkSucceededFunc     func(ctx context.Context, id string) error
	MarkFailedFunc        func(ctx context.Context, id string, attemptErr error) error
	GetPendingRetriesFunc func(ctx context.Context, limit int) ([]*synclog.Log, error)
}

func (m *MockLedgerStore) CreateLog(ctx context.Context, l *synclog.Log) error {
	if m.CreateLogFunc == nil {
		l.ID = "log-new"
		return nil
	}
	return m.CreateLogFunc(ctx, l)
}

func (m *MockLedgerStore) GetLog(ctx context.Context, id string) (*synclog.Log, error) {
	if m.GetLogFunc == nil {
		return nil, synclog.ErrLogNotFound
	}
	return m.GetLogFunc(ctx, id)
}

func (m *MockLedgerStore) HasProcessedEvent(ctx context.Context, restaurantID, platformName, eventID string) (bool, error) {
	if m.HasProcessedEventFunc == nil {
		return false, nil
	}
	return m.HasProcessedEventFunc(ctx, restaurantID, platformName, eventID)
}

func (m *MockLedgerStore) ScheduleRetry(ctx context.Context, id string, attemptErr error) (bool, error) {
	if m.ScheduleRetryFunc == nil {
		return true, nil
	}
	return m.ScheduleRetryFunc(ctx, id, attemptErr)
}

func (m *MockLedgerStore) MarkSucceeded(ctx context.Context, id string) error {
	if m.MarkSucceededFunc == nil {
		return nil
	}
	return m.MarkSucceededFunc(ctx, id)
}

func (m *MockLedgerStore) MarkFailed(ctx context.Context, id string, attemptErr error) error {
	if m.MarkFailedFunc == nil {
		return nil
	}
	return m.MarkFailedFunc(ctx, id, attemptErr)
}

func (m *MockLedgerStore) GetPendingRetries(ctx context.Context, limit int) ([]*synclog.Log, error) {
	if m.GetPendingRetriesFunc == nil {
		return nil, nil
	}
	return m.GetPendingRetriesFunc(ctx, limit)
}

type MockConfigStore struct {
	ListActiveFunc       func(ctx context.Context, restaurantID string) ([]*platform.Config, error)
	RecordSyncResultFunc func(ctx context.Context, restaurantID, platformName string, syncErr error) error
}

func (m *MockConfigStore) ListActive(ctx context.Context, restaurantID string) ([]*platform.Config, error) {
	if m.ListActiveFunc == nil {
		return nil, nil
	}
	return m.ListActiveFunc(ctx, restaurantID)
}

func (m *MockConfigStore) RecordSyncResult(ctx context.Context, restaurantID, platformName string, syncErr error) error {
	if m.RecordSyncResultFunc == nil {
		return nil
	}
	return m.RecordSyncResultFunc(ctx, restaurantID, platformName, syncErr)
}

type MockConnector struct {
	PlatformName          string
	AuthenticateFunc      func(ctx context.Context) error
	CreateReservationFunc func(ctx context.Context, data *connector.ReservationData) (string, error)
	UpdateReservationFunc func(ctx context.Context, externalID string, data *connector.ReservationData) error
	CancelReservationFunc func(ctx context.Context, externalID, reason string) error
	GetAvailabilityFunc   func(ctx context.Context, date time.Time, partySize int) ([]connector.AvailabilitySlot, error)
	SyncEntityFunc        func(ctx context.Context, entityType entity.Type, payload map[string]any) (string, error)
	ParseWebhookFunc      func(r *http.Request, body []byte) (*connector.WebhookEvent, error)
	ParseStoredEventFunc  func(payload []byte) (*connector.WebhookEvent, error)
}

func (m *MockConnector) Platform() string {
	if m.PlatformName == "" {
		return "resos"
	}
	return m.PlatformName
}

func (m *MockConnector) Authenticate(ctx context.Context) error {
	if m.AuthenticateFunc == nil {
		return nil
	}
	return m.AuthenticateFunc(ctx)
}

func (m *MockConnector) CreateReservation(ctx context.Context, data *connector.ReservationData) (string, error) {
	if m.CreateReservationFunc == nil {
		return "ext-new", nil
	}
	return m.CreateReservationFunc(ctx, data)
}

func (m *MockConnector) UpdateReservation(ctx context.Context, externalID string, data *connector.ReservationData) error {
	if m.UpdateReservationFunc == nil {
		return nil
	}
	return m.UpdateReservationFunc(ctx, externalID, data)
}

func (m *MockConnector) CancelReservation(ctx context.Context, externalID, reason string) error {
	if m.CancelReservationFunc == nil {
		return nil
	}
	return m.CancelReservationFunc(ctx, externalID, reason)
}

func (m *MockConnector) GetAvailability(ctx context.Context, date time.Time, partySize int) ([]connector.AvailabilitySlot, error) {
	if m.GetAvailabilityFunc == nil {
		return nil, nil
	}
	return m.GetAvailabilityFunc(ctx, date, partySize)
}

func (m *MockConnector) SyncEntity(ctx context.Context, entityType entity.Type, payload map[string]any) (string, error) {
	if m.SyncEntityFunc == nil {
		return "ext-entity", nil
	}
	return m.SyncEntityFunc(ctx, entityType, payload)
}

func (m *MockConnector) ParseWebhook(r *http.Request, body []byte) (*connector.WebhookEvent, error) {
	if m.ParseWebhookFunc == nil {
		return nil, connector.ErrInvalidWebhookPayload
	}
	return m.ParseWebhookFunc(r, body)
}

func (m *MockConnector) ParseStoredEvent(payload []byte) (*connector.WebhookEvent, error) {
	if m.ParseStoredEventFunc == nil {
		return nil, connector.ErrInvalidWebhookPayload
	}
	return m.ParseStoredEventFunc(payload)
}

type MockRegistry struct {
	GetConnectorFunc func(ctx context.Context, restaurantID, platformName string) (connector.Connector, error)
}

func (m *MockRegistry) GetConnector(ctx context.Context, restaurantID, platformName string) (connector.Connector, error) {
	return m.GetConnectorFunc(ctx, restaurantID, platformName)
}

type serviceMocks struct {
	reservations *MockReservationStore
	mappings     *MockMappingStore
	ledger       *MockLedgerStore
	configs      *MockConfigStore
	conn         *MockConnector
}

// newTestService builds a Service over fresh mocks with a registry that
// always hands back mocks.conn.
func newTestService() (*Service, *serviceMocks) {
	mocks := &serviceMocks{
		reservations: &MockReservationStore{},
		mappings:     &MockMappingStore{},
		ledger:       &MockLedgerStore{},
		configs:      &MockConfigStore{},
		conn:         &MockConnector{PlatformName: "resos"},
	}
	registry := &MockRegistry{
		GetConnectorFunc: func(context.Context, string, string) (connector.Connector, error) {
			return mocks.conn, nil
		},
	}
	svc := NewService(
		mocks.reservations,
		mocks.mappings,
		mocks.ledger,
		mocks.configs,
		registry,
		zap.NewNop(),
		5*time.Second,
	)
	return svc, mocks
}
