package connector

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tablepilot/platform-sync/pkg/entity"
	"github.com/tablepilot/platform-sync/pkg/platform"
)

type mockConfigStore struct {
	GetActiveFunc func(ctx context.Context, restaurantID, platformName string) (*platform.Config, error)
}

func (m *mockConfigStore) GetActive(ctx context.Context, restaurantID, platformName string) (*platform.Config, error) {
	return m.GetActiveFunc(ctx, restaurantID, platformName)
}

func (m *mockConfigStore) ListActive(context.Context, string) ([]*platform.Config, error) {
	return nil, nil
}
func (m *mockConfigStore) Save(context.Context, *platform.Config) error       { return nil }
func (m *mockConfigStore) Deactivate(context.Context, string, string) error   { return nil }
func (m *mockConfigStore) RecordSyncResult(context.Context, string, string, error) error {
	return nil
}

type fakeConnector struct {
	platform  string
	cfg       *platform.Config
	authErr   error
	authCalls int
}

func (f *fakeConnector) Platform() string { return f.platform }
func (f *fakeConnector) Authenticate(context.Context) error {
	f.authCalls++
	return f.authErr
}
func (f *fakeConnector) CreateReservation(context.Context, *ReservationData) (string, error) {
	return "", nil
}
func (f *fakeConnector) UpdateReservation(context.Context, string, *ReservationData) error {
	return nil
}
func (f *fakeConnector) CancelReservation(context.Context, string, string) error { return nil }
func (f *fakeConnector) GetAvailability(context.Context, time.Time, int) ([]AvailabilitySlot, error) {
	return nil, nil
}
func (f *fakeConnector) SyncEntity(context.Context, entity.Type, map[string]any) (string, error) {
	return "", ErrUnsupportedEntityType
}
func (f *fakeConnector) ParseWebhook(*http.Request, []byte) (*WebhookEvent, error) {
	return nil, ErrInvalidWebhookPayload
}
func (f *fakeConnector) ParseStoredEvent([]byte) (*WebhookEvent, error) {
	return nil, ErrInvalidWebhookPayload
}

func testRegistry(store platform.Store) *Registry {
	r := NewRegistry(store, zap.NewNop())
	r.Register("resos", func(cfg *platform.Config, _ *zap.Logger) (Connector, error) {
		return &fakeConnector{platform: "resos", cfg: cfg}, nil
	})
	return r
}

func TestRegistry_GetConnectorBuildsAndCaches(t *testing.T) {
	calls := 0
	store := &mockConfigStore{
		GetActiveFunc: func(_ context.Context, restaurantID, platformName string) (*platform.Config, error) {
			calls++
			return &platform.Config{
				ID:           "cfg-1",
				RestaurantID: restaurantID,
				Platform:     platformName,
				IsActive:     true,
			}, nil
		},
	}
	r := testRegistry(store)

	first, err := r.GetConnector(context.Background(), "rest-1", "resos")
	if err != nil {
		t.Fatalf("GetConnector() failed: %v", err)
	}
	second, err := r.GetConnector(context.Background(), "rest-1", "resos")
	if err != nil {
		t.Fatalf("GetConnector() failed: %v", err)
	}

	if first != second {
		t.Fatalf("expected cached connector to be reused")
	}
	if calls != 1 {
		t.Fatalf("expected one config load, got %d", calls)
	}
	if first.(*fakeConnector).authCalls != 1 {
		t.Fatalf("expected credentials verified once, got %d", first.(*fakeConnector).authCalls)
	}
}

func TestRegistry_AuthFailureIsNotCached(t *testing.T) {
	store := &mockConfigStore{
		GetActiveFunc: func(_ context.Context, restaurantID, platformName string) (*platform.Config, error) {
			return &platform.Config{
				ID:           "cfg-1",
				RestaurantID: restaurantID,
				Platform:     platformName,
				IsActive:     true,
			}, nil
		},
	}

	authErr := errors.New("api key rejected")
	builds := 0
	r := NewRegistry(store, zap.NewNop())
	r.Register("resos", func(cfg *platform.Config, _ *zap.Logger) (Connector, error) {
		builds++
		conn := &fakeConnector{platform: "resos", cfg: cfg}
		// The key is rotated between the first and second attempt.
		if builds == 1 {
			conn.authErr = authErr
		}
		return conn, nil
	})

	if _, err := r.GetConnector(context.Background(), "rest-1", "resos"); !errors.Is(err, authErr) {
		t.Fatalf("expected auth failure surfaced, got %v", err)
	}

	conn, err := r.GetConnector(context.Background(), "rest-1", "resos")
	if err != nil {
		t.Fatalf("GetConnector() after key rotation failed: %v", err)
	}
	if builds != 2 {
		t.Fatalf("expected the failed connector rebuilt, got %d builds", builds)
	}
	if conn.(*fakeConnector).authCalls != 1 {
		t.Fatalf("expected fresh connector authenticated once, got %d", conn.(*fakeConnector).authCalls)
	}
}

func TestRegistry_UnsupportedPlatform(t *testing.T) {
	store := &mockConfigStore{
		GetActiveFunc: func(context.Context, string, string) (*platform.Config, error) {
			t.Fatal("config store should not be consulted for unknown platforms")
			return nil, nil
		},
	}
	r := testRegistry(store)

	_, err := r.GetConnector(context.Background(), "rest-1", "opentable")
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("expected ErrUnsupportedPlatform, got %v", err)
	}
}

func TestRegistry_PlatformNotConfigured(t *testing.T) {
	store := &mockConfigStore{
		GetActiveFunc: func(context.Context, string, string) (*platform.Config, error) {
			return nil, platform.ErrConfigNotFound
		},
	}
	r := testRegistry(store)

	_, err := r.GetConnector(context.Background(), "rest-1", "resos")
	if !errors.Is(err, ErrPlatformNotConfigured) {
		t.Fatalf("expected ErrPlatformNotConfigured, got %v", err)
	}
}

func TestRegistry_ClearCacheForcesRebuild(t *testing.T) {
	calls := 0
	store := &mockConfigStore{
		GetActiveFunc: func(_ context.Context, restaurantID, platformName string) (*platform.Config, error) {
			calls++
			return &platform.Config{
				ID:           "cfg-1",
				RestaurantID: restaurantID,
				Platform:     platformName,
				IsActive:     true,
			}, nil
		},
	}
	r := testRegistry(store)

	first, err := r.GetConnector(context.Background(), "rest-1", "resos")
	if err != nil {
		t.Fatalf("GetConnector() failed: %v", err)
	}

	r.ClearCache("rest-1", "resos")

	second, err := r.GetConnector(context.Background(), "rest-1", "resos")
	if err != nil {
		t.Fatalf("GetConnector() failed: %v", err)
	}

	if first == second {
		t.Fatalf("expected a fresh connector after cache clear")
	}
	if calls != 2 {
		t.Fatalf("expected two config loads, got %d", calls)
	}
}

func TestRegistry_CacheIsPerRestaurant(t *testing.T) {
	store := &mockConfigStore{
		GetActiveFunc: func(_ context.Context, restaurantID, platformName string) (*platform.Config, error) {
			return &platform.Config{
				ID:           "cfg-" + restaurantID,
				RestaurantID: restaurantID,
				Platform:     platformName,
				IsActive:     true,
			}, nil
		},
	}
	r := testRegistry(store)

	a, err := r.GetConnector(context.Background(), "rest-1", "resos")
	if err != nil {
		t.Fatalf("GetConnector() failed: %v", err)
	}
	b, err := r.GetConnector(context.Background(), "rest-2", "resos")
	if err != nil {
		t.Fatalf("GetConnector() failed: %v", err)
	}

	if a == b {
		t.Fatalf("expected distinct connectors per restaurant")
	}
	if a.(*fakeConnector).cfg.RestaurantID != "rest-1" {
		t.Fatalf("connector a bound to wrong restaurant config")
	}
	if b.(*fakeConnector).cfg.RestaurantID != "rest-2" {
		t.Fatalf("connector b bound to wrong restaurant config")
	}
}
