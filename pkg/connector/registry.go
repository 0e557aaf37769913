package connector

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/tablepilot/platform-sync/internal/metrics"
	"github.com/tablepilot/platform-sync/pkg/platform"
)

var (
	// ErrUnsupportedPlatform means no adapter is registered for the
	// platform key.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	// ErrPlatformNotConfigured means the restaurant has no active config
	// for the platform.
	ErrPlatformNotConfigured = errors.New("platform not configured for restaurant")
)

// Constructor builds an adapter from a platform config.
type Constructor func(cfg *platform.Config, logger *zap.Logger) (Connector, error)

type cacheKey struct {
	restaurantID string
	platform     string
}

// Registry builds connectors on demand and caches them per
// (restaurant, platform) so credentials are not re-read on every event.
type Registry struct {
	configs      platform.Store
	constructors map[string]Constructor
	logger       *zap.Logger

	mu    sync.RWMutex
	cache map[cacheKey]Connector
}

// NewRegistry creates a registry over the given config store.
func NewRegistry(configs platform.Store, logger *zap.Logger) *Registry {
	return &Registry{
		configs:      configs,
		constructors: make(map[string]Constructor),
		logger:       logger,
		cache:        make(map[cacheKey]Connector),
	}
}

// Register installs the constructor for a platform key. Registering the
// same key twice replaces the previous constructor.
func (r *Registry) Register(platformName string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[platformName] = ctor
}

// Supported returns the registered platform keys.
func (r *Registry) Supported() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.constructors))
	for k := range r.constructors {
		keys = append(keys, k)
	}
	return keys
}

// GetConnector returns an authenticated adapter for
// (restaurantID, platform), building and caching one on first use. A
// connector whose credentials fail verification is never cached.
func (r *Registry) GetConnector(ctx context.Context, restaurantID, platformName string) (Connector, error) {
	key := cacheKey{restaurantID: restaurantID, platform: platformName}

	r.mu.RLock()
	if conn, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		return conn, nil
	}
	ctor, registered := r.constructors[platformName]
	r.mu.RUnlock()

	if !registered {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platformName)
	}

	cfg, err := r.configs.GetActive(ctx, restaurantID, platformName)
	if err != nil {
		if errors.Is(err, platform.ErrConfigNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrPlatformNotConfigured, restaurantID, platformName)
		}
		return nil, fmt.Errorf("failed to load platform config: %w", err)
	}

	conn, err := ctor(cfg, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s connector: %w", platformName, err)
	}
	if err := conn.Authenticate(ctx); err != nil {
		return nil, fmt.Errorf("failed to authenticate %s connector: %w", platformName, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another goroutine may have built the same connector concurrently;
	// keep the first one so callers share a single client.
	if cached, ok := r.cache[key]; ok {
		return cached, nil
	}
	r.cache[key] = conn
	metrics.ConnectorCacheSize.Set(float64(len(r.cache)))

	r.logger.Info("connector built",
		zap.String("restaurant_id", restaurantID),
		zap.String("platform", platformName))
	return conn, nil
}

// ClearCache evicts the cached adapter for (restaurantID, platform), so
// the next GetConnector re-reads credentials. Used after a config change.
func (r *Registry) ClearCache(restaurantID, platformName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, cacheKey{restaurantID: restaurantID, platform: platformName})
	metrics.ConnectorCacheSize.Set(float64(len(r.cache)))
}

// ClearAll evicts every cached adapter.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[cacheKey]Connector)
	metrics.ConnectorCacheSize.Set(0)
}
