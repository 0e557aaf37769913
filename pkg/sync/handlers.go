package sync

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/tablepilot/platform-sync/pkg/app/errors"
	apphttp "github.com/tablepilot/platform-sync/pkg/app/http"
	"github.com/tablepilot/platform-sync/pkg/auth"
)

// maxWebhookBody bounds webhook request bodies at 1 MiB.
const maxWebhookBody = 1 << 20

// RegistryAdmin is the cache management slice of the connector registry.
type RegistryAdmin interface {
	ClearCache(restaurantID, platformName string)
	ClearAll()
}

// Handler exposes the engine over HTTP: the public webhook receiver and
// the operator endpoints.
type Handler struct {
	svc        *Service
	registry   RegistryAdmin
	validator  *auth.OperatorValidator
	retryLimit int
	logger     *zap.Logger
}

// NewHandler creates the HTTP handler. retryLimit caps one manual retry
// sweep.
func NewHandler(svc *Service, registry RegistryAdmin, validator *auth.OperatorValidator, retryLimit int, logger *zap.Logger) *Handler {
	if retryLimit <= 0 {
		retryLimit = 50
	}
	return &Handler{
		svc:        svc,
		registry:   registry,
		validator:  validator,
		retryLimit: retryLimit,
		logger:     logger,
	}
}

// RegisterRoutes mounts the webhook and operator endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/{platform}/{restaurantID}", apphttp.HandleError(h.receiveWebhook))

	r.Route("/ops", func(r chi.Router) {
		r.Use(h.validator.Middleware)
		r.Post("/retries/process", apphttp.HandleError(h.processRetries))
		r.Delete("/connectors/cache", apphttp.HandleError(h.clearConnectorCache))
	})
}

type webhookResponse struct {
	Status        string `json:"status"`
	Action        string `json:"action"`
	ReservationID string `json:"reservation_id,omitempty"`
	Detail        string `json:"detail,omitempty"`
}

// receiveWebhook applies one platform delivery. Conflicts and skipped
// events still answer 200: the event was received and settled, and the
// platform must not redeliver it.
func (h *Handler) receiveWebhook(w http.ResponseWriter, r *http.Request) error {
	platformName := chi.URLParam(r, "platform")
	restaurantID := chi.URLParam(r, "restaurantID")
	if platformName == "" || restaurantID == "" {
		return apperrors.BadRequestError(nil, "platform and restaurant id are required")
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request body")
	}

	result, err := h.svc.ProcessWebhook(r.Context(), platformName, restaurantID, r, body)
	if err != nil {
		return err
	}

	apphttp.WriteJSON(w, http.StatusOK, &webhookResponse{
		Status:        string(result.Status),
		Action:        string(result.Action),
		ReservationID: result.LocalID,
		Detail:        result.Detail,
	})
	return nil
}

type retriesResponse struct {
	Processed int `json:"processed"`
}

// processRetries runs one retry sweep on demand, ahead of the scheduled
// worker.
func (h *Handler) processRetries(w http.ResponseWriter, r *http.Request) error {
	limit := h.retryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return apperrors.BadRequestError(err, "limit must be a positive integer")
		}
		limit = parsed
	}

	processed, err := h.svc.ProcessRetries(r.Context(), limit)
	if err != nil {
		return err
	}

	h.logger.Info("manual retry sweep completed", zap.Int("processed", processed))
	apphttp.WriteJSON(w, http.StatusOK, &retriesResponse{Processed: processed})
	return nil
}

// clearConnectorCache evicts cached connectors after a credential or
// config change. With restaurant_id and platform it evicts one entry;
// with neither it evicts everything.
func (h *Handler) clearConnectorCache(w http.ResponseWriter, r *http.Request) error {
	restaurantID := r.URL.Query().Get("restaurant_id")
	platformName := r.URL.Query().Get("platform")

	switch {
	case restaurantID != "" && platformName != "":
		h.registry.ClearCache(restaurantID, platformName)
	case restaurantID == "" && platformName == "":
		h.registry.ClearAll()
	default:
		return apperrors.BadRequestError(nil, "restaurant_id and platform must be given together")
	}

	h.logger.Info("connector cache cleared",
		zap.String("restaurant_id", restaurantID),
		zap.String("platform", platformName))
	apphttp.WriteJSON(w, http.StatusOK, map[string]bool{"cleared": true})
	return nil
}
