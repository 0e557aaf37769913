package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/tablepilot/platform-sync/internal/metrics"
	apperrors "github.com/tablepilot/platform-sync/pkg/app/errors"
	"github.com/tablepilot/platform-sync/pkg/connector"
	"github.com/tablepilot/platform-sync/pkg/entity"
	"github.com/tablepilot/platform-sync/pkg/mastering"
	"github.com/tablepilot/platform-sync/pkg/reservation"
	"github.com/tablepilot/platform-sync/pkg/syncmap"
	"github.com/tablepilot/platform-sync/pkg/synclog"
)

// InboundResult summarizes how one platform event was handled.
type InboundResult struct {
	Status  synclog.Status
	Action  synclog.Action
	LocalID string
	Detail  string
}

// ProcessWebhook verifies and applies one live webhook delivery.
// Signature failures and malformed payloads surface as service errors
// for the HTTP layer; processing failures after verification are logged
// to the ledger and scheduled for retry.
func (s *Service) ProcessWebhook(ctx context.Context, platformName, restaurantID string, r *http.Request, body []byte) (*InboundResult, error) {
	conn, err := s.registry.GetConnector(ctx, restaurantID, platformName)
	if err != nil {
		if errors.Is(err, connector.ErrUnsupportedPlatform) || errors.Is(err, connector.ErrPlatformNotConfigured) {
			metrics.WebhookEventsTotal.WithLabelValues(platformName, "unknown", "rejected").Inc()
			return nil, apperrors.ResourceNotFoundError(err, "unknown platform integration")
		}
		return nil, apperrors.GeneralError(err)
	}

	event, err := conn.ParseWebhook(r, body)
	if err != nil {
		switch {
		case errors.Is(err, connector.ErrInvalidSignature):
			metrics.WebhookEventsTotal.WithLabelValues(platformName, "unknown", "unauthorized").Inc()
			return nil, apperrors.UnAuthorizedError(err, "webhook signature verification failed")
		case errors.Is(err, connector.ErrInvalidWebhookPayload):
			metrics.WebhookEventsTotal.WithLabelValues(platformName, "unknown", "invalid").Inc()
			return nil, apperrors.BadRequestError(err, "invalid webhook payload")
		default:
			return nil, err
		}
	}

	result, err := s.processEvent(ctx, conn, restaurantID, event, true)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(platformName, string(event.Type), "error").Inc()
		return nil, err
	}
	metrics.WebhookEventsTotal.WithLabelValues(platformName, string(event.Type), string(result.Status)).Inc()
	return result, nil
}

// processEvent runs the event state machine. With record set, the
// outcome is appended to the ledger and a processing failure opens a
// retry entry; replays off the ledger pass record=false and settle their
// original entry instead.
func (s *Service) processEvent(ctx context.Context, conn connector.Connector, restaurantID string, event *connector.WebhookEvent, record bool) (*InboundResult, error) {
	platformName := conn.Platform()

	unlock := s.inboundLocks.Lock(platformName + "/" + event.ExternalID)
	defer unlock()

	processed, err := s.ledger.HasProcessedEvent(ctx, restaurantID, platformName, event.EventID)
	if err != nil {
		return nil, apperrors.GeneralError(err)
	}
	if processed {
		return &InboundResult{
			Status: synclog.StatusSkipped,
			Action: eventAction(event.Type),
			Detail: "duplicate delivery",
		}, nil
	}

	var result *InboundResult
	switch event.Type {
	case connector.EventReservationCreated:
		result, err = s.handleCreated(ctx, restaurantID, platformName, event)
	case connector.EventReservationUpdated:
		result, err = s.handleUpdated(ctx, restaurantID, platformName, event)
	case connector.EventReservationCancelled:
		result, err = s.handleCancelled(ctx, restaurantID, platformName, event)
	case connector.EventReservationStatusChanged:
		result, err = s.handleStatusChanged(ctx, restaurantID, platformName, event)
	default:
		err = apperrors.NotSupportedError(nil, fmt.Sprintf("unhandled event type %s", event.Type))
	}

	if err != nil {
		if record {
			s.openInboundRetry(ctx, restaurantID, platformName, event, err)
		}
		metrics.SyncAttemptsTotal.WithLabelValues(string(synclog.DirectionInbound), "error").Inc()
		return nil, err
	}

	if record {
		s.recordInbound(ctx, restaurantID, platformName, event, result)
	}
	metrics.SyncAttemptsTotal.WithLabelValues(string(synclog.DirectionInbound), string(result.Status)).Inc()
	if result.Status == synclog.StatusConflict {
		metrics.ConflictsTotal.WithLabelValues(string(entity.Reservation), result.Detail).Inc()
	}
	return result, nil
}

func (s *Service) handleCreated(ctx context.Context, restaurantID, platformName string, event *connector.WebhookEvent) (*InboundResult, error) {
	data := event.Reservation

	// Out-of-order delivery: a created event for a booking we already
	// track is treated as an update.
	if _, err := s.mappings.FindByExternalID(ctx, restaurantID, platformName, entity.Reservation, event.ExternalID); err == nil {
		return s.handleUpdated(ctx, restaurantID, platformName, event)
	} else if !errors.Is(err, syncmap.ErrMappingNotFound) {
		return nil, apperrors.GeneralError(err)
	}

	// A booking carrying our reference id is the platform's echo of a
	// reservation this engine pushed out. Bind the mapping and stop;
	// applying it would bounce the change back out.
	if data.LocalReferenceID != "" {
		if local, err := s.reservations.GetReservation(ctx, data.LocalReferenceID); err == nil {
			if err := s.bindMapping(ctx, restaurantID, platformName, local.ID, event, syncmap.StatusSynced); err != nil {
				return nil, err
			}
			return &InboundResult{
				Status:  synclog.StatusSkipped,
				Action:  synclog.ActionCreate,
				LocalID: local.ID,
				Detail:  "echo of local push",
			}, nil
		} else if !errors.Is(err, reservation.ErrNotFound) {
			return nil, apperrors.GeneralError(err)
		}
	}

	res := remoteReservation(data, restaurantID, platformName)

	if data.Guest.Phone != "" {
		cust, err := s.reservations.UpsertCustomerByPhone(ctx, &reservation.Customer{
			RestaurantID: restaurantID,
			Name:         data.Guest.Name,
			Phone:        data.Guest.Phone,
			Email:        data.Guest.Email,
			Allergies:    data.Guest.Allergies,
		})
		if err != nil {
			return nil, apperrors.GeneralError(err)
		}
		res.CustomerID = cust.ID
	}

	s.resolveInboundRefs(ctx, restaurantID, platformName, data, res)

	if err := s.reservations.CreateReservation(ctx, res); err != nil {
		return nil, apperrors.GeneralError(err)
	}
	if err := s.bindMapping(ctx, restaurantID, platformName, res.ID, event, syncmap.StatusSynced); err != nil {
		return nil, err
	}

	s.logger.Info("reservation created from platform event",
		zap.String("platform", platformName),
		zap.String("external_id", event.ExternalID),
		zap.String("reservation_id", res.ID))

	return &InboundResult{
		Status:  synclog.StatusSuccess,
		Action:  synclog.ActionCreate,
		LocalID: res.ID,
	}, nil
}

func (s *Service) handleUpdated(ctx context.Context, restaurantID, platformName string, event *connector.WebhookEvent) (*InboundResult, error) {
	data := event.Reservation

	mapping, err := s.mappings.FindByExternalID(ctx, restaurantID, platformName, entity.Reservation, event.ExternalID)
	if errors.Is(err, syncmap.ErrMappingNotFound) {
		// Updated arrived before created; fall back to the create flow.
		return s.handleCreated(ctx, restaurantID, platformName, event)
	}
	if err != nil {
		return nil, apperrors.GeneralError(err)
	}

	local, err := s.reservations.GetReservation(ctx, mapping.LocalID)
	if errors.Is(err, reservation.ErrNotFound) {
		return &InboundResult{
			Status:  synclog.StatusFailed,
			Action:  synclog.ActionUpdate,
			LocalID: mapping.LocalID,
			Detail:  "mapped local reservation is missing",
		}, nil
	}
	if err != nil {
		return nil, apperrors.GeneralError(err)
	}

	remote := remoteReservation(data, restaurantID, platformName)

	// Every update goes through the mastering rule; the winner decides
	// whether the remote state is applied or the local one stands.
	cfgs, err := s.configs.ListActive(ctx, restaurantID)
	if err != nil {
		return nil, apperrors.GeneralError(err)
	}
	master := mastering.ReservationMaster(cfgs, local)

	resolution := mastering.ResolveConflict(master, platformName, local, remote)

	if resolution.Winner == mastering.WinnerRemote {
		if data.Guest.Phone != "" {
			cust, err := s.reservations.UpsertCustomerByPhone(ctx, &reservation.Customer{
				RestaurantID: restaurantID,
				Name:         data.Guest.Name,
				Phone:        data.Guest.Phone,
				Email:        data.Guest.Email,
				Allergies:    data.Guest.Allergies,
			})
			if err != nil {
				return nil, apperrors.GeneralError(err)
			}
			resolution.Merged.CustomerID = cust.ID
		}
		s.resolveInboundRefs(ctx, restaurantID, platformName, data, resolution.Merged)
	}

	// The version counter advances only when the merged state actually
	// differs from what is stored. A local win writes nothing unless the
	// safety merge picked up new allergies, and a replayed delivery of an
	// already-applied update writes nothing at all.
	changed := !sameReservationState(local, resolution.Merged)
	if changed {
		if err := s.updateWithRetry(ctx, resolution.Merged); err != nil {
			return nil, err
		}
	}

	if resolution.Winner == mastering.WinnerLocal {
		if err := s.bindMapping(ctx, restaurantID, platformName, resolution.Merged.ID, event, syncmap.StatusConflict); err != nil {
			return nil, err
		}
		s.logger.Warn("reservation conflict resolved",
			zap.String("platform", platformName),
			zap.String("reservation_id", local.ID),
			zap.String("winner", string(resolution.Winner)),
			zap.String("detail", resolution.Description))
		return &InboundResult{
			Status:  synclog.StatusConflict,
			Action:  synclog.ActionUpdate,
			LocalID: resolution.Merged.ID,
			Detail:  resolution.Description,
		}, nil
	}

	if err := s.bindMapping(ctx, restaurantID, platformName, resolution.Merged.ID, event, syncmap.StatusSynced); err != nil {
		return nil, err
	}

	if !changed {
		return &InboundResult{
			Status:  synclog.StatusSkipped,
			Action:  synclog.ActionUpdate,
			LocalID: resolution.Merged.ID,
			Detail:  "remote state already applied",
		}, nil
	}

	return &InboundResult{
		Status:  synclog.StatusSuccess,
		Action:  synclog.ActionUpdate,
		LocalID: resolution.Merged.ID,
	}, nil
}

func (s *Service) handleCancelled(ctx context.Context, restaurantID, platformName string, event *connector.WebhookEvent) (*InboundResult, error) {
	data := event.Reservation

	mapping, err := s.mappings.FindByExternalID(ctx, restaurantID, platformName, entity.Reservation, event.ExternalID)
	if errors.Is(err, syncmap.ErrMappingNotFound) {
		return &InboundResult{
			Status: synclog.StatusSkipped,
			Action: synclog.ActionCancel,
			Detail: "no local reservation for cancelled booking",
		}, nil
	}
	if err != nil {
		return nil, apperrors.GeneralError(err)
	}

	local, err := s.reservations.GetReservation(ctx, mapping.LocalID)
	if err != nil {
		if errors.Is(err, reservation.ErrNotFound) {
			return &InboundResult{
				Status:  synclog.StatusSkipped,
				Action:  synclog.ActionCancel,
				LocalID: mapping.LocalID,
				Detail:  "mapped local reservation is missing",
			}, nil
		}
		return nil, apperrors.GeneralError(err)
	}

	// A seated, completed or no-show reservation reflects what happened
	// in the room; a late platform cancellation cannot undo it.
	if local.Status.TerminalLocal() {
		if err := s.bindMapping(ctx, restaurantID, platformName, local.ID, event, syncmap.StatusConflict); err != nil {
			return nil, err
		}
		return &InboundResult{
			Status:  synclog.StatusConflict,
			Action:  synclog.ActionCancel,
			LocalID: local.ID,
			Detail:  fmt.Sprintf("reservation is %s, cancellation refused", local.Status),
		}, nil
	}

	if local.Status == reservation.StatusCancelled {
		return &InboundResult{
			Status:  synclog.StatusSkipped,
			Action:  synclog.ActionCancel,
			LocalID: local.ID,
			Detail:  "already cancelled",
		}, nil
	}

	local.Status = reservation.StatusCancelled
	local.CancelReason = data.CancelReason
	local.CancelledBy = platformName
	if err := s.updateWithRetry(ctx, local); err != nil {
		return nil, err
	}
	if err := s.bindMapping(ctx, restaurantID, platformName, local.ID, event, syncmap.StatusSynced); err != nil {
		return nil, err
	}

	return &InboundResult{
		Status:  synclog.StatusSuccess,
		Action:  synclog.ActionCancel,
		LocalID: local.ID,
	}, nil
}

func (s *Service) handleStatusChanged(ctx context.Context, restaurantID, platformName string, event *connector.WebhookEvent) (*InboundResult, error) {
	data := event.Reservation

	mapping, err := s.mappings.FindByExternalID(ctx, restaurantID, platformName, entity.Reservation, event.ExternalID)
	if errors.Is(err, syncmap.ErrMappingNotFound) {
		return &InboundResult{
			Status: synclog.StatusSkipped,
			Action: synclog.ActionStatusChange,
			Detail: "no local reservation for status change",
		}, nil
	}
	if err != nil {
		return nil, apperrors.GeneralError(err)
	}

	local, err := s.reservations.GetReservation(ctx, mapping.LocalID)
	if err != nil {
		if errors.Is(err, reservation.ErrNotFound) {
			return &InboundResult{
				Status:  synclog.StatusSkipped,
				Action:  synclog.ActionStatusChange,
				LocalID: mapping.LocalID,
				Detail:  "mapped local reservation is missing",
			}, nil
		}
		return nil, apperrors.GeneralError(err)
	}

	newStatus := fromPlatformStatus(data.Status)
	if local.Status == newStatus {
		return &InboundResult{
			Status:  synclog.StatusSkipped,
			Action:  synclog.ActionStatusChange,
			LocalID: local.ID,
			Detail:  "status already " + string(newStatus),
		}, nil
	}

	if local.Status.TerminalLocal() {
		if err := s.bindMapping(ctx, restaurantID, platformName, local.ID, event, syncmap.StatusConflict); err != nil {
			return nil, err
		}
		return &InboundResult{
			Status:  synclog.StatusConflict,
			Action:  synclog.ActionStatusChange,
			LocalID: local.ID,
			Detail:  fmt.Sprintf("reservation is %s, terminal local status kept", local.Status),
		}, nil
	}

	// A remote status transition only applies when the sending platform
	// masters this reservation; otherwise the local status stands.
	cfgs, err := s.configs.ListActive(ctx, restaurantID)
	if err != nil {
		return nil, apperrors.GeneralError(err)
	}
	if master := mastering.ReservationMaster(cfgs, local); master != platformName {
		if err := s.bindMapping(ctx, restaurantID, platformName, local.ID, event, syncmap.StatusConflict); err != nil {
			return nil, err
		}
		detail := "local side masters reservations, local status kept"
		if master != mastering.SelfMaster {
			detail = fmt.Sprintf("%s masters reservations, local status kept", master)
		}
		return &InboundResult{
			Status:  synclog.StatusConflict,
			Action:  synclog.ActionStatusChange,
			LocalID: local.ID,
			Detail:  detail,
		}, nil
	}

	local.Status = newStatus
	if newStatus == reservation.StatusCancelled {
		local.CancelReason = data.CancelReason
		local.CancelledBy = platformName
	}
	if err := s.updateWithRetry(ctx, local); err != nil {
		return nil, err
	}
	if err := s.bindMapping(ctx, restaurantID, platformName, local.ID, event, syncmap.StatusSynced); err != nil {
		return nil, err
	}

	return &InboundResult{
		Status:  synclog.StatusSuccess,
		Action:  synclog.ActionStatusChange,
		LocalID: local.ID,
	}, nil
}

// updateWithRetry retries a version-guarded write a few times against
// concurrent local writers. Events for the same booking are already
// serialized by the keyed lock.
func (s *Service) updateWithRetry(ctx context.Context, res *reservation.Reservation) error {
	const attempts = 3
	for i := 0; i < attempts; i++ {
		err := s.reservations.UpdateReservation(ctx, res)
		if err == nil {
			return nil
		}
		if !errors.Is(err, reservation.ErrVersionConflict) {
			return apperrors.GeneralError(err)
		}
		fresh, err := s.reservations.GetReservation(ctx, res.ID)
		if err != nil {
			return apperrors.GeneralError(err)
		}
		res.Version = fresh.Version
	}
	return apperrors.ConflictError(reservation.ErrVersionConflict, "reservation is being modified concurrently")
}

func (s *Service) bindMapping(ctx context.Context, restaurantID, platformName, localID string, event *connector.WebhookEvent, status syncmap.SyncStatus) error {
	err := s.mappings.UpsertMapping(ctx, &syncmap.Mapping{
		RestaurantID: restaurantID,
		Platform:     platformName,
		EntityType:   entity.Reservation,
		LocalID:      localID,
		ExternalID:   event.ExternalID,
		ExternalData: rawToMap(event.Raw),
		SyncStatus:   status,
	})
	if err != nil {
		if errors.Is(err, syncmap.ErrExternalIDClaimed) {
			return apperrors.ConflictError(err, "booking id belongs to another reservation")
		}
		return apperrors.GeneralError(err)
	}
	return nil
}

func (s *Service) recordInbound(ctx context.Context, restaurantID, platformName string, event *connector.WebhookEvent, result *InboundResult) {
	entry := &synclog.Log{
		RestaurantID: restaurantID,
		Platform:     platformName,
		Direction:    synclog.DirectionInbound,
		EntityType:   entity.Reservation,
		EntityID:     result.LocalID,
		ExternalID:   event.ExternalID,
		Action:       result.Action,
		Status:       result.Status,
		EventID:      event.EventID,
		Payload:      event.Raw,
		ErrorMessage: result.Detail,
	}
	if err := s.ledger.CreateLog(ctx, entry); err != nil {
		s.logger.Error("failed to append sync ledger entry", zap.Error(err))
	}
}

// openInboundRetry records a failed event with its raw payload and puts
// it on the retry schedule.
func (s *Service) openInboundRetry(ctx context.Context, restaurantID, platformName string, event *connector.WebhookEvent, cause error) {
	entry := &synclog.Log{
		RestaurantID: restaurantID,
		Platform:     platformName,
		Direction:    synclog.DirectionInbound,
		EntityType:   entity.Reservation,
		ExternalID:   event.ExternalID,
		Action:       eventAction(event.Type),
		Status:       synclog.StatusRetry,
		EventID:      event.EventID,
		Payload:      event.Raw,
		ErrorMessage: cause.Error(),
	}
	if err := s.ledger.CreateLog(ctx, entry); err != nil {
		s.logger.Error("failed to open inbound retry entry", zap.Error(err))
		return
	}
	if _, err := s.ledger.ScheduleRetry(ctx, entry.ID, cause); err != nil {
		s.logger.Error("failed to schedule inbound retry", zap.Error(err))
	}
}

func eventAction(t connector.EventType) synclog.Action {
	switch t {
	case connector.EventReservationCreated:
		return synclog.ActionCreate
	case connector.EventReservationCancelled:
		return synclog.ActionCancel
	case connector.EventReservationStatusChanged:
		return synclog.ActionStatusChange
	default:
		return synclog.ActionUpdate
	}
}

func remoteReservation(data *connector.ReservationData, restaurantID, platformName string) *reservation.Reservation {
	return &reservation.Reservation{
		RestaurantID:   restaurantID,
		Status:         fromPlatformStatus(data.Status),
		PartySize:      data.PartySize,
		StartsAt:       data.StartsAt,
		EndsAt:         data.EndsAt,
		Notes:          data.Notes,
		Allergies:      data.Guest.Allergies,
		DepositAmount:  data.DepositAmount,
		CancelReason:   data.CancelReason,
		OriginPlatform: platformName,
	}
}

// sameReservationState reports whether writing merged would store the
// same guest-visible state res already holds. Bookkeeping fields
// (version, timestamps, origin) are ignored.
func sameReservationState(res, merged *reservation.Reservation) bool {
	return res.Status == merged.Status &&
		res.PartySize == merged.PartySize &&
		res.StartsAt.Equal(merged.StartsAt) &&
		res.EndsAt.Equal(merged.EndsAt) &&
		res.Notes == merged.Notes &&
		res.CancelReason == merged.CancelReason &&
		res.CustomerID == merged.CustomerID &&
		res.ServiceID == merged.ServiceID &&
		res.DiningRoomID == merged.DiningRoomID &&
		res.OfferID == merged.OfferID &&
		res.DepositAmount.Equal(merged.DepositAmount) &&
		sameStringSlice(res.TableIDs, merged.TableIDs) &&
		sameStringSet(res.Allergies, merged.Allergies)
}

func sameStringSlice(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// sameStringSet compares ignoring order; allergy unions preserve content
// but not necessarily position.
func sameStringSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, s := range a {
		seen[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := seen[s]; !ok {
			return false
		}
	}
	return true
}

func rawToMap(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
