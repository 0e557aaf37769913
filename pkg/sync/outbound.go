package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tablepilot/platform-sync/internal/metrics"
	apperrors "github.com/tablepilot/platform-sync/pkg/app/errors"
	"github.com/tablepilot/platform-sync/pkg/entity"
	"github.com/tablepilot/platform-sync/pkg/platform"
	"github.com/tablepilot/platform-sync/pkg/reservation"
	"github.com/tablepilot/platform-sync/pkg/syncmap"
	"github.com/tablepilot/platform-sync/pkg/synclog"
)

// PushReservation propagates a local reservation change to every active
// platform that syncs reservations. excludePlatform names the platform
// the change originally came from, so an inbound change is never bounced
// back to its source. Pushes fan out in parallel; each failure is
// ledgered and scheduled for retry independently, and the first error is
// returned.
func (s *Service) PushReservation(ctx context.Context, restaurantID, reservationID string, action synclog.Action, excludePlatform string) error {
	unlock := s.entityLocks.Lock(string(entity.Reservation) + "/" + reservationID)
	defer unlock()

	res, err := s.reservations.GetReservation(ctx, reservationID)
	if err != nil {
		if errors.Is(err, reservation.ErrNotFound) {
			return apperrors.ResourceNotFoundError(err, "reservation not found")
		}
		return apperrors.GeneralError(err)
	}

	cfgs, err := s.configs.ListActive(ctx, restaurantID)
	if err != nil {
		return apperrors.GeneralError(err)
	}

	var g errgroup.Group
	for _, cfg := range cfgs {
		if !cfg.Syncs(entity.Reservation) || cfg.Platform == excludePlatform {
			continue
		}
		cfg := cfg
		g.Go(func() error {
			pushCtx, cancel := context.WithTimeout(ctx, s.outboundTimeout)
			defer cancel()

			pushErr := s.pushReservationToPlatform(pushCtx, restaurantID, res, cfg.Platform, action, true)
			if err := s.configs.RecordSyncResult(ctx, restaurantID, cfg.Platform, pushErr); err != nil {
				s.logger.Error("failed to record sync result",
					zap.String("platform", cfg.Platform), zap.Error(err))
			}
			return pushErr
		})
	}
	return g.Wait()
}

// pushReservationToPlatform performs one push to one platform. With
// record set, the outcome is ledgered and a retryable failure opens a
// retry entry; the retry worker passes record=false and settles its
// original entry itself.
func (s *Service) pushReservationToPlatform(ctx context.Context, restaurantID string, res *reservation.Reservation, platformName string, action synclog.Action, record bool) error {
	start := time.Now()
	defer func() {
		metrics.OutboundPushDuration.WithLabelValues(platformName, string(action)).Observe(time.Since(start).Seconds())
	}()

	pushErr := s.doPush(ctx, restaurantID, res, platformName, action)

	if pushErr == nil {
		metrics.SyncAttemptsTotal.WithLabelValues(string(synclog.DirectionOutbound), string(synclog.StatusSuccess)).Inc()
		if record {
			s.recordOutbound(ctx, restaurantID, platformName, res, action, synclog.StatusSuccess, "")
		}
		return nil
	}

	metrics.SyncAttemptsTotal.WithLabelValues(string(synclog.DirectionOutbound), "error").Inc()
	s.logger.Warn("outbound push failed",
		zap.String("platform", platformName),
		zap.String("reservation_id", res.ID),
		zap.String("action", string(action)),
		zap.Error(pushErr))

	if m, err := s.mappings.FindMapping(ctx, restaurantID, platformName, entity.Reservation, res.ID); err == nil {
		if err := s.mappings.MarkStatus(ctx, m.ID, syncmap.StatusPending); err != nil {
			s.logger.Error("failed to mark mapping pending", zap.Error(err))
		}
	}

	if record {
		if apperrors.IsRetryable(pushErr) {
			s.openOutboundRetry(ctx, restaurantID, platformName, res, action, pushErr)
		} else {
			s.recordOutbound(ctx, restaurantID, platformName, res, action, synclog.StatusFailed, pushErr.Error())
		}
	}
	return pushErr
}

// doPush dispatches on the mapping state: unmapped reservations are
// created on the platform, mapped ones updated or cancelled.
func (s *Service) doPush(ctx context.Context, restaurantID string, res *reservation.Reservation, platformName string, action synclog.Action) error {
	conn, err := s.registry.GetConnector(ctx, restaurantID, platformName)
	if err != nil {
		return apperrors.ConfigurationError(err, "connector unavailable")
	}

	data := s.toPlatformData(ctx, restaurantID, platformName, res)

	mapping, err := s.mappings.FindMapping(ctx, restaurantID, platformName, entity.Reservation, res.ID)
	if err != nil && !errors.Is(err, syncmap.ErrMappingNotFound) {
		return apperrors.GeneralError(err)
	}

	if mapping == nil {
		if action == synclog.ActionCancel {
			// Never created on this platform; nothing to cancel.
			return nil
		}
		externalID, err := conn.CreateReservation(ctx, data)
		if err != nil {
			return err
		}
		return s.storeMapping(ctx, restaurantID, platformName, res.ID, externalID)
	}

	if action == synclog.ActionCancel {
		if err := conn.CancelReservation(ctx, mapping.ExternalID, res.CancelReason); err != nil {
			return err
		}
	} else {
		if err := conn.UpdateReservation(ctx, mapping.ExternalID, data); err != nil {
			return err
		}
	}
	return s.storeMapping(ctx, restaurantID, platformName, res.ID, mapping.ExternalID)
}

// PushEntity pushes one non-reservation entity to every active platform
// that syncs its type, binding the returned platform identifiers in the
// mapping store.
func (s *Service) PushEntity(ctx context.Context, restaurantID string, entityType entity.Type, localID string, payload map[string]any) error {
	if !entityType.Valid() || entityType == entity.Reservation {
		return apperrors.BadRequestError(nil, fmt.Sprintf("cannot push entity type %q", entityType))
	}

	unlock := s.entityLocks.Lock(string(entityType) + "/" + localID)
	defer unlock()

	cfgs, err := s.configs.ListActive(ctx, restaurantID)
	if err != nil {
		return apperrors.GeneralError(err)
	}

	action := synclog.ActionSyncFull
	if entityType == entity.Availability {
		action = synclog.ActionAvailabilityPush
	}

	var g errgroup.Group
	for _, cfg := range cfgs {
		if !cfg.Syncs(entityType) {
			continue
		}
		cfg := cfg
		g.Go(func() error {
			pushCtx, cancel := context.WithTimeout(ctx, s.outboundTimeout)
			defer cancel()
			return s.pushEntityToPlatform(pushCtx, restaurantID, cfg, entityType, localID, payload, action)
		})
	}
	return g.Wait()
}

func (s *Service) pushEntityToPlatform(ctx context.Context, restaurantID string, cfg *platform.Config, entityType entity.Type, localID string, payload map[string]any, action synclog.Action) error {
	start := time.Now()
	defer func() {
		metrics.OutboundPushDuration.WithLabelValues(cfg.Platform, string(action)).Observe(time.Since(start).Seconds())
	}()

	conn, err := s.registry.GetConnector(ctx, restaurantID, cfg.Platform)
	if err != nil {
		return apperrors.ConfigurationError(err, "connector unavailable")
	}

	externalID, err := conn.SyncEntity(ctx, entityType, payload)
	if err != nil {
		rawPayload, _ := json.Marshal(payload)
		entry := &synclog.Log{
			RestaurantID: restaurantID,
			Platform:     cfg.Platform,
			Direction:    synclog.DirectionOutbound,
			EntityType:   entityType,
			EntityID:     localID,
			Action:       action,
			Payload:      rawPayload,
			ErrorMessage: err.Error(),
		}
		metrics.SyncAttemptsTotal.WithLabelValues(string(synclog.DirectionOutbound), "error").Inc()
		if apperrors.IsRetryable(err) {
			entry.Status = synclog.StatusRetry
			if logErr := s.ledger.CreateLog(ctx, entry); logErr == nil {
				if _, schedErr := s.ledger.ScheduleRetry(ctx, entry.ID, err); schedErr != nil {
					s.logger.Error("failed to schedule entity retry", zap.Error(schedErr))
				}
			}
		} else {
			entry.Status = synclog.StatusFailed
			if logErr := s.ledger.CreateLog(ctx, entry); logErr != nil {
				s.logger.Error("failed to append sync ledger entry", zap.Error(logErr))
			}
		}
		return err
	}

	metrics.SyncAttemptsTotal.WithLabelValues(string(synclog.DirectionOutbound), string(synclog.StatusSuccess)).Inc()

	if externalID != "" {
		if err := s.mappings.UpsertMapping(ctx, &syncmap.Mapping{
			RestaurantID: restaurantID,
			Platform:     cfg.Platform,
			EntityType:   entityType,
			LocalID:      localID,
			ExternalID:   externalID,
			SyncStatus:   syncmap.StatusSynced,
		}); err != nil {
			return apperrors.GeneralError(err)
		}
	}

	if err := s.ledger.CreateLog(ctx, &synclog.Log{
		RestaurantID: restaurantID,
		Platform:     cfg.Platform,
		Direction:    synclog.DirectionOutbound,
		EntityType:   entityType,
		EntityID:     localID,
		ExternalID:   externalID,
		Action:       action,
		Status:       synclog.StatusSuccess,
	}); err != nil {
		s.logger.Error("failed to append sync ledger entry", zap.Error(err))
	}
	return nil
}

func (s *Service) storeMapping(ctx context.Context, restaurantID, platformName, localID, externalID string) error {
	err := s.mappings.UpsertMapping(ctx, &syncmap.Mapping{
		RestaurantID: restaurantID,
		Platform:     platformName,
		EntityType:   entity.Reservation,
		LocalID:      localID,
		ExternalID:   externalID,
		SyncStatus:   syncmap.StatusSynced,
	})
	if err != nil {
		if errors.Is(err, syncmap.ErrExternalIDClaimed) {
			return apperrors.ConflictError(err, "booking id belongs to another reservation")
		}
		return apperrors.GeneralError(err)
	}
	return nil
}

func (s *Service) recordOutbound(ctx context.Context, restaurantID, platformName string, res *reservation.Reservation, action synclog.Action, status synclog.Status, detail string) {
	externalID := ""
	if m, err := s.mappings.FindMapping(ctx, restaurantID, platformName, entity.Reservation, res.ID); err == nil {
		externalID = m.ExternalID
	}

	if err := s.ledger.CreateLog(ctx, &synclog.Log{
		RestaurantID: restaurantID,
		Platform:     platformName,
		Direction:    synclog.DirectionOutbound,
		EntityType:   entity.Reservation,
		EntityID:     res.ID,
		ExternalID:   externalID,
		Action:       action,
		Status:       status,
		ErrorMessage: detail,
	}); err != nil {
		s.logger.Error("failed to append sync ledger entry", zap.Error(err))
	}
}

func (s *Service) openOutboundRetry(ctx context.Context, restaurantID, platformName string, res *reservation.Reservation, action synclog.Action, cause error) {
	entry := &synclog.Log{
		RestaurantID: restaurantID,
		Platform:     platformName,
		Direction:    synclog.DirectionOutbound,
		EntityType:   entity.Reservation,
		EntityID:     res.ID,
		Action:       action,
		Status:       synclog.StatusRetry,
		ErrorMessage: cause.Error(),
	}
	if err := s.ledger.CreateLog(ctx, entry); err != nil {
		s.logger.Error("failed to open outbound retry entry", zap.Error(err))
		return
	}
	if _, err := s.ledger.ScheduleRetry(ctx, entry.ID, cause); err != nil {
		s.logger.Error("failed to schedule outbound retry", zap.Error(err))
	}
}
