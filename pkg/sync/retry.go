package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tablepilot/platform-sync/internal/metrics"
	apperrors "github.com/tablepilot/platform-sync/pkg/app/errors"
	"github.com/tablepilot/platform-sync/pkg/entity"
	"github.com/tablepilot/platform-sync/pkg/reservation"
	"github.com/tablepilot/platform-sync/pkg/syncmap"
	"github.com/tablepilot/platform-sync/pkg/synclog"
)

// ProcessRetries re-runs due ledger entries, oldest due first, up to
// limit. Each re-run settles its original entry: success closes it, a
// transient failure advances it one rung down the backoff ladder, a
// permanent failure closes it as failed. Returns how many entries were
// attempted.
func (s *Service) ProcessRetries(ctx context.Context, limit int) (int, error) {
	due, err := s.ledger.GetPendingRetries(ctx, limit)
	if err != nil {
		return 0, apperrors.GeneralError(err)
	}
	metrics.PendingRetries.Set(float64(len(due)))

	for _, l := range due {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		s.retryOne(ctx, l)
	}
	return len(due), nil
}

func (s *Service) retryOne(ctx context.Context, l *synclog.Log) {
	var err error
	switch l.Direction {
	case synclog.DirectionInbound:
		err = s.replayInbound(ctx, l)
	case synclog.DirectionOutbound:
		err = s.replayOutbound(ctx, l)
	default:
		err = apperrors.GeneralError(fmt.Errorf("unknown sync direction %q", l.Direction))
	}

	if err == nil {
		if markErr := s.ledger.MarkSucceeded(ctx, l.ID); markErr != nil {
			s.logger.Error("failed to close retry entry", zap.String("log_id", l.ID), zap.Error(markErr))
		}
		s.logger.Info("retry succeeded",
			zap.String("log_id", l.ID),
			zap.String("direction", string(l.Direction)),
			zap.Int("attempt", l.RetryCount))
		return
	}

	if !apperrors.IsRetryable(err) {
		s.logger.Warn("retry failed permanently",
			zap.String("log_id", l.ID),
			zap.String("direction", string(l.Direction)),
			zap.Error(err))
		if markErr := s.ledger.MarkFailed(ctx, l.ID, err); markErr != nil {
			s.logger.Error("failed to fail retry entry", zap.String("log_id", l.ID), zap.Error(markErr))
		}
		return
	}

	scheduled, schedErr := s.ledger.ScheduleRetry(ctx, l.ID, err)
	if schedErr != nil {
		s.logger.Error("failed to reschedule retry", zap.String("log_id", l.ID), zap.Error(schedErr))
		return
	}
	if !scheduled {
		metrics.RetriesExhaustedTotal.WithLabelValues(string(l.Direction)).Inc()
		s.logger.Error("retry ladder exhausted",
			zap.String("log_id", l.ID),
			zap.String("direction", string(l.Direction)),
			zap.String("platform", l.Platform),
			zap.Error(err))
	}
}

// replayInbound re-runs a stored platform event. The payload already
// passed signature verification when it was first received, so the
// replay enters through the stored-event parser.
func (s *Service) replayInbound(ctx context.Context, l *synclog.Log) error {
	if len(l.Payload) == 0 {
		return apperrors.BadRequestError(nil, "retry entry has no stored payload")
	}

	conn, err := s.registry.GetConnector(ctx, l.RestaurantID, l.Platform)
	if err != nil {
		return apperrors.ConfigurationError(err, "connector unavailable")
	}

	event, err := conn.ParseStoredEvent(l.Payload)
	if err != nil {
		return apperrors.BadRequestError(err, "stored payload no longer parses")
	}

	_, err = s.processEvent(ctx, conn, l.RestaurantID, event, false)
	return err
}

func (s *Service) replayOutbound(ctx context.Context, l *synclog.Log) error {
	pushCtx, cancel := context.WithTimeout(ctx, s.outboundTimeout)
	defer cancel()

	if l.EntityType == entity.Reservation {
		unlock := s.entityLocks.Lock(string(entity.Reservation) + "/" + l.EntityID)
		defer unlock()

		res, err := s.reservations.GetReservation(ctx, l.EntityID)
		if err != nil {
			if errors.Is(err, reservation.ErrNotFound) {
				return apperrors.ResourceNotFoundError(err, "reservation no longer exists")
			}
			return apperrors.GeneralError(err)
		}

		pushErr := s.pushReservationToPlatform(pushCtx, l.RestaurantID, res, l.Platform, l.Action, false)
		if recErr := s.configs.RecordSyncResult(ctx, l.RestaurantID, l.Platform, pushErr); recErr != nil {
			s.logger.Error("failed to record sync result", zap.Error(recErr))
		}
		return pushErr
	}

	// Non-reservation entities replay from the stored payload.
	if len(l.Payload) == 0 {
		return apperrors.BadRequestError(nil, "retry entry has no stored payload")
	}
	var payload map[string]any
	if err := json.Unmarshal(l.Payload, &payload); err != nil {
		return apperrors.BadRequestError(err, "stored payload no longer parses")
	}

	conn, err := s.registry.GetConnector(ctx, l.RestaurantID, l.Platform)
	if err != nil {
		return apperrors.ConfigurationError(err, "connector unavailable")
	}

	externalID, err := conn.SyncEntity(pushCtx, l.EntityType, payload)
	if err != nil {
		return err
	}
	if externalID != "" {
		if err := s.mappings.UpsertMapping(ctx, &syncmap.Mapping{
			RestaurantID: l.RestaurantID,
			Platform:     l.Platform,
			EntityType:   l.EntityType,
			LocalID:      l.EntityID,
			ExternalID:   externalID,
			SyncStatus:   syncmap.StatusSynced,
		}); err != nil {
			return apperrors.GeneralError(err)
		}
	}
	return nil
}
