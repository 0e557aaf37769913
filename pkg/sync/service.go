// Package sync is the synchronization engine: it applies verified
// platform events to local state, pushes local changes out to every
// connected platform, and re-runs failed attempts off the ledger.
package sync

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/tablepilot/platform-sync/pkg/connector"
	"github.com/tablepilot/platform-sync/pkg/entity"
	"github.com/tablepilot/platform-sync/pkg/reservation"
	"github.com/tablepilot/platform-sync/pkg/syncmap"
)

// ConnectorRegistry is the slice of the connector registry the engine
// needs.
type ConnectorRegistry interface {
	GetConnector(ctx context.Context, restaurantID, platformName string) (connector.Connector, error)
}

// Service wires the stores, the mastering policy and the connector
// registry into the inbound, outbound and retry flows.
type Service struct {
	reservations reservation.Store
	mappings     syncmap.Store
	ledger       LedgerStore
	configs      ConfigStore
	registry     ConnectorRegistry
	logger       *zap.Logger

	// outboundTimeout bounds one push to one platform.
	outboundTimeout time.Duration

	// inboundLocks serializes events per (platform, external id);
	// entityLocks serializes outbound work per (entity type, local id).
	inboundLocks *keyedMutex
	entityLocks  *keyedMutex
}

// NewService creates the sync engine.
func NewService(
	reservations reservation.Store,
	mappings syncmap.Store,
	ledger LedgerStore,
	configs ConfigStore,
	registry ConnectorRegistry,
	logger *zap.Logger,
	outboundTimeout time.Duration,
) *Service {
	if outboundTimeout <= 0 {
		outboundTimeout = 30 * time.Second
	}
	return &Service{
		reservations:    reservations,
		mappings:        mappings,
		ledger:          ledger,
		configs:         configs,
		registry:        registry,
		logger:          logger,
		outboundTimeout: outboundTimeout,
		inboundLocks:    newKeyedMutex(),
		entityLocks:     newKeyedMutex(),
	}
}

// fromPlatformStatus maps the normalized platform vocabulary onto the
// local status set. Platforms never report no_show; that state is set
// locally by front-of-house staff.
func fromPlatformStatus(s connector.PlatformStatus) reservation.Status {
	switch s {
	case connector.PlatformStatusPending:
		return reservation.StatusPending
	case connector.PlatformStatusConfirmed:
		return reservation.StatusConfirmed
	case connector.PlatformStatusSeated:
		return reservation.StatusSeated
	case connector.PlatformStatusCompleted:
		return reservation.StatusCompleted
	case connector.PlatformStatusCancelled:
		return reservation.StatusCancelled
	default:
		return reservation.StatusPending
	}
}

// toPlatformStatus maps a local status onto the normalized vocabulary.
// no_show has no platform equivalent and is reported as cancelled.
func toPlatformStatus(s reservation.Status) connector.PlatformStatus {
	switch s {
	case reservation.StatusPending:
		return connector.PlatformStatusPending
	case reservation.StatusConfirmed:
		return connector.PlatformStatusConfirmed
	case reservation.StatusSeated:
		return connector.PlatformStatusSeated
	case reservation.StatusCompleted:
		return connector.PlatformStatusCompleted
	case reservation.StatusNoShow, reservation.StatusCancelled:
		return connector.PlatformStatusCancelled
	default:
		return connector.PlatformStatusPending
	}
}

// resolveInboundRefs translates a payload's platform identifiers for
// nested references into local ids through the mapping store. Unmapped
// references resolve to empty; a reservation is never dropped over a
// missing side object.
func (s *Service) resolveInboundRefs(ctx context.Context, restaurantID, platformName string, data *connector.ReservationData, res *reservation.Reservation) {
	lookup := func(t entity.Type, externalID string) string {
		if externalID == "" {
			return ""
		}
		m, err := s.mappings.FindByExternalID(ctx, restaurantID, platformName, t, externalID)
		if err != nil {
			if !errors.Is(err, syncmap.ErrMappingNotFound) {
				s.logger.Warn("reference lookup failed",
					zap.String("entity_type", string(t)),
					zap.String("external_id", externalID),
					zap.Error(err))
			}
			return ""
		}
		return m.LocalID
	}

	res.ServiceID = lookup(entity.Availability, data.ExternalServiceID)
	res.DiningRoomID = lookup(entity.DiningRoom, data.ExternalDiningRoomID)
	res.OfferID = lookup(entity.Offer, data.ExternalOfferID)

	res.TableIDs = res.TableIDs[:0]
	for _, tableID := range data.ExternalTableIDs {
		if localID := lookup(entity.Table, tableID); localID != "" {
			res.TableIDs = append(res.TableIDs, localID)
		}
	}
}

// resolveOutboundRefs translates local reference ids into the platform's
// identifiers for an outbound payload.
func (s *Service) resolveOutboundRefs(ctx context.Context, restaurantID, platformName string, res *reservation.Reservation, data *connector.ReservationData) {
	lookup := func(t entity.Type, localID string) string {
		if localID == "" {
			return ""
		}
		m, err := s.mappings.FindMapping(ctx, restaurantID, platformName, t, localID)
		if err != nil {
			return ""
		}
		return m.ExternalID
	}

	data.ExternalServiceID = lookup(entity.Availability, res.ServiceID)
	data.ExternalDiningRoomID = lookup(entity.DiningRoom, res.DiningRoomID)
	data.ExternalOfferID = lookup(entity.Offer, res.OfferID)
	for _, tableID := range res.TableIDs {
		if externalID := lookup(entity.Table, tableID); externalID != "" {
			data.ExternalTableIDs = append(data.ExternalTableIDs, externalID)
		}
	}
}

// toPlatformData builds the outbound payload for a reservation,
// including the guest contact block when the customer record resolves.
func (s *Service) toPlatformData(ctx context.Context, restaurantID, platformName string, res *reservation.Reservation) *connector.ReservationData {
	data := &connector.ReservationData{
		Status:           toPlatformStatus(res.Status),
		PartySize:        res.PartySize,
		StartsAt:         res.StartsAt,
		EndsAt:           res.EndsAt,
		Notes:            res.Notes,
		DepositAmount:    res.DepositAmount,
		CancelReason:     res.CancelReason,
		LocalReferenceID: res.ID,
		Guest: connector.GuestData{
			Allergies: res.Allergies,
		},
	}

	if res.CustomerID != "" {
		cust, err := s.reservations.GetCustomer(ctx, res.CustomerID)
		if err == nil {
			data.Guest.Name = cust.Name
			data.Guest.Phone = cust.Phone
			data.Guest.Email = cust.Email
		}
	}

	s.resolveOutboundRefs(ctx, restaurantID, platformName, res, data)
	return data
}
