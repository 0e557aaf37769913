// Package resos adapts the resOS booking platform to the connector
// contract.
package resos

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/tablepilot/platform-sync/pkg/app/errors"
	"github.com/tablepilot/platform-sync/pkg/connector"
	"github.com/tablepilot/platform-sync/pkg/entity"
	"github.com/tablepilot/platform-sync/pkg/platform"
)

// PlatformKey is the adapter key under which the connector registers.
const PlatformKey = "resos"

const (
	credentialAPIKey  = "api_key"
	credentialBaseURL = "base_url"

	dateFormat = "2006-01-02"
	timeFormat = "15:04"
)

// Connector implements the platform contract for resOS.
type Connector struct {
	cfg    *platform.Config
	client *client
	logger *zap.Logger
}

// New builds a resOS connector from a platform config. The config must
// carry an api_key credential; base_url is optional and defaults to the
// public API.
func New(cfg *platform.Config, logger *zap.Logger) (connector.Connector, error) {
	apiKey := cfg.Credentials[credentialAPIKey]
	if apiKey == "" {
		return nil, fmt.Errorf("%w: resos requires %q", connector.ErrMissingCredentials, credentialAPIKey)
	}

	return &Connector{
		cfg:    cfg,
		client: newClient(cfg.Credentials[credentialBaseURL], apiKey, cfg.Locale, 30*time.Second),
		logger: logger.With(zap.String("platform", PlatformKey), zap.String("restaurant_id", cfg.RestaurantID)),
	}, nil
}

func (c *Connector) Platform() string { return PlatformKey }

// Authenticate fetches the restaurant profile, which fails with a
// configuration error when the api key is rejected.
func (c *Connector) Authenticate(ctx context.Context) error {
	return c.client.getRestaurant(ctx)
}

func (c *Connector) CreateReservation(ctx context.Context, data *connector.ReservationData) (string, error) {
	externalID, err := c.client.createBooking(ctx, toBooking(data))
	if err != nil {
		return "", err
	}
	c.logger.Info("booking created", zap.String("external_id", externalID))
	return externalID, nil
}

// UpdateReservation reads the current booking first so fields resOS
// owns, like table assignment made by their floor plan, are not
// clobbered by a partial local update.
func (c *Connector) UpdateReservation(ctx context.Context, externalID string, data *connector.ReservationData) error {
	remote, err := c.client.getBooking(ctx, externalID)
	if err != nil {
		return err
	}

	merged := toBooking(data)
	merged.ID = ""
	if len(merged.Tables) == 0 {
		merged.Tables = remote.Tables
	}
	if merged.AreaID == "" {
		merged.AreaID = remote.AreaID
	}
	if merged.RestaurantComment == "" {
		merged.RestaurantComment = remote.RestaurantComment
	}
	// Status transitions go through the dedicated endpoint below.
	merged.Status = ""

	if err := c.client.updateBooking(ctx, externalID, merged); err != nil {
		return err
	}

	wantStatus := toBookingStatus(data.Status)
	if data.Status != "" && wantStatus != remote.Status {
		if err := c.client.setBookingStatus(ctx, externalID, wantStatus, ""); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connector) CancelReservation(ctx context.Context, externalID, reason string) error {
	return c.client.setBookingStatus(ctx, externalID, bookingStatusCancelled, reason)
}

func (c *Connector) GetAvailability(ctx context.Context, date time.Time, partySize int) ([]connector.AvailabilitySlot, error) {
	resp, err := c.client.getAvailability(ctx, date.Format(dateFormat), partySize)
	if err != nil {
		return nil, err
	}

	slots := make([]connector.AvailabilitySlot, 0, len(resp.Times))
	for _, t := range resp.Times {
		at, err := time.Parse(dateFormat+" "+timeFormat, date.Format(dateFormat)+" "+t.Time)
		if err != nil {
			return nil, apperrors.DependencyFailureError(err, fmt.Sprintf("resos returned a malformed slot time %q", t.Time))
		}
		covers := 0
		if t.Available {
			covers = t.Seats
			if covers <= 0 {
				// resOS reports the slot open without a seat count.
				covers = connector.AvailabilityUnknown
			}
		}
		slots = append(slots, connector.AvailabilitySlot{Time: at, RemainingCovers: covers})
	}
	return slots, nil
}

// entityPaths maps syncable entity kinds onto resOS endpoints. Menu
// items, orders and customers have no resOS representation.
var entityPaths = map[entity.Type]string{
	entity.Table:        "/tables",
	entity.DiningRoom:   "/areas",
	entity.Offer:        "/offers",
	entity.Availability: "/openingHours",
}

func (c *Connector) SyncEntity(ctx context.Context, entityType entity.Type, payload map[string]any) (string, error) {
	path, ok := entityPaths[entityType]
	if !ok {
		return "", fmt.Errorf("%w: %s on resos", connector.ErrUnsupportedEntityType, entityType)
	}
	return c.client.upsertEntity(ctx, path, payload)
}

// ParseWebhook verifies the body against the configured secret. An
// integration registered without a secret delivers unsigned webhooks;
// those parse without verification.
func (c *Connector) ParseWebhook(r *http.Request, body []byte) (*connector.WebhookEvent, error) {
	if c.cfg.WebhookSecret != "" {
		signature := r.Header.Get(signatureHeader)
		if signature == "" || !verifySignature(c.cfg.WebhookSecret, body, signature) {
			return nil, connector.ErrInvalidSignature
		}
	}

	return normalizeEvent(body)
}

func (c *Connector) ParseStoredEvent(payload []byte) (*connector.WebhookEvent, error) {
	return normalizeEvent(payload)
}

func toBooking(data *connector.ReservationData) *booking {
	b := &booking{
		ID:           data.ExternalID,
		Status:       toBookingStatus(data.Status),
		People:       data.PartySize,
		Tables:       data.ExternalTableIDs,
		AreaID:       data.ExternalDiningRoomID,
		OpeningID:    data.ExternalServiceID,
		OfferID:      data.ExternalOfferID,
		Comment:      data.Notes,
		CancelReason: data.CancelReason,
		ReferenceID:  data.LocalReferenceID,
	}
	if !data.StartsAt.IsZero() {
		b.Date = data.StartsAt.Format(dateFormat)
		b.Time = data.StartsAt.Format(timeFormat)
	}
	if !data.EndsAt.IsZero() && data.EndsAt.After(data.StartsAt) {
		b.Duration = int(data.EndsAt.Sub(data.StartsAt) / time.Minute)
	}
	if !data.DepositAmount.IsZero() {
		b.DepositAmount = data.DepositAmount.String()
	}
	b.Guest.Name = data.Guest.Name
	b.Guest.Phone = data.Guest.Phone
	b.Guest.Email = data.Guest.Email
	b.Guest.Allergies = data.Guest.Allergies
	return b
}

func fromBooking(b *booking) (*connector.ReservationData, error) {
	data := &connector.ReservationData{
		ExternalID: b.ID,
		Status:     fromBookingStatus(b.Status),
		PartySize:  b.People,
		Guest: connector.GuestData{
			Name:      b.Guest.Name,
			Phone:     b.Guest.Phone,
			Email:     b.Guest.Email,
			Allergies: b.Guest.Allergies,
		},
		ExternalServiceID:    b.OpeningID,
		ExternalDiningRoomID: b.AreaID,
		ExternalOfferID:      b.OfferID,
		ExternalTableIDs:     b.Tables,
		Notes:                b.Comment,
		CancelReason:         b.CancelReason,
		LocalReferenceID:     b.ReferenceID,
	}

	if b.Date != "" && b.Time != "" {
		startsAt, err := time.Parse(dateFormat+" "+timeFormat, b.Date+" "+b.Time)
		if err != nil {
			return nil, fmt.Errorf("%w: bad booking time %q %q", connector.ErrInvalidWebhookPayload, b.Date, b.Time)
		}
		data.StartsAt = startsAt
		if b.Duration > 0 {
			data.EndsAt = startsAt.Add(time.Duration(b.Duration) * time.Minute)
		}
	}

	if b.DepositAmount != "" {
		amount, err := decimal.NewFromString(b.DepositAmount)
		if err != nil {
			return nil, fmt.Errorf("%w: bad deposit amount %q", connector.ErrInvalidWebhookPayload, b.DepositAmount)
		}
		data.DepositAmount = amount
	}

	return data, nil
}
