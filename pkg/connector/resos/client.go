package resos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/tablepilot/platform-sync/pkg/app/errors"
	"github.com/tablepilot/platform-sync/pkg/connector"
)

const defaultBaseURL = "https://api.resos.com/v1"

// client wraps the resOS REST API. All calls share one bounded-timeout
// HTTP client.
type client struct {
	baseURL string
	apiKey  string
	locale  string
	http    *http.Client
}

func newClient(baseURL, apiKey, locale string, timeout time.Duration) *client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		locale:  locale,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode resos request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build resos request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	// Guest-facing texts (confirmation emails, sms) come back in the
	// restaurant's configured language.
	if c.locale != "" {
		req.Header.Set("Accept-Language", c.locale)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return apperrors.ConnectionTimeoutError(err, "resos api call timed out")
		}
		return apperrors.DependencyFailureError(err, "resos api unreachable")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.DependencyFailureError(err, "failed to read resos response")
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusNotFound:
		return connector.ErrExternalNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apperrors.ConfigurationError(
			fmt.Errorf("resos api error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))),
			"resos rejected the configured api key")
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return apperrors.BadRequestError(
			fmt.Errorf("resos api error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))),
			"resos rejected the request")
	default:
		return apperrors.DependencyFailureError(
			fmt.Errorf("resos api error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))),
			"resos api failure")
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return apperrors.DependencyFailureError(err, "failed to decode resos response")
		}
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

// booking is the resOS wire representation of a reservation.
type booking struct {
	ID       string `json:"_id,omitempty"`
	Status   string `json:"status,omitempty"`
	People   int    `json:"people,omitempty"`
	Date     string `json:"date,omitempty"`
	Time     string `json:"time,omitempty"`
	Duration int    `json:"duration,omitempty"`

	Guest struct {
		Name            string `json:"name,omitempty"`
		Phone           string `json:"phone,omitempty"`
		Email           string `json:"email,omitempty"`
		NotificationSms bool   `json:"notificationSms,omitempty"`

		Allergies []string `json:"allergies,omitempty"`
	} `json:"guest,omitempty"`

	Tables    []string `json:"tables,omitempty"`
	AreaID    string   `json:"areaId,omitempty"`
	OpeningID string   `json:"openingId,omitempty"`
	OfferID   string   `json:"offerId,omitempty"`

	Comment           string `json:"comment,omitempty"`
	RestaurantComment string `json:"restaurantComment,omitempty"`
	CancelReason      string `json:"cancelReason,omitempty"`

	// ReferenceID carries our reservation id on bookings this engine
	// created, so inbound processing can recognize its own echoes.
	ReferenceID string `json:"referenceId,omitempty"`

	DepositAmount string `json:"depositAmount,omitempty"`
}

func (c *client) getBooking(ctx context.Context, id string) (*booking, error) {
	var b booking
	if err := c.do(ctx, http.MethodGet, "/bookings/"+id, nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *client) createBooking(ctx context.Context, b *booking) (string, error) {
	var created booking
	if err := c.do(ctx, http.MethodPost, "/bookings", b, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", apperrors.DependencyFailureError(nil, "resos returned a booking without an id")
	}
	return created.ID, nil
}

func (c *client) updateBooking(ctx context.Context, id string, b *booking) error {
	return c.do(ctx, http.MethodPut, "/bookings/"+id, b, nil)
}

func (c *client) setBookingStatus(ctx context.Context, id, status, reason string) error {
	payload := map[string]string{"status": status}
	if reason != "" {
		payload["cancelReason"] = reason
	}
	return c.do(ctx, http.MethodPut, "/bookings/"+id+"/status", payload, nil)
}

type availabilityTime struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
	Seats     int    `json:"seats"`
}

type availabilityResponse struct {
	Date  string             `json:"date"`
	Times []availabilityTime `json:"times"`
}

func (c *client) getAvailability(ctx context.Context, date string, people int) (*availabilityResponse, error) {
	var out availabilityResponse
	path := fmt.Sprintf("/bookingFlow/availability?date=%s&people=%d", date, people)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) getRestaurant(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/restaurant", nil, nil)
}

type syncedEntity struct {
	ID string `json:"_id"`
}

func (c *client) upsertEntity(ctx context.Context, path string, payload map[string]any) (string, error) {
	var out syncedEntity
	if err := c.do(ctx, http.MethodPost, path, payload, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}
