package resos

import "github.com/tablepilot/platform-sync/pkg/connector"

// resOS booking statuses. "noshow" exists on the platform but the
// normalized vocabulary folds it into cancelled; no-show is decided
// locally by front-of-house staff.
const (
	bookingStatusRequest   = "request"
	bookingStatusBooked    = "booked"
	bookingStatusAccepted  = "accepted"
	bookingStatusArrived   = "arrived"
	bookingStatusDone      = "done"
	bookingStatusCancelled = "cancelled"
	bookingStatusNoShow    = "noshow"
)

// fromBookingStatus maps a resOS status onto the normalized vocabulary.
// Unknown statuses map to pending so a new platform status never drops
// an event.
func fromBookingStatus(s string) connector.PlatformStatus {
	switch s {
	case bookingStatusRequest:
		return connector.PlatformStatusPending
	case bookingStatusBooked, bookingStatusAccepted:
		return connector.PlatformStatusConfirmed
	case bookingStatusArrived:
		return connector.PlatformStatusSeated
	case bookingStatusDone:
		return connector.PlatformStatusCompleted
	case bookingStatusCancelled, bookingStatusNoShow:
		return connector.PlatformStatusCancelled
	default:
		return connector.PlatformStatusPending
	}
}

// toBookingStatus maps the normalized vocabulary onto the resOS status
// set.
func toBookingStatus(s connector.PlatformStatus) string {
	switch s {
	case connector.PlatformStatusPending:
		return bookingStatusRequest
	case connector.PlatformStatusConfirmed:
		return bookingStatusBooked
	case connector.PlatformStatusSeated:
		return bookingStatusArrived
	case connector.PlatformStatusCompleted:
		return bookingStatusDone
	case connector.PlatformStatusCancelled:
		return bookingStatusCancelled
	default:
		return bookingStatusRequest
	}
}
