package connector

import "errors"

var (
	// ErrMissingCredentials means the platform config lacks a credential
	// the adapter needs.
	ErrMissingCredentials = errors.New("missing platform credentials")
	// ErrInvalidSignature means webhook signature verification failed.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrInvalidWebhookPayload means the body could not be normalized.
	ErrInvalidWebhookPayload = errors.New("invalid webhook payload")
	// ErrUnsupportedEntityType means the platform has no concept of the
	// requested entity kind.
	ErrUnsupportedEntityType = errors.New("entity type not supported by platform")
	// ErrExternalNotFound means the platform has no record with the
	// given external id.
	ErrExternalNotFound = errors.New("external record not found")
)
