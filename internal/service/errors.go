package service

import (
	"github.com/davishaupt/baldr/internal/domain"
)

// Webhook ingestion errors - rejected before any state mutation.
var (
	ErrInvalidAccessToken = domain.Errorf(domain.EUNAUTHORIZED, "", "Invalid webhook access token")
	ErrUnknownEventType   = domain.Errorf(domain.EINVALID, "", "Unknown webhook event type")
	ErrMalformedPayload   = domain.Errorf(domain.EINVALID, "", "Webhook payload is not valid JSON")
)

// Reconciliation errors
var (
	ErrNoSubscriptionBound = domain.Errorf(domain.EINVALID, "", "Tenant has no external subscription to sync")
)

// Provisioning errors
var (
	ErrAlreadySubscribed = domain.Errorf(domain.ECONFLICT, "", "Tenant already has an active subscription")
)
