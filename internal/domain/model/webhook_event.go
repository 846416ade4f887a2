package model

import "time"

type WebhookEventStatus string

const (
	WebhookEventStatusPending WebhookEventStatus = "pending" // no matching record yet; will be replayed
	WebhookEventStatusApplied WebhookEventStatus = "applied"
	WebhookEventStatusIgnored WebhookEventStatus = "ignored" // duplicate, unknown type, or terminal record
	WebhookEventStatusExpired WebhookEventStatus = "expired" // gave up replaying
)

// WebhookEvent stores a gateway notification so that delivery before the
// synchronous confirmation path is deferred instead of lost. The replay
// worker drains pending events until they match a record or expire.
type WebhookEvent struct {
	ID               string // UUID
	EventType        string // e.g. payment.captured
	GatewayPaymentID string
	GatewayOrderID   string
	Payload          []byte // raw body as received
	Status           WebhookEventStatus
	Attempts         int
	ReceivedAt       time.Time
	ProcessedAt      *time.Time
}
