package repository

import (
	"context"
	"time"

	"oproz-billing/internal/domain/model"
)

type WebhookEventRepository interface {
	Insert(ctx context.Context, qx Tx, ev *model.WebhookEvent) error
	// ListPending returns pending events oldest first, for replay.
	ListPending(ctx context.Context, qx Tx, limit int) ([]*model.WebhookEvent, error)
	// SetStatus finalizes an event and stamps processed_at.
	SetStatus(ctx context.Context, qx Tx, id string, status model.WebhookEventStatus, at time.Time) error
	// BumpAttempts increments the replay counter.
	BumpAttempts(ctx context.Context, qx Tx, id string) error
	// ExpireOlderThan marks pending events received before the cutoff as
	// expired and returns how many were affected.
	ExpireOlderThan(ctx context.Context, qx Tx, cutoff time.Time) (int64, error)
}
