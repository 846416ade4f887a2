package repository

import (
	"context"

	"oproz-billing/internal/domain/model"
)

type OfferRepository interface {
	FindByID(ctx context.Context, qx Tx, id string) (*model.Offer, error)
	// FindByCode expects a code already passed through model.NormalizeOfferCode.
	FindByCode(ctx context.Context, qx Tx, code string) (*model.Offer, error)
	Save(ctx context.Context, qx Tx, offer *model.Offer) error

	// ConsumeUsage increments used_count by one, guarded by the usage cap in
	// the same statement (used_count < max_usage_count when a cap is set).
	// Returns false when the cap is exhausted; a capped offer can therefore
	// never be oversold under concurrent redemption.
	ConsumeUsage(ctx context.Context, qx Tx, id string) (bool, error)
}
