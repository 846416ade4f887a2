package repository

import (
	"context"

	"oproz-billing/internal/domain/model"
)

// SubscriptionPlanRepository is read-mostly from the billing core; Save and
// Delete exist for seeding and the admin collaborator.
type SubscriptionPlanRepository interface {
	FindByID(ctx context.Context, qx Tx, id string) (*model.SubscriptionPlan, error)
	ListActive(ctx context.Context, qx Tx) ([]*model.SubscriptionPlan, error)
	Save(ctx context.Context, qx Tx, plan *model.SubscriptionPlan) error
	Delete(ctx context.Context, qx Tx, id string) error
}
