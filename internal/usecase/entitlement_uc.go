package usecase

import (
	"context"
	"errors"
	"time"

	"oproz-billing/internal/domain"
	"oproz-billing/internal/domain/ports/repository"
)

// SubscriptionDetails is the entitlement view served to sibling services.
type SubscriptionDetails struct {
	IsValid       bool       `json:"is_valid"`
	PlanName      string     `json:"plan_name,omitempty"`
	PlanTier      string     `json:"plan_tier,omitempty"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	DaysRemaining int        `json:"days_remaining"`
}

// EntitlementUseCase is the read path over Success payment records. It never
// mutates anything and is safe to call concurrently.
type EntitlementUseCase interface {
	IsActive(ctx context.Context, userID string, now time.Time) (bool, error)
	Details(ctx context.Context, userID string, now time.Time) (*SubscriptionDetails, error)
}

var _ EntitlementUseCase = (*entitlementUC)(nil)

type entitlementUC struct {
	payments repository.PaymentRecordRepository
	plans    repository.SubscriptionPlanRepository
}

func NewEntitlementUseCase(payments repository.PaymentRecordRepository, plans repository.SubscriptionPlanRepository) EntitlementUseCase {
	return &entitlementUC{payments: payments, plans: plans}
}

func (u *entitlementUC) IsActive(ctx context.Context, userID string, now time.Time) (bool, error) {
	_, err := u.payments.FindActiveByUser(ctx, repository.NoTX, userID, now)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (u *entitlementUC) Details(ctx context.Context, userID string, now time.Time) (*SubscriptionDetails, error) {
	rec, err := u.payments.FindActiveByUser(ctx, repository.NoTX, userID, now)
	if errors.Is(err, domain.ErrNotFound) {
		return &SubscriptionDetails{IsValid: false}, nil
	}
	if err != nil {
		return nil, err
	}

	d := &SubscriptionDetails{
		IsValid:   true,
		StartDate: rec.SubscriptionStart,
		EndDate:   rec.SubscriptionEnd,
	}
	if rec.SubscriptionEnd != nil {
		d.DaysRemaining = int(rec.SubscriptionEnd.Sub(now).Hours() / 24)
	}
	if plan, err := u.plans.FindByID(ctx, repository.NoTX, rec.PlanID); err == nil {
		d.PlanName = plan.Name
		d.PlanTier = string(plan.Tier)
	}
	return d, nil
}
