package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"oproz-billing/internal/domain"
	"oproz-billing/internal/domain/model"
	"oproz-billing/internal/domain/ports/adapter"
	"oproz-billing/internal/domain/ports/repository"
	"oproz-billing/internal/infra/metrics"
)

// WebhookUseCase reconciles asynchronous gateway events against locally
// stored payment records. Every transition is idempotent: redelivered events
// converge to the state a single delivery would have produced.
type WebhookUseCase interface {
	// Reconcile applies an event; when no matching record exists yet the
	// event is queued for replay instead of dropped.
	Reconcile(ctx context.Context, ev adapter.GatewayEvent) (model.WebhookEventStatus, error)

	// Apply attempts the transition without queueing. The replay worker uses
	// it to drain stored events.
	Apply(ctx context.Context, ev adapter.GatewayEvent) (model.WebhookEventStatus, error)
}

var _ WebhookUseCase = (*webhookUC)(nil)

type webhookUC struct {
	payments repository.PaymentRecordRepository
	plans    repository.SubscriptionPlanRepository
	offers   repository.OfferRepository
	events   repository.WebhookEventRepository
	notifier adapter.Notifier
	tm       repository.TransactionManager
	log      *zerolog.Logger
}

func NewWebhookUseCase(
	payments repository.PaymentRecordRepository,
	plans repository.SubscriptionPlanRepository,
	offers repository.OfferRepository,
	events repository.WebhookEventRepository,
	notifier adapter.Notifier,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) WebhookUseCase {
	return &webhookUC{
		payments: payments,
		plans:    plans,
		offers:   offers,
		events:   events,
		notifier: notifier,
		tm:       tm,
		log:      logger,
	}
}

func (u *webhookUC) Reconcile(ctx context.Context, ev adapter.GatewayEvent) (model.WebhookEventStatus, error) {
	status, err := u.Apply(ctx, ev)
	if err != nil {
		return status, err
	}
	if status == model.WebhookEventStatusPending {
		// Arrived before the synchronous confirmation; keep it for replay.
		stored := &model.WebhookEvent{
			ID:               uuid.NewString(),
			EventType:        ev.Type,
			GatewayPaymentID: ev.PaymentID,
			GatewayOrderID:   ev.OrderID,
			Payload:          ev.Raw,
			Status:           model.WebhookEventStatusPending,
			ReceivedAt:       time.Now().UTC(),
		}
		if err := u.events.Insert(ctx, repository.NoTX, stored); err != nil {
			return status, err
		}
		u.log.Info().
			Str("event_type", ev.Type).
			Str("gateway_payment_id", ev.PaymentID).
			Msg("webhook event queued for replay")
	}
	metrics.IncWebhookEvent(ev.Type, string(status))
	return status, nil
}

func (u *webhookUC) Apply(ctx context.Context, ev adapter.GatewayEvent) (model.WebhookEventStatus, error) {
	switch ev.Type {
	case "payment.captured":
		return u.applyCaptured(ctx, ev)
	case "payment.failed":
		return u.applyFailed(ctx, ev)
	case "refund.processed":
		return u.applyRefunded(ctx, ev)
	case "subscription.cancelled":
		// acknowledged gap: cancellation handling lives outside this core
		u.log.Info().Str("gateway_payment_id", ev.PaymentID).Msg("subscription cancelled event received")
		return model.WebhookEventStatusIgnored, nil
	default:
		u.log.Info().Str("event_type", ev.Type).Msg("unhandled webhook event")
		return model.WebhookEventStatusIgnored, nil
	}
}

func (u *webhookUC) applyCaptured(ctx context.Context, ev adapter.GatewayEvent) (model.WebhookEventStatus, error) {
	status := model.WebhookEventStatusPending
	var activated *model.PaymentRecord

	txErr := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, qx repository.Tx) error {
		// A record already carrying this payment id reached Success first;
		// its window must not be overwritten.
		if _, err := u.payments.FindByGatewayPaymentID(ctx, qx, ev.PaymentID); err == nil {
			status = model.WebhookEventStatusIgnored
			return nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		rec, err := u.payments.FindByGatewayOrderID(ctx, qx, ev.OrderID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil // stays pending
		}
		if err != nil {
			return err
		}

		if rec.Status != model.PaymentStatusPending {
			// terminal record; duplicate or late delivery
			status = model.WebhookEventStatusIgnored
			return nil
		}

		if ev.Amount > 0 && ev.Amount != rec.FinalAmount {
			u.log.Warn().
				Str("payment_id", rec.ID).
				Int64("expected", rec.FinalAmount).
				Int64("captured", ev.Amount).
				Msg("webhook capture amount differs from local record")
		}

		now := time.Now().UTC()
		subStart := now
		subEnd := model.AddPlanDuration(subStart, u.planDuration(ctx, qx, rec.PlanID))
		method := model.MethodFromString(ev.Method)
		var methodStr string
		if method != nil {
			methodStr = string(*method)
		}
		ok, err := u.payments.ActivateIfPending(ctx, qx, rec.ID, ev.PaymentID, methodStr, now, subStart, subEnd)
		if err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
			return err
		}
		if err != nil || !ok {
			status = model.WebhookEventStatusIgnored
			return nil
		}

		if rec.OfferID != nil && rec.DiscountAmount > 0 {
			consumed, err := u.offers.ConsumeUsage(ctx, qx, *rec.OfferID)
			if err != nil {
				return err
			}
			if !consumed {
				u.log.Warn().Str("offer_id", *rec.OfferID).Msg("offer cap exhausted before webhook activation")
			}
		}

		rec.Status = model.PaymentStatusSuccess
		rec.GatewayPaymentID = &ev.PaymentID
		rec.Method = method
		rec.PaymentDate = now
		rec.SubscriptionStart = &subStart
		rec.SubscriptionEnd = &subEnd
		rec.UpdatedAt = now
		activated = rec
		status = model.WebhookEventStatusApplied
		return nil
	})
	if txErr != nil {
		return model.WebhookEventStatusPending, txErr
	}

	if activated != nil {
		metrics.IncPayment(string(model.PaymentStatusSuccess))
		metrics.AddPaymentRevenue(activated.Currency, activated.FinalAmount)
		u.notifier.PaymentSucceeded(ctx, activated)
		u.log.Info().
			Str("payment_id", activated.ID).
			Str("gateway_payment_id", ev.PaymentID).
			Msg("payment activated via webhook")
	}
	return status, nil
}

func (u *webhookUC) applyFailed(ctx context.Context, ev adapter.GatewayEvent) (model.WebhookEventStatus, error) {
	rec, err := u.findByPaymentOrOrder(ctx, ev)
	if errors.Is(err, domain.ErrNotFound) {
		return model.WebhookEventStatusPending, nil
	}
	if err != nil {
		return model.WebhookEventStatusPending, err
	}
	if rec.Status != model.PaymentStatusPending {
		return model.WebhookEventStatusIgnored, nil
	}

	now := time.Now().UTC()
	moved, err := u.payments.UpdateStatusIfPending(ctx, repository.NoTX, rec.ID, model.PaymentStatusFailed, now)
	if err != nil {
		return model.WebhookEventStatusPending, err
	}
	if !moved {
		return model.WebhookEventStatusIgnored, nil
	}
	rec.Status = model.PaymentStatusFailed
	rec.UpdatedAt = now
	metrics.IncPayment(string(model.PaymentStatusFailed))
	u.notifier.PaymentFailed(ctx, rec)
	return model.WebhookEventStatusApplied, nil
}

func (u *webhookUC) applyRefunded(ctx context.Context, ev adapter.GatewayEvent) (model.WebhookEventStatus, error) {
	rec, err := u.payments.FindByGatewayPaymentID(ctx, repository.NoTX, ev.PaymentID)
	if errors.Is(err, domain.ErrNotFound) {
		return model.WebhookEventStatusPending, nil
	}
	if err != nil {
		return model.WebhookEventStatusPending, err
	}

	now := time.Now().UTC()
	moved, err := u.payments.MarkRefunded(ctx, repository.NoTX, rec.ID, "refund via gateway webhook", now)
	if err != nil {
		return model.WebhookEventStatusPending, err
	}
	if !moved {
		return model.WebhookEventStatusIgnored, nil
	}
	metrics.IncPayment(string(model.PaymentStatusRefunded))
	return model.WebhookEventStatusApplied, nil
}

func (u *webhookUC) findByPaymentOrOrder(ctx context.Context, ev adapter.GatewayEvent) (*model.PaymentRecord, error) {
	if ev.PaymentID != "" {
		if rec, err := u.payments.FindByGatewayPaymentID(ctx, repository.NoTX, ev.PaymentID); err == nil {
			return rec, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	if ev.OrderID == "" {
		return nil, domain.ErrNotFound
	}
	return u.payments.FindByGatewayOrderID(ctx, repository.NoTX, ev.OrderID)
}

// planDuration falls back to monthly when the plan row is gone; activation
// should not be lost over a deleted plan.
func (u *webhookUC) planDuration(ctx context.Context, qx repository.Tx, planID string) model.PlanDuration {
	plan, err := u.plans.FindByID(ctx, qx, planID)
	if err != nil {
		u.log.Warn().Str("plan_id", planID).Msg("plan missing during webhook activation; defaulting to monthly window")
		return model.PlanDurationMonthly
	}
	return plan.Duration
}
