package sched

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"oproz-billing/internal/domain/model"
	"oproz-billing/internal/domain/ports/adapter"
	"oproz-billing/internal/domain/ports/repository"
	"oproz-billing/internal/usecase"
)

// abandonAfter is how long a Pending record without any gateway payment may
// linger before it is written off as an abandoned checkout.
const abandonAfter = 24 * time.Hour

// PaymentReconciler periodically scans for stale pending payments and
// converges them against the gateway's view. This covers the crash-mid-confirm
// case (a capture exists but the local record never left Pending) and expires
// checkouts the user walked away from.
type PaymentReconciler struct {
	webhooks   usecase.WebhookUseCase
	payments   repository.PaymentRecordRepository
	gateway    adapter.PaymentGateway
	interval   time.Duration
	staleAfter time.Duration
	log        *zerolog.Logger
}

func NewPaymentReconciler(
	webhooks usecase.WebhookUseCase,
	payments repository.PaymentRecordRepository,
	gateway adapter.PaymentGateway,
	interval, staleAfter time.Duration,
	logger *zerolog.Logger,
) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &PaymentReconciler{
		webhooks:   webhooks,
		payments:   payments,
		gateway:    gateway,
		interval:   interval,
		staleAfter: staleAfter,
		log:        logger,
	}
}

func (w *PaymentReconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.payments.ListPendingOlderThan(ctx, repository.NoTX, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("payment-reconciler: list pending failed")
		return
	}
	for _, p := range pending {
		if w.converge(ctx, p) {
			continue
		}
		if time.Since(p.CreatedAt) > abandonAfter {
			w.cancel(ctx, p)
		}
	}
}

// converge asks the gateway for the order's payment attempts and replays any
// terminal one through the same idempotent path a webhook delivery would
// take. A Pending record never carries a payment id of its own, so the lookup
// goes by order id. The return reports whether the record is accounted for on
// the provider side; only a record with zero attempts may be written off as
// abandoned, and a gateway error never rules out a capture.
func (w *PaymentReconciler) converge(ctx context.Context, p *model.PaymentRecord) bool {
	attempts, err := w.gateway.ListPaymentsByOrder(ctx, p.GatewayOrderID)
	if err != nil {
		w.log.Warn().Err(err).Str("payment_id", p.ID).Msg("payment-reconciler: list order payments failed")
		return true
	}
	if len(attempts) == 0 {
		return false
	}

	var details adapter.PaymentDetails
	var eventType string
	for _, d := range attempts {
		if d.Captured() {
			details, eventType = d, "payment.captured"
			break
		}
		if d.Failed() {
			details, eventType = d, "payment.failed"
		}
	}
	if eventType == "" {
		return true // attempts exist but are still in flight at the provider
	}

	raw, _ := json.Marshal(details)
	outcome, err := w.webhooks.Apply(ctx, adapter.GatewayEvent{
		Type:      eventType,
		PaymentID: details.PaymentID,
		OrderID:   p.GatewayOrderID,
		Amount:    details.Amount,
		Method:    details.Method,
		Raw:       raw,
	})
	if err != nil {
		w.log.Error().Err(err).Str("payment_id", p.ID).Msg("payment-reconciler: converge failed")
		return true
	}
	w.log.Info().
		Str("payment_id", p.ID).
		Str("event_type", eventType).
		Str("outcome", string(outcome)).
		Msg("payment-reconciler: converged stale pending record")
	return true
}

func (w *PaymentReconciler) cancel(ctx context.Context, p *model.PaymentRecord) {
	moved, err := w.payments.UpdateStatusIfPending(ctx, repository.NoTX, p.ID, model.PaymentStatusCancelled, time.Now().UTC())
	if err != nil {
		w.log.Error().Err(err).Str("payment_id", p.ID).Msg("payment-reconciler: cancel failed")
		return
	}
	if moved {
		w.log.Info().Str("payment_id", p.ID).Msg("payment-reconciler: cancelled abandoned checkout")
	}
}
