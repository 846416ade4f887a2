package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"oproz-billing/internal/domain/model"
	"oproz-billing/internal/domain/ports/adapter"
	"oproz-billing/internal/domain/ports/repository"
	"oproz-billing/internal/infra/metrics"
	"oproz-billing/internal/infra/payment"
	"oproz-billing/internal/usecase"
)

// WebhookReplayer drains stored webhook events that arrived before their
// matching payment record existed. Events that still find no match keep
// their pending status until the retention window closes, then expire.
type WebhookReplayer struct {
	webhooks  usecase.WebhookUseCase
	events    repository.WebhookEventRepository
	interval  time.Duration
	retention time.Duration
	log       *zerolog.Logger
}

func NewWebhookReplayer(
	webhooks usecase.WebhookUseCase,
	events repository.WebhookEventRepository,
	interval, retention time.Duration,
	logger *zerolog.Logger,
) *WebhookReplayer {
	if interval <= 0 {
		interval = time.Minute
	}
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &WebhookReplayer{
		webhooks:  webhooks,
		events:    events,
		interval:  interval,
		retention: retention,
		log:       logger,
	}
}

func (w *WebhookReplayer) Start(ctx context.Context) {
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

func (w *WebhookReplayer) tick(ctx context.Context) {
	expired, err := w.events.ExpireOlderThan(ctx, repository.NoTX, time.Now().Add(-w.retention))
	if err != nil {
		w.log.Error().Err(err).Msg("webhook-replayer: expiry sweep failed")
	} else if expired > 0 {
		w.log.Warn().Int64("count", expired).Msg("webhook-replayer: expired unmatched events")
	}

	pending, err := w.events.ListPending(ctx, repository.NoTX, 100)
	if err != nil {
		w.log.Error().Err(err).Msg("webhook-replayer: list pending failed")
		return
	}
	for _, ev := range pending {
		w.replay(ctx, ev)
	}
}

func (w *WebhookReplayer) replay(ctx context.Context, stored *model.WebhookEvent) {
	if err := w.events.BumpAttempts(ctx, repository.NoTX, stored.ID); err != nil {
		w.log.Error().Err(err).Str("event_id", stored.ID).Msg("webhook-replayer: bump attempts failed")
	}

	// Re-parse the raw payload for fields (amount, method) not stored in
	// columns; fall back to the columns when the payload no longer parses.
	ev, err := payment.ParseWebhookEvent(stored.Payload)
	if err != nil {
		ev = adapter.GatewayEvent{
			Type:      stored.EventType,
			PaymentID: stored.GatewayPaymentID,
			OrderID:   stored.GatewayOrderID,
			Raw:       stored.Payload,
		}
	}

	outcome, err := w.webhooks.Apply(ctx, ev)
	if err != nil {
		w.log.Error().Err(err).Str("event_id", stored.ID).Msg("webhook-replayer: apply failed")
		metrics.IncWebhookReplay("error")
		return
	}
	metrics.IncWebhookReplay(string(outcome))
	if outcome == model.WebhookEventStatusPending {
		return // still no matching record; retry next tick
	}
	if err := w.events.SetStatus(ctx, repository.NoTX, stored.ID, outcome, time.Now().UTC()); err != nil {
		w.log.Error().Err(err).Str("event_id", stored.ID).Msg("webhook-replayer: set status failed")
		return
	}
	w.log.Info().
		Str("event_id", stored.ID).
		Str("event_type", stored.EventType).
		Str("outcome", string(outcome)).
		Msg("webhook-replayer: drained stored event")
}
