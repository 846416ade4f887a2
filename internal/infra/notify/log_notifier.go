package notify

import (
	"context"

	"github.com/rs/zerolog"

	"oproz-billing/internal/domain/model"
	"oproz-billing/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*LogNotifier)(nil)

// LogNotifier emits structured log lines for payment outcomes. It stands in
// for the mail/SMS collaborator, which consumes the same events downstream.
type LogNotifier struct {
	log *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: logger}
}

func (n *LogNotifier) PaymentSucceeded(_ context.Context, rec *model.PaymentRecord) {
	n.log.Info().
		Str("payment_id", rec.ID).
		Str("user_id", rec.UserID).
		Str("plan_id", rec.PlanID).
		Int64("final_amount", rec.FinalAmount).
		Msg("payment succeeded")
}

func (n *LogNotifier) PaymentFailed(_ context.Context, rec *model.PaymentRecord) {
	n.log.Warn().
		Str("payment_id", rec.ID).
		Str("user_id", rec.UserID).
		Str("plan_id", rec.PlanID).
		Msg("payment failed")
}
