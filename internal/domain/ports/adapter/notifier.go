package adapter

import (
	"context"

	"oproz-billing/internal/domain/model"
)

// Notifier is the hook the email/notification collaborator is wired into.
// Calls are fire-and-forget: implementations log failures and never return
// them, so a broken mailer cannot fail an activation.
type Notifier interface {
	PaymentSucceeded(ctx context.Context, rec *model.PaymentRecord)
	PaymentFailed(ctx context.Context, rec *model.PaymentRecord)
}
