package repository

import (
	"context"
	"time"

	"oproz-billing/internal/domain/model"
)

// PaymentRecordRepository owns the payments table. Activation idempotency is
// enforced here, not in use cases: the table carries unique indexes on
// transaction_id and gateway_payment_id, and Insert surfaces a unique
// violation as domain.ErrAlreadyExists so callers can re-read and return the
// existing record instead of double-activating.
type PaymentRecordRepository interface {
	Insert(ctx context.Context, qx Tx, p *model.PaymentRecord) error
	FindByID(ctx context.Context, qx Tx, id string) (*model.PaymentRecord, error)
	FindByGatewayOrderID(ctx context.Context, qx Tx, orderID string) (*model.PaymentRecord, error)
	FindByGatewayPaymentID(ctx context.Context, qx Tx, paymentID string) (*model.PaymentRecord, error)

	// ActivateIfPending atomically transitions a Pending record to Success,
	// setting the gateway payment id, the payment method (when known, "" keeps
	// the stored value), the subscription window and the payment timestamp in
	// one statement. Returns false when the record was not in Pending (the
	// idempotent no-op path).
	ActivateIfPending(ctx context.Context, qx Tx, id string, gatewayPaymentID, method string, paidAt, subStart, subEnd time.Time) (bool, error)

	// UpdateStatusIfPending covers the Failed/Cancelled transitions; returns
	// false when the record already left Pending.
	UpdateStatusIfPending(ctx context.Context, qx Tx, id string, status model.PaymentStatus, at time.Time) (bool, error)

	// MarkRefunded transitions Success -> Refunded; returns false otherwise.
	MarkRefunded(ctx context.Context, qx Tx, id string, note string, at time.Time) (bool, error)

	ListByUser(ctx context.Context, qx Tx, userID string) ([]*model.PaymentRecord, error)

	// FindActiveByUser returns the Success record whose subscription window
	// covers now, preferring the latest end date when several overlap.
	FindActiveByUser(ctx context.Context, qx Tx, userID string, now time.Time) (*model.PaymentRecord, error)

	ListPendingOlderThan(ctx context.Context, qx Tx, olderThan time.Time, limit int) ([]*model.PaymentRecord, error)

	// SumByPeriod totals FinalAmount of Success records since the start of the
	// given period ("week" | "month" | "year").
	SumByPeriod(ctx context.Context, qx Tx, period string) (int64, error)
}
