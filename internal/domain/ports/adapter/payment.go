package adapter

import (
	"context"
	"time"
)

// PaymentDetails is the provider-agnostic view of a payment fetched from the
// gateway, used by the reconciler to converge stale pending records.
type PaymentDetails struct {
	PaymentID  string
	OrderID    string
	Status     string // provider status: created | authorized | captured | failed | refunded
	Amount     int64  // minor units
	Currency   string
	Method     string
	CapturedAt time.Time
}

// Captured reports whether the provider considers the payment collected.
func (d PaymentDetails) Captured() bool { return d.Status == "captured" }

// Failed reports a terminal provider-side failure.
func (d PaymentDetails) Failed() bool { return d.Status == "failed" }

// GatewayEvent is a webhook notification after signature verification and
// provider-specific parsing. Raw keeps the original body for the deferred
// reconciliation queue.
type GatewayEvent struct {
	Type      string // payment.captured | payment.failed | refund.processed | subscription.cancelled | ...
	PaymentID string
	OrderID   string
	Amount    int64 // minor units; 0 when the provider omitted it
	Method    string
	Raw       []byte
}

type RefundResult struct {
	RefundID string
	Status   string // provider status, e.g. pending | processed
	Amount   int64  // minor units
}

// PaymentGateway is the port for the external payment provider.
//
// CreateOrder, FetchPayment and Refund are remote calls bounded by ctx;
// transient failures surface as domain.ErrGatewayUnavailable (retry-safe) or
// domain.ErrGatewayError with the cause wrapped. VerifySignature is local and
// CPU-bound: it recomputes the HMAC over "orderID|paymentID" and compares in
// constant time. A false return is a verification failure, never an error;
// errors are reserved for malformed input.
type PaymentGateway interface {
	Name() string
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (orderID string, err error)
	VerifySignature(orderID, paymentID, signature string) (bool, error)
	FetchPayment(ctx context.Context, paymentID string) (PaymentDetails, error)

	// ListPaymentsByOrder returns every payment attempt the provider holds
	// for an order. A record that stays Pending carries no payment id of its
	// own, so this is the reconciler's only way to learn about a capture
	// whose webhook and client confirmation were both lost.
	ListPaymentsByOrder(ctx context.Context, orderID string) ([]PaymentDetails, error)

	Refund(ctx context.Context, paymentID string, amount int64, reason string) (RefundResult, error)
}
