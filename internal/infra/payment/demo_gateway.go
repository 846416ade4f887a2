package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"oproz-billing/internal/domain"
	"oproz-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*DemoGateway)(nil)

// DemoGateway is the local stand-in used when payment.razorpay.demo is set.
// Orders are generated in memory with an unmistakable prefix and signatures
// use the same HMAC scheme as the real gateway, so the full confirm path can
// be exercised end to end without a provider account. It is selected only by
// the explicit config flag, never inferred from credentials.
type DemoGateway struct {
	secret string

	mu     sync.Mutex
	orders map[string]demoOrder
}

type demoOrder struct {
	amount   int64
	currency string
	created  time.Time
}

func NewDemoGateway(secret string) *DemoGateway {
	if secret == "" {
		secret = "demo-secret"
	}
	return &DemoGateway{secret: secret, orders: make(map[string]demoOrder)}
}

func (g *DemoGateway) Name() string { return "razorpay-demo" }

func (g *DemoGateway) CreateOrder(_ context.Context, amount int64, currency, _ string) (string, error) {
	if amount <= 0 {
		return "", domain.ErrInvalidAmount
	}
	orderID := "order_demo_" + uuid.NewString()
	g.mu.Lock()
	g.orders[orderID] = demoOrder{amount: amount, currency: currency, created: time.Now().UTC()}
	g.mu.Unlock()
	return orderID, nil
}

func (g *DemoGateway) VerifySignature(orderID, paymentID, signature string) (bool, error) {
	if orderID == "" || paymentID == "" || signature == "" {
		return false, domain.ErrInvalidArgument
	}
	return checkHMAC([]byte(orderID+"|"+paymentID), signature, g.secret), nil
}

func (g *DemoGateway) FetchPayment(_ context.Context, paymentID string) (adapter.PaymentDetails, error) {
	if paymentID == "" {
		return adapter.PaymentDetails{}, domain.ErrInvalidArgument
	}
	// Demo payments are always considered captured; the reconciler converges
	// stale pending records the same way it would in production.
	return adapter.PaymentDetails{
		PaymentID:  paymentID,
		Status:     "captured",
		CapturedAt: time.Now().UTC(),
	}, nil
}

// ListPaymentsByOrder reports no attempts: demo checkouts confirm
// synchronously, so a stale demo order really is abandoned.
func (g *DemoGateway) ListPaymentsByOrder(_ context.Context, orderID string) ([]adapter.PaymentDetails, error) {
	if orderID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return nil, nil
}

func (g *DemoGateway) Refund(_ context.Context, paymentID string, amount int64, _ string) (adapter.RefundResult, error) {
	if paymentID == "" || amount <= 0 {
		return adapter.RefundResult{}, domain.ErrInvalidArgument
	}
	return adapter.RefundResult{
		RefundID: "rfnd_demo_" + uuid.NewString(),
		Status:   "processed",
		Amount:   amount,
	}, nil
}

// SignCheckout produces the signature a real checkout widget would return,
// so demo clients can complete the confirm flow.
func (g *DemoGateway) SignCheckout(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(g.secret))
	fmt.Fprintf(mac, "%s|%s", orderID, paymentID)
	return hex.EncodeToString(mac.Sum(nil))
}
