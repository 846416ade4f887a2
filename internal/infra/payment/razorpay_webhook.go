package payment

import (
	"encoding/json"
	"fmt"

	"oproz-billing/internal/domain"
	"oproz-billing/internal/domain/ports/adapter"
)

// VerifyWebhookSignature checks the X-Razorpay-Signature header: an
// HMAC-SHA256 over the raw request body with the webhook secret, hex encoded.
func VerifyWebhookSignature(body []byte, signature, webhookSecret string) bool {
	if signature == "" || webhookSecret == "" {
		return false
	}
	return checkHMAC(body, signature, webhookSecret)
}

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Amount  int64  `json:"amount"`
				Method  string `json:"method"`
			} `json:"entity"`
		} `json:"payment"`
		Refund struct {
			Entity struct {
				ID        string `json:"id"`
				PaymentID string `json:"payment_id"`
				Amount    int64  `json:"amount"`
			} `json:"entity"`
		} `json:"refund"`
		Subscription struct {
			Entity struct {
				ID string `json:"id"`
			} `json:"entity"`
		} `json:"subscription"`
	} `json:"payload"`
}

// ParseWebhookEvent maps a verified webhook body to the provider-agnostic
// event. Unknown event types still parse; the reconciler decides what to do
// with them.
func ParseWebhookEvent(body []byte) (adapter.GatewayEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return adapter.GatewayEvent{}, fmt.Errorf("%w: parse webhook body: %v", domain.ErrInvalidArgument, err)
	}
	if env.Event == "" {
		return adapter.GatewayEvent{}, fmt.Errorf("%w: webhook body missing event", domain.ErrInvalidArgument)
	}

	ev := adapter.GatewayEvent{Type: env.Event, Raw: body}
	switch env.Event {
	case "refund.processed":
		ev.PaymentID = env.Payload.Refund.Entity.PaymentID
		ev.Amount = env.Payload.Refund.Entity.Amount
	default:
		ev.PaymentID = env.Payload.Payment.Entity.ID
		ev.OrderID = env.Payload.Payment.Entity.OrderID
		ev.Amount = env.Payload.Payment.Entity.Amount
		ev.Method = env.Payload.Payment.Entity.Method
	}
	return ev, nil
}
