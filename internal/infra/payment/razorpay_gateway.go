package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"oproz-billing/internal/config"
	"oproz-billing/internal/domain"
	"oproz-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*RazorpayGateway)(nil)

// RazorpayGateway implements the gateway port over Razorpay's REST API with
// basic auth. Remote calls are bounded by the configured timeout; order
// creation retries transient failures with backoff because it sits on the
// user-facing checkout path.
type RazorpayGateway struct {
	keyID      string
	keySecret  string
	baseURL    string
	maxRetries int
	client     *http.Client
}

func NewRazorpayGateway(cfg config.RazorpayConfig) *RazorpayGateway {
	return &RazorpayGateway{
		keyID:      cfg.KeyID,
		keySecret:  cfg.KeySecret,
		baseURL:    cfg.BaseURL,
		maxRetries: cfg.MaxRetries,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

func (g *RazorpayGateway) Name() string { return "razorpay" }

type razorpayOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type razorpayPaymentResponse struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Method    string `json:"method"`
	CreatedAt int64  `json:"created_at"`
}

type razorpayPaymentCollection struct {
	Count int                       `json:"count"`
	Items []razorpayPaymentResponse `json:"items"`
}

type razorpayRefundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount int64  `json:"amount"`
}

type razorpayErrorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder opens a gateway order for the given amount in minor units.
// Transient failures (network errors, 5xx, 429) are retried with backoff up
// to maxRetries; a still-failing call surfaces domain.ErrGatewayUnavailable
// so the caller knows no local record should be created.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error) {
	if amount <= 0 {
		return "", domain.ErrInvalidAmount
	}
	body, err := json.Marshal(map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	})
	if err != nil {
		return "", fmt.Errorf("marshal order request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, ctx.Err())
			case <-time.After(backoff):
			}
		}

		var order razorpayOrderResponse
		retriable, err := g.doJSON(ctx, http.MethodPost, "/orders", body, &order)
		if err == nil {
			return order.ID, nil
		}
		lastErr = err
		if !retriable {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, lastErr)
}

// VerifySignature recomputes HMAC-SHA256 over "orderID|paymentID" with the
// key secret and compares against the hex signature in constant time.
func (g *RazorpayGateway) VerifySignature(orderID, paymentID, signature string) (bool, error) {
	if orderID == "" || paymentID == "" || signature == "" {
		return false, domain.ErrInvalidArgument
	}
	return checkHMAC([]byte(orderID+"|"+paymentID), signature, g.keySecret), nil
}

func (g *RazorpayGateway) FetchPayment(ctx context.Context, paymentID string) (adapter.PaymentDetails, error) {
	if paymentID == "" {
		return adapter.PaymentDetails{}, domain.ErrInvalidArgument
	}
	var p razorpayPaymentResponse
	retriable, err := g.doJSON(ctx, http.MethodGet, "/payments/"+paymentID, nil, &p)
	if err != nil {
		if retriable {
			return adapter.PaymentDetails{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
		}
		return adapter.PaymentDetails{}, err
	}
	return p.details(), nil
}

func (p razorpayPaymentResponse) details() adapter.PaymentDetails {
	return adapter.PaymentDetails{
		PaymentID:  p.ID,
		OrderID:    p.OrderID,
		Status:     p.Status,
		Amount:     p.Amount,
		Currency:   p.Currency,
		Method:     p.Method,
		CapturedAt: time.Unix(p.CreatedAt, 0).UTC(),
	}
}

// ListPaymentsByOrder fetches the payment attempts Razorpay holds for an
// order (GET /orders/{id}/payments). An order with no attempts returns an
// empty slice, not an error.
func (g *RazorpayGateway) ListPaymentsByOrder(ctx context.Context, orderID string) ([]adapter.PaymentDetails, error) {
	if orderID == "" {
		return nil, domain.ErrInvalidArgument
	}
	var coll razorpayPaymentCollection
	retriable, err := g.doJSON(ctx, http.MethodGet, "/orders/"+orderID+"/payments", nil, &coll)
	if err != nil {
		if retriable {
			return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
		}
		return nil, err
	}
	out := make([]adapter.PaymentDetails, 0, len(coll.Items))
	for _, item := range coll.Items {
		out = append(out, item.details())
	}
	return out, nil
}

func (g *RazorpayGateway) Refund(ctx context.Context, paymentID string, amount int64, reason string) (adapter.RefundResult, error) {
	if paymentID == "" || amount <= 0 {
		return adapter.RefundResult{}, domain.ErrInvalidArgument
	}
	body, err := json.Marshal(map[string]interface{}{
		"amount": amount,
		"notes":  map[string]string{"reason": reason},
	})
	if err != nil {
		return adapter.RefundResult{}, fmt.Errorf("marshal refund request: %w", err)
	}

	var ref razorpayRefundResponse
	retriable, err := g.doJSON(ctx, http.MethodPost, "/payments/"+paymentID+"/refund", body, &ref)
	if err != nil {
		if retriable {
			return adapter.RefundResult{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
		}
		return adapter.RefundResult{}, err
	}
	return adapter.RefundResult{RefundID: ref.ID, Status: ref.Status, Amount: ref.Amount}, nil
}

// doJSON performs one authenticated round trip. The bool reports whether the
// failure is worth retrying.
func (g *RazorpayGateway) doJSON(ctx context.Context, method, path string, body []byte, out interface{}) (bool, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return true, fmt.Errorf("gateway call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, fmt.Errorf("read gateway response: %w", err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return true, fmt.Errorf("gateway status %d: %s", resp.StatusCode, string(respBody))
	}
	if resp.StatusCode >= 400 {
		var apiErr razorpayErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Description != "" {
			return false, fmt.Errorf("%w: %s (%s)", domain.ErrGatewayError, apiErr.Error.Description, apiErr.Error.Code)
		}
		return false, fmt.Errorf("%w: status %d", domain.ErrGatewayError, resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return false, fmt.Errorf("%w: unmarshal response: %v", domain.ErrGatewayError, err)
	}
	return false, nil
}

// checkHMAC compares a hex-encoded HMAC-SHA256 signature in constant time.
func checkHMAC(message []byte, hexSignature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	expected := mac.Sum(nil)
	got, err := hex.DecodeString(hexSignature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}
