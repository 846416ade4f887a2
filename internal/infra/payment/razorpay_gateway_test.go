//go:build !integration

package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"oproz-billing/internal/config"
	"oproz-billing/internal/domain"
)

func sign(message, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

func newTestGateway(baseURL string) *RazorpayGateway {
	return NewRazorpayGateway(config.RazorpayConfig{
		KeyID:      "rzp_test_key",
		KeySecret:  "test_secret",
		BaseURL:    baseURL,
		Timeout:    2 * time.Second,
		MaxRetries: 3,
	})
}

func TestVerifySignature(t *testing.T) {
	g := newTestGateway("http://unused")

	t.Run("accepts the correct signature", func(t *testing.T) {
		sig := sign("order_1|pay_1", "test_secret")
		ok, err := g.VerifySignature("order_1", "pay_1", sig)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Error("expected signature to verify")
		}
	})

	t.Run("rejects a single flipped bit", func(t *testing.T) {
		sig := []byte(sign("order_1|pay_1", "test_secret"))
		if sig[0] == 'a' {
			sig[0] = 'b'
		} else {
			sig[0] = 'a'
		}
		ok, err := g.VerifySignature("order_1", "pay_1", string(sig))
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Error("tampered signature must not verify")
		}
	})

	t.Run("rejects a signature for different ids", func(t *testing.T) {
		sig := sign("order_1|pay_2", "test_secret")
		if ok, _ := g.VerifySignature("order_1", "pay_1", sig); ok {
			t.Error("signature bound to other ids must not verify")
		}
	})

	t.Run("rejects non-hex garbage without error", func(t *testing.T) {
		ok, err := g.VerifySignature("order_1", "pay_1", "zzzz-not-hex")
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Error("garbage must not verify")
		}
	})

	t.Run("empty input is an argument error", func(t *testing.T) {
		if _, err := g.VerifySignature("", "pay_1", "sig"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("got %v, want ErrInvalidArgument", err)
		}
	})
}

func TestCreateOrder(t *testing.T) {
	t.Run("returns the order id on success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/orders" || r.Method != http.MethodPost {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			if _, _, ok := r.BasicAuth(); !ok {
				t.Error("expected basic auth")
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"order_ABC","amount":89910,"currency":"INR","status":"created"}`))
		}))
		defer srv.Close()

		g := newTestGateway(srv.URL)
		orderID, err := g.CreateOrder(context.Background(), 89910, "INR", "TXN_1")
		if err != nil {
			t.Fatalf("create order: %v", err)
		}
		if orderID != "order_ABC" {
			t.Errorf("order id = %s, want order_ABC", orderID)
		}
	})

	t.Run("retries transient failures", func(t *testing.T) {
		var calls int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`{"id":"order_RETRY"}`))
		}))
		defer srv.Close()

		g := newTestGateway(srv.URL)
		orderID, err := g.CreateOrder(context.Background(), 100, "INR", "TXN_1")
		if err != nil {
			t.Fatalf("create order: %v", err)
		}
		if orderID != "order_RETRY" || calls != 3 {
			t.Errorf("got (%s, %d calls), want (order_RETRY, 3)", orderID, calls)
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		g := newTestGateway(srv.URL)
		if _, err := g.CreateOrder(context.Background(), 100, "INR", "TXN_1"); !errors.Is(err, domain.ErrGatewayUnavailable) {
			t.Errorf("got %v, want ErrGatewayUnavailable", err)
		}
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		var calls int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls++
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount too small"}}`))
		}))
		defer srv.Close()

		g := newTestGateway(srv.URL)
		_, err := g.CreateOrder(context.Background(), 100, "INR", "TXN_1")
		if !errors.Is(err, domain.ErrGatewayError) {
			t.Fatalf("got %v, want ErrGatewayError", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("non-positive amount is rejected locally", func(t *testing.T) {
		g := newTestGateway("http://unused")
		if _, err := g.CreateOrder(context.Background(), 0, "INR", "TXN_1"); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Errorf("got %v, want ErrInvalidAmount", err)
		}
	})
}

func TestFetchPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payments/pay_1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"id":"pay_1","order_id":"order_1","status":"captured","amount":89910,"currency":"INR","method":"upi","created_at":1767225600}`))
	}))
	defer srv.Close()

	g := newTestGateway(srv.URL)
	details, err := g.FetchPayment(context.Background(), "pay_1")
	if err != nil {
		t.Fatalf("fetch payment: %v", err)
	}
	if !details.Captured() || details.Amount != 89910 || details.OrderID != "order_1" {
		t.Errorf("unexpected details: %+v", details)
	}
}

func TestListPaymentsByOrder(t *testing.T) {
	t.Run("maps every attempt in the collection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/orders/order_1/payments" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			w.Write([]byte(`{"count":2,"items":[
				{"id":"pay_1","order_id":"order_1","status":"failed","amount":89910,"currency":"INR","method":"card"},
				{"id":"pay_2","order_id":"order_1","status":"captured","amount":89910,"currency":"INR","method":"upi","created_at":1767225600}
			]}`))
		}))
		defer srv.Close()

		g := newTestGateway(srv.URL)
		attempts, err := g.ListPaymentsByOrder(context.Background(), "order_1")
		if err != nil {
			t.Fatalf("list payments: %v", err)
		}
		if len(attempts) != 2 {
			t.Fatalf("attempts = %d, want 2", len(attempts))
		}
		if !attempts[0].Failed() || attempts[0].PaymentID != "pay_1" {
			t.Errorf("first attempt wrong: %+v", attempts[0])
		}
		if !attempts[1].Captured() || attempts[1].Method != "upi" {
			t.Errorf("second attempt wrong: %+v", attempts[1])
		}
	})

	t.Run("empty collection is not an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"count":0,"items":[]}`))
		}))
		defer srv.Close()

		g := newTestGateway(srv.URL)
		attempts, err := g.ListPaymentsByOrder(context.Background(), "order_1")
		if err != nil {
			t.Fatalf("list payments: %v", err)
		}
		if len(attempts) != 0 {
			t.Errorf("attempts = %d, want 0", len(attempts))
		}
	})

	t.Run("server errors surface as unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		g := newTestGateway(srv.URL)
		if _, err := g.ListPaymentsByOrder(context.Background(), "order_1"); !errors.Is(err, domain.ErrGatewayUnavailable) {
			t.Errorf("got %v, want ErrGatewayUnavailable", err)
		}
	})

	t.Run("empty order id is rejected locally", func(t *testing.T) {
		g := newTestGateway("http://unused")
		if _, err := g.ListPaymentsByOrder(context.Background(), ""); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("got %v, want ErrInvalidArgument", err)
		}
	})
}

func TestWebhookSignature(t *testing.T) {
	body := []byte(`{"event":"payment.captured"}`)
	secret := "whsec_test"

	if !VerifyWebhookSignature(body, sign(string(body), secret), secret) {
		t.Error("valid webhook signature must verify")
	}
	if VerifyWebhookSignature(body, sign(string(body), "other"), secret) {
		t.Error("signature with the wrong secret must not verify")
	}
	if VerifyWebhookSignature(append(body, ' '), sign(string(body), secret), secret) {
		t.Error("modified body must not verify")
	}
	if VerifyWebhookSignature(body, "", secret) {
		t.Error("empty signature must not verify")
	}
}

func TestParseWebhookEvent(t *testing.T) {
	t.Run("payment captured", func(t *testing.T) {
		body := []byte(`{
			"event": "payment.captured",
			"payload": {"payment": {"entity": {"id": "pay_1", "order_id": "order_1", "amount": 89910, "method": "upi"}}}
		}`)
		ev, err := ParseWebhookEvent(body)
		if err != nil {
			t.Fatal(err)
		}
		if ev.Type != "payment.captured" || ev.PaymentID != "pay_1" || ev.OrderID != "order_1" || ev.Amount != 89910 {
			t.Errorf("unexpected event: %+v", ev)
		}
	})

	t.Run("refund processed", func(t *testing.T) {
		body := []byte(`{
			"event": "refund.processed",
			"payload": {"refund": {"entity": {"id": "rfnd_1", "payment_id": "pay_1", "amount": 89910}}}
		}`)
		ev, err := ParseWebhookEvent(body)
		if err != nil {
			t.Fatal(err)
		}
		if ev.Type != "refund.processed" || ev.PaymentID != "pay_1" {
			t.Errorf("unexpected event: %+v", ev)
		}
	})

	t.Run("garbage body", func(t *testing.T) {
		if _, err := ParseWebhookEvent([]byte("not json")); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("got %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("missing event field", func(t *testing.T) {
		if _, err := ParseWebhookEvent([]byte(`{"payload":{}}`)); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("got %v, want ErrInvalidArgument", err)
		}
	})
}

func TestDemoGateway(t *testing.T) {
	g := NewDemoGateway("demo-secret")

	orderID, err := g.CreateOrder(context.Background(), 100, "INR", "TXN_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(orderID) < len("order_demo_") || orderID[:11] != "order_demo_" {
		t.Errorf("demo order id %q must carry the demo prefix", orderID)
	}

	sig := g.SignCheckout(orderID, "pay_demo_1")
	ok, err := g.VerifySignature(orderID, "pay_demo_1", sig)
	if err != nil || !ok {
		t.Errorf("demo signature round trip failed: (%v, %v)", ok, err)
	}
	if ok, _ := g.VerifySignature(orderID, "pay_demo_2", sig); ok {
		t.Error("demo signature must bind to the payment id")
	}
}
