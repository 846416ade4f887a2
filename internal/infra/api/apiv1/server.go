package apiv1

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"oproz-billing/internal/domain"
	"oproz-billing/internal/domain/model"
	"oproz-billing/internal/infra/logging"
	"oproz-billing/internal/infra/metrics"
	"oproz-billing/internal/infra/payment"
	"oproz-billing/internal/usecase"
)

// Server exposes the billing core over JSON. Construction takes the use
// cases only; routing and auth are attached by RegisterAPIV1 so tests can
// mount the handlers without the middleware stack.
type Server struct {
	quotes       usecase.QuoteUseCase
	payments     usecase.PaymentUseCase
	webhooks     usecase.WebhookUseCase
	entitlements usecase.EntitlementUseCase
	stats        usecase.StatsUseCase

	webhookSecret string
	log           *zerolog.Logger
}

func NewServer(
	quotes usecase.QuoteUseCase,
	payments usecase.PaymentUseCase,
	webhooks usecase.WebhookUseCase,
	entitlements usecase.EntitlementUseCase,
	stats usecase.StatsUseCase,
	webhookSecret string,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		quotes:        quotes,
		payments:      payments,
		webhooks:      webhooks,
		entitlements:  entitlements,
		stats:         stats,
		webhookSecret: webhookSecret,
		log:           logger,
	}
}

// RegisterAPIV1 mounts all v1 routes. auth wraps the routes that serve
// sibling services; the webhook route authenticates by signature instead.
func RegisterAPIV1(r chi.Router, s *Server, auth func(http.Handler) http.Handler) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/billing", func(r chi.Router) {
			r.Post("/quote", s.handleQuote)
			r.Post("/initiate", s.handleInitiate)
			r.Post("/confirm", s.handleConfirm)
			r.Post("/webhook", s.handleWebhook)
			r.With(auth).Get("/history/{userID}", s.handleHistory)
			r.With(auth).Get("/revenue", s.handleRevenue)
		})
		r.Route("/subscription", func(r chi.Router) {
			r.Use(auth)
			r.Get("/validate/{userID}", s.handleValidate)
			r.Get("/details/{userID}", s.handleDetails)
		})
	})
}

// ---------------- request/response shapes ----------------

type quoteRequest struct {
	PlanID    string `json:"plan_id"`
	OfferCode string `json:"offer_code"`
}

type initiateRequest struct {
	UserID  string  `json:"user_id"`
	PlanID  string  `json:"plan_id"`
	OfferID *string `json:"offer_id"`
}

type confirmRequest struct {
	UserID           string  `json:"user_id"`
	GatewayOrderID   string  `json:"gateway_order_id"`
	GatewayPaymentID string  `json:"gateway_payment_id"`
	Signature        string  `json:"signature"`
	PlanID           string  `json:"plan_id"`
	OfferID          *string `json:"offer_id"`
}

// recordView is the wire shape of a payment record.
type recordView struct {
	ID                string     `json:"id"`
	TransactionID     string     `json:"transaction_id"`
	GatewayOrderID    string     `json:"gateway_order_id"`
	GatewayPaymentID  *string    `json:"gateway_payment_id,omitempty"`
	UserID            string     `json:"user_id"`
	PlanID            string     `json:"plan_id"`
	OfferID           *string    `json:"offer_id,omitempty"`
	BaseAmount        int64      `json:"base_amount"`
	DiscountAmount    int64      `json:"discount_amount"`
	FinalAmount       int64      `json:"final_amount"`
	Currency          string     `json:"currency"`
	Status            string     `json:"status"`
	PaymentDate       time.Time  `json:"payment_date"`
	SubscriptionStart *time.Time `json:"subscription_start,omitempty"`
	SubscriptionEnd   *time.Time `json:"subscription_end,omitempty"`
}

func toRecordView(p *model.PaymentRecord) recordView {
	return recordView{
		ID:                p.ID,
		TransactionID:     p.TransactionID,
		GatewayOrderID:    p.GatewayOrderID,
		GatewayPaymentID:  p.GatewayPaymentID,
		UserID:            p.UserID,
		PlanID:            p.PlanID,
		OfferID:           p.OfferID,
		BaseAmount:        p.BaseAmount,
		DiscountAmount:    p.DiscountAmount,
		FinalAmount:       p.FinalAmount,
		Currency:          p.Currency,
		Status:            string(p.Status),
		PaymentDate:       p.PaymentDate,
		SubscriptionStart: p.SubscriptionStart,
		SubscriptionEnd:   p.SubscriptionEnd,
	}
}

// ---------------- handlers ----------------

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlanID == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	q, err := s.quotes.Quote(r.Context(), req.PlanID, req.OfferCode)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.PlanID == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rec, checkout, err := s.payments.Initiate(r.Context(), req.UserID, req.PlanID, req.OfferID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Record   recordView            `json:"record"`
		Checkout *usecase.CheckoutInfo `json:"checkout"`
	}{toRecordView(rec), checkout})
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.GatewayOrderID == "" || req.GatewayPaymentID == "" || req.Signature == "" {
		writeError(w, http.StatusBadRequest, "gateway_order_id, gateway_payment_id and signature are required")
		return
	}
	rec, err := s.payments.Confirm(r.Context(), req.UserID, req.GatewayOrderID, req.GatewayPaymentID, req.Signature, req.PlanID, req.OfferID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordView(rec))
}

// handleWebhook authenticates by HMAC over the raw body, acknowledges every
// verified delivery with 200 and lets the reconciler decide the outcome.
// Redeliveries are expected and safe.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	sig := r.Header.Get("X-Razorpay-Signature")
	if !payment.VerifyWebhookSignature(body, sig, s.webhookSecret) {
		metrics.IncSignatureFailure("webhook")
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("webhook signature rejected")
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	ev, err := payment.ParseWebhookEvent(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unparseable event")
		return
	}

	outcome, err := s.webhooks.Reconcile(r.Context(), ev)
	if err != nil {
		// Acknowledge anyway: a non-2xx would start a redelivery storm, and
		// the replay worker and reconciler converge the record later.
		metrics.IncWebhookEvent(ev.Type, "error")
		s.log.Error().Err(err).
			Str("event_type", ev.Type).
			Str("trace_id", logging.TraceID(r.Context())).
			Msg("webhook reconciliation failed")
		writeJSON(w, http.StatusOK, map[string]string{"status": "error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(outcome)})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	recs, err := s.payments.HistoryByUser(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	items := make([]recordView, 0, len(recs))
	for _, rec := range recs {
		items = append(items, toRecordView(rec))
	}
	writeJSON(w, http.StatusOK, struct {
		Items []recordView `json:"items"`
	}{items})
}

func (s *Server) handleRevenue(w http.ResponseWriter, r *http.Request) {
	week, month, year, err := s.stats.Revenue(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"week":  week,
		"month": month,
		"year":  year,
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ok, err := s.entitlements.IsActive(r.Context(), userID, time.Now().UTC())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"is_valid": ok})
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	details, err := s.entitlements.Details(r.Context(), userID, time.Now().UTC())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// ---------------- helpers ----------------

func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := domainStatus(err)
	if status >= 500 {
		s.log.Error().Err(err).
			Str("path", r.URL.Path).
			Str("trace_id", logging.TraceID(r.Context())).
			Msg("request failed")
	}
	writeError(w, status, err.Error())
}

func domainStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPaymentVerificationFailed):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPlanNotFound), errors.Is(err, domain.ErrOfferNotFound), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrOfferNotApplicable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrAlreadyExists), errors.Is(err, domain.ErrInvalidStateTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
