package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"oproz-billing/internal/domain"
	"oproz-billing/internal/domain/model"
	"oproz-billing/internal/domain/ports/adapter"
	"oproz-billing/internal/domain/ports/repository"
	"oproz-billing/internal/infra/logging"
	"oproz-billing/internal/infra/metrics"
)

// CheckoutInfo is what the HTTP layer hands to the client so it can open the
// gateway checkout.
type CheckoutInfo struct {
	GatewayOrderID string `json:"gateway_order_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Gateway        string `json:"gateway"`
}

type PaymentUseCase interface {
	// Initiate re-prices the order, opens a gateway order and persists a
	// Pending record. No record is created when the gateway call fails, so a
	// client-side retry is always safe.
	Initiate(ctx context.Context, userID, planID string, offerID *string) (*model.PaymentRecord, *CheckoutInfo, error)

	// Confirm verifies the gateway signature and activates the subscription
	// exactly once per gateway payment id. Repeat calls for the same payment
	// return the first call's record unchanged.
	Confirm(ctx context.Context, userID, orderID, gatewayPaymentID, signature, planID string, offerID *string) (*model.PaymentRecord, error)

	// Refund issues a gateway refund for a Success record and transitions it
	// to Refunded.
	Refund(ctx context.Context, recordID, reason string) (*model.PaymentRecord, error)

	HistoryByUser(ctx context.Context, userID string) ([]*model.PaymentRecord, error)
}

var _ PaymentUseCase = (*paymentUC)(nil)

type paymentUC struct {
	payments repository.PaymentRecordRepository
	plans    repository.SubscriptionPlanRepository
	offers   repository.OfferRepository
	gateway  adapter.PaymentGateway
	notifier adapter.Notifier
	tm       repository.TransactionManager
	currency string
	log      *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PaymentRecordRepository,
	plans repository.SubscriptionPlanRepository,
	offers repository.OfferRepository,
	gateway adapter.PaymentGateway,
	notifier adapter.Notifier,
	tm repository.TransactionManager,
	currency string,
	logger *zerolog.Logger,
) PaymentUseCase {
	return &paymentUC{
		payments: payments,
		plans:    plans,
		offers:   offers,
		gateway:  gateway,
		notifier: notifier,
		tm:       tm,
		currency: currency,
		log:      logger,
	}
}

// newTransactionID mints the locally generated, globally unique transaction
// identifier. ULIDs sort by creation time, which keeps support lookups sane.
func newTransactionID() string {
	return "TXN_" + ulid.Make().String()
}

func (u *paymentUC) Initiate(ctx context.Context, userID, planID string, offerID *string) (*model.PaymentRecord, *CheckoutInfo, error) {
	defer logging.TraceDuration(u.log, "PaymentUseCase.Initiate")()

	plan, err := u.plans.FindByID(ctx, repository.NoTX, planID)
	if err != nil {
		return nil, nil, domain.ErrPlanNotFound
	}

	now := time.Now().UTC()
	offer, err := u.resolveOffer(ctx, offerID)
	if err != nil {
		return nil, nil, err
	}

	discount, final, err := model.ComputeFinalAmount(plan.Price, offer, now)
	if err != nil {
		return nil, nil, err
	}

	txnID := newTransactionID()
	orderID, err := u.gateway.CreateOrder(ctx, final, u.currency, txnID)
	if err != nil {
		// no record persisted: the client may retry freely
		u.log.Error().Err(err).Str("plan_id", planID).Msg("gateway order creation failed")
		return nil, nil, err
	}

	rec := &model.PaymentRecord{
		ID:             uuid.NewString(),
		TransactionID:  txnID,
		GatewayOrderID: orderID,
		UserID:         userID,
		PlanID:         planID,
		OfferID:        offerID,
		BaseAmount:     plan.Price,
		DiscountAmount: discount,
		FinalAmount:    final,
		Currency:       u.currency,
		Status:         model.PaymentStatusPending,
		PaymentDate:    now,
		Notes:          fmt.Sprintf("Payment for %s subscription", plan.Name),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := u.payments.Insert(ctx, repository.NoTX, rec); err != nil {
		return nil, nil, err
	}

	metrics.IncPayment(string(model.PaymentStatusPending))
	u.log.Info().
		Str("payment_id", rec.ID).
		Str("order_id", orderID).
		Int64("amount", final).
		Msg("payment initiated")

	return rec, &CheckoutInfo{
		GatewayOrderID: orderID,
		Amount:         final,
		Currency:       u.currency,
		Gateway:        u.gateway.Name(),
	}, nil
}

func (u *paymentUC) Confirm(ctx context.Context, userID, orderID, gatewayPaymentID, signature, planID string, offerID *string) (*model.PaymentRecord, error) {
	defer logging.TraceDuration(u.log, "PaymentUseCase.Confirm")()

	// Step 1: signature first. Nothing is created or mutated on failure, and
	// a mismatch is treated as a potential forgery, never retried.
	ok, err := u.gateway.VerifySignature(orderID, gatewayPaymentID, signature)
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.IncSignatureFailure("confirm")
		u.log.Warn().
			Str("order_id", orderID).
			Str("gateway_payment_id", gatewayPaymentID).
			Str("user_id", userID).
			Msg("payment signature verification failed")
		return nil, domain.ErrPaymentVerificationFailed
	}

	// Fast idempotency path: this gateway payment already activated a record.
	if existing, err := u.payments.FindByGatewayPaymentID(ctx, repository.NoTX, gatewayPaymentID); err == nil {
		metrics.IncDuplicateActivation()
		return existing, nil
	}

	plan, err := u.plans.FindByID(ctx, repository.NoTX, planID)
	if err != nil {
		return nil, domain.ErrPlanNotFound
	}

	// Step 3: re-validate the offer against the plan price and the current
	// time. The discount quoted earlier is never trusted.
	now := time.Now().UTC()
	offer, err := u.resolveOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	discount, final, err := model.ComputeFinalAmount(plan.Price, offer, now)
	if err != nil {
		return nil, err
	}

	subStart := now
	subEnd := model.AddPlanDuration(subStart, plan.Duration)

	var out *model.PaymentRecord
	txErr := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, qx repository.Tx) error {
		consumesOffer := offer != nil && discount > 0

		rec, err := u.payments.FindByGatewayOrderID(ctx, qx, orderID)
		switch {
		case err == nil && rec.Status == model.PaymentStatusPending:
			// The checkout widget reports no method; "" keeps the column null.
			activated, err := u.payments.ActivateIfPending(ctx, qx, rec.ID, gatewayPaymentID, "", now, subStart, subEnd)
			if err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
				return err
			}
			if err != nil || !activated {
				// lost the race: another confirmation got there first
				return u.loadExisting(ctx, qx, gatewayPaymentID, &out)
			}
			rec.Status = model.PaymentStatusSuccess
			rec.GatewayPaymentID = &gatewayPaymentID
			rec.PaymentDate = now
			rec.SubscriptionStart = &subStart
			rec.SubscriptionEnd = &subEnd
			rec.UpdatedAt = now
			out = rec

		case err == nil:
			// Success (or terminal) record for this order already exists.
			if rec.Status == model.PaymentStatusSuccess {
				out = rec
				return nil
			}
			u.log.Warn().
				Str("payment_id", rec.ID).
				Str("status", string(rec.Status)).
				Msg("confirmation for a terminal payment record")
			return domain.ErrInvalidStateTransition

		case errors.Is(err, domain.ErrNotFound):
			// No Pending record (e.g. the order was opened by an older
			// client): insert directly as Success under the uniqueness
			// constraint and fall back to re-read on conflict.
			rec = &model.PaymentRecord{
				ID:                uuid.NewString(),
				TransactionID:     newTransactionID(),
				GatewayOrderID:    orderID,
				GatewayPaymentID:  &gatewayPaymentID,
				UserID:            userID,
				PlanID:            planID,
				OfferID:           offerID,
				BaseAmount:        plan.Price,
				DiscountAmount:    discount,
				FinalAmount:       final,
				Currency:          u.currency,
				Status:            model.PaymentStatusSuccess,
				PaymentDate:       now,
				SubscriptionStart: &subStart,
				SubscriptionEnd:   &subEnd,
				Notes:             fmt.Sprintf("Payment for %s subscription", plan.Name),
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			if err := u.payments.Insert(ctx, qx, rec); err != nil {
				if errors.Is(err, domain.ErrAlreadyExists) {
					return u.loadExisting(ctx, qx, gatewayPaymentID, &out)
				}
				return err
			}
			out = rec

		default:
			return err
		}

		// Offer usage rides on the activation that just happened in this tx.
		// The conditional increment is the authoritative cap check: losing it
		// here means the cap was exhausted since quoting, so the record keeps
		// no discount claim beyond what was charged.
		if consumesOffer {
			consumed, err := u.offers.ConsumeUsage(ctx, qx, offer.ID)
			if err != nil {
				return err
			}
			if !consumed {
				u.log.Warn().Str("offer_id", offer.ID).Msg("offer cap exhausted between quote and confirmation")
			}
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	metrics.IncPayment(string(out.Status))
	if out.Status == model.PaymentStatusSuccess {
		metrics.AddPaymentRevenue(out.Currency, out.FinalAmount)
		u.notifier.PaymentSucceeded(ctx, out)
	}
	u.log.Info().
		Str("payment_id", out.ID).
		Str("gateway_payment_id", gatewayPaymentID).
		Str("user_id", out.UserID).
		Time("sub_end", valueOrZero(out.SubscriptionEnd)).
		Msg("payment confirmed")
	return out, nil
}

// loadExisting resolves the duplicate-activation path: re-read the record
// that won the insert race and return it unchanged.
func (u *paymentUC) loadExisting(ctx context.Context, qx repository.Tx, gatewayPaymentID string, out **model.PaymentRecord) error {
	existing, err := u.payments.FindByGatewayPaymentID(ctx, qx, gatewayPaymentID)
	if err != nil {
		return err
	}
	metrics.IncDuplicateActivation()
	*out = existing
	return nil
}

func (u *paymentUC) Refund(ctx context.Context, recordID, reason string) (*model.PaymentRecord, error) {
	rec, err := u.payments.FindByID(ctx, repository.NoTX, recordID)
	if err != nil {
		return nil, err
	}
	if rec.Status != model.PaymentStatusSuccess || rec.GatewayPaymentID == nil {
		return nil, domain.ErrInvalidStateTransition
	}

	res, err := u.gateway.Refund(ctx, *rec.GatewayPaymentID, rec.FinalAmount, reason)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	note := fmt.Sprintf("refund %s (%s)", res.RefundID, reason)
	moved, err := u.payments.MarkRefunded(ctx, repository.NoTX, rec.ID, note, now)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, domain.ErrInvalidStateTransition
	}
	rec.Status = model.PaymentStatusRefunded
	rec.UpdatedAt = now
	metrics.IncPayment(string(model.PaymentStatusRefunded))
	u.log.Info().Str("payment_id", rec.ID).Str("refund_id", res.RefundID).Msg("payment refunded")
	return rec, nil
}

func (u *paymentUC) HistoryByUser(ctx context.Context, userID string) ([]*model.PaymentRecord, error) {
	return u.payments.ListByUser(ctx, repository.NoTX, userID)
}

func (u *paymentUC) resolveOffer(ctx context.Context, offerID *string) (*model.Offer, error) {
	if offerID == nil || *offerID == "" {
		return nil, nil
	}
	offer, err := u.offers.FindByID(ctx, repository.NoTX, *offerID)
	if err != nil {
		return nil, domain.ErrOfferNotFound
	}
	return offer, nil
}

func valueOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
