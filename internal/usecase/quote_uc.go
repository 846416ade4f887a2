package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"oproz-billing/internal/domain"
	"oproz-billing/internal/domain/model"
	"oproz-billing/internal/domain/ports/repository"
)

// Quote is the priced, not-yet-committed view of a subscription order.
// Amounts are minor units; the *Display fields are two-decimal major-unit
// strings for presentation.
type Quote struct {
	PlanID          string `json:"plan_id"`
	PlanName        string `json:"plan_name"`
	OfferID         string `json:"offer_id,omitempty"`
	BaseAmount      int64  `json:"base_amount"`
	DiscountAmount  int64  `json:"discount_amount"`
	FinalAmount     int64  `json:"final_amount"`
	Currency        string `json:"currency"`
	BaseDisplay     string `json:"base_display"`
	DiscountDisplay string `json:"discount_display"`
	FinalDisplay    string `json:"final_display"`
}

type QuoteUseCase interface {
	// Quote prices a plan with an optional offer code. An empty code quotes
	// the plain plan price. Unknown codes return domain.ErrOfferNotFound;
	// known-but-ineligible codes return domain.ErrOfferNotApplicable so the
	// caller can message the user.
	Quote(ctx context.Context, planID, offerCode string) (*Quote, error)
}

var _ QuoteUseCase = (*quoteUC)(nil)

type quoteUC struct {
	plans    repository.SubscriptionPlanRepository
	offers   repository.OfferRepository
	currency string
	log      *zerolog.Logger
}

func NewQuoteUseCase(plans repository.SubscriptionPlanRepository, offers repository.OfferRepository, currency string, logger *zerolog.Logger) QuoteUseCase {
	return &quoteUC{plans: plans, offers: offers, currency: currency, log: logger}
}

func (u *quoteUC) Quote(ctx context.Context, planID, offerCode string) (*Quote, error) {
	plan, err := u.plans.FindByID(ctx, repository.NoTX, planID)
	if err != nil {
		return nil, domain.ErrPlanNotFound
	}

	var offer *model.Offer
	if code := model.NormalizeOfferCode(offerCode); code != "" {
		offer, err = u.offers.FindByCode(ctx, repository.NoTX, code)
		if err != nil {
			return nil, domain.ErrOfferNotFound
		}
		if !offer.IsApplicable(plan.Price, time.Now().UTC()) {
			return nil, domain.ErrOfferNotApplicable
		}
	}

	discount, final, err := model.ComputeFinalAmount(plan.Price, offer, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	q := &Quote{
		PlanID:          plan.ID,
		PlanName:        plan.Name,
		BaseAmount:      plan.Price,
		DiscountAmount:  discount,
		FinalAmount:     final,
		Currency:        u.currency,
		BaseDisplay:     model.PaiseToRupees(plan.Price).StringFixed(2),
		DiscountDisplay: model.PaiseToRupees(discount).StringFixed(2),
		FinalDisplay:    model.PaiseToRupees(final).StringFixed(2),
	}
	if offer != nil {
		q.OfferID = offer.ID
	}
	return q, nil
}
