package model

import (
	"time"

	"github.com/shopspring/decimal"

	"oproz-billing/internal/domain"
)

// All amounts in this package are int64 minor units (paise for INR).
// decimal.Decimal is used for the fractional intermediate steps so that
// percentage discounts never touch binary floating point.

var hundred = decimal.NewFromInt(100)

// RupeesToPaise converts a major-unit decimal amount to minor units,
// rounding half-up to the nearest paisa.
func RupeesToPaise(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

// PaiseToRupees converts minor units back to a two-decimal major-unit amount.
func PaiseToRupees(p int64) decimal.Decimal {
	return decimal.New(p, -2)
}

// ComputeDiscount returns the discount in minor units for a base amount and a
// discount rule. Percentage values are percent points (10 = 10%, may carry a
// fraction); fixed values are major units. The discount is clamped to
// [0, base] so the payable amount can never go negative.
func ComputeDiscount(base int64, typ OfferType, value decimal.Decimal) (int64, error) {
	if base < 0 {
		return 0, domain.ErrInvalidAmount
	}

	var discount int64
	switch typ {
	case OfferTypePercentage:
		// round half-up on minor units
		discount = decimal.NewFromInt(base).Mul(value).Div(hundred).Round(0).IntPart()
	case OfferTypeFixedAmount:
		discount = RupeesToPaise(value)
	default:
		return 0, domain.ErrInvalidArgument
	}

	if discount < 0 {
		discount = 0
	}
	if discount > base {
		discount = base
	}
	return discount, nil
}

// ComputeFinalAmount applies an optional offer to a base amount and returns
// (discount, final). An absent or inapplicable offer yields a zero discount;
// ineligibility is a normal outcome here, not an error.
func ComputeFinalAmount(base int64, offer *Offer, now time.Time) (discount, final int64, err error) {
	if base < 0 {
		return 0, 0, domain.ErrInvalidAmount
	}
	if offer == nil || !offer.IsApplicable(base, now) {
		return 0, base, nil
	}
	discount, err = ComputeDiscount(base, offer.Type, offer.Value)
	if err != nil {
		return 0, 0, err
	}
	return discount, base - discount, nil
}
