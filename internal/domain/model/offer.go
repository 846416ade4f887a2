package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OfferType string

const (
	OfferTypePercentage  OfferType = "percentage"
	OfferTypeFixedAmount OfferType = "fixed_amount"
)

// Offer is a time-bounded, optionally capped discount rule identified by a
// code. Codes are unique case-insensitively; NormalizeOfferCode is applied
// before every lookup and persist.
type Offer struct {
	ID          string // UUID
	Code        string // normalized (upper case)
	Name        string
	Description string
	Type        OfferType
	// Value is percent points for percentage offers (10 = 10%, fractions
	// allowed) and a major-unit amount for fixed offers.
	Value          decimal.Decimal
	MinOrderAmount *int64 // minor units; nil = no minimum
	StartDate      time.Time
	EndDate        time.Time
	MaxUsageCount  *int // nil = unlimited
	UsedCount      int
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NormalizeOfferCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsApplicable reports whether the offer applies to an order of the given
// base amount at the given instant. Conditions are checked in order and
// short-circuit: active flag, validity window (boundaries inclusive),
// minimum order amount, usage cap.
func (o *Offer) IsApplicable(baseAmount int64, now time.Time) bool {
	if !o.Active {
		return false
	}
	if now.Before(o.StartDate) || now.After(o.EndDate) {
		return false
	}
	if o.MinOrderAmount != nil && baseAmount < *o.MinOrderAmount {
		return false
	}
	if o.MaxUsageCount != nil && o.UsedCount >= *o.MaxUsageCount {
		return false
	}
	return true
}
