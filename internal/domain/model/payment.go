package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // order opened; awaiting gateway confirmation
	PaymentStatusSuccess   PaymentStatus = "success"   // verified; subscription window set
	PaymentStatusFailed    PaymentStatus = "failed"    // gateway reported failure
	PaymentStatusRefunded  PaymentStatus = "refunded"  // refunded after success
	PaymentStatusCancelled PaymentStatus = "cancelled" // abandoned before capture
)

// CanTransition encodes the payment state machine:
// Pending -> {Success, Failed, Cancelled}; Success -> Refunded.
// Failed, Cancelled and Refunded are terminal.
func (s PaymentStatus) CanTransition(to PaymentStatus) bool {
	switch s {
	case PaymentStatusPending:
		switch to {
		case PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusCancelled:
			return true
		default:
			return false
		}
	case PaymentStatusSuccess:
		return to == PaymentStatusRefunded
	case PaymentStatusFailed, PaymentStatusRefunded, PaymentStatusCancelled:
		return false
	default:
		return false
	}
}

func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusFailed, PaymentStatusRefunded, PaymentStatusCancelled:
		return true
	case PaymentStatusPending, PaymentStatusSuccess:
		return false
	default:
		return false
	}
}

type PaymentMethod string

const (
	PaymentMethodCard       PaymentMethod = "card"
	PaymentMethodNetBanking PaymentMethod = "netbanking"
	PaymentMethodUPI        PaymentMethod = "upi"
	PaymentMethodWallet     PaymentMethod = "wallet"
	PaymentMethodOther      PaymentMethod = "other"
)

// MethodFromString maps a provider method string onto the known set. Unknown
// non-empty values collapse to PaymentMethodOther; empty stays nil because
// the synchronous confirm path does not learn the method.
func MethodFromString(s string) *PaymentMethod {
	switch PaymentMethod(s) {
	case PaymentMethodCard, PaymentMethodNetBanking, PaymentMethodUPI, PaymentMethodWallet:
		m := PaymentMethod(s)
		return &m
	}
	if s == "" {
		return nil
	}
	m := PaymentMethodOther
	return &m
}

// PaymentRecord is the durable record of one payment attempt and the
// entitlement window it produced. Amounts are snapshots taken at activation
// so later plan/offer edits never alter history.
//
// Invariants:
//   - FinalAmount = BaseAmount - DiscountAmount, never negative.
//   - TransactionID is globally unique and immutable after creation.
//   - SubscriptionStart/End are set together, exactly once, with the
//     transition to Success.
type PaymentRecord struct {
	ID                string  // UUID
	TransactionID     string  // locally generated, e.g. TXN_01J8...
	GatewayOrderID    string  // provider order id
	GatewayPaymentID  *string // provider payment id; nil until capture
	UserID            string
	CompanyID         *string // tenant owner, when the user belongs to one
	PlanID            string
	OfferID           *string
	BaseAmount        int64 // minor units
	DiscountAmount    int64
	FinalAmount       int64
	Currency          string
	Status            PaymentStatus
	Method            *PaymentMethod
	PaymentDate       time.Time
	SubscriptionStart *time.Time
	SubscriptionEnd   *time.Time
	Notes             string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CoversInstant reports whether the record grants entitlement at the given
// instant (both window boundaries inclusive).
func (p *PaymentRecord) CoversInstant(now time.Time) bool {
	if p.Status != PaymentStatusSuccess || p.SubscriptionStart == nil || p.SubscriptionEnd == nil {
		return false
	}
	return !now.Before(*p.SubscriptionStart) && !now.After(*p.SubscriptionEnd)
}
