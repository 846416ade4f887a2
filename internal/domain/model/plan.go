package model

import "time"

type PlanDuration string

const (
	PlanDurationMonthly   PlanDuration = "monthly"
	PlanDurationQuarterly PlanDuration = "quarterly"
	PlanDurationYearly    PlanDuration = "yearly"
)

type PlanTier string

const (
	PlanTierBasic      PlanTier = "basic"
	PlanTierStandard   PlanTier = "standard"
	PlanTierPremium    PlanTier = "premium"
	PlanTierEnterprise PlanTier = "enterprise"
)

// SubscriptionPlan is read-only from the billing core's perspective; admin
// tooling owns its lifecycle. Price is minor units. A plan referenced by a
// completed payment must never change price retroactively, which is why
// PaymentRecord snapshots the amounts instead of pointing back here.
type SubscriptionPlan struct {
	ID           string // UUID
	Name         string
	Description  string
	Price        int64 // minor units
	Duration     PlanDuration
	Tier         PlanTier
	MaxUsers     int
	MaxStorageMB int64
	IsPopular    bool
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Months returns the billing period length in calendar months.
func (d PlanDuration) Months() int {
	switch d {
	case PlanDurationQuarterly:
		return 3
	case PlanDurationYearly:
		return 12
	default:
		return 1
	}
}

// AddPlanDuration returns start advanced by the plan's billing period using
// calendar-aware month addition with end-of-month clamping:
// Jan 31 + 1 month = Feb 28 (29 in leap years). time.AddDate is unsuitable
// here because it normalizes overflow days into the following month.
func AddPlanDuration(start time.Time, d PlanDuration) time.Time {
	return addCalendarMonths(start, d.Months())
}

func addCalendarMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	total := int(month) - 1 + months
	year += total / 12
	month = time.Month(total%12 + 1)
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	// day 0 of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
