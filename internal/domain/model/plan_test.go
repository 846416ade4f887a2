package model

import (
	"testing"
	"time"
)

func TestPlanDurationMonths(t *testing.T) {
	cases := map[PlanDuration]int{
		PlanDurationMonthly:   1,
		PlanDurationQuarterly: 3,
		PlanDurationYearly:    12,
	}
	for d, want := range cases {
		if got := d.Months(); got != want {
			t.Errorf("%s.Months() = %d, want %d", d, got, want)
		}
	}
}

func TestAddPlanDuration(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 10, 30, 0, 0, time.UTC)
	}

	cases := []struct {
		name     string
		start    time.Time
		duration PlanDuration
		want     time.Time
	}{
		{"plain month", day(2026, time.March, 15), PlanDurationMonthly, day(2026, time.April, 15)},
		{"end of month clamps to leap February", day(2024, time.January, 31), PlanDurationMonthly, day(2024, time.February, 29)},
		{"end of month clamps to short February", day(2025, time.January, 31), PlanDurationMonthly, day(2025, time.February, 28)},
		{"May 31 clamps to June 30", day(2026, time.May, 31), PlanDurationMonthly, day(2026, time.June, 30)},
		{"quarterly crosses year boundary", day(2026, time.November, 30), PlanDurationQuarterly, day(2027, time.February, 28)},
		{"yearly from leap day clamps", day(2024, time.February, 29), PlanDurationYearly, day(2025, time.February, 28)},
		{"yearly plain", day(2026, time.July, 1), PlanDurationYearly, day(2027, time.July, 1)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := AddPlanDuration(c.start, c.duration); !got.Equal(c.want) {
				t.Errorf("AddPlanDuration(%v, %s) = %v, want %v", c.start, c.duration, got, c.want)
			}
		})
	}
}
