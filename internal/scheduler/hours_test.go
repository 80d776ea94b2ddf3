package scheduler

import (
	"testing"
	"time"
)

func sydney(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Australia/Sydney")
	if err != nil {
		t.Skipf("zone database unavailable: %v", err)
	}
	return loc
}

func TestInTradingHours(t *testing.T) {
	loc := sydney(t)

	cases := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"weekday mid-session", time.Date(2025, 7, 1, 12, 0, 0, 0, loc), true},
		{"weekday at open", time.Date(2025, 7, 1, 10, 0, 0, 0, loc), true},
		{"weekday just before open", time.Date(2025, 7, 1, 9, 59, 59, 0, loc), false},
		{"weekday at close", time.Date(2025, 7, 1, 16, 0, 0, 0, loc), false},
		{"weekday just before close", time.Date(2025, 7, 1, 15, 59, 59, 0, loc), true},
		{"weekday evening", time.Date(2025, 7, 1, 20, 0, 0, 0, loc), false},
		{"saturday midday", time.Date(2025, 7, 5, 12, 0, 0, 0, loc), false},
		{"sunday midday", time.Date(2025, 7, 6, 12, 0, 0, 0, loc), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := InTradingHours(tc.t, loc); got != tc.want {
				t.Errorf("InTradingHours(%v) = %v, want %v", tc.t, got, tc.want)
			}
		})
	}
}

func TestInTradingHoursConvertsZone(t *testing.T) {
	loc := sydney(t)

	// 01:00 UTC on a July weekday is 11:00 in Sydney (AEST, UTC+10).
	utc := time.Date(2025, 7, 1, 1, 0, 0, 0, time.UTC)
	if !InTradingHours(utc, loc) {
		t.Error("01:00 UTC in July should be inside Sydney trading hours")
	}

	// 08:00 UTC is 18:00 in Sydney.
	utc = time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)
	if InTradingHours(utc, loc) {
		t.Error("08:00 UTC in July should be outside Sydney trading hours")
	}
}

func TestMarketStatusOpen(t *testing.T) {
	loc := sydney(t)
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, loc)

	status := MarketStatusAt(now, loc)

	if !status.Open {
		t.Fatal("status.Open = false during session")
	}
	if status.State != "open" {
		t.Errorf("state = %q, want open", status.State)
	}
	wantClose := time.Date(2025, 7, 1, 16, 0, 0, 0, loc)
	if !status.NextClose.Equal(wantClose) {
		t.Errorf("next close = %v, want %v", status.NextClose, wantClose)
	}
	wantOpen := time.Date(2025, 7, 2, 10, 0, 0, 0, loc)
	if !status.NextOpen.Equal(wantOpen) {
		t.Errorf("next open = %v, want %v", status.NextOpen, wantOpen)
	}
}

func TestMarketStatusWeekend(t *testing.T) {
	loc := sydney(t)
	now := time.Date(2025, 7, 5, 12, 0, 0, 0, loc) // Saturday

	status := MarketStatusAt(now, loc)

	if status.Open {
		t.Fatal("status.Open = true on Saturday")
	}
	if status.State != "closed - weekend" {
		t.Errorf("state = %q, want closed - weekend", status.State)
	}
	wantOpen := time.Date(2025, 7, 7, 10, 0, 0, 0, loc) // Monday
	if !status.NextOpen.Equal(wantOpen) {
		t.Errorf("next open = %v, want %v", status.NextOpen, wantOpen)
	}
}

func TestMarketStatusAfterHours(t *testing.T) {
	loc := sydney(t)
	now := time.Date(2025, 7, 1, 18, 0, 0, 0, loc)

	status := MarketStatusAt(now, loc)

	if status.Open {
		t.Fatal("status.Open = true after close")
	}
	if status.State != "closed - outside trading hours" {
		t.Errorf("state = %q, want closed - outside trading hours", status.State)
	}
	wantOpen := time.Date(2025, 7, 2, 10, 0, 0, 0, loc)
	if !status.NextOpen.Equal(wantOpen) {
		t.Errorf("next open = %v, want %v", status.NextOpen, wantOpen)
	}
}

func TestMarketStatusFridayEveningRollsToMonday(t *testing.T) {
	loc := sydney(t)
	now := time.Date(2025, 7, 4, 17, 0, 0, 0, loc) // Friday after close

	status := MarketStatusAt(now, loc)

	wantOpen := time.Date(2025, 7, 7, 10, 0, 0, 0, loc) // Monday
	if !status.NextOpen.Equal(wantOpen) {
		t.Errorf("next open = %v, want %v", status.NextOpen, wantOpen)
	}
}

func TestMarketStatusBeforeOpenSameDay(t *testing.T) {
	loc := sydney(t)
	now := time.Date(2025, 7, 1, 8, 0, 0, 0, loc)

	status := MarketStatusAt(now, loc)

	if status.Open {
		t.Fatal("status.Open = true before open")
	}
	wantOpen := time.Date(2025, 7, 1, 10, 0, 0, 0, loc)
	if !status.NextOpen.Equal(wantOpen) {
		t.Errorf("next open = %v, want same-day %v", status.NextOpen, wantOpen)
	}
}
