package scheduler

import (
	"time"

	"github.com/lachlanbr/shortbot/internal/domain"
)

// ASX trading hours: 10:00-16:00 local, Monday to Friday. The continuous
// session's open/close auctions are ignored.
const (
	openHour  = 10
	closeHour = 16
)

// SydneyLocation loads the exchange timezone, falling back to a fixed AEST
// offset when the zone database is unavailable.
func SydneyLocation() *time.Location {
	loc, err := time.LoadLocation("Australia/Sydney")
	if err != nil {
		return time.FixedZone("AEST", 10*60*60)
	}
	return loc
}

// InTradingHours reports whether the exchange is trading at t.
func InTradingHours(t time.Time, loc *time.Location) bool {
	local := t.In(loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	h := local.Hour()
	return h >= openHour && h < closeHour
}

// MarketStatusAt describes the exchange state at t, including the next
// session boundary times.
func MarketStatusAt(t time.Time, loc *time.Location) domain.MarketStatus {
	local := t.In(loc)
	open := InTradingHours(t, loc)

	status := domain.MarketStatus{
		Open:      open,
		NextOpen:  nextOpen(local),
		CheckedAt: t.UTC(),
	}

	switch {
	case open:
		status.State = "open"
		status.NextClose = time.Date(local.Year(), local.Month(), local.Day(), closeHour, 0, 0, 0, loc)
	case local.Weekday() == time.Saturday || local.Weekday() == time.Sunday:
		status.State = "closed - weekend"
	default:
		status.State = "closed - outside trading hours"
	}

	return status
}

// nextOpen returns the next weekday 10:00 strictly after the current session
// opened, in exchange-local time.
func nextOpen(local time.Time) time.Time {
	day := time.Date(local.Year(), local.Month(), local.Day(), openHour, 0, 0, 0, local.Location())
	if local.Before(day) && isWeekday(day) {
		return day
	}
	for {
		day = day.AddDate(0, 0, 1)
		if isWeekday(day) {
			return day
		}
	}
}

func isWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
