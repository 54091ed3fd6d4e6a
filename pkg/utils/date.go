package utils

import (
	"log"
	"time"
)

// MarketLocation returns the exchange timezone used for calendar-day
// bucketing of predictions (US equities, America/New_York).
func MarketLocation() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		log.Fatal("Failed to load location", err)
	}
	return loc
}

// TimeNowMarket returns the current time in the market timezone.
func TimeNowMarket() time.Time {
	return time.Now().In(MarketLocation())
}

// MarketDay truncates t to its calendar day in the market timezone. The
// result is stored as a bare date, so it is normalized to UTC midnight.
func MarketDay(t time.Time) time.Time {
	local := t.In(MarketLocation())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}
