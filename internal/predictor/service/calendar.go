package service

import "time"

// MarketCalendar answers whether the exchange is open on a given date.
// Holiday calendars are owned by an external collaborator; the default
// implementation only knows about weekends.
type MarketCalendar interface {
	IsTradingDay(t time.Time) bool
}

type weekdayCalendar struct{}

// NewWeekdayCalendar creates a calendar that treats every weekday as a
// trading day.
func NewWeekdayCalendar() MarketCalendar {
	return weekdayCalendar{}
}

func (weekdayCalendar) IsTradingDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}
