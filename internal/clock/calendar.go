// Package clock provides US equity market session semantics as pure
// functions of an instant: no global mutable state, no wall-clock
// reads baked into the API beyond what the caller passes in.
package clock

import "time"

// Session is the market session a given instant falls into.
type Session string

const (
	PreMarket  Session = "pre_market"
	Regular    Session = "regular"
	AfterHours Session = "after_hours"
	Closed     Session = "closed"
)

var newYork *time.Location

func init() {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// time/tzdata is not imported; fall back to a fixed EST/EDT-less
		// offset only if the system has no zoneinfo database at all.
		loc = time.FixedZone("America/New_York", -5*60*60)
	}
	newYork = loc
}

// staticHolidays are the fixed-date (non observed-shift) US market
// holidays this calendar recognises. Floating holidays (e.g. Good
// Friday, Thanksgiving) are resolved by isFloatingHoliday per
// year below rather than hardcoded per instance.
var staticHolidays = map[string]bool{
	"01-01": true, // New Year's Day
	"06-19": true, // Juneteenth
	"07-04": true, // Independence Day
	"12-25": true, // Christmas
}

// IsTradingDay reports whether t's calendar date (in America/New_York)
// is a trading day: not a weekend, not a recognised holiday.
func IsTradingDay(t time.Time) bool {
	local := t.In(newYork)
	wd := local.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	if staticHolidays[local.Format("01-02")] {
		return false
	}
	if isFloatingHoliday(local) {
		return false
	}
	return true
}

// isFloatingHoliday resolves the US market holidays whose date moves
// year to year: Memorial Day (last Monday in May), Labor Day (first
// Monday in September), Thanksgiving (fourth Thursday in November),
// and Good Friday (the Friday before Easter Sunday, computed via the
// anonymous Gregorian algorithm).
func isFloatingHoliday(local time.Time) bool {
	y, m, d := local.Date()
	switch m {
	case time.May:
		if local.Weekday() == time.Monday {
			nextMonday := local.AddDate(0, 0, 7)
			if nextMonday.Month() != time.May {
				return true
			}
		}
	case time.September:
		if local.Weekday() == time.Monday && d <= 7 {
			return true
		}
	case time.November:
		if local.Weekday() == time.Thursday && d >= 22 && d <= 28 {
			return true
		}
	}
	good := goodFriday(y)
	return local.Month() == good.Month() && d == good.Day()
}

// goodFriday returns the date of Good Friday for year y using the
// anonymous Gregorian Easter algorithm, minus two days.
func goodFriday(y int) time.Time {
	a := y % 19
	b := y / 100
	c := y % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	easter := time.Date(y, time.Month(month), day, 0, 0, 0, 0, newYork)
	return easter.AddDate(0, 0, -2)
}

// SessionAt returns the session t (in America/New_York local time)
// falls into. Non-trading days are always Closed regardless of
// wall-clock hour.
func SessionAt(t time.Time) Session {
	if !IsTradingDay(t) {
		return Closed
	}
	local := t.In(newYork)
	minutesOfDay := local.Hour()*60 + local.Minute()
	switch {
	case minutesOfDay >= 4*60 && minutesOfDay < 9*60+30:
		return PreMarket
	case minutesOfDay >= 9*60+30 && minutesOfDay < 16*60:
		return Regular
	case minutesOfDay >= 16*60 && minutesOfDay < 20*60:
		return AfterHours
	default:
		return Closed
	}
}

// NextTradingDay returns the earliest trading day strictly after t's
// calendar date, at midnight America/New_York.
func NextTradingDay(t time.Time) time.Time {
	local := t.In(newYork)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, newYork)
	for {
		day = day.AddDate(0, 0, 1)
		if IsTradingDay(day) {
			return day
		}
	}
}

// Location returns the America/New_York *time.Location this package
// resolves session boundaries against.
func Location() *time.Location {
	return newYork
}
