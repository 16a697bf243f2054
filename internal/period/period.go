// Package period computes the calendar windows every summary and budget check runs over.
package period

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-bot/internal/clock"
	"github.com/dvloznov/finance-bot/internal/domain"
)

// Range is an inclusive span of calendar dates.
type Range struct {
	Start civil.Date
	End   civil.Date
}

// Contains reports whether d falls inside the range, bounds included.
func (r Range) Contains(d civil.Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Days is the number of calendar days in the range.
func (r Range) Days() int {
	return r.End.DaysSince(r.Start) + 1
}

func (r Range) String() string {
	return fmt.Sprintf("%s → %s", r.Start, r.End)
}

// MonthStart returns the first day of the month.
func MonthStart(year int, month time.Month) civil.Date {
	return civil.Date{Year: year, Month: month, Day: 1}
}

// MonthEnd returns the last day of the month.
func MonthEnd(year int, month time.Month) civil.Date {
	if month == time.December {
		return civil.Date{Year: year, Month: time.December, Day: 31}
	}
	return civil.Date{Year: year, Month: month + 1, Day: 1}.AddDays(-1)
}

// MonthRange returns the whole month as a Range.
func MonthRange(year int, month time.Month) Range {
	return Range{Start: MonthStart(year, month), End: MonthEnd(year, month)}
}

// PreviousMonth returns the month before (year, month), rolling January back a year.
func PreviousMonth(year int, month time.Month) (int, time.Month) {
	if month == time.January {
		return year - 1, time.December
	}
	return year, month - 1
}

// Today returns the clock's current calendar date.
func Today(c clock.Clock) civil.Date {
	return civil.DateOf(c.Now())
}

// CurrentMonth returns the month containing the clock's current date.
func CurrentMonth(c clock.Clock) Range {
	today := Today(c)
	return MonthRange(today.Year, today.Month)
}

// TrailingWeek returns the seven days ending on (and including) today.
func TrailingWeek(today civil.Date) Range {
	return Range{Start: today.AddDays(-6), End: today}
}

// ValidMonth reports whether m is between January and December.
func ValidMonth(m int) bool {
	return m >= 1 && m <= 12
}

// Midnight converts a date to midnight UTC.
func Midnight(d civil.Date) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// ResolveMonth fills a zero year or month from today and validates the month.
func ResolveMonth(today civil.Date, year, month int) (int, time.Month, error) {
	if year == 0 {
		year = today.Year
	}
	if month == 0 {
		month = int(today.Month)
	}
	if !ValidMonth(month) {
		return 0, 0, domain.Invalidf("month must be between 1 and 12, got %d", month)
	}
	return year, time.Month(month), nil
}
