// Package recurring manages periodic payments: their due-date arithmetic,
// their active/inactive lifecycle and the reminder selection used by the scheduler.
package recurring

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-bot/internal/domain"
)

// NextDueDate returns the due date that follows current for the given frequency.
//
// Monthly payments move to the 1st of the following month regardless of the
// current day. Yearly payments keep day and month; Feb 29 becomes Feb 28.
func NextDueDate(current civil.Date, f domain.Frequency) (civil.Date, error) {
	switch f {
	case domain.FrequencyDaily:
		return current.AddDays(1), nil
	case domain.FrequencyWeekly:
		return current.AddDays(7), nil
	case domain.FrequencyMonthly:
		if current.Month == time.December {
			return civil.Date{Year: current.Year + 1, Month: time.January, Day: 1}, nil
		}
		return civil.Date{Year: current.Year, Month: current.Month + 1, Day: 1}, nil
	case domain.FrequencyYearly:
		next := civil.Date{Year: current.Year + 1, Month: current.Month, Day: current.Day}
		if !next.IsValid() {
			next.Day = 28
		}
		return next, nil
	}
	return civil.Date{}, fmt.Errorf("NextDueDate: unknown frequency %q", f)
}

// DueWithin reports whether due falls on or before today + horizonDays.
func DueWithin(due, today civil.Date, horizonDays int) bool {
	return !due.After(today.AddDays(horizonDays))
}
