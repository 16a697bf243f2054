package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Frequency is the repetition period of a recurring payment.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// Valid reports whether f is one of the known frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	}
	return false
}

// DefaultRemindDaysBefore is used when a payment is created without an explicit lead time.
const DefaultRemindDaysBefore = 1

// RecurringPayment is a periodic commitment tracked for reminders.
//
// RemindedFor holds the due date of the last cycle a reminder was sent for,
// so a reminder fires once per cycle even when the daily batch runs again.
type RecurringPayment struct {
	ID               int64
	OwnerID          int64
	Name             string
	Amount           decimal.Decimal
	Currency         string
	Frequency        Frequency
	NextDueDate      civil.Date
	RemindDaysBefore int
	Active           bool
	RemindedFor      *civil.Date
	CreatedAt        time.Time
}

// RemindedForCurrentCycle reports whether a reminder was already sent for NextDueDate.
func (p *RecurringPayment) RemindedForCurrentCycle() bool {
	return p.RemindedFor != nil && *p.RemindedFor == p.NextDueDate
}

// Validate checks the invariants of a recurring payment.
func (p *RecurringPayment) Validate() error {
	if p.Name == "" {
		return Invalidf("payment name is required")
	}
	if err := CheckAmount(p.Amount); err != nil {
		return err
	}
	if !p.Frequency.Valid() {
		return Invalidf("unknown frequency %q", p.Frequency)
	}
	if !p.NextDueDate.IsValid() {
		return Invalidf("invalid due date")
	}
	if p.RemindDaysBefore < 0 {
		return Invalidf("remind days before must not be negative")
	}
	return nil
}
