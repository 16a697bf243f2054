package recurring

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-bot/internal/domain"
)

func TestNextDueDate(t *testing.T) {
	tests := []struct {
		name      string
		current   civil.Date
		frequency domain.Frequency
		want      civil.Date
	}{
		{"monthly clamps to first", civil.Date{Year: 2026, Month: 1, Day: 15}, domain.FrequencyMonthly, civil.Date{Year: 2026, Month: 2, Day: 1}},
		{"monthly from first", civil.Date{Year: 2026, Month: 2, Day: 1}, domain.FrequencyMonthly, civil.Date{Year: 2026, Month: 3, Day: 1}},
		{"monthly december rollover", civil.Date{Year: 2026, Month: 12, Day: 31}, domain.FrequencyMonthly, civil.Date{Year: 2027, Month: 1, Day: 1}},
		{"yearly", civil.Date{Year: 2026, Month: 2, Day: 20}, domain.FrequencyYearly, civil.Date{Year: 2027, Month: 2, Day: 20}},
		{"yearly leap day", civil.Date{Year: 2028, Month: 2, Day: 29}, domain.FrequencyYearly, civil.Date{Year: 2029, Month: 2, Day: 28}},
		{"weekly", civil.Date{Year: 2026, Month: 2, Day: 20}, domain.FrequencyWeekly, civil.Date{Year: 2026, Month: 2, Day: 27}},
		{"weekly across month", civil.Date{Year: 2026, Month: 2, Day: 25}, domain.FrequencyWeekly, civil.Date{Year: 2026, Month: 3, Day: 4}},
		{"daily end of year", civil.Date{Year: 2026, Month: 12, Day: 31}, domain.FrequencyDaily, civil.Date{Year: 2027, Month: 1, Day: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextDueDate(tt.current, tt.frequency)
			if err != nil {
				t.Fatalf("NextDueDate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("NextDueDate(%v, %s) = %v, want %v", tt.current, tt.frequency, got, tt.want)
			}
		})
	}
}

func TestNextDueDate_UnknownFrequency(t *testing.T) {
	if _, err := NextDueDate(civil.Date{Year: 2026, Month: 1, Day: 1}, "fortnightly"); err == nil {
		t.Error("expected error for unknown frequency")
	}
}

func TestDueWithin(t *testing.T) {
	today := civil.Date{Year: 2026, Month: 3, Day: 10}

	tests := []struct {
		due  civil.Date
		want bool
	}{
		{today.AddDays(-3), true},
		{today, true},
		{today.AddDays(2), true},
		{today.AddDays(3), false},
	}

	for _, tt := range tests {
		t.Run(tt.due.String(), func(t *testing.T) {
			if got := DueWithin(tt.due, today, 2); got != tt.want {
				t.Errorf("DueWithin(%v) = %v, want %v", tt.due, got, tt.want)
			}
		})
	}
}
