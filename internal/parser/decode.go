package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/shopspring/decimal"
)

// DecodeTransaction converts parsed fields into a transaction for ownerID.
// Missing or malformed fields yield a validation error. Unknown categories
// become "other"; a missing date means today.
func DecodeTransaction(fields map[string]interface{}, ownerID int64, today civil.Date, defaultCurrency string) (*domain.Transaction, error) {
	kind, err := getStringField(fields, "type", true)
	if err != nil {
		return nil, err
	}
	amount, err := getAmountField(fields, "amount")
	if err != nil {
		return nil, err
	}
	category, err := getOptionalStringField(fields, "category")
	if err != nil {
		return nil, err
	}
	description, err := getOptionalStringField(fields, "description")
	if err != nil {
		return nil, err
	}
	date, err := getDateField(fields, "date", today)
	if err != nil {
		return nil, err
	}
	currency, err := getCurrencyField(fields, defaultCurrency)
	if err != nil {
		return nil, err
	}

	tx := &domain.Transaction{
		OwnerID:     ownerID,
		Kind:        domain.Kind(strings.ToLower(strings.TrimSpace(kind))),
		Amount:      amount,
		Currency:    currency,
		Category:    domain.NormalizeCategory(category),
		Description: description,
		Date:        date,
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	return tx, nil
}

// DecodeRecurring converts parsed fields into a recurring payment for ownerID.
// A missing next_due_date falls back to the first due date after today.
func DecodeRecurring(fields map[string]interface{}, ownerID int64, today civil.Date, defaultCurrency string, firstDue func(civil.Date, domain.Frequency) (civil.Date, error)) (*domain.RecurringPayment, error) {
	name, err := getStringField(fields, "name", true)
	if err != nil {
		return nil, err
	}
	amount, err := getAmountField(fields, "amount")
	if err != nil {
		return nil, err
	}
	freqStr, err := getStringField(fields, "frequency", true)
	if err != nil {
		return nil, err
	}
	freq := domain.Frequency(strings.ToLower(strings.TrimSpace(freqStr)))
	if !freq.Valid() {
		return nil, domain.Invalidf("unknown frequency %q", freqStr)
	}

	due, err := getDateField(fields, "next_due_date", civil.Date{})
	if err != nil {
		return nil, err
	}
	if !due.IsValid() {
		if due, err = firstDue(today, freq); err != nil {
			return nil, domain.Invalidf("%v", err)
		}
	}

	currency, err := getCurrencyField(fields, defaultCurrency)
	if err != nil {
		return nil, err
	}

	p := &domain.RecurringPayment{
		OwnerID:          ownerID,
		Name:             strings.TrimSpace(name),
		Amount:           amount,
		Currency:         currency,
		Frequency:        freq,
		NextDueDate:      due,
		RemindDaysBefore: domain.DefaultRemindDaysBefore,
		Active:           true,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func getStringField(m map[string]interface{}, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return "", domain.Invalidf("missing required field %q", key)
		}
		return "", nil
	}
	val, ok := v.(string)
	if !ok {
		return "", domain.Invalidf("field %q has type %T, want string", key, v)
	}
	if required && strings.TrimSpace(val) == "" {
		return "", domain.Invalidf("required field %q is empty", key)
	}
	return val, nil
}

func getOptionalStringField(m map[string]interface{}, key string) (string, error) {
	s, err := getStringField(m, key, false)
	if err != nil {
		return "", err
	}
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "null") {
		return "", nil
	}
	return s, nil
}

// getAmountField accepts a JSON number or a numeric string and requires a positive value.
func getAmountField(m map[string]interface{}, key string) (decimal.Decimal, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return decimal.Zero, domain.Invalidf("missing required field %q", key)
	}

	var raw string
	switch val := v.(type) {
	case json.Number:
		raw = val.String()
	case float64:
		raw = decimal.NewFromFloat(val).String()
	case string:
		raw = val
	default:
		return decimal.Zero, domain.Invalidf("field %q has type %T, want number", key, v)
	}

	amount, err := domain.ParseAmount(raw)
	if err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// getDateField parses an ISO date, returning fallback when the field is absent or null.
func getDateField(m map[string]interface{}, key string, fallback civil.Date) (civil.Date, error) {
	s, err := getOptionalStringField(m, key)
	if err != nil {
		return civil.Date{}, err
	}
	if s == "" {
		return fallback, nil
	}
	d, err := civil.ParseDate(domain.NormalizeDigits(s))
	if err != nil {
		return civil.Date{}, domain.Invalidf("invalid date %q", s)
	}
	return d, nil
}

func getCurrencyField(m map[string]interface{}, fallback string) (string, error) {
	s, err := getOptionalStringField(m, "currency")
	if err != nil {
		return "", err
	}
	if s == "" {
		return fallback, nil
	}
	s = strings.ToUpper(s)
	if len(s) != 3 {
		return "", domain.Invalidf("invalid currency %q", s)
	}
	return s, nil
}

// describe renders fields for logs without dumping the raw text.
func describe(fields map[string]interface{}) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	return fmt.Sprintf("%d fields %v", len(fields), keys)
}
