package recurring

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-bot/internal/clock"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/logger"
	"github.com/dvloznov/finance-bot/internal/parser"
	"github.com/dvloznov/finance-bot/internal/period"
	"github.com/shopspring/decimal"
)

// Store persists recurring payments. Owner-scoped methods report a missing or
// foreign id as domain.NotFoundError.
type Store interface {
	Insert(ctx context.Context, p *domain.RecurringPayment) error
	ListByOwner(ctx context.Context, ownerID int64, activeOnly bool) ([]domain.RecurringPayment, error)
	DueBy(ctx context.Context, date civil.Date) ([]domain.RecurringPayment, error)
	Delete(ctx context.Context, ownerID, id int64) error
	SetActive(ctx context.Context, ownerID, id int64, active bool) error
	UpdateDueDate(ctx context.Context, id int64, next civil.Date) error
	MarkReminded(ctx context.Context, id int64, due civil.Date) error
}

// Service is the recurring payment lifecycle: Active and Inactive states
// toggled by Enable and Disable, with Delete removing the payment for good.
type Service struct {
	store    Store
	parser   parser.Parser
	clock    clock.Clock
	currency string
}

// NewService creates a recurring payment service.
func NewService(store Store, p parser.Parser, c clock.Clock, currency string) *Service {
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	return &Service{store: store, parser: p, clock: c, currency: currency}
}

// Add accepts either the structured pipe format or free text.
func (s *Service) Add(ctx context.Context, ownerID int64, input string) domain.Reply {
	if strings.Contains(input, "|") {
		return s.AddStructured(ctx, ownerID, input)
	}
	return s.AddFromText(ctx, ownerID, input)
}

// AddFromText asks the parser for recurring payment fields and stores the result.
func (s *Service) AddFromText(ctx context.Context, ownerID int64, text string) domain.Reply {
	today := period.Today(s.clock)

	res, err := s.parser.ParseRecurring(ctx, text, today)
	if err != nil {
		return domain.Failure(ctx, "add_recurring", err)
	}
	if res.Unclear {
		return domain.Ask(res.Question)
	}

	p, err := parser.DecodeRecurring(res.Fields, ownerID, today, s.currency, NextDueDate)
	if err != nil {
		return domain.Failure(ctx, "add_recurring", err)
	}
	return s.save(ctx, p)
}

// AddStructured stores a payment written as "name | amount | frequency [| YYYY-MM-DD]".
// Input that does not fit the format is handed to the parser instead.
func (s *Service) AddStructured(ctx context.Context, ownerID int64, input string) domain.Reply {
	p, ok := ParseStructured(input, period.Today(s.clock), s.currency)
	if !ok {
		log := logger.ForOwner(ctx, ownerID)
		log.Debug().Msg("Structured recurring input rejected, falling back to parser")
		return s.AddFromText(ctx, ownerID, input)
	}
	p.OwnerID = ownerID
	return s.save(ctx, p)
}

func (s *Service) save(ctx context.Context, p *domain.RecurringPayment) domain.Reply {
	if err := s.store.Insert(ctx, p); err != nil {
		return domain.Failure(ctx, "add_recurring", err)
	}

	log := logger.ForOwner(ctx, p.OwnerID)
	log.Info().Int64("payment_id", p.ID).Str("frequency", string(p.Frequency)).Msg("Recurring payment added")

	return domain.Success("🔁 Recurring payment added:\n"+
		"  📌 Name: %s\n"+
		"  💶 Amount: %s\n"+
		"  🔄 Frequency: %s\n"+
		"  📅 Next due: %s\n"+
		"  🔖 ID: #%d",
		p.Name, domain.FormatMoney(p.Amount, p.Currency), p.Frequency, p.NextDueDate, p.ID)
}

var frequencyWords = map[string]domain.Frequency{
	"daily":   domain.FrequencyDaily,
	"day":     domain.FrequencyDaily,
	"يومي":    domain.FrequencyDaily,
	"weekly":  domain.FrequencyWeekly,
	"week":    domain.FrequencyWeekly,
	"أسبوعي":  domain.FrequencyWeekly,
	"اسبوعي":  domain.FrequencyWeekly,
	"monthly": domain.FrequencyMonthly,
	"month":   domain.FrequencyMonthly,
	"شهري":    domain.FrequencyMonthly,
	"yearly":  domain.FrequencyYearly,
	"annual":  domain.FrequencyYearly,
	"year":    domain.FrequencyYearly,
	"سنوي":    domain.FrequencyYearly,
}

// ParseStructured reads "name | amount | frequency [| YYYY-MM-DD]". The due
// date defaults to the first due date after today. ok is false when any part
// is missing or unreadable.
func ParseStructured(input string, today civil.Date, currency string) (*domain.RecurringPayment, bool) {
	parts := strings.Split(input, "|")
	if len(parts) < 3 || len(parts) > 4 {
		return nil, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	name := parts[0]
	if name == "" {
		return nil, false
	}
	amount, err := domain.ParseAmount(parts[1])
	if err != nil {
		return nil, false
	}
	freq, ok := frequencyWords[strings.ToLower(parts[2])]
	if !ok {
		return nil, false
	}

	var due civil.Date
	if len(parts) == 4 && parts[3] != "" {
		if due, err = civil.ParseDate(domain.NormalizeDigits(parts[3])); err != nil {
			return nil, false
		}
	} else if due, err = NextDueDate(today, freq); err != nil {
		return nil, false
	}

	p := &domain.RecurringPayment{
		Name:             name,
		Amount:           amount,
		Currency:         currency,
		Frequency:        freq,
		NextDueDate:      due,
		RemindDaysBefore: domain.DefaultRemindDaysBefore,
		Active:           true,
	}
	if p.Validate() != nil {
		return nil, false
	}
	return p, true
}

// List renders the owner's active payments and the total of monthly commitments.
func (s *Service) List(ctx context.Context, ownerID int64) domain.Reply {
	payments, err := s.store.ListByOwner(ctx, ownerID, true)
	if err != nil {
		return domain.Failure(ctx, "list_recurring", err)
	}
	if len(payments) == 0 {
		return domain.Success("📭 No recurring payments yet.\n\n💡 Add one with /add_recurring Netflix | 15 | monthly")
	}

	lines := []string{"🔁 Active recurring payments:", ""}
	monthly := decimal.Zero
	for _, p := range payments {
		lines = append(lines, fmt.Sprintf("  #%d %s: %s (%s) - next: %s",
			p.ID, p.Name, domain.FormatMoney(p.Amount, p.Currency), p.Frequency, p.NextDueDate))
		if p.Frequency == domain.FrequencyMonthly {
			monthly = monthly.Add(p.Amount)
		}
	}
	if monthly.IsPositive() {
		lines = append(lines, "", "💶 Monthly commitments: "+domain.FormatMoney(monthly, s.currency))
	}
	return domain.Success("%s", strings.Join(lines, "\n"))
}

// Delete removes a payment. Missing and foreign ids produce the same reply.
func (s *Service) Delete(ctx context.Context, ownerID, id int64) domain.Reply {
	if err := s.store.Delete(ctx, ownerID, id); err != nil {
		return domain.Failure(ctx, "delete_recurring", err)
	}
	return domain.Success("🗑️ Recurring payment #%d deleted.", id)
}

// Enable resumes reminders for a paused payment.
func (s *Service) Enable(ctx context.Context, ownerID, id int64) domain.Reply {
	if err := s.store.SetActive(ctx, ownerID, id, true); err != nil {
		return domain.Failure(ctx, "resume_recurring", err)
	}
	return domain.Success("✅ Recurring payment #%d resumed.", id)
}

// Disable pauses reminders for a payment without deleting it.
func (s *Service) Disable(ctx context.Context, ownerID, id int64) domain.Reply {
	if err := s.store.SetActive(ctx, ownerID, id, false); err != nil {
		return domain.Failure(ctx, "pause_recurring", err)
	}
	return domain.Success("⏸️ Recurring payment #%d paused.", id)
}

// DueSoon returns active payments due on or before today + horizonDays,
// earliest first. Overdue payments are included.
func (s *Service) DueSoon(ctx context.Context, horizonDays int) ([]domain.RecurringPayment, error) {
	payments, err := s.store.DueBy(ctx, period.Today(s.clock).AddDays(horizonDays))
	if err != nil {
		return nil, fmt.Errorf("DueSoon: %w", err)
	}
	return payments, nil
}

// Advance moves p to its next due date and returns it.
func (s *Service) Advance(ctx context.Context, p *domain.RecurringPayment) (civil.Date, error) {
	next, err := NextDueDate(p.NextDueDate, p.Frequency)
	if err != nil {
		return civil.Date{}, fmt.Errorf("Advance: %w", err)
	}
	if err := s.store.UpdateDueDate(ctx, p.ID, next); err != nil {
		return civil.Date{}, fmt.Errorf("Advance: %w", err)
	}
	p.NextDueDate = next
	return next, nil
}

// MarkReminded records that the reminder for p's current cycle went out.
func (s *Service) MarkReminded(ctx context.Context, p *domain.RecurringPayment) error {
	if err := s.store.MarkReminded(ctx, p.ID, p.NextDueDate); err != nil {
		return fmt.Errorf("MarkReminded: %w", err)
	}
	due := p.NextDueDate
	p.RemindedFor = &due
	return nil
}
