package budget

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-bot/internal/clock"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/logger"
	"github.com/dvloznov/finance-bot/internal/period"
	"github.com/shopspring/decimal"
)

// LimitStore persists budget limits.
type LimitStore interface {
	Upsert(ctx context.Context, ownerID int64, category string, limit decimal.Decimal) (*domain.BudgetLimit, error)
	Get(ctx context.Context, ownerID int64, category string) (*domain.BudgetLimit, error)
	List(ctx context.Context, ownerID int64) ([]domain.BudgetLimit, error)
	Delete(ctx context.Context, ownerID int64, category string) error
}

// SpendSource sums expenses for a category, or every category for domain.OverallCategory.
type SpendSource interface {
	SpentIn(ctx context.Context, ownerID int64, category string, r period.Range) (decimal.Decimal, error)
}

// Line is one limit evaluated against current spending.
type Line struct {
	Category  string
	Limit     decimal.Decimal
	Spent     decimal.Decimal
	Percent   decimal.Decimal
	Remaining decimal.Decimal
	Tier      domain.Tier
}

// Service evaluates budgets for the calendar month containing the clock's date.
type Service struct {
	limits   LimitStore
	spend    SpendSource
	clock    clock.Clock
	currency string
}

// NewService creates a budget service.
func NewService(limits LimitStore, spend SpendSource, c clock.Clock, currency string) *Service {
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	return &Service{limits: limits, spend: spend, clock: c, currency: currency}
}

// Evaluate compares one limit against spending inside window.
func (s *Service) Evaluate(ctx context.Context, limit domain.BudgetLimit, window period.Range) (Line, error) {
	spent, err := s.spend.SpentIn(ctx, limit.OwnerID, limit.Category, window)
	if err != nil {
		return Line{}, fmt.Errorf("Evaluate: %w", err)
	}

	ratio := Ratio(spent, limit.LimitAmount)
	remaining := limit.LimitAmount.Sub(spent)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	return Line{
		Category:  limit.Category,
		Limit:     limit.LimitAmount,
		Spent:     spent,
		Percent:   Percent(ratio),
		Remaining: remaining,
		Tier:      Classify(ratio),
	}, nil
}

// Status evaluates every stored limit in stored order (category name ascending).
// It performs no writes.
func (s *Service) Status(ctx context.Context, ownerID int64) ([]Line, error) {
	limits, err := s.limits.List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("Status: list limits: %w", err)
	}

	window := period.CurrentMonth(s.clock)
	lines := make([]Line, 0, len(limits))
	for _, l := range limits {
		line, err := s.Evaluate(ctx, l, window)
		if err != nil {
			return nil, fmt.Errorf("Status: %s: %w", l.Category, err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// StatusReply renders Status for the chat surface.
func (s *Service) StatusReply(ctx context.Context, ownerID int64) domain.Reply {
	lines, err := s.Status(ctx, ownerID)
	if err != nil {
		return domain.Failure(ctx, "budget_status", err)
	}
	if len(lines) == 0 {
		return domain.Success("📭 No budgets set.\n\n💡 Use /budget set <category> <amount> to add one.\nExample: /budget set food 200")
	}
	return domain.Success("%s", RenderStatus(lines, period.Today(s.clock), s.currency))
}

// CheckAlert evaluates the category limit and the overall limit after an
// expense in category was recorded. It returns an empty string when both are safe.
func (s *Service) CheckAlert(ctx context.Context, ownerID int64, category string) (string, error) {
	window := period.CurrentMonth(s.clock)

	var alerts []string
	for _, key := range []string{category, domain.OverallCategory} {
		limit, err := s.limits.Get(ctx, ownerID, key)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return "", fmt.Errorf("CheckAlert: get %s limit: %w", key, err)
		}

		line, err := s.Evaluate(ctx, *limit, window)
		if err != nil {
			return "", fmt.Errorf("CheckAlert: %w", err)
		}
		if msg := alertMessage(line); msg != "" {
			alerts = append(alerts, msg)
		}
		if category == domain.OverallCategory {
			break
		}
	}

	if len(alerts) > 0 {
		log := logger.ForOwner(ctx, ownerID)
		log.Info().Str("category", category).Int("alerts", len(alerts)).Msg("Budget alert raised")
	}
	return strings.Join(alerts, "\n"), nil
}

// SetBudget validates and stores a monthly limit.
func (s *Service) SetBudget(ctx context.Context, ownerID int64, label, amount string) domain.Reply {
	category, ok := domain.CanonicalCategory(label)
	if !ok {
		return domain.Failure(ctx, "set_budget", domain.Invalidf(
			"unknown category %q. Use one of: %s, %s", label, strings.Join(domain.Categories, ", "), domain.OverallCategory))
	}

	limit, err := domain.ParseAmount(amount)
	if err != nil {
		return domain.Failure(ctx, "set_budget", err)
	}

	saved, err := s.limits.Upsert(ctx, ownerID, category, limit)
	if err != nil {
		return domain.Failure(ctx, "set_budget", err)
	}

	return domain.Success("✅ Budget for \"%s\" set:\n  💰 Limit: %s per month",
		saved.Category, domain.FormatMoney(saved.LimitAmount, s.currency))
}

// DeleteBudget removes a limit.
func (s *Service) DeleteBudget(ctx context.Context, ownerID int64, label string) domain.Reply {
	category, ok := domain.CanonicalCategory(label)
	if !ok {
		category = strings.TrimSpace(label)
	}

	if err := s.limits.Delete(ctx, ownerID, category); err != nil {
		if isNotFound(err) {
			return domain.Reply{Message: fmt.Sprintf("⚠️ No budget set for \"%s\".", category)}
		}
		return domain.Failure(ctx, "delete_budget", err)
	}
	return domain.Success("🗑️ Budget for \"%s\" deleted.", category)
}

func alertMessage(line Line) string {
	pct := line.Percent.StringFixed(0)
	scope := fmt.Sprintf("the \"%s\" budget", line.Category)
	if line.Category == domain.OverallCategory {
		scope = "your overall budget"
	}

	switch line.Tier {
	case domain.TierExceeded:
		return fmt.Sprintf("🔴 You have exceeded %s! (%s%%)", scope, pct)
	case domain.TierWarning:
		return fmt.Sprintf("🟡 You have used %s%% of %s!", pct, scope)
	}
	return ""
}
