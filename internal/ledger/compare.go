package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/period"
	"github.com/shopspring/decimal"
)

// Direction is the sign of a change between two periods.
type Direction int

const (
	Flat Direction = iota
	Up
	Down
)

// DirectionOf classifies diff.
func DirectionOf(diff decimal.Decimal) Direction {
	switch diff.Sign() {
	case 1:
		return Up
	case -1:
		return Down
	}
	return Flat
}

// Arrow renders d as an emoji.
func (d Direction) Arrow() string {
	switch d {
	case Up:
		return "📈"
	case Down:
		return "📉"
	}
	return "➡️"
}

// MonthRef names a calendar month. Zero fields are filled in by Compare.
type MonthRef struct {
	Year  int
	Month int
}

func (m MonthRef) String() string {
	return fmt.Sprintf("%d/%d", m.Month, m.Year)
}

// CategoryDiff is one category's expense in both months.
type CategoryDiff struct {
	Category string
	Before   decimal.Decimal
	After    decimal.Decimal
}

// Diff is After minus Before.
func (c CategoryDiff) Diff() decimal.Decimal {
	return c.After.Sub(c.Before)
}

// Comparison holds two months side by side.
type Comparison struct {
	First       MonthRef
	Second      MonthRef
	FirstTotal  domain.Totals
	SecondTotal domain.Totals
	Categories  []CategoryDiff
}

// ExpenseDiff is the change in total expense.
func (c Comparison) ExpenseDiff() decimal.Decimal {
	return c.SecondTotal.Expense.Sub(c.FirstTotal.Expense)
}

// IncomeDiff is the change in total income.
func (c Comparison) IncomeDiff() decimal.Decimal {
	return c.SecondTotal.Income.Sub(c.FirstTotal.Income)
}

// ResolveCompare fills defaults: the second month is the current one and the
// first is the month before the second, rolling the year back from January.
// A first month given without a year uses the second month's year.
func ResolveCompare(first, second MonthRef, today civil.Date) (MonthRef, MonthRef, error) {
	if second.Year == 0 {
		second.Year = today.Year
	}
	if second.Month == 0 {
		second.Month = int(today.Month)
	}
	if first.Month == 0 {
		y, m := period.PreviousMonth(second.Year, time.Month(second.Month))
		first = MonthRef{Year: y, Month: int(m)}
	} else if first.Year == 0 {
		first.Year = second.Year
	}

	for _, ref := range []MonthRef{first, second} {
		if !period.ValidMonth(ref.Month) {
			return first, second, domain.Invalidf("month must be between 1 and 12, got %d", ref.Month)
		}
	}
	return first, second, nil
}

// BuildComparison loads both months and diffs their expense categories.
func (s *Service) BuildComparison(ctx context.Context, ownerID int64, first, second MonthRef) (Comparison, error) {
	first, second, err := ResolveCompare(first, second, period.Today(s.clock))
	if err != nil {
		return Comparison{}, err
	}

	cmp := Comparison{First: first, Second: second}
	before := map[string]decimal.Decimal{}
	after := map[string]decimal.Decimal{}

	for _, side := range []struct {
		ref    MonthRef
		totals *domain.Totals
		cats   map[string]decimal.Decimal
	}{
		{first, &cmp.FirstTotal, before},
		{second, &cmp.SecondTotal, after},
	} {
		r := period.MonthRange(side.ref.Year, time.Month(side.ref.Month))
		totals, err := s.store.Totals(ctx, ownerID, &r)
		if err != nil {
			return Comparison{}, fmt.Errorf("BuildComparison: totals %s: %w", side.ref, err)
		}
		*side.totals = totals

		cats, err := s.store.CategoryTotals(ctx, ownerID, domain.KindExpense, r)
		if err != nil {
			return Comparison{}, fmt.Errorf("BuildComparison: categories %s: %w", side.ref, err)
		}
		for _, c := range cats {
			side.cats[c.Category] = c.Amount
		}
	}

	names := make(map[string]bool, len(before)+len(after))
	for c := range before {
		names[c] = true
	}
	for c := range after {
		names[c] = true
	}
	for c := range names {
		cmp.Categories = append(cmp.Categories, CategoryDiff{Category: c, Before: before[c], After: after[c]})
	}
	sort.Slice(cmp.Categories, func(i, j int) bool {
		return cmp.Categories[i].Category < cmp.Categories[j].Category
	})
	return cmp, nil
}

// Compare renders two months side by side.
func (s *Service) Compare(ctx context.Context, ownerID int64, first, second MonthRef) domain.Reply {
	cmp, err := s.BuildComparison(ctx, ownerID, first, second)
	if err != nil {
		return domain.Failure(ctx, "compare", err)
	}
	return domain.Success("%s", renderCompare(cmp, s.currency))
}
