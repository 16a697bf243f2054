package ledger

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/shopspring/decimal"
)

func kindIcon(k domain.Kind) string {
	if k == domain.KindIncome {
		return "🟢"
	}
	return "🔴"
}

func renderRecorded(tx *domain.Transaction) string {
	emoji := "💸"
	if tx.Kind == domain.KindIncome {
		emoji = "💰"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s Recorded %s:\n", emoji, tx.Kind)
	fmt.Fprintf(&b, "  📂 Category: %s\n", tx.Category)
	fmt.Fprintf(&b, "  💶 Amount: %s\n", domain.FormatMoney(tx.Amount, tx.Currency))
	fmt.Fprintf(&b, "  📅 Date: %s\n", tx.Date)
	if tx.Description != "" {
		fmt.Fprintf(&b, "  📝 Note: %s\n", tx.Description)
	}
	fmt.Fprintf(&b, "  🔖 ID: #%d", tx.ID)
	return b.String()
}

func totalsLines(t domain.Totals, currency string) []string {
	return []string{
		"💸 Total expenses: " + domain.FormatMoney(t.Expense, currency),
		"💰 Total income: " + domain.FormatMoney(t.Income, currency),
		"📈 Net: " + domain.FormatMoney(t.Net(), currency),
	}
}

func breakdownLines(cats []domain.CategoryTotal, totalExpense decimal.Decimal, currency string) []string {
	if len(cats) == 0 {
		return nil
	}
	lines := []string{"", "📂 Expenses by category:"}
	for _, c := range cats {
		lines = append(lines, fmt.Sprintf("  • %s: %s (%s%%)",
			c.Category, domain.FormatMoney(c.Amount, currency), c.Share(totalExpense).StringFixed(0)))
	}
	return lines
}

func describe(tx domain.Transaction) string {
	if tx.Description == "" {
		return ""
	}
	return " - " + tx.Description
}

func renderDay(sum Summary, currency string) string {
	if len(sum.Transactions) == 0 {
		return fmt.Sprintf("📭 No transactions on %s.", sum.Range.Start)
	}

	lines := []string{fmt.Sprintf("📊 Summary for %s:", sum.Range.Start), ""}
	for _, tx := range sum.Transactions {
		lines = append(lines, fmt.Sprintf("  %s #%d %s: %s%s",
			kindIcon(tx.Kind), tx.ID, tx.Category, domain.FormatMoney(tx.Amount, tx.Currency), describe(tx)))
	}
	lines = append(lines, "")
	lines = append(lines, totalsLines(sum.Totals, currency)...)
	return strings.Join(lines, "\n")
}

// RenderWeek formats a trailing-week summary.
func RenderWeek(sum Summary, currency string) string {
	if sum.Totals.Count == 0 {
		return "📭 No transactions in the last 7 days."
	}

	lines := []string{fmt.Sprintf("📊 Last 7 days (%s → %s):", sum.Range.Start, sum.Range.End), ""}
	lines = append(lines, totalsLines(sum.Totals, currency)...)
	lines = append(lines, breakdownLines(sum.Categories, sum.Totals.Expense, currency)...)
	return strings.Join(lines, "\n")
}

func renderMonth(sum Summary, year int, month time.Month, currency string) string {
	if sum.Totals.Count == 0 {
		return fmt.Sprintf("📭 No transactions in %d/%d.", int(month), year)
	}

	lines := []string{fmt.Sprintf("📊 Summary for %d/%d:", int(month), year), ""}
	lines = append(lines, totalsLines(sum.Totals, currency)...)
	lines = append(lines, breakdownLines(sum.Categories, sum.Totals.Expense, currency)...)
	return strings.Join(lines, "\n")
}

// DailyAverage is total expense divided by the number of days in the summary range.
func (s Summary) DailyAverage() decimal.Decimal {
	days := s.Range.Days()
	if days <= 0 {
		return decimal.Zero
	}
	return s.Totals.Expense.Div(decimal.NewFromInt(int64(days)))
}

func renderRange(sum Summary, currency string) string {
	if sum.Totals.Count == 0 {
		return fmt.Sprintf("📭 No transactions between %s and %s.", sum.Range.Start, sum.Range.End)
	}

	lines := []string{fmt.Sprintf("📋 Report %s → %s (%d days):", sum.Range.Start, sum.Range.End, sum.Range.Days()), ""}
	lines = append(lines, totalsLines(sum.Totals, currency)...)
	lines = append(lines, "📊 Daily average: "+domain.FormatMoney(sum.DailyAverage(), currency))
	lines = append(lines, breakdownLines(sum.Categories, sum.Totals.Expense, currency)...)
	lines = append(lines, "", fmt.Sprintf("🧾 Transactions: %d", sum.Totals.Count))
	return strings.Join(lines, "\n")
}

func renderCategory(category string, year int, month time.Month, txs []domain.Transaction, currency string) string {
	if len(txs) == 0 {
		return fmt.Sprintf("📭 No transactions in \"%s\" for %d/%d.", category, int(month), year)
	}

	lines := []string{fmt.Sprintf("🏷️ \"%s\" in %d/%d:", category, int(month), year), ""}
	total := decimal.Zero
	for _, tx := range txs {
		lines = append(lines, fmt.Sprintf("  %s #%d | %s | %s%s",
			kindIcon(tx.Kind), tx.ID, tx.Date, domain.FormatMoney(tx.Amount, tx.Currency), describe(tx)))
		total = total.Add(tx.Amount)
	}
	lines = append(lines, "", fmt.Sprintf("💶 Total: %s (%d transactions)", domain.FormatMoney(total, currency), len(txs)))
	return strings.Join(lines, "\n")
}

func renderSearch(query string, txs []domain.Transaction, currency string) string {
	if len(txs) == 0 {
		return fmt.Sprintf("📭 No results for \"%s\".", query)
	}

	lines := []string{fmt.Sprintf("🔍 Results for \"%s\" (%d):", query, len(txs)), ""}
	total := decimal.Zero
	for _, tx := range txs {
		lines = append(lines, fmt.Sprintf("  %s #%d | %s | %s | %s%s",
			kindIcon(tx.Kind), tx.ID, tx.Date, tx.Category, domain.FormatMoney(tx.Amount, tx.Currency), describe(tx)))
		total = total.Add(tx.Amount)
	}
	lines = append(lines, "", "💶 Total: "+domain.FormatMoney(total, currency))
	return strings.Join(lines, "\n")
}

func renderBalance(all, month domain.Totals, monthStart civil.Date, currency string) string {
	balance := all.Net()
	icon := "📈"
	if balance.IsNegative() {
		icon = "📉"
	}

	lines := []string{
		"🏦 Balance",
		"",
		"💰 Total income: " + domain.FormatMoney(all.Income, currency),
		"💸 Total expenses: " + domain.FormatMoney(all.Expense, currency),
		"",
		fmt.Sprintf("%s Overall balance: %s", icon, domain.FormatMoney(balance, currency)),
		"",
		fmt.Sprintf("📅 This month (%d/%d):", int(monthStart.Month), monthStart.Year),
		"  💰 Income: " + domain.FormatMoney(month.Income, currency),
		"  💸 Expenses: " + domain.FormatMoney(month.Expense, currency),
		"  📈 Net: " + domain.FormatMoney(month.Net(), currency),
	}
	return strings.Join(lines, "\n")
}

func signed(d decimal.Decimal, currency string) string {
	if d.IsNegative() {
		return domain.FormatMoney(d, currency)
	}
	return "+" + domain.FormatMoney(d, currency)
}

func renderCompare(cmp Comparison, currency string) string {
	lines := []string{fmt.Sprintf("📊 %s ↔ %s:", cmp.First, cmp.Second), ""}
	if len(cmp.Categories) == 0 {
		lines = append(lines, "  No expenses in either month.")
	}
	for _, c := range cmp.Categories {
		lines = append(lines, fmt.Sprintf("  %s %s: %s → %s (%s)",
			DirectionOf(c.Diff()).Arrow(), c.Category,
			domain.FormatMoney(c.Before, currency), domain.FormatMoney(c.After, currency),
			signed(c.Diff(), currency)))
	}

	lines = append(lines, "", strings.Repeat("─", 30))
	lines = append(lines, fmt.Sprintf("%s Expenses: %s → %s (%s)",
		DirectionOf(cmp.ExpenseDiff()).Arrow(),
		domain.FormatMoney(cmp.FirstTotal.Expense, currency),
		domain.FormatMoney(cmp.SecondTotal.Expense, currency),
		signed(cmp.ExpenseDiff(), currency)))
	lines = append(lines, fmt.Sprintf("%s Income: %s → %s (%s)",
		DirectionOf(cmp.IncomeDiff()).Arrow(),
		domain.FormatMoney(cmp.FirstTotal.Income, currency),
		domain.FormatMoney(cmp.SecondTotal.Income, currency),
		signed(cmp.IncomeDiff(), currency)))
	return strings.Join(lines, "\n")
}
