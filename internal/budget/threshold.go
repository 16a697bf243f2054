// Package budget compares monthly spending against per-category and overall limits.
package budget

import (
	"strings"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	warningRatio  = decimal.RequireFromString("0.8")
	exceededRatio = decimal.NewFromInt(1)
	hundred       = decimal.NewFromInt(100)
)

// BarWidth is the number of cells in a progress bar.
const BarWidth = 15

// Ratio returns spent/limit, or zero when limit is not positive.
func Ratio(spent, limit decimal.Decimal) decimal.Decimal {
	if !limit.IsPositive() {
		return decimal.Zero
	}
	return spent.Div(limit)
}

// Classify maps a spend ratio onto a tier.
func Classify(ratio decimal.Decimal) domain.Tier {
	switch {
	case ratio.GreaterThanOrEqual(exceededRatio):
		return domain.TierExceeded
	case ratio.GreaterThanOrEqual(warningRatio):
		return domain.TierWarning
	default:
		return domain.TierSafe
	}
}

// Percent converts a ratio to a percentage.
func Percent(ratio decimal.Decimal) decimal.Decimal {
	return ratio.Mul(hundred)
}

// ProgressBar renders pct (capped at 100) as a BarWidth-cell bar, with a
// marker once the warning or exceeded tier is reached.
func ProgressBar(pct decimal.Decimal) string {
	capped := decimal.Min(pct, hundred)
	if capped.IsNegative() {
		capped = decimal.Zero
	}
	filled := int(capped.Mul(decimal.NewFromInt(BarWidth)).Div(hundred).IntPart())

	bar := strings.Repeat("█", filled) + strings.Repeat("░", BarWidth-filled)
	switch Classify(pct.Div(hundred)) {
	case domain.TierExceeded:
		return bar + " ⚠️"
	case domain.TierWarning:
		return bar + " ⚡"
	}
	return bar
}

func tierIcon(t domain.Tier) string {
	switch t {
	case domain.TierExceeded:
		return "🔴"
	case domain.TierWarning:
		return "🟡"
	}
	return "🟢"
}
