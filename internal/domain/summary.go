package domain

import "github.com/shopspring/decimal"

// Totals is an expense/income aggregate over some window.
type Totals struct {
	Expense decimal.Decimal
	Income  decimal.Decimal
	Count   int
}

// Net is income minus expense.
func (t Totals) Net() decimal.Decimal {
	return t.Income.Sub(t.Expense)
}

// CategoryTotal is the summed amount of one category inside a window.
type CategoryTotal struct {
	Category string
	Amount   decimal.Decimal
	Count    int
}

// Share returns the category's percentage of total, or zero when total is not positive.
func (c CategoryTotal) Share(total decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() {
		return decimal.Zero
	}
	return c.Amount.Div(total).Mul(decimal.NewFromInt(100))
}
