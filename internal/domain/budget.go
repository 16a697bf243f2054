package domain

import "github.com/shopspring/decimal"

// BudgetLimit caps spending in a category, or in total when Category is OverallCategory,
// for the current calendar month.
type BudgetLimit struct {
	ID          int64
	OwnerID     int64
	Category    string
	LimitAmount decimal.Decimal
}

// Tier classifies how close spending is to a limit.
type Tier int

const (
	TierSafe Tier = iota
	TierWarning
	TierExceeded
)

func (t Tier) String() string {
	switch t {
	case TierWarning:
		return "warning"
	case TierExceeded:
		return "exceeded"
	default:
		return "safe"
	}
}
