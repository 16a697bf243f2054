package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Kind is the direction of money flow for a transaction.
type Kind string

const (
	KindExpense Kind = "expense"
	KindIncome  Kind = "income"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindExpense || k == KindIncome
}

// Transaction is one recorded expense or income event.
// Amount is always positive; Kind carries the sign.
type Transaction struct {
	ID          int64
	OwnerID     int64
	Kind        Kind
	Amount      decimal.Decimal
	Currency    string
	Category    string
	Description string
	Date        civil.Date
	RawText     string
	CreatedAt   time.Time
}

// TransactionPatch holds the editable fields of a transaction.
// Nil fields are left unchanged.
type TransactionPatch struct {
	Amount      *decimal.Decimal
	Category    *string
	Description *string
}

// Empty reports whether the patch changes nothing.
func (p TransactionPatch) Empty() bool {
	return p.Amount == nil && p.Category == nil && p.Description == nil
}

// Validate checks the invariants every persisted transaction must satisfy.
func (t *Transaction) Validate() error {
	if !t.Kind.Valid() {
		return Invalidf("unknown transaction type %q", t.Kind)
	}
	if err := CheckAmount(t.Amount); err != nil {
		return err
	}
	if !IsCategory(t.Category) {
		return Invalidf("unknown category %q", t.Category)
	}
	if !t.Date.IsValid() {
		return Invalidf("invalid date")
	}
	if t.Currency == "" {
		return Invalidf("currency is required")
	}
	return nil
}
