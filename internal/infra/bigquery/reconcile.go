package bigquery

import (
	"sort"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/shopspring/decimal"
)

// Mismatch is a category whose warehouse total differs from the primary store.
type Mismatch struct {
	Category  string
	Local     decimal.Decimal
	Warehouse decimal.Decimal
}

// CompareTotals returns the categories whose amounts differ between the
// primary store and the warehouse, sorted by name. A category missing on
// one side counts as zero there.
func CompareTotals(local, warehouse []domain.CategoryTotal) []Mismatch {
	byCategory := make(map[string]*Mismatch)
	get := func(cat string) *Mismatch {
		m, ok := byCategory[cat]
		if !ok {
			m = &Mismatch{Category: cat, Local: decimal.Zero, Warehouse: decimal.Zero}
			byCategory[cat] = m
		}
		return m
	}
	for _, ct := range local {
		m := get(ct.Category)
		m.Local = m.Local.Add(ct.Amount)
	}
	for _, ct := range warehouse {
		m := get(ct.Category)
		m.Warehouse = m.Warehouse.Add(ct.Amount)
	}

	var out []Mismatch
	for _, m := range byCategory {
		if !m.Local.Equal(m.Warehouse) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}
