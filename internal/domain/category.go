package domain

import "strings"

// OverallCategory is the reserved budget key that caps total monthly spending.
const OverallCategory = "overall"

// CategoryOther is the fallback for anything the parser cannot place.
const CategoryOther = "other"

// Categories is the closed set of transaction categories, in display order.
var Categories = []string{
	"food",
	"transport",
	"groceries",
	"rent",
	"bills",
	"subscriptions",
	"entertainment",
	"health",
	"education",
	"clothing",
	"gifts",
	"salary",
	"transfer",
	CategoryOther,
}

// categoryAliases maps localized labels the parser may return onto canonical names.
var categoryAliases = map[string]string{
	"طعام":      "food",
	"مواصلات":   "transport",
	"سوبرماركت": "groceries",
	"إيجار":     "rent",
	"فواتير":    "bills",
	"اشتراكات":  "subscriptions",
	"ترفيه":     "entertainment",
	"صحة":       "health",
	"تعليم":     "education",
	"ملابس":     "clothing",
	"هدايا":     "gifts",
	"راتب":      "salary",
	"تحويل":     "transfer",
	"أخرى":      CategoryOther,
	"إجمالي":    OverallCategory,
	"total":     OverallCategory,
}

var categorySet = func() map[string]bool {
	m := make(map[string]bool, len(Categories))
	for _, c := range Categories {
		m[c] = true
	}
	return m
}()

// IsCategory reports whether name is a canonical transaction category.
func IsCategory(name string) bool {
	return categorySet[name]
}

// IsBudgetCategory reports whether name may carry a budget limit.
func IsBudgetCategory(name string) bool {
	return name == OverallCategory || IsCategory(name)
}

// CanonicalCategory resolves a user or model supplied label to its canonical
// name. The second result is false when the label is unknown.
func CanonicalCategory(label string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(label))
	if s == "" {
		return "", false
	}
	if IsBudgetCategory(s) {
		return s, true
	}
	if c, ok := categoryAliases[s]; ok {
		return c, true
	}
	return "", false
}

// NormalizeCategory maps a label onto a transaction category, falling back to "other".
func NormalizeCategory(label string) string {
	c, ok := CanonicalCategory(label)
	if !ok || c == OverallCategory {
		return CategoryOther
	}
	return c
}
