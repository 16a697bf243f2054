package budget

import (
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-bot/internal/domain"
)

// RenderStatus formats evaluated lines as the budget status message.
func RenderStatus(lines []Line, today civil.Date, currency string) string {
	blocks := []string{fmt.Sprintf("💰 Budget status - %d/%d", int(today.Month), today.Year)}
	for _, l := range lines {
		blocks = append(blocks, fmt.Sprintf("%s %s: %s / %s (%s%%)\n  %s\n  Remaining: %s | %s",
			tierIcon(l.Tier),
			l.Category,
			domain.FormatMoney(l.Spent, currency),
			domain.FormatMoney(l.Limit, currency),
			l.Percent.StringFixed(0),
			ProgressBar(l.Percent),
			domain.FormatMoney(l.Remaining, currency),
			l.Tier,
		))
	}
	return strings.Join(blocks, "\n\n")
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
