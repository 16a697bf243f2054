package bot

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/ledger"
)

const helpText = `🤖 Personal finance assistant

📝 Record a transaction by writing it naturally:
• "spent 50 on groceries"
• "salary 2000"
• "rent 800"

🔧 Commands:
/today - today's summary
/week - last 7 days
/month [y m] - month summary
/range YYYY-MM-DD YYYY-MM-DD - custom range
/category name [y m] - one category in a month
/search text - find transactions
/compare [m1 y1 m2 y2] - compare two months
/balance - overall balance
/edit id amount=… category=… description=…
/delete id - delete a transaction
/budget - budget status
/budget set category amount
/budget delete category
/recurring - recurring payments
/add_recurring text or name | amount | frequency [| YYYY-MM-DD]
/delete_recurring id
/pause_recurring id
/resume_recurring id
/export [y m] - export a month as CSV
/myid - your account id`

func (d *Dispatcher) start(ctx context.Context, ownerID int64, name, args string) domain.Reply {
	greeting := "Hi! 👋"
	if name != "" {
		greeting = fmt.Sprintf("Hi %s! 👋", name)
	}
	return domain.Success("%s\nI keep track of your spending and income.\nWrite any transaction and I'll record it.\n\nSend /help to see every command.", greeting)
}

func (d *Dispatcher) help(ctx context.Context, ownerID int64, name, args string) domain.Reply {
	return domain.Success("%s", helpText)
}

func (d *Dispatcher) myID(ctx context.Context, ownerID int64, name, args string) domain.Reply {
	return domain.Success("🆔 Your account id: %d\nAdd it to ALLOWED_USER_IDS to whitelist this account.", ownerID)
}

func (d *Dispatcher) today(ctx context.Context, ownerID int64, name, args string) domain.Reply {
	return d.ledger.Today(ctx, ownerID)
}

func (d *Dispatcher) week(ctx context.Context, ownerID int64, name, args string) domain.Reply {
	return d.ledger.Week(ctx, ownerID)
}

func (d *Dispatcher) month(ctx context.Context, ownerID int64, name, args string) domain.Reply {
	year, month, ok := parseYearMonth(args)
	if !ok {
		return usage(ctx, "/month [year month]")
	}
	return d.ledger.Month(ctx, ownerID, year, month)
}

func (d *Dispatcher) dateRange(ctx context.Context, ownerID int64, name, args string) domain.Reply {
	fields := strings.Fields(domain.NormalizeDigits(args))
	if len(fields) != 2 {
		return usage(ctx, "/range YYYY-MM-DD YYYY-MM-DD")
	}
	start, err := civil.ParseDate(fields[0])
	if err != nil {
		return usage(ctx, "/range YYYY-MM-DD YYYY-MM-DD")
	}
	end, err := civil.ParseDate(fields[1])
	if err != nil {
		return usage(ctx, "/range YYYY-MM-DD YYYY-MM-DD")
	}
	return d.ledger.Range(ctx, ownerID, start, end)
}

func (d *Dispatcher) deleteTransaction(ctx context.Context, ownerID int64, name, args string) domain.Reply {
	id, ok := parseID(args)
	if !ok {
		return usage(ctx, "/delete id (for example /delete 5)")
	}
	return d.ledger.Delete(ctx, ownerID, id)
}

func (d *Dispatcher) edit(ctx context.Context, ownerID int64, name, args string) domain.Reply {
	rawID, rest, _ := strings.Cut(args, " ")
	id, ok := parseID(rawID)
	if !ok {
		return usage(ctx, "/edit id amount=12.5 category=food description=lunch")
	}
	patch, err := ledger.ParsePatch(rest)
	if err != nil {
		return domain.Failure(ctx, "edit", err)
	}
	return d.ledger.Edit(ctx, ownerID, id, patch)
}

func (d *Dispatcher) category(ctx context.Context, ownerID int64, name, args string) domain.Reply {
	label, rest, _ := strings.Cut(args, " ")
	if label == "" {
		return usage(ctx, "/category name [year month]")
	}
	year, month, ok := parseYearMonth(rest)
	if !ok {
		return usage(ctx, "/category name [year month]")
	}
	return d.ledger.Category(ctx, ownerID, label, year, month)
}

func (d *Dispatcher) search(ctx context.Context, ownerID int64, name, args string) domain.Reply {
	if args == "" {
		return usage(ctx, "/search text")
	}
	return d.ledger.Search(ctx, ownerID, args)
}

// compare accepts "", "m1", "m1 y1" or "m1 y1 m2 y2".
func (d *Dispatcher) compare(ctx context.Context, ownerID int64, name, args string) domain.Reply {
	nums, ok := parseInts(strings.Fields(args))
	if !ok || len(nums) == 3 || len(nums) > 4 {
		return usage(ctx, "/compare [month1 year1 month2 year2]")
	}
	var first, second ledger.MonthRef
	if len(nums) >= 1 {
		first.Month = nums[0]
	}
	if len(nums) >= 2 {
		first.Year = nums[1]
	}
	if len(nums) == 4 {
		second = ledger.MonthRef{Month: nums[2], Year: nums[3]}
	}
	return d.ledger.Compare(ctx, ownerID, first, second)
}

func (d *Dispatcher) balance(ctx context.Context, ownerID int64, name, args string) domain.Reply {
	return d.ledger.Balance(ctx, ownerID)
}

func (d *Dispatcher) budget(ctx context.Context, ownerID int64, name, args string) domain.Reply {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return d.budgets.StatusReply(ctx, ownerID)
	}
	switch strings.ToLower(fields[0]) {
	case "set":
		if len(fields) < 3 {
			return usage(ctx, "/budget set category amount")
		}
		return d.budgets.SetBudget(ctx, ownerID, fields[1], strings.Join(fields[2:], ""))
	case "delete", "remove":
		if len(fields) != 2 {
			return usage(ctx, "/budget delete category")
		}
		return d.budgets.DeleteBudget(ctx, ownerID, fields[1])
	}
	return usage(ctx, "/budget, /budget set category amount or /budget delete category")
}

func (d *Dispatcher) listRecurring(ctx context.Context, ownerID int64, name, args string) domain.Reply {
	return d.recurring.List(ctx, ownerID)
}

func (d *Dispatcher) addRecurring(ctx context.Context, ownerID int64, name, args string) domain.Reply {
	if args == "" {
		return usage(ctx, "/add_recurring Netflix 15 monthly, or Netflix | 15 | monthly | 2026-06-01")
	}
	return d.recurring.Add(ctx, ownerID, args)
}

func (d *Dispatcher) deleteRecurring(ctx context.Context, ownerID int64, name, args string) domain.Reply {
	id, ok := parseID(args)
	if !ok {
		return usage(ctx, "/delete_recurring id")
	}
	return d.recurring.Delete(ctx, ownerID, id)
}

func (d *Dispatcher) pauseRecurring(ctx context.Context, ownerID int64, name, args string) domain.Reply {
	id, ok := parseID(args)
	if !ok {
		return usage(ctx, "/pause_recurring id")
	}
	return d.recurring.Disable(ctx, ownerID, id)
}

func (d *Dispatcher) resumeRecurring(ctx context.Context, ownerID int64, name, args string) domain.Reply {
	id, ok := parseID(args)
	if !ok {
		return usage(ctx, "/resume_recurring id")
	}
	return d.recurring.Enable(ctx, ownerID, id)
}

func (d *Dispatcher) export(ctx context.Context, ownerID int64, name, args string) domain.Reply {
	year, month, ok := parseYearMonth(args)
	if !ok {
		return usage(ctx, "/export [year month]")
	}
	return d.exporter.Export(ctx, ownerID, year, month)
}
