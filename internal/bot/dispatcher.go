// Package bot turns one incoming chat message into a reply. Slash commands
// map onto service operations; any other text is recorded as a transaction.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/ledger"
	"github.com/dvloznov/finance-bot/internal/logger"
)

// Ledger is the transaction side of the bot.
type Ledger interface {
	AddFromText(ctx context.Context, ownerID int64, text string) domain.Reply
	Delete(ctx context.Context, ownerID, id int64) domain.Reply
	Edit(ctx context.Context, ownerID, id int64, patch domain.TransactionPatch) domain.Reply
	Today(ctx context.Context, ownerID int64) domain.Reply
	Week(ctx context.Context, ownerID int64) domain.Reply
	Month(ctx context.Context, ownerID int64, year, month int) domain.Reply
	Range(ctx context.Context, ownerID int64, start, end civil.Date) domain.Reply
	Category(ctx context.Context, ownerID int64, label string, year, month int) domain.Reply
	Search(ctx context.Context, ownerID int64, query string) domain.Reply
	Balance(ctx context.Context, ownerID int64) domain.Reply
	Compare(ctx context.Context, ownerID int64, first, second ledger.MonthRef) domain.Reply
}

// Budgets manages monthly spending limits.
type Budgets interface {
	StatusReply(ctx context.Context, ownerID int64) domain.Reply
	SetBudget(ctx context.Context, ownerID int64, label, amount string) domain.Reply
	DeleteBudget(ctx context.Context, ownerID int64, label string) domain.Reply
}

// Recurring manages recurring payments.
type Recurring interface {
	Add(ctx context.Context, ownerID int64, input string) domain.Reply
	List(ctx context.Context, ownerID int64) domain.Reply
	Delete(ctx context.Context, ownerID, id int64) domain.Reply
	Enable(ctx context.Context, ownerID, id int64) domain.Reply
	Disable(ctx context.Context, ownerID, id int64) domain.Reply
}

// Exporter renders month exports.
type Exporter interface {
	Export(ctx context.Context, ownerID int64, year, month int) domain.Reply
}

// Users registers owners on first contact.
type Users interface {
	Ensure(ctx context.Context, externalID int64, displayName string) (*domain.User, bool, error)
}

// Dispatcher routes messages to services.
type Dispatcher struct {
	ledger    Ledger
	budgets   Budgets
	recurring Recurring
	exporter  Exporter
	users     Users
}

// NewDispatcher wires the services behind the bot.
func NewDispatcher(l Ledger, b Budgets, r Recurring, e Exporter, u Users) *Dispatcher {
	return &Dispatcher{ledger: l, budgets: b, recurring: r, exporter: e, users: u}
}

type handlerFunc func(d *Dispatcher, ctx context.Context, ownerID int64, name, args string) domain.Reply

var commands map[string]handlerFunc

func init() {
	commands = map[string]handlerFunc{
		"/start":            (*Dispatcher).start,
		"/help":             (*Dispatcher).help,
		"/myid":             (*Dispatcher).myID,
		"/today":            (*Dispatcher).today,
		"/week":             (*Dispatcher).week,
		"/month":            (*Dispatcher).month,
		"/range":            (*Dispatcher).dateRange,
		"/delete":           (*Dispatcher).deleteTransaction,
		"/edit":             (*Dispatcher).edit,
		"/category":         (*Dispatcher).category,
		"/search":           (*Dispatcher).search,
		"/compare":          (*Dispatcher).compare,
		"/balance":          (*Dispatcher).balance,
		"/budget":           (*Dispatcher).budget,
		"/recurring":        (*Dispatcher).listRecurring,
		"/add_recurring":    (*Dispatcher).addRecurring,
		"/delete_recurring": (*Dispatcher).deleteRecurring,
		"/pause_recurring":  (*Dispatcher).pauseRecurring,
		"/resume_recurring": (*Dispatcher).resumeRecurring,
		"/export":           (*Dispatcher).export,
	}
}

// Handle answers one message from ownerID. name is the sender's display name.
func (d *Dispatcher) Handle(ctx context.Context, ownerID int64, name, text string) domain.Reply {
	ctx = logger.WithContext(ctx, logger.ForOwner(ctx, ownerID))
	d.register(ctx, ownerID, name)

	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Reply{Message: "✍️ Send a transaction like \"lunch 12.50\" or /help for commands."}
	}
	if !strings.HasPrefix(text, "/") {
		return d.ledger.AddFromText(ctx, ownerID, text)
	}

	cmd, args := splitCommand(text)
	h, ok := commands[cmd]
	if !ok {
		return domain.Reply{Message: fmt.Sprintf("❓ Unknown command %s. Send /help for the list.", cmd)}
	}

	log := logger.FromContext(ctx)
	log.Debug().Str("command", cmd).Msg("Handling command")
	return h(d, ctx, ownerID, name, args)
}

func (d *Dispatcher) register(ctx context.Context, ownerID int64, name string) {
	if d.users == nil {
		return
	}
	log := logger.FromContext(ctx)
	_, created, err := d.users.Ensure(ctx, ownerID, name)
	if err != nil {
		log.Error().Err(err).Msg("Failed to register user")
		return
	}
	if created {
		log.Info().Str("display_name", name).Msg("Registered new user")
	}
}

// splitCommand separates "/cmd@botname args" into "/cmd" and "args".
func splitCommand(text string) (string, string) {
	cmd, args, _ := strings.Cut(text, " ")
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd), strings.TrimSpace(args)
}

func usage(ctx context.Context, format string) domain.Reply {
	return domain.Failure(ctx, "command", domain.Invalidf("usage: %s", format))
}

// parseID reads a positive record id, accepting Arabic-Indic digits.
func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(domain.NormalizeDigits(strings.TrimPrefix(s, "#")), 10, 64)
	return id, err == nil && id > 0
}

func parseInts(fields []string) ([]int, bool) {
	out := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(domain.NormalizeDigits(f))
		if err != nil {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}

// parseYearMonth reads "", "m" or "y m".
func parseYearMonth(args string) (year, month int, ok bool) {
	nums, ok := parseInts(strings.Fields(args))
	if !ok {
		return 0, 0, false
	}
	switch len(nums) {
	case 0:
		return 0, 0, true
	case 1:
		return 0, nums[0], true
	case 2:
		return nums[0], nums[1], true
	}
	return 0, 0, false
}
