// Package ledger records transactions from free text and answers summary
// questions about them.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-bot/internal/clock"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/logger"
	"github.com/dvloznov/finance-bot/internal/parser"
	"github.com/dvloznov/finance-bot/internal/period"
)

// SearchLimit caps the number of rows a search returns.
const SearchLimit = 20

// Store persists transactions. Owner-scoped lookups report a missing or
// foreign id as domain.NotFoundError.
type Store interface {
	Insert(ctx context.Context, tx *domain.Transaction) error
	Delete(ctx context.Context, ownerID, id int64) error
	Update(ctx context.Context, ownerID, id int64, patch domain.TransactionPatch) (*domain.Transaction, error)
	ListRange(ctx context.Context, ownerID int64, r period.Range) ([]domain.Transaction, error)
	ListCategory(ctx context.Context, ownerID int64, category string, r period.Range) ([]domain.Transaction, error)
	Search(ctx context.Context, ownerID int64, query string, limit int) ([]domain.Transaction, error)
	Totals(ctx context.Context, ownerID int64, r *period.Range) (domain.Totals, error)
	CategoryTotals(ctx context.Context, ownerID int64, kind domain.Kind, r period.Range) ([]domain.CategoryTotal, error)
}

// BudgetChecker raises threshold alerts after an expense is stored.
type BudgetChecker interface {
	CheckAlert(ctx context.Context, ownerID int64, category string) (string, error)
}

// Mirror receives a copy of every ledger change. Failures are logged only.
type Mirror interface {
	MirrorTransaction(ctx context.Context, tx domain.Transaction) error
	RemoveTransaction(ctx context.Context, ownerID, id int64) error
}

// Service records and summarizes transactions.
type Service struct {
	store    Store
	parser   parser.Parser
	budgets  BudgetChecker
	mirror   Mirror
	clock    clock.Clock
	currency string
}

// NewService creates a ledger service. budgets may be nil.
func NewService(store Store, p parser.Parser, budgets BudgetChecker, c clock.Clock, currency string) *Service {
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	return &Service{store: store, parser: p, budgets: budgets, clock: c, currency: currency}
}

// UseMirror attaches a warehouse mirror.
func (s *Service) UseMirror(m Mirror) {
	s.mirror = m
}

// Currency is the display currency for totals.
func (s *Service) Currency() string {
	return s.currency
}

// AddFromText parses text into a transaction and stores it. An unclear parse
// returns the model's question unchanged and writes nothing.
func (s *Service) AddFromText(ctx context.Context, ownerID int64, text string) domain.Reply {
	today := period.Today(s.clock)

	res, err := s.parser.ParseTransaction(ctx, text, today)
	if err != nil {
		return domain.Failure(ctx, "add_transaction", err)
	}
	if res.Unclear {
		return domain.Ask(res.Question)
	}

	tx, err := parser.DecodeTransaction(res.Fields, ownerID, today, s.currency)
	if err != nil {
		return domain.Failure(ctx, "add_transaction", err)
	}
	tx.RawText = text

	if err := s.store.Insert(ctx, tx); err != nil {
		return domain.Failure(ctx, "add_transaction", err)
	}

	log := logger.ForOwner(ctx, ownerID)
	log.Info().
		Int64("transaction_id", tx.ID).
		Str("kind", string(tx.Kind)).
		Str("category", tx.Category).
		Msg("Transaction recorded")

	s.mirrorInsert(ctx, *tx)

	msg := renderRecorded(tx)
	if tx.Kind == domain.KindExpense && s.budgets != nil {
		alert, err := s.budgets.CheckAlert(ctx, ownerID, tx.Category)
		if err != nil {
			log.Error().Err(err).Msg("Budget check failed")
		} else if alert != "" {
			msg += "\n\n" + alert
		}
	}
	return domain.Success("%s", msg)
}

// Delete removes a transaction. Missing and foreign ids produce the same reply.
func (s *Service) Delete(ctx context.Context, ownerID, id int64) domain.Reply {
	if err := s.store.Delete(ctx, ownerID, id); err != nil {
		return domain.Failure(ctx, "delete_transaction", err)
	}

	if s.mirror != nil {
		if err := s.mirror.RemoveTransaction(ctx, ownerID, id); err != nil {
			log := logger.ForOwner(ctx, ownerID)
			log.Warn().Err(err).Int64("transaction_id", id).Msg("Warehouse mirror delete failed")
		}
	}
	return domain.Success("🗑️ Transaction #%d deleted.", id)
}

// Edit applies patch to a transaction.
func (s *Service) Edit(ctx context.Context, ownerID, id int64, patch domain.TransactionPatch) domain.Reply {
	if patch.Category != nil {
		c, ok := domain.CanonicalCategory(*patch.Category)
		if !ok || c == domain.OverallCategory {
			return domain.Failure(ctx, "edit_transaction", domain.Invalidf("unknown category %q", *patch.Category))
		}
		patch.Category = &c
	}

	tx, err := s.store.Update(ctx, ownerID, id, patch)
	if err != nil {
		return domain.Failure(ctx, "edit_transaction", err)
	}
	s.mirrorInsert(ctx, *tx)

	var changes []string
	if patch.Amount != nil {
		changes = append(changes, "💶 Amount: "+domain.FormatMoney(tx.Amount, tx.Currency))
	}
	if patch.Category != nil {
		changes = append(changes, "📂 Category: "+tx.Category)
	}
	if patch.Description != nil {
		changes = append(changes, "📝 Description: "+tx.Description)
	}
	return domain.Success("✏️ Transaction #%d updated:\n  %s", id, strings.Join(changes, "\n  "))
}

func (s *Service) mirrorInsert(ctx context.Context, tx domain.Transaction) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.MirrorTransaction(ctx, tx); err != nil {
		log := logger.ForOwner(ctx, tx.OwnerID)
		log.Warn().Err(err).Int64("transaction_id", tx.ID).Msg("Warehouse mirror failed")
	}
}

// ParsePatch reads "amount=12.5 category=food description=lunch with Sam".
// Everything after description= is taken as the description.
func ParsePatch(args string) (domain.TransactionPatch, error) {
	var patch domain.TransactionPatch

	rest := args
	if i := strings.Index(rest, "description="); i >= 0 {
		desc := strings.TrimSpace(rest[i+len("description="):])
		patch.Description = &desc
		rest = rest[:i]
	}

	for _, field := range strings.Fields(rest) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return patch, domain.Invalidf("expected key=value, got %q", field)
		}
		switch strings.ToLower(key) {
		case "amount":
			amount, err := domain.ParseAmount(value)
			if err != nil {
				return patch, err
			}
			patch.Amount = &amount
		case "category":
			category := value
			patch.Category = &category
		default:
			return patch, domain.Invalidf("unknown field %q (use amount, category or description)", key)
		}
	}

	if patch.Empty() {
		return patch, domain.Invalidf("nothing to change. Give at least one of amount=, category= or description=")
	}
	return patch, nil
}

// Summary is the aggregate view of a date range.
type Summary struct {
	Range        period.Range
	Totals       domain.Totals
	Categories   []domain.CategoryTotal
	Transactions []domain.Transaction
}

// Summarize loads totals, the expense breakdown and the rows of r.
func (s *Service) Summarize(ctx context.Context, ownerID int64, r period.Range) (Summary, error) {
	totals, err := s.store.Totals(ctx, ownerID, &r)
	if err != nil {
		return Summary{}, fmt.Errorf("Summarize: totals: %w", err)
	}
	cats, err := s.store.CategoryTotals(ctx, ownerID, domain.KindExpense, r)
	if err != nil {
		return Summary{}, fmt.Errorf("Summarize: categories: %w", err)
	}
	txs, err := s.store.ListRange(ctx, ownerID, r)
	if err != nil {
		return Summary{}, fmt.Errorf("Summarize: list: %w", err)
	}
	return Summary{Range: r, Totals: totals, Categories: cats, Transactions: txs}, nil
}

// Day lists the transactions of one day.
func (s *Service) Day(ctx context.Context, ownerID int64, day civil.Date) domain.Reply {
	sum, err := s.Summarize(ctx, ownerID, period.Range{Start: day, End: day})
	if err != nil {
		return domain.Failure(ctx, "day_summary", err)
	}
	return domain.Success("%s", renderDay(sum, s.currency))
}

// Today lists today's transactions.
func (s *Service) Today(ctx context.Context, ownerID int64) domain.Reply {
	return s.Day(ctx, ownerID, period.Today(s.clock))
}

// Week summarizes the seven days ending today.
func (s *Service) Week(ctx context.Context, ownerID int64) domain.Reply {
	sum, err := s.WeekSummary(ctx, ownerID)
	if err != nil {
		return domain.Failure(ctx, "week_summary", err)
	}
	return domain.Success("%s", RenderWeek(sum, s.currency))
}

// WeekSummary is the data behind Week, also used by the scheduled weekly report.
func (s *Service) WeekSummary(ctx context.Context, ownerID int64) (Summary, error) {
	return s.Summarize(ctx, ownerID, period.TrailingWeek(period.Today(s.clock)))
}

// Month summarizes a calendar month. Zero year or month default to the current one.
func (s *Service) Month(ctx context.Context, ownerID int64, year, month int) domain.Reply {
	y, m, err := s.resolveMonth(year, month)
	if err != nil {
		return domain.Failure(ctx, "month_summary", err)
	}
	sum, err := s.Summarize(ctx, ownerID, period.MonthRange(y, m))
	if err != nil {
		return domain.Failure(ctx, "month_summary", err)
	}
	return domain.Success("%s", renderMonth(sum, y, m, s.currency))
}

// Range reports on an inclusive date range, with daily average and count.
func (s *Service) Range(ctx context.Context, ownerID int64, start, end civil.Date) domain.Reply {
	if end.Before(start) {
		return domain.Failure(ctx, "range_report", domain.Invalidf("start date %s is after end date %s", start, end))
	}
	sum, err := s.Summarize(ctx, ownerID, period.Range{Start: start, End: end})
	if err != nil {
		return domain.Failure(ctx, "range_report", err)
	}
	return domain.Success("%s", renderRange(sum, s.currency))
}

// Category lists one category's transactions in a month.
func (s *Service) Category(ctx context.Context, ownerID int64, label string, year, month int) domain.Reply {
	category, ok := domain.CanonicalCategory(label)
	if !ok || category == domain.OverallCategory {
		return domain.Failure(ctx, "category_details", domain.Invalidf(
			"unknown category %q. Use one of: %s", label, strings.Join(domain.Categories, ", ")))
	}
	y, m, err := s.resolveMonth(year, month)
	if err != nil {
		return domain.Failure(ctx, "category_details", err)
	}

	txs, err := s.store.ListCategory(ctx, ownerID, category, period.MonthRange(y, m))
	if err != nil {
		return domain.Failure(ctx, "category_details", err)
	}
	return domain.Success("%s", renderCategory(category, y, m, txs, s.currency))
}

// Search finds transactions whose description, category or original text
// contains query.
func (s *Service) Search(ctx context.Context, ownerID int64, query string) domain.Reply {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.Failure(ctx, "search", domain.Invalidf("search text is required"))
	}
	txs, err := s.store.Search(ctx, ownerID, query, SearchLimit)
	if err != nil {
		return domain.Failure(ctx, "search", err)
	}
	return domain.Success("%s", renderSearch(query, txs, s.currency))
}

// Balance reports all-time totals and the current month.
func (s *Service) Balance(ctx context.Context, ownerID int64) domain.Reply {
	all, err := s.store.Totals(ctx, ownerID, nil)
	if err != nil {
		return domain.Failure(ctx, "balance", err)
	}
	month := period.CurrentMonth(s.clock)
	current, err := s.store.Totals(ctx, ownerID, &month)
	if err != nil {
		return domain.Failure(ctx, "balance", err)
	}
	return domain.Success("%s", renderBalance(all, current, month.Start, s.currency))
}

func (s *Service) resolveMonth(year, month int) (int, time.Month, error) {
	return period.ResolveMonth(period.Today(s.clock), year, month)
}
