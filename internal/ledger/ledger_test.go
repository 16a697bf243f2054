package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-bot/internal/budget"
	"github.com/dvloznov/finance-bot/internal/clock"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/infra/sqlstore"
	"github.com/dvloznov/finance-bot/internal/parser"
	"github.com/dvloznov/finance-bot/internal/period"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type mockParser struct {
	ParseTransactionFunc func(ctx context.Context, text string, today civil.Date) (parser.Result, error)
}

func (m *mockParser) ParseTransaction(ctx context.Context, text string, today civil.Date) (parser.Result, error) {
	if m.ParseTransactionFunc != nil {
		return m.ParseTransactionFunc(ctx, text, today)
	}
	return parser.Result{}, errors.New("ParseTransaction not mocked")
}

func (m *mockParser) ParseRecurring(ctx context.Context, text string, today civil.Date) (parser.Result, error) {
	return parser.Result{}, errors.New("ParseRecurring not mocked")
}

type mockMirror struct {
	MirrorTransactionFunc func(ctx context.Context, tx domain.Transaction) error
	RemoveTransactionFunc func(ctx context.Context, ownerID, id int64) error
}

func (m *mockMirror) MirrorTransaction(ctx context.Context, tx domain.Transaction) error {
	if m.MirrorTransactionFunc != nil {
		return m.MirrorTransactionFunc(ctx, tx)
	}
	return nil
}

func (m *mockMirror) RemoveTransaction(ctx context.Context, ownerID, id int64) error {
	if m.RemoveTransactionFunc != nil {
		return m.RemoveTransactionFunc(ctx, ownerID, id)
	}
	return nil
}

var (
	_ parser.Parser = (*mockParser)(nil)
	_ Mirror        = (*mockMirror)(nil)
)

const owner int64 = 3

func day(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

type LedgerTestSuite struct {
	suite.Suite
	ctx    context.Context
	db     *sqlstore.DB
	parser *mockParser
	mirror *mockMirror
	svc    *Service
}

func TestLedgerTestSuite(t *testing.T) {
	suite.Run(t, new(LedgerTestSuite))
}

func (s *LedgerTestSuite) SetupTest() {
	s.ctx = context.Background()
	c := clock.NewFixed(time.Date(2026, 3, 18, 14, 0, 0, 0, time.UTC))

	db, err := sqlstore.OpenMigrated(s.ctx, sqlstore.Options{Path: sqlstore.MemoryPath, Clock: c})
	require.NoError(s.T(), err)
	s.db = db

	s.parser = &mockParser{}
	s.mirror = &mockMirror{}
	budgets := budget.NewService(db.Budgets(), db.Transactions(), c, "EUR")
	s.svc = NewService(db.Transactions(), s.parser, budgets, c, "EUR")
	s.svc.UseMirror(s.mirror)
}

func (s *LedgerTestSuite) TearDownTest() {
	s.db.Close()
}

func (s *LedgerTestSuite) add(kind domain.Kind, amount, category string, d civil.Date, desc string) *domain.Transaction {
	tx := &domain.Transaction{
		OwnerID:     owner,
		Kind:        kind,
		Amount:      dec(amount),
		Currency:    "EUR",
		Category:    category,
		Description: desc,
		Date:        d,
	}
	s.Require().NoError(s.db.Transactions().Insert(s.ctx, tx))
	return tx
}

func (s *LedgerTestSuite) parsed(fields map[string]interface{}) {
	s.parser.ParseTransactionFunc = func(ctx context.Context, text string, today civil.Date) (parser.Result, error) {
		return parser.Result{Fields: fields}, nil
	}
}

func (s *LedgerTestSuite) TestAddFromText() {
	var mirrored []domain.Transaction
	s.mirror.MirrorTransactionFunc = func(ctx context.Context, tx domain.Transaction) error {
		mirrored = append(mirrored, tx)
		return nil
	}
	s.parsed(map[string]interface{}{
		"type":        "expense",
		"amount":      "12.50",
		"category":    "food",
		"description": "lunch",
	})

	reply := s.svc.AddFromText(s.ctx, owner, "lunch 12.50")
	s.True(reply.OK, reply.Text())
	s.Contains(reply.Message, "Recorded expense")
	s.Contains(reply.Message, "12.50€")
	s.Contains(reply.Message, "2026-03-18")

	txs, err := s.db.Transactions().ListRange(s.ctx, owner, rangeOf(day(2026, 3, 18), day(2026, 3, 18)))
	s.Require().NoError(err)
	s.Require().Len(txs, 1)
	s.Equal("lunch 12.50", txs[0].RawText)
	s.Require().Len(mirrored, 1)
	s.Equal(txs[0].ID, mirrored[0].ID)
}

func (s *LedgerTestSuite) TestAddFromText_UnclearWritesNothing() {
	s.parser.ParseTransactionFunc = func(ctx context.Context, text string, today civil.Date) (parser.Result, error) {
		return parser.Result{Unclear: true, Question: "How much was it?"}, nil
	}

	reply := s.svc.AddFromText(s.ctx, owner, "coffee")
	s.False(reply.OK)
	s.Equal("How much was it?", reply.Question)

	totals, err := s.db.Transactions().Totals(s.ctx, owner, nil)
	s.Require().NoError(err)
	s.Zero(totals.Count)
}

func (s *LedgerTestSuite) TestAddFromText_ValidationFailure() {
	s.parsed(map[string]interface{}{"type": "expense", "amount": "-3", "category": "food"})

	reply := s.svc.AddFromText(s.ctx, owner, "refund?")
	s.False(reply.OK)
	s.Contains(reply.Message, "⚠️")
}

func (s *LedgerTestSuite) TestAddFromText_BudgetAlert() {
	_, err := s.db.Budgets().Upsert(s.ctx, owner, "food", dec("200"))
	s.Require().NoError(err)
	s.add(domain.KindExpense, "150", "food", day(2026, 3, 2), "")

	s.parsed(map[string]interface{}{"type": "expense", "amount": "20", "category": "food"})

	reply := s.svc.AddFromText(s.ctx, owner, "dinner 20")
	s.True(reply.OK)
	s.Contains(reply.Message, `🟡 You have used 85% of the "food" budget!`)
}

func (s *LedgerTestSuite) TestAddFromText_IncomeSkipsBudget() {
	_, err := s.db.Budgets().Upsert(s.ctx, owner, "overall", dec("10"))
	s.Require().NoError(err)
	s.parsed(map[string]interface{}{"type": "income", "amount": "3000", "category": "salary"})

	reply := s.svc.AddFromText(s.ctx, owner, "salary 3000")
	s.True(reply.OK)
	s.NotContains(reply.Message, "budget")
}

func (s *LedgerTestSuite) TestAddFromText_MirrorFailureIgnored() {
	s.mirror.MirrorTransactionFunc = func(ctx context.Context, tx domain.Transaction) error {
		return errors.New("warehouse down")
	}
	s.parsed(map[string]interface{}{"type": "expense", "amount": "5", "category": "transport"})

	reply := s.svc.AddFromText(s.ctx, owner, "bus 5")
	s.True(reply.OK)
}

func (s *LedgerTestSuite) TestDelete() {
	tx := s.add(domain.KindExpense, "10", "food", day(2026, 3, 1), "")
	var removed int64
	s.mirror.RemoveTransactionFunc = func(ctx context.Context, ownerID, id int64) error {
		removed = id
		return nil
	}

	s.False(s.svc.Delete(s.ctx, owner+1, tx.ID).OK)
	s.True(s.svc.Delete(s.ctx, owner, tx.ID).OK)
	s.Equal(tx.ID, removed)

	reply := s.svc.Delete(s.ctx, owner, tx.ID)
	s.False(reply.OK)
	s.Contains(reply.Message, "was not found")
}

func (s *LedgerTestSuite) TestEdit() {
	tx := s.add(domain.KindExpense, "10", "food", day(2026, 3, 1), "")

	patch, err := ParsePatch("amount=٢٥ category=طعام description=team lunch")
	s.Require().NoError(err)

	reply := s.svc.Edit(s.ctx, owner, tx.ID, patch)
	s.True(reply.OK, reply.Text())
	s.Contains(reply.Message, "25.00€")
	s.Contains(reply.Message, "team lunch")

	stored, err := s.db.Transactions().Get(s.ctx, owner, tx.ID)
	s.Require().NoError(err)
	s.True(stored.Amount.Equal(dec("25")))
	s.Equal("food", stored.Category)
	s.Equal("team lunch", stored.Description)
}

func (s *LedgerTestSuite) TestEdit_Rejects() {
	tx := s.add(domain.KindExpense, "10", "food", day(2026, 3, 1), "")

	category := "yachts"
	reply := s.svc.Edit(s.ctx, owner, tx.ID, domain.TransactionPatch{Category: &category})
	s.False(reply.OK)
	s.Contains(reply.Message, "unknown category")

	reply = s.svc.Edit(s.ctx, owner, tx.ID, domain.TransactionPatch{})
	s.False(reply.OK)
	s.Contains(reply.Message, "nothing to change")

	_, err := ParsePatch("amount=0.004")
	s.ErrorIs(err, domain.ErrValidation)

	tiny := dec("0.004")
	reply = s.svc.Edit(s.ctx, owner, tx.ID, domain.TransactionPatch{Amount: &tiny})
	s.False(reply.OK)
	s.Contains(reply.Message, "⚠️ amount must be greater than zero")

	huge := dec("184467440737095516.17")
	reply = s.svc.Edit(s.ctx, owner, tx.ID, domain.TransactionPatch{Amount: &huge})
	s.False(reply.OK)
	s.Contains(reply.Message, "amount is too large")

	stored, err := s.db.Transactions().Get(s.ctx, owner, tx.ID)
	s.Require().NoError(err)
	s.True(stored.Amount.Equal(dec("10")))
}

func (s *LedgerTestSuite) TestTodayAndMonth() {
	s.add(domain.KindExpense, "12.5", "food", day(2026, 3, 18), "lunch")
	s.add(domain.KindIncome, "100", "gifts", day(2026, 3, 18), "")
	s.add(domain.KindExpense, "30", "transport", day(2026, 3, 2), "")
	s.add(domain.KindExpense, "999", "rent", day(2026, 2, 28), "")

	today := s.svc.Today(s.ctx, owner)
	s.Contains(today.Message, "lunch")
	s.Contains(today.Message, "Net: 87.50€")

	month := s.svc.Month(s.ctx, owner, 0, 0)
	s.Contains(month.Message, "3/2026")
	s.Contains(month.Message, "Total expenses: 42.50€")
	s.Contains(month.Message, "• transport: 30.00€ (71%)")
	s.Contains(month.Message, "• food: 12.50€ (29%)")
	s.NotContains(month.Message, "rent")

	bad := s.svc.Month(s.ctx, owner, 2026, 13)
	s.False(bad.OK)
}

func (s *LedgerTestSuite) TestWeek() {
	s.add(domain.KindExpense, "10", "food", day(2026, 3, 12), "")
	s.add(domain.KindExpense, "99", "food", day(2026, 3, 11), "")

	sum, err := s.svc.WeekSummary(s.ctx, owner)
	s.Require().NoError(err)
	s.Equal(day(2026, 3, 12), sum.Range.Start)
	s.Equal(day(2026, 3, 18), sum.Range.End)
	s.True(sum.Totals.Expense.Equal(dec("10")))

	reply := s.svc.Week(s.ctx, owner)
	s.Contains(reply.Message, "2026-03-12 → 2026-03-18")
}

func (s *LedgerTestSuite) TestRange() {
	s.add(domain.KindExpense, "30", "food", day(2026, 3, 1), "")
	s.add(domain.KindExpense, "30", "food", day(2026, 3, 10), "")

	reply := s.svc.Range(s.ctx, owner, day(2026, 3, 1), day(2026, 3, 10))
	s.True(reply.OK)
	s.Contains(reply.Message, "(10 days)")
	s.Contains(reply.Message, "Daily average: 6.00€")
	s.Contains(reply.Message, "Transactions: 2")

	backwards := s.svc.Range(s.ctx, owner, day(2026, 3, 10), day(2026, 3, 1))
	s.False(backwards.OK)
}

func (s *LedgerTestSuite) TestCategory() {
	s.add(domain.KindExpense, "4", "food", day(2026, 3, 3), "bread")
	s.add(domain.KindExpense, "6", "food", day(2026, 3, 5), "")
	s.add(domain.KindExpense, "6", "food", day(2026, 4, 5), "")

	reply := s.svc.Category(s.ctx, owner, "Food", 2026, 3)
	s.Contains(reply.Message, "bread")
	s.Contains(reply.Message, "Total: 10.00€ (2 transactions)")

	unknown := s.svc.Category(s.ctx, owner, "yachts", 0, 0)
	s.False(unknown.OK)
}

func (s *LedgerTestSuite) TestSearch() {
	s.add(domain.KindExpense, "4", "food", day(2026, 3, 3), "Pizza night")
	s.add(domain.KindExpense, "6", "transport", day(2026, 3, 5), "taxi")

	reply := s.svc.Search(s.ctx, owner, "pizza")
	s.Contains(reply.Message, "Results for \"pizza\" (1)")
	s.Contains(reply.Message, "Pizza night")

	none := s.svc.Search(s.ctx, owner, "sushi")
	s.Contains(none.Message, "No results")
}

func (s *LedgerTestSuite) TestBalance() {
	s.add(domain.KindIncome, "1000", "salary", day(2026, 1, 1), "")
	s.add(domain.KindExpense, "400", "rent", day(2026, 2, 1), "")
	s.add(domain.KindExpense, "50", "food", day(2026, 3, 2), "")

	reply := s.svc.Balance(s.ctx, owner)
	s.Contains(reply.Message, "Overall balance: 550.00€")
	s.Contains(reply.Message, "This month (3/2026)")
	s.Contains(reply.Message, "Expenses: 50.00€")
}

func (s *LedgerTestSuite) TestCompare() {
	s.add(domain.KindExpense, "100", "food", day(2026, 2, 3), "")
	s.add(domain.KindExpense, "20", "health", day(2026, 2, 3), "")
	s.add(domain.KindExpense, "150", "food", day(2026, 3, 3), "")
	s.add(domain.KindExpense, "20", "health", day(2026, 3, 4), "")
	s.add(domain.KindExpense, "30", "transport", day(2026, 3, 4), "")

	cmp, err := s.svc.BuildComparison(s.ctx, owner, MonthRef{}, MonthRef{})
	s.Require().NoError(err)
	s.Equal(MonthRef{Year: 2026, Month: 2}, cmp.First)
	s.Equal(MonthRef{Year: 2026, Month: 3}, cmp.Second)
	s.Require().Len(cmp.Categories, 3)

	s.Equal("food", cmp.Categories[0].Category)
	s.Equal(Up, DirectionOf(cmp.Categories[0].Diff()))
	s.Equal("health", cmp.Categories[1].Category)
	s.Equal(Flat, DirectionOf(cmp.Categories[1].Diff()))
	s.Equal("transport", cmp.Categories[2].Category)
	s.True(cmp.Categories[2].Before.IsZero())
	s.True(cmp.ExpenseDiff().Equal(dec("80")))

	reply := s.svc.Compare(s.ctx, owner, MonthRef{}, MonthRef{})
	s.Contains(reply.Message, "2/2026 ↔ 3/2026")
	s.Contains(reply.Message, "📈 food: 100.00€ → 150.00€ (+50.00€)")
	s.Contains(reply.Message, "➡️ health")
}

func rangeOf(start, end civil.Date) period.Range {
	return period.Range{Start: start, End: end}
}

func TestResolveCompare(t *testing.T) {
	today := day(2026, 1, 20)

	tests := []struct {
		name       string
		first      MonthRef
		second     MonthRef
		wantFirst  MonthRef
		wantSecond MonthRef
		wantErr    bool
	}{
		{"defaults roll back the year", MonthRef{}, MonthRef{}, MonthRef{2025, 12}, MonthRef{2026, 1}, false},
		{"first month inherits second year", MonthRef{Month: 1}, MonthRef{Year: 2025, Month: 6}, MonthRef{2025, 1}, MonthRef{2025, 6}, false},
		{"explicit", MonthRef{2024, 5}, MonthRef{2025, 5}, MonthRef{2024, 5}, MonthRef{2025, 5}, false},
		{"invalid month", MonthRef{Month: 13}, MonthRef{}, MonthRef{}, MonthRef{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, second, err := ResolveCompare(tt.first, tt.second, today)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFirst, first)
			assert.Equal(t, tt.wantSecond, second)
		})
	}
}

func TestParsePatch(t *testing.T) {
	patch, err := ParsePatch("category=transport amount=7,5")
	require.NoError(t, err)
	require.NotNil(t, patch.Amount)
	assert.True(t, patch.Amount.Equal(dec("7.5")))
	require.NotNil(t, patch.Category)
	assert.Equal(t, "transport", *patch.Category)
	assert.Nil(t, patch.Description)

	_, err = ParsePatch("")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = ParsePatch("colour=red")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = ParsePatch("amount=abc")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
