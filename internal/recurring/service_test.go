package recurring

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-bot/internal/clock"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/infra/sqlstore"
	"github.com/dvloznov/finance-bot/internal/parser"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type mockParser struct {
	ParseTransactionFunc func(ctx context.Context, text string, today civil.Date) (parser.Result, error)
	ParseRecurringFunc   func(ctx context.Context, text string, today civil.Date) (parser.Result, error)
}

func (m *mockParser) ParseTransaction(ctx context.Context, text string, today civil.Date) (parser.Result, error) {
	if m.ParseTransactionFunc != nil {
		return m.ParseTransactionFunc(ctx, text, today)
	}
	return parser.Result{}, errors.New("ParseTransaction not mocked")
}

func (m *mockParser) ParseRecurring(ctx context.Context, text string, today civil.Date) (parser.Result, error) {
	if m.ParseRecurringFunc != nil {
		return m.ParseRecurringFunc(ctx, text, today)
	}
	return parser.Result{}, errors.New("ParseRecurring not mocked")
}

var _ parser.Parser = (*mockParser)(nil)

const owner int64 = 55

type ServiceTestSuite struct {
	suite.Suite
	ctx    context.Context
	db     *sqlstore.DB
	parser *mockParser
	svc    *Service
	today  civil.Date
}

func TestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func (s *ServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	c := clock.NewFixed(time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC))
	s.today = civil.Date{Year: 2026, Month: 6, Day: 10}

	db, err := sqlstore.OpenMigrated(s.ctx, sqlstore.Options{Path: sqlstore.MemoryPath, Clock: c})
	require.NoError(s.T(), err)
	s.db = db
	s.parser = &mockParser{}
	s.svc = NewService(db.Recurring(), s.parser, c, "EUR")
}

func (s *ServiceTestSuite) TearDownTest() {
	s.db.Close()
}

func (s *ServiceTestSuite) insert(name string, freq domain.Frequency, due civil.Date) *domain.RecurringPayment {
	p := &domain.RecurringPayment{
		OwnerID:          owner,
		Name:             name,
		Amount:           decimal.NewFromInt(10),
		Currency:         "EUR",
		Frequency:        freq,
		NextDueDate:      due,
		RemindDaysBefore: 1,
		Active:           true,
	}
	s.Require().NoError(s.db.Recurring().Insert(s.ctx, p))
	return p
}

func (s *ServiceTestSuite) TestAddStructured() {
	reply := s.svc.Add(s.ctx, owner, "Netflix | ١٥ | monthly")
	s.True(reply.OK, reply.Text())
	s.Contains(reply.Message, "Netflix")
	s.Contains(reply.Message, "15.00€")
	s.Contains(reply.Message, "2026-07-01")

	payments, err := s.db.Recurring().ListByOwner(s.ctx, owner, true)
	s.Require().NoError(err)
	s.Require().Len(payments, 1)
	s.Equal(domain.FrequencyMonthly, payments[0].Frequency)
	s.Equal(civil.Date{Year: 2026, Month: 7, Day: 1}, payments[0].NextDueDate)
}

func (s *ServiceTestSuite) TestAddStructured_ExplicitDate() {
	reply := s.svc.Add(s.ctx, owner, "Gym | 30 | weekly | 2026-06-12")
	s.True(reply.OK, reply.Text())

	payments, err := s.db.Recurring().ListByOwner(s.ctx, owner, true)
	s.Require().NoError(err)
	s.Require().Len(payments, 1)
	s.Equal(civil.Date{Year: 2026, Month: 6, Day: 12}, payments[0].NextDueDate)
}

func (s *ServiceTestSuite) TestAddStructured_FallsBackToParser() {
	called := false
	s.parser.ParseRecurringFunc = func(ctx context.Context, text string, today civil.Date) (parser.Result, error) {
		called = true
		s.Equal("Rent | lots | monthly", text)
		return parser.Result{Unclear: true, Question: "How much is the rent?"}, nil
	}

	reply := s.svc.Add(s.ctx, owner, "Rent | lots | monthly")
	s.True(called)
	s.Equal("How much is the rent?", reply.Question)
}

func (s *ServiceTestSuite) TestAddFromText() {
	s.parser.ParseRecurringFunc = func(ctx context.Context, text string, today civil.Date) (parser.Result, error) {
		s.Equal(s.today, today)
		return parser.Result{Fields: map[string]interface{}{
			"name":      "Spotify",
			"amount":    "9.99",
			"frequency": "monthly",
		}}, nil
	}

	reply := s.svc.Add(s.ctx, owner, "spotify 9.99 every month")
	s.True(reply.OK, reply.Text())
	s.Contains(reply.Message, "Spotify")
	s.Contains(reply.Message, "2026-07-01")
}

func (s *ServiceTestSuite) TestAddFromText_ParserErrors() {
	s.parser.ParseRecurringFunc = func(ctx context.Context, text string, today civil.Date) (parser.Result, error) {
		return parser.Result{}, domain.ErrTransient
	}
	reply := s.svc.AddFromText(s.ctx, owner, "x")
	s.Equal(domain.MsgTransient, reply.Question)

	s.parser.ParseRecurringFunc = func(ctx context.Context, text string, today civil.Date) (parser.Result, error) {
		return parser.Result{Fields: map[string]interface{}{"name": "x", "amount": -1, "frequency": "monthly"}}, nil
	}
	reply = s.svc.AddFromText(s.ctx, owner, "x")
	s.False(reply.OK)

	payments, err := s.db.Recurring().ListByOwner(s.ctx, owner, false)
	s.Require().NoError(err)
	s.Empty(payments)
}

func (s *ServiceTestSuite) TestList() {
	reply := s.svc.List(s.ctx, owner)
	s.Contains(reply.Message, "No recurring payments")

	s.insert("Netflix", domain.FrequencyMonthly, civil.Date{Year: 2026, Month: 7, Day: 1})
	s.insert("Phone", domain.FrequencyMonthly, civil.Date{Year: 2026, Month: 7, Day: 1})
	s.insert("Insurance", domain.FrequencyYearly, civil.Date{Year: 2027, Month: 1, Day: 5})

	reply = s.svc.List(s.ctx, owner)
	s.Contains(reply.Message, "Netflix")
	s.Contains(reply.Message, "Insurance")
	s.Contains(reply.Message, "Monthly commitments: 20.00€")
}

func (s *ServiceTestSuite) TestLifecycle() {
	p := s.insert("Netflix", domain.FrequencyMonthly, civil.Date{Year: 2026, Month: 7, Day: 1})

	s.True(s.svc.Disable(s.ctx, owner, p.ID).OK)
	active, err := s.db.Recurring().ListByOwner(s.ctx, owner, true)
	s.Require().NoError(err)
	s.Empty(active)

	s.True(s.svc.Enable(s.ctx, owner, p.ID).OK)
	active, err = s.db.Recurring().ListByOwner(s.ctx, owner, true)
	s.Require().NoError(err)
	s.Len(active, 1)

	s.True(s.svc.Delete(s.ctx, owner, p.ID).OK)
	missing := s.svc.Delete(s.ctx, owner, p.ID)
	s.False(missing.OK)

	other := s.insert("Other", domain.FrequencyDaily, s.today)
	foreign := s.svc.Delete(s.ctx, owner+1, other.ID)
	s.False(foreign.OK)
	s.Equal(fmt.Sprintf("⚠️ Recurring payment #%d was not found.", other.ID), foreign.Message)
	s.Equal("⚠️ Recurring payment #999999 was not found.", s.svc.Delete(s.ctx, owner, 999999).Message)
}

func (s *ServiceTestSuite) TestDueSoon() {
	s.insert("today", domain.FrequencyMonthly, s.today)
	s.insert("plus2", domain.FrequencyMonthly, s.today.AddDays(2))
	s.insert("plus3", domain.FrequencyMonthly, s.today.AddDays(3))
	s.insert("overdue", domain.FrequencyMonthly, s.today.AddDays(-1))
	paused := s.insert("paused", domain.FrequencyMonthly, s.today)
	s.Require().NoError(s.db.Recurring().SetActive(s.ctx, owner, paused.ID, false))

	due, err := s.svc.DueSoon(s.ctx, 2)
	s.Require().NoError(err)

	var names []string
	for _, p := range due {
		names = append(names, p.Name)
	}
	s.Equal([]string{"overdue", "today", "plus2"}, names)
}

func (s *ServiceTestSuite) TestAdvanceAndMarkReminded() {
	p := s.insert("Netflix", domain.FrequencyMonthly, civil.Date{Year: 2026, Month: 6, Day: 10})

	s.Require().NoError(s.svc.MarkReminded(s.ctx, p))
	s.True(p.RemindedForCurrentCycle())

	next, err := s.svc.Advance(s.ctx, p)
	s.Require().NoError(err)
	s.Equal(civil.Date{Year: 2026, Month: 7, Day: 1}, next)
	s.False(p.RemindedForCurrentCycle())

	stored, err := s.db.Recurring().Get(s.ctx, owner, p.ID)
	s.Require().NoError(err)
	s.Equal(next, stored.NextDueDate)
	s.False(stored.RemindedForCurrentCycle())
}

func TestParseStructured(t *testing.T) {
	today := civil.Date{Year: 2026, Month: 2, Day: 14}

	tests := []struct {
		name   string
		input  string
		ok     bool
		freq   domain.Frequency
		due    civil.Date
		amount string
	}{
		{"monthly default", "Rent | 900 | monthly", true, domain.FrequencyMonthly, civil.Date{Year: 2026, Month: 3, Day: 1}, "900"},
		{"arabic weekly", "نادي | ٢٥٫٥ | أسبوعي", true, domain.FrequencyWeekly, civil.Date{Year: 2026, Month: 2, Day: 21}, "25.5"},
		{"daily default", "Coffee | 3 | daily", true, domain.FrequencyDaily, civil.Date{Year: 2026, Month: 2, Day: 15}, "3"},
		{"explicit date", "Tax | 100 | yearly | 2026-04-30", true, domain.FrequencyYearly, civil.Date{Year: 2026, Month: 4, Day: 30}, "100"},
		{"bad frequency", "Rent | 900 | fortnightly", false, "", civil.Date{}, ""},
		{"bad amount", "Rent | abc | monthly", false, "", civil.Date{}, ""},
		{"zero amount", "Rent | 0 | monthly", false, "", civil.Date{}, ""},
		{"bad date", "Rent | 900 | monthly | soon", false, "", civil.Date{}, ""},
		{"missing name", " | 900 | monthly", false, "", civil.Date{}, ""},
		{"too few parts", "Rent | 900", false, "", civil.Date{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := ParseStructured(tt.input, today, "EUR")
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.Equal(t, tt.freq, p.Frequency)
			assert.Equal(t, tt.due, p.NextDueDate)
			assert.True(t, p.Amount.Equal(decimal.RequireFromString(tt.amount)))
			assert.True(t, p.Active)
			assert.Equal(t, "EUR", p.Currency)
		})
	}
}
