package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-bot/internal/clock"
	"github.com/dvloznov/finance-bot/internal/config"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/infra/sqlstore"
	"github.com/dvloznov/finance-bot/internal/jobs"
	"github.com/dvloznov/finance-bot/internal/ledger"
	"github.com/dvloznov/finance-bot/internal/recurring"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type mockPublisher struct {
	mu        sync.Mutex
	published []*jobs.NotificationJob
	err       error
}

func (m *mockPublisher) PublishNotification(ctx context.Context, job *jobs.NotificationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, job)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published)
}

var _ jobs.Publisher = (*mockPublisher)(nil)

const owner int64 = 21

type SchedulerTestSuite struct {
	suite.Suite
	ctx       context.Context
	db        *sqlstore.DB
	publisher *mockPublisher
	sched     *Scheduler
	today     civil.Date
}

func TestSchedulerTestSuite(t *testing.T) {
	suite.Run(t, new(SchedulerTestSuite))
}

func (s *SchedulerTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.today = civil.Date{Year: 2026, Month: 6, Day: 10}
	c := clock.NewFixed(time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC))

	db, err := sqlstore.OpenMigrated(s.ctx, sqlstore.Options{Path: sqlstore.MemoryPath, Clock: c})
	require.NoError(s.T(), err)
	s.db = db

	s.publisher = &mockPublisher{}
	rec := recurring.NewService(db.Recurring(), nil, c, "EUR")
	led := ledger.NewService(db.Transactions(), nil, nil, c, "EUR")
	s.sched = New(rec, led, db.Users(), s.publisher, c, Options{
		ReminderAt:       config.TimeOfDay{Hour: 9},
		HorizonDays:      2,
		WeeklySummaryDay: time.Sunday,
		WeeklySummaryAt:  config.TimeOfDay{Hour: 20},
		Currency:         "EUR",
	})
}

func (s *SchedulerTestSuite) TearDownTest() {
	s.db.Close()
}

func (s *SchedulerTestSuite) payment(name string, freq domain.Frequency, due civil.Date, active bool) *domain.RecurringPayment {
	p := &domain.RecurringPayment{
		OwnerID:          owner,
		Name:             name,
		Amount:           decimal.NewFromInt(15),
		Currency:         "EUR",
		Frequency:        freq,
		NextDueDate:      due,
		RemindDaysBefore: 1,
		Active:           true,
	}
	s.Require().NoError(s.db.Recurring().Insert(s.ctx, p))
	if !active {
		s.Require().NoError(s.db.Recurring().SetActive(s.ctx, owner, p.ID, false))
	}
	return p
}

func (s *SchedulerTestSuite) stored(id int64) *domain.RecurringPayment {
	p, err := s.db.Recurring().Get(s.ctx, owner, id)
	s.Require().NoError(err)
	return p
}

func (s *SchedulerTestSuite) TestRunReminders_OncePerCycle() {
	netflix := s.payment("Netflix", domain.FrequencyMonthly, s.today, true)
	gym := s.payment("Gym", domain.FrequencyWeekly, s.today.AddDays(2), true)
	later := s.payment("Later", domain.FrequencyMonthly, s.today.AddDays(3), true)
	paused := s.payment("Paused", domain.FrequencyMonthly, s.today, false)

	report, err := s.sched.RunReminders(s.ctx)
	s.Require().NoError(err)
	s.Equal(ReminderReport{Due: 2, Sent: 2, Advanced: 1}, report)
	s.Equal(2, s.publisher.count())

	s.Equal(civil.Date{Year: 2026, Month: 7, Day: 1}, s.stored(netflix.ID).NextDueDate)
	s.True(s.stored(gym.ID).RemindedForCurrentCycle())
	s.Equal(s.today.AddDays(2), s.stored(gym.ID).NextDueDate)
	s.Nil(s.stored(later.ID).RemindedFor)
	s.Nil(s.stored(paused.ID).RemindedFor)

	again, err := s.sched.RunReminders(s.ctx)
	s.Require().NoError(err)
	s.Equal(ReminderReport{Due: 1, Skipped: 1}, again)
	s.Equal(2, s.publisher.count(), "no duplicate reminder for the same cycle")
}

func (s *SchedulerTestSuite) TestRunReminders_JobContent() {
	p := s.payment("Rent", domain.FrequencyMonthly, s.today.AddDays(1), true)

	_, err := s.sched.RunReminders(s.ctx)
	s.Require().NoError(err)
	s.Require().Equal(1, s.publisher.count())

	job := s.publisher.published[0]
	s.Equal(jobs.JobTypeReminder, job.Type)
	s.Equal(owner, job.OwnerID)
	s.Equal(p.ID, job.PaymentID)
	s.Contains(job.Text, "Rent")
	s.Contains(job.Text, "15.00€")
	s.Contains(job.Text, "2026-06-11 (tomorrow)")
}

func (s *SchedulerTestSuite) TestRunReminders_PublishFailureRetriesNextRun() {
	p := s.payment("Rent", domain.FrequencyMonthly, s.today.AddDays(1), true)
	s.publisher.err = errors.New("queue closed")

	report, err := s.sched.RunReminders(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, report.Failed)
	s.Nil(s.stored(p.ID).RemindedFor)

	s.publisher.err = nil
	report, err = s.sched.RunReminders(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, report.Sent)
}

func (s *SchedulerTestSuite) TestRunReminders_OverdueAdvancesOnce() {
	p := s.payment("Phone", domain.FrequencyWeekly, s.today.AddDays(-10), true)

	report, err := s.sched.RunReminders(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, report.Advanced)
	s.Equal(s.today.AddDays(-3), s.stored(p.ID).NextDueDate)
	s.Contains(s.publisher.published[0].Text, "(overdue)")
}

func (s *SchedulerTestSuite) TestRunReminders_Busy() {
	s.sched.reminderMu.Lock()
	defer s.sched.reminderMu.Unlock()

	_, err := s.sched.RunReminders(s.ctx)
	s.ErrorIs(err, ErrBusy)
}

func (s *SchedulerTestSuite) TestRunWeeklySummary() {
	_, _, err := s.db.Users().Ensure(s.ctx, owner, "Sam")
	s.Require().NoError(err)
	_, _, err = s.db.Users().Ensure(s.ctx, owner+1, "Alex")
	s.Require().NoError(err)

	s.Require().NoError(s.db.Transactions().Insert(s.ctx, &domain.Transaction{
		OwnerID:  owner,
		Kind:     domain.KindExpense,
		Amount:   decimal.NewFromInt(40),
		Currency: "EUR",
		Category: "food",
		Date:     s.today.AddDays(-1),
	}))

	sent, err := s.sched.RunWeeklySummary(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, sent)
	s.Require().Equal(2, s.publisher.count())

	first := s.publisher.published[0]
	s.Equal(jobs.JobTypeWeeklySummary, first.Type)
	s.Equal(owner, first.OwnerID)
	s.Contains(first.Text, "Weekly report")
	s.Contains(first.Text, "40.00€")
	s.Contains(s.publisher.published[1].Text, "No transactions in the last 7 days")
}

func (s *SchedulerTestSuite) TestRunWeeklySummary_Busy() {
	s.sched.weeklyMu.Lock()
	defer s.sched.weeklyMu.Unlock()

	_, err := s.sched.RunWeeklySummary(s.ctx)
	s.ErrorIs(err, ErrBusy)
}

func TestNextDaily(t *testing.T) {
	at := config.TimeOfDay{Hour: 9}
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before", time.Date(2026, 6, 10, 8, 59, 0, 0, time.UTC), time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)},
		{"exactly", time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC), time.Date(2026, 6, 11, 9, 0, 0, 0, time.UTC)},
		{"after", time.Date(2026, 12, 31, 22, 0, 0, 0, time.UTC), time.Date(2027, 1, 1, 9, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextDaily(tt.now, at))
		})
	}
}

func TestNextWeekly(t *testing.T) {
	at := config.TimeOfDay{Hour: 20}
	// 2026-06-10 is a Wednesday.
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"later this week", time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC), time.Date(2026, 6, 14, 20, 0, 0, 0, time.UTC)},
		{"sunday before", time.Date(2026, 6, 14, 19, 0, 0, 0, time.UTC), time.Date(2026, 6, 14, 20, 0, 0, 0, time.UTC)},
		{"sunday after", time.Date(2026, 6, 14, 20, 30, 0, 0, time.UTC), time.Date(2026, 6, 21, 20, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextWeekly(tt.now, time.Sunday, at))
		})
	}
}

func TestStart_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sched := New(nil, nil, nil, &mockPublisher{}, clock.NewReal(time.UTC), Options{
		ReminderAt:      config.TimeOfDay{Hour: 9},
		WeeklySummaryAt: config.TimeOfDay{Hour: 20},
	})

	done := make(chan struct{})
	go func() {
		sched.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
