// Package scheduler runs the daily reminder batch and the weekly summary
// batch, either on demand or from a wall-clock loop.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-bot/internal/clock"
	"github.com/dvloznov/finance-bot/internal/config"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/jobs"
	"github.com/dvloznov/finance-bot/internal/ledger"
	"github.com/dvloznov/finance-bot/internal/logger"
	"github.com/dvloznov/finance-bot/internal/period"
)

// ErrBusy is returned when a batch is started while the previous run of the
// same batch is still in progress.
var ErrBusy = errors.New("batch already running")

// Recurring is the part of the recurring service the reminder batch needs.
type Recurring interface {
	DueSoon(ctx context.Context, horizonDays int) ([]domain.RecurringPayment, error)
	Advance(ctx context.Context, p *domain.RecurringPayment) (civil.Date, error)
	MarkReminded(ctx context.Context, p *domain.RecurringPayment) error
}

// Summaries produces the weekly report for one owner.
type Summaries interface {
	WeekSummary(ctx context.Context, ownerID int64) (ledger.Summary, error)
}

// Users lists every registered owner.
type Users interface {
	List(ctx context.Context) ([]domain.User, error)
}

// Options holds the schedule.
type Options struct {
	ReminderAt       config.TimeOfDay
	HorizonDays      int
	WeeklySummaryDay time.Weekday
	WeeklySummaryAt  config.TimeOfDay
	Currency         string
}

// ReminderReport counts what one reminder batch did.
type ReminderReport struct {
	Due      int
	Sent     int
	Skipped  int
	Advanced int
	Failed   int
}

// Scheduler owns the reminder and weekly summary batches.
type Scheduler struct {
	recurring Recurring
	summaries Summaries
	users     Users
	publisher jobs.Publisher
	clock     clock.Clock
	opts      Options

	reminderMu sync.Mutex
	weeklyMu   sync.Mutex
	wg         sync.WaitGroup
}

// New creates a scheduler that publishes notifications to publisher.
func New(recurring Recurring, summaries Summaries, users Users, publisher jobs.Publisher, c clock.Clock, opts Options) *Scheduler {
	if opts.Currency == "" {
		opts.Currency = domain.DefaultCurrency
	}
	return &Scheduler{
		recurring: recurring,
		summaries: summaries,
		users:     users,
		publisher: publisher,
		clock:     c,
		opts:      opts,
	}
}

// RunReminders sends one reminder per payment cycle for payments due within
// the horizon and advances payments whose due date has arrived. A failure on
// one payment is logged and does not stop the batch.
func (s *Scheduler) RunReminders(ctx context.Context) (ReminderReport, error) {
	if !s.reminderMu.TryLock() {
		return ReminderReport{}, ErrBusy
	}
	defer s.reminderMu.Unlock()

	log := logger.FromContext(ctx)
	today := period.Today(s.clock)

	due, err := s.recurring.DueSoon(ctx, s.opts.HorizonDays)
	if err != nil {
		return ReminderReport{}, fmt.Errorf("RunReminders: %w", err)
	}

	report := ReminderReport{Due: len(due)}
	for i := range due {
		p := &due[i]
		plog := log.With().Int64("owner_id", p.OwnerID).Int64("payment_id", p.ID).Str("due", p.NextDueDate.String()).Logger()

		if p.RemindedForCurrentCycle() {
			report.Skipped++
		} else {
			job := &jobs.NotificationJob{
				Type:      jobs.JobTypeReminder,
				OwnerID:   p.OwnerID,
				PaymentID: p.ID,
				Text:      ReminderText(p, today),
			}
			if err := s.publisher.PublishNotification(ctx, job); err != nil {
				plog.Error().Err(err).Msg("Failed to publish reminder")
				report.Failed++
				continue
			}
			if err := s.recurring.MarkReminded(ctx, p); err != nil {
				plog.Error().Err(err).Msg("Failed to mark reminder as sent")
				report.Failed++
				continue
			}
			report.Sent++
			plog.Info().Str("job_id", job.JobID).Msg("Reminder queued")
		}

		if p.NextDueDate.After(today) {
			continue
		}
		next, err := s.recurring.Advance(ctx, p)
		if err != nil {
			plog.Error().Err(err).Msg("Failed to advance due date")
			report.Failed++
			continue
		}
		report.Advanced++
		plog.Info().Str("next_due", next.String()).Msg("Due date advanced")
	}

	log.Info().
		Int("due", report.Due).
		Int("sent", report.Sent).
		Int("skipped", report.Skipped).
		Int("advanced", report.Advanced).
		Int("failed", report.Failed).
		Msg("Reminder batch finished")
	return report, nil
}

// ReminderText is the message sent for one payment cycle.
func ReminderText(p *domain.RecurringPayment, today civil.Date) string {
	when := p.NextDueDate.String()
	switch days := p.NextDueDate.DaysSince(today); {
	case days == 0:
		when += " (today)"
	case days == 1:
		when += " (tomorrow)"
	case days < 0:
		when += " (overdue)"
	}
	return fmt.Sprintf("⏰ Upcoming payment reminder!\n\n📌 %s\n💶 %s\n📅 Due: %s\n\nDon't forget to pay! 💪",
		p.Name, domain.FormatMoney(p.Amount, p.Currency), when)
}

// RunWeeklySummary queues the trailing-week report for every registered
// user and returns how many were queued.
func (s *Scheduler) RunWeeklySummary(ctx context.Context) (int, error) {
	if !s.weeklyMu.TryLock() {
		return 0, ErrBusy
	}
	defer s.weeklyMu.Unlock()

	log := logger.FromContext(ctx)

	users, err := s.users.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("RunWeeklySummary: %w", err)
	}

	sent := 0
	for _, u := range users {
		sum, err := s.summaries.WeekSummary(ctx, u.ExternalID)
		if err != nil {
			log.Error().Err(err).Int64("owner_id", u.ExternalID).Msg("Failed to build weekly summary")
			continue
		}
		job := &jobs.NotificationJob{
			Type:    jobs.JobTypeWeeklySummary,
			OwnerID: u.ExternalID,
			Text:    "📬 Weekly report\n\n" + ledger.RenderWeek(sum, s.opts.Currency),
		}
		if err := s.publisher.PublishNotification(ctx, job); err != nil {
			log.Error().Err(err).Int64("owner_id", u.ExternalID).Msg("Failed to publish weekly summary")
			continue
		}
		sent++
	}

	log.Info().Int("users", len(users)).Int("sent", sent).Msg("Weekly summary batch finished")
	return sent, nil
}

// NextDaily returns the first instant strictly after now at the given time
// of day, in now's location.
func NextDaily(now time.Time, at config.TimeOfDay) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour, at.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// NextWeekly returns the first instant strictly after now that falls on day
// at the given time, in now's location.
func NextWeekly(now time.Time, day time.Weekday, at config.TimeOfDay) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour, at.Minute, 0, 0, now.Location())
	offset := (int(day) - int(now.Weekday()) + 7) % 7
	next = next.AddDate(0, 0, offset)
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

// Start runs both batches on their schedule until ctx is cancelled, then
// waits for in-flight batches. A batch whose previous run is still going is
// skipped.
func (s *Scheduler) Start(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info().
		Str("reminder_at", s.opts.ReminderAt.String()).
		Str("weekly_day", s.opts.WeeklySummaryDay.String()).
		Str("weekly_at", s.opts.WeeklySummaryAt.String()).
		Msg("Scheduler started")

	defer s.wg.Wait()

	for {
		now := s.clock.Now()
		nextReminder := NextDaily(now, s.opts.ReminderAt)
		nextWeekly := NextWeekly(now, s.opts.WeeklySummaryDay, s.opts.WeeklySummaryAt)

		fireAt := nextReminder
		if nextWeekly.Before(fireAt) {
			fireAt = nextWeekly
		}

		timer := time.NewTimer(fireAt.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Msg("Scheduler stopped")
			return
		case <-timer.C:
		}

		if !nextReminder.After(fireAt) {
			s.launch(ctx, "reminders", func(ctx context.Context) error {
				_, err := s.RunReminders(ctx)
				return err
			})
		}
		if !nextWeekly.After(fireAt) {
			s.launch(ctx, "weekly_summary", func(ctx context.Context) error {
				_, err := s.RunWeeklySummary(ctx)
				return err
			})
		}

		// Timers may fire early; never recompute the same instant.
		if wait := fireAt.Sub(s.clock.Now()); wait > 0 {
			time.Sleep(wait)
		}
	}
}

func (s *Scheduler) launch(ctx context.Context, name string, run func(context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log := logger.FromContext(ctx)
		if err := run(ctx); err != nil {
			if errors.Is(err, ErrBusy) {
				log.Warn().Str("batch", name).Msg("Previous run still in progress, skipping")
				return
			}
			log.Error().Err(err).Str("batch", name).Msg("Scheduled batch failed")
		}
	}()
}
