package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-bot/internal/domain"
)

// RecurringStore reads and writes the recurring_payments table.
type RecurringStore struct {
	db *DB
}

const recurringColumns = `id, owner_id, name, amount_minor, currency, frequency,
	next_due_date, remind_days_before, active, COALESCE(reminded_for, ''), created_at`

func scanRecurring(s rowScanner) (domain.RecurringPayment, error) {
	var (
		p           domain.RecurringPayment
		minor       int64
		frequency   string
		nextDue     string
		active      int
		remindedFor string
	)
	if err := s.Scan(&p.ID, &p.OwnerID, &p.Name, &minor, &p.Currency, &frequency,
		&nextDue, &p.RemindDaysBefore, &active, &remindedFor, &p.CreatedAt); err != nil {
		return domain.RecurringPayment{}, err
	}

	due, err := parseDate(nextDue)
	if err != nil {
		return domain.RecurringPayment{}, err
	}
	if remindedFor != "" {
		d, err := parseDate(remindedFor)
		if err != nil {
			return domain.RecurringPayment{}, err
		}
		p.RemindedFor = &d
	}

	p.Amount = domain.FromMinor(minor)
	p.Frequency = domain.Frequency(frequency)
	p.NextDueDate = due
	p.Active = active != 0
	return p, nil
}

// Insert stores p and sets its ID and CreatedAt.
func (s *RecurringStore) Insert(ctx context.Context, p *domain.RecurringPayment) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("InsertRecurring: %w", err)
	}
	minor, err := domain.ToMinor(p.Amount)
	if err != nil {
		return fmt.Errorf("InsertRecurring: %w", err)
	}

	createdAt := s.db.clock.Now().UTC()
	res, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO recurring_payments (owner_id, name, amount_minor, currency, frequency, next_due_date, remind_days_before, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.OwnerID, p.Name, minor, p.Currency, string(p.Frequency),
		p.NextDueDate.String(), p.RemindDaysBefore, boolToInt(p.Active), createdAt,
	)
	if err != nil {
		return fmt.Errorf("InsertRecurring: exec: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("InsertRecurring: last insert id: %w", err)
	}

	p.ID = id
	p.CreatedAt = createdAt
	return nil
}

// Get returns one payment owned by ownerID.
func (s *RecurringStore) Get(ctx context.Context, ownerID, id int64) (*domain.RecurringPayment, error) {
	row := s.db.conn.QueryRowContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_payments WHERE id = ? AND owner_id = ?`, id, ownerID)

	p, err := scanRecurring(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "Recurring payment", ID: strconv.FormatInt(id, 10)}
	}
	if err != nil {
		return nil, fmt.Errorf("GetRecurring: scan: %w", err)
	}
	return &p, nil
}

// ListByOwner returns the owner's payments ordered by due date.
func (s *RecurringStore) ListByOwner(ctx context.Context, ownerID int64, activeOnly bool) ([]domain.RecurringPayment, error) {
	query := `SELECT ` + recurringColumns + ` FROM recurring_payments WHERE owner_id = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY next_due_date ASC, id ASC`

	rows, err := s.db.conn.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ListRecurring: query: %w", err)
	}
	return collectRecurring(rows)
}

// DueBy returns every active payment, across owners, due on or before date.
func (s *RecurringStore) DueBy(ctx context.Context, date civil.Date) ([]domain.RecurringPayment, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT `+recurringColumns+`
		FROM recurring_payments
		WHERE active = 1 AND next_due_date <= ?
		ORDER BY next_due_date ASC, id ASC`,
		date.String())
	if err != nil {
		return nil, fmt.Errorf("DueBy: query: %w", err)
	}
	return collectRecurring(rows)
}

// Delete removes a payment. A missing or foreign id is NotFound.
func (s *RecurringStore) Delete(ctx context.Context, ownerID, id int64) error {
	res, err := s.db.conn.ExecContext(ctx,
		`DELETE FROM recurring_payments WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("DeleteRecurring: exec: %w", err)
	}
	return expectAffected(res, "Recurring payment", id)
}

// SetActive pauses or resumes a payment.
func (s *RecurringStore) SetActive(ctx context.Context, ownerID, id int64, active bool) error {
	res, err := s.db.conn.ExecContext(ctx,
		`UPDATE recurring_payments SET active = ? WHERE id = ? AND owner_id = ?`,
		boolToInt(active), id, ownerID)
	if err != nil {
		return fmt.Errorf("SetRecurringActive: exec: %w", err)
	}
	return expectAffected(res, "Recurring payment", id)
}

// UpdateDueDate stores the next due date of a payment.
func (s *RecurringStore) UpdateDueDate(ctx context.Context, id int64, next civil.Date) error {
	res, err := s.db.conn.ExecContext(ctx,
		`UPDATE recurring_payments SET next_due_date = ? WHERE id = ?`, next.String(), id)
	if err != nil {
		return fmt.Errorf("UpdateDueDate: exec: %w", err)
	}
	return expectAffected(res, "Recurring payment", id)
}

// MarkReminded records that a reminder was sent for the cycle due on due.
func (s *RecurringStore) MarkReminded(ctx context.Context, id int64, due civil.Date) error {
	res, err := s.db.conn.ExecContext(ctx,
		`UPDATE recurring_payments SET reminded_for = ? WHERE id = ?`, due.String(), id)
	if err != nil {
		return fmt.Errorf("MarkReminded: exec: %w", err)
	}
	return expectAffected(res, "Recurring payment", id)
}

func collectRecurring(rows *sql.Rows) ([]domain.RecurringPayment, error) {
	defer rows.Close()

	var payments []domain.RecurringPayment
	for rows.Next() {
		p, err := scanRecurring(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
