package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/shopspring/decimal"
)

// BudgetStore reads and writes the budget_limits table.
type BudgetStore struct {
	db *DB
}

// Upsert creates or replaces the owner's limit for category.
func (s *BudgetStore) Upsert(ctx context.Context, ownerID int64, category string, limit decimal.Decimal) (*domain.BudgetLimit, error) {
	if !limit.Round(domain.AmountScale).IsPositive() {
		return nil, domain.Invalidf("budget limit must be greater than zero")
	}
	if err := domain.CheckAmount(limit); err != nil {
		return nil, fmt.Errorf("UpsertBudget: %w", err)
	}
	minor, err := domain.ToMinor(limit)
	if err != nil {
		return nil, fmt.Errorf("UpsertBudget: %w", err)
	}

	_, err = s.db.conn.ExecContext(ctx, `
		INSERT INTO budget_limits (owner_id, category, limit_minor)
		VALUES (?, ?, ?)
		ON CONFLICT (owner_id, category) DO UPDATE SET limit_minor = excluded.limit_minor`,
		ownerID, category, minor)
	if err != nil {
		return nil, fmt.Errorf("UpsertBudget: exec: %w", err)
	}

	return s.Get(ctx, ownerID, category)
}

// Get returns the owner's limit for category.
func (s *BudgetStore) Get(ctx context.Context, ownerID int64, category string) (*domain.BudgetLimit, error) {
	var (
		b     domain.BudgetLimit
		minor int64
	)
	err := s.db.conn.QueryRowContext(ctx, `
		SELECT id, owner_id, category, limit_minor
		FROM budget_limits
		WHERE owner_id = ? AND category = ?`,
		ownerID, category).Scan(&b.ID, &b.OwnerID, &b.Category, &minor)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "Budget", ID: category}
	}
	if err != nil {
		return nil, fmt.Errorf("GetBudget: scan: %w", err)
	}
	b.LimitAmount = domain.FromMinor(minor)
	return &b, nil
}

// List returns the owner's limits ordered by category name.
func (s *BudgetStore) List(ctx context.Context, ownerID int64) ([]domain.BudgetLimit, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, owner_id, category, limit_minor
		FROM budget_limits
		WHERE owner_id = ?
		ORDER BY category ASC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("ListBudgets: query: %w", err)
	}
	defer rows.Close()

	var limits []domain.BudgetLimit
	for rows.Next() {
		var (
			b     domain.BudgetLimit
			minor int64
		)
		if err := rows.Scan(&b.ID, &b.OwnerID, &b.Category, &minor); err != nil {
			return nil, fmt.Errorf("ListBudgets: scan: %w", err)
		}
		b.LimitAmount = domain.FromMinor(minor)
		limits = append(limits, b)
	}
	return limits, rows.Err()
}

// Delete removes the owner's limit for category.
func (s *BudgetStore) Delete(ctx context.Context, ownerID int64, category string) error {
	res, err := s.db.conn.ExecContext(ctx,
		`DELETE FROM budget_limits WHERE owner_id = ? AND category = ?`, ownerID, category)
	if err != nil {
		return fmt.Errorf("DeleteBudget: exec: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("DeleteBudget: rows affected: %w", err)
	}
	if n == 0 {
		return &domain.NotFoundError{Entity: "Budget", ID: category}
	}
	return nil
}
