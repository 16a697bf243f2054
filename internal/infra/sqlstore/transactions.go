package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/period"
	"github.com/shopspring/decimal"
)

// TransactionStore reads and writes the transactions table.
type TransactionStore struct {
	db *DB
}

const transactionColumns = `id, owner_id, kind, amount_minor, currency, category,
	COALESCE(description, ''), tx_date, COALESCE(raw_text, ''), created_at`

func scanTransaction(s rowScanner) (domain.Transaction, error) {
	var (
		tx     domain.Transaction
		kind   string
		minor  int64
		txDate string
	)
	if err := s.Scan(&tx.ID, &tx.OwnerID, &kind, &minor, &tx.Currency, &tx.Category,
		&tx.Description, &txDate, &tx.RawText, &tx.CreatedAt); err != nil {
		return domain.Transaction{}, err
	}

	date, err := parseDate(txDate)
	if err != nil {
		return domain.Transaction{}, err
	}

	tx.Kind = domain.Kind(kind)
	tx.Amount = domain.FromMinor(minor)
	tx.Date = date
	return tx, nil
}

// Insert stores tx and sets its ID and CreatedAt.
func (s *TransactionStore) Insert(ctx context.Context, tx *domain.Transaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("InsertTransaction: %w", err)
	}
	minor, err := domain.ToMinor(tx.Amount)
	if err != nil {
		return fmt.Errorf("InsertTransaction: %w", err)
	}

	createdAt := s.db.clock.Now().UTC()
	res, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO transactions (owner_id, kind, amount_minor, currency, category, description, tx_date, raw_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.OwnerID, string(tx.Kind), minor, tx.Currency, tx.Category,
		nullableString(tx.Description), tx.Date.String(), nullableString(tx.RawText), createdAt,
	)
	if err != nil {
		return fmt.Errorf("InsertTransaction: exec: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("InsertTransaction: last insert id: %w", err)
	}

	tx.ID = id
	tx.CreatedAt = createdAt
	return nil
}

// Get returns one transaction owned by ownerID.
func (s *TransactionStore) Get(ctx context.Context, ownerID, id int64) (*domain.Transaction, error) {
	row := s.db.conn.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND owner_id = ?`, id, ownerID)

	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "Transaction", ID: strconv.FormatInt(id, 10)}
	}
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: scan: %w", err)
	}
	return &tx, nil
}

// Delete removes a transaction. A missing or foreign id is NotFound.
func (s *TransactionStore) Delete(ctx context.Context, ownerID, id int64) error {
	res, err := s.db.conn.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("DeleteTransaction: exec: %w", err)
	}
	return expectAffected(res, "Transaction", id)
}

// Update applies patch and returns the updated row.
func (s *TransactionStore) Update(ctx context.Context, ownerID, id int64, patch domain.TransactionPatch) (*domain.Transaction, error) {
	var (
		sets []string
		args []interface{}
	)
	if patch.Amount != nil {
		if err := domain.CheckAmount(*patch.Amount); err != nil {
			return nil, fmt.Errorf("UpdateTransaction: %w", err)
		}
		minor, err := domain.ToMinor(*patch.Amount)
		if err != nil {
			return nil, fmt.Errorf("UpdateTransaction: %w", err)
		}
		sets = append(sets, "amount_minor = ?")
		args = append(args, minor)
	}
	if patch.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *patch.Category)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, nullableString(*patch.Description))
	}
	if len(sets) == 0 {
		return nil, domain.Invalidf("nothing to change")
	}

	args = append(args, id, ownerID)
	res, err := s.db.conn.ExecContext(ctx,
		`UPDATE transactions SET `+strings.Join(sets, ", ")+` WHERE id = ? AND owner_id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("UpdateTransaction: exec: %w", err)
	}
	if err := expectAffected(res, "Transaction", id); err != nil {
		return nil, err
	}

	return s.Get(ctx, ownerID, id)
}

// ListRange returns the owner's transactions inside r, oldest first.
func (s *TransactionStore) ListRange(ctx context.Context, ownerID int64, r period.Range) ([]domain.Transaction, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE owner_id = ? AND tx_date >= ? AND tx_date <= ?
		ORDER BY tx_date ASC, id ASC`,
		ownerID, r.Start.String(), r.End.String())
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: query: %w", err)
	}
	return collectTransactions(rows)
}

// ListCategory returns the owner's transactions in one category inside r, newest first.
func (s *TransactionStore) ListCategory(ctx context.Context, ownerID int64, category string, r period.Range) ([]domain.Transaction, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE owner_id = ? AND category = ? AND tx_date >= ? AND tx_date <= ?
		ORDER BY tx_date DESC, id DESC`,
		ownerID, category, r.Start.String(), r.End.String())
	if err != nil {
		return nil, fmt.Errorf("ListCategory: query: %w", err)
	}
	return collectTransactions(rows)
}

// Search matches query as a case-insensitive substring of description, category or raw text.
func (s *TransactionStore) Search(ctx context.Context, ownerID int64, query string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE owner_id = ?
		  AND (LOWER(COALESCE(description, '')) LIKE ? ESCAPE '\'
		    OR LOWER(category) LIKE ? ESCAPE '\'
		    OR LOWER(COALESCE(raw_text, '')) LIKE ? ESCAPE '\')
		ORDER BY tx_date DESC, id DESC
		LIMIT ?`,
		ownerID, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("SearchTransactions: query: %w", err)
	}
	return collectTransactions(rows)
}

// Totals sums expense and income inside r. A nil range covers all time.
func (s *TransactionStore) Totals(ctx context.Context, ownerID int64, r *period.Range) (domain.Totals, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN kind = 'expense' THEN amount_minor END), 0),
			COALESCE(SUM(CASE WHEN kind = 'income' THEN amount_minor END), 0),
			COUNT(*)
		FROM transactions
		WHERE owner_id = ?`
	args := []interface{}{ownerID}
	if r != nil {
		query += ` AND tx_date >= ? AND tx_date <= ?`
		args = append(args, r.Start.String(), r.End.String())
	}

	var expense, income int64
	var totals domain.Totals
	if err := s.db.conn.QueryRowContext(ctx, query, args...).Scan(&expense, &income, &totals.Count); err != nil {
		return domain.Totals{}, fmt.Errorf("TransactionTotals: scan: %w", err)
	}
	totals.Expense = domain.FromMinor(expense)
	totals.Income = domain.FromMinor(income)
	return totals, nil
}

// CategoryTotals groups transactions of one kind inside r by category,
// largest amount first with ties broken by name.
func (s *TransactionStore) CategoryTotals(ctx context.Context, ownerID int64, kind domain.Kind, r period.Range) ([]domain.CategoryTotal, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT category, SUM(amount_minor) AS total, COUNT(*)
		FROM transactions
		WHERE owner_id = ? AND kind = ? AND tx_date >= ? AND tx_date <= ?
		GROUP BY category
		ORDER BY total DESC, category ASC`,
		ownerID, string(kind), r.Start.String(), r.End.String())
	if err != nil {
		return nil, fmt.Errorf("CategoryTotals: query: %w", err)
	}
	defer rows.Close()

	var totals []domain.CategoryTotal
	for rows.Next() {
		var (
			ct    domain.CategoryTotal
			minor int64
		)
		if err := rows.Scan(&ct.Category, &minor, &ct.Count); err != nil {
			return nil, fmt.Errorf("CategoryTotals: scan: %w", err)
		}
		ct.Amount = domain.FromMinor(minor)
		totals = append(totals, ct)
	}
	return totals, rows.Err()
}

// SpentIn sums expenses inside r for category, or for all categories when
// category is domain.OverallCategory.
func (s *TransactionStore) SpentIn(ctx context.Context, ownerID int64, category string, r period.Range) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount_minor), 0)
		FROM transactions
		WHERE owner_id = ? AND kind = 'expense' AND tx_date >= ? AND tx_date <= ?`
	args := []interface{}{ownerID, r.Start.String(), r.End.String()}
	if category != domain.OverallCategory {
		query += ` AND category = ?`
		args = append(args, category)
	}

	var minor int64
	if err := s.db.conn.QueryRowContext(ctx, query, args...).Scan(&minor); err != nil {
		return decimal.Zero, fmt.Errorf("SpentIn: scan: %w", err)
	}
	return domain.FromMinor(minor), nil
}

func collectTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func expectAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return &domain.NotFoundError{Entity: entity, ID: strconv.FormatInt(id, 10)}
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
