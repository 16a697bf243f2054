package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/dvloznov/finance-bot/internal/domain"
)

// UserStore reads and writes the users table.
type UserStore struct {
	db *DB
}

const userColumns = `id, external_id, display_name, language, currency, created_at`

func scanUser(s rowScanner) (domain.User, error) {
	var u domain.User
	err := s.Scan(&u.ID, &u.ExternalID, &u.DisplayName, &u.Language, &u.Currency, &u.CreatedAt)
	return u, err
}

// Ensure registers externalID on first contact and returns the stored user.
// created is true when the row was inserted by this call.
func (s *UserStore) Ensure(ctx context.Context, externalID int64, displayName string) (*domain.User, bool, error) {
	res, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO users (external_id, display_name, language, currency, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (external_id) DO NOTHING`,
		externalID, displayName, domain.DefaultLanguage, domain.DefaultCurrency, s.db.clock.Now().UTC())
	if err != nil {
		return nil, false, fmt.Errorf("EnsureUser: exec: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("EnsureUser: rows affected: %w", err)
	}

	u, err := s.Get(ctx, externalID)
	if err != nil {
		return nil, false, err
	}
	return u, n > 0, nil
}

// Get returns the user with the given external id.
func (s *UserStore) Get(ctx context.Context, externalID int64) (*domain.User, error) {
	row := s.db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE external_id = ?`, externalID)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "User", ID: strconv.FormatInt(externalID, 10)}
	}
	if err != nil {
		return nil, fmt.Errorf("GetUser: scan: %w", err)
	}
	return &u, nil
}

// List returns every registered user in registration order.
func (s *UserStore) List(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.conn.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("ListUsers: query: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ListUsers: scan: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
