// Package sqlstore persists users, transactions, recurring payments and budget
// limits in SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-bot/internal/clock"

	// Register the pure-Go sqlite driver.
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Options configures Open.
type Options struct {
	// Path is a file path or MemoryPath.
	Path string
	// MaxOpenConns bounds the connection pool. Ignored for in-memory databases,
	// which are pinned to one connection so every query sees the same data.
	MaxOpenConns int
	// Clock stamps created_at columns. Defaults to the system clock.
	Clock clock.Clock
}

// DB wraps the shared connection pool. Each store is a thin view over it.
type DB struct {
	conn  *sql.DB
	clock clock.Clock
}

// Open connects to the database and verifies the connection.
// Call Migrate before using the stores.
func Open(ctx context.Context, opts Options) (*DB, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("Open: database path is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewReal(nil)
	}

	memory := opts.Path == MemoryPath
	dsn := opts.Path
	if !memory {
		dsn = withPragmas(opts.Path)
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("Open: sql open: %w", err)
	}

	if memory {
		conn.SetMaxOpenConns(1)
	} else if opts.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(opts.MaxOpenConns)
		conn.SetMaxIdleConns(opts.MaxOpenConns)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("Open: ping: %w", err)
	}

	return &DB{conn: conn, clock: opts.Clock}, nil
}

// OpenMigrated opens the database and applies pending migrations.
func OpenMigrated(ctx context.Context, opts Options) (*DB, error) {
	db, err := Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	if _, err := db.Migrate(ctx, "startup"); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func withPragmas(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Close releases the pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Transactions returns the transaction store.
func (db *DB) Transactions() *TransactionStore {
	return &TransactionStore{db: db}
}

// Recurring returns the recurring payment store.
func (db *DB) Recurring() *RecurringStore {
	return &RecurringStore{db: db}
}

// Budgets returns the budget limit store.
func (db *DB) Budgets() *BudgetStore {
	return &BudgetStore{db: db}
}

// Users returns the user store.
func (db *DB) Users() *UserStore {
	return &UserStore{db: db}
}
