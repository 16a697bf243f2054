package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dvloznov/finance-bot/internal/infra/sqlstore"
	"github.com/dvloznov/finance-bot/internal/logger"
)

func main() {
	log := logger.New()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
}

// run applies pending migrations to the database named by -db, or with
// -status only lists them.
func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(out)
	dbPath := fs.String("db", envOr("DB_PATH", "finance.db"), "SQLite database path (DB_PATH)")
	appliedBy := fs.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	status := fs.Bool("status", false, "List migrations and exit without applying")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := sqlstore.Open(ctx, sqlstore.Options{Path: *dbPath})
	if err != nil {
		return err
	}
	defer db.Close()

	if *status {
		list, err := db.Status(ctx)
		if err != nil {
			return err
		}
		for _, st := range list {
			state := "pending"
			if st.Applied != nil {
				state = "applied " + st.Applied.AppliedAt.Format(time.RFC3339) + " by " + st.Applied.AppliedBy
			}
			fmt.Fprintf(out, "%04d %-30s %s\n", st.Version, st.Name, state)
		}
		return nil
	}

	n, err := db.Migrate(ctx, *appliedBy)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Fprintln(out, "Database is up to date.")
		return nil
	}
	fmt.Fprintf(out, "Applied %d migration(s).\n", n)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
