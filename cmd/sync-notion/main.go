package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/dvloznov/finance-bot/internal/clock"
	"github.com/dvloznov/finance-bot/internal/infra/sqlstore"
	"github.com/dvloznov/finance-bot/internal/logger"
	"github.com/dvloznov/finance-bot/internal/notionsync"
	"github.com/dvloznov/finance-bot/internal/period"
)

func main() {
	// Initialize structured logger
	log := logger.New()

	// Parse CLI flags
	ownerID := flag.Int64("owner", 0, "Owner id whose month is synced (required)")
	year := flag.Int("year", 0, "Year, defaults to the current one")
	month := flag.Int("month", 0, "Month 1-12, defaults to the current one")
	dbPath := flag.String("db", envOr("DB_PATH", "finance.db"), "SQLite database path (DB_PATH)")
	timezone := flag.String("timezone", envOr("TIMEZONE", "UTC"), "IANA timezone used to resolve the current month (TIMEZONE)")
	notionToken := flag.String("notion-token", os.Getenv("NOTION_TOKEN"), "Notion API token (required, NOTION_TOKEN)")
	notionDBID := flag.String("notion-db-id", os.Getenv("NOTION_DB_ID"), "Notion database ID (required, NOTION_DB_ID)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	// Validate required flags
	if *ownerID == 0 {
		log.Fatal().Msg("Error: --owner is required")
	}
	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id is required")
	}

	loc, err := time.LoadLocation(*timezone)
	if err != nil {
		log.Fatal().Err(err).Str("timezone", *timezone).Msg("Error: invalid timezone")
	}
	c := clock.NewReal(loc)

	y, m, err := period.ResolveMonth(period.Today(c), *year, *month)
	if err != nil {
		log.Fatal().Err(err).Msg("Error: invalid month")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	db, err := sqlstore.OpenMigrated(ctx, sqlstore.Options{Path: *dbPath, Clock: c})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	notionClient := notionsync.NewNotionClient(*notionToken)

	report, err := notionsync.SyncMonth(ctx, db.Transactions(), notionClient, *notionDBID, *ownerID, y, m, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync of %d-%02d completed: %d created, %d updated, %d archived, %d failed.\n",
		y, int(m), report.Created, report.Updated, report.Deleted, report.Failed)
	if report.Failed > 0 {
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
