package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dvloznov/finance-bot/internal/app"
	"github.com/dvloznov/finance-bot/internal/config"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/gcsuploader"
	infraBQ "github.com/dvloznov/finance-bot/internal/infra/bigquery"
	"github.com/dvloznov/finance-bot/internal/jobs/inmemory"
	"github.com/dvloznov/finance-bot/internal/logger"
	"github.com/dvloznov/finance-bot/internal/notify"
	"github.com/dvloznov/finance-bot/internal/period"
	"github.com/rs/zerolog"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "say":
		runSay()
	case "remind-now":
		runRemindNow()
	case "weekly-now":
		runWeeklyNow()
	case "budget-status":
		runBudgetStatus()
	case "export":
		runExport()
	case "fetch-export":
		runFetchExport()
	case "verify-warehouse":
		runVerifyWarehouse()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Finance Bot CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  say               Send one chat message as an owner and print the reply")
	fmt.Println("  remind-now        Run the recurring payment reminder batch once")
	fmt.Println("  weekly-now        Run the weekly summary batch once")
	fmt.Println("  budget-status     Print an owner's budget status report")
	fmt.Println("  export            Write a month of transactions as CSV, optionally to GCS")
	fmt.Println("  fetch-export      Download a published export from GCS")
	fmt.Println("  verify-warehouse  Compare local category totals with the BigQuery mirror")
	fmt.Println("  help              Show this help message")
	fmt.Println("\nEvery command also accepts the server flags (-db, -timezone, ...).")
	fmt.Println("Run 'cli <command> -h' for more information on a command.")
}

// setup loads configuration from fs and builds the services.
func setup(fs *flag.FlagSet, opts app.Options) (context.Context, *app.App, zerolog.Logger) {
	cfg, err := config.Load(fs, os.Args[2:], os.Getenv)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}

	log := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON})
	ctx := logger.WithContext(context.Background(), log)

	a, err := app.Build(ctx, cfg, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	return ctx, a, log
}

func runSay() {
	fs := flag.NewFlagSet("say", flag.ExitOnError)
	owner := fs.Int64("owner", 0, "Owner id to act as (required)")
	name := fs.String("name", "", "Display name used when registering the owner")

	ctx, a, log := setup(fs, app.Options{Parser: true})
	defer a.Close()

	text := strings.Join(fs.Args(), " ")
	if *owner == 0 || text == "" {
		log.Fatal().Msg("Usage: cli say -owner ID TEXT...")
	}

	ctx, cancel := context.WithTimeout(ctx, a.Config.ParseTimeout+30*time.Second)
	defer cancel()

	fmt.Println(a.Dispatcher.Handle(ctx, *owner, *name, text).Text())
}

func runRemindNow() {
	fs := flag.NewFlagSet("remind-now", flag.ExitOnError)
	ctx, a, log := setup(fs, app.Options{})
	defer a.Close()

	queue := inmemory.NewQueue(inmemory.Options{Workers: 1, Clock: a.Clock})
	if err := queue.Start(ctx, notify.JobHandler(notify.New(a.Config.NotifyWebhookURL))); err != nil {
		log.Fatal().Err(err).Msg("Failed to start notification worker")
	}

	report, err := a.Scheduler(queue).RunReminders(ctx)
	drain(ctx, queue, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Reminder batch failed")
	}

	fmt.Printf("Due: %d, sent: %d, skipped: %d, advanced: %d, failed: %d\n",
		report.Due, report.Sent, report.Skipped, report.Advanced, report.Failed)
}

func runWeeklyNow() {
	fs := flag.NewFlagSet("weekly-now", flag.ExitOnError)
	ctx, a, log := setup(fs, app.Options{})
	defer a.Close()

	queue := inmemory.NewQueue(inmemory.Options{Workers: 1, Clock: a.Clock})
	if err := queue.Start(ctx, notify.JobHandler(notify.New(a.Config.NotifyWebhookURL))); err != nil {
		log.Fatal().Err(err).Msg("Failed to start notification worker")
	}

	sent, err := a.Scheduler(queue).RunWeeklySummary(ctx)
	drain(ctx, queue, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Weekly summary batch failed")
	}

	fmt.Printf("Weekly summaries queued: %d\n", sent)
}

func drain(ctx context.Context, queue *inmemory.Queue, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := queue.Stop(ctx); err != nil {
		log.Error().Err(err).Msg("Notifications still in flight at exit")
	}
}

func runBudgetStatus() {
	fs := flag.NewFlagSet("budget-status", flag.ExitOnError)
	owner := fs.Int64("owner", 0, "Owner id (required)")

	ctx, a, log := setup(fs, app.Options{})
	defer a.Close()

	if *owner == 0 {
		log.Fatal().Msg("Error: -owner is required")
	}
	fmt.Println(a.Budgets.StatusReply(ctx, *owner).Text())
}

func runExport() {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	owner := fs.Int64("owner", 0, "Owner id (required)")
	year := fs.Int("year", 0, "Year, defaults to the current one")
	month := fs.Int("month", 0, "Month 1-12, defaults to the current one")
	out := fs.String("out", "", "Output file, defaults to the export name")
	publish := fs.Bool("publish", false, "Upload to the export bucket instead of writing a file")

	ctx, a, log := setup(fs, app.Options{})
	defer a.Close()

	if *owner == 0 {
		log.Fatal().Msg("Error: -owner is required")
	}

	f, err := a.Export.MonthCSV(ctx, *owner, *year, *month)
	if err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}

	if *publish {
		uri, err := a.Export.Publish(ctx, f)
		if err != nil {
			log.Fatal().Err(err).Msg("Publish failed")
		}
		fmt.Printf("Exported %d transactions to %s\n", f.Rows, uri)
		return
	}

	path := *out
	if path == "" {
		path = f.Name
	}
	if err := os.WriteFile(path, f.Data, 0o644); err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to write export")
	}
	fmt.Printf("Wrote %d transactions to %s\n", f.Rows, path)
}

func runFetchExport() {
	fs := flag.NewFlagSet("fetch-export", flag.ExitOnError)
	uri := fs.String("uri", "", "gs:// URI of a published export (required)")
	out := fs.String("out", "", "Output file, defaults to the object's base name")
	fs.Parse(os.Args[2:])

	log := logger.New()
	if *uri == "" {
		log.Fatal().Msg("Error: -uri is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	storage, err := gcsuploader.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer storage.Close()

	data, err := storage.FetchFromGCS(ctx, *uri)
	if err != nil {
		log.Fatal().Err(err).Str("uri", *uri).Msg("Download failed")
	}

	path := *out
	if path == "" {
		path = gcsuploader.ExtractFilenameFromGCSURI(*uri)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to write file")
	}
	fmt.Printf("Downloaded %d bytes to %s\n", len(data), path)
}

func runVerifyWarehouse() {
	fs := flag.NewFlagSet("verify-warehouse", flag.ExitOnError)
	owner := fs.Int64("owner", 0, "Owner id (required)")
	year := fs.Int("year", 0, "Year, defaults to the current one")
	month := fs.Int("month", 0, "Month 1-12, defaults to the current one")
	kind := fs.String("kind", string(domain.KindExpense), "expense or income")

	ctx, a, log := setup(fs, app.Options{})
	defer a.Close()

	if *owner == 0 {
		log.Fatal().Msg("Error: -owner is required")
	}
	if a.Warehouse == nil {
		log.Fatal().Msg("Error: the BigQuery mirror is not configured (set -gcp-project and -bq-dataset)")
	}
	k := domain.Kind(*kind)
	if !k.Valid() {
		log.Fatal().Str("kind", *kind).Msg("Error: -kind must be expense or income")
	}

	y, m, err := period.ResolveMonth(period.Today(a.Clock), *year, *month)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid month")
	}
	window := period.MonthRange(y, m)

	local, err := a.DB.Transactions().CategoryTotals(ctx, *owner, k, window)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read local totals")
	}
	remote, err := a.Warehouse.CategoryTotals(ctx, *owner, k, window)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read warehouse totals")
	}

	mismatches := infraBQ.CompareTotals(local, remote)
	if len(mismatches) == 0 {
		fmt.Printf("%s %s: %d categories match\n", window, k, len(local))
		return
	}

	fmt.Printf("%s %s: %d categories differ\n", window, k, len(mismatches))
	for _, mm := range mismatches {
		fmt.Printf("  %-15s local %s  warehouse %s\n", mm.Category, mm.Local.StringFixed(2), mm.Warehouse.StringFixed(2))
	}
	os.Exit(1)
}
