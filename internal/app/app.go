// Package app assembles the services shared by the api, worker and cli
// binaries from a loaded Config.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-bot/internal/bot"
	"github.com/dvloznov/finance-bot/internal/budget"
	"github.com/dvloznov/finance-bot/internal/clock"
	"github.com/dvloznov/finance-bot/internal/config"
	"github.com/dvloznov/finance-bot/internal/export"
	"github.com/dvloznov/finance-bot/internal/gcsuploader"
	infraBQ "github.com/dvloznov/finance-bot/internal/infra/bigquery"
	"github.com/dvloznov/finance-bot/internal/infra/sqlstore"
	"github.com/dvloznov/finance-bot/internal/jobs"
	"github.com/dvloznov/finance-bot/internal/ledger"
	"github.com/dvloznov/finance-bot/internal/logger"
	"github.com/dvloznov/finance-bot/internal/parser"
	"github.com/dvloznov/finance-bot/internal/recurring"
	"github.com/dvloznov/finance-bot/internal/scheduler"
)

// Options selects the optional parts of the graph.
type Options struct {
	// Parser creates the Gemini client. Batch-only binaries leave it off.
	Parser bool
	// Clock overrides the real clock in the configured location.
	Clock clock.Clock
}

// App holds the wired services. Close releases every client it opened.
type App struct {
	Config *config.Config
	Clock  clock.Clock
	DB     *sqlstore.DB

	Ledger     *ledger.Service
	Budgets    *budget.Service
	Recurring  *recurring.Service
	Export     *export.Service
	Dispatcher *bot.Dispatcher

	Storage   *gcsuploader.Storage
	Warehouse *infraBQ.Warehouse

	closers []func() error
}

// Build opens the database, applies pending migrations and wires the services.
// GCS publishing and the BigQuery mirror are attached only when configured.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	log := logger.FromContext(ctx)

	c := opts.Clock
	if c == nil {
		c = clock.NewReal(cfg.Location)
	}

	db, err := sqlstore.OpenMigrated(ctx, sqlstore.Options{
		Path:         cfg.DBPath,
		MaxOpenConns: cfg.MaxOpenConns,
		Clock:        c,
	})
	if err != nil {
		return nil, fmt.Errorf("Build: open database: %w", err)
	}
	a := &App{Config: cfg, Clock: c, DB: db}
	a.closers = append(a.closers, db.Close)

	var p parser.Parser
	if opts.Parser {
		gemini, err := parser.NewGeminiParser(ctx, parser.GeminiConfig{
			APIKey:          cfg.GeminiAPIKey,
			Model:           cfg.GeminiModel,
			Timeout:         cfg.ParseTimeout,
			DefaultCurrency: cfg.DefaultCurrency,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("Build: %w", err)
		}
		p = gemini
	}

	a.Budgets = budget.NewService(db.Budgets(), db.Transactions(), c, cfg.DefaultCurrency)
	a.Ledger = ledger.NewService(db.Transactions(), p, a.Budgets, c, cfg.DefaultCurrency)
	a.Recurring = recurring.NewService(db.Recurring(), p, c, cfg.DefaultCurrency)
	a.Export = export.NewService(db.Transactions(), c, cfg.DefaultCurrency)

	if cfg.ExportBucket != "" {
		storage, err := gcsuploader.New(ctx)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("Build: %w", err)
		}
		a.Storage = storage
		a.closers = append(a.closers, storage.Close)
		a.Export.UsePublisher(storage, cfg.ExportBucket)
		log.Info().Str("bucket", cfg.ExportBucket).Msg("Export publishing enabled")
	}

	if cfg.WarehouseEnabled() {
		wh, err := infraBQ.NewWarehouse(ctx, cfg.GCPProject, cfg.BQDataset, cfg.BQTable, c)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("Build: %w", err)
		}
		a.closers = append(a.closers, wh.Close)
		if err := wh.EnsureTable(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("Build: %w", err)
		}
		a.Warehouse = wh
		a.Ledger.UseMirror(wh)
		log.Info().
			Str("project", cfg.GCPProject).
			Str("dataset", cfg.BQDataset).
			Str("table", cfg.BQTable).
			Msg("BigQuery mirror enabled")
	}

	a.Dispatcher = bot.NewDispatcher(a.Ledger, a.Budgets, a.Recurring, a.Export, db.Users())
	return a, nil
}

// Scheduler builds the reminder and weekly summary batches on top of publisher.
func (a *App) Scheduler(publisher jobs.Publisher) *scheduler.Scheduler {
	return scheduler.New(a.Recurring, a.Ledger, a.DB.Users(), publisher, a.Clock, scheduler.Options{
		ReminderAt:       a.Config.ReminderAt,
		HorizonDays:      a.Config.ReminderHorizonDays,
		WeeklySummaryDay: a.Config.WeeklySummaryDay,
		WeeklySummaryAt:  a.Config.WeeklySummaryAt,
		Currency:         a.Config.DefaultCurrency,
	})
}

// Close releases clients in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
