// Package notionsync mirrors a month of ledger transactions into a Notion
// database so they can be browsed and annotated there.
package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/logger"
	"github.com/dvloznov/finance-bot/internal/period"
)

// Source reads the ledger.
type Source interface {
	ListRange(ctx context.Context, ownerID int64, r period.Range) ([]domain.Transaction, error)
}

// Report counts what a sync did, or would do in dry-run mode.
type Report struct {
	Created int
	Updated int
	Deleted int
	Failed  int
}

// SyncMonth makes the owner's rows dated inside the month match the ledger:
// missing rows are created, existing rows are overwritten and rows whose
// transaction no longer exists are archived. Rows of other owners are never
// touched. Per-row API failures are logged and counted, not returned.
func SyncMonth(ctx context.Context, src Source, notion NotionService, databaseID string, ownerID int64, year int, month time.Month, dryRun bool) (Report, error) {
	log := logger.ForOwner(ctx, ownerID)
	window := period.MonthRange(year, month)

	log.Info().
		Str("window", window.String()).
		Bool("dry_run", dryRun).
		Msg("Starting Notion sync")

	txs, err := src.ListRange(ctx, ownerID, window)
	if err != nil {
		return Report{}, fmt.Errorf("SyncMonth: list transactions: %w", err)
	}

	pages, err := queryAllPages(ctx, notion, databaseID)
	if err != nil {
		return Report{}, fmt.Errorf("SyncMonth: %w", err)
	}

	wanted := make(map[string]bool, len(txs))
	for _, tx := range txs {
		wanted[TransactionKey(ownerID, tx.ID)] = true
	}

	existing := make(map[string]string)
	var report Report
	for _, page := range pages {
		key := extractTransactionKey(page)
		if owner, ok := keyOwner(key); !ok || owner != ownerID {
			continue
		}
		if wanted[key] {
			existing[key] = string(page.ID)
			continue
		}
		d, ok := extractDate(page)
		if !ok || !window.Contains(d) {
			continue
		}

		if dryRun {
			log.Info().Str("key", key).Msg("[DRY RUN] Would archive stale Notion page")
			report.Deleted++
			continue
		}
		if err := notion.DeletePage(ctx, string(page.ID)); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to archive stale Notion page")
			report.Failed++
			continue
		}
		report.Deleted++
	}

	for _, tx := range txs {
		key := TransactionKey(ownerID, tx.ID)
		pageID, found := existing[key]

		if dryRun {
			if found {
				report.Updated++
			} else {
				report.Created++
			}
			continue
		}

		props := TransactionToNotionProperties(tx)
		if found {
			if _, err := notion.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("Failed to update Notion page")
				report.Failed++
				continue
			}
			report.Updated++
			continue
		}

		if _, err := notion.CreatePage(ctx, databaseID, props); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to create Notion page")
			report.Failed++
			continue
		}
		report.Created++
	}

	log.Info().
		Int("created", report.Created).
		Int("updated", report.Updated).
		Int("deleted", report.Deleted).
		Int("failed", report.Failed).
		Int("total", len(txs)).
		Msg("Notion sync completed")

	return report, nil
}
