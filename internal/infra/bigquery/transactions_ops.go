package bigquery

import (
	"context"
	"fmt"
	"math/big"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/logger"
	"github.com/dvloznov/finance-bot/internal/period"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
)

// MirrorTransaction streams the current version of tx into the warehouse.
func (w *Warehouse) MirrorTransaction(ctx context.Context, tx domain.Transaction) error {
	row := RowFromTransaction(tx, w.clock.Now())
	saver := &bigquery.StructSaver{
		Schema:   w.schema,
		InsertID: row.InsertID(),
		Struct:   row,
	}
	if err := w.table().Inserter().Put(ctx, saver); err != nil {
		return fmt.Errorf("MirrorTransaction: inserting row: %w", err)
	}

	log := logger.ForOwner(ctx, tx.OwnerID)
	log.Debug().Int64("transaction_id", tx.ID).Msg("Mirrored transaction to warehouse")
	return nil
}

type categoryTotalRow struct {
	Category string   `bigquery:"category"`
	Total    *big.Rat `bigquery:"total"`
	Count    int64    `bigquery:"n"`
}

// CategoryTotals groups the latest version of each mirrored transaction of
// one kind inside r by category, largest amount first.
func (w *Warehouse) CategoryTotals(ctx context.Context, ownerID int64, kind domain.Kind, r period.Range) ([]domain.CategoryTotal, error) {
	q := w.client.Query(`
		SELECT category, SUM(amount) AS total, COUNT(*) AS n
		FROM (
			SELECT *
			FROM ` + w.tableRef() + `
			WHERE owner_id = @owner_id
			QUALIFY ROW_NUMBER() OVER (PARTITION BY owner_id, transaction_id ORDER BY mirrored_ts DESC) = 1
		)
		WHERE kind = @kind
		  AND transaction_date >= @start_date
		  AND transaction_date <= @end_date
		GROUP BY category
		ORDER BY total DESC, category ASC
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "kind", Value: string(kind)},
		{Name: "start_date", Value: r.Start},
		{Name: "end_date", Value: r.End},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("CategoryTotals: query read: %w", err)
	}

	var totals []domain.CategoryTotal
	for {
		var row categoryTotalRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("CategoryTotals: iter next: %w", err)
		}
		amount, err := ratToDecimal(row.Total)
		if err != nil {
			return nil, fmt.Errorf("CategoryTotals: %s amount: %w", row.Category, err)
		}
		totals = append(totals, domain.CategoryTotal{
			Category: row.Category,
			Amount:   amount,
			Count:    int(row.Count),
		})
	}
	return totals, nil
}

func ratToDecimal(r *big.Rat) (decimal.Decimal, error) {
	if r == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(r.FloatString(domain.AmountScale))
}
