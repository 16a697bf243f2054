// Package bigquery mirrors ledger transactions into a BigQuery table for
// analytics and reconciles the warehouse against the primary store.
package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-bot/internal/domain"
)

// TransactionRow is one mirrored version of a ledger transaction. Edits
// append a newer version; readers keep the latest mirrored_ts per
// (owner_id, transaction_id).
type TransactionRow struct {
	OwnerID       int64 `bigquery:"owner_id"`       // REQUIRED
	TransactionID int64 `bigquery:"transaction_id"` // REQUIRED

	Kind     string   `bigquery:"kind"`     // REQUIRED expense|income
	Amount   *big.Rat `bigquery:"amount"`   // REQUIRED NUMERIC
	Currency string   `bigquery:"currency"` // REQUIRED
	Category string   `bigquery:"category"` // REQUIRED

	Description bigquery.NullString `bigquery:"description"` // NULLABLE
	RawText     bigquery.NullString `bigquery:"raw_text"`    // NULLABLE

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED
	CreatedTS       time.Time  `bigquery:"created_ts"`       // REQUIRED
	MirroredTS      time.Time  `bigquery:"mirrored_ts"`      // REQUIRED
}

// RowFromTransaction converts a stored transaction into a warehouse row.
func RowFromTransaction(tx domain.Transaction, mirroredAt time.Time) *TransactionRow {
	return &TransactionRow{
		OwnerID:         tx.OwnerID,
		TransactionID:   tx.ID,
		Kind:            string(tx.Kind),
		Amount:          tx.Amount.Rat(),
		Currency:        tx.Currency,
		Category:        tx.Category,
		Description:     nullString(tx.Description),
		RawText:         nullString(tx.RawText),
		TransactionDate: tx.Date,
		CreatedTS:       tx.CreatedAt.UTC(),
		MirroredTS:      mirroredAt.UTC(),
	}
}

// InsertID deduplicates streaming retries of the same mirrored version.
func (r *TransactionRow) InsertID() string {
	return fmt.Sprintf("%d-%d-%d", r.OwnerID, r.TransactionID, r.MirroredTS.UnixNano())
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
