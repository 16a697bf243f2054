package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// RemoveTransaction deletes every mirrored version of a transaction.
// BigQuery rejects DML on rows still in the streaming buffer, so a delete
// right after an insert can fail; callers log and move on.
func (w *Warehouse) RemoveTransaction(ctx context.Context, ownerID, id int64) error {
	q := w.client.Query(`
		DELETE FROM ` + w.tableRef() + `
		WHERE owner_id = @owner_id AND transaction_id = @transaction_id
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "transaction_id", Value: id},
	}
	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("RemoveTransaction: %w", err)
	}
	return nil
}

func runDML(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("run query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
