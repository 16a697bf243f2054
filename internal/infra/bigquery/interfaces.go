package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-bot/internal/clock"
	"github.com/dvloznov/finance-bot/internal/logger"
	"google.golang.org/api/googleapi"
)

// Warehouse mirrors ledger changes into one BigQuery table. It holds a
// shared client; Close releases it.
type Warehouse struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	tableID   string
	schema    bigquery.Schema
	clock     clock.Clock
}

// NewWarehouse creates a client for projectID and targets dataset.table.
func NewWarehouse(ctx context.Context, projectID, datasetID, tableID string, c clock.Clock) (*Warehouse, error) {
	if projectID == "" || datasetID == "" || tableID == "" {
		return nil, errors.New("NewWarehouse: project, dataset and table are required")
	}
	schema, err := bigquery.InferSchema(TransactionRow{})
	if err != nil {
		return nil, fmt.Errorf("NewWarehouse: inferring schema: %w", err)
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewWarehouse: creating client: %w", err)
	}
	return &Warehouse{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
		tableID:   tableID,
		schema:    schema,
		clock:     c,
	}, nil
}

// Close closes the BigQuery client connection.
func (w *Warehouse) Close() error {
	if w.client != nil {
		return w.client.Close()
	}
	return nil
}

func (w *Warehouse) table() *bigquery.Table {
	return w.client.DatasetInProject(w.projectID, w.datasetID).Table(w.tableID)
}

func (w *Warehouse) tableRef() string {
	return tableRef(w.projectID, w.datasetID, w.tableID)
}

func tableRef(projectID, datasetID, tableID string) string {
	return "`" + projectID + "." + datasetID + "." + tableID + "`"
}

// EnsureTable creates the mirror table, partitioned by transaction date,
// when it does not exist yet.
func (w *Warehouse) EnsureTable(ctx context.Context) error {
	t := w.table()
	if _, err := t.Metadata(ctx); err == nil {
		return nil
	} else if !isNotFound(err) {
		return fmt.Errorf("EnsureTable: reading metadata: %w", err)
	}

	meta := &bigquery.TableMetadata{
		Schema: w.schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: "transaction_date",
		},
		Clustering: &bigquery.Clustering{Fields: []string{"owner_id", "category"}},
	}
	if err := t.Create(ctx, meta); err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("EnsureTable: creating table: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().Str("table", w.tableRef()).Msg("Created warehouse table")
	return nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

func isAlreadyExists(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict
}
