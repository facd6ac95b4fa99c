package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/sales-dashboard/internal/domain"
)

// BigQueryPurchaseRepository reads purchases from a flattened BigQuery table.
// It holds a shared BigQuery client to avoid creating a new connection for
// each render.
type BigQueryPurchaseRepository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	tableID   string
}

// NewBigQueryPurchaseRepository creates a repository with a shared client.
func NewBigQueryPurchaseRepository(ctx context.Context, projectID, datasetID, tableID string) (*BigQueryPurchaseRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, &domain.ConnectionError{
			Op:  "NewBigQueryPurchaseRepository: creating client",
			Err: fmt.Errorf("project %q: %w", projectID, err),
		}
	}
	return &BigQueryPurchaseRepository{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
		tableID:   tableID,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryPurchaseRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// FetchPurchases delegates to FetchPurchasesWithClient with the shared client.
func (r *BigQueryPurchaseRepository) FetchPurchases(ctx context.Context) ([]domain.PurchaseRecord, error) {
	return FetchPurchasesWithClient(ctx, r.client, r.projectID, r.datasetID, r.tableID)
}

// InsertPurchases delegates to InsertPurchasesWithClient with the shared client.
func (r *BigQueryPurchaseRepository) InsertPurchases(ctx context.Context, rows []*PurchaseRow) error {
	return InsertPurchasesWithClient(ctx, r.client, r.projectID, r.datasetID, r.tableID, rows)
}
