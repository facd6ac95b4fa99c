package bigquery

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/sales-dashboard/internal/domain"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// FetchPurchasesWithClient reads every row of project.dataset.table in the
// table's natural order using the provided BigQuery client.
func FetchPurchasesWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID, tableID string) ([]domain.PurchaseRecord, error) {
	query := fmt.Sprintf(`
		SELECT
			date,
			item_name,
			item_price,
			user_name,
			user_email,
			client_name
		FROM `+"`%s.%s.%s`"+`
	`, projectID, datasetID, tableID)

	q := client.Query(query)
	it, err := q.Read(ctx)
	if err != nil {
		return nil, classify("FetchPurchasesWithClient: reading query", err)
	}

	var records []domain.PurchaseRecord
	for {
		var row PurchaseRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classify("FetchPurchasesWithClient: iterating", err)
		}
		records = append(records, row.Record())
	}

	return records, nil
}

// classify treats an answer from the API (bad table, bad SQL, rejected rows)
// as a query error and everything else (transport, auth, deadline) as a
// connection error.
func classify(op string, err error) error {
	var apiErr *googleapi.Error
	var rowErrs bigquery.PutMultiError
	if errors.As(err, &apiErr) || errors.As(err, &rowErrs) {
		return &domain.QueryError{Op: op, Err: err}
	}
	return &domain.ConnectionError{Op: op, Err: err}
}

// insertBatchSize bounds one streaming insert request.
const insertBatchSize = 500

// InsertPurchasesWithClient streams rows into project.dataset.table in
// batches using the provided BigQuery client.
func InsertPurchasesWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID, tableID string, rows []*PurchaseRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.DatasetInProject(projectID, datasetID).Table(tableID).Inserter()
	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := inserter.Put(ctx, rows[start:end]); err != nil {
			return classify(fmt.Sprintf("InsertPurchasesWithClient: inserting rows %d-%d", start, end-1), err)
		}
	}

	return nil
}
