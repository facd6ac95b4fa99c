package pipeline

import (
	"context"

	"github.com/dvloznov/sales-dashboard/internal/domain"
)

// RecordSource runs the purchase join query and returns the flat records in
// the store's natural order. Implementations report an unreachable store as
// *domain.ConnectionError and a failed join/projection as *domain.QueryError.
type RecordSource interface {
	FetchPurchases(ctx context.Context) ([]domain.PurchaseRecord, error)
	Close() error
}
