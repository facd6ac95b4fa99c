// Package source opens the configured purchase store.
package source

import (
	"context"
	"fmt"

	"github.com/dvloznov/sales-dashboard/internal/config"
	infraBQ "github.com/dvloznov/sales-dashboard/internal/infra/bigquery"
	infraMongo "github.com/dvloznov/sales-dashboard/internal/infra/mongo"
	"github.com/dvloznov/sales-dashboard/internal/pipeline"
)

// Open connects to cfg.DataSource. The caller must Close the result.
func Open(ctx context.Context, cfg *config.Config) (pipeline.RecordSource, error) {
	switch cfg.DataSource {
	case config.SourceMongo:
		src, err := infraMongo.NewPurchaseSource(ctx, cfg.MongoURI, cfg.MongoDatabase, Collections(cfg))
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.SourceBigQuery:
		repo, err := infraBQ.NewBigQueryPurchaseRepository(ctx, cfg.BQProject, cfg.BQDataset, cfg.BQTable)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("Open: unknown data source %q", cfg.DataSource)
	}
}

// Collections maps the configured collection names.
func Collections(cfg *config.Config) infraMongo.Collections {
	return infraMongo.Collections{
		Requests: cfg.RequestsCollection,
		Plans:    cfg.PlansCollection,
		Users:    cfg.UsersCollection,
		Clients:  cfg.ClientsCollection,
	}
}
