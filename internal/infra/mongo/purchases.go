package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dvloznov/sales-dashboard/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"
)

// Collections names the four collections the purchase join reads.
type Collections struct {
	Requests string
	Plans    string
	Users    string
	Clients  string
}

// DefaultCollections are the production collection names.
var DefaultCollections = Collections{
	Requests: "serviceplanrequests",
	Plans:    "serviceplans",
	Users:    "users",
	Clients:  "clients",
}

func (c Collections) names() []string {
	return []string{c.Requests, c.Plans, c.Users, c.Clients}
}

// PurchaseSource reads joined purchase records from MongoDB. It holds one
// client for its lifetime; every FetchPurchases call is a fresh query.
type PurchaseSource struct {
	client *mongo.Client
	db     *mongo.Database
	cols   Collections
}

// NewPurchaseSource builds a client for uri without dialing it. Only an
// unusable URI fails here; an unreachable server surfaces as
// *domain.ConnectionError from each FetchPurchases call.
func NewPurchaseSource(ctx context.Context, uri, database string, cols Collections) (*PurchaseSource, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("NewPurchaseSource: configuring client: %w", err)
	}
	return &PurchaseSource{
		client: client,
		db:     client.Database(database),
		cols:   cols,
	}, nil
}

// Close disconnects the client.
func (s *PurchaseSource) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// FetchPurchases delegates to FetchPurchasesWithDatabase with the shared client.
func (s *PurchaseSource) FetchPurchases(ctx context.Context) ([]domain.PurchaseRecord, error) {
	return FetchPurchasesWithDatabase(ctx, s.db, s.cols)
}

// FetchPurchasesWithDatabase runs the purchase join against db in one
// aggregate. Mongo answers a join over a missing collection with no rows, so
// only an empty result pays for a second call that reports the missing
// collection as *domain.QueryError.
func FetchPurchasesWithDatabase(ctx context.Context, db *mongo.Database, cols Collections) ([]domain.PurchaseRecord, error) {
	cur, err := db.Collection(cols.Requests).Aggregate(ctx, PurchasePipeline(cols))
	if err != nil {
		return nil, classify("FetchPurchases: aggregate", err)
	}
	defer cur.Close(ctx)

	var records []domain.PurchaseRecord
	for cur.Next(ctx) {
		var doc purchaseDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, &domain.QueryError{Op: "FetchPurchases: decoding", Err: err}
		}
		rec, err := doc.record()
		if err != nil {
			return nil, &domain.QueryError{Op: fmt.Sprintf("FetchPurchases: record %d", len(records)), Err: err}
		}
		records = append(records, rec)
	}
	if err := cur.Err(); err != nil {
		return nil, classify("FetchPurchases: iterating", err)
	}

	if len(records) == 0 {
		if err := ensureCollections(ctx, db, cols); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func ensureCollections(ctx context.Context, db *mongo.Database, cols Collections) error {
	want := cols.names()
	filter := bson.D{{Key: "name", Value: bson.D{{Key: "$in", Value: want}}}}
	have, err := db.ListCollectionNames(ctx, filter)
	if err != nil {
		return classify("FetchPurchases: listing collections", err)
	}

	present := make(map[string]bool, len(have))
	for _, name := range have {
		present[name] = true
	}
	var missing []string
	for _, name := range want {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &domain.QueryError{
			Op:  "FetchPurchases: checking collections",
			Err: fmt.Errorf("missing collections %v in database %q", missing, db.Name()),
		}
	}
	return nil
}

// PurchasePipeline is the join: requests → plan (left), → user (unwound, so
// requests without a user drop out), → user's client (left), then projection
// of the six record fields.
func PurchasePipeline(cols Collections) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: cols.Plans},
			{Key: "localField", Value: "servicePlan"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "servicePlansData"},
		}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: cols.Users},
			{Key: "localField", Value: "user"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "user_data"},
		}}},
		{{Key: "$unwind", Value: "$user_data"}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: cols.Clients},
			{Key: "localField", Value: "user_data.client"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "client_name"},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "date", Value: "$createdAt"},
			{Key: "itemName", Value: bson.D{{Key: "$arrayElemAt", Value: bson.A{"$servicePlansData.name", 0}}}},
			{Key: "itemPrice", Value: bson.D{{Key: "$arrayElemAt", Value: bson.A{"$servicePlansData.basePrice", 0}}}},
			{Key: "userName", Value: "$user_data.name"},
			{Key: "userEmail", Value: "$user_data.email"},
			{Key: "clientName", Value: bson.D{{Key: "$arrayElemAt", Value: bson.A{"$client_name.name", 0}}}},
		}}},
	}
}

// classify maps driver errors onto the render-pass taxonomy.
func classify(op string, err error) error {
	var selection topology.ServerSelectionError
	var conn topology.ConnectionError
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) ||
		errors.As(err, &selection) || errors.As(err, &conn) ||
		errors.Is(err, mongo.ErrClientDisconnected) || errors.Is(err, context.DeadlineExceeded) {
		return &domain.ConnectionError{Op: op, Err: err}
	}
	return &domain.QueryError{Op: op, Err: err}
}
