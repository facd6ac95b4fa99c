package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/sales-dashboard/internal/domain"
	"github.com/shopspring/decimal"
)

// PurchaseRow is one row of the flattened purchases table, the warehouse copy
// of the Mongo purchase join.
type PurchaseRow struct {
	Date       bigquery.NullTimestamp `bigquery:"date"`        // NULLABLE TIMESTAMP
	ItemName   bigquery.NullString    `bigquery:"item_name"`   // NULLABLE
	ItemPrice  *big.Rat               `bigquery:"item_price"`  // NULLABLE NUMERIC
	UserName   bigquery.NullString    `bigquery:"user_name"`   // NULLABLE
	UserEmail  bigquery.NullString    `bigquery:"user_email"`  // NULLABLE
	ClientName bigquery.NullString    `bigquery:"client_name"` // NULLABLE
}

// Record converts the row to a domain record, applying the same coercions as
// the Mongo source: NULL text → domain.MissingValue, NULL price → 0, NULL date
// left empty so the enrich stage rejects it.
func (r *PurchaseRow) Record() domain.PurchaseRecord {
	rec := domain.PurchaseRecord{
		ItemName:   nullString(r.ItemName),
		ItemPrice:  decimal.Zero,
		UserName:   nullString(r.UserName),
		UserEmail:  nullString(r.UserEmail),
		ClientName: nullString(r.ClientName),
	}
	if r.Date.Valid {
		rec.Date = domain.NativeDate(r.Date.Timestamp.UTC())
	}
	if r.ItemPrice != nil {
		rec.ItemPrice = decimal.RequireFromString(r.ItemPrice.FloatString(9))
	}
	return rec
}

func nullString(s bigquery.NullString) string {
	if !s.Valid {
		return domain.MissingValue
	}
	return s.StringVal
}

// NewPurchaseRow is the inverse of Record. at is the purchase instant;
// domain.MissingValue text becomes NULL.
func NewPurchaseRow(rec domain.PurchaseRecord, at time.Time) *PurchaseRow {
	return &PurchaseRow{
		Date:       bigquery.NullTimestamp{Timestamp: at.UTC(), Valid: true},
		ItemName:   toNullString(rec.ItemName),
		ItemPrice:  rec.ItemPrice.Rat(),
		UserName:   toNullString(rec.UserName),
		UserEmail:  toNullString(rec.UserEmail),
		ClientName: toNullString(rec.ClientName),
	}
}

func toNullString(s string) bigquery.NullString {
	if s == domain.MissingValue {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: s, Valid: true}
}
