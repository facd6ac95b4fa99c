package bigquery

import (
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	bigquerylib "cloud.google.com/go/bigquery"
	"github.com/dvloznov/sales-dashboard/internal/domain"
	"github.com/shopspring/decimal"
	"google.golang.org/api/googleapi"
)

func TestPurchaseRow_Record(t *testing.T) {
	ts := time.Date(2024, 2, 29, 18, 45, 0, 0, time.UTC)
	row := &PurchaseRow{
		Date:       bigquerylib.NullTimestamp{Timestamp: ts, Valid: true},
		ItemName:   bigquerylib.NullString{StringVal: "Zumba", Valid: true},
		ItemPrice:  big.NewRat(2599, 2),
		UserName:   bigquerylib.NullString{StringVal: "Ravi", Valid: true},
		UserEmail:  bigquerylib.NullString{StringVal: "ravi@example.com", Valid: true},
		ClientName: bigquerylib.NullString{StringVal: "Globex", Valid: true},
	}

	rec := row.Record()

	if !rec.Date.At.Equal(ts) {
		t.Errorf("Date = %v, want %v", rec.Date.At, ts)
	}
	if rec.ItemName != "Zumba" || rec.ClientName != "Globex" || rec.UserName != "Ravi" || rec.UserEmail != "ravi@example.com" {
		t.Errorf("unexpected strings: %+v", rec)
	}
	if !rec.ItemPrice.Equal(decimal.RequireFromString("1299.5")) {
		t.Errorf("ItemPrice = %s, want 1299.5", rec.ItemPrice)
	}
}

func TestPurchaseRow_RecordNulls(t *testing.T) {
	rec := (&PurchaseRow{}).Record()

	if rec.Date.IsNative() || rec.Date.Text != "" {
		t.Errorf("Date = %+v, want empty", rec.Date)
	}
	if rec.ClientName != domain.MissingValue || rec.ItemName != domain.MissingValue {
		t.Errorf("expected placeholders, got %+v", rec)
	}
	if !rec.ItemPrice.IsZero() {
		t.Errorf("ItemPrice = %s, want 0", rec.ItemPrice)
	}
}

func TestClassify(t *testing.T) {
	apiErr := fmt.Errorf("read: %w", &googleapi.Error{Code: 404, Message: "Not found: Table"})
	if err := classify("op", apiErr); !errors.Is(err, domain.ErrQuery) {
		t.Errorf("API error classified as %v, want query error", err)
	}

	rowErr := bigquerylib.PutMultiError{{InsertID: "1", RowIndex: 0, Errors: bigquerylib.MultiError{errors.New("no such field: price")}}}
	if err := classify("op", fmt.Errorf("insert: %w", rowErr)); !errors.Is(err, domain.ErrQuery) {
		t.Errorf("row insertion error classified as %v, want query error", err)
	}

	netErr := errors.New("dial tcp: connection refused")
	if err := classify("op", netErr); !errors.Is(err, domain.ErrConnection) {
		t.Errorf("transport error classified as %v, want connection error", err)
	}
}

func TestNewPurchaseRow(t *testing.T) {
	at := time.Date(2023, 3, 5, 10, 0, 0, 0, time.FixedZone("IST", 5*3600+1800))
	rec := domain.PurchaseRecord{
		ItemName:   "Yoga",
		ItemPrice:  decimal.RequireFromString("1299.5"),
		UserName:   domain.MissingValue,
		UserEmail:  "a@example.com",
		ClientName: "Acme",
	}

	row := NewPurchaseRow(rec, at)

	if !row.Date.Valid || row.Date.Timestamp.Location() != time.UTC || !row.Date.Timestamp.Equal(at) {
		t.Errorf("Date = %+v, want %v in UTC", row.Date, at)
	}
	if row.UserName.Valid {
		t.Errorf("UserName = %+v, want NULL", row.UserName)
	}
	if row.ItemPrice.Cmp(big.NewRat(2599, 2)) != 0 {
		t.Errorf("ItemPrice = %s, want 2599/2", row.ItemPrice)
	}

	back := row.Record()
	if back.UserName != domain.MissingValue || back.ClientName != "Acme" || !back.ItemPrice.Equal(rec.ItemPrice) {
		t.Errorf("round trip = %+v", back)
	}
}
