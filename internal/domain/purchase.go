package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MissingValue is what a missing or null text field becomes at the fetch
// boundary. It matches the string form of a missing value, so client and item
// selectors list it as a regular option instead of dropping the rows.
const MissingValue = "None"

// StoredDate is a purchase date exactly as the store returned it.
// Native selects the meaningful field: At for native datetimes, Text for
// everything else (including values that will not parse).
type StoredDate struct {
	At     time.Time
	Text   string
	Native bool
}

// NativeDate wraps a datetime the store returned as such. Any instant,
// including the zero time, is native.
func NativeDate(t time.Time) StoredDate {
	return StoredDate{At: t, Native: true}
}

// IsNative reports whether the store returned a native datetime.
func (d StoredDate) IsNative() bool {
	return d.Native
}

// String returns the value in a form suitable for error messages.
func (d StoredDate) String() string {
	if d.IsNative() {
		return d.At.UTC().Format(time.RFC3339Nano)
	}
	return d.Text
}

// PurchaseRecord is one joined purchase request as produced by the fetch query.
type PurchaseRecord struct {
	Date       StoredDate
	ItemName   string
	ItemPrice  decimal.Decimal
	UserName   string
	UserEmail  string
	ClientName string
}

// EnrichedRow is the working row of the dashboard: the four columns the charts
// use, with Date converted to the display time zone and Month/Year derived
// from the converted value.
type EnrichedRow struct {
	Date       time.Time       `json:"date"`
	ItemName   string          `json:"item_name"`
	ItemPrice  decimal.Decimal `json:"item_price"`
	ClientName string          `json:"client_name"`
	Month      int             `json:"month"`
	Year       int             `json:"year"`
}

// Table is an ordered set of enriched rows. Order is the store's natural
// return order.
type Table []EnrichedRow

// Where returns the rows matching keep, in order. The receiver is not modified.
func (t Table) Where(keep func(EnrichedRow) bool) Table {
	out := make(Table, 0, len(t))
	for _, r := range t {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
