package mongo

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/sales-dashboard/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// purchaseDoc is one projected document. Fields stay raw so that loosely
// typed values can be coerced in one place.
type purchaseDoc struct {
	Date       bson.RawValue `bson:"date"`
	ItemName   bson.RawValue `bson:"itemName"`
	ItemPrice  bson.RawValue `bson:"itemPrice"`
	UserName   bson.RawValue `bson:"userName"`
	UserEmail  bson.RawValue `bson:"userEmail"`
	ClientName bson.RawValue `bson:"clientName"`
}

func (d purchaseDoc) record() (domain.PurchaseRecord, error) {
	price, err := decimalValue(d.ItemPrice)
	if err != nil {
		return domain.PurchaseRecord{}, fmt.Errorf("itemPrice: %w", err)
	}
	return domain.PurchaseRecord{
		Date:       storedDate(d.Date),
		ItemName:   stringValue(d.ItemName),
		ItemPrice:  price,
		UserName:   stringValue(d.UserName),
		UserEmail:  stringValue(d.UserEmail),
		ClientName: stringValue(d.ClientName),
	}, nil
}

func isMissing(v bson.RawValue) bool {
	return v.Type == 0 || v.Type == bsontype.Null || v.Type == bsontype.Undefined
}

// stringValue casts any value to text; missing values become domain.MissingValue.
func stringValue(v bson.RawValue) string {
	if isMissing(v) {
		return domain.MissingValue
	}
	switch v.Type {
	case bsontype.String:
		return v.StringValue()
	case bsontype.Int32:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case bsontype.Int64:
		return strconv.FormatInt(v.Int64(), 10)
	case bsontype.Double:
		return strconv.FormatFloat(v.Double(), 'g', -1, 64)
	case bsontype.Decimal128:
		return v.Decimal128().String()
	case bsontype.Boolean:
		if v.Boolean() {
			return "True"
		}
		return "False"
	case bsontype.ObjectID:
		return v.ObjectID().Hex()
	default:
		return v.String()
	}
}

// decimalValue reads a price. Missing prices count as zero.
func decimalValue(v bson.RawValue) (decimal.Decimal, error) {
	if isMissing(v) {
		return decimal.Zero, nil
	}
	switch v.Type {
	case bsontype.Int32:
		return decimal.NewFromInt32(v.Int32()), nil
	case bsontype.Int64:
		return decimal.NewFromInt(v.Int64()), nil
	case bsontype.Double:
		return decimal.NewFromFloat(v.Double()), nil
	case bsontype.Decimal128:
		return decimal.NewFromString(v.Decimal128().String())
	case bsontype.String:
		return decimal.NewFromString(strings.TrimSpace(v.StringValue()))
	default:
		return decimal.Zero, fmt.Errorf("unsupported type %s", v.Type)
	}
}

// storedDate keeps native datetimes as instants and everything else as text
// for the enrich stage to parse (or reject).
func storedDate(v bson.RawValue) domain.StoredDate {
	switch {
	case isMissing(v):
		return domain.StoredDate{}
	case v.Type == bsontype.DateTime:
		return domain.NativeDate(time.UnixMilli(v.DateTime()).UTC())
	case v.Type == bsontype.Timestamp:
		secs, _ := v.Timestamp()
		return domain.NativeDate(time.Unix(int64(secs), 0).UTC())
	case v.Type == bsontype.String:
		return domain.StoredDate{Text: v.StringValue()}
	default:
		return domain.StoredDate{Text: v.String()}
	}
}
