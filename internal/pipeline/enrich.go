package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/sales-dashboard/internal/domain"
)

// Layouts accepted for dates stored as text. Layouts without a zone are read
// in the source location.
var textDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Enricher narrows fetched records to the working columns and moves their
// dates from the source to the target time zone.
type Enricher struct {
	Source *time.Location
	Target *time.Location
}

// NewEnricher returns an Enricher; nil locations default to UTC.
func NewEnricher(source, target *time.Location) *Enricher {
	if source == nil {
		source = time.UTC
	}
	if target == nil {
		target = time.UTC
	}
	return &Enricher{Source: source, Target: target}
}

// Enrich converts records to the working table. Month and Year are taken from
// the converted date. Any unparseable date aborts the whole conversion with a
// *domain.MalformedDateError; no rows are skipped.
func (e *Enricher) Enrich(records []domain.PurchaseRecord) (domain.Table, error) {
	table := make(domain.Table, 0, len(records))
	for i, rec := range records {
		at, err := e.ParseDate(rec.Date)
		if err != nil {
			return nil, &domain.MalformedDateError{Index: i, Value: rec.Date.String(), Err: err}
		}
		local := at.In(e.Target)
		table = append(table, domain.EnrichedRow{
			Date:       local,
			ItemName:   rec.ItemName,
			ItemPrice:  rec.ItemPrice,
			ClientName: rec.ClientName,
			Month:      int(local.Month()),
			Year:       local.Year(),
		})
	}
	return table, nil
}

// ParseDate returns the instant a stored date denotes. Native datetimes carry
// no zone of their own: their wall clock is read in the source location.
func (e *Enricher) ParseDate(d domain.StoredDate) (time.Time, error) {
	if d.IsNative() {
		u := d.At.UTC()
		return time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), u.Minute(), u.Second(), u.Nanosecond(), e.Source), nil
	}

	text := strings.TrimSpace(d.Text)
	if text == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range textDateLayouts {
		if t, err := time.ParseInLocation(layout, text, e.Source); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("no known layout matches")
}
