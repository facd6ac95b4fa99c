package charts

import (
	"sort"

	"github.com/dvloznov/sales-dashboard/internal/domain"
	"github.com/shopspring/decimal"
)

// MonthlyClientTotal is the summed price for one (year, month, client).
type MonthlyClientTotal struct {
	Year   int
	Month  int
	Client string
	Total  decimal.Decimal
}

// ItemCount is the number of purchases of one item.
type ItemCount struct {
	Item  string
	Count int
}

// MonthTotal is the summed price for one month.
type MonthTotal struct {
	Month int
	Total decimal.Decimal
}

// SalesByYearMonthClient sums ItemPrice per (year, month, client), ordered by
// year, month, then client.
func SalesByYearMonthClient(table domain.Table) []MonthlyClientTotal {
	type key struct {
		year, month int
		client      string
	}
	sums := make(map[key]decimal.Decimal)
	for _, r := range table {
		k := key{r.Year, r.Month, r.ClientName}
		sums[k] = sums[k].Add(r.ItemPrice)
	}

	out := make([]MonthlyClientTotal, 0, len(sums))
	for k, total := range sums {
		out = append(out, MonthlyClientTotal{Year: k.year, Month: k.month, Client: k.client, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		return a.Client < b.Client
	})
	return out
}

// CountByItem counts rows per item, ordered by item name.
func CountByItem(table domain.Table) []ItemCount {
	counts := make(map[string]int)
	for _, r := range table {
		counts[r.ItemName]++
	}

	out := make([]ItemCount, 0, len(counts))
	for item, n := range counts {
		out = append(out, ItemCount{Item: item, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item < out[j].Item })
	return out
}

// Largest returns at most n counts, highest first. Ties keep item-name order.
func Largest(counts []ItemCount, n int) []ItemCount {
	out := append([]ItemCount(nil), counts...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return limit(out, n)
}

// Smallest returns at most n counts, lowest first. Ties keep item-name order.
func Smallest(counts []ItemCount, n int) []ItemCount {
	out := append([]ItemCount(nil), counts...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count < out[j].Count })
	return limit(out, n)
}

func limit(counts []ItemCount, n int) []ItemCount {
	if n >= 0 && len(counts) > n {
		return counts[:n]
	}
	return counts
}

// SalesByMonth sums ItemPrice per month, ordered by month.
func SalesByMonth(table domain.Table) []MonthTotal {
	sums := make(map[int]decimal.Decimal)
	for _, r := range table {
		sums[r.Month] = sums[r.Month].Add(r.ItemPrice)
	}

	out := make([]MonthTotal, 0, len(sums))
	for m, total := range sums {
		out = append(out, MonthTotal{Month: m, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}
