package charts

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/dvloznov/sales-dashboard/internal/domain"
)

// Builder produces chart specs from tables. Every method is a pure function
// of its inputs.
type Builder struct {
	TopN           int
	CurrencyPrefix string
	CurrencyName   string
}

// NewBuilder returns a Builder showing topN items per bar chart.
func NewBuilder(topN int, currencyPrefix string) Builder {
	return Builder{TopN: topN, CurrencyPrefix: currencyPrefix, CurrencyName: "Rupees"}
}

// Build picks the charts for sel: the overall trend until both client and
// year are chosen, then top/bottom items, plus the item trend once a course
// is chosen. filtered is the client+year subset of table.
func (b Builder) Build(table, filtered domain.Table, sel domain.Selection) Set {
	if sel.Client == "" || sel.Year == 0 {
		return Set{OverallTrend: b.OverallTrend(table)}
	}
	set := Set{
		TopItems:    b.TopItems(filtered),
		BottomItems: b.BottomItems(filtered),
	}
	if sel.Course != "" {
		set.ItemTrend = b.ItemTrend(filtered, sel)
	}
	return set
}

// OverallTrend is the landing chart: monthly sales per client, one panel per
// year.
func (b Builder) OverallTrend(table domain.Table) *Spec {
	totals := SalesByYearMonthClient(table)

	spec := &Spec{
		Kind:  KindOverallTrend,
		Type:  TypeLine,
		Title: "Total Monthly Sales by Client for All Years",
		XAxis: Axis{Title: "month"},
		YAxis: Axis{
			Title:      fmt.Sprintf("Total Sales (%s)", b.CurrencyName),
			TickPrefix: b.CurrencyPrefix,
		},
		FacetBy:   "year",
		Facets:    []string{},
		ColorBy:   "clientName",
		FullWidth: true,
		Series:    []Series{},
	}

	index := make(map[string]int)
	for _, t := range totals {
		facet := strconv.Itoa(t.Year)
		if len(spec.Facets) == 0 || spec.Facets[len(spec.Facets)-1] != facet {
			spec.Facets = append(spec.Facets, facet)
		}
		key := facet + "\x00" + t.Client
		i, ok := index[key]
		if !ok {
			i = len(spec.Series)
			index[key] = i
			spec.Series = append(spec.Series, Series{Name: t.Client, Facet: facet, Points: []Point{}})
		}
		spec.Series[i].Points = append(spec.Series[i].Points, Point{
			X: strconv.Itoa(t.Month),
			Y: t.Total.InexactFloat64(),
		})
	}

	// Colors follow client name order so a client keeps its color in every panel.
	clientColor := make(map[string]string)
	for i, name := range ClientNames(totals) {
		clientColor[name] = defaultColors[i%len(defaultColors)]
	}
	for i := range spec.Series {
		spec.Series[i].Color = clientColor[spec.Series[i].Name]
	}
	return spec
}

// TopItems is the bar chart of the TopN most purchased items.
func (b Builder) TopItems(filtered domain.Table) *Spec {
	return b.countChart(KindTopItems, fmt.Sprintf("Top %d Selling Courses", b.TopN), Largest(CountByItem(filtered), b.TopN))
}

// BottomItems is the bar chart of the TopN least purchased items.
func (b Builder) BottomItems(filtered domain.Table) *Spec {
	return b.countChart(KindBottomItems, fmt.Sprintf("Bottom %d Selling Courses", b.TopN), Smallest(CountByItem(filtered), b.TopN))
}

func (b Builder) countChart(kind Kind, title string, counts []ItemCount) *Spec {
	points := make([]Point, 0, len(counts))
	for _, c := range counts {
		n := strconv.Itoa(c.Count)
		points = append(points, Point{X: c.Item, Y: float64(c.Count), Text: n})
	}
	return &Spec{
		Kind:         kind,
		Type:         TypeBar,
		Title:        title,
		XAxis:        Axis{Title: "courseName"},
		YAxis:        Axis{Title: "Count"},
		ColorBy:      "count",
		TextPosition: "inside",
		FullWidth:    true,
		Series:       []Series{{Name: "count", Points: points}},
	}
}

// ItemTrend is the monthly sales line of sel.Course within filtered.
func (b Builder) ItemTrend(filtered domain.Table, sel domain.Selection) *Spec {
	item := filtered.Where(func(r domain.EnrichedRow) bool { return r.ItemName == sel.Course })

	points := []Point{}
	for _, m := range SalesByMonth(item) {
		points = append(points, Point{X: strconv.Itoa(m.Month), Y: m.Total.InexactFloat64()})
	}

	tickValues := make([]string, len(MonthAbbrev))
	for i := range MonthAbbrev {
		tickValues[i] = strconv.Itoa(i + 1)
	}

	return &Spec{
		Kind:  KindItemTrend,
		Type:  TypeLine,
		Title: fmt.Sprintf("Monthly Sales of %s for %s in %d", sel.Course, sel.Client, sel.Year),
		XAxis: Axis{
			Title:      "month",
			TickValues: tickValues,
			TickText:   append([]string(nil), MonthAbbrev...),
		},
		YAxis: Axis{
			Title:      fmt.Sprintf("Sales of %s (%s)", sel.Course, b.CurrencyName),
			TickPrefix: b.CurrencyPrefix,
		},
		FullWidth: true,
		Series: []Series{{
			Name:   sel.Course,
			Color:  defaultColors[0],
			Points: points,
		}},
	}
}

// ClientNames returns the distinct clients of totals in name order.
func ClientNames(totals []MonthlyClientTotal) []string {
	seen := make(map[string]bool)
	var names []string
	for _, t := range totals {
		if !seen[t.Client] {
			seen[t.Client] = true
			names = append(names, t.Client)
		}
	}
	sort.Strings(names)
	return names
}
