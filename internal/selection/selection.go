package selection

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/sales-dashboard/internal/domain"
)

// Selector labels as shown in the sidebar.
const (
	ClientLabel = "Select Client:"
	YearLabel   = "Select Year:"
	CourseLabel = "Select Course:"
)

// Request is what the UI sends: raw selector values. A nil Year means the
// user has not touched the year selector yet, so the default applies; a
// pointer to 0 is an explicit "no year".
type Request struct {
	Client string
	Year   *int
	Course string
}

// ParseYear turns selector text into a Request.Year value. Empty text is an
// explicit "no year".
func ParseYear(text string) (*int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		zero := 0
		return &zero, nil
	}
	y, err := strconv.Atoi(text)
	if err != nil || y <= 0 {
		return nil, fmt.Errorf("ParseYear: invalid year %q", text)
	}
	return &y, nil
}

// Selector is one cascading select widget. Options always start with the
// empty "no selection" entry when the selector is offered.
type Selector struct {
	Label    string   `json:"label"`
	Offered  bool     `json:"offered"`
	Options  []string `json:"options"`
	Selected string   `json:"selected"`
}

// Controls are the three selectors in cascade order.
type Controls struct {
	Client Selector `json:"client"`
	Year   Selector `json:"year"`
	Course Selector `json:"course"`
}

// Result is the outcome of resolving a Request against a table.
type Result struct {
	Controls  Controls
	Selection domain.Selection
	// Filtered holds the client+year rows; nil unless both levels are set.
	Filtered domain.Table
}

// Resolver applies the cascade rules.
type Resolver struct {
	// YearsPerClient restricts year options to the selected client's rows.
	// The default is the global year list.
	YearsPerClient bool
}

// Resolve computes selector options and the valid selection for req. Levels
// are resolved top-down and a level that is unset or invalid clears every
// level below it. now supplies the current year for the year default.
func (r Resolver) Resolve(table domain.Table, req Request, now time.Time) Result {
	var res Result

	clients := ClientOptions(table)
	res.Controls.Client = offered(ClientLabel, clients)
	res.Controls.Year = Selector{Label: YearLabel, Options: []string{}}
	res.Controls.Course = Selector{Label: CourseLabel, Options: []string{}}

	if !contains(clients, req.Client) {
		return res
	}
	res.Selection.Client = req.Client
	res.Controls.Client.Selected = req.Client

	yearSource := table
	if r.YearsPerClient {
		yearSource = table.Where(func(row domain.EnrichedRow) bool { return row.ClientName == req.Client })
	}
	years := YearOptions(yearSource)
	yearTexts := make([]string, len(years))
	for i, y := range years {
		yearTexts[i] = strconv.Itoa(y)
	}
	res.Controls.Year = offered(YearLabel, yearTexts)

	year := 0
	switch {
	case req.Year == nil:
		if containsInt(years, now.Year()) {
			year = now.Year()
		}
	case containsInt(years, *req.Year):
		year = *req.Year
	}
	if year == 0 {
		return res
	}
	res.Selection.Year = year
	res.Controls.Year.Selected = strconv.Itoa(year)

	res.Filtered = Filter(table, req.Client, year)
	courses := CourseOptions(res.Filtered)
	res.Controls.Course = offered(CourseLabel, courses)

	if contains(courses, req.Course) {
		res.Selection.Course = req.Course
		res.Controls.Course.Selected = req.Course
	}
	return res
}

// Filter returns the rows of table for client in year.
func Filter(table domain.Table, client string, year int) domain.Table {
	return table.Where(func(row domain.EnrichedRow) bool {
		return row.ClientName == client && row.Year == year
	})
}

// ClientOptions returns the sorted distinct client names.
func ClientOptions(table domain.Table) []string {
	return distinctSorted(table, func(row domain.EnrichedRow) string { return row.ClientName })
}

// CourseOptions returns the sorted distinct item names.
func CourseOptions(table domain.Table) []string {
	return distinctSorted(table, func(row domain.EnrichedRow) string { return row.ItemName })
}

// YearOptions returns the sorted distinct years.
func YearOptions(table domain.Table) []int {
	seen := make(map[int]bool)
	var years []int
	for _, row := range table {
		if !seen[row.Year] {
			seen[row.Year] = true
			years = append(years, row.Year)
		}
	}
	sort.Ints(years)
	return years
}

func distinctSorted(table domain.Table, key func(domain.EnrichedRow) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, row := range table {
		k := key(row)
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func offered(label string, values []string) Selector {
	return Selector{
		Label:   label,
		Offered: true,
		Options: append([]string{""}, values...),
	}
}

func contains(values []string, v string) bool {
	if v == "" {
		return false
	}
	i := sort.SearchStrings(values, v)
	return i < len(values) && values[i] == v
}

func containsInt(values []int, v int) bool {
	i := sort.SearchInts(values, v)
	return i < len(values) && values[i] == v
}
