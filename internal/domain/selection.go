package domain

import "strconv"

// Selection is the resolved state of the three cascading selectors.
// Year is 0 when no year is selected.
type Selection struct {
	Client string `json:"client"`
	Year   int    `json:"year,omitempty"`
	Course string `json:"course"`
}

// YearLabel returns the year as selector text, or "" when unset.
func (s Selection) YearLabel() string {
	if s.Year == 0 {
		return ""
	}
	return strconv.Itoa(s.Year)
}

// State names the step of the drill-down the selection has reached.
type State string

const (
	StateInitial       State = "initial"
	StateClientChosen  State = "client_chosen"
	StateClientAndYear State = "client_and_year_chosen"
	StateFullDrilldown State = "full_drilldown"
)

// State derives the view state from which levels are set.
func (s Selection) State() State {
	switch {
	case s.Client == "":
		return StateInitial
	case s.Year == 0:
		return StateClientChosen
	case s.Course == "":
		return StateClientAndYear
	default:
		return StateFullDrilldown
	}
}
