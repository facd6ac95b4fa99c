package charts

// Kind identifies one of the four dashboard charts.
type Kind string

const (
	KindOverallTrend Kind = "overall_trend"
	KindTopItems     Kind = "top_items"
	KindBottomItems  Kind = "bottom_items"
	KindItemTrend    Kind = "item_trend"
)

// Kinds lists every chart kind in display order.
var Kinds = []Kind{KindOverallTrend, KindTopItems, KindBottomItems, KindItemTrend}

// Chart types understood by the display surface.
const (
	TypeLine = "line"
	TypeBar  = "bar"
)

// Axis describes one axis. TickValues/TickText relabel ticks when set.
type Axis struct {
	Title      string   `json:"title"`
	TickPrefix string   `json:"tickPrefix,omitempty"`
	TickValues []string `json:"tickValues,omitempty"`
	TickText   []string `json:"tickText,omitempty"`
}

// Point is one x/y value. Text, when set, is drawn on the mark.
type Point struct {
	X    string  `json:"x"`
	Y    float64 `json:"y"`
	Text string  `json:"text,omitempty"`
}

// Series is one line or bar group. Facet names the panel it belongs to when
// the chart is faceted.
type Series struct {
	Name   string  `json:"name"`
	Facet  string  `json:"facet,omitempty"`
	Color  string  `json:"color,omitempty"`
	Points []Point `json:"points"`
}

// Spec is a complete, renderer-agnostic chart description.
type Spec struct {
	Kind         Kind     `json:"kind"`
	Type         string   `json:"type"`
	Title        string   `json:"title"`
	XAxis        Axis     `json:"xAxis"`
	YAxis        Axis     `json:"yAxis"`
	FacetBy      string   `json:"facetBy,omitempty"`
	Facets       []string `json:"facets,omitempty"`
	ColorBy      string   `json:"colorBy,omitempty"`
	TextPosition string   `json:"textPosition,omitempty"`
	FullWidth    bool     `json:"fullWidth"`
	Series       []Series `json:"series"`
}

// Set holds the charts shown for one selection; charts not shown are nil.
type Set struct {
	OverallTrend *Spec `json:"overallTrend,omitempty"`
	TopItems     *Spec `json:"topItems,omitempty"`
	BottomItems  *Spec `json:"bottomItems,omitempty"`
	ItemTrend    *Spec `json:"itemTrend,omitempty"`
}

// Get returns the chart of the given kind, or nil.
func (s Set) Get(kind Kind) *Spec {
	switch kind {
	case KindOverallTrend:
		return s.OverallTrend
	case KindTopItems:
		return s.TopItems
	case KindBottomItems:
		return s.BottomItems
	case KindItemTrend:
		return s.ItemTrend
	}
	return nil
}

// Default color palette for chart series.
var defaultColors = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#6366F1",
}

// MonthAbbrev are the month tick labels, January first.
var MonthAbbrev = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
