package charts

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoData is returned by RenderPNG for a chart without any points.
var ErrNoData = errors.New("chart has no data")

// Default image size when the caller does not provide one.
const (
	DefaultWidth  = 1200
	DefaultHeight = 500
)

// RenderPNG draws spec as a PNG image of the given size.
func RenderPNG(spec *Spec, w io.Writer, width, height int) error {
	if spec == nil {
		return fmt.Errorf("RenderPNG: nil spec")
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	if !hasPoints(spec) {
		return ErrNoData
	}

	switch spec.Type {
	case TypeBar:
		return renderBar(spec, w, width, height)
	case TypeLine:
		return renderLine(spec, w, width, height)
	default:
		return fmt.Errorf("RenderPNG: unsupported chart type %q", spec.Type)
	}
}

func hasPoints(spec *Spec) bool {
	for _, s := range spec.Series {
		if len(s.Points) > 0 {
			return true
		}
	}
	return false
}

func renderLine(spec *Spec, w io.Writer, width, height int) error {
	series := make([]chart.Series, 0, len(spec.Series))
	minY, maxY := 0.0, 0.0
	for _, s := range spec.Series {
		xs := make([]float64, 0, len(s.Points))
		ys := make([]float64, 0, len(s.Points))
		for _, p := range s.Points {
			x, err := strconv.ParseFloat(p.X, 64)
			if err != nil {
				return fmt.Errorf("RenderPNG: series %q: x value %q: %w", s.Name, p.X, err)
			}
			xs = append(xs, x)
			ys = append(ys, p.Y)
			if p.Y < minY {
				minY = p.Y
			}
			if p.Y > maxY {
				maxY = p.Y
			}
		}
		// go-chart cannot draw a zero-width range; widen single points.
		if len(xs) == 1 {
			xs = append(xs, xs[0]+0.001)
			ys = append(ys, ys[0])
		}

		name := s.Name
		if s.Facet != "" {
			name = fmt.Sprintf("%s (%s %s)", s.Name, spec.FacetBy, s.Facet)
		}
		style := chart.Style{StrokeWidth: 2, DotWidth: 3}
		if s.Color != "" {
			col := drawing.ColorFromHex(strings.TrimPrefix(s.Color, "#"))
			style.StrokeColor = col
			style.DotColor = col
		}
		series = append(series, chart.ContinuousSeries{Name: name, XValues: xs, YValues: ys, Style: style})
	}

	// A flat line has a zero-height range, which go-chart rejects.
	if maxY == minY {
		maxY = minY + 1
	}
	xAxis := chart.XAxis{Name: spec.XAxis.Title}
	if t := ticks(spec.XAxis); len(t) > 0 {
		xAxis.Ticks = t
		xAxis.Range = &chart.ContinuousRange{Min: t[0].Value, Max: t[len(t)-1].Value}
	}

	ch := chart.Chart{
		Title:      spec.Title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		XAxis:      xAxis,
		YAxis: chart.YAxis{
			Name:           spec.YAxis.Title,
			Range:          &chart.ContinuousRange{Min: minY, Max: maxY * 1.1},
			ValueFormatter: prefixFormatter(spec.YAxis.TickPrefix),
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("RenderPNG: rendering line chart: %w", err)
	}
	return nil
}

func renderBar(spec *Spec, w io.Writer, width, height int) error {
	var points []Point
	for _, s := range spec.Series {
		points = append(points, s.Points...)
	}

	maxY := 0.0
	for _, p := range points {
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	rangeMax := maxY * 1.1
	if rangeMax <= 0 {
		rangeMax = 1
	}

	bars := make([]chart.Value, 0, len(points))
	for _, p := range points {
		label := p.X
		if p.Text != "" {
			label = fmt.Sprintf("%s (%s)", p.X, p.Text)
		}
		col := magnitudeColor(p.Y, maxY)
		bars = append(bars, chart.Value{
			Label: label,
			Value: p.Y,
			Style: chart.Style{FillColor: col, StrokeColor: col},
		})
	}

	barWidth := (width - 100) / (2 * len(bars))
	if barWidth > 80 {
		barWidth = 80
	}
	if barWidth < 4 {
		barWidth = 4
	}

	ch := chart.BarChart{
		Title:      spec.Title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		BarWidth:   barWidth,
		YAxis: chart.YAxis{
			Name:           spec.YAxis.Title,
			Range:          &chart.ContinuousRange{Min: 0, Max: rangeMax},
			ValueFormatter: prefixFormatter(spec.YAxis.TickPrefix),
		},
		Bars: bars,
	}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("RenderPNG: rendering bar chart: %w", err)
	}
	return nil
}

func ticks(axis Axis) []chart.Tick {
	if len(axis.TickValues) == 0 || len(axis.TickValues) != len(axis.TickText) {
		return nil
	}
	out := make([]chart.Tick, 0, len(axis.TickValues))
	for i, v := range axis.TickValues {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil
		}
		out = append(out, chart.Tick{Value: f, Label: axis.TickText[i]})
	}
	return out
}

func prefixFormatter(prefix string) chart.ValueFormatter {
	return func(v interface{}) string {
		if f, ok := v.(float64); ok {
			return prefix + strconv.FormatFloat(f, 'f', -1, 64)
		}
		return prefix + fmt.Sprint(v)
	}
}

// magnitudeColor shades from light to dark blue as value approaches max.
func magnitudeColor(value, max float64) drawing.Color {
	ratio := 1.0
	if max > 0 {
		ratio = value / max
	}
	light := drawing.Color{R: 199, G: 210, B: 254, A: 255}
	dark := drawing.Color{R: 49, G: 46, B: 129, A: 255}
	mix := func(a, b uint8) uint8 {
		return uint8(float64(a) + (float64(b)-float64(a))*ratio)
	}
	return drawing.Color{R: mix(light.R, dark.R), G: mix(light.G, dark.G), B: mix(light.B, dark.B), A: 255}
}
