// Package dashboard renders the sales dashboard for one selector state.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/sales-dashboard/internal/charts"
	"github.com/dvloznov/sales-dashboard/internal/domain"
	"github.com/dvloznov/sales-dashboard/internal/logger"
	"github.com/dvloznov/sales-dashboard/internal/pipeline"
	"github.com/dvloznov/sales-dashboard/internal/selection"
)

// View is everything the page shows for one render.
type View struct {
	State     domain.State       `json:"state"`
	Selection domain.Selection   `json:"selection"`
	Controls  selection.Controls `json:"controls"`
	// Heading is set once client and year are both chosen.
	Heading string     `json:"heading,omitempty"`
	Charts  charts.Set `json:"charts"`
}

// Options configures a Service.
type Options struct {
	Source         pipeline.RecordSource
	SourceTZ       *time.Location
	TargetTZ       *time.Location
	TopN           int
	CurrencyPrefix string
	YearsPerClient bool
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Service runs full renders. Every Render re-reads the source.
type Service struct {
	render *pipeline.Pipeline
	target *time.Location
	clock  func() time.Time
}

// NewService wires the render pipeline from opts.
func NewService(opts Options) *Service {
	enricher := pipeline.NewEnricher(opts.SourceTZ, opts.TargetTZ)
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		render: pipeline.NewRenderPipeline(
			opts.Source,
			enricher,
			selection.Resolver{YearsPerClient: opts.YearsPerClient},
			charts.NewBuilder(opts.TopN, opts.CurrencyPrefix),
		),
		target: enricher.Target,
		clock:  clock,
	}
}

// Render fetches, enriches, resolves req and builds the charts. Errors are
// the fetch and enrich errors of the domain taxonomy, wrapped.
func (s *Service) Render(ctx context.Context, req selection.Request) (*View, error) {
	log := logger.FromContext(ctx)
	started := time.Now()

	state := &pipeline.State{
		Request: req,
		Now:     s.clock().In(s.target),
	}
	if err := s.render.Execute(ctx, state); err != nil {
		log.Error().Err(err).Str("client", req.Client).Msg("Dashboard render failed")
		return nil, fmt.Errorf("Render: %w", err)
	}

	sel := state.Resolved.Selection
	view := &View{
		State:     sel.State(),
		Selection: sel,
		Controls:  state.Resolved.Controls,
		Heading:   Heading(sel),
		Charts:    state.Charts,
	}

	log.Info().
		Str("state", string(view.State)).
		Int("rows", len(state.Table)).
		Int("filtered_rows", len(state.Resolved.Filtered)).
		Dur("duration", time.Since(started)).
		Msg("Dashboard rendered")
	return view, nil
}

// Heading is the title of the drill-down section, or "" before client and
// year are chosen.
func Heading(sel domain.Selection) string {
	if sel.Client == "" || sel.Year == 0 {
		return ""
	}
	return fmt.Sprintf("Course Analysis of %s for Year %d", sel.Client, sel.Year)
}
