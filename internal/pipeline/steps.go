package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/sales-dashboard/internal/charts"
	"github.com/dvloznov/sales-dashboard/internal/domain"
	"github.com/dvloznov/sales-dashboard/internal/logger"
	"github.com/dvloznov/sales-dashboard/internal/selection"
)

// Step represents a single stage of a dashboard render.
type Step interface {
	Execute(ctx context.Context, state *State) error
}

// State holds the shared state across all render steps.
type State struct {
	Request selection.Request
	// Now decides the default year. It should already be in the target zone.
	Now time.Time

	Records  []domain.PurchaseRecord
	Table    domain.Table
	Resolved selection.Result
	Charts   charts.Set
}

// Step 1: FetchStep loads every purchase from the source.
type FetchStep struct {
	Source RecordSource
}

func (s *FetchStep) Execute(ctx context.Context, state *State) error {
	records, err := s.Source.FetchPurchases(ctx)
	if err != nil {
		return err
	}
	log := logger.FromContext(ctx)
	log.Debug().Int("records", len(records)).Msg("Fetched purchases")
	state.Records = records
	return nil
}

// Step 2: EnrichStep builds the working table.
type EnrichStep struct {
	Enricher *Enricher
}

func (s *EnrichStep) Execute(ctx context.Context, state *State) error {
	table, err := s.Enricher.Enrich(state.Records)
	if err != nil {
		return err
	}
	state.Table = table
	return nil
}

// Step 3: ResolveStep settles the selectors and the filtered table.
type ResolveStep struct {
	Resolver selection.Resolver
}

func (s *ResolveStep) Execute(ctx context.Context, state *State) error {
	state.Resolved = s.Resolver.Resolve(state.Table, state.Request, state.Now)
	return nil
}

// Step 4: ChartStep builds the charts for the resolved selection.
type ChartStep struct {
	Builder charts.Builder
}

func (s *ChartStep) Execute(ctx context.Context, state *State) error {
	state.Charts = s.Builder.Build(state.Table, state.Resolved.Filtered, state.Resolved.Selection)
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []Step
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially and stops at the first failure.
func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewRenderPipeline creates the standard fetch, enrich, resolve, chart pipeline.
func NewRenderPipeline(source RecordSource, enricher *Enricher, resolver selection.Resolver, builder charts.Builder) *Pipeline {
	return NewPipeline(
		&FetchStep{Source: source},
		&EnrichStep{Enricher: enricher},
		&ResolveStep{Resolver: resolver},
		&ChartStep{Builder: builder},
	)
}
