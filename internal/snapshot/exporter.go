// Package snapshot exports rendered dashboards to cloud storage.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/dvloznov/sales-dashboard/internal/charts"
	"github.com/dvloznov/sales-dashboard/internal/dashboard"
	"github.com/dvloznov/sales-dashboard/internal/domain"
	"github.com/dvloznov/sales-dashboard/internal/gcs"
	"github.com/dvloznov/sales-dashboard/internal/jobs"
	"github.com/dvloznov/sales-dashboard/internal/logger"
	"github.com/dvloznov/sales-dashboard/internal/selection"
)

// Renderer is the part of dashboard.Service the exporter needs.
type Renderer interface {
	Render(ctx context.Context, req selection.Request) (*dashboard.View, error)
}

// Document is the JSON object written for each snapshot.
type Document struct {
	JobID      string          `json:"job_id"`
	RenderedAt time.Time       `json:"rendered_at"`
	View       *dashboard.View `json:"view"`
}

// Exporter renders a SnapshotJob and writes the view JSON plus one PNG per
// chart under snapshots/<date>/.
type Exporter struct {
	Renderer Renderer
	Storage  gcs.StorageService
	Bucket   string
	Width    int
	Height   int
	// Now defaults to time.Now.
	Now func() time.Time
}

// Handle implements jobs.JobHandler.
func (e *Exporter) Handle(ctx context.Context, job jobs.Job) error {
	snap, ok := job.(*jobs.SnapshotJob)
	if !ok {
		return &jobs.PermanentError{Err: fmt.Errorf("unexpected job type: %T", job)}
	}

	objects, err := e.Export(ctx, snap)
	if err != nil {
		return err
	}
	snap.Objects = objects
	return nil
}

// Export renders the job's selection and uploads the results. It returns the
// URIs written. Malformed data fails permanently; storage and connection
// failures may be retried.
func (e *Exporter) Export(ctx context.Context, job *jobs.SnapshotJob) ([]string, error) {
	if e.Bucket == "" {
		return nil, &jobs.PermanentError{Err: errors.New("Export: no bucket configured")}
	}
	log := logger.FromContext(ctx).With().Str("job_id", job.JobID).Logger()

	view, err := e.Renderer.Render(ctx, selection.Request{Client: job.Client, Year: job.Year, Course: job.Course})
	if err != nil {
		if errors.Is(err, domain.ErrMalformedDate) || errors.Is(err, domain.ErrQuery) {
			return nil, &jobs.PermanentError{Err: fmt.Errorf("Export: %w", err)}
		}
		return nil, fmt.Errorf("Export: %w", err)
	}

	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	renderedAt := now().UTC()
	dir := path.Join("snapshots", renderedAt.Format("2006-01-02"))

	doc, err := json.MarshalIndent(Document{JobID: job.JobID, RenderedAt: renderedAt, View: view}, "", "  ")
	if err != nil {
		return nil, &jobs.PermanentError{Err: fmt.Errorf("Export: encoding view: %w", err)}
	}

	var uris []string
	uri, err := e.Storage.WriteObject(ctx, e.Bucket, path.Join(dir, job.JobID+".json"), "application/json", bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("Export: writing view: %w", err)
	}
	uris = append(uris, uri)

	for _, kind := range charts.Kinds {
		spec := view.Charts.Get(kind)
		if spec == nil {
			continue
		}
		var buf bytes.Buffer
		if err := charts.RenderPNG(spec, &buf, e.Width, e.Height); err != nil {
			if errors.Is(err, charts.ErrNoData) {
				log.Debug().Str("chart", string(kind)).Msg("Skipping empty chart")
				continue
			}
			return nil, &jobs.PermanentError{Err: fmt.Errorf("Export: drawing %s: %w", kind, err)}
		}
		object := path.Join(dir, job.JobID, string(kind)+".png")
		uri, err := e.Storage.WriteObject(ctx, e.Bucket, object, "image/png", &buf)
		if err != nil {
			return nil, fmt.Errorf("Export: writing %s: %w", kind, err)
		}
		uris = append(uris, uri)
	}

	log.Info().Int("objects", len(uris)).Str("state", string(view.State)).Msg("Snapshot exported")
	return uris, nil
}
