package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/sales-dashboard/internal/charts"
	"github.com/dvloznov/sales-dashboard/internal/dashboard"
	"github.com/dvloznov/sales-dashboard/internal/domain"
	infraMongo "github.com/dvloznov/sales-dashboard/internal/infra/mongo"
	"github.com/dvloznov/sales-dashboard/internal/jobs"
	"github.com/dvloznov/sales-dashboard/internal/jobs/inmemory"
	"github.com/dvloznov/sales-dashboard/internal/selection"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type MockRenderer struct {
	RenderFunc func(ctx context.Context, req selection.Request) (*dashboard.View, error)
	last       selection.Request
}

func (m *MockRenderer) Render(ctx context.Context, req selection.Request) (*dashboard.View, error) {
	m.last = req
	return m.RenderFunc(ctx, req)
}

type MockPublisher struct {
	PublishSnapshotFunc func(ctx context.Context, job *jobs.SnapshotJob) error
}

func (m *MockPublisher) PublishSnapshot(ctx context.Context, job *jobs.SnapshotJob) error {
	return m.PublishSnapshotFunc(ctx, job)
}

func (m *MockPublisher) Close() error { return nil }

func sampleView(req selection.Request) *dashboard.View {
	table := domain.Table{
		{ItemName: "X", ClientName: "A", Year: 2023, Month: 1, ItemPrice: decimal.NewFromInt(100)},
		{ItemName: "Y", ClientName: "A", Year: 2023, Month: 2, ItemPrice: decimal.NewFromInt(200)},
	}
	sel := domain.Selection{Client: req.Client}
	if req.Year != nil {
		sel.Year = *req.Year
	}
	return &dashboard.View{
		State:     sel.State(),
		Selection: sel,
		Heading:   dashboard.Heading(sel),
		Charts:    charts.NewBuilder(10, "₹").Build(table, table, sel),
	}
}

func newTestRouter(renderer *MockRenderer, publisher jobs.Publisher, store jobs.JobStore) http.Handler {
	return NewRouter(Deps{Renderer: renderer, Publisher: publisher, Store: store, Log: zerolog.Nop()})
}

func okRenderer() *MockRenderer {
	return &MockRenderer{RenderFunc: func(ctx context.Context, req selection.Request) (*dashboard.View, error) {
		return sampleView(req), nil
	}}
}

func TestGetDashboard_ParsesSelection(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantYear   *int
	}{
		{"no year param uses default", "?client=A", http.StatusOK, nil},
		{"empty year clears", "?client=A&year=", http.StatusOK, intPtr(0)},
		{"explicit year", "?client=A&year=2023&course=X", http.StatusOK, intPtr(2023)},
		{"invalid year", "?client=A&year=abc", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			renderer := okRenderer()
			rec := httptest.NewRecorder()
			newTestRouter(renderer, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard"+tt.query, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if (renderer.last.Year == nil) != (tt.wantYear == nil) ||
				(tt.wantYear != nil && *renderer.last.Year != *tt.wantYear) {
				t.Errorf("year = %v, want %v", renderer.last.Year, tt.wantYear)
			}

			var view dashboard.View
			if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if view.Selection.Client != "A" {
				t.Errorf("unexpected view: %+v", view)
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Error("expected X-Request-ID header")
			}
		})
	}
}

func TestGetDashboard_ErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&domain.ConnectionError{Op: "ping", Err: errors.New("refused")}, http.StatusServiceUnavailable},
		{&domain.QueryError{Op: "aggregate", Err: errors.New("bad")}, http.StatusBadGateway},
		{&domain.MalformedDateError{Index: 4, Value: "soon"}, http.StatusUnprocessableEntity},
		{errors.New("unexpected"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(domain.ErrorCode(tt.err), func(t *testing.T) {
			renderer := &MockRenderer{RenderFunc: func(ctx context.Context, req selection.Request) (*dashboard.View, error) {
				return nil, tt.err
			}}
			rec := httptest.NewRecorder()
			newTestRouter(renderer, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if !strings.Contains(rec.Body.String(), `"error"`) {
				t.Errorf("expected error body, got %s", rec.Body.String())
			}
		})
	}
}

func TestGetChartPNG(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"overall trend on landing", "/api/charts/overall_trend.png", http.StatusOK},
		{"top items for client and year", "/api/charts/top_items.png?client=A&year=2023&width=640&height=320", http.StatusOK},
		{"chart not shown", "/api/charts/top_items.png", http.StatusNotFound},
		{"unknown chart", "/api/charts/pie.png", http.StatusNotFound},
		{"item trend needs a course", "/api/charts/item_trend.png?client=A&year=2023", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newTestRouter(okRenderer(), nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK {
				if rec.Header().Get("Content-Type") != "image/png" || !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
					t.Error("expected a PNG body")
				}
			}
		})
	}
}

func TestSnapshotsAndJobs(t *testing.T) {
	store := inmemory.NewStore()
	var published *jobs.SnapshotJob
	publisher := &MockPublisher{PublishSnapshotFunc: func(ctx context.Context, job *jobs.SnapshotJob) error {
		job.JobID = "job-42"
		job.Status = jobs.JobStatusPending
		published = job
		return store.SaveJob(ctx, job)
	}}
	router := newTestRouter(okRenderer(), publisher, store)

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"client":"A","year":2023,"course":"X"}`)
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/snapshots", body))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if published == nil || published.Client != "A" || published.Year == nil || *published.Year != 2023 {
		t.Errorf("unexpected published job %+v", published)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/job-42", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"job_id":"job-42"`) {
		t.Errorf("GET job: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing job status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?client=A", nil))
	var list struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil || list.Count != 1 {
		t.Errorf("list jobs: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/snapshots", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d, want 400", rec.Code)
	}
}

func TestCreateSnapshot_WithRunningQueue(t *testing.T) {
	store := inmemory.NewStore()
	queue := inmemory.NewQueue(10, store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = queue.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		return nil
	})
	defer queue.Close()
	router := newTestRouter(okRenderer(), queue, store)

	var ids []string
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		body := strings.NewReader(`{"client":"A"}`)
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/snapshots", body))
		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		var resp map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp["status"] != string(jobs.JobStatusPending) || resp["job_id"] == "" {
			t.Errorf("response = %v, want a pending job", resp)
		}
		ids = append(ids, resp["job_id"])
	}

	deadline := time.Now().Add(5 * time.Second)
	for _, id := range ids {
		for {
			job, err := store.GetJob(context.Background(), id)
			if err == nil && job.Status == jobs.JobStatusCompleted {
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("job %s did not complete", id)
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestGetDashboard_UnreachableDatabaseIs503PerRequest(t *testing.T) {
	src, err := infraMongo.NewPurchaseSource(context.Background(),
		"mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=200&connectTimeoutMS=200",
		"production", infraMongo.DefaultCollections)
	if err != nil {
		t.Fatalf("opening an unreachable source must not fail: %v", err)
	}
	defer src.Close()

	service := dashboard.NewService(dashboard.Options{Source: src, TopN: 10, CurrencyPrefix: "₹"})
	router := NewRouter(Deps{Renderer: service, Log: zerolog.Nop()})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard?client=A", nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("request %d: status = %d, want 503: %s", i+1, rec.Code, rec.Body.String())
		}
	}
}

func TestRouter_Misc(t *testing.T) {
	router := newTestRouter(okRenderer(), nil, nil)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodPost, "/api/dashboard", http.StatusMethodNotAllowed},
		{http.MethodOptions, "/api/dashboard", http.StatusNoContent},
		{http.MethodGet, "/nowhere", http.StatusNotFound},
		{http.MethodPost, "/api/snapshots", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
		}
	}
}

func TestRecovery(t *testing.T) {
	renderer := &MockRenderer{RenderFunc: func(ctx context.Context, req selection.Request) (*dashboard.View, error) {
		panic("boom")
	}}
	rec := httptest.NewRecorder()
	newTestRouter(renderer, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func intPtr(v int) *int { return &v }
