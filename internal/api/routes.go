// Package api wires the HTTP surface of the dashboard.
package api

import (
	"net/http"

	"github.com/dvloznov/sales-dashboard/internal/api/handlers"
	"github.com/dvloznov/sales-dashboard/internal/api/middleware"
	"github.com/dvloznov/sales-dashboard/internal/jobs"
	"github.com/dvloznov/sales-dashboard/internal/live"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Deps are the services behind the routes. Publisher and Store may be nil,
// in which case the snapshot and job endpoints are not registered.
type Deps struct {
	Renderer  handlers.Renderer
	Publisher jobs.Publisher
	Store     jobs.JobStore
	Log       zerolog.Logger
}

// NewRouter builds the router with the middleware chain applied.
func NewRouter(deps Deps) http.Handler {
	router := mux.NewRouter()

	dashboardHandler := handlers.NewDashboardHandler(deps.Renderer, deps.Log)
	router.HandleFunc("/api/dashboard", dashboardHandler.GetDashboard).Methods(http.MethodGet)
	router.HandleFunc("/api/charts/{kind}.png", dashboardHandler.GetChartPNG).Methods(http.MethodGet)

	router.Handle("/ws", live.NewHandler(deps.Renderer, deps.Log)).Methods(http.MethodGet)

	if deps.Publisher != nil {
		snapshotsHandler := handlers.NewSnapshotsHandler(deps.Publisher, deps.Log)
		router.HandleFunc("/api/snapshots", snapshotsHandler.CreateSnapshot).Methods(http.MethodPost)
	}
	if deps.Store != nil {
		jobsHandler := handlers.NewJobsHandler(deps.Store, deps.Log)
		router.HandleFunc("/api/jobs", jobsHandler.ListJobs).Methods(http.MethodGet)
		router.HandleFunc("/api/jobs/{id}", jobsHandler.GetJob).Methods(http.MethodGet)
	}

	router.HandleFunc("/health", handlers.Health).Methods(http.MethodGet)

	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})

	return middleware.Recovery(deps.Log)(
		middleware.Logger(deps.Log)(
			middleware.RequestID(
				middleware.ContextLogger(deps.Log)(
					middleware.CORS(router),
				),
			),
		),
	)
}
