package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	forecasthttp "github.com/mediaplan/mediaplan/internal/forecast/http"
	hierarchyhttp "github.com/mediaplan/mediaplan/internal/hierarchy/http"
	"github.com/mediaplan/mediaplan/internal/observability"
	pacinghttp "github.com/mediaplan/mediaplan/internal/pacing/http"
	"github.com/mediaplan/mediaplan/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	HierarchyHandler *hierarchyhttp.Handler
	ForecastHandler  *forecasthttp.Handler
	PacingHandler    *pacinghttp.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		if params.HierarchyHandler != nil {
			params.HierarchyHandler.MountRoutes(r)
		}
		r.Route("/plans/{planID}", func(r chi.Router) {
			if params.HierarchyHandler != nil {
				params.HierarchyHandler.MountPlanRoutes(r)
			}
			if params.ForecastHandler != nil {
				params.ForecastHandler.MountRoutes(r)
			}
			if params.PacingHandler != nil {
				params.PacingHandler.MountRoutes(r)
			}
		})
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
