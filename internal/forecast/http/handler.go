package forecasthttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/mediaplan/mediaplan/internal/forecast"
	"github.com/mediaplan/mediaplan/internal/platform/httpx"
	"github.com/mediaplan/mediaplan/internal/shared"
	"github.com/mediaplan/mediaplan/jobs"
)

// Service is the forecast surface used by the handler.
type Service interface {
	Generate(ctx context.Context, req forecast.GenerateRequest) (forecast.Result, error)
	List(ctx context.Context, planID string, g forecast.Granularity) ([]forecast.Forecast, error)
}

// Enqueuer queues background generations.
type Enqueuer interface {
	EnqueueForecastGenerate(ctx context.Context, payload jobs.ForecastGeneratePayload) (*asynq.TaskInfo, error)
}

// Handler wires forecast JSON endpoints.
type Handler struct {
	logger   *slog.Logger
	service  Service
	jobs     Enqueuer
	validate *validator.Validate
}

// NewHandler constructs handler. jobsClient may be nil, which disables
// queued generation.
func NewHandler(logger *slog.Logger, service Service, jobsClient Enqueuer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, jobs: jobsClient, validate: validator.New()}
}

// MountRoutes registers routes under a plan-scoped router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/forecasts", h.generate)
	r.Get("/forecasts", h.list)
}

type generateBody struct {
	Granularity string `json:"granularity" validate:"required,oneof=day week month"`
}

type queuedResponse struct {
	Queued bool   `json:"queued"`
	TaskID string `json:"task_id"`
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "planID")
	var body generateBody
	if err := httpx.Bind(r, h.validate, &body); err != nil {
		httpx.JSON(w, http.StatusBadRequest, forecast.ResultFromError(err))
		return
	}
	actor := shared.ActorFromContext(r.Context())

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		if h.jobs == nil {
			httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "background jobs are not configured")
			return
		}
		info, err := h.jobs.EnqueueForecastGenerate(r.Context(), jobs.ForecastGeneratePayload{
			PlanID:        planID,
			Granularity:   body.Granularity,
			UserID:        actor.UserID,
			EnvironmentID: actor.EnvironmentID,
		})
		if err != nil {
			h.logger.Warn("enqueue forecast", slog.String("plan_id", planID), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		out := queuedResponse{Queued: true}
		if info != nil {
			out.TaskID = info.ID
		}
		httpx.JSON(w, http.StatusAccepted, out)
		return
	}

	res, err := h.service.Generate(r.Context(), forecast.GenerateRequest{
		PlanID:        planID,
		Granularity:   forecast.Granularity(body.Granularity),
		UserID:        actor.UserID,
		EnvironmentID: actor.EnvironmentID,
	})
	if err != nil {
		httpx.JSON(w, httpx.StatusFor(err), res)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "planID")
	g := forecast.Granularity(r.URL.Query().Get("granularity"))
	items, err := h.service.List(r.Context(), planID, g)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []forecast.Forecast{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"forecasts": items})
}
