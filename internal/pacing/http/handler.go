package pacinghttp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mediaplan/mediaplan/internal/pacing"
	"github.com/mediaplan/mediaplan/internal/platform/httpx"
	"github.com/mediaplan/mediaplan/internal/shared"
)

// Service is the pacing surface used by the handler.
type Service interface {
	Calculate(ctx context.Context, planID, environmentID, granularity string) (pacing.Report, error)
	OverduePayments(ctx context.Context, planID string) ([]pacing.PaymentAlert, error)
}

// Handler wires pacing JSON endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// NewHandler constructs handler.
func NewHandler(logger *slog.Logger, service Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers routes under a plan-scoped router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/pacing", h.pacing)
	r.Get("/payments/overdue", h.overdue)
}

func (h *Handler) pacing(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "planID")
	actor := shared.ActorFromContext(r.Context())
	report, err := h.service.Calculate(r.Context(), planID, actor.EnvironmentID, r.URL.Query().Get("granularity"))
	if err != nil {
		h.logger.Error("pacing report", slog.String("plan_id", planID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) overdue(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "planID")
	alerts, err := h.service.OverduePayments(r.Context(), planID)
	if err != nil {
		h.logger.Error("overdue payments", slog.String("plan_id", planID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}
