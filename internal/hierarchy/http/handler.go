package hierarchyhttp

import (
	"context"
	"encoding/csv"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mediaplan/mediaplan/internal/hierarchy"
	"github.com/mediaplan/mediaplan/internal/platform/httpx"
)

// Service is the hierarchy surface used by the handler.
type Service interface {
	Tree(ctx context.Context, planID string) (hierarchy.TreeView, error)
	Allocate(ctx context.Context, planID string, in hierarchy.AllocateInput) (hierarchy.Allocation, error)
	InvalidateCatalog(ctx context.Context) error
}

// Handler wires hierarchy JSON endpoints.
type Handler struct {
	logger   *slog.Logger
	service  Service
	validate *validator.Validate
}

// NewHandler constructs handler.
func NewHandler(logger *slog.Logger, service Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers the plan-independent routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/hierarchy/validate", h.validateOrder)
	r.Post("/hierarchy/catalog/refresh", h.refreshCatalog)
}

// MountPlanRoutes registers routes under a plan-scoped router.
func (h *Handler) MountPlanRoutes(r chi.Router) {
	r.Get("/hierarchy", h.tree)
	r.Get("/hierarchy/export", h.export)
	r.Post("/distributions/propose", h.propose)
}

type validateBody struct {
	Order []string `json:"order"`
}

func (h *Handler) validateOrder(w http.ResponseWriter, r *http.Request) {
	var body validateBody
	if err := httpx.Bind(r, nil, &body); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"valid": hierarchy.ValidateOrderTags(body.Order)})
}

func (h *Handler) refreshCatalog(w http.ResponseWriter, r *http.Request) {
	if err := h.service.InvalidateCatalog(r.Context()); err != nil {
		h.logger.Warn("invalidate catalog", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) tree(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "planID")
	view, err := h.service.Tree(r.Context(), planID)
	if err != nil {
		h.logger.Error("hierarchy tree", slog.String("plan_id", planID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "planID")
	view, err := h.service.Tree(r.Context(), planID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=allocation_"+planID+".csv")
	writer := csv.NewWriter(w)
	for _, row := range hierarchy.ExportRows(view.Rows, view.Order) {
		if err := writer.Write(row); err != nil {
			h.logger.Warn("hierarchy export", slog.String("plan_id", planID), slog.Any("error", err))
			break
		}
	}
	writer.Flush()
}

func (h *Handler) propose(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "planID")
	var in hierarchy.AllocateInput
	if err := httpx.Bind(r, h.validate, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	alloc, err := h.service.Allocate(r.Context(), planID, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	status := http.StatusOK
	if in.Persist {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, alloc)
}
