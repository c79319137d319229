package pacinghttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaplan/mediaplan/internal/pacing"
	"github.com/mediaplan/mediaplan/internal/shared"
)

type stubService struct {
	envID       string
	granularity string
	err         error
}

func (s *stubService) Calculate(ctx context.Context, planID, environmentID, granularity string) (pacing.Report, error) {
	s.envID = environmentID
	s.granularity = granularity
	if s.err != nil {
		return pacing.Report{}, s.err
	}
	return pacing.Report{
		PlanID: planID,
		Data:   []pacing.Data{{Planned: 1000, Actual: 1105, VariancePercent: 10.5, Status: pacing.StatusOverspend, HasActual: true}},
		Alerts: []pacing.Alert{},
	}, nil
}

func (s *stubService) OverduePayments(ctx context.Context, planID string) ([]pacing.PaymentAlert, error) {
	return []pacing.PaymentAlert{{PaymentID: "p-1", Severity: pacing.SeverityError, DaysOverdue: 9}}, nil
}

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/plans/{planID}", h.MountRoutes)
	return r
}

func TestPacingEndpoint(t *testing.T) {
	svc := &stubService{}
	router := newRouter(NewHandler(nil, svc))

	req := httptest.NewRequest(http.MethodGet, "/api/plans/plan-1/pacing?granularity=week", nil)
	req = req.WithContext(shared.ContextWithActor(req.Context(), shared.Actor{EnvironmentID: "env-9"}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var report pacing.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "plan-1", report.PlanID)
	require.Len(t, report.Data, 1)
	assert.Equal(t, pacing.StatusOverspend, report.Data[0].Status)
	assert.Equal(t, "env-9", svc.envID)
	assert.Equal(t, "week", svc.granularity)
}

func TestPacingEndpointMapsErrors(t *testing.T) {
	router := newRouter(NewHandler(nil, &stubService{err: fmt.Errorf("load: %w", shared.ErrStorage)}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/plans/plan-1/pacing", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestOverdueEndpoint(t *testing.T) {
	router := newRouter(NewHandler(nil, &stubService{}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/plans/plan-1/payments/overdue", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Alerts []pacing.PaymentAlert `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Alerts, 1)
	assert.Equal(t, 9, body.Alerts[0].DaysOverdue)
}
