package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaplan/mediaplan/internal/shared"
)

func TestRespondErrorClasses(t *testing.T) {
	cases := []struct {
		err        error
		status     int
		showDetail bool
	}{
		{fmt.Errorf("plan p: %w", shared.ErrNotFound), http.StatusNotFound, true},
		{fmt.Errorf("dates: %w", shared.ErrInvalidInput), http.StatusBadRequest, true},
		{fmt.Errorf("step 2: %w", shared.ErrPartialConsistency), http.StatusConflict, true},
		{shared.StorageError("insert", errors.New("conn reset")), http.StatusBadGateway, true},
		{fmt.Errorf("query: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, false},
		{errors.New("secret internals"), http.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.Equal(t, tc.status, StatusFor(tc.err))
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

		var body problemBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tc.status, body.Status)
		assert.Equal(t, "about:blank", body.Type)
		if tc.showDetail {
			assert.Equal(t, tc.err.Error(), body.Detail)
		} else {
			assert.Empty(t, body.Detail)
		}
	}
}

type bindTarget struct {
	Name  string  `json:"name" validate:"required"`
	Share float64 `json:"share" validate:"gte=0,lte=100"`
}

func TestBind(t *testing.T) {
	v := validator.New()
	bind := func(body string) (bindTarget, error) {
		var out bindTarget
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		return out, Bind(req, v, &out)
	}

	out, err := bind(`{"name":"north","share":40}`)
	require.NoError(t, err)
	assert.Equal(t, bindTarget{Name: "north", Share: 40}, out)

	_, err = bind(``)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	assert.ErrorContains(t, err, "empty body")

	_, err = bind(`{"name":`)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = bind(`{"share":140}`)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	assert.ErrorContains(t, err, "bindTarget.Name (required)")
	assert.ErrorContains(t, err, "bindTarget.Share (lte)")
}

func TestBindWithoutValidator(t *testing.T) {
	var out bindTarget
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"share":140}`))
	require.NoError(t, Bind(req, nil, &out))
	assert.Equal(t, 140.0, out.Share)
}
