package controller

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"PenguinWatch.dashboard/internal/backend"
	"PenguinWatch.dashboard/internal/models"
	"PenguinWatch.dashboard/internal/report"
	"PenguinWatch.dashboard/internal/service"
)

func TestToAPIError(t *testing.T) {
	upstream := models.NewAPIError(models.ErrorCodeUpstreamFailure, "API error: 500", nil, 500)
	missing := models.NewAPIError(models.ErrorCodeNotFound, "API error: 404", nil, 404)

	tests := []struct {
		name   string
		err    error
		code   models.ErrorCode
		status int
	}{
		{"no id", service.ErrNoPenguinID, models.ErrorCodeMissingParameter, http.StatusBadRequest},
		{"superseded", service.ErrSuperseded, models.ErrorCodeSuperseded, http.StatusConflict},
		{"archive off", service.ErrArchiveDisabled, models.ErrorCodeUnavailable, http.StatusServiceUnavailable},
		{"xlsx", report.ErrNotImplemented, models.ErrorCodeNotImplemented, http.StatusNotImplemented},
		{"no data", fmt.Errorf("detail: %w", backend.ErrNoData), models.ErrorCodeNoData, http.StatusNotFound},
		{"upstream", fmt.Errorf("recent: %w", upstream), models.ErrorCodeUpstreamFailure, http.StatusBadGateway},
		{"upstream 404", missing, models.ErrorCodeNotFound, http.StatusNotFound},
		{"other", errors.New("boom"), models.ErrorCodeInternalServerError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toAPIError(tt.err, "failed")
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.status, got.StatusCode)
		})
	}
}

func TestToAPIError_ProfileMessage(t *testing.T) {
	err := &service.ProfileError{ID: "PNG-3", Err: backend.ErrNoData}
	got := toAPIError(err, "failed")
	assert.Equal(t, "Error loading data for penguin PNG-3: no measurement data found", got.Message)
}

func TestSearchClient(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/search?q=p", nil)
	r.RemoteAddr = "10.0.0.7:51234"
	assert.Equal(t, "10.0.0.7", searchClient(r))

	r.Header.Set("X-Client-ID", "tab-1")
	assert.Equal(t, "tab-1", searchClient(r))
}
