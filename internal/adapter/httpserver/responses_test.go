package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
)

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
		wantStr  string
	}{
		{domain.ErrInvalidArgument, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{domain.ErrConflict, http.StatusConflict, "CONFLICT"},
		{domain.ErrServiceDisabled, http.StatusServiceUnavailable, "SERVICE_DISABLED"},
		{domain.ErrBreakerOpen, http.StatusServiceUnavailable, "BREAKER_OPEN"},
		{domain.ErrServiceUnavailable, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{domain.ErrUpstreamTimeout, http.StatusServiceUnavailable, "UPSTREAM_TIMEOUT"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL"},
		{fmt.Errorf("op=x: %w", domain.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.wantStr, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/chart/signal", nil)
			WriteError(rec, req, tt.err)
			assert.Equal(t, tt.wantCode, rec.Code)

			var env errorEnvelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.Equal(t, tt.wantStr, env.Error.Code)
			assert.Equal(t, "/api/chart/signal", env.Error.Path)
			assert.NotEmpty(t, env.Error.Timestamp)
		})
	}
}

func TestUserIDFrom(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/execute", nil)
	assert.Equal(t, "1", UserIDFrom(req, "1"))
	req.Header.Set(HeaderUserID, "42")
	assert.Equal(t, "42", UserIDFrom(req, "1"))
}

func TestNewRequestID(t *testing.T) {
	a, b := NewRequestID(), NewRequestID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestRecovererCatchesPanic(t *testing.T) {
	h := Recoverer()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
