package userconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T) (*chi.Mux, *Service) {
	t.Helper()
	svc := NewService(newMemStore(), NewCache(time.Minute))
	r := chi.NewRouter()
	NewAPI(svc).Mount(r)
	return r, svc
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func registerUser(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/users/profile", map[string]string{
		"name": "kim", "phone": "010-1234-5678",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var out struct {
		UserID string `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.UserID
}

func TestRegisterEndpoint(t *testing.T) {
	r, _ := newTestAPI(t)
	id := registerUser(t, r)
	assert.NotEmpty(t, id)
}

func TestRegisterMalformedBody(t *testing.T) {
	r, _ := newTestAPI(t)
	req := httptest.NewRequest(http.MethodPost, "/users/profile", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDuplicatePhoneConflict(t *testing.T) {
	r, _ := newTestAPI(t)
	registerUser(t, r)
	rec := doJSON(t, r, http.MethodPost, "/users/profile", map[string]string{
		"name": "lee", "phone": "010-1234-5678",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestProfileNotFound(t *testing.T) {
	r, _ := newTestAPI(t)
	rec := doJSON(t, r, http.MethodGet, "/users/999/profile", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStocksEndpoints(t *testing.T) {
	r, _ := newTestAPI(t)
	id := registerUser(t, r)
	base := fmt.Sprintf("/users/%s/stocks", id)

	rec := doJSON(t, r, http.MethodPost, base, map[string]any{"stocks": []string{"005930", "000660"}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Stocks []string `json:"stocks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.ElementsMatch(t, []string{"005930", "000660"}, got.Stocks)

	rec = doJSON(t, r, http.MethodPost, base+"/batch", map[string]any{"stocks": []string{"035420"}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodDelete, base+"/005930", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodDelete, base+"/005930", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStocksRejectBadTicker(t *testing.T) {
	r, _ := newTestAPI(t)
	id := registerUser(t, r)
	rec := doJSON(t, r, http.MethodPost, fmt.Sprintf("/users/%s/stocks", id), map[string]any{"stocks": []string{"abc"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestModelEndpoints(t *testing.T) {
	r, _ := newTestAPI(t)
	id := registerUser(t, r)
	base := fmt.Sprintf("/users/%s/model", id)

	rec := doJSON(t, r, http.MethodPost, base, map[string]string{"model": "claude"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "claude")

	rec = doJSON(t, r, http.MethodPost, base, map[string]string{"model": "bard"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWantedServicesEndpoints(t *testing.T) {
	r, _ := newTestAPI(t)
	id := registerUser(t, r)
	base := fmt.Sprintf("/users/%s/wanted-services", id)

	rec := doJSON(t, r, http.MethodPut, base, map[string]any{
		"services": map[string]bool{"news": true, "chart": false},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Services map[string]bool `json:"services"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Services["news"])
	assert.False(t, got.Services["chart"])
}

func TestAggregatedConfig(t *testing.T) {
	r, _ := newTestAPI(t)
	id := registerUser(t, r)
	rec := doJSON(t, r, http.MethodGet, fmt.Sprintf("/users/%s/config", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "thresholds")
}
