package worker

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/stock-signal-fabric/internal/adapter/httpserver"
	"github.com/fairyhunter13/stock-signal-fabric/internal/adapter/observability"
)

// HealthHandler answers the gateway's health probe.
func (w *Worker) HealthHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		httpserver.WriteJSON(rw, http.StatusOK, map[string]any{
			"status":    "ok",
			"service":   string(w.kind),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// CheckScheduleHandler runs the coordinator-driven schedule check.
func (w *Worker) CheckScheduleHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		httpserver.WriteJSON(rw, http.StatusOK, w.CheckSchedule(r.Context()))
	}
}

// ExecuteHandler forces a pipeline run for the requesting user.
func (w *Worker) ExecuteHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		userID := httpserver.UserIDFrom(r, w.defaultUserID)
		res, err := w.Execute(r.Context(), userID)
		if err != nil {
			httpserver.WriteError(rw, r, err)
			return
		}
		httpserver.WriteJSON(rw, http.StatusOK, map[string]any{
			"success": true,
			"result":  res,
		})
	}
}

// SignalHandler returns the latest signal, or a none marker.
func (w *Worker) SignalHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		sig, ok := w.store.Latest()
		if !ok {
			httpserver.WriteJSON(rw, http.StatusOK, map[string]any{
				"message": "none",
				"service": string(w.kind),
			})
			return
		}
		httpserver.WriteJSON(rw, http.StatusOK, sig)
	}
}

// SignalsHandler returns the recent ring snapshot, oldest first.
func (w *Worker) SignalsHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		httpserver.WriteJSON(rw, http.StatusOK, map[string]any{
			"service": string(w.kind),
			"signals": w.store.Recent(),
		})
	}
}

// Routes builds the worker's HTTP surface. The gateway strips the
// /api/<service> prefix, so routes here are backend-relative.
func (w *Worker) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	r.Get("/health", w.HealthHandler())
	r.Post("/check-schedule", w.CheckScheduleHandler())
	r.Post("/execute", w.ExecuteHandler())
	r.Get("/signal", w.SignalHandler())
	r.Get("/signals", w.SignalsHandler())
	r.Get("/metrics", func(rw http.ResponseWriter, r *http.Request) { promhttp.Handler().ServeHTTP(rw, r) })

	return httpserver.SecurityHeaders(r)
}
