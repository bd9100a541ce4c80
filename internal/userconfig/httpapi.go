package userconfig

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/stock-signal-fabric/internal/adapter/httpserver"
	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
)

// API serves the user worker's /users routes. The gateway proxies these
// verbatim.
type API struct {
	svc *Service
}

// NewAPI constructs the user HTTP API.
func NewAPI(svc *Service) *API { return &API{svc: svc} }

// Mount registers the /users routes on r.
func (a *API) Mount(r chi.Router) {
	r.Post("/users/profile", a.register)
	r.Route("/users/{id}", func(r chi.Router) {
		r.Get("/profile", a.getProfile)
		r.Put("/profile", a.updateProfile)
		r.Get("/config", a.getConfig)
		r.Get("/stocks", a.getStocks)
		r.Post("/stocks", a.setStocks)
		r.Post("/stocks/batch", a.addStocksBatch)
		r.Delete("/stocks/{code}", a.removeStock)
		r.Get("/model", a.getModel)
		r.Post("/model", a.setModel)
		r.Get("/wanted-services", a.getWantedServices)
		r.Post("/wanted-services", a.setWantedServices)
		r.Put("/wanted-services", a.setWantedServices)
	})
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpserver.WriteError(w, r, fmt.Errorf("op=users.register: %v: %w", err, domain.ErrInvalidArgument))
		return
	}
	id, err := a.svc.Register(r.Context(), in)
	if err != nil {
		httpserver.WriteError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusCreated, map[string]any{"user_id": id})
}

func (a *API) getProfile(w http.ResponseWriter, r *http.Request) {
	cfg, err := a.svc.GetConfig(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpserver.WriteError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{
		"user_id": cfg.UserID,
		"name":    cfg.Name,
		"phone":   cfg.Phone,
		"chat_id": cfg.Notify.ChatID,
	})
}

func (a *API) updateProfile(w http.ResponseWriter, r *http.Request) {
	var patch domain.UserConfigPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		httpserver.WriteError(w, r, fmt.Errorf("op=users.update: %v: %w", err, domain.ErrInvalidArgument))
		return
	}
	id := chi.URLParam(r, "id")
	if err := a.svc.Update(r.Context(), id, patch); err != nil {
		httpserver.WriteError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{"user_id": id, "updated": true})
}

func (a *API) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := a.svc.GetConfig(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpserver.WriteError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, cfg)
}

func (a *API) getStocks(w http.ResponseWriter, r *http.Request) {
	codes, err := a.svc.GetStocks(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpserver.WriteError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{"stocks": codes})
}

type stocksInput struct {
	Stocks []string `json:"stocks"`
}

func (a *API) setStocks(w http.ResponseWriter, r *http.Request) {
	var in stocksInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpserver.WriteError(w, r, fmt.Errorf("op=users.set_stocks: %v: %w", err, domain.ErrInvalidArgument))
		return
	}
	id := chi.URLParam(r, "id")
	if err := a.svc.SetStocks(r.Context(), id, in.Stocks); err != nil {
		httpserver.WriteError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{"stocks": in.Stocks})
}

func (a *API) addStocksBatch(w http.ResponseWriter, r *http.Request) {
	var in stocksInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpserver.WriteError(w, r, fmt.Errorf("op=users.add_stocks: %v: %w", err, domain.ErrInvalidArgument))
		return
	}
	id := chi.URLParam(r, "id")
	if err := a.svc.AddStocks(r.Context(), id, in.Stocks); err != nil {
		httpserver.WriteError(w, r, err)
		return
	}
	codes, err := a.svc.GetStocks(r.Context(), id)
	if err != nil {
		httpserver.WriteError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{"stocks": codes})
}

func (a *API) removeStock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	code := chi.URLParam(r, "code")
	if err := a.svc.RemoveStock(r.Context(), id, code); err != nil {
		httpserver.WriteError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{"removed": code})
}

func (a *API) getModel(w http.ResponseWriter, r *http.Request) {
	kind, err := a.svc.GetModel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpserver.WriteError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{"model": kind})
}

func (a *API) setModel(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Model string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpserver.WriteError(w, r, fmt.Errorf("op=users.set_model: %v: %w", err, domain.ErrInvalidArgument))
		return
	}
	id := chi.URLParam(r, "id")
	if err := a.svc.SetModel(r.Context(), id, domain.LLMKind(in.Model)); err != nil {
		httpserver.WriteError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{"model": in.Model})
}

func (a *API) getWantedServices(w http.ResponseWriter, r *http.Request) {
	services, err := a.svc.GetWantedServices(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpserver.WriteError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{"services": services})
}

func (a *API) setWantedServices(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Services map[domain.ServiceKind]bool `json:"services"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpserver.WriteError(w, r, fmt.Errorf("op=users.set_services: %v: %w", err, domain.ErrInvalidArgument))
		return
	}
	id := chi.URLParam(r, "id")
	if err := a.svc.SetWantedServices(r.Context(), id, in.Services); err != nil {
		httpserver.WriteError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{"services": in.Services})
}
