// Package controller holds the HTTP handlers of the dashboard server.
package controller

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"PenguinWatch.dashboard/internal/models"
	"PenguinWatch.dashboard/internal/reconcile"
	"PenguinWatch.dashboard/internal/render"
	"PenguinWatch.dashboard/internal/service"
	"PenguinWatch.dashboard/internal/utils"
)

// DashboardController serves the live view, the penguin profiles and search.
type DashboardController struct {
	svc *service.Dashboard
	log zerolog.Logger
}

func NewDashboardController(svc *service.Dashboard, log zerolog.Logger) *DashboardController {
	return &DashboardController{svc: svc, log: log}
}

// HandleLive returns the live view model.
func (c *DashboardController) HandleLive(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, c.svc.Live())
}

// HandleLiveChartPNG draws the live chart. Before the first update an empty
// chart is drawn.
func (c *DashboardController) HandleLiveChartPNG(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	if err := render.PNG(w, c.liveChart(), render.Options{}); err != nil {
		c.log.Error().Err(err).Msg("failed to render live chart")
	}
}

func (c *DashboardController) HandleLiveChartHTML(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := render.HTML(w, c.liveChart(), render.Options{}); err != nil {
		c.log.Error().Err(err).Msg("failed to render live chart")
	}
}

func (c *DashboardController) liveChart() reconcile.ChartState {
	if s, ok := c.svc.Chart(); ok {
		return s
	}
	return reconcile.Reconcile(nil)
}

// HandleLoadPenguin reloads the history of one penguin into the live view.
func (c *DashboardController) HandleLoadPenguin(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := c.svc.LoadPenguin(r.Context(), id); err != nil {
		respondWithError(w, err, "Failed to load weight history")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, c.svc.Live())
}

// HandleProfile returns the details page of one penguin.
func (c *DashboardController) HandleProfile(w http.ResponseWriter, r *http.Request) {
	v, err := c.svc.Profile(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, err, "Failed to load penguin")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, v)
}

func (c *DashboardController) HandleProfileChartPNG(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	v, err := c.svc.Profile(r.Context(), id)
	if err != nil {
		respondWithError(w, err, "Failed to load penguin")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := render.PNG(w, v.Chart, render.Options{Title: "Weight History " + id}); err != nil {
		c.log.Error().Err(err).Str("penguin_id", id).Msg("failed to render profile chart")
	}
}

// HandleAddField stores a custom field for a penguin.
func (c *DashboardController) HandleAddField(w http.ResponseWriter, r *http.Request) {
	var field models.CustomField
	if err := json.NewDecoder(r.Body).Decode(&field); err != nil {
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeBadRequest, "Invalid request payload", nil, http.StatusBadRequest))
		return
	}
	defer r.Body.Close()

	fields, err := c.svc.AddField(r.Context(), mux.Vars(r)["id"], field.FieldName, field.FieldValue)
	if err != nil {
		respondWithError(w, err, "Failed to save field")
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, fields)
}

// HandleSearch runs an id search sequenced per client. Clients are told apart
// by X-Client-ID, falling back to the remote host.
func (c *DashboardController) HandleSearch(w http.ResponseWriter, r *http.Request) {
	results, err := c.svc.SearchFor(r.Context(), searchClient(r), r.URL.Query().Get("q"))
	if err != nil {
		respondWithError(w, err, "Search failed")
		return
	}
	if results == nil {
		results = []models.SearchResult{}
	}
	utils.RespondWithJSON(w, http.StatusOK, results)
}

func searchClient(r *http.Request) string {
	if id := r.Header.Get("X-Client-ID"); id != "" {
		return id
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// HandleArchive returns archived measurements of a penguin.
func (c *DashboardController) HandleArchive(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeInvalidFormat, "limit must be a non-negative integer", nil, http.StatusBadRequest))
			return
		}
		limit = n
	}
	ms, err := c.svc.Archive(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		respondWithError(w, err, "Failed to query archive")
		return
	}
	if ms == nil {
		ms = []models.Measurement{}
	}
	utils.RespondWithJSON(w, http.StatusOK, ms)
}
