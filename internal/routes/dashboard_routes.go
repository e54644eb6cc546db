package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"PenguinWatch.dashboard/internal/controller"
)

// SetupDashboardRoutes registers the live view, profile and search routes.
func SetupDashboardRoutes(router *mux.Router, c *controller.DashboardController, auth func(http.Handler) http.Handler) {
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/live", c.HandleLive).Methods(http.MethodGet)
	api.HandleFunc("/live/chart.png", c.HandleLiveChartPNG).Methods(http.MethodGet)
	api.HandleFunc("/live/chart.html", c.HandleLiveChartHTML).Methods(http.MethodGet)
	api.HandleFunc("/live/penguin/{id}", c.HandleLoadPenguin).Methods(http.MethodPost)

	api.HandleFunc("/search", c.HandleSearch).Methods(http.MethodGet)
	api.HandleFunc("/archive/{id}", c.HandleArchive).Methods(http.MethodGet)

	api.HandleFunc("/penguin/{id}", c.HandleProfile).Methods(http.MethodGet)
	api.HandleFunc("/penguin/{id}/chart.png", c.HandleProfileChartPNG).Methods(http.MethodGet)
	api.Handle("/penguin/{id}/metadata", auth(http.HandlerFunc(c.HandleAddField))).Methods(http.MethodPost)
}
