package routes

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"PenguinWatch.dashboard/internal/controller"
	"PenguinWatch.dashboard/internal/metrics"
	"PenguinWatch.dashboard/internal/models"
	"PenguinWatch.dashboard/internal/utils"
)

// Deps are the handlers and middlewares the router is built from.
type Deps struct {
	Dashboard *controller.DashboardController
	Reports   *controller.ReportController
	Metrics   *metrics.Metrics
	// RequireAuth guards routes that change state on the backend.
	RequireAuth func(http.Handler) http.Handler
	Logger      func(http.Handler) http.Handler
}

// SetupRouter registers all dashboard routes.
func SetupRouter(d Deps) *mux.Router {
	router := mux.NewRouter()
	if d.Logger != nil {
		router.Use(d.Logger)
	}
	auth := d.RequireAuth
	if auth == nil {
		auth = func(next http.Handler) http.Handler { return next }
	}

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}).Methods(http.MethodGet)
	if d.Metrics != nil {
		router.Handle("/metrics", d.Metrics.Handler()).Methods(http.MethodGet)
	}

	SetupDashboardRoutes(router, d.Dashboard, auth)
	SetupReportRoutes(router, d.Reports)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeNotFound, "route not found", r.URL.Path, http.StatusNotFound))
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeMethodNotAllowed, "Method not allowed", nil, http.StatusMethodNotAllowed))
	})
	return router
}
