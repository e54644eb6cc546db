package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"PenguinWatch.dashboard/internal/controller"
)

// SetupReportRoutes registers the report table, summary and export routes.
func SetupReportRoutes(router *mux.Router, c *controller.ReportController) {
	reports := router.PathPrefix("/reports").Subrouter()

	reports.HandleFunc("/table", c.HandleTable).Methods(http.MethodGet)
	reports.HandleFunc("/select", c.HandleSelect).Methods(http.MethodPost)
	reports.HandleFunc("/summary", c.HandleSummary).Methods(http.MethodGet)
	reports.HandleFunc("/export.{format:csv|pdf|xlsx}", c.HandleExport).Methods(http.MethodGet)
	reports.HandleFunc("/export.{format:csv|pdf}/archive", c.HandleArchiveExport).Methods(http.MethodPost)
}
