package controller

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"PenguinWatch.dashboard/internal/blob"
	"PenguinWatch.dashboard/internal/metrics"
	"PenguinWatch.dashboard/internal/models"
	"PenguinWatch.dashboard/internal/report"
	"PenguinWatch.dashboard/internal/utils"
)

// ReportController serves the report table, its summary and the exports.
// Exports load their own rows, so they never depend on what another client
// last asked the table for.
type ReportController struct {
	src     report.Source
	table   *report.Table
	pdf     report.PDFRenderer
	sink    blob.Sink
	metrics *metrics.Metrics
	log     zerolog.Logger
	now     func() time.Time
}

// NewReportController creates the controller. sink may be nil, in which case
// archiving exports is unavailable.
func NewReportController(src report.Source, pdf report.PDFRenderer, sink blob.Sink, m *metrics.Metrics, log zerolog.Logger) *ReportController {
	return &ReportController{src: src, table: report.NewTable(src), pdf: pdf, sink: sink, metrics: m, log: log, now: time.Now}
}

// HandleTable refetches the rows for ?filter= and narrows them to ?id=.
func (c *ReportController) HandleTable(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	v, err := c.table.Reload(r.Context(), models.ParseStatusFilter(q.Get("filter")), q.Get("id"))
	if err != nil {
		c.log.Error().Err(err).Msg("failed to load report table")
		respondLoadFailed(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, v)
}

func respondLoadFailed(w http.ResponseWriter, err error) {
	apiErr := toAPIError(err, report.LoadFailedMessage)
	apiErr.Message = report.LoadFailedMessage
	utils.RespondWithError(w, apiErr)
}

type selectRequest struct {
	ID      string `json:"id"`
	All     bool   `json:"all"`
	Checked bool   `json:"checked"`
}

// HandleSelect toggles one row, or every visible row when all is set.
func (c *ReportController) HandleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeBadRequest, "Invalid request payload", nil, http.StatusBadRequest))
		return
	}
	defer r.Body.Close()

	switch {
	case req.All:
		c.table.SelectAll(req.Checked)
	case req.ID != "":
		c.table.Toggle(req.ID, req.Checked)
	default:
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeMissingParameter, "id or all is required", nil, http.StatusBadRequest))
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, c.table.View())
}

func (c *ReportController) HandleSummary(w http.ResponseWriter, r *http.Request) {
	s, err := c.table.LoadSummary(r.Context())
	if err != nil {
		c.log.Error().Err(err).Msg("failed to load report summary")
		respondWithError(w, err, "Failed to load summary")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, s)
}

// HandleExport streams the rows for ?filter= and ?id= in the format of the
// path.
func (c *ReportController) HandleExport(w http.ResponseWriter, r *http.Request) {
	format := mux.Vars(r)["format"]
	tbl, err := c.exportTable(r)
	if err != nil {
		c.metrics.Export(format, "error")
		c.log.Error().Err(err).Str("format", format).Msg("failed to load export rows")
		respondLoadFailed(w, err)
		return
	}
	var buf bytes.Buffer
	if err := c.export(r, tbl, format, &buf); err != nil {
		c.metrics.Export(format, "error")
		c.log.Error().Err(err).Str("format", format).Msg("export failed")
		respondWithError(w, err, "Export failed")
		return
	}
	c.metrics.Export(format, "ok")

	w.Header().Set("Content-Type", report.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.%s", report.BaseFileName, format))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, &buf); err != nil {
		c.log.Warn().Err(err).Msg("failed to write export")
	}
}

// HandleArchiveExport writes the export to the configured sink and returns
// where it went.
func (c *ReportController) HandleArchiveExport(w http.ResponseWriter, r *http.Request) {
	if c.sink == nil {
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeUnavailable, "export sink is not configured", nil, http.StatusServiceUnavailable))
		return
	}
	format := mux.Vars(r)["format"]
	tbl, err := c.exportTable(r)
	if err != nil {
		c.metrics.Export(format, "error")
		c.log.Error().Err(err).Str("format", format).Msg("failed to load export rows")
		respondLoadFailed(w, err)
		return
	}
	var buf bytes.Buffer
	if err := c.export(r, tbl, format, &buf); err != nil {
		c.metrics.Export(format, "error")
		respondWithError(w, err, "Export failed")
		return
	}

	key := report.ExportKey(format, c.now())
	loc, err := c.sink.Put(r.Context(), key, &buf, report.ContentType(format))
	if err != nil {
		c.metrics.Export(format, "error")
		c.log.Error().Err(err).Str("key", key).Msg("failed to store export")
		respondWithError(w, err, "Failed to store export")
		return
	}
	c.metrics.Export(format, "ok")
	utils.RespondWithJSON(w, http.StatusCreated, map[string]string{"location": loc})
}

// exportTable loads a private table for one export request.
func (c *ReportController) exportTable(r *http.Request) (*report.Table, error) {
	q := r.URL.Query()
	tbl := report.NewTable(c.src)
	if _, err := tbl.Reload(r.Context(), models.ParseStatusFilter(q.Get("filter")), q.Get("id")); err != nil {
		return nil, err
	}
	return tbl, nil
}

func (c *ReportController) export(r *http.Request, tbl *report.Table, format string, w io.Writer) error {
	switch format {
	case report.FormatCSV:
		return tbl.WriteCSV(w)
	case report.FormatExcel:
		return tbl.WriteExcel(w)
	case report.FormatPDF:
		summary, err := tbl.LoadSummary(r.Context())
		if err != nil {
			c.log.Warn().Err(err).Msg("exporting pdf without summary")
		}
		return tbl.WritePDF(w, c.pdf, summary, c.now())
	default:
		return errors.New("unknown export format " + format)
	}
}
