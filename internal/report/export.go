package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// ErrNotImplemented is returned for export formats that are not supported.
var ErrNotImplemented = errors.New("report: export format not implemented")

// Export formats and their file names.
const (
	FormatCSV   = "csv"
	FormatPDF   = "pdf"
	FormatExcel = "xlsx"

	BaseFileName = "penguin_report"
)

var csvHeader = []string{"ID", "Last Seen", "Current Weight", "Avg Weight (7d)", "Status", "Notes"}

// ContentType returns the MIME type of an export format.
func ContentType(format string) string {
	switch format {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

// ExportKey names an archived export, e.g. penguin_report_20240305T143000Z.csv.
func ExportKey(format string, now time.Time) string {
	return fmt.Sprintf("%s_%s.%s", BaseFileName, now.UTC().Format("20060102T150405Z"), format)
}

// WriteCSV writes the visible rows, one line per row after the header.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range t.Visible() {
		rec := []string{
			r.PenguinID,
			strings.TrimSpace(r.LastSeen + " " + r.Time),
			r.CurrentWeight.String(),
			r.AvgWeight7d.String(),
			r.Status,
			r.Comments,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteExcel is not supported yet.
func (t *Table) WriteExcel(io.Writer) error {
	return ErrNotImplemented
}
