package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"PenguinWatch.dashboard/internal/blob"
	"PenguinWatch.dashboard/internal/config"
	"PenguinWatch.dashboard/internal/models"
	"PenguinWatch.dashboard/internal/report"
)

func (a *app) reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Weekly penguin report: table, summary and exports",
	}
	cmd.AddCommand(a.reportTableCmd(), a.reportSummaryCmd(), a.reportExportCmd())
	return cmd
}

// loadTable fetches the rows for filter and narrows them to ids containing id.
func (a *app) loadTable(cmd *cobra.Command, cfg config.Config, filter, id string) (*report.Table, error) {
	table := report.NewTable(a.client(cfg))
	if _, err := table.Reload(cmd.Context(), models.ParseStatusFilter(filter), id); err != nil {
		return nil, err
	}
	return table, nil
}

func (a *app) reportTableCmd() *cobra.Command {
	var filter, id string
	cmd := &cobra.Command{
		Use:   "table",
		Short: "Print the report table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			table, err := a.loadTable(cmd, cfg, filter, id)
			if err != nil {
				return err
			}
			v := table.View()
			return a.print(cmd.OutOrStdout(), v, func(w io.Writer) { printTable(w, v) })
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "all", "status filter: all, underweight, overweight or normal")
	cmd.Flags().StringVar(&id, "id", "", "only show ids containing this text")
	return cmd
}

func printTable(w io.Writer, v report.View) {
	fmt.Fprintf(w, "%-12s %-22s %-10s %-10s %-12s %s\n", "ID", "LAST SEEN", "CURRENT", "AVG (7D)", "STATUS", "NOTES")
	for _, r := range v.Rows {
		fmt.Fprintf(w, "%-12s %-22s %-10s %-10s %-12s %s\n",
			r.ID, r.LastSeen, r.CurrentWeight, r.AvgWeight, r.StatusIcon+" "+r.Status, r.Notes)
	}
	if v.Banner != "" {
		fmt.Fprintln(w, v.Banner)
	}
	fmt.Fprintln(w, v.CountText)
}

func (a *app) reportSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print the report summary figures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			s, err := report.NewTable(a.client(cfg)).LoadSummary(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), s, func(w io.Writer) {
				fmt.Fprintf(w, "Total penguins:  %s\n", s.TotalPenguins)
				fmt.Fprintf(w, "Avg weight (7d): %s\n", s.AvgWeight)
				fmt.Fprintf(w, "Heaviest:        %s\n", s.Heaviest)
				fmt.Fprintf(w, "Lightest:        %s\n", s.Lightest)
			})
		},
	}
}

func (a *app) reportExportCmd() *cobra.Command {
	var format, out, sink, filter, id string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the report table as csv, pdf or xlsx",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			log := a.logger(cmd, cfg)
			table, err := a.loadTable(cmd, cfg, filter, id)
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			switch format {
			case report.FormatCSV:
				err = table.WriteCSV(&buf)
			case report.FormatExcel:
				err = table.WriteExcel(&buf)
			case report.FormatPDF:
				summary, serr := table.LoadSummary(cmd.Context())
				if serr != nil {
					log.Warn().Err(serr).Msg("exporting pdf without summary")
				}
				err = table.WritePDF(&buf, report.NewRasterPDF(), summary, a.now())
			default:
				return fmt.Errorf("unknown export format %q (want csv, pdf or xlsx)", format)
			}
			if err != nil {
				return err
			}

			if sink != "" {
				s, err := blob.Open(cmd.Context(), cfg.ExportSink(sink))
				if err != nil {
					return err
				}
				loc, err := s.Put(cmd.Context(), report.ExportKey(format, a.now()), &buf, report.ContentType(format))
				if err != nil {
					return fmt.Errorf("store export: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), loc)
				return nil
			}

			if out == "" {
				out = report.BaseFileName + "." + format
			}
			if out == "-" {
				_, err = io.Copy(cmd.OutOrStdout(), &buf)
				return err
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", report.FormatCSV, "export format: csv, pdf or xlsx")
	cmd.Flags().StringVar(&out, "out", "", "output file, - for stdout (default penguin_report.<format>)")
	cmd.Flags().StringVar(&sink, "sink", "", "store the export in a sink instead: fs or s3")
	cmd.Flags().StringVar(&filter, "filter", "all", "status filter: all, underweight, overweight or normal")
	cmd.Flags().StringVar(&id, "id", "", "only export ids containing this text")
	return cmd
}
