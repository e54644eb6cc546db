package cli

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"PenguinWatch.dashboard/internal/backend"
	"PenguinWatch.dashboard/internal/cache"
	"PenguinWatch.dashboard/internal/models"
	"PenguinWatch.dashboard/internal/reconcile"
	"PenguinWatch.dashboard/internal/repository"
	"PenguinWatch.dashboard/internal/service"
)

// dashboard builds a cache-less dashboard for one-shot commands.
func (a *app) dashboard(client *backend.Client, log zerolog.Logger, opts ...service.Option) *service.Dashboard {
	return service.NewDashboard(client, cache.NewSnapshots(cache.NewMemory(), log, nil), log, opts...)
}

func (a *app) profileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile <penguin-id>",
		Short: "Show the profile card, custom fields and average of a penguin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			dash := a.dashboard(a.client(cfg), a.logger(cmd, cfg))
			v, err := dash.Profile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), v, func(w io.Writer) { printProfile(w, v) })
		},
	}
}

func printProfile(w io.Writer, v service.ProfileView) {
	fmt.Fprintf(w, "Penguin:        %s\n", v.ID)
	fmt.Fprintf(w, "Current weight: %s\n", v.CurrentWeight)
	fmt.Fprintf(w, "Last seen:      %s\n", v.LastSeen)
	fmt.Fprintf(w, "Status:         %s\n", v.StatusLabel)
	if v.ImageURL != "" {
		fmt.Fprintf(w, "Image:          %s\n", v.ImageURL)
	}
	fmt.Fprintf(w, "Average:        %s\n", v.Average)
	printFields(w, v.Fields)
}

func printFields(w io.Writer, fields []service.FieldView) {
	for _, f := range fields {
		fmt.Fprintf(w, "  %-14s %s\n", f.Label+":", f.Value)
	}
}

func (a *app) searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Find penguin ids containing the query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			dash := a.dashboard(a.client(cfg), a.logger(cmd, cfg))
			results, err := dash.Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if results == nil {
				results = []models.SearchResult{}
			}
			return a.print(cmd.OutOrStdout(), results, func(w io.Writer) {
				if len(results) == 0 {
					fmt.Fprintln(w, "No penguins found")
					return
				}
				for _, r := range results {
					fmt.Fprintln(w, r.ID)
				}
			})
		},
	}
}

func (a *app) addFieldCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-field <penguin-id> <name> <value>",
		Short: "Store a custom field on a penguin",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			dash := a.dashboard(a.client(cfg), a.logger(cmd, cfg))
			fields, err := dash.AddField(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), fields, func(w io.Writer) {
				fmt.Fprintf(w, "Saved %s on %s\n", args[1], args[0])
				printFields(w, fields)
			})
		},
	}
}

func (a *app) setIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-id <penguin-id>",
		Short: "Tell the backend which penguin the next reading belongs to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			msg, err := a.client(cfg).SetCurrentPenguin(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), map[string]string{"message": msg}, func(w io.Writer) {
				fmt.Fprintln(w, msg)
			})
		},
	}
}

func (a *app) archiveCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "archive <penguin-id>",
		Short: "Read archived measurements of a penguin from InfluxDB",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			if !cfg.InfluxEnabled() {
				return fmt.Errorf("%w: set INFLUXDB_URL, INFLUXDB_TOKEN and INFLUXDB_ORG", service.ErrArchiveDisabled)
			}
			log := a.logger(cmd, cfg)
			repo := repository.NewInfluxDBRepository(cfg.InfluxDBURL, cfg.InfluxDBToken, cfg.InfluxDBOrg, cfg.InfluxDBBucket, log)
			defer repo.Close()

			dash := a.dashboard(a.client(cfg), log, service.WithArchiver(repo))
			ms, err := dash.Archive(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			for i := range ms {
				ms[i] = ms[i].WithID(args[0])
			}
			v := historyView{PenguinID: args[0], Measurements: ms, Average: reconcile.Reconcile(ms).Average}
			return a.print(cmd.OutOrStdout(), v, func(w io.Writer) { printHistory(w, v) })
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of measurements")
	return cmd
}
