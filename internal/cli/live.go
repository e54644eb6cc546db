package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"PenguinWatch.dashboard/internal/cache"
	"PenguinWatch.dashboard/internal/models"
	"PenguinWatch.dashboard/internal/reconcile"
	"PenguinWatch.dashboard/internal/render"
	"PenguinWatch.dashboard/internal/service"
	"PenguinWatch.dashboard/internal/stream"
)

type historyView struct {
	PenguinID    string               `json:"penguinId"`
	Measurements []models.Measurement `json:"measurements"`
	Average      string               `json:"average"`
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow live measurements until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			log := a.logger(cmd, cfg)
			ctx := cmd.Context()

			store, err := cache.Open(ctx, cfg.CacheOptions())
			if err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			defer store.Close()

			client := a.client(cfg)
			dash := service.NewDashboard(client, cache.NewSnapshots(store, log, nil), log)
			if err := dash.Seed(ctx); err != nil {
				log.Warn().Err(err).Msg("could not seed from cache")
			}
			out := cmd.OutOrStdout()
			if err := a.print(out, dash.Live(), func(w io.Writer) { printLive(w, dash.Live()) }); err != nil {
				return err
			}

			handle := func(ctx context.Context, ev stream.Event) error {
				if err := dash.HandleEvent(ctx, ev); err != nil {
					return err
				}
				live := dash.Live()
				return a.print(out, live, func(w io.Writer) { printLive(w, live) })
			}
			l := stream.NewListener(client.OpenStream, handle, cfg.StreamPolicy(), log, nil)
			l.OnConnect = func() { log.Info().Str("url", client.StreamURL()).Msg("connected to live updates") }
			if err := l.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

func printLive(w io.Writer, v service.LiveView) {
	id := "-"
	if v.Current != nil && v.Current.ID != "" {
		id = v.Current.ID
	}
	fmt.Fprintf(w, "%-12s %-10s %-24s avg %s\n", id, v.DisplayWeight, v.DisplayTimestamp, v.Average)
	if v.HistoryMessage != "" {
		fmt.Fprintf(w, "  %s\n", v.HistoryMessage)
	}
	if v.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", v.Error)
	}
}

func (a *app) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <penguin-id>",
		Short: "Show the recent weight history of a penguin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			id := args[0]
			ms, err := a.client(cfg).Recent(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("load weight history: %w", err)
			}
			for i := range ms {
				ms[i] = ms[i].WithID(id)
			}
			v := historyView{PenguinID: id, Measurements: ms, Average: reconcile.Reconcile(ms).Average}
			return a.print(cmd.OutOrStdout(), v, func(w io.Writer) { printHistory(w, v) })
		},
	}
}

func printHistory(w io.Writer, v historyView) {
	if len(v.Measurements) == 0 {
		fmt.Fprintln(w, service.HistoryEmpty)
		return
	}
	for _, m := range v.Measurements {
		fmt.Fprintf(w, "%-24s %s kg\n", m.Timestamp(), m.Weight.String())
	}
	fmt.Fprintf(w, "Average: %s\n", v.Average)
}

func (a *app) globalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "global",
		Short: "Show the latest measurement of every penguin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			ms, err := a.client(cfg).LatestGlobal(cmd.Context())
			if err != nil {
				return err
			}
			state := reconcile.Reconcile(ms)
			return a.print(cmd.OutOrStdout(), state, func(w io.Writer) { printChart(w, state) })
		},
	}
}

func printChart(w io.Writer, s reconcile.ChartState) {
	for _, p := range s.Points {
		weight := "n/a"
		if p.Value != nil {
			weight = models.FormatWeight(*p.Value) + " kg"
		}
		fmt.Fprintf(w, "%-24s %-12s %s\n", p.Label, p.SubjectID, weight)
	}
	fmt.Fprintf(w, "Average: %s\n", s.Average)
}

func (a *app) chartCmd() *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "chart [penguin-id]",
		Short: "Render the weight chart of a penguin, or of all penguins without an id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "png" && format != "html" {
				return fmt.Errorf("unknown chart format %q (want png or html)", format)
			}
			cfg, err := a.config()
			if err != nil {
				return err
			}
			client := a.client(cfg)

			var ms []models.Measurement
			title := "All Penguins"
			if len(args) == 1 {
				title = "Penguin " + args[0]
				ms, err = client.Recent(cmd.Context(), args[0])
				for i := range ms {
					ms[i] = ms[i].WithID(args[0])
				}
			} else {
				ms, err = client.LatestGlobal(cmd.Context())
			}
			if err != nil {
				return err
			}
			state := reconcile.Reconcile(ms)

			if out == "" {
				out = "weight_chart." + format
			}
			var w io.Writer = cmd.OutOrStdout()
			if out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			opts := render.Options{Title: title}
			if format == "html" {
				err = render.HTML(w, state, opts)
			} else {
				err = render.PNG(w, state, opts)
			}
			if err != nil {
				return fmt.Errorf("render chart: %w", err)
			}
			if out != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "png", "chart format: png or html")
	cmd.Flags().StringVar(&out, "out", "", "output file, - for stdout (default weight_chart.<format>)")
	return cmd
}
