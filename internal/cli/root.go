// Package cli implements penguinctl, the command line companion of the
// dashboard: it reads the same backend, prints the same views and doubles as
// the field station uploader.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"PenguinWatch.dashboard/internal/backend"
	"PenguinWatch.dashboard/internal/config"
	"PenguinWatch.dashboard/internal/logging"
)

// app carries the persistent flags and the process environment into every
// command.
type app struct {
	backend string
	output  string

	getenv func(string) string
	now    func() time.Time
}

// Execute runs penguinctl with the process arguments. A .env file in the
// working directory is loaded first when present.
func Execute(ctx context.Context) error {
	_ = godotenv.Load()
	return NewRootCommand(os.Getenv).ExecuteContext(ctx)
}

// NewRootCommand builds the command tree. getenv supplies the configuration
// that flags do not override.
func NewRootCommand(getenv func(string) string) *cobra.Command {
	a := &app{getenv: getenv, now: time.Now}

	root := &cobra.Command{
		Use:   "penguinctl",
		Short: "PenguinWatch command line client",
		Long: `penguinctl talks to the PenguinWatch backend.

It prints the live weight feed, penguin histories and profiles, produces the
weekly report exports and uploads field station readings.

Examples:
  penguinctl watch                      # follow live measurements
  penguinctl history PNG-001            # weight history with average
  penguinctl report export --format csv --out report.csv
  penguinctl ingest --image-dir ./Images --weight 5.5`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch a.output {
			case outputText, outputJSON, outputYAML:
				return nil
			default:
				return fmt.Errorf("unknown output format %q (want text, json or yaml)", a.output)
			}
		},
	}
	root.PersistentFlags().StringVar(&a.backend, "backend", "", "backend base URL (default $BACKEND_URL)")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", outputText, "output format: text, json or yaml")

	root.AddCommand(
		a.watchCmd(),
		a.historyCmd(),
		a.globalCmd(),
		a.profileCmd(),
		a.searchCmd(),
		a.addFieldCmd(),
		a.chartCmd(),
		a.reportCmd(),
		a.ingestCmd(),
		a.setIDCmd(),
		a.archiveCmd(),
	)
	return root
}

// config resolves the configuration with --backend taking precedence over
// BACKEND_URL.
func (a *app) config() (config.Config, error) {
	return config.FromEnv(func(key string) string {
		if key == "BACKEND_URL" && a.backend != "" {
			return a.backend
		}
		return a.getenv(key)
	})
}

func (a *app) client(cfg config.Config) *backend.Client {
	return backend.NewClient(cfg.BackendURL, backend.WithTimeout(cfg.RequestTimeout))
}

func (a *app) logger(cmd *cobra.Command, cfg config.Config) zerolog.Logger {
	return logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
}
