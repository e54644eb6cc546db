package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"PenguinWatch.dashboard/internal/backend"
	"PenguinWatch.dashboard/internal/blob"
	"PenguinWatch.dashboard/internal/cache"
	"PenguinWatch.dashboard/internal/config"
	"PenguinWatch.dashboard/internal/controller"
	"PenguinWatch.dashboard/internal/logging"
	"PenguinWatch.dashboard/internal/metrics"
	"PenguinWatch.dashboard/internal/middleware"
	"PenguinWatch.dashboard/internal/relay"
	"PenguinWatch.dashboard/internal/report"
	"PenguinWatch.dashboard/internal/repository"
	"PenguinWatch.dashboard/internal/routes"
	"PenguinWatch.dashboard/internal/service"
	"PenguinWatch.dashboard/internal/stream"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLog := logging.New("info", "", os.Stderr)
		bootLog.Fatal().Err(err).Msg("Error loading configuration")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	zlog.Logger = logging.Component(log, "http")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("server stopped")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	m := metrics.New()
	client := backend.NewClient(cfg.BackendURL, backend.WithMetrics(m), backend.WithTimeout(cfg.RequestTimeout))

	store, err := cache.Open(ctx, cfg.CacheOptions())
	if err != nil {
		return err
	}
	defer store.Close()
	snaps := cache.NewSnapshots(store, logging.Component(log, "cache"), m)

	var opts []service.Option
	if cfg.InfluxEnabled() {
		repo := repository.NewInfluxDBRepository(cfg.InfluxDBURL, cfg.InfluxDBToken, cfg.InfluxDBOrg, cfg.InfluxDBBucket, logging.Component(log, "archive"))
		defer repo.Close()
		if err := repo.EnsureBucket(ctx); err != nil {
			log.Warn().Err(err).Str("bucket", cfg.InfluxDBBucket).Msg("could not prepare measurement archive")
		}
		opts = append(opts, service.WithArchiver(repo))
	}
	if cfg.KafkaEnabled() {
		pub := relay.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer pub.Close()
		opts = append(opts, service.WithPublisher(pub))
	}

	dash := service.NewDashboard(client, snaps, logging.Component(log, "dashboard"), opts...)
	if err := dash.Seed(ctx); err != nil {
		log.Warn().Err(err).Msg("initial penguin load failed")
	}
	if err := dash.LoadGlobal(ctx); err != nil {
		log.Warn().Err(err).Msg("initial global load failed")
	}

	listener := stream.NewListener(client.OpenStream, dash.HandleEvent, cfg.StreamPolicy(), logging.Component(log, "stream"), m)
	listener.OnConnect = func() { log.Info().Str("url", client.StreamURL()).Msg("connected to live updates") }
	go func() {
		if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("live updates stopped")
		}
	}()

	sink, err := blob.Open(ctx, cfg.ExportSink(""))
	if err != nil {
		return err
	}

	requireAuth, err := middleware.EnsureValidToken(middleware.AuthConfig{
		Secret:   cfg.AuthJWTSecret,
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
	}, logging.Component(log, "auth"))
	if err != nil {
		return err
	}

	router := routes.SetupRouter(routes.Deps{
		Dashboard:   controller.NewDashboardController(dash, logging.Component(log, "api")),
		Reports:     controller.NewReportController(client, report.NewRasterPDF(), sink, m, logging.Component(log, "reports")),
		Metrics:     m,
		RequireAuth: requireAuth,
		Logger:      middleware.RequestLogger(logging.Component(log, "http")),
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID", "X-Client-ID"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("backend", cfg.BackendURL).Msg("Server is running")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
