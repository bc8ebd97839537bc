package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"venuebook/internal/api"
	"venuebook/internal/availability"
	"venuebook/internal/catalog"
	"venuebook/internal/config"
	"venuebook/internal/database"
	"venuebook/internal/db"
	"venuebook/internal/events"
	"venuebook/internal/metrics"
	"venuebook/internal/reservation"
	"venuebook/internal/schedule"
	"venuebook/internal/seed"
)

func main() {
	cfg, err := config.Load(os.Getenv("VENUEBOOK_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid venue timezone")
	}

	store, err := db.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewEventBus()
	if cfg.AMQP.URL != "" {
		forwarder := events.NewAMQPForwarder(cfg.AMQP.URL, cfg.AMQP.Queue, cfg.AMQP.BufferSize, &logger)
		forwarder.Attach(bus)
		forwarderDone := make(chan struct{})
		go func() {
			defer close(forwarderDone)
			forwarder.Run(ctx)
		}()
		defer func() {
			stop()
			<-forwarderDone
			_ = forwarder.Close()
		}()
	}

	cat := catalog.NewService(store, &logger)
	schedules := schedule.NewService(store, loc, &logger)
	resolver := availability.NewResolver(schedules, store, loc, &logger)
	ledger := reservation.NewLedger(store, resolver, loc, &logger,
		reservation.WithCancellationWindow(cfg.CancellationWindow()),
		reservation.WithPublisher(bus),
	)

	if cfg.Venue.SeedPath != "" {
		seeder := seed.NewSeeder(cat, schedules, &logger)
		if err := config.WatchVenue(ctx, cfg.Venue.SeedPath, cfg.SeedWatchInterval(), &logger, func(venue *config.VenueConfig) {
			sum, err := seeder.Apply(ctx, venue)
			if err != nil {
				logger.Error().Err(err).Msg("failed to apply venue seed")
				return
			}
			logger.Info().
				Int("blocks_created", sum.BlocksCreated).
				Int("days_configured", sum.DaysConfigured).
				Int("holidays_added", sum.HolidaysAdded).
				Msg("venue seed applied")
		}); err != nil {
			logger.Error().Err(err).Str("path", cfg.Venue.SeedPath).Msg("venue seed watch failed")
		}
	}

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
	}

	var limiter *api.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = api.NewRateLimiter(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, &logger)
		if err := limiter.TrustProxies(cfg.RateLimit.TrustedProxies...); err != nil {
			logger.Fatal().Err(err).Msg("invalid rate_limit.trusted_proxies")
		}
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, store, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	backup := database.NewBackupService(store, database.BackupConfig{
		Enabled:       cfg.Backup.Enabled,
		Interval:      cfg.BackupInterval(),
		StoragePath:   cfg.Backup.Path,
		RetentionDays: cfg.Backup.RetentionDays,
	}, &logger)
	go backup.Start(ctx)

	server := api.NewHTTPServer(api.Options{
		Port:            cfg.HTTP.Port,
		APIKey:          cfg.HTTP.APIKey,
		JWTSecret:       cfg.HTTP.JWTSecret,
		ReadTimeout:     time.Duration(cfg.HTTP.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:    time.Duration(cfg.HTTP.WriteTimeoutSeconds) * time.Second,
		MaxCalendarDays: cfg.Booking.MaxCalendarDays,
		Location:        loc,
		Limiter:         limiter,
	}, api.Services{
		Catalog:      cat,
		Schedules:    schedules,
		Availability: resolver,
		Reservations: ledger,
	}, &logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	logger.Info().Str("timezone", loc.String()).Msg("venuebook started")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("api server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api shutdown error")
	}
	logger.Info().Msg("venuebook stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	if cfg.Log.Format == "json" {
		out = os.Stdout
	}
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func startHealthServer(ctx context.Context, port int, store *db.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := store.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	serve(ctx, port, mux, "health", logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	serve(ctx, port, mux, "metrics", logger)
}

func serve(ctx context.Context, port int, handler http.Handler, name string, logger *zerolog.Logger) {
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Str("server", name).Msg("server error")
	}
}
