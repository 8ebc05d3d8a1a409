package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"monte/internal/access"
	"monte/internal/api"
	"monte/internal/audit"
	"monte/internal/booking"
	"monte/internal/config"
	"monte/internal/db"
	"monte/internal/events"
	"monte/internal/metrics"
	"monte/internal/session"
	"monte/internal/slots"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("MONTE_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	database, err := db.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	var (
		redisViews *session.RedisStore
		views      session.ViewStore = session.NewMemoryStore(cfg.SessionTTL())
	)
	if cfg.Redis.Address != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		redisViews = session.NewRedisStore(rdb, cfg.SessionTTL())
		views = session.NewFailoverStore(redisViews, views, &logger)
	}

	auth, err := access.NewService(cfg.Admin.Password, cfg.Admin.PasswordHash, cfg.AdminTokenTTL(), &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("admin access setup error")
	}

	bus := events.NewEventBus()
	events.Journal(bus, &logger)

	catalog := slots.NewCatalog(cfg.Schedule.StartHour, cfg.Schedule.EndHour, cfg.SlotStep())
	resets := booking.NewResetManager(database, views, bus, cfg.Location(), &logger)
	svc := booking.NewService(database, catalog, views, resets, auth, bus, &logger)

	server := api.NewHTTPServer(
		cfg.Server.Address,
		svc,
		session.NewManager(views),
		auth,
		audit.NewExporter(svc, &logger),
		api.Limits{PerSecond: cfg.RateLimit.PerSecond, Burst: cfg.RateLimit.Burst},
		&logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go resets.Run(ctx, cfg.ResetCheckInterval())

	backups := db.NewBackupService(database, db.BackupConfig{
		Enabled:       cfg.Backup.Enabled,
		Interval:      cfg.BackupInterval(),
		StoragePath:   cfg.Backup.Path,
		RetentionDays: cfg.Backup.RetentionDays,
	}, &logger)
	go backups.Start(ctx)

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, database, redisViews, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			logger.Error().Err(err).Msg("API shutdown error")
		}
	}()

	logger.Info().
		Strs("slots", catalog.Labels()).
		Str("timezone", cfg.Schedule.Timezone).
		Str("db", database.Path()).
		Bool("redis", redisViews != nil).
		Msg("MONTE booking engine started")

	if err := server.Start(); err != nil {
		logger.Fatal().Err(err).Msg("API server error")
	}
	logger.Info().Msg("MONTE booking engine stopped")
}

func startHealthServer(ctx context.Context, port int, database *db.DB, redisViews *session.RedisStore, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := database.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if redisViews != nil {
			// Session hints fall back to memory; Redis is not required for readiness.
			if err := redisViews.Ping(ctxPing); err != nil {
				logger.Warn().Err(err).Msg("redis ping failed")
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
