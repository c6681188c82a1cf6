// Command analytics consumes question events from Kafka, aggregates them in
// memory (volume, outcomes, latency percentiles, top questions, questions that
// found no links) and serves the result at GET /api/v1/analytics.
//
// With -history the aggregate is also snapshotted to Postgres on
// metrics.snapshotInterval and served at GET /api/v1/analytics/snapshots.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml] [-port 8082] [-history]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	port := flag.Int("port", 8082, "HTTP port for the analytics API")
	history := flag.Bool("history", false, "persist periodic snapshots to Postgres")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", *port, "topic", cfg.Kafka.Topics.QuestionEvents)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.QuestionEvents, analytics.HandleEvent(agg))
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("question event consumer stopped", "error", err)
		}
	}()

	checker := health.NewChecker("analytics")
	checker.Register("kafka", health.Info(func() string {
		processed, skipped := consumer.Counts()
		return fmt.Sprintf("%d events processed, %d skipped", processed, skipped)
	}))

	var snapshots analytics.SnapshotLister
	if *history {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			slog.Error("failed to migrate schema", "error", err)
			os.Exit(1)
		}
		store := aggregator.NewStore(db)
		store.StartPeriodicSave(ctx, agg, cfg.Metrics.SnapshotInterval)
		snapshots = store
		checker.Register("postgres", health.Ping(db.Ping, false))
		slog.Info("snapshot history enabled", "interval", cfg.Metrics.SnapshotInterval)
	}

	h := analytics.NewHandler(agg, snapshots)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshots", h.Snapshots)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}
