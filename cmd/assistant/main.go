// Command assistant serves course questions over HTTP.
//
// At startup it loads the corpus (and, in vector mode, the index file built
// by cmd/indexer) into a read-only snapshot. Questions are accepted at / and
// /api/ as a JSON body or as query parameters and always answered with
// {answer, links}.
//
// Usage:
//
//	go run ./cmd/assistant [-config configs/development.yaml]
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
	"time"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/assistant"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/assistant/cache"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/assistant/composer"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/assistant/handler"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/assistant/keyword"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/assistant/openai"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/assistant/ranker"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/redis"
)

const timeoutBody = `{"answer":"Error: request timed out","links":[]}`

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting assistant service", "port", cfg.Server.Port, "mode", cfg.Retrieval.Mode)

	m := metrics.New()

	answerer, snap, err := buildAnswerer(cfg, m)
	if err != nil {
		slog.Error("failed to load snapshot", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var answerCache handler.AnswerCache
	var redisClient *pkgredis.Client
	if cfg.Retrieval.CacheAnswers {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, answer caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			answerCache = cache.New(redisClient, cfg.Redis.CacheTTL, cfg.Retrieval.Mode)
			slog.Info("answer cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var tracker handler.EventTracker
	if cfg.Retrieval.EmitAnalytics {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.QuestionEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, 10000)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector
		slog.Info("question analytics enabled", "topic", cfg.Kafka.Topics.QuestionEvents)
	}

	checker := health.NewChecker("assistant")
	checker.Register("snapshot", health.Info(func() string {
		return fmt.Sprintf("%d records, mode %s", len(snap.Records), cfg.Retrieval.Mode)
	}))
	var redisPing func(context.Context) error
	if redisClient != nil {
		redisPing = redisClient.Ping
	}
	checker.Register("redis", health.Ping(redisPing, true))

	h := handler.New(answerer, handler.Options{
		Cache:   answerCache,
		Tracker: tracker,
		Metrics: m,
		Mode:    cfg.Retrieval.Mode,
	})

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout, http.StatusOK, []byte(timeoutBody))(chain)
	chain = middleware.Metrics(m)(chain)
	if cfg.Server.RateLimitPerMinute > 0 {
		chain = middleware.RateLimit(middleware.NewLimiter(cfg.Server.RateLimitPerMinute, time.Minute))(chain)
	}
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout + cfg.Server.ShutdownTimeout,
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

	slog.Info("assistant service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("assistant service stopped")
}

// buildAnswerer wires the retrieval mode selected in config.
func buildAnswerer(cfg *config.Config, m *metrics.Metrics) (handler.Answerer, *assistant.Snapshot, error) {
	if cfg.Retrieval.Mode == config.ModeKeyword {
		snap, err := assistant.LoadCorpus(cfg.Crawler.CorpusPath)
		if err != nil {
			return nil, nil, err
		}
		return keyword.New(snap.Records, cfg.Retrieval.KeywordTopK), snap, nil
	}

	snap, err := assistant.LoadSnapshot(cfg.Crawler.CorpusPath, cfg.Retrieval.IndexPath)
	if err != nil {
		return nil, nil, err
	}
	if cfg.OpenAI.APIKeyValue() == "" {
		slog.Warn("no API key configured; every answer will report an upstream error", "env", cfg.OpenAI.APIKeyEnv)
	}
	client := openai.New(cfg.OpenAI, openai.WithMetrics(m))
	return composer.New(client, ranker.New(snap.Index, snap.Records), client, cfg.Retrieval.TopK, m), snap, nil
}
