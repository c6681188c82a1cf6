// Command indexer embeds the corpus and writes the vector index file the
// assistant loads at startup.
//
// With -watch it stays up after the initial build, consumes corpus record
// events published by the crawler, and rebuilds once new records stop
// arriving.
//
// Usage:
//
//	go run ./cmd/indexer [-config configs/development.yaml] [-watch]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/assistant/openai"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	watch := flag.Bool("watch", false, "keep running and rebuild on corpus record events")
	debounce := flag.Duration("debounce", 30*time.Second, "quiet period before a watched rebuild")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer",
		"corpus", cfg.Crawler.CorpusPath,
		"index", cfg.Retrieval.IndexPath,
		"workers", cfg.Retrieval.BuildWorkers,
	)
	if cfg.OpenAI.APIKeyValue() == "" {
		slog.Error("no API key configured", "env", cfg.OpenAI.APIKeyEnv)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		stopMetrics := metrics.StartServer(cfg.Metrics.Port, "indexer")
		defer stopMetrics()
	}

	client := openai.New(cfg.OpenAI, openai.WithMetrics(m))
	builder := indexer.NewBuilder(client, indexer.Options{
		Workers: cfg.Retrieval.BuildWorkers,
		Metrics: m,
	})
	rebuild := func(ctx context.Context) error {
		_, err := builder.Run(ctx, cfg.Crawler.CorpusPath, cfg.Retrieval.IndexPath)
		return err
	}

	if err := rebuild(ctx); err != nil {
		slog.Error("index build failed", "error", err)
		if !*watch {
			os.Exit(1)
		}
	}
	if !*watch {
		return
	}

	rc := consumer.New(rebuild, *debounce)
	kafkaConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CorpusRecords, rc.HandleMessage())
	go rc.Run(ctx, 5*time.Second)

	slog.Info("indexer watching for corpus records",
		"topic", cfg.Kafka.Topics.CorpusRecords,
		"group", cfg.Kafka.ConsumerGroup,
		"debounce", *debounce,
	)
	if err := kafkaConsumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}
	slog.Info("indexer stopped")
}
