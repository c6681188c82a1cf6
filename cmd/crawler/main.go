// Command crawler collects course material into the corpus file.
//
// Modes:
//
//	bfs      breadth-first crawl from crawler.startUrl
//	scan     walk the forum topic listing and append in-window topic URLs to
//	         the filtered-URL file
//	extract  fetch every filtered URL not yet in the corpus and append its
//	         article text
//	all      scan, then extract
//
// Usage:
//
//	go run ./cmd/crawler [-config configs/development.yaml] [-mode bfs] [-start URL] [-max N] [-await-login]
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

	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/crawler"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/crawler/datefilter"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/crawler/fetcher"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	mode := flag.String("mode", "bfs", "crawl mode: bfs|scan|extract|all")
	startURL := flag.String("start", "", "override crawler.startUrl")
	maxNew := flag.Int("max", 0, "override crawler.maxNewRecords")
	awaitLogin := flag.Bool("await-login", false, "pause for manual authentication before crawling")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *startURL != "" {
		cfg.Crawler.StartURL = *startURL
	}
	if *maxNew > 0 {
		cfg.Crawler.MaxNewRecords = *maxNew
	}
	if *awaitLogin {
		cfg.Crawler.Auth.AwaitLogin = true
	}

	logger.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting crawler", "mode", *mode, "corpus", cfg.Crawler.CorpusPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *mode); err != nil {
		slog.Error("crawler failed", "error", err)
		os.Exit(1)
	}
	slog.Info("crawler stopped")
}

func run(ctx context.Context, cfg *config.Config, mode string) error {
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		stopMetrics := metrics.StartServer(cfg.Metrics.Port, "crawler")
		defer stopMetrics()
	}

	session := fetcher.NewSession(cfg.Crawler.Auth.SessionCookie())
	if cfg.Crawler.Auth.AwaitLogin {
		loginURL := cfg.Crawler.Auth.LoginURL
		if loginURL == "" {
			loginURL = cfg.Crawler.StartURL
		}
		if err := session.AwaitLogin(ctx, loginURL, os.Stdin, os.Stdout); err != nil {
			return fmt.Errorf("awaiting login: %w", err)
		}
	}

	f := fetcher.New(cfg.Crawler, fetcher.WithSession(session))
	filter := datefilter.New(cfg.Crawler.Window.Start, cfg.Crawler.Window.End, cfg.Crawler.ExemptURLs)
	c := crawler.New(f, filter, crawler.Options{
		MaxVisitedPages: cfg.Crawler.MaxVisitedPages,
		Metrics:         m,
	})

	sink, err := newSink(ctx, cfg)
	if err != nil {
		return err
	}
	defer sink.close()

	switch mode {
	case "bfs":
		return crawlBFS(ctx, cfg, c, sink)
	case "scan":
		return scanListing(ctx, cfg, c)
	case "extract":
		return extractFiltered(ctx, cfg, c, sink)
	case "all":
		if err := scanListing(ctx, cfg, c); err != nil {
			return err
		}
		return extractFiltered(ctx, cfg, c, sink)
	default:
		return fmt.Errorf("unknown mode %q (want bfs|scan|extract|all)", mode)
	}
}

func crawlBFS(ctx context.Context, cfg *config.Config, c *crawler.Crawler, sink *sink) error {
	known, err := corpus.Load(cfg.Crawler.CorpusPath)
	if err != nil {
		return err
	}
	slog.Info("corpus loaded", "known_urls", len(known))

	batch, stats, crawlErr := c.Crawl(ctx, cfg.Crawler.StartURL, cfg.Crawler.MaxNewRecords, known)
	written, err := sink.persist(cfg.Crawler.CorpusPath, batch, known)
	if err != nil {
		return err
	}
	slog.Info("bfs crawl complete",
		"new_records", written,
		"visited", stats.Visited,
		"failed", stats.Failed,
		"filtered", stats.Filtered,
	)
	if crawlErr != nil && ctx.Err() == nil {
		return crawlErr
	}
	return nil
}

func scanListing(ctx context.Context, cfg *config.Config, c *crawler.Crawler) error {
	entries, err := corpus.LoadFiltered(cfg.Crawler.FilteredURLsPath)
	if err != nil {
		return err
	}
	collected := make(corpus.URLSet, len(entries))
	for _, e := range entries {
		collected.Add(e.URL)
	}

	found, scanErr := c.ScanListing(ctx, cfg.Crawler.Listing.URL, crawler.ListingOptions{
		MaxScrolls:   cfg.Crawler.Listing.MaxScrolls,
		AssumeSorted: cfg.Crawler.Listing.AssumeSorted,
	}, collected)
	if err := corpus.AppendFiltered(cfg.Crawler.FilteredURLsPath, found); err != nil {
		return err
	}
	slog.Info("listing scan complete", "new_urls", len(found), "path", cfg.Crawler.FilteredURLsPath)
	if scanErr != nil && ctx.Err() == nil {
		return scanErr
	}
	return nil
}

func extractFiltered(ctx context.Context, cfg *config.Config, c *crawler.Crawler, sink *sink) error {
	entries, err := corpus.LoadFiltered(cfg.Crawler.FilteredURLsPath)
	if err != nil {
		return err
	}
	known, err := corpus.Load(cfg.Crawler.CorpusPath)
	if err != nil {
		return err
	}

	batch, stats, extractErr := c.ExtractFiltered(ctx, entries, known, cfg.Crawler.Refilter, 0)
	written, err := sink.persist(cfg.Crawler.CorpusPath, batch, known)
	if err != nil {
		return err
	}
	slog.Info("article extraction complete",
		"new_records", written,
		"failed", stats.Failed,
		"duplicates", stats.Duplicates,
	)
	if extractErr != nil && ctx.Err() == nil {
		return extractErr
	}
	return nil
}

// sink appends to the corpus file and fans accepted records out to the
// optional Postgres mirror and Kafka topic.
type sink struct {
	mirror   *corpus.Mirror
	db       *postgres.Client
	events   *corpus.EventBatcher
	producer *kafka.Producer
	cancel   context.CancelFunc
}

func newSink(ctx context.Context, cfg *config.Config) (*sink, error) {
	s := &sink{}
	if cfg.Crawler.Mirror.Postgres {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connecting corpus mirror: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating corpus mirror: %w", err)
		}
		s.db = db
		s.mirror = corpus.NewMirror(db)
		slog.Info("postgres corpus mirror enabled", "host", cfg.Postgres.Host)
	}
	if cfg.Crawler.Mirror.Kafka {
		s.producer = kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CorpusRecords)
		s.events = corpus.NewEventBatcher(s.producer, 100, 2*time.Second)
		eventsCtx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.events.Start(eventsCtx)
		slog.Info("corpus record events enabled", "topic", cfg.Kafka.Topics.CorpusRecords)
	}
	return s, nil
}

// persist writes batch and returns how many records were new. Mirror and
// event failures are logged; the corpus file stays the source of truth.
func (s *sink) persist(path string, batch []corpus.Record, known corpus.URLSet) (int, error) {
	fresh, err := corpus.AppendNew(path, batch, known)
	if err != nil {
		return 0, err
	}
	if len(fresh) == 0 {
		return 0, nil
	}
	if s.mirror != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		n, err := s.mirror.Save(ctx, fresh)
		cancel()
		if err != nil {
			slog.Error("corpus mirror failed", "records", len(fresh), "error", err)
		} else {
			slog.Info("corpus mirrored", "inserted", n)
		}
	}
	if s.events != nil {
		s.events.Track(fresh)
	}
	return len(fresh), nil
}

func (s *sink) close() {
	if s.events != nil {
		s.cancel()
		s.events.Close()
		s.producer.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}
