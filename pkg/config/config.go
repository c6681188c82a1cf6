// Package config loads and validates application configuration from YAML files
// with .env and environment-variable overrides. It provides typed structs for
// every subsystem (Server, Crawler, OpenAI, Retrieval, Postgres, Kafka, Redis,
// etc.).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Retrieval modes understood by the assistant.
const (
	ModeVector  = "vector"
	ModeKeyword = "keyword"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Crawler   CrawlerConfig   `yaml:"crawler"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               int           `yaml:"port"`
	ReadTimeout        time.Duration `yaml:"readTimeout"`
	WriteTimeout       time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout    time.Duration `yaml:"shutdownTimeout"`
	RateLimitPerMinute int           `yaml:"rateLimitPerMinute"`
}

// CrawlerConfig controls traversal bounds, politeness and the date window.
type CrawlerConfig struct {
	StartURL         string         `yaml:"startUrl"`
	MaxNewRecords    int            `yaml:"maxNewRecords"`
	MaxVisitedPages  int            `yaml:"maxVisitedPages"`
	Delay            time.Duration  `yaml:"delay"`
	UserAgent        string         `yaml:"userAgent"`
	RequestTimeout   time.Duration  `yaml:"requestTimeout"`
	RespectRobots    bool           `yaml:"respectRobots"`
	CorpusPath       string         `yaml:"corpusPath"`
	FilteredURLsPath string         `yaml:"filteredUrlsPath"`
	ExemptURLs       []string       `yaml:"exemptUrls"`
	Window           WindowConfig   `yaml:"window"`
	Listing          ListingConfig  `yaml:"listing"`
	Auth             AuthConfig     `yaml:"auth"`
	Refilter         bool           `yaml:"refilter"`
	Mirror           MirrorSettings `yaml:"mirror"`
}

// WindowConfig is the inclusive date window records must fall in.
type WindowConfig struct {
	Start time.Time `yaml:"start"`
	End   time.Time `yaml:"end"`
}

// ListingConfig controls the topic-listing scan.
type ListingConfig struct {
	URL          string `yaml:"url"`
	MaxScrolls   int    `yaml:"maxScrolls"`
	AssumeSorted bool   `yaml:"assumeSorted"`
}

// AuthConfig controls the authenticated session mode of the page fetcher.
type AuthConfig struct {
	AwaitLogin bool   `yaml:"awaitLogin"`
	LoginURL   string `yaml:"loginUrl"`
	Cookie     string `yaml:"cookie"`
	CookieEnv  string `yaml:"cookieEnv"`
}

// MirrorSettings toggles the optional side channels for accepted records.
type MirrorSettings struct {
	Postgres bool `yaml:"postgres"`
	Kafka    bool `yaml:"kafka"`
}

// OpenAIConfig describes the OpenAI-compatible upstream used for embeddings
// and chat completions.
type OpenAIConfig struct {
	BaseURL        string        `yaml:"baseUrl"`
	APIKey         string        `yaml:"apiKey"`
	APIKeyEnv      string        `yaml:"apiKeyEnv"`
	EmbeddingModel string        `yaml:"embeddingModel"`
	ChatModel      string        `yaml:"chatModel"`
	MaxTokens      int           `yaml:"maxTokens"`
	Temperature    float64       `yaml:"temperature"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxAttempts    int           `yaml:"maxAttempts"`
}

// RetrievalConfig controls how questions are matched against the corpus.
type RetrievalConfig struct {
	Mode          string `yaml:"mode"`
	TopK          int    `yaml:"topK"`
	KeywordTopK   int    `yaml:"keywordTopK"`
	IndexPath     string `yaml:"indexPath"`
	BuildWorkers  int    `yaml:"buildWorkers"`
	CacheAnswers  bool   `yaml:"cacheAnswers"`
	EmitAnalytics bool   `yaml:"emitAnalytics"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	CorpusRecords  string `yaml:"corpusRecords"`
	QuestionEvents string `yaml:"questionEvents"`
}

// RedisConfig holds Redis connection and answer-cache parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize  int           `yaml:"poolSize"`
	KeyPrefix string        `yaml:"keyPrefix"`
	CacheTTL  time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Port             int           `yaml:"port"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// Load reads a .env file (if present) and a YAML config file (if provided),
// then applies environment-variable overrides. Missing values fall back to
// defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// APIKeyValue returns the configured key, falling back to the named env var.
func (o OpenAIConfig) APIKeyValue() string {
	if o.APIKey != "" {
		return o.APIKey
	}
	if o.APIKeyEnv != "" {
		return os.Getenv(o.APIKeyEnv)
	}
	return ""
}

// SessionCookie returns the configured session cookie, falling back to the
// named env var.
func (a AuthConfig) SessionCookie() string {
	if a.Cookie != "" {
		return a.Cookie
	}
	if a.CookieEnv != "" {
		return os.Getenv(a.CookieEnv)
	}
	return ""
}

// Validate rejects configurations no component can run with.
func (c *Config) Validate() error {
	var problems []string
	if c.Crawler.MaxNewRecords <= 0 {
		problems = append(problems, "crawler.maxNewRecords must be positive")
	}
	if c.Crawler.MaxVisitedPages < 0 {
		problems = append(problems, "crawler.maxVisitedPages must not be negative")
	}
	w := c.Crawler.Window
	if !w.Start.IsZero() && !w.End.IsZero() && w.End.Before(w.Start) {
		problems = append(problems, "crawler.window.end is before crawler.window.start")
	}
	switch c.Retrieval.Mode {
	case ModeVector, ModeKeyword:
	default:
		problems = append(problems, fmt.Sprintf("retrieval.mode %q is not one of %s|%s", c.Retrieval.Mode, ModeVector, ModeKeyword))
	}
	if c.Retrieval.TopK <= 0 {
		problems = append(problems, "retrieval.topK must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// defaultConfig returns a Config with defaults suitable for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Crawler: CrawlerConfig{
			StartURL:         "https://tds.s-anand.net/#/2025-01/",
			MaxNewRecords:    50,
			MaxVisitedPages:  500,
			Delay:            time.Second,
			UserAgent:        "course-assistant-crawler/1.0",
			RequestTimeout:   20 * time.Second,
			CorpusPath:       "data/rag_dataset.jsonl",
			FilteredURLsPath: "data/filtered_urls.jsonl",
			ExemptURLs:       []string{"/t/tds-references-guidelines/67216/5"},
			Window: WindowConfig{
				Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2025, 4, 14, 23, 59, 59, 0, time.UTC),
			},
			Listing: ListingConfig{
				URL:          "https://discourse.onlinedegree.iitm.ac.in/c/courses/tds-kb/34",
				MaxScrolls:   8,
				AssumeSorted: true,
			},
			Auth: AuthConfig{
				CookieEnv: "CA_SESSION_COOKIE",
			},
		},
		OpenAI: OpenAIConfig{
			BaseURL:        "https://aipipe.org/openai/v1",
			APIKeyEnv:      "OPENAI_API_KEY",
			EmbeddingModel: "text-embedding-ada-002",
			ChatModel:      "gpt-4o-mini",
			MaxTokens:      256,
			Temperature:    0.2,
			Timeout:        30 * time.Second,
			MaxAttempts:    3,
		},
		Retrieval: RetrievalConfig{
			Mode:          ModeVector,
			TopK:          3,
			KeywordTopK:   2,
			IndexPath:     "data/corpus.vidx",
			BuildWorkers:  4,
			CacheAnswers:  true,
			EmitAnalytics: true,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "courseassistant",
			User:            "courseassistant",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "course-assistant",
			Topics: KafkaTopics{
				CorpusRecords:  "corpus.records",
				QuestionEvents: "assistant.questions",
			},
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			KeyPrefix: "course-assistant:",
			CacheTTL:  10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled:          true,
			Port:             9090,
			SnapshotInterval: time.Minute,
		},
	}
}

// applyEnvOverrides reads CA_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CA_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CA_CRAWLER_START_URL"); v != "" {
		cfg.Crawler.StartURL = v
	}
	if v := os.Getenv("CA_CRAWLER_MAX_NEW_RECORDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Crawler.MaxNewRecords = n
		}
	}
	if v := os.Getenv("CA_CRAWLER_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Crawler.Delay = d
		}
	}
	if v := os.Getenv("CA_CRAWLER_CORPUS_PATH"); v != "" {
		cfg.Crawler.CorpusPath = v
	}
	if v := os.Getenv("CA_CRAWLER_WINDOW_START"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			cfg.Crawler.Window.Start = t
		}
	}
	if v := os.Getenv("CA_CRAWLER_WINDOW_END"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			cfg.Crawler.Window.End = t
		}
	}
	if v := os.Getenv("CA_OPENAI_BASE_URL"); v != "" {
		cfg.OpenAI.BaseURL = v
	}
	if v := os.Getenv("CA_OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("CA_RETRIEVAL_MODE"); v != "" {
		cfg.Retrieval.Mode = v
	}
	if v := os.Getenv("CA_RETRIEVAL_INDEX_PATH"); v != "" {
		cfg.Retrieval.IndexPath = v
	}
	if v := os.Getenv("CA_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("CA_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("CA_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("CA_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("CA_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("CA_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CA_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("CA_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("CA_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CA_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
