package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDevelopmentConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "development.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, time.Second, cfg.Crawler.Delay)
	assert.Equal(t, time.Date(2025, 4, 14, 23, 59, 59, 0, time.UTC), cfg.Crawler.Window.End.UTC())
	assert.Equal(t, ModeVector, cfg.Retrieval.Mode)
	assert.Equal(t, 10*time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, "assistant.questions", cfg.Kafka.Topics.QuestionEvents)
	assert.Equal(t, []string{"/t/tds-references-guidelines/67216/5"}, cfg.Crawler.ExemptURLs)
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Crawler.MaxVisitedPages)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, "course-assistant:", cfg.Redis.KeyPrefix)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CA_SERVER_PORT", "9001")
	t.Setenv("CA_RETRIEVAL_MODE", ModeKeyword)
	t.Setenv("CA_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("CA_CRAWLER_WINDOW_START", "2025-02-01T00:00:00Z")
	t.Setenv("CA_CRAWLER_DELAY", "not-a-duration")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, ModeKeyword, cfg.Retrieval.Mode)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2, int(cfg.Crawler.Window.Start.Month()))
	assert.Equal(t, time.Second, cfg.Crawler.Delay, "unparseable overrides are ignored")
}

func TestValidateRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
crawler:
  maxNewRecords: 0
  window:
    start: 2025-04-01T00:00:00Z
    end: 2025-01-01T00:00:00Z
retrieval:
  mode: fuzzy
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maxNewRecords")
	assert.Contains(t, err.Error(), "window.end is before")
	assert.Contains(t, err.Error(), `"fuzzy"`)
}

func TestSecretsFallBackToEnv(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test")
	t.Setenv("TEST_COOKIE", "_t=abc")
	assert.Equal(t, "sk-test", OpenAIConfig{APIKeyEnv: "TEST_OPENAI_KEY"}.APIKeyValue())
	assert.Equal(t, "inline", OpenAIConfig{APIKey: "inline", APIKeyEnv: "TEST_OPENAI_KEY"}.APIKeyValue())
	assert.Equal(t, "_t=abc", AuthConfig{CookieEnv: "TEST_COOKIE"}.SessionCookie())
}
