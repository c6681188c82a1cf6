package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/resilience"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := config.OpenAIConfig{
		BaseURL:        srv.URL + "/v1/",
		APIKey:         "sk-test",
		EmbeddingModel: "text-embedding-ada-002",
		ChatModel:      "gpt-4o-mini",
		MaxTokens:      256,
		Temperature:    0.2,
		Timeout:        2 * time.Second,
	}
	c := New(cfg, WithRetry(resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}))
	return c, srv
}

func TestEmbed(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-ada-002", req["model"])
		assert.Equal(t, "hello", req["input"])
		w.Write([]byte(`{"data":[{"index":0,"embedding":[0.1,0.2,0.3]}]}`))
	})

	v, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, v)
}

func TestEmbedBatchRestoresOrder(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"index":1,"embedding":[2]},{"index":0,"embedding":[1]}]}`))
	})
	vs, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}}, vs)
}

func TestGenerateWithImage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var req struct {
			Model       string  `json:"model"`
			MaxTokens   int     `json:"max_tokens"`
			Temperature float64 `json:"temperature"`
			Messages    []struct {
				Role    string          `json:"role"`
				Content json.RawMessage `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.Equal(t, 256, req.MaxTokens)
		assert.InDelta(t, 0.2, req.Temperature, 1e-9)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, `"sys"`, string(req.Messages[0].Content))

		var parts []contentPart
		require.NoError(t, json.Unmarshal(req.Messages[1].Content, &parts))
		require.Len(t, parts, 2)
		assert.Equal(t, "user prompt", parts[0].Text)
		assert.Equal(t, "data:image/webp;base64,QUJD", parts[1].ImageURL.URL)

		w.Write([]byte(`{"choices":[{"message":{"content":"the answer"}}]}`))
	})

	out, err := c.Generate(context.Background(), "sys", "user prompt", "QUJD")
	require.NoError(t, err)
	assert.Equal(t, "the answer", out)
}

func TestGenerateServerErrorIsRetriedThenSurfaced(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	})

	_, err := c.Generate(context.Background(), "sys", "q", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrGeneration))
	var upstream *apperrors.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusInternalServerError, upstream.Status)
	assert.Equal(t, "upstream exploded", upstream.Body)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	})

	_, err := c.Embed(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrEmbedding))
	assert.Equal(t, int32(1), calls.Load())
}

func TestImageDataURL(t *testing.T) {
	assert.Equal(t, "data:image/webp;base64,abc", ImageDataURL("abc"))
	assert.Equal(t, "data:image/png;base64,abc", ImageDataURL("data:image/png;base64,abc"))
}
