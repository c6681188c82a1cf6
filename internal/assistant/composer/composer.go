// Package composer answers a question from retrieved course material:
// embed the question, rank context passages, and ask the generator for a
// grounded answer. Upstream failures never escape; they become the answer
// text of a well-formed payload.
package composer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/assistant/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/tracing"
)

// SystemPrompt frames every generation request.
const SystemPrompt = "You are a helpful assistant for the IITM TDS course."

// DefaultTopK is the number of context passages used per question.
const DefaultTopK = 3

// Outcome classifies how an answer was produced.
type Outcome string

const (
	OutcomeOK              Outcome = "ok"
	OutcomeEmbeddingError  Outcome = "embedding_error"
	OutcomeRetrievalError  Outcome = "retrieval_error"
	OutcomeGenerationError Outcome = "generation_error"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever ranks corpus passages for a query vector.
type Retriever interface {
	Rank(ctx context.Context, query []float32, k int) ([]ranker.Hit, error)
}

// Generator produces an answer from a system and a user prompt, with an
// optional base64 image.
type Generator interface {
	Generate(ctx context.Context, system, user, image string) (string, error)
}

// Payload is the response body of the question endpoint.
type Payload struct {
	Answer string        `json:"answer"`
	Links  []ranker.Link `json:"links"`
}

// Result is a payload plus what the caller needs for caching and analytics.
type Result struct {
	Payload
	Outcome Outcome
	Hits    int
}

// Composer is stateless across requests and safe for concurrent use.
type Composer struct {
	embedder  Embedder
	retriever Retriever
	generator Generator
	topK      int
	metrics   *metrics.Metrics
}

func New(embedder Embedder, retriever Retriever, generator Generator, topK int, m *metrics.Metrics) *Composer {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Composer{
		embedder:  embedder,
		retriever: retriever,
		generator: generator,
		topK:      topK,
		metrics:   m,
	}
}

// BuildPrompt renders the grounded user prompt.
func BuildPrompt(context, question string) string {
	return SystemPrompt + " Use the following context to answer the user's question.\n\n" +
		"Context:\n" + context + "\n\nQuestion: " + question + "\nAnswer:"
}

// Answer runs the embed, rank and generate steps once each. It always
// returns a payload; a failed step short-circuits with an error message as
// the answer and no links.
func (c *Composer) Answer(ctx context.Context, question, image string) Result {
	log := logger.FromContext(ctx).With("component", "composer")
	ctx, span := tracing.StartSpan(ctx, "answer", logger.RequestID(ctx))
	defer span.Finish(log)
	span.SetAttr("has_image", image != "")

	log.Info("answering question", "question_chars", len(question), "has_image", image != "")

	vec, err := c.embed(ctx, question)
	if err != nil {
		span.RecordError(err)
		log.Error("embedding failed", "error", err)
		return c.fail(OutcomeEmbeddingError, fmt.Sprintf("Embedding error: %v", err))
	}

	hits, err := c.rank(ctx, vec)
	if err != nil {
		span.RecordError(err)
		log.Error("retrieval failed", "error", err)
		return c.fail(OutcomeRetrievalError, fmt.Sprintf("Index error: %v", err))
	}
	if c.metrics != nil {
		c.metrics.RetrievedHits.Observe(float64(len(hits)))
	}
	log.Info("retrieved context", "hits", len(hits))

	answer, err := c.generate(ctx, BuildPrompt(ranker.Context(hits), question), image)
	if err != nil {
		span.RecordError(err)
		log.Error("generation failed", "error", err)
		return c.fail(OutcomeGenerationError, generationMessage(err))
	}

	links := ranker.Links(hits)
	log.Info("answer composed", "links", len(links))
	c.observe(OutcomeOK)
	return Result{
		Payload: Payload{Answer: answer, Links: links},
		Outcome: OutcomeOK,
		Hits:    len(hits),
	}
}

func (c *Composer) embed(ctx context.Context, question string) ([]float32, error) {
	ctx, span := tracing.StartChildSpan(ctx, "embed")
	defer span.End()
	return c.embedder.Embed(ctx, question)
}

func (c *Composer) rank(ctx context.Context, vec []float32) ([]ranker.Hit, error) {
	ctx, span := tracing.StartChildSpan(ctx, "search")
	defer span.End()
	hits, err := c.retriever.Rank(ctx, vec, c.topK)
	span.SetAttr("hits", len(hits))
	return hits, err
}

func (c *Composer) generate(ctx context.Context, prompt, image string) (string, error) {
	ctx, span := tracing.StartChildSpan(ctx, "generate")
	defer span.End()
	start := time.Now()
	out, err := c.generator.Generate(ctx, SystemPrompt, prompt, image)
	span.SetAttr("latency_ms", time.Since(start).Milliseconds())
	return out, err
}

func (c *Composer) fail(outcome Outcome, message string) Result {
	c.observe(outcome)
	return Result{
		Payload: Payload{Answer: message, Links: []ranker.Link{}},
		Outcome: outcome,
	}
}

func (c *Composer) observe(outcome Outcome) {
	if c.metrics != nil {
		c.metrics.AnswersTotal.WithLabelValues(string(outcome)).Inc()
	}
}

// generationMessage renders an upstream reply as "Error: {status} {body}".
func generationMessage(err error) string {
	var upstream *apperrors.UpstreamError
	if errors.As(err, &upstream) {
		return fmt.Sprintf("Error: %d %s", upstream.Status, upstream.Body)
	}
	return fmt.Sprintf("Error: %v", err)
}
