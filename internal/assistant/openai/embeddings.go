package openai

import (
	"context"
	"fmt"
	"sort"

	apperrors "github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/errors"
)

type embeddingRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding of one text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.embed(ctx, text, 1)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in one request. The result is in input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return c.embed(ctx, texts, len(texts))
}

func (c *Client) embed(ctx context.Context, input any, want int) ([][]float32, error) {
	var resp embeddingResponse
	err := c.post(ctx, "embeddings", c.embedBreaker, apperrors.ErrEmbedding, "/embeddings",
		embeddingRequest{Model: c.embeddingModel, Input: input}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != want {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", apperrors.ErrEmbedding, want, len(resp.Data))
	}
	sort.SliceStable(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at position %d", apperrors.ErrEmbedding, i)
		}
		out[i] = d.Embedding
	}
	return out, nil
}
