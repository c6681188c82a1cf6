// Package ask is a terminal front end for the assistant's question API.
package ask

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/assistant/composer"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/assistant/handler"
)

// Client posts questions to a running assistant.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Ask sends question, with an optional base64 image, and decodes the reply.
// The assistant always answers 200; any other status is a transport problem.
func (c *Client) Ask(ctx context.Context, question, image string) (composer.Payload, error) {
	body, err := json.Marshal(handler.Request{Question: question, Image: image})
	if err != nil {
		return composer.Payload{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/", bytes.NewReader(body))
	if err != nil {
		return composer.Payload{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return composer.Payload{}, fmt.Errorf("asking %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return composer.Payload{}, fmt.Errorf("assistant returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var p composer.Payload
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return composer.Payload{}, fmt.Errorf("decoding answer: %w", err)
	}
	return p, nil
}

// EncodeImage reads a file and returns it base64 encoded for the image field.
func EncodeImage(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
