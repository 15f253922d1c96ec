// Package embedding wraps the external embedding service behind a
// small client: texts in, fixed-dimension vectors out, one per input,
// in input order. The service itself is a black box — any
// OpenAI-compatible embeddings endpoint works.
package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Config holds embedding client settings.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
	TimeoutMS int
}

// Client calls the embedding service.
type Client struct {
	api       *openai.Client
	model     openai.EmbeddingModel
	dimension int
}

// NewClient creates a client for an OpenAI-compatible embeddings
// endpoint.
func NewClient(cfg Config) *Client {
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	httpClient := &http.Client{}
	if cfg.TimeoutMS > 0 {
		httpClient.Timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	c.HTTPClient = httpClient

	return &Client{
		api:       openai.NewClientWithConfig(c),
		model:     openai.EmbeddingModel(cfg.Model),
		dimension: cfg.Dimension,
	}
}

// Dimension returns the configured vector dimensionality.
func (c *Client) Dimension() int {
	return c.dimension
}

// Embed returns one vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	// The API reports each vector's input position; order by it rather
	// than trusting response order.
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding response: vector index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("embedding response: no vector for input %d", i)
		}
	}
	return out, nil
}
