// Package vectorstore is the client for the external vector store,
// treated as a black-box CRUD API over REST (Qdrant wire shape). It
// also owns the discipline around writes: payload sanitization, error
// classification, bounded retries, and the shared rate limiter that
// serializes all outbound upserts.
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Point is one upsert unit: a stable ID, its vector, and a sanitized
// payload.
type Point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

// SearchHit is one similarity-search result.
type SearchHit struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload,omitempty"`
}

// CollectionHealth is the store's view of one collection.
type CollectionHealth struct {
	Status             string `json:"status"`
	PointCount         int64  `json:"point_count"`
	SegmentCount       int64  `json:"segment_count"`
	IndexedVectorCount int64  `json:"indexed_vector_count"`
	OptimizerStatus    string `json:"optimizer_status"`
}

// Client talks to one vector-store instance.
type Client struct {
	baseURL    string
	apiKey     string
	collection string
	http       *http.Client
}

// Config holds vector store client settings.
type Config struct {
	BaseURL    string
	APIKey     string
	Collection string
	TimeoutMS  int
}

// NewClient creates a store client.
func NewClient(cfg Config) *Client {
	timeout := 30 * time.Second
	if cfg.TimeoutMS > 0 {
		timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		http:       &http.Client{Timeout: timeout},
	}
}

// Collection returns the configured collection name.
func (c *Client) Collection() string {
	return c.collection
}

// EnsureCollection creates the collection if it does not exist.
func (c *Client) EnsureCollection(ctx context.Context, dimension int) error {
	names, err := c.GetCollections(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		if n == c.collection {
			return nil
		}
	}
	body := map[string]any{
		"vectors": map[string]any{"size": dimension, "distance": "Cosine"},
	}
	return c.do(ctx, http.MethodPut, "/collections/"+c.collection, body, nil)
}

// Upsert writes a batch of points. One call, one batch: chunk-level
// failures are the caller's concern, the store sees whole batches.
func (c *Client) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	body := map[string]any{"points": points}
	return c.do(ctx, http.MethodPut, "/collections/"+c.collection+"/points?wait=true", body, nil)
}

// Search runs a similarity query, optionally filtered by payload
// fields (exact matches).
func (c *Client) Search(ctx context.Context, vector []float32, limit int, filters map[string]string) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 10
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if len(filters) > 0 {
		var must []map[string]any
		for k, v := range filters {
			must = append(must, map[string]any{
				"key":   k,
				"match": map[string]any{"value": v},
			})
		}
		body["filter"] = map[string]any{"must": must}
	}

	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, "/collections/"+c.collection+"/points/search", body, &resp); err != nil {
		return nil, err
	}
	hits := make([]SearchHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, SearchHit{ID: fmt.Sprint(r.ID), Score: r.Score, Payload: r.Payload})
	}
	return hits, nil
}

// GetCollection fetches health metrics for the configured collection.
func (c *Client) GetCollection(ctx context.Context) (*CollectionHealth, error) {
	var resp struct {
		Result struct {
			Status          string `json:"status"`
			PointsCount     int64  `json:"points_count"`
			SegmentsCount   int64  `json:"segments_count"`
			IndexedVectors  int64  `json:"indexed_vectors_count"`
			OptimizerStatus any    `json:"optimizer_status"`
		} `json:"result"`
	}
	if err := c.do(ctx, http.MethodGet, "/collections/"+c.collection, nil, &resp); err != nil {
		return nil, err
	}
	opt := "unknown"
	switch v := resp.Result.OptimizerStatus.(type) {
	case string:
		opt = v
	case map[string]any:
		// Error form: {"error": "..."}
		if e, ok := v["error"].(string); ok {
			opt = "error: " + e
		}
	}
	return &CollectionHealth{
		Status:             resp.Result.Status,
		PointCount:         resp.Result.PointsCount,
		SegmentCount:       resp.Result.SegmentsCount,
		IndexedVectorCount: resp.Result.IndexedVectors,
		OptimizerStatus:    opt,
	}, nil
}

// GetCollections lists collection names.
func (c *Client) GetCollections(ctx context.Context) ([]string, error) {
	var resp struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if err := c.do(ctx, http.MethodGet, "/collections", nil, &resp); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(resp.Result.Collections))
	for _, col := range resp.Result.Collections {
		names = append(names, col.Name)
	}
	return names, nil
}

// DeleteCollection drops the configured collection.
func (c *Client) DeleteCollection(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/collections/"+c.collection, nil, nil)
}

// do runs one request and classifies failures into transient vs client
// error classes for the retry policy.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return &StoreError{Kind: KindClient, Op: method + " " + path, Err: err}
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return &StoreError{Kind: KindClient, Op: method + " " + path, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &StoreError{Kind: KindTransient, Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StoreError{
			Kind:   classifyStatus(resp.StatusCode),
			Op:     method + " " + path,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%s", strings.TrimSpace(string(data))),
		}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &StoreError{Kind: KindTransient, Op: method + " " + path, Err: fmt.Errorf("decoding response: %w", err)}
		}
	}
	return nil
}
