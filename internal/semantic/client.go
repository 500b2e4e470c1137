package semantic

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

// Query is one natural-language search against the index.
type Query struct {
	Text       string `json:"query"`
	Method     string `json:"method,omitempty"`
	TopK       int    `json:"topK"`
	DocumentID string `json:"documentId,omitempty"`
}

// Passage is one ranked result returned by the index.
type Passage struct {
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	DocumentID string  `json:"documentId,omitempty"`
}

// Searcher is the semantic index abstraction used by the detection pipeline.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Passage, error)
}

// Client queries a semantic search service over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a client for the index at baseURL. apiKey may be empty.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Search issues one query and returns the ranked passages.
func (c *Client) Search(ctx context.Context, q Query) ([]Passage, error) {
	if q.TopK <= 0 {
		q.TopK = 5
	}

	payload, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("marshaling query: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if httpResp.StatusCode != 200 {
		return nil, fmt.Errorf("search error (status %d): %s", httpResp.StatusCode, string(respBody))
	}

	var result searchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return result.Results, nil
}

type searchResponse struct {
	Results []Passage `json:"results"`
}
