// Package narrative talks to the external narrative search service. The
// service indexes a person's event history; the rule engine uses it for
// history-based conditions and treats it as best-effort.
package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/personakit/personakit/internal/rules"
)

// Client is an HTTP client for the narrative search API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client. timeout bounds each request; the rule engine
// layers its own per-evaluation deadline on top.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type searchRequest struct {
	PersonID   string   `json:"person_id"`
	Query      string   `json:"query"`
	EventTypes []string `json:"event_types,omitempty"`
	Limit      int      `json:"limit"`
}

type searchResponse struct {
	Results []rules.SearchResult `json:"results"`
}

// Search finds narrative events matching the query.
func (c *Client) Search(ctx context.Context, personID, query string, eventTypes []string, limit int) ([]rules.SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}
	body, err := json.Marshal(searchRequest{
		PersonID:   personID,
		Query:      query,
		EventTypes: eventTypes,
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("narrative search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("narrative search returned status %d", resp.StatusCode)
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return decoded.Results, nil
}
