package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/hassan-khan-web/ScholarForge/source"
)

// TavilyEndpoint is the Tavily search API.
const TavilyEndpoint = "https://api.tavily.com/search"

// Tavily calls the Tavily search API.
type Tavily struct {
	apiKey   string
	endpoint string
	depth    string
	opts     Options
	client   *http.Client
}

// NewTavily constructs a Tavily search provider.
func NewTavily(apiKey string, opts Options) *Tavily {
	return &Tavily{
		apiKey:   apiKey,
		endpoint: TavilyEndpoint,
		depth:    "basic",
		opts:     opts,
		client:   opts.client(),
	}
}

// WithEndpoint points the provider at another URL.
func (t *Tavily) WithEndpoint(endpoint string) *Tavily {
	t.endpoint = endpoint
	return t
}

// Name returns "tavily".
func (t *Tavily) Name() string { return ProviderTavily }

// Search posts a query to Tavily.
func (t *Tavily) Search(ctx context.Context, query string, limit int) ([]source.Record, error) {
	if strings.TrimSpace(t.apiKey) == "" {
		return nil, fmt.Errorf("tavily: %w", ErrNoKey)
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	payload, err := json.Marshal(map[string]any{
		"query":        query,
		"api_key":      t.apiKey,
		"search_depth": t.depth,
		"max_results":  limit,
	})
	if err != nil {
		return nil, err
	}

	resp, err := doWithBackoff(ctx, t.opts, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return t.client.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("tavily: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily: http %d", resp.StatusCode)
	}

	var response struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("tavily: decode: %w", err)
	}

	records := make([]source.Record, 0, len(response.Results))
	for _, r := range response.Results {
		records = append(records, source.Record{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	return rank(records, limit), nil
}
