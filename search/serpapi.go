package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hassan-khan-web/ScholarForge/source"
)

// SerpAPIEndpoint is the SerpAPI JSON endpoint.
const SerpAPIEndpoint = "https://serpapi.com/search.json"

// SerpAPI queries Google through SerpAPI.
type SerpAPI struct {
	apiKey   string
	endpoint string
	opts     Options
	client   *http.Client
}

// NewSerpAPI constructs a SerpAPI provider.
func NewSerpAPI(apiKey string, opts Options) *SerpAPI {
	return &SerpAPI{
		apiKey:   apiKey,
		endpoint: SerpAPIEndpoint,
		opts:     opts,
		client:   opts.client(),
	}
}

// WithEndpoint points the provider at another URL.
func (s *SerpAPI) WithEndpoint(endpoint string) *SerpAPI {
	s.endpoint = endpoint
	return s
}

// Name returns "serpapi".
func (s *SerpAPI) Name() string { return ProviderSerpAPI }

// Search runs a Google query and returns the organic results.
func (s *SerpAPI) Search(ctx context.Context, query string, limit int) ([]source.Record, error) {
	if strings.TrimSpace(s.apiKey) == "" {
		return nil, fmt.Errorf("serpapi: %w", ErrNoKey)
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("engine", "google")
	params.Set("location", "US")
	params.Set("hl", "en")
	params.Set("gl", "us")
	params.Set("api_key", s.apiKey)
	if limit > 0 {
		params.Set("num", strconv.Itoa(limit))
	}
	target := s.endpoint + "?" + params.Encode()

	resp, err := doWithBackoff(ctx, s.opts, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		return s.client.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("serpapi: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serpapi: http %d", resp.StatusCode)
	}

	var response struct {
		Error          string `json:"error"`
		OrganicResults []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic_results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("serpapi: decode: %w", err)
	}
	if response.Error != "" && len(response.OrganicResults) == 0 {
		return nil, fmt.Errorf("serpapi: %s", response.Error)
	}

	records := make([]source.Record, 0, len(response.OrganicResults))
	for _, r := range response.OrganicResults {
		records = append(records, source.Record{Title: r.Title, URL: r.Link, Snippet: r.Snippet})
	}
	return rank(records, limit), nil
}
