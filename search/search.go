// Package search finds and fetches web evidence: search providers return
// ranked results, and the fetcher turns result pages into bounded text.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/hassan-khan-web/ScholarForge/source"
)

// Provider returns up to limit results for a query.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Search runs the query. Ranks in the returned records start at 1.
	Search(ctx context.Context, query string, limit int) ([]source.Record, error)
}

// ErrNoKey is returned when a provider's API key is missing.
var ErrNoKey = errors.New("search API key is not set")

// ErrEmptyQuery is returned for blank queries.
var ErrEmptyQuery = errors.New("query is empty")

// Options configures provider construction.
type Options struct {
	// Timeout bounds each provider request.
	Timeout time.Duration

	// MaxRetryElapsed bounds the total time spent retrying 429 responses.
	MaxRetryElapsed time.Duration

	// RetryInitial is the first backoff interval after a 429.
	RetryInitial time.Duration

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// DefaultOptions returns provider options used when none are configured.
func DefaultOptions() Options {
	return Options{
		Timeout:         15 * time.Second,
		MaxRetryElapsed: 30 * time.Second,
		RetryInitial:    time.Second,
	}
}

func (o Options) client() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// Provider names accepted by New.
const (
	ProviderAuto       = "auto"
	ProviderTavily     = "tavily"
	ProviderSerpAPI    = "serpapi"
	ProviderDuckDuckGo = "duckduckgo"
)

// Names lists the concrete provider names.
func Names() []string {
	names := []string{ProviderTavily, ProviderSerpAPI, ProviderDuckDuckGo}
	sort.Strings(names)
	return names
}

// New builds the named provider with keys taken from the environment.
// "auto" (or "") picks the first provider whose key is set, falling back to
// DuckDuckGo, which needs none.
func New(name string, opts Options) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ProviderAuto, "":
		if key := tavilyKey(); key != "" {
			return NewTavily(key, opts), nil
		}
		if key := os.Getenv("SERPAPI_KEY"); key != "" {
			return NewSerpAPI(key, opts), nil
		}
		return NewDuckDuckGo(opts), nil
	case ProviderTavily:
		key := tavilyKey()
		if key == "" {
			return nil, fmt.Errorf("tavily: %w (TAVILY_API_KEY)", ErrNoKey)
		}
		return NewTavily(key, opts), nil
	case ProviderSerpAPI:
		key := os.Getenv("SERPAPI_KEY")
		if key == "" {
			return nil, fmt.Errorf("serpapi: %w (SERPAPI_KEY)", ErrNoKey)
		}
		return NewSerpAPI(key, opts), nil
	case ProviderDuckDuckGo:
		return NewDuckDuckGo(opts), nil
	default:
		return nil, fmt.Errorf("unknown search provider %q (want one of %s)", name, strings.Join(Names(), ", "))
	}
}

func tavilyKey() string {
	if key := os.Getenv("TAVILY_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("SERP_KEY")
}

// rank numbers records from 1 and applies the limit.
func rank(records []source.Record, limit int) []source.Record {
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	for i := range records {
		records[i].Rank = i + 1
	}
	return records
}
