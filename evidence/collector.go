// Package evidence gathers the web evidence a report is written from. It
// decides whether search is needed, runs searches with page extraction, and
// performs the bounded gap and claim checks used while writing.
package evidence

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hassan-khan-web/ScholarForge/llm"
	"github.com/hassan-khan-web/ScholarForge/model"
	"github.com/hassan-khan-web/ScholarForge/prompts"
	"github.com/hassan-khan-web/ScholarForge/search"
	"github.com/hassan-khan-web/ScholarForge/source"
)

// Search purposes reported to the observer.
const (
	PurposeCollect = "collect"
	PurposeGap     = "gap"
	PurposeVerify  = "verify"
)

// Fetcher returns the readable text of a page, or "" when it cannot.
type Fetcher interface {
	FetchAndExtract(ctx context.Context, url string) string
}

// SearchEvent describes one provider search.
type SearchEvent struct {
	Provider string
	Purpose  string
	Results  int
	Duration time.Duration
	Err      error
}

// Observer receives an event for every search.
type Observer interface {
	ObserveSearch(SearchEvent)
}

type nopObserver struct{}

func (nopObserver) ObserveSearch(SearchEvent) {}

// Config bounds the collector's searches.
type Config struct {
	// ResultCap is the number of results requested per main search.
	ResultCap int `json:"result_cap" yaml:"result_cap"`
	// ScrapeCap is how many of those results have their page fetched.
	ScrapeCap int `json:"scrape_cap" yaml:"scrape_cap"`
	// GapResultCap limits results from a gap re-search.
	GapResultCap int `json:"gap_result_cap" yaml:"gap_result_cap"`
	// VerifyResultCap limits results for a claim verification.
	VerifyResultCap int `json:"verify_result_cap" yaml:"verify_result_cap"`
}

// DefaultConfig returns the standard caps.
func DefaultConfig() Config {
	return Config{
		ResultCap:       5,
		ScrapeCap:       4,
		GapResultCap:    2,
		VerifyResultCap: 2,
	}
}

// Collector runs the evidence stage.
type Collector struct {
	invoker  llm.Invoker
	provider search.Provider
	fetcher  Fetcher
	cfg      Config
	logger   *slog.Logger
	observer Observer
}

// Option configures a Collector.
type Option func(*Collector)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collector) {
		c.logger = logger
	}
}

// WithObserver sets the search observer.
func WithObserver(o Observer) Option {
	return func(c *Collector) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithConfig overrides the default caps. Non-positive fields keep defaults.
func WithConfig(cfg Config) Option {
	return func(c *Collector) {
		def := DefaultConfig()
		c.cfg = Config{
			ResultCap:       positiveOr(cfg.ResultCap, def.ResultCap),
			ScrapeCap:       positiveOr(cfg.ScrapeCap, def.ScrapeCap),
			GapResultCap:    positiveOr(cfg.GapResultCap, def.GapResultCap),
			VerifyResultCap: positiveOr(cfg.VerifyResultCap, def.VerifyResultCap),
		}
	}
}

// NewCollector creates a collector. fetcher may be nil, in which case no
// pages are fetched and records carry snippets only.
func NewCollector(invoker llm.Invoker, provider search.Provider, fetcher Fetcher, opts ...Option) *Collector {
	c := &Collector{
		invoker:  invoker,
		provider: provider,
		fetcher:  fetcher,
		cfg:      DefaultConfig(),
		logger:   slog.Default(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AssessNeed decides whether live web search is required. When the decision
// call itself fails, search runs with the topic as the query.
func (c *Collector) AssessNeed(ctx context.Context, topic, existingContext string) Decision {
	res := c.invoker.Invoke(ctx, llm.Call{
		Role:        model.RoleDirector,
		System:      prompts.DirectorSystem,
		User:        prompts.NeedAssessmentPrompt(topic, existingContext),
		Temperature: 0.1,
		JSON:        true,
	})
	if res.Failed() {
		c.logger.Warn("Need assessment failed, searching with topic", "topic", topic, "error", res.Err)
		return Decision{Search: true, Query: topic}
	}

	d := ParseNeed(res.Content, topic)
	if !d.Structured {
		c.logger.Warn("Need assessment was not JSON, used free-text fallback",
			"model", res.Model, "search", d.Search)
	}
	return d
}

// Collect searches for query, fetches the leading result pages concurrently
// and appends the records to the bundle in rank order. It returns the
// appended records.
func (c *Collector) Collect(ctx context.Context, bundle *source.Bundle, query string) ([]source.Record, error) {
	records, err := c.search(ctx, PurposeCollect, query, c.cfg.ResultCap)
	if err != nil {
		return nil, err
	}
	c.extract(ctx, records, c.cfg.ScrapeCap)
	return bundle.Append(records...), nil
}

// GapCheck runs the one extra research round allowed for sectionKey. It
// returns the new records (already appended to the bundle) and whether a
// search ran. Callers place the returned records ahead of the base evidence.
func (c *Collector) GapCheck(ctx context.Context, bundle *source.Bundle, topic, sectionKey, evidence string) ([]source.Record, bool) {
	if !bundle.MarkResearched(sectionKey) {
		return nil, false
	}

	res := c.invoker.Invoke(ctx, llm.Call{
		Role:        model.RoleDirector,
		System:      prompts.DirectorSystem,
		User:        prompts.GapCheckPrompt(topic, sectionKey, evidence),
		Temperature: 0.1,
		JSON:        true,
	})
	if res.Failed() {
		c.logger.Debug("Gap check call failed, continuing without re-search",
			"section", sectionKey, "error", res.Err)
		return nil, false
	}

	d := ParseGap(res.Content, topic, sectionKey)
	if !d.Search {
		return nil, false
	}

	c.logger.Info("Recursive search triggered", "section", sectionKey, "query", d.Query)
	records, err := c.search(ctx, PurposeGap, d.Query, c.cfg.GapResultCap)
	if err != nil {
		c.logger.Warn("Gap search failed", "section", sectionKey, "query", d.Query, "error", err)
		return nil, true
	}
	c.extract(ctx, records, len(records))
	return bundle.Append(records...), true
}

// Verify runs a narrow snippet-only search for one claim and renders the
// result for the critique prompt.
func (c *Collector) Verify(ctx context.Context, claim string) string {
	claim = strings.TrimSpace(claim)
	if claim == "" {
		return ""
	}

	records, err := c.search(ctx, PurposeVerify, claim, c.cfg.VerifyResultCap)
	if err != nil {
		return fmt.Sprintf("CLAIM: %s\nVerification search failed: %v\n", claim, err)
	}
	if len(records) == 0 {
		return fmt.Sprintf("CLAIM: %s\nNo corroborating sources found.\n", claim)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "CLAIM: %s\n", claim)
	for _, r := range records {
		fmt.Fprintf(&sb, "- %s (%s): %s\n", r.Title, r.URL, r.Snippet)
	}
	return sb.String()
}

func (c *Collector) search(ctx context.Context, purpose, query string, limit int) ([]source.Record, error) {
	start := time.Now()
	records, err := c.provider.Search(ctx, query, limit)
	c.observer.ObserveSearch(SearchEvent{
		Provider: c.provider.Name(),
		Purpose:  purpose,
		Results:  len(records),
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		return nil, fmt.Errorf("%s search %q: %w", c.provider.Name(), query, err)
	}
	return records, nil
}

// extract fills Extract for the first n records in place. Each goroutine
// writes only its own index, so rank order is preserved.
func (c *Collector) extract(ctx context.Context, records []source.Record, n int) {
	if c.fetcher == nil {
		return
	}
	n = min(n, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, c.cfg.ScrapeCap))
	for i := range n {
		if records[i].URL == "" {
			continue
		}
		g.Go(func() error {
			records[i].Extract = c.fetcher.FetchAndExtract(gctx, records[i].URL)
			return nil
		})
	}
	_ = g.Wait()
}

func positiveOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
