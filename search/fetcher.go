package search

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// FetchConfig configures page fetching.
type FetchConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	UserAgent    string
	MaxBodyBytes int64
	ExtractCap   int

	// AllowPrivate permits loopback and private-network targets.
	AllowPrivate bool
}

// DefaultFetchConfig returns the fetch settings used when none are configured.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		Timeout:      10 * time.Second,
		MaxRedirects: 5,
		UserAgent:    "Mozilla/5.0 (compatible; ScholarForge/1.0)",
		MaxBodyBytes: 2 << 20,
		ExtractCap:   DefaultExtractCap,
	}
}

// Fetcher downloads result pages and extracts their text.
type Fetcher struct {
	client    *http.Client
	cfg       FetchConfig
	extractor *Extractor
	logger    *slog.Logger
}

// NewFetcher creates a fetcher. Unless AllowPrivate is set, every resolved
// address is checked before connecting, including on redirects.
func NewFetcher(cfg FetchConfig, logger *slog.Logger) *Fetcher {
	def := DefaultFetchConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = def.MaxRedirects
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	if logger == nil {
		logger = slog.Default()
	}

	dialer := &net.Dialer{Timeout: cfg.Timeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   cfg.Timeout,
		ResponseHeaderTimeout: cfg.Timeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
	if !cfg.AllowPrivate {
		transport.DialContext = guardedDialer(dialer)
	}

	maxRedirects := cfg.MaxRedirects
	allowPrivate := cfg.AllowPrivate
	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects (max %d)", maxRedirects)
				}
				if err := ValidateURL(req.URL.String(), allowPrivate); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		},
		cfg:       cfg,
		extractor: NewExtractor(cfg.ExtractCap),
		logger:    logger,
	}
}

// FetchAndExtract returns the readable text of a page, or "" on any failure.
// PDFs and non-200 responses yield "".
func (f *Fetcher) FetchAndExtract(ctx context.Context, rawURL string) string {
	body, err := f.Fetch(ctx, rawURL)
	if err != nil {
		f.logger.Debug("Page fetch skipped", "url", rawURL, "error", err)
		return ""
	}
	return f.extractor.Extract(body)
}

// Fetch downloads an HTML page body.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := ValidateURL(rawURL, f.cfg.AllowPrivate); err != nil {
		return nil, err
	}
	if isPDFURL(rawURL) {
		return nil, fmt.Errorf("pdf links are not extracted")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mediaType == "application/pdf" {
		return nil, fmt.Errorf("pdf content is not extracted")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func isPDFURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}
