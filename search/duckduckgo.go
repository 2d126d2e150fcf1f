package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hassan-khan-web/ScholarForge/source"
	"golang.org/x/net/html"
)

// DuckDuckGoEndpoint is the lite HTML interface, stable enough to scrape.
const DuckDuckGoEndpoint = "https://lite.duckduckgo.com/lite/"

const ddgUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DuckDuckGo scrapes DuckDuckGo's HTML results. It needs no key.
type DuckDuckGo struct {
	endpoint string
	opts     Options
	client   *http.Client
	interval time.Duration

	mu   sync.Mutex
	last time.Time
}

// NewDuckDuckGo creates a DuckDuckGo searcher limited to one query per second.
func NewDuckDuckGo(opts Options) *DuckDuckGo {
	return &DuckDuckGo{
		endpoint: DuckDuckGoEndpoint,
		opts:     opts,
		client:   opts.client(),
		interval: time.Second,
	}
}

// WithEndpoint points the provider at another URL.
func (d *DuckDuckGo) WithEndpoint(endpoint string) *DuckDuckGo {
	d.endpoint = endpoint
	return d
}

// Name returns "duckduckgo".
func (d *DuckDuckGo) Name() string { return ProviderDuckDuckGo }

// Search posts the query to the lite page and parses the result table.
func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int) ([]source.Record, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if err := d.wait(ctx); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("q", query)
	body := form.Encode()

	resp, err := doWithBackoff(ctx, d.opts, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", ddgUserAgent)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return d.client.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo: http %d", resp.StatusCode)
	}

	page, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: read response: %w", err)
	}

	records, err := parseDuckDuckGo(page)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: %w", err)
	}
	return rank(records, limit), nil
}

// wait enforces the per-instance query interval.
func (d *DuckDuckGo) wait(ctx context.Context) error {
	d.mu.Lock()
	delay := time.Until(d.last.Add(d.interval))
	if delay < 0 {
		delay = 0
	}
	d.last = time.Now().Add(delay)
	d.mu.Unlock()

	if delay == 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// parseDuckDuckGo reads result links and snippets from the lite page. The
// regular HTML page's result__a / result__snippet classes are accepted too.
func parseDuckDuckGo(page []byte) ([]source.Record, error) {
	doc, err := html.Parse(strings.NewReader(string(page)))
	if err != nil {
		return nil, err
	}

	var records []source.Record
	seen := make(map[string]bool)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "a" && (hasClass(n, "result-link") || hasClass(n, "result__a")):
				link := resolveDDGLink(attr(n, "href"))
				title := strings.TrimSpace(textOf(n))
				if link != "" && title != "" && !seen[link] {
					seen[link] = true
					records = append(records, source.Record{Title: title, URL: link})
				}
				return
			case hasClass(n, "result-snippet") || hasClass(n, "result__snippet"):
				if len(records) > 0 && records[len(records)-1].Snippet == "" {
					records[len(records)-1].Snippet = strings.Join(strings.Fields(textOf(n)), " ")
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return records, nil
}

// resolveDDGLink unwraps DuckDuckGo redirect links (/l/?uddg=<target>).
func resolveDDGLink(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Hostname(), "duckduckgo.com") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return href
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return sb.String()
}
