// Package websearch implements the web search provider: a DuckDuckGo HTML
// search with an optional bounded-concurrency page crawl that augments each
// result with fetched page content.
package websearch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const (
	searchTimeout = 30 * time.Second
	userAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	// DepthBasic returns snippets only; DepthAdvanced crawls result pages.
	DepthBasic    = "basic"
	DepthAdvanced = "advanced"
)

// Result is a single search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Request describes one search.
type Request struct {
	Query          string   `json:"query"`
	MaxResults     int      `json:"maxResults"`
	SearchDepth    string   `json:"searchDepth"`
	IncludeDomains []string `json:"includeDomains"`
	ExcludeDomains []string `json:"excludeDomains"`
}

// Response mirrors the advanced-search wire shape.
type Response struct {
	Results         []Result `json:"results"`
	Query           string   `json:"query"`
	Images          []string `json:"images"`
	NumberOfResults int      `json:"number_of_results"`
}

// Client performs web searches and page fetches.
type Client struct {
	httpClient *http.Client
	cache      *resultCache
	// maxCrawl bounds concurrent page fetches in advanced mode.
	maxCrawl int
	// crawlTimeout is the per-page fetch budget.
	crawlTimeout time.Duration
}

// NewClient creates a search client. maxCrawl <= 0 disables the advanced
// crawl augmentation.
func NewClient(maxCrawl int, crawlTimeout time.Duration) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: searchTimeout},
		cache:        newResultCache(500, 15*time.Minute),
		maxCrawl:     maxCrawl,
		crawlTimeout: crawlTimeout,
	}
}

// Search runs the query and returns filtered, optionally crawled results.
func (c *Client) Search(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, errors.New("query is required")
	}
	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	if maxResults > 30 {
		maxResults = 30
	}
	// The clamped count participates in the cache key, so requests asking
	// for different result counts never share an entry.
	req.MaxResults = maxResults

	if cached, ok := c.cache.get(cacheKey(req)); ok {
		slog.Debug("search cache hit", "query", req.Query)
		return cached, nil
	}

	results, err := c.searchDuckDuckGo(ctx, req.Query, maxResults)
	if err != nil {
		return nil, errors.Wrap(err, "search")
	}

	// Domain allow/deny lists are applied post-fetch.
	results = filterByDomain(results, req.IncludeDomains, req.ExcludeDomains)

	if req.SearchDepth == DepthAdvanced && c.maxCrawl > 0 {
		results = c.crawlResults(ctx, results)
	}

	resp := &Response{
		Results:         results,
		Query:           req.Query,
		Images:          []string{},
		NumberOfResults: len(results),
	}
	c.cache.set(cacheKey(req), resp)
	return resp, nil
}

// crawlResults fetches each result page concurrently and replaces snippets
// with page content. Individual page failures are dropped, not retried, and
// never fail the overall search.
func (c *Client) crawlResults(ctx context.Context, results []Result) []Result {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxCrawl)

	crawled := make([]Result, len(results))
	for i, r := range results {
		g.Go(func() error {
			pageCtx, cancel := context.WithTimeout(gctx, c.crawlTimeout)
			defer cancel()
			content, err := c.FetchMarkdown(pageCtx, r.URL, 4000)
			if err != nil {
				slog.Debug("crawl failed, keeping snippet", "url", r.URL, "err", err)
				crawled[i] = r
				return nil
			}
			crawled[i] = Result{Title: r.Title, URL: r.URL, Content: content}
			return nil
		})
	}
	// Workers always return nil; the join is partial-success by construction.
	_ = g.Wait()
	return crawled
}

func (c *Client) searchDuckDuckGo(ctx context.Context, query string, maxResults int) ([]Result, error) {
	searchURL := "https://html.duckduckgo.com/html/?q=" + url.QueryEscape(query)

	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	return parseDuckDuckGoResults(string(body), maxResults)
}

// filterByDomain keeps results whose host matches the include list (when
// non-empty) and drops those matching the exclude list.
func filterByDomain(results []Result, include, exclude []string) []Result {
	if len(include) == 0 && len(exclude) == 0 {
		return results
	}
	matches := func(host, domain string) bool {
		host = strings.ToLower(host)
		domain = strings.ToLower(domain)
		return host == domain || strings.HasSuffix(host, "."+domain)
	}

	filtered := make([]Result, 0, len(results))
	for _, r := range results {
		u, err := url.Parse(r.URL)
		if err != nil {
			continue
		}
		host := u.Hostname()
		excluded := false
		for _, d := range exclude {
			if matches(host, d) {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}
		if len(include) > 0 {
			included := false
			for _, d := range include {
				if matches(host, d) {
					included = true
					break
				}
			}
			if !included {
				continue
			}
		}
		filtered = append(filtered, r)
	}
	return filtered
}

func cacheKey(req Request) string {
	return strings.Join([]string{
		req.Query,
		strconv.Itoa(req.MaxResults),
		req.SearchDepth,
		strings.Join(req.IncludeDomains, ","),
		strings.Join(req.ExcludeDomains, ","),
	}, "|")
}
