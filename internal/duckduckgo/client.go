// Package duckduckgo implements the external fetch collaborator against the
// DuckDuckGo Lite endpoint.
package duckduckgo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hoplite-search/hoplite"
)

const defaultEndpoint = "https://lite.duckduckgo.com/lite/"

var relatedSelectors = []string{
	"tr.result-link--related a",
	"tr.result-link.related a",
	"a.result--more__link",
	"a.related-searches__item",
}

// Client fetches and parses search result pages. It applies a client-side
// rate limit so bursts of cache misses stay polite to the upstream.
type Client struct {
	httpClient *http.Client
	endpoint   string
	limiter    *rate.Limiter
	userAgent  string
	logger     *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithEndpoint overrides the search endpoint. Tests point this at a local
// httptest server.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithRateLimit sets the sustained request rate and burst.
func WithRateLimit(perSecond float64, burst int) ClientOption {
	return func(c *Client) {
		if perSecond > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithUserAgent overrides the User-Agent header sent on every request.
func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a fetch client with a 10s timeout and 1 req/s limit.
func NewClient(options ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		endpoint:   defaultEndpoint,
		limiter:    rate.NewLimiter(rate.Limit(1), 2),
		userAgent:  "hoplite/1.0",
		logger:     zap.NewNop(),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Fetch performs one search round: POST the query, parse the result rows
// and, when requested, the related-search links.
func (c *Client) Fetch(ctx context.Context, req hoplite.SearchRequest) (*hoplite.FetchResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := req.Query
	if req.Site != "" {
		query = fmt.Sprintf("%s site:%s", query, req.Site)
	}

	form := url.Values{
		"q":  {query},
		"kl": {"wt-wt"},
		"s":  {fmt.Sprintf("%d", req.Offset)},
	}
	if req.TimePeriod != "" {
		form.Set("df", timePeriodCode(req.TimePeriod))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, hoplite.NewFetchError("fetch", "failed to build search request", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, hoplite.NewFetchError("fetch", fmt.Sprintf("failed to reach search endpoint for query '%s'", req.Query), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, hoplite.NewFetchError("fetch",
			fmt.Sprintf("search endpoint returned HTTP %d for query '%s'", resp.StatusCode, req.Query), nil)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, hoplite.NewFetchError("fetch", "failed to parse search response HTML", err)
	}

	result := c.parseResults(doc, req)
	c.logger.Debug("search fetch completed",
		zap.String("query", req.Query),
		zap.Int("results", len(result.Results)),
		zap.Int("total_estimate", result.TotalResults))
	return result, nil
}

// parseResults reads the primary result rows. The upstream page pairs a
// tr.result-link row (title anchor) with a tr.result-snippet row by index,
// and the page is already offset by the "s" form parameter.
func (c *Client) parseResults(doc *goquery.Document, req hoplite.SearchRequest) *hoplite.FetchResult {
	rows := doc.Find("tr.result-link")
	snippets := doc.Find("tr.result-snippet")

	totalRows := rows.Length()
	results := make([]hoplite.SearchResult, 0, req.Count)

	for i := 0; i < req.Count && i < totalRows; i++ {
		row := rows.Eq(i)
		anchor := row.Find("a").First()
		if anchor.Length() == 0 {
			continue
		}

		href, _ := anchor.Attr("href")
		description := ""
		if i < snippets.Length() {
			description = strings.TrimSpace(snippets.Eq(i).Text())
		}

		results = append(results, hoplite.SearchResult{
			Title:       strings.TrimSpace(anchor.Text()),
			URL:         href,
			Description: description,
			Domain:      ExtractDomain(href),
		})
	}

	// The upstream never reports exact totals; estimate from what we saw
	// and always claim one more page while full pages keep coming back.
	estimated := req.Offset + totalRows
	if len(results) >= req.Count && req.Offset+req.Count+1 > estimated {
		estimated = req.Offset + req.Count + 1
	}

	fetch := &hoplite.FetchResult{
		Results:      results,
		TotalResults: estimated,
	}

	if req.GetRelated {
		fetch.RelatedSearches = parseRelated(doc, req.RelatedCount)
	}
	return fetch
}

func parseRelated(doc *goquery.Document, limit int) []string {
	if limit <= 0 {
		limit = 10
	}

	var related []string
	seen := make(map[string]struct{})
	for _, selector := range relatedSelectors {
		doc.Find(selector).Each(func(_ int, anchor *goquery.Selection) {
			text := strings.TrimSpace(anchor.Text())
			if text == "" {
				return
			}
			lowered := strings.ToLower(text)
			if _, dup := seen[lowered]; dup {
				return
			}
			seen[lowered] = struct{}{}
			related = append(related, text)
		})
	}

	if len(related) > limit {
		related = related[:limit]
	}
	return related
}

// GetPage fetches a page body for detail enrichment and summarization.
func (c *Client) GetPage(ctx context.Context, pageURL string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", hoplite.NewFetchError("fetch", fmt.Sprintf("failed to build page request for '%s'", pageURL), err)
	}
	httpReq.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", hoplite.NewFetchError("fetch", fmt.Sprintf("failed to fetch page '%s'", pageURL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", hoplite.NewFetchError("fetch", fmt.Sprintf("page '%s' returned HTTP %d", pageURL, resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", hoplite.NewFetchError("fetch", fmt.Sprintf("failed to read page '%s'", pageURL), err)
	}
	return string(body), nil
}

// ExtractDomain returns the host portion of a URL, or "" when unparseable.
func ExtractDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Host
}

func timePeriodCode(period string) string {
	switch period {
	case "day":
		return "d"
	case "week":
		return "w"
	case "month":
		return "m"
	case "year":
		return "y"
	default:
		return ""
	}
}
