// Package tools provides the built-in hop tools: web search, page detail
// fetching and extractive summarization.
package tools

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/sync/errgroup"

	"github.com/hoplite-search/hoplite"
	"github.com/hoplite-search/hoplite/internal/adapters"
)

const (
	defaultDetailCount     = 3
	defaultContentLength   = 5000
	defaultSummaryLength   = 500
	detailFetchConcurrency = 3
	maxQueryLength         = 1000
)

// PageFetcher retrieves the raw HTML of a single page.
type PageFetcher interface {
	GetPage(ctx context.Context, pageURL string) (string, error)
}

// Deps carries the collaborators the built-in tools are constructed over.
type Deps struct {
	Searcher hoplite.Searcher
	Pages    PageFetcher
}

// SetupTools creates and returns the map of all built-in tools.
func SetupTools(deps Deps) map[string]hoplite.Tool {
	return map[string]hoplite.Tool{
		"search": adapters.NewFuncToolAdapter(
			"search",
			searchFunc(deps.Searcher),
			adapters.WithDescription("Performs a web search and records the payload in shared state."),
			adapters.WithParameters(map[string]string{
				"query":       "Search query string",
				"count":       "Number of results to return (optional)",
				"intent":      "Intent override such as news or technical (optional)",
				"site":        "Restrict results to a single site (optional)",
				"time_period": "Restrict results to day, week, month or year (optional)",
				"get_related": "Include related search suggestions (optional)",
			}),
			adapters.WithReturns("The search payload map: results, total_results, intent, cache_metadata."),
			adapters.WithValidator(validateSearchParams),
			adapters.NeedsState(),
		),
		"fetch_details": adapters.NewFuncToolAdapter(
			"fetch_details",
			fetchDetailsFunc(deps.Pages),
			adapters.WithDescription("Fetches and extracts readable content for the top results of a prior search hop."),
			adapters.WithParameters(map[string]string{
				"detail_count":       "How many top results to fetch (optional, default 3)",
				"max_content_length": "Per-page extracted content cap in characters (optional)",
			}),
			adapters.WithReturns("A list of {url, title, content} maps in original result order."),
			adapters.NeedsDependencies(),
			adapters.NeedsState(),
		),
		"summarize": adapters.NewFuncToolAdapter(
			"summarize",
			summarizeFunc(),
			adapters.WithDescription("Builds an extractive summary and key points from fetched page details."),
			adapters.WithParameters(map[string]string{
				"max_length": "Summary length cap in characters (optional, default 500)",
			}),
			adapters.WithReturns("A map with summary, key_points and source_count."),
			adapters.NeedsDependencies(),
			adapters.NeedsState(),
		),
	}
}

func searchFunc(searcher hoplite.Searcher) func(ctx context.Context, params map[string]any) (any, error) {
	return func(ctx context.Context, params map[string]any) (any, error) {
		query, _ := params["query"].(string)

		req := hoplite.SearchRequest{
			Query:      query,
			Count:      intParam(params, "count", 0),
			Site:       stringParam(params, "site"),
			TimePeriod: stringParam(params, "time_period"),
			GetRelated: boolParam(params, "get_related"),
		}
		if intent := stringParam(params, "intent"); intent != "" {
			req.Intent = hoplite.ParseIntent(intent)
		}

		payload, err := searcher.Search(ctx, req)
		if err != nil {
			return nil, err
		}

		if state, ok := params[hoplite.ParamState].(map[string]any); ok {
			state["search_payload"] = payload
		}
		return payload, nil
	}
}

func fetchDetailsFunc(pages PageFetcher) func(ctx context.Context, params map[string]any) (any, error) {
	return func(ctx context.Context, params map[string]any) (any, error) {
		if pages == nil {
			return nil, fmt.Errorf("no page fetcher configured")
		}

		results := resultsFromDependencies(params)
		if results == nil {
			return nil, fmt.Errorf("fetch_details requires a search hop dependency with results")
		}

		detailCount := intParam(params, "detail_count", defaultDetailCount)
		if detailCount > len(results) {
			detailCount = len(results)
		}
		maxContent := intParam(params, "max_content_length", defaultContentLength)

		type detail struct {
			index   int
			url     string
			title   string
			content string
		}

		var mu sync.Mutex
		details := make([]detail, 0, detailCount)

		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(detailFetchConcurrency)
		for i := 0; i < detailCount; i++ {
			result, ok := results[i].(map[string]any)
			if !ok {
				continue
			}
			pageURL, _ := result["url"].(string)
			title, _ := result["title"].(string)
			if pageURL == "" {
				continue
			}
			index := i
			group.Go(func() error {
				html, err := pages.GetPage(groupCtx, pageURL)
				if err != nil {
					// A single unreachable page does not sink the hop.
					return nil
				}
				content := truncateOnRuneBoundary(extractReadableText(html, pageURL), maxContent)
				mu.Lock()
				details = append(details, detail{index: index, url: pageURL, title: title, content: content})
				mu.Unlock()
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return nil, err
		}

		sort.Slice(details, func(a, b int) bool { return details[a].index < details[b].index })

		detailed := make([]any, 0, len(details))
		for _, d := range details {
			detailed = append(detailed, map[string]any{
				"url":     d.url,
				"title":   d.title,
				"content": d.content,
			})
		}

		if state, ok := params[hoplite.ParamState].(map[string]any); ok {
			state["detailed_results"] = detailed
		}
		return detailed, nil
	}
}

func summarizeFunc() func(ctx context.Context, params map[string]any) (any, error) {
	return func(ctx context.Context, params map[string]any) (any, error) {
		detailed := detailsFromDependencies(params)
		if detailed == nil {
			return nil, fmt.Errorf("summarize requires a fetch_details hop dependency")
		}

		maxLength := intParam(params, "max_length", defaultSummaryLength)

		var sentences []string
		keyPoints := make([]string, 0, len(detailed))
		for _, raw := range detailed {
			page, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			content, _ := page["content"].(string)
			pageSentences := splitSentences(content)
			if len(pageSentences) == 0 {
				continue
			}
			keyPoints = append(keyPoints, pageSentences[0])
			sentences = append(sentences, pageSentences...)
		}

		var builder strings.Builder
		for _, sentence := range sentences {
			if builder.Len() > 0 && builder.Len()+len(sentence)+1 > maxLength {
				break
			}
			if builder.Len() > 0 {
				builder.WriteByte(' ')
			}
			builder.WriteString(sentence)
		}
		summary := truncateOnRuneBoundary(builder.String(), maxLength)

		output := map[string]any{
			"summary":      summary,
			"key_points":   keyPoints,
			"source_count": len(detailed),
		}

		if state, ok := params[hoplite.ParamState].(map[string]any); ok {
			state["summaries"] = output
		}
		return output, nil
	}
}

// resultsFromDependencies finds the first dependency output that looks like a
// search payload and returns its results list.
func resultsFromDependencies(params map[string]any) []any {
	dependencies, ok := params[hoplite.ParamDependencies].(map[string]any)
	if !ok {
		return nil
	}
	for _, output := range dependencies {
		payload, ok := output.(map[string]any)
		if !ok {
			continue
		}
		if results, ok := payload["results"].([]any); ok {
			return results
		}
	}
	return nil
}

// detailsFromDependencies finds the first dependency output that is a list of
// fetched page details.
func detailsFromDependencies(params map[string]any) []any {
	dependencies, ok := params[hoplite.ParamDependencies].(map[string]any)
	if !ok {
		return nil
	}
	for _, output := range dependencies {
		if detailed, ok := output.([]any); ok {
			return detailed
		}
	}
	return nil
}

func extractReadableText(html, pageURL string) string {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return strings.TrimSpace(html)
	}
	article, err := readability.FromReader(strings.NewReader(html), parsedURL)
	if err != nil {
		return strings.TrimSpace(html)
	}
	return strings.TrimSpace(article.TextContent)
}

// truncateOnRuneBoundary caps s at max bytes without splitting a
// multi-byte rune.
func truncateOnRuneBoundary(s string, max int) string {
	if max < 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			sentence := strings.TrimSpace(current.String())
			if len(sentence) > 1 {
				sentences = append(sentences, sentence)
			}
			current.Reset()
		}
	}
	if tail := strings.TrimSpace(current.String()); len(tail) > 1 {
		sentences = append(sentences, tail)
	}
	return sentences
}

func validateSearchParams(params map[string]any) error {
	query, ok := params["query"]
	if !ok {
		return fmt.Errorf("missing search query (expected at key 'query')")
	}

	queryStr, ok := query.(string)
	if !ok {
		return fmt.Errorf("search query must be a string, got %T", query)
	}

	if len(queryStr) == 0 {
		return fmt.Errorf("search query cannot be empty")
	}

	if len(queryStr) > maxQueryLength {
		return fmt.Errorf("search query too long (max %d characters)", maxQueryLength)
	}

	return nil
}

func stringParam(params map[string]any, key string) string {
	value, _ := params[key].(string)
	return value
}

func intParam(params map[string]any, key string, fallback int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return fallback
	}
}

func boolParam(params map[string]any, key string) bool {
	value, _ := params[key].(bool)
	return value
}
