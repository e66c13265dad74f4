package tools

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/hoplite-search/hoplite"
)

type fakeSearcher struct {
	payload hoplite.Payload
	lastReq hoplite.SearchRequest
}

func (f *fakeSearcher) Search(ctx context.Context, req hoplite.SearchRequest) (hoplite.Payload, error) {
	f.lastReq = req
	return f.payload, nil
}

type fakePages struct {
	pages map[string]string
}

func (f *fakePages) GetPage(ctx context.Context, pageURL string) (string, error) {
	page, ok := f.pages[pageURL]
	if !ok {
		return "", fmt.Errorf("page not found: %s", pageURL)
	}
	return page, nil
}

func searchPayload(urls ...string) hoplite.Payload {
	results := make([]any, 0, len(urls))
	for _, u := range urls {
		results = append(results, map[string]any{
			"title": "title for " + u,
			"url":   u,
		})
	}
	return hoplite.Payload{"results": results, "total_results": len(urls)}
}

func TestSetupTools_Registry(t *testing.T) {
	registry := SetupTools(Deps{Searcher: &fakeSearcher{}, Pages: &fakePages{}})

	for _, name := range []string{"search", "fetch_details", "summarize"} {
		tool, ok := registry[name]
		if !ok {
			t.Errorf("expected tool %q registered", name)
			continue
		}
		if tool.Name() != name {
			t.Errorf("tool %q reports name %q", name, tool.Name())
		}
	}

	if needs := registry["search"].Needs(); !needs.State || needs.Dependencies {
		t.Errorf("unexpected search needs: %+v", needs)
	}
	if needs := registry["fetch_details"].Needs(); !needs.State || !needs.Dependencies {
		t.Errorf("unexpected fetch_details needs: %+v", needs)
	}
}

func TestSearchTool(t *testing.T) {
	searcher := &fakeSearcher{payload: searchPayload("https://a.com")}
	registry := SetupTools(Deps{Searcher: searcher})

	state := make(map[string]any)
	output, err := registry["search"].Execute(context.Background(), map[string]any{
		"query":       "go generics",
		"count":       5,
		"intent":      "technical",
		"get_related": true,
		hoplite.ParamState: state,
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if searcher.lastReq.Query != "go generics" || searcher.lastReq.Count != 5 {
		t.Errorf("unexpected request: %+v", searcher.lastReq)
	}
	if searcher.lastReq.Intent != hoplite.IntentTechnical {
		t.Errorf("expected intent parsed, got %q", searcher.lastReq.Intent)
	}
	if !searcher.lastReq.GetRelated {
		t.Error("expected get_related forwarded")
	}

	payload, ok := output.(hoplite.Payload)
	if !ok {
		t.Fatalf("expected payload output, got %T", output)
	}
	if payload["total_results"] != 1 {
		t.Errorf("unexpected payload: %v", payload)
	}
	if _, ok := state["search_payload"]; !ok {
		t.Error("expected payload recorded in shared state")
	}
}

func TestSearchTool_RejectsEmptyQuery(t *testing.T) {
	registry := SetupTools(Deps{Searcher: &fakeSearcher{}})

	if _, err := registry["search"].Execute(context.Background(), map[string]any{"query": ""}); err == nil {
		t.Error("expected validation error for empty query")
	}
	if _, err := registry["search"].Execute(context.Background(), map[string]any{}); err == nil {
		t.Error("expected validation error for missing query")
	}
}

func TestFetchDetailsTool(t *testing.T) {
	pages := &fakePages{pages: map[string]string{
		"https://a.com": "<html><body><article><p>Alpha page content with enough text to extract. It keeps going for a while.</p></article></body></html>",
		"https://b.com": "<html><body><article><p>Beta page content, also long enough to matter for extraction purposes.</p></article></body></html>",
	}}
	registry := SetupTools(Deps{Pages: pages})

	state := make(map[string]any)
	output, err := registry["fetch_details"].Execute(context.Background(), map[string]any{
		"detail_count": 2,
		hoplite.ParamState: state,
		hoplite.ParamDependencies: map[string]any{
			"search": searchPayload("https://a.com", "https://b.com", "https://c.com"),
		},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	detailed, ok := output.([]any)
	if !ok {
		t.Fatalf("expected list output, got %T", output)
	}
	if len(detailed) != 2 {
		t.Fatalf("expected 2 details, got %d", len(detailed))
	}

	first := detailed[0].(map[string]any)
	if first["url"] != "https://a.com" {
		t.Errorf("expected original result order preserved, got %v", first["url"])
	}
	content, _ := first["content"].(string)
	if !strings.Contains(content, "Alpha page content") {
		t.Errorf("expected extracted content, got %q", content)
	}

	if _, ok := state["detailed_results"]; !ok {
		t.Error("expected details recorded in shared state")
	}
}

func TestFetchDetailsTool_SkipsUnreachablePages(t *testing.T) {
	pages := &fakePages{pages: map[string]string{
		"https://up.com": "<html><body><p>Reachable content here.</p></body></html>",
	}}
	registry := SetupTools(Deps{Pages: pages})

	output, err := registry["fetch_details"].Execute(context.Background(), map[string]any{
		"detail_count": 2,
		hoplite.ParamDependencies: map[string]any{
			"search": searchPayload("https://down.com", "https://up.com"),
		},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	detailed := output.([]any)
	if len(detailed) != 1 {
		t.Fatalf("expected the unreachable page skipped, got %d details", len(detailed))
	}
	if detailed[0].(map[string]any)["url"] != "https://up.com" {
		t.Errorf("unexpected surviving detail: %v", detailed[0])
	}
}

func TestFetchDetailsTool_RequiresSearchDependency(t *testing.T) {
	registry := SetupTools(Deps{Pages: &fakePages{}})

	if _, err := registry["fetch_details"].Execute(context.Background(), map[string]any{
		hoplite.ParamDependencies: map[string]any{},
	}); err == nil {
		t.Error("expected error without a search dependency")
	}
}

func TestSummarizeTool(t *testing.T) {
	registry := SetupTools(Deps{})

	state := make(map[string]any)
	output, err := registry["summarize"].Execute(context.Background(), map[string]any{
		"max_length":       120,
		hoplite.ParamState: state,
		hoplite.ParamDependencies: map[string]any{
			"details": []any{
				map[string]any{
					"url":     "https://a.com",
					"content": "First key sentence of page one. Supporting detail follows here.",
				},
				map[string]any{
					"url":     "https://b.com",
					"content": "Second page opens with this. More words afterwards.",
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	summary, ok := output.(map[string]any)
	if !ok {
		t.Fatalf("expected map output, got %T", output)
	}
	text, _ := summary["summary"].(string)
	if !strings.Contains(text, "First key sentence of page one.") {
		t.Errorf("expected summary to open with the first sentence, got %q", text)
	}
	if len(text) > 120 {
		t.Errorf("summary exceeds max_length: %d chars", len(text))
	}

	keyPoints, _ := summary["key_points"].([]string)
	if len(keyPoints) != 2 {
		t.Fatalf("expected one key point per page, got %v", keyPoints)
	}
	if keyPoints[1] != "Second page opens with this." {
		t.Errorf("unexpected second key point: %q", keyPoints[1])
	}
	if summary["source_count"] != 2 {
		t.Errorf("expected source_count 2, got %v", summary["source_count"])
	}

	if _, ok := state["summaries"]; !ok {
		t.Error("expected summary recorded in shared state")
	}
}

func TestSummarizeTool_RequiresDetailsDependency(t *testing.T) {
	registry := SetupTools(Deps{})

	if _, err := registry["summarize"].Execute(context.Background(), map[string]any{
		hoplite.ParamDependencies: map[string]any{},
	}); err == nil {
		t.Error("expected error without a fetch_details dependency")
	}
}

func TestTruncateOnRuneBoundary(t *testing.T) {
	// "héllo" is 6 bytes; byte 2 lands mid-rune in 'é'.
	got := truncateOnRuneBoundary("héllo", 2)
	if got != "h" {
		t.Errorf("expected cut before the split rune, got %q", got)
	}
	if !utf8.ValidString(got) {
		t.Errorf("truncation produced invalid UTF-8: %q", got)
	}

	if got := truncateOnRuneBoundary("héllo", 6); got != "héllo" {
		t.Errorf("expected string within cap unchanged, got %q", got)
	}
	if got := truncateOnRuneBoundary("abc", 2); got != "ab" {
		t.Errorf("expected plain byte cut for ASCII, got %q", got)
	}
}

func TestSummarizeTool_TruncatesOnRuneBoundary(t *testing.T) {
	registry := SetupTools(Deps{})

	// Each rune is 3 bytes, so a 10-byte cap cannot land on byte 10.
	content := "日本語の文章です。"
	result, err := registry["summarize"].Execute(context.Background(), map[string]any{
		"max_length": 10,
		hoplite.ParamDependencies: map[string]any{
			"details": []any{
				map[string]any{"url": "https://example.jp", "title": "jp", "content": content},
			},
		},
	})
	if err != nil {
		t.Fatalf("summarize failed: %v", err)
	}
	output, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("expected map output, got %T", result)
	}
	summary, _ := output["summary"].(string)
	if !utf8.ValidString(summary) {
		t.Errorf("summary is not valid UTF-8: %q", summary)
	}
	if len(summary) > 10 {
		t.Errorf("summary exceeds cap: %d bytes", len(summary))
	}
}

func TestSplitSentences(t *testing.T) {
	sentences := splitSentences("One. Two! Three? Trailing fragment")
	if len(sentences) != 4 {
		t.Fatalf("expected 4 sentences, got %v", sentences)
	}
	if sentences[0] != "One." || sentences[3] != "Trailing fragment" {
		t.Errorf("unexpected split: %v", sentences)
	}
}
