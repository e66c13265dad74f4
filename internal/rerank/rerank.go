// Package rerank reorders fetched search results by lexical relevance to
// the query, with a small per-intent domain boost.
package rerank

import (
	"math"
	"sort"
	"strings"

	"github.com/hoplite-search/hoplite"
)

var intentDomainBoosts = map[hoplite.Intent][]string{
	hoplite.IntentNews:      {"news", "cnn", "bbc", "reuters", "times", "guardian"},
	hoplite.IntentTechnical: {"docs", "developer", "github", "stackoverflow", "spec"},
	hoplite.IntentShopping:  {"amazon", "bestbuy", "shop", "store", "price"},
	hoplite.IntentAcademic:  {"arxiv", "springer", "nature", "ieee", "acm", "journals"},
	hoplite.IntentFinance:   {"invest", "markets", "finance", "stock", "bloomberg"},
	hoplite.IntentLocal:     {"city", "restaurant", "hotel", "map", "tripadvisor"},
}

// Reranker scores results by token overlap and cosine similarity between
// query and title+description, boosted for intent-typical domains.
type Reranker struct{}

// NewReranker creates a lexical reranker.
func NewReranker() *Reranker { return &Reranker{} }

// Rerank returns the results ordered by descending relevance score. When the
// query has no usable tokens the input order is preserved.
func (r *Reranker) Rerank(query string, results []hoplite.SearchResult, intent hoplite.Intent) []hoplite.SearchResult {
	queryTokens := tokenCounts(query)
	if len(queryTokens) == 0 {
		out := make([]hoplite.SearchResult, len(results))
		copy(out, results)
		return out
	}

	type scored struct {
		score  float64
		result hoplite.SearchResult
	}
	items := make([]scored, 0, len(results))
	for _, result := range results {
		tokens := tokenCounts(result.Title + " " + result.Description)
		items = append(items, scored{
			score:  score(queryTokens, tokens, intent, result.Domain),
			result: result,
		})
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].score > items[j].score })

	out := make([]hoplite.SearchResult, len(items))
	for i, item := range items {
		out[i] = item.result
	}
	return out
}

// score combines token overlap (0.6), cosine similarity (0.4) and a flat
// +0.15 boost when the domain matches the intent's typical hosts.
func score(queryTokens, docTokens map[string]int, intent hoplite.Intent, domain string) float64 {
	intersection := 0
	queryTotal := 0
	for token, qc := range queryTokens {
		queryTotal += qc
		if dc, ok := docTokens[token]; ok {
			if qc < dc {
				intersection += qc
			} else {
				intersection += dc
			}
		}
	}
	overlap := 0.0
	if intersection > 0 && queryTotal > 0 {
		overlap = float64(intersection) / float64(queryTotal)
	}

	domainScore := 0.0
	if boosts, ok := intentDomainBoosts[intent]; ok {
		lowered := strings.ToLower(domain)
		for _, keyword := range boosts {
			if strings.Contains(lowered, keyword) {
				domainScore = 0.15
				break
			}
		}
	}

	dot := 0.0
	for token, qc := range queryTokens {
		dot += float64(qc) * float64(docTokens[token])
	}
	cosine := dot / (magnitude(queryTokens) * magnitude(docTokens))

	return overlap*0.6 + cosine*0.4 + domainScore
}

func magnitude(tokens map[string]int) float64 {
	sum := 0.0
	for _, count := range tokens {
		sum += float64(count) * float64(count)
	}
	if sum == 0 {
		return 1
	}
	return math.Sqrt(sum)
}

func tokenCounts(text string) map[string]int {
	counts := make(map[string]int)
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			counts[current.String()]++
			current.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return counts
}
