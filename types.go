// Package hoplite provides the core runtime for cache-backed, multi-hop
// search augmentation workflows.
package hoplite

// Intent is the coarse classification of a query's purpose. It selects the
// freshness window applied to cached responses for that query.
type Intent string

const (
	IntentNews      Intent = "news"
	IntentTechnical Intent = "technical"
	IntentShopping  Intent = "shopping"
	IntentAcademic  Intent = "academic"
	IntentFinance   Intent = "finance"
	IntentLocal     Intent = "local"
	IntentGeneral   Intent = "general"
)

// Intents lists every recognised intent in priority order. The order is used
// as a deterministic tie-break by the classifier.
var Intents = []Intent{
	IntentNews,
	IntentTechnical,
	IntentShopping,
	IntentAcademic,
	IntentFinance,
	IntentLocal,
	IntentGeneral,
}

// ParseIntent maps a raw string onto a known intent, falling back to general.
func ParseIntent(raw string) Intent {
	candidate := Intent(raw)
	for _, intent := range Intents {
		if intent == candidate {
			return intent
		}
	}
	return IntentGeneral
}

// SearchRequest describes one search invocation. Count, Offset and Page
// default to 10, 0 and 1 when left zero-valued.
type SearchRequest struct {
	Query        string
	Count        int
	Offset       int
	Page         int
	Site         string
	TimePeriod   string
	Intent       Intent // empty means "classify the query"
	GetRelated   bool
	RelatedCount int
}

// Normalize fills zero-valued pagination fields with their defaults.
func (r *SearchRequest) Normalize() {
	if r.Count <= 0 {
		r.Count = 10
	}
	if r.Offset < 0 {
		r.Offset = 0
	}
	if r.Page <= 0 {
		r.Page = 1
	}
	if r.GetRelated && r.RelatedCount <= 0 {
		r.RelatedCount = r.Count
	}
}

// SearchResult is a single organic result returned by the fetch collaborator.
type SearchResult struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Description   string `json:"description"`
	PublishedDate string `json:"published_date,omitempty"`
	Domain        string `json:"domain"`
}

// AsMap converts the result into the open payload shape stored in the cache.
func (r SearchResult) AsMap() map[string]any {
	m := map[string]any{
		"title":       r.Title,
		"url":         r.URL,
		"description": r.Description,
		"domain":      r.Domain,
	}
	if r.PublishedDate != "" {
		m["published_date"] = r.PublishedDate
	}
	return m
}

// FetchResult is the raw outcome of one external fetch+parse round.
type FetchResult struct {
	Results         []SearchResult
	TotalResults    int
	RelatedSearches []string
}

// Payload is the open response shape produced by the search workflow and
// stored (deep-copied) in the semantic cache. Known keys: "results",
// "total_results", "intent", "related_searches", "cache_metadata".
type Payload = map[string]any

// Cache metadata statuses reported on every search payload.
const (
	CacheStatusHit     = "hit"
	CacheStatusMiss    = "miss"
	CacheStatusRefresh = "refresh"
)
