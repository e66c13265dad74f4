package hoplite

import "context"

// Fetcher performs the external search fetch+parse round on a cache miss.
type Fetcher interface {
	Fetch(ctx context.Context, req SearchRequest) (*FetchResult, error)
}

// Classifier assigns an intent and a confidence score to raw query text.
type Classifier interface {
	Classify(query string) (Intent, float64)
}

// Reranker reorders fetched results by relevance to the query and intent.
type Reranker interface {
	Rerank(query string, results []SearchResult, intent Intent) []SearchResult
}

// Searcher is the cache-backed search workflow consumed by the runtime and
// by the search hop tool.
type Searcher interface {
	Search(ctx context.Context, req SearchRequest) (Payload, error)
}

// Tool represents an executable hop operation.
type Tool interface {
	// Execute performs the tool's action. params contains the hop's declared
	// parameters merged with any reserved parameters the tool asked for.
	Execute(ctx context.Context, params map[string]any) (any, error)

	// Schema returns a description of the tool. Standard keys include
	// "description" and "parameters".
	Schema() map[string]any

	// Validate checks if the provided params are valid for this tool.
	Validate(params map[string]any) error

	// Name returns the tool's name.
	Name() string

	// Needs declares which reserved parameters the tool wants injected.
	Needs() Needs
}

// Executor runs a validated plan against a tool registry.
type Executor interface {
	Execute(ctx context.Context, plan *Plan, session any, state map[string]any) (*OrchestrationResult, error)
}
