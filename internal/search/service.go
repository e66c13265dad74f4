// Package search implements the cache-backed search workflow: fingerprint,
// consult the semantic cache, fetch on miss or staleness, merge, store.
package search

import (
	"context"
	"math"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"go.uber.org/zap"

	"github.com/hoplite-search/hoplite"
	"github.com/hoplite-search/hoplite/internal/cache"
	"github.com/hoplite-search/hoplite/internal/eventbus"
)

// Service is the single call site that ties the semantic cache to the
// external fetch and rerank collaborators. It owns the mutex serializing
// access to the cache, which itself carries no locking.
type Service struct {
	cache      *cache.SemanticCache
	cacheMutex sync.Mutex
	fetcher    hoplite.Fetcher
	classifier hoplite.Classifier
	reranker   hoplite.Reranker
	logger     *zap.Logger
	bus        eventbus.Bus
}

// Option configures a Service.
type Option func(*Service)

// WithClassifier sets the intent classifier used when a request leaves its
// intent blank.
func WithClassifier(classifier hoplite.Classifier) Option {
	return func(s *Service) { s.classifier = classifier }
}

// WithReranker sets the result reranker.
func WithReranker(reranker hoplite.Reranker) Option {
	return func(s *Service) { s.reranker = reranker }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEventBus attaches an event bus receiving cache outcome events.
func WithEventBus(bus eventbus.Bus) Option {
	return func(s *Service) { s.bus = bus }
}

// NewService creates the search workflow over the given cache and fetcher.
func NewService(semanticCache *cache.SemanticCache, fetcher hoplite.Fetcher, options ...Option) *Service {
	s := &Service{
		cache:   semanticCache,
		fetcher: fetcher,
		logger:  zap.NewNop(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Search runs one cached search round.
//
// A fresh cache hit returns the cached payload annotated with hit metadata
// and performs no external fetch. A miss or stale hit fetches, reranks,
// merges fresh results ahead of any stale payload (deduplicated by URL),
// stores the merged payload and returns it annotated with refresh or miss
// metadata.
func (s *Service) Search(ctx context.Context, req hoplite.SearchRequest) (hoplite.Payload, error) {
	if err := errbuilder.WrapIfContextDone(ctx, nil); err != nil {
		return nil, err
	}

	if req.Query == "" {
		return nil, hoplite.NewValidationError("search", "query parameter is required", nil)
	}
	req.Normalize()

	searchIntent := req.Intent
	intentConfidence := 0.0
	if searchIntent == "" {
		if s.classifier != nil {
			searchIntent, intentConfidence = s.classifier.Classify(req.Query)
		} else {
			searchIntent = hoplite.IntentGeneral
		}
	}

	embeddingSignature := cache.EmbedQuery(req.Query)
	cacheKey := cache.MakeKey(cache.KeyParams{
		Intent:             searchIntent,
		EmbeddingSignature: embeddingSignature,
		Count:              req.Count,
		Offset:             req.Offset,
		Page:               req.Page,
		Site:               req.Site,
		TimePeriod:         req.TimePeriod,
		Related:            req.GetRelated,
		RelatedCount:       req.RelatedCount,
	})

	s.cacheMutex.Lock()
	lookup := s.cache.Get(cacheKey, searchIntent)
	s.cacheMutex.Unlock()

	if lookup != nil && lookup.Fresh {
		payload := lookup.Payload
		payload["intent"] = string(searchIntent)
		payload["cache_metadata"] = map[string]any{
			"status":      hoplite.CacheStatusHit,
			"age_seconds": roundAge(lookup.AgeSeconds),
		}
		s.logger.Debug("cache hit",
			zap.String("query", req.Query),
			zap.String("intent", string(searchIntent)),
			zap.Float64("age_seconds", lookup.AgeSeconds))
		s.publish(ctx, eventbus.EventCacheHit, req.Query, lookup.AgeSeconds)
		return payload, nil
	}

	var cachedPayload hoplite.Payload
	if lookup != nil {
		cachedPayload = lookup.Payload
	}

	fetched, err := s.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	results := fetched.Results
	if s.reranker != nil {
		results = s.reranker.Rerank(req.Query, results, searchIntent)
	}

	payloadResults := make([]any, 0, len(results))
	for _, result := range results {
		payloadResults = append(payloadResults, result.AsMap())
	}
	if cachedPayload != nil {
		if prior, ok := cachedPayload["results"].([]any); ok && len(prior) > 0 {
			payloadResults = mergeResults(payloadResults, prior)
		}
	}

	payload := hoplite.Payload{
		"results":       payloadResults,
		"total_results": fetched.TotalResults,
		"intent":        string(searchIntent),
	}
	if intentConfidence > 0 {
		payload["intent_confidence"] = intentConfidence
	}

	if req.GetRelated {
		related := fetched.RelatedSearches
		if len(related) == 0 && cachedPayload != nil {
			// A refresh that lost its related links falls back to the
			// stale payload's list rather than returning nothing.
			related = relatedFromPayload(cachedPayload)
		}
		if related == nil {
			related = []string{}
		}
		payload["related_searches"] = related
	}

	if cachedPayload != nil {
		payload["cache_metadata"] = map[string]any{
			"status":      hoplite.CacheStatusRefresh,
			"age_seconds": roundAge(lookup.AgeSeconds),
		}
		s.publish(ctx, eventbus.EventCacheRefresh, req.Query, lookup.AgeSeconds)
	} else {
		payload["cache_metadata"] = map[string]any{
			"status":      hoplite.CacheStatusMiss,
			"age_seconds": 0.0,
		}
		s.publish(ctx, eventbus.EventCacheMiss, req.Query, 0)
	}

	s.cacheMutex.Lock()
	s.cache.Set(cacheKey, searchIntent, embeddingSignature, payload)
	s.cacheMutex.Unlock()

	s.logger.Debug("search stored",
		zap.String("query", req.Query),
		zap.String("intent", string(searchIntent)),
		zap.Int("results", len(payloadResults)))
	return payload, nil
}

// MarkDomainStale invalidates every cached payload mentioning the domain.
func (s *Service) MarkDomainStale(domain string) int {
	s.cacheMutex.Lock()
	removed := s.cache.MarkDomainStale(domain)
	s.cacheMutex.Unlock()

	if removed > 0 {
		s.logger.Info("cache entries invalidated",
			zap.String("domain", domain),
			zap.Int("removed", removed))
		s.publish(context.Background(), eventbus.EventCacheInvalidated, domain, 0)
	}
	return removed
}

// ClearCache drops every cached entry.
func (s *Service) ClearCache() {
	s.cacheMutex.Lock()
	s.cache.Clear()
	s.cacheMutex.Unlock()
}

// Snapshot saves the cache through the given store under the cache lock.
func (s *Service) Snapshot(store *cache.SnapshotStore) error {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()
	return store.Save(s.cache)
}

// mergeResults concatenates fresh results ahead of cached ones and removes
// URL duplicates, keeping the first occurrence: fresh results win, cached
// results survive only for URLs the fresh fetch did not return.
func mergeResults(fresh, cached []any) []any {
	merged := make([]any, 0, len(fresh)+len(cached))
	seen := make(map[string]struct{}, len(fresh)+len(cached))

	for _, raw := range append(append([]any{}, fresh...), cached...) {
		result, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		url, _ := result["url"].(string)
		if url == "" {
			continue
		}
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		merged = append(merged, raw)
	}
	return merged
}

func relatedFromPayload(payload hoplite.Payload) []string {
	switch v := payload["related_searches"].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func roundAge(age float64) float64 {
	return math.Round(age*100) / 100
}

func (s *Service) publish(ctx context.Context, eventType eventbus.EventType, subject string, age float64) {
	if s.bus == nil {
		return
	}
	_ = s.bus.Publish(ctx, eventbus.NewEvent(eventType, "search", nil, map[string]any{
		"subject":     subject,
		"age_seconds": age,
	}))
}
