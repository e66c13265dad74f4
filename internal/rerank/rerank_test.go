package rerank

import (
	"testing"

	"github.com/hoplite-search/hoplite"
)

func TestReranker_OrdersByRelevance(t *testing.T) {
	reranker := NewReranker()

	results := []hoplite.SearchResult{
		{Title: "Unrelated gardening tips", Description: "soil and compost", Domain: "garden.org", URL: "u1"},
		{Title: "Go generics deep dive", Description: "go generics explained with examples", Domain: "blog.example.com", URL: "u2"},
		{Title: "Generics in Go", Description: "an introduction", Domain: "example.com", URL: "u3"},
	}

	ranked := reranker.Rerank("go generics", results, hoplite.IntentGeneral)

	if ranked[0].URL != "u2" {
		t.Errorf("expected strongest lexical match first, got %v", ranked[0].URL)
	}
	if ranked[len(ranked)-1].URL != "u1" {
		t.Errorf("expected unrelated result last, got %v", ranked[len(ranked)-1].URL)
	}
}

func TestReranker_DomainBoost(t *testing.T) {
	reranker := NewReranker()

	results := []hoplite.SearchResult{
		{Title: "http server", Description: "", Domain: "randomsite.com", URL: "plain"},
		{Title: "http server", Description: "", Domain: "github.com", URL: "boosted"},
	}

	ranked := reranker.Rerank("http server", results, hoplite.IntentTechnical)
	if ranked[0].URL != "boosted" {
		t.Errorf("expected intent-typical domain boosted ahead, got %v", ranked[0].URL)
	}

	// Without a matching intent the tie keeps input order.
	ranked = reranker.Rerank("http server", results, hoplite.IntentGeneral)
	if ranked[0].URL != "plain" {
		t.Errorf("expected stable order without boost, got %v", ranked[0].URL)
	}
}

func TestReranker_EmptyQueryPreservesOrder(t *testing.T) {
	reranker := NewReranker()

	results := []hoplite.SearchResult{
		{Title: "first", URL: "u1"},
		{Title: "second", URL: "u2"},
	}

	ranked := reranker.Rerank("!!!", results, hoplite.IntentGeneral)
	if ranked[0].URL != "u1" || ranked[1].URL != "u2" {
		t.Errorf("expected input order preserved, got %v", ranked)
	}
}

func TestReranker_DoesNotMutateInput(t *testing.T) {
	reranker := NewReranker()

	results := []hoplite.SearchResult{
		{Title: "unrelated", URL: "u1"},
		{Title: "go generics", URL: "u2"},
	}

	reranker.Rerank("go generics", results, hoplite.IntentGeneral)
	if results[0].URL != "u1" {
		t.Errorf("expected input slice untouched, got %v", results[0].URL)
	}
}
