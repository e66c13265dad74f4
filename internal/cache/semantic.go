// Package cache implements the intent-aware semantic response cache.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/hoplite-search/hoplite"
)

// intentTTL maps each intent to the maximum age a cached response may have
// before it stops counting as a direct hit.
var intentTTL = map[hoplite.Intent]time.Duration{
	hoplite.IntentNews:      15 * time.Minute,
	hoplite.IntentTechnical: 24 * time.Hour,
	hoplite.IntentShopping:  6 * time.Hour,
	hoplite.IntentAcademic:  36 * time.Hour,
	hoplite.IntentFinance:   3 * time.Hour,
	hoplite.IntentLocal:     2 * time.Hour,
	hoplite.IntentGeneral:   6 * time.Hour,
}

const defaultMaxEntries = 256

// Entry is one cached response with its bookkeeping metadata.
type Entry struct {
	Key                string
	Intent             hoplite.Intent
	EmbeddingSignature string
	Payload            hoplite.Payload
	CreatedAt          time.Time
}

// Lookup is the outcome of a cache read. Payload is a deep copy of the
// stored value; mutating it never affects the cache.
type Lookup struct {
	Payload    hoplite.Payload
	AgeSeconds float64
	Fresh      bool
}

// SemanticCache is a bounded LRU cache keyed by semantic query fingerprints.
//
// It is a pure in-memory data structure with no internal locking; an owner
// sharing one instance across concurrent callers must serialize access.
type SemanticCache struct {
	store      map[string]*list.Element
	order      *list.List // front = most recently used
	maxEntries int
	ttl        map[hoplite.Intent]time.Duration
	now        func() time.Time
}

// Option configures a SemanticCache.
type Option func(*SemanticCache)

// WithMaxEntries sets the cache capacity.
func WithMaxEntries(n int) Option {
	return func(c *SemanticCache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithTTLOverrides replaces the freshness window for the given intents.
func WithTTLOverrides(overrides map[hoplite.Intent]time.Duration) Option {
	return func(c *SemanticCache) {
		for intent, ttl := range overrides {
			if ttl > 0 {
				c.ttl[intent] = ttl
			}
		}
	}
}

// WithClock sets the time source. Used by tests to pin entry ages.
func WithClock(now func() time.Time) Option {
	return func(c *SemanticCache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a semantic cache with the default capacity of 256 entries.
func New(options ...Option) *SemanticCache {
	c := &SemanticCache{
		store:      make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: defaultMaxEntries,
		ttl:        make(map[hoplite.Intent]time.Duration, len(intentTTL)),
		now:        time.Now,
	}
	for intent, ttl := range intentTTL {
		c.ttl[intent] = ttl
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// EmbedQuery derives a stable fingerprint from the case-folded query text.
// This is a content fingerprint, not a vector embedding: identical text maps
// to identical signatures, any textual difference changes the signature.
func EmbedQuery(query string) string {
	digest := sha256.Sum256([]byte(strings.ToLower(query)))
	return hex.EncodeToString(digest[:])[:24]
}

// KeyParams are the request fields that define a cacheable equivalence class.
type KeyParams struct {
	Intent             hoplite.Intent
	EmbeddingSignature string
	Count              int
	Offset             int
	Page               int
	Site               string
	TimePeriod         string
	Related            bool
	RelatedCount       int
}

// MakeKey builds the composite fingerprint key. Two requests with the same
// field tuple produce byte-identical keys.
func MakeKey(p KeyParams) string {
	site := p.Site
	if site == "" {
		site = "*"
	}
	period := p.TimePeriod
	if period == "" {
		period = "*"
	}
	relatedFlag := "plain"
	if p.Related {
		relatedFlag = "related"
	}
	parts := []string{
		string(p.Intent),
		p.EmbeddingSignature,
		strconv.Itoa(p.Count),
		strconv.Itoa(p.Offset),
		strconv.Itoa(p.Page),
		site,
		period,
		relatedFlag,
		strconv.Itoa(p.RelatedCount),
	}
	return strings.Join(parts, "|")
}

func (c *SemanticCache) ttlFor(intent hoplite.Intent) time.Duration {
	if ttl, ok := c.ttl[intent]; ok {
		return ttl
	}
	return c.ttl[hoplite.IntentGeneral]
}

// Get retrieves a cached entry by key. A nil return means no entry exists.
// A fresh hit refreshes the entry's recency position; a stale hit does not,
// so stale entries stay first in line for eviction while remaining available
// as merge fallback payloads.
func (c *SemanticCache) Get(key string, intent hoplite.Intent) *Lookup {
	elem, ok := c.store[key]
	if !ok {
		return nil
	}
	entry := elem.Value.(*Entry)

	age := c.now().Sub(entry.CreatedAt).Seconds()
	fresh := age <= c.ttlFor(intent).Seconds()

	if fresh {
		c.order.MoveToFront(elem)
	}

	return &Lookup{
		Payload:    clonePayload(entry.Payload),
		AgeSeconds: age,
		Fresh:      fresh,
	}
}

// Set inserts or replaces the entry for key, storing a deep copy of payload
// and moving the entry to the most-recently-used position, then evicts the
// least recently used entries down to capacity.
func (c *SemanticCache) Set(key string, intent hoplite.Intent, embeddingSignature string, payload hoplite.Payload) {
	entry := &Entry{
		Key:                key,
		Intent:             intent,
		EmbeddingSignature: embeddingSignature,
		Payload:            clonePayload(payload),
		CreatedAt:          c.now(),
	}

	if elem, ok := c.store[key]; ok {
		elem.Value = entry
		c.order.MoveToFront(elem)
	} else {
		c.store[key] = c.order.PushFront(entry)
	}

	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeElement(oldest)
	}
}

// MarkDomainStale evicts every entry whose payload contains a result whose
// domain case-insensitively contains the given substring. Returns the number
// of entries removed. Linear in entries times results per entry, which the
// bounded capacity keeps cheap.
func (c *SemanticCache) MarkDomainStale(domain string) int {
	lowered := strings.ToLower(domain)

	var stale []*list.Element
	for _, elem := range c.store {
		entry := elem.Value.(*Entry)
		if payloadMentionsDomain(entry.Payload, lowered) {
			stale = append(stale, elem)
		}
	}
	for _, elem := range stale {
		c.removeElement(elem)
	}
	return len(stale)
}

func payloadMentionsDomain(payload hoplite.Payload, lowered string) bool {
	results, ok := payload["results"].([]any)
	if !ok {
		return false
	}
	for _, raw := range results {
		result, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		candidate, _ := result["domain"].(string)
		if candidate != "" && strings.Contains(strings.ToLower(candidate), lowered) {
			return true
		}
	}
	return false
}

// Clear empties the cache unconditionally.
func (c *SemanticCache) Clear() {
	c.store = make(map[string]*list.Element)
	c.order.Init()
}

// Len returns the number of stored entries.
func (c *SemanticCache) Len() int {
	return c.order.Len()
}

// Entries returns a snapshot of all entries in recency order, most recent
// first. Used by the snapshot store; payloads are deep-copied.
func (c *SemanticCache) Entries() []Entry {
	out := make([]Entry, 0, c.order.Len())
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		entry := elem.Value.(*Entry)
		out = append(out, Entry{
			Key:                entry.Key,
			Intent:             entry.Intent,
			EmbeddingSignature: entry.EmbeddingSignature,
			Payload:            clonePayload(entry.Payload),
			CreatedAt:          entry.CreatedAt,
		})
	}
	return out
}

// Restore inserts a previously snapshotted entry preserving its creation
// time. Entries are restored least recent first so recency order survives a
// round trip.
func (c *SemanticCache) Restore(entry Entry) {
	restored := &Entry{
		Key:                entry.Key,
		Intent:             entry.Intent,
		EmbeddingSignature: entry.EmbeddingSignature,
		Payload:            clonePayload(entry.Payload),
		CreatedAt:          entry.CreatedAt,
	}
	if elem, ok := c.store[entry.Key]; ok {
		elem.Value = restored
		c.order.MoveToFront(elem)
	} else {
		c.store[entry.Key] = c.order.PushFront(restored)
	}
	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeElement(oldest)
	}
}

func (c *SemanticCache) removeElement(elem *list.Element) {
	entry := elem.Value.(*Entry)
	c.order.Remove(elem)
	delete(c.store, entry.Key)
}
