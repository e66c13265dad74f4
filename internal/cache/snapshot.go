package cache

import (
	"encoding/json"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/hoplite-search/hoplite"
)

// snapshotEntry is the on-disk form of a cache entry.
type snapshotEntry struct {
	Key                string          `json:"key"`
	Intent             hoplite.Intent  `json:"intent"`
	EmbeddingSignature string          `json:"embedding_signature"`
	Payload            hoplite.Payload `json:"payload"`
	CreatedAt          time.Time       `json:"created_at"`
}

// SnapshotStore persists cache entries to a JSON file so a restarted
// process keeps its warm entries. Staleness needs no special handling on
// load: the TTL logic ages restored entries out on read.
type SnapshotStore struct {
	path   string
	logger *zap.Logger
}

// NewSnapshotStore creates a snapshot store writing to path.
func NewSnapshotStore(path string, logger *zap.Logger) *SnapshotStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotStore{path: path, logger: logger}
}

// Save writes the cache's current entries to the snapshot file.
func (s *SnapshotStore) Save(c *SemanticCache) error {
	entries := c.Entries()
	out := make([]snapshotEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, snapshotEntry{
			Key:                entry.Key,
			Intent:             entry.Intent,
			EmbeddingSignature: entry.EmbeddingSignature,
			Payload:            entry.Payload,
			CreatedAt:          entry.CreatedAt,
		})
	}

	file, err := os.Create(s.path)
	if err != nil {
		return hoplite.NewCacheError("snapshot", "save", err)
	}
	defer file.Close()

	if err := json.NewEncoder(file).Encode(out); err != nil {
		return hoplite.NewCacheError("snapshot", "save", err)
	}
	s.logger.Debug("cache snapshot saved", zap.String("path", s.path), zap.Int("entries", len(out)))
	return nil
}

// Load restores entries from the snapshot file into the cache. A missing
// file is not an error; the cache simply starts cold.
func (s *SnapshotStore) Load(c *SemanticCache) error {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return hoplite.NewCacheError("snapshot", "load", err)
	}
	defer file.Close()

	var entries []snapshotEntry
	if err := json.NewDecoder(file).Decode(&entries); err != nil {
		return hoplite.NewCacheError("snapshot", "load", err)
	}

	// Restore least recent first so the recency order survives the round trip.
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		c.Restore(Entry{
			Key:                entry.Key,
			Intent:             entry.Intent,
			EmbeddingSignature: entry.EmbeddingSignature,
			Payload:            entry.Payload,
			CreatedAt:          entry.CreatedAt,
		})
	}
	s.logger.Debug("cache snapshot loaded", zap.String("path", s.path), zap.Int("entries", len(entries)))
	return nil
}
