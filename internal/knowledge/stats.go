package knowledge

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// CachedStats is the per-base stats.json snapshot written after every
// successful Learn, so `stats` can answer without reopening the vector
// index. It is a cache, never authoritative: the index's own counters
// remain the source of truth and the file is rewritten whenever they
// change.
type CachedStats struct {
	SourcesCount  int       `json:"sources_count"`
	ChunksCount   int       `json:"chunks_count"`
	TotalBytes    int64     `json:"total_bytes"`
	LastIndexedAt time.Time `json:"last_indexed_at"`
}

func statsCachePath(workspace, baseName string) string {
	return filepath.Join(baseDir(workspace, baseName), "stats.json")
}

// WriteStatsCache persists st as <base>/stats.json.
func WriteStatsCache(workspace, baseName string, st CachedStats) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return NewError(KindIO, err)
	}
	if err := os.WriteFile(statsCachePath(workspace, baseName), data, 0o644); err != nil {
		return NewError(KindIO, err)
	}
	return nil
}

// ReadStatsCache loads <base>/stats.json. The second return is false
// when no cache exists or it cannot be parsed; callers fall back to
// the live index counters.
func ReadStatsCache(workspace, baseName string) (CachedStats, bool) {
	data, err := os.ReadFile(statsCachePath(workspace, baseName))
	if err != nil {
		return CachedStats{}, false
	}
	var st CachedStats
	if err := json.Unmarshal(data, &st); err != nil {
		return CachedStats{}, false
	}
	return st, true
}
