package datastore

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// queryCache is a TTL-keyed query result cache. Entries are invalidated by
// TTL only, never by writes; callers accept up to TTL of staleness.
// Expired entries are swept opportunistically on the next cache write
// rather than by a background janitor, so the cache holds no timer.
type queryCache struct {
	c   *cache.Cache
	ttl time.Duration
}

func newQueryCache(ttl time.Duration) *queryCache {
	// Cleanup interval 0 disables go-cache's janitor goroutine.
	return &queryCache{c: cache.New(ttl, 0), ttl: ttl}
}

func (q *queryCache) get(key string) (any, bool) {
	return q.c.Get(key)
}

func (q *queryCache) set(key string, value any) {
	q.c.DeleteExpired()
	q.c.Set(key, value, cache.DefaultExpiration)
}

// copyFrames returns a copy deep enough that callers cannot mutate cached
// state. Frame has no reference fields beyond the slice itself.
func copyFrames(frames []Frame) []Frame {
	out := make([]Frame, len(frames))
	copy(out, frames)
	return out
}

func copyResults(results []DetectorResult) []DetectorResult {
	out := make([]DetectorResult, len(results))
	for i := range results {
		out[i] = results[i].Copy()
	}
	return out
}
