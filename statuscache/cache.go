// Package statuscache implements C2: an in-memory, TTL-bounded cache of
// footage and frame statuses scoped to one polling cycle, with a
// parent->children index so a frame's parent-readiness check never needs
// a round trip.
//
// Grounded on utils/status_cache.py's StatusCache class, reimplemented
// on top of patrickmn/go-cache for the TTL bookkeeping instead of a
// hand-rolled timestamp comparison.
package statuscache

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ffbk-dev/autolog-controller/record"
)

// FootageEntry is one cached footage status observation.
type FootageEntry struct {
	ID        string
	RecordKey string
	Status    record.FootageStatus
	Fields    map[string]interface{}
}

// FrameEntry is one cached frame status observation.
type FrameEntry struct {
	ID        string
	ParentID  string
	RecordKey string
	Status    record.FrameStatus
	Caption   string
}

// Readiness is the result of a parent-readiness check.
type Readiness int

const (
	// ReadinessMiss means the cache has no valid entry for the parent;
	// callers should defer and rely on the batch checker to backfill.
	ReadinessMiss Readiness = iota
	// ReadinessNotReady means the parent is cached but not yet past
	// step 3.
	ReadinessNotReady
	// ReadinessReady means the parent is in the ready set: frame
	// processing may proceed.
	ReadinessReady
	// ReadinessTerminalSuccess means the parent has already reached a
	// terminal success status; frame work for it is considered done.
	ReadinessTerminalSuccess
)

var parentReadySet = map[record.FootageStatus]bool{
	record.StatusScrapingURL:           true,
	record.StatusProcessingFrameInfo:   true,
	record.StatusGeneratingDescription: true,
	record.StatusGeneratingEmbeddings:  true,
	record.StatusForceResume:           true,
}

var parentTerminalSuccessSet = map[record.FootageStatus]bool{
	record.StatusApplyingTags: true,
	record.StatusComplete:     true,
}

// Cache is safe for concurrent use. Per-entry mutation is infrequent
// relative to reads within a cycle, so a single coarse lock over the
// secondary index is acceptable given the cache's cycle-scoped lifetime;
// the underlying go-cache instances have their own internal locking for
// the entry maps themselves.
type Cache struct {
	ttl time.Duration

	footage *gocache.Cache
	frames  *gocache.Cache

	mu       sync.Mutex
	children map[string]map[string]struct{} // parent_id -> set<frame_id>

	hits          int64
	misses        int64
	apiCallsSaved int64
}

func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:      ttl,
		footage:  gocache.New(ttl, ttl*2),
		frames:   gocache.New(ttl, ttl*2),
		children: map[string]map[string]struct{}{},
	}
}

// BulkInsertFootage seeds the cache with this cycle's discovery results.
func (c *Cache) BulkInsertFootage(records []FootageEntry) {
	for _, r := range records {
		if r.ID == "" {
			continue
		}
		c.footage.Set(r.ID, r, c.ttl)
	}
}

// BulkInsertFrames seeds the cache with this cycle's discovery results
// and (re)builds the parent->children index for the inserted frames.
func (c *Cache) BulkInsertFrames(records []FrameEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range records {
		if r.ID == "" {
			continue
		}
		c.frames.Set(r.ID, r, c.ttl)
		if r.ParentID == "" {
			continue
		}
		set, ok := c.children[r.ParentID]
		if !ok {
			set = map[string]struct{}{}
			c.children[r.ParentID] = set
		}
		set[r.ID] = struct{}{}
	}
}

// GetFootageStatus returns the cached entry for id and whether it was a
// hit. A miss increments the miss counter; a hit increments the hit
// counter, mirroring get_footage_status's stats bookkeeping.
func (c *Cache) GetFootageStatus(id string) (FootageEntry, bool) {
	v, found := c.footage.Get(id)
	c.mu.Lock()
	if found {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()
	if !found {
		return FootageEntry{}, false
	}
	return v.(FootageEntry), true
}

// IsParentReadyForFrames implements the parent readiness contract from
// §4.2: miss on cache absence/expiry; terminal success for {8, 9}; ready
// for the scraping-through-force-resume set; not ready otherwise.
func (c *Cache) IsParentReadyForFrames(parentID string) (Readiness, record.FootageStatus) {
	entry, found := c.GetFootageStatus(parentID)
	if !found {
		return ReadinessMiss, ""
	}
	if parentTerminalSuccessSet[entry.Status] {
		return ReadinessTerminalSuccess, entry.Status
	}
	if parentReadySet[entry.Status] {
		return ReadinessReady, entry.Status
	}
	return ReadinessNotReady, entry.Status
}

// UniqueParentsNeedingCheck returns the set of parent footage IDs
// referenced by cached frames for which the parent's footage entry is
// absent or stale. C6 feeds this to the batch status checker (C3).
func (c *Cache) UniqueParentsNeedingCheck() []string {
	c.mu.Lock()
	parents := make(map[string]struct{}, len(c.children))
	for p := range c.children {
		parents[p] = struct{}{}
	}
	c.mu.Unlock()

	var needing []string
	for p := range parents {
		if _, found := c.footage.Get(p); !found {
			needing = append(needing, p)
		}
	}
	return needing
}

// BulkUpdateFootageStatuses merges batch-checker results back into the
// cache and records the avoided-call count for observability.
func (c *Cache) BulkUpdateFootageStatuses(entries []FootageEntry, apiCallsSaved int) {
	c.BulkInsertFootage(entries)
	c.mu.Lock()
	c.apiCallsSaved += int64(apiCallsSaved)
	c.mu.Unlock()
}

// ChildrenOf returns the frame ids cached as children of parentID.
func (c *Cache) ChildrenOf(parentID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	set := c.children[parentID]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// GetFrame returns the cached entry for a frame id.
func (c *Cache) GetFrame(id string) (FrameEntry, bool) {
	v, found := c.frames.Get(id)
	if !found {
		return FrameEntry{}, false
	}
	return v.(FrameEntry), true
}

// ClearExpired drops expired entries. go-cache already excludes expired
// items from Get, so this exists to give the engine a cheap, explicit
// per-cycle hook (and a place future eviction policy can hang off) rather
// than relying solely on go-cache's janitor goroutine.
func (c *Cache) ClearExpired() {
	c.footage.DeleteExpired()
	c.frames.DeleteExpired()
}

// Reset clears all cached data and rebuilds for a new polling cycle,
// matching reset_cache's per-cycle rebuild semantics from the source.
func (c *Cache) Reset() {
	c.footage.Flush()
	c.frames.Flush()
	c.mu.Lock()
	c.children = map[string]map[string]struct{}{}
	c.mu.Unlock()
}

// Stats reports cache performance counters.
type Stats struct {
	Hits          int64
	Misses        int64
	APICallsSaved int64
	HitRate       float64
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return Stats{Hits: c.hits, Misses: c.misses, APICallsSaved: c.apiCallsSaved, HitRate: rate}
}

func (c *Cache) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits, c.misses, c.apiCallsSaved = 0, 0, 0
}
