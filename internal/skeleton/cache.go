package skeleton

import (
	"context"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultStaleness is how old the last scan may be before EnsureFresh
// triggers a differential rescan.
const DefaultStaleness = 5 * time.Minute

// scanOverlap is subtracted from the differential cutoff so a file
// written while the previous scan was running (modtime at or before
// that scan's timestamp) is still picked up by the next scan.
const scanOverlap = time.Second

// snapshot is the immutable published state. Readers hold a *snapshot
// and never observe a rebuild in progress.
type snapshot struct {
	byID map[string]*TaskSkeleton
}

// Cache holds one skeleton per task with copy-on-write snapshots.
// EnsureFresh may run concurrently with readers; readers see either the
// pre-rebuild or post-rebuild state, never an interleaving.
type Cache struct {
	scanner   Scanner
	now       func() time.Time
	staleness time.Duration

	cur atomic.Pointer[snapshot]

	mu         sync.Mutex // serializes rebuilds
	lastScan   map[string]time.Time
	dirty      atomic.Bool
	fullRescan atomic.Bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock injects a clock, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithStaleness overrides the staleness window.
func WithStaleness(d time.Duration) Option {
	return func(c *Cache) { c.staleness = d }
}

// NewCache creates an empty cache over the given scanner.
func NewCache(sc Scanner, opts ...Option) *Cache {
	c := &Cache{
		scanner:   sc,
		now:       time.Now,
		staleness: DefaultStaleness,
		lastScan:  make(map[string]time.Time),
	}
	for _, o := range opts {
		o(c)
	}
	c.cur.Store(&snapshot{byID: map[string]*TaskSkeleton{}})
	return c
}

// EnsureFresh brings the cache up to date. Empty cache: full rebuild.
// Non-empty: differential rescan of records newer than the last scan,
// but only when the staleness window has lapsed or the cache was marked
// dirty. workspace, when non-empty, restricts the scan scope for cost
// control. Scan failures are logged and leave the last-known-good
// content in place — never fatal, never a cleared cache.
func (c *Cache) EnsureFresh(ctx context.Context, workspace string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.cur.Load()
	last := c.lastScan[workspace]

	if len(snap.byID) > 0 && !c.dirty.Load() && c.now().Sub(last) < c.staleness {
		return
	}

	var since time.Time
	full := len(snap.byID) == 0 || c.fullRescan.Load()
	if !full {
		// Overlap the cutoff so records written during the previous
		// scan cannot fall between two windows.
		since = last.Add(-scanOverlap)
	}

	start := c.now()
	scanned, err := c.scanner.Scan(ctx, workspace, since)
	if err != nil {
		log.Printf("WARNING: skeleton cache: scan failed, keeping last-known-good (%d tasks): %v", len(snap.byID), err)
		return
	}
	c.dirty.Store(false)
	if full && workspace == "" {
		c.fullRescan.Store(false)
	}
	c.lastScan[workspace] = start

	// A full rebuild replaces rather than merges, which is where
	// deleted records drop out. A scoped full rebuild replaces only the
	// scanned workspace; differential rescans always merge.
	var next map[string]*TaskSkeleton
	switch {
	case full && workspace == "":
		next = make(map[string]*TaskSkeleton, len(scanned))
	case full:
		next = make(map[string]*TaskSkeleton, len(snap.byID)+len(scanned))
		for id, sk := range snap.byID {
			if sk.Workspace != workspace {
				next[id] = sk
			}
		}
	default:
		next = make(map[string]*TaskSkeleton, len(snap.byID)+len(scanned))
		for id, sk := range snap.byID {
			next[id] = sk
		}
	}
	for _, sk := range scanned {
		if sk == nil || sk.TaskID == "" {
			continue
		}
		next[sk.TaskID] = sk
	}
	c.cur.Store(&snapshot{byID: next})
}

// MarkDirty forces the next EnsureFresh to rescan regardless of the
// staleness window. Called by file watchers on create/write events.
func (c *Cache) MarkDirty() {
	c.dirty.Store(true)
}

// Invalidate forces the next EnsureFresh to rebuild from a zero cutoff
// and replace the snapshot instead of merging into it, so records whose
// files were deleted drop out. Called by file watchers on remove/rename
// events.
func (c *Cache) Invalidate() {
	c.fullRescan.Store(true)
	c.dirty.Store(true)
}

// Get returns the skeleton for taskID, if present.
func (c *Cache) Get(taskID string) (*TaskSkeleton, bool) {
	sk, ok := c.cur.Load().byID[taskID]
	return sk, ok
}

// All returns the current snapshot's skeletons ordered by TaskID.
// The slice is a stable view: a concurrent rebuild does not affect it.
func (c *Cache) All() []*TaskSkeleton {
	byID := c.cur.Load().byID
	out := make([]*TaskSkeleton, 0, len(byID))
	for _, sk := range byID {
		out = append(out, sk)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	return out
}

// Len returns the number of cached skeletons.
func (c *Cache) Len() int {
	return len(c.cur.Load().byID)
}
