// Package cache is the in-process client-side mirror of the registry, kept
// live by the watch stream (spec.md §4.8). Generalizes crxfoz-srclient's
// RWMutex-guarded cache map and original_source/cache.rs's one-shot
// fatal-error channel plus overwrite-only-existing-keys semantics.
package cache

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/cdl-project/schema-registry/internal/registry/regtypes"
)

// Client is the interface the cache uses to talk to the registry's RPC
// surface: a point lookup for cache misses and a long-lived watch stream
// for live updates.
type Client interface {
	GetSchema(ctx context.Context, id uuid.UUID) (regtypes.Schema, error)
	WatchAllSchemaUpdates(ctx context.Context) (<-chan WatchEvent, error)
}

// WatchEvent mirrors notify.Event at the RPC boundary: either a schema or
// a malformed-notification error, never fatal to the stream itself.
type WatchEvent struct {
	Schema regtypes.Schema
	Err    error
}

// maxConcurrentMisses bounds how many cache-miss GetSchema round-trips can
// be in flight at once, so a burst of concurrent misses cannot drive
// unbounded concurrent requests (SPEC_FULL.md C8 note). Notifications never
// issue GetSchema themselves.
const maxConcurrentMisses = 8

// Cache is safe for concurrent use. Construct with New, which opens the
// watch stream immediately; call Err() to observe a one-shot fatal failure
// of that stream.
type Cache struct {
	client Client

	mu      sync.RWMutex
	schemas map[uuid.UUID]regtypes.Schema

	missSem *semaphore.Weighted

	fatal     chan error
	fatalOnce sync.Once
}

// New opens the watch stream and returns a cache that is kept live by it.
// ctx is passed to the client's WatchAllSchemaUpdates; the background watch
// loop runs until the event channel is closed, and that closure is reported
// once through Err.
func New(ctx context.Context, client Client) (*Cache, error) {
	events, err := client.WatchAllSchemaUpdates(ctx)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		client:  client,
		schemas: make(map[uuid.UUID]regtypes.Schema),
		missSem: semaphore.NewWeighted(maxConcurrentMisses),
		fatal:   make(chan error, 1),
	}

	go c.watch(events)

	return c, nil
}

// Err returns a channel that receives exactly one error: the first fatal
// failure of the watch stream. Hosts are expected to crash-restart on
// receiving from it, preferring that to silent divergence (spec §9).
func (c *Cache) Err() <-chan error {
	return c.fatal
}

func (c *Cache) watch(events <-chan WatchEvent) {
	for ev := range events {
		if ev.Err != nil {
			// malformed notifications are not fatal; they are simply
			// dropped, same as original_source/cache.rs's handling of a
			// per-item parse failure inside the stream loop.
			continue
		}
		c.applyNotification(ev.Schema)
	}

	c.fatalOnce.Do(func() {
		c.fatal <- errWatchClosed
	})
}

// applyNotification overwrites only an existing entry; it never inserts
// from a notification alone. A concurrent miss always does a point read,
// so the two paths cannot race into an incorrect insert (spec §4.8).
func (c *Cache) applyNotification(schema regtypes.Schema) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.schemas[schema.ID]; ok {
		c.schemas[schema.ID] = schema
	}
}

// GetSchema returns the cached value for id, filling the cache via a point
// read on a miss (spec §4.8).
func (c *Cache) GetSchema(ctx context.Context, id uuid.UUID) (regtypes.Schema, error) {
	c.mu.RLock()
	schema, ok := c.schemas[id]
	c.mu.RUnlock()
	if ok {
		return schema, nil
	}

	if err := c.missSem.Acquire(ctx, 1); err != nil {
		return regtypes.Schema{}, err
	}
	defer c.missSem.Release(1)

	// re-check: another goroutine may have filled it while we waited on
	// the semaphore.
	c.mu.RLock()
	schema, ok = c.schemas[id]
	c.mu.RUnlock()
	if ok {
		return schema, nil
	}

	schema, err := c.client.GetSchema(ctx, id)
	if err != nil {
		return regtypes.Schema{}, err
	}

	c.mu.Lock()
	c.schemas[schema.ID] = schema
	c.mu.Unlock()

	return schema, nil
}

var errWatchClosed = &regtypes.NotificationError{Cause: errWatchClosedCause{}}

type errWatchClosedCause struct{}

func (errWatchClosedCause) Error() string { return "watch stream closed" }
