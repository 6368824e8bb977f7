// Package notify publishes and fans out change notifications for the
// registry (spec.md §4.4). Publishing happens inside the mutating
// transaction in store; the Listener here is the independent goroutine
// that turns raw Postgres NOTIFY payloads into a stream of Schema values
// for every open watcher (spec §4.8's WatchAllSchemaUpdates consumer).
package notify

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cdl-project/schema-registry/internal/registry/regtypes"
)

// Channel is the Postgres LISTEN/NOTIFY channel name. Kept literal per
// original_source/db.rs::SCHEMAS_LISTEN_CHANNEL ("schemas").
const Channel = "schemas"

// Publish issues NOTIFY schemas, <payload> as the last statement of the
// caller's transaction (spec §4.3/§5 — "the notification is the last
// write, so no watcher can observe a change before the committed row is
// queryable").
func Publish(ctx context.Context, tx pgx.Tx, schema regtypes.Schema) error {
	payload, err := json.Marshal(schema)
	if err != nil {
		return &regtypes.NotificationError{Cause: err}
	}

	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, Channel, string(payload)); err != nil {
		return &regtypes.NotificationError{Cause: err}
	}
	return nil
}

// Event is one item delivered to a watcher: either a well-formed Schema or
// a malformed-payload error (spec §4.4 — malformed notifications are
// forwarded as in-stream items, never close the stream).
type Event struct {
	Schema regtypes.Schema
	Err    *regtypes.MalformedNotificationError
}

// watcherBufferSize bounds each watcher's channel; slow consumers that
// overflow it are evicted rather than letting the buffer grow unbounded
// (spec §5/§9).
const watcherBufferSize = 64

// Listener holds a dedicated connection that LISTENs on Channel and fans
// every notification out to all currently-registered watchers, in the
// order Postgres delivers them (spec §4.4 ordering guarantee).
type Listener struct {
	logger *zap.Logger

	mu       sync.Mutex
	watchers map[int64]chan Event
	nextID   int64
}

// NewListener returns a Listener with no watchers; it opens no connection.
// Callers must call Run, which acquires the dedicated connection and blocks
// until ctx is cancelled or the connection fails.
func NewListener(logger *zap.Logger) *Listener {
	return &Listener{
		logger:   logger,
		watchers: make(map[int64]chan Event),
	}
}

// Subscribe registers a new watcher and returns its event channel plus an
// unsubscribe function. The channel is closed once unsubscribed.
func (l *Listener) Subscribe() (<-chan Event, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++
	ch := make(chan Event, watcherBufferSize)
	l.watchers[id] = ch

	unsubscribe := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if existing, ok := l.watchers[id]; ok {
			delete(l.watchers, id)
			close(existing)
		}
	}
	return ch, unsubscribe
}

// Run blocks listening on a dedicated connection acquired from pool,
// dispatching every notification until ctx is cancelled. It mirrors
// original_source/db.rs::listen_to_schema_updates's PgListener loop: a
// malformed payload is forwarded as an Event carrying an error, the loop
// never exits because of it.
func (l *Listener) Run(ctx context.Context, pool *pgxpool.Pool) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return &regtypes.ConnectionError{Cause: err}
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{Channel}.Sanitize()); err != nil {
		return &regtypes.NotificationError{Cause: err}
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return &regtypes.NotificationError{Cause: err}
		}

		l.dispatch(n.Payload)
	}
}

func (l *Listener) dispatch(payload string) {
	event := Event{}

	var schema regtypes.Schema
	if err := json.Unmarshal([]byte(payload), &schema); err != nil {
		event.Err = &regtypes.MalformedNotificationError{Payload: payload, Cause: err}
	} else {
		event.Schema = schema
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for id, ch := range l.watchers {
		select {
		case ch <- event:
		default:
			// slow consumer: evict rather than grow the buffer (spec §5/§9)
			if l.logger != nil {
				l.logger.Warn("evicting slow watcher", zap.Int64("watcher_id", id))
			}
			delete(l.watchers, id)
			close(ch)
		}
	}
}
