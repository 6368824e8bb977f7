package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdl-project/schema-registry/internal/registry/regtypes"
)

type fakeClient struct {
	events  chan WatchEvent
	getErr  error
	getCall int
	schema  regtypes.Schema
}

func newFakeClient() *fakeClient {
	return &fakeClient{events: make(chan WatchEvent, 8)}
}

func (f *fakeClient) GetSchema(context.Context, uuid.UUID) (regtypes.Schema, error) {
	f.getCall++
	return f.schema, f.getErr
}

func (f *fakeClient) WatchAllSchemaUpdates(context.Context) (<-chan WatchEvent, error) {
	return f.events, nil
}

func TestGetSchemaFillsOnMiss(t *testing.T) {
	id := uuid.New()
	client := newFakeClient()
	client.schema = regtypes.Schema{ID: id, Name: "orders"}

	c, err := New(context.Background(), client)
	require.NoError(t, err)

	schema, err := c.GetSchema(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "orders", schema.Name)
	assert.Equal(t, 1, client.getCall)

	// second call should be served from the cache, not another round-trip.
	_, err = c.GetSchema(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, client.getCall)
}

func TestNotificationUpdatesOnlyExistingEntries(t *testing.T) {
	id := uuid.New()
	client := newFakeClient()
	client.schema = regtypes.Schema{ID: id, Name: "orders"}

	c, err := New(context.Background(), client)
	require.NoError(t, err)

	// a notification for an unseen id is dropped, never inserted.
	unseen := regtypes.Schema{ID: uuid.New(), Name: "never-fetched"}
	client.events <- WatchEvent{Schema: unseen}
	time.Sleep(10 * time.Millisecond)

	c.mu.RLock()
	_, present := c.schemas[unseen.ID]
	c.mu.RUnlock()
	assert.False(t, present)

	// fill it via a point read, then a notification should update it in place.
	_, err = c.GetSchema(context.Background(), id)
	require.NoError(t, err)

	updated := regtypes.Schema{ID: id, Name: "orders-renamed"}
	client.events <- WatchEvent{Schema: updated}
	time.Sleep(10 * time.Millisecond)

	c.mu.RLock()
	got := c.schemas[id]
	c.mu.RUnlock()
	assert.Equal(t, "orders-renamed", got.Name)
}

func TestMalformedNotificationDoesNotCloseStream(t *testing.T) {
	client := newFakeClient()
	c, err := New(context.Background(), client)
	require.NoError(t, err)

	client.events <- WatchEvent{Err: assertError{}}
	time.Sleep(10 * time.Millisecond)

	select {
	case <-c.Err():
		t.Fatal("malformed notification should not be fatal")
	default:
	}
}

func TestWatchStreamClosureIsFatalOnce(t *testing.T) {
	client := newFakeClient()
	c, err := New(context.Background(), client)
	require.NoError(t, err)

	close(client.events)

	select {
	case err := <-c.Err():
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("expected a fatal error after the watch stream closed")
	}
}

type assertError struct{}

func (assertError) Error() string { return "malformed" }
