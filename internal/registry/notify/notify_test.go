package notify

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdl-project/schema-registry/internal/registry/regtypes"
)

func TestDispatchDeliversToEverySubscriber(t *testing.T) {
	l := NewListener(nil)

	ch1, unsub1 := l.Subscribe()
	defer unsub1()
	ch2, unsub2 := l.Subscribe()
	defer unsub2()

	schema := regtypes.Schema{ID: uuid.New(), Name: "orders", Type: regtypes.SchemaTypeDocumentStorage}
	payload, err := json.Marshal(schema)
	require.NoError(t, err)

	l.dispatch(string(payload))

	ev1 := <-ch1
	ev2 := <-ch2
	assert.Nil(t, ev1.Err)
	assert.Nil(t, ev2.Err)
	assert.Equal(t, schema.ID, ev1.Schema.ID)
	assert.Equal(t, schema.ID, ev2.Schema.ID)
}

func TestDispatchMalformedPayloadIsInStreamError(t *testing.T) {
	l := NewListener(nil)

	ch, unsub := l.Subscribe()
	defer unsub()

	l.dispatch("{not json")

	ev := <-ch
	require.NotNil(t, ev.Err)
	assert.Equal(t, "{not json", ev.Err.Payload)

	// the stream stays open: a well-formed notification still arrives after.
	schema := regtypes.Schema{ID: uuid.New(), Name: "orders", Type: regtypes.SchemaTypeTimeseries}
	payload, err := json.Marshal(schema)
	require.NoError(t, err)
	l.dispatch(string(payload))

	ev2 := <-ch
	assert.Nil(t, ev2.Err)
	assert.Equal(t, schema.ID, ev2.Schema.ID)
}

func TestDispatchEvictsSlowWatcher(t *testing.T) {
	l := NewListener(nil)

	ch, _ := l.Subscribe()
	schema := regtypes.Schema{ID: uuid.New(), Name: "orders", Type: regtypes.SchemaTypeDocumentStorage}
	payload, err := json.Marshal(schema)
	require.NoError(t, err)

	for i := 0; i < watcherBufferSize+1; i++ {
		l.dispatch(string(payload))
	}

	l.mu.Lock()
	_, stillRegistered := l.watchers[0]
	l.mu.Unlock()
	assert.False(t, stillRegistered, "slow watcher should have been evicted")

	// draining the buffered events should then observe the channel closed.
	for range watcherBufferSize {
		<-ch
	}
	_, open := <-ch
	assert.False(t, open)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	l := NewListener(nil)

	ch, unsubscribe := l.Subscribe()
	unsubscribe()

	_, open := <-ch
	assert.False(t, open)
}
