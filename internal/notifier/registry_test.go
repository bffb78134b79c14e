package notifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedpool/seedpool-backend/internal/store/schema"
)

func TestRegistryPublish(t *testing.T) {
	registry := NewRegistry()
	stream := registry.Register(1)

	n := &schema.Notification{ID: 10, RecipientUserID: 1, Title: "New donation"}
	assert.True(t, registry.Publish(1, n))

	received := <-stream
	assert.Equal(t, n, received)
}

func TestRegistryPublishWithoutStream(t *testing.T) {
	registry := NewRegistry()
	assert.False(t, registry.Publish(1, &schema.Notification{}))
}

// a full buffer drops the push instead of blocking the dispatcher
func TestRegistryPublishFullBufferDrops(t *testing.T) {
	registry := NewRegistry()
	registry.Register(1)

	for i := 0; i < streamBuffer; i++ {
		require.True(t, registry.Publish(1, &schema.Notification{ID: int64(i)}))
	}
	assert.False(t, registry.Publish(1, &schema.Notification{ID: 99}))
}

func TestRegistryRegisterReplacesPreviousStream(t *testing.T) {
	registry := NewRegistry()
	first := registry.Register(1)
	second := registry.Register(1)

	// the first stream was closed by the second Register
	_, open := <-first
	assert.False(t, open)

	assert.True(t, registry.Publish(1, &schema.Notification{ID: 1}))
	n := <-second
	assert.Equal(t, int64(1), n.ID)
}

// a stale handler unregistering must not tear down the stream of the
// connection that replaced it
func TestRegistryUnregisterLeavesReplacementAlone(t *testing.T) {
	registry := NewRegistry()
	first := registry.Register(1)
	second := registry.Register(1)

	registry.Unregister(1, first)
	assert.True(t, registry.Publish(1, &schema.Notification{ID: 2}))

	registry.Unregister(1, second)
	assert.False(t, registry.Publish(1, &schema.Notification{ID: 3}))
	_, open := <-second
	// one buffered notification first, then closed
	assert.True(t, open)
	_, open = <-second
	assert.False(t, open)
}

func TestRegistryStreamsAreIndependent(t *testing.T) {
	registry := NewRegistry()
	alice := registry.Register(1)
	registry.Register(2)

	assert.True(t, registry.Publish(1, &schema.Notification{ID: 5}))

	select {
	case n := <-alice:
		assert.Equal(t, int64(5), n.ID)
	default:
		t.Fatal("expected a buffered notification for recipient 1")
	}
}
