package notifier

import (
	"sync"

	"github.com/seedpool/seedpool-backend/internal/store/schema"
)

// streamBuffer absorbs short bursts; a full stream drops, never blocks
const streamBuffer = 16

// Registry maps a recipient to their live notification stream. All access
// goes through Register, Unregister and Publish; there is at most one
// stream per recipient and registering again closes the previous one.
type Registry struct {
	mu      sync.Mutex
	streams map[int64]chan *schema.Notification
}

// NewRegistry creates an empty stream registry
func NewRegistry() *Registry {
	return &Registry{streams: make(map[int64]chan *schema.Notification)}
}

// Register opens a stream for the recipient, replacing and closing any
// previous one so a reconnecting client cannot leak channels
func (r *Registry) Register(recipientID int64) <-chan *schema.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.streams[recipientID]; ok {
		close(prev)
	}

	ch := make(chan *schema.Notification, streamBuffer)
	r.streams[recipientID] = ch
	return ch
}

// Unregister closes the recipient's stream if it is still the given one.
// A stream already replaced by a newer Register call is left alone.
func (r *Registry) Unregister(recipientID int64, stream <-chan *schema.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.streams[recipientID]
	if !ok || (<-chan *schema.Notification)(current) != stream {
		return
	}

	close(current)
	delete(r.streams, recipientID)
}

// Publish pushes a notification to the recipient's live stream. Delivery
// is best-effort: no stream or a full buffer drops the push. The row is
// already persisted, so a dropped push only costs the live update.
func (r *Registry) Publish(recipientID int64, n *schema.Notification) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.streams[recipientID]
	if !ok {
		return false
	}

	select {
	case ch <- n:
		return true
	default:
		return false
	}
}
