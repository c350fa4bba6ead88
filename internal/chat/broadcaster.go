// ABOUTME: In-memory fan-out of newly appended room messages to live viewers.
// ABOUTME: Non-blocking sends under the read lock; slow viewers drop, never block.

package chat

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// viewerBufferSize is the channel buffer for each viewer. A viewer that
// falls this far behind starts losing messages rather than stalling room
// processing.
const viewerBufferSize = 64

// Broadcaster pushes appended room messages to local live viewers (one SSE
// connection per viewer, typically). Viewers are keyed by room id.
type Broadcaster struct {
	mu      sync.RWMutex
	viewers map[string]map[string]chan *Message // roomID -> subID -> ch
	logger  *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		viewers: make(map[string]map[string]chan *Message),
		logger:  logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a viewer for the room and returns its channel plus a
// subscription id. The subscription is removed automatically when ctx is
// cancelled; Unsubscribe may also be called directly and is idempotent.
func (b *Broadcaster) Subscribe(ctx context.Context, roomID string) (<-chan *Message, string) {
	subID := uuid.New().String()
	ch := make(chan *Message, viewerBufferSize)

	b.mu.Lock()
	if _, ok := b.viewers[roomID]; !ok {
		b.viewers[roomID] = make(map[string]chan *Message)
	}
	b.viewers[roomID][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("viewer added", "room_id", roomID, "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(roomID, subID)
	}()

	return ch, subID
}

// Publish delivers the message to every viewer of the room. The read lock is
// held across the sends: they are non-blocking, and unsubscription closes
// channels under the write lock, so no send can race a close. Full channels
// drop the message for that viewer only.
func (b *Broadcaster) Publish(roomID string, msg *Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.viewers[roomID] {
		select {
		case ch <- msg:
		default:
			b.logger.Debug("dropped message for slow viewer",
				"room_id", roomID, "message_id", msg.ID)
		}
	}
}

// Unsubscribe removes one viewer and closes its channel.
func (b *Broadcaster) Unsubscribe(roomID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.viewers[roomID]
	if !ok {
		return
	}
	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)
	if len(subs) == 0 {
		delete(b.viewers, roomID)
	}

	b.logger.Debug("viewer removed", "room_id", roomID, "sub_id", subID)
}

// CloseRoom removes every viewer of the room, closing their channels. Called
// on room deletion.
func (b *Broadcaster) CloseRoom(roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.viewers[roomID]
	if !ok {
		return
	}
	for subID, ch := range subs {
		close(ch)
		delete(subs, subID)
	}
	delete(b.viewers, roomID)
}

// Close shuts down the broadcaster and closes all viewer channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for roomID, subs := range b.viewers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.viewers, roomID)
	}
}
