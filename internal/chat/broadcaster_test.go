// ABOUTME: Tests for viewer fan-out: delivery, isolation, slow viewers, unsubscribe.

package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_SingleViewerReceivesMessage(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, _ := b.Subscribe(t.Context(), "room-1")

	b.Publish("room-1", NewMessage("room-1", "alice", "hello"))

	select {
	case msg := <-ch:
		assert.Equal(t, "hello", msg.Content)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestBroadcaster_MultipleViewersReceiveSameMessage(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch1, _ := b.Subscribe(t.Context(), "room-1")
	ch2, _ := b.Subscribe(t.Context(), "room-1")
	ch3, _ := b.Subscribe(t.Context(), "room-1")

	b.Publish("room-1", NewMessage("room-1", "alice", "hello"))

	for i, ch := range []<-chan *Message{ch1, ch2, ch3} {
		select {
		case msg := <-ch:
			assert.Equal(t, "hello", msg.Content, "viewer %d got wrong message", i)
		case <-time.After(time.Second):
			t.Fatalf("viewer %d timed out", i)
		}
	}
}

func TestBroadcaster_RoomsAreIsolated(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch1, _ := b.Subscribe(t.Context(), "room-1")
	ch2, _ := b.Subscribe(t.Context(), "room-2")

	b.Publish("room-1", NewMessage("room-1", "alice", "for room one"))

	select {
	case msg := <-ch1:
		assert.Equal(t, "for room one", msg.Content)
	case <-time.After(time.Second):
		t.Fatal("room-1 viewer timed out")
	}

	select {
	case msg := <-ch2:
		t.Fatalf("room-2 viewer should not receive %q", msg.Content)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcaster_SlowViewerDoesNotBlockOthers(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	// The slow viewer never reads; its buffer fills and further messages drop.
	_, _ = b.Subscribe(t.Context(), "room-1")
	healthy, _ := b.Subscribe(t.Context(), "room-1")

	for i := 0; i < viewerBufferSize+10; i++ {
		b.Publish("room-1", NewMessage("room-1", "alice", "spam"))
	}

	received := 0
	for len(healthy) > 0 {
		<-healthy
		received++
	}
	assert.Equal(t, viewerBufferSize, received, "healthy viewer keeps its full buffer")
}

func TestBroadcaster_UnsubscribeIsIdempotent(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, subID := b.Subscribe(t.Context(), "room-1")

	b.Unsubscribe("room-1", subID)
	b.Unsubscribe("room-1", subID)

	_, open := <-ch
	assert.False(t, open, "channel closed after unsubscribe")

	// Publishing after unsubscribe is a no-op.
	b.Publish("room-1", NewMessage("room-1", "alice", "late"))
}

func TestBroadcaster_ContextCancelUnsubscribes(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := b.Subscribe(ctx, "room-1")

	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, open := <-ch:
			return !open
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond, "channel should close after context cancel")
}

func TestBroadcaster_CloseRoomDropsAllViewers(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch1, _ := b.Subscribe(t.Context(), "room-1")
	ch2, _ := b.Subscribe(t.Context(), "room-1")

	b.CloseRoom("room-1")

	_, open1 := <-ch1
	_, open2 := <-ch2
	assert.False(t, open1)
	assert.False(t, open2)
}

func TestBroadcaster_PublishDuringUnsubscribeChurn(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		msg := NewMessage("room-1", "alice", "hello")
		for {
			select {
			case <-done:
				return
			default:
				b.Publish("room-1", msg)
			}
		}
	}()

	// Viewers come and go while the publisher runs; a send must never hit a
	// closed channel.
	for i := 0; i < 500; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		ch, subID := b.Subscribe(ctx, "room-1")
		select {
		case <-ch:
		default:
		}
		b.Unsubscribe("room-1", subID)
		cancel()
	}

	close(done)
	wg.Wait()
}
