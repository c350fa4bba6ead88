// ABOUTME: Room message type and its JSON wire form.
// ABOUTME: Messages are immutable once appended to a room's history.

package chat

import (
	"time"

	"github.com/google/uuid"
)

// Message kinds. Text messages participate in prompts and history rendering;
// system messages are informational only.
const (
	KindText   = "text"
	KindSystem = "system"
)

// Message is one entry in a room's timeline. The same JSON form travels over
// the broker, the HTTP API, and the SSE stream.
type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a text message with a fresh id and the current time.
func NewMessage(roomID, sender, content string) *Message {
	return &Message{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		Sender:    sender,
		Content:   content,
		Kind:      KindText,
		Timestamp: time.Now().UTC(),
	}
}
