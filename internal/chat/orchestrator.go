// ABOUTME: Chat orchestrator: rooms, routed agent feeds, inbound processing, rebroadcast.
// ABOUTME: All registries are owned concurrent maps; failures are contained per delivery.

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agoradev/agora/internal/agent"
	"github.com/agoradev/agora/internal/broker"
	"github.com/agoradev/agora/internal/dedupe"
)

// seenCacheSize bounds the per-binding cache of handled message ids.
const seenCacheSize = 256

// ErrRoomNotFound indicates the referenced room does not exist (or was
// already deleted).
var ErrRoomNotFound = errors.New("room not found")

// room holds one chat room's state. History appends are serialized by mu so
// the append order is the canonical timeline.
type room struct {
	id           string
	participants []string
	createdAt    time.Time

	mu      sync.Mutex
	history []*Message

	// feeds are the broker queue names bound for this room, one per
	// participant. Used to stop consumption on deletion.
	feeds []string
}

// append adds the message to the timeline under the room lock.
func (r *room) append(msg *Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, msg)
}

// snapshot returns a copy of the timeline.
func (r *room) snapshot() []*Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Message, len(r.history))
	copy(out, r.history)
	return out
}

// Orchestrator creates rooms, binds each participant agent to a routed feed,
// turns inbound deliveries into agent prompts, filters the replies, and fans
// accepted messages back out to the broker and live viewers.
type Orchestrator struct {
	broker  broker.Broker
	agents  *agent.Registry
	viewers *Broadcaster
	filter  Filter
	logger  *slog.Logger

	mu        sync.RWMutex
	rooms     map[string]*room
	consumers map[string]broker.Consumer // feed name -> consumer
}

// NewOrchestrator wires the orchestrator to its collaborators. A nil filter
// falls back to the permissive policy; a nil logger to slog.Default.
func NewOrchestrator(b broker.Broker, agents *agent.Registry, viewers *Broadcaster, filter Filter, logger *slog.Logger) *Orchestrator {
	if filter == nil {
		filter = PermissiveFilter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		broker:    b,
		agents:    agents,
		viewers:   viewers,
		filter:    filter,
		logger:    logger.With("component", "orchestrator"),
		rooms:     make(map[string]*room),
		consumers: make(map[string]broker.Consumer),
	}
}

// feedName is the broker queue for one (agent, room) binding.
func feedName(agentName, roomID string) string {
	return fmt.Sprintf("agent_%s_%s", agentName, roomID)
}

// CreateRoom creates a room with the given participants and binds a routed
// feed per participant: one binding for all room traffic (`<roomID>.#`) and
// one for traffic addressed directly to the agent (`agent.<name>`). Names
// not present in the registry are skipped silently. The participant set is
// fixed once this returns.
func (o *Orchestrator) CreateRoom(participantNames []string) string {
	roomID := "room_" + uuid.New().String()
	rm := &room{id: roomID, createdAt: time.Now().UTC()}
	bound := make(map[string]broker.Consumer)

	for _, name := range participantNames {
		if _, ok := o.agents.Get(name); !ok {
			o.logger.Debug("skipping unknown participant", "room_id", roomID, "name", name)
			continue
		}

		feed := feedName(name, roomID)
		keys := []string{roomID + ".#", "agent." + name}
		if err := o.broker.DeclareFeed(feed, keys); err != nil {
			o.logger.Error("declaring feed failed, participant skipped",
				"room_id", roomID, "agent", name, "error", err)
			continue
		}

		cons, err := o.broker.Consume(feed, o.deliveryHandler(name, roomID))
		if err != nil {
			o.logger.Error("consuming feed failed, participant skipped",
				"room_id", roomID, "agent", name, "error", err)
			continue
		}

		rm.participants = append(rm.participants, name)
		rm.feeds = append(rm.feeds, feed)
		bound[feed] = cons
	}

	// Register only once the membership is final; the participant set is
	// immutable from here on.
	o.mu.Lock()
	o.rooms[roomID] = rm
	for feed, cons := range bound {
		o.consumers[feed] = cons
	}
	o.mu.Unlock()

	o.logger.Info("room created", "room_id", roomID, "participants", rm.participants)
	return roomID
}

// deliveryHandler returns the per-binding handler for inbound broker
// deliveries. Every failure mode inside it is a contained no-op: one bad
// delivery must never crash the consumption loop or affect other agents.
func (o *Orchestrator) deliveryHandler(agentName, roomID string) broker.Handler {
	seen := dedupe.New(seenCacheSize)
	return func(payload []byte) {
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("panic in delivery handler",
					"room_id", roomID, "agent", agentName, "panic", r)
			}
		}()

		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			o.logger.Debug("dropping malformed delivery",
				"room_id", roomID, "agent", agentName, "error", err)
			return
		}
		if msg.Sender == "" || msg.Content == "" {
			return
		}

		// The feed is bound to both the room-wide and the direct routing
		// key, so one send can reach it twice. Each message id is handled
		// at most once per binding.
		if msg.ID != "" && seen.CheckAndMark(msg.ID) {
			return
		}

		// An agent never responds to its own broadcast.
		if msg.Sender == agentName {
			return
		}

		o.mu.RLock()
		rm, ok := o.rooms[roomID]
		o.mu.RUnlock()
		if !ok {
			// Room deleted while the delivery was in flight.
			return
		}

		ag, ok := o.agents.Get(agentName)
		if !ok {
			return
		}

		contextText := renderContext(rm.snapshot(), agentName)
		prompt := buildRoomPrompt(agentName, contextText, msg.Sender, msg.Content)

		result := ag.Respond(context.Background(), prompt)
		if !o.filter.Acceptable(result) {
			o.logger.Debug("reply suppressed",
				"room_id", roomID, "agent", agentName, "soft", result.Soft, "reason", result.Reason)
			return
		}

		if _, err := o.SendMessage(context.Background(), roomID, agentName, result.Text); err != nil {
			o.logger.Warn("sending agent reply failed",
				"room_id", roomID, "agent", agentName, "error", err)
		}
	}
}

// SendMessage appends a text message to the room timeline, publishes it to
// the broker (room-wide key plus one direct key per other participant), and
// notifies live viewers. The append is visible before any publish or notify.
func (o *Orchestrator) SendMessage(ctx context.Context, roomID, senderName, content string) (*Message, error) {
	o.mu.RLock()
	rm, ok := o.rooms[roomID]
	o.mu.RUnlock()
	if !ok {
		return nil, ErrRoomNotFound
	}

	msg := NewMessage(roomID, senderName, content)
	rm.append(msg)

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding message: %w", err)
	}

	if err := o.broker.Publish(ctx, payload, roomID+".message"); err != nil {
		o.logger.Warn("room broadcast publish failed", "room_id", roomID, "error", err)
	}
	for _, participant := range rm.participants {
		if participant == senderName {
			continue
		}
		if err := o.broker.Publish(ctx, payload, "agent."+participant); err != nil {
			o.logger.Warn("direct publish failed",
				"room_id", roomID, "agent", participant, "error", err)
		}
	}

	o.viewers.Publish(roomID, msg)

	return msg, nil
}

// GetHistory returns the room's timeline in append order. An absent room
// yields an empty slice, not an error.
func (o *Orchestrator) GetHistory(roomID string) []*Message {
	o.mu.RLock()
	rm, ok := o.rooms[roomID]
	o.mu.RUnlock()
	if !ok {
		return []*Message{}
	}
	return rm.snapshot()
}

// Participants returns the room's participant names, or false if the room
// does not exist.
func (o *Orchestrator) Participants(roomID string) ([]string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	rm, ok := o.rooms[roomID]
	if !ok {
		return nil, false
	}
	return append([]string(nil), rm.participants...), true
}

// ListRooms returns the ids of all active rooms.
func (o *Orchestrator) ListRooms() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	ids := make([]string, 0, len(o.rooms))
	for id := range o.rooms {
		ids = append(ids, id)
	}
	return ids
}

// DeleteRoom tears the room down: state, viewer registrations, and every
// subscription binding, each released exactly once. Returns true iff the
// room existed; a second call is a no-op returning false.
func (o *Orchestrator) DeleteRoom(roomID string) bool {
	o.mu.Lock()
	rm, ok := o.rooms[roomID]
	if !ok {
		o.mu.Unlock()
		return false
	}
	delete(o.rooms, roomID)

	consumers := make([]broker.Consumer, 0, len(rm.feeds))
	for _, feed := range rm.feeds {
		if cons, ok := o.consumers[feed]; ok {
			consumers = append(consumers, cons)
			delete(o.consumers, feed)
		}
	}
	o.mu.Unlock()

	o.viewers.CloseRoom(roomID)
	for _, cons := range consumers {
		cons.Stop()
	}

	o.logger.Info("room deleted", "room_id", roomID)
	return true
}

// PostDirect passes a one-off prompt straight to the named agent, bypassing
// rooms. An unknown agent yields a descriptive string, not an error.
func (o *Orchestrator) PostDirect(ctx context.Context, prompt, agentName string) string {
	ag, ok := o.agents.Get(agentName)
	if !ok {
		return fmt.Sprintf("no agent named %q exists", agentName)
	}
	return ag.Respond(ctx, prompt).Text
}

// Close deletes every room and shuts down the viewer broadcaster.
func (o *Orchestrator) Close() {
	for _, id := range o.ListRooms() {
		o.DeleteRoom(id)
	}
	o.viewers.Close()
}
