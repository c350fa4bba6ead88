// Package chat implements the multi-agent chat orchestration engine.
//
// # Overview
//
// The chat package sits between the HTTP handlers and the transport broker.
// It owns rooms, their append-only timelines, the routed feed per (agent,
// room) binding, prompt construction, and the admission policy that decides
// whether a generated reply is broadcast.
//
// # Orchestrator
//
// The Orchestrator coordinates room operations:
//
//	orch := chat.NewOrchestrator(broker, registry, broadcaster, nil, logger)
//
// Key operations:
//
//   - CreateRoom(names): create a room and bind one routed feed per participant
//   - SendMessage(ctx, roomID, sender, content): append, publish, notify viewers
//   - GetHistory(roomID): the canonical timeline in append order
//   - DeleteRoom(roomID): tear down feeds and viewer registrations
//   - PostDirect(ctx, prompt, agent): one-off prompt bypassing rooms
//
// # Message flow
//
// When a delivery arrives on an agent's feed:
//
//  1. Decode; drop malformed payloads.
//  2. Drop the agent's own broadcasts (anti-echo).
//  3. Render recent room history, excluding the agent's own messages.
//  4. Build the room-rules prompt and ask the agent's conversation core.
//  5. Run the reply through the admission filter; accepted replies go back
//     through SendMessage, which publishes them room-wide and per-agent.
//
// Everything in the handler is contained: a failing backend, a malformed
// payload, or a deleted room turns into a logged no-op, never a crash.
//
// # Routing keys
//
// Feeds are bound to "<roomID>.#" and "agent.<name>"; sends publish to
// "<roomID>.message" plus "agent.<participant>" for each other participant.
// These keys are a compatibility contract with external consumers.
package chat
