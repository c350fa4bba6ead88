// ABOUTME: Backend abstraction for chat completion providers.
// ABOUTME: Defines the transcript turn format and the normalized completion result.

package model

import "context"

// Role identifies who authored a transcript turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single role-tagged entry in an agent's transcript.
type Turn struct {
	Role Role
	Text string
}

// FinishReason describes why the provider stopped generating.
// FinishStop is the only normal stop; everything else is surfaced to the
// caller as a soft failure.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content_filter"
	FinishOther         FinishReason = "other"
)

// Completion is the normalized result of a backend call.
type Completion struct {
	FinishReason FinishReason
	Text         string
}

// Backend turns a full transcript into a completion. Implementations wrap a
// provider SDK; connectivity problems surface as errors, abnormal stops
// surface through Completion.FinishReason.
type Backend interface {
	Complete(ctx context.Context, transcript []Turn) (Completion, error)
}
