// ABOUTME: Conversation core for a single named agent.
// ABOUTME: Owns the rolling transcript and converts backend failures into soft results.

package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/agoradev/agora/internal/model"
)

// maxTranscriptTurns bounds the conversational turns kept in a transcript.
// Oldest non-system turns are dropped to stay under the bound, so the
// transcript never grows past maxTranscriptTurns+1 entries and the system
// turn is always preserved.
const maxTranscriptTurns = 20

// Result is the outcome of a Respond call. Soft marks results that describe
// a failure (backend outage, abnormal stop) rather than a real reply; Reason
// carries the machine-readable cause for those.
type Result struct {
	Text   string
	Soft   bool
	Reason string
}

func softResult(reason, text string) Result {
	return Result{Text: text, Soft: true, Reason: reason}
}

// Agent is a named conversational entity bound to a completion backend.
// The transcript always begins with exactly one system turn. Respond calls
// on the same agent are serialized; transcript mutation is the critical
// section.
type Agent struct {
	Name string

	mu         sync.Mutex
	transcript []model.Turn
	backend    model.Backend
	system     string
}

// New creates an agent whose transcript starts with the given system prompt.
func New(name, systemPrompt string, backend model.Backend) *Agent {
	return &Agent{
		Name:       name,
		backend:    backend,
		system:     systemPrompt,
		transcript: []model.Turn{{Role: model.RoleSystem, Text: systemPrompt}},
	}
}

// Respond appends a user turn, asks the backend for a completion, and
// appends the assistant turn on a normal stop. Abnormal stops and backend
// errors come back as soft results instead of errors so a single agent's
// outage never aborts room processing.
func (a *Agent) Respond(ctx context.Context, prompt string) Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.transcript = append(a.transcript, model.Turn{Role: model.RoleUser, Text: prompt})
	a.trimLocked()

	completion, err := a.backend.Complete(ctx, a.transcript)
	if err != nil {
		return softResult("backend_error", fmt.Sprintf("backend error: %v", err))
	}
	if completion.FinishReason != model.FinishStop {
		return softResult(string(completion.FinishReason),
			fmt.Sprintf("completion stopped: %s", completion.FinishReason))
	}

	a.transcript = append(a.transcript, model.Turn{Role: model.RoleAssistant, Text: completion.Text})

	return Result{Text: completion.Text}
}

// trimLocked drops oldest non-system turns until at most maxTranscriptTurns
// conversational turns remain. Must be called with mu held. Trimming before
// the backend call keeps the bound even when the call fails and no assistant
// turn is appended.
func (a *Agent) trimLocked() {
	for len(a.transcript) > maxTranscriptTurns {
		a.transcript = append(a.transcript[:1], a.transcript[2:]...)
	}
}

// Reset clears the conversation back to just the system turn.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.transcript = []model.Turn{{Role: model.RoleSystem, Text: a.system}}
}

// Transcript returns a copy of the current transcript.
func (a *Agent) Transcript() []model.Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.Turn, len(a.transcript))
	copy(out, a.transcript)
	return out
}
