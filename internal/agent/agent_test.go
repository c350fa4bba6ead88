// ABOUTME: Tests for the conversation core: transcript bounds, soft failures, reset.
// ABOUTME: Uses a scripted fake backend; no network calls.

package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agoradev/agora/internal/model"
)

// fakeBackend replays scripted completions and records the transcripts it saw.
type fakeBackend struct {
	mu          sync.Mutex
	completions []model.Completion
	err         error
	calls       [][]model.Turn
}

func (f *fakeBackend) Complete(_ context.Context, transcript []model.Turn) (model.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	copied := make([]model.Turn, len(transcript))
	copy(copied, transcript)
	f.calls = append(f.calls, copied)

	if f.err != nil {
		return model.Completion{}, f.err
	}
	if len(f.completions) == 0 {
		return model.Completion{FinishReason: model.FinishStop, Text: "ok"}, nil
	}
	next := f.completions[0]
	if len(f.completions) > 1 {
		f.completions = f.completions[1:]
	}
	return next, nil
}

func TestRespond_AppendsUserAndAssistantTurns(t *testing.T) {
	backend := &fakeBackend{completions: []model.Completion{{FinishReason: model.FinishStop, Text: "hello back"}}}
	a := New("alice", "system prompt", backend)

	res := a.Respond(t.Context(), "hello")
	require.False(t, res.Soft)
	assert.Equal(t, "hello back", res.Text)

	transcript := a.Transcript()
	require.Len(t, transcript, 3)
	assert.Equal(t, model.RoleSystem, transcript[0].Role)
	assert.Equal(t, model.RoleUser, transcript[1].Role)
	assert.Equal(t, "hello", transcript[1].Text)
	assert.Equal(t, model.RoleAssistant, transcript[2].Role)
}

func TestRespond_BackendSeesFullTranscript(t *testing.T) {
	backend := &fakeBackend{}
	a := New("alice", "system prompt", backend)

	a.Respond(t.Context(), "first")
	a.Respond(t.Context(), "second")

	require.Len(t, backend.calls, 2)
	// Second call: system, user, assistant, user.
	require.Len(t, backend.calls[1], 4)
	assert.Equal(t, model.RoleSystem, backend.calls[1][0].Role)
	assert.Equal(t, "second", backend.calls[1][3].Text)
}

func TestRespond_TranscriptNeverExceedsBound(t *testing.T) {
	backend := &fakeBackend{}
	a := New("alice", "system prompt", backend)

	// Each exchange appends two turns; the bound must hold after every one
	// of them, not just eventually.
	for i := 0; i < 50; i++ {
		a.Respond(t.Context(), fmt.Sprintf("message %d", i))
		require.LessOrEqual(t, len(a.Transcript()), maxTranscriptTurns+1)
	}

	transcript := a.Transcript()
	assert.Equal(t, model.RoleSystem, transcript[0].Role)
	assert.Equal(t, "system prompt", transcript[0].Text)
	assert.Equal(t, "message 49", transcript[len(transcript)-2].Text)
}

func TestRespond_BoundHoldsAcrossBackendFailures(t *testing.T) {
	backend := &fakeBackend{}
	a := New("alice", "system prompt", backend)

	for i := 0; i < 30; i++ {
		a.Respond(t.Context(), fmt.Sprintf("message %d", i))
	}

	// Failing calls still append the user turn and must still trim.
	backend.mu.Lock()
	backend.err = errors.New("connection refused")
	backend.mu.Unlock()

	for i := 0; i < 30; i++ {
		res := a.Respond(t.Context(), fmt.Sprintf("failing %d", i))
		require.True(t, res.Soft)
		require.LessOrEqual(t, len(a.Transcript()), maxTranscriptTurns+1)
	}

	assert.Equal(t, model.RoleSystem, a.Transcript()[0].Role)
}

func TestRespond_AbnormalStopReturnsSoftResult(t *testing.T) {
	tests := []struct {
		name   string
		reason model.FinishReason
	}{
		{"length cutoff", model.FinishLength},
		{"content filter", model.FinishContentFilter},
		{"other", model.FinishOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{completions: []model.Completion{{FinishReason: tt.reason, Text: "partial"}}}
			a := New("alice", "system prompt", backend)

			res := a.Respond(t.Context(), "hello")
			assert.True(t, res.Soft)
			assert.Equal(t, string(tt.reason), res.Reason)
			assert.Contains(t, res.Text, string(tt.reason))
		})
	}
}

func TestRespond_BackendErrorReturnsSoftResult(t *testing.T) {
	backend := &fakeBackend{err: errors.New("connection refused")}
	a := New("alice", "system prompt", backend)

	res := a.Respond(t.Context(), "hello")
	assert.True(t, res.Soft)
	assert.Equal(t, "backend_error", res.Reason)
	assert.Contains(t, res.Text, "connection refused")
}

func TestReset_RestoresSystemTurnOnly(t *testing.T) {
	backend := &fakeBackend{}
	a := New("alice", "system prompt", backend)

	a.Respond(t.Context(), "hello")
	require.Greater(t, len(a.Transcript()), 1)

	a.Reset()

	transcript := a.Transcript()
	require.Len(t, transcript, 1)
	assert.Equal(t, model.RoleSystem, transcript[0].Role)
	assert.Equal(t, "system prompt", transcript[0].Text)
}

func TestRespond_ConcurrentCallsKeepTranscriptConsistent(t *testing.T) {
	backend := &fakeBackend{}
	a := New("alice", "system prompt", backend)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			a.Respond(context.Background(), fmt.Sprintf("message %d", n))
		}(i)
	}
	wg.Wait()

	transcript := a.Transcript()
	assert.LessOrEqual(t, len(transcript), maxTranscriptTurns+1)
	assert.Equal(t, model.RoleSystem, transcript[0].Role)
}
