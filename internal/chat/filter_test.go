// ABOUTME: Tests for the admission filter, permissive and strict variants.

package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agoradev/agora/internal/agent"
)

func ok(text string) agent.Result { return agent.Result{Text: text} }

func TestPermissiveFilter(t *testing.T) {
	f := PermissiveFilter{}

	tests := []struct {
		name string
		res  agent.Result
		want bool
	}{
		{"plain reply", ok("The answer is 42."), true},
		{"short reply", ok("ok"), true},
		{"empty", ok(""), false},
		{"whitespace only", ok("  \n\t "), false},
		{"exact silence sentinel", ok(SilenceSentinel), false},
		{"sentinel embedded in text", ok("I will say " + SilenceSentinel + " now"), false},
		{"soft failure", agent.Result{Text: "backend error: boom", Soft: true, Reason: "backend_error"}, false},
		{"marginal reply accepted", ok("hmm"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Acceptable(tt.res))
		})
	}
}

func TestStrictFilter(t *testing.T) {
	f := NewStrictFilter(5, []string{`not\s+answering`, `service request failed`}, true)

	tests := []struct {
		name string
		res  agent.Result
		want bool
	}{
		{"normal reply", ok("This is a proper reply."), true},
		{"below minimum length", ok("hey"), false},
		{"banned phrase", ok("I am NOT  answering that"), false},
		{"error-shaped phrase", ok("Service request failed with status 400"), false},
		{"markdown table", ok("| col |\n| --- |\n| val |"), false},
		{"pipe without table shape", ok("use a | b as the option"), true},
		{"still rejects sentinel", ok(SilenceSentinel + " padding text"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Acceptable(tt.res))
		})
	}
}

func TestStrictFilter_SkipsInvalidPatterns(t *testing.T) {
	f := NewStrictFilter(0, []string{`[unclosed`, `valid`}, false)
	assert.Len(t, f.BannedPatterns, 1)
	assert.False(t, f.Acceptable(ok("a valid word triggers it")))
}
