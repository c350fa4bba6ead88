// ABOUTME: Anthropic Messages API implementation of model.Backend.
// ABOUTME: System turns map to the system prompt block; end_turn is the normal stop.

package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agoradev/agora/internal/model"
)

// Options configure the Anthropic backend.
type Options struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int64
}

// Backend wraps the Anthropic Messages API behind model.Backend.
type Backend struct {
	client anthropic.Client
	opts   Options
}

// New creates an Anthropic backend with the given options.
func New(optFns ...func(o *Options)) *Backend {
	opts := Options{
		Model:       string(anthropic.ModelClaude3_5Sonnet20241022),
		Temperature: 0.7,
		MaxTokens:   1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	return &Backend{
		client: anthropic.NewClient(clientOpts...),
		opts:   opts,
	}
}

// Complete sends the transcript and normalizes the result. Anthropic takes
// the system prompt out of band, so system turns are collected separately.
func (b *Backend) Complete(ctx context.Context, transcript []model.Turn) (model.Completion, error) {
	var system []anthropic.TextBlockParam
	messages := make([]anthropic.MessageParam, 0, len(transcript))
	for _, turn := range transcript {
		switch turn.Role {
		case model.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: turn.Text})
		case model.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Text)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Text)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(b.opts.Model),
		Messages:    messages,
		MaxTokens:   b.opts.MaxTokens,
		Temperature: anthropic.Float(b.opts.Temperature),
	}
	if len(system) > 0 {
		params.System = system
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return model.Completion{}, fmt.Errorf("anthropic api error: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}

	return model.Completion{
		FinishReason: normalizeStopReason(string(resp.StopReason)),
		Text:         text.String(),
	}, nil
}

// normalizeStopReason maps Anthropic stop reasons onto the backend-neutral set.
func normalizeStopReason(reason string) model.FinishReason {
	switch reason {
	case "end_turn", "stop_sequence", "":
		return model.FinishStop
	case "max_tokens":
		return model.FinishLength
	case "refusal":
		return model.FinishContentFilter
	default:
		return model.FinishOther
	}
}
