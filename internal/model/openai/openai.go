// ABOUTME: OpenAI-compatible Backend implementation using the official Go SDK.
// ABOUTME: Works against hosted OpenAI or any compatible endpoint (LM Studio, vLLM) via base URL.

package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/agoradev/agora/internal/model"
)

// Options configure the OpenAI backend. BaseURL may point at any
// Chat-Completions-compatible server; local servers typically accept any
// non-empty API key.
type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int64
}

// Backend wraps the OpenAI Chat Completions API behind model.Backend.
type Backend struct {
	client openai.Client
	opts   Options
}

// New creates an OpenAI backend with the given options.
func New(optFns ...func(o *Options)) *Backend {
	opts := Options{
		Model:       openai.ChatModelGPT4oMini,
		Temperature: 0.7,
		MaxTokens:   1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	return &Backend{
		client: openai.NewClient(clientOpts...),
		opts:   opts,
	}
}

// Complete sends the transcript as chat messages and normalizes the result.
func (b *Backend) Complete(ctx context.Context, transcript []model.Turn) (model.Completion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(transcript))
	for _, turn := range transcript {
		switch turn.Role {
		case model.RoleSystem:
			messages = append(messages, openai.SystemMessage(turn.Text))
		case model.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Text))
		default:
			messages = append(messages, openai.UserMessage(turn.Text))
		}
	}

	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               b.opts.Model,
		Temperature:         openai.Float(b.opts.Temperature),
		MaxCompletionTokens: openai.Int(b.opts.MaxTokens),
	})
	if err != nil {
		return model.Completion{}, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return model.Completion{}, fmt.Errorf("openai: no choices returned")
	}

	choice := resp.Choices[0]
	return model.Completion{
		FinishReason: normalizeFinishReason(choice.FinishReason),
		Text:         choice.Message.Content,
	}, nil
}

// normalizeFinishReason maps the SDK's finish_reason strings onto the
// backend-neutral set.
func normalizeFinishReason(reason string) model.FinishReason {
	switch reason {
	case "stop", "":
		return model.FinishStop
	case "length":
		return model.FinishLength
	case "content_filter":
		return model.FinishContentFilter
	default:
		return model.FinishOther
	}
}
