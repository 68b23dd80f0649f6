package embedding

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"ingestpipe/internal/config"
	"ingestpipe/internal/errkind"
	"ingestpipe/internal/retry"
)

// ChatClient is the chat-completion sibling of the embedding client (§4.4):
// used only by the multimodal chunker for figure captions and the
// spreadsheet/transcription chunkers for summaries, with the same retry
// discipline as Embed.
type ChatClient struct {
	sdk   anthropic.Client
	model string
}

// NewChat builds a ChatClient from the chat configuration.
func NewChat(cfg config.ChatConfig) *ChatClient {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = string(anthropic.ModelClaudeHaiku4_5)
	}
	return &ChatClient{sdk: anthropic.NewClient(opts...), model: model}
}

// Complete sends a single-turn prompt and returns the assistant's text
// response, retrying rate-limit/transient failures the way Embed does.
func (c *ChatClient) Complete(ctx context.Context, prompt string, maxTokens int64) (string, error) {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	policy := retry.Policy{MaxAttempts: 8, BaseDelay: time.Second, Cap: 60 * time.Second, FullJitter: true, HonorRetryAfter: true}
	return retry.Do(ctx, policy, "embedding.chat", func(ctx context.Context, attempt int) (string, error) {
		msg, err := c.sdk.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(c.model),
			MaxTokens: maxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			return "", classifyAnthropicErr(err)
		}
		var out strings.Builder
		for _, block := range msg.Content {
			if block.Type == "text" {
				out.WriteString(block.Text)
			}
		}
		return out.String(), nil
	})
}

// Caption generates a fixed-prompt caption for a figure image (§4.6.2).
func (c *ChatClient) Caption(ctx context.Context, imageBytes []byte, mediaType string) (string, error) {
	policy := retry.Policy{MaxAttempts: 8, BaseDelay: time.Second, Cap: 60 * time.Second, FullJitter: true, HonorRetryAfter: true}
	return retry.Do(ctx, policy, "embedding.caption", func(ctx context.Context, attempt int) (string, error) {
		msg, err := c.sdk.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(c.model),
			MaxTokens: 512,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(
					anthropic.NewImageBlockBase64(mediaType, base64.StdEncoding.EncodeToString(imageBytes)),
					anthropic.NewTextBlock("Describe this figure in one to two sentences for use as search index caption text."),
				),
			},
		})
		if err != nil {
			return "", classifyAnthropicErr(err)
		}
		var out strings.Builder
		for _, block := range msg.Content {
			if block.Type == "text" {
				out.WriteString(block.Text)
			}
		}
		return out.String(), nil
	})
}

func classifyAnthropicErr(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "429"):
		return errkind.New(errkind.RateLimited, "anthropic", err)
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "connection reset"):
		return errkind.New(errkind.Transient, "anthropic", err)
	case strings.Contains(msg, "500"), strings.Contains(msg, "502"), strings.Contains(msg, "503"):
		return errkind.New(errkind.Transient, "anthropic", err)
	case strings.Contains(msg, "401"), strings.Contains(msg, "403"):
		return errkind.New(errkind.Auth, "anthropic", err)
	default:
		return errkind.New(errkind.NonRetriable4xx, "anthropic", fmt.Errorf("%w", err))
	}
}

