package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"time"

	"github.com/ashureev/mpt-session/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

// Config configures an OpenAI-compatible chat completion backend.
type Config struct {
	APIKey      string
	BaseURL     string // empty means api.openai.com
	Model       string
	MaxTokens   int
	Temperature float32
	TopP        float32
	Timeout     time.Duration
}

// OpenAIClient streams completions from any OpenAI-compatible endpoint,
// such as Cerebras or a local server.
type OpenAIClient struct {
	client *openai.Client
	cfg    Config
}

// NewOpenAIClient constructs a streaming client.
func NewOpenAIClient(cfg Config) *OpenAIClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(oc), cfg: cfg}
}

// Stream implements Generator.
func (c *OpenAIClient) Stream(ctx context.Context, system string, history []domain.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if c.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
			defer cancel()
		}

		stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model:       c.cfg.Model,
			Messages:    toMessages(system, history),
			MaxTokens:   c.cfg.MaxTokens,
			Temperature: c.cfg.Temperature,
			TopP:        c.cfg.TopP,
			Stream:      true,
		})
		if err != nil {
			yield("", fmt.Errorf("open completion stream: %w", err))
			return
		}
		defer func() {
			if closeErr := stream.Close(); closeErr != nil {
				slog.Debug("Failed to close completion stream", "error", closeErr)
			}
		}()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", fmt.Errorf("receive completion chunk: %w", err))
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if content := resp.Choices[0].Delta.Content; content != "" {
				if !yield(content, nil) {
					return
				}
			}
		}
	}
}

// toMessages prepends the system instruction and maps session roles to
// chat roles.
func toMessages(system string, history []domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == domain.RoleTherapist {
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

var _ Generator = (*OpenAIClient)(nil)
