package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3" // imported as openai
	"github.com/openai/openai-go/v3/option"
	"github.com/samber/lo"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleDeveloper Role = "developer"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Prompt wraps a single prompt as a one-message user conversation.
func Prompt(s string) []Message {
	return []Message{{Role: RoleUser, Content: s}}
}

var ErrEmptyResponse = errors.New("empty response from the model")

type Client struct {
	cli openai.Client
}

// NewClient builds a client for an OpenAI-compatible endpoint. Empty apiKey
// or baseURL fall back to the SDK defaults. The SDK's own retries are off;
// ChatWithRetry owns the retry policy.
func NewClient(apiKey string, baseURL string, timeout time.Duration) *Client {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	return &Client{
		cli: openai.NewClient(opts...),
	}
}

// Chat sends one completion request and returns the trimmed content of the first choice.
func (c *Client) Chat(ctx context.Context, model string, messages []Message) (string, error) {
	params, err := toParams(messages)
	if err != nil {
		return "", err
	}
	res, err := c.cli.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    model,
		Messages: params,
	})
	if err != nil {
		return "", err
	}
	if len(res.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	out := strings.TrimSpace(res.Choices[0].Message.Content)
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

// ValidateMessages rejects empty conversations and unknown roles.
func ValidateMessages(messages []Message) error {
	_, err := toParams(messages)
	return err
}

func toParams(messages []Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	if len(messages) == 0 {
		return nil, errors.New("at least one message is required")
	}
	bad, found := lo.Find(messages, func(m Message) bool {
		switch m.Role {
		case RoleSystem, RoleUser, RoleAssistant, RoleDeveloper:
			return false
		}
		return true
	})
	if found {
		return nil, fmt.Errorf("unsupported message role %q", bad.Role)
	}
	return lo.Map(messages, func(m Message, _ int) openai.ChatCompletionMessageParamUnion {
		switch m.Role {
		case RoleSystem:
			return openai.SystemMessage(m.Content)
		case RoleAssistant:
			return openai.AssistantMessage(m.Content)
		case RoleDeveloper:
			return openai.DeveloperMessage(m.Content)
		default:
			return openai.UserMessage(m.Content)
		}
	}), nil
}
