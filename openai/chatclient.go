package openai

import "context"

// ChatClient is the single-request surface ChatWithRetry drives. *Client implements it.
type ChatClient interface {
	Chat(ctx context.Context, model string, messages []Message) (string, error)
}

var _ ChatClient = (*Client)(nil)
