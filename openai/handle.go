package openai

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ibreez3/lm-helper/config"
)

// Handle owns the process-wide client. The client is built on first use and
// replaced wholesale by Reload; callers holding the old one are unaffected.
type Handle struct {
	mu     sync.Mutex
	path   string
	cfg    config.Config
	cli    *Client
	policy RetryPolicy
	logger *slog.Logger
}

type HandleOption func(*Handle)

// WithRetryPolicy sets the retry policy. A positive MaxRetries takes
// precedence over the configured value.
func WithRetryPolicy(p RetryPolicy) HandleOption {
	return func(h *Handle) {
		h.policy = p
	}
}

func WithLogger(logger *slog.Logger) HandleOption {
	return func(h *Handle) {
		h.logger = logger
	}
}

// NewHandle loads configuration from the environment (and the optional YAML
// file at path). It fails if the model is not configured.
func NewHandle(path string, opts ...HandleOption) (*Handle, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	h := &Handle{path: path, cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *Handle) Client() *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clientLocked()
}

func (h *Handle) clientLocked() *Client {
	if h.cli == nil {
		h.cli = newClientFromConfig(h.cfg)
	}
	return h.cli
}

func (h *Handle) Config() config.Config {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cfg
}

// Reload re-reads .env and the environment and rebuilds the client. On a
// configuration error the current client is kept.
func (h *Handle) Reload() error {
	cfg, err := config.Load(h.path)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cli != nil {
		h.logger.Info("reloading client", "model", cfg.LM.Model, "base_url", cfg.LM.BaseURL)
	}
	h.cfg = cfg
	h.cli = newClientFromConfig(cfg)
	return nil
}

// Complete sends messages with the configured model, retrying per the policy.
func (h *Handle) Complete(ctx context.Context, messages []Message) (string, error) {
	h.mu.Lock()
	cli := h.clientLocked()
	cfg := h.cfg
	p := h.policy
	h.mu.Unlock()

	if p.MaxRetries <= 0 {
		p.MaxRetries = cfg.LM.MaxRetries
	}
	if p.Logger == nil {
		p.Logger = h.logger
	}
	return ChatWithRetry(ctx, cli, cfg.LM.Model, messages, p)
}

func (h *Handle) Ask(ctx context.Context, prompt string) (string, error) {
	return h.Complete(ctx, Prompt(prompt))
}

func newClientFromConfig(cfg config.Config) *Client {
	return NewClient(cfg.LM.APIKey, cfg.LM.BaseURL, time.Duration(cfg.LM.RequestTimeoutSec)*time.Second)
}
