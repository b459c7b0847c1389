package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultMaxRetries      = 4
	DefaultRateLimitWait   = 20 * time.Second
	DefaultUnavailableWait = 15 * time.Second
)

var ErrNoResponse = errors.New("no response from the model")

// Reason is the outcome of classifying a failed attempt by its error text.
type Reason string

const (
	ReasonRateLimited Reason = "rate_limited"
	ReasonUnavailable Reason = "unavailable"
	ReasonOffline     Reason = "offline"
	ReasonOther       Reason = "other"
)

type RetryPolicy struct {
	// MaxRetries is the total number of attempts. Values <= 0 mean DefaultMaxRetries.
	MaxRetries int
	// RateLimitWait is used when a rate-limit error carries no parseable wait.
	RateLimitWait   time.Duration
	UnavailableWait time.Duration
	// Sleep waits between attempts. Nil means a timer that honours ctx.
	Sleep func(ctx context.Context, d time.Duration) error
	// Notify receives a short progress mark for every retried failure.
	Notify func(string)
	Logger *slog.Logger
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      DefaultMaxRetries,
		RateLimitWait:   DefaultRateLimitWait,
		UnavailableWait: DefaultUnavailableWait,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxRetries <= 0 {
		p.MaxRetries = DefaultMaxRetries
	}
	if p.RateLimitWait <= 0 {
		p.RateLimitWait = DefaultRateLimitWait
	}
	if p.UnavailableWait <= 0 {
		p.UnavailableWait = DefaultUnavailableWait
	}
	if p.Sleep == nil {
		p.Sleep = sleepContext
	}
	if p.Notify == nil {
		p.Notify = func(string) {}
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return p
}

// ChatWithRetry calls cli.Chat up to p.MaxRetries times, one attempt after
// another, waiting between attempts according to the error text.
func ChatWithRetry(ctx context.Context, cli ChatClient, model string, messages []Message, p RetryPolicy) (string, error) {
	p = p.withDefaults()
	if err := ValidateMessages(messages); err != nil {
		return "", err
	}
	var lastErr error
	for attempt := 1; attempt <= p.MaxRetries; attempt++ {
		res, err := cli.Chat(ctx, model, messages)
		if err == nil {
			return res, nil
		}
		lastErr = err
		reason, wait := p.Classify(err)
		p.Logger.Debug("chat attempt failed",
			"attempt", attempt, "max", p.MaxRetries, "reason", reason, "wait", wait, "error", err)
		if attempt == p.MaxRetries {
			break
		}
		p.Notify(progressMark(reason, wait))
		if err := p.Sleep(ctx, wait); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("%w after %d retries: %w", ErrNoResponse, p.MaxRetries, lastErr)
}

// Classify maps an error to a Reason and the wait before the next attempt.
func (p RetryPolicy) Classify(err error) (Reason, time.Duration) {
	p = p.withDefaults()
	msg := err.Error()
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "Resource has been exhausted"):
		if d, ok := ParseRateLimitWait(msg); ok {
			return ReasonRateLimited, d
		}
		return ReasonRateLimited, p.RateLimitWait
	case strings.Contains(msg, "503"):
		return ReasonUnavailable, p.UnavailableWait
	case isConnectionError(err):
		return ReasonOffline, 0
	default:
		return ReasonOther, 0
	}
}

// ParseRateLimitWait reads the provider's suggested wait from a rate-limit
// message and adds one second. Two phrasings are understood:
// "Please retry after 12 sec" and "Please try again in 1m20s.".
func ParseRateLimitWait(msg string) (time.Duration, bool) {
	if _, rest, ok := strings.Cut(msg, "Please retry after"); ok {
		n, _, _ := strings.Cut(rest, "sec")
		secs, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil || secs < 0 {
			return 0, false
		}
		return time.Duration(secs+1) * time.Second, true
	}
	if _, rest, ok := strings.Cut(msg, "Please try again in"); ok {
		rest = strings.TrimSpace(rest)
		// the hint may be followed directly by JSON, e.g. 1m20s.","type":...
		if end := strings.IndexFunc(rest, func(r rune) bool {
			return !strings.ContainsRune(durationChars, r)
		}); end != -1 {
			rest = rest[:end]
		}
		d, err := time.ParseDuration(strings.TrimRight(rest, "."))
		if err != nil || d < 0 {
			return 0, false
		}
		secs := int(math.Ceil(d.Seconds()))
		return time.Duration(secs+1) * time.Second, true
	}
	return 0, false
}

const durationChars = "0123456789.hmsµun"

func isConnectionError(err error) bool {
	if err.Error() == "Connection error." {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return strings.Contains(err.Error(), "connection refused")
}

func progressMark(reason Reason, wait time.Duration) string {
	switch reason {
	case ReasonRateLimited:
		return fmt.Sprintf(" RL Wait%ds ", int(wait/time.Second))
	case ReasonUnavailable:
		return "Unavailable Wait "
	case ReasonOffline:
		return "Server not online "
	default:
		return "Error Retrying "
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
