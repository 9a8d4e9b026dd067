package fetch

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const DefaultAttempts = 4

// BlockReason says how far the chain got before giving up.
type BlockReason int

const (
	// ReasonDirectBlocked: every direct attempt failed and no fallback is configured.
	ReasonDirectBlocked BlockReason = iota + 1
	// ReasonFallbackFailed: every direct attempt failed and so did every fallback.
	ReasonFallbackFailed
)

func (r BlockReason) String() string {
	switch r {
	case ReasonDirectBlocked:
		return "direct_blocked"
	case ReasonFallbackFailed:
		return "fallback_failed"
	}
	return "unknown"
}

// BlockedError is returned by Chain.Resolve when no path produced content.
type BlockedError struct {
	URL        string
	Reason     BlockReason
	Attempts   int
	LastStatus int
	Err        error
}

func (e *BlockedError) Error() string {
	switch e.Reason {
	case ReasonDirectBlocked:
		return fmt.Sprintf("fetch: all %d direct attempts blocked for %s (last status %d)", e.Attempts, e.URL, e.LastStatus)
	default:
		msg := fmt.Sprintf("fetch: %d direct attempts blocked and fallback failed for %s", e.Attempts, e.URL)
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		return msg
	}
}

func (e *BlockedError) Unwrap() error { return e.Err }

// IsBlocked reports whether err is (or wraps) a *BlockedError.
func IsBlocked(err error) bool {
	var be *BlockedError
	return eris.As(err, &be)
}

// Renderer is a secondary acquisition path used once direct fetching fails.
type Renderer interface {
	Name() string
	Render(ctx context.Context, target string) (Content, error)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Jitter returns a uniformly random duration in [min, max].
func Jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int64N(int64(max-min)+1))
}

// Chain retries a Fetcher with fresh identities and then walks its fallbacks.
type Chain struct {
	fetcher    Fetcher
	identities IdentityProvider
	fallbacks  []Renderer
	attempts   int
	backoffMin time.Duration
	backoffMax time.Duration
	sleep      Sleeper
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

func WithAttempts(n int) ChainOption {
	return func(c *Chain) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithBackoff sets the randomized wait range between direct attempts.
func WithBackoff(min, max time.Duration) ChainOption {
	return func(c *Chain) { c.backoffMin, c.backoffMax = min, max }
}

func WithSleeper(s Sleeper) ChainOption {
	return func(c *Chain) { c.sleep = s }
}

// WithFallbacks appends renderers tried in order after direct attempts fail.
func WithFallbacks(r ...Renderer) ChainOption {
	return func(c *Chain) {
		for _, x := range r {
			if x != nil {
				c.fallbacks = append(c.fallbacks, x)
			}
		}
	}
}

func NewChain(f Fetcher, ids IdentityProvider, opts ...ChainOption) *Chain {
	c := &Chain{
		fetcher:    f,
		identities: ids,
		attempts:   DefaultAttempts,
		backoffMin: time.Second,
		backoffMax: 3 * time.Second,
		sleep:      Sleep,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Resolve returns the page at target, or a *BlockedError.
func (c *Chain) Resolve(ctx context.Context, target string) (Content, error) {
	var last Outcome
	attempts := 0
	for attempts < c.attempts {
		attempts++
		out := c.fetcher.Fetch(ctx, target, c.identities.Next())
		if out.Kind == OutcomeSuccess {
			return Content{Kind: Markup, URL: target, Body: string(out.Body), Via: "direct"}, nil
		}
		last = out
		zap.L().Debug("fetch: direct attempt failed",
			zap.String("url", target),
			zap.Int("attempt", attempts),
			zap.Stringer("outcome", out.Kind),
			zap.Int("status", out.Status),
			zap.Bool("proxy", out.Identity.Proxy != ""),
			zap.Error(out.Err),
		)
		if attempts < c.attempts {
			if err := c.sleep(ctx, Jitter(c.backoffMin, c.backoffMax)); err != nil {
				break
			}
		}
	}

	if len(c.fallbacks) == 0 {
		return Content{}, &BlockedError{
			URL:        target,
			Reason:     ReasonDirectBlocked,
			Attempts:   attempts,
			LastStatus: last.Status,
			Err:        last.Err,
		}
	}

	var lastErr error
	for _, fb := range c.fallbacks {
		content, err := fb.Render(ctx, target)
		if err == nil {
			zap.L().Info("fetch: served by fallback", zap.String("url", target), zap.String("fallback", fb.Name()))
			return content, nil
		}
		zap.L().Warn("fetch: fallback failed", zap.String("url", target), zap.String("fallback", fb.Name()), zap.Error(err))
		lastErr = err
	}
	return Content{}, &BlockedError{
		URL:        target,
		Reason:     ReasonFallbackFailed,
		Attempts:   attempts,
		LastStatus: last.Status,
		Err:        lastErr,
	}
}
