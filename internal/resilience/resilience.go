// Package resilience wraps flaky browser steps with pacing and retries.
//
// Two concerns live here: a global pacing floor so steps never fire faster
// than the site tolerates, and bounded retry with jittered exponential
// backoff for steps that fail transiently. Challenge interstitials are the
// one failure that must never be retried; hammering a challenge page is the
// fastest way to burn the account.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrChallengeDetected marks a step that landed on an anti-bot challenge
// page. Do returns it immediately without further attempts.
var ErrChallengeDetected = errors.New("challenge page detected")

// Config tunes one Layer.
type Config struct {
	// Attempts is the total number of tries per step, first one included.
	Attempts int
	// BackoffBase seeds the exponential backoff; BackoffMax caps it.
	// BackoffJitter widens each wait by up to that much; zero means half
	// the computed backoff.
	BackoffBase   time.Duration
	BackoffMax    time.Duration
	BackoffJitter time.Duration
	// StepsPerSecond is the pacing floor applied before every attempt.
	StepsPerSecond float64
	// PauseMin and PauseMax bound the humanizing delay Pause sleeps.
	PauseMin time.Duration
	PauseMax time.Duration
}

func (c *Config) applyDefaults() {
	if c.Attempts <= 0 {
		c.Attempts = 2
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 2 * time.Second
	}
	if c.BackoffMax < c.BackoffBase {
		c.BackoffMax = 30 * time.Second
	}
	if c.StepsPerSecond <= 0 {
		c.StepsPerSecond = 2.0
	}
	if c.PauseMin <= 0 {
		c.PauseMin = 500 * time.Millisecond
	}
	if c.PauseMax < c.PauseMin {
		c.PauseMax = c.PauseMin + time.Second
	}
}

// Layer applies the shared pacing and retry policy. Safe for concurrent use.
type Layer struct {
	cfg     Config
	limiter *rate.Limiter

	mu  sync.Mutex
	rng *rand.Rand

	log *zap.Logger
}

func NewLayer(cfg Config, log *zap.Logger) *Layer {
	return newLayer(cfg, log, time.Now().UnixNano())
}

func newLayer(cfg Config, log *zap.Logger, seed int64) *Layer {
	cfg.applyDefaults()
	return &Layer{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.StepsPerSecond), 1),
		rng:     rand.New(rand.NewSource(seed)),
		log:     log,
	}
}

// Do runs step under the pacing floor, retrying transient failures up to
// the configured attempt budget. ErrChallengeDetected and context errors
// abort immediately; the final failure wraps the last error from step.
func (l *Layer) Do(ctx context.Context, name string, step func(context.Context) error) error {
	var last error
	for attempt := 1; attempt <= l.cfg.Attempts; attempt++ {
		if err := l.limiter.Wait(ctx); err != nil {
			return err
		}
		last = step(ctx)
		if last == nil {
			return nil
		}
		if errors.Is(last, ErrChallengeDetected) {
			l.log.Warn("challenge detected, not retrying", zap.String("step", name))
			return last
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", name, ctx.Err())
		}
		if attempt == l.cfg.Attempts {
			break
		}
		d := l.backoff(attempt)
		l.log.Warn("step failed, backing off",
			zap.String("step", name),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", d),
			zap.Error(last))
		if err := sleep(ctx, d); err != nil {
			return err
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", name, l.cfg.Attempts, last)
}

// Pause sleeps a random humanizing interval between consecutive actions.
func (l *Layer) Pause(ctx context.Context) error {
	return sleep(ctx, l.jitterBetween(l.cfg.PauseMin, l.cfg.PauseMax))
}

// backoff returns base * 2^(attempt-1), capped, with jitter on top.
func (l *Layer) backoff(attempt int) time.Duration {
	d := l.cfg.BackoffBase << (attempt - 1)
	if d > l.cfg.BackoffMax || d <= 0 {
		d = l.cfg.BackoffMax
	}
	j := l.cfg.BackoffJitter
	if j <= 0 {
		j = d / 2
	}
	return l.jitterBetween(d, d+j)
}

func (l *Layer) jitterBetween(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return lo + time.Duration(l.rng.Int63n(int64(hi-lo)))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
