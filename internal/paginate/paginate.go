// Package paginate drives infinite-scroll feeds to a stable end state.
//
// A feed never says "done"; the only termination signals are the caller's
// target being met or the item count refusing to grow across several
// scroll rounds. The engine owns that convergence logic so callers only
// describe the feed.
package paginate

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Feed is one scrollable stream. ItemCount reports how many items are
// currently materialized in the DOM; Advance performs one scroll step and
// whatever settling the concrete feed needs.
type Feed interface {
	ItemCount(ctx context.Context) (int, error)
	Advance(ctx context.Context) error
}

// PageUnresponsiveError means the feed stopped reacting: several
// consecutive scroll steps timed out without the page settling.
type PageUnresponsiveError struct {
	ConsecutiveFailures int
	Last                error
}

func (e *PageUnresponsiveError) Error() string {
	return fmt.Sprintf("feed unresponsive after %d consecutive scroll timeouts: %v",
		e.ConsecutiveFailures, e.Last)
}

func (e *PageUnresponsiveError) Unwrap() error { return e.Last }

// Config tunes one engine. Zero values fall back to the bounds the target
// site tolerates.
type Config struct {
	// StallLimit is how many consecutive rounds the item count may stay
	// flat before the feed is declared exhausted.
	StallLimit int
	// SettleMin and SettleMax bound the jittered pause after each scroll
	// step, giving lazy-loaded content time to attach.
	SettleMin time.Duration
	SettleMax time.Duration
	// SettleTimeout caps one Advance call.
	SettleTimeout time.Duration
	// MaxSettleFailures is how many consecutive Advance timeouts are
	// tolerated before the page is declared unresponsive.
	MaxSettleFailures int
}

func (c *Config) applyDefaults() {
	if c.StallLimit <= 0 {
		c.StallLimit = 3
	}
	if c.SettleMin <= 0 {
		c.SettleMin = 800 * time.Millisecond
	}
	if c.SettleMax < c.SettleMin {
		c.SettleMax = c.SettleMin + 700*time.Millisecond
	}
	if c.SettleTimeout <= 0 {
		c.SettleTimeout = 10 * time.Second
	}
	if c.MaxSettleFailures <= 0 {
		c.MaxSettleFailures = 3
	}
}

// Engine runs the scroll-until-stable loop.
type Engine struct {
	cfg Config
	rng *rand.Rand
	log *zap.Logger
}

func NewEngine(cfg Config, log *zap.Logger) *Engine {
	return newEngine(cfg, log, time.Now().UnixNano())
}

// newEngine pins the jitter source for tests.
func newEngine(cfg Config, log *zap.Logger, seed int64) *Engine {
	cfg.applyDefaults()
	return &Engine{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
		log: log,
	}
}

// LoadUntil scrolls the feed until at least target items are materialized
// or the count stalls for StallLimit consecutive rounds. target <= 0 means
// "everything": scroll until the stall limit trips. Returns the final item
// count; the count is valid even when the error is non-nil.
func (e *Engine) LoadUntil(ctx context.Context, feed Feed, target int) (int, error) {
	var (
		prev     = -1
		stale    = 0
		timeouts = 0
		count    int
		round    int
	)
	for {
		round++
		var err error
		count, err = feed.ItemCount(ctx)
		if err != nil {
			return count, fmt.Errorf("count feed items: %w", err)
		}
		if target > 0 && count >= target {
			e.log.Debug("feed reached target",
				zap.Int("count", count), zap.Int("target", target), zap.Int("rounds", round))
			return count, nil
		}
		if count == prev {
			stale++
			if stale >= e.cfg.StallLimit {
				e.log.Debug("feed stalled, treating as exhausted",
					zap.Int("count", count), zap.Int("rounds", round))
				return count, nil
			}
		} else {
			stale = 0
			prev = count
		}

		stepCtx, cancel := context.WithTimeout(ctx, e.cfg.SettleTimeout)
		err = feed.Advance(stepCtx)
		cancel()
		switch {
		case err == nil:
			timeouts = 0
		case ctx.Err() != nil:
			return count, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			timeouts++
			e.log.Warn("scroll step timed out",
				zap.Int("consecutive", timeouts), zap.Int("count", count))
			if timeouts >= e.cfg.MaxSettleFailures {
				return count, &PageUnresponsiveError{ConsecutiveFailures: timeouts, Last: err}
			}
		default:
			return count, fmt.Errorf("advance feed: %w", err)
		}

		if err := e.settle(ctx); err != nil {
			return count, err
		}
	}
}

// settle sleeps a jittered interval, bailing out if the run is cancelled.
func (e *Engine) settle(ctx context.Context) error {
	span := e.cfg.SettleMax - e.cfg.SettleMin
	d := e.cfg.SettleMin
	if span > 0 {
		d += time.Duration(e.rng.Int63n(int64(span)))
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
