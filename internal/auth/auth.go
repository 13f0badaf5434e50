// Package auth manages login state: restoring a persisted session, probing
// whether it is still valid, and shepherding the operator through a manual
// QR login when it is not. Credentials are never touched; a human performs
// the actual login in the visible browser window.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/velosix/rednote-collector/internal/browser"
	"github.com/velosix/rednote-collector/internal/config"
)

// State is where the session stands in the login lifecycle.
type State int

const (
	StateUnknown State = iota
	StateAuthenticated
	StateExpired
	StateAwaitingManualLogin
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateExpired:
		return "expired"
	case StateAwaitingManualLogin:
		return "awaiting-manual-login"
	default:
		return "unknown"
	}
}

// LoginTimeoutError means the operator did not complete the manual login
// inside the configured window.
type LoginTimeoutError struct {
	Waited time.Duration
}

func (e *LoginTimeoutError) Error() string {
	return fmt.Sprintf("manual login not completed within %s", e.Waited)
}

// Page is the slice of a browser tab the login flow needs.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Exists(ctx context.Context, selector string) (bool, error)
	Location(ctx context.Context) (string, error)
	Close() error
}

// Client is the session surface the controller drives.
type Client interface {
	OpenPage(ctx context.Context) (Page, error)
	PersistState(ctx context.Context, page Page) error
	RestoreState(ctx context.Context) (bool, error)
}

// Controller owns the EnsureAuthenticated flow.
type Controller struct {
	client Client
	site   config.SiteConfig
	cfg    config.AuthConfig
	log    *zap.Logger

	state State
}

func NewController(client Client, site config.SiteConfig, cfg config.AuthConfig, log *zap.Logger) *Controller {
	return &Controller{client: client, site: site, cfg: cfg, log: log, state: StateUnknown}
}

// State reports the last state EnsureAuthenticated reached.
func (c *Controller) State() State { return c.state }

// EnsureAuthenticated brings the session to the authenticated state or
// reports why it could not. The state on disk is only trusted after a live
// probe; a corrupt blob is discarded with a warning rather than failing
// the run. The in-browser state is persisted before Authenticated is ever
// returned, so a crash right after login still leaves a reusable session.
func (c *Controller) EnsureAuthenticated(ctx context.Context) (State, error) {
	restored, err := c.client.RestoreState(ctx)
	if err != nil {
		var corrupt *browser.StateCorruptError
		if !errors.As(err, &corrupt) {
			return c.state, err
		}
		c.log.Warn("discarding corrupt login state, falling back to manual login",
			zap.String("path", corrupt.Path), zap.Error(corrupt.Err))
		restored = false
	}

	page, err := c.client.OpenPage(ctx)
	if err != nil {
		return c.state, err
	}
	defer page.Close()

	if err := page.Navigate(ctx, c.site.LoginURL); err != nil {
		return c.state, fmt.Errorf("open login page: %w", err)
	}

	ok, err := c.probe(ctx, page)
	if err != nil {
		return c.state, err
	}
	if ok {
		if restored {
			c.log.Info("restored login state is still valid")
		} else {
			c.log.Info("session already authenticated")
		}
		return c.finish(ctx, page)
	}
	if restored {
		c.state = StateExpired
		c.log.Warn("restored login state has expired")
	}

	return c.manualLogin(ctx, page)
}

// manualLogin parks on the login page and polls for the logged-in marker
// until the operator finishes or the window closes.
func (c *Controller) manualLogin(ctx context.Context, page Page) (State, error) {
	c.state = StateAwaitingManualLogin
	c.log.Info("waiting for manual login, scan the QR code in the browser window",
		zap.Duration("timeout", c.cfg.LoginWaitTimeout))

	deadline := time.NewTimer(c.cfg.LoginWaitTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(c.cfg.PollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return c.state, ctx.Err()
		case <-deadline.C:
			return c.state, &LoginTimeoutError{Waited: c.cfg.LoginWaitTimeout}
		case <-tick.C:
			ok, err := c.probe(ctx, page)
			if err != nil {
				c.log.Debug("login probe failed, will retry", zap.Error(err))
				continue
			}
			if ok {
				c.log.Info("manual login completed")
				return c.finish(ctx, page)
			}
		}
	}
}

// finish persists the live state and only then flips to Authenticated.
func (c *Controller) finish(ctx context.Context, page Page) (State, error) {
	if err := c.client.PersistState(ctx, page); err != nil {
		return c.state, fmt.Errorf("persist login state: %w", err)
	}
	c.state = StateAuthenticated
	return c.state, nil
}

// probe checks the logged-in marker, with a fallback on the URL: landing
// on the passport page always means logged out.
func (c *Controller) probe(ctx context.Context, page Page) (bool, error) {
	if loc, err := page.Location(ctx); err == nil && strings.Contains(loc, "/login") {
		return false, nil
	}
	probeCtx := ctx
	if c.cfg.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, c.cfg.ProbeTimeout)
		defer cancel()
	}
	return page.Exists(probeCtx, c.site.LoggedInSelector)
}
