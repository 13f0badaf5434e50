// Package browser owns the Chrome process, its tabs, and the persisted
// login state. It is the only package that talks CDP; everything above it
// works with Session and Page.
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/velosix/rednote-collector/internal/config"
	"github.com/velosix/rednote-collector/internal/identity"
)

// Session is one Chrome process with a consistent synthetic identity. At
// most one Page is active at a time; NewPage blocks until the previous one
// is closed, which mirrors how a single human operates the site.
type Session struct {
	cfg config.BrowserConfig
	id  identity.Identity
	log *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc

	mu            sync.Mutex
	browserCtx    context.Context
	browserCancel context.CancelFunc

	pageSem   *semaphore.Weighted
	closeOnce sync.Once
}

// Open launches Chrome and verifies the DevTools connection. The identity
// is applied per tab, not here: CDP overrides are target-scoped.
func Open(ctx context.Context, cfg config.BrowserConfig, id identity.Identity, log *zap.Logger) (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("lang", id.Locale),
		chromedp.WindowSize(id.ViewportWidth, id.ViewportHeight),
		chromedp.UserAgent(id.UserAgent),
	)
	for _, arg := range cfg.Args {
		if k, v, ok := strings.Cut(arg, "="); ok {
			opts = append(opts, chromedp.Flag(strings.TrimPrefix(k, "--"), v))
		} else {
			opts = append(opts, chromedp.Flag(strings.TrimPrefix(arg, "--"), true))
		}
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)

	s := &Session{
		cfg:         cfg,
		id:          id,
		log:         log,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		pageSem:     semaphore.NewWeighted(1),
	}
	if err := s.startBrowser(); err != nil {
		allocCancel()
		return nil, err
	}
	log.Info("browser session started",
		zap.Bool("headless", cfg.Headless),
		zap.String("user_agent", id.UserAgent),
		zap.Int("viewport_w", id.ViewportWidth),
		zap.Int("viewport_h", id.ViewportHeight))
	return s, nil
}

func (s *Session) startBrowser() error {
	browserCtx, browserCancel := chromedp.NewContext(s.allocCtx)
	// an empty Run forces the process to actually launch
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		return &SessionStartError{Err: err}
	}
	s.mu.Lock()
	s.browserCtx = browserCtx
	s.browserCancel = browserCancel
	s.mu.Unlock()
	return nil
}

// Recreate tears down the current browser process and launches a fresh one
// on the same allocator. One attempt only; a second failure means the
// environment is broken, not the session.
func (s *Session) Recreate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	cancel := s.browserCancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.log.Warn("recreating browser process")
	return s.startBrowser()
}

// NewPage opens a tab with the session identity fully applied before any
// navigation. It blocks until the previously issued page is closed.
func (s *Session) NewPage(ctx context.Context) (*Page, error) {
	if err := s.pageSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	s.mu.Lock()
	parent := s.browserCtx
	s.mu.Unlock()
	if parent == nil {
		s.pageSem.Release(1)
		return nil, &PageCreateError{Err: fmt.Errorf("session is closed")}
	}

	tabCtx, tabCancel := chromedp.NewContext(parent)
	if err := chromedp.Run(tabCtx, identity.Apply(s.id, s.log)); err != nil {
		tabCancel()
		s.pageSem.Release(1)
		return nil, &PageCreateError{Err: err}
	}
	return &Page{
		ctx:     tabCtx,
		cancel:  tabCancel,
		cfg:     s.cfg,
		log:     s.log,
		release: func() { s.pageSem.Release(1) },
	}, nil
}

// Close shuts the browser down. Safe to call more than once and after a
// failed Recreate.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		browserCtx := s.browserCtx
		s.mu.Unlock()
		if browserCtx != nil {
			if err := chromedp.Cancel(browserCtx); err != nil {
				s.log.Debug("browser shutdown", zap.Error(err))
			}
		}
		s.allocCancel()
		s.log.Info("browser session closed")
	})
	return nil
}
