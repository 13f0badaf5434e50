package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/velosix/rednote-collector/internal/config"
)

// Page is one tab. Methods take the caller's context for cancellation, but
// every CDP action runs on the tab's own context chain; run bridges the two.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    config.BrowserConfig
	log    *zap.Logger

	closeOnce sync.Once
	release   func()
}

// run executes actions on the tab, bounded by timeout, aborting early if
// the caller's context dies.
func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if timeout > 0 {
		var tcancel context.CancelFunc
		runCtx, tcancel = context.WithTimeout(runCtx, timeout)
		defer tcancel()
	}
	err := chromedp.Run(runCtx, actions...)
	// report the caller's cancellation, not the derived context's
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Navigate loads url and waits for the document body to attach.
func (p *Page) Navigate(ctx context.Context, url string) error {
	p.log.Debug("navigate", zap.String("url", url))
	return p.run(ctx, p.cfg.NavigationTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// WaitVisible blocks until the selector is visible or the selector timeout
// elapses.
func (p *Page) WaitVisible(ctx context.Context, selector string) error {
	return p.run(ctx, p.cfg.SelectorTimeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// Exists reports whether the selector matches at least one element right
// now, without waiting.
func (p *Page) Exists(ctx context.Context, selector string) (bool, error) {
	var n int
	if err := p.count(ctx, selector, &n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// Count returns the number of elements the selector currently matches.
func (p *Page) Count(ctx context.Context, selector string) (int, error) {
	var n int
	err := p.count(ctx, selector, &n)
	return n, err
}

func (p *Page) count(ctx context.Context, selector string, out *int) error {
	js := fmt.Sprintf("document.querySelectorAll(%q).length", selector)
	return p.run(ctx, p.cfg.SelectorTimeout, chromedp.Evaluate(js, out))
}

// Eval runs an expression in the page and unmarshals its result into out.
// Pass a nil out to discard the result.
func (p *Page) Eval(ctx context.Context, expression string, out any) error {
	return p.run(ctx, p.cfg.SelectorTimeout, chromedp.Evaluate(expression, out))
}

// ScrollBy scrolls the window by the given pixel delta.
func (p *Page) ScrollBy(ctx context.Context, pixels int) error {
	js := fmt.Sprintf("window.scrollBy(0, %d)", pixels)
	return p.run(ctx, p.cfg.SelectorTimeout, chromedp.Evaluate(js, nil))
}

// ScrollContainer scrolls the first element matching selector by the given
// delta, falling back to the window when the container is absent. Returns
// whether the container was found.
func (p *Page) ScrollContainer(ctx context.Context, selector string, pixels int) (bool, error) {
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (el) { el.scrollBy(0, %d); return true; }
		window.scrollBy(0, %d);
		return false;
	})()`, selector, pixels, pixels)
	var found bool
	err := p.run(ctx, p.cfg.SelectorTimeout, chromedp.Evaluate(js, &found))
	return found, err
}

// HTML snapshots the full serialized document.
func (p *Page) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, p.cfg.SelectorTimeout,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// Location returns the tab's current URL.
func (p *Page) Location(ctx context.Context) (string, error) {
	var loc string
	err := p.run(ctx, p.cfg.SelectorTimeout, chromedp.Location(&loc))
	return loc, err
}

// Close disposes the tab and unblocks the next NewPage call. Idempotent.
func (p *Page) Close() error {
	p.closeOnce.Do(func() {
		p.cancel()
		if p.release != nil {
			p.release()
		}
	})
	return nil
}
