package crawler

import (
	"context"
	"fmt"

	"github.com/velosix/rednote-collector/internal/auth"
	"github.com/velosix/rednote-collector/internal/browser"
)

// sessionClient adapts a live browser session to the auth package's
// client surface, pinning the state file path in one place.
type sessionClient struct {
	session   *browser.Session
	statePath string
}

var _ auth.Client = (*sessionClient)(nil)

// AuthClient exposes the session-to-auth adapter for callers outside the
// run loop, such as the standalone login command.
func AuthClient(session *browser.Session, statePath string) auth.Client {
	return &sessionClient{session: session, statePath: statePath}
}

func (c *sessionClient) OpenPage(ctx context.Context) (auth.Page, error) {
	return c.session.NewPage(ctx)
}

func (c *sessionClient) PersistState(ctx context.Context, page auth.Page) error {
	p, ok := page.(*browser.Page)
	if !ok {
		return fmt.Errorf("cannot persist state from page type %T", page)
	}
	return c.session.PersistAuthState(ctx, p, c.statePath)
}

func (c *sessionClient) RestoreState(ctx context.Context) (bool, error) {
	return c.session.RestoreAuthState(ctx, c.statePath)
}
