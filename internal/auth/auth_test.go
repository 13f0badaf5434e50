package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/velosix/rednote-collector/internal/browser"
	"github.com/velosix/rednote-collector/internal/config"
)

type fakePage struct {
	location string
	// loggedInAfter is how many Exists probes return false before the
	// marker appears; negative means never.
	loggedInAfter int
	probes        int
	closed        bool
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.location = url
	return nil
}

func (p *fakePage) Exists(context.Context, string) (bool, error) {
	p.probes++
	if p.loggedInAfter < 0 {
		return false, nil
	}
	return p.probes > p.loggedInAfter, nil
}

func (p *fakePage) Location(context.Context) (string, error) { return p.location, nil }
func (p *fakePage) Close() error                             { p.closed = true; return nil }

type fakeClient struct {
	page       *fakePage
	restored   bool
	restoreErr error
	persistErr error

	events []string
}

func (c *fakeClient) OpenPage(context.Context) (Page, error) {
	c.events = append(c.events, "open")
	return c.page, nil
}

func (c *fakeClient) PersistState(context.Context, Page) error {
	c.events = append(c.events, "persist")
	return c.persistErr
}

func (c *fakeClient) RestoreState(context.Context) (bool, error) {
	c.events = append(c.events, "restore")
	return c.restored, c.restoreErr
}

func testController(t *testing.T, client Client) *Controller {
	t.Helper()
	site := config.SiteConfig{
		LoginURL:         "https://www.xiaohongshu.com/explore",
		LoggedInSelector: "a[href*='/user/profile']",
	}
	cfg := config.AuthConfig{
		LoginWaitTimeout: 250 * time.Millisecond,
		PollInterval:     10 * time.Millisecond,
		ProbeTimeout:     time.Second,
	}
	return NewController(client, site, cfg, zaptest.NewLogger(t))
}

func TestEnsureAuthenticatedRestoredStateValid(t *testing.T) {
	client := &fakeClient{page: &fakePage{}, restored: true}
	c := testController(t, client)

	st, err := c.EnsureAuthenticated(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, st)
	assert.Equal(t, StateAuthenticated, c.State())
	// state written back even on the fast path, refreshing the blob
	assert.Equal(t, []string{"restore", "open", "persist"}, client.events)
	assert.True(t, client.page.closed)
}

func TestEnsureAuthenticatedManualLogin(t *testing.T) {
	// first probe (pre-poll) and two polls miss, third poll hits
	client := &fakeClient{page: &fakePage{loggedInAfter: 3}}
	c := testController(t, client)

	st, err := c.EnsureAuthenticated(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, st)
	assert.Equal(t, []string{"restore", "open", "persist"}, client.events)
}

func TestEnsureAuthenticatedPersistPrecedesSuccess(t *testing.T) {
	client := &fakeClient{page: &fakePage{}, persistErr: errors.New("disk full")}
	c := testController(t, client)

	st, err := c.EnsureAuthenticated(context.Background())
	require.Error(t, err)
	assert.NotEqual(t, StateAuthenticated, st, "must not report authenticated when state was not persisted")
}

func TestEnsureAuthenticatedTimeout(t *testing.T) {
	client := &fakeClient{page: &fakePage{loggedInAfter: -1}}
	c := testController(t, client)

	st, err := c.EnsureAuthenticated(context.Background())
	var timeout *LoginTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, StateAwaitingManualLogin, st)
	assert.NotContains(t, client.events, "persist")
}

func TestEnsureAuthenticatedExpiredState(t *testing.T) {
	// restored blob no longer works: marker never appears
	client := &fakeClient{page: &fakePage{loggedInAfter: -1}, restored: true}
	c := testController(t, client)

	_, err := c.EnsureAuthenticated(context.Background())
	require.Error(t, err)
	// the expired detection happened on the way to manual login
	assert.NotContains(t, client.events, "persist")
}

func TestEnsureAuthenticatedCorruptStateFallsBack(t *testing.T) {
	client := &fakeClient{
		page:       &fakePage{},
		restoreErr: &browser.StateCorruptError{Path: "/tmp/state.json", Err: errors.New("bad json")},
	}
	c := testController(t, client)

	st, err := c.EnsureAuthenticated(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, st)
}

func TestEnsureAuthenticatedOtherRestoreErrorFails(t *testing.T) {
	client := &fakeClient{page: &fakePage{}, restoreErr: errors.New("io error")}
	c := testController(t, client)

	_, err := c.EnsureAuthenticated(context.Background())
	require.Error(t, err)
	assert.NotContains(t, client.events, "open")
}

func TestEnsureAuthenticatedCancellation(t *testing.T) {
	client := &fakeClient{page: &fakePage{loggedInAfter: -1}}
	c := testController(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()
	_, err := c.EnsureAuthenticated(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoginURLOnPassportPageMeansLoggedOut(t *testing.T) {
	p := &fakePage{loggedInAfter: 0} // Exists would say logged in
	p.location = "https://www.xiaohongshu.com/login?redirect=explore"
	c := testController(t, &fakeClient{page: p})

	ok, err := c.probe(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, ok, "URL check overrides the DOM probe")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "authenticated", StateAuthenticated.String())
	assert.Equal(t, "expired", StateExpired.String())
	assert.Equal(t, "awaiting-manual-login", StateAwaitingManualLogin.String())
	assert.Equal(t, "unknown", StateUnknown.String())
}
