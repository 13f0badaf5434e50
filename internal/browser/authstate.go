package browser

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// authState is the on-disk shape of a persisted login. Cookies are browser
// wide; localStorage is keyed by origin because it has to be written back
// while a document from that origin is loaded.
type authState struct {
	SavedAt time.Time                    `json:"saved_at"`
	Cookies []*network.Cookie            `json:"cookies"`
	Origins map[string]map[string]string `json:"origins"`
}

const localStorageDumpJS = `(() => {
	const out = {};
	for (let i = 0; i < localStorage.length; i++) {
		const k = localStorage.key(i);
		out[k] = localStorage.getItem(k);
	}
	return out;
})()`

// PersistAuthState captures cookies and localStorage into path. The page
// must currently be on the origin whose localStorage should be saved.
func (s *Session) PersistAuthState(ctx context.Context, page *Page, path string) error {
	loc, err := page.Location(ctx)
	if err != nil {
		return fmt.Errorf("read page location: %w", err)
	}
	origin, err := originOf(loc)
	if err != nil {
		return err
	}

	var cookies []*network.Cookie
	err = page.run(ctx, s.cfg.NavigationTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return fmt.Errorf("capture cookies: %w", err)
	}

	local := map[string]string{}
	if err := page.Eval(ctx, localStorageDumpJS, &local); err != nil {
		return fmt.Errorf("capture localStorage: %w", err)
	}

	st := authState{
		SavedAt: time.Now().UTC(),
		Cookies: cookies,
		Origins: map[string]map[string]string{origin: local},
	}
	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode login state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write login state: %w", err)
	}
	s.log.Info("login state persisted",
		zap.String("path", path), zap.Int("cookies", len(cookies)), zap.Int("local_keys", len(local)))
	return nil
}

// RestoreAuthState loads path and injects its cookies and localStorage into
// the session. Returns false with a nil error when no state file exists;
// a corrupt file is a *StateCorruptError so the caller can decide to fall
// back to a fresh login.
func (s *Session) RestoreAuthState(ctx context.Context, path string) (bool, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read login state: %w", err)
	}
	st, err := decodeAuthState(raw)
	if err != nil {
		return false, &StateCorruptError{Path: path, Err: err}
	}

	page, err := s.NewPage(ctx)
	if err != nil {
		return false, err
	}
	defer page.Close()

	params := cookieParams(st.Cookies)
	err = page.run(ctx, s.cfg.NavigationTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		return storage.SetCookies(params).Do(ctx)
	}))
	if err != nil {
		return false, fmt.Errorf("restore cookies: %w", err)
	}

	for origin, kv := range st.Origins {
		if len(kv) == 0 {
			continue
		}
		if err := page.Navigate(ctx, origin); err != nil {
			return false, fmt.Errorf("open %s for localStorage restore: %w", origin, err)
		}
		blob, err := json.Marshal(kv)
		if err != nil {
			return false, fmt.Errorf("encode localStorage for %s: %w", origin, err)
		}
		js := fmt.Sprintf(`(() => {
			const kv = %s;
			for (const k of Object.keys(kv)) localStorage.setItem(k, kv[k]);
		})()`, string(blob))
		if err := page.Eval(ctx, js, nil); err != nil {
			return false, fmt.Errorf("restore localStorage for %s: %w", origin, err)
		}
	}
	s.log.Info("login state restored",
		zap.String("path", path),
		zap.Int("cookies", len(st.Cookies)),
		zap.Time("saved_at", st.SavedAt))
	return true, nil
}

func decodeAuthState(raw []byte) (authState, error) {
	var st authState
	if err := json.Unmarshal(raw, &st); err != nil {
		return authState{}, err
	}
	if st.Cookies == nil && len(st.Origins) == 0 {
		return authState{}, fmt.Errorf("state blob has neither cookies nor origins")
	}
	return st, nil
}

// cookieParams converts captured cookies into the setter parameter shape,
// carrying the expiry across the epoch-time representation change.
func cookieParams(cookies []*network.Cookie) []*network.CookieParam {
	out := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite,
		}
		if c.Expires > 0 {
			exp := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &exp
		}
		out = append(out, p)
	}
	return out
}

func originOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("page location %q has no origin", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}
