package browser

import (
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthStateRoundTrip(t *testing.T) {
	st := authState{
		SavedAt: time.Date(2026, 8, 14, 10, 0, 0, 0, time.UTC),
		Cookies: []*network.Cookie{
			{Name: "web_session", Value: "040069b2", Domain: ".xiaohongshu.com", Path: "/", Secure: true, HTTPOnly: true, Expires: 1790000000},
			{Name: "a1", Value: "18f2c", Domain: ".xiaohongshu.com", Path: "/"},
		},
		Origins: map[string]map[string]string{
			"https://www.xiaohongshu.com": {"user-info": `{"id":"5caa"}`},
		},
	}

	raw, err := json.MarshalIndent(st, "", "  ")
	require.NoError(t, err)

	got, err := decodeAuthState(raw)
	require.NoError(t, err)
	assert.Equal(t, st.SavedAt, got.SavedAt.UTC())
	require.Len(t, got.Cookies, 2)
	assert.Equal(t, "web_session", got.Cookies[0].Name)
	assert.Equal(t, st.Origins, got.Origins)
}

func TestDecodeAuthStateCorrupt(t *testing.T) {
	cases := map[string]string{
		"truncated":  `{"saved_at": "2026-`,
		"wrong type": `{"cookies": 42}`,
		"empty blob": `{}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decodeAuthState([]byte(raw))
			require.Error(t, err)
		})
	}
}

func TestCookieParams(t *testing.T) {
	params := cookieParams([]*network.Cookie{
		{Name: "web_session", Value: "v", Domain: ".xiaohongshu.com", Path: "/", Secure: true, HTTPOnly: true, Expires: 1790000000},
		{Name: "session_only", Value: "v2", Domain: ".xiaohongshu.com", Path: "/", Expires: -1},
	})
	require.Len(t, params, 2)

	require.NotNil(t, params[0].Expires)
	assert.Equal(t, int64(1790000000), time.Time(*params[0].Expires).Unix())
	assert.True(t, params[0].Secure)
	assert.True(t, params[0].HTTPOnly)

	assert.Nil(t, params[1].Expires, "session cookies keep no expiry")
}

func TestOriginOf(t *testing.T) {
	o, err := originOf("https://www.xiaohongshu.com/explore/66aa?x=1")
	require.NoError(t, err)
	assert.Equal(t, "https://www.xiaohongshu.com", o)

	_, err = originOf("not a url")
	require.Error(t, err)

	_, err = originOf("/explore/66aa")
	require.Error(t, err)
}
