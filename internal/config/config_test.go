package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 30*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, "https://www.xiaohongshu.com", cfg.Site.HomeURL)
	assert.Contains(t, cfg.Site.SearchURL, "%s")
	assert.Equal(t, 20, cfg.Crawler.MaxNotesPerKeyword)
	assert.Equal(t, 3, cfg.Crawler.StallLimit)
	assert.Equal(t, 120*time.Second, cfg.Auth.LoginWaitTimeout)
	assert.Equal(t, 2, cfg.Resilience.Attempts)
	assert.InDelta(t, 2.0, cfg.Resilience.StepsPerSecond, 0.001)
	assert.True(t, cfg.Storage.SaveRawJSON)
}

func TestDefaultConfigValidates(t *testing.T) {
	require.NoError(t, NewDefaultConfig().Validate())
}

func TestFinalizeDefaultStatePath(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Finalize())
	assert.Contains(t, cfg.Browser.StatePath, ".rednote-collector")
	assert.Contains(t, cfg.Browser.StatePath, "auth_state.json")
}

func TestFinalizeExpandsTilde(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Browser.StatePath = "~/custom/state.json"
	require.NoError(t, cfg.Finalize())
	assert.NotContains(t, cfg.Browser.StatePath, "~")
	assert.Contains(t, cfg.Browser.StatePath, "custom/state.json")
}

func TestNewConfigFromViperOverride(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("crawler.max_notes_per_keyword", 5)
	v.Set("crawler.keywords", []string{"咖啡"})

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Crawler.MaxNotesPerKeyword)
	assert.Equal(t, []string{"咖啡"}, cfg.Crawler.Keywords)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"zero max notes":      func(c *Config) { c.Crawler.MaxNotesPerKeyword = 0 },
		"negative comments":   func(c *Config) { c.Crawler.MaxCommentsPerNote = -1 },
		"zero stall limit":    func(c *Config) { c.Crawler.StallLimit = 0 },
		"zero attempts":       func(c *Config) { c.Resilience.Attempts = 0 },
		"zero steps":          func(c *Config) { c.Resilience.StepsPerSecond = 0 },
		"inverted delay pair": func(c *Config) { c.Delay.ScrollPauseMin = 5 * time.Second; c.Delay.ScrollPauseMax = time.Second },
		"zero login wait":     func(c *Config) { c.Auth.LoginWaitTimeout = 0 },
		"zero poll interval":  func(c *Config) { c.Auth.PollInterval = 0 },
		"missing site urls":   func(c *Config) { c.Site.SearchURL = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
