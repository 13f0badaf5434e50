// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Browser    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	Site       SiteConfig       `mapstructure:"site" yaml:"site"`
	Crawler    CrawlerConfig    `mapstructure:"crawler" yaml:"crawler"`
	Delay      DelayConfig      `mapstructure:"delay" yaml:"delay"`
	Auth       AuthConfig       `mapstructure:"auth" yaml:"auth"`
	Resilience ResilienceConfig `mapstructure:"resilience" yaml:"resilience"`
	Storage    StorageConfig    `mapstructure:"storage" yaml:"storage"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig holds settings for the browser process and its pages.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	SelectorTimeout   time.Duration `mapstructure:"selector_timeout" yaml:"selector_timeout"`
	// StatePath is where the persisted authenticated-session blob lives.
	// Supports "~" expansion. Empty selects a per-user default.
	StatePath string `mapstructure:"state_path" yaml:"state_path"`
}

// SiteConfig pins the target site's entry points and liveness markers.
// Selectors for record extraction live in the extract package; these are
// only the navigation- and auth-level anchors.
type SiteConfig struct {
	HomeURL           string   `mapstructure:"home_url" yaml:"home_url"`
	SearchURL         string   `mapstructure:"search_url" yaml:"search_url"`
	LoginURL          string   `mapstructure:"login_url" yaml:"login_url"`
	LoggedInSelector  string   `mapstructure:"logged_in_selector" yaml:"logged_in_selector"`
	ChallengeHints    []string `mapstructure:"challenge_hints" yaml:"challenge_hints"`
	ChallengeSelector string   `mapstructure:"challenge_selector" yaml:"challenge_selector"`
}

// CrawlerConfig controls how much gets collected per run.
type CrawlerConfig struct {
	Keywords           []string      `mapstructure:"keywords" yaml:"keywords"`
	MaxNotesPerKeyword int           `mapstructure:"max_notes_per_keyword" yaml:"max_notes_per_keyword"`
	MaxCommentsPerNote int           `mapstructure:"max_comments_per_note" yaml:"max_comments_per_note"`
	StallLimit         int           `mapstructure:"stall_limit" yaml:"stall_limit"`
	SettleTimeout      time.Duration `mapstructure:"settle_timeout" yaml:"settle_timeout"`
	MaxSettleFailures  int           `mapstructure:"max_settle_failures" yaml:"max_settle_failures"`
}

// DelayConfig defines the randomized pacing ranges used to emulate a human
// operator. Every pair is [min, max] drawn uniformly.
type DelayConfig struct {
	ScrollPauseMin     time.Duration `mapstructure:"scroll_pause_min" yaml:"scroll_pause_min"`
	ScrollPauseMax     time.Duration `mapstructure:"scroll_pause_max" yaml:"scroll_pause_max"`
	BetweenNotesMin    time.Duration `mapstructure:"between_notes_min" yaml:"between_notes_min"`
	BetweenNotesMax    time.Duration `mapstructure:"between_notes_max" yaml:"between_notes_max"`
	BetweenKeywordsMin time.Duration `mapstructure:"between_keywords_min" yaml:"between_keywords_min"`
	BetweenKeywordsMax time.Duration `mapstructure:"between_keywords_max" yaml:"between_keywords_max"`
}

// AuthConfig bounds the login flow.
type AuthConfig struct {
	LoginWaitTimeout time.Duration `mapstructure:"login_wait_timeout" yaml:"login_wait_timeout"`
	ProbeTimeout     time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	PollInterval     time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// ResilienceConfig tunes the retry and pacing layer around network-touching
// steps.
type ResilienceConfig struct {
	Attempts       int           `mapstructure:"attempts" yaml:"attempts"`
	Backoff        time.Duration `mapstructure:"backoff" yaml:"backoff"`
	BackoffJitter  time.Duration `mapstructure:"backoff_jitter" yaml:"backoff_jitter"`
	ActionDelayMin time.Duration `mapstructure:"action_delay_min" yaml:"action_delay_min"`
	ActionDelayMax time.Duration `mapstructure:"action_delay_max" yaml:"action_delay_max"`
	// StepsPerSecond is a hard ceiling on network-touching steps, on top of
	// the randomized delays.
	StepsPerSecond float64 `mapstructure:"steps_per_second" yaml:"steps_per_second"`
}

// StorageConfig controls the on-disk output collaborator.
type StorageConfig struct {
	OutputDir   string `mapstructure:"output_dir" yaml:"output_dir"`
	SaveRawJSON bool   `mapstructure:"save_raw_json" yaml:"save_raw_json"`
	SaveCSV     bool   `mapstructure:"save_csv" yaml:"save_csv"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "rednote-collector")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.selector_timeout", "10s")
	v.SetDefault("browser.state_path", "")

	// -- Site --
	v.SetDefault("site.home_url", "https://www.xiaohongshu.com")
	v.SetDefault("site.search_url", "https://www.xiaohongshu.com/search_result?keyword=%s&type=51")
	v.SetDefault("site.login_url", "https://www.xiaohongshu.com/explore")
	v.SetDefault("site.logged_in_selector", "a[href*='/user/profile']")
	v.SetDefault("site.challenge_hints", []string{"/web-login/captcha", "verify", "captcha"})
	v.SetDefault("site.challenge_selector", ".captcha-container, .red-captcha, [class*='verify-wrap']")

	// -- Crawler --
	v.SetDefault("crawler.max_notes_per_keyword", 20)
	v.SetDefault("crawler.max_comments_per_note", 20)
	v.SetDefault("crawler.stall_limit", 3)
	v.SetDefault("crawler.settle_timeout", "10s")
	v.SetDefault("crawler.max_settle_failures", 3)

	// -- Delay --
	v.SetDefault("delay.scroll_pause_min", "1s")
	v.SetDefault("delay.scroll_pause_max", "3s")
	v.SetDefault("delay.between_notes_min", "2s")
	v.SetDefault("delay.between_notes_max", "5s")
	v.SetDefault("delay.between_keywords_min", "3s")
	v.SetDefault("delay.between_keywords_max", "8s")

	// -- Auth --
	v.SetDefault("auth.login_wait_timeout", "120s")
	v.SetDefault("auth.probe_timeout", "5s")
	v.SetDefault("auth.poll_interval", "2s")

	// -- Resilience --
	v.SetDefault("resilience.attempts", 2)
	v.SetDefault("resilience.backoff", "1s")
	v.SetDefault("resilience.backoff_jitter", "500ms")
	v.SetDefault("resilience.action_delay_min", "500ms")
	v.SetDefault("resilience.action_delay_max", "1500ms")
	v.SetDefault("resilience.steps_per_second", 2.0)

	// -- Storage --
	v.SetDefault("storage.output_dir", "data")
	v.SetDefault("storage.save_raw_json", true)
	v.SetDefault("storage.save_csv", true)
}

// NewDefaultConfig creates a configuration struct populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with the defaults above.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a validated configuration from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Finalize expands user paths and validates the configuration.
func (c *Config) Finalize() error {
	if c.Browser.StatePath == "" {
		home, err := homedir.Dir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory for default state path: %w", err)
		}
		c.Browser.StatePath = filepath.Join(home, ".rednote-collector", "auth_state.json")
	} else {
		expanded, err := homedir.Expand(c.Browser.StatePath)
		if err != nil {
			return fmt.Errorf("invalid browser.state_path: %w", err)
		}
		c.Browser.StatePath = expanded
	}
	return c.Validate()
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Crawler.MaxNotesPerKeyword <= 0 {
		return fmt.Errorf("crawler.max_notes_per_keyword must be a positive integer")
	}
	if c.Crawler.MaxCommentsPerNote < 0 {
		return fmt.Errorf("crawler.max_comments_per_note must not be negative")
	}
	if c.Crawler.StallLimit <= 0 {
		return fmt.Errorf("crawler.stall_limit must be a positive integer")
	}
	if c.Resilience.Attempts <= 0 {
		return fmt.Errorf("resilience.attempts must be a positive integer")
	}
	if c.Resilience.StepsPerSecond <= 0 {
		return fmt.Errorf("resilience.steps_per_second must be greater than 0")
	}
	if err := validateRange("delay.scroll_pause", c.Delay.ScrollPauseMin, c.Delay.ScrollPauseMax); err != nil {
		return err
	}
	if err := validateRange("delay.between_notes", c.Delay.BetweenNotesMin, c.Delay.BetweenNotesMax); err != nil {
		return err
	}
	if err := validateRange("delay.between_keywords", c.Delay.BetweenKeywordsMin, c.Delay.BetweenKeywordsMax); err != nil {
		return err
	}
	if err := validateRange("resilience.action_delay", c.Resilience.ActionDelayMin, c.Resilience.ActionDelayMax); err != nil {
		return err
	}
	if c.Auth.LoginWaitTimeout <= 0 {
		return fmt.Errorf("auth.login_wait_timeout must be a positive duration")
	}
	if c.Auth.PollInterval <= 0 {
		return fmt.Errorf("auth.poll_interval must be a positive duration")
	}
	if c.Site.HomeURL == "" || c.Site.SearchURL == "" || c.Site.LoginURL == "" {
		return fmt.Errorf("site.home_url, site.search_url and site.login_url are required")
	}
	return nil
}

func validateRange(name string, min, max time.Duration) error {
	if min < 0 || max < min {
		return fmt.Errorf("%s_min/%s_max must satisfy 0 <= min <= max", name, name)
	}
	return nil
}
