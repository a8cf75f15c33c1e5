// Package config loads and validates the harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/realpulse/bds-harvester/internal/browser"
	"github.com/realpulse/bds-harvester/internal/crawl"
	"github.com/realpulse/bds-harvester/internal/listing"
)

// Config captures every knob of the harvester.
type Config struct {
	Browser  BrowserConfig  `mapstructure:"browser"`
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	Output   OutputConfig   `mapstructure:"output"`
	Taxonomy TaxonomyConfig `mapstructure:"taxonomy"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`

	// Seeds are the default listing URLs crawled when the command line
	// supplies none.
	Seeds  []string           `mapstructure:"seeds"`
	Filter listing.FilterSpec `mapstructure:"filter"`
}

// BrowserConfig controls how the Chrome session is established.
type BrowserConfig struct {
	DebuggerAddress  string `mapstructure:"debugger_address"`
	Headless         bool   `mapstructure:"headless"`
	UserAgent        string `mapstructure:"user_agent"`
	NavTimeoutSec    int    `mapstructure:"nav_timeout_seconds"`
	ActionTimeoutSec int    `mapstructure:"action_timeout_seconds"`
}

// Session renders the browser settings for the session constructor.
func (c BrowserConfig) Session() browser.Config {
	return browser.Config{
		DebuggerAddress:   c.DebuggerAddress,
		Headless:          c.Headless,
		UserAgent:         c.UserAgent,
		NavigationTimeout: time.Duration(c.NavTimeoutSec) * time.Second,
		ActionTimeout:     time.Duration(c.ActionTimeoutSec) * time.Second,
	}
}

// CrawlConfig governs pagination limits and pacing.
type CrawlConfig struct {
	MaxPages              int    `mapstructure:"max_pages"`
	MaxItemsPerPage       int    `mapstructure:"max_items_per_page"`
	PageCooldownSec       int    `mapstructure:"page_cooldown_seconds"`
	ItemDelayMinMs        int    `mapstructure:"item_delay_min_ms"`
	ItemDelayMaxMs        int    `mapstructure:"item_delay_max_ms"`
	PageConfirmAttempts   int    `mapstructure:"page_confirm_attempts"`
	PageConfirmIntervalMs int    `mapstructure:"page_confirm_interval_ms"`
	ListScrollSteps       int    `mapstructure:"list_scroll_steps"`
	DetailScrollSteps     int    `mapstructure:"detail_scroll_steps"`
	ScreenshotDir         string `mapstructure:"screenshot_dir"`
}

// Settings renders the crawl settings for the orchestrator.
func (c CrawlConfig) Settings() crawl.Config {
	return crawl.Config{
		MaxPages:            c.MaxPages,
		MaxItemsPerPage:     c.MaxItemsPerPage,
		ItemDelayMin:        time.Duration(c.ItemDelayMinMs) * time.Millisecond,
		ItemDelayMax:        time.Duration(c.ItemDelayMaxMs) * time.Millisecond,
		PageCooldown:        time.Duration(c.PageCooldownSec) * time.Second,
		PageConfirmAttempts: c.PageConfirmAttempts,
		PageConfirmInterval: time.Duration(c.PageConfirmIntervalMs) * time.Millisecond,
		ListScrollSteps:     c.ListScrollSteps,
		DetailScrollSteps:   c.DetailScrollSteps,
		ScreenshotDir:       c.ScreenshotDir,
	}
}

// OutputConfig sets where result partitions land.
type OutputConfig struct {
	Root string `mapstructure:"root"`
}

// TaxonomyConfig points at the reference workbook.
type TaxonomyConfig struct {
	Workbook string `mapstructure:"workbook"`
}

// ServerConfig controls the status HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk and environment. An empty path uses
// defaults and environment only.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("browser.debugger_address", "127.0.0.1:9222")
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.nav_timeout_seconds", 60)
	v.SetDefault("browser.action_timeout_seconds", 20)

	v.SetDefault("crawl.max_pages", 5)
	v.SetDefault("crawl.max_items_per_page", 20)
	v.SetDefault("crawl.page_cooldown_seconds", 5*60)
	v.SetDefault("crawl.item_delay_min_ms", 2000)
	v.SetDefault("crawl.item_delay_max_ms", 5000)
	v.SetDefault("crawl.page_confirm_attempts", 30)
	v.SetDefault("crawl.page_confirm_interval_ms", 500)
	v.SetDefault("crawl.list_scroll_steps", 6)
	v.SetDefault("crawl.detail_scroll_steps", 6)
	v.SetDefault("crawl.screenshot_dir", "screenshots_blocked")

	v.SetDefault("output.root", "output")
	v.SetDefault("taxonomy.workbook", "")
	v.SetDefault("server.port", 5000)
	v.SetDefault("logging.development", false)

	v.SetDefault("seeds", []string{"https://batdongsan.com.vn/ban-dat"})
}

// Validate rejects configurations the crawler cannot run with.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Output.Root == "" {
		return fmt.Errorf("output.root is required")
	}
	if err := c.Crawl.Settings().Validate(); err != nil {
		return err
	}
	return nil
}
