package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:9222", cfg.Browser.DebuggerAddress)
	require.Equal(t, 5, cfg.Crawl.MaxPages)
	require.Equal(t, 20, cfg.Crawl.MaxItemsPerPage)
	require.Equal(t, 300, cfg.Crawl.PageCooldownSec)
	require.Equal(t, "output", cfg.Output.Root)
	require.Equal(t, 5000, cfg.Server.Port)
	require.Equal(t, []string{"https://batdongsan.com.vn/ban-dat"}, cfg.Seeds)
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
browser:
  debugger_address: ""
  headless: true
crawl:
  max_pages: 2
  page_cooldown_seconds: 10
output:
  root: /tmp/harvest
seeds:
  - https://batdongsan.com.vn/nha-dat-cho-thue
filter:
  location: Đống Đa
  price_from: "2000000000"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.True(t, cfg.Browser.Headless)
	require.Empty(t, cfg.Browser.DebuggerAddress)
	require.Equal(t, 2, cfg.Crawl.MaxPages)
	require.Equal(t, "/tmp/harvest", cfg.Output.Root)
	require.Equal(t, []string{"https://batdongsan.com.vn/nha-dat-cho-thue"}, cfg.Seeds)
	require.Equal(t, "Đống Đa", cfg.Filter.Location)
	require.Equal(t, "2000000000", cfg.Filter.PriceFrom)
}

func TestLoadRejectsBrokenConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("crawl:\n  max_pages: 0\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestSettingsConversion(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	crawlCfg := cfg.Crawl.Settings()
	require.Equal(t, 5*time.Minute, crawlCfg.PageCooldown)
	require.Equal(t, 2*time.Second, crawlCfg.ItemDelayMin)
	require.Equal(t, 500*time.Millisecond, crawlCfg.PageConfirmInterval)

	browserCfg := cfg.Browser.Session()
	require.Equal(t, time.Minute, browserCfg.NavigationTimeout)
	require.Equal(t, 20*time.Second, browserCfg.ActionTimeout)
}
