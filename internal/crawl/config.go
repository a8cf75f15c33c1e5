package crawl

import (
	"fmt"
	"time"
)

// Config holds the orchestrator settings for one crawl session. It is
// decoupled from the configuration loader so the orchestrator can be
// exercised directly in tests.
type Config struct {
	// MaxPages and MaxItemsPerPage are the defaults when the FilterSpec
	// leaves them unset.
	MaxPages        int
	MaxItemsPerPage int

	// ItemDelayMin/Max bound the randomized pause inserted between
	// navigations and items; PageCooldown is the fixed pause between
	// listing pages and between seed URLs.
	ItemDelayMin time.Duration
	ItemDelayMax time.Duration
	PageCooldown time.Duration

	// PageConfirmAttempts short polls of PageConfirmInterval decide
	// whether a pagination transition actually happened.
	PageConfirmAttempts int
	PageConfirmInterval time.Duration

	ListScrollSteps   int
	DetailScrollSteps int

	// ScreenshotDir receives the diagnostic captures taken on challenge
	// detection.
	ScreenshotDir string

	// GenericPaths are listing-root path segments; a post-search URL
	// whose path is one of these did not resolve to a specific location.
	GenericPaths []string
}

// DefaultGenericPaths cover the site's unscoped listing roots.
var DefaultGenericPaths = []string{"nha-dat-ban", "nha-dat-cho-thue", "ban-dat", "cho-thue-nha-dat"}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be > 0")
	}
	if c.MaxItemsPerPage <= 0 {
		return fmt.Errorf("max items per page must be > 0")
	}
	if c.ItemDelayMax < c.ItemDelayMin {
		return fmt.Errorf("item delay max must be >= min")
	}
	if c.PageConfirmAttempts <= 0 || c.PageConfirmInterval <= 0 {
		return fmt.Errorf("page confirmation polling must be bounded and positive")
	}
	return nil
}
