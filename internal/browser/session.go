// Package browser implements the crawl session against a real Chrome
// instance driven over the DevTools protocol. It either attaches to an
// already-running browser through its debugger address, which keeps the
// logged-in profile and its cookies, or launches its own headless instance.
package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/realpulse/bds-harvester/internal/crawl"
	"github.com/realpulse/bds-harvester/internal/listing"
)

const (
	listingCardSelector = "#product-lists-web a.js__product-link-for-product-id"
	activePageSelector  = ".re__pagination-number.re__actived"
	searchInputSelector = "#SuggestionSearch"
	searchButtonSelect  = "#btnSearch"
	sidebarLinkSelector = ".re__sidebar a[href]"
)

// Config controls how the browser session is established.
type Config struct {
	// DebuggerAddress attaches to a running Chrome ("host:port"). Empty
	// means launch a dedicated instance.
	DebuggerAddress string
	Headless        bool
	UserAgent       string

	NavigationTimeout time.Duration
	ActionTimeout     time.Duration
}

func (c *Config) applyDefaults() {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 45 * time.Second
	}
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = 15 * time.Second
	}
}

// Session drives one Chrome tab. It implements crawl.Session and is driven
// strictly sequentially by the orchestrator.
type Session struct {
	cfg    Config
	logger *zap.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewSession connects to Chrome and opens the tab used for the whole crawl.
func NewSession(cfg Config, logger *zap.Logger) (*Session, error) {
	cfg.applyDefaults()

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if cfg.DebuggerAddress != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(),
			fmt.Sprintf("http://%s", cfg.DebuggerAddress))
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", cfg.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("hide-scrollbars", true),
			chromedp.Flag("enable-automation", false),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
		)
		if cfg.UserAgent != "" {
			opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Sugar().Debugf))

	s := &Session{
		cfg:           cfg,
		logger:        logger,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}
	// Force the tab open now so a bad debugger address fails fast, and
	// apply the network overrides on the tab itself: allocator flags do
	// not reach a browser we attached to.
	if err := chromedp.Run(browserCtx, s.setupAction()); err != nil {
		s.Close()
		return nil, fmt.Errorf("open browser session: %w", err)
	}
	return s, nil
}

func (s *Session) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if s.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(s.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

// Close tears down the tab and, when this session launched the browser, the
// browser itself.
func (s *Session) Close() {
	s.browserCancel()
	s.allocCancel()
}

// run executes actions on the session tab, bounded by timeout and by the
// caller's context.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	taskCtx, cancel := context.WithTimeout(s.browserCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	err := s.run(ctx, s.cfg.NavigationTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return url, nil
}

// Scroll steps down the page to trigger lazy rendering of cards and media.
func (s *Session) Scroll(ctx context.Context, steps int) error {
	actions := []chromedp.Action{
		chromedp.Evaluate(`window.scrollTo(0, 0);`, nil),
	}
	for i := 0; i < steps; i++ {
		actions = append(actions,
			chromedp.Evaluate(`window.scrollBy(0, 1200);`, nil),
			chromedp.Sleep(300*time.Millisecond),
		)
	}
	return s.run(ctx, s.cfg.NavigationTimeout, actions...)
}

type cardDTO struct {
	PID  string `json:"pid"`
	Href string `json:"href"`
}

func (s *Session) ListingCards(ctx context.Context) ([]crawl.Card, error) {
	var dtos []cardDTO
	script := fmt.Sprintf(`Array.from(document.querySelectorAll(%q))
		.map(a => ({pid: a.getAttribute("data-product-id") || "", href: a.href || ""}))`,
		listingCardSelector)
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Evaluate(script, &dtos)); err != nil {
		return nil, fmt.Errorf("scan listing cards: %w", err)
	}
	cards := make([]crawl.Card, 0, len(dtos))
	for _, dto := range dtos {
		cards = append(cards, crawl.Card{PID: dto.PID, Href: dto.Href})
	}
	return cards, nil
}

// ActivePage reads the highlighted pagination number. The site stores the
// page number in a pid attribute on the pagination links.
func (s *Session) ActivePage(ctx context.Context) (int, bool) {
	var raw string
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		return el ? (el.getAttribute("pid") || "") : "";
	})()`, activePageSelector)
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Evaluate(script, &raw)); err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func (s *Session) PageLink(ctx context.Context, n int) (string, bool) {
	var href string
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector('a.re__pagination-number[pid="%d"]');
		return el ? (el.href || "") : "";
	})()`, n)
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Evaluate(script, &href)); err != nil {
		return "", false
	}
	return href, href != ""
}

// SearchLocation types the location into the site search box and submits it.
func (s *Session) SearchLocation(ctx context.Context, text string) error {
	err := s.run(ctx, s.cfg.NavigationTimeout,
		chromedp.WaitVisible(searchInputSelector, chromedp.ByQuery),
		chromedp.Clear(searchInputSelector, chromedp.ByQuery),
		chromedp.SendKeys(searchInputSelector, text, chromedp.ByQuery),
		chromedp.Sleep(time.Second),
		chromedp.Click(searchButtonSelect, chromedp.ByQuery),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("submit location search: %w", err)
	}
	return nil
}

type linkDTO struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

func (s *Session) LocationSuggestions(ctx context.Context) ([]crawl.Link, error) {
	var dtos []linkDTO
	script := fmt.Sprintf(`Array.from(document.querySelectorAll(%q))
		.map(a => ({text: (a.innerText || "").trim(), href: a.href || ""}))
		.filter(l => l.text && l.href)`, sidebarLinkSelector)
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Evaluate(script, &dtos)); err != nil {
		return nil, fmt.Errorf("scan location links: %w", err)
	}
	links := make([]crawl.Link, 0, len(dtos))
	for _, dto := range dtos {
		links = append(links, crawl.Link{Text: dto.Text, Href: dto.Href})
	}
	return links, nil
}

// DetailFields captures the rendered document and parses it offline. Missing
// fields stay empty, matching the best-effort extraction contract.
func (s *Session) DetailFields(ctx context.Context) (listing.RawListing, error) {
	var html, url string
	err := s.run(ctx, s.cfg.NavigationTimeout,
		chromedp.Location(&url),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return listing.RawListing{}, fmt.Errorf("capture detail page: %w", err)
	}
	return parseDetail(html, url)
}

// PageChallenge checks the URL and the leading page content for the site's
// challenge marker.
func (s *Session) PageChallenge(ctx context.Context) bool {
	var url, head string
	err := s.run(ctx, s.cfg.ActionTimeout,
		chromedp.Location(&url),
		chromedp.Evaluate(`document.documentElement.outerHTML.slice(0, 3000)`, &head),
	)
	if err != nil {
		s.logger.Debug("challenge probe failed", zap.Error(err))
		return false
	}
	return strings.Contains(strings.ToLower(url), "captcha") ||
		strings.Contains(strings.ToLower(head), "captcha")
}

func (s *Session) CaptureScreenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("capture screenshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("screenshot dir: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write screenshot: %w", err)
	}
	return nil
}
