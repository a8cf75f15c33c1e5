package crawl

import (
	"context"

	"github.com/realpulse/bds-harvester/internal/listing"
)

// Card is the identity of one listing card on a list page. At least one of
// PID or Href is non-empty.
type Card struct {
	PID  string
	Href string
}

// Link is one candidate location link from the page chrome.
type Link struct {
	Text string
	Href string
}

// Session is the page-extractor boundary: everything the orchestrator needs
// from the browser. The orchestrator never assumes a rendering engine, only
// these capabilities, and drives the session strictly sequentially.
type Session interface {
	// Navigate loads url and blocks until the document is ready or the
	// context deadline passes.
	Navigate(ctx context.Context, url string) error
	// CurrentURL reports the navigated URL.
	CurrentURL(ctx context.Context) (string, error)
	// Scroll pages through the document to trigger lazy rendering.
	Scroll(ctx context.Context, steps int) error
	// ListingCards returns the identifiers of the cards on the current
	// list page, in page order.
	ListingCards(ctx context.Context) ([]Card, error)
	// ActivePage reports the page number highlighted in the pagination
	// chrome, false when no pagination is rendered.
	ActivePage(ctx context.Context) (int, bool)
	// PageLink returns the href of the pagination link for page n,
	// false when no such link exists.
	PageLink(ctx context.Context, n int) (string, bool)
	// SearchLocation submits text through the site's search control.
	SearchLocation(ctx context.Context, text string) error
	// LocationSuggestions lists the sidebar location links offered on the
	// current page.
	LocationSuggestions(ctx context.Context) ([]Link, error)
	// DetailFields extracts the detail-page fields of the current page.
	// Individual missing fields yield empty values, not errors.
	DetailFields(ctx context.Context) (listing.RawListing, error)
	// PageChallenge reports whether the current page is an
	// anti-automation challenge.
	PageChallenge(ctx context.Context) bool
	// CaptureScreenshot stores a diagnostic screenshot at path.
	CaptureScreenshot(ctx context.Context, path string) error
}
