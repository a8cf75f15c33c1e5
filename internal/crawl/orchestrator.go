// Package crawl drives the resumable crawl: the pagination state machine,
// cross-run deduplication, pacing and recovery policy, and interrupt-safe
// persistence. It owns the single browser session and issues one navigation
// or extraction at a time.
package crawl

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/realpulse/bds-harvester/internal/listing"
	"github.com/realpulse/bds-harvester/internal/metrics"
	"github.com/realpulse/bds-harvester/internal/normalize"
	"github.com/realpulse/bds-harvester/internal/status"
	"github.com/realpulse/bds-harvester/internal/store"
	"github.com/realpulse/bds-harvester/internal/textutil"
)

// Orchestrator runs crawl sessions over one browser session.
type Orchestrator struct {
	cfg      Config
	session  Session
	pipeline *normalize.Pipeline
	store    *store.Store
	sink     *status.Sink
	metrics  *metrics.Set
	logger   *zap.Logger
	rng      *rand.Rand
	now      func() time.Time
}

// New validates cfg and wires an orchestrator.
func New(cfg Config, session Session, pipeline *normalize.Pipeline, st *store.Store,
	sink *status.Sink, set *metrics.Set, logger *zap.Logger) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("crawl config: %w", err)
	}
	if len(cfg.GenericPaths) == 0 {
		cfg.GenericPaths = DefaultGenericPaths
	}
	return &Orchestrator{
		cfg:      cfg,
		session:  session,
		pipeline: pipeline,
		store:    st,
		sink:     sink,
		metrics:  set,
		logger:   logger,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}, nil
}

// Result reports what a run persisted, regardless of how it ended.
type Result struct {
	TotalItems    int
	PartitionPath string
}

// runState is the crawl state for one run: the reconstructed dedup sets and
// the accumulated records of the active partition.
type runState struct {
	history *store.History
	records []listing.CanonicalRecord
	day     time.Time
}

func (s *runState) append(rec listing.CanonicalRecord, pid, href string) {
	s.records = append(s.records, rec)
	s.history.Observe(pid, href)
}

// Run crawls every seed URL sequentially and returns whatever was
// persisted. Cancellation is observed between loop iterations: an interrupt
// flushes the current state and returns normally. A failure on one seed is
// recorded on the status sink and the run proceeds to the next seed.
func (o *Orchestrator) Run(ctx context.Context, seeds []string, filter *listing.FilterSpec) (Result, error) {
	if len(seeds) == 0 {
		return Result{}, fmt.Errorf("at least one seed URL is required")
	}

	day := o.now()
	history, err := o.store.LoadHistory(day)
	if err != nil {
		return Result{}, fmt.Errorf("load history: %w", err)
	}
	o.logger.Info("history reconstructed",
		zap.Int("pids", len(history.PIDs)),
		zap.Int("hrefs", len(history.Hrefs)),
		zap.Int("resumed_records", len(history.Records)))
	state := &runState{history: history, records: history.Records, day: day}

	o.metrics.RunInProgress.Set(1)
	defer o.metrics.RunInProgress.Set(0)

	for i, seed := range seeds {
		if ctx.Err() != nil {
			o.logger.Info("run interrupted, flushing collected results")
			break
		}
		o.sink.SetCurrentURL(seed)
		o.sink.SetProgress(fmt.Sprintf("URL %d/%d: %s", i+1, len(seeds), seed))

		if err := o.crawlSeed(ctx, seed, filter, state); err != nil {
			if ctx.Err() != nil {
				o.logger.Info("run interrupted, flushing collected results")
				break
			}
			o.logger.Error("seed failed, continuing with next", zap.String("url", seed), zap.Error(err))
			o.sink.SetLastError(err.Error())
			continue
		}

		if i < len(seeds)-1 && !pause(ctx, o.cfg.PageCooldown) {
			break
		}
	}

	path, n, err := o.store.MergeAndSave(state.records, day)
	if err != nil {
		return Result{}, fmt.Errorf("flush results: %w", err)
	}
	o.sink.SetTotalItems(n)
	o.sink.SetResultsPartition(path)
	return Result{TotalItems: n, PartitionPath: path}, nil
}

func (o *Orchestrator) crawlSeed(ctx context.Context, seed string, filter *listing.FilterSpec, state *runState) error {
	if err := o.session.Navigate(ctx, seed); err != nil {
		return fmt.Errorf("open seed: %w", err)
	}
	o.pace(ctx)

	if filter != nil {
		target, err := o.applyLocationFilter(ctx, filter)
		if err != nil {
			return err
		}
		if target == "" {
			target = seed
		}
		withQuery, err := filter.ApplyToURL(target)
		if err != nil {
			return fmt.Errorf("apply query filters: %w", err)
		}
		if withQuery != target {
			if err := o.session.Navigate(ctx, withQuery); err != nil {
				return fmt.Errorf("open filtered url: %w", err)
			}
			o.pace(ctx)
		}
	}

	maxPages, maxItems := o.limits(filter)
	for page := 1; page <= maxPages; page++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.sink.SetCurrentPage(page)

		listURL, err := o.session.CurrentURL(ctx)
		if err != nil {
			return fmt.Errorf("read list url: %w", err)
		}
		if err := o.session.Scroll(ctx, o.cfg.ListScrollSteps); err != nil {
			o.logger.Debug("list scroll failed", zap.Error(err))
		}
		cards, err := o.session.ListingCards(ctx)
		if err != nil {
			return fmt.Errorf("scan listing cards: %w", err)
		}

		fresh := o.freshCards(cards, state)
		if len(fresh) > maxItems {
			fresh = fresh[:maxItems]
		}

		if len(fresh) == 0 {
			o.logger.Info("no new items on page",
				zap.Int("page", page), zap.Int("cards", len(cards)))
			if page >= maxPages {
				return nil
			}
			if !o.advancePage(ctx, listURL, firstPID(cards)) {
				return nil
			}
			continue
		}
		o.logger.Info("collected new cards", zap.Int("page", page), zap.Int("count", len(fresh)))

		for i, card := range fresh {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.sink.SetProgress(fmt.Sprintf("page %d/%d, item %d/%d", page, maxPages, i+1, len(fresh)))
			o.processItem(ctx, card, listURL, filter, state)
		}

		path, n, err := o.store.MergeAndSave(state.records, state.day)
		if err != nil {
			return fmt.Errorf("persist page: %w", err)
		}
		o.sink.SetTotalItems(n)
		o.sink.SetResultsPartition(path)
		o.metrics.PagesProcessed.Inc()

		if page >= maxPages {
			return nil
		}
		o.sink.SetProgress(fmt.Sprintf("saved %d items, cooling down", n))
		if !pause(ctx, o.cfg.PageCooldown) {
			return ctx.Err()
		}
		if !o.advancePage(ctx, listURL, firstPID(cards)) {
			return nil
		}
	}
	return nil
}

// processItem opens one detail page and appends the normalized record.
// Item-level failures are logged and skipped, never fatal to the page; a
// bot-challenge is a recoverable condition, not a fault.
func (o *Orchestrator) processItem(ctx context.Context, card Card, listURL string, filter *listing.FilterSpec, state *runState) {
	o.pace(ctx)
	if err := o.session.Navigate(ctx, card.Href); err != nil {
		o.logger.Warn("detail navigation failed, skipping item",
			zap.String("pid", card.PID), zap.Error(err))
		o.metrics.ItemFailures.Inc()
		o.returnToList(ctx, listURL)
		return
	}

	if o.session.PageChallenge(ctx) {
		o.metrics.ChallengesDetected.Inc()
		shot := filepath.Join(o.cfg.ScreenshotDir, fmt.Sprintf("challenge_detail_%s.png", cardKey(card)))
		if err := o.session.CaptureScreenshot(ctx, shot); err != nil {
			o.logger.Debug("screenshot capture failed", zap.Error(err))
		}
		o.logger.Warn("challenge detected, abandoning item",
			zap.String("pid", card.PID), zap.String("href", card.Href))
		o.returnToList(ctx, listURL)
		return
	}

	if err := o.session.Scroll(ctx, o.cfg.DetailScrollSteps); err != nil {
		o.logger.Debug("detail scroll failed", zap.Error(err))
	}
	raw, err := o.session.DetailFields(ctx)
	if err != nil {
		o.logger.Warn("detail extraction failed, skipping item",
			zap.String("pid", card.PID), zap.Error(err))
		o.metrics.ItemFailures.Inc()
		o.returnToList(ctx, listURL)
		return
	}
	if raw.PID == "" {
		raw.PID = card.PID
	}
	if raw.Href == "" {
		raw.Href = card.Href
	}

	if filter != nil && filter.HasDateWindow() {
		from, to := filter.DateWindow()
		if !dateWindowAccepts(raw, from, to) {
			o.logger.Debug("item outside requested date window", zap.String("pid", raw.PID))
			o.returnToList(ctx, listURL)
			return
		}
	}

	state.append(o.pipeline.Normalize(raw), raw.PID, raw.Href)
	o.metrics.ItemsCollected.Inc()
	o.returnToList(ctx, listURL)
}

// advancePage follows the pagination link for the page after the currently
// active one and confirms the transition: within a bounded number of short
// polls either the URL must differ or the first card identity must change.
// An absent link is natural termination, not an error.
func (o *Orchestrator) advancePage(ctx context.Context, prevURL, prevFirstPID string) bool {
	active, ok := o.session.ActivePage(ctx)
	if !ok {
		active = 1
	}
	href, ok := o.session.PageLink(ctx, active+1)
	if !ok {
		o.logger.Info("no further pages", zap.Int("after", active))
		return false
	}
	if err := o.session.Navigate(ctx, href); err != nil {
		o.logger.Warn("pagination navigation failed", zap.Error(err))
		return false
	}

	confirmed := pollUntil(ctx, o.cfg.PageConfirmInterval, o.cfg.PageConfirmAttempts, func() bool {
		if current, err := o.session.CurrentURL(ctx); err == nil && current != prevURL {
			return true
		}
		if prevFirstPID == "" {
			return false
		}
		cards, err := o.session.ListingCards(ctx)
		return err == nil && len(cards) > 0 && cards[0].PID != "" && cards[0].PID != prevFirstPID
	})
	if !confirmed {
		o.logger.Info("page transition not confirmed, ending seed")
	}
	return confirmed
}

// applyLocationFilter submits the location text through the site search and
// verifies the resulting URL is location-specific, falling back to scoring
// the sidebar location links. An unresolvable location abandons the seed.
func (o *Orchestrator) applyLocationFilter(ctx context.Context, filter *listing.FilterSpec) (string, error) {
	location := strings.TrimSpace(filter.Location)
	if location == "" {
		return "", nil
	}

	if err := o.session.SearchLocation(ctx, location); err != nil {
		return "", fmt.Errorf("location search: %w", err)
	}
	o.pace(ctx)

	current, err := o.session.CurrentURL(ctx)
	if err != nil {
		return "", fmt.Errorf("read post-search url: %w", err)
	}
	if !isGenericLocationURL(current, o.cfg.GenericPaths) {
		o.logger.Info("location resolved by search", zap.String("url", current))
		return current, nil
	}

	links, err := o.session.LocationSuggestions(ctx)
	if err != nil {
		return "", fmt.Errorf("scan location links: %w", err)
	}
	best, ok := bestLocationLink(location, links)
	if !ok {
		return "", fmt.Errorf("location %q did not resolve to a specific listing page", location)
	}
	o.logger.Info("location resolved from sidebar links",
		zap.String("requested", location), zap.String("picked", best.Text))
	if err := o.session.Navigate(ctx, best.Href); err != nil {
		return "", fmt.Errorf("open location link: %w", err)
	}
	o.pace(ctx)
	return best.Href, nil
}

// freshCards drops cards whose key was already collected. Cards without an
// href cannot be opened and are skipped outright.
func (o *Orchestrator) freshCards(cards []Card, state *runState) []Card {
	fresh := make([]Card, 0, len(cards))
	for _, card := range cards {
		if card.Href == "" {
			continue
		}
		if card.PID != "" && state.history.SeenPID(card.PID) {
			o.metrics.DuplicatesSkipped.Inc()
			continue
		}
		if card.PID == "" && state.history.SeenHref(card.Href) {
			o.metrics.DuplicatesSkipped.Inc()
			continue
		}
		fresh = append(fresh, card)
	}
	return fresh
}

// dateWindowAccepts applies the posted-date window: an item is dropped when
// its posted date falls outside the window or its expiration date precedes
// the window start. Malformed or absent dates pass.
func dateWindowAccepts(raw listing.RawListing, from, to time.Time) bool {
	if posted, ok := textutil.ParseDate(raw.PostedDate); ok {
		if posted.Before(from) || posted.After(to) {
			return false
		}
	}
	if expired, ok := textutil.ParseDate(raw.ExpiredDate); ok {
		if expired.Before(from) {
			return false
		}
	}
	return true
}

func (o *Orchestrator) returnToList(ctx context.Context, listURL string) {
	if err := o.session.Navigate(ctx, listURL); err != nil {
		o.logger.Warn("return to list page failed", zap.Error(err))
	}
	o.pace(ctx)
}

func (o *Orchestrator) pace(ctx context.Context) {
	humanPause(ctx, o.rng, o.cfg.ItemDelayMin, o.cfg.ItemDelayMax)
}

func (o *Orchestrator) limits(filter *listing.FilterSpec) (maxPages, maxItems int) {
	maxPages, maxItems = o.cfg.MaxPages, o.cfg.MaxItemsPerPage
	if filter == nil {
		return maxPages, maxItems
	}
	if filter.MaxPages > 0 {
		maxPages = filter.MaxPages
	}
	if filter.MaxItemsPerPage > 0 {
		maxItems = filter.MaxItemsPerPage
	}
	return maxPages, maxItems
}

func firstPID(cards []Card) string {
	if len(cards) == 0 {
		return ""
	}
	return cards[0].PID
}

func cardKey(card Card) string {
	if card.PID != "" {
		return card.PID
	}
	return textutil.Slugify(card.Href)
}
