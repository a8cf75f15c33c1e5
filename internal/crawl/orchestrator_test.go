package crawl

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/realpulse/bds-harvester/internal/listing"
	"github.com/realpulse/bds-harvester/internal/metrics"
	"github.com/realpulse/bds-harvester/internal/normalize"
	"github.com/realpulse/bds-harvester/internal/status"
	"github.com/realpulse/bds-harvester/internal/store"
	"github.com/realpulse/bds-harvester/internal/taxonomy"
)

// fakeSession is a scripted page graph: list pages keyed by URL, detail
// pages keyed by URL, and pagination links per list page. URLs in frozen
// keep reporting the previous address after navigation while their cards
// render, which is how the live site behaves during client-side page
// transitions.
type fakeSession struct {
	current     string
	pending     string
	pages       map[string][]Card
	pageLinks   map[string]map[int]string
	activePages map[string]int
	details     map[string]listing.RawListing
	challenged  map[string]bool
	suggestions []Link
	searchLands string
	frozen      map[string]bool

	navLog   []string
	searches []string
	shots    []string

	onNavigate func(url string)
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		pages:       map[string][]Card{},
		pageLinks:   map[string]map[int]string{},
		activePages: map[string]int{},
		details:     map[string]listing.RawListing{},
		challenged:  map[string]bool{},
		frozen:      map[string]bool{},
	}
}

func (f *fakeSession) Navigate(_ context.Context, url string) error {
	f.navLog = append(f.navLog, url)
	if f.onNavigate != nil {
		f.onNavigate(url)
	}
	if f.frozen[url] {
		f.pending = url
		return nil
	}
	f.current = url
	f.pending = ""
	return nil
}

func (f *fakeSession) CurrentURL(context.Context) (string, error) { return f.current, nil }

func (f *fakeSession) Scroll(context.Context, int) error { return nil }

// rendered is the page whose content is visible: the pending page once its
// cards have drawn, otherwise the navigated one.
func (f *fakeSession) rendered() string {
	if f.pending != "" {
		return f.pending
	}
	return f.current
}

func (f *fakeSession) ListingCards(context.Context) ([]Card, error) {
	return f.pages[f.rendered()], nil
}

func (f *fakeSession) ActivePage(context.Context) (int, bool) {
	n, ok := f.activePages[f.current]
	return n, ok
}

func (f *fakeSession) PageLink(_ context.Context, n int) (string, bool) {
	href, ok := f.pageLinks[f.current][n]
	return href, ok
}

func (f *fakeSession) SearchLocation(_ context.Context, text string) error {
	f.searches = append(f.searches, text)
	if f.searchLands != "" {
		f.current = f.searchLands
	}
	return nil
}

func (f *fakeSession) LocationSuggestions(context.Context) ([]Link, error) {
	return f.suggestions, nil
}

func (f *fakeSession) DetailFields(context.Context) (listing.RawListing, error) {
	return f.details[f.current], nil
}

func (f *fakeSession) PageChallenge(context.Context) bool { return f.challenged[f.current] }

func (f *fakeSession) CaptureScreenshot(_ context.Context, path string) error {
	f.shots = append(f.shots, path)
	return nil
}

type harness struct {
	orch    *Orchestrator
	session *fakeSession
	store   *store.Store
	sink    *status.Sink
	metrics *metrics.Set
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	st, err := store.Open(t.TempDir(), logger)
	require.NoError(t, err)
	session := newFakeSession()
	sink := status.NewSink()
	set := metrics.New(prometheus.NewRegistry())
	cfg := Config{
		MaxPages:            5,
		MaxItemsPerPage:     20,
		PageConfirmAttempts: 3,
		PageConfirmInterval: time.Millisecond,
		ListScrollSteps:     1,
		DetailScrollSteps:   1,
		ScreenshotDir:       t.TempDir(),
	}
	orch, err := New(cfg, session, normalize.New(taxonomy.New(nil)), st, sink, set, logger)
	require.NoError(t, err)
	return &harness{orch: orch, session: session, store: st, sink: sink, metrics: set}
}

// addListPage registers a list page and a detail page per card.
func (h *harness) addListPage(url string, pids ...string) []Card {
	cards := make([]Card, 0, len(pids))
	for _, pid := range pids {
		href := "https://batdongsan.com.vn/listing/" + pid
		cards = append(cards, Card{PID: pid, Href: href})
		h.session.details[href] = listing.RawListing{
			Title:    "Bán nhà " + pid,
			Price:    "6,3 tỷ",
			Area:     "100 m²",
			Location: "Đống Đa, Hà Nội",
		}
	}
	h.session.pages[url] = cards
	return cards
}

func readPartitionRecords(t *testing.T, path string) []listing.CanonicalRecord {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var env listing.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env.Records
}

func partitionPIDs(t *testing.T, path string) []string {
	t.Helper()
	var pids []string
	for _, rec := range readPartitionRecords(t, path) {
		pid, ok := rec.OtherInfo.Get("pid")
		require.True(t, ok)
		pids = append(pids, pid)
	}
	return pids
}

func TestRunSinglePageWithFilters(t *testing.T) {
	h := newHarness(t)
	seed := "https://batdongsan.com.vn/nha-dat-ban"
	located := "https://batdongsan.com.vn/ban-nha-rieng-quan-dong-da"
	filtered := located + "?gtn=2000000000"
	h.session.searchLands = located
	h.addListPage(filtered, "111", "222")

	res, err := h.orch.Run(context.Background(), []string{seed}, &listing.FilterSpec{
		Location:  "Đống Đa",
		PriceFrom: "2000000000",
		MaxPages:  1,
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.TotalItems)
	require.Equal(t, []string{"Đống Đa"}, h.session.searches)

	// The price floor travels as a query parameter on the located URL.
	require.Contains(t, h.session.navLog, filtered)

	// One listing-page pass only, even though the config allows five.
	require.Equal(t, float64(1), testutil.ToFloat64(h.metrics.PagesProcessed))
	require.Equal(t, float64(2), testutil.ToFloat64(h.metrics.ItemsCollected))

	require.Equal(t, []string{"111", "222"}, partitionPIDs(t, res.PartitionPath))
	recs := readPartitionRecords(t, res.PartitionPath)
	require.NotNil(t, recs[0].Price)
	require.InDelta(t, 6.3e9, *recs[0].Price, 1)
}

func TestRunSkipsPreviouslyCollectedCards(t *testing.T) {
	h := newHarness(t)

	var seen listing.CanonicalRecord
	seen.OtherInfo.Set("pid", "111")
	seen.OtherInfo.Set("href", "https://batdongsan.com.vn/listing/111")
	_, _, err := h.store.MergeAndSave([]listing.CanonicalRecord{seen}, time.Now().AddDate(0, 0, -3))
	require.NoError(t, err)

	page := "https://batdongsan.com.vn/ban-nha-rieng-quan-dong-da"
	h.addListPage(page, "111", "222")

	res, err := h.orch.Run(context.Background(), []string{page}, &listing.FilterSpec{MaxPages: 1})
	require.NoError(t, err)
	require.Equal(t, 1, res.TotalItems)
	require.Equal(t, []string{"222"}, partitionPIDs(t, res.PartitionPath))
	require.Equal(t, float64(1), testutil.ToFloat64(h.metrics.DuplicatesSkipped))
	require.NotContains(t, h.session.navLog, "https://batdongsan.com.vn/listing/111")
}

func TestRunFlushesCollectedPagesOnInterrupt(t *testing.T) {
	h := newHarness(t)
	p1 := "https://batdongsan.com.vn/nha-dat-ban-ha-noi"
	p2 := p1 + "/p2"
	p3 := p1 + "/p3"
	h.addListPage(p1, "101", "102")
	h.addListPage(p2, "201", "202")
	h.addListPage(p3, "301")
	h.session.activePages[p1] = 1
	h.session.activePages[p2] = 2
	h.session.pageLinks[p1] = map[int]string{2: p2}
	h.session.pageLinks[p2] = map[int]string{3: p3}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.session.onNavigate = func(url string) {
		if url == p3 {
			cancel()
		}
	}

	res, err := h.orch.Run(ctx, []string{p1}, nil)
	require.NoError(t, err)
	require.Equal(t, 4, res.TotalItems)
	require.ElementsMatch(t, []string{"101", "102", "201", "202"}, partitionPIDs(t, res.PartitionPath))
}

func TestRunChallengeOnDetailIsRecoverable(t *testing.T) {
	h := newHarness(t)
	page := "https://batdongsan.com.vn/ban-nha-rieng-quan-dong-da"
	h.addListPage(page, "111", "222")
	h.session.challenged["https://batdongsan.com.vn/listing/111"] = true

	res, err := h.orch.Run(context.Background(), []string{page}, &listing.FilterSpec{MaxPages: 1})
	require.NoError(t, err)
	require.Equal(t, []string{"222"}, partitionPIDs(t, res.PartitionPath))
	require.Equal(t, float64(1), testutil.ToFloat64(h.metrics.ChallengesDetected))
	require.Len(t, h.session.shots, 1)
	require.Contains(t, h.session.shots[0], "111")
	require.True(t, strings.HasPrefix(h.session.shots[0], h.orch.cfg.ScreenshotDir))
	// A challenge is not an item failure.
	require.Equal(t, float64(0), testutil.ToFloat64(h.metrics.ItemFailures))
}

func TestRunResolvesLocationFromSidebarLinks(t *testing.T) {
	h := newHarness(t)
	seed := "https://batdongsan.com.vn/nha-dat-ban"
	located := "https://batdongsan.com.vn/ban-nha-rieng-quan-dong-da"
	// The search lands on a generic listing root, so the sidebar links
	// decide the location.
	h.session.searchLands = seed
	h.session.suggestions = []Link{
		{Text: "Bán nhà Hồ Chí Minh", Href: "https://batdongsan.com.vn/ban-nha-rieng-tp-hcm"},
		{Text: "Quận Đống Đa", Href: located},
	}
	h.addListPage(located, "111")

	res, err := h.orch.Run(context.Background(), []string{seed}, &listing.FilterSpec{
		Location: "Đống Đa",
		MaxPages: 1,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"111"}, partitionPIDs(t, res.PartitionPath))
	require.Contains(t, h.session.navLog, located)
}

func TestRunAbandonsSeedOnUnresolvableLocation(t *testing.T) {
	h := newHarness(t)
	seed := "https://batdongsan.com.vn/nha-dat-ban"
	h.session.searchLands = seed
	h.session.suggestions = []Link{
		{Text: "Bán căn hộ chung cư", Href: "https://batdongsan.com.vn/ban-can-ho-chung-cu"},
	}

	res, err := h.orch.Run(context.Background(), []string{seed}, &listing.FilterSpec{
		Location: "Đống Đa",
		MaxPages: 1,
	})
	require.NoError(t, err)
	require.Equal(t, 0, res.TotalItems)
	require.Contains(t, h.sink.Snapshot().LastError, "did not resolve")
}

func TestRunDateWindowDropsStaleItems(t *testing.T) {
	h := newHarness(t)
	page := "https://batdongsan.com.vn/ban-nha-rieng-quan-dong-da"
	cards := h.addListPage(page, "111", "222", "333")
	h.session.details[cards[0].Href] = listing.RawListing{Title: "inside", PostedDate: "2026-08-10"}
	h.session.details[cards[1].Href] = listing.RawListing{Title: "before window", PostedDate: "2026-07-01"}
	h.session.details[cards[2].Href] = listing.RawListing{Title: "expired early", PostedDate: "2026-08-12", ExpiredDate: "2026-07-20"}

	res, err := h.orch.Run(context.Background(), []string{page}, &listing.FilterSpec{
		PostedFrom: "2026-08-01",
		PostedTo:   "2026-08-31",
		MaxPages:   1,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"111"}, partitionPIDs(t, res.PartitionPath))
}

func TestAdvancePageConfirmsOnCardIdentityChange(t *testing.T) {
	h := newHarness(t)
	p1 := "https://batdongsan.com.vn/nha-dat-ban-ha-noi"
	p2 := p1 + "/p2"
	h.addListPage(p1, "101", "102")
	h.addListPage(p2, "201", "202")
	h.session.current = p1
	h.session.activePages[p1] = 1
	h.session.pageLinks[p1] = map[int]string{2: p2}
	// The address bar never updates, only the rendered cards do.
	h.session.frozen[p2] = true

	require.True(t, h.orch.advancePage(context.Background(), p1, "101"))
	require.Equal(t, p1, h.session.current)
}

func TestAdvancePageGivesUpWhenNothingChanges(t *testing.T) {
	h := newHarness(t)
	p1 := "https://batdongsan.com.vn/nha-dat-ban-ha-noi"
	p2 := p1 + "/p2"
	h.addListPage(p1, "101", "102")
	// The "next" page renders the same cards and the URL stays put.
	h.session.pages[p2] = h.session.pages[p1]
	h.session.current = p1
	h.session.activePages[p1] = 1
	h.session.pageLinks[p1] = map[int]string{2: p2}
	h.session.frozen[p2] = true

	require.False(t, h.orch.advancePage(context.Background(), p1, "101"))
}

func TestAdvancePageAbsentLinkIsNaturalEnd(t *testing.T) {
	h := newHarness(t)
	p1 := "https://batdongsan.com.vn/nha-dat-ban-ha-noi"
	h.addListPage(p1, "101")
	h.session.current = p1
	h.session.activePages[p1] = 1

	require.False(t, h.orch.advancePage(context.Background(), p1, "101"))
	require.Empty(t, h.session.navLog)
}

func TestDateWindowAccepts(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		posted  string
		expired string
		want    bool
	}{
		{"inside window", "2026-08-15", "2026-11-15", true},
		{"posted before window", "2026-07-31", "", false},
		{"posted after window", "2026-09-01", "", false},
		{"expired before window start", "2026-08-15", "2026-07-20", false},
		{"expiration inside window", "2026-08-02", "2026-08-20", true},
		{"malformed dates pass", "hôm qua", "n/a", true},
		{"absent dates pass", "", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := listing.RawListing{PostedDate: tc.posted, ExpiredDate: tc.expired}
			require.Equal(t, tc.want, dateWindowAccepts(raw, from, to))
		})
	}
}

func TestRunRequiresSeeds(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.Run(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		MaxPages:            1,
		MaxItemsPerPage:     1,
		PageConfirmAttempts: 1,
		PageConfirmInterval: time.Millisecond,
	}
	require.NoError(t, valid.Validate())

	broken := valid
	broken.MaxPages = 0
	require.Error(t, broken.Validate())

	broken = valid
	broken.ItemDelayMin = 2 * time.Second
	broken.ItemDelayMax = time.Second
	require.Error(t, broken.Validate())

	broken = valid
	broken.PageConfirmAttempts = 0
	require.Error(t, broken.Validate())
}
