package crawl

import (
	"net/url"
	"strings"

	"github.com/realpulse/bds-harvester/internal/textutil"
)

// Candidate scores below this threshold are rejected.
const locationScoreThreshold = 50

// scoreLocation rates how well a candidate location link matches the
// requested location text:
//
//	exact folded match        100
//	identical word set         95
//	n shared words, n >= 2     80 + 5*(n-2)
//	exactly one shared word    20
//	no shared words             0
func scoreLocation(requested, candidate string) int {
	reqFolded := textutil.Fold(requested)
	candFolded := textutil.Fold(candidate)
	if reqFolded == "" || candFolded == "" {
		return 0
	}
	if reqFolded == candFolded {
		return 100
	}
	reqWords := textutil.WordSet(reqFolded)
	candWords := textutil.WordSet(candFolded)
	if textutil.EqualWordSets(reqWords, candWords) {
		return 95
	}
	switch shared := textutil.SharedWords(reqWords, candWords); {
	case shared >= 2:
		return 80 + 5*(shared-2)
	case shared == 1:
		return 20
	default:
		return 0
	}
}

// bestLocationLink picks the highest-scoring candidate at or above the
// acceptance threshold. Earlier candidates win ties.
func bestLocationLink(requested string, links []Link) (Link, bool) {
	best := Link{}
	bestScore := 0
	for _, link := range links {
		if score := scoreLocation(requested, link.Text); score > bestScore {
			best, bestScore = link, score
		}
	}
	return best, bestScore >= locationScoreThreshold
}

// isGenericLocationURL reports whether the post-search URL failed to
// resolve to a specific location: its path is empty or one of the site's
// unscoped listing roots.
func isGenericLocationURL(raw string, genericPaths []string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return true
	}
	path := strings.Trim(parsed.Path, "/")
	if path == "" {
		return true
	}
	for _, generic := range genericPaths {
		if path == generic {
			return true
		}
	}
	return false
}
