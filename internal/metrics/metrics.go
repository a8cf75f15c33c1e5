// Package metrics defines the Prometheus collectors tracked during a crawl.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Set bundles the crawl collectors registered on one registry.
type Set struct {
	PagesProcessed     prometheus.Counter
	ItemsCollected     prometheus.Counter
	DuplicatesSkipped  prometheus.Counter
	ChallengesDetected prometheus.Counter
	ItemFailures       prometheus.Counter
	RunInProgress      prometheus.Gauge
}

// New creates the crawl collectors and registers them on reg.
func New(reg prometheus.Registerer) *Set {
	s := &Set{
		PagesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvester_pages_processed_total",
			Help: "Listing pages fully processed.",
		}),
		ItemsCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvester_items_collected_total",
			Help: "Listing items collected and normalized.",
		}),
		DuplicatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvester_duplicates_skipped_total",
			Help: "Listing cards skipped because their key was already seen.",
		}),
		ChallengesDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvester_challenges_detected_total",
			Help: "Detail pages abandoned due to an anti-automation challenge.",
		}),
		ItemFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvester_item_failures_total",
			Help: "Items skipped after a detail extraction failure.",
		}),
		RunInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "harvester_run_in_progress",
			Help: "1 while a crawl run is active.",
		}),
	}
	reg.MustRegister(
		s.PagesProcessed,
		s.ItemsCollected,
		s.DuplicatesSkipped,
		s.ChallengesDetected,
		s.ItemFailures,
		s.RunInProgress,
	)
	return s
}
