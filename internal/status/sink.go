// Package status exposes the crawl progress to external observers: a
// mutable sink the orchestrator writes at well-defined checkpoints, and an
// HTTP surface a front-end polls. The orchestrator is the sole writer;
// updates are whole-field replacements.
package status

import "sync"

// Snapshot is the polled view of a crawl run.
type Snapshot struct {
	Running          bool   `json:"running"`
	Progress         string `json:"progress"`
	CurrentURL       string `json:"current_url"`
	CurrentPage      int    `json:"current_page"`
	TotalItems       int    `json:"total_items"`
	LastError        string `json:"last_error,omitempty"`
	ResultsPartition string `json:"results_partition,omitempty"`
}

// Sink holds the live crawl status. Safe for concurrent polling.
type Sink struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewSink returns an idle sink.
func NewSink() *Sink {
	return &Sink{}
}

// Snapshot returns a copy of the current status.
func (s *Sink) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// SetRunning flips the running flag; starting a run clears the last error.
func (s *Sink) SetRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Running = running
	if running {
		s.snap.LastError = ""
	}
}

// SetProgress replaces the human-readable progress message.
func (s *Sink) SetProgress(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Progress = msg
}

// SetCurrentURL records the seed URL being processed.
func (s *Sink) SetCurrentURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.CurrentURL = url
}

// SetCurrentPage records the listing page being processed.
func (s *Sink) SetCurrentPage(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.CurrentPage = page
}

// SetTotalItems records the running collected-item total.
func (s *Sink) SetTotalItems(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.TotalItems = n
}

// SetLastError records the most recent seed-level failure.
func (s *Sink) SetLastError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.LastError = msg
}

// SetResultsPartition records the partition written by the run.
func (s *Sink) SetResultsPartition(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.ResultsPartition = path
}
