// Package store persists canonical records into dated partition files: one
// JSON file per calendar day, grouped into year-month folders. It also
// reconstructs the cross-run dedup state by scanning every partition at or
// before a given day.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/realpulse/bds-harvester/internal/listing"
)

const (
	monthLayout = "2006-01"
	dayLayout   = "2006-01-02"
)

// Store reads and writes the partition tree under a single root directory.
type Store struct {
	root   string
	logger *zap.Logger
}

// Open prepares a store rooted at root, creating the directory when absent.
func Open(root string, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("output root is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create output root: %w", err)
	}
	return &Store{root: root, logger: logger}, nil
}

// PartitionPath returns the partition file for day.
func (s *Store) PartitionPath(day time.Time) string {
	return filepath.Join(s.root, day.Format(monthLayout), day.Format(dayLayout)+".json")
}

// History is the dedup state reconstructed from disk: every key seen in any
// partition at or before the cut-off day, plus the cut-off day's own records
// so an interrupted run resumes instead of overwriting.
type History struct {
	PIDs    map[string]struct{}
	Hrefs   map[string]struct{}
	Records []listing.CanonicalRecord
	Seen    int
}

// SeenPID reports whether pid was already collected.
func (h *History) SeenPID(pid string) bool {
	_, ok := h.PIDs[pid]
	return ok
}

// SeenHref reports whether href was already collected.
func (h *History) SeenHref(href string) bool {
	_, ok := h.Hrefs[href]
	return ok
}

// Observe records both keys of one collected item.
func (h *History) Observe(pid, href string) {
	if pid != "" {
		h.PIDs[pid] = struct{}{}
	}
	if href != "" {
		h.Hrefs[href] = struct{}{}
	}
}

// LoadHistory scans the partition tree and rebuilds the History as of the
// given day. Partitions dated after asOf are ignored; unreadable or
// unexpected-shape files are skipped with a diagnostic, never fatal.
func (s *Store) LoadHistory(asOf time.Time) (*History, error) {
	history := &History{
		PIDs:  make(map[string]struct{}),
		Hrefs: make(map[string]struct{}),
	}

	months, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return history, nil
		}
		return nil, fmt.Errorf("read output root: %w", err)
	}

	cutoff := asOf.Format(dayLayout)
	for _, month := range sortedDirs(months) {
		files, err := os.ReadDir(filepath.Join(s.root, month))
		if err != nil {
			s.logger.Warn("skipping unreadable month folder", zap.String("month", month), zap.Error(err))
			continue
		}
		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
				continue
			}
			day, ok := partitionDay(file.Name())
			if !ok || day > cutoff {
				continue
			}
			path := filepath.Join(s.root, month, file.Name())
			raws, err := readPartition(path)
			if err != nil {
				s.logger.Warn("skipping malformed partition", zap.String("path", path), zap.Error(err))
				continue
			}
			s.absorb(history, raws, day == cutoff)
		}
	}
	return history, nil
}

func (s *Store) absorb(history *History, raws []json.RawMessage, isCurrentDay bool) {
	for _, raw := range raws {
		pid, href := probeKeys(raw)
		history.Observe(pid, href)
		history.Seen++
		if !isCurrentDay {
			continue
		}
		var rec listing.CanonicalRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		// Legacy-shape records carry their keys at the top level; restore
		// them into the traceability bag so merging keeps deduplicating.
		if rec.Key() == "" {
			if pid != "" {
				rec.OtherInfo.Set("pid", pid)
			}
			if href != "" {
				rec.OtherInfo.Set("href", href)
			}
		}
		history.Records = append(history.Records, rec)
	}
}

// MergeAndSave deduplicates records by key and atomically rewrites the
// partition for day. The key is pid, falling back to href, falling back to
// a synthetic per-record key so keyless records never overwrite each other.
// Later records win; first-seen order is preserved. Re-running with the
// same record set produces byte-identical output.
func (s *Store) MergeAndSave(records []listing.CanonicalRecord, day time.Time) (string, int, error) {
	index := make(map[string]int, len(records))
	unique := make([]listing.CanonicalRecord, 0, len(records))
	for _, rec := range records {
		key := rec.Key()
		if key == "" {
			key = "tmp-" + uuid.NewString()
		}
		if at, ok := index[key]; ok {
			unique[at] = rec
			continue
		}
		index[key] = len(unique)
		unique = append(unique, rec)
	}

	path := s.PartitionPath(day)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", 0, fmt.Errorf("create partition folder: %w", err)
	}

	data, err := json.MarshalIndent(listing.Envelope{Records: unique}, "", "  ")
	if err != nil {
		return "", 0, fmt.Errorf("encode partition: %w", err)
	}

	// Write-then-rename keeps the partition whole under interrupts.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".partition-*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp partition: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", 0, fmt.Errorf("write partition: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", 0, fmt.Errorf("close partition: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", 0, fmt.Errorf("publish partition: %w", err)
	}

	s.logger.Info("saved partition", zap.String("path", path), zap.Int("records", len(unique)))
	return path, len(unique), nil
}

// partitionDay extracts the YYYY-MM-DD stem from a partition file name,
// tolerating suffixed names produced by older filtered runs.
func partitionDay(name string) (string, bool) {
	stem := strings.TrimSuffix(name, ".json")
	if len(stem) < len(dayLayout) {
		return "", false
	}
	stem = stem[:len(dayLayout)]
	if _, err := time.Parse(dayLayout, stem); err != nil {
		return "", false
	}
	return stem, true
}

// readPartition accepts both schema shapes: the current envelope and the
// legacy bare array.
func readPartition(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var env struct {
		Records []json.RawMessage `json:"records"`
	}
	if err := json.Unmarshal(data, &env); err == nil && env.Records != nil {
		return env.Records, nil
	}
	var legacy []json.RawMessage
	if err := json.Unmarshal(data, &legacy); err == nil {
		return legacy, nil
	}
	return nil, fmt.Errorf("unrecognized partition shape")
}

// probeKeys pulls the dedup keys out of one raw record regardless of schema
// version: top-level pid/href for legacy records, the other_info bag for
// current ones.
func probeKeys(raw json.RawMessage) (pid, href string) {
	var probe struct {
		PID       string `json:"pid"`
		Href      string `json:"href"`
		OtherInfo struct {
			PID  string `json:"pid"`
			Href string `json:"href"`
		} `json:"other_info"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", ""
	}
	pid = probe.PID
	if pid == "" {
		pid = probe.OtherInfo.PID
	}
	href = probe.Href
	if href == "" {
		href = probe.OtherInfo.Href
	}
	return pid, href
}

func sortedDirs(entries []os.DirEntry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}
