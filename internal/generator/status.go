package generator

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scholardigest/paper-digest-service/internal/domain"
)

// StatusStore tracks per-category generation progress for the lifetime of the
// process. Entries are partitioned by category code behind per-entry mutexes,
// so concurrent workers for different categories never contend.
//
// Begin doubles as the run's mutual-exclusion token: a second Begin for a
// category that is still in progress fails with domain.ErrConcurrentRun.
type StatusStore struct {
	mu      sync.RWMutex
	entries map[string]*statusEntry
}

type statusEntry struct {
	mu       sync.Mutex
	status   domain.GenerationStatus
	runToken uuid.UUID
}

// NewStatusStore creates a status store pre-seeded with the configured
// categories in the not_started state.
func NewStatusStore(categories []domain.Category) *StatusStore {
	entries := make(map[string]*statusEntry, len(categories))
	now := time.Now().UTC()
	for _, cat := range categories {
		entries[cat.Code] = &statusEntry{
			status: domain.GenerationStatus{
				CategoryCode: cat.Code,
				CategoryName: cat.Name,
				State:        domain.GenerationNotStarted,
				LastUpdated:  now,
			},
		}
	}
	return &StatusStore{entries: entries}
}

func (s *StatusStore) entry(code, name string) *statusEntry {
	s.mu.RLock()
	e, ok := s.entries[code]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entries[code]; ok {
		return e
	}
	e = &statusEntry{
		status: domain.GenerationStatus{
			CategoryCode: code,
			CategoryName: name,
			State:        domain.GenerationNotStarted,
			LastUpdated:  time.Now().UTC(),
		},
	}
	s.entries[code] = e
	return e
}

// Begin acquires the category's run token and marks it in_progress, resetting
// the per-run counters. Returns domain.ErrConcurrentRun if a run for the
// category is already in progress.
func (s *StatusStore) Begin(code, name string, token uuid.UUID) error {
	e := s.entry(code, name)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status.State == domain.GenerationInProgress {
		return fmt.Errorf("category %s: %w", code, domain.ErrConcurrentRun)
	}

	now := time.Now().UTC()
	e.runToken = token
	e.status.CategoryName = name
	e.status.State = domain.GenerationInProgress
	e.status.PapersGenerated = 0
	e.status.PapersFailed = 0
	e.status.StartedAt = &now
	e.status.LastUpdated = now
	return nil
}

// MarkProgress adds the given deltas to the category's per-run counters.
// No-op for unknown categories.
func (s *StatusStore) MarkProgress(code string, generatedDelta, failedDelta int) {
	s.mu.RLock()
	e, ok := s.entries[code]
	s.mu.RUnlock()
	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.PapersGenerated += generatedDelta
	e.status.PapersFailed += failedDelta
	e.status.LastUpdated = time.Now().UTC()
}

// SetTotal records the lifetime stored-paper count for the category.
func (s *StatusStore) SetTotal(code string, total int) {
	s.mu.RLock()
	e, ok := s.entries[code]
	s.mu.RUnlock()
	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.TotalPapers = total
	e.status.LastUpdated = time.Now().UTC()
}

// Complete transitions the category to completed and releases its run token.
// The transition only applies while the category is in_progress; states never
// regress within a run.
func (s *StatusStore) Complete(code string) {
	s.mu.RLock()
	e, ok := s.entries[code]
	s.mu.RUnlock()
	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.status.State.CanTransitionTo(domain.GenerationCompleted) {
		return
	}
	e.status.State = domain.GenerationCompleted
	e.runToken = uuid.Nil
	e.status.LastUpdated = time.Now().UTC()
}

// Get returns a copy of one category's status.
func (s *StatusStore) Get(code string) (domain.GenerationStatus, bool) {
	s.mu.RLock()
	e, ok := s.entries[code]
	s.mu.RUnlock()
	if !ok {
		return domain.GenerationStatus{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status, true
}

// Snapshot returns a copy of every category's status, ordered by code.
func (s *StatusStore) Snapshot() []domain.GenerationStatus {
	s.mu.RLock()
	entries := make([]*statusEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	statuses := make([]domain.GenerationStatus, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		statuses = append(statuses, e.status)
		e.mu.Unlock()
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].CategoryCode < statuses[j].CategoryCode
	})
	return statuses
}
