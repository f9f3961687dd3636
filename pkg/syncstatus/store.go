// Package syncstatus holds the sync status of every application, and
// persists it across restarts.
package syncstatus

import (
	"sort"
	"sync"

	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
)

// DefaultHistoryLimit is the number of cycle summaries kept per application
// unless configured otherwise.
const DefaultHistoryLimit = 10

// Store is the in-memory view of every application's sync status. It is safe
// for concurrent use, and never hands out references to the statuses it
// holds.
type Store struct {
	mu       sync.RWMutex
	statuses map[string]*v1alpha1.ApplicationSyncStatus
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{statuses: make(map[string]*v1alpha1.ApplicationSyncStatus)}
}

// Set replaces the status of st.Application with a copy of st.
func (s *Store) Set(st *v1alpha1.ApplicationSyncStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[st.Application] = st.DeepCopy()
}

// Update calls mutate with the current status of app, creating it if
// needed, and returns a copy of the result. mutate must not keep a reference
// to its argument.
func (s *Store) Update(app string, mutate func(st *v1alpha1.ApplicationSyncStatus)) *v1alpha1.ApplicationSyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, found := s.statuses[app]
	if !found {
		st = &v1alpha1.ApplicationSyncStatus{
			Application: app,
			Phase:       v1alpha1.PhaseIdle,
			Health:      v1alpha1.HealthUnknown,
		}
		s.statuses[app] = st
	}
	mutate(st)
	return st.DeepCopy()
}

// Get returns a copy of the status of app.
func (s *Store) Get(app string) (*v1alpha1.ApplicationSyncStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, found := s.statuses[app]
	if !found {
		return nil, false
	}
	return st.DeepCopy(), true
}

// List returns copies of all statuses, sorted by application name.
func (s *Store) List() []v1alpha1.ApplicationSyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]v1alpha1.ApplicationSyncStatus, 0, len(s.statuses))
	for _, st := range s.statuses {
		result = append(result, *st.DeepCopy())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Application < result[j].Application
	})
	return result
}

// AppendHistory adds summary to the history of st, dropping the oldest
// summaries beyond limit. A limit below one keeps DefaultHistoryLimit.
func AppendHistory(st *v1alpha1.ApplicationSyncStatus, summary v1alpha1.CycleSummary, limit int) {
	if limit < 1 {
		limit = DefaultHistoryLimit
	}
	st.History = append(st.History, summary)
	if extra := len(st.History) - limit; extra > 0 {
		st.History = append([]v1alpha1.CycleSummary(nil), st.History[extra:]...)
	}
}
