// Package memory provides in-memory implementations of the calendar stores.
// Useful for testing and development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/academy-lab/eventcal/internal/calendar"
)

// Store implements calendar.SeriesStore and calendar.ExceptionStore with
// plain maps. All methods return copies to prevent external modification.
type Store struct {
	mu         sync.RWMutex
	series     map[string]*calendar.EventSeries
	exceptions map[string]map[string]*calendar.OccurrenceException
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		series:     make(map[string]*calendar.EventSeries),
		exceptions: make(map[string]map[string]*calendar.OccurrenceException),
	}
}

func (st *Store) CreateSeries(ctx context.Context, s *calendar.EventSeries) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, exists := st.series[s.ID]; exists {
		return calendar.ErrAlreadyExists
	}
	st.series[s.ID] = copySeries(s)
	return nil
}

func (st *Store) GetSeries(ctx context.Context, id string) (*calendar.EventSeries, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, exists := st.series[id]
	if !exists {
		return nil, calendar.ErrNotFound
	}
	return copySeries(s), nil
}

func (st *Store) ListActiveSeries(ctx context.Context) ([]*calendar.EventSeries, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	var out []*calendar.EventSeries
	for _, s := range st.series {
		if s.IsDeleted() {
			continue
		}
		out = append(out, copySeries(s))
	}
	return out, nil
}

func (st *Store) UpdateSeries(ctx context.Context, s *calendar.EventSeries, expectedVersion int64) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	stored, exists := st.series[s.ID]
	if !exists || stored.IsDeleted() {
		return calendar.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return calendar.ErrConflict
	}

	next := copySeries(s)
	next.Version = expectedVersion + 1
	next.CreatedAt = stored.CreatedAt
	st.series[s.ID] = next
	s.Version = next.Version
	return nil
}

func (st *Store) SoftDeleteSeries(ctx context.Context, id string, expectedVersion int64, at time.Time) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	stored, exists := st.series[id]
	if !exists {
		return calendar.ErrNotFound
	}
	if stored.IsDeleted() {
		return nil
	}
	if stored.Version != expectedVersion {
		return calendar.ErrConflict
	}
	stored.DeletedAt = &at
	stored.Version++
	stored.UpdatedAt = at
	return nil
}

func (st *Store) GetException(ctx context.Context, seriesID, originalDate string) (*calendar.OccurrenceException, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	e, exists := st.exceptions[seriesID][originalDate]
	if !exists || e.IsDeleted() {
		return nil, calendar.ErrOccurrenceNotFound
	}
	return copyException(e), nil
}

func (st *Store) ListExceptions(ctx context.Context, seriesID string) ([]*calendar.OccurrenceException, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	var out []*calendar.OccurrenceException
	for _, e := range st.exceptions[seriesID] {
		if e.IsDeleted() {
			continue
		}
		out = append(out, copyException(e))
	}
	return out, nil
}

func (st *Store) UpsertException(ctx context.Context, e *calendar.OccurrenceException, expectedRevision int64) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	byDate := st.exceptions[e.SeriesID]
	if byDate == nil {
		byDate = make(map[string]*calendar.OccurrenceException)
		st.exceptions[e.SeriesID] = byDate
	}

	var current int64
	if existing, exists := byDate[e.OriginalDate]; exists {
		current = existing.Revision
	}
	if current != expectedRevision {
		return calendar.ErrConflict
	}

	next := copyException(e)
	next.Revision = expectedRevision + 1
	byDate[e.OriginalDate] = next
	e.Revision = next.Revision
	return nil
}

func (st *Store) RemoveException(ctx context.Context, seriesID, originalDate string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	delete(st.exceptions[seriesID], originalDate)
	return nil
}

func (st *Store) RemoveAllForSeries(ctx context.Context, seriesID string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	delete(st.exceptions, seriesID)
	return nil
}

func (st *Store) SoftDeleteAllForSeries(ctx context.Context, seriesID string, at time.Time) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	for _, e := range st.exceptions[seriesID] {
		if e.IsDeleted() {
			continue
		}
		stamp := at
		e.DeletedAt = &stamp
		e.UpdatedAt = at
	}
	return nil
}

func copySeries(s *calendar.EventSeries) *calendar.EventSeries {
	copy := *s
	if s.Recurrence != nil {
		pattern := *s.Recurrence
		if s.Recurrence.DaysOfWeek != nil {
			pattern.DaysOfWeek = append([]int(nil), s.Recurrence.DaysOfWeek...)
		}
		copy.Recurrence = &pattern
	}
	if s.DeletedAt != nil {
		at := *s.DeletedAt
		copy.DeletedAt = &at
	}
	return &copy
}

func copyException(e *calendar.OccurrenceException) *calendar.OccurrenceException {
	copy := *e
	if e.DeletedAt != nil {
		at := *e.DeletedAt
		copy.DeletedAt = &at
	}
	return &copy
}
