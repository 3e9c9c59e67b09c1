package calendar

import (
	"context"
	"time"
)

// SeriesStore is the persistence abstraction for event series. Implemented
// by internal/core/storage; the engine never talks to a database directly.
type SeriesStore interface {
	// CreateSeries persists a new series at version 0. Returns
	// ErrAlreadyExists when the id is taken.
	CreateSeries(ctx context.Context, s *EventSeries) error

	// GetSeries returns the series, including a soft-deleted one.
	// Returns ErrNotFound for an unknown id.
	GetSeries(ctx context.Context, id string) (*EventSeries, error)

	// ListActiveSeries returns every series not soft-deleted.
	ListActiveSeries(ctx context.Context) ([]*EventSeries, error)

	// UpdateSeries writes the series' mutable fields and bumps Version,
	// guarded by expectedVersion. Returns ErrConflict on a stale version
	// and ErrNotFound for an unknown or deleted series.
	UpdateSeries(ctx context.Context, s *EventSeries, expectedVersion int64) error

	// SoftDeleteSeries stamps DeletedAt, guarded by expectedVersion.
	SoftDeleteSeries(ctx context.Context, id string, expectedVersion int64, at time.Time) error
}

// ExceptionStore persists per-occurrence exceptions keyed by
// (seriesID, originalDate).
type ExceptionStore interface {
	// GetException returns the exception for one slot, or
	// ErrOccurrenceNotFound when none exists.
	GetException(ctx context.Context, seriesID, originalDate string) (*OccurrenceException, error)

	// ListExceptions returns every live exception of the series.
	ListExceptions(ctx context.Context, seriesID string) ([]*OccurrenceException, error)

	// UpsertException writes the exception, guarded by expectedRevision
	// (0 for a create). On success the stored revision is expectedRevision+1
	// and e.Revision is updated to match. Returns ErrConflict when a
	// concurrent write raced.
	UpsertException(ctx context.Context, e *OccurrenceException, expectedRevision int64) error

	// RemoveException drops the exception for one slot. Removing a missing
	// exception is a no-op.
	RemoveException(ctx context.Context, seriesID, originalDate string) error

	// RemoveAllForSeries physically drops every exception of the series,
	// resetting it to its base template.
	RemoveAllForSeries(ctx context.Context, seriesID string) error

	// SoftDeleteAllForSeries stamps DeletedAt on every live exception of
	// the series, the cascade of a series soft-delete. The rows stay
	// persisted but disappear from GetException and ListExceptions.
	SoftDeleteAllForSeries(ctx context.Context, seriesID string, at time.Time) error
}
