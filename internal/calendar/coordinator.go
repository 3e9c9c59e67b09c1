package calendar

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OrphanPolicy decides what happens to exceptions whose original date is no
// longer generated after a series' recurrence pattern changes.
type OrphanPolicy string

const (
	// OrphanKeep leaves orphaned exceptions in place. Default.
	OrphanKeep OrphanPolicy = "keep"
	// OrphanPurge removes orphaned exceptions in the same mutation.
	OrphanPurge OrphanPolicy = "purge"
	// OrphanFlag keeps them and surfaces them on series detail reads.
	OrphanFlag OrphanPolicy = "flag"
)

// SeriesInput is the caller-supplied definition for a new series.
type SeriesInput struct {
	Title           string
	Description     string
	EventType       EventType
	StartAt         time.Time
	DurationMinutes int
	Timezone        string
	MeetingLink     string
	MeetingProvider MeetingProvider
	Recurrence      *RecurrencePattern
	CreatedBy       string
}

// SeriesUpdate carries a partial series-level edit. Nil fields are left
// unchanged.
type SeriesUpdate struct {
	Title           *string
	Description     *string
	EventType       *EventType
	StartAt         *time.Time
	DurationMinutes *int
	Timezone        *string
	MeetingLink     *string
	MeetingProvider *MeetingProvider

	// Recurrence replaces the whole pattern when set; RemoveRecurrence
	// turns a recurring series into a single event.
	Recurrence       *RecurrencePattern
	RemoveRecurrence bool

	// ClearExceptions drops every exception of the series, for callers
	// whose pattern change invalidates the existing overrides.
	ClearExceptions bool
}

// OccurrenceUpdate carries a per-occurrence edit. Nil fields inherit from
// the base template.
type OccurrenceUpdate struct {
	StartAt         *time.Time
	DurationMinutes *int
	Title           *string
	Description     *string
	MeetingLink     *string
	MeetingProvider *MeetingProvider
}

// CoordinatorOptions tunes coordinator behavior.
type CoordinatorOptions struct {
	// OrphanPolicy defaults to OrphanKeep.
	OrphanPolicy OrphanPolicy

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// Coordinator is the engine's write surface. It decides whether a mutation
// targets one occurrence (an exception write) or the whole series (a base
// template write), and guards both with optimistic concurrency.
type Coordinator struct {
	series       SeriesStore
	exceptions   ExceptionStore
	catalog      *Catalog
	orphanPolicy OrphanPolicy
	now          func() time.Time
}

// NewCoordinator creates a coordinator over the given stores and catalog.
func NewCoordinator(series SeriesStore, exceptions ExceptionStore, catalog *Catalog, opts CoordinatorOptions) *Coordinator {
	if series == nil {
		panic("calendar: series store must not be nil")
	}
	if exceptions == nil {
		panic("calendar: exception store must not be nil")
	}
	if catalog == nil {
		catalog = NewCatalog()
	}
	policy := opts.OrphanPolicy
	if policy == "" {
		policy = OrphanKeep
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		series:       series,
		exceptions:   exceptions,
		catalog:      catalog,
		orphanPolicy: policy,
		now:          now,
	}
}

// OrphanPolicy returns the configured orphaned-exception policy.
func (c *Coordinator) OrphanPolicy() OrphanPolicy {
	return c.orphanPolicy
}

// Catalog returns the template catalog the coordinator creates from.
func (c *Coordinator) Catalog() *Catalog {
	return c.catalog
}

// CreateSeries validates the input, applies defaults, and persists a new
// series at version 0.
func (c *Coordinator) CreateSeries(ctx context.Context, in SeriesInput) (*EventSeries, error) {
	now := c.now().UTC()
	s := &EventSeries{
		ID:              uuid.NewString(),
		Title:           strings.TrimSpace(in.Title),
		Description:     in.Description,
		EventType:       in.EventType,
		StartAt:         in.StartAt.UTC(),
		DurationMinutes: in.DurationMinutes,
		Timezone:        in.Timezone,
		MeetingLink:     in.MeetingLink,
		MeetingProvider: in.MeetingProvider,
		Recurrence:      normalizePattern(in.Recurrence),
		CreatedBy:       in.CreatedBy,
		Version:         0,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if s.Timezone == "" {
		s.Timezone = DefaultTimezone
	}
	if s.DurationMinutes == 0 {
		s.DurationMinutes = DefaultDurationMinutes
	}
	if s.MeetingProvider == "" {
		s.MeetingProvider = ProviderZoom
	}

	if err := ValidateSeries(s); err != nil {
		return nil, err
	}

	if s.MeetingProvider == ProviderZoom && s.MeetingLink == "" {
		s.MeetingLink = generateZoomLink()
	}

	if err := c.series.CreateSeries(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// CreateFromTemplate resolves a catalog entry, merges the caller's input
// over it, and delegates to CreateSeries. Input fields win; zero-valued
// input fields fall back to the template.
func (c *Coordinator) CreateFromTemplate(ctx context.Context, key string, in SeriesInput) (*EventSeries, error) {
	tpl, ok := c.catalog.Get(key)
	if !ok {
		return nil, ErrTemplateNotFound
	}

	if in.Title == "" {
		in.Title = tpl.Title
	}
	if in.Description == "" {
		in.Description = tpl.Description
	}
	if in.EventType == "" {
		in.EventType = tpl.EventType
	}
	if in.DurationMinutes == 0 {
		in.DurationMinutes = tpl.DurationMinutes
	}
	if in.MeetingProvider == "" {
		in.MeetingProvider = tpl.MeetingProvider
	}
	if in.Recurrence == nil && tpl.Recurrence != nil {
		pattern := *tpl.Recurrence
		in.Recurrence = &pattern
	}
	return c.CreateSeries(ctx, in)
}

// UpdateOccurrence writes or updates a modified/rescheduled exception for
// one slot. The base series' version is untouched; concurrency is guarded
// at the exception's own revision.
func (c *Coordinator) UpdateOccurrence(ctx context.Context, seriesID, occurrenceDate string, upd OccurrenceUpdate) (*OccurrenceException, error) {
	s, err := c.loadActiveSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	slot, err := c.verifyOccurrence(s, occurrenceDate)
	if err != nil {
		return nil, err
	}

	if upd.DurationMinutes != nil && *upd.DurationMinutes <= 0 {
		return nil, &ValidationError{Field: "duration_minutes", Message: "duration must be a positive number of minutes"}
	}
	if upd.Title != nil && strings.TrimSpace(*upd.Title) == "" {
		return nil, &ValidationError{Field: "title", Message: "title must not be blank"}
	}

	existing, expected, err := c.loadException(ctx, seriesID, occurrenceDate)
	if err != nil {
		return nil, err
	}

	merged := Override{}
	if existing != nil && existing.Kind != ExceptionCancelled {
		merged = existing.Override
	}
	applyOccurrenceUpdate(&merged, upd)

	kind := ExceptionModified
	if merged.StartAt != nil && !merged.StartAt.Equal(slot) {
		kind = ExceptionRescheduled
	}

	now := c.now().UTC()
	e := &OccurrenceException{
		SeriesID:     seriesID,
		OriginalDate: occurrenceDate,
		Kind:         kind,
		Override:     merged,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if existing != nil {
		e.CreatedAt = existing.CreatedAt
	}
	if err := c.exceptions.UpsertException(ctx, e, expected); err != nil {
		return nil, err
	}
	return e, nil
}

// DeleteOccurrence cancels one slot by writing a cancelled exception.
// Cancelling an already-cancelled slot is a no-op success.
func (c *Coordinator) DeleteOccurrence(ctx context.Context, seriesID, occurrenceDate string) error {
	s, err := c.loadActiveSeries(ctx, seriesID)
	if err != nil {
		return err
	}
	if _, err := c.verifyOccurrence(s, occurrenceDate); err != nil {
		return err
	}

	existing, expected, err := c.loadException(ctx, seriesID, occurrenceDate)
	if err != nil {
		return err
	}
	if existing != nil && existing.Kind == ExceptionCancelled {
		return nil
	}

	now := c.now().UTC()
	e := &OccurrenceException{
		SeriesID:     seriesID,
		OriginalDate: occurrenceDate,
		Kind:         ExceptionCancelled,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if existing != nil {
		e.CreatedAt = existing.CreatedAt
	}
	return c.exceptions.UpsertException(ctx, e, expected)
}

// RestoreOccurrence drops the exception for one slot, returning it to the
// series default. Restoring a slot with no exception is a no-op.
func (c *Coordinator) RestoreOccurrence(ctx context.Context, seriesID, occurrenceDate string) error {
	s, err := c.loadActiveSeries(ctx, seriesID)
	if err != nil {
		return err
	}
	if _, err := c.verifyOccurrence(s, occurrenceDate); err != nil {
		return err
	}
	return c.exceptions.RemoveException(ctx, seriesID, occurrenceDate)
}

// UpdateSeries mutates the base template, guarded by expectedVersion.
// Pre-existing exceptions survive unless the caller clears them; when the
// recurrence pattern changes, orphaned exceptions follow the configured
// policy.
func (c *Coordinator) UpdateSeries(ctx context.Context, seriesID string, upd SeriesUpdate, expectedVersion int64) (*EventSeries, error) {
	s, err := c.loadActiveSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}

	patternChanged := applySeriesUpdate(s, upd)
	if err := ValidateSeries(s); err != nil {
		return nil, err
	}

	s.UpdatedAt = c.now().UTC()
	if err := c.series.UpdateSeries(ctx, s, expectedVersion); err != nil {
		return nil, err
	}

	if upd.ClearExceptions {
		if err := c.exceptions.RemoveAllForSeries(ctx, seriesID); err != nil {
			return nil, err
		}
		return s, nil
	}
	if patternChanged && c.orphanPolicy == OrphanPurge {
		if err := c.purgeOrphans(ctx, s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// DeleteSeries soft-deletes the series and logically removes all of its
// exceptions. Deleting an already-deleted series is a no-op success.
func (c *Coordinator) DeleteSeries(ctx context.Context, seriesID string, expectedVersion int64) error {
	s, err := c.series.GetSeries(ctx, seriesID)
	if err != nil {
		return err
	}
	if s.IsDeleted() {
		return nil
	}
	at := c.now().UTC()
	if err := c.series.SoftDeleteSeries(ctx, seriesID, expectedVersion, at); err != nil {
		return err
	}
	return c.exceptions.SoftDeleteAllForSeries(ctx, seriesID, at)
}

// loadActiveSeries fetches a series and treats soft-deleted as not found.
func (c *Coordinator) loadActiveSeries(ctx context.Context, seriesID string) (*EventSeries, error) {
	s, err := c.series.GetSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	if s.IsDeleted() {
		return nil, ErrNotFound
	}
	return s, nil
}

// verifyOccurrence checks that the evaluator would generate the date and
// returns the slot's base start instant.
func (c *Coordinator) verifyOccurrence(s *EventSeries, occurrenceDate string) (time.Time, error) {
	exists, err := OccurrenceExists(s, occurrenceDate)
	if err != nil {
		return time.Time{}, err
	}
	if !exists {
		return time.Time{}, ErrOccurrenceNotFound
	}
	return SlotStart(s, occurrenceDate)
}

// loadException fetches the current exception and its revision for a CAS
// write; a missing exception yields expected revision 0.
func (c *Coordinator) loadException(ctx context.Context, seriesID, date string) (*OccurrenceException, int64, error) {
	existing, err := c.exceptions.GetException(ctx, seriesID, date)
	if errors.Is(err, ErrOccurrenceNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return existing, existing.Revision, nil
}

func (c *Coordinator) purgeOrphans(ctx context.Context, s *EventSeries) error {
	excs, err := c.exceptions.ListExceptions(ctx, s.ID)
	if err != nil {
		return err
	}
	orphans, err := FindOrphanedExceptions(s, excs)
	if err != nil {
		return err
	}
	for _, date := range orphans {
		if err := c.exceptions.RemoveException(ctx, s.ID, date); err != nil {
			return err
		}
	}
	return nil
}

// FindOrphanedExceptions returns the original dates of exceptions the
// series' current pattern would no longer generate, ascending.
func FindOrphanedExceptions(s *EventSeries, exceptions []*OccurrenceException) ([]string, error) {
	var orphans []string
	for _, e := range exceptions {
		exists, err := OccurrenceExists(s, e.OriginalDate)
		if err != nil {
			return nil, err
		}
		if !exists {
			orphans = append(orphans, e.OriginalDate)
		}
	}
	return orphans, nil
}

// applySeriesUpdate copies the set fields of upd onto s and reports whether
// the recurrence pattern changed.
func applySeriesUpdate(s *EventSeries, upd SeriesUpdate) bool {
	if upd.Title != nil {
		s.Title = strings.TrimSpace(*upd.Title)
	}
	if upd.Description != nil {
		s.Description = *upd.Description
	}
	if upd.EventType != nil {
		s.EventType = *upd.EventType
	}
	if upd.StartAt != nil {
		s.StartAt = upd.StartAt.UTC()
	}
	if upd.DurationMinutes != nil {
		s.DurationMinutes = *upd.DurationMinutes
	}
	if upd.Timezone != nil {
		s.Timezone = *upd.Timezone
	}
	if upd.MeetingLink != nil {
		s.MeetingLink = *upd.MeetingLink
	}
	if upd.MeetingProvider != nil {
		s.MeetingProvider = *upd.MeetingProvider
	}

	patternChanged := false
	if upd.RemoveRecurrence {
		patternChanged = s.Recurrence != nil
		s.Recurrence = nil
	} else if upd.Recurrence != nil {
		s.Recurrence = normalizePattern(upd.Recurrence)
		patternChanged = true
	} else if upd.StartAt != nil && s.Recurrence != nil {
		// Moving the series start reanchors every generated slot.
		patternChanged = true
	}
	return patternChanged
}

func applyOccurrenceUpdate(o *Override, upd OccurrenceUpdate) {
	if upd.StartAt != nil {
		t := upd.StartAt.UTC()
		o.StartAt = &t
	}
	if upd.DurationMinutes != nil {
		o.DurationMinutes = upd.DurationMinutes
	}
	if upd.Title != nil {
		o.Title = upd.Title
	}
	if upd.Description != nil {
		o.Description = upd.Description
	}
	if upd.MeetingLink != nil {
		o.MeetingLink = upd.MeetingLink
	}
	if upd.MeetingProvider != nil {
		o.MeetingProvider = upd.MeetingProvider
	}
}

// normalizePattern fills the unset interval and occurrence-count defaults
// on a caller-supplied pattern, leaving the caller's copy untouched.
func normalizePattern(p *RecurrencePattern) *RecurrencePattern {
	if p == nil {
		return nil
	}
	out := *p
	if out.Interval == 0 {
		out.Interval = 1
	}
	if out.EndType == EndAfterOccurrences && out.Occurrences == 0 {
		out.Occurrences = 8
	}
	if len(p.DaysOfWeek) > 0 {
		out.DaysOfWeek = make([]int, len(p.DaysOfWeek))
		copy(out.DaysOfWeek, p.DaysOfWeek)
	}
	return &out
}

// generateZoomLink mints a placeholder join URL for zoom-provider series
// created without an explicit link.
func generateZoomLink() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "https://zoom.us/j/" + id[:11]
}
