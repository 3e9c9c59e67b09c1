package calendar

import (
	"fmt"
	"sort"
	"time"
)

// DateLayout is the civil-date form used for occurrence slot keys.
// Slot dates are always rendered in the series' own timezone.
const DateLayout = "2006-01-02"

// Defaults applied at series creation when the caller omits the field.
const (
	DefaultTimezone        = "America/Los_Angeles"
	DefaultDurationMinutes = 60
)

// EventType is the closed set of event categories.
type EventType string

const (
	TypeOfficeHours   EventType = "office_hours"
	TypeCommunityCall EventType = "community_call"
	TypeWorkshop      EventType = "workshop"
	TypeCoaching      EventType = "coaching"
)

// KnownEventTypes lists every valid EventType.
var KnownEventTypes = []EventType{TypeOfficeHours, TypeCommunityCall, TypeWorkshop, TypeCoaching}

// MeetingProvider identifies where the meeting link points.
type MeetingProvider string

const (
	ProviderZoom       MeetingProvider = "zoom"
	ProviderGoogleMeet MeetingProvider = "google_meet"
	ProviderCustom     MeetingProvider = "custom"
	ProviderNone       MeetingProvider = "none"
)

// Frequency is the recurrence step unit.
type Frequency string

const (
	FreqDaily    Frequency = "daily"
	FreqWeekly   Frequency = "weekly"
	FreqBiweekly Frequency = "biweekly"
	FreqMonthly  Frequency = "monthly"
)

// EndType selects how a recurrence terminates.
type EndType string

const (
	EndNever            EndType = "never"
	EndAfterOccurrences EndType = "after_occurrences"
	EndByDate           EndType = "by_date"
)

// RecurrencePattern describes how a series repeats. It is embedded in
// EventSeries and only mutated through a series-level edit.
type RecurrencePattern struct {
	Frequency Frequency `json:"frequency" yaml:"frequency"`

	// Interval multiplies the frequency unit. Zero is normalized to 1.
	Interval int `json:"interval" yaml:"interval"`

	// DaysOfWeek holds weekday ordinals (0=Sunday .. 6=Saturday) and is
	// meaningful only for weekly/biweekly. Empty means "the weekday of the
	// series start".
	DaysOfWeek []int `json:"days_of_week,omitempty" yaml:"days_of_week"`

	EndType EndType `json:"end_type" yaml:"end_type"`

	// Occurrences bounds the series when EndType is after_occurrences.
	// Counted over the full sequence from the series start, never per window.
	Occurrences int `json:"occurrences,omitempty" yaml:"occurrences"`

	// EndDate (YYYY-MM-DD, series timezone) bounds the series when EndType
	// is by_date. The end date itself is inclusive.
	EndDate string `json:"end_date,omitempty" yaml:"end_date"`
}

// EffectiveInterval resolves the step width in frequency units, folding
// biweekly into weekly with a doubled interval.
func (p *RecurrencePattern) EffectiveInterval() int {
	interval := p.Interval
	if interval <= 0 {
		interval = 1
	}
	if p.Frequency == FreqBiweekly {
		return 2 * interval
	}
	return interval
}

// sortedDaysOfWeek returns the pattern's weekday set in ascending order,
// falling back to the given weekday when the set is empty.
func (p *RecurrencePattern) sortedDaysOfWeek(fallback time.Weekday) []int {
	if len(p.DaysOfWeek) == 0 {
		return []int{int(fallback)}
	}
	days := make([]int, len(p.DaysOfWeek))
	copy(days, p.DaysOfWeek)
	sort.Ints(days)
	return days
}

// EventSeries is the persisted root: a single event or a recurring template.
type EventSeries struct {
	ID          string
	Title       string
	Description string
	EventType   EventType

	// StartAt is the UTC instant of the first occurrence slot.
	StartAt         time.Time
	DurationMinutes int

	// Timezone is the IANA zone used for human-facing day and week
	// boundaries. Recurrence weekday filtering happens in this zone.
	Timezone string

	MeetingLink     string
	MeetingProvider MeetingProvider

	// Recurrence is nil for a single, non-repeating event.
	Recurrence *RecurrencePattern

	CreatedBy string

	// Version is the optimistic-concurrency token for series-level writes.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// IsRecurring reports whether the series has a recurrence pattern.
func (s *EventSeries) IsRecurring() bool {
	return s.Recurrence != nil
}

// IsDeleted reports whether the series has been soft-deleted.
func (s *EventSeries) IsDeleted() bool {
	return s.DeletedAt != nil
}

// Location resolves the series' IANA timezone.
func (s *EventSeries) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, &ValidationError{Field: "timezone", Message: fmt.Sprintf("unknown timezone %q", s.Timezone)}
	}
	return loc, nil
}

// ExceptionKind classifies a per-occurrence override.
type ExceptionKind string

const (
	ExceptionCancelled   ExceptionKind = "cancelled"
	ExceptionRescheduled ExceptionKind = "rescheduled"
	ExceptionModified    ExceptionKind = "modified"
)

// Override holds the per-occurrence field values of a rescheduled or
// modified exception. Nil fields inherit from the base template.
type Override struct {
	StartAt         *time.Time       `json:"start_at,omitempty"`
	DurationMinutes *int             `json:"duration_minutes,omitempty"`
	Title           *string          `json:"title,omitempty"`
	Description     *string          `json:"description,omitempty"`
	MeetingLink     *string          `json:"meeting_link,omitempty"`
	MeetingProvider *MeetingProvider `json:"meeting_provider,omitempty"`
}

// IsZero reports whether no field is overridden.
func (o Override) IsZero() bool {
	return o.StartAt == nil && o.DurationMinutes == nil && o.Title == nil &&
		o.Description == nil && o.MeetingLink == nil && o.MeetingProvider == nil
}

// OccurrenceException overrides one occurrence of a series. It is keyed by
// (SeriesID, OriginalDate): the date the slot would have occupied absent the
// exception, which stays stable across repeated reschedules.
type OccurrenceException struct {
	SeriesID     string
	OriginalDate string
	Kind         ExceptionKind
	Override     Override

	// Revision is the compare-and-swap token for exception-level writes.
	Revision int64

	CreatedAt time.Time
	UpdatedAt time.Time

	// DeletedAt is stamped by the series soft-delete cascade. Logically
	// deleted exceptions are invisible to reads but stay persisted.
	DeletedAt *time.Time
}

// IsDeleted reports whether the exception was logically removed.
func (e *OccurrenceException) IsDeleted() bool {
	return e.DeletedAt != nil
}

// MaterializedOccurrence is one concrete, ephemeral instance produced by
// materialization. Never persisted.
type MaterializedOccurrence struct {
	SeriesID string

	// OccurrenceDate is the original slot date (series timezone), even when
	// the occurrence has been rescheduled.
	OccurrenceDate string

	EffectiveStart           time.Time
	EffectiveDurationMinutes int

	Title           string
	Description     string
	EventType       EventType
	Timezone        string
	MeetingLink     string
	MeetingProvider MeetingProvider

	IsException bool

	// IsSeriesHead marks the canonical, unmodified first instance of the
	// series, the anchor for whole-series edits.
	IsSeriesHead bool
}

// EffectiveEnd is the occurrence's end instant.
func (o MaterializedOccurrence) EffectiveEnd() time.Time {
	return o.EffectiveStart.Add(time.Duration(o.EffectiveDurationMinutes) * time.Minute)
}

// OccurrenceID is the composite identifier clients use to address one
// occurrence: "<seriesID>_<YYYY-MM-DD>".
func (o MaterializedOccurrence) OccurrenceID() string {
	return o.SeriesID + "_" + o.OccurrenceDate
}
