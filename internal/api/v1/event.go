package v1

import (
	"time"

	"github.com/academy-lab/eventcal/internal/calendar"
)

// EventResponse is the wire shape shared by series and occurrence reads.
// An occurrence row carries is_occurrence=true, its parent series id, and
// the original slot date so clients can always tell which mutation
// (occurrence- or series-level) applies to it.
type EventResponse struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	EventType       string    `json:"event_type"`
	StartDatetime   time.Time `json:"start_datetime"`
	EndDatetime     time.Time `json:"end_datetime"`
	LocalStart      string    `json:"local_start"`
	DurationMinutes int       `json:"duration_minutes"`
	Timezone        string    `json:"timezone"`
	MeetingLink     string    `json:"meeting_link,omitempty"`
	MeetingProvider string    `json:"meeting_provider,omitempty"`

	IsRecurring bool                        `json:"is_recurring"`
	Recurrence  *calendar.RecurrencePattern `json:"recurrence_pattern,omitempty"`

	IsOccurrence  bool   `json:"is_occurrence"`
	ParentEventID string `json:"parent_event_id,omitempty"`
	OriginalDate  string `json:"original_date,omitempty"`
	IsException   bool   `json:"is_exception,omitempty"`
	IsSeriesHead  bool   `json:"is_series_head,omitempty"`

	Version *int64 `json:"version,omitempty"`

	// OrphanedExceptions is populated on series detail reads when the
	// engine runs with the flag policy for orphaned exceptions.
	OrphanedExceptions []string `json:"orphaned_exceptions,omitempty"`
}

// NewSeriesResponse renders the persisted series definition itself.
func NewSeriesResponse(s *calendar.EventSeries) EventResponse {
	version := s.Version
	return EventResponse{
		ID:              s.ID,
		Title:           s.Title,
		Description:     s.Description,
		EventType:       string(s.EventType),
		StartDatetime:   s.StartAt.UTC(),
		EndDatetime:     s.StartAt.UTC().Add(time.Duration(s.DurationMinutes) * time.Minute),
		LocalStart:      localStart(s.StartAt, s.Timezone),
		DurationMinutes: s.DurationMinutes,
		Timezone:        s.Timezone,
		MeetingLink:     s.MeetingLink,
		MeetingProvider: string(s.MeetingProvider),
		IsRecurring:     s.IsRecurring(),
		Recurrence:      s.Recurrence,
		Version:         &version,
	}
}

// NewOccurrenceResponse renders one materialized occurrence.
func NewOccurrenceResponse(o calendar.MaterializedOccurrence) EventResponse {
	return EventResponse{
		ID:              o.OccurrenceID(),
		Title:           o.Title,
		Description:     o.Description,
		EventType:       string(o.EventType),
		StartDatetime:   o.EffectiveStart,
		EndDatetime:     o.EffectiveEnd(),
		LocalStart:      localStart(o.EffectiveStart, o.Timezone),
		DurationMinutes: o.EffectiveDurationMinutes,
		Timezone:        o.Timezone,
		MeetingLink:     o.MeetingLink,
		MeetingProvider: string(o.MeetingProvider),
		IsOccurrence:    true,
		ParentEventID:   o.SeriesID,
		OriginalDate:    o.OccurrenceDate,
		IsException:     o.IsException,
		IsSeriesHead:    o.IsSeriesHead,
	}
}

// NewOccurrenceResponses renders a slice of occurrences in order.
func NewOccurrenceResponses(occs []calendar.MaterializedOccurrence) []EventResponse {
	out := make([]EventResponse, len(occs))
	for i, o := range occs {
		out[i] = NewOccurrenceResponse(o)
	}
	return out
}

// localStart renders the instant in the series' own timezone. An
// unresolvable zone (validated away on write) degrades to UTC.
func localStart(t time.Time, zone string) string {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		loc = time.UTC
	}
	return t.In(loc).Format("2006-01-02T15:04:05-07:00")
}

// CreateEventRequest is the body of POST /v1/admin/events.
type CreateEventRequest struct {
	Title           string                      `json:"title" binding:"required"`
	Description     string                      `json:"description"`
	EventType       string                      `json:"event_type" binding:"required"`
	StartDatetime   time.Time                   `json:"start_datetime" binding:"required"`
	DurationMinutes int                         `json:"duration_minutes"`
	Timezone        string                      `json:"timezone"`
	MeetingLink     string                      `json:"meeting_link"`
	MeetingProvider string                      `json:"meeting_provider"`
	Recurrence      *calendar.RecurrencePattern `json:"recurrence_pattern"`
	CreatedBy       string                      `json:"created_by"`
}

// Input converts the request into the coordinator's create input.
func (r CreateEventRequest) Input() calendar.SeriesInput {
	return calendar.SeriesInput{
		Title:           r.Title,
		Description:     r.Description,
		EventType:       calendar.EventType(r.EventType),
		StartAt:         r.StartDatetime,
		DurationMinutes: r.DurationMinutes,
		Timezone:        r.Timezone,
		MeetingLink:     r.MeetingLink,
		MeetingProvider: calendar.MeetingProvider(r.MeetingProvider),
		Recurrence:      r.Recurrence,
		CreatedBy:       r.CreatedBy,
	}
}

// FromTemplateRequest is the body of POST /v1/admin/events/from-template.
// Every field except template and start_datetime is optional; set fields
// override the template's defaults.
type FromTemplateRequest struct {
	Template        string                      `json:"template" binding:"required"`
	Title           string                      `json:"title"`
	Description     string                      `json:"description"`
	EventType       string                      `json:"event_type"`
	StartDatetime   time.Time                   `json:"start_datetime" binding:"required"`
	DurationMinutes int                         `json:"duration_minutes"`
	Timezone        string                      `json:"timezone"`
	MeetingLink     string                      `json:"meeting_link"`
	MeetingProvider string                      `json:"meeting_provider"`
	Recurrence      *calendar.RecurrencePattern `json:"recurrence_pattern"`
	CreatedBy       string                      `json:"created_by"`
}

// Input converts the request into the coordinator's create input.
func (r FromTemplateRequest) Input() calendar.SeriesInput {
	return calendar.SeriesInput{
		Title:           r.Title,
		Description:     r.Description,
		EventType:       calendar.EventType(r.EventType),
		StartAt:         r.StartDatetime,
		DurationMinutes: r.DurationMinutes,
		Timezone:        r.Timezone,
		MeetingLink:     r.MeetingLink,
		MeetingProvider: calendar.MeetingProvider(r.MeetingProvider),
		Recurrence:      r.Recurrence,
		CreatedBy:       r.CreatedBy,
	}
}

// UpdateEventRequest is the body of PUT /v1/admin/events/:id. The
// updateSeries query flag decides whether it targets one occurrence
// (occurrence_date required) or the whole series (expected_version
// required). Nil fields are left unchanged.
type UpdateEventRequest struct {
	OccurrenceDate  string `json:"occurrence_date"`
	ExpectedVersion *int64 `json:"expected_version"`

	Title           *string    `json:"title"`
	Description     *string    `json:"description"`
	EventType       *string    `json:"event_type"`
	StartDatetime   *time.Time `json:"start_datetime"`
	DurationMinutes *int       `json:"duration_minutes"`
	Timezone        *string    `json:"timezone"`
	MeetingLink     *string    `json:"meeting_link"`
	MeetingProvider *string    `json:"meeting_provider"`

	Recurrence       *calendar.RecurrencePattern `json:"recurrence_pattern"`
	RemoveRecurrence bool                        `json:"remove_recurrence"`
	ClearExceptions  bool                        `json:"clear_exceptions"`
}

// SeriesUpdate converts the request into a series-level edit.
func (r UpdateEventRequest) SeriesUpdate() calendar.SeriesUpdate {
	upd := calendar.SeriesUpdate{
		Title:            r.Title,
		Description:      r.Description,
		StartAt:          r.StartDatetime,
		DurationMinutes:  r.DurationMinutes,
		Timezone:         r.Timezone,
		MeetingLink:      r.MeetingLink,
		Recurrence:       r.Recurrence,
		RemoveRecurrence: r.RemoveRecurrence,
		ClearExceptions:  r.ClearExceptions,
	}
	if r.EventType != nil {
		t := calendar.EventType(*r.EventType)
		upd.EventType = &t
	}
	if r.MeetingProvider != nil {
		p := calendar.MeetingProvider(*r.MeetingProvider)
		upd.MeetingProvider = &p
	}
	return upd
}

// OccurrenceUpdate converts the request into an occurrence-level edit.
func (r UpdateEventRequest) OccurrenceUpdate() calendar.OccurrenceUpdate {
	upd := calendar.OccurrenceUpdate{
		StartAt:         r.StartDatetime,
		DurationMinutes: r.DurationMinutes,
		Title:           r.Title,
		Description:     r.Description,
		MeetingLink:     r.MeetingLink,
	}
	if r.MeetingProvider != nil {
		p := calendar.MeetingProvider(*r.MeetingProvider)
		upd.MeetingProvider = &p
	}
	return upd
}

// TemplateResponse is one catalog entry on the wire.
type TemplateResponse struct {
	Key             string                      `json:"key"`
	Title           string                      `json:"title"`
	Description     string                      `json:"description"`
	EventType       string                      `json:"event_type"`
	DurationMinutes int                         `json:"duration_minutes"`
	MeetingProvider string                      `json:"meeting_provider"`
	Recurrence      *calendar.RecurrencePattern `json:"recurrence_pattern,omitempty"`
}

// NewTemplateResponses renders the catalog for the admin surface.
func NewTemplateResponses(templates []calendar.Template) []TemplateResponse {
	out := make([]TemplateResponse, len(templates))
	for i, t := range templates {
		out[i] = TemplateResponse{
			Key:             t.Key,
			Title:           t.Title,
			Description:     t.Description,
			EventType:       string(t.EventType),
			DurationMinutes: t.DurationMinutes,
			MeetingProvider: string(t.MeetingProvider),
			Recurrence:      t.Recurrence,
		}
	}
	return out
}
