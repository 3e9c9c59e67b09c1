package calendar

import (
	"fmt"
	"time"
)

// ValidateSeries checks an EventSeries before it is persisted. Recurrence
// problems are rejected here so the evaluator never sees a bad pattern.
func ValidateSeries(s *EventSeries) error {
	if s.Title == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if !validEventType(s.EventType) {
		return &ValidationError{Field: "event_type", Message: fmt.Sprintf("unknown event type %q", s.EventType)}
	}
	if s.StartAt.IsZero() {
		return &ValidationError{Field: "start_datetime", Message: "start instant is required"}
	}
	if s.DurationMinutes <= 0 {
		return &ValidationError{Field: "duration_minutes", Message: "duration must be a positive number of minutes"}
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return &ValidationError{Field: "timezone", Message: fmt.Sprintf("unknown timezone %q", s.Timezone)}
	}
	switch s.MeetingProvider {
	case ProviderZoom, ProviderGoogleMeet, ProviderCustom, ProviderNone:
	default:
		return &ValidationError{Field: "meeting_provider", Message: fmt.Sprintf("unknown meeting provider %q", s.MeetingProvider)}
	}
	if s.Recurrence != nil {
		if err := validatePattern(s.Recurrence); err != nil {
			return err
		}
	}
	return nil
}

func validEventType(t EventType) bool {
	for _, known := range KnownEventTypes {
		if t == known {
			return true
		}
	}
	return false
}

func validatePattern(p *RecurrencePattern) error {
	switch p.Frequency {
	case FreqDaily, FreqWeekly, FreqBiweekly, FreqMonthly:
	default:
		return &ValidationError{Field: "recurrence.frequency", Message: fmt.Sprintf("unknown frequency %q", p.Frequency)}
	}
	if p.Interval <= 0 {
		return &ValidationError{Field: "recurrence.interval", Message: "interval must be a positive integer"}
	}
	if len(p.DaysOfWeek) > 0 {
		if p.Frequency != FreqWeekly && p.Frequency != FreqBiweekly {
			return &ValidationError{Field: "recurrence.days_of_week", Message: "days_of_week is only valid for weekly or biweekly frequency"}
		}
		seen := make(map[int]bool, len(p.DaysOfWeek))
		for _, d := range p.DaysOfWeek {
			if d < 0 || d > 6 {
				return &ValidationError{Field: "recurrence.days_of_week", Message: fmt.Sprintf("weekday ordinal %d out of range 0-6", d)}
			}
			if seen[d] {
				return &ValidationError{Field: "recurrence.days_of_week", Message: fmt.Sprintf("weekday ordinal %d repeated", d)}
			}
			seen[d] = true
		}
	}
	switch p.EndType {
	case EndNever:
		if p.Occurrences != 0 || p.EndDate != "" {
			return &ValidationError{Field: "recurrence.end_type", Message: "end_type never does not take occurrences or end_date"}
		}
	case EndAfterOccurrences:
		if p.Occurrences <= 0 {
			return &ValidationError{Field: "recurrence.occurrences", Message: "occurrences must be a positive integer"}
		}
		if p.EndDate != "" {
			return &ValidationError{Field: "recurrence.end_date", Message: "end_date is not valid with end_type after_occurrences"}
		}
	case EndByDate:
		if p.EndDate == "" {
			return &ValidationError{Field: "recurrence.end_date", Message: "end_date is required for end_type by_date"}
		}
		if _, err := time.Parse(DateLayout, p.EndDate); err != nil {
			return &ValidationError{Field: "recurrence.end_date", Message: fmt.Sprintf("end_date %q is not a YYYY-MM-DD date", p.EndDate)}
		}
		if p.Occurrences != 0 {
			return &ValidationError{Field: "recurrence.occurrences", Message: "occurrences is not valid with end_type by_date"}
		}
	default:
		return &ValidationError{Field: "recurrence.end_type", Message: fmt.Sprintf("unknown end type %q", p.EndType)}
	}
	return nil
}
