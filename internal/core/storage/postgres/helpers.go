package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/academy-lab/eventcal/internal/calendar"
)

// marshalRecurrence serializes a recurrence pattern for the JSONB column.
// A nil pattern produces nil (SQL NULL) rather than the JSON "null" string.
func marshalRecurrence(p *calendar.RecurrencePattern) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recurrence: %w", err)
	}
	return raw, nil
}

func marshalOverride(o calendar.Override) ([]byte, error) {
	raw, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal override: %w", err)
	}
	return raw, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanSeriesRow scans a database row into an EventSeries.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanSeriesRow(row scanner) (*calendar.EventSeries, error) {
	var s calendar.EventSeries
	var recurrenceJSON []byte
	var deletedAt sql.NullTime

	err := row.Scan(
		&s.ID,
		&s.Title,
		&s.Description,
		&s.EventType,
		&s.StartAt,
		&s.DurationMinutes,
		&s.Timezone,
		&s.MeetingLink,
		&s.MeetingProvider,
		&recurrenceJSON,
		&s.CreatedBy,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan series row: %w", err)
	}

	if len(recurrenceJSON) > 0 {
		var p calendar.RecurrencePattern
		if err := json.Unmarshal(recurrenceJSON, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal recurrence: %w", err)
		}
		s.Recurrence = &p
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		s.DeletedAt = &t
	}

	return &s, nil
}

// scanExceptionRow scans a database row into an OccurrenceException.
func scanExceptionRow(row scanner) (*calendar.OccurrenceException, error) {
	var e calendar.OccurrenceException
	var overrideJSON []byte

	err := row.Scan(
		&e.SeriesID,
		&e.OriginalDate,
		&e.Kind,
		&overrideJSON,
		&e.Revision,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan exception row: %w", err)
	}

	if len(overrideJSON) > 0 {
		if err := json.Unmarshal(overrideJSON, &e.Override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal override: %w", err)
		}
	}

	return &e, nil
}
