package ics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/academy-lab/eventcal/internal/calendar"
)

func weeklySeries(id string) *calendar.EventSeries {
	return &calendar.EventSeries{
		ID:              id,
		Title:           "Office hours",
		EventType:       calendar.TypeOfficeHours,
		StartAt:         time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		Timezone:        "UTC",
		MeetingLink:     "https://zoom.us/j/12345678901",
		MeetingProvider: calendar.ProviderZoom,
		Recurrence: &calendar.RecurrencePattern{
			Frequency:   calendar.FreqWeekly,
			Interval:    1,
			EndType:     calendar.EndAfterOccurrences,
			Occurrences: 8,
		},
		UpdatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestBuildFeed_RecurringMaster(t *testing.T) {
	doc, err := BuildFeed([]*calendar.EventSeries{weeklySeries("s1")}, nil)
	require.NoError(t, err)
	require.Contains(t, doc, "BEGIN:VCALENDAR")
	require.Contains(t, doc, "UID:s1")
	require.Contains(t, doc, "SUMMARY:Office hours")
	require.Contains(t, doc, "DTSTART:20250106T100000Z")
	require.Contains(t, doc, "FREQ=WEEKLY")
	require.Contains(t, doc, "COUNT=8")
	require.Contains(t, doc, "LOCATION:https://zoom.us/j/12345678901")
}

func TestBuildFeed_CancelledSlotBecomesExdate(t *testing.T) {
	s := weeklySeries("s1")
	excs := map[string][]*calendar.OccurrenceException{
		"s1": {{
			SeriesID:     "s1",
			OriginalDate: "2025-01-13",
			Kind:         calendar.ExceptionCancelled,
		}},
	}

	doc, err := BuildFeed([]*calendar.EventSeries{s}, excs)
	require.NoError(t, err)
	require.Contains(t, doc, "EXDATE:20250113T100000Z")
	require.NotContains(t, doc, "RECURRENCE-ID")
}

func TestBuildFeed_OverrideBecomesDetachedEvent(t *testing.T) {
	s := weeklySeries("s1")
	moved := time.Date(2025, 1, 14, 15, 0, 0, 0, time.UTC)
	excs := map[string][]*calendar.OccurrenceException{
		"s1": {{
			SeriesID:     "s1",
			OriginalDate: "2025-01-13",
			Kind:         calendar.ExceptionRescheduled,
			Override:     calendar.Override{StartAt: &moved},
			UpdatedAt:    time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		}},
	}

	doc, err := BuildFeed([]*calendar.EventSeries{s}, excs)
	require.NoError(t, err)
	require.Contains(t, doc, "UID:s1_2025-01-13")
	require.Contains(t, doc, "RECURRENCE-ID:20250113T100000Z")
	require.Contains(t, doc, "DTSTART:20250114T150000Z")
}

func TestBuildFeed_SingleEventHasNoRrule(t *testing.T) {
	s := weeklySeries("s1")
	s.Recurrence = nil

	doc, err := BuildFeed([]*calendar.EventSeries{s}, nil)
	require.NoError(t, err)
	require.Contains(t, doc, "UID:s1")
	require.NotContains(t, doc, "RRULE")
}

func TestBuildFeed_MonthlyClampUsesSetPos(t *testing.T) {
	s := weeklySeries("s1")
	s.StartAt = time.Date(2025, 1, 31, 9, 0, 0, 0, time.UTC)
	s.Recurrence = &calendar.RecurrencePattern{
		Frequency: calendar.FreqMonthly,
		Interval:  1,
		EndType:   calendar.EndNever,
	}

	doc, err := BuildFeed([]*calendar.EventSeries{s}, nil)
	require.NoError(t, err)
	require.Contains(t, doc, "FREQ=MONTHLY")
	require.Contains(t, doc, "BYSETPOS=-1")
	require.Contains(t, doc, "BYMONTHDAY=28,29,30,31")
}

func TestBuildFeed_ByDateEndBecomesInclusiveUntil(t *testing.T) {
	s := weeklySeries("s1")
	s.Recurrence.EndType = calendar.EndByDate
	s.Recurrence.Occurrences = 0
	s.Recurrence.EndDate = "2025-02-24"

	doc, err := BuildFeed([]*calendar.EventSeries{s}, nil)
	require.NoError(t, err)
	require.Contains(t, doc, "UNTIL=20250224T235959Z")
	require.NotContains(t, doc, "COUNT=")
}

func TestBuildFeed_InvalidTimezoneErrors(t *testing.T) {
	s := weeklySeries("s1")
	s.Timezone = "Not/AZone"
	_, err := BuildFeed([]*calendar.EventSeries{s}, nil)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "s1"))
}
