package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func recurringFixture() *EventSeries {
	return &EventSeries{
		ID:              "series-1",
		Title:           "Office Hours",
		Description:     "Weekly Q&A",
		EventType:       TypeOfficeHours,
		StartAt:         time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		Timezone:        "UTC",
		MeetingLink:     "https://zoom.us/j/abc",
		MeetingProvider: ProviderZoom,
		Recurrence: &RecurrencePattern{
			Frequency:   FreqWeekly,
			Interval:    1,
			EndType:     EndAfterOccurrences,
			Occurrences: 8,
		},
	}
}

func january() (time.Time, time.Time) {
	return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 31, 23, 59, 59, 0, time.UTC)
}

func TestMaterialize_BaseTemplate(t *testing.T) {
	s := recurringFixture()
	winStart, winEnd := january()

	got, err := Materialize(s, nil, winStart, winEnd)
	require.NoError(t, err)
	require.Len(t, got, 4) // Jan 6, 13, 20, 27

	for i, occ := range got {
		require.Equal(t, s.Title, occ.Title)
		require.Equal(t, s.DurationMinutes, occ.EffectiveDurationMinutes)
		require.Equal(t, s.MeetingLink, occ.MeetingLink)
		require.False(t, occ.IsException)
		require.Equal(t, i == 0, occ.IsSeriesHead)
		if i > 0 {
			require.True(t, got[i-1].EffectiveStart.Before(occ.EffectiveStart))
		}
	}
	require.Equal(t, "2025-01-06", got[0].OccurrenceDate)
	require.Equal(t, "series-1_2025-01-06", got[0].OccurrenceID())
}

func TestMaterialize_NonRecurringYieldsAtMostOne(t *testing.T) {
	s := recurringFixture()
	s.Recurrence = nil
	winStart, winEnd := january()

	got, err := Materialize(s, nil, winStart, winEnd)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.True(t, got[0].IsSeriesHead)

	// Window that excludes the single slot.
	got, err = Materialize(s, nil,
		time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestMaterialize_CancelledSlotOmitted(t *testing.T) {
	s := recurringFixture()
	winStart, winEnd := january()
	ov := NewOverlay(s.ID, []*OccurrenceException{{
		SeriesID:     s.ID,
		OriginalDate: "2025-01-13",
		Kind:         ExceptionCancelled,
	}})

	got, err := Materialize(s, ov, winStart, winEnd)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, occ := range got {
		require.NotEqual(t, "2025-01-13", occ.OccurrenceDate)
	}

	// A window not containing the cancelled date is unaffected.
	febStart := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	febEnd := time.Date(2025, 2, 28, 23, 59, 59, 0, time.UTC)
	withOverlay, err := Materialize(s, ov, febStart, febEnd)
	require.NoError(t, err)
	withoutOverlay, err := Materialize(s, nil, febStart, febEnd)
	require.NoError(t, err)
	require.Equal(t, withoutOverlay, withOverlay)
}

func TestMaterialize_ModifiedSlotMergesOverride(t *testing.T) {
	s := recurringFixture()
	winStart, winEnd := january()
	title := "Special Session"
	duration := 90
	ov := NewOverlay(s.ID, []*OccurrenceException{{
		SeriesID:     s.ID,
		OriginalDate: "2025-01-13",
		Kind:         ExceptionModified,
		Override:     Override{Title: &title, DurationMinutes: &duration},
	}})

	got, err := Materialize(s, ov, winStart, winEnd)
	require.NoError(t, err)
	require.Len(t, got, 4)

	base, err := Materialize(s, nil, winStart, winEnd)
	require.NoError(t, err)

	for i, occ := range got {
		if occ.OccurrenceDate == "2025-01-13" {
			require.True(t, occ.IsException)
			require.Equal(t, title, occ.Title)
			require.Equal(t, duration, occ.EffectiveDurationMinutes)
			// Unset fields inherit from the base template.
			require.Equal(t, s.Description, occ.Description)
			require.Equal(t, s.MeetingLink, occ.MeetingLink)
			continue
		}
		require.Equal(t, base[i], occ)
	}
}

func TestMaterialize_RescheduledOutOfWindowOmitted(t *testing.T) {
	s := recurringFixture()
	winStart, winEnd := january()
	moved := time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC)
	ov := NewOverlay(s.ID, []*OccurrenceException{{
		SeriesID:     s.ID,
		OriginalDate: "2025-01-13",
		Kind:         ExceptionRescheduled,
		Override:     Override{StartAt: &moved},
	}})

	got, err := Materialize(s, ov, winStart, winEnd)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, occ := range got {
		require.NotEqual(t, "2025-01-13", occ.OccurrenceDate)
	}
	// The exception itself survives the windowed read.
	_, ok := ov.Lookup("2025-01-13")
	require.True(t, ok)
}

func TestMaterialize_RescheduledKeepsOriginalSlotDate(t *testing.T) {
	s := recurringFixture()
	winStart, winEnd := january()
	moved := time.Date(2025, 1, 14, 15, 0, 0, 0, time.UTC)
	ov := NewOverlay(s.ID, []*OccurrenceException{{
		SeriesID:     s.ID,
		OriginalDate: "2025-01-13",
		Kind:         ExceptionRescheduled,
		Override:     Override{StartAt: &moved},
	}})

	got, err := Materialize(s, ov, winStart, winEnd)
	require.NoError(t, err)
	require.Len(t, got, 4)
	require.Equal(t, "2025-01-13", got[1].OccurrenceDate)
	require.True(t, got[1].EffectiveStart.Equal(moved))
	require.True(t, got[1].IsException)
	// Ordering follows the effective start: the moved slot sorts after Jan 13.
	require.True(t, got[0].EffectiveStart.Before(got[1].EffectiveStart))
}

func TestMaterialize_HeadLosesMarkWhenModified(t *testing.T) {
	s := recurringFixture()
	winStart, winEnd := january()
	title := "Changed"
	ov := NewOverlay(s.ID, []*OccurrenceException{{
		SeriesID:     s.ID,
		OriginalDate: "2025-01-06",
		Kind:         ExceptionModified,
		Override:     Override{Title: &title},
	}})

	got, err := Materialize(s, ov, winStart, winEnd)
	require.NoError(t, err)
	for _, occ := range got {
		require.False(t, occ.IsSeriesHead)
	}
}

func TestMaterialize_Deterministic(t *testing.T) {
	s := recurringFixture()
	winStart, winEnd := january()
	dur := 30
	ov := NewOverlay(s.ID, []*OccurrenceException{
		{SeriesID: s.ID, OriginalDate: "2025-01-20", Kind: ExceptionModified, Override: Override{DurationMinutes: &dur}},
		{SeriesID: s.ID, OriginalDate: "2025-01-27", Kind: ExceptionCancelled},
	})

	first, err := Materialize(s, ov, winStart, winEnd)
	require.NoError(t, err)
	second, err := Materialize(s, ov, winStart, winEnd)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestMaterialize_DeletedSeriesYieldsNothing(t *testing.T) {
	s := recurringFixture()
	now := time.Now()
	s.DeletedAt = &now
	winStart, winEnd := january()

	got, err := Materialize(s, nil, winStart, winEnd)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestMaterializeOccurrence(t *testing.T) {
	s := recurringFixture()

	occ, err := MaterializeOccurrence(s, nil, "2025-01-20")
	require.NoError(t, err)
	require.Equal(t, "2025-01-20", occ.OccurrenceDate)
	require.True(t, occ.EffectiveStart.Equal(time.Date(2025, 1, 20, 10, 0, 0, 0, time.UTC)))
	require.False(t, occ.IsSeriesHead)

	_, err = MaterializeOccurrence(s, nil, "2025-01-21")
	require.ErrorIs(t, err, ErrOccurrenceNotFound)

	ov := NewOverlay(s.ID, []*OccurrenceException{{
		SeriesID: s.ID, OriginalDate: "2025-01-20", Kind: ExceptionCancelled,
	}})
	_, err = MaterializeOccurrence(s, ov, "2025-01-20")
	require.ErrorIs(t, err, ErrOccurrenceNotFound)
}
