package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/academy-lab/eventcal/internal/calendar"
	"github.com/academy-lab/eventcal/internal/core/storage/memory"
)

var fixedNow = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestStack(t *testing.T, opts Options) (*memory.Store, *calendar.Coordinator, *Service) {
	t.Helper()

	store := memory.NewStore()
	coordinator := calendar.NewCoordinator(store, store, calendar.NewCatalog(), calendar.CoordinatorOptions{
		Now: func() time.Time { return fixedNow },
	})
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	return store, coordinator, NewService(store, store, opts)
}

func seedWeekly(t *testing.T, coordinator *calendar.Coordinator, title string, start time.Time, occurrences int) *calendar.EventSeries {
	t.Helper()

	s, err := coordinator.CreateSeries(context.Background(), calendar.SeriesInput{
		Title:     title,
		EventType: calendar.TypeOfficeHours,
		StartAt:   start,
		Timezone:  "UTC",
		Recurrence: &calendar.RecurrencePattern{
			Frequency:   calendar.FreqWeekly,
			Interval:    1,
			EndType:     calendar.EndAfterOccurrences,
			Occurrences: occurrences,
		},
	})
	require.NoError(t, err)
	return s
}

func TestService_Range_MergesSeriesChronologically(t *testing.T) {
	_, coordinator, svc := newTestStack(t, Options{})

	// Monday and Wednesday 10:00 UTC starts, interleaved.
	seedWeekly(t, coordinator, "Monday standup", time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC), 4)
	seedWeekly(t, coordinator, "Wednesday review", time.Date(2025, 1, 8, 10, 0, 0, 0, time.UTC), 4)

	events, err := svc.Range(context.Background(),
		time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, events, 4)
	require.Equal(t, "Monday standup", events[0].Title)
	require.Equal(t, "Wednesday review", events[1].Title)
	require.Equal(t, "Monday standup", events[2].Title)
	require.Equal(t, "Wednesday review", events[3].Title)
	for i := 1; i < len(events); i++ {
		require.False(t, events[i].StartDatetime.Before(events[i-1].StartDatetime))
	}
}

func TestService_Range_RejectsInvertedWindow(t *testing.T) {
	_, _, svc := newTestStack(t, Options{})

	_, err := svc.Range(context.Background(), fixedNow, fixedNow.Add(-time.Hour))
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestService_Upcoming_HonorsHorizonAndLimit(t *testing.T) {
	_, coordinator, svc := newTestStack(t, Options{HorizonDays: 14})

	seedWeekly(t, coordinator, "Office hours", time.Date(2025, 1, 2, 18, 0, 0, 0, time.UTC), 52)

	events, err := svc.Upcoming(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, events, 2) // Jan 2 and Jan 9 fall inside 14 days

	limited, err := svc.Upcoming(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	require.Equal(t, "2025-01-02", limited[0].OriginalDate)
}

func TestService_MonthEvents_UsesSeriesLocalDates(t *testing.T) {
	_, coordinator, svc := newTestStack(t, Options{})

	// 02:00 UTC on Feb 1 is still Jan 31 in Los Angeles, so this series
	// belongs to January from the subscriber's point of view.
	s, err := coordinator.CreateSeries(context.Background(), calendar.SeriesInput{
		Title:     "Late night call",
		EventType: calendar.TypeCommunityCall,
		StartAt:   time.Date(2025, 2, 1, 2, 0, 0, 0, time.UTC),
		Timezone:  "America/Los_Angeles",
	})
	require.NoError(t, err)

	january, err := svc.MonthEvents(context.Background(), 2025, time.January)
	require.NoError(t, err)
	require.Len(t, january, 1)
	require.Equal(t, s.ID, january[0].ParentEventID)

	february, err := svc.MonthEvents(context.Background(), 2025, time.February)
	require.NoError(t, err)
	require.Empty(t, february)
}

func TestService_EventByID_Series(t *testing.T) {
	_, coordinator, svc := newTestStack(t, Options{})

	s := seedWeekly(t, coordinator, "Office hours", time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC), 8)

	resp, err := svc.EventByID(context.Background(), s.ID)
	require.NoError(t, err)
	require.False(t, resp.IsOccurrence)
	require.Equal(t, s.ID, resp.ID)
	require.NotNil(t, resp.Version)
}

func TestService_EventByID_Occurrence(t *testing.T) {
	_, coordinator, svc := newTestStack(t, Options{})

	s := seedWeekly(t, coordinator, "Office hours", time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC), 8)

	resp, err := svc.EventByID(context.Background(), s.ID+"_2025-01-13")
	require.NoError(t, err)
	require.True(t, resp.IsOccurrence)
	require.Equal(t, s.ID, resp.ParentEventID)
	require.Equal(t, "2025-01-13", resp.OriginalDate)
	require.Equal(t, time.Date(2025, 1, 13, 10, 0, 0, 0, time.UTC), resp.StartDatetime)
}

func TestService_EventByID_UnknownSlot(t *testing.T) {
	_, coordinator, svc := newTestStack(t, Options{})

	s := seedWeekly(t, coordinator, "Office hours", time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC), 8)

	// Jan 14 is a Tuesday; the series only generates Mondays.
	_, err := svc.EventByID(context.Background(), s.ID+"_2025-01-14")
	require.ErrorIs(t, err, calendar.ErrOccurrenceNotFound)
}

func TestService_EventByID_DeletedSeries(t *testing.T) {
	_, coordinator, svc := newTestStack(t, Options{})

	s := seedWeekly(t, coordinator, "Office hours", time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC), 8)
	require.NoError(t, coordinator.DeleteSeries(context.Background(), s.ID, s.Version))

	_, err := svc.EventByID(context.Background(), s.ID)
	require.ErrorIs(t, err, calendar.ErrNotFound)
}

func TestService_EventByID_FlagPolicySurfacesOrphans(t *testing.T) {
	_, coordinator, svc := newTestStack(t, Options{OrphanPolicy: calendar.OrphanFlag})

	s := seedWeekly(t, coordinator, "Office hours", time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC), 8)
	require.NoError(t, coordinator.DeleteOccurrence(context.Background(), s.ID, "2025-01-13"))

	// Narrow the pattern to Wednesdays; the Monday exception slot vanishes.
	wednesday := []int{3}
	_, err := coordinator.UpdateSeries(context.Background(), s.ID, calendar.SeriesUpdate{
		Recurrence: &calendar.RecurrencePattern{
			Frequency:   calendar.FreqWeekly,
			Interval:    1,
			DaysOfWeek:  wednesday,
			EndType:     calendar.EndAfterOccurrences,
			Occurrences: 8,
		},
	}, s.Version)
	require.NoError(t, err)

	resp, err := svc.EventByID(context.Background(), s.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"2025-01-13"}, resp.OrphanedExceptions)
}

func TestService_ListSeries(t *testing.T) {
	_, coordinator, svc := newTestStack(t, Options{})

	seedWeekly(t, coordinator, "One", time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC), 8)
	seedWeekly(t, coordinator, "Two", time.Date(2025, 1, 7, 10, 0, 0, 0, time.UTC), 8)

	series, err := svc.ListSeries(context.Background())
	require.NoError(t, err)
	require.Len(t, series, 2)
	for _, s := range series {
		require.False(t, s.IsOccurrence)
	}
}

func TestService_FeedDocument(t *testing.T) {
	_, coordinator, svc := newTestStack(t, Options{})

	s := seedWeekly(t, coordinator, "Office hours", time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC), 8)
	require.NoError(t, coordinator.DeleteOccurrence(context.Background(), s.ID, "2025-01-13"))

	doc, err := svc.FeedDocument(context.Background())
	require.NoError(t, err)
	require.Contains(t, doc, "BEGIN:VCALENDAR")
	require.Contains(t, doc, "SUMMARY:Office hours")
	require.Contains(t, doc, "RRULE:FREQ=WEEKLY")
	require.Contains(t, doc, "EXDATE:20250113T100000Z")
}

func TestSplitOccurrenceID(t *testing.T) {
	tests := []struct {
		id       string
		seriesID string
		date     string
		ok       bool
	}{
		{"abc_2025-01-13", "abc", "2025-01-13", true},
		{"series_with_underscores_2025-01-13", "series_with_underscores", "2025-01-13", true},
		{"abc", "abc", "", false},
		{"abc_notadate", "abc", "", false},
		{"_2025-01-13", "_2025-01-13", "", false},
	}
	for _, tc := range tests {
		seriesID, date, ok := splitOccurrenceID(tc.id)
		require.Equal(t, tc.ok, ok, tc.id)
		if ok {
			require.Equal(t, tc.seriesID, seriesID, tc.id)
			require.Equal(t, tc.date, date, tc.id)
		}
	}
}

// flakyStore fails ListActiveSeries with a transient store error a fixed
// number of times before recovering.
type flakyStore struct {
	*memory.Store
	remaining int
	calls     int
}

func (f *flakyStore) ListActiveSeries(ctx context.Context) ([]*calendar.EventSeries, error) {
	f.calls++
	if f.remaining > 0 {
		f.remaining--
		return nil, calendar.NewStoreError("list series", errors.New("connection reset"))
	}
	return f.Store.ListActiveSeries(ctx)
}

func TestRetryRead_RecoversFromTransientFailure(t *testing.T) {
	attempts := 0
	out, err := retryRead(context.Background(), func() (string, error) {
		attempts++
		if attempts == 1 {
			return "", calendar.NewStoreError("get series", errors.New("connection reset"))
		}
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", out)
	require.Equal(t, 2, attempts)
}

func TestRetryRead_DoesNotRetryNonStoreErrors(t *testing.T) {
	attempts := 0
	_, err := retryRead(context.Background(), func() (string, error) {
		attempts++
		return "", calendar.ErrNotFound
	})
	require.ErrorIs(t, err, calendar.ErrNotFound)
	require.Equal(t, 1, attempts)
}

func TestRetryRead_GivesUpAfterSecondFailure(t *testing.T) {
	attempts := 0
	_, err := retryRead(context.Background(), func() (string, error) {
		attempts++
		return "", calendar.NewStoreError("get series", errors.New("connection reset"))
	})
	var storeErr *calendar.StoreError
	require.ErrorAs(t, err, &storeErr)
	require.Equal(t, 2, attempts)
}

func TestRetryRead_CancelledContextSkipsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	_, err := retryRead(ctx, func() (string, error) {
		attempts++
		return "", calendar.NewStoreError("get series", errors.New("connection reset"))
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, attempts)
}

func TestUpcoming_RecoversFromTransientStoreFailure(t *testing.T) {
	store, coordinator, _ := newTestStack(t, Options{})
	seedWeekly(t, coordinator, "Office hours", time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC), 4)

	flaky := &flakyStore{Store: store, remaining: 1}
	svc := NewService(flaky, store, Options{Now: func() time.Time { return fixedNow }})

	events, err := svc.Upcoming(context.Background(), 10)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	require.Equal(t, 2, flaky.calls)
}
