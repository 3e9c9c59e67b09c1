package calendar

import (
	"sort"
	"time"
)

// Materialize expands the series plus its exception overlay into concrete
// occurrences for the window, ordered by ascending effective start. It is a
// pure function of its inputs: repeated calls with unchanged inputs return
// identical results, and concurrent calls are safe.
//
// Window membership is decided on the effective start, so a slot whose
// exception moves it out of the window is omitted from this window's result
// while the exception itself survives.
func Materialize(s *EventSeries, overlay *Overlay, windowStart, windowEnd time.Time) ([]MaterializedOccurrence, error) {
	if s.IsDeleted() {
		return nil, nil
	}
	if overlay == nil {
		overlay = NewOverlay(s.ID, nil)
	}

	head, hasHead, err := FirstCandidate(s)
	if err != nil {
		return nil, err
	}

	candidates, err := GenerateCandidates(s, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	out := make([]MaterializedOccurrence, 0, len(candidates))
	for _, c := range candidates {
		exc, overridden := overlay.Lookup(c.Date)
		if overridden && exc.Kind == ExceptionCancelled {
			continue
		}

		occ := resolveOccurrence(s, c, exc)
		if occ.EffectiveStart.Before(windowStart) || occ.EffectiveStart.After(windowEnd) {
			continue
		}
		occ.IsSeriesHead = hasHead && !overridden && c.Date == head.Date
		out = append(out, occ)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].EffectiveStart.Equal(out[j].EffectiveStart) {
			return out[i].EffectiveStart.Before(out[j].EffectiveStart)
		}
		return out[i].OccurrenceDate < out[j].OccurrenceDate
	})
	return out, nil
}

// MaterializeOccurrence resolves the single occurrence at the given original
// slot date. Returns ErrOccurrenceNotFound when the series never generates
// that slot or the slot has been cancelled.
func MaterializeOccurrence(s *EventSeries, overlay *Overlay, date string) (*MaterializedOccurrence, error) {
	if s.IsDeleted() {
		return nil, ErrNotFound
	}
	if overlay == nil {
		overlay = NewOverlay(s.ID, nil)
	}

	exists, err := OccurrenceExists(s, date)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrOccurrenceNotFound
	}

	exc, overridden := overlay.Lookup(date)
	if overridden && exc.Kind == ExceptionCancelled {
		return nil, ErrOccurrenceNotFound
	}

	slot, err := SlotStart(s, date)
	if err != nil {
		return nil, err
	}

	head, hasHead, err := FirstCandidate(s)
	if err != nil {
		return nil, err
	}

	occ := resolveOccurrence(s, Candidate{Date: date, Start: slot}, exc)
	occ.IsSeriesHead = hasHead && !overridden && date == head.Date
	return &occ, nil
}

// resolveOccurrence merges an exception's override, if any, over the base
// template for one slot.
func resolveOccurrence(s *EventSeries, c Candidate, exc *OccurrenceException) MaterializedOccurrence {
	occ := MaterializedOccurrence{
		SeriesID:                 s.ID,
		OccurrenceDate:           c.Date,
		EffectiveStart:           c.Start.UTC(),
		EffectiveDurationMinutes: s.DurationMinutes,
		Title:                    s.Title,
		Description:              s.Description,
		EventType:                s.EventType,
		Timezone:                 s.Timezone,
		MeetingLink:              s.MeetingLink,
		MeetingProvider:          s.MeetingProvider,
	}
	if exc == nil {
		return occ
	}

	occ.IsException = true
	ov := exc.Override
	if ov.StartAt != nil {
		occ.EffectiveStart = ov.StartAt.UTC()
	}
	if ov.DurationMinutes != nil {
		occ.EffectiveDurationMinutes = *ov.DurationMinutes
	}
	if ov.Title != nil {
		occ.Title = *ov.Title
	}
	if ov.Description != nil {
		occ.Description = *ov.Description
	}
	if ov.MeetingLink != nil {
		occ.MeetingLink = *ov.MeetingLink
	}
	if ov.MeetingProvider != nil {
		occ.MeetingProvider = *ov.MeetingProvider
	}
	return occ
}
