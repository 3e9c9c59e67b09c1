// Package ics renders the public calendar feed. Recurring series export as
// master VEVENTs carrying an RRULE, with cancelled slots as EXDATEs and
// per-occurrence overrides as RECURRENCE-ID components, so subscribing
// clients expand the series themselves.
package ics

import (
	"errors"
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/academy-lab/eventcal/internal/calendar"
	"github.com/teambition/rrule-go"
)

const prodID = "-//eventcal//calendar feed//EN"

// BuildFeed serializes every active series plus its exceptions into one
// iCalendar document.
func BuildFeed(series []*calendar.EventSeries, exceptions map[string][]*calendar.OccurrenceException) (string, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(prodID)

	for _, s := range series {
		if err := addSeries(cal, s, exceptions[s.ID]); err != nil {
			return "", fmt.Errorf("series %s: %w", s.ID, err)
		}
	}
	return cal.Serialize(), nil
}

func addSeries(cal *ical.Calendar, s *calendar.EventSeries, excs []*calendar.OccurrenceException) error {
	first, ok, err := calendar.FirstCandidate(s)
	if err != nil {
		return err
	}
	if !ok {
		// A zero-occurrence pattern exports nothing.
		return nil
	}

	master := cal.AddEvent(s.ID)
	master.SetDtStampTime(s.UpdatedAt)
	master.SetStartAt(first.Start.UTC())
	master.SetEndAt(first.Start.UTC().Add(time.Duration(s.DurationMinutes) * time.Minute))
	master.SetSummary(s.Title)
	if s.Description != "" {
		master.SetDescription(s.Description)
	}
	if s.MeetingLink != "" {
		master.SetLocation(s.MeetingLink)
	}

	if s.IsRecurring() {
		rule, err := recurrenceRule(s, first.Start)
		if err != nil {
			return err
		}
		master.AddRrule(rule)
	}

	for _, e := range excs {
		slot, err := calendar.SlotStart(s, e.OriginalDate)
		if err != nil {
			// Orphaned exception dates cannot anchor a RECURRENCE-ID.
			continue
		}
		if e.Kind == calendar.ExceptionCancelled {
			master.AddExdate(icsTime(slot))
			continue
		}
		if err := addOverride(cal, s, e, slot); err != nil {
			return err
		}
	}
	return nil
}

// addOverride emits the detached VEVENT of a modified or rescheduled
// occurrence, tied to the master through RECURRENCE-ID.
func addOverride(cal *ical.Calendar, s *calendar.EventSeries, e *calendar.OccurrenceException, slot time.Time) error {
	overlay := calendar.NewOverlay(s.ID, []*calendar.OccurrenceException{e})
	occ, err := calendar.MaterializeOccurrence(s, overlay, e.OriginalDate)
	if errors.Is(err, calendar.ErrOccurrenceNotFound) {
		// Orphaned override: the pattern no longer generates this slot.
		return nil
	}
	if err != nil {
		return err
	}

	ev := cal.AddEvent(s.ID + "_" + e.OriginalDate)
	ev.SetProperty(ical.ComponentProperty("RECURRENCE-ID"), icsTime(slot))
	ev.SetDtStampTime(e.UpdatedAt)
	ev.SetStartAt(occ.EffectiveStart.UTC())
	ev.SetEndAt(occ.EffectiveEnd().UTC())
	ev.SetSummary(occ.Title)
	if occ.Description != "" {
		ev.SetDescription(occ.Description)
	}
	if occ.MeetingLink != "" {
		ev.SetLocation(occ.MeetingLink)
	}
	return nil
}

// recurrenceRule renders the series pattern as an RRULE value. Biweekly maps
// onto WEEKLY with a doubled interval; monthly series anchored past day 28
// use a BYMONTHDAY window with BYSETPOS=-1 so short months land on their
// last day instead of being skipped.
func recurrenceRule(s *calendar.EventSeries, first time.Time) (string, error) {
	p := s.Recurrence
	opt := rrule.ROption{Interval: p.EffectiveInterval()}

	loc, err := s.Location()
	if err != nil {
		return "", err
	}

	switch p.Frequency {
	case calendar.FreqDaily:
		opt.Freq = rrule.DAILY
	case calendar.FreqWeekly, calendar.FreqBiweekly:
		opt.Freq = rrule.WEEKLY
		for _, d := range p.DaysOfWeek {
			opt.Byweekday = append(opt.Byweekday, icsWeekdays[d])
		}
	case calendar.FreqMonthly:
		opt.Freq = rrule.MONTHLY
		if day := first.In(loc).Day(); day > 28 {
			for d := 28; d <= day; d++ {
				opt.Bymonthday = append(opt.Bymonthday, d)
			}
			opt.Bysetpos = []int{-1}
		}
	default:
		return "", fmt.Errorf("unsupported frequency %q", p.Frequency)
	}

	switch p.EndType {
	case calendar.EndAfterOccurrences:
		opt.Count = p.Occurrences
	case calendar.EndByDate:
		until, err := time.ParseInLocation(calendar.DateLayout, p.EndDate, loc)
		if err != nil {
			return "", fmt.Errorf("invalid end date %q: %w", p.EndDate, err)
		}
		// Inclusive end date: the whole final day qualifies.
		opt.Until = until.AddDate(0, 0, 1).Add(-time.Second).UTC()
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return "", fmt.Errorf("invalid recurrence rule: %w", err)
	}
	return r.OrigOptions.RRuleString(), nil
}

var icsWeekdays = [7]rrule.Weekday{
	rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA,
}

func icsTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}
