package calendar

import (
	"fmt"
	"time"
)

// maxCandidatesPerSeries is a safety cap against runaway expansion of
// never-ending patterns. Generous enough for decades of daily slots.
const maxCandidatesPerSeries = 5000

// Candidate is one raw occurrence slot produced by recurrence expansion,
// before exceptions are applied.
type Candidate struct {
	// Date is the slot's civil date in the series timezone, the stable key
	// exceptions join on.
	Date string

	// Start is the slot's start instant.
	Start time.Time
}

// GenerateCandidates expands the series' recurrence into the ordered slots
// whose start falls inside [windowStart, windowEnd]. The sequence is always
// counted from the series start, so an after_occurrences cap produces
// consistent results across different windows.
func GenerateCandidates(s *EventSeries, windowStart, windowEnd time.Time) ([]Candidate, error) {
	var out []Candidate
	err := walkCandidates(s, func(c Candidate) bool {
		if c.Start.After(windowEnd) {
			return false
		}
		if c.Start.Before(windowStart) {
			return true
		}
		out = append(out, c)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FirstCandidate returns the series' globally first slot: the anchor for
// series-head marking and whole-series edits. For weekly patterns whose
// weekday set excludes the start weekday this is later than the start
// instant itself.
func FirstCandidate(s *EventSeries) (Candidate, bool, error) {
	var first Candidate
	found := false
	err := walkCandidates(s, func(c Candidate) bool {
		first = c
		found = true
		return false
	})
	if err != nil {
		return Candidate{}, false, err
	}
	return first, found, nil
}

// OccurrenceExists reports whether the series would ever generate a slot on
// the given date (YYYY-MM-DD, series timezone).
func OccurrenceExists(s *EventSeries, date string) (bool, error) {
	found := false
	err := walkCandidates(s, func(c Candidate) bool {
		if c.Date == date {
			found = true
			return false
		}
		// Slot dates ascend, so once past the target it can never match.
		return c.Date < date
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// walkCandidates yields every slot from the series start onward, in order,
// until yield returns false, the pattern's end condition is met, or the
// safety cap is hit. All day arithmetic happens in the series timezone so
// weekday filtering and DST transitions follow the human calendar.
func walkCandidates(s *EventSeries, yield func(Candidate) bool) error {
	loc, err := s.Location()
	if err != nil {
		return err
	}
	start := s.StartAt.In(loc)

	if s.Recurrence == nil {
		yield(candidateAt(start))
		return nil
	}

	p := s.Recurrence
	interval := p.EffectiveInterval()

	var endDate string
	if p.EndType == EndByDate {
		if _, err := time.Parse(DateLayout, p.EndDate); err != nil {
			return &ValidationError{Field: "recurrence.end_date", Message: fmt.Sprintf("end_date %q is not a YYYY-MM-DD date", p.EndDate)}
		}
		endDate = p.EndDate
	}

	remaining := -1
	if p.EndType == EndAfterOccurrences {
		remaining = p.Occurrences
	}

	emitted := 0
	// emit applies the shared stop conditions to one slot and reports
	// whether the walk should continue.
	emit := func(t time.Time) bool {
		c := candidateAt(t)
		if endDate != "" && c.Date > endDate {
			return false
		}
		if remaining == 0 {
			return false
		}
		if remaining > 0 {
			remaining--
		}
		emitted++
		if !yield(c) {
			return false
		}
		return emitted < maxCandidatesPerSeries
	}

	switch p.Frequency {
	case FreqDaily:
		for t := start; ; t = t.AddDate(0, 0, interval) {
			if !emit(t) {
				return nil
			}
		}

	case FreqWeekly, FreqBiweekly:
		days := p.sortedDaysOfWeek(start.Weekday())
		// Anchor on the Sunday of the start week, preserving the start's
		// wall-clock time for every generated slot.
		weekBase := start.AddDate(0, 0, -int(start.Weekday()))
		for week := 0; ; week += interval {
			for _, wd := range days {
				t := weekBase.AddDate(0, 0, week*7+wd)
				if t.Before(start) {
					// Earlier weekday in the start week; never a slot and
					// never counted.
					continue
				}
				if !emit(t) {
					return nil
				}
			}
		}

	case FreqMonthly:
		for i := 0; ; i += interval {
			if !emit(addMonthsClamped(start, i)) {
				return nil
			}
		}

	default:
		return &ValidationError{Field: "recurrence.frequency", Message: fmt.Sprintf("unknown frequency %q", p.Frequency)}
	}
}

// SlotStart reconstructs the base start instant of the slot on the given
// date: the series' wall-clock time of day on that civil date, in the
// series timezone.
func SlotStart(s *EventSeries, date string) (time.Time, error) {
	loc, err := s.Location()
	if err != nil {
		return time.Time{}, err
	}
	day, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "occurrence_date", Message: "occurrence date must be YYYY-MM-DD"}
	}
	start := s.StartAt.In(loc)
	return time.Date(day.Year(), day.Month(), day.Day(),
		start.Hour(), start.Minute(), start.Second(), start.Nanosecond(), loc), nil
}

func candidateAt(t time.Time) Candidate {
	return Candidate{Date: t.Format(DateLayout), Start: t}
}

// addMonthsClamped steps t forward by the given number of months, keeping
// the day-of-month where possible and clamping to the last day of shorter
// months. A series starting on the 31st lands on Feb 28/29, never March.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	m := int(month) + months
	year += (m - 1) / 12
	m = (m-1)%12 + 1
	if last := daysInMonth(year, time.Month(m)); day > last {
		day = last
	}
	hour, min, sec := t.Clock()
	return time.Date(year, time.Month(m), day, hour, min, sec, t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
