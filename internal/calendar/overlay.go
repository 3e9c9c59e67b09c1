package calendar

import "sort"

// Overlay is the in-memory exception set for one series, keyed by original
// slot date. Materialization consults it for every candidate; the
// coordinator builds it from the rows the exception store returns.
type Overlay struct {
	seriesID string
	byDate   map[string]*OccurrenceException
}

// NewOverlay builds an overlay for the series from its exception rows.
// Rows belonging to a different series are ignored rather than silently
// cross-applied.
func NewOverlay(seriesID string, exceptions []*OccurrenceException) *Overlay {
	o := &Overlay{
		seriesID: seriesID,
		byDate:   make(map[string]*OccurrenceException, len(exceptions)),
	}
	for _, e := range exceptions {
		o.Upsert(e)
	}
	return o
}

// Lookup returns the exception for the given original slot date, if any.
func (o *Overlay) Lookup(date string) (*OccurrenceException, bool) {
	e, ok := o.byDate[date]
	return e, ok
}

// Upsert stores or replaces the exception for its original slot date.
func (o *Overlay) Upsert(e *OccurrenceException) {
	if e == nil || e.SeriesID != o.seriesID {
		return
	}
	copy := *e
	o.byDate[e.OriginalDate] = &copy
}

// Remove drops the exception for the given original slot date.
func (o *Overlay) Remove(date string) {
	delete(o.byDate, date)
}

// Len returns the number of exceptions in the overlay.
func (o *Overlay) Len() int {
	return len(o.byDate)
}

// Dates returns the overlaid slot dates in ascending order.
func (o *Overlay) Dates() []string {
	dates := make([]string, 0, len(o.byDate))
	for d := range o.byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}
