package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	v1 "github.com/academy-lab/eventcal/internal/api/v1"
	"github.com/academy-lab/eventcal/internal/calendar"
	"github.com/academy-lab/eventcal/internal/ics"
	"golang.org/x/sync/errgroup"
)

const (
	// materializeConcurrency bounds the per-request fan-out when expanding
	// many series against one window.
	materializeConcurrency = 8

	// storeRetryDelay is the single backoff applied before retrying a read
	// that failed with a transient store error.
	storeRetryDelay = 100 * time.Millisecond
)

// ErrInvalidQuery marks request validation errors that should return HTTP 400.
var ErrInvalidQuery = errors.New("invalid calendar query")

// Service is the read surface: it expands series against a requested window
// and never writes.
type Service struct {
	series     calendar.SeriesStore
	exceptions calendar.ExceptionStore

	orphanPolicy calendar.OrphanPolicy
	horizonDays  int
	nowFn        func() time.Time
}

// Options tunes the query service.
type Options struct {
	// OrphanPolicy controls whether series detail reads surface orphaned
	// exception dates. Only calendar.OrphanFlag does.
	OrphanPolicy calendar.OrphanPolicy

	// HorizonDays bounds the upcoming feed and the ICS export. Defaults
	// to 90.
	HorizonDays int

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewService creates the read-path service over the given stores.
func NewService(series calendar.SeriesStore, exceptions calendar.ExceptionStore, opts Options) *Service {
	if series == nil {
		panic("query: nil series store")
	}
	if exceptions == nil {
		panic("query: nil exception store")
	}
	horizon := opts.HorizonDays
	if horizon <= 0 {
		horizon = 90
	}
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Service{
		series:       series,
		exceptions:   exceptions,
		orphanPolicy: opts.OrphanPolicy,
		horizonDays:  horizon,
		nowFn:        nowFn,
	}
}

// MonthEvents expands every active series against one calendar month.
// The month boundary is evaluated in each series' own timezone, so an
// occurrence landing on the 1st in its zone belongs to that month even when
// its UTC instant falls in the previous one.
func (s *Service) MonthEvents(ctx context.Context, year int, month time.Month) ([]v1.EventResponse, error) {
	// Widen by a day on each side in UTC, then let per-series local-date
	// filtering cut the window exactly.
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Add(-24 * time.Hour)
	end := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0).Add(24 * time.Hour)

	occs, err := s.materializeAll(ctx, start, end)
	if err != nil {
		return nil, err
	}

	monthPrefix := fmt.Sprintf("%04d-%02d-", year, month)
	out := make([]v1.EventResponse, 0, len(occs))
	for _, o := range occs {
		loc, err := time.LoadLocation(o.Timezone)
		if err != nil {
			loc = time.UTC
		}
		if strings.HasPrefix(o.EffectiveStart.In(loc).Format(calendar.DateLayout), monthPrefix) {
			out = append(out, v1.NewOccurrenceResponse(o))
		}
	}
	return out, nil
}

// Upcoming returns the next occurrences starting at now, bounded by the
// configured horizon and an optional limit.
func (s *Service) Upcoming(ctx context.Context, limit int) ([]v1.EventResponse, error) {
	now := s.nowFn()
	occs, err := s.materializeAll(ctx, now, now.AddDate(0, 0, s.horizonDays))
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(occs) > limit {
		occs = occs[:limit]
	}
	return v1.NewOccurrenceResponses(occs), nil
}

// Range expands every active series against an arbitrary [start, end) window.
func (s *Service) Range(ctx context.Context, start, end time.Time) ([]v1.EventResponse, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("%w: end must be after start", ErrInvalidQuery)
	}
	occs, err := s.materializeAll(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return v1.NewOccurrenceResponses(occs), nil
}

// EventByID resolves either a series id or a composite occurrence id of the
// form <seriesID>_<YYYY-MM-DD>. A bare series id returns the series
// definition; a composite id returns the one materialized occurrence.
func (s *Service) EventByID(ctx context.Context, id string) (*v1.EventResponse, error) {
	seriesID, occurrenceDate, isOccurrence := splitOccurrenceID(id)

	series, err := s.loadSeries(ctx, seriesID)
	if err != nil && isOccurrence {
		// The underscore may be part of the series id itself.
		series, err = s.loadSeries(ctx, id)
		isOccurrence = false
	}
	if err != nil {
		return nil, err
	}
	if series.IsDeleted() {
		return nil, calendar.ErrNotFound
	}

	if !isOccurrence {
		resp := v1.NewSeriesResponse(series)
		if s.orphanPolicy == calendar.OrphanFlag {
			if err := s.attachOrphans(ctx, series, &resp); err != nil {
				return nil, err
			}
		}
		return &resp, nil
	}

	excs, err := s.loadExceptions(ctx, series.ID)
	if err != nil {
		return nil, err
	}
	occ, err := calendar.MaterializeOccurrence(series, calendar.NewOverlay(series.ID, excs), occurrenceDate)
	if err != nil {
		return nil, err
	}
	resp := v1.NewOccurrenceResponse(*occ)
	return &resp, nil
}

// SeriesOccurrences expands one series against a window, for the admin
// detail view.
func (s *Service) SeriesOccurrences(ctx context.Context, seriesID string, start, end time.Time) ([]v1.EventResponse, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("%w: end must be after start", ErrInvalidQuery)
	}
	series, err := s.loadSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	if series.IsDeleted() {
		return nil, calendar.ErrNotFound
	}
	occs, err := s.materializeOne(ctx, series, start, end)
	if err != nil {
		return nil, err
	}
	return v1.NewOccurrenceResponses(occs), nil
}

// ListSeries returns every active series definition, for the admin listing.
func (s *Service) ListSeries(ctx context.Context) ([]v1.EventResponse, error) {
	all, err := retryRead(ctx, func() ([]*calendar.EventSeries, error) {
		return s.series.ListActiveSeries(ctx)
	})
	if err != nil {
		return nil, err
	}
	out := make([]v1.EventResponse, len(all))
	for i, series := range all {
		out[i] = v1.NewSeriesResponse(series)
	}
	return out, nil
}

// HorizonDays reports the configured expansion horizon.
func (s *Service) HorizonDays() int {
	return s.horizonDays
}

// FeedDocument renders the subscribable ICS calendar over every active
// series and its exceptions.
func (s *Service) FeedDocument(ctx context.Context) (string, error) {
	all, err := retryRead(ctx, func() ([]*calendar.EventSeries, error) {
		return s.series.ListActiveSeries(ctx)
	})
	if err != nil {
		return "", err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(materializeConcurrency)

	results := make([][]*calendar.OccurrenceException, len(all))
	for i, series := range all {
		g.Go(func() error {
			excs, err := s.loadExceptions(gctx, series.ID)
			if err != nil {
				return fmt.Errorf("series %s: %w", series.ID, err)
			}
			results[i] = excs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	exceptions := make(map[string][]*calendar.OccurrenceException, len(all))
	for i, series := range all {
		exceptions[series.ID] = results[i]
	}
	return ics.BuildFeed(all, exceptions)
}

// materializeAll expands every active series against the window and merges
// the results in chronological order.
func (s *Service) materializeAll(ctx context.Context, start, end time.Time) ([]calendar.MaterializedOccurrence, error) {
	all, err := retryRead(ctx, func() ([]*calendar.EventSeries, error) {
		return s.series.ListActiveSeries(ctx)
	})
	if err != nil {
		return nil, err
	}
	return s.fanOut(ctx, all, start, end)
}

// fanOut materializes many series concurrently. Each worker loads the
// series' exceptions and expands it; results merge into one sorted slice.
func (s *Service) fanOut(ctx context.Context, all []*calendar.EventSeries, start, end time.Time) ([]calendar.MaterializedOccurrence, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(materializeConcurrency)

	results := make([][]calendar.MaterializedOccurrence, len(all))
	for i, series := range all {
		g.Go(func() error {
			occs, err := s.materializeOne(gctx, series, start, end)
			if err != nil {
				return fmt.Errorf("series %s: %w", series.ID, err)
			}
			results[i] = occs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []calendar.MaterializedOccurrence
	for _, occs := range results {
		merged = append(merged, occs...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].EffectiveStart.Equal(merged[j].EffectiveStart) {
			return merged[i].SeriesID < merged[j].SeriesID
		}
		return merged[i].EffectiveStart.Before(merged[j].EffectiveStart)
	})
	return merged, nil
}

func (s *Service) materializeOne(ctx context.Context, series *calendar.EventSeries, start, end time.Time) ([]calendar.MaterializedOccurrence, error) {
	excs, err := s.loadExceptions(ctx, series.ID)
	if err != nil {
		return nil, err
	}
	return calendar.Materialize(series, calendar.NewOverlay(series.ID, excs), start, end)
}

func (s *Service) loadSeries(ctx context.Context, id string) (*calendar.EventSeries, error) {
	return retryRead(ctx, func() (*calendar.EventSeries, error) {
		return s.series.GetSeries(ctx, id)
	})
}

func (s *Service) loadExceptions(ctx context.Context, seriesID string) ([]*calendar.OccurrenceException, error) {
	return retryRead(ctx, func() ([]*calendar.OccurrenceException, error) {
		return s.exceptions.ListExceptions(ctx, seriesID)
	})
}

func (s *Service) attachOrphans(ctx context.Context, series *calendar.EventSeries, resp *v1.EventResponse) error {
	excs, err := s.loadExceptions(ctx, series.ID)
	if err != nil {
		return err
	}
	orphans, err := calendar.FindOrphanedExceptions(series, excs)
	if err != nil {
		return err
	}
	resp.OrphanedExceptions = orphans
	return nil
}

// retryRead retries a read exactly once after a short delay when it failed
// with a transient store error. Anything else passes through.
func retryRead[T any](ctx context.Context, read func() (T, error)) (T, error) {
	out, err := read()
	var storeErr *calendar.StoreError
	if err == nil || !errors.As(err, &storeErr) {
		return out, err
	}

	slog.Warn("Retrying read after store error", "op", storeErr.Op, "error", storeErr.Err)
	select {
	case <-ctx.Done():
		return out, ctx.Err()
	case <-time.After(storeRetryDelay):
	}
	return read()
}

// splitOccurrenceID splits a composite occurrence id into its series id and
// slot date. Reports false when the id has no date suffix.
func splitOccurrenceID(id string) (seriesID, date string, ok bool) {
	idx := strings.LastIndex(id, "_")
	if idx <= 0 || idx == len(id)-1 {
		return id, "", false
	}
	suffix := id[idx+1:]
	if _, err := time.Parse(calendar.DateLayout, suffix); err != nil {
		return id, "", false
	}
	return id[:idx], suffix, true
}
