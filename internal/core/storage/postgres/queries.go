package postgres

// SQL for series and exception persistence. Both write paths guard with
// optimistic concurrency in the WHERE clause and use RETURNING to detect
// whether the guard held: sql.ErrNoRows means a stale token (or a missing
// row, disambiguated by a follow-up read).

const (
	// queryInsertSeries creates a series at version 0.
	// ON CONFLICT DO NOTHING returns no rows for a taken id.
	queryInsertSeries = `
		INSERT INTO event_series (
			id, title, description, event_type,
			start_at, duration_minutes, timezone,
			meeting_link, meeting_provider, recurrence,
			created_by, version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, $12, $12)
		ON CONFLICT (id) DO NOTHING
		RETURNING version
	`

	// queryGetSeries fetches one series, soft-deleted included. Reads that
	// must exclude deleted series check deleted_at on the scanned row.
	queryGetSeries = `
		SELECT
			id, title, description, event_type,
			start_at, duration_minutes, timezone,
			meeting_link, meeting_provider, recurrence,
			created_by, version, created_at, updated_at, deleted_at
		FROM event_series
		WHERE id = $1
	`

	queryListActiveSeries = `
		SELECT
			id, title, description, event_type,
			start_at, duration_minutes, timezone,
			meeting_link, meeting_provider, recurrence,
			created_by, version, created_at, updated_at, deleted_at
		FROM event_series
		WHERE deleted_at IS NULL
		ORDER BY start_at ASC, id ASC
	`

	// queryUpdateSeries rewrites the mutable fields and bumps version,
	// guarded by the caller's expected version. Soft-deleted series are
	// never updatable.
	queryUpdateSeries = `
		UPDATE event_series SET
			title = $3, description = $4, event_type = $5,
			start_at = $6, duration_minutes = $7, timezone = $8,
			meeting_link = $9, meeting_provider = $10, recurrence = $11,
			version = version + 1, updated_at = $12
		WHERE id = $1 AND version = $2 AND deleted_at IS NULL
		RETURNING version
	`

	querySoftDeleteSeries = `
		UPDATE event_series SET
			deleted_at = $3, version = version + 1, updated_at = $3
		WHERE id = $1 AND version = $2 AND deleted_at IS NULL
		RETURNING version
	`

	// queryInsertException is the expectedRevision=0 write: it must land on
	// a slot with no exception yet. A conflicting row returns no rows.
	queryInsertException = `
		INSERT INTO occurrence_exceptions (
			series_id, original_date, kind, override,
			revision, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, 1, $5, $5)
		ON CONFLICT (series_id, original_date) DO NOTHING
		RETURNING revision
	`

	// queryUpdateException is the expectedRevision>0 write.
	queryUpdateException = `
		UPDATE occurrence_exceptions SET
			kind = $3, override = $4, revision = revision + 1, updated_at = $5
		WHERE series_id = $1 AND original_date = $2 AND revision = $6 AND deleted_at IS NULL
		RETURNING revision
	`

	queryGetException = `
		SELECT series_id, original_date, kind, override, revision, created_at, updated_at
		FROM occurrence_exceptions
		WHERE series_id = $1 AND original_date = $2 AND deleted_at IS NULL
	`

	queryListExceptions = `
		SELECT series_id, original_date, kind, override, revision, created_at, updated_at
		FROM occurrence_exceptions
		WHERE series_id = $1 AND deleted_at IS NULL
		ORDER BY original_date ASC
	`

	queryRemoveException = `
		DELETE FROM occurrence_exceptions
		WHERE series_id = $1 AND original_date = $2
	`

	queryRemoveAllForSeries = `
		DELETE FROM occurrence_exceptions
		WHERE series_id = $1
	`

	// querySoftDeleteAllForSeries is the series soft-delete cascade. Rows
	// stay on disk for audit; the read queries filter them out.
	querySoftDeleteAllForSeries = `
		UPDATE occurrence_exceptions SET
			deleted_at = $2, updated_at = $2
		WHERE series_id = $1 AND deleted_at IS NULL
	`
)
