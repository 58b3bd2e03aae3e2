package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"thirdwatch.dev/watch/common/id"
	"thirdwatch.dev/watch/internal/model"
)

type changeEventStore struct {
	pool *pgxpool.Pool
}

func newChangeEventStore(pool *pgxpool.Pool) ChangeEventStore {
	return &changeEventStore{pool: pool}
}

const insertChangeEventSQL = `
INSERT INTO change_events
    (id, dependency_id, dependency_key, identifier, provider, detected_at, change_type,
     previous_version, new_version, title, body, url, semver_type, raw_data)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (dependency_id, new_version) DO NOTHING`

const selectChangeEventColumns = `id, dependency_id, dependency_key, identifier, provider, detected_at,
    change_type, previous_version, new_version, title, body, url, semver_type, raw_data`

func (s *changeEventStore) Create(ctx context.Context, event *model.ChangeEvent) (bool, error) {
	if event.ID == 0 {
		event.ID = id.New()
	}

	var rawData any
	if len(event.RawData) > 0 {
		rawData = event.RawData
	}

	tag, err := s.pool.Exec(ctx, insertChangeEventSQL,
		event.ID, event.DependencyID, event.DependencyKey, event.Identifier, event.Provider,
		event.DetectedAt, event.ChangeType, event.PreviousVersion, event.NewVersion,
		event.Title, event.Body, event.URL, event.SemverType, rawData)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *changeEventStore) Get(ctx context.Context, eventID int64) (*model.ChangeEvent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+selectChangeEventColumns+` FROM change_events WHERE id = $1`, eventID)
	return scanChangeEvent(row)
}

func (s *changeEventStore) ListByDependency(ctx context.Context, dependencyID int64, limit int) ([]model.ChangeEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+selectChangeEventColumns+` FROM change_events
         WHERE dependency_id = $1 ORDER BY detected_at DESC LIMIT $2`,
		dependencyID, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectChangeEvents(rows)
}

func (s *changeEventStore) ListRecent(ctx context.Context, limit int) ([]model.ChangeEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+selectChangeEventColumns+` FROM change_events
         ORDER BY detected_at DESC LIMIT $1`,
		normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectChangeEvents(rows)
}

func collectChangeEvents(rows pgx.Rows) ([]model.ChangeEvent, error) {
	var events []model.ChangeEvent
	for rows.Next() {
		event, err := scanChangeEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

func scanChangeEvent(row pgx.Row) (*model.ChangeEvent, error) {
	var event model.ChangeEvent
	err := row.Scan(&event.ID, &event.DependencyID, &event.DependencyKey, &event.Identifier,
		&event.Provider, &event.DetectedAt, &event.ChangeType, &event.PreviousVersion,
		&event.NewVersion, &event.Title, &event.Body, &event.URL, &event.SemverType, &event.RawData)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &event, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
