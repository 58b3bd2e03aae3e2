package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"thirdwatch.dev/watch/common/id"
	"thirdwatch.dev/watch/core/db"
	"thirdwatch.dev/watch/internal/model"
	"thirdwatch.dev/watch/internal/registry"
)

type dependencyStore struct {
	db   *db.DB
	pool *pgxpool.Pool
}

func newDependencyStore(database *db.DB) DependencyStore {
	return &dependencyStore{db: database, pool: database.Pool()}
}

const upsertDependencySQL = `
INSERT INTO watched_dependencies
    (id, kind, identifier, ecosystem, current_version, github_repo, gitlab_project, confidence, locations)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (kind, identifier, ecosystem) DO UPDATE SET
    current_version = EXCLUDED.current_version,
    github_repo = EXCLUDED.github_repo,
    gitlab_project = EXCLUDED.gitlab_project,
    confidence = EXCLUDED.confidence,
    locations = EXCLUDED.locations,
    updated_at = now()
RETURNING (xmax = 0)`

const selectDependencyColumns = `id, kind, identifier, ecosystem, current_version, last_seen_version,
    github_repo, gitlab_project, confidence, locations, created_at, updated_at`

func (s *dependencyStore) UpsertBatch(ctx context.Context, deps []model.WatchedDependency) (UpsertCounts, error) {
	var counts UpsertCounts
	if len(deps) == 0 {
		return counts, nil
	}

	batch := &pgx.Batch{}
	for _, dep := range deps {
		locations := dep.Locations
		if locations == nil {
			locations = []model.SourceLocation{}
		}
		batch.Queue(upsertDependencySQL,
			id.New(), dep.Kind, dep.Identifier, dep.Ecosystem,
			dep.CurrentVersion, dep.GitHubRepo, dep.GitLabProject,
			dep.Confidence, locations)
	}

	// One transaction for the whole manifest: a failed ingest leaves the
	// watched set as it was, not half-updated.
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, batch)
		defer results.Close() //nolint:errcheck

		for range deps {
			var inserted bool
			if err := results.QueryRow().Scan(&inserted); err != nil {
				return fmt.Errorf("upserting dependency: %w", err)
			}
			if inserted {
				counts.Created++
			} else {
				counts.Updated++
			}
		}
		return results.Close()
	})
	if err != nil {
		return UpsertCounts{}, err
	}
	return counts, nil
}

func (s *dependencyStore) Get(ctx context.Context, depID int64) (*model.WatchedDependency, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+selectDependencyColumns+` FROM watched_dependencies WHERE id = $1`, depID)
	return scanDependency(row)
}

func (s *dependencyStore) GetByKey(ctx context.Context, key string) (*model.WatchedDependency, error) {
	kind, identifier, ecosystem, err := model.ParseDependencyKey(key)
	if err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+selectDependencyColumns+` FROM watched_dependencies
         WHERE kind = $1 AND identifier = $2 AND ecosystem = $3`,
		kind, identifier, ecosystem)
	return scanDependency(row)
}

func (s *dependencyStore) List(ctx context.Context) ([]model.WatchedDependency, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+selectDependencyColumns+` FROM watched_dependencies ORDER BY kind, ecosystem, identifier`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deps []model.WatchedDependency
	for rows.Next() {
		dep, err := scanDependency(rows)
		if err != nil {
			return nil, err
		}
		deps = append(deps, *dep)
	}
	return deps, rows.Err()
}

func (s *dependencyStore) AdvanceLastSeen(ctx context.Context, depID int64, version string) error {
	// Row lock across the compare and the write: a slow check finishing after
	// a newer one cannot move the marker backwards.
	return s.db.WithTx(ctx, func(tx pgx.Tx) error {
		var current *string
		err := tx.QueryRow(ctx,
			`SELECT last_seen_version FROM watched_dependencies WHERE id = $1 FOR UPDATE`, depID).Scan(&current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if current != nil && *current != "" && !registry.IsNewer(version, *current) {
			return nil
		}

		_, err = tx.Exec(ctx,
			`UPDATE watched_dependencies SET last_seen_version = $2, updated_at = now() WHERE id = $1`,
			depID, version)
		return err
	})
}

func scanDependency(row pgx.Row) (*model.WatchedDependency, error) {
	var dep model.WatchedDependency
	err := row.Scan(&dep.ID, &dep.Kind, &dep.Identifier, &dep.Ecosystem,
		&dep.CurrentVersion, &dep.LastSeenVersion, &dep.GitHubRepo, &dep.GitLabProject,
		&dep.Confidence, &dep.Locations, &dep.CreatedAt, &dep.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &dep, nil
}
