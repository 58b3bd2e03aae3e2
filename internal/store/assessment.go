package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"thirdwatch.dev/watch/internal/model"
)

type assessmentStore struct {
	pool *pgxpool.Pool
}

func newAssessmentStore(pool *pgxpool.Pool) AssessmentStore {
	return &assessmentStore{pool: pool}
}

const putAssessmentSQL = `
INSERT INTO impact_assessments
    (change_event_id, priority, score, affected_locations, human_summary, remediation, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (change_event_id) DO UPDATE SET
    priority = EXCLUDED.priority,
    score = EXCLUDED.score,
    affected_locations = EXCLUDED.affected_locations,
    human_summary = EXCLUDED.human_summary,
    remediation = EXCLUDED.remediation,
    created_at = EXCLUDED.created_at`

func (s *assessmentStore) Put(ctx context.Context, assessment *model.ImpactAssessment) error {
	locations := assessment.AffectedLocations
	if locations == nil {
		locations = []model.SourceLocation{}
	}
	var remediation any
	if assessment.Remediation != nil {
		remediation = assessment.Remediation
	}

	_, err := s.pool.Exec(ctx, putAssessmentSQL,
		assessment.ChangeEventID, assessment.Priority, assessment.Score,
		locations, assessment.HumanSummary, remediation, assessment.CreatedAt)
	return err
}

func (s *assessmentStore) GetByChangeEvent(ctx context.Context, changeEventID int64) (*model.ImpactAssessment, error) {
	var a model.ImpactAssessment
	err := s.pool.QueryRow(ctx,
		`SELECT change_event_id, priority, score, affected_locations, human_summary, remediation, created_at
         FROM impact_assessments WHERE change_event_id = $1`, changeEventID).
		Scan(&a.ChangeEventID, &a.Priority, &a.Score, &a.AffectedLocations,
			&a.HumanSummary, &a.Remediation, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}
