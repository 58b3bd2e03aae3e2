package store

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"thirdwatch.dev/watch/core/db"
)

// Stores bundles the per-entity stores behind one construction point.
// Postgres backs long-running deployments; the in-memory bundle backs the
// one-shot CLI runner and tests.
type Stores interface {
	Dependencies() DependencyStore
	ChangeEvents() ChangeEventStore
	Assessments() AssessmentStore
	Deliveries() DeliveryStore
}

type pgStores struct {
	db   *db.DB
	pool *pgxpool.Pool
}

func NewPostgres(database *db.DB) Stores {
	return &pgStores{db: database, pool: database.Pool()}
}

func (s *pgStores) Dependencies() DependencyStore {
	return newDependencyStore(s.db)
}

func (s *pgStores) ChangeEvents() ChangeEventStore {
	return newChangeEventStore(s.pool)
}

func (s *pgStores) Assessments() AssessmentStore {
	return newAssessmentStore(s.pool)
}

func (s *pgStores) Deliveries() DeliveryStore {
	return newDeliveryStore(s.pool)
}

type memStores struct {
	dependencies *memoryDependencyStore
	events       *memoryChangeEventStore
	assessments  *memoryAssessmentStore
	deliveries   *memoryDeliveryStore
}

func NewMemory() Stores {
	return &memStores{
		dependencies: newMemoryDependencyStore(),
		events:       newMemoryChangeEventStore(),
		assessments:  newMemoryAssessmentStore(),
		deliveries:   newMemoryDeliveryStore(),
	}
}

func (s *memStores) Dependencies() DependencyStore {
	return s.dependencies
}

func (s *memStores) ChangeEvents() ChangeEventStore {
	return s.events
}

func (s *memStores) Assessments() AssessmentStore {
	return s.assessments
}

func (s *memStores) Deliveries() DeliveryStore {
	return s.deliveries
}
