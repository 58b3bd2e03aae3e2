package store

import (
	"context"
	"errors"

	"thirdwatch.dev/watch/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// UpsertCounts reports what a manifest ingest changed.
type UpsertCounts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// DependencyStore defines the contract for watched-dependency data access
type DependencyStore interface {
	// UpsertBatch inserts new dependencies and refreshes manifest metadata
	// on existing ones. Watcher state (last_seen_version) is never touched.
	UpsertBatch(ctx context.Context, deps []model.WatchedDependency) (UpsertCounts, error)
	Get(ctx context.Context, id int64) (*model.WatchedDependency, error)
	GetByKey(ctx context.Context, key string) (*model.WatchedDependency, error)
	List(ctx context.Context) ([]model.WatchedDependency, error)
	// AdvanceLastSeen moves last_seen_version forward. A version that does
	// not advance on the stored one is a no-op, so redelivered checks stay
	// idempotent.
	AdvanceLastSeen(ctx context.Context, id int64, version string) error
}

// ChangeEventStore defines the contract for change-event data access.
// Events are immutable once created.
type ChangeEventStore interface {
	// Create persists an event. Returns false without error when an event
	// for the same (dependency, new version) already exists.
	Create(ctx context.Context, event *model.ChangeEvent) (bool, error)
	Get(ctx context.Context, id int64) (*model.ChangeEvent, error)
	ListByDependency(ctx context.Context, dependencyID int64, limit int) ([]model.ChangeEvent, error)
	ListRecent(ctx context.Context, limit int) ([]model.ChangeEvent, error)
}

// AssessmentStore defines the contract for impact-assessment data access.
// Assessments are derived and recomputable; Put replaces any earlier
// assessment for the same change event.
type AssessmentStore interface {
	Put(ctx context.Context, assessment *model.ImpactAssessment) error
	GetByChangeEvent(ctx context.Context, changeEventID int64) (*model.ImpactAssessment, error)
}

// DeliveryStore is the notification dedup ledger. Identity is
// (change event, channel); a recorded pair is never delivered again.
type DeliveryStore interface {
	Get(ctx context.Context, changeEventID int64, channelID string) (*model.DeliveryRecord, error)
	Record(ctx context.Context, record model.DeliveryRecord) error
}
