package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"thirdwatch.dev/watch/common/id"
	"thirdwatch.dev/watch/internal/model"
	"thirdwatch.dev/watch/internal/registry"
)

// In-memory store implementations back the one-shot CLI runner and tests.
// Per-key access only; no cross-key coordination is ever needed.

type memoryDependencyStore struct {
	mu    sync.RWMutex
	byID  map[int64]*model.WatchedDependency
	byKey map[string]int64
}

func newMemoryDependencyStore() *memoryDependencyStore {
	return &memoryDependencyStore{
		byID:  make(map[int64]*model.WatchedDependency),
		byKey: make(map[string]int64),
	}
}

func (s *memoryDependencyStore) UpsertBatch(_ context.Context, deps []model.WatchedDependency) (UpsertCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var counts UpsertCounts
	now := time.Now().UTC()
	for _, dep := range deps {
		key := dep.Key()
		if existingID, ok := s.byKey[key]; ok {
			existing := s.byID[existingID]
			existing.CurrentVersion = dep.CurrentVersion
			existing.GitHubRepo = dep.GitHubRepo
			existing.GitLabProject = dep.GitLabProject
			existing.Confidence = dep.Confidence
			existing.Locations = dep.Locations
			existing.UpdatedAt = now
			counts.Updated++
			continue
		}

		stored := dep
		stored.ID = id.New()
		stored.CreatedAt = now
		stored.UpdatedAt = now
		s.byID[stored.ID] = &stored
		s.byKey[key] = stored.ID
		counts.Created++
	}
	return counts, nil
}

func (s *memoryDependencyStore) Get(_ context.Context, depID int64) (*model.WatchedDependency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dep, ok := s.byID[depID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *dep
	return &copied, nil
}

func (s *memoryDependencyStore) GetByKey(_ context.Context, key string) (*model.WatchedDependency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	depID, ok := s.byKey[key]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *s.byID[depID]
	return &copied, nil
}

func (s *memoryDependencyStore) List(_ context.Context) ([]model.WatchedDependency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	deps := make([]model.WatchedDependency, 0, len(s.byID))
	for _, dep := range s.byID {
		deps = append(deps, *dep)
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].Key() < deps[j].Key() })
	return deps, nil
}

func (s *memoryDependencyStore) AdvanceLastSeen(_ context.Context, depID int64, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dep, ok := s.byID[depID]
	if !ok {
		return ErrNotFound
	}
	if dep.LastSeenVersion != nil && *dep.LastSeenVersion != "" && !registry.IsNewer(version, *dep.LastSeenVersion) {
		return nil
	}
	v := version
	dep.LastSeenVersion = &v
	dep.UpdatedAt = time.Now().UTC()
	return nil
}

type memoryChangeEventStore struct {
	mu     sync.RWMutex
	events map[int64]model.ChangeEvent
	byDiff map[string]struct{} // dependency id + new version
}

func newMemoryChangeEventStore() *memoryChangeEventStore {
	return &memoryChangeEventStore{
		events: make(map[int64]model.ChangeEvent),
		byDiff: make(map[string]struct{}),
	}
}

func diffKey(dependencyID int64, version string) string {
	return fmt.Sprintf("%d:%s", dependencyID, version)
}

func (s *memoryChangeEventStore) Create(_ context.Context, event *model.ChangeEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := diffKey(event.DependencyID, event.NewVersion)
	if _, exists := s.byDiff[key]; exists {
		return false, nil
	}
	if event.ID == 0 {
		event.ID = id.New()
	}
	s.events[event.ID] = *event
	s.byDiff[key] = struct{}{}
	return true, nil
}

func (s *memoryChangeEventStore) Get(_ context.Context, eventID int64) (*model.ChangeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.events[eventID]
	if !ok {
		return nil, ErrNotFound
	}
	return &event, nil
}

func (s *memoryChangeEventStore) ListByDependency(_ context.Context, dependencyID int64, limit int) ([]model.ChangeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []model.ChangeEvent
	for _, event := range s.events {
		if event.DependencyID == dependencyID {
			events = append(events, event)
		}
	}
	return sortAndClip(events, limit), nil
}

func (s *memoryChangeEventStore) ListRecent(_ context.Context, limit int) ([]model.ChangeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]model.ChangeEvent, 0, len(s.events))
	for _, event := range s.events {
		events = append(events, event)
	}
	return sortAndClip(events, limit), nil
}

func sortAndClip(events []model.ChangeEvent, limit int) []model.ChangeEvent {
	sort.Slice(events, func(i, j int) bool { return events[i].DetectedAt.After(events[j].DetectedAt) })
	if n := normalizeLimit(limit); len(events) > n {
		events = events[:n]
	}
	return events
}

type memoryAssessmentStore struct {
	mu          sync.RWMutex
	assessments map[int64]model.ImpactAssessment
}

func newMemoryAssessmentStore() *memoryAssessmentStore {
	return &memoryAssessmentStore{assessments: make(map[int64]model.ImpactAssessment)}
}

func (s *memoryAssessmentStore) Put(_ context.Context, assessment *model.ImpactAssessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assessments[assessment.ChangeEventID] = *assessment
	return nil
}

func (s *memoryAssessmentStore) GetByChangeEvent(_ context.Context, changeEventID int64) (*model.ImpactAssessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	assessment, ok := s.assessments[changeEventID]
	if !ok {
		return nil, ErrNotFound
	}
	return &assessment, nil
}

type memoryDeliveryStore struct {
	mu      sync.RWMutex
	records map[int64]map[string]model.DeliveryRecord
}

func newMemoryDeliveryStore() *memoryDeliveryStore {
	return &memoryDeliveryStore{records: make(map[int64]map[string]model.DeliveryRecord)}
}

func (s *memoryDeliveryStore) Get(_ context.Context, changeEventID int64, channelID string) (*model.DeliveryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[changeEventID][channelID]
	if !ok {
		return nil, ErrNotFound
	}
	return &record, nil
}

func (s *memoryDeliveryStore) Record(_ context.Context, record model.DeliveryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	channels, ok := s.records[record.ChangeEventID]
	if !ok {
		channels = make(map[string]model.DeliveryRecord)
		s.records[record.ChangeEventID] = channels
	}
	if _, exists := channels[record.ChannelID]; !exists {
		channels[record.ChannelID] = record
	}
	return nil
}
