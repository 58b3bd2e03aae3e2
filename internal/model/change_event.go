package model

import (
	"encoding/json"
	"time"
)

// ChangeCategory classifies how severe an upstream change is. The ordering in
// severityOrder (most severe first) is a core invariant: severity resolution
// and routing tie-breaks all reduce to it.
type ChangeCategory string

const (
	CategoryBreaking      ChangeCategory = "breaking"
	CategorySecurity      ChangeCategory = "security"
	CategoryDeprecation   ChangeCategory = "deprecation"
	CategoryMajorUpdate   ChangeCategory = "major-update"
	CategoryMinorUpdate   ChangeCategory = "minor-update"
	CategoryPatch         ChangeCategory = "patch"
	CategoryInformational ChangeCategory = "informational"
)

var severityOrder = []ChangeCategory{
	CategoryBreaking,
	CategorySecurity,
	CategoryDeprecation,
	CategoryMajorUpdate,
	CategoryMinorUpdate,
	CategoryPatch,
	CategoryInformational,
}

// SeverityRank returns the category's position in the severity ordering,
// 0 most severe. Unknown categories rank after everything known.
func (c ChangeCategory) SeverityRank() int {
	for i, cat := range severityOrder {
		if cat == c {
			return i
		}
	}
	return len(severityOrder)
}

// MoreSevereThan reports whether c outranks other in the severity ordering.
func (c ChangeCategory) MoreSevereThan(other ChangeCategory) bool {
	return c.SeverityRank() < other.SeverityRank()
}

func (c ChangeCategory) Valid() bool {
	return c.SeverityRank() < len(severityOrder)
}

// Categories returns the full severity ordering, most severe first.
func Categories() []ChangeCategory {
	out := make([]ChangeCategory, len(severityOrder))
	copy(out, severityOrder)
	return out
}

// SemverDelta is the advisory semantic-version delta between two versions.
// It feeds classification; it is never authoritative on its own.
type SemverDelta string

const (
	DeltaMajor SemverDelta = "major"
	DeltaMinor SemverDelta = "minor"
	DeltaPatch SemverDelta = "patch"
)

// ChangeEvent records one detected upstream change. Events are immutable:
// created exactly once per detected diff, never mutated afterwards.
type ChangeEvent struct {
	ID              int64           `json:"id"`
	DependencyID    int64           `json:"dependency_id"`
	DependencyKey   string          `json:"dependency_key"`
	Identifier      string          `json:"identifier"`
	Provider        string          `json:"provider"`
	DetectedAt      time.Time       `json:"detected_at"`
	ChangeType      ChangeCategory  `json:"change_type"`
	PreviousVersion string          `json:"previous_version"`
	NewVersion      string          `json:"new_version"`
	Title           string          `json:"title"`
	Body            *string         `json:"body,omitempty"`
	URL             *string         `json:"url,omitempty"`
	SemverType      *SemverDelta    `json:"semver_type,omitempty"`
	RawData         json.RawMessage `json:"raw_data,omitempty"` // provider payload, kept for audit
}
