package model

import "time"

// Priority ranks how urgently an assessment needs attention, P0 most urgent.
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
	PriorityP4 Priority = "P4"
)

// UrgencyRank returns 0 for P0 through 4 for P4. Unknown priorities rank
// least urgent.
func (p Priority) UrgencyRank() int {
	switch p {
	case PriorityP0:
		return 0
	case PriorityP1:
		return 1
	case PriorityP2:
		return 2
	case PriorityP3:
		return 3
	case PriorityP4:
		return 4
	default:
		return 5
	}
}

// LessUrgentThan reports whether p is strictly less urgent than other.
// Suppression thresholds use this: min_priority P3 suppresses P4 but not P3.
func (p Priority) LessUrgentThan(other Priority) bool {
	return p.UrgencyRank() > other.UrgencyRank()
}

func (p Priority) Valid() bool {
	return p.UrgencyRank() < 5
}

// RemediationSource records where a suggestion came from. Model output is
// always labelled, never presented as verified fact.
type RemediationSource string

const (
	RemediationRegistry RemediationSource = "registry"
	RemediationModel    RemediationSource = "model"
	RemediationFallback RemediationSource = "fallback"
)

type Remediation struct {
	Suggestion string            `json:"suggestion"`
	Source     RemediationSource `json:"source"`
}

// ImpactAssessment scores a classified change against the scanned codebase.
// Assessments are derived records, recomputable at any time from the change
// event plus the dependency manifest.
type ImpactAssessment struct {
	ChangeEventID     int64            `json:"change_event_id"`
	Priority          Priority         `json:"priority"`
	Score             float64          `json:"score"`
	AffectedLocations []SourceLocation `json:"affected_locations"`
	HumanSummary      string           `json:"human_summary"`
	Remediation       *Remediation     `json:"remediation,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}
