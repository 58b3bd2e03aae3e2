package dto

import (
	"time"

	"thirdwatch.dev/watch/internal/checker"
	"thirdwatch.dev/watch/internal/model"
)

// ChangeEventResponse is a change event without its raw provider payload;
// the stored RawData is an audit artifact, not API surface.
type ChangeEventResponse struct {
	ID              int64                `json:"id,string"`
	DependencyID    int64                `json:"dependency_id,string"`
	DependencyKey   string               `json:"dependency_key"`
	Identifier      string               `json:"identifier"`
	Provider        string               `json:"provider"`
	DetectedAt      time.Time            `json:"detected_at"`
	ChangeType      model.ChangeCategory `json:"change_type"`
	PreviousVersion string               `json:"previous_version"`
	NewVersion      string               `json:"new_version"`
	Title           string               `json:"title"`
	Body            *string              `json:"body,omitempty"`
	URL             *string              `json:"url,omitempty"`
	SemverType      *model.SemverDelta   `json:"semver_type,omitempty"`
}

func ToChangeEventResponse(e *model.ChangeEvent) *ChangeEventResponse {
	return &ChangeEventResponse{
		ID:              e.ID,
		DependencyID:    e.DependencyID,
		DependencyKey:   e.DependencyKey,
		Identifier:      e.Identifier,
		Provider:        e.Provider,
		DetectedAt:      e.DetectedAt,
		ChangeType:      e.ChangeType,
		PreviousVersion: e.PreviousVersion,
		NewVersion:      e.NewVersion,
		Title:           e.Title,
		Body:            e.Body,
		URL:             e.URL,
		SemverType:      e.SemverType,
	}
}

type EventListResponse struct {
	Events []ChangeEventResponse `json:"events"`
	Count  int                   `json:"count"`
}

func ToEventListResponse(events []model.ChangeEvent) EventListResponse {
	resp := EventListResponse{
		Events: make([]ChangeEventResponse, len(events)),
		Count:  len(events),
	}
	for i := range events {
		resp.Events[i] = *ToChangeEventResponse(&events[i])
	}
	return resp
}

type AssessmentResponse struct {
	ChangeEventID     int64                  `json:"change_event_id,string"`
	Priority          model.Priority         `json:"priority"`
	Score             float64                `json:"score"`
	AffectedLocations []model.SourceLocation `json:"affected_locations"`
	HumanSummary      string                 `json:"human_summary"`
	Remediation       *model.Remediation     `json:"remediation,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
}

func ToAssessmentResponse(a *model.ImpactAssessment) *AssessmentResponse {
	return &AssessmentResponse{
		ChangeEventID:     a.ChangeEventID,
		Priority:          a.Priority,
		Score:             a.Score,
		AffectedLocations: a.AffectedLocations,
		HumanSummary:      a.HumanSummary,
		Remediation:       a.Remediation,
		CreatedAt:         a.CreatedAt,
	}
}

// CheckRunResponse reports a synchronously executed check. Changed false with
// Skipped false means the upstream had nothing newer than the baseline.
type CheckRunResponse struct {
	DependencyKey string                     `json:"dependency_key"`
	Changed       bool                       `json:"changed"`
	Skipped       bool                       `json:"skipped"`
	Suppressed    bool                       `json:"suppressed"`
	SuppressedBy  *string                    `json:"suppressed_by,omitempty"`
	Event         *ChangeEventResponse       `json:"event,omitempty"`
	Assessment    *AssessmentResponse        `json:"assessment,omitempty"`
	Notifications []model.NotificationResult `json:"notifications,omitempty"`
}

func ToCheckRunResponse(res checker.RunResult) CheckRunResponse {
	resp := CheckRunResponse{
		DependencyKey: res.Check.DependencyKey,
		Changed:       res.Check.Event != nil,
		Skipped:       res.Check.Skipped,
		Suppressed:    res.Suppressed,
		Notifications: res.Notifications,
	}
	if res.Check.Event != nil {
		resp.Event = ToChangeEventResponse(res.Check.Event)
	}
	if res.Assessment != nil {
		resp.Assessment = ToAssessmentResponse(res.Assessment)
	}
	if res.SuppressedBy != nil && res.SuppressedBy.Reason != "" {
		reason := res.SuppressedBy.Reason
		resp.SuppressedBy = &reason
	}
	return resp
}
