package dto

import (
	"time"

	"thirdwatch.dev/watch/internal/model"
)

type DependencyResponse struct {
	ID              int64                  `json:"id,string"`
	Key             string                 `json:"key"`
	Kind            model.DependencyKind   `json:"kind"`
	Identifier      string                 `json:"identifier"`
	Ecosystem       model.Ecosystem        `json:"ecosystem,omitempty"`
	CurrentVersion  *string                `json:"current_version,omitempty"`
	LastSeenVersion *string                `json:"last_seen_version,omitempty"`
	GitHubRepo      *string                `json:"github_repo,omitempty"`
	GitLabProject   *string                `json:"gitlab_project,omitempty"`
	Confidence      float64                `json:"confidence,omitempty"`
	Locations       []model.SourceLocation `json:"locations,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

func ToDependencyResponse(d *model.WatchedDependency) *DependencyResponse {
	return &DependencyResponse{
		ID:              d.ID,
		Key:             d.Key(),
		Kind:            d.Kind,
		Identifier:      d.Identifier,
		Ecosystem:       d.Ecosystem,
		CurrentVersion:  d.CurrentVersion,
		LastSeenVersion: d.LastSeenVersion,
		GitHubRepo:      d.GitHubRepo,
		GitLabProject:   d.GitLabProject,
		Confidence:      d.Confidence,
		Locations:       d.Locations,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

type DependencyListResponse struct {
	Dependencies []DependencyResponse `json:"dependencies"`
	Count        int                  `json:"count"`
}

func ToDependencyListResponse(deps []model.WatchedDependency) DependencyListResponse {
	resp := DependencyListResponse{
		Dependencies: make([]DependencyResponse, len(deps)),
		Count:        len(deps),
	}
	for i := range deps {
		resp.Dependencies[i] = *ToDependencyResponse(&deps[i])
	}
	return resp
}
