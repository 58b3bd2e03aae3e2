package dto

import "thirdwatch.dev/watch/internal/store"

type IngestManifestResponse struct {
	Repository   string `json:"repository,omitempty"`
	Dependencies int    `json:"dependencies"`
	Created      int    `json:"created"`
	Updated      int    `json:"updated"`
}

func ToIngestManifestResponse(repository string, normalized int, counts store.UpsertCounts) IngestManifestResponse {
	return IngestManifestResponse{
		Repository:   repository,
		Dependencies: normalized,
		Created:      counts.Created,
		Updated:      counts.Updated,
	}
}
