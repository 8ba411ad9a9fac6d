package model

import "time"

// HistoryEntry is an immutable audit record of one state-changing action.
type HistoryEntry struct {
	ID           int64          `json:"id"`
	SubmissionID string         `json:"submissionId"`
	Actor        string         `json:"actor"`
	Action       Action         `json:"action"`
	PlaceID      *string        `json:"placeId,omitempty"`
	Meta         map[string]any `json:"meta,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// SubmissionFilter narrows review listings.
type SubmissionFilter struct {
	Status Status `json:"status,omitempty"`
	Kind   Kind   `json:"kind,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// SubmissionDetail is one submission with everything a reviewer needs.
type SubmissionDetail struct {
	Submission
	Media   []Media        `json:"media"`
	History []HistoryEntry `json:"history"`
}
