package model

import "time"

// Media is an object-store image mapped to a submission and, once promoted,
// to a place.
type Media struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submissionId"`
	Kind         MediaKind `json:"kind"`
	Key          string    `json:"-"`
	ContentType  string    `json:"contentType"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"createdAt"`
}

// MediaSummary counts accepted files per form field.
type MediaSummary map[MediaKind]int

// Total returns the number of accepted files across fields.
func (s MediaSummary) Total() int {
	n := 0
	for _, c := range s {
		n += c
	}
	return n
}
