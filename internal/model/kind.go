package model

// Kind is the submission variant. It decides which payload fields and which
// media fields a submission may carry.
type Kind string

const (
	KindOwner     Kind = "owner"
	KindCommunity Kind = "community"
	KindReport    Kind = "report"
)

// Valid reports whether k is one of the closed set of kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindOwner, KindCommunity, KindReport:
		return true
	}
	return false
}

// Promotable reports whether submissions of this kind can become a place.
// Reports only inform moderation of an existing place.
func (k Kind) Promotable() bool {
	return k == KindOwner || k == KindCommunity
}

// VerificationLevel is the trust tier a promotion of this kind grants.
func (k Kind) VerificationLevel() VerificationLevel {
	switch k {
	case KindOwner:
		return VerificationOwner
	case KindCommunity:
		return VerificationCommunity
	default:
		return VerificationUnverified
	}
}

// Status is the review state of a submission.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further review transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// VerificationLevel is the trust tier attached to a published place.
type VerificationLevel string

const (
	VerificationOwner      VerificationLevel = "owner"
	VerificationCommunity  VerificationLevel = "community"
	VerificationDirectory  VerificationLevel = "directory"
	VerificationUnverified VerificationLevel = "unverified"
)

// Valid reports whether v is a known level.
func (v VerificationLevel) Valid() bool {
	switch v {
	case VerificationOwner, VerificationCommunity, VerificationDirectory, VerificationUnverified:
		return true
	}
	return false
}

// MediaKind is the purpose of an uploaded image.
type MediaKind string

const (
	MediaGallery  MediaKind = "gallery"
	MediaProof    MediaKind = "proof"
	MediaEvidence MediaKind = "evidence"
)

// Valid reports whether m is a known media kind.
func (m MediaKind) Valid() bool {
	switch m {
	case MediaGallery, MediaProof, MediaEvidence:
		return true
	}
	return false
}

// Public reports whether media of this kind may be served without
// administrative credentials.
func (m MediaKind) Public() bool {
	return m == MediaGallery
}

// Action is a state-changing review action recorded in the audit trail.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionPromote Action = "promote"
)
