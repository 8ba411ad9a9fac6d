package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// Submission is a proposed fact about a venue awaiting or past review.
type Submission struct {
	ID            string     `json:"id"`
	Kind          Kind       `json:"kind"`
	Status        Status     `json:"status"`
	Payload       Payload    `json:"payload"`
	LinkedPlaceID *string    `json:"linkedPlaceId,omitempty"`
	ReviewedBy    *string    `json:"reviewedBy,omitempty"`
	ReviewNote    *string    `json:"reviewNote,omitempty"`
	RejectReason  *string    `json:"rejectReason,omitempty"`
	ReviewedAt    *time.Time `json:"reviewedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Adopted reports whether the submission backs a live place.
func (s *Submission) Adopted() bool {
	return s.Status == StatusApproved && s.LinkedPlaceID != nil && *s.LinkedPlaceID != ""
}

// Contact is how reviewers can reach the submitter or the venue.
type Contact struct {
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Website string `json:"website,omitempty"`
}

// AcceptedAsset is one claimed (asset, network) pair. On the wire it is either
// a bare symbol string ("BTC") or an object.
type AcceptedAsset struct {
	Asset     string `json:"asset,omitempty"`
	Network   string `json:"network,omitempty"`
	Preferred bool   `json:"preferred,omitempty"`
}

func (a *AcceptedAsset) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = AcceptedAsset{Asset: s}
		return nil
	}
	type plain AcceptedAsset
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = AcceptedAsset(p)
	return nil
}

// Details is the kind-specific part of a payload. The set of implementations
// is closed: OwnerDetails, CommunityDetails and ReportDetails.
type Details interface {
	Kind() Kind
	details()
}

// OwnerDetails is submitted by someone who runs the venue.
type OwnerDetails struct {
	Role string `json:"role,omitempty"`
}

func (OwnerDetails) Kind() Kind { return KindOwner }
func (OwnerDetails) details()   {}

// CommunityDetails is submitted by a customer; proof is textual links.
type CommunityDetails struct {
	ProofURLs    []string `json:"proofUrls,omitempty"`
	Relationship string   `json:"relationship,omitempty"`
}

func (CommunityDetails) Kind() Kind { return KindCommunity }
func (CommunityDetails) details()   {}

// ReportDetails flags a problem with an existing place.
type ReportDetails struct {
	Reason string `json:"reason,omitempty"`
}

func (ReportDetails) Kind() Kind { return KindReport }
func (ReportDetails) details()   {}

// Payload is the validated body of a submission.
type Payload struct {
	Kind           Kind
	Name           string
	Country        string
	City           string
	Address        string
	Lat            *float64
	Lng            *float64
	Category       string
	About          string
	Hours          string
	PaymentNote    string
	AcceptedAssets []AcceptedAsset
	Contact        Contact
	Notes          string
	// TargetPlaceID points at an existing place: the place being reported, or
	// the listing an owner or community member is updating.
	TargetPlaceID string
	Details       Details
}

type payloadWire struct {
	Kind           Kind            `json:"kind"`
	Name           string          `json:"name,omitempty"`
	Country        string          `json:"country,omitempty"`
	City           string          `json:"city,omitempty"`
	Address        string          `json:"address,omitempty"`
	Lat            *float64        `json:"lat,omitempty"`
	Lng            *float64        `json:"lng,omitempty"`
	Category       string          `json:"category,omitempty"`
	About          string          `json:"about,omitempty"`
	Hours          string          `json:"hours,omitempty"`
	PaymentNote    string          `json:"paymentNote,omitempty"`
	AcceptedAssets []AcceptedAsset `json:"acceptedAssets,omitempty"`
	Contact        *Contact        `json:"contact,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	PlaceID        string          `json:"placeId,omitempty"`
	Role           string          `json:"role,omitempty"`
	ProofURLs      []string        `json:"proofUrls,omitempty"`
	Relationship   string          `json:"relationship,omitempty"`
	Reason         string          `json:"reason,omitempty"`
}

func (p Payload) MarshalJSON() ([]byte, error) {
	w := payloadWire{
		Kind:           p.Kind,
		Name:           p.Name,
		Country:        p.Country,
		City:           p.City,
		Address:        p.Address,
		Lat:            p.Lat,
		Lng:            p.Lng,
		Category:       p.Category,
		About:          p.About,
		Hours:          p.Hours,
		PaymentNote:    p.PaymentNote,
		AcceptedAssets: p.AcceptedAssets,
		Notes:          p.Notes,
		PlaceID:        p.TargetPlaceID,
	}
	if p.Contact != (Contact{}) {
		c := p.Contact
		w.Contact = &c
	}
	switch d := p.Details.(type) {
	case OwnerDetails:
		w.Role = d.Role
	case CommunityDetails:
		w.ProofURLs = d.ProofURLs
		w.Relationship = d.Relationship
	case ReportDetails:
		w.Reason = d.Reason
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the flat wire form. Fields that belong to another
// kind are dropped; an unknown kind leaves Details nil for the validator to
// reject.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var w payloadWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = Payload{
		Kind:           w.Kind,
		Name:           w.Name,
		Country:        w.Country,
		City:           w.City,
		Address:        w.Address,
		Lat:            w.Lat,
		Lng:            w.Lng,
		Category:       w.Category,
		About:          w.About,
		Hours:          w.Hours,
		PaymentNote:    w.PaymentNote,
		AcceptedAssets: w.AcceptedAssets,
		Notes:          w.Notes,
		TargetPlaceID:  w.PlaceID,
	}
	if w.Contact != nil {
		p.Contact = *w.Contact
	}
	switch w.Kind {
	case KindOwner:
		p.Details = OwnerDetails{Role: w.Role}
	case KindCommunity:
		p.Details = CommunityDetails{ProofURLs: w.ProofURLs, Relationship: w.Relationship}
	case KindReport:
		p.Details = ReportDetails{Reason: w.Reason}
	}
	return nil
}
