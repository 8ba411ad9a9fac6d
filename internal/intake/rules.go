// Package intake validates multipart submissions, stores their media and
// records them in the primary store, or in the local queue when the primary
// store is unavailable.
package intake

import (
	"net/url"
	"strings"

	"github.com/sells-group/venue-registry/internal/model"
)

// FileRule bounds how many files one form field may carry.
type FileRule struct {
	Min int
	Max int
}

// Rule is the validation table for one submission kind.
type Rule struct {
	Kind  model.Kind
	Files map[model.MediaKind]FileRule
	// Check validates the kind-specific payload fields.
	Check func(p model.Payload) error
}

var rules = map[model.Kind]Rule{
	model.KindOwner: {
		Kind: model.KindOwner,
		Files: map[model.MediaKind]FileRule{
			model.MediaProof:   {Min: 1, Max: 4},
			model.MediaGallery: {Min: 0, Max: 8},
		},
		Check: func(p model.Payload) error {
			if _, ok := p.Details.(model.OwnerDetails); !ok {
				return model.FieldError(model.CodeInvalidPayload, "kind", "owner details missing")
			}
			return checkListing(p)
		},
	},
	model.KindCommunity: {
		Kind: model.KindCommunity,
		Files: map[model.MediaKind]FileRule{
			model.MediaGallery: {Min: 0, Max: 4},
		},
		Check: func(p model.Payload) error {
			d, ok := p.Details.(model.CommunityDetails)
			if !ok {
				return model.FieldError(model.CodeInvalidPayload, "kind", "community details missing")
			}
			if err := checkListing(p); err != nil {
				return err
			}
			if len(d.ProofURLs) < 2 {
				return model.FieldError(model.CodeInvalidPayload, "proofUrls", "at least 2 proof URLs required")
			}
			for _, u := range d.ProofURLs {
				if !validURL(u) {
					return model.FieldError(model.CodeInvalidPayload, "proofUrls", "invalid proof URL %q", u)
				}
			}
			return nil
		},
	},
	model.KindReport: {
		Kind: model.KindReport,
		Files: map[model.MediaKind]FileRule{
			model.MediaEvidence: {Min: 0, Max: 4},
		},
		Check: func(p model.Payload) error {
			d, ok := p.Details.(model.ReportDetails)
			if !ok {
				return model.FieldError(model.CodeInvalidPayload, "kind", "report details missing")
			}
			if strings.TrimSpace(p.TargetPlaceID) == "" {
				return model.FieldError(model.CodeInvalidPayload, "placeId", "report must name a place")
			}
			if strings.TrimSpace(d.Reason) == "" {
				return model.FieldError(model.CodeInvalidPayload, "reason", "report reason required")
			}
			return nil
		},
	},
}

// RuleFor returns the validation table for kind.
func RuleFor(kind model.Kind) (Rule, bool) {
	r, ok := rules[kind]
	return r, ok
}

// checkListing validates the venue fields owner and community share.
func checkListing(p model.Payload) error {
	for _, f := range []struct{ name, val string }{
		{"name", p.Name},
		{"country", p.Country},
		{"city", p.City},
	} {
		if strings.TrimSpace(f.val) == "" {
			return model.FieldError(model.CodeInvalidPayload, f.name, "%s is required", f.name)
		}
	}
	if len(model.NormalizeAssets(p.AcceptedAssets)) == 0 {
		return model.FieldError(model.CodeInvalidPayload, "acceptedAssets", "at least one accepted asset required")
	}
	if (p.Lat == nil) != (p.Lng == nil) {
		return model.FieldError(model.CodeInvalidPayload, "lat", "lat and lng must be given together")
	}
	if p.Lat != nil && (*p.Lat < -90 || *p.Lat > 90 || *p.Lng < -180 || *p.Lng > 180) {
		return model.FieldError(model.CodeInvalidPayload, "lat", "coordinates out of range")
	}
	if p.Contact.Email != "" && !strings.Contains(p.Contact.Email, "@") {
		return model.FieldError(model.CodeInvalidPayload, "contact.email", "invalid email")
	}
	if p.Contact.Website != "" && !validURL(p.Contact.Website) {
		return model.FieldError(model.CodeInvalidPayload, "contact.website", "invalid website URL")
	}
	return nil
}

func validURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
