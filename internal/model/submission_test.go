package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayload_UnmarshalOwner(t *testing.T) {
	raw := `{"kind":"owner","name":"Cafe X","country":"JP","city":"Tokyo",
		"acceptedAssets":["BTC",{"asset":"btc","network":"LN","preferred":true}],
		"contact":{"email":"x@cafe.jp"},"role":"manager","proofUrls":["ignored"]}`

	var p Payload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	assert.Equal(t, KindOwner, p.Kind)
	assert.Equal(t, "Cafe X", p.Name)
	require.Len(t, p.AcceptedAssets, 2)
	assert.Equal(t, AcceptedAsset{Asset: "BTC"}, p.AcceptedAssets[0])
	assert.True(t, p.AcceptedAssets[1].Preferred)
	assert.Equal(t, "x@cafe.jp", p.Contact.Email)

	d, ok := p.Details.(OwnerDetails)
	require.True(t, ok)
	assert.Equal(t, "manager", d.Role)
}

func TestPayload_UnmarshalUnknownKindLeavesDetailsNil(t *testing.T) {
	var p Payload
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"vendor","name":"A"}`), &p))
	assert.Nil(t, p.Details)
}

func TestPayload_MarshalKeepsKindFields(t *testing.T) {
	p := Payload{
		Kind:          KindReport,
		TargetPlaceID: "place-1",
		Details:       ReportDetails{Reason: "closed"},
	}
	data, err := json.Marshal(p)
	require.NoError(t, err)

	var back Payload
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "place-1", back.TargetPlaceID)
	assert.Equal(t, ReportDetails{Reason: "closed"}, back.Details)
}

func TestSubmission_Adopted(t *testing.T) {
	place := "p1"
	empty := ""
	assert.True(t, (&Submission{Status: StatusApproved, LinkedPlaceID: &place}).Adopted())
	assert.False(t, (&Submission{Status: StatusApproved}).Adopted())
	assert.False(t, (&Submission{Status: StatusApproved, LinkedPlaceID: &empty}).Adopted())
	assert.False(t, (&Submission{Status: StatusRejected, LinkedPlaceID: &place}).Adopted())
}

func TestKind_Rules(t *testing.T) {
	assert.True(t, KindOwner.Promotable())
	assert.True(t, KindCommunity.Promotable())
	assert.False(t, KindReport.Promotable())
	assert.Equal(t, VerificationOwner, KindOwner.VerificationLevel())
	assert.Equal(t, VerificationCommunity, KindCommunity.VerificationLevel())
	assert.False(t, Kind("vendor").Valid())
	assert.True(t, MediaGallery.Public())
	assert.False(t, MediaProof.Public())
	assert.False(t, MediaEvidence.Public())
}

func TestError_CodeOfThroughWrapping(t *testing.T) {
	base := Conflict(StatusRejected, "cannot approve")
	wrapped := errors.Join(errors.New("outer"), base)

	assert.Equal(t, CodeConflict, CodeOf(wrapped))
	e, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Equal(t, StatusRejected, e.Current)
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
	assert.True(t, CodeFileTooLarge.Validation())
	assert.False(t, CodeConflict.Validation())
}

func TestPlaceFromPayload_OptionalColumns(t *testing.T) {
	p := Payload{Name: "Cafe X", Country: "JP", City: "Tokyo", Hours: "9-5"}
	pl := PlaceFromPayload("id-1", p, VerificationOwner)
	require.NotNil(t, pl.Hours)
	assert.Equal(t, "9-5", *pl.Hours)
	assert.Nil(t, pl.PaymentNote)
	assert.Equal(t, VerificationOwner, pl.Verification)
}
