package model

import "time"

// Place is a published, canonical venue.
type Place struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Country      string            `json:"country"`
	City         string            `json:"city"`
	Address      string            `json:"address,omitempty"`
	Lat          *float64          `json:"lat,omitempty"`
	Lng          *float64          `json:"lng,omitempty"`
	Category     string            `json:"category,omitempty"`
	Verification VerificationLevel `json:"verification"`
	About        string            `json:"about,omitempty"`
	// Hours and PaymentNote are nil when the store predates those columns.
	Hours       *string         `json:"hours"`
	PaymentNote *string         `json:"paymentNote"`
	Payments    []PaymentAccept `json:"payments"`
	Media       []Media         `json:"media"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// PlaceFromPayload builds the place record a promotion writes.
func PlaceFromPayload(id string, p Payload, level VerificationLevel) Place {
	pl := Place{
		ID:           id,
		Name:         p.Name,
		Country:      p.Country,
		City:         p.City,
		Address:      p.Address,
		Lat:          p.Lat,
		Lng:          p.Lng,
		Category:     p.Category,
		Verification: level,
		About:        p.About,
	}
	if p.Hours != "" {
		h := p.Hours
		pl.Hours = &h
	}
	if p.PaymentNote != "" {
		n := p.PaymentNote
		pl.PaymentNote = &n
	}
	return pl
}

// PlaceFilter narrows place listings.
type PlaceFilter struct {
	Country string `json:"country,omitempty"`
	City    string `json:"city,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}
