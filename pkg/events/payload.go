package events

import (
	"time"

	"github.com/energia/resourcecatalog/pkg/storage"
)

type AddressPayload struct {
	StreetAddress string `json:"streetAddress"`
	City          string `json:"city"`
	PostalCode    string `json:"postalCode"`
	CountryCode   string `json:"countryCode"`
}

type AttributePayload struct {
	Code  string `json:"code"`
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// RecordPayload is the wire shape of a record in notifications and export chunks.
type RecordPayload struct {
	ID          string             `json:"id"`
	Kind        string             `json:"kind"`
	CountryCode string             `json:"countryCode"`
	Address     AddressPayload     `json:"address"`
	Attributes  []AttributePayload `json:"attributes"`
	Version     int64              `json:"version"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

func NewRecordPayload(r *storage.Record) RecordPayload {
	attributes := make([]AttributePayload, 0, len(r.Attributes))
	for _, a := range r.Attributes {
		attributes = append(attributes, AttributePayload{
			Code:  a.Code,
			Kind:  string(a.Kind),
			Value: a.Value,
		})
	}

	return RecordPayload{
		ID:          r.ID,
		Kind:        string(r.Kind),
		CountryCode: r.CountryCode,
		Address: AddressPayload{
			StreetAddress: r.Address.StreetAddress,
			City:          r.Address.City,
			PostalCode:    r.Address.PostalCode,
			CountryCode:   r.Address.CountryCode,
		},
		Attributes: attributes,
		Version:    r.Version,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// NewRecordPayloads maps records in order.
func NewRecordPayloads(records []*storage.Record) []RecordPayload {
	payloads := make([]RecordPayload, 0, len(records))
	for _, r := range records {
		payloads = append(payloads, NewRecordPayload(r))
	}
	return payloads
}
