package generator

import (
	"fmt"

	"github.com/energia/resourcecatalog/pkg/storage"
)

var (
	countryCodes = []string{"EE", "FI"}
	cities       = []string{"Tallinn", "Tartu", "Narva", "Helsinki", "Turku", "Tampere"}
)

// SyntheticRecord deterministically derives the record for loop index i. The id is left empty
// so the store assigns one.
func SyntheticRecord(i int64) *storage.Record {
	kind := storage.RecordKindMeteringPoint
	if i%2 != 0 {
		kind = storage.RecordKindConnectionPoint
	}
	country := countryCodes[i%2]

	attributeCount := 2 + i%2
	attributes := make([]storage.Attribute, 0, attributeCount)
	for j := int64(0); j < attributeCount; j++ {
		attributes = append(attributes, storage.Attribute{
			Code:  fmt.Sprintf("GEN%02d", (i+j)%100),
			Kind:  storage.AttributeKinds[(i+j)%3],
			Value: fmt.Sprintf("Generated_%d", (i+j)%10),
		})
	}

	return &storage.Record{
		Kind:        kind,
		CountryCode: country,
		Address: storage.Address{
			StreetAddress: fmt.Sprintf("Generated Street %d", i),
			City:          cities[i%6],
			PostalCode:    fmt.Sprintf("%05d", (i%99999)+1),
			CountryCode:   country,
		},
		Attributes: attributes,
	}
}
