package generator

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/energia/resourcecatalog/pkg/storage"
)

func TestSyntheticRecord(t *testing.T) {
	tests := []struct {
		i        int64
		expected *storage.Record
	}{
		{
			i: 0,
			expected: &storage.Record{
				Kind:        storage.RecordKindMeteringPoint,
				CountryCode: "EE",
				Address: storage.Address{
					StreetAddress: "Generated Street 0",
					City:          "Tallinn",
					PostalCode:    "00001",
					CountryCode:   "EE",
				},
				Attributes: []storage.Attribute{
					{Code: "GEN00", Kind: storage.AttributeKindConsumptionType, Value: "Generated_0"},
					{Code: "GEN01", Kind: storage.AttributeKindChargingPoint, Value: "Generated_1"},
				},
			},
		},
		{
			i: 5,
			expected: &storage.Record{
				Kind:        storage.RecordKindConnectionPoint,
				CountryCode: "FI",
				Address: storage.Address{
					StreetAddress: "Generated Street 5",
					City:          "Tampere",
					PostalCode:    "00006",
					CountryCode:   "FI",
				},
				Attributes: []storage.Attribute{
					{Code: "GEN05", Kind: storage.AttributeKindConnectionPointStatus, Value: "Generated_5"},
					{Code: "GEN06", Kind: storage.AttributeKindConsumptionType, Value: "Generated_6"},
					{Code: "GEN07", Kind: storage.AttributeKindChargingPoint, Value: "Generated_7"},
				},
			},
		},
		{
			i: 99999,
			expected: &storage.Record{
				Kind:        storage.RecordKindConnectionPoint,
				CountryCode: "FI",
				Address: storage.Address{
					StreetAddress: "Generated Street 99999",
					City:          "Helsinki",
					PostalCode:    "00001",
					CountryCode:   "FI",
				},
				Attributes: []storage.Attribute{
					{Code: "GEN99", Kind: storage.AttributeKindConsumptionType, Value: "Generated_9"},
					{Code: "GEN00", Kind: storage.AttributeKindChargingPoint, Value: "Generated_0"},
					{Code: "GEN01", Kind: storage.AttributeKindConnectionPointStatus, Value: "Generated_1"},
				},
			},
		},
	}

	for _, tc := range tests {
		got := SyntheticRecord(tc.i)
		if diff := cmp.Diff(tc.expected, got); diff != "" {
			t.Errorf("SyntheticRecord(%d) mismatch (-want +got):\n%s", tc.i, diff)
		}
	}
}

func TestSyntheticRecordsHaveUniqueAttributes(t *testing.T) {
	records := slices.Collect(SyntheticRecords(300))
	require.Len(t, records, 300)
	for _, r := range records {
		require.NoError(t, storage.ValidateAttributes(r.Attributes))
		require.Empty(t, r.ID)
	}
}
