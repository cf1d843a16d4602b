package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateAttributes(t *testing.T) {
	tests := []struct {
		name       string
		attributes []Attribute
		expectErr  bool
	}{
		{
			name: "empty",
		},
		{
			name: "distinct_codes",
			attributes: []Attribute{
				{Code: "A", Kind: AttributeKindChargingPoint, Value: "1"},
				{Code: "B", Kind: AttributeKindChargingPoint, Value: "2"},
			},
		},
		{
			name: "same_code_different_kind",
			attributes: []Attribute{
				{Code: "A", Kind: AttributeKindChargingPoint, Value: "1"},
				{Code: "A", Kind: AttributeKindConsumptionType, Value: "1"},
			},
		},
		{
			name: "same_code_and_kind",
			attributes: []Attribute{
				{Code: "A", Kind: AttributeKindChargingPoint, Value: "1"},
				{Code: "B", Kind: AttributeKindConsumptionType, Value: "2"},
				{Code: "A", Kind: AttributeKindChargingPoint, Value: "3"},
			},
			expectErr: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := ValidateAttributes(test.attributes)
			if test.expectErr {
				require.ErrorIs(t, err, ErrDuplicateAttribute)
				require.ErrorContains(t, err, "code 'A'")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestParseKinds(t *testing.T) {
	kind, err := ParseRecordKind("METERING_POINT")
	require.NoError(t, err)
	require.Equal(t, RecordKindMeteringPoint, kind)

	_, err = ParseRecordKind("metering_point")
	require.Error(t, err)

	attrKind, err := ParseAttributeKind("CONNECTION_POINT_STATUS")
	require.NoError(t, err)
	require.Equal(t, AttributeKindConnectionPointStatus, attrKind)

	_, err = ParseAttributeKind("")
	require.Error(t, err)
}

func TestRecordClone(t *testing.T) {
	original := &Record{
		ID:         "1",
		Attributes: []Attribute{{Code: "A", Kind: AttributeKindChargingPoint, Value: "v"}},
	}

	clone := original.Clone()
	clone.Attributes[0].Value = "changed"
	clone.Address.City = "Tartu"

	require.Equal(t, "v", original.Attributes[0].Value)
	require.Empty(t, original.Address.City)

	var nilRecord *Record
	require.Nil(t, nilRecord.Clone())
}
