// Package test holds the behavioural suite every [storage.Datastore] implementation must pass.
package test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/energia/resourcecatalog/pkg/storage"
)

var cmpOpts = []cmp.Option{
	cmpopts.IgnoreFields(storage.Record{}, "CreatedAt", "UpdatedAt"),
	cmpopts.EquateEmpty(),
}

func RunAllTests(t *testing.T, ds storage.Datastore) {
	t.Run("TestDatastoreIsReady", func(t *testing.T) {
		status, err := ds.IsReady(context.Background())
		require.NoError(t, err)
		require.True(t, status.IsReady)
	})

	// Single records.
	t.Run("TestRecordCRUD", func(t *testing.T) { RecordCRUDTest(t, ds) })
	t.Run("TestUpdateRecord", func(t *testing.T) { UpdateRecordTest(t, ds) })
	t.Run("TestReadPage", func(t *testing.T) { ReadPageTest(t, ds) })

	// Bulk.
	t.Run("TestWriteBatch", func(t *testing.T) { WriteBatchTest(t, ds, ds.WriteBatch) })
	t.Run("TestWriteBatchPrepared", func(t *testing.T) { WriteBatchTest(t, ds, ds.WriteBatchPrepared) })
	t.Run("TestReadAll", func(t *testing.T) { ReadAllTest(t, ds) })
}

// NewTestRecord returns an unsaved record with two attributes.
func NewTestRecord(countryCode string, kind storage.RecordKind, i int) *storage.Record {
	return &storage.Record{
		Kind:        kind,
		CountryCode: countryCode,
		Address: storage.Address{
			StreetAddress: fmt.Sprintf("Test Street %d", i),
			City:          "Tallinn",
			PostalCode:    fmt.Sprintf("%05d", i+1),
			CountryCode:   countryCode,
		},
		Attributes: []storage.Attribute{
			{Code: "B", Kind: storage.AttributeKindConsumptionType, Value: fmt.Sprintf("value_%d", i)},
			{Code: "A", Kind: storage.AttributeKindChargingPoint, Value: "yes"},
		},
	}
}

func newBatch(n int) []*storage.Record {
	records := make([]*storage.Record, 0, n)
	for i := 0; i < n; i++ {
		r := NewTestRecord("EE", storage.RecordKindMeteringPoint, i)
		r.ID = uuid.NewString()
		records = append(records, r)
	}
	return records
}
