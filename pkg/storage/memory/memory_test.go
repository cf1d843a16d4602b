package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/energia/resourcecatalog/pkg/storage"
	"github.com/energia/resourcecatalog/pkg/storage/test"
)

func TestMemdbStorage(t *testing.T) {
	ds := New()
	test.RunAllTests(t, ds)
}

func TestRecordIteratorSkipsDeletedRecords(t *testing.T) {
	ctx := context.Background()
	ds := New()

	a, err := ds.CreateRecord(ctx, test.NewTestRecord("EE", storage.RecordKindMeteringPoint, 1))
	require.NoError(t, err)
	b, err := ds.CreateRecord(ctx, test.NewTestRecord("EE", storage.RecordKindMeteringPoint, 2))
	require.NoError(t, err)

	iter, err := ds.ReadAll(ctx, storage.ReadAllOptions{FetchSize: 1})
	require.NoError(t, err)

	require.NoError(t, ds.DeleteRecord(ctx, b.ID))

	records, err := storage.ToSlice(ctx, iter)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, a.ID, records[0].ID)
}

func TestRecordIteratorNoRace(t *testing.T) {
	ctx := context.Background()
	ds := New()
	for i := 0; i < 10; i++ {
		_, err := ds.CreateRecord(ctx, test.NewTestRecord("EE", storage.RecordKindMeteringPoint, i))
		require.NoError(t, err)
	}

	iter, err := ds.ReadAll(ctx, storage.ReadAllOptions{FetchSize: 3})
	require.NoError(t, err)
	defer iter.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if _, err := iter.Next(ctx); err != nil {
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestWithClock(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ds := New(WithClock(func() time.Time { return fixed }))

	created, err := ds.CreateRecord(ctx, test.NewTestRecord("FI", storage.RecordKindConnectionPoint, 1))
	require.NoError(t, err)
	require.Equal(t, fixed, created.CreatedAt)
	require.Equal(t, fixed, created.UpdatedAt)

	// stored records are not aliased by the returned copy
	created.Address.City = "changed"
	got, err := ds.ReadRecord(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Tallinn", got.Address.City)
}
