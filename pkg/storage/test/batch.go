package test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/energia/resourcecatalog/pkg/storage"
)

type batchWriteFn func(ctx context.Context, records []*storage.Record) error

func WriteBatchTest(t *testing.T, ds storage.Datastore, write batchWriteFn) {
	ctx := context.Background()

	t.Run("writes_every_record_with_attributes", func(t *testing.T) {
		before, err := ds.CountRecords(ctx)
		require.NoError(t, err)

		batch := newBatch(10)
		require.NoError(t, write(ctx, batch))

		after, err := ds.CountRecords(ctx)
		require.NoError(t, err)
		require.Equal(t, before+10, after)

		for _, r := range batch {
			got, err := ds.ReadRecord(ctx, r.ID)
			require.NoError(t, err)
			require.Equal(t, r.Attributes, got.Attributes)
			require.Equal(t, r.Address, got.Address)
		}
	})

	t.Run("leaves_input_records_untouched", func(t *testing.T) {
		batch := []*storage.Record{
			NewTestRecord("EE", storage.RecordKindMeteringPoint, 1),
			NewTestRecord("EE", storage.RecordKindMeteringPoint, 2),
		}
		require.NoError(t, write(ctx, batch))

		for _, r := range batch {
			require.Empty(t, r.ID)
			require.True(t, r.CreatedAt.IsZero())
			require.True(t, r.UpdatedAt.IsZero())
		}
	})

	t.Run("large_batch_exceeding_statement_parameter_limit", func(t *testing.T) {
		before, err := ds.CountRecords(ctx)
		require.NoError(t, err)

		require.NoError(t, write(ctx, newBatch(4000)))

		after, err := ds.CountRecords(ctx)
		require.NoError(t, err)
		require.Equal(t, before+4000, after)
	})

	t.Run("empty_batch_is_a_noop", func(t *testing.T) {
		require.NoError(t, write(ctx, nil))
	})

	t.Run("failed_batch_writes_nothing", func(t *testing.T) {
		existing := newBatch(1)
		require.NoError(t, write(ctx, existing))

		before, err := ds.CountRecords(ctx)
		require.NoError(t, err)

		batch := newBatch(5)
		colliding := NewTestRecord("EE", storage.RecordKindMeteringPoint, 5)
		colliding.ID = existing[0].ID
		batch = append(batch, colliding)

		err = write(ctx, batch)
		require.Error(t, err)

		after, err := ds.CountRecords(ctx)
		require.NoError(t, err)
		require.Equal(t, before, after)

		exists, err := ds.RecordExists(ctx, batch[0].ID)
		require.NoError(t, err)
		require.False(t, exists)
	})
}

func ReadAllTest(t *testing.T, ds storage.Datastore) {
	ctx := context.Background()

	batch := newBatch(25)
	require.NoError(t, ds.WriteBatch(ctx, batch))

	total, err := ds.CountRecords(ctx)
	require.NoError(t, err)

	t.Run("streams_every_record_in_id_order", func(t *testing.T) {
		iter, err := ds.ReadAll(ctx, storage.ReadAllOptions{FetchSize: 7})
		require.NoError(t, err)

		records, err := storage.ToSlice(ctx, iter)
		require.NoError(t, err)
		require.Len(t, records, int(total))

		seen := make(map[string]*storage.Record, len(records))
		for i, r := range records {
			if i > 0 {
				require.Less(t, records[i-1].ID, r.ID)
			}
			seen[r.ID] = r
		}
		for _, want := range batch {
			got, ok := seen[want.ID]
			require.True(t, ok)
			require.Equal(t, want.Attributes, got.Attributes)
		}
	})

	t.Run("stop_ends_iteration", func(t *testing.T) {
		iter, err := ds.ReadAll(ctx, storage.ReadAllOptions{FetchSize: 3})
		require.NoError(t, err)

		_, err = iter.Next(ctx)
		require.NoError(t, err)

		iter.Stop()
		iter.Stop()

		_, err = iter.Next(ctx)
		require.ErrorIs(t, err, storage.ErrIteratorDone)
	})

	t.Run("cancelled_context", func(t *testing.T) {
		iter, err := ds.ReadAll(ctx, storage.ReadAllOptions{})
		require.NoError(t, err)
		defer iter.Stop()

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err = iter.Next(cancelled)
		require.True(t, errors.Is(err, context.Canceled))
	})
}
