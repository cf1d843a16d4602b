package test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/energia/resourcecatalog/pkg/storage"
)

func RecordCRUDTest(t *testing.T, ds storage.Datastore) {
	ctx := context.Background()

	t.Run("create_assigns_id_and_version_zero", func(t *testing.T) {
		created, err := ds.CreateRecord(ctx, NewTestRecord("EE", storage.RecordKindMeteringPoint, 1))
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)
		require.Equal(t, int64(0), created.Version)
		require.False(t, created.CreatedAt.IsZero())

		got, err := ds.ReadRecord(ctx, created.ID)
		require.NoError(t, err)
		if diff := cmp.Diff(created, got, cmpOpts...); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}

		exists, err := ds.RecordExists(ctx, created.ID)
		require.NoError(t, err)
		require.True(t, exists)
	})

	t.Run("read_unknown_record_returns_not_found", func(t *testing.T) {
		_, err := ds.ReadRecord(ctx, uuid.NewString())
		require.ErrorIs(t, err, storage.ErrNotFound)

		exists, err := ds.RecordExists(ctx, uuid.NewString())
		require.NoError(t, err)
		require.False(t, exists)
	})

	t.Run("duplicate_attributes_are_rejected_before_writing", func(t *testing.T) {
		before, err := ds.CountRecords(ctx)
		require.NoError(t, err)

		r := NewTestRecord("EE", storage.RecordKindMeteringPoint, 2)
		r.Attributes = append(r.Attributes, r.Attributes[0])
		_, err = ds.CreateRecord(ctx, r)
		require.ErrorIs(t, err, storage.ErrDuplicateAttribute)

		after, err := ds.CountRecords(ctx)
		require.NoError(t, err)
		require.Equal(t, before, after)
	})

	t.Run("same_code_with_different_kind_is_allowed", func(t *testing.T) {
		r := NewTestRecord("FI", storage.RecordKindConnectionPoint, 3)
		r.Attributes = append(r.Attributes, storage.Attribute{Code: "A", Kind: storage.AttributeKindConnectionPointStatus, Value: "ACTIVE"})
		created, err := ds.CreateRecord(ctx, r)
		require.NoError(t, err)
		require.Len(t, created.Attributes, 3)
	})

	t.Run("create_with_existing_id_returns_collision", func(t *testing.T) {
		created, err := ds.CreateRecord(ctx, NewTestRecord("EE", storage.RecordKindMeteringPoint, 4))
		require.NoError(t, err)

		again := NewTestRecord("EE", storage.RecordKindMeteringPoint, 5)
		again.ID = created.ID
		_, err = ds.CreateRecord(ctx, again)
		require.ErrorIs(t, err, storage.ErrCollision)
	})

	t.Run("delete_removes_record_and_attributes", func(t *testing.T) {
		created, err := ds.CreateRecord(ctx, NewTestRecord("EE", storage.RecordKindMeteringPoint, 6))
		require.NoError(t, err)

		require.NoError(t, ds.DeleteRecord(ctx, created.ID))

		_, err = ds.ReadRecord(ctx, created.ID)
		require.ErrorIs(t, err, storage.ErrNotFound)

		err = ds.DeleteRecord(ctx, created.ID)
		require.ErrorIs(t, err, storage.ErrNotFound)

		// the id can be reused, so no orphaned attribute rows are left behind
		reused := NewTestRecord("EE", storage.RecordKindMeteringPoint, 6)
		reused.ID = created.ID
		_, err = ds.CreateRecord(ctx, reused)
		require.NoError(t, err)
	})
}

func UpdateRecordTest(t *testing.T, ds storage.Datastore) {
	ctx := context.Background()

	t.Run("matching_version_increments_by_one", func(t *testing.T) {
		created, err := ds.CreateRecord(ctx, NewTestRecord("EE", storage.RecordKindMeteringPoint, 10))
		require.NoError(t, err)

		changed := created.Clone()
		changed.Address.City = "Tartu"
		changed.Attributes = []storage.Attribute{{Code: "C", Kind: storage.AttributeKindConnectionPointStatus, Value: "ACTIVE"}}

		updated, err := ds.UpdateRecord(ctx, changed, 0)
		require.NoError(t, err)
		require.Equal(t, int64(1), updated.Version)
		require.Equal(t, "Tartu", updated.Address.City)

		got, err := ds.ReadRecord(ctx, created.ID)
		require.NoError(t, err)
		if diff := cmp.Diff(updated, got, cmpOpts...); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
		require.Equal(t, created.CreatedAt.Unix(), got.CreatedAt.Unix())
	})

	t.Run("stale_version_is_rejected_and_leaves_record_untouched", func(t *testing.T) {
		created, err := ds.CreateRecord(ctx, NewTestRecord("EE", storage.RecordKindMeteringPoint, 11))
		require.NoError(t, err)

		first := created.Clone()
		first.Address.City = "Narva"
		_, err = ds.UpdateRecord(ctx, first, 0)
		require.NoError(t, err)

		second := created.Clone()
		second.Address.City = "Helsinki"
		_, err = ds.UpdateRecord(ctx, second, 0)
		require.ErrorIs(t, err, storage.ErrVersionConflict)

		got, err := ds.ReadRecord(ctx, created.ID)
		require.NoError(t, err)
		require.Equal(t, int64(1), got.Version)
		require.Equal(t, "Narva", got.Address.City)
	})

	t.Run("unknown_record_returns_not_found", func(t *testing.T) {
		r := NewTestRecord("EE", storage.RecordKindMeteringPoint, 12)
		r.ID = uuid.NewString()
		_, err := ds.UpdateRecord(ctx, r, 0)
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("duplicate_attributes_are_rejected", func(t *testing.T) {
		created, err := ds.CreateRecord(ctx, NewTestRecord("EE", storage.RecordKindMeteringPoint, 13))
		require.NoError(t, err)

		changed := created.Clone()
		changed.Attributes = append(changed.Attributes, changed.Attributes[1])
		_, err = ds.UpdateRecord(ctx, changed, 0)
		require.ErrorIs(t, err, storage.ErrDuplicateAttribute)

		got, err := ds.ReadRecord(ctx, created.ID)
		require.NoError(t, err)
		require.Equal(t, int64(0), got.Version)
		require.Len(t, got.Attributes, 2)
	})
}

func ReadPageTest(t *testing.T, ds storage.Datastore) {
	ctx := context.Background()

	want := map[string]struct{}{}
	for i := 0; i < 5; i++ {
		created, err := ds.CreateRecord(ctx, NewTestRecord("LV", storage.RecordKindConnectionPoint, i))
		require.NoError(t, err)
		want[created.ID] = struct{}{}
	}
	_, err := ds.CreateRecord(ctx, NewTestRecord("LV", storage.RecordKindMeteringPoint, 99))
	require.NoError(t, err)

	filter := storage.ReadPageFilter{CountryCode: "LV", Kind: storage.RecordKindConnectionPoint}

	got := map[string]struct{}{}
	var pageSizes []int
	token := ""
	for {
		page, next, err := ds.ReadPage(ctx, filter, storage.NewPaginationOptions(2, token))
		require.NoError(t, err)
		pageSizes = append(pageSizes, len(page))
		for _, r := range page {
			require.Equal(t, storage.RecordKindConnectionPoint, r.Kind)
			require.Len(t, r.Attributes, 2)
			got[r.ID] = struct{}{}
		}
		if next == "" {
			break
		}
		token = next
	}

	require.Equal(t, []int{2, 2, 1}, pageSizes)
	require.Equal(t, want, got)

	t.Run("zero_page_size_uses_default", func(t *testing.T) {
		page, next, err := ds.ReadPage(ctx, filter, storage.PaginationOptions{})
		require.NoError(t, err)
		require.Len(t, page, 5)
		require.Empty(t, next)
	})

	t.Run("invalid_token", func(t *testing.T) {
		_, _, err := ds.ReadPage(ctx, filter, storage.NewPaginationOptions(2, "not-a-token"))
		require.ErrorIs(t, err, storage.ErrInvalidContinuationToken)
	})
}
